package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/recontor/recontor/pkg/config"
	"github.com/recontor/recontor/pkg/output"
	"github.com/recontor/recontor/pkg/scanexec"
	"github.com/recontor/recontor/pkg/scans"
	"github.com/recontor/recontor/pkg/storage"
)

// NewScanCommand constructs the 'scan' command group. Every subcommand
// operates directly on the local workspace, so scans can be driven without
// a running server; a server pointed at the same workspace sees the same
// records.
func NewScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "scan",
		Short:   "Start, inspect, and manage reconnaissance scans",
		GroupID: "scan",
	}

	cmd.AddCommand(newScanStartCommand())
	cmd.AddCommand(newScanStopCommand())
	cmd.AddCommand(newScanRestartCommand())
	cmd.AddCommand(newScanStatusCommand())
	cmd.AddCommand(newScanResultsCommand())
	cmd.AddCommand(newScanListCommand())
	cmd.AddCommand(newScanDeleteCommand())

	return cmd
}

// openServices builds the storage backend, runner, and scan service for a
// CLI invocation. The caller must Close the backend.
func openServices(cmd *cobra.Command) (*storage.LocalBackend, *scans.Service, *scanexec.Runner, config.Config, error) {
	cfg := configFromCommand(cmd)

	storageCfg, err := storage.DefaultConfig()
	if err != nil {
		return nil, nil, nil, cfg, fmt.Errorf("resolve workspace: %w", err)
	}
	if cfg.Server.WorkspaceDir != "" {
		storageCfg.WorkspaceRoot = cfg.Server.WorkspaceDir
	}

	backend, err := storage.NewLocalBackend(cmd.Context(), storageCfg)
	if err != nil {
		return nil, nil, nil, cfg, fmt.Errorf("open workspace: %w", err)
	}
	if err := backend.Initialize(cmd.Context()); err != nil {
		return nil, nil, nil, cfg, fmt.Errorf("initialize workspace: %w", err)
	}

	runner := scanexec.NewRunner(backend, scanexec.Options{
		EngineBinary: cfg.Engine.Binary,
		SettleDelay:  cfg.Engine.SettleDelay,
		StopGrace:    cfg.Engine.StopGrace,
	})

	if cfg.Engine.OutputRoot == "" {
		cfg.Engine.OutputRoot = filepath.Join(storageCfg.WorkspaceRoot, "scans")
	}

	return backend, scans.NewService(backend, runner), runner, cfg, nil
}

func newScanStartCommand() *cobra.Command {
	var (
		mode  string
		queue bool
	)

	cmd := &cobra.Command{
		Use:   "start <domain>",
		Short: "Start a new scan against a domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := setupOutputPipeline(cmd)

			backend, svc, runner, cfg, err := openServices(cmd)
			if err != nil {
				out.Error(err)
				return err
			}
			defer closeBackend(backend)

			rec, err := svc.Start(cmd.Context(), args[0], storage.ScanMode(mode))
			if err != nil {
				out.Error(err)
				return err
			}

			if queue {
				out.Info(fmt.Sprintf("Scan %s queued for %s (%s mode)", rec.ID, rec.Domain, rec.Mode))
				return nil
			}

			out.Info(fmt.Sprintf("## Scan: %s", rec.Domain))
			out.Progress(0, "starting engine")
			if err := runForeground(cmd.Context(), backend, runner, rec, cfg.Engine.OutputRoot); err != nil {
				out.Error(err)
				return err
			}

			final, err := backend.Scans().Get(cmd.Context(), rec.ID)
			if err != nil {
				out.Error(err)
				return err
			}
			renderScanSummary(out, final)
			if final.Status == storage.StatusFailed {
				return fmt.Errorf("scan failed: %s", final.ErrorMessage)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", string(storage.ModePassive), "Scan mode: passive, subdomain, web, or full")
	cmd.Flags().BoolVar(&queue, "queue", false, "Queue the scan for a running server instead of executing it now")

	return cmd
}

// runForeground promotes a freshly queued record to running and executes it
// in this process, the same promotion the server dispatcher performs.
func runForeground(ctx context.Context, backend storage.Backend, runner *scanexec.Runner, rec *storage.ScanRecord, outputRoot string) error {
	outputDir := filepath.Join(outputRoot, rec.ID, "output")
	logFile := filepath.Join(outputRoot, rec.ID, "engine.log")

	now := time.Now().UTC()
	err := backend.Scans().UpdateStatusIf(ctx, rec.ID, storage.StatusPending, storage.StatusRunning, storage.ScanUpdates{
		StartedAt:  ptrTo(ptrTo(now)),
		OutputPath: ptrTo(outputDir),
		LogFile:    ptrTo(logFile),
	})
	if err != nil {
		return fmt.Errorf("claim scan: %w", err)
	}

	return runner.Run(ctx, scanexec.Params{
		ScanID:    rec.ID,
		Domain:    rec.Domain,
		Mode:      rec.Mode,
		OutputDir: outputDir,
		LogFile:   logFile,
	})
}

func newScanStopCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop <scan-id>",
		Short: "Stop a running scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := setupOutputPipeline(cmd)

			backend, svc, _, _, err := openServices(cmd)
			if err != nil {
				out.Error(err)
				return err
			}
			defer closeBackend(backend)

			stopped, err := svc.Stop(cmd.Context(), args[0])
			if err != nil {
				out.Error(err)
				return err
			}
			if stopped {
				out.Info(fmt.Sprintf("Scan %s stopped", args[0]))
			} else {
				out.Warning(fmt.Sprintf("Scan %s was not running", args[0]))
			}
			return nil
		},
	}
	return cmd
}

func newScanRestartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restart <scan-id>",
		Short: "Re-queue a finished scan for another run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := setupOutputPipeline(cmd)

			backend, svc, _, _, err := openServices(cmd)
			if err != nil {
				out.Error(err)
				return err
			}
			defer closeBackend(backend)

			rec, err := svc.Restart(cmd.Context(), args[0])
			if err != nil {
				out.Error(err)
				return err
			}
			out.Info(fmt.Sprintf("Scan %s re-queued for %s", rec.ID, rec.Domain))
			return nil
		},
	}
	return cmd
}

func newScanStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <scan-id>",
		Short: "Show the current state of a scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := setupOutputPipeline(cmd)

			backend, svc, _, _, err := openServices(cmd)
			if err != nil {
				out.Error(err)
				return err
			}
			defer closeBackend(backend)

			rec, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				out.Error(err)
				return err
			}
			renderScanSummary(out, rec)
			return nil
		},
	}
	return cmd
}

func newScanResultsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results <scan-id>",
		Short: "Show extracted results and findings of a completed scan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := setupOutputPipeline(cmd)

			backend, svc, _, _, err := openServices(cmd)
			if err != nil {
				out.Error(err)
				return err
			}
			defer closeBackend(backend)

			rec, err := svc.Results(cmd.Context(), args[0])
			if err != nil {
				if errors.Is(err, scans.ErrResultsNotReady) {
					out.Warning(fmt.Sprintf("Scan %s has no results yet", args[0]))
				}
				out.Error(err)
				return err
			}
			renderScanResults(out, rec)
			return nil
		},
	}
	return cmd
}

func newScanListCommand() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scans in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := setupOutputPipeline(cmd)

			backend, svc, _, _, err := openServices(cmd)
			if err != nil {
				out.Error(err)
				return err
			}
			defer closeBackend(backend)

			filter := storage.ScanFilter{Limit: limit}
			if status != "" {
				filter.Status = storage.ScanStatus(status)
			}
			records, err := svc.List(cmd.Context(), filter)
			if err != nil {
				out.Error(err)
				return err
			}

			rows := make([][]string, 0, len(records))
			for _, rec := range records {
				score := "-"
				if rec.Score != nil {
					score = strconv.Itoa(*rec.Score)
				}
				rows = append(rows, []string{
					rec.ID,
					rec.Domain,
					string(rec.Mode),
					string(rec.Status),
					score,
					rec.CreatedAt.Format(time.RFC3339),
				})
			}
			out.Table([]string{"ID", "DOMAIN", "MODE", "STATUS", "SCORE", "CREATED"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, running, completed, failed, stopped)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of scans to show (0 = all)")

	return cmd
}

func newScanDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <scan-id>",
		Short: "Delete a scan record and its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := setupOutputPipeline(cmd)

			backend, svc, _, _, err := openServices(cmd)
			if err != nil {
				out.Error(err)
				return err
			}
			defer closeBackend(backend)

			if err := svc.Delete(cmd.Context(), args[0]); err != nil {
				out.Error(err)
				return err
			}
			out.Info(fmt.Sprintf("Scan %s deleted", args[0]))
			return nil
		},
	}
	return cmd
}

func renderScanSummary(out output.Output, rec *storage.ScanRecord) {
	score := "-"
	if rec.Score != nil {
		score = strconv.Itoa(*rec.Score)
	}
	grade := rec.Grade
	if grade == "" {
		grade = "-"
	}

	rows := [][]string{
		{"ID", rec.ID},
		{"Domain", rec.Domain},
		{"Mode", string(rec.Mode)},
		{"Status", string(rec.Status)},
		{"Progress", fmt.Sprintf("%d%%", rec.ProgressPct)},
		{"Score", score},
		{"Grade", grade},
	}
	if rec.CurrentModule != "" {
		rows = append(rows, []string{"Module", rec.CurrentModule})
	}
	if rec.ErrorMessage != "" {
		rows = append(rows, []string{"Error", rec.ErrorMessage})
	}
	out.Table([]string{"FIELD", "VALUE"}, rows)
}

func renderScanResults(out output.Output, rec *storage.ScanRecord) {
	renderScanSummary(out, rec)

	if rec.Results != nil {
		res := rec.Results
		out.Table([]string{"CATEGORY", "COUNT"}, [][]string{
			{"subdomains", strconv.Itoa(len(res.Subdomains))},
			{"hosts", strconv.Itoa(len(res.Hosts))},
			{"osint", strconv.Itoa(len(res.OSINT))},
			{"technologies", strconv.Itoa(len(res.Technologies))},
			{"vulnerabilities", strconv.Itoa(len(res.Vulnerabilities))},
			{"open-ports", strconv.Itoa(len(res.OpenPorts))},
			{"web-data", strconv.Itoa(len(res.WebData))},
		})
	}

	if len(rec.Findings) > 0 {
		rows := make([][]string, 0, len(rec.Findings))
		for _, f := range rec.Findings {
			rows = append(rows, []string{
				strconv.Itoa(f.Index),
				string(f.Severity),
				f.Title,
			})
		}
		out.Table([]string{"#", "SEVERITY", "FINDING"}, rows)
	}
}

func closeBackend(backend *storage.LocalBackend) {
	if err := backend.Close(); err != nil {
		log.Warn().Err(err).Str("component", "cli").Msg("failed to close storage backend")
	}
}

func ptrTo[T any](v T) *T {
	return &v
}
