package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/recontor/recontor/pkg/config"
	"github.com/recontor/recontor/pkg/output"
	"github.com/recontor/recontor/pkg/output/subscribers"
)

const cliExecutable = "recontor"

// contextKey is a private type for context keys set by the root command.
type contextKey string

const configContextKey contextKey = "config"

// NewCommand constructs the top-level recontor CLI command, wiring global
// flags, configuration loading, and logger setup shared by all subcommands.
func NewCommand() *cobra.Command {
	var (
		configFile     string
		workspaceDir   string
		verbosityCount int
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Recontor queues and supervises domain reconnaissance scans",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			manager := config.NewManager()
			if err := manager.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg := manager.Get()

			if workspaceDir != "" {
				cfg.Server.WorkspaceDir = workspaceDir
			}

			setupLogging(cfg.Log, verbosityCount, verbose)

			ctx := context.WithValue(cmd.Context(), configContextKey, cfg)
			cmd.SetContext(ctx)
			if root := cmd.Root(); root != nil && root != cmd {
				root.SetContext(ctx)
			}
			return nil
		},
	}

	cmd.SilenceUsage = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.PersistentFlags().StringVar(&workspaceDir, "workspace-dir", "", "Override workspace root directory")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")
	cmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging (shows service layer logs)")
	cmd.PersistentFlags().Bool("json", false, "Emit machine-readable JSON output")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "scan", Title: "Scan Commands"})
	cmd.AddGroup(&cobra.Group{ID: "core", Title: "Core Commands"})

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewScanCommand())
	cmd.AddCommand(NewStorageCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// setupLogging configures the global zerolog logger from config and the
// verbosity flags. Explicit flags win over the configured level.
func setupLogging(cfg config.LogConfig, verbosityCount int, verbose bool) {
	var writer io.Writer = os.Stderr
	if cfg.File != "" {
		writer = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
	}
	if cfg.Format != "json" {
		writer = zerolog.ConsoleWriter{Out: writer}
	}
	log.Logger = zerolog.New(writer).With().Timestamp().Logger()

	// If explicit --verbose is set, show debug and above.
	// Else use -v count: 0=>configured level, 1=>Info, 2+=>Debug.
	switch {
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case verbosityCount == 1:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case verbosityCount >= 2:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(configuredLevel(cfg.Level))
	}
}

func configuredLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// configFromCommand retrieves the loaded configuration from the command
// context, falling back to defaults when the root PreRun did not run
// (direct command construction in tests).
func configFromCommand(cmd *cobra.Command) config.Config {
	if cfg, ok := cmd.Context().Value(configContextKey).(config.Config); ok {
		return cfg
	}
	return config.DefaultConfig()
}

// setupOutputPipeline builds the output stream for a command invocation:
// JSON lines when --json is set, otherwise colored human output, plus a
// diagnostic subscriber gated by the -v count.
func setupOutputPipeline(cmd *cobra.Command) output.Output {
	jsonOut, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")
	verbosityCount, _ := cmd.Flags().GetCount("verbosity")

	stream := output.NewStream()
	if jsonOut {
		stream.Subscribe(subscribers.NewJSONFormatter(cmd.OutOrStdout()))
	} else {
		stream.Subscribe(subscribers.NewHumanFormatter(cmd.OutOrStdout(), cmd.ErrOrStderr(), !noColor))
	}
	if verbosityCount > 0 {
		stream.Subscribe(subscribers.NewDiagnosticSubscriber(cmd.ErrOrStderr(), output.Level(verbosityCount)))
	}
	return output.NewDefaultOutput(stream)
}
