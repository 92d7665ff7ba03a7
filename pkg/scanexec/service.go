// Package scanexec supervises one external engine run per scan: command
// construction, process-group lifecycle, progress persistence, and
// finalization through the extractor and scorer.
package scanexec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recontor/recontor/pkg/extract"
	"github.com/recontor/recontor/pkg/netutil"
	"github.com/recontor/recontor/pkg/scoring"
	"github.com/recontor/recontor/pkg/storage"
)

// Options configures a Runner.
type Options struct {
	// EngineBinary is the path to the external scanning engine.
	EngineBinary string

	// SettleDelay is how long to wait after process exit before reading
	// the output tree, so trailing disk writes can flush.
	SettleDelay time.Duration

	// StopGrace is how long a signaled process group gets to terminate
	// before escalation to a forceful kill.
	StopGrace time.Duration
}

const (
	defaultSettleDelay = 2 * time.Second
	defaultStopGrace   = 5 * time.Second
)

// Runner runs exactly one scan to completion or explicit termination.
// Instances are safe for concurrent use; the dispatcher launches one
// Run per in-flight scan.
type Runner struct {
	backend   storage.Backend
	proc      ProcessController
	extractor *extract.Extractor
	opts      Options
}

// NewRunner builds a Runner with default dependencies.
func NewRunner(backend storage.Backend, opts Options) *Runner {
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	if opts.StopGrace <= 0 {
		opts.StopGrace = defaultStopGrace
	}
	return &Runner{
		backend:   backend,
		proc:      newDefaultController(),
		extractor: &extract.Extractor{},
		opts:      opts,
	}
}

// WithProcessController replaces the process controller (used by tests).
func (r *Runner) WithProcessController(proc ProcessController) *Runner {
	r.proc = proc
	return r
}

// WithExtractor replaces the result extractor (used by tests).
func (r *Runner) WithExtractor(e *extract.Extractor) *Runner {
	r.extractor = e
	return r
}

// Run executes the scan described by params. The record is expected to
// already be in "running" state (the dispatcher promoted it before the
// handoff). Run always resolves the record to a terminal state; the
// returned error exists for callers that want to log it.
func (r *Runner) Run(ctx context.Context, params Params) error {
	scans := r.backend.Scans()

	// Pre-flight guard: never scan ourselves or an internal network.
	if netutil.BlockedTarget(params.Domain) {
		msg := fmt.Sprintf("target %q is loopback or private address space", params.Domain)
		r.fail(ctx, params.ScanID, msg)
		return errors.New(msg)
	}

	if err := os.MkdirAll(params.OutputDir, 0o755); err != nil {
		msg := fmt.Sprintf("create output directory: %v", err)
		r.fail(ctx, params.ScanID, msg)
		return errors.New(msg)
	}

	// Active web checks consume a target list file, not a bare domain.
	targetList := ""
	if params.Mode == storage.ModeWeb {
		path, err := WriteTargetList(params.OutputDir, params.Domain)
		if err != nil {
			r.fail(ctx, params.ScanID, err.Error())
			return err
		}
		targetList = path
	}

	args, err := BuildArgs(params, targetList)
	if err != nil {
		r.fail(ctx, params.ScanID, err.Error())
		return err
	}

	handle, err := r.proc.Spawn(ProcSpec{
		Binary:  r.opts.EngineBinary,
		Args:    args,
		LogFile: params.LogFile,
	})
	if err != nil {
		// Binary missing, permission denied: failed with message, no retry.
		msg := fmt.Sprintf("spawn engine: %v", err)
		r.fail(ctx, params.ScanID, msg)
		return errors.New(msg)
	}

	log.Info().Str("component", "scanexec").Str("scan_id", params.ScanID).
		Str("domain", params.Domain).Str("mode", params.Mode.String()).
		Int("pid", handle.PID).Int("pgid", handle.PGID).
		Msg("engine started")

	// Persist the handle immediately so a stop request can reach the
	// process group.
	r.progress(ctx, params.ScanID, storage.ScanUpdates{
		Process:     ptrTo(&handle),
		ProgressPct: ptrTo(10),
	}, "engine")

	// Blocks until the engine exits; exit code does not matter, success
	// and failure are both "the tool finished".
	_ = r.proc.Wait(handle)

	// A cancellation may have raced ahead of natural exit. Re-check the
	// stored status first; a stopped record must never be overwritten.
	rec, err := scans.Get(ctx, params.ScanID)
	if err != nil {
		return fmt.Errorf("reload scan after exit: %w", err)
	}
	if rec.Status == storage.StatusStopped {
		log.Info().Str("component", "scanexec").Str("scan_id", params.ScanID).
			Msg("engine exited after stop request, leaving record stopped")
		return nil
	}

	// Let trailing disk writes flush before reading the tree.
	select {
	case <-time.After(r.opts.SettleDelay):
	case <-ctx.Done():
	}

	r.progress(ctx, params.ScanID, storage.ScanUpdates{
		ProgressPct: ptrTo(80),
	}, "extract")

	results, err := r.extractor.Extract(params.OutputDir, params.Domain)
	if err != nil {
		msg := fmt.Sprintf("extract results: %v", err)
		r.fail(ctx, params.ScanID, msg)
		return errors.New(msg)
	}

	r.progress(ctx, params.ScanID, storage.ScanUpdates{
		ProgressPct: ptrTo(95),
	}, "score")

	findings := scoring.NormalizeFindings(results.Vulnerabilities)
	score := scoring.Score(findings)
	grade := scoring.Grade(score)

	// Final atomic write: results, findings, score, and grade become
	// visible together, exactly once, on the transition to completed.
	now := time.Now().UTC()
	var noProc *storage.ProcessHandle
	err = scans.UpdateStatusIf(ctx, params.ScanID, storage.StatusRunning, storage.StatusCompleted, storage.ScanUpdates{
		Results:       ptrTo(results),
		Findings:      &findings,
		Score:         ptrTo(&score),
		Grade:         ptrTo(grade),
		Process:       &noProc,
		ProgressPct:   ptrTo(100),
		CurrentModule: ptrTo(""),
		CompletedAt:   ptrTo(&now),
	})
	if err != nil {
		var conflict *storage.ConflictError
		if errors.As(err, &conflict) {
			// Stop won the race during extraction; its terminal state stands.
			return nil
		}
		log.Error().Str("component", "scanexec").Str("scan_id", params.ScanID).Err(err).
			Msg("failed to persist completed scan")
		return err
	}

	log.Info().Str("component", "scanexec").Str("scan_id", params.ScanID).
		Int("score", score).Str("grade", grade).
		Int("findings", len(findings)).
		Msg("scan completed")
	return nil
}

// Stop requests termination of a running scan. It signals the whole
// process group, marks the record stopped immediately, and escalates to
// a forceful kill in the background after the grace window. Returns
// false without touching the record if the scan is not running.
func (r *Runner) Stop(ctx context.Context, scanID string) (bool, error) {
	scans := r.backend.Scans()

	rec, err := scans.Get(ctx, scanID)
	if err != nil {
		return false, err
	}
	if rec.Status != storage.StatusRunning || rec.Process == nil {
		return false, nil
	}

	pgid := rec.Process.PGID
	if err := r.proc.Signal(pgid); err != nil {
		log.Warn().Str("component", "scanexec").Str("scan_id", scanID).
			Int("pgid", pgid).Err(err).
			Msg("graceful signal failed, process group may already be gone")
	}

	// Fire-and-signal: the record is stopped as soon as the signal is
	// issued; OS-level process death is not awaited.
	now := time.Now().UTC()
	var noProc *storage.ProcessHandle
	err = scans.UpdateStatusIf(ctx, scanID, storage.StatusRunning, storage.StatusStopped, storage.ScanUpdates{
		Process:       &noProc,
		CurrentModule: ptrTo(""),
		CompletedAt:   ptrTo(&now),
	})
	if err != nil {
		var conflict *storage.ConflictError
		if errors.As(err, &conflict) {
			// Natural completion beat the stop; nothing was running anymore.
			return false, nil
		}
		return false, err
	}

	go r.escalate(scanID, pgid)

	log.Info().Str("component", "scanexec").Str("scan_id", scanID).
		Int("pgid", pgid).Msg("scan stopped by request")
	return true, nil
}

// escalate force-kills the process group if it outlives the grace window.
func (r *Runner) escalate(scanID string, pgid int) {
	time.Sleep(r.opts.StopGrace)
	if !r.proc.Alive(pgid) {
		return
	}
	if err := r.proc.ForceKill(pgid); err != nil {
		log.Warn().Str("component", "scanexec").Str("scan_id", scanID).
			Int("pgid", pgid).Err(err).
			Msg("force kill failed")
		return
	}
	log.Warn().Str("component", "scanexec").Str("scan_id", scanID).
		Int("pgid", pgid).Msg("process group survived grace window, force killed")
}

// fail moves a running scan to failed with the given message. A raced
// stop wins: the conflict is swallowed and the stopped state stands.
func (r *Runner) fail(ctx context.Context, scanID, msg string) {
	now := time.Now().UTC()
	var noProc *storage.ProcessHandle
	err := r.backend.Scans().UpdateStatusIf(ctx, scanID, storage.StatusRunning, storage.StatusFailed, storage.ScanUpdates{
		ErrorMessage:  &msg,
		Process:       &noProc,
		CurrentModule: ptrTo(""),
		CompletedAt:   ptrTo(&now),
	})
	if err != nil {
		var conflict *storage.ConflictError
		if errors.As(err, &conflict) {
			return
		}
		log.Error().Str("component", "scanexec").Str("scan_id", scanID).Err(err).
			Msg("failed to persist failed scan")
	}
}

// progress applies a best-effort field-scoped update while the scan is
// still running; a raced terminal transition silently discards it.
func (r *Runner) progress(ctx context.Context, scanID string, updates storage.ScanUpdates, module string) {
	updates.CurrentModule = &module
	err := r.backend.Scans().UpdateStatusIf(ctx, scanID, storage.StatusRunning, storage.StatusRunning, updates)
	if err != nil {
		var conflict *storage.ConflictError
		if errors.As(err, &conflict) {
			return
		}
		log.Warn().Str("component", "scanexec").Str("scan_id", scanID).Err(err).
			Msg("failed to persist scan progress")
	}
}

func ptrTo[T any](v T) *T {
	return &v
}
