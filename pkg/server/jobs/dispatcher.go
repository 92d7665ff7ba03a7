package jobs

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/recontor/recontor/pkg/scanexec"
	"github.com/recontor/recontor/pkg/storage"
)

// DispatcherConfig configures the queue dispatcher.
type DispatcherConfig struct {
	// Concurrency is the ceiling on simultaneously running scans.
	Concurrency int

	// PollInterval is the queue poll tick.
	PollInterval time.Duration

	// ErrorBackoff is the longer sleep after a loop-level error.
	ErrorBackoff time.Duration

	// OutputRoot is the base directory under which per-scan output
	// directories and engine logs are allocated at dispatch time.
	OutputRoot string
}

const (
	defaultConcurrency  = 2
	defaultPollInterval = 5 * time.Second
	defaultErrorBackoff = 10 * time.Second
)

// Dispatcher promotes queued scans to running without exceeding the
// concurrency ceiling, then hands each one to the Runner asynchronously.
//
// Correctness does not depend on any in-memory counter: the atomic
// pending-to-running compare-and-set on each record is what prevents
// double dispatch. Race windows narrower than one poll interval can
// briefly over-admit.
type Dispatcher struct {
	backend storage.Backend
	runner  *scanexec.Runner
	cfg     DispatcherConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates a dispatcher over the given store and runner.
func NewDispatcher(backend storage.Backend, runner *scanexec.Runner, cfg DispatcherConfig) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = defaultErrorBackoff
	}
	return &Dispatcher{
		backend: backend,
		runner:  runner,
		cfg:     cfg,
	}
}

// Start launches the dispatch loop in the background.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		return fmt.Errorf("dispatcher already started")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go d.loop(loopCtx)

	log.Info().Str("component", "dispatcher").
		Int("concurrency", d.cfg.Concurrency).
		Dur("poll_interval", d.cfg.PollInterval).
		Msg("dispatcher started")
	return nil
}

// Stop halts the dispatch loop. In-flight scans are unaffected.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loop runs until the context is canceled. It never exits on error:
// loop-level failures are logged and retried after the error backoff.
func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.done)

	for {
		sleep := d.cfg.PollInterval
		if err := d.tick(ctx); err != nil {
			log.Error().Str("component", "dispatcher").Err(err).
				Msg("dispatch tick failed, backing off")
			sleep = d.cfg.ErrorBackoff
		}

		select {
		case <-ctx.Done():
			log.Info().Str("component", "dispatcher").Msg("dispatcher stopped")
			return
		case <-time.After(sleep):
		}
	}
}

// tick performs one promotion pass.
func (d *Dispatcher) tick(ctx context.Context) error {
	scans := d.backend.Scans()

	running, err := scans.CountByStatus(ctx, storage.StatusRunning)
	if err != nil {
		return fmt.Errorf("count running scans: %w", err)
	}
	capacity := d.cfg.Concurrency - running
	if capacity <= 0 {
		return nil
	}

	// Oldest pending first: promotion is strictly FIFO by creation time.
	pending, err := scans.List(ctx, storage.ScanFilter{
		Status:      storage.StatusPending,
		Limit:       capacity,
		OldestFirst: true,
	})
	if err != nil {
		return fmt.Errorf("list pending scans: %w", err)
	}

	for _, rec := range pending {
		d.dispatch(ctx, rec)
	}
	return nil
}

// dispatch claims one pending record and hands it to the runner without
// waiting for completion.
func (d *Dispatcher) dispatch(ctx context.Context, rec *storage.ScanRecord) {
	outputDir := filepath.Join(d.cfg.OutputRoot, rec.ID, "output")
	logFile := filepath.Join(d.cfg.OutputRoot, rec.ID, "engine.log")

	now := time.Now().UTC()
	err := d.backend.Scans().UpdateStatusIf(ctx, rec.ID, storage.StatusPending, storage.StatusRunning, storage.ScanUpdates{
		StartedAt:  ptrTo(&now),
		OutputPath: &outputDir,
		LogFile:    &logFile,
	})
	if err != nil {
		var conflict *storage.ConflictError
		if errors.As(err, &conflict) {
			// Another tick (or a delete) got here first; skip silently.
			return
		}
		// The promotion write failed but the record may still be pending;
		// the next tick retries it.
		log.Warn().Str("component", "dispatcher").Str("scan_id", rec.ID).Err(err).
			Msg("failed to promote pending scan")
		return
	}

	log.Info().Str("component", "dispatcher").Str("scan_id", rec.ID).
		Str("domain", rec.Domain).Str("mode", rec.Mode.String()).
		Msg("scan promoted to running")

	params := scanexec.Params{
		ScanID:    rec.ID,
		Domain:    rec.Domain,
		Mode:      rec.Mode,
		OutputDir: outputDir,
		LogFile:   logFile,
	}

	// Asynchronous handoff: the dispatcher never waits for a scan.
	go func() {
		if err := d.runner.Run(context.WithoutCancel(ctx), params); err != nil {
			log.Warn().Str("component", "dispatcher").Str("scan_id", rec.ID).Err(err).
				Msg("scan finished with error")
		}
	}()
}

func ptrTo[T any](v T) *T {
	return &v
}
