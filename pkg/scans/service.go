// Package scans exposes the scan lifecycle operations consumed by the
// request layer: start, stop, restart, status, results, list, delete.
//
// The service validates inputs and manipulates scan records; the actual
// engine execution belongs to scanexec and promotion to the dispatcher.
package scans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/recontor/recontor/pkg/netutil"
	"github.com/recontor/recontor/pkg/scanexec"
	"github.com/recontor/recontor/pkg/storage"
)

// ErrResultsNotReady is returned by Results for scans that have not
// reached the completed state.
var ErrResultsNotReady = errors.New("scan has no results: not completed")

// Service implements the scan lifecycle operations.
type Service struct {
	backend storage.Backend
	runner  *scanexec.Runner
}

// NewService creates the operations service.
func NewService(backend storage.Backend, runner *scanexec.Runner) *Service {
	return &Service{backend: backend, runner: runner}
}

// Start validates the request and creates a pending scan record. The
// dispatcher picks it up on its next tick; nothing runs synchronously.
// Validation failures surface before any record exists.
func (s *Service) Start(ctx context.Context, rawDomain string, mode storage.ScanMode) (*storage.ScanRecord, error) {
	domain := netutil.NormalizeDomain(rawDomain)
	if !netutil.ValidTarget(domain) {
		return nil, storage.NewInvalidInputError("domain", fmt.Sprintf("%q is not a valid domain name or IPv4 address", rawDomain))
	}
	if !mode.IsValid() {
		return nil, storage.NewInvalidInputError("mode", fmt.Sprintf("unknown scan mode %q", mode))
	}

	now := time.Now().UTC()
	rec := &storage.ScanRecord{
		ID:        uuid.New().String(),
		Domain:    domain,
		Mode:      mode,
		Status:    storage.StatusPending,
		CreatedAt: now,
		QueuedAt:  &now,
	}

	// Loopback and private targets are recorded as failed immediately;
	// they never reach the queue or spawn a process.
	if netutil.BlockedTarget(domain) {
		rec.Status = storage.StatusFailed
		rec.ErrorMessage = fmt.Sprintf("target %q is loopback or private address space", domain)
		rec.CompletedAt = &now
	}

	if err := s.backend.Scans().Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create scan record: %w", err)
	}

	if rec.Status == storage.StatusFailed {
		log.Warn().Str("component", "scans").Str("scan_id", rec.ID).
			Str("domain", domain).Msg("blocked target, scan recorded as failed")
		return rec, nil
	}

	log.Info().Str("component", "scans").Str("scan_id", rec.ID).
		Str("domain", domain).Str("mode", mode.String()).
		Msg("scan queued")
	return rec, nil
}

// Stop requests termination of a running scan. Returns false for scans
// that are not running; the record is left unchanged in that case.
func (s *Service) Stop(ctx context.Context, scanID string) (bool, error) {
	return s.runner.Stop(ctx, scanID)
}

// Restart returns a terminal scan to the pending queue. All result
// fields are cleared; the record re-enters the FIFO at its new queue
// time. Restarting a non-terminal scan is an error.
func (s *Service) Restart(ctx context.Context, scanID string) (*storage.ScanRecord, error) {
	rec, err := s.backend.Scans().Get(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if !rec.Status.IsTerminal() {
		return nil, storage.NewInvalidInputError("status", fmt.Sprintf("scan is %s; only a finished scan can be restarted", rec.Status))
	}

	now := time.Now().UTC()
	var (
		noResults  *storage.ScanResults
		noFindings []storage.Finding
		noScore    *int
		noProc     *storage.ProcessHandle
		noTime     *time.Time
	)
	err = s.backend.Scans().UpdateStatusIf(ctx, scanID, rec.Status, storage.StatusPending, storage.ScanUpdates{
		Results:       &noResults,
		Findings:      &noFindings,
		Score:         &noScore,
		Grade:         ptrTo(""),
		Process:       &noProc,
		ErrorMessage:  ptrTo(""),
		ProgressPct:   ptrTo(0),
		CurrentModule: ptrTo(""),
		QueuedAt:      ptrTo(&now),
		StartedAt:     &noTime,
		CompletedAt:   &noTime,
	})
	if err != nil {
		return nil, fmt.Errorf("restart scan: %w", err)
	}

	log.Info().Str("component", "scans").Str("scan_id", scanID).Msg("scan requeued")
	return s.backend.Scans().Get(ctx, scanID)
}

// Get returns the full scan record, including in-progress fields.
func (s *Service) Get(ctx context.Context, scanID string) (*storage.ScanRecord, error) {
	return s.backend.Scans().Get(ctx, scanID)
}

// Results returns the record of a completed scan. Any other status is
// rejected with ErrResultsNotReady.
func (s *Service) Results(ctx context.Context, scanID string) (*storage.ScanRecord, error) {
	rec, err := s.backend.Scans().Get(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if rec.Status != storage.StatusCompleted {
		return nil, fmt.Errorf("scan %s is %s: %w", scanID, rec.Status, ErrResultsNotReady)
	}
	return rec, nil
}

// List returns scans matching the filter, newest first by default.
func (s *Service) List(ctx context.Context, filter storage.ScanFilter) ([]*storage.ScanRecord, error) {
	return s.backend.Scans().List(ctx, filter)
}

// Delete removes a scan record and its output tree. A running scan must
// be stopped first; deleting it would orphan the engine process.
func (s *Service) Delete(ctx context.Context, scanID string) error {
	rec, err := s.backend.Scans().Get(ctx, scanID)
	if err != nil {
		return err
	}
	if rec.Status == storage.StatusRunning {
		return storage.NewInvalidInputError("status", "scan is running; stop it before deleting")
	}
	return s.backend.Scans().Delete(ctx, scanID)
}

func ptrTo[T any](v T) *T {
	return &v
}
