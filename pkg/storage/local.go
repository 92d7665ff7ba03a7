package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// LocalBackend implements Backend using file-based storage.
//
// Storage layout:
//
//	{workspace}/
//	  scans/
//	    {scan-id}/
//	      metadata.json
//	      output/        (external engine writes its tree here)
//	      engine.log
//	  logs/
//
// Thread-safety: metadata reads and writes are protected by per-record
// file locks, so multiple actors (request layer, dispatcher,
// orchestrator callbacks) can safely touch the same record.
type LocalBackend struct {
	cfg       *Config
	scanStore *LocalScanStore
	mu        sync.RWMutex
	closed    bool
}

// NewLocalBackend creates a new file-based backend.
func NewLocalBackend(ctx context.Context, cfg *Config) (*LocalBackend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("invalid config: nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	backend := &LocalBackend{
		cfg: cfg,
	}
	backend.scanStore = &LocalScanStore{
		root: filepath.Join(cfg.WorkspaceRoot, "scans"),
	}
	return backend, nil
}

// Initialize prepares the backend for use.
func (b *LocalBackend) Initialize(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	dirs := []string{
		filepath.Join(b.cfg.WorkspaceRoot, "scans"),
		filepath.Join(b.cfg.WorkspaceRoot, "logs"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Close releases resources held by the backend.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return nil
}

// Scans returns the scan record store.
func (b *LocalBackend) Scans() ScanStore {
	return b.scanStore
}

// LocalScanStore implements ScanStore using one directory per scan.
type LocalScanStore struct {
	root string // workspace/scans
}

// List returns scans matching the filter.
func (s *LocalScanStore) List(ctx context.Context, filter ScanFilter) ([]*ScanRecord, error) {
	if _, err := os.Stat(s.root); os.IsNotExist(err) {
		return []*ScanRecord{}, nil
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read scans directory: %w", err)
	}

	var scans []*ScanRecord
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rec, err := s.Get(ctx, entry.Name())
		if err != nil {
			// Skip scans with missing or invalid metadata
			continue
		}
		if !s.matchesFilter(rec, filter) {
			continue
		}
		scans = append(scans, rec)
	}

	sort.Slice(scans, func(i, j int) bool {
		a, b := scans[i], scans[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			// Stable tie-break so FIFO order survives equal timestamps
			if filter.OldestFirst {
				return a.ID < b.ID
			}
			return a.ID > b.ID
		}
		if filter.OldestFirst {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	if filter.Limit > 0 && filter.Limit < len(scans) {
		scans = scans[:filter.Limit]
	}
	if scans == nil {
		scans = []*ScanRecord{}
	}
	return scans, nil
}

func (s *LocalScanStore) matchesFilter(rec *ScanRecord, filter ScanFilter) bool {
	if filter.Status != "" && rec.Status != filter.Status {
		return false
	}
	if filter.Domain != "" && !strings.Contains(rec.Domain, filter.Domain) {
		return false
	}
	return true
}

// Get retrieves a scan record.
func (s *LocalScanStore) Get(ctx context.Context, scanID string) (*ScanRecord, error) {
	metadataPath := s.metadataPath(scanID)

	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return nil, NewNotFoundError("scan", scanID)
	}

	lock := flock.New(metadataPath + ".lock")
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("failed to acquire read lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	return s.readLocked(metadataPath)
}

// readLocked reads and parses metadata.json. The caller holds the lock.
func (s *LocalScanStore) readLocked(metadataPath string) (*ScanRecord, error) {
	data, err := os.ReadFile(metadataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	var rec ScanRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &rec, nil
}

// writeLocked marshals and writes metadata.json. The caller holds the lock.
func (s *LocalScanStore) writeLocked(metadataPath string, rec *ScanRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(metadataPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write metadata: %w", err)
	}
	return nil
}

// Create persists a new scan record.
func (s *LocalScanStore) Create(ctx context.Context, rec *ScanRecord) error {
	if rec.ID == "" {
		return NewInvalidInputError("ID", "scan ID is required")
	}
	if rec.Domain == "" {
		return NewInvalidInputError("Domain", "scan domain is required")
	}
	if !rec.Mode.IsValid() {
		return NewInvalidInputError("Mode", fmt.Sprintf("unknown scan mode %q", rec.Mode))
	}
	if !rec.Status.IsValid() {
		return NewInvalidInputError("Status", fmt.Sprintf("unknown scan status %q", rec.Status))
	}

	scanDir := s.ScanDir(rec.ID)
	metadataPath := s.metadataPath(rec.ID)

	if _, err := os.Stat(metadataPath); err == nil {
		return NewAlreadyExistsError("scan", rec.ID)
	}

	if err := os.MkdirAll(scanDir, 0o755); err != nil {
		return fmt.Errorf("failed to create scan directory: %w", err)
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	lock := flock.New(metadataPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	return s.writeLocked(metadataPath, rec)
}

// Update applies a partial update to an existing scan.
func (s *LocalScanStore) Update(ctx context.Context, scanID string, updates ScanUpdates) error {
	metadataPath := s.metadataPath(scanID)

	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return NewNotFoundError("scan", scanID)
	}

	lock := flock.New(metadataPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	rec, err := s.readLocked(metadataPath)
	if err != nil {
		return err
	}

	applyUpdates(rec, updates)
	return s.writeLocked(metadataPath, rec)
}

// UpdateStatusIf atomically transitions the scan's status from expected
// to next under the record lock.
func (s *LocalScanStore) UpdateStatusIf(ctx context.Context, scanID string, expected, next ScanStatus, extra ScanUpdates) error {
	metadataPath := s.metadataPath(scanID)

	if _, err := os.Stat(metadataPath); os.IsNotExist(err) {
		return NewNotFoundError("scan", scanID)
	}

	lock := flock.New(metadataPath + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire write lock: %w", err)
	}
	defer func() { _ = lock.Unlock() }()

	rec, err := s.readLocked(metadataPath)
	if err != nil {
		return err
	}

	if rec.Status != expected {
		return &ConflictError{ResourceID: scanID, Expected: expected, Actual: rec.Status}
	}

	rec.Status = next
	applyUpdates(rec, extra)
	return s.writeLocked(metadataPath, rec)
}

// Delete removes a scan record and its output tree.
func (s *LocalScanStore) Delete(ctx context.Context, scanID string) error {
	scanDir := s.ScanDir(scanID)

	if _, err := os.Stat(scanDir); os.IsNotExist(err) {
		return NewNotFoundError("scan", scanID)
	}

	if err := os.RemoveAll(scanDir); err != nil {
		return fmt.Errorf("failed to delete scan directory: %w", err)
	}

	// Remove lock file if it exists
	_ = os.Remove(s.metadataPath(scanID) + ".lock")

	return nil
}

// CountByStatus returns the number of scans with the given status.
func (s *LocalScanStore) CountByStatus(ctx context.Context, status ScanStatus) (int, error) {
	scans, err := s.List(ctx, ScanFilter{Status: status})
	if err != nil {
		return 0, err
	}
	return len(scans), nil
}

// ResetStuckRunning fails every record still marked running.
func (s *LocalScanStore) ResetStuckRunning(ctx context.Context, message string) ([]string, error) {
	running, err := s.List(ctx, ScanFilter{Status: StatusRunning})
	if err != nil {
		return nil, err
	}

	var reset []string
	for _, rec := range running {
		now := time.Now().UTC()
		var noProc *ProcessHandle
		err := s.UpdateStatusIf(ctx, rec.ID, StatusRunning, StatusFailed, ScanUpdates{
			ErrorMessage: &message,
			Process:      &noProc,
			CompletedAt:  ptrTo(&now),
		})
		if err != nil {
			// Raced with a concurrent writer or vanished; either way it
			// is no longer stuck in running.
			continue
		}
		reset = append(reset, rec.ID)
	}
	return reset, nil
}

// applyUpdates copies non-nil update fields onto the record.
func applyUpdates(rec *ScanRecord, updates ScanUpdates) {
	if updates.Status != nil {
		rec.Status = *updates.Status
	}
	if updates.ProgressPct != nil {
		rec.ProgressPct = *updates.ProgressPct
	}
	if updates.CurrentModule != nil {
		rec.CurrentModule = *updates.CurrentModule
	}
	if updates.Process != nil {
		rec.Process = *updates.Process
	}
	if updates.OutputPath != nil {
		rec.OutputPath = *updates.OutputPath
	}
	if updates.LogFile != nil {
		rec.LogFile = *updates.LogFile
	}
	if updates.Results != nil {
		rec.Results = *updates.Results
	}
	if updates.Findings != nil {
		rec.Findings = *updates.Findings
	}
	if updates.Score != nil {
		rec.Score = *updates.Score
	}
	if updates.Grade != nil {
		rec.Grade = *updates.Grade
	}
	if updates.ErrorMessage != nil {
		rec.ErrorMessage = *updates.ErrorMessage
	}
	if updates.QueuedAt != nil {
		rec.QueuedAt = *updates.QueuedAt
	}
	if updates.StartedAt != nil {
		rec.StartedAt = *updates.StartedAt
	}
	if updates.CompletedAt != nil {
		rec.CompletedAt = *updates.CompletedAt
	}
}

// ptrTo returns a pointer to v. Handy for the double-pointer fields in
// ScanUpdates.
func ptrTo[T any](v T) *T {
	return &v
}

// Path helpers

// ScanDir returns the directory holding everything for one scan. The
// dispatcher allocates the engine output tree and log file under it.
func (s *LocalScanStore) ScanDir(scanID string) string {
	return filepath.Join(s.root, scanID)
}

func (s *LocalScanStore) metadataPath(scanID string) string {
	return filepath.Join(s.ScanDir(scanID), "metadata.json")
}
