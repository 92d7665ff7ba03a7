// Package storage provides the persistence layer for Recontor scan records.
//
// The package defines the Backend interface that abstracts storage
// operations. The default implementation is LocalBackend: one directory
// per scan under a workspace root, with a flock-guarded metadata.json
// holding the ScanRecord.
//
// Scan records are the only coordination channel between the request
// layer, the queue dispatcher, and the per-scan orchestrators; no
// in-process state is shared between them. Correctness of dispatch
// therefore rests on UpdateStatusIf, the atomic per-record
// compare-and-set on status.
package storage

import (
	"context"
)

// Backend is the main storage abstraction interface.
//
// Thread-safety: all methods must be safe for concurrent use.
type Backend interface {
	// Initialize prepares the backend for use (creates the workspace
	// directory layout for the local backend).
	Initialize(ctx context.Context) error

	// Close releases resources held by the backend.
	Close() error

	// Scans returns the scan record store.
	Scans() ScanStore

	// GarbageCollect removes scans that violate configured retention
	// policies. Individual deletion failures are collected in the
	// result, not returned as the error.
	GarbageCollect(ctx context.Context, opts GCOptions) (*GCResult, error)
}

// ScanStore manages scan records.
//
// Thread-safety: all methods must be safe for concurrent use.
type ScanStore interface {
	// List returns scans matching the filter. Ordering follows
	// ScanFilter.OldestFirst; ties are broken by record ID so the
	// order is stable across reads.
	List(ctx context.Context, filter ScanFilter) ([]*ScanRecord, error)

	// Get retrieves a scan record.
	// Returns NotFoundError if the scan does not exist.
	Get(ctx context.Context, scanID string) (*ScanRecord, error)

	// Create persists a new scan record.
	// The record must have at minimum ID, Domain, Mode, Status.
	// Returns AlreadyExistsError if a scan with the same ID exists.
	Create(ctx context.Context, rec *ScanRecord) error

	// Update applies a partial update to an existing scan.
	// Only non-nil fields in updates are applied.
	// Returns NotFoundError if the scan does not exist.
	Update(ctx context.Context, scanID string, updates ScanUpdates) error

	// UpdateStatusIf atomically transitions the scan's status from
	// expected to next, applying extra alongside, all under the record
	// lock. Returns ConflictError without writing anything if the
	// stored status is not the expected value.
	//
	// This is the primitive the dispatcher uses to claim a pending
	// scan and the orchestrator uses to finalize without clobbering a
	// raced stop.
	UpdateStatusIf(ctx context.Context, scanID string, expected, next ScanStatus, extra ScanUpdates) error

	// Delete removes a scan record and its entire output directory.
	// Returns NotFoundError if the scan does not exist.
	Delete(ctx context.Context, scanID string) error

	// CountByStatus returns the number of scans with the given status.
	CountByStatus(ctx context.Context, status ScanStatus) (int, error)

	// ResetStuckRunning transitions every record still marked running
	// to failed with the given message, clearing its process handle.
	// Called once at startup: a record that claims to be running after
	// a restart refers to a process this instance never spawned.
	// Returns the IDs of the records that were reset.
	ResetStuckRunning(ctx context.Context, message string) ([]string, error)
}
