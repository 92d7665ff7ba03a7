package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"
)

// GCOptions defines options for garbage collection.
type GCOptions struct {
	// DryRun reports which scans would be deleted without deleting them.
	DryRun bool

	// Retention overrides the backend's configured retention policy.
	// If nil, the backend default is used.
	Retention *RetentionConfig
}

// GCResult contains the results of a garbage collection operation.
type GCResult struct {
	// ScansDeleted is the number of scans deleted.
	ScansDeleted int

	// DeletedScanIDs is the list of scan IDs that were deleted.
	DeletedScanIDs []string

	// Errors contains any errors encountered during deletion.
	// GC continues even if individual deletions fail.
	Errors []error
}

// GarbageCollect deletes scans that violate the configured retention
// policies: scans older than MaxAgeDays, then the oldest scans in excess
// of MaxScans. Running scans are never collected.
func (b *LocalBackend) GarbageCollect(ctx context.Context, opts GCOptions) (*GCResult, error) {
	retention := b.cfg.Retention
	if opts.Retention != nil {
		retention = *opts.Retention
	}

	if !retention.IsEnabled() {
		return &GCResult{}, nil
	}

	result := &GCResult{
		DeletedScanIDs: make([]string, 0),
		Errors:         make([]error, 0),
	}

	scans, err := b.Scans().List(ctx, ScanFilter{})
	if err != nil {
		return result, fmt.Errorf("list scans: %w", err)
	}
	if len(scans) == 0 {
		return result, nil
	}

	// Oldest first
	sort.Slice(scans, func(i, j int) bool {
		return scans[i].CreatedAt.Before(scans[j].CreatedAt)
	})

	var ageCutoff time.Time
	if retention.MaxAgeDays > 0 {
		ageCutoff = time.Now().AddDate(0, 0, -retention.MaxAgeDays)
	}

	toDelete := make([]string, 0)

	// Phase 1: age-based retention
	if retention.MaxAgeDays > 0 {
		for _, scan := range scans {
			if scan.Status == StatusRunning {
				continue
			}
			if scan.CreatedAt.Before(ageCutoff) {
				toDelete = append(toDelete, scan.ID)
			}
		}
	}

	// Phase 2: count-based retention over the remainder
	if retention.MaxScans > 0 {
		remaining := make([]*ScanRecord, 0)
		for _, scan := range scans {
			if scan.Status == StatusRunning {
				continue
			}
			if !slices.Contains(toDelete, scan.ID) {
				remaining = append(remaining, scan)
			}
		}
		if len(remaining) > retention.MaxScans {
			excessCount := len(remaining) - retention.MaxScans
			for i := range excessCount {
				toDelete = append(toDelete, remaining[i].ID)
			}
		}
	}

	for _, scanID := range toDelete {
		if opts.DryRun {
			result.DeletedScanIDs = append(result.DeletedScanIDs, scanID)
			result.ScansDeleted++
			continue
		}
		if err := b.Scans().Delete(ctx, scanID); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("delete scan %s: %w", scanID, err))
			continue
		}
		result.DeletedScanIDs = append(result.DeletedScanIDs, scanID)
		result.ScansDeleted++
	}

	return result, nil
}
