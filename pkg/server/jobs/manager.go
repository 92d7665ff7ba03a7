// pkg/server/jobs/manager.go
package jobs

import (
	"context"
)

// Manager defines the interface for background job processing.
// The default implementation is the polling Dispatcher; a distributed
// queue could satisfy the same contract for multi-instance deployments.
type Manager interface {
	// Start begins processing jobs in the background.
	// It is non-blocking and returns immediately after starting the loop.
	Start(ctx context.Context) error

	// Stop stops the dispatch loop. In-flight scans keep running to
	// completion; only promotion of new work halts.
	Stop(ctx context.Context) error
}
