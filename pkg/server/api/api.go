package api

import (
	"sync/atomic"
	"time"

	"github.com/recontor/recontor/pkg/scans"
)

// Deps holds dependencies for API handlers.
// This pattern enables dependency injection and easier testing.
type Deps struct {
	// Scans provides the scan lifecycle operations.
	Scans *scans.Service

	// Config holds API-level configuration (limits, timeouts).
	Config Config

	// Ready flag for readiness check.
	Ready *atomic.Bool
}

// Config holds API-level tunables.
type Config struct {
	// MaxListLimit caps the number of scans one list request returns.
	MaxListLimit int

	// RequestTimeout bounds handler execution.
	RequestTimeout time.Duration
}

// DefaultConfig returns the default API configuration.
func DefaultConfig() Config {
	return Config{
		MaxListLimit:   100,
		RequestTimeout: 30 * time.Second,
	}
}
