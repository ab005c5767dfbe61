// Package scheduler contains interface of periodic pipeline trigger.
package scheduler

import (
	"context"

	"github.com/Decentr-net/plutus/internal/health"
)

// Scheduler runs pipeline periodically.
type Scheduler interface {
	health.Pinger

	// Run blocks until ctx is done and in-flight run is finished.
	Run(ctx context.Context) error
}
