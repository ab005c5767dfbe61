package storage

import (
	"context"
)

// Backend is a set of stores sharing one database.
type Backend interface {
	LeaderboardStore
	CooldownStore
	EnergyStore
	Pinger

	// Import copies snapshot into the backend.
	Import(ctx context.Context, s Snapshot) error
}
