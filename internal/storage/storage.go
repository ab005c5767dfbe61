// Package storage contains interfaces of the stores which keep pipeline state between runs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Decentr-net/plutus/internal/entities"
)

//go:generate mockgen -destination=./mock/storage.go -package=mock -source=storage.go

// SchemaVersion is a version of persisted records layout.
const SchemaVersion = 1

// ErrNoEnergy is returned by Consume when nothing is left to consume.
var ErrNoEnergy = errors.New("no energy left")

// LeaderboardStore keeps top-N rewarded participants by score.
type LeaderboardStore interface {
	Record(ctx context.Context, e entities.LeaderboardEntry) error
	// Top returns n best entries in descending order by score. It returns no entries if n is not positive.
	Top(ctx context.Context, n int) ([]entities.LeaderboardEntry, error)
}

// CooldownStore keeps last successful claim time per address.
type CooldownStore interface {
	// Check returns time left until the address can claim again. Zero means claimable.
	Check(ctx context.Context, address string) (time.Duration, error)
	RecordClaim(ctx context.Context, address string) error
}

// EnergyStore keeps per-address recharging allowance.
type EnergyStore interface {
	Status(ctx context.Context, address string) (EnergyStatus, error)
	// Consume takes one unit of energy or returns ErrNoEnergy without any state change.
	Consume(ctx context.Context, address string) (EnergyStatus, error)
	Refill(ctx context.Context, address string, amount int) (EnergyStatus, error)
}

// Pinger ...
type Pinger interface {
	Ping(ctx context.Context) error
}

// Snapshot is the whole state of the stores.
type Snapshot struct {
	Leaderboard []entities.LeaderboardEntry
	// Cooldown is last claim unix time by address.
	Cooldown map[string]int64
	Energy   map[string]EnergyRecord
}
