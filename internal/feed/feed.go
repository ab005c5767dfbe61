// Package feed contains an interface of social feed reader.
package feed

import (
	"context"
	"errors"
	"time"

	"github.com/Decentr-net/plutus/internal/entities"
)

//go:generate mockgen -destination=./mock/feed.go -package=mock -source=feed.go

// GlobalChannel means "no channel filter".
const GlobalChannel = "global"

var (
	// ErrUnavailable is returned when feed can not be reached or answers with an error.
	ErrUnavailable = errors.New("feed unavailable")
	// ErrNotFound is returned when requested entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Feed reads posts and identities from a social network.
type Feed interface {
	FetchTrending(ctx context.Context, channel string, limit int, window time.Duration) ([]entities.Post, error)
	FetchRecent(ctx context.Context, channel string, limit int) ([]entities.Post, error)
	FetchEngagers(ctx context.Context, postHash string, limit int) ([]entities.Participant, error)
	FetchIdentityByAddress(ctx context.Context, address string) (*entities.Participant, error)
	FetchPostStats(ctx context.Context, postHash string) (*entities.Post, error)
}
