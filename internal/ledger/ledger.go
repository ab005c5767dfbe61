// Package ledger contains an interface of the on-chain reward registry.
package ledger

import (
	"context"
	"errors"
	"math/big"
)

//go:generate mockgen -destination=./mock/ledger.go -package=mock -source=ledger.go

// ErrNotConfigured is returned by CanClaim when the campaign does not exist in the registry.
var ErrNotConfigured = errors.New("campaign is not configured")

// ErrInvalidAddress ...
var ErrInvalidAddress = errors.New("invalid address")

// Ledger provides access to reward contracts.
type Ledger interface {
	// Checksum returns EIP-55 form of address.
	Checksum(address string) (string, error)
	CanClaim(ctx context.Context, campaignID, address string) (bool, error)
	DispatchReward(ctx context.Context, campaignID, recipient string) (string, error)
	AwardXP(ctx context.Context, campaignID, recipient string, amount *big.Int) (string, error)
	GetBalance(ctx context.Context, campaignID, address string) (int64, error)
	Ping(ctx context.Context) error
}
