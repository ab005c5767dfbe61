// Package service contains interfaces of the pipeline stages.
package service

import (
	"context"

	"github.com/Decentr-net/plutus/internal/entities"
)

//go:generate mockgen -destination=./mock/service.go -package=mock -source=service.go

// TrendDetector finds trending posts. It never fails: upstream problems end up in NoTrendsFound status.
type TrendDetector interface {
	Detect(ctx context.Context, p entities.Payload) *entities.TrendContext
}

// EligibilityRanker resolves, scores and gates reward candidates.
type EligibilityRanker interface {
	Rank(ctx context.Context, tc *entities.TrendContext) *entities.EligibilityResult
}

// RewardDispatcher rewards the best eligible candidate. Failures are reported in the result.
type RewardDispatcher interface {
	Dispatch(ctx context.Context, r *entities.EligibilityResult) *entities.Dispatch
}

// Pipeline runs detect, rank and dispatch stages.
type Pipeline interface {
	// Run returns an error only if the payload is invalid.
	Run(ctx context.Context, p entities.Payload) (*entities.RunResult, error)
}
