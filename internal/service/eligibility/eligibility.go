// Package eligibility is implementation of the eligibility ranking stage.
package eligibility

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/feed"
	"github.com/Decentr-net/plutus/internal/ledger"
	"github.com/Decentr-net/plutus/internal/metrics"
	"github.com/Decentr-net/plutus/internal/service"
	"github.com/Decentr-net/plutus/internal/storage"
)

var log = logrus.WithField("package", "eligibility")

const (
	followerSaturation   = 1000.0
	maxFollowerPoints    = 20.0
	badgePoints          = 15.0
	engagementSaturation = 10.0
	maxEngagementPoints  = 25.0
)

// Weights of score components.
type Weights struct {
	Trend      float64
	Follower   float64
	PowerBadge float64
	Engagement float64
}

// DefaultWeights ...
func DefaultWeights() Weights {
	return Weights{
		Trend:      0.40,
		Follower:   0.20,
		PowerBadge: 0.15,
		Engagement: 0.25,
	}
}

// Config ...
type Config struct {
	CampaignID         string
	FallbackCampaignID string
	MaxRecipients      int
	EngagerLimit       int
	Weights            Weights
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{
		CampaignID:         "trend-rewards",
		FallbackCampaignID: "demo-campaign",
		MaxRecipients:      5,
		EngagerLimit:       100,
		Weights:            DefaultWeights(),
	}
}

// Validate checks that config can produce recipients.
func (c Config) Validate() error {
	if strings.TrimSpace(c.CampaignID) == "" {
		return errors.New("campaign id is required")
	}

	if c.MaxRecipients < 1 {
		return fmt.Errorf("max recipients should be positive, got %d", c.MaxRecipients)
	}

	if c.EngagerLimit < 1 {
		return fmt.Errorf("engager limit should be positive, got %d", c.EngagerLimit)
	}

	w := c.Weights
	if w.Trend < 0 || w.Follower < 0 || w.PowerBadge < 0 || w.Engagement < 0 {
		return errors.New("weights should not be negative")
	}

	return nil
}

// Option ...
type Option func(r *ranker)

// WithCooldown makes candidates in cooldown ineligible.
func WithCooldown(s storage.CooldownStore) Option {
	return func(r *ranker) {
		r.cooldown = s
	}
}

type ranker struct {
	f        feed.Feed
	l        ledger.Ledger
	cooldown storage.CooldownStore
	cfg      Config
}

// New returns new instance of service.EligibilityRanker.
func New(f feed.Feed, l ledger.Ledger, cfg Config, opts ...Option) service.EligibilityRanker {
	r := &ranker{
		f:   f,
		l:   l,
		cfg: cfg,
	}

	for _, o := range opts {
		o(r)
	}

	return r
}

func (r *ranker) Rank(ctx context.Context, tc *entities.TrendContext) *entities.EligibilityResult {
	res := &entities.EligibilityResult{
		CampaignID: r.cfg.CampaignID,
		Recipients: []string{},
		Rankings:   []entities.Ranking{},
		Metadata: entities.EligibilityMetadata{
			ChannelID:  tc.ChannelID,
			TrendScore: tc.TrendScore,
			Rationale:  tc.Rationale,
			Tags:       tc.Tags,
			PostHash:   tc.PostHash,
			RewardType: tc.RewardType,
		},
	}

	l := log.WithFields(logrus.Fields{
		"campaign":  r.cfg.CampaignID,
		"post_hash": tc.PostHash,
		"target":    tc.TargetAddress,
	})

	var candidates []entities.Participant

	if tc.TargetAddress != "" {
		p, err := r.f.FetchIdentityByAddress(ctx, tc.TargetAddress)
		switch {
		case errors.Is(err, feed.ErrNotFound):
			l.Info("target is not in social graph")
			res.Reason = entities.ReasonNotInSocialGraph
			return res
		case err != nil:
			l.WithError(err).Warn("failed to resolve target identity")
			if tc.PostHash == "" {
				res.Reason = entities.ReasonIdentityLookupUnavailable
				return res
			}
		default:
			p.Address = tc.TargetAddress
			if p.Engagement == 0 && tc.PostHash != "" {
				p.Engagement = r.engagementOf(ctx, tc.PostHash, p.FID, l)
			}
			candidates = []entities.Participant{*p}
		}
	}

	if candidates == nil && tc.PostHash != "" {
		engagers, err := r.f.FetchEngagers(ctx, tc.PostHash, r.cfg.EngagerLimit)
		if err != nil {
			l.WithError(err).Warn("failed to fetch engagers")
		}
		candidates = engagers
	}

	if len(candidates) == 0 {
		res.Reason = entities.ReasonNoCandidates
		return res
	}

	for _, v := range r.rank(candidates, tc.TrendScore) {
		if len(res.Recipients) >= r.cfg.MaxRecipients {
			break
		}

		address, ok := r.admit(ctx, v.Participant, l)
		if !ok {
			continue
		}

		claimable, policy := r.gate(ctx, address, l)
		if !claimable {
			continue
		}

		v.GatePolicy = policy
		res.Recipients = append(res.Recipients, address)
		res.Rankings = append(res.Rankings, v)
	}

	res.Eligible = len(res.Recipients) > 0
	if !res.Eligible {
		res.Reason = entities.ReasonNoClaimableCandidates
	}

	l.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"recipients": len(res.Recipients),
	}).Info("candidates ranked")

	return res
}

// rank scores candidates, drops duplicated wallets and sorts them descending by score.
func (r *ranker) rank(candidates []entities.Participant, trendScore float64) []entities.Ranking {
	out := make([]entities.Ranking, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))

	for _, v := range candidates {
		key := strings.ToLower(v.Address)
		if key != "" {
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
		}

		out = append(out, entities.Ranking{
			Participant: v,
			Score:       ScoreUser(v, trendScore, r.cfg.Weights),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Total > out[j].Score.Total
	})

	return out
}

// admit returns checksummed address of a candidate who has a wallet and is not in cooldown.
func (r *ranker) admit(ctx context.Context, p entities.Participant, l *logrus.Entry) (string, bool) {
	if p.Address == "" {
		return "", false
	}

	address, err := r.l.Checksum(p.Address)
	if err != nil {
		l.WithError(err).WithField("address", p.Address).Debug("skip candidate with invalid address")
		return "", false
	}

	if r.cooldown == nil {
		return address, true
	}

	left, err := r.cooldown.Check(ctx, address)
	if err != nil {
		l.WithError(err).WithField("address", address).Warn("failed to check cooldown")
		return address, true
	}

	if left > 0 {
		l.WithField("address", address).WithField("left", left).Debug("skip candidate in cooldown")
		return "", false
	}

	return address, true
}

// gate asks the ledger whether address can claim.
// Unconfigured campaign is retried against the fallback one. Any other failure lets the candidate through.
func (r *ranker) gate(ctx context.Context, address string, l *logrus.Entry) (bool, entities.GatePolicy) {
	l = l.WithField("address", address)

	ok, err := r.l.CanClaim(ctx, r.cfg.CampaignID, address)
	if err == nil {
		return ok, entities.GateChecked
	}

	if errors.Is(err, ledger.ErrNotConfigured) && r.cfg.FallbackCampaignID != "" && r.cfg.FallbackCampaignID != r.cfg.CampaignID {
		l.WithError(err).Warn("campaign is not configured, trying fallback campaign")
		metrics.Fallback(metrics.FallbackCampaign)

		ok, err = r.l.CanClaim(ctx, r.cfg.FallbackCampaignID, address)
		if err == nil {
			return ok, entities.GateFallbackCampaign
		}
	}

	l.WithError(err).Warn("claim gate failed, letting candidate through")
	metrics.Fallback(metrics.FallbackGateOpen)

	return true, entities.GateFailOpen
}

func (r *ranker) engagementOf(ctx context.Context, postHash string, fid int64, l *logrus.Entry) float64 {
	engagers, err := r.f.FetchEngagers(ctx, postHash, r.cfg.EngagerLimit)
	if err != nil {
		l.WithError(err).Warn("failed to fetch target engagement")
		return 0
	}

	for _, v := range engagers {
		if v.FID == fid {
			return v.Engagement
		}
	}

	return 0
}

// ScoreUser returns [0, 100] eligibility score of a candidate.
func ScoreUser(p entities.Participant, trendScore float64, w Weights) entities.ScoreBreakdown {
	s := entities.ScoreBreakdown{
		Trend:      round2(clamp(trendScore, 0, 1) * 100 * w.Trend),
		Follower:   round2(math.Min(float64(p.FollowerCount)/(followerSaturation/maxFollowerPoints), maxFollowerPoints) * w.Follower * 5),
		Engagement: round2(clamp(p.Engagement*(maxEngagementPoints/engagementSaturation), 0, maxEngagementPoints) * w.Engagement),
	}

	if p.PowerBadge {
		s.PowerBadge = round2(badgePoints * w.PowerBadge)
	}

	s.Total = round2(clamp(s.Trend+s.Follower+s.PowerBadge+s.Engagement, 0, 100))

	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
