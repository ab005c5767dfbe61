package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/feed"
	feedmock "github.com/Decentr-net/plutus/internal/feed/mock"
	"github.com/Decentr-net/plutus/internal/ledger"
	ledgermock "github.com/Decentr-net/plutus/internal/ledger/mock"
	storagemock "github.com/Decentr-net/plutus/internal/storage/mock"
)

var ctx = context.Background()

const (
	addrA = "0x000000000000000000000000000000000000000a"
	addrB = "0x000000000000000000000000000000000000000b"
	addrC = "0x000000000000000000000000000000000000000c"
)

func TestScoreUser(t *testing.T) {
	tt := []struct {
		name  string
		p     entities.Participant
		trend float64
		w     Weights
		want  entities.ScoreBreakdown
	}{
		{
			name:  "reference",
			p:     entities.Participant{FollowerCount: 1000, PowerBadge: true, Engagement: 10},
			trend: 1,
			w:     DefaultWeights(),
			want:  entities.ScoreBreakdown{Trend: 40, Follower: 20, PowerBadge: 2.25, Engagement: 6.25, Total: 68.5},
		},
		{
			name:  "saturation",
			p:     entities.Participant{FollowerCount: 1_000_000, Engagement: 500},
			trend: 1,
			w:     DefaultWeights(),
			want:  entities.ScoreBreakdown{Trend: 40, Follower: 20, Engagement: 6.25, Total: 66.25},
		},
		{
			name: "zero",
			w:    DefaultWeights(),
			want: entities.ScoreBreakdown{},
		},
		{
			name:  "partial",
			p:     entities.Participant{FollowerCount: 250, Engagement: 3},
			trend: 0.53,
			w:     DefaultWeights(),
			want:  entities.ScoreBreakdown{Trend: 21.2, Follower: 5, Engagement: 1.88, Total: 28.08},
		},
		{
			name:  "out of range input",
			p:     entities.Participant{Engagement: -5},
			trend: 7,
			w:     DefaultWeights(),
			want:  entities.ScoreBreakdown{Trend: 40, Total: 40},
		},
		{
			name:  "total is capped",
			p:     entities.Participant{FollowerCount: 1000, PowerBadge: true, Engagement: 10},
			trend: 1,
			w:     Weights{Trend: 1, Follower: 1, PowerBadge: 1, Engagement: 1},
			want:  entities.ScoreBreakdown{Trend: 100, Follower: 100, PowerBadge: 15, Engagement: 25, Total: 100},
		},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			s := ScoreUser(tc.p, tc.trend, tc.w)
			assert.Equal(t, tc.want, s)
			assert.Equal(t, s, ScoreUser(tc.p, tc.trend, tc.w))
			assert.True(t, s.Total >= 0 && s.Total <= 100)
		})
	}
}

type mocks struct {
	feed     *feedmock.MockFeed
	ledger   *ledgermock.MockLedger
	cooldown *storagemock.MockCooldownStore
}

func newTestRanker(t *testing.T, cfg Config) (*ranker, mocks) {
	ctrl := gomock.NewController(t)

	m := mocks{
		feed:     feedmock.NewMockFeed(ctrl),
		ledger:   ledgermock.NewMockLedger(ctrl),
		cooldown: storagemock.NewMockCooldownStore(ctrl),
	}

	m.ledger.EXPECT().Checksum(gomock.Any()).DoAndReturn(func(a string) (string, error) {
		if !entities.IsValidAddress(a) {
			return "", ledger.ErrInvalidAddress
		}
		return a, nil
	}).AnyTimes()

	r := New(m.feed, m.ledger, cfg, WithCooldown(m.cooldown))

	return r.(*ranker), m
}

func TestRanker_Rank_Targeted(t *testing.T) {
	r, m := newTestRanker(t, DefaultConfig())

	m.feed.EXPECT().FetchIdentityByAddress(gomock.Any(), addrA).Return(&entities.Participant{
		FID:           1,
		Username:      "alice",
		FollowerCount: 1000,
		PowerBadge:    true,
		Engagement:    10,
	}, nil)
	m.cooldown.EXPECT().Check(gomock.Any(), addrA).Return(time.Duration(0), nil)
	m.ledger.EXPECT().CanClaim(gomock.Any(), "trend-rewards", addrA).Return(true, nil)

	res := r.Rank(ctx, &entities.TrendContext{
		ChannelID:     "base",
		TrendScore:    1,
		Rationale:     "why",
		Tags:          []string{"base"},
		TargetAddress: addrA,
		RewardType:    entities.RewardXP,
	})

	require.True(t, res.Eligible)
	require.Empty(t, res.Reason)
	require.Equal(t, "trend-rewards", res.CampaignID)
	require.Equal(t, []string{addrA}, res.Recipients)
	require.Len(t, res.Rankings, 1)
	assert.Equal(t, 68.5, res.Rankings[0].Score.Total)
	assert.Equal(t, entities.GateChecked, res.Rankings[0].GatePolicy)
	assert.Equal(t, addrA, res.Rankings[0].Participant.Address)
	assert.Equal(t, entities.EligibilityMetadata{
		ChannelID:  "base",
		TrendScore: 1,
		Rationale:  "why",
		Tags:       []string{"base"},
		RewardType: entities.RewardXP,
	}, res.Metadata)
}

func TestRanker_Rank_TargetedEngagementFromPost(t *testing.T) {
	r, m := newTestRanker(t, DefaultConfig())

	m.feed.EXPECT().FetchIdentityByAddress(gomock.Any(), addrA).Return(&entities.Participant{FID: 1, FollowerCount: 1000, PowerBadge: true}, nil)
	m.feed.EXPECT().FetchEngagers(gomock.Any(), "0xpost", 100).Return([]entities.Participant{
		{FID: 2, Engagement: 1},
		{FID: 1, Engagement: 10},
	}, nil)
	m.cooldown.EXPECT().Check(gomock.Any(), addrA).Return(time.Duration(0), nil)
	m.ledger.EXPECT().CanClaim(gomock.Any(), "trend-rewards", addrA).Return(true, nil)

	res := r.Rank(ctx, &entities.TrendContext{TrendScore: 1, PostHash: "0xpost", TargetAddress: addrA})

	require.Len(t, res.Rankings, 1)
	assert.Equal(t, 68.5, res.Rankings[0].Score.Total)
}

func TestRanker_Rank_TargetNotInSocialGraph(t *testing.T) {
	r, m := newTestRanker(t, DefaultConfig())

	m.feed.EXPECT().FetchIdentityByAddress(gomock.Any(), addrA).Return(nil, feed.ErrNotFound)

	// post reference does not turn the hard rule into cohort mode
	res := r.Rank(ctx, &entities.TrendContext{TargetAddress: addrA, PostHash: "0xpost"})

	require.False(t, res.Eligible)
	require.Equal(t, entities.ReasonNotInSocialGraph, res.Reason)
	require.Empty(t, res.Recipients)
	require.NotNil(t, res.Recipients)
}

func TestRanker_Rank_TargetLookupUnavailable(t *testing.T) {
	t.Run("no post", func(t *testing.T) {
		r, m := newTestRanker(t, DefaultConfig())

		m.feed.EXPECT().FetchIdentityByAddress(gomock.Any(), addrA).Return(nil, feed.ErrUnavailable)

		res := r.Rank(ctx, &entities.TrendContext{TargetAddress: addrA})

		require.False(t, res.Eligible)
		require.Equal(t, entities.ReasonIdentityLookupUnavailable, res.Reason)
		require.Empty(t, res.Recipients)
	})

	t.Run("falls back to cohort", func(t *testing.T) {
		r, m := newTestRanker(t, DefaultConfig())

		m.feed.EXPECT().FetchIdentityByAddress(gomock.Any(), addrA).Return(nil, feed.ErrUnavailable)
		m.feed.EXPECT().FetchEngagers(gomock.Any(), "0xpost", 100).Return([]entities.Participant{{FID: 2, Address: addrB}}, nil)
		m.cooldown.EXPECT().Check(gomock.Any(), addrB).Return(time.Duration(0), nil)
		m.ledger.EXPECT().CanClaim(gomock.Any(), "trend-rewards", addrB).Return(true, nil)

		res := r.Rank(ctx, &entities.TrendContext{TargetAddress: addrA, PostHash: "0xpost"})

		require.True(t, res.Eligible)
		require.Equal(t, []string{addrB}, res.Recipients)
	})
}

func TestRanker_Rank_Cohort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRecipients = 2

	r, m := newTestRanker(t, cfg)

	m.feed.EXPECT().FetchEngagers(gomock.Any(), "0xpost", 100).Return([]entities.Participant{
		{FID: 1, Address: addrA, FollowerCount: 10},
		{FID: 2, Address: addrB, FollowerCount: 1000},
		{FID: 3, Address: addrC, FollowerCount: 500},
		{FID: 4, Address: "", FollowerCount: 5000},
		{FID: 5, Address: "0xbad", FollowerCount: 5000, PowerBadge: true},
		{FID: 6, Address: addrB, FollowerCount: 0},
	}, nil)

	gomock.InOrder(
		m.cooldown.EXPECT().Check(gomock.Any(), addrB).Return(time.Duration(0), nil),
		m.ledger.EXPECT().CanClaim(gomock.Any(), "trend-rewards", addrB).Return(false, nil),
		m.cooldown.EXPECT().Check(gomock.Any(), addrC).Return(time.Duration(0), nil),
		m.ledger.EXPECT().CanClaim(gomock.Any(), "trend-rewards", addrC).Return(true, nil),
		m.cooldown.EXPECT().Check(gomock.Any(), addrA).Return(time.Duration(0), nil),
		m.ledger.EXPECT().CanClaim(gomock.Any(), "trend-rewards", addrA).Return(true, nil),
	)

	res := r.Rank(ctx, &entities.TrendContext{PostHash: "0xpost", TrendScore: 0.5})

	require.True(t, res.Eligible)
	require.Equal(t, []string{addrC, addrA}, res.Recipients)
	require.Len(t, res.Rankings, 2)
	assert.True(t, res.Rankings[0].Score.Total > res.Rankings[1].Score.Total)
}

func TestRanker_Rank_MaxRecipients(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRecipients = 1

	r, m := newTestRanker(t, cfg)

	m.feed.EXPECT().FetchEngagers(gomock.Any(), "0xpost", 100).Return([]entities.Participant{
		{FID: 1, Address: addrA, FollowerCount: 10},
		{FID: 2, Address: addrB, FollowerCount: 1000},
	}, nil)
	m.cooldown.EXPECT().Check(gomock.Any(), addrB).Return(time.Duration(0), nil)
	m.ledger.EXPECT().CanClaim(gomock.Any(), "trend-rewards", addrB).Return(true, nil)

	res := r.Rank(ctx, &entities.TrendContext{PostHash: "0xpost"})

	require.Equal(t, []string{addrB}, res.Recipients)
}

func TestRanker_Gate(t *testing.T) {
	tt := []struct {
		name    string
		expect  func(m mocks)
		allowed bool
		policy  entities.GatePolicy
	}{
		{
			name: "fallback campaign",
			expect: func(m mocks) {
				m.ledger.EXPECT().CanClaim(gomock.Any(), "trend-rewards", addrA).Return(false, ledger.ErrNotConfigured)
				m.ledger.EXPECT().CanClaim(gomock.Any(), "demo-campaign", addrA).Return(true, nil)
			},
			allowed: true,
			policy:  entities.GateFallbackCampaign,
		},
		{
			name: "fallback campaign rejects",
			expect: func(m mocks) {
				m.ledger.EXPECT().CanClaim(gomock.Any(), "trend-rewards", addrA).Return(false, ledger.ErrNotConfigured)
				m.ledger.EXPECT().CanClaim(gomock.Any(), "demo-campaign", addrA).Return(false, nil)
			},
			allowed: false,
		},
		{
			name: "fallback campaign fails",
			expect: func(m mocks) {
				m.ledger.EXPECT().CanClaim(gomock.Any(), "trend-rewards", addrA).Return(false, ledger.ErrNotConfigured)
				m.ledger.EXPECT().CanClaim(gomock.Any(), "demo-campaign", addrA).Return(false, ledger.ErrNotConfigured)
			},
			allowed: true,
			policy:  entities.GateFailOpen,
		},
		{
			name: "ledger error fails open",
			expect: func(m mocks) {
				m.ledger.EXPECT().CanClaim(gomock.Any(), "trend-rewards", addrA).Return(false, errors.New("rpc timeout"))
			},
			allowed: true,
			policy:  entities.GateFailOpen,
		},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			r, m := newTestRanker(t, DefaultConfig())

			m.feed.EXPECT().FetchEngagers(gomock.Any(), "0xpost", 100).Return([]entities.Participant{{FID: 1, Address: addrA}}, nil)
			m.cooldown.EXPECT().Check(gomock.Any(), addrA).Return(time.Duration(0), nil)
			tc.expect(m)

			res := r.Rank(ctx, &entities.TrendContext{PostHash: "0xpost"})

			require.Equal(t, tc.allowed, res.Eligible)
			if !tc.allowed {
				require.Equal(t, entities.ReasonNoClaimableCandidates, res.Reason)
				require.Empty(t, res.Recipients)
				return
			}

			require.Equal(t, []string{addrA}, res.Recipients)
			require.Equal(t, tc.policy, res.Rankings[0].GatePolicy)
			require.Equal(t, "trend-rewards", res.CampaignID)
		})
	}
}

func TestRanker_Rank_Cooldown(t *testing.T) {
	r, m := newTestRanker(t, DefaultConfig())

	m.feed.EXPECT().FetchEngagers(gomock.Any(), "0xpost", 100).Return([]entities.Participant{
		{FID: 1, Address: addrA, FollowerCount: 1000},
		{FID: 2, Address: addrB},
	}, nil)
	m.cooldown.EXPECT().Check(gomock.Any(), addrA).Return(time.Hour, nil)
	m.cooldown.EXPECT().Check(gomock.Any(), addrB).Return(time.Duration(0), errors.New("disk"))
	m.ledger.EXPECT().CanClaim(gomock.Any(), "trend-rewards", addrB).Return(true, nil)

	res := r.Rank(ctx, &entities.TrendContext{PostHash: "0xpost"})

	require.Equal(t, []string{addrB}, res.Recipients)
}

func TestRanker_Rank_NoCandidates(t *testing.T) {
	tt := []struct {
		name   string
		tc     *entities.TrendContext
		expect func(m mocks)
	}{
		{
			name:   "no post",
			tc:     &entities.TrendContext{Status: entities.NoTrendsFound},
			expect: func(m mocks) {},
		},
		{
			name: "no engagers",
			tc:   &entities.TrendContext{PostHash: "0xpost"},
			expect: func(m mocks) {
				m.feed.EXPECT().FetchEngagers(gomock.Any(), "0xpost", 100).Return([]entities.Participant{}, nil)
			},
		},
		{
			name: "engagers unavailable",
			tc:   &entities.TrendContext{PostHash: "0xpost"},
			expect: func(m mocks) {
				m.feed.EXPECT().FetchEngagers(gomock.Any(), "0xpost", 100).Return(nil, feed.ErrUnavailable)
			},
		},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			r, m := newTestRanker(t, DefaultConfig())
			tc.expect(m)

			res := r.Rank(ctx, tc.tc)

			require.False(t, res.Eligible)
			require.Equal(t, entities.ReasonNoCandidates, res.Reason)
			require.Empty(t, res.Recipients)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tt := []struct {
		name  string
		apply func(c *Config)
		valid bool
	}{
		{name: "default", apply: func(*Config) {}, valid: true},
		{name: "no campaign", apply: func(c *Config) { c.CampaignID = " " }},
		{name: "zero recipients", apply: func(c *Config) { c.MaxRecipients = 0 }},
		{name: "negative recipients", apply: func(c *Config) { c.MaxRecipients = -1 }},
		{name: "zero engager limit", apply: func(c *Config) { c.EngagerLimit = 0 }},
		{name: "negative weight", apply: func(c *Config) { c.Weights.Follower = -0.1 }},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.apply(&cfg)

			if tc.valid {
				require.NoError(t, cfg.Validate())
			} else {
				require.Error(t, cfg.Validate())
			}
		})
	}
}
