package impl

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Decentr-net/plutus/internal/entities"
	ledgermock "github.com/Decentr-net/plutus/internal/ledger/mock"
	"github.com/Decentr-net/plutus/internal/service/mock"
	storagemock "github.com/Decentr-net/plutus/internal/storage/mock"
)

const addr = "0x000000000000000000000000000000000000000A"

var (
	ctx = context.Background()
	now = time.Unix(1_700_000_000, 0).UTC()
)

type mocks struct {
	detector    *mock.MockTrendDetector
	ranker      *mock.MockEligibilityRanker
	dispatcher  *mock.MockRewardDispatcher
	leaderboard *storagemock.MockLeaderboardStore
	cooldown    *storagemock.MockCooldownStore
	ledger      *ledgermock.MockLedger
}

func newTestSrv(t *testing.T) (*srv, mocks) {
	ctrl := gomock.NewController(t)

	m := mocks{
		detector:    mock.NewMockTrendDetector(ctrl),
		ranker:      mock.NewMockEligibilityRanker(ctrl),
		dispatcher:  mock.NewMockRewardDispatcher(ctrl),
		leaderboard: storagemock.NewMockLeaderboardStore(ctrl),
		cooldown:    storagemock.NewMockCooldownStore(ctrl),
		ledger:      ledgermock.NewMockLedger(ctrl),
	}

	s := New(m.detector, m.ranker, m.dispatcher, Config{
		RunTimeout:  time.Minute,
		ExplorerURL: "https://explorer.test/",
	},
		WithLeaderboard(m.leaderboard),
		WithCooldown(m.cooldown),
		WithLedger(m.ledger),
		WithClock(func() time.Time { return now }),
	)

	return s.(*srv), m
}

func TestThreadID(t *testing.T) {
	id := ThreadID("frame", "base")

	require.Len(t, id, 32)
	require.Equal(t, id, ThreadID("frame", "base"))
	require.NotEqual(t, id, ThreadID("fram", "ebase"))
	require.NotEqual(t, id, ThreadID("", "base"))
}

func TestSrv_Run_InvalidPayload(t *testing.T) {
	s, _ := newTestSrv(t)

	tt := []entities.Payload{
		{},
		{ChannelID: "base", TargetAddress: "0x123"},
		{ChannelID: "base", RewardType: "token"},
	}

	for i := range tt {
		res, err := s.Run(ctx, tt[i])
		require.True(t, errors.Is(err, entities.ErrInvalidPayload))
		require.Nil(t, res)
	}
}

func TestSrv_Run(t *testing.T) {
	tt := []struct {
		name     string
		payload  entities.Payload
		dispatch *entities.Dispatch
		expect   func(m mocks)
		mode     entities.DispatchMode
		tx       string
		explorer string
		summary  string
	}{
		{
			name:     "noop",
			payload:  entities.Payload{ChannelID: "base"},
			dispatch: &entities.Dispatch{Mode: entities.DispatchNoop, Recipients: []string{}},
			expect:   func(m mocks) {},
			mode:     entities.DispatchNoop,
			summary:  `Trend "gm #base": 1 eligible, reward noop`,
		},
		{
			name:    "nft",
			payload: entities.Payload{ChannelID: "base"},
			dispatch: &entities.Dispatch{
				Mode:       entities.DispatchNFTMinted,
				TxHash:     "0xhash",
				Recipients: []string{addr},
				CampaignID: "trend-rewards",
			},
			expect: func(m mocks) {
				m.cooldown.EXPECT().RecordClaim(gomock.Any(), addr).Return(nil)
				m.leaderboard.EXPECT().Record(gomock.Any(), entities.LeaderboardEntry{
					Address:    addr,
					Score:      68.5,
					Username:   "alice",
					CampaignID: "trend-rewards",
					RewardType: entities.RewardNFT,
					Timestamp:  now,
				}).Return(nil)
			},
			mode:     entities.DispatchNFTMinted,
			tx:       "0xhash",
			explorer: "https://explorer.test/tx/0xhash",
			summary:  `Trend "gm #base": 1 eligible, reward nft_minted`,
		},
		{
			name:    "xp",
			payload: entities.Payload{ChannelID: "base", RewardType: entities.RewardXP},
			dispatch: &entities.Dispatch{
				Mode:       entities.DispatchXPAwarded,
				TxHash:     "0xhash",
				Recipients: []string{addr},
				CampaignID: "trend-rewards",
			},
			expect: func(m mocks) {
				m.cooldown.EXPECT().RecordClaim(gomock.Any(), addr).Return(errors.New("disk full"))
				m.ledger.EXPECT().GetBalance(gomock.Any(), "trend-rewards", addr).Return(int64(30), nil)
				m.leaderboard.EXPECT().Record(gomock.Any(), entities.LeaderboardEntry{
					Address:    addr,
					Score:      68.5,
					XP:         30,
					Username:   "alice",
					CampaignID: "trend-rewards",
					RewardType: entities.RewardXP,
					Timestamp:  now,
				}).Return(errors.New("disk full"))
			},
			mode:     entities.DispatchXPAwarded,
			tx:       "0xhash",
			explorer: "https://explorer.test/tx/0xhash",
			summary:  `Trend "gm #base": 1 eligible, reward xp_awarded`,
		},
		{
			name:    "failed",
			payload: entities.Payload{ChannelID: "base"},
			dispatch: &entities.Dispatch{
				Mode:       entities.DispatchFailed,
				Error:      "insufficient funds",
				Recipients: []string{addr},
			},
			expect:  func(m mocks) {},
			mode:    entities.DispatchFailed,
			summary: `Trend "gm #base": 1 eligible, reward failed`,
		},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			s, m := newTestSrv(t)

			p := tc.payload
			require.NoError(t, p.Validate())

			tctx := &entities.TrendContext{Status: entities.TrendsFound, Text: "gm   #base", TrendScore: 1}
			eligibility := &entities.EligibilityResult{
				CampaignID: "trend-rewards",
				Eligible:   true,
				Recipients: []string{addr},
				Rankings: []entities.Ranking{{
					Participant: entities.Participant{Username: "alice", Address: addr},
					Score:       entities.ScoreBreakdown{Total: 68.5},
				}},
				Metadata: entities.EligibilityMetadata{RewardType: p.RewardType},
			}

			gomock.InOrder(
				m.detector.EXPECT().Detect(gomock.Any(), p).Return(tctx),
				m.ranker.EXPECT().Rank(gomock.Any(), tctx).Return(eligibility),
				m.dispatcher.EXPECT().Dispatch(gomock.Any(), eligibility).Return(tc.dispatch),
			)
			tc.expect(m)

			res, err := s.Run(ctx, tc.payload)
			require.NoError(t, err)

			assert.Equal(t, ThreadID("", "base"), res.ThreadID)
			assert.Equal(t, tc.mode, res.Mode)
			assert.Equal(t, tc.tx, res.TxHash)
			assert.Equal(t, tc.explorer, res.ExplorerURL)
			assert.Equal(t, tc.summary, res.Summary)
			assert.Equal(t, tctx, res.Trend)
			assert.Equal(t, eligibility, res.Eligibility)
			assert.Equal(t, tc.dispatch, res.Dispatch)
		})
	}
}

func TestSrv_Run_ThreadID(t *testing.T) {
	s, m := newTestSrv(t)

	m.detector.EXPECT().Detect(gomock.Any(), gomock.Any()).Return(&entities.TrendContext{Status: entities.NoTrendsFound})
	m.ranker.EXPECT().Rank(gomock.Any(), gomock.Any()).Return(&entities.EligibilityResult{Recipients: []string{}})
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(&entities.Dispatch{Mode: entities.DispatchNoop})

	res, err := s.Run(ctx, entities.Payload{ChannelID: "base", ThreadID: "custom"})
	require.NoError(t, err)
	require.Equal(t, "custom", res.ThreadID)
	require.Equal(t, `Trend "no trend": 0 eligible, reward noop`, res.Summary)
}

func TestSrv_Run_Panic(t *testing.T) {
	s, m := newTestSrv(t)

	m.detector.EXPECT().Detect(gomock.Any(), gomock.Any()).Return(&entities.TrendContext{Text: "gm"})
	m.ranker.EXPECT().Rank(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, *entities.TrendContext) *entities.EligibilityResult {
		panic("boom")
	})

	res, err := s.Run(ctx, entities.Payload{ChannelID: "base"})
	require.NoError(t, err)
	require.Equal(t, entities.DispatchFailed, res.Mode)
	require.Equal(t, "panic: boom", res.Dispatch.Error)
	require.Equal(t, `Trend "gm": 0 eligible, reward failed`, res.Summary)
}

func TestSrv_Run_Timeout(t *testing.T) {
	s, m := newTestSrv(t)
	s.cfg.RunTimeout = time.Millisecond

	m.detector.EXPECT().Detect(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ entities.Payload) *entities.TrendContext {
		<-ctx.Done()
		return &entities.TrendContext{Status: entities.NoTrendsFound}
	})
	m.ranker.EXPECT().Rank(gomock.Any(), gomock.Any()).Return(&entities.EligibilityResult{Recipients: []string{}})
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(&entities.Dispatch{Mode: entities.DispatchNoop})

	res, err := s.Run(ctx, entities.Payload{ChannelID: "base"})
	require.NoError(t, err)
	require.Equal(t, entities.DispatchNoop, res.Mode)
}

func TestSrv_Run_Coalesce(t *testing.T) {
	s, m := newTestSrv(t)

	release := make(chan struct{})
	started := make(chan struct{})

	m.detector.EXPECT().Detect(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, entities.Payload) *entities.TrendContext {
		close(started)
		<-release
		return &entities.TrendContext{Status: entities.NoTrendsFound}
	}).Times(1)
	m.ranker.EXPECT().Rank(gomock.Any(), gomock.Any()).Return(&entities.EligibilityResult{Recipients: []string{}}).Times(1)
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(&entities.Dispatch{Mode: entities.DispatchNoop}).Times(1)

	var (
		wg      sync.WaitGroup
		results [2]*entities.RunResult
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = s.Run(ctx, entities.Payload{ChannelID: "base"})
	}()

	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = s.Run(ctx, entities.Payload{ChannelID: "base"})
	}()

	// give the second caller time to join the in-flight run
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Same(t, results[0], results[1])
}

func TestSrv_Run_Serialized(t *testing.T) {
	s, m := newTestSrv(t)

	var (
		mu      sync.Mutex
		running int
		peak    int
	)

	m.detector.EXPECT().Detect(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, entities.Payload) *entities.TrendContext {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()

		return &entities.TrendContext{Status: entities.NoTrendsFound}
	}).Times(3)
	m.ranker.EXPECT().Rank(gomock.Any(), gomock.Any()).Return(&entities.EligibilityResult{Recipients: []string{}}).Times(3)
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(&entities.Dispatch{Mode: entities.DispatchNoop}).Times(3)

	var wg sync.WaitGroup
	for _, channel := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func(channel string) {
			defer wg.Done()
			_, err := s.Run(ctx, entities.Payload{ChannelID: channel})
			assert.NoError(t, err)
		}(channel)
	}
	wg.Wait()

	require.Equal(t, 1, peak)
}

func TestRunKey(t *testing.T) {
	hint := 0.5
	base := entities.Payload{ChannelID: "global", RewardType: entities.RewardNFT}

	require.Equal(t, runKey("t", base), runKey("t", base))

	for _, p := range []entities.Payload{
		{ChannelID: "global", RewardType: entities.RewardXP},
		{ChannelID: "global", RewardType: entities.RewardNFT, TargetAddress: addr},
		{ChannelID: "global", RewardType: entities.RewardNFT, NotifyTarget: "ops"},
		{ChannelID: "global", RewardType: entities.RewardNFT, TrendScoreHint: &hint},
		{ChannelID: "global", RewardType: entities.RewardNFT, FrameID: "frame"},
	} {
		require.NotEqual(t, runKey("t", base), runKey("t", p))
	}

	require.NotEqual(t, runKey("t", base), runKey("u", base))
}

func TestSrv_Run_DifferentTargetNotCoalesced(t *testing.T) {
	s, m := newTestSrv(t)

	release := make(chan struct{})
	started := make(chan struct{})

	scheduled := entities.Payload{ChannelID: "global"}
	targeted := entities.Payload{ChannelID: "global", TargetAddress: addr, RewardType: entities.RewardXP}

	m.detector.EXPECT().Detect(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, p entities.Payload) *entities.TrendContext {
		if p.TargetAddress == "" {
			close(started)
			<-release
		}
		return &entities.TrendContext{Status: entities.NoTrendsFound, ChannelID: p.ChannelID, TargetAddress: p.TargetAddress}
	}).Times(2)
	m.ranker.EXPECT().Rank(gomock.Any(), gomock.Any()).Return(&entities.EligibilityResult{Recipients: []string{}}).Times(2)
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).Return(&entities.Dispatch{Mode: entities.DispatchNoop}).Times(2)

	var (
		wg      sync.WaitGroup
		results [2]*entities.RunResult
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = s.Run(ctx, scheduled)
	}()

	<-started

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], _ = s.Run(ctx, targeted)
	}()

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NotSame(t, results[0], results[1])
	assert.Equal(t, ThreadID("", "global"), results[1].ThreadID)
	assert.Equal(t, "", results[0].Trend.TargetAddress)
	assert.Equal(t, "0x000000000000000000000000000000000000000a", results[1].Trend.TargetAddress)
}

func TestSrv_Run_CallerCancelled(t *testing.T) {
	s, m := newTestSrv(t)

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.detector.EXPECT().Detect(gomock.Any(), gomock.Any()).Return(&entities.TrendContext{Status: entities.TrendsFound, Text: "gm"})
	m.ranker.EXPECT().Rank(gomock.Any(), gomock.Any()).Return(&entities.EligibilityResult{
		CampaignID: "trend-rewards",
		Eligible:   true,
		Recipients: []string{addr},
	})
	m.dispatcher.EXPECT().Dispatch(gomock.Any(), gomock.Any()).DoAndReturn(func(context.Context, *entities.EligibilityResult) *entities.Dispatch {
		cancel()
		return &entities.Dispatch{
			Mode:       entities.DispatchNFTMinted,
			TxHash:     "0xhash",
			Recipients: []string{addr},
			CampaignID: "trend-rewards",
		}
	})
	m.cooldown.EXPECT().RecordClaim(gomock.Any(), addr).DoAndReturn(func(ctx context.Context, _ string) error {
		require.NoError(t, ctx.Err())
		return nil
	})
	m.leaderboard.EXPECT().Record(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ entities.LeaderboardEntry) error {
		require.NoError(t, ctx.Err())
		return nil
	})

	res, err := s.Run(cctx, entities.Payload{ChannelID: "base"})
	require.NoError(t, err)
	require.Equal(t, entities.DispatchNFTMinted, res.Mode)
	require.Error(t, cctx.Err())
}
