// Package impl is implementation of service.Pipeline interface.
package impl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/ledger"
	"github.com/Decentr-net/plutus/internal/metrics"
	"github.com/Decentr-net/plutus/internal/service"
	"github.com/Decentr-net/plutus/internal/service/trend"
	"github.com/Decentr-net/plutus/internal/storage"
)

var log = logrus.WithField("package", "impl")

const summarySnippetLen = 60

// Config ...
type Config struct {
	RunTimeout  time.Duration
	ExplorerURL string
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{
		RunTimeout:  2 * time.Minute,
		ExplorerURL: "https://sepolia.basescan.org",
	}
}

// Option ...
type Option func(s *srv)

// WithLeaderboard records rewarded participants.
func WithLeaderboard(l storage.LeaderboardStore) Option {
	return func(s *srv) {
		s.leaderboard = l
	}
}

// WithCooldown starts claim cooldown for rewarded participants.
func WithCooldown(c storage.CooldownStore) Option {
	return func(s *srv) {
		s.cooldown = c
	}
}

// WithLedger is used to read xp balance of rewarded participants.
func WithLedger(l ledger.Ledger) Option {
	return func(s *srv) {
		s.ledger = l
	}
}

// WithClock ...
func WithClock(now func() time.Time) Option {
	return func(s *srv) {
		s.now = now
	}
}

type srv struct {
	detector   service.TrendDetector
	ranker     service.EligibilityRanker
	dispatcher service.RewardDispatcher

	leaderboard storage.LeaderboardStore
	cooldown    storage.CooldownStore
	ledger      ledger.Ledger

	cfg Config
	now func() time.Time

	mu    sync.Mutex
	group singleflight.Group
}

// New returns new instance of service.Pipeline.
func New(d service.TrendDetector, r service.EligibilityRanker, w service.RewardDispatcher, cfg Config, opts ...Option) service.Pipeline {
	s := &srv{
		detector:   d,
		ranker:     r,
		dispatcher: w,
		cfg:        cfg,
		now:        time.Now,
	}

	for _, o := range opts {
		o(s)
	}

	return s
}

// ThreadID returns stable identifier of (frameID, channelID) pair.
func ThreadID(frameID, channelID string) string {
	h := sha256.New()
	h.Write([]byte(frameID))   // nolint:errcheck
	h.Write([]byte{0})         // nolint:errcheck
	h.Write([]byte(channelID)) // nolint:errcheck

	return hex.EncodeToString(h.Sum(nil)[:16])
}

func (s *srv) Run(ctx context.Context, p entities.Payload) (*entities.RunResult, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	threadID := strings.TrimSpace(p.ThreadID)
	if threadID == "" {
		threadID = ThreadID(p.FrameID, p.ChannelID)
	}

	key := runKey(threadID, p)
	v, _, shared := s.group.Do(key, func() (interface{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		return s.run(ctx, threadID, p), nil
	})

	if shared {
		log.WithField("thread_id", threadID).Debug("run coalesced with in-flight one")
	}

	return v.(*entities.RunResult), nil
}

// runKey is equal for payloads which can share one run.
func runKey(threadID string, p entities.Payload) string {
	hint := ""
	if p.TrendScoreHint != nil {
		hint = strconv.FormatFloat(*p.TrendScoreHint, 'g', -1, 64)
	}

	h := sha256.New()
	for _, v := range []string{threadID, p.FrameID, p.ChannelID, hint, p.TargetAddress, string(p.RewardType), p.NotifyTarget} {
		h.Write([]byte(v)) // nolint:errcheck
		h.Write([]byte{0}) // nolint:errcheck
	}

	return hex.EncodeToString(h.Sum(nil))
}

// run ignores cancellation of the caller context, only RunTimeout bounds it.
func (s *srv) run(ctx context.Context, threadID string, p entities.Payload) (res *entities.RunResult) {
	ctx = context.WithoutCancel(ctx)
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	l := log.WithFields(logrus.Fields{
		"thread_id": threadID,
		"channel":   p.ChannelID,
	})

	res = &entities.RunResult{
		ThreadID: threadID,
		Mode:     entities.DispatchNoop,
	}

	defer func() {
		if r := recover(); r != nil {
			l.WithField("panic", r).Error("pipeline run panicked")
			res.Mode = entities.DispatchFailed
			res.TxHash, res.ExplorerURL = "", ""
			res.Dispatch = &entities.Dispatch{
				Mode:       entities.DispatchFailed,
				Error:      fmt.Sprintf("panic: %v", r),
				Recipients: []string{},
			}
			res.Summary = summary(res)
		}

		metrics.RunsTotal.WithLabelValues(string(res.Mode)).Inc()
	}()

	start := time.Now()
	res.Trend = s.detector.Detect(ctx, p)
	metrics.ObserveStage(metrics.StageDetect, start)

	start = time.Now()
	res.Eligibility = s.ranker.Rank(ctx, res.Trend)
	metrics.ObserveStage(metrics.StageRank, start)

	start = time.Now()
	res.Dispatch = s.dispatcher.Dispatch(ctx, res.Eligibility)
	metrics.ObserveStage(metrics.StageDispatch, start)

	res.Mode = res.Dispatch.Mode
	if res.Dispatch.TxHash != "" {
		res.TxHash = res.Dispatch.TxHash
		res.ExplorerURL = fmt.Sprintf("%s/tx/%s", strings.TrimRight(s.cfg.ExplorerURL, "/"), res.TxHash)
	}

	if res.Mode == entities.DispatchNFTMinted || res.Mode == entities.DispatchXPAwarded {
		s.bookkeep(ctx, res, l)
	}

	res.Summary = summary(res)

	l.WithFields(logrus.Fields{
		"mode": res.Mode,
		"tx":   res.TxHash,
	}).Info(res.Summary)

	return res
}

// bookkeep persists side effects of a successful reward. Failures are logged only.
func (s *srv) bookkeep(ctx context.Context, res *entities.RunResult, l *logrus.Entry) {
	if len(res.Dispatch.Recipients) == 0 {
		return
	}

	recipient := res.Dispatch.Recipients[0]
	l = l.WithField("recipient", recipient)

	if s.cooldown != nil {
		if err := s.cooldown.RecordClaim(ctx, recipient); err != nil {
			l.WithError(err).Error("failed to record claim")
		}
	}

	if s.leaderboard == nil {
		return
	}

	entry := entities.LeaderboardEntry{
		Address:    recipient,
		CampaignID: res.Dispatch.CampaignID,
		RewardType: res.Eligibility.Metadata.RewardType,
		Timestamp:  s.now().UTC(),
	}

	if entry.RewardType == "" {
		entry.RewardType = entities.RewardNFT
	}

	for _, v := range res.Eligibility.Rankings {
		if strings.EqualFold(v.Participant.Address, recipient) {
			entry.Score = v.Score.Total
			entry.Username = v.Participant.Username
			break
		}
	}

	if res.Mode == entities.DispatchXPAwarded && s.ledger != nil {
		xp, err := s.ledger.GetBalance(ctx, res.Dispatch.CampaignID, recipient)
		if err != nil {
			l.WithError(err).Warn("failed to get xp balance")
		}
		entry.XP = xp
	}

	if err := s.leaderboard.Record(ctx, entry); err != nil {
		l.WithError(err).Error("failed to record leaderboard entry")
	}
}

func summary(res *entities.RunResult) string {
	text := "no trend"
	if res.Trend != nil && strings.TrimSpace(res.Trend.Text) != "" {
		text = trend.Snippet(res.Trend.Text, summarySnippetLen)
	}

	eligible := 0
	if res.Eligibility != nil {
		eligible = len(res.Eligibility.Recipients)
	}

	return fmt.Sprintf("Trend %q: %d eligible, reward %s", text, eligible, res.Mode)
}
