// Package trend is implementation of the trend detection stage.
package trend

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/feed"
	"github.com/Decentr-net/plutus/internal/metrics"
	"github.com/Decentr-net/plutus/internal/notify"
	"github.com/Decentr-net/plutus/internal/service"
	"github.com/Decentr-net/plutus/internal/summarizer"
)

var log = logrus.WithField("package", "trend")

const (
	maxTags          = 4
	recencyHours     = 12.0
	recencyWeight    = 0.3
	notifySnippetLen = 100
)

var hashtagRegexp = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// Config ...
type Config struct {
	MinTrendScore    float64
	StrongTrendScore float64
	MaxTrends        int
	TrendingLimit    int
	RecentLimit      int
	Window           time.Duration
	SummaryTimeout   time.Duration
	NotifyTimeout    time.Duration
}

// DefaultConfig ...
func DefaultConfig() Config {
	return Config{
		MinTrendScore:    0.5,
		StrongTrendScore: 0.7,
		MaxTrends:        5,
		TrendingLimit:    20,
		RecentLimit:      50,
		Window:           24 * time.Hour,
		SummaryTimeout:   10 * time.Second,
		NotifyTimeout:    10 * time.Second,
	}
}

// Option ...
type Option func(d *detector)

// WithClock replaces time.Now used for recency scoring.
func WithClock(now func() time.Time) Option {
	return func(d *detector) {
		d.now = now
	}
}

// WithNotifier enables strong trend notifications.
func WithNotifier(n notify.Notifier) Option {
	return func(d *detector) {
		d.n = n
	}
}

type detector struct {
	f   feed.Feed
	s   summarizer.Summarizer
	n   notify.Notifier
	cfg Config
	now func() time.Time
}

// New returns new instance of service.TrendDetector.
func New(f feed.Feed, s summarizer.Summarizer, cfg Config, opts ...Option) service.TrendDetector {
	d := &detector{
		f:   f,
		s:   s,
		cfg: cfg,
		now: time.Now,
	}

	for _, o := range opts {
		o(d)
	}

	return d
}

func (d *detector) Detect(ctx context.Context, p entities.Payload) *entities.TrendContext {
	l := log.WithFields(logrus.Fields{
		"channel":  p.ChannelID,
		"frame_id": p.FrameID,
	})

	var trends []entities.Trend

	if p.FrameID != "" {
		post, err := d.f.FetchPostStats(ctx, p.FrameID)
		if err == nil {
			trends = []entities.Trend{{Post: *post, Score: FrameScore(*post)}}
		} else {
			l.WithError(err).Warn("failed to fetch frame stats, scanning feed")
		}
	}

	if trends == nil {
		trends = SelectTrends(d.scorePosts(d.fetchPosts(ctx, p.ChannelID, l)), d.cfg.MinTrendScore, d.cfg.MaxTrends)
	}

	for i := range trends {
		d.annotate(ctx, &trends[i], i == 0)
	}

	tc := &entities.TrendContext{
		Status:        entities.NoTrendsFound,
		FrameID:       p.FrameID,
		ChannelID:     p.ChannelID,
		Trends:        trends,
		TargetAddress: p.TargetAddress,
		RewardType:    p.RewardType,
	}

	if len(trends) == 0 {
		if p.TrendScoreHint != nil {
			tc.TrendScore = *p.TrendScoreHint
		}
		l.Info("no trends found")
		return tc
	}

	top := trends[0]
	tc.Status = entities.TrendsFound
	tc.PostHash = top.Post.Hash
	tc.Text = top.Post.Text
	tc.TrendScore = top.Score
	tc.Tags = top.Tags
	tc.Rationale = top.Rationale
	tc.UsesAI = top.UsesAI

	l.WithFields(logrus.Fields{
		"trends":    len(trends),
		"top_hash":  top.Post.Hash,
		"top_score": top.Score,
	}).Info("trends detected")

	if top.Score >= d.cfg.StrongTrendScore && p.NotifyTarget != "" && d.n != nil {
		notify.Async(ctx, d.n, p.NotifyTarget, notify.Notification{
			Title: fmt.Sprintf("Trending in /%s", p.ChannelID),
			Body:  Snippet(top.Post.Text, notifySnippetLen),
		}, d.cfg.NotifyTimeout)
	}

	return tc
}

func (d *detector) fetchPosts(ctx context.Context, channel string, l *logrus.Entry) []entities.Post {
	posts, err := d.f.FetchTrending(ctx, channel, d.cfg.TrendingLimit, d.cfg.Window)
	if err == nil && len(posts) > 0 {
		return posts
	}

	if err != nil {
		l.WithError(err).Warn("failed to fetch trending posts, falling back to recent")
	}
	metrics.Fallback(metrics.FallbackRecentFeed)

	posts, err = d.f.FetchRecent(ctx, channel, d.cfg.RecentLimit)
	if err != nil {
		l.WithError(err).Error("failed to fetch recent posts")
		return nil
	}

	return posts
}

func (d *detector) scorePosts(posts []entities.Post) []entities.Trend {
	now := d.now()

	out := make([]entities.Trend, len(posts))
	for i, v := range posts {
		out[i] = entities.Trend{Post: v, Score: PostScore(v, now)}
	}

	return out
}

// annotate attaches tags and rationale. Summarizer is asked only for posts passing the threshold and for the best one.
func (d *detector) annotate(ctx context.Context, t *entities.Trend, best bool) {
	t.Tags = Tags(t.Post.Text)

	if !best && t.Score < d.cfg.MinTrendScore {
		t.Rationale = t.Post.Text
		return
	}

	t.Rationale, t.UsesAI = d.summarize(ctx, t.Post)
	if !t.UsesAI {
		metrics.Fallback(metrics.FallbackHeuristicSummary)
	}
}

func (d *detector) summarize(ctx context.Context, p entities.Post) (text string, usesAI bool) {
	defer func() {
		if r := recover(); r != nil {
			log.WithError(fmt.Errorf("%v", r)).WithField("hash", p.Hash).Error("summarizer panicked")
			text, usesAI = summarizer.Heuristic(p), false
		}
	}()

	if d.s == nil {
		return summarizer.Heuristic(p), false
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.SummaryTimeout)
	defer cancel()

	text, usesAI = d.s.Summarize(ctx, p)
	if strings.TrimSpace(text) == "" {
		return summarizer.Heuristic(p), false
	}

	return text, usesAI
}

// PostScore returns [0, 1] trend score of a feed post.
func PostScore(p entities.Post, now time.Time) float64 {
	engagement := (float64(p.Likes) + 2*float64(p.Recasts) + 0.6*float64(p.Replies)) / 200

	recency := 0.0
	if !p.CreatedAt.IsZero() {
		age := now.Sub(p.CreatedAt).Hours()
		recency = clamp((recencyHours-age)/recencyHours, 0, 1)
	}

	return clamp(engagement+recencyWeight*recency, 0, 1)
}

// FrameScore returns [0, 1] trend score of an explicitly requested post.
func FrameScore(p entities.Post) float64 {
	return clamp((float64(p.Likes)+2*float64(p.Recasts)+0.5*float64(p.Replies))/100, 0, 1)
}

// SelectTrends returns up to limit best trends with unique authors.
// Trends passing minScore go first, the rest backfills the result.
func SelectTrends(scored []entities.Trend, minScore float64, limit int) []entities.Trend {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	out := make([]entities.Trend, 0, limit)
	authors := make(map[string]struct{}, limit)
	picked := make([]bool, len(scored))

	pick := func(threshold bool) {
		for i, v := range scored {
			if len(out) >= limit {
				return
			}
			if picked[i] || (threshold && v.Score < minScore) {
				continue
			}
			if _, ok := authors[v.Post.AuthorIdentity()]; ok {
				continue
			}

			picked[i] = true
			authors[v.Post.AuthorIdentity()] = struct{}{}
			out = append(out, v)
		}
	}

	pick(true)
	pick(false)

	return out
}

// Tags returns lowercase sorted unique hashtags of text.
func Tags(text string) []string {
	set := make(map[string]struct{})
	for _, m := range hashtagRegexp.FindAllStringSubmatch(text, -1) {
		set[strings.ToLower(m[1])] = struct{}{}
	}

	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)

	if len(out) > maxTags {
		out = out[:maxTags]
	}

	return out
}

// Snippet returns first n characters of s.
func Snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}

	return string([]rune(s)[:n-1]) + "…"
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
