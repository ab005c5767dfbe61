// Package neynar is implementation of feed interface over Neynar Farcaster API.
package neynar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/feed"
	"github.com/Decentr-net/plutus/internal/retry"
)

var log = logrus.WithField("package", "neynar")

const (
	likeWeight   = 1.0
	recastWeight = 2.0
)

// Config ...
type Config struct {
	URL    string
	APIKey string
	Retry  retry.Config
}

type client struct {
	c     *http.Client
	url   string
	key   string
	retry retry.Config
}

// New returns new instance of feed.Feed.
func New(c *http.Client, cfg Config) feed.Feed {
	return client{
		c:     c,
		url:   strings.TrimRight(cfg.URL, "/"),
		key:   cfg.APIKey,
		retry: cfg.Retry,
	}
}

type userDTO struct {
	FID               int64  `json:"fid"`
	Username          string `json:"username"`
	FollowerCount     uint64 `json:"follower_count"`
	PowerBadge        bool   `json:"power_badge"`
	CustodyAddress    string `json:"custody_address"`
	VerifiedAddresses struct {
		EthAddresses []string `json:"eth_addresses"`
	} `json:"verified_addresses"`
	Profile struct {
		Bio struct {
			Text string `json:"text"`
		} `json:"bio"`
	} `json:"profile"`
}

type castDTO struct {
	Hash      string    `json:"hash"`
	Author    userDTO   `json:"author"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Reactions struct {
		LikesCount   uint32 `json:"likes_count"`
		RecastsCount uint32 `json:"recasts_count"`
	} `json:"reactions"`
	Replies struct {
		Count uint32 `json:"count"`
	} `json:"replies"`
	Channel *struct {
		ID string `json:"id"`
	} `json:"channel"`
}

type castsResponse struct {
	Casts []castDTO `json:"casts"`
}

type reactionsResponse struct {
	Reactions []struct {
		ReactionType string  `json:"reaction_type"`
		User         userDTO `json:"user"`
	} `json:"reactions"`
}

func (c client) FetchTrending(ctx context.Context, channel string, limit int, window time.Duration) ([]entities.Post, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("time_window", formatWindow(window))
	if !isGlobal(channel) {
		q.Set("channel_id", channel)
	}

	var resp castsResponse
	if err := c.get(ctx, "/v2/farcaster/feed/trending", q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch trending: %w", err)
	}

	return toPosts(resp.Casts), nil
}

func (c client) FetchRecent(ctx context.Context, channel string, limit int) ([]entities.Post, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	path := "/v2/farcaster/feed/channels"
	if isGlobal(channel) {
		path = "/v2/farcaster/feed"
		q.Set("feed_type", "filter")
		q.Set("filter_type", "global_trending")
	} else {
		q.Set("channel_ids", channel)
		q.Set("with_recasts", "false")
	}

	var resp castsResponse
	if err := c.get(ctx, path, q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch recent: %w", err)
	}

	return toPosts(resp.Casts), nil
}

func (c client) FetchEngagers(ctx context.Context, postHash string, limit int) ([]entities.Participant, error) {
	q := url.Values{}
	q.Set("hash", postHash)
	q.Set("types", "likes,recasts")
	q.Set("limit", strconv.Itoa(limit))

	var resp reactionsResponse
	if err := c.get(ctx, "/v2/farcaster/reactions/cast", q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch engagers: %w", err)
	}

	out := make([]entities.Participant, 0, len(resp.Reactions))
	idx := make(map[int64]int, len(resp.Reactions))

	for _, v := range resp.Reactions {
		w := likeWeight
		if v.ReactionType == "recast" {
			w = recastWeight
		}

		if i, ok := idx[v.User.FID]; ok {
			out[i].Engagement += w
			continue
		}

		p := toParticipant(v.User)
		p.Engagement = w
		idx[v.User.FID] = len(out)
		out = append(out, p)
	}

	return out, nil
}

func (c client) FetchIdentityByAddress(ctx context.Context, address string) (*entities.Participant, error) {
	address = strings.ToLower(address)

	q := url.Values{}
	q.Set("addresses", address)

	var resp map[string][]userDTO
	if err := c.get(ctx, "/v2/farcaster/user/bulk-by-address", q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch identity: %w", err)
	}

	for k, v := range resp {
		if strings.EqualFold(k, address) && len(v) > 0 {
			p := toParticipant(v[0])
			p.Address = address
			return &p, nil
		}
	}

	return nil, feed.ErrNotFound
}

func (c client) FetchPostStats(ctx context.Context, postHash string) (*entities.Post, error) {
	q := url.Values{}
	q.Set("identifier", postHash)
	q.Set("type", "hash")

	var resp struct {
		Cast castDTO `json:"cast"`
	}
	if err := c.get(ctx, "/v2/farcaster/cast", q, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch post: %w", err)
	}

	p := toPost(resp.Cast)
	return &p, nil
}

func (c client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	u := fmt.Sprintf("%s%s?%s", c.url, path, q.Encode())

	_, err := retry.Do(ctx, c.retry, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return struct{}{}, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("accept", "application/json")
		req.Header.Set("x-api-key", c.key)

		resp, err := c.c.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("%w: %s", feed.ErrUnavailable, err)
		}
		defer resp.Body.Close() // nolint:errcheck

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return struct{}{}, retry.Permanent(feed.ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return struct{}{}, fmt.Errorf("%w: status %d", feed.ErrUnavailable, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return struct{}{}, retry.Permanent(fmt.Errorf("%w: status %d: %s", feed.ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body))))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return struct{}{}, retry.Permanent(fmt.Errorf("%w: failed to decode response: %s", feed.ErrUnavailable, err))
		}

		return struct{}{}, nil
	})

	if err != nil && !errors.Is(err, feed.ErrNotFound) && !errors.Is(err, feed.ErrUnavailable) {
		log.WithError(err).WithField("path", path).Debug("request failed")
		return fmt.Errorf("%w: %s", feed.ErrUnavailable, err)
	}

	return err
}

func isGlobal(channel string) bool {
	return channel == "" || channel == feed.GlobalChannel
}

func formatWindow(d time.Duration) string {
	if d >= 48*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}

	h := int(d / time.Hour)
	if h < 1 {
		h = 1
	}
	return fmt.Sprintf("%dh", h)
}

func toPosts(casts []castDTO) []entities.Post {
	out := make([]entities.Post, len(casts))
	for i, v := range casts {
		out[i] = toPost(v)
	}
	return out
}

func toPost(c castDTO) entities.Post {
	p := entities.Post{
		Hash:      c.Hash,
		AuthorFID: c.Author.FID,
		Author:    c.Author.Username,
		Text:      c.Text,
		Likes:     c.Reactions.LikesCount,
		Recasts:   c.Reactions.RecastsCount,
		Replies:   c.Replies.Count,
		CreatedAt: c.Timestamp,
	}

	if c.Channel != nil {
		p.Channel = c.Channel.ID
	}

	return p
}

func toParticipant(u userDTO) entities.Participant {
	address := u.CustodyAddress
	if len(u.VerifiedAddresses.EthAddresses) > 0 {
		address = u.VerifiedAddresses.EthAddresses[0]
	}

	return entities.Participant{
		FID:           u.FID,
		Username:      u.Username,
		Address:       strings.ToLower(address),
		FollowerCount: u.FollowerCount,
		PowerBadge:    u.PowerBadge,
		Summary:       u.Profile.Bio.Text,
	}
}
