// Package webhook is implementation of notify interface which posts notifications to an HTTP endpoint.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Decentr-net/plutus/internal/notify"
	"github.com/Decentr-net/plutus/internal/retry"
)

// Config ...
type Config struct {
	URL   string
	Retry retry.Config
}

type webhook struct {
	c     *http.Client
	url   string
	retry retry.Config
}

type request struct {
	Target string `json:"target"`
	notify.Notification
}

// New returns new instance of notify.Notifier.
func New(c *http.Client, cfg Config) notify.Notifier {
	return webhook{
		c:     c,
		url:   cfg.URL,
		retry: cfg.Retry,
	}
}

func (w webhook) Notify(ctx context.Context, target string, n notify.Notification) error {
	body, err := json.Marshal(request{Target: target, Notification: n})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = retry.Do(ctx, w.retry, func(ctx context.Context) (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return struct{}{}, retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := w.c.Do(req)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to send notification: %w", err)
		}
		defer resp.Body.Close() // nolint:errcheck

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return struct{}{}, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
			return struct{}{}, fmt.Errorf("unexpected status %s", resp.Status)
		default:
			return struct{}{}, retry.Permanent(fmt.Errorf("unexpected status %s", resp.Status))
		}
	})

	return err
}
