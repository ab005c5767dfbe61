// Package openai is implementation of summarizer interface over OpenAI-compatible chat completions API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/retry"
	"github.com/Decentr-net/plutus/internal/summarizer"
)

var log = logrus.WithField("package", "openai")

const (
	defaultURL   = "https://api.openai.com/v1"
	defaultModel = "gpt-4o-mini"
	maxTokens    = 60
	maxTextLen   = 1000

	systemPrompt = "You explain in one short sentence why a social media post is trending. Reply with the sentence only."
)

// Config ...
type Config struct {
	URL    string
	APIKey string
	Model  string
	Retry  retry.Config
}

type client struct {
	c     *http.Client
	url   string
	key   string
	model string
	retry retry.Config
}

// New returns new instance of summarizer.Summarizer.
func New(c *http.Client, cfg Config) summarizer.Summarizer {
	url := strings.TrimRight(cfg.URL, "/")
	if url == "" {
		url = defaultURL
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return client{
		c:     c,
		url:   url,
		key:   cfg.APIKey,
		model: model,
		retry: cfg.Retry,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model     string    `json:"model"`
	Messages  []message `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
	Stream    bool      `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func (c client) Summarize(ctx context.Context, post entities.Post) (string, bool) {
	if c.key == "" {
		return summarizer.Heuristic(post), false
	}

	text, err := c.complete(ctx, post)
	if err != nil {
		log.WithError(err).WithField("hash", post.Hash).Warn("failed to summarize post, using heuristic")
		return summarizer.Heuristic(post), false
	}

	return text, true
}

func (c client) complete(ctx context.Context, post entities.Post) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt(post)},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	return retry.Do(ctx, c.retry, func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return "", retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.key)

		resp, err := c.c.Do(req)
		if err != nil {
			return "", fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close() // nolint:errcheck

		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(b)))
			// quota errors do not go away within a run
			if resp.StatusCode < http.StatusInternalServerError {
				return "", retry.Permanent(err)
			}
			return "", err
		}

		var out completionResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", retry.Permanent(fmt.Errorf("failed to decode response: %w", err))
		}

		if len(out.Choices) == 0 {
			return "", retry.Permanent(fmt.Errorf("empty choices"))
		}

		text := firstLine(out.Choices[0].Message.Content)
		if text == "" {
			return "", retry.Permanent(fmt.Errorf("empty content"))
		}

		return text, nil
	})
}

func prompt(p entities.Post) string {
	text := p.Text
	if len(text) > maxTextLen {
		text = text[:maxTextLen]
	}

	author := p.Author
	if author == "" {
		author = p.AuthorIdentity()
	}

	return fmt.Sprintf("Post by @%s (%d likes, %d recasts, %d replies):\n%s",
		author, p.Likes, p.Recasts, p.Replies, text)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.Trim(strings.TrimSpace(s), `"`)
}
