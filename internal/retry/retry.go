// Package retry wraps external calls into bounded retries with per-attempt timeouts.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/failsafe-go/failsafe-go/timeout"
)

// Config ...
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	// AttemptTimeout bounds every single attempt.
	AttemptTimeout time.Duration
}

// DefaultConfig returns config used by clients when nothing is set.
func DefaultConfig() Config {
	return Config{
		MaxRetries:     2,
		BaseDelay:      200 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

func (c Config) normalize() Config {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 200 * time.Millisecond
	}
	if c.MaxDelay < c.BaseDelay {
		c.MaxDelay = c.BaseDelay
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 10 * time.Second
	}
	return c
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying, e.g. 4xx responses.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent ...
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// IsTimeout reports whether err is caused by an exceeded attempt timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, timeout.ErrExceeded) || errors.Is(err, context.DeadlineExceeded)
}

// Do runs fn until it succeeds, returns a permanent error or attempts are exhausted.
// fn receives a context which is cancelled when the attempt times out.
func Do[R any](ctx context.Context, cfg Config, fn func(ctx context.Context) (R, error)) (R, error) {
	cfg = cfg.normalize()

	rp := retrypolicy.NewBuilder[R]().
		WithBackoff(cfg.BaseDelay, cfg.MaxDelay).
		WithMaxRetries(cfg.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(_ R, err error) bool {
			return err != nil && !IsPermanent(err)
		}).
		ReturnLastFailure().
		Build()

	res, err := failsafe.With[R](rp, timeout.New[R](cfg.AttemptTimeout)).
		WithContext(ctx).
		GetWithExecution(func(exec failsafe.Execution[R]) (R, error) {
			return fn(exec.Context())
		})

	var p permanentError
	if errors.As(err, &p) {
		return res, p.err
	}

	return res, err
}
