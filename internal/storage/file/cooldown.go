package file

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Decentr-net/plutus/internal/storage"
)

// DefaultCooldownWindow ...
const DefaultCooldownWindow = 24 * time.Hour

type cooldownFile struct {
	Version int              `json:"version"`
	Claims  map[string]int64 `json:"claims"`
}

func (f cooldownFile) schema() int { return f.Version }

type cooldown struct {
	doc    *document[cooldownFile]
	window time.Duration
	now    func() time.Time
}

// NewCooldown returns new instance of storage.CooldownStore.
// now is used as a clock, time.Now is used when it is nil.
func NewCooldown(path string, window time.Duration, now func() time.Time) storage.CooldownStore {
	if window <= 0 {
		window = DefaultCooldownWindow
	}

	return &cooldown{
		doc:    newDocument[cooldownFile](path),
		window: window,
		now:    clock(now),
	}
}

func (c *cooldown) Check(_ context.Context, address string) (time.Duration, error) {
	c.doc.mu.Lock()
	f := c.doc.load()
	c.doc.mu.Unlock()

	last, ok := f.Claims[strings.ToLower(address)]
	if !ok {
		return 0, nil
	}

	return storage.CooldownLeft(c.window, last, c.now()), nil
}

func (c *cooldown) RecordClaim(_ context.Context, address string) error {
	c.doc.mu.Lock()
	defer c.doc.mu.Unlock()

	f := c.doc.load()
	f.Version = storage.SchemaVersion
	if f.Claims == nil {
		f.Claims = map[string]int64{}
	}
	f.Claims[strings.ToLower(address)] = c.now().Unix()

	if err := c.doc.save(f); err != nil {
		return fmt.Errorf("failed to save cooldown: %w", err)
	}

	return nil
}
