// Package file is implementation of storage interfaces over JSON files.
// Every store is a single file which is read fully and rewritten on every mutation.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/plutus/internal/storage"
)

var log = logrus.WithField("layer", "storage").WithField("package", "file")

// File names used inside of the storage directory.
const (
	LeaderboardFile = "leaderboard.json"
	CooldownFile    = "cooldown.json"
	EnergyFile      = "energy.json"
)

type envelope interface {
	schema() int
}

// document guards read-modify-write of a single file.
type document[T envelope] struct {
	mu   sync.Mutex
	path string
}

func newDocument[T envelope](path string) *document[T] {
	return &document[T]{path: path}
}

// load returns file content. Unreadable or unknown content is treated as empty. Caller should hold mu.
func (d *document[T]) load() T {
	var v T

	b, err := os.ReadFile(d.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("path", d.path).Warn("failed to read file, treating as empty")
		}
		return v
	}

	if err := json.Unmarshal(b, &v); err != nil {
		log.WithError(err).WithField("path", d.path).Warn("failed to decode file, treating as empty")
		var empty T
		return empty
	}

	if v.schema() != storage.SchemaVersion {
		log.WithField("path", d.path).WithField("version", v.schema()).Warn("unknown schema version, treating as empty")
		var empty T
		return empty
	}

	return v
}

// save atomically replaces file content. Caller should hold mu.
func (d *document[T]) save(v T) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create dir: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(d.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name()) // nolint:errcheck

	if _, err := f.Write(b); err != nil {
		f.Close() // nolint:errcheck
		return fmt.Errorf("failed to write: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close: %w", err)
	}

	if err := os.Rename(f.Name(), d.path); err != nil {
		return fmt.Errorf("failed to rename: %w", err)
	}

	return nil
}

// ReadSnapshot reads state of all stores from dir.
func ReadSnapshot(dir string) storage.Snapshot {
	lb := newDocument[leaderboardFile](filepath.Join(dir, LeaderboardFile)).load()
	cd := newDocument[cooldownFile](filepath.Join(dir, CooldownFile)).load()
	en := newDocument[energyFile](filepath.Join(dir, EnergyFile)).load()

	s := storage.Snapshot{
		Leaderboard: toEntries(lb.Entries),
		Cooldown:    cd.Claims,
		Energy:      en.Energy,
	}

	if s.Cooldown == nil {
		s.Cooldown = map[string]int64{}
	}
	if s.Energy == nil {
		s.Energy = map[string]storage.EnergyRecord{}
	}

	return s
}

func clock(now func() time.Time) func() time.Time {
	if now == nil {
		return time.Now
	}
	return now
}

type pinger string

// NewPinger returns storage.Pinger which checks that dir is a writable directory.
func NewPinger(dir string) storage.Pinger {
	return pinger(dir)
}

func (p pinger) Ping(_ context.Context) error {
	f, err := os.CreateTemp(string(p), ".ping.*")
	if err != nil {
		return fmt.Errorf("failed to write to storage dir: %w", err)
	}
	f.Close()           // nolint:errcheck
	os.Remove(f.Name()) // nolint:errcheck

	return nil
}
