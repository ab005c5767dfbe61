package file

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Decentr-net/plutus/internal/storage"
)

type energyFile struct {
	Version int                             `json:"version"`
	Energy  map[string]storage.EnergyRecord `json:"energy"`
}

func (f energyFile) schema() int { return f.Version }

type energy struct {
	doc    *document[energyFile]
	policy storage.EnergyPolicy
	now    func() time.Time
}

// NewEnergy returns new instance of storage.EnergyStore.
// now is used as a clock, time.Now is used when it is nil.
func NewEnergy(path string, p storage.EnergyPolicy, now func() time.Time) storage.EnergyStore {
	return &energy{
		doc:    newDocument[energyFile](path),
		policy: p,
		now:    clock(now),
	}
}

func (e *energy) Status(_ context.Context, address string) (storage.EnergyStatus, error) {
	e.doc.mu.Lock()
	f := e.doc.load()
	e.doc.mu.Unlock()

	return e.policy.Status(lookup(f, address), e.now()), nil
}

func (e *energy) Consume(_ context.Context, address string) (storage.EnergyStatus, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	now := e.now()
	f := e.doc.load()

	r, err := e.policy.Consume(lookup(f, address), now)
	if err != nil {
		return e.policy.Status(lookup(f, address), now), err
	}

	if err := e.put(f, address, r); err != nil {
		return storage.EnergyStatus{}, err
	}

	return e.policy.Status(r, now), nil
}

func (e *energy) Refill(_ context.Context, address string, amount int) (storage.EnergyStatus, error) {
	e.doc.mu.Lock()
	defer e.doc.mu.Unlock()

	now := e.now()
	f := e.doc.load()

	r := e.policy.Refill(lookup(f, address), amount, now)
	if err := e.put(f, address, r); err != nil {
		return storage.EnergyStatus{}, err
	}

	return e.policy.Status(r, now), nil
}

// put stores r or removes the record when r is nil. Caller should hold mu.
func (e *energy) put(f energyFile, address string, r *storage.EnergyRecord) error {
	f.Version = storage.SchemaVersion
	if f.Energy == nil {
		f.Energy = map[string]storage.EnergyRecord{}
	}

	if r == nil {
		delete(f.Energy, strings.ToLower(address))
	} else {
		f.Energy[strings.ToLower(address)] = *r
	}

	if err := e.doc.save(f); err != nil {
		return fmt.Errorf("failed to save energy: %w", err)
	}

	return nil
}

func lookup(f energyFile, address string) *storage.EnergyRecord {
	r, ok := f.Energy[strings.ToLower(address)]
	if !ok {
		return nil
	}
	return &r
}
