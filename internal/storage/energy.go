package storage

import (
	"time"
)

// EnergyRecord is a stored state of a draining allowance. Absence of a record means full energy.
type EnergyRecord struct {
	// LastConsume is an anchor of recharge intervals in unix seconds.
	LastConsume int64 `json:"last_consume" db:"last_consume"`
	Consumed    int   `json:"consumed" db:"consumed"`
}

// EnergyStatus ...
type EnergyStatus struct {
	Current int
	Max     int
	// NextIn is time until one more unit is recharged. Zero when energy is full.
	NextIn time.Duration
}

// EnergyPolicy is a capped linear recharge model.
type EnergyPolicy struct {
	Max      int
	Interval time.Duration
}

// DefaultEnergyPolicy ...
func DefaultEnergyPolicy() EnergyPolicy {
	return EnergyPolicy{Max: 3, Interval: 20 * time.Minute}
}

func (p EnergyPolicy) interval() int64 {
	s := int64(p.Interval / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// effective returns consumed units with elapsed recoveries applied, recovered intervals and seconds since anchor.
func (p EnergyPolicy) effective(r *EnergyRecord, now time.Time) (consumed int, recovered int64, elapsed int64) {
	if r == nil {
		return 0, 0, 0
	}

	elapsed = now.Unix() - r.LastConsume
	if elapsed < 0 {
		elapsed = 0
	}

	recovered = elapsed / p.interval()

	consumed = r.Consumed
	if int64(consumed) <= recovered {
		consumed = 0
	} else {
		consumed -= int(recovered)
	}

	return consumed, recovered, elapsed
}

// Status returns energy state at now.
func (p EnergyPolicy) Status(r *EnergyRecord, now time.Time) EnergyStatus {
	consumed, _, elapsed := p.effective(r, now)

	s := EnergyStatus{
		Current: p.Max - consumed,
		Max:     p.Max,
	}

	if s.Current < p.Max {
		s.NextIn = time.Duration(p.interval()-elapsed%p.interval()) * time.Second
	}

	return s
}

// Consume returns new record after one unit is taken. It returns ErrNoEnergy if nothing is left.
func (p EnergyPolicy) Consume(r *EnergyRecord, now time.Time) (*EnergyRecord, error) {
	consumed, recovered, _ := p.effective(r, now)

	if p.Max-consumed <= 0 {
		return nil, ErrNoEnergy
	}

	if consumed == 0 {
		return &EnergyRecord{LastConsume: now.Unix(), Consumed: 1}, nil
	}

	// recovered intervals are cashed in by moving the anchor, partial progress is kept
	return &EnergyRecord{
		LastConsume: r.LastConsume + recovered*p.interval(),
		Consumed:    consumed + 1,
	}, nil
}

// Refill returns new record after amount units are returned. Nil means full energy.
func (p EnergyPolicy) Refill(r *EnergyRecord, amount int, now time.Time) *EnergyRecord {
	consumed, _, _ := p.effective(r, now)

	consumed -= amount
	if consumed <= 0 {
		return nil
	}

	return &EnergyRecord{LastConsume: now.Unix(), Consumed: consumed}
}

// CooldownLeft returns time left until an address which claimed at lastClaim (unix seconds) can claim again.
func CooldownLeft(window time.Duration, lastClaim int64, now time.Time) time.Duration {
	left := int64(window/time.Second) - (now.Unix() - lastClaim)
	if left <= 0 {
		return 0
	}
	return time.Duration(left) * time.Second
}
