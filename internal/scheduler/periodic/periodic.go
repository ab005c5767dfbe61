// Package periodic is a ticker based implementation of scheduler.Scheduler.
package periodic

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Decentr-net/plutus/internal/entities"
	"github.com/Decentr-net/plutus/internal/metrics"
	"github.com/Decentr-net/plutus/internal/scheduler"
	"github.com/Decentr-net/plutus/internal/service"
)

var log = logrus.WithField("package", "periodic")

// DefaultInterval ...
const DefaultInterval = 30 * time.Minute

// stallFactor is a count of missed intervals after which scheduler is reported as unhealthy.
const stallFactor = 3

// Status is a meta information returned by Ping.
type Status struct {
	Runs     int                   `json:"runs"`
	Skipped  int                   `json:"skipped"`
	LastRun  *time.Time            `json:"last_run,omitempty"`
	LastMode entities.DispatchMode `json:"last_mode,omitempty"`
	Running  bool                  `json:"running"`
}

type periodic struct {
	p        service.Pipeline
	payload  entities.Payload
	interval time.Duration
	now      func() time.Time

	busy int32
	wg   sync.WaitGroup

	mu      sync.Mutex
	started time.Time
	status  Status
}

// New returns new instance of scheduler.Scheduler which runs pipeline with payload every interval.
func New(p service.Pipeline, payload entities.Payload, interval time.Duration) scheduler.Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &periodic{
		p:        p,
		payload:  payload,
		interval: interval,
		now:      time.Now,
	}
}

func (s *periodic) Name() string {
	return "scheduler"
}

func (s *periodic) Ping(_ context.Context) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	st.Running = atomic.LoadInt32(&s.busy) == 1

	if s.started.IsZero() {
		return st, fmt.Errorf("scheduler is not started")
	}

	last := s.started
	if st.LastRun != nil {
		last = *st.LastRun
	}

	if !st.Running && s.now().Sub(last) > stallFactor*s.interval {
		return st, fmt.Errorf("scheduler is stalled: last run at %s", last.Format(time.RFC3339))
	}

	return st, nil
}

func (s *periodic) Run(ctx context.Context) error {
	s.mu.Lock()
	s.started = s.now()
	s.mu.Unlock()

	log.WithField("interval", s.interval).WithField("channel", s.payload.ChannelID).Info("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick starts a run unless previous one is still in flight.
func (s *periodic) tick(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.busy, 0, 1) {
		log.Warn("previous run is in progress, skip tick")
		metrics.ScheduledRunsSkipped.Inc()

		s.mu.Lock()
		s.status.Skipped++
		s.mu.Unlock()

		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer atomic.StoreInt32(&s.busy, 0)

		s.runOnce(ctx)
	}()
}

func (s *periodic) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("scheduled run panicked")
		}
	}()

	res, err := s.p.Run(ctx, s.payload)
	if err != nil {
		log.WithError(err).Error("failed to run pipeline")
		return
	}

	now := s.now()

	s.mu.Lock()
	s.status.Runs++
	s.status.LastRun = &now
	s.status.LastMode = res.Mode
	s.mu.Unlock()

	log.WithFields(logrus.Fields{
		"thread_id": res.ThreadID,
		"mode":      res.Mode,
	}).Info("scheduled run finished")
}
