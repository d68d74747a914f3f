// Package refresh keeps the earthquake collection current by fetching on a
// fixed interval while active.
package refresh

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the refresh period used when none is configured.
const DefaultInterval = 5 * time.Minute

// ErrAlreadyActive is returned by Activate when a ticker is already running.
var ErrAlreadyActive = errors.New("scheduler already active")

// Fetcher refreshes the collection and reports its size.
type Fetcher interface {
	FetchEarthquakes(ctx context.Context) error
	Len() int
}

// Scheduler drives periodic fetches. At most one ticker exists at a time.
type Scheduler struct {
	fetcher  Fetcher
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an inactive Scheduler. A non-positive interval selects
// DefaultInterval.
func New(fetcher Fetcher, interval time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		fetcher:  fetcher,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
	}
}

// SetClock swaps the time source. It must be called before Activate.
func (s *Scheduler) SetClock(c clockwork.Clock) {
	s.clock = c
}

// Active reports whether the ticker is running.
func (s *Scheduler) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Activate fetches immediately when the collection is empty, then starts the
// recurring ticker. The ticker outlives neither ctx nor Deactivate.
func (s *Scheduler) Activate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyActive
	}

	loopCtx, cancel := context.WithCancel(ctx)
	ticker := s.clock.NewTicker(s.interval)
	s.cancel = cancel
	s.done = make(chan struct{})

	initial := s.fetcher.Len() == 0
	go s.loop(loopCtx, ticker, initial, s.done)

	s.metrics.SchedulerActive.Set(1)
	s.logger.Info("refresh scheduler activated", "interval", s.interval, "initial_fetch", initial)
	return nil
}

// Deactivate stops the ticker and waits for any in-flight fetch to return.
// The in-flight fetch is not canceled; the feed client's timeout bounds it.
// It is a no-op when inactive.
func (s *Scheduler) Deactivate() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	s.metrics.SchedulerActive.Set(0)
	s.logger.Info("refresh scheduler deactivated")
}

// Run activates the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Activate(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Deactivate()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, ticker clockwork.Ticker, initial bool, done chan<- struct{}) {
	defer close(done)
	defer ticker.Stop()

	if initial {
		s.fetch(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.fetch(ctx)
		}
	}
}

// fetch runs one refresh. Failures wait for the next tick. Once started, a
// fetch runs to completion even if the scheduler is deactivated meanwhile.
func (s *Scheduler) fetch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.fetcher.FetchEarthquakes(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("scheduled refresh failed, retrying next tick", "error", err, "next_in", s.interval)
	}
}
