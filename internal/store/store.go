// Package store holds the in-memory earthquake collection and the state that
// surrounds it: loading and error status, the filter criteria, and the
// pending map focus.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/filters"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrEventNotFound is returned when a focus request names an unknown id.
var ErrEventNotFound = errors.New("event not found")

// FeedFetcher retrieves the raw feed document.
type FeedFetcher interface {
	FetchFeed(ctx context.Context) (domain.FeedDocument, error)
}

// Publisher hands a refreshed batch to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, events []domain.Event, fetchedAt time.Time) error
}

// Option configures an EventStore.
type Option func(*EventStore)

// WithGeocoder enables reverse geocoding of events without a place name.
func WithGeocoder(g domain.Geocoder) Option {
	return func(s *EventStore) { s.geocoder = g }
}

// WithPublisher forwards every successful batch to p.
func WithPublisher(p Publisher) Option {
	return func(s *EventStore) { s.publisher = p }
}

// WithClock replaces the wall clock used for durations, batch timestamps and
// focus retries.
func WithClock(c clockwork.Clock) Option {
	return func(s *EventStore) { s.clock = c }
}

// EventStore is the shared state container for the earthquake collection.
// All methods are safe for concurrent use.
type EventStore struct {
	fetcher   FeedFetcher
	filters   *filters.Manager
	geocoder  domain.Geocoder
	publisher Publisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics

	mu          sync.RWMutex
	earthquakes []domain.Event
	inflight    int
	errMsg      string
	focus       *domain.Event

	ready atomic.Bool
}

// New creates an empty store. The filter manager must already be restored.
func New(fetcher FeedFetcher, fm *filters.Manager, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *EventStore {
	s := &EventStore{
		fetcher:     fetcher,
		filters:     fm,
		clock:       clockwork.NewRealClock(),
		logger:      logger,
		metrics:     metrics,
		earthquakes: []domain.Event{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchEarthquakes runs one refresh cycle. On success the collection is
// replaced wholesale; on failure the previous collection is kept and the
// error is recorded. A fetch canceled by its caller records no error.
// Loading is cleared either way. Overlapping calls are not coalesced and the
// last one to finish wins.
func (s *EventStore) FetchEarthquakes(ctx context.Context) error {
	cycleID := uuid.NewString()
	logger := s.logger.With("cycle_id", cycleID)
	start := s.clock.Now()

	s.mu.Lock()
	s.inflight++
	s.errMsg = ""
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.inflight--
		s.mu.Unlock()
		s.metrics.FetchDuration.Observe(s.clock.Since(start).Seconds())
	}()

	doc, err := s.fetcher.FetchFeed(ctx)
	if errors.Is(err, context.Canceled) {
		// The caller went away; that says nothing about the feed.
		s.metrics.Fetches.WithLabelValues("canceled").Inc()
		logger.Info("feed fetch canceled")
		return fmt.Errorf("fetch earthquakes: %w", err)
	}
	if err != nil {
		err = fmt.Errorf("fetch earthquakes: %w", err)
		s.mu.Lock()
		s.errMsg = err.Error()
		s.mu.Unlock()
		s.metrics.Fetches.WithLabelValues("error").Inc()
		logger.Error("feed fetch failed", "error", err)
		return err
	}

	events := domain.NormalizeFeed(doc)
	discarded := len(doc.Features) - len(events)
	if s.geocoder != nil {
		events = domain.EnrichUnknownPlaces(ctx, events, s.geocoder, logger)
	}

	s.mu.Lock()
	s.earthquakes = events
	s.mu.Unlock()
	s.ready.Store(true)

	s.metrics.Fetches.WithLabelValues("success").Inc()
	s.metrics.EventsRetained.Set(float64(len(events)))
	s.metrics.EventsDiscarded.Add(float64(discarded))
	logger.Info("earthquakes refreshed",
		"feature_count", len(doc.Features),
		"event_count", len(events),
		"discarded_count", discarded,
	)

	s.publish(ctx, logger, events, start)
	return nil
}

func (s *EventStore) publish(ctx context.Context, logger *slog.Logger, events []domain.Event, fetchedAt time.Time) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events, fetchedAt); err != nil {
		s.metrics.Published.WithLabelValues("error").Inc()
		logger.Warn("publish batch failed", "error", err, "event_count", len(events))
		return
	}
	s.metrics.Published.WithLabelValues("success").Inc()
}

// Earthquakes returns a copy of the collection in feed order.
func (s *EventStore) Earthquakes() []domain.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Event, len(s.earthquakes))
	copy(out, s.earthquakes)
	return out
}

// Len returns the number of events currently held.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.earthquakes)
}

// Loading reports whether a fetch is in flight.
func (s *EventStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inflight > 0
}

// Error returns the message from the last failed fetch, or "".
func (s *EventStore) Error() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errMsg
}

// Filters returns the current filter criteria.
func (s *EventStore) Filters() domain.FilterCriteria {
	return s.filters.Filters()
}

// UpdateFilters merges patch into the criteria. See filters.Manager.Update.
func (s *EventStore) UpdateFilters(ctx context.Context, patch domain.FilterPatch) (domain.FilterCriteria, error) {
	return s.filters.Update(ctx, patch)
}

// SetQuickFilter shows only events at or above minMagnitude.
func (s *EventStore) SetQuickFilter(ctx context.Context, minMagnitude float64) (domain.FilterCriteria, error) {
	return s.filters.SetQuickFilter(ctx, minMagnitude)
}

// ClearFilters resets every criterion.
func (s *EventStore) ClearFilters(ctx context.Context) domain.FilterCriteria {
	return s.filters.Clear(ctx)
}

// FilteredEarthquakes applies the current criteria to the collection.
func (s *EventStore) FilteredEarthquakes() []domain.Event {
	return domain.ApplyFilters(s.Earthquakes(), s.filters.Filters())
}

// SelectedEventForFocus returns the pending focus event, if any.
func (s *EventStore) SelectedEventForFocus() (domain.Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.focus == nil {
		return domain.Event{}, false
	}
	return *s.focus, true
}

// SetSelectedEventForFocus replaces the pending focus event.
func (s *EventStore) SetSelectedEventForFocus(e domain.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = &e
}

// ClearSelectedEventForFocus drops the pending focus event.
func (s *EventStore) ClearSelectedEventForFocus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.focus = nil
}

// SelectForFocus looks id up in the collection and makes it the pending
// focus event.
func (s *EventStore) SelectForFocus(id string) (domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.earthquakes {
		if e.ID == id {
			s.focus = &e
			return e, nil
		}
	}
	return domain.Event{}, fmt.Errorf("%w: %s", ErrEventNotFound, id)
}

// takeFocus removes and returns the pending focus event.
func (s *EventStore) takeFocus() (domain.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.focus == nil {
		return domain.Event{}, false
	}
	e := *s.focus
	s.focus = nil
	return e, true
}

// Snapshot is a consistent view of the store at one instant.
type Snapshot struct {
	Earthquakes []domain.Event        `json:"earthquakes"`
	Filtered    []domain.Event        `json:"filtered"`
	Filters     domain.FilterCriteria `json:"filters"`
	Loading     bool                  `json:"loading"`
	Error       string                `json:"error,omitempty"`
	Focus       *domain.Event         `json:"focus,omitempty"`
}

// Snapshot reads every field under one lock.
func (s *EventStore) Snapshot() Snapshot {
	criteria := s.filters.Filters()

	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Earthquakes: make([]domain.Event, len(s.earthquakes)),
		Filters:     criteria,
		Loading:     s.inflight > 0,
		Error:       s.errMsg,
	}
	copy(snap.Earthquakes, s.earthquakes)
	snap.Filtered = domain.ApplyFilters(snap.Earthquakes, criteria)
	if s.focus != nil {
		f := *s.focus
		snap.Focus = &f
	}
	return snap
}

// Summary returns the counts and statistics shown alongside the list.
func (s *EventStore) Summary() domain.Summary {
	all := s.Earthquakes()
	return domain.Summarize(all, domain.ApplyFilters(all, s.filters.Filters()))
}

// CheckReadiness reports whether at least one fetch has succeeded.
func (s *EventStore) CheckReadiness(_ context.Context) error {
	if s.ready.Load() {
		return nil
	}
	return errors.New("no earthquakes loaded yet")
}
