// Package filters holds the active filter criteria and keeps them in durable
// key-value storage across restarts.
package filters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
)

// StorageKey is the single key the criteria are persisted under.
const StorageKey = "earthquake-filters"

// ErrNotFound is returned by Storage.Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// Storage is a durable key-value store.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Manager owns the current FilterCriteria. Reads and updates are safe for
// concurrent use.
type Manager struct {
	// writeMu orders commit plus persist so storage ends with the last
	// committed criteria. mu guards criteria alone so reads never wait on
	// storage.
	writeMu  sync.Mutex
	mu       sync.RWMutex
	criteria domain.FilterCriteria
	storage  Storage
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewManager restores criteria from storage. It never fails: any problem
// reading or decoding the stored value yields the default criteria.
func NewManager(ctx context.Context, storage Storage, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	m := &Manager{
		storage: storage,
		logger:  logger,
		metrics: metrics,
	}
	m.criteria = m.restore(ctx)
	return m
}

// Filters returns a copy of the current criteria.
func (m *Manager) Filters() domain.FilterCriteria {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.criteria.Clone()
}

// Update merges patch into the current criteria and persists the result.
// An update that would invert the magnitude range is rejected with
// domain.ErrInvalidMagnitudeRange and changes nothing. Storage write failures
// are logged and otherwise ignored.
func (m *Manager) Update(ctx context.Context, patch domain.FilterPatch) (domain.FilterCriteria, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	next := patch.Apply(m.criteria)
	if !domain.ValidateMagnitudeRange(next.MagnitudeMin, next.MagnitudeMax) {
		m.mu.Unlock()
		return m.Filters(), domain.ErrInvalidMagnitudeRange
	}
	m.criteria = next
	m.mu.Unlock()

	m.metrics.FilterUpdates.Inc()
	m.persist(ctx, next)
	return next.Clone(), nil
}

// SetQuickFilter shows everything at or above minMagnitude, clearing the
// upper bound and the location text.
func (m *Manager) SetQuickFilter(ctx context.Context, minMagnitude float64) (domain.FilterCriteria, error) {
	return m.Update(ctx, domain.FilterPatch{
		MagnitudeMin: domain.Some(domain.Float(minMagnitude)),
		MagnitudeMax: domain.Some[*float64](nil),
		LocationText: domain.Some(""),
	})
}

// Clear resets every criterion to its default.
func (m *Manager) Clear(ctx context.Context) domain.FilterCriteria {
	c, _ := m.Update(ctx, domain.FilterPatch{
		MagnitudeMin: domain.Some[*float64](nil),
		MagnitudeMax: domain.Some[*float64](nil),
		LocationText: domain.Some(""),
	})
	return c
}

func (m *Manager) persist(ctx context.Context, c domain.FilterCriteria) {
	data, err := json.Marshal(c)
	if err != nil {
		m.logger.Warn("encode filter criteria failed", "error", err)
		m.metrics.FilterStorageErrors.WithLabelValues("encode").Inc()
		return
	}
	if err := m.storage.Set(ctx, StorageKey, data); err != nil {
		m.logger.Warn("persist filter criteria failed, continuing in memory", "error", err, "key", StorageKey)
		m.metrics.FilterStorageErrors.WithLabelValues("write").Inc()
	}
}

func (m *Manager) restore(ctx context.Context) domain.FilterCriteria {
	data, err := m.storage.Get(ctx, StorageKey)
	if errors.Is(err, ErrNotFound) {
		return domain.DefaultFilterCriteria()
	}
	if err != nil {
		m.logger.Warn("read filter criteria failed, using defaults", "error", err, "key", StorageKey)
		m.metrics.FilterStorageErrors.WithLabelValues("read").Inc()
		return domain.DefaultFilterCriteria()
	}

	c, err := decodeCriteria(data)
	if err != nil {
		m.logger.Warn("stored filter criteria invalid, using defaults", "error", err, "key", StorageKey)
		m.metrics.FilterStorageErrors.WithLabelValues("decode").Inc()
		return domain.DefaultFilterCriteria()
	}

	m.logger.Info("filter criteria restored", "active", c.HasActive())
	return c
}

// storedCriteria uses json.RawMessage so a missing field can be told apart
// from an explicit null.
type storedCriteria struct {
	MagnitudeMin json.RawMessage `json:"magnitudeMin"`
	MagnitudeMax json.RawMessage `json:"magnitudeMax"`
	LocationText json.RawMessage `json:"locationText"`
}

func decodeCriteria(data []byte) (domain.FilterCriteria, error) {
	var s storedCriteria
	if err := json.Unmarshal(data, &s); err != nil {
		return domain.FilterCriteria{}, fmt.Errorf("decode: %w", err)
	}
	if s.MagnitudeMin == nil || s.MagnitudeMax == nil || s.LocationText == nil {
		return domain.FilterCriteria{}, errors.New("missing field")
	}

	var c domain.FilterCriteria
	if err := json.Unmarshal(s.MagnitudeMin, &c.MagnitudeMin); err != nil {
		return domain.FilterCriteria{}, fmt.Errorf("magnitudeMin: %w", err)
	}
	if err := json.Unmarshal(s.MagnitudeMax, &c.MagnitudeMax); err != nil {
		return domain.FilterCriteria{}, fmt.Errorf("magnitudeMax: %w", err)
	}
	if err := json.Unmarshal(s.LocationText, &c.LocationText); err != nil {
		return domain.FilterCriteria{}, fmt.Errorf("locationText: %w", err)
	}
	if !domain.ValidateMagnitudeRange(c.MagnitudeMin, c.MagnitudeMax) {
		return domain.FilterCriteria{}, domain.ErrInvalidMagnitudeRange
	}
	return c, nil
}
