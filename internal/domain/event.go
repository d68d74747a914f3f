package domain

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidMagnitudeRange is returned when a filter update would leave
// magnitudeMin greater than magnitudeMax.
var ErrInvalidMagnitudeRange = errors.New("magnitude minimum exceeds maximum")

// Event is one normalized seismic observation. Events are built fresh on
// every refresh and never mutated after they enter the store.
type Event struct {
	ID        string  `json:"id"`
	Place     string  `json:"place"`
	Magnitude float64 `json:"magnitude"`
	Time      int64   `json:"time"` // epoch milliseconds
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Depth     float64 `json:"depth"` // kilometers

	// Region is filled by reverse geocoding when the feed had no place.
	Region string `json:"region,omitempty"`
}

// OccurredAt returns the event time as a UTC time.Time.
func (e Event) OccurredAt() time.Time {
	return time.UnixMilli(e.Time).UTC()
}

// Tier classifies the event magnitude.
func (e Event) Tier() Tier {
	return ClassifyMagnitude(e.Magnitude)
}

// FilterCriteria constrains which events are active. Nil bounds mean no bound.
type FilterCriteria struct {
	MagnitudeMin *float64 `json:"magnitudeMin"`
	MagnitudeMax *float64 `json:"magnitudeMax"`
	LocationText string   `json:"locationText"`
}

// DefaultFilterCriteria returns criteria that match every event.
func DefaultFilterCriteria() FilterCriteria {
	return FilterCriteria{}
}

// HasActive reports whether any criterion narrows the event collection.
func (c FilterCriteria) HasActive() bool {
	return c.MagnitudeMin != nil || c.MagnitudeMax != nil || strings.TrimSpace(c.LocationText) != ""
}

// Clone returns a deep copy so callers cannot reach the bound pointers.
func (c FilterCriteria) Clone() FilterCriteria {
	out := FilterCriteria{LocationText: c.LocationText}
	if c.MagnitudeMin != nil {
		out.MagnitudeMin = Float(*c.MagnitudeMin)
	}
	if c.MagnitudeMax != nil {
		out.MagnitudeMax = Float(*c.MagnitudeMax)
	}
	return out
}

// Optional carries a value together with whether it was supplied at all.
type Optional[T any] struct {
	Present bool
	Value   T
}

// Some marks v as supplied.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Present: true, Value: v}
}

// FilterPatch is a partial FilterCriteria. Fields left absent keep their
// current value; a present nil bound clears that bound.
type FilterPatch struct {
	MagnitudeMin Optional[*float64]
	MagnitudeMax Optional[*float64]
	LocationText Optional[string]
}

// Apply merges the patch into c and returns the result.
func (p FilterPatch) Apply(c FilterCriteria) FilterCriteria {
	out := c.Clone()
	if p.MagnitudeMin.Present {
		out.MagnitudeMin = cloneFloat(p.MagnitudeMin.Value)
	}
	if p.MagnitudeMax.Present {
		out.MagnitudeMax = cloneFloat(p.MagnitudeMax.Value)
	}
	if p.LocationText.Present {
		out.LocationText = p.LocationText.Value
	}
	return out
}

// Statistics summarizes a collection of events.
type Statistics struct {
	MaxMagnitude float64 `json:"maxMagnitude"`
	AvgMagnitude float64 `json:"avgMagnitude"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return Float(*v)
}
