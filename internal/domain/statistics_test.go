package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatistics(t *testing.T) {
	tests := []struct {
		name     string
		events   []Event
		expected Statistics
	}{
		{"empty", nil, Statistics{}},
		{"single", []Event{{Magnitude: 4.4}}, Statistics{MaxMagnitude: 4.4, AvgMagnitude: 4.4}},
		{
			"three events",
			[]Event{{Magnitude: 3}, {Magnitude: 5}, {Magnitude: 7}},
			Statistics{MaxMagnitude: 7, AvgMagnitude: 5},
		},
		{
			"max not first",
			[]Event{{Magnitude: 1}, {Magnitude: 9}, {Magnitude: 2}},
			Statistics{MaxMagnitude: 9, AvgMagnitude: 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatistics(tt.events)
			assert.InDelta(t, tt.expected.MaxMagnitude, got.MaxMagnitude, 1e-9)
			assert.InDelta(t, tt.expected.AvgMagnitude, got.AvgMagnitude, 1e-9)
		})
	}
}

func TestSummarize(t *testing.T) {
	all := sampleEvents()
	filtered := ApplyFilters(all, FilterCriteria{MagnitudeMin: Float(7)})

	s := Summarize(all, filtered)

	assert.Equal(t, 6, s.TotalCount)
	assert.Equal(t, 2, s.FilteredCount)
	assert.InDelta(t, 7.1, s.MaxMagnitude, 1e-9)
	assert.InDelta(t, 7.05, s.AvgMagnitude, 1e-9)
}
