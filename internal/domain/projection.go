package domain

import (
	"fmt"
	"math"
	"slices"
	"time"
)

const (
	chartTitle      = "Earthquake Magnitude Timeline"
	chartEmptyTitle = "No data available"
)

// ChartSeries is the magnitude-over-time series for the timeline chart.
type ChartSeries struct {
	Title      string      `json:"title"`
	Subtext    string      `json:"subtext,omitempty"`
	Times      []time.Time `json:"times"`
	Magnitudes []float64   `json:"magnitudes"`
	Colors     []string    `json:"colors"`
}

// BuildChartSeries sorts events by time and projects them into parallel
// series. The input slice is not modified.
func BuildChartSeries(events []Event) ChartSeries {
	if len(events) == 0 {
		return ChartSeries{
			Title:      chartEmptyTitle,
			Times:      []time.Time{},
			Magnitudes: []float64{},
			Colors:     []string{},
		}
	}

	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b Event) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		default:
			return 0
		}
	})

	s := ChartSeries{
		Title:      chartTitle,
		Subtext:    fmt.Sprintf("%d earthquakes recorded", len(events)),
		Times:      make([]time.Time, len(sorted)),
		Magnitudes: make([]float64, len(sorted)),
		Colors:     make([]string, len(sorted)),
	}
	for i, e := range sorted {
		s.Times[i] = e.OccurredAt()
		s.Magnitudes[i] = e.Magnitude
		s.Colors[i] = MagnitudeHex(e.Magnitude)
	}
	return s
}

// Marker is a map marker for one event.
type Marker struct {
	ID        string  `json:"id"`
	Place     string  `json:"place"`
	Magnitude float64 `json:"magnitude"`
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Tier      Tier    `json:"tier"`
	Color     string  `json:"color"`
	Radius    float64 `json:"radius"`
}

// BuildMarkers projects events onto map markers, skipping events whose
// coordinates are out of bounds.
func BuildMarkers(events []Event) []Marker {
	markers := make([]Marker, 0, len(events))
	for _, e := range events {
		if !IsValidCoordinate(e.Longitude, e.Latitude) {
			continue
		}
		tier := e.Tier()
		markers = append(markers, Marker{
			ID:        e.ID,
			Place:     e.Place,
			Magnitude: e.Magnitude,
			Longitude: e.Longitude,
			Latitude:  e.Latitude,
			Tier:      tier,
			Color:     tier.RGBA(),
			Radius:    MarkerRadius(e.Magnitude),
		})
	}
	return markers
}

// FocusZoomLevel is the zoom used when centering the map on one event.
const FocusZoomLevel = 11

// View is a map center and zoom level.
type View struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	Zoom      int     `json:"zoom"`
}

// FitView frames every event with valid coordinates. The center is the
// middle of the bounding box and the zoom comes from its widest side. It
// reports false when no event can be placed on the map.
func FitView(events []Event) (View, bool) {
	minLon, maxLon := math.Inf(1), math.Inf(-1)
	minLat, maxLat := math.Inf(1), math.Inf(-1)
	placed := 0
	for _, e := range events {
		if !IsValidCoordinate(e.Longitude, e.Latitude) {
			continue
		}
		placed++
		minLon, maxLon = math.Min(minLon, e.Longitude), math.Max(maxLon, e.Longitude)
		minLat, maxLat = math.Min(minLat, e.Latitude), math.Max(maxLat, e.Latitude)
	}
	if placed == 0 {
		return View{}, false
	}

	v := View{
		Longitude: (minLon + maxLon) / 2,
		Latitude:  (minLat + maxLat) / 2,
		Zoom:      FocusZoomLevel,
	}
	if extent := math.Max(maxLon-minLon, maxLat-minLat); extent > 0 {
		v.Zoom = FocusZoom(extent)
	}
	return v, true
}

// FocusZoom picks a map zoom level from the coordinate extent (in degrees)
// of the area to show. Wider extents zoom further out.
func FocusZoom(extent float64) int {
	extent = math.Abs(extent)
	switch {
	case extent > 180:
		return 2
	case extent > 90:
		return 3
	case extent > 45:
		return 4
	case extent > 20:
		return 5
	case extent > 10:
		return 6
	case extent > 5:
		return 7
	case extent > 2:
		return 8
	default:
		return 9
	}
}

// FormatRelativeTime renders the age of t relative to now, e.g. "3 hours ago".
func FormatRelativeTime(t, now time.Time) string {
	diff := now.Sub(t)
	minutes := int(diff / time.Minute)
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return plural(days, "day") + " ago"
	case hours > 0:
		return plural(hours, "hour") + " ago"
	case minutes > 0:
		return plural(minutes, "minute") + " ago"
	default:
		return "Just now"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
