package domain

import "math"

// Magnitude thresholds for the severity tiers (inclusive lower bounds).
const (
	HighMagnitude   = 7.0
	MediumMagnitude = 5.0
	LowMagnitude    = 3.0
)

// Marker radius bounds in pixels.
const (
	MinMarkerRadius        = 3.0
	MaxMarkerRadius        = 15.0
	markerRadiusMultiplier = 2.0
)

// Tier is a severity classification of magnitude.
type Tier int

const (
	TierMinor Tier = iota
	TierLow
	TierMedium
	TierHigh
)

type tierStyle struct {
	name   string
	label  string
	rgba   string
	hex    string
	badge  string
	ranges string
}

// tierStyles is the only source of per-tier presentation attributes.
var tierStyles = [...]tierStyle{
	TierMinor:  {name: "minor", label: "Minor", rgba: "rgba(0, 255, 0, 0.7)", hex: "#4caf50", badge: "green", ranges: "< 3.0"},
	TierLow:    {name: "low", label: "Low", rgba: "rgba(255, 193, 7, 0.7)", hex: "#ffeb3b", badge: "amber", ranges: "3.0 - 5.0"},
	TierMedium: {name: "medium", label: "Medium", rgba: "rgba(255, 165, 0, 0.7)", hex: "#ff9800", badge: "orange", ranges: "5.0 - 7.0"},
	TierHigh:   {name: "high", label: "High", rgba: "rgba(255, 0, 0, 0.7)", hex: "#f44336", badge: "red", ranges: ">= 7.0"},
}

// ClassifyMagnitude maps a magnitude to its tier. NaN falls through to
// TierMinor because every comparison against it is false.
func ClassifyMagnitude(m float64) Tier {
	switch {
	case m >= HighMagnitude:
		return TierHigh
	case m >= MediumMagnitude:
		return TierMedium
	case m >= LowMagnitude:
		return TierLow
	default:
		return TierMinor
	}
}

func (t Tier) style() tierStyle {
	if t < TierMinor || t > TierHigh {
		return tierStyles[TierMinor]
	}
	return tierStyles[t]
}

// String returns the lowercase tier name.
func (t Tier) String() string { return t.style().name }

// RGBA returns the translucent marker color.
func (t Tier) RGBA() string { return t.style().rgba }

// Hex returns the solid chart color.
func (t Tier) Hex() string { return t.style().hex }

// Badge returns the named chip color.
func (t Tier) Badge() string { return t.style().badge }

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// MagnitudeRGBA is shorthand for ClassifyMagnitude(m).RGBA().
func MagnitudeRGBA(m float64) string { return ClassifyMagnitude(m).RGBA() }

// MagnitudeHex is shorthand for ClassifyMagnitude(m).Hex().
func MagnitudeHex(m float64) string { return ClassifyMagnitude(m).Hex() }

// MagnitudeBadge is shorthand for ClassifyMagnitude(m).Badge().
func MagnitudeBadge(m float64) string { return ClassifyMagnitude(m).Badge() }

// MarkerRadius scales magnitude to a map marker radius clamped to
// [MinMarkerRadius, MaxMarkerRadius].
func MarkerRadius(m float64) float64 {
	if math.IsNaN(m) {
		return MinMarkerRadius
	}
	return math.Max(MinMarkerRadius, math.Min(MaxMarkerRadius, m*markerRadiusMultiplier))
}

// LegendEntry describes one tier for a map or chart legend.
type LegendEntry struct {
	Tier  Tier   `json:"tier"`
	Label string `json:"label"`
	Range string `json:"range"`
	RGBA  string `json:"rgba"`
	Hex   string `json:"hex"`
	Badge string `json:"badge"`
}

// Legend lists every tier from most to least severe.
func Legend() []LegendEntry {
	tiers := []Tier{TierHigh, TierMedium, TierLow, TierMinor}
	out := make([]LegendEntry, 0, len(tiers))
	for _, t := range tiers {
		s := t.style()
		out = append(out, LegendEntry{
			Tier:  t,
			Label: s.label,
			Range: s.ranges,
			RGBA:  s.rgba,
			Hex:   s.hex,
			Badge: s.badge,
		})
	}
	return out
}
