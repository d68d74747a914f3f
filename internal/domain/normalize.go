package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedFeed is returned when a feed document is not an object with a
// features array.
var ErrMalformedFeed = errors.New("malformed feed document")

// UnknownPlace is used when a feature carries no usable place.
const UnknownPlace = "Unknown"

// FeedDocument is a GeoJSON FeatureCollection whose features are still
// loosely typed.
type FeedDocument struct {
	Features []any
}

// ParseFeed decodes a feed body. Only the top-level shape is checked here;
// individual features are coerced later by Normalize.
func ParseFeed(body []byte) (FeedDocument, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return FeedDocument{}, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	if top == nil {
		return FeedDocument{}, fmt.Errorf("%w: document is null", ErrMalformedFeed)
	}

	rawFeatures, ok := top["features"]
	if !ok {
		return FeedDocument{}, fmt.Errorf("%w: missing features", ErrMalformedFeed)
	}
	if !bytes.HasPrefix(bytes.TrimSpace(rawFeatures), []byte("[")) {
		return FeedDocument{}, fmt.Errorf("%w: features is not an array", ErrMalformedFeed)
	}

	var features []any
	if err := json.Unmarshal(rawFeatures, &features); err != nil {
		return FeedDocument{}, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}
	return FeedDocument{Features: features}, nil
}

// NormalizeFeed normalizes every feature in feed order and keeps only events
// with a positive magnitude.
func NormalizeFeed(doc FeedDocument) []Event {
	events := make([]Event, 0, len(doc.Features))
	for i, f := range doc.Features {
		e := Normalize(f, i)
		if e.Magnitude > 0 {
			events = append(events, e)
		}
	}
	return events
}

// Normalize converts one loosely typed feature into an Event. Each field is
// coerced independently and falls back to its default, so it never fails.
func Normalize(raw any, batchIndex int) Event {
	feature := asObject(raw)
	props := asObject(feature["properties"])
	coords := asArray(asObject(feature["geometry"])["coordinates"])

	e := Event{
		ID:        normalizeID(feature["id"], props["time"], batchIndex),
		Place:     normalizePlace(props["place"]),
		Magnitude: numberOr(props["mag"], 0),
		Longitude: numberOr(indexOf(coords, 0), 0),
		Latitude:  numberOr(indexOf(coords, 1), 0),
		Depth:     numberOr(indexOf(coords, 2), 0),
	}

	if t, ok := coerceTime(props["time"]); ok {
		e.Time = t
	} else {
		e.Time = clock.Now().UnixMilli()
	}
	return e
}

// coerceTime is coerceNumber limited to values that fit in int64
// milliseconds; anything outside that range counts as absent.
func coerceTime(v any) (int64, bool) {
	t, ok := coerceNumber(v)
	if !ok || t < math.MinInt64 || t >= math.MaxInt64 {
		return 0, false
	}
	return int64(t), true
}

func normalizeID(rawID, rawTime any, batchIndex int) string {
	if id, ok := truthyString(rawID); ok {
		return id
	}
	if t, ok := scalarString(rawTime); ok {
		return fmt.Sprintf("eq-%d-%s", batchIndex, t)
	}
	return fmt.Sprintf("eq-%d", batchIndex)
}

func normalizePlace(v any) string {
	if place, ok := truthyString(v); ok {
		return place
	}
	return UnknownPlace
}

// coerceNumber converts a decoded JSON value to a finite float64. Numeric
// strings are parsed after trimming. Booleans map to 1 and 0. Anything else
// reports false.
func coerceNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, isFinite(x)
	case json.Number:
		f, err := x.Float64()
		return f, err == nil && isFinite(f)
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !isFinite(f) {
			return 0, false
		}
		return f, true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func numberOr(v any, fallback float64) float64 {
	if f, ok := coerceNumber(v); ok {
		return f
	}
	return fallback
}

// truthyString stringifies non-empty strings, non-zero numbers and true.
func truthyString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case float64:
		if x == 0 || math.IsNaN(x) {
			return "", false
		}
		return formatNumber(x), true
	case json.Number:
		return x.String(), x.String() != "0"
	case bool:
		return "true", x
	default:
		return "", false
	}
}

// scalarString stringifies any JSON scalar other than null.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return formatNumber(x), true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func asObject(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asArray(v any) []any {
	a, _ := v.([]any)
	return a
}

func indexOf(a []any, i int) any {
	if i < len(a) {
		return a[i]
	}
	return nil
}
