// Command genmock writes a deterministic USGS-style GeoJSON feed for local
// runs and integration tests. A share of the features carry the defects the
// live feed occasionally has (missing ids, places, or times, string-typed
// numbers, non-positive magnitudes) so normalization is exercised end to
// end. It runs the output through the real domain package and prints the
// numbers tests assert on.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/all_week.geojson -count 200 -seed 42
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// feedEnd is the newest event time in the generated week.
var feedEnd = time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)

type region struct {
	name     string
	lon, lat float64
	spread   float64
	netCode  string
	magScale float64 // multiplies the base magnitude draw
}

var regions = []region{
	{name: "Central Alaska", lon: -150.0, lat: 63.0, spread: 2.5, netCode: "ak", magScale: 1.0},
	{name: "Southern California", lon: -117.0, lat: 34.0, spread: 1.5, netCode: "ci", magScale: 0.9},
	{name: "Northern California", lon: -122.8, lat: 38.8, spread: 0.6, netCode: "nc", magScale: 0.8},
	{name: "Hawaii", lon: -155.3, lat: 19.4, spread: 0.4, netCode: "hv", magScale: 0.9},
	{name: "Puerto Rico", lon: -66.8, lat: 17.9, spread: 0.5, netCode: "pr", magScale: 1.0},
	{name: "off the east coast of Honshu, Japan", lon: 142.3, lat: 38.1, spread: 2.0, netCode: "us", magScale: 1.8},
	{name: "Tarapaca, Chile", lon: -69.5, lat: -20.1, spread: 1.5, netCode: "us", magScale: 1.7},
	{name: "Fiji region", lon: -178.2, lat: -17.9, spread: 1.5, netCode: "us", magScale: 1.9},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the GeoJSON feed")
	count := flag.Int("count", 200, "number of features")
	seed := flag.Uint64("seed", 42, "random seed")
	defects := flag.Float64("defects", 0.1, "fraction of features with feed defects")
	flag.Parse()

	if *out == "" || *count <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	features := generate(rand.New(rand.NewPCG(*seed, *seed)), *count, *defects)
	doc := map[string]any{
		"type": "FeatureCollection",
		"metadata": map[string]any{
			"generated": feedEnd.UnixMilli(),
			"title":     "USGS All Earthquakes, Past Week (mock)",
			"count":     len(features),
		},
		"features": features,
	}
	if err := writeJSON(*out, doc); err != nil {
		return fmt.Errorf("writing feed: %w", err)
	}
	log.Printf("wrote %d features to %s", len(features), *out)

	domain.SetClock(clockwork.NewFakeClockAt(feedEnd))
	defer domain.SetClock(nil)
	printStats(features)
	return nil
}

func generate(rng *rand.Rand, count int, defectRate float64) []any {
	week := int64(7 * 24 * time.Hour / time.Millisecond)
	features := make([]any, 0, count)

	for i := range count {
		r := regions[rng.IntN(len(regions))]
		// Gutenberg-Richter-ish: most events are small.
		mag := round(r.magScale*rng.ExpFloat64()*0.9+0.2, 1)
		lon := round(r.lon+(rng.Float64()*2-1)*r.spread, 4)
		lat := round(r.lat+(rng.Float64()*2-1)*r.spread, 4)
		depth := round(rng.Float64()*60, 2)
		ts := feedEnd.UnixMilli() - rng.Int64N(week)

		props := map[string]any{
			"mag":   mag,
			"place": fmt.Sprintf("%d km %s of %s", 1+rng.IntN(80), bearing(rng), r.name),
			"time":  ts,
		}
		feature := map[string]any{
			"type":       "Feature",
			"id":         fmt.Sprintf("%s%08d", r.netCode, 70000000+i),
			"properties": props,
			"geometry": map[string]any{
				"type":        "Point",
				"coordinates": []any{lon, lat, depth},
			},
		}

		if rng.Float64() < defectRate {
			applyDefect(rng, feature, props)
		}
		features = append(features, feature)
	}
	return features
}

func applyDefect(rng *rand.Rand, feature, props map[string]any) {
	switch rng.IntN(6) {
	case 0:
		delete(feature, "id")
	case 1:
		delete(props, "place")
	case 2:
		props["place"] = nil
	case 3:
		props["mag"] = strconv.FormatFloat(props["mag"].(float64), 'f', -1, 64)
	case 4:
		props["mag"] = -0.4
	case 5:
		delete(props, "time")
	}
}

func bearing(rng *rand.Rand) string {
	dirs := [...]string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}
	return dirs[rng.IntN(len(dirs))]
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(features []any) {
	// Round-trip through JSON so numbers are float64 as the live client sees them.
	data, err := json.Marshal(map[string]any{"features": features})
	if err != nil {
		log.Printf("stats: %v", err)
		return
	}
	doc, err := domain.ParseFeed(data)
	if err != nil {
		log.Printf("stats: %v", err)
		return
	}
	events := domain.NormalizeFeed(doc)

	tiers := map[domain.Tier]int{}
	var unknown int
	for _, e := range events {
		tiers[e.Tier()]++
		if e.Place == domain.UnknownPlace {
			unknown++
		}
	}
	stats := domain.DeriveStatistics(events)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Features: %d, retained: %d, discarded: %d\n", len(features), len(events), len(features)-len(events))
	fmt.Printf("By tier: minor=%d, low=%d, medium=%d, high=%d\n",
		tiers[domain.TierMinor], tiers[domain.TierLow], tiers[domain.TierMedium], tiers[domain.TierHigh])
	fmt.Printf("Unknown place: %d\n", unknown)
	fmt.Printf("Max magnitude: %g, mean: %.3f\n", stats.MaxMagnitude, stats.AvgMagnitude)
	fmt.Printf("Magnitude >= %g: %d\n", domain.MediumMagnitude,
		len(domain.ApplyFilters(events, domain.FilterCriteria{MagnitudeMin: domain.Float(domain.MediumMagnitude)})))
	if v, ok := domain.FitView(events); ok {
		fmt.Printf("Fit view: center (%.2f, %.2f) zoom %d\n", v.Longitude, v.Latitude, v.Zoom)
	}
}
