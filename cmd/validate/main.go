// Command validate checks a USGS GeoJSON feed file against the rules the
// service applies at ingest: document shape, normalization defaults,
// coordinate bounds, and the magnitude tier distribution.
//
// Usage:
//
//	go run ./cmd/validate -feed data/mock/all_week.geojson
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/jonboulle/clockwork"
)

// fixedNow stands in for the fetch time of features without one, so the
// report is reproducible.
var fixedNow = time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name     string
	errors   []string
	warnings []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) warnf(format string, args ...any) {
	p.warnings = append(p.warnings, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	feedPath := flag.String("feed", "", "path to a USGS GeoJSON feed file")
	strict := flag.Bool("strict", false, "treat warnings as failures")
	flag.Parse()

	if *feedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(os.Stdout, *feedPath, *strict))
}

func run(out io.Writer, feedPath string, strict bool) int {
	domain.SetClock(clockwork.NewFakeClockAt(fixedNow))
	defer domain.SetClock(nil)

	fmt.Fprintln(out, "=== Earthquake Feed Validation ===")
	fmt.Fprintln(out)

	body, err := os.ReadFile(feedPath)
	if err != nil {
		fmt.Fprintf(out, "FATAL: read feed: %v\n", err)
		return 1
	}

	doc, shape := validateShape(body)
	if !shape.passed() {
		report(out, []*phase{shape}, strict)
		return 1
	}

	events := domain.NormalizeFeed(doc)
	phases := []*phase{
		shape,
		validateDefaults(doc),
		validateCoordinates(events),
		validateTiers(out, events),
	}

	fmt.Fprintf(out, "Features: %d, retained: %d, discarded: %d\n\n",
		len(doc.Features), len(events), len(doc.Features)-len(events))

	return report(out, phases, strict)
}

func report(out io.Writer, phases []*phase, strict bool) int {
	allPassed := true
	for _, p := range phases {
		failed := !p.passed() || (strict && len(p.warnings) > 0)
		status := "\033[32mPASS\033[0m"
		if failed {
			status = fmt.Sprintf("\033[31mFAIL (%d errors, %d warnings)\033[0m", len(p.errors), len(p.warnings))
			allPassed = false
		} else if len(p.warnings) > 0 {
			status = fmt.Sprintf("\033[33mPASS (%d warnings)\033[0m", len(p.warnings))
		}
		fmt.Fprintf(out, "  %-40s %s\n", p.name, status)
	}

	for _, p := range phases {
		if len(p.errors) == 0 && len(p.warnings) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [E%d] %s\n", i+1, e)
		}
		for i, w := range p.warnings {
			fmt.Fprintf(out, "  [W%d] %s\n", i+1, w)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

// ── Phase 1: Document shape ──

func validateShape(body []byte) (domain.FeedDocument, *phase) {
	p := &phase{name: "Phase 1: Document Shape"}
	doc, err := domain.ParseFeed(body)
	if err != nil {
		p.errorf("%v", err)
		return doc, p
	}
	if len(doc.Features) == 0 {
		p.warnf("feed has no features")
	}
	for i, f := range doc.Features {
		if _, ok := f.(map[string]any); !ok {
			p.warnf("feature %d is %T, not an object", i, f)
		}
	}
	return doc, p
}

// ── Phase 2: Normalization defaults ──
// Reports every field that had to fall back to a default.

func validateDefaults(doc domain.FeedDocument) *phase {
	p := &phase{name: "Phase 2: Normalization Defaults"}
	seen := make(map[string]int, len(doc.Features))

	for i, raw := range doc.Features {
		e := domain.Normalize(raw, i)
		if prev, ok := seen[e.ID]; ok {
			p.errorf("feature %d: id %q duplicates feature %d", i, e.ID, prev)
		} else {
			seen[e.ID] = i
		}

		feature, _ := raw.(map[string]any)
		if _, ok := feature["id"].(string); !ok {
			p.warnf("feature %d: no id, synthesized %q", i, e.ID)
		}
		if e.Place == domain.UnknownPlace {
			p.warnf("feature %d (%s): no place", i, e.ID)
		}
		if e.Time == fixedNow.UnixMilli() {
			p.warnf("feature %d (%s): no usable time, defaulted to fetch time", i, e.ID)
		}
		if e.Magnitude <= 0 {
			p.warnf("feature %d (%s): magnitude %g, discarded", i, e.ID, e.Magnitude)
		}
	}
	return p
}

// ── Phase 3: Coordinates ──

func validateCoordinates(events []domain.Event) *phase {
	p := &phase{name: "Phase 3: Coordinate Validity"}
	for _, e := range events {
		if !domain.IsValidCoordinate(e.Longitude, e.Latitude) {
			p.errorf("%s: coordinates (%g, %g) out of range, event cannot be mapped", e.ID, e.Longitude, e.Latitude)
			continue
		}
		if e.Longitude == 0 && e.Latitude == 0 {
			p.warnf("%s: coordinates are (0, 0), likely missing geometry", e.ID)
		}
	}
	return p
}

// ── Phase 4: Tier distribution ──

func validateTiers(out io.Writer, events []domain.Event) *phase {
	p := &phase{name: "Phase 4: Tier Distribution"}

	counts := make(map[domain.Tier]int)
	for _, e := range events {
		counts[e.Tier()]++
	}

	fmt.Fprintln(out, "Tier distribution:")
	for _, entry := range domain.Legend() {
		fmt.Fprintf(out, "  %-8s %-10s %5d\n", entry.Label, entry.Range, counts[entry.Tier])
	}
	fmt.Fprintln(out)

	if len(events) > 0 && counts[domain.TierMinor] == 0 {
		p.warnf("no minor events; a live weekly feed is dominated by them")
	}
	stats := domain.DeriveStatistics(events)
	if stats.MaxMagnitude > 10 {
		p.errorf("max magnitude %g exceeds any recorded earthquake", stats.MaxMagnitude)
	}
	return p
}
