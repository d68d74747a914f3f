package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/quake-feed-service/internal/adapter/http"
	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/filters"
	"github.com/couchcryptid/quake-feed-service/internal/observability"
	"github.com/couchcryptid/quake-feed-service/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

type stubFetcher struct {
	doc domain.FeedDocument
	err error
}

func (f *stubFetcher) FetchFeed(ctx context.Context) (domain.FeedDocument, error) {
	if err := ctx.Err(); err != nil {
		return domain.FeedDocument{}, err
	}
	return f.doc, f.err
}

func feature(id, place string, mag, lon, lat float64) any {
	return map[string]any{
		"id":         id,
		"properties": map[string]any{"mag": mag, "place": place, "time": float64(1714132800000)},
		"geometry":   map[string]any{"coordinates": []any{lon, lat, 10.0}},
	}
}

var sampleFeed = domain.FeedDocument{Features: []any{
	feature("ak1", "50 km S of Anchorage, Alaska", 5.5, -149.9, 60.7),
	feature("ca1", "5 km NW of Ridgecrest, CA", 2.1, -117.7, 35.6),
	feature("ak2", "Central Alaska", 3.4, -150.1, 63.2),
}}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, fetcher *stubFetcher, load bool) (*httpadapter.Server, *store.EventStore) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	fm := filters.NewManager(context.Background(), filters.NewMemoryStorage(), discardLogger(), metrics)
	s := store.New(fetcher, fm, discardLogger(), metrics)
	if load {
		require.NoError(t, s.FetchEarthquakes(context.Background()))
	}
	focus := httpadapter.FocusConfig{MaxAttempts: 3, RetryDelay: time.Millisecond}
	return httpadapter.NewServer(":0", s, focus, discardLogger()), s
}

func do(t *testing.T, srv *httpadapter.Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, r))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// --- operational endpoints ---

func TestHealthzReturns200(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: sampleFeed}, false)

	rec := do(t, srv, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: sampleFeed}, false)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodGet, "/readyz", "").Code)

	srv, _ = newTestServer(t, &stubFetcher{doc: sampleFeed}, true)
	assert.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/readyz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: sampleFeed}, false)

	rec := do(t, srv, http.MethodGet, "/metrics", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- collection ---

func TestEarthquakes(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: sampleFeed}, true)

	rec := do(t, srv, http.MethodGet, "/api/earthquakes", "")

	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]domain.Event](t, rec)
	assert.Len(t, events, 3)
	assert.Equal(t, "ak1", events[0].ID)
}

func TestFilteredPagination(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: sampleFeed}, true)

	rec := do(t, srv, http.MethodGet, "/api/earthquakes/filtered?page=2&per_page=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[map[string]any](t, rec)
	assert.InDelta(t, 2.0, page["page"], 0)
	assert.InDelta(t, 3.0, page["total"], 0)
	assert.InDelta(t, 2.0, page["totalPages"], 0)
	rows := page["events"].([]any)
	require.Len(t, rows, 1)
	row := rows[0].(map[string]any)
	assert.Equal(t, "ak2", row["id"])
	assert.Equal(t, "low", row["tier"])
	assert.Equal(t, "amber", row["color"])
	assert.NotEmpty(t, row["relativeTime"])
}

func TestFilteredPagination_BadParam(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: sampleFeed}, true)

	rec := do(t, srv, http.MethodGet, "/api/earthquakes/filtered?page=two", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFilteredPagination_HugePage(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: sampleFeed}, true)

	rec := do(t, srv, http.MethodGet, "/api/earthquakes/filtered?page=4611686018427387904&per_page=4", "")

	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[map[string]any](t, rec)
	assert.Empty(t, page["events"])
	assert.InDelta(t, 1.0, page["totalPages"], 0)
}

func TestStatusAndStatistics(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: sampleFeed}, true)

	status := decode[map[string]any](t, do(t, srv, http.MethodGet, "/api/status", ""))
	assert.Equal(t, false, status["loading"])
	assert.InDelta(t, 3.0, status["totalCount"], 0)
	assert.Equal(t, false, status["hasActiveFilters"])

	stats := decode[domain.Summary](t, do(t, srv, http.MethodGet, "/api/statistics", ""))
	assert.Equal(t, 3, stats.FilteredCount)
	assert.InDelta(t, 5.5, stats.MaxMagnitude, 1e-9)
	assert.InDelta(t, 11.0/3, stats.AvgMagnitude, 1e-9)
}

func TestRefresh(t *testing.T) {
	fetcher := &stubFetcher{doc: sampleFeed}
	srv, s := newTestServer(t, fetcher, false)

	rec := do(t, srv, http.MethodPost, "/api/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, s.Len())

	fetcher.err = errors.New("feed API error: status 502")
	rec = do(t, srv, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "status 502")
	assert.Equal(t, 3, s.Len())
}

func TestRefresh_ClientDisconnectDoesNotCancelFetch(t *testing.T) {
	srv, s := newTestServer(t, &stubFetcher{doc: sampleFeed}, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil).WithContext(ctx))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, s.Len())
	assert.Empty(t, s.Error())
}

// --- filters ---

func TestPatchFilters(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: sampleFeed}, true)

	rec := do(t, srv, http.MethodPatch, "/api/filters", `{"locationText":"alaska"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodPatch, "/api/filters", `{"magnitudeMin":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[domain.FilterCriteria](t, rec)
	assert.Equal(t, "alaska", c.LocationText, "absent keys are left unchanged")
	require.NotNil(t, c.MagnitudeMin)

	markers := decode[[]map[string]any](t, do(t, srv, http.MethodGet, "/api/markers", ""))
	require.Len(t, markers, 1)
	assert.Equal(t, "ak1", markers[0]["id"])
	assert.Equal(t, "medium", markers[0]["tier"])

	rec = do(t, srv, http.MethodPatch, "/api/filters", `{"magnitudeMin":null}`)
	c = decode[domain.FilterCriteria](t, rec)
	assert.Nil(t, c.MagnitudeMin)
}

func TestPatchFilters_InvertedRange(t *testing.T) {
	srv, s := newTestServer(t, &stubFetcher{doc: sampleFeed}, true)

	rec := do(t, srv, http.MethodPatch, "/api/filters", `{"magnitudeMin":6,"magnitudeMax":2}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, domain.DefaultFilterCriteria(), s.Filters())
}

func TestPatchFilters_BadBody(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: sampleFeed}, true)

	tests := map[string]string{
		"not json":      `{`,
		"string bound":  `{"magnitudeMin":"4"}`,
		"numeric text":  `{"locationText":5}`,
		"top-level arr": `[]`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPatch, "/api/filters", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestQuickFilterAndClear(t *testing.T) {
	srv, s := newTestServer(t, &stubFetcher{doc: sampleFeed}, true)

	rec := do(t, srv, http.MethodPost, "/api/filters/quick?min=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, s.FilteredEarthquakes(), 2)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/filters/quick?min=NaN", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/filters/quick", "").Code)

	rec = do(t, srv, http.MethodDelete, "/api/filters", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.DefaultFilterCriteria(), decode[domain.FilterCriteria](t, rec))
	assert.Len(t, s.FilteredEarthquakes(), 3)
}

// --- focus ---

func TestFocusLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: sampleFeed}, true)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodGet, "/api/focus", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPut, "/api/focus", `{"id":"nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPut, "/api/focus", `{}`).Code)

	rec := do(t, srv, http.MethodPut, "/api/focus", `{"id":"ca1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ca1", decode[domain.Event](t, do(t, srv, http.MethodGet, "/api/focus", "")).ID)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/api/focus", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodGet, "/api/focus", "").Code)
}

func TestFocusTarget(t *testing.T) {
	srv, s := newTestServer(t, &stubFetcher{doc: sampleFeed}, true)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodGet, "/api/focus/target", "").Code)

	_, err := s.SelectForFocus("ak1")
	require.NoError(t, err)

	rec := do(t, srv, http.MethodGet, "/api/focus/target", "")
	require.Equal(t, http.StatusOK, rec.Code)
	target := decode[store.FocusTarget](t, rec)
	assert.Equal(t, "ak1", target.Event.ID)
	assert.Equal(t, domain.FocusZoomLevel, target.View.Zoom)

	_, pending := s.SelectedEventForFocus()
	assert.False(t, pending)
}

func TestFocusTarget_NotLoaded(t *testing.T) {
	srv, s := newTestServer(t, &stubFetcher{doc: sampleFeed}, false)
	s.SetSelectedEventForFocus(domain.Event{ID: "x", Longitude: 1, Latitude: 1})

	rec := do(t, srv, http.MethodGet, "/api/focus/target", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// --- projections ---

func TestChartLegendView(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: sampleFeed}, true)

	chart := decode[domain.ChartSeries](t, do(t, srv, http.MethodGet, "/api/chart", ""))
	assert.Equal(t, "Earthquake Magnitude Timeline", chart.Title)
	assert.Equal(t, "3 earthquakes recorded", chart.Subtext)

	legend := decode[[]map[string]any](t, do(t, srv, http.MethodGet, "/api/legend", ""))
	require.Len(t, legend, 4)
	assert.Equal(t, "high", legend[0]["tier"])

	view := decode[domain.View](t, do(t, srv, http.MethodGet, "/api/view", ""))
	assert.Equal(t, 5, view.Zoom)
}

func TestViewEmpty(t *testing.T) {
	srv, _ := newTestServer(t, &stubFetcher{doc: domain.FeedDocument{}}, true)

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodGet, "/api/view", "").Code)
}
