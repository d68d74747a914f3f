package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/couchcryptid/quake-feed-service/internal/store"
)

const maxBodyBytes = 1 << 16

// Store is the subset of store.EventStore the API needs.
type Store interface {
	CheckReadiness(ctx context.Context) error
	FetchEarthquakes(ctx context.Context) error
	Earthquakes() []domain.Event
	FilteredEarthquakes() []domain.Event
	Loading() bool
	Error() string
	Summary() domain.Summary

	Filters() domain.FilterCriteria
	UpdateFilters(ctx context.Context, patch domain.FilterPatch) (domain.FilterCriteria, error)
	SetQuickFilter(ctx context.Context, minMagnitude float64) (domain.FilterCriteria, error)
	ClearFilters(ctx context.Context) domain.FilterCriteria

	SelectedEventForFocus() (domain.Event, bool)
	SelectForFocus(id string) (domain.Event, error)
	ClearSelectedEventForFocus()
	AwaitFocus(ctx context.Context, surface store.SurfaceProbe, maxAttempts int, delay time.Duration) (store.FocusTarget, error)
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/earthquakes", s.handleEarthquakes)
	mux.HandleFunc("GET /api/earthquakes/filtered", s.handleFiltered)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/statistics", s.handleStatistics)

	mux.HandleFunc("GET /api/filters", s.handleGetFilters)
	mux.HandleFunc("PATCH /api/filters", s.handlePatchFilters)
	mux.HandleFunc("DELETE /api/filters", s.handleClearFilters)
	mux.HandleFunc("POST /api/filters/quick", s.handleQuickFilter)

	mux.HandleFunc("GET /api/focus", s.handleGetFocus)
	mux.HandleFunc("PUT /api/focus", s.handleSelectFocus)
	mux.HandleFunc("DELETE /api/focus", s.handleClearFocus)
	mux.HandleFunc("GET /api/focus/target", s.handleFocusTarget)

	mux.HandleFunc("POST /api/refresh", s.handleRefresh)

	mux.HandleFunc("GET /api/markers", s.handleMarkers)
	mux.HandleFunc("GET /api/chart", s.handleChart)
	mux.HandleFunc("GET /api/legend", s.handleLegend)
	mux.HandleFunc("GET /api/view", s.handleView)
}

func (s *Server) handleEarthquakes(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Earthquakes())
}

// eventRow is one table row: the event plus its display fields.
type eventRow struct {
	domain.Event
	Tier     domain.Tier `json:"tier"`
	Color    string      `json:"color"`
	Relative string      `json:"relativeTime"`
}

type filteredPage struct {
	Events     []eventRow `json:"events"`
	Page       int        `json:"page"`
	PerPage    int        `json:"perPage"`
	Total      int        `json:"total"`
	TotalPages int        `json:"totalPages"`
}

func (s *Server) handleFiltered(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	perPage, err := intParam(r, "per_page", domain.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := domain.Paginate(s.store.FilteredEarthquakes(), page, perPage)
	now := domain.Now()
	rows := make([]eventRow, len(p.Events))
	for i, e := range p.Events {
		tier := e.Tier()
		rows[i] = eventRow{
			Event:    e,
			Tier:     tier,
			Color:    tier.Badge(),
			Relative: domain.FormatRelativeTime(e.OccurredAt(), now),
		}
	}
	writeJSON(w, http.StatusOK, filteredPage{
		Events:     rows,
		Page:       p.Page,
		PerPage:    p.PerPage,
		Total:      p.Total,
		TotalPages: p.TotalPages,
	})
}

type statusResponse struct {
	Loading          bool   `json:"loading"`
	Error            string `json:"error,omitempty"`
	TotalCount       int    `json:"totalCount"`
	FilteredCount    int    `json:"filteredCount"`
	HasActiveFilters bool   `json:"hasActiveFilters"`
	FocusPending     bool   `json:"focusPending"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	summary := s.store.Summary()
	_, focus := s.store.SelectedEventForFocus()
	writeJSON(w, http.StatusOK, statusResponse{
		Loading:          s.store.Loading(),
		Error:            s.store.Error(),
		TotalCount:       summary.TotalCount,
		FilteredCount:    summary.FilteredCount,
		HasActiveFilters: s.store.Filters().HasActive(),
		FocusPending:     focus,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Summary())
}

func (s *Server) handleGetFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Filters())
}

func (s *Server) handlePatchFilters(w http.ResponseWriter, r *http.Request) {
	patch, err := decodeFilterPatch(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.store.UpdateFilters(r.Context(), patch)
	s.writeFilters(w, r, c, err)
}

func (s *Server) handleClearFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ClearFilters(r.Context()))
}

func (s *Server) handleQuickFilter(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("min")
	minMag, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(minMag) || math.IsInf(minMag, 0) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid min magnitude %q", raw))
		return
	}
	c, err := s.store.SetQuickFilter(r.Context(), minMag)
	s.writeFilters(w, r, c, err)
}

func (s *Server) writeFilters(w http.ResponseWriter, r *http.Request, c domain.FilterCriteria, err error) {
	if errors.Is(err, domain.ErrInvalidMagnitudeRange) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.logger.ErrorContext(r.Context(), "update filters failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleGetFocus(w http.ResponseWriter, _ *http.Request) {
	e, ok := s.store.SelectedEventForFocus()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

type focusRequest struct {
	ID string `json:"id"`
}

func (s *Server) handleSelectFocus(w http.ResponseWriter, r *http.Request) {
	var req focusRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	e, err := s.store.SelectForFocus(req.ID)
	if errors.Is(err, store.ErrEventNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleClearFocus(w http.ResponseWriter, _ *http.Request) {
	s.store.ClearSelectedEventForFocus()
	w.WriteHeader(http.StatusNoContent)
}

// handleFocusTarget hands the pending focus to a map client. The map can
// only be moved once markers exist, so the surface counts as ready after the
// first successful fetch.
func (s *Server) handleFocusTarget(w http.ResponseWriter, r *http.Request) {
	surface := func(ctx context.Context) bool {
		return s.store.CheckReadiness(ctx) == nil
	}
	target, err := s.store.AwaitFocus(r.Context(), surface, s.focus.MaxAttempts, s.focus.RetryDelay)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, target)
	case errors.Is(err, store.ErrNoFocus):
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, store.ErrInvalidCoordinates):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}

// handleRefresh runs a fetch that outlives a disconnecting client; the feed
// client's timeout bounds it.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.store.FetchEarthquakes(context.WithoutCancel(r.Context())); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.handleStatus(w, r)
}

func (s *Server) handleMarkers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.BuildMarkers(s.store.FilteredEarthquakes()))
}

func (s *Server) handleChart(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.BuildChartSeries(s.store.FilteredEarthquakes()))
}

func (s *Server) handleLegend(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.Legend())
}

func (s *Server) handleView(w http.ResponseWriter, _ *http.Request) {
	v, ok := domain.FitView(s.store.FilteredEarthquakes())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return n, nil
}
