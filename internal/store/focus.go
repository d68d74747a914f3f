package store

import (
	"context"
	"errors"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
)

var (
	// ErrSurfaceNotReady is returned when the map surface never became ready.
	ErrSurfaceNotReady = errors.New("map surface not ready")
	// ErrNoFocus is returned when no event is waiting to be focused.
	ErrNoFocus = errors.New("no focus pending")
	// ErrInvalidCoordinates is returned when the focused event cannot be placed.
	ErrInvalidCoordinates = errors.New("invalid event coordinates")
)

// SurfaceProbe reports whether the map surface can accept a camera move.
type SurfaceProbe func(ctx context.Context) bool

// FocusTarget is the camera move for a focused event.
type FocusTarget struct {
	Event domain.Event `json:"event"`
	View  domain.View  `json:"view"`
}

// AwaitFocus consumes the pending focus event once the surface is ready.
// The surface is probed up to maxAttempts times, sleeping delay before each
// probe. Every outcome other than ErrNoFocus clears the pending slot, so a
// stale selection never lingers after a failed handoff.
func (s *EventStore) AwaitFocus(ctx context.Context, surface SurfaceProbe, maxAttempts int, delay time.Duration) (FocusTarget, error) {
	if _, ok := s.SelectedEventForFocus(); !ok {
		return FocusTarget{}, ErrNoFocus
	}

	if !s.waitForSurface(ctx, surface, maxAttempts, delay) {
		s.ClearSelectedEventForFocus()
		if err := ctx.Err(); err != nil {
			return FocusTarget{}, err
		}
		return FocusTarget{}, ErrSurfaceNotReady
	}

	e, ok := s.takeFocus()
	if !ok {
		return FocusTarget{}, ErrNoFocus
	}
	if !domain.IsValidCoordinate(e.Longitude, e.Latitude) {
		s.logger.Warn("focus event has invalid coordinates",
			"event_id", e.ID,
			"lat", e.Latitude,
			"lon", e.Longitude,
		)
		return FocusTarget{}, ErrInvalidCoordinates
	}

	return FocusTarget{
		Event: e,
		View: domain.View{
			Longitude: e.Longitude,
			Latitude:  e.Latitude,
			Zoom:      domain.FocusZoomLevel,
		},
	}, nil
}

func (s *EventStore) waitForSurface(ctx context.Context, surface SurfaceProbe, maxAttempts int, delay time.Duration) bool {
	for range maxAttempts {
		select {
		case <-ctx.Done():
			return false
		case <-s.clock.After(delay):
		}
		if surface(ctx) {
			return true
		}
	}
	return false
}
