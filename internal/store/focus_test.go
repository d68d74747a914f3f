package store

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/quake-feed-service/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const focusDelay = 100 * time.Millisecond

type focusResult struct {
	target FocusTarget
	err    error
}

// awaitWithFakeClock runs AwaitFocus in the background and advances the fake
// clock one delay at a time until it returns.
func awaitWithFakeClock(t *testing.T, s *EventStore, fc *clockwork.FakeClock, surface SurfaceProbe, attempts int) focusResult {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan focusResult, 1)
	go func() {
		target, err := s.AwaitFocus(ctx, surface, attempts, focusDelay)
		done <- focusResult{target, err}
	}()

	for {
		select {
		case r := <-done:
			return r
		default:
		}
		if err := fc.BlockUntilContext(ctx, 1); err != nil {
			select {
			case r := <-done:
				return r
			default:
				t.Fatalf("AwaitFocus did not return: %v", err)
			}
		}
		fc.Advance(focusDelay)
	}
}

func readyAfter(n int32) (SurfaceProbe, *atomic.Int32) {
	var probes atomic.Int32
	return func(context.Context) bool {
		return probes.Add(1) >= n
	}, &probes
}

func TestAwaitFocus_NoPendingFocus(t *testing.T) {
	s, _ := newTestStore(t, &mockFetcher{})

	_, err := s.AwaitFocus(context.Background(), func(context.Context) bool { return true }, 3, focusDelay)

	require.ErrorIs(t, err, ErrNoFocus)
}

func TestAwaitFocus_ReadySurface(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s, _ := newTestStore(t, &mockFetcher{}, WithClock(fc))
	s.SetSelectedEventForFocus(domain.Event{ID: "a", Longitude: -117.6, Latitude: 35.7})

	surface, probes := readyAfter(3)
	r := awaitWithFakeClock(t, s, fc, surface, 10)

	require.NoError(t, r.err)
	assert.Equal(t, "a", r.target.Event.ID)
	assert.Equal(t, domain.View{Longitude: -117.6, Latitude: 35.7, Zoom: domain.FocusZoomLevel}, r.target.View)
	assert.Equal(t, int32(3), probes.Load())

	_, ok := s.SelectedEventForFocus()
	assert.False(t, ok)
}

func TestAwaitFocus_SurfaceNeverReady(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s, _ := newTestStore(t, &mockFetcher{}, WithClock(fc))
	s.SetSelectedEventForFocus(domain.Event{ID: "a", Longitude: 10, Latitude: 10})

	surface, probes := readyAfter(100)
	r := awaitWithFakeClock(t, s, fc, surface, 4)

	require.ErrorIs(t, r.err, ErrSurfaceNotReady)
	assert.Equal(t, int32(4), probes.Load())

	_, ok := s.SelectedEventForFocus()
	assert.False(t, ok, "slot is cleared even when the surface never became ready")
}

func TestAwaitFocus_InvalidCoordinates(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s, _ := newTestStore(t, &mockFetcher{}, WithClock(fc))
	s.SetSelectedEventForFocus(domain.Event{ID: "bad", Longitude: 200, Latitude: 10})

	surface, _ := readyAfter(1)
	r := awaitWithFakeClock(t, s, fc, surface, 3)

	require.ErrorIs(t, r.err, ErrInvalidCoordinates)
	_, ok := s.SelectedEventForFocus()
	assert.False(t, ok)
}

func TestAwaitFocus_ContextCanceled(t *testing.T) {
	fc := clockwork.NewFakeClock()
	s, _ := newTestStore(t, &mockFetcher{}, WithClock(fc))
	s.SetSelectedEventForFocus(domain.Event{ID: "a", Longitude: 10, Latitude: 10})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.AwaitFocus(ctx, func(context.Context) bool { return true }, 3, focusDelay)

	require.ErrorIs(t, err, context.Canceled)
	_, ok := s.SelectedEventForFocus()
	assert.False(t, ok)
}
