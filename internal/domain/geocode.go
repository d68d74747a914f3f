package domain

import (
	"context"
	"log/slog"
)

// EnrichUnknownPlaces reverse-geocodes events whose feed place was missing and
// records the result in Region. Place itself is never rewritten. A nil
// geocoder or a failed lookup leaves the event as it was.
func EnrichUnknownPlaces(ctx context.Context, events []Event, geocoder Geocoder, logger *slog.Logger) []Event {
	if geocoder == nil {
		return events
	}

	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e
		if e.Place != UnknownPlace || !IsValidCoordinate(e.Longitude, e.Latitude) {
			continue
		}
		if e.Longitude == 0 && e.Latitude == 0 {
			continue
		}
		if ctx.Err() != nil {
			continue
		}

		result, err := geocoder.ReverseGeocode(ctx, e.Latitude, e.Longitude)
		if err != nil {
			logger.Warn("reverse geocoding failed",
				"event_id", e.ID,
				"lat", e.Latitude,
				"lon", e.Longitude,
				"error", err,
			)
			continue
		}
		out[i].Region = result.FormattedAddress
	}
	return out
}
