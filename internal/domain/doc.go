// Package domain models USGS earthquake feed data and the pure derivations
// built on it.
//
// # Data Source
//
// Events come from the USGS GeoJSON summary feeds, by default
// https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_week.geojson.
// The feed is a FeatureCollection refreshed upstream every minute; this
// service polls it on a fixed interval and replaces its collection wholesale.
//
// # Feed Conventions
//
// Feature layout:
//
//	{"id": "us7000abcd",
//	 "properties": {"place": "10 km SW of Ridgecrest, CA", "mag": 4.2, "time": 1700000000000},
//	 "geometry": {"coordinates": [-117.7, 35.6, 8.1]}}
//
// Coordinates are [longitude, latitude, depth] with depth in kilometers.
// Time is epoch milliseconds UTC.
//
// Missing and malformed values:
//
//	Every field is coerced independently by [Normalize]. Numbers may arrive
//	as JSON numbers or numeric strings. A missing magnitude or coordinate
//	becomes 0, a missing place becomes "Unknown", and a missing time becomes
//	the current clock time. A missing id is synthesized as
//	"eq-<batch index>-<raw time>".
//
// Non-positive magnitude:
//
//	The feed uses magnitude <= 0 as a sentinel for an unusable reading.
//	[NormalizeFeed] drops those events; they never reach the store.
//
// # Severity Tiers
//
// Magnitude is classified once by [ClassifyMagnitude] and every presentation
// attribute (marker RGBA, chart hex, badge name) is read from that tier:
//
//	>= 7.0 high | >= 5.0 medium | >= 3.0 low | otherwise minor
//
// Marker radius is a separate scale: magnitude * 2 clamped to [3, 15].
//
// # Filtering
//
// [ApplyFilters] composes an inclusive magnitude range with a case-insensitive
// place substring. All set criteria must match and feed order is preserved.
package domain
