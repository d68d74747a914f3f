package domain

import "math"

// IsValidCoordinate reports whether both values are finite and within
// WGS-84 bounds. Boundary values are valid.
func IsValidCoordinate(longitude, latitude float64) bool {
	if !isFinite(longitude) || !isFinite(latitude) {
		return false
	}
	if longitude < -180 || longitude > 180 {
		return false
	}
	return latitude >= -90 && latitude <= 90
}

// ValidateMagnitudeRange reports whether min <= max. A missing bound is
// always valid.
func ValidateMagnitudeRange(minMag, maxMag *float64) bool {
	if minMag == nil || maxMag == nil {
		return true
	}
	return *minMag <= *maxMag
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
