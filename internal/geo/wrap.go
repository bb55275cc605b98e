package geo

import "math"

// WrapLongitude wraps a longitude to the range [-180, 180). Markers dragged across the
// antimeridian come back with values outside that range.
func WrapLongitude(lon float64) float64 {
	if math.IsNaN(lon) || math.IsInf(lon, 0) {
		return lon
	}
	// Add 360 before the second modulo to handle negative values
	return math.Mod(math.Mod(lon+180, 360)+360, 360) - 180
}

// Wrapped returns the point with its longitude wrapped
func (p Point) Wrapped() Point {
	return Point{WrapLongitude(p.Lon()), p.Lat()}
}
