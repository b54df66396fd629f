// Package geo holds the small amount of spherical geometry the matcher needs.
package geo

import "math"

const earthRadiusMeters = 6371000.0

// DistanceMeters returns the haversine distance between two lat/lng points.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(d float64) float64 { return d * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

// BoundingBox returns a lat/lng box that fully contains the circle of the
// given radius around a point. Used as a cheap SQL prefilter; the exact
// haversine check runs on the rows it lets through.
func BoundingBox(lat, lng, radiusMeters float64) (minLat, maxLat, minLng, maxLng float64) {
	dLat := radiusMeters / earthRadiusMeters * 180 / math.Pi
	minLat, maxLat = lat-dLat, lat+dLat

	// Longitude degrees shrink with latitude; guard the poles.
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	dLng := dLat / cos
	minLng, maxLng = lng-dLng, lng+dLng
	return
}
