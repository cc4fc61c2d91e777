package geospatial

import "math"

const (
	earthRadiusMeters = 6_371_000.0
	metersPerDegree   = 111_320.0
)

// Haversine returns the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BoundingBox returns a box enclosing every point within radiusMeters of
// (lat, lon). Latitudes are clamped to ±90; longitudes are left unwrapped
// and span the whole world when the circle reaches a pole.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / metersPerDegree
	minLat = math.Max(lat-latDelta, -90)
	maxLat = math.Min(lat+latDelta, 90)

	cos := math.Cos(toRad(lat))
	if minLat == -90 || maxLat == 90 || cos < 1e-9 {
		return minLat, -180, maxLat, 180
	}
	lonDelta := latDelta / cos
	return minLat, lon - lonDelta, maxLat, lon + lonDelta
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
