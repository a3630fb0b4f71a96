// Package geo holds the spherical geometry used by the spatial index:
// great-circle distance and geohash cells covering a search circle.
package geo

import (
	"math"

	"github.com/nitesh/nearby_news/pkg/models"
)

// EarthRadiusMeters is the mean Earth radius used for all distances.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in metres between a and b
// (haversine on a sphere).
func Distance(a, b models.Location) float64 {
	lat1 := toRad(a.Latitude)
	lat2 := toRad(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRad(b.Longitude - a.Longitude)

	sLat := math.Sin(dLat / 2)
	sLon := math.Sin(dLon / 2)
	h := sLat*sLat + math.Cos(lat1)*math.Cos(lat2)*sLon*sLon
	// rounding can push h just outside [0,1] for antipodal or identical points
	h = math.Min(1, math.Max(0, h))
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// ValidLatitude reports whether lat is within [-90, 90].
func ValidLatitude(lat float64) bool { return lat >= -90 && lat <= 90 }

// ValidLongitude reports whether lng is within [-180, 180].
func ValidLongitude(lng float64) bool { return lng >= -180 && lng <= 180 }

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }
