package geo

import (
	"math"

	"TH_treasure_hunt/internal/model"

	"github.com/umahmood/haversine"
)

// Tolerance is the per-axis window, in degrees, a fix must fall in to match a target.
const Tolerance = 0.01

// Within reports whether both latitude and longitude differ by less than tolerance.
func Within(fix, target model.Coordinates, tolerance float64) bool {
	return math.Abs(fix.Latitude-target.Latitude) < tolerance &&
		math.Abs(fix.Longitude-target.Longitude) < tolerance
}

// DistanceMeters is the great-circle distance between two points.
func DistanceMeters(a, b model.Coordinates) float64 {
	p1 := haversine.Coord{Lat: a.Latitude, Lon: a.Longitude}
	p2 := haversine.Coord{Lat: b.Latitude, Lon: b.Longitude}
	_, km := haversine.Distance(p1, p2)
	return km * 1000
}

func ValidFix(c model.Coordinates) bool {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}
