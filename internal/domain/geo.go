package domain

import "math"

const earthRadiusKm = 6371

// HaversineKm returns the great-circle distance between two coordinates.
func HaversineKm(a, b Coordinate) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(a.Lat))*math.Cos(toRadians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Nearest finds the view closest to the given point. Views without a
// coordinate are ignored; ok is false when none has one.
func Nearest(views []CheckpointView, from Coordinate) (view CheckpointView, km float64, ok bool) {
	km = math.Inf(1)
	for _, v := range views {
		if v.Coordinate == nil {
			continue
		}
		if d := HaversineKm(from, *v.Coordinate); d < km {
			view, km, ok = v, d, true
		}
	}
	return view, km, ok
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
