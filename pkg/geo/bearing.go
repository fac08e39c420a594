// Package geo provides the directional and planar geometry primitives used
// by the map matcher: compass bearings computed on geographic coordinates,
// the heading-alignment test, and arc-length operations on projected
// polylines.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// Bearing returns the initial great-circle compass bearing, in degrees in
// [0, 360), from one geographic point to another. Points are (lon, lat) in
// degrees, WGS84. Bearings are always computed on geographic coordinates,
// never on the working projection.
func Bearing(from, to orb.Point) float64 {
	latA := from[1] * math.Pi / 180
	latB := to[1] * math.Pi / 180
	deltaLon := (to[0] - from[0]) * math.Pi / 180

	x := math.Sin(deltaLon) * math.Cos(latB)
	y := math.Cos(latA)*math.Sin(latB) - math.Sin(latA)*math.Cos(latB)*math.Cos(deltaLon)
	deg := math.Atan2(x, y) * 180 / math.Pi
	return math.Mod(deg+360, 360)
}

// TangentBearings returns one bearing per input point: the bearing from
// point i to point i+1, with the last element replicating the previous one.
// Returns nil for fewer than two points.
func TangentBearings(points []orb.Point) []float64 {
	if len(points) < 2 {
		return nil
	}
	out := make([]float64, len(points))
	for i := 0; i < len(points)-1; i++ {
		out[i] = Bearing(points[i], points[i+1])
	}
	out[len(points)-1] = out[len(points)-2]
	return out
}

// LineBearing returns the bearing of a geographic polyline, taken from its
// first vertex to its last.
func LineBearing(ls orb.LineString) float64 {
	if len(ls) < 2 {
		return 0
	}
	return Bearing(ls[0], ls[len(ls)-1])
}
