package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// closestOnSegment returns the point on segment ab closest to p.
func closestOnSegment(a, b, p orb.Point) orb.Point {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	segLenSq := dx*dx + dy*dy
	if segLenSq == 0 {
		return a
	}
	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / segLenSq
	t = math.Max(0, math.Min(1, t))
	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

// DistanceToLine returns the planar distance from p to the closest point on
// the polyline.
func DistanceToLine(p orb.Point, ls orb.LineString) float64 {
	best := math.Inf(1)
	for i := 0; i < len(ls)-1; i++ {
		d := planar.Distance(p, closestOnSegment(ls[i], ls[i+1], p))
		if d < best {
			best = d
		}
	}
	if len(ls) == 1 {
		return planar.Distance(p, ls[0])
	}
	return best
}

// ProjectAlong returns the arc-length position, from the start of the
// polyline, of the point on it closest to p.
func ProjectAlong(ls orb.LineString, p orb.Point) float64 {
	best := math.Inf(1)
	bestPos := 0.0
	walked := 0.0
	for i := 0; i < len(ls)-1; i++ {
		c := closestOnSegment(ls[i], ls[i+1], p)
		d := planar.Distance(p, c)
		if d < best {
			best = d
			bestPos = walked + planar.Distance(ls[i], c)
		}
		walked += planar.Distance(ls[i], ls[i+1])
	}
	return bestPos
}

// Substring returns the section of the polyline between arc-length
// positions from and to. Positions are clamped to [0, length]; an empty or
// degenerate section returns nil.
func Substring(ls orb.LineString, from, to float64) orb.LineString {
	if len(ls) < 2 || to <= from {
		return nil
	}
	total := planar.Length(ls)
	from = math.Max(0, from)
	to = math.Min(total, to)
	if to <= from {
		return nil
	}

	var out orb.LineString
	walked := 0.0
	for i := 0; i < len(ls)-1; i++ {
		segLen := planar.Distance(ls[i], ls[i+1])
		segStart := walked
		segEnd := walked + segLen
		walked = segEnd
		if segEnd < from || segLen == 0 {
			continue
		}
		if segStart > to {
			break
		}
		if len(out) == 0 {
			out = append(out, interpolate(ls[i], ls[i+1], clampRatio(from-segStart, segLen)))
		}
		if segEnd <= to {
			out = append(out, ls[i+1])
			continue
		}
		out = append(out, interpolate(ls[i], ls[i+1], clampRatio(to-segStart, segLen)))
		break
	}
	if len(out) < 2 {
		return nil
	}
	return out
}

func clampRatio(d, segLen float64) float64 {
	if segLen == 0 {
		return 0
	}
	return math.Max(0, math.Min(1, d/segLen))
}

func interpolate(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
}

// Reverse returns a reversed copy of the polyline.
func Reverse(ls orb.LineString) orb.LineString {
	out := make(orb.LineString, len(ls))
	for i, p := range ls {
		out[len(ls)-1-i] = p
	}
	return out
}
