// Package trace holds the GPS trace model and the conditioning pass that
// validates, sorts and derives per-segment fields before matching.
package trace

import (
	"math"
	"time"

	"github.com/paulmach/orb"
)

// RawPing is one GPS observation as ingested, before conditioning.
type RawPing struct {
	TraceID   int64
	Timestamp time.Time
	Lon       float64
	Lat       float64
}

// Ping is a conditioned observation. Point is in the working metric CRS;
// Lon/Lat stay geographic because bearings are computed on geographic
// coordinates.
type Ping struct {
	ID        int
	Timestamp time.Time
	Lon       float64
	Lat       float64
	Point     orb.Point

	// TangentBearing is the bearing toward the next ping, degrees in
	// [0, 360); the last ping replicates the previous value.
	TangentBearing float64

	// Per-segment fields relative to the prior ping. SegmentSpeed is -1
	// where undefined.
	SegmentDistance float64
	SegmentSeconds  float64
	SegmentSpeed    float64
}

// Trace is the conditioned, read-only ping sequence of a single trace_id.
// A trace is in error iff Errors is non-empty; errors accumulate rather
// than abort.
type Trace struct {
	ID       int64
	Pings    []Ping
	Errors   []string
	Warnings []string
}

func (t *Trace) HasError() bool { return len(t.Errors) > 0 }

// Size returns the conditioned ping count.
func (t *Trace) Size() int { return len(t.Pings) }

// CoverageDiagonal returns the diagonal, in metres, of the bounding box of
// the conditioned pings.
func (t *Trace) CoverageDiagonal() float64 {
	if len(t.Pings) == 0 {
		return 0
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range t.Pings {
		minX = math.Min(minX, p.Point[0])
		minY = math.Min(minY, p.Point[1])
		maxX = math.Max(maxX, p.Point[0])
		maxY = math.Max(maxY, p.Point[1])
	}
	return math.Hypot(maxX-minX, maxY-minY)
}

// SegmentDistanceTotal returns the summed ping-to-ping distance.
func (t *Trace) SegmentDistanceTotal() float64 {
	total := 0.0
	for _, p := range t.Pings {
		total += p.SegmentDistance
	}
	return total
}
