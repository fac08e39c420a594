package trace

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"

	"github.com/malbeclabs/roadmatch/pkg/geo"
)

// ErrMixedTraceIDs is returned when the input pings carry more than one
// trace_id; a trace must be homogeneous.
var ErrMixedTraceIDs = errors.New("trace_id is not unique within trace")

type ConditionConfig struct {
	Logger *slog.Logger

	// Data-quality thresholds; see the parameter defaults in pkg/matcher.
	MaxSpeed        float64
	MaxSpeedTime    float64
	MinimumPings    int
	MinimumCoverage float64
	MaximumJitter   float64
}

func (cfg *ConditionConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.MinimumPings < 2 {
		return errors.New("minimum pings must be at least 2")
	}
	if cfg.MaxSpeed <= 0 {
		return errors.New("max speed must be positive")
	}
	return nil
}

// Condition runs the conditioning pass once over the raw pings of a single
// trace: sort by timestamp, derive tangent bearings, drop same-second
// duplicates, derive per-segment distance/time/speed, and accumulate
// data-quality findings on the returned trace. Structural problems (empty
// input, mixed trace ids) return an error instead.
func Condition(cfg ConditionConfig, raw []RawPing) (*Trace, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, errors.New("trace has no pings")
	}
	id := raw[0].TraceID
	for _, p := range raw {
		if p.TraceID != id {
			return nil, fmt.Errorf("%w: %d and %d", ErrMixedTraceIDs, id, p.TraceID)
		}
	}

	tr := &Trace{ID: id}

	sorted := make([]RawPing, len(raw))
	copy(sorted, raw)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	geographic := make([]orb.Point, len(sorted))
	for i, p := range sorted {
		geographic[i] = orb.Point{p.Lon, p.Lat}
	}
	bearings := geo.TangentBearings(geographic)

	pings := make([]Ping, len(sorted))
	for i, p := range sorted {
		pings[i] = Ping{
			Timestamp: p.Timestamp,
			Lon:       p.Lon,
			Lat:       p.Lat,
			Point:     project.WGS84.ToMercator(orb.Point{p.Lon, p.Lat}),
		}
		if bearings != nil {
			pings[i].TangentBearing = bearings[i]
		}
	}

	tooFew := len(pings) < cfg.MinimumPings
	if tooFew {
		tr.Errors = append(tr.Errors,
			fmt.Sprintf("too few pings: trace has %d, minimum is %d", len(pings), cfg.MinimumPings))
	}

	pings = dedupSameSecond(cfg, tr, pings)
	if len(pings) < cfg.MinimumPings && !tooFew {
		tr.Errors = append(tr.Errors,
			fmt.Sprintf("too few pings: trace has %d after removing duplicates, minimum is %d",
				len(pings), cfg.MinimumPings))
	}

	speedingSeconds := 0.0
	for i := range pings {
		pings[i].ID = i + 1
		if i == 0 {
			pings[i].SegmentSpeed = 0
			continue
		}
		dist := planar.Distance(pings[i-1].Point, pings[i].Point)
		secs := pings[i].Timestamp.Sub(pings[i-1].Timestamp).Seconds()
		pings[i].SegmentDistance = dist
		pings[i].SegmentSeconds = secs
		if secs > 0 {
			pings[i].SegmentSpeed = dist / secs
		} else {
			pings[i].SegmentSpeed = -1
		}
		if pings[i].SegmentSpeed > cfg.MaxSpeed {
			speedingSeconds += secs
		}
	}
	tr.Pings = pings

	if diag := tr.CoverageDiagonal(); diag < cfg.MinimumCoverage {
		tr.Errors = append(tr.Errors,
			fmt.Sprintf("insufficient coverage: trace covers %.2f m, minimum is %.2f m",
				diag, cfg.MinimumCoverage))
	}

	if speedingSeconds > cfg.MaxSpeedTime {
		tr.Errors = append(tr.Errors,
			fmt.Sprintf("speed cap exceeded: above %.1f m/s for %d s, budget is %d s",
				cfg.MaxSpeed, int(speedingSeconds), int(cfg.MaxSpeedTime)))
	}

	cfg.Logger.Debug("trace: conditioned",
		"trace_id", tr.ID, "pings", len(tr.Pings), "errors", len(tr.Errors), "warnings", len(tr.Warnings))
	return tr, nil
}

// dedupSameSecond keeps the first ping of each same-second group. A group
// whose spatial spread exceeds the jitter threshold marks the trace
// jittery.
func dedupSameSecond(cfg ConditionConfig, tr *Trace, pings []Ping) []Ping {
	duplicates := 0
	maxJitter := 0.0

	out := make([]Ping, 0, len(pings))
	groupStart := 0
	for i := 0; i <= len(pings); i++ {
		if i < len(pings) && pings[i].Timestamp.Unix() == pings[groupStart].Timestamp.Unix() {
			continue
		}
		group := pings[groupStart:i]
		if len(group) > 1 {
			duplicates += len(group) - 1
			maxJitter = math.Max(maxJitter, spread(group))
		}
		out = append(out, group[0])
		groupStart = i
	}

	if duplicates > 0 {
		tr.Warnings = append(tr.Warnings,
			fmt.Sprintf("%d pings share a timestamp with another ping", duplicates))
		if maxJitter > cfg.MaximumJitter {
			tr.Errors = append(tr.Errors,
				fmt.Sprintf("jittery data: pings with the same timestamp are %.2f m apart, maximum is %.2f m",
					maxJitter, cfg.MaximumJitter))
		}
	}
	return out
}

// spread returns the bounding-box diagonal of a ping group.
func spread(group []Ping) float64 {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range group {
		minX = math.Min(minX, p.Point[0])
		minY = math.Min(minY, p.Point[1])
		maxX = math.Max(maxX, p.Point[0])
		maxY = math.Max(maxY, p.Point[1])
	}
	return math.Hypot(maxX-minX, maxY-minY)
}
