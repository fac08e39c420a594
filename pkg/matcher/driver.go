package matcher

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/malbeclabs/roadmatch/pkg/network"
	"github.com/malbeclabs/roadmatch/pkg/routing"
	"github.com/malbeclabs/roadmatch/pkg/spatial"
	"github.com/malbeclabs/roadmatch/pkg/trace"
)

// ErrNotImplemented is returned by operations the matcher deliberately
// does not support.
var ErrNotImplemented = errors.New("not implemented")

type DriverConfig struct {
	Logger  *slog.Logger
	Clock   clockwork.Clock
	Network *network.Network
	Index   *spatial.Index
	Router  routing.Router
	Params  Parameters

	// IgnoreErrors lets matching proceed on traces with data-quality
	// findings.
	IgnoreErrors bool
}

func (cfg *DriverConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Network == nil {
		return errors.New("network is required")
	}
	if cfg.Index == nil {
		return errors.New("spatial index is required")
	}
	if cfg.Router == nil {
		return errors.New("router is required")
	}
	if err := cfg.Params.Validate(); err != nil {
		return err
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Driver runs the per-trace matching pipeline. A driver is single-threaded:
// it owns its network's cost scratch for the duration of each trace.
type Driver struct {
	log *slog.Logger
	cfg DriverConfig
}

func NewDriver(cfg DriverConfig) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Driver{log: cfg.Logger, cfg: cfg}, nil
}

// Match conditions the raw pings of one trace and reconstructs its path.
// Structural problems return an error; data-quality findings land on the
// result and, unless IgnoreErrors is set, skip matching with Success 0.
func (d *Driver) Match(ctx context.Context, raw []trace.RawPing) (*Result, error) {
	tr, err := trace.Condition(trace.ConditionConfig{
		Logger:          d.log,
		MaxSpeed:        d.cfg.Params.DataQuality.MaxSpeed,
		MaxSpeedTime:    d.cfg.Params.DataQuality.MaxSpeedTime,
		MinimumPings:    d.cfg.Params.DataQuality.MinimumPings,
		MinimumCoverage: d.cfg.Params.DataQuality.MinimumCoverage,
		MaximumJitter:   d.cfg.Params.DataQuality.MaximumJitter,
	}, raw)
	if err != nil {
		return nil, err
	}
	return d.MatchTrace(ctx, tr), nil
}

// MatchTrace matches an already-conditioned trace.
func (d *Driver) MatchTrace(ctx context.Context, tr *trace.Trace) *Result {
	started := d.cfg.Clock.Now()
	res := &Result{TraceID: tr.ID, State: StateInit}

	cs := selectCandidates(d.cfg, tr)
	res.Errors = tr.Errors
	res.Warnings = tr.Warnings
	res.Unmatchable = cs.unmatchable

	if tr.HasError() && !d.cfg.IgnoreErrors {
		d.log.Debug("matcher: skipping trace with data-quality errors",
			"trace_id", tr.ID, "errors", len(tr.Errors))
		res.State = StateFailed
		return res
	}
	if len(cs.activeWaypointNodes()) < 2 {
		res.State = StateFailed
		return res
	}

	d.match(ctx, tr, cs, res)

	res.MatchSeconds = d.cfg.Clock.Since(started).Seconds()
	return res
}

// match runs the routing/evaluating/refining loop bounded by the waypoint
// budget.
func (d *Driver) match(ctx context.Context, tr *trace.Trace, cs *candidateSet, res *Result) {
	par := d.cfg.Params.MapMatching
	quality := 0.0
	previousQuality := 0.0
	var current legs

	for iteration := 0; iteration <= par.MaximumWaypoints; iteration++ {
		if err := ctx.Err(); err != nil {
			d.log.Debug("matcher: cancelled", "trace_id", tr.ID, "iteration", iteration)
			res.State = StateFailed
			break
		}

		res.State = StateRouting
		d.cfg.Network.ResetGraph()
		d.cfg.Network.DiscountGraph(cs.links)
		current = d.route(cs.activeWaypointNodes())

		res.State = StateEvaluating
		// The shape is trimmed against the previous iteration's covered
		// pings; coverage is then re-evaluated against the new shape.
		shape := buildPathShape(d.cfg.Network, &current, cs.coveredPoints())
		quality = cs.evaluateCoverage(shape, par.BufferSize)

		d.log.Debug("matcher: iteration",
			"trace_id", tr.ID, "iteration", iteration, "quality", quality, "links", len(current.links))

		if quality >= par.MinimumMatchQuality {
			// The last trial, if any, carried the attempt over the line.
			cs.fixTrial()
			res.State = StateDone
			res.Success = 1
			break
		}

		res.State = StateRefining
		if quality > previousQuality {
			cs.fixTrial()
		} else {
			cs.demoteTrial()
		}
		previousQuality = quality

		if iteration == par.MaximumWaypoints {
			res.State = StateFailed
			break
		}
		if !cs.addWaypoint() {
			// No further waypoint can be inserted, so no attempt can
			// improve on what we have.
			res.State = StateFailed
			break
		}
		res.WaypointsAdded++
	}
	if res.State != StateDone {
		res.State = StateFailed
	}

	res.Links = current.links
	res.Directions = current.directions
	res.Mileposts = current.mileposts
	res.MatchQuality = quality
	if tr.Size() > 0 {
		res.MatchQualityRaw = float64(cs.coveredCount()) / float64(tr.Size())
		if res.MatchQualityRaw > 1 {
			res.MatchQualityRaw = 1
		}
	}
	res.PathShape = buildPathShape(d.cfg.Network, &current, cs.coveredPoints())
	if total := tr.SegmentDistanceTotal(); total > 0 && len(res.Mileposts) > 0 {
		res.DistanceRatio = res.Mileposts[len(res.Mileposts)-1] / total
	}
	res.Waypoints = cs.waypoints()
}

// route stitches shortest paths between consecutive waypoint nodes.
// Infeasible legs are skipped; the milepost offset carries the last
// successful leg's cumulative value.
func (d *Driver) route(waypoints []int64) legs {
	var out legs
	offset := 0.0
	for i := 0; i+1 < len(waypoints); i++ {
		start, end := waypoints[i], waypoints[i+1]
		if start == end {
			continue
		}
		p := d.cfg.Router.ComputePath(start, end, true)
		if p == nil {
			continue
		}
		out.links = append(out.links, p.Links...)
		out.directions = append(out.directions, p.Directions...)
		for k := range p.Links {
			out.mileposts = append(out.mileposts, p.Mileposts[k+1]+offset)
		}
		if len(out.mileposts) > 0 {
			offset = out.mileposts[len(out.mileposts)-1]
		}
	}
	return out
}

// ComputeStops always returns ErrNotImplemented: the matcher does not infer
// delivery stops from dwell time, and it takes no external stop hints.
func (d *Driver) ComputeStops() error {
	return ErrNotImplemented
}
