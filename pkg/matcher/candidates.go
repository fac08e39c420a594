package matcher

import (
	"fmt"
	"math"
	"time"

	"github.com/malbeclabs/roadmatch/pkg/geo"
	"github.com/malbeclabs/roadmatch/pkg/network"
	"github.com/malbeclabs/roadmatch/pkg/trace"
)

// Positions of unmatchable pings relative to the matched ping range.
const (
	PositionBeforeStart = "before_start"
	PositionMiddle      = "middle"
	PositionAfterEnd    = "after_end"
)

// UnmatchablePing is a ping with no candidate link: no link lies within the
// buffer, or none of those that do passes the heading and speed filters. It
// is carried out of band and never enters the waypoint list.
type UnmatchablePing struct {
	PingID    int
	TraceID   int64
	Timestamp time.Time
	Position  string
}

type waypointFlag int8

const (
	flagDemoted waypointFlag = iota - 1
	flagNone
	flagEndpoint
	flagFixed
	flagTrial
)

// active reports whether the flag makes the ping a routed-through waypoint.
func (f waypointFlag) active() bool {
	return f == flagEndpoint || f == flagFixed || f == flagTrial
}

// pingCandidate is the per-ping matching state: the primary candidate link
// and the graph node anchoring the ping for routing.
type pingCandidate struct {
	ping     *trace.Ping
	linkID   int64
	distance float64
	stopNode int64
	flag     waypointFlag
	covered  bool
}

// candidateSet is the matchable subset of a trace with its waypoint state.
type candidateSet struct {
	pings []pingCandidate

	// links is the union of primary candidate links, in first-seen order;
	// this is the set passed to DiscountGraph.
	links []int64

	unmatchable []UnmatchablePing
}

// selectCandidates picks the primary candidate link and stop node for each
// ping of a conditioned trace. Pings with no aligned link within the buffer
// are classified as unmatchable. Data-quality findings are appended to the
// trace's error list.
func selectCandidates(cfg DriverConfig, tr *trace.Trace) *candidateSet {
	par := cfg.Params
	cs := &candidateSet{}

	type miss struct {
		pingID    int
		timestamp time.Time
	}
	var misses []miss

	linkSeen := map[int64]bool{}
	for i := range tr.Pings {
		ping := &tr.Pings[i]
		best, ok := primaryCandidate(cfg, ping)
		if !ok {
			misses = append(misses, miss{pingID: ping.ID, timestamp: ping.Timestamp})
			continue
		}
		cs.pings = append(cs.pings, best)
		if !linkSeen[best.linkID] {
			linkSeen[best.linkID] = true
			cs.links = append(cs.links, best.linkID)
		}
	}

	if len(cs.pings) < par.DataQuality.MinimumPings {
		tr.Errors = append(tr.Errors, fmt.Sprintf(
			"too few pings within buffer: trace has %d pings, only %d within %.1f m of any link",
			tr.Size(), len(cs.pings), par.MapMatching.BufferSize))
	}
	if len(cs.pings) >= 2 {
		cs.orientEndpoints(cfg.Network)
		if cs.distinctStopNodes() < 2 {
			tr.Errors = append(tr.Errors, "degenerate: all valid pings map to a single stop node")
		}
	}

	if par.MapMatching.KeepPingClassification && len(misses) > 0 {
		first, last := cs.matchedRange()
		for _, m := range misses {
			position := PositionMiddle
			switch {
			case len(cs.pings) == 0:
				// No matched range to compare against.
			case m.pingID < first:
				position = PositionBeforeStart
			case m.pingID > last:
				position = PositionAfterEnd
			}
			cs.unmatchable = append(cs.unmatchable, UnmatchablePing{
				PingID:    m.pingID,
				TraceID:   tr.ID,
				Timestamp: m.timestamp,
				Position:  position,
			})
		}
	}
	return cs
}

// primaryCandidate queries the spatial index around the ping, filters by
// heading alignment and optional speed cap, and keeps the closest survivor.
// Ties on distance fall to the lower link id.
func primaryCandidate(cfg DriverConfig, ping *trace.Ping) (pingCandidate, bool) {
	par := cfg.Params.MapMatching
	entries := cfg.Index.NearestWithin(ping.Point, par.BufferSize)

	for _, e := range entries {
		link, ok := cfg.Network.Link(e.LinkID)
		if !ok {
			continue
		}
		if !geo.Aligned(link.Bearing, ping.TangentBearing, par.HeadingTolerance) {
			continue
		}
		if speedCap, ok := cfg.Network.SpeedCap(e.LinkID); ok && ping.SegmentSpeed > speedCap {
			continue
		}
		return pingCandidate{
			ping:     ping,
			linkID:   e.LinkID,
			distance: e.Distance,
			stopNode: stopNodeFor(ping.TangentBearing, link),
		}, true
	}
	return pingCandidate{}, false
}

// stopNodeFor orients a link's endpoints against the ping's tangent
// bearing: travelling a_node toward b_node anchors at a_node, otherwise at
// b_node.
func stopNodeFor(tangentBearing float64, link *network.Link) int64 {
	diff := math.Abs(tangentBearing - link.Bearing)
	if diff < 90 || 360-diff < 90 {
		return link.ANode
	}
	return link.BNode
}

// orientEndpoints pins the first and last matchable pings as endpoint
// waypoints and resolves their stop nodes: the last ping anchors at the
// downstream endpoint of its link. When the whole trace maps to a single
// link, the relative arc-length order of the first and last projections
// decides which endpoint is which.
func (cs *candidateSet) orientEndpoints(net *network.Network) {
	if len(cs.pings) == 0 {
		return
	}
	first := &cs.pings[0]
	last := &cs.pings[len(cs.pings)-1]
	first.flag = flagEndpoint
	last.flag = flagEndpoint

	if len(cs.links) > 1 {
		link, ok := net.Link(last.linkID)
		if !ok {
			return
		}
		// Downstream of the travel direction implied by the tangent bearing.
		if stopNodeFor(last.ping.TangentBearing, link) == link.ANode {
			last.stopNode = link.BNode
		} else {
			last.stopNode = link.ANode
		}
		return
	}

	link, ok := net.Link(first.linkID)
	if !ok {
		return
	}
	firstPos := geo.ProjectAlong(link.Geometry, first.ping.Point)
	lastPos := geo.ProjectAlong(link.Geometry, last.ping.Point)
	if firstPos < lastPos {
		first.stopNode = link.ANode
		last.stopNode = link.BNode
	} else {
		first.stopNode = link.BNode
		last.stopNode = link.ANode
	}
}

func (cs *candidateSet) distinctStopNodes() int {
	seen := map[int64]bool{}
	for _, pc := range cs.pings {
		seen[pc.stopNode] = true
	}
	return len(seen)
}

// matchedRange returns the first and last matchable ping ids.
func (cs *candidateSet) matchedRange() (first, last int) {
	if len(cs.pings) == 0 {
		return 0, 0
	}
	return cs.pings[0].ping.ID, cs.pings[len(cs.pings)-1].ping.ID
}
