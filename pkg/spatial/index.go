// Package spatial provides the nearest-neighbor service over link
// geometries: a quadtree of densified polyline samples with an exact
// distance filter on top.
package spatial

import (
	"errors"
	"log/slog"
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"

	"github.com/malbeclabs/roadmatch/pkg/geo"
)

// sampleStep bounds the spacing of the points indexed per link, so a bound
// query padded by this step cannot miss a link within range.
const sampleStep = 25.0

type Entry struct {
	LinkID   int64
	Distance float64
}

type IndexConfig struct {
	Logger *slog.Logger

	// Links maps link id to its projected geometry.
	Links map[int64]orb.LineString
}

func (cfg *IndexConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Links) == 0 {
		return errors.New("at least one link geometry is required")
	}
	return nil
}

type Index struct {
	log   *slog.Logger
	links map[int64]orb.LineString
	tree  *quadtree.Quadtree
}

type samplePoint struct {
	pt orb.Point
	id int64
}

func (s samplePoint) Point() orb.Point { return s.pt }

func NewIndex(cfg IndexConfig) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	bound := orb.Bound{Min: orb.Point{math.Inf(1), math.Inf(1)}, Max: orb.Point{math.Inf(-1), math.Inf(-1)}}
	for _, ls := range cfg.Links {
		for _, p := range ls {
			bound = bound.Extend(p)
		}
	}

	ix := &Index{
		log:   cfg.Logger,
		links: cfg.Links,
		tree:  quadtree.New(bound.Pad(1)),
	}

	count := 0
	for id, ls := range cfg.Links {
		for _, p := range samples(ls) {
			if err := ix.tree.Add(samplePoint{pt: p, id: id}); err != nil {
				return nil, err
			}
			count++
		}
	}
	ix.log.Debug("spatial: index built", "links", len(cfg.Links), "samples", count)
	return ix, nil
}

// samples returns the polyline vertices plus intermediate points so that
// consecutive samples are at most sampleStep apart.
func samples(ls orb.LineString) []orb.Point {
	if len(ls) == 0 {
		return nil
	}
	out := []orb.Point{ls[0]}
	for i := 0; i < len(ls)-1; i++ {
		a, b := ls[i], ls[i+1]
		segLen := planar.Distance(a, b)
		steps := int(math.Ceil(segLen / sampleStep))
		for s := 1; s <= steps; s++ {
			t := float64(s) / float64(steps)
			out = append(out, orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t})
		}
	}
	return out
}

// NearestWithin returns every link whose geometry lies within maxDistance
// of the point, sorted ascending by distance with ties broken by link id.
func (ix *Index) NearestWithin(point orb.Point, maxDistance float64) []Entry {
	if maxDistance < 0 {
		return nil
	}
	pad := maxDistance + sampleStep
	b := orb.Bound{
		Min: orb.Point{point[0] - pad, point[1] - pad},
		Max: orb.Point{point[0] + pad, point[1] + pad},
	}

	seen := map[int64]bool{}
	var out []Entry
	for _, ptr := range ix.tree.InBound(nil, b) {
		sp := ptr.(samplePoint)
		if seen[sp.id] {
			continue
		}
		seen[sp.id] = true
		d := geo.DistanceToLine(point, ix.links[sp.id])
		if d <= maxDistance {
			out = append(out, Entry{LinkID: sp.id, Distance: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].LinkID < out[j].LinkID
	})
	return out
}
