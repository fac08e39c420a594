package network

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"

	"github.com/malbeclabs/roadmatch/pkg/geo"
)

// Link is a directed polyline edge of the routing graph. Geometry is held
// in the working metric CRS; the bearing is derived from the first and last
// coordinates of the geographic geometry at load time.
type Link struct {
	ID    int64
	ANode int64
	BNode int64

	// Geometry in the working metric CRS, oriented a_node to b_node.
	Geometry orb.LineString

	// Bearing from a_node to b_node, degrees in [0, 360).
	Bearing float64

	// Length in metres of the projected geometry.
	Length float64

	// Cost is the baseline routing cost. NewLinkWGS84 sets it to Length;
	// New uses the value as given.
	Cost float64

	// Direction restricts traversal: DirectionBoth, DirectionForward
	// (a_node to b_node only) or DirectionReverse.
	Direction int8

	// Attributes carries optional numeric per-link fields, e.g. speed caps.
	Attributes map[string]float64
}

// NewLinkWGS84 builds a Link from geographic (lon, lat) coordinates:
// the bearing is computed on the geographic polyline and the geometry is
// projected into the working CRS. The baseline cost is the projected
// length.
func NewLinkWGS84(id, aNode, bNode int64, direction int8, coords orb.LineString) (Link, error) {
	if len(coords) < 2 {
		return Link{}, fmt.Errorf("link %d needs at least two coordinates", id)
	}
	projected := make(orb.LineString, len(coords))
	for i, p := range coords {
		projected[i] = project.WGS84.ToMercator(p)
	}
	length := planar.Length(projected)
	return Link{
		ID:        id,
		ANode:     aNode,
		BNode:     bNode,
		Geometry:  projected,
		Bearing:   geo.LineBearing(coords),
		Length:    length,
		Cost:      length,
		Direction: direction,
	}, nil
}
