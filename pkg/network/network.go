// Package network holds the road-network link table consumed by the map
// matcher: per-link geometry, endpoints and bearings, plus the mutable
// routing-cost vector with its discount and reset operations.
package network

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/paulmach/orb"
)

var (
	// ErrUnknownSpeedField is returned when a speed filter is requested but
	// the links lack the named attribute.
	ErrUnknownSpeedField = errors.New("speed field not present on network links")

	// ErrUnknownLink is returned by the read accessors for link ids absent
	// from the network.
	ErrUnknownLink = errors.New("unknown link id")
)

// Direction restricts which way a link may be traversed.
const (
	DirectionBoth    int8 = 0
	DirectionForward int8 = 1
	DirectionReverse int8 = -1
)

type Config struct {
	Logger *slog.Logger
	Links  []Link

	// CostDiscount is the multiplier applied to candidate-link costs by
	// DiscountGraph. Must be in (0, 1].
	CostDiscount float64
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Links) == 0 {
		return errors.New("at least one link is required")
	}
	if cfg.CostDiscount <= 0 || cfg.CostDiscount > 1 {
		return fmt.Errorf("cost discount must be in (0, 1], got %v", cfg.CostDiscount)
	}
	return nil
}

// Network owns the link collection and the routing cost vector. The
// baseline cost vector is captured at construction and never mutated;
// DiscountGraph operates on a scratch copy and ResetGraph restores the
// baseline. Clones share links and baseline read-only, so each matching
// worker mutates only its own scratch.
type Network struct {
	log      *slog.Logger
	links    map[int64]*Link
	ids      []int64
	baseline map[int64]float64
	cost     map[int64]float64
	discount float64

	speedField string
}

func New(cfg Config) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := &Network{
		log:      cfg.Logger,
		links:    make(map[int64]*Link, len(cfg.Links)),
		baseline: make(map[int64]float64, len(cfg.Links)),
		discount: cfg.CostDiscount,
	}
	for i := range cfg.Links {
		l := cfg.Links[i]
		if len(l.Geometry) < 2 {
			return nil, fmt.Errorf("link %d has degenerate geometry", l.ID)
		}
		if _, ok := n.links[l.ID]; ok {
			return nil, fmt.Errorf("duplicate link id %d", l.ID)
		}
		if l.Cost < 0 {
			return nil, fmt.Errorf("link %d has negative cost", l.ID)
		}
		n.links[l.ID] = &l
		n.baseline[l.ID] = l.Cost
		n.ids = append(n.ids, l.ID)
	}
	sort.Slice(n.ids, func(i, j int) bool { return n.ids[i] < n.ids[j] })
	n.cost = cloneCosts(n.baseline)
	return n, nil
}

// Clone returns a network sharing the immutable link table and baseline
// cost vector, with a fresh scratch cost vector. Each worker gets its own
// clone so cost mutations never cross trace boundaries.
func (n *Network) Clone() *Network {
	return &Network{
		log:        n.log,
		links:      n.links,
		ids:        n.ids,
		baseline:   n.baseline,
		cost:       cloneCosts(n.baseline),
		discount:   n.discount,
		speedField: n.speedField,
	}
}

func cloneCosts(src map[int64]float64) map[int64]float64 {
	dst := make(map[int64]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// Size returns the number of links.
func (n *Network) Size() int { return len(n.links) }

// LinkIDs returns all link ids in ascending order.
func (n *Network) LinkIDs() []int64 { return n.ids }

// Link returns the link with the given id.
func (n *Network) Link(id int64) (*Link, bool) {
	l, ok := n.links[id]
	return l, ok
}

func (n *Network) LinkBearing(id int64) (float64, error) {
	l, ok := n.links[id]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownLink, id)
	}
	return l.Bearing, nil
}

func (n *Network) LinkEndpoints(id int64) (aNode, bNode int64, err error) {
	l, ok := n.links[id]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownLink, id)
	}
	return l.ANode, l.BNode, nil
}

func (n *Network) LinkGeometry(id int64) (orb.LineString, error) {
	l, ok := n.links[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLink, id)
	}
	return l.Geometry, nil
}

// Cost returns the current routing cost of a link, read by the shortest
// path engine on every relaxation so discounts take effect immediately.
func (n *Network) Cost(id int64) float64 {
	if c, ok := n.cost[id]; ok {
		return c
	}
	return math.Inf(1)
}

// DiscountGraph multiplies the routing cost of each listed link by the
// configured discount. Mutations land on the scratch vector only; repeated
// calls are cumulative.
func (n *Network) DiscountGraph(links []int64) {
	for _, id := range links {
		if c, ok := n.cost[id]; ok {
			n.cost[id] = c * n.discount
		}
	}
	n.log.Debug("network: discounted links", "count", len(links), "discount", n.discount)
}

// ResetGraph restores the routing cost vector to the baseline captured at
// construction.
func (n *Network) ResetGraph() {
	for k, v := range n.baseline {
		n.cost[k] = v
	}
}

// SetSpeedField selects the per-link attribute used as a speed cap by the
// candidate selector. The field must be present on at least one link.
func (n *Network) SetSpeedField(field string) error {
	for _, l := range n.links {
		if _, ok := l.Attributes[field]; ok {
			n.speedField = field
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownSpeedField, field)
}

// HasSpeed reports whether a speed field has been selected.
func (n *Network) HasSpeed() bool { return n.speedField != "" }

// SpeedCap returns the speed cap of a link, when the network carries one.
func (n *Network) SpeedCap(id int64) (float64, bool) {
	if n.speedField == "" {
		return 0, false
	}
	l, ok := n.links[id]
	if !ok {
		return 0, false
	}
	v, ok := l.Attributes[n.speedField]
	return v, ok
}
