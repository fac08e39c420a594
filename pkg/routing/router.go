// Package routing defines the shortest-path service contract consumed by
// the match driver, and provides an in-process engine implementing it over
// the network's cost vector.
package routing

// Path is one shortest-path result. Directions are +1 when a link is
// traversed a_node to b_node and -1 otherwise. Mileposts holds cumulative
// distance in metres from the start: Mileposts[0] is 0 and Mileposts[k] is
// the distance after traversing the k-th link, so len(Mileposts) is
// len(Links)+1.
type Path struct {
	Links      []int64
	Directions []int8
	Mileposts  []float64
}

// Router computes shortest paths between graph nodes. ComputePath returns
// nil when no feasible path exists; that is an expected outcome, not an
// error. The per-link cost model is additive and non-negative, read from
// the network's current cost vector on every call so that discounts applied
// between calls take effect.
type Router interface {
	Prepare() error
	ComputePath(startNode, endNode int64, earlyExit bool) *Path
}
