package routing

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"

	"github.com/malbeclabs/roadmatch/pkg/network"
)

type EngineConfig struct {
	Logger  *slog.Logger
	Network *network.Network
}

func (cfg *EngineConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Network == nil {
		return errors.New("network is required")
	}
	return nil
}

// Engine is a Dijkstra shortest-path engine over the network's links,
// honoring per-link direction flags. It uses a lazy-decrease-key binary
// heap: duplicates are pushed and stale entries skipped on pop. Costs are
// read from the network at relaxation time, mileposts are accumulated from
// physical link lengths so cost discounts bias routing without distorting
// reported distances.
type Engine struct {
	log *slog.Logger
	net *network.Network
	adj map[int64][]arc
}

// arc is one directed traversal of a link.
type arc struct {
	to        int64
	link      *network.Link
	direction int8
}

func NewEngine(cfg EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{log: cfg.Logger, net: cfg.Network}, nil
}

// Prepare builds the adjacency lists. Must be called before ComputePath.
func (e *Engine) Prepare() error {
	e.adj = make(map[int64][]arc)
	for _, id := range e.net.LinkIDs() {
		l, _ := e.net.Link(id)
		if e.net.Cost(id) < 0 {
			return fmt.Errorf("link %d has negative cost", id)
		}
		if l.Direction != network.DirectionReverse {
			e.adj[l.ANode] = append(e.adj[l.ANode], arc{to: l.BNode, link: l, direction: 1})
		}
		if l.Direction != network.DirectionForward {
			e.adj[l.BNode] = append(e.adj[l.BNode], arc{to: l.ANode, link: l, direction: -1})
		}
	}
	e.log.Debug("routing: adjacency built", "nodes", len(e.adj), "links", e.net.Size())
	return nil
}

func (e *Engine) ComputePath(startNode, endNode int64, earlyExit bool) *Path {
	if e.adj == nil {
		return nil
	}
	if _, ok := e.adj[startNode]; !ok {
		return nil
	}
	if startNode == endNode {
		return nil
	}

	dist := map[int64]float64{startNode: 0}
	prev := map[int64]arc{}
	done := map[int64]bool{}

	pq := &nodeQueue{{node: startNode, dist: 0}}
	for pq.Len() > 0 {
		item := heap.Pop(pq).(nodeItem)
		if done[item.node] {
			continue
		}
		done[item.node] = true
		if earlyExit && item.node == endNode {
			break
		}
		for _, a := range e.adj[item.node] {
			cost := e.net.Cost(a.link.ID)
			next := item.dist + cost
			if cur, ok := dist[a.to]; !ok || next < cur {
				dist[a.to] = next
				prev[a.to] = a
				heap.Push(pq, nodeItem{node: a.to, dist: next})
			}
		}
	}

	if !done[endNode] {
		if _, ok := dist[endNode]; !ok {
			return nil
		}
	}
	return e.unwind(startNode, endNode, prev)
}

func (e *Engine) unwind(startNode, endNode int64, prev map[int64]arc) *Path {
	var arcs []arc
	for at := endNode; at != startNode; {
		a, ok := prev[at]
		if !ok {
			return nil
		}
		arcs = append(arcs, a)
		if a.direction > 0 {
			at = a.link.ANode
		} else {
			at = a.link.BNode
		}
	}

	n := len(arcs)
	p := &Path{
		Links:      make([]int64, n),
		Directions: make([]int8, n),
		Mileposts:  make([]float64, n+1),
	}
	total := 0.0
	for i := 0; i < n; i++ {
		a := arcs[n-1-i]
		p.Links[i] = a.link.ID
		p.Directions[i] = a.direction
		total += a.link.Length
		p.Mileposts[i+1] = total
	}
	return p
}

type nodeItem struct {
	node int64
	dist float64
}

type nodeQueue []nodeItem

func (q nodeQueue) Len() int           { return len(q) }
func (q nodeQueue) Less(i, j int) bool { return q[i].dist < q[j].dist }
func (q nodeQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *nodeQueue) Push(x any)        { *q = append(*q, x.(nodeItem)) }
func (q *nodeQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
