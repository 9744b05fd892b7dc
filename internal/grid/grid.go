// Package grid implements the immutable 2D street graph (spec C1): nodes,
// delivery-point flags and permanently blocked edges. A Graph is built once
// at bootstrap and never mutated afterward, so it needs no locking.
package grid

import (
	"errors"
	"fmt"
	"sort"

	"github.com/brentp/intintmap"
)

// Sentinel errors, named the way katalvlaran/lvlath's gridgraph package
// names its own: "grid: <message>".
var (
	ErrDuplicateNode  = errors.New("grid: duplicate node id or coordinate")
	ErrUnknownNode    = errors.New("grid: unknown node id")
	ErrDanglingEdge   = errors.New("grid: blocked edge references an unknown node")
)

// Node is a single intersection on the grid. Immutable once loaded.
type Node struct {
	ID              int
	X, Y            int
	IsDeliveryPoint bool
}

// BlockedEdge is an unordered pair of node ids that bots may never cross, in
// either direction.
type BlockedEdge struct {
	FromNodeID int
	ToNodeID   int
}

// Graph is the in-memory, read-only 4-connected grid. A nil *Graph has no
// nodes and answers every query with "not found".
type Graph struct {
	nodes   map[int]Node
	coord   *intintmap.Map // encodeCoord(x,y) -> node id
	blocked map[int64]struct{}
}

// cardinal step offsets, north/south/west/east. Order fixed so Neighbors is
// deterministic given a fixed node set.
var steps = [4][2]int{{0, -1}, {0, 1}, {-1, 0}, {1, 0}}

// New builds a Graph from a node set and a blocked-edge set. It returns
// ErrDuplicateNode if two nodes share an id or (x,y), and ErrDanglingEdge if
// a blocked edge names an id outside the node set.
func New(nodes []Node, blocked []BlockedEdge) (*Graph, error) {
	g := &Graph{
		nodes:   make(map[int]Node, len(nodes)),
		coord:   intintmap.New(int64(len(nodes))*2+16, 0.6),
		blocked: make(map[int64]struct{}, len(blocked)*2),
	}
	for _, n := range nodes {
		if _, ok := g.nodes[n.ID]; ok {
			return nil, fmt.Errorf("%w: node id %d", ErrDuplicateNode, n.ID)
		}
		key := encodeCoord(n.X, n.Y)
		if _, ok := g.coord.Get(key); ok {
			return nil, fmt.Errorf("%w: coordinate (%d,%d)", ErrDuplicateNode, n.X, n.Y)
		}
		g.nodes[n.ID] = n
		g.coord.Put(key, int64(n.ID))
	}
	for _, e := range blocked {
		if _, ok := g.nodes[e.FromNodeID]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrDanglingEdge, e.FromNodeID)
		}
		if _, ok := g.nodes[e.ToNodeID]; !ok {
			return nil, fmt.Errorf("%w: %d", ErrDanglingEdge, e.ToNodeID)
		}
		g.blocked[edgeKey(e.FromNodeID, e.ToNodeID)] = struct{}{}
		g.blocked[edgeKey(e.ToNodeID, e.FromNodeID)] = struct{}{}
	}
	return g, nil
}

// encodeCoord packs (x,y) into a single int64 key for the coordinate index.
// Coordinates are expected to fit comfortably within int32 range for a town
// grid, so a simple shift is sufficient and avoids allocating string keys on
// every lookup.
func encodeCoord(x, y int) int64 {
	return int64(x)<<32 | int64(uint32(y))
}

func edgeKey(a, b int) int64 {
	return int64(a)<<32 | int64(uint32(b))
}

// Node returns the node with the given id.
func (g *Graph) Node(id int) (Node, bool) {
	if g == nil {
		return Node{}, false
	}
	n, ok := g.nodes[id]
	return n, ok
}

// NodeAt returns the node occupying coordinate (x,y), if any.
func (g *Graph) NodeAt(x, y int) (Node, bool) {
	if g == nil {
		return Node{}, false
	}
	id, ok := g.coord.Get(encodeCoord(x, y))
	if !ok {
		return Node{}, false
	}
	n, ok := g.nodes[int(id)]
	return n, ok
}

// Blocked reports whether the edge between a and b (in either direction) is
// permanently blocked.
func (g *Graph) Blocked(a, b int) bool {
	if g == nil {
		return false
	}
	_, ok := g.blocked[edgeKey(a, b)]
	return ok
}

// Neighbors returns the up-to-4 node ids reachable from id in one cardinal
// step, excluding blocked edges and off-grid steps. The order is always
// north, south, west, east, so callers that need determinism (the
// pathfinder's tie-breaking) can rely on it.
func (g *Graph) Neighbors(id int) []int {
	if g == nil {
		return nil
	}
	n, ok := g.nodes[id]
	if !ok {
		return nil
	}
	out := make([]int, 0, 4)
	for _, d := range steps {
		nb, ok := g.NodeAt(n.X+d[0], n.Y+d[1])
		if !ok {
			continue
		}
		if g.Blocked(id, nb.ID) {
			continue
		}
		out = append(out, nb.ID)
	}
	return out
}

// Nodes returns every node in the graph, in ascending id order.
func (g *Graph) Nodes() []Node {
	if g == nil {
		return nil
	}
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BlockedEdges returns every permanently blocked edge, each reported once
// with FromNodeID < ToNodeID.
func (g *Graph) BlockedEdges() []BlockedEdge {
	if g == nil {
		return nil
	}
	out := make([]BlockedEdge, 0, len(g.blocked)/2)
	for key := range g.blocked {
		a := int(int32(key >> 32))
		b := int(int32(uint32(key)))
		if a < b {
			out = append(out, BlockedEdge{FromNodeID: a, ToNodeID: b})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromNodeID != out[j].FromNodeID {
			return out[i].FromNodeID < out[j].FromNodeID
		}
		return out[i].ToNodeID < out[j].ToNodeID
	})
	return out
}

// Len returns the number of nodes in the graph.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}
