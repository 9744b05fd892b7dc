package grid

import (
	"errors"
	"testing"
)

func smallGrid(t *testing.T) *Graph {
	t.Helper()
	nodes := []Node{
		{ID: 1, X: 0, Y: 0},
		{ID: 2, X: 1, Y: 0},
		{ID: 3, X: 0, Y: 1, IsDeliveryPoint: true},
		{ID: 4, X: 1, Y: 1},
	}
	g, err := New(nodes, []BlockedEdge{{FromNodeID: 1, ToNodeID: 2}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestNewDuplicateNodeID(t *testing.T) {
	_, err := New([]Node{{ID: 1, X: 0, Y: 0}, {ID: 1, X: 1, Y: 1}}, nil)
	if !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("got %v, want ErrDuplicateNode", err)
	}
}

func TestNewDuplicateCoordinate(t *testing.T) {
	_, err := New([]Node{{ID: 1, X: 0, Y: 0}, {ID: 2, X: 0, Y: 0}}, nil)
	if !errors.Is(err, ErrDuplicateNode) {
		t.Fatalf("got %v, want ErrDuplicateNode", err)
	}
}

func TestNewDanglingEdge(t *testing.T) {
	_, err := New([]Node{{ID: 1, X: 0, Y: 0}}, []BlockedEdge{{FromNodeID: 1, ToNodeID: 99}})
	if !errors.Is(err, ErrDanglingEdge) {
		t.Fatalf("got %v, want ErrDanglingEdge", err)
	}
}

func TestBlockedEdgeBlocksBothDirections(t *testing.T) {
	g := smallGrid(t)
	if !g.Blocked(1, 2) || !g.Blocked(2, 1) {
		t.Fatal("blocked edge should block both directions")
	}
}

func TestNeighborsExcludesBlockedAndOffGrid(t *testing.T) {
	g := smallGrid(t)
	nb := g.Neighbors(1)
	for _, id := range nb {
		if id == 2 {
			t.Fatalf("neighbors of 1 should not include blocked node 2, got %v", nb)
		}
	}
	if len(nb) != 1 || nb[0] != 3 {
		t.Fatalf("neighbors of node 1 = %v, want [3]", nb)
	}
}

func TestNodeAt(t *testing.T) {
	g := smallGrid(t)
	n, ok := g.NodeAt(1, 1)
	if !ok || n.ID != 4 {
		t.Fatalf("NodeAt(1,1) = %+v, %v", n, ok)
	}
	if _, ok := g.NodeAt(5, 5); ok {
		t.Fatal("NodeAt out of range should report not found")
	}
}

func TestNilGraphIsSafe(t *testing.T) {
	var g *Graph
	if _, ok := g.Node(1); ok {
		t.Fatal("nil graph Node should report not found")
	}
	if g.Neighbors(1) != nil {
		t.Fatal("nil graph Neighbors should be nil")
	}
	if g.Len() != 0 {
		t.Fatal("nil graph Len should be 0")
	}
}

func TestNodesAndBlockedEdgesSorted(t *testing.T) {
	g := smallGrid(t)
	nodes := g.Nodes()
	for i := 1; i < len(nodes); i++ {
		if nodes[i-1].ID >= nodes[i].ID {
			t.Fatalf("Nodes() not sorted: %v", nodes)
		}
	}
	edges := g.BlockedEdges()
	if len(edges) != 1 || edges[0].FromNodeID != 1 || edges[0].ToNodeID != 2 {
		t.Fatalf("BlockedEdges() = %v, want one edge 1->2", edges)
	}
}
