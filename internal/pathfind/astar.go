// Package pathfind implements the A* shortest-path search (spec C2) over an
// internal/grid.Graph: unit edge cost, Manhattan-distance heuristic, stable
// FIFO tie-breaking among equal f-scores.
package pathfind

import (
	"container/heap"

	"github.com/brentp/intintmap"

	"github.com/ron808/eagrouter/internal/grid"
)

// item is one entry in the open-set priority queue. seq breaks ties between
// equal f-scores in FIFO order (lower seq inserted earlier), matching the
// spec's "stable among equal f-scores" tie-break rule.
type item struct {
	node  int
	f     int
	seq   int64
	index int
}

type openSet []*item

func (q openSet) Len() int { return len(q) }
func (q openSet) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	return q[i].seq < q[j].seq
}
func (q openSet) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *openSet) Push(x any) {
	it := x.(*item)
	it.index = len(*q)
	*q = append(*q, it)
}
func (q *openSet) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// heuristic is the Manhattan distance, admissible and consistent on a
// 4-connected unit-cost grid.
func heuristic(g *grid.Graph, from, to int) int {
	a, _ := g.Node(from)
	b, _ := g.Node(to)
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// FindPath runs A* from s to goal over g. It returns the node-id sequence
// from s to goal inclusive, and true, on success. It returns (nil, false) if
// goal is unreachable. FindPath(s, s) returns ([]int{s}, true).
func FindPath(g *grid.Graph, s, goal int) ([]int, bool) {
	if _, ok := g.Node(s); !ok {
		return nil, false
	}
	if _, ok := g.Node(goal); !ok {
		return nil, false
	}
	if s == goal {
		return []int{s}, true
	}

	gScore := intintmap.New(64, 0.6)
	cameFrom := intintmap.New(64, 0.6)
	closed := make(map[int]struct{}, 64)

	gScore.Put(int64(s), 0)

	open := &openSet{}
	heap.Init(open)
	var seq int64
	heap.Push(open, &item{node: s, f: heuristic(g, s, goal), seq: seq})
	seq++

	for open.Len() > 0 {
		cur := heap.Pop(open).(*item)
		if cur.node == goal {
			return reconstruct(cameFrom, s, goal), true
		}
		if _, done := closed[cur.node]; done {
			continue
		}
		closed[cur.node] = struct{}{}

		curG, _ := gScore.Get(int64(cur.node))
		for _, nb := range g.Neighbors(cur.node) {
			if _, done := closed[nb]; done {
				continue
			}
			tentative := curG + 1
			existing, has := gScore.Get(int64(nb))
			if !has || tentative < existing {
				gScore.Put(int64(nb), tentative)
				cameFrom.Put(int64(nb), int64(cur.node))
				f := int(tentative) + heuristic(g, nb, goal)
				heap.Push(open, &item{node: nb, f: f, seq: seq})
				seq++
			}
		}
	}
	return nil, false
}

// reconstruct walks cameFrom backwards from goal to s and reverses the path.
func reconstruct(cameFrom *intintmap.Map, s, goal int) []int {
	path := []int{goal}
	cur := goal
	for cur != s {
		prev, ok := cameFrom.Get(int64(cur))
		if !ok {
			break
		}
		cur = int(prev)
		path = append(path, cur)
	}
	// reverse in place
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

// PathLength returns len(path)-1 (the number of edges traversed), or
// (-1, false) if goal is unreachable.
func PathLength(g *grid.Graph, s, goal int) (int, bool) {
	path, ok := FindPath(g, s, goal)
	if !ok {
		return -1, false
	}
	return len(path) - 1, true
}
