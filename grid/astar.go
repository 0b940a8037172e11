package grid

import "container/heap"

// astarNode is a node in the A* open set.
type astarNode struct {
	cell  Cell
	g     int // cost from start
	f     int // g + heuristic
	index int // heap index
}

// nodeHeap implements heap.Interface for the A* open set.
// Ties on f prefer the deeper node, which keeps the search narrow.
type nodeHeap []*astarNode

func (h nodeHeap) Len() int { return len(h) }
func (h nodeHeap) Less(i, j int) bool {
	if h[i].f != h[j].f {
		return h[i].f < h[j].f
	}
	return h[i].g > h[j].g
}
func (h nodeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *nodeHeap) Push(x any) {
	n := x.(*astarNode)
	n.index = len(*h)
	*h = append(*h, n)
}

func (h *nodeHeap) Pop() any {
	old := *h
	n := len(old)
	node := old[n-1]
	old[n-1] = nil
	node.index = -1
	*h = old[0 : n-1]
	return node
}

// ShortestPath computes a minimum-cost route from start to goal with A*.
// Manhattan distance is admissible because every edge costs at least 1.
// Returns false when the goal is unreachable.
func (g *Grid) ShortestPath() ([]Cell, int, bool) {
	start, goal := g.start, g.goal

	gScore := make([]int, g.n*g.m)
	for i := range gScore {
		gScore[i] = -1
	}
	cameFrom := make([]int, g.n*g.m)
	closed := make([]bool, g.n*g.m)

	open := &nodeHeap{}
	startID := g.index(start)
	gScore[startID] = 0
	cameFrom[startID] = -1
	heap.Push(open, &astarNode{cell: start, g: 0, f: start.Manhattan(goal)})

	for open.Len() > 0 {
		current := heap.Pop(open).(*astarNode)
		currentID := g.index(current.cell)
		if closed[currentID] {
			continue // stale entry
		}
		closed[currentID] = true

		if current.cell == goal {
			return g.reconstruct(cameFrom, currentID), current.g, true
		}

		for _, next := range g.ValidMoves(current.cell) {
			nextID := g.index(next)
			if closed[nextID] {
				continue
			}
			tentative := current.g + g.Cost(current.cell, next)
			if gScore[nextID] >= 0 && tentative >= gScore[nextID] {
				continue
			}
			gScore[nextID] = tentative
			cameFrom[nextID] = currentID
			heap.Push(open, &astarNode{cell: next, g: tentative, f: tentative + next.Manhattan(goal)})
		}
	}

	return nil, 0, false
}

// OptimalCost returns the minimum start-to-goal route cost, if reachable.
func (g *Grid) OptimalCost() (int, bool) {
	_, cost, ok := g.ShortestPath()
	return cost, ok
}

func (g *Grid) cellAt(id int) Cell {
	return Cell{X: id/g.m + 1, Y: id%g.m + 1}
}

func (g *Grid) reconstruct(cameFrom []int, goalID int) []Cell {
	var rev []Cell
	for id := goalID; id >= 0; id = cameFrom[id] {
		rev = append(rev, g.cellAt(id))
	}
	path := make([]Cell, len(rev))
	for i, c := range rev {
		path[len(rev)-1-i] = c
	}
	return path
}
