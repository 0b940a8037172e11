// Package grid provides the static cost/obstacle map agents walk on.
package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDimensions is returned when a grid has no cells.
	ErrInvalidDimensions = errors.New("grid: dimensions must be positive")
	// ErrOutOfBounds is returned when a cell lies outside [1,n] x [1,m].
	ErrOutOfBounds = errors.New("grid: cell out of bounds")
	// ErrBlockedEndpoint is returned when the start or goal is an obstacle.
	ErrBlockedEndpoint = errors.New("grid: start or goal is an obstacle")
	// ErrDegenerateRoute is returned when start and goal coincide.
	ErrDegenerateRoute = errors.New("grid: start and goal are the same cell")
	// ErrInvalidCost is returned for zone costs below 1.
	ErrInvalidCost = errors.New("grid: zone cost must be at least 1")
)

// Cell is a 1-based grid coordinate.
type Cell struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Manhattan returns the L1 distance between two cells.
func (c Cell) Manhattan(o Cell) int {
	return abs(c.X-o.X) + abs(c.Y-o.Y)
}

// Zone is a rectangular special cost zone. Corners may be given in any order.
type Zone struct {
	From Cell `json:"from" yaml:"from"`
	To   Cell `json:"to" yaml:"to"`
	Cost int  `json:"cost" yaml:"cost"`
}

// normalized returns the zone with From as the min corner and To as the max corner.
func (z Zone) normalized() Zone {
	if z.From.X > z.To.X {
		z.From.X, z.To.X = z.To.X, z.From.X
	}
	if z.From.Y > z.To.Y {
		z.From.Y, z.To.Y = z.To.Y, z.From.Y
	}
	return z
}

// covers reports whether c lies inside the closed rectangle.
func (z Zone) covers(c Cell) bool {
	return z.From.X <= c.X && c.X <= z.To.X && z.From.Y <= c.Y && c.Y <= z.To.Y
}

// Grid is an n x m lattice of cells with obstacles and cost zones.
// It is immutable after construction and safe to share for reads.
type Grid struct {
	n, m  int
	start Cell
	goal  Cell

	blocked   []bool // row-major, true = obstacle
	obstacles []Cell
	zones     []Zone
	cmax      int
}

// New builds a grid with n rows (x in [1,n]) and m columns (y in [1,m]).
// Zone corners are clamped to the grid; obstacles outside the grid are rejected.
func New(n, m int, start, goal Cell, zones []Zone, obstacles []Cell) (*Grid, error) {
	if n < 1 || m < 1 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, n, m)
	}

	g := &Grid{
		n:       n,
		m:       m,
		start:   start,
		goal:    goal,
		blocked: make([]bool, n*m),
		cmax:    1,
	}

	if !g.Contains(start) {
		return nil, fmt.Errorf("start %v: %w", start, ErrOutOfBounds)
	}
	if !g.Contains(goal) {
		return nil, fmt.Errorf("goal %v: %w", goal, ErrOutOfBounds)
	}
	if start == goal {
		return nil, ErrDegenerateRoute
	}

	for _, o := range obstacles {
		if !g.Contains(o) {
			return nil, fmt.Errorf("obstacle %v: %w", o, ErrOutOfBounds)
		}
		if g.blocked[g.index(o)] {
			continue
		}
		g.blocked[g.index(o)] = true
		g.obstacles = append(g.obstacles, o)
	}
	if g.IsObstacle(start) || g.IsObstacle(goal) {
		return nil, ErrBlockedEndpoint
	}

	if len(zones) > 0 {
		g.cmax = 0
	}
	for _, z := range zones {
		if z.Cost < 1 {
			return nil, fmt.Errorf("zone %v-%v cost %d: %w", z.From, z.To, z.Cost, ErrInvalidCost)
		}
		z = g.clampZone(z.normalized())
		g.zones = append(g.zones, z)
		if z.Cost > g.cmax {
			g.cmax = z.Cost
		}
	}

	return g, nil
}

func (g *Grid) clampZone(z Zone) Zone {
	z.From.X = clamp(z.From.X, 1, g.n)
	z.To.X = clamp(z.To.X, 1, g.n)
	z.From.Y = clamp(z.From.Y, 1, g.m)
	z.To.Y = clamp(z.To.Y, 1, g.m)
	return z
}

func (g *Grid) index(c Cell) int {
	return (c.X-1)*g.m + (c.Y - 1)
}

// Rows returns n.
func (g *Grid) Rows() int { return g.n }

// Cols returns m.
func (g *Grid) Cols() int { return g.m }

// Start returns the start cell.
func (g *Grid) Start() Cell { return g.start }

// Goal returns the goal cell.
func (g *Grid) Goal() Cell { return g.goal }

// Size returns rows + cols.
func (g *Grid) Size() int { return g.n + g.m }

// Cmax returns the largest zone cost, or 1 when there are no zones.
func (g *Grid) Cmax() int { return g.cmax }

// Contains reports whether c lies within [1,n] x [1,m].
func (g *Grid) Contains(c Cell) bool {
	return c.X >= 1 && c.X <= g.n && c.Y >= 1 && c.Y <= g.m
}

// IsObstacle returns true if c is blocked. Out of bounds is blocked.
func (g *Grid) IsObstacle(c Cell) bool {
	if !g.Contains(c) {
		return true
	}
	return g.blocked[g.index(c)]
}

// ValidMoves returns the orthogonal neighbours of c that are in bounds and
// not obstacles, in the order x-1, x+1, y-1, y+1.
func (g *Grid) ValidMoves(c Cell) []Cell {
	moves := make([]Cell, 0, 4)
	for _, next := range [4]Cell{
		{c.X - 1, c.Y},
		{c.X + 1, c.Y},
		{c.X, c.Y - 1},
		{c.X, c.Y + 1},
	} {
		if !g.IsObstacle(next) {
			moves = append(moves, next)
		}
	}
	return moves
}

// Cost returns the traversal cost of the edge a-b: the largest cost among
// zones covering both endpoints, or 1.
func (g *Grid) Cost(a, b Cell) int {
	cost := 1
	for _, z := range g.zones {
		if z.Cost > cost && z.covers(a) && z.covers(b) {
			cost = z.Cost
		}
	}
	return cost
}

// Zones returns a copy of the normalized cost zones.
func (g *Grid) Zones() []Zone {
	return append([]Zone(nil), g.zones...)
}

// Obstacles returns a copy of the distinct obstacle cells.
func (g *Grid) Obstacles() []Cell {
	return append([]Cell(nil), g.obstacles...)
}

func (g *Grid) String() string {
	return fmt.Sprintf("Grid{n=%d, m=%d, start=%v, goal=%v, cmax=%d}", g.n, g.m, g.start, g.goal, g.cmax)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
