// Package components defines ECS components stored per agent.
package components

import "github.com/pthm-cable/pathfinder/grid"

// Path is the route an agent has walked from the start cell.
// Cells never repeat once a move completes; Cost is the sum of the edge
// costs between consecutive cells.
type Path struct {
	Cells []grid.Cell
	Cost  int
}

// Tip returns the agent's current cell.
func (p *Path) Tip() grid.Cell {
	return p.Cells[len(p.Cells)-1]
}

// Len returns the number of cells in the path.
func (p *Path) Len() int {
	return len(p.Cells)
}

// Clone returns a deep copy.
func (p *Path) Clone() Path {
	return Path{Cells: append([]grid.Cell(nil), p.Cells...), Cost: p.Cost}
}

// Fitness holds the agent's comfort, already clamped to (0, 1).
type Fitness struct {
	Comfort float64
}

// Lineage tracks identity and ancestry for telemetry and tie-breaking.
type Lineage struct {
	ID         uint64 // unique per population, never reused
	ParentID   uint64 // 0 for seed agents
	Generation int    // 0 for seed agents
}
