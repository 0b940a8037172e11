package population

import (
	"math"
	"math/rand"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/pathfinder/components"
	"github.com/pthm-cable/pathfinder/grid"
)

// ComfortFloor bounds comfort away from 0 and 1 so the timing logarithms
// stay finite.
const ComfortFloor = 1e-9

// Comfort computes an agent's fitness from its path cost, path length and
// Manhattan distance to the goal. The result is clamped to
// [ComfortFloor, 1-ComfortFloor].
func Comfort(cost, length, dist, cmax, size, k int) float64 {
	penalty := (float64(cost) - float64(length) + 2) / ((float64(cmax)-1)*float64(length) + 3)
	proximity := 1 - float64(dist)/(float64(size)+1)
	c := math.Pow(1-penalty, float64(k)) * math.Pow(proximity, float64(k))
	return clampComfort(c)
}

func clampComfort(c float64) float64 {
	if math.IsNaN(c) || c < ComfortFloor {
		return ComfortFloor
	}
	if c > 1-ComfortFloor {
		return 1 - ComfortFloor
	}
	return c
}

func (p *Population) comfort(path *components.Path) float64 {
	return Comfort(path.Cost, path.Len(), path.Tip().Manhattan(p.grid.Goal()),
		p.grid.Cmax(), p.grid.Size(), p.params.K)
}

// truncate cuts the path back to index i (kept), subtracting the cost of
// every discarded edge.
func (p *Population) truncate(path *components.Path, i int) {
	for j := path.Len() - 1; j > i; j-- {
		path.Cost -= p.grid.Cost(path.Cells[j-1], path.Cells[j])
	}
	path.Cells = path.Cells[:i+1]
}

// breakCycle truncates the path back to the first occurrence of c.
// Returns false if c is not on the path.
func (p *Population) breakCycle(path *components.Path, c grid.Cell) bool {
	i := slices.Index(path.Cells, c)
	if i < 0 {
		return false
	}
	p.truncate(path, i)
	return true
}

// Move steps e to a uniformly chosen valid neighbour. Stepping onto a cell
// already on the path removes the cycle instead of extending the path.
// An agent with no valid move dies.
func (p *Population) Move(e ecs.Entity, rng *rand.Rand) error {
	if !p.Contains(e) {
		return ErrNotAlive
	}

	path := p.paths.Get(e)
	moves := p.grid.ValidMoves(path.Tip())
	if len(moves) == 0 {
		p.stats.Trapped++
		p.Die(e)
		return nil
	}

	next := moves[rng.Intn(len(moves))]
	if !p.breakCycle(path, next) {
		path.Cost += p.grid.Cost(path.Tip(), next)
		path.Cells = append(path.Cells, next)
	}

	fit := p.fitness.Get(e)
	fit.Comfort = p.comfort(path)
	p.record(path, fit.Comfort)
	return nil
}

// record updates the best-route record after a move.
func (p *Population) record(path *components.Path, comfort float64) {
	if !p.best.Complete && comfort > p.best.Comfort {
		p.SetBestComfort(comfort)
		p.SetBestPath(path.Cells)
		p.SetBestPathCost(path.Cost)
	}

	if path.Tip() != p.grid.Goal() {
		return
	}
	if !p.best.Complete {
		p.SetPathComplete(true)
		p.SetBestPath(path.Cells)
		p.SetBestPathCost(path.Cost)
		return
	}
	if path.Cost < p.best.Cost {
		p.SetBestPath(path.Cells)
		p.SetBestPathCost(path.Cost)
	}
}

// Reproduce adds a child of e. The child inherits a prefix of the parent's
// path; fitter parents pass on a longer prefix. Adding the child may trigger
// an epidemic, which can evict the child itself.
func (p *Population) Reproduce(e ecs.Entity, rng *rand.Rand) (ecs.Entity, error) {
	if !p.Contains(e) {
		return ecs.Entity{}, ErrNotAlive
	}

	parentComfort := p.fitness.Get(e).Comfort
	parentLineage := *p.lineage.Get(e)
	child := p.paths.Get(e).Clone()

	anchor := int(math.Ceil(float64(child.Len())*(0.9+parentComfort*0.1))) - 1
	anchor = max(0, min(anchor, child.Len()-1))
	p.truncate(&child, anchor)

	fit := components.Fitness{Comfort: p.comfort(&child)}
	entity := p.insert(child, fit, components.Lineage{
		ParentID:   parentLineage.ID,
		Generation: parentLineage.Generation + 1,
	})
	p.stats.Births++
	p.afterAdd(rng)
	return entity, nil
}

// Die removes e. Dying twice is a no-op.
func (p *Population) Die(e ecs.Entity) {
	if p.RemoveIndividual(e) {
		p.stats.Deaths++
	}
}

// DeathTime returns the delay until e's death, (1 - ln(1 - c)) * mu.
// Dead agents return +Inf.
func (p *Population) DeathTime(e ecs.Entity) float64 {
	c, ok := p.ComfortOf(e)
	if !ok {
		return math.Inf(1)
	}
	return (1 - math.Log(1-c)) * p.params.Mu
}

// MoveTime returns the delay until e's next move, (1 - ln c) * delta.
// Dead agents return +Inf.
func (p *Population) MoveTime(e ecs.Entity) float64 {
	c, ok := p.ComfortOf(e)
	if !ok {
		return math.Inf(1)
	}
	return (1 - math.Log(c)) * p.params.Delta
}

// ReproductionTime returns the delay until e's next reproduction,
// (1 - ln c) * ro. Dead agents return +Inf.
func (p *Population) ReproductionTime(e ecs.Entity) float64 {
	c, ok := p.ComfortOf(e)
	if !ok {
		return math.Inf(1)
	}
	return (1 - math.Log(c)) * p.params.Ro
}

// ComfortOf returns e's comfort.
func (p *Population) ComfortOf(e ecs.Entity) (float64, bool) {
	if !p.Contains(e) {
		return 0, false
	}
	return p.fitness.Get(e).Comfort, true
}

// PathOf returns a copy of e's path and its cost.
func (p *Population) PathOf(e ecs.Entity) ([]grid.Cell, int, bool) {
	if !p.Contains(e) {
		return nil, 0, false
	}
	path := p.paths.Get(e)
	return slices.Clone(path.Cells), path.Cost, true
}

// LineageOf returns e's lineage record.
func (p *Population) LineageOf(e ecs.Entity) (components.Lineage, bool) {
	if !p.Contains(e) {
		return components.Lineage{}, false
	}
	return *p.lineage.Get(e), true
}
