// Package population owns the live agent set, its eviction policy and the
// global best-route record.
//
// Agents live in an ark ECS world. An agent's handle is its ecs.Entity;
// membership in the world is liveness. Handles of removed agents never
// become alive again, so events may keep them safely.
package population

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"slices"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/pathfinder/components"
	"github.com/pthm-cable/pathfinder/grid"
)

var (
	// ErrNotAlive is returned when operating on a removed agent.
	ErrNotAlive = errors.New("population: agent is not alive")
	// ErrInvalidParams is returned by New for unusable parameters.
	ErrInvalidParams = errors.New("population: invalid parameters")
)

// Grid is the map an agent walks on.
type Grid interface {
	ValidMoves(c grid.Cell) []grid.Cell
	Cost(a, b grid.Cell) int
	Size() int
	Cmax() int
	Start() grid.Cell
	Goal() grid.Cell
}

// Params holds the tunable population parameters.
type Params struct {
	MaxSize int     // cap restored by every eviction pass
	K       int     // fitness exponent
	Elite   int     // agents protected during an epidemic (0 = K)
	Mu      float64 // death time scale
	Delta   float64 // move time scale
	Ro      float64 // reproduction time scale
}

// Validate checks the parameters and fills in defaults.
func (p *Params) Validate() error {
	if p.Elite == 0 {
		p.Elite = p.K
	}
	switch {
	case p.MaxSize < 1:
		return fmt.Errorf("%w: max size %d", ErrInvalidParams, p.MaxSize)
	case p.K < 1:
		return fmt.Errorf("%w: k %d", ErrInvalidParams, p.K)
	case p.Elite < 0 || p.Elite > p.MaxSize:
		return fmt.Errorf("%w: elite %d not in [0, %d]", ErrInvalidParams, p.Elite, p.MaxSize)
	case !positive(p.Mu), !positive(p.Delta), !positive(p.Ro):
		return fmt.Errorf("%w: mu=%v delta=%v ro=%v must be positive", ErrInvalidParams, p.Mu, p.Delta, p.Ro)
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// Best is the global best-route record.
// Before the goal is reached it tracks the highest comfort ever seen;
// afterwards Complete stays true and Cost only decreases.
type Best struct {
	Path     []grid.Cell
	Cost     int
	Comfort  float64
	Complete bool
}

// Stats counts population events since creation.
type Stats struct {
	Births    int // reproductions
	Deaths    int // Death events and forced deaths that removed an agent
	Evictions int // agents removed by epidemics
	Trapped   int // forced deaths of agents with no valid move
}

// Population is the live agent set.
type Population struct {
	grid   Grid
	params Params

	world   *ecs.World
	mapper  *ecs.Map3[components.Path, components.Fitness, components.Lineage]
	filter  *ecs.Filter3[components.Path, components.Fitness, components.Lineage]
	paths   *ecs.Map[components.Path]
	fitness *ecs.Map[components.Fitness]
	lineage *ecs.Map[components.Lineage]

	size   int
	nextID uint64
	best   Best
	stats  Stats
}

// New creates an empty population over g.
func New(g Grid, params Params) (*Population, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	world := ecs.NewWorld()
	return &Population{
		grid:    g,
		params:  params,
		world:   world,
		mapper:  ecs.NewMap3[components.Path, components.Fitness, components.Lineage](world),
		filter:  ecs.NewFilter3[components.Path, components.Fitness, components.Lineage](world),
		paths:   ecs.NewMap[components.Path](world),
		fitness: ecs.NewMap[components.Fitness](world),
		lineage: ecs.NewMap[components.Lineage](world),
		best:    Best{Cost: math.MaxInt},
	}, nil
}

// Params returns the validated parameters.
func (p *Population) Params() Params { return p.params }

// Size returns the number of live agents.
func (p *Population) Size() int { return p.size }

// MaxSize returns the population cap.
func (p *Population) MaxSize() int { return p.params.MaxSize }

// Stats returns the event counters.
func (p *Population) Stats() Stats { return p.stats }

// Contains reports whether e is alive.
func (p *Population) Contains(e ecs.Entity) bool {
	return p.world.Alive(e)
}

// Spawn adds a seed agent standing on the start cell.
func (p *Population) Spawn(rng *rand.Rand) ecs.Entity {
	return p.AddIndividual(components.Path{Cells: []grid.Cell{p.grid.Start()}}, rng)
}

// AddIndividual inserts an agent with the given path and runs an eviction
// pass if the population exceeds its cap. The returned handle may already be
// dead if the new agent was evicted.
func (p *Population) AddIndividual(path components.Path, rng *rand.Rand) ecs.Entity {
	path = path.Clone()
	fit := components.Fitness{Comfort: p.comfort(&path)}
	e := p.insert(path, fit, components.Lineage{})
	p.afterAdd(rng)
	return e
}

func (p *Population) insert(path components.Path, fit components.Fitness, lin components.Lineage) ecs.Entity {
	p.nextID++
	lin.ID = p.nextID
	e := p.mapper.NewEntity(&path, &fit, &lin)
	p.size++
	return e
}

func (p *Population) afterAdd(rng *rand.Rand) {
	if p.size > p.params.MaxSize {
		p.Epidemic(rng)
	}
}

// RemoveIndividual removes e. Removing a dead agent is a no-op.
func (p *Population) RemoveIndividual(e ecs.Entity) bool {
	if !p.Contains(e) {
		return false
	}
	p.world.RemoveEntity(e)
	p.size--
	return true
}

// member is a snapshot of one agent taken for an eviction pass.
type member struct {
	entity  ecs.Entity
	comfort float64
	id      uint64
}

func (p *Population) members() []member {
	members := make([]member, 0, p.size)
	query := p.filter.Query()
	for query.Next() {
		_, fit, lin := query.Get()
		members = append(members, member{entity: query.Entity(), comfort: fit.Comfort, id: lin.ID})
	}
	slices.SortFunc(members, func(a, b member) int { return cmp.Compare(a.id, b.id) })
	return members
}

// Epidemic culls the population. The Elite fittest agents are protected;
// every other agent survives with probability equal to its comfort. If the
// random pass leaves the population above its cap, the least fit
// unprotected agents are evicted until the cap holds.
// Returns the number of evicted agents.
func (p *Population) Epidemic(rng *rand.Rand) int {
	before := p.size
	members := p.members()

	ranked := slices.Clone(members)
	slices.SortFunc(ranked, func(a, b member) int {
		if c := cmp.Compare(b.comfort, a.comfort); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	protected := make(map[uint64]bool, p.params.Elite)
	for _, m := range ranked[:min(p.params.Elite, len(ranked))] {
		protected[m.id] = true
	}

	evicted := 0
	for _, m := range members {
		if protected[m.id] {
			continue
		}
		if rng.Float64() > m.comfort && p.RemoveIndividual(m.entity) {
			evicted++
		}
	}

	for i := len(ranked) - 1; i >= 0 && p.size > p.params.MaxSize; i-- {
		m := ranked[i]
		if protected[m.id] {
			continue
		}
		if p.RemoveIndividual(m.entity) {
			evicted++
		}
	}

	p.stats.Evictions += evicted
	slog.Debug("epidemic", "before", before, "evicted", evicted, "after", p.size)
	return evicted
}

// Best returns a copy of the best-route record.
func (p *Population) Best() Best {
	b := p.best
	b.Path = slices.Clone(p.best.Path)
	return b
}

// SetBestPath stores a copy of path as the best route.
func (p *Population) SetBestPath(path []grid.Cell) {
	p.best.Path = slices.Clone(path)
}

// SetBestPathCost sets the best route cost.
func (p *Population) SetBestPathCost(cost int) { p.best.Cost = cost }

// SetBestComfort sets the best comfort seen.
func (p *Population) SetBestComfort(comfort float64) { p.best.Comfort = comfort }

// SetPathComplete marks the goal as reached.
func (p *Population) SetPathComplete(complete bool) { p.best.Complete = complete }

// Comforts returns the comfort of every live agent, ordered by agent id.
func (p *Population) Comforts() []float64 {
	members := p.members()
	out := make([]float64, len(members))
	for i, m := range members {
		out[i] = m.comfort
	}
	return out
}

// Entities returns the live agent handles, ordered by agent id.
func (p *Population) Entities() []ecs.Entity {
	members := p.members()
	out := make([]ecs.Entity, len(members))
	for i, m := range members {
		out[i] = m.entity
	}
	return out
}

func (p *Population) String() string {
	return fmt.Sprintf("Population{size=%d, maxSize=%d, complete=%t, bestCost=%d, bestComfort=%.4f}",
		p.size, p.params.MaxSize, p.best.Complete, p.best.Cost, p.best.Comfort)
}
