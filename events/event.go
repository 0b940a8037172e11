package events

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/mlange-42/ark/ecs"
)

// Kind identifies an event variant.
type Kind uint8

const (
	Move Kind = iota
	Death
	Reproduction
)

func (k Kind) String() string {
	switch k {
	case Move:
		return "move"
	case Death:
		return "death"
	case Reproduction:
		return "reproduction"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Event is a scheduled action on one agent.
type Event struct {
	Time  float64
	Kind  Kind
	Agent ecs.Entity

	seq uint64 // insertion order, breaks time ties
}

func (ev Event) String() string {
	return fmt.Sprintf("%s@%.4f", ev.Kind, ev.Time)
}

// Scheduler accepts follow-on events and exposes the live clock.
type Scheduler interface {
	Now() float64
	Schedule(ev Event) error
}

// Agents is the population as seen by events.
// *population.Population implements it.
type Agents interface {
	Contains(e ecs.Entity) bool
	Move(e ecs.Entity, rng *rand.Rand) error
	Die(e ecs.Entity)
	Reproduce(e ecs.Entity, rng *rand.Rand) (ecs.Entity, error)
	MoveTime(e ecs.Entity) float64
	DeathTime(e ecs.Entity) float64
	ReproductionTime(e ecs.Entity) float64
}

// Cadence selects the interval between a parent's reproductions.
type Cadence uint8

const (
	// CadenceMove reuses the parent's move interval.
	CadenceMove Cadence = iota
	// CadenceReproduction uses the parent's reproduction interval.
	CadenceReproduction
)

// ErrUnknownCadence is returned by ParseCadence.
var ErrUnknownCadence = errors.New("events: unknown cadence")

// ParseCadence maps a config value to a Cadence. Empty means CadenceMove.
func ParseCadence(s string) (Cadence, error) {
	switch s {
	case "", "move":
		return CadenceMove, nil
	case "reproduction":
		return CadenceReproduction, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCadence, s)
	}
}

func (c Cadence) String() string {
	if c == CadenceReproduction {
		return "reproduction"
	}
	return "move"
}

// Env carries what an event needs to run.
type Env struct {
	Scheduler Scheduler
	Agents    Agents
	Rand      *rand.Rand
	Cadence   Cadence
}

// Execute applies the event. Events on dead agents are no-ops.
func (ev Event) Execute(env Env) error {
	a := env.Agents
	if !a.Contains(ev.Agent) {
		return nil
	}

	switch ev.Kind {
	case Move:
		if err := a.Move(ev.Agent, env.Rand); err != nil {
			return fmt.Errorf("move: %w", err)
		}
		if a.Contains(ev.Agent) {
			return schedule(env.Scheduler, Move, ev.Agent, a.MoveTime(ev.Agent))
		}
		return nil

	case Death:
		a.Die(ev.Agent)
		return nil

	case Reproduction:
		child, err := a.Reproduce(ev.Agent, env.Rand)
		if err != nil {
			return fmt.Errorf("reproduce: %w", err)
		}
		if a.Contains(ev.Agent) {
			next := a.MoveTime(ev.Agent)
			if env.Cadence == CadenceReproduction {
				next = a.ReproductionTime(ev.Agent)
			}
			if err := schedule(env.Scheduler, Reproduction, ev.Agent, next); err != nil {
				return err
			}
		}
		if !a.Contains(child) {
			return nil
		}
		return SeedAgent(env.Scheduler, a, child)

	default:
		return fmt.Errorf("events: unknown kind %d", ev.Kind)
	}
}

// SeedAgent schedules the first Move, Death and Reproduction of e.
func SeedAgent(s Scheduler, a Agents, e ecs.Entity) error {
	if err := schedule(s, Move, e, a.MoveTime(e)); err != nil {
		return err
	}
	if err := schedule(s, Death, e, a.DeathTime(e)); err != nil {
		return err
	}
	return schedule(s, Reproduction, e, a.ReproductionTime(e))
}

// schedule adds a follow-on event offset from the live clock. Events past
// the horizon end the chain silently.
func schedule(s Scheduler, kind Kind, e ecs.Entity, offset float64) error {
	err := s.Schedule(Event{Time: s.Now() + offset, Kind: kind, Agent: e})
	var tre *TimeRangeError
	if errors.As(err, &tre) && tre.Time > tre.Horizon {
		return nil
	}
	return err
}
