// Package events implements the discrete-event engine: a time-ordered
// pending event set, the simulation clock, snapshot boundaries and the
// Move, Death and Reproduction event variants.
package events

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"math/rand"
)

// DefaultSnapshots is the number of evenly spaced observation boundaries
// within the horizon.
const DefaultSnapshots = 20

var (
	// ErrInvalidHorizon is returned by NewQueue for a non-positive or
	// non-finite horizon.
	ErrInvalidHorizon = errors.New("events: horizon must be finite and positive")
	// ErrOutOfRangeTime is wrapped by TimeRangeError.
	ErrOutOfRangeTime = errors.New("events: time outside [0, horizon]")
)

// TimeRangeError reports an event rejected for its time.
type TimeRangeError struct {
	Time    float64
	Horizon float64
}

func (e *TimeRangeError) Error() string {
	return fmt.Sprintf("events: time %v outside [0, %v]", e.Time, e.Horizon)
}

func (e *TimeRangeError) Unwrap() error { return ErrOutOfRangeTime }

// Outcome is the result of one Next call.
type Outcome uint8

const (
	// Executed means the earliest event ran.
	Executed Outcome = iota
	// Snapshot means the clock reached an observation boundary.
	Snapshot
	// Empty means no events remain. It is terminal.
	Empty
)

func (o Outcome) String() string {
	switch o {
	case Executed:
		return "executed"
	case Snapshot:
		return "snapshot"
	case Empty:
		return "empty"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// eventHeap orders events by time, then insertion order.
type eventHeap []Event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	*h = old[:n-1]
	return ev
}

// Option configures a Queue.
type Option func(*Queue)

// WithCadence sets the parent reproduction cadence.
func WithCadence(c Cadence) Option {
	return func(q *Queue) { q.cadence = c }
}

// WithSnapshots sets the number of observation boundaries. Values below 1
// are ignored.
func WithSnapshots(n int) Option {
	return func(q *Queue) {
		if n >= 1 {
			q.snapshots = n
		}
	}
}

// Queue is the pending event set and simulation clock. It is not safe for
// concurrent use; each replica owns its own queue.
type Queue struct {
	horizon   float64
	snapshots int
	interval  float64
	cadence   Cadence

	agents Agents
	rng    *rand.Rand

	pending      eventHeap
	seq          uint64
	now          float64
	boundary     int // index of the next snapshot boundary
	nextSnapshot float64
	executed     int
}

// NewQueue creates an empty queue running events against agents.
func NewQueue(horizon float64, agents Agents, rng *rand.Rand, opts ...Option) (*Queue, error) {
	if !(horizon > 0) || math.IsInf(horizon, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHorizon, horizon)
	}
	q := &Queue{
		horizon:   horizon,
		snapshots: DefaultSnapshots,
		agents:    agents,
		rng:       rng,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.interval = horizon / float64(q.snapshots)
	q.boundary = 1
	q.nextSnapshot = q.interval
	return q, nil
}

// AddEvent inserts ev if 0 <= ev.Time <= horizon. Otherwise it returns a
// *TimeRangeError and the queue is unchanged.
func (q *Queue) AddEvent(ev Event) error {
	if !(ev.Time >= 0 && ev.Time <= q.horizon) {
		return &TimeRangeError{Time: ev.Time, Horizon: q.horizon}
	}
	q.seq++
	ev.seq = q.seq
	heap.Push(&q.pending, ev)
	return nil
}

// Schedule implements Scheduler.
func (q *Queue) Schedule(ev Event) error { return q.AddEvent(ev) }

// Next advances the simulation by one step.
//
// If the earliest event lies at or past the next snapshot boundary, the
// clock jumps to the boundary and Snapshot is returned without consuming
// the event. Otherwise the event is removed and executed with the clock
// already set to its time.
func (q *Queue) Next() (Outcome, error) {
	if len(q.pending) == 0 {
		return Empty, nil
	}

	if q.pending[0].Time >= q.nextSnapshot {
		q.now = q.nextSnapshot
		q.boundary++
		// Multiply rather than accumulate to avoid drift.
		q.nextSnapshot = q.interval * float64(q.boundary)
		return Snapshot, nil
	}

	ev := heap.Pop(&q.pending).(Event)
	q.now = ev.Time
	q.executed++

	env := Env{Scheduler: q, Agents: q.agents, Rand: q.rng, Cadence: q.cadence}
	if err := ev.Execute(env); err != nil {
		return Executed, fmt.Errorf("executing %v: %w", ev, err)
	}
	return Executed, nil
}

// Now returns the simulation clock.
func (q *Queue) Now() float64 { return q.now }

// EventsCount returns the number of executed events.
func (q *Queue) EventsCount() int { return q.executed }

// Len returns the number of pending events.
func (q *Queue) Len() int { return len(q.pending) }

// Horizon returns the simulation end time.
func (q *Queue) Horizon() float64 { return q.horizon }

// NextSnapshot returns the next observation boundary.
func (q *Queue) NextSnapshot() float64 { return q.nextSnapshot }

// Cadence returns the parent reproduction cadence.
func (q *Queue) Cadence() Cadence { return q.cadence }

func (q *Queue) String() string {
	return fmt.Sprintf("Queue{horizon=%v, now=%v, nextSnapshot=%v, pending=%d, executed=%d}",
		q.horizon, q.now, q.nextSnapshot, len(q.pending), q.executed)
}
