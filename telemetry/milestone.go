package telemetry

import (
	"fmt"
	"log/slog"
)

// MilestoneType identifies the type of milestone.
type MilestoneType string

const (
	MilestoneGoalReached     MilestoneType = "goal_reached"
	MilestoneCostImproved    MilestoneType = "cost_improved"
	MilestonePopulationCrash MilestoneType = "population_crash"
	MilestoneExtinction      MilestoneType = "extinction"
	MilestoneStagnation      MilestoneType = "stagnation"
)

// Milestone is a notable moment detected from the observation stream.
type Milestone struct {
	Type        MilestoneType `csv:"type"`
	Observation int           `csv:"observation"`
	Time        float64       `csv:"time"`
	Description string        `csv:"description"`
}

// LogMilestone logs the milestone using slog.
func (m Milestone) LogMilestone() {
	slog.Info("milestone",
		"type", string(m.Type),
		"observation", m.Observation,
		"time", m.Time,
		"description", m.Description,
	)
}

// MilestoneDetector watches successive observations.
type MilestoneDetector struct {
	// Rolling history of population sizes (circular buffer)
	history     []int
	historyIdx  int
	historyFull bool

	stagnationWindow int
	crashFraction    float64

	seen             bool
	last             Observation
	sinceImprovement int
}

// NewMilestoneDetector creates a detector. A stagnation milestone fires
// after stagnationWindow observations without improvement; a crash fires
// when the population drops by more than crashFraction from its recent peak.
func NewMilestoneDetector(stagnationWindow int, crashFraction float64) *MilestoneDetector {
	if stagnationWindow < 1 {
		stagnationWindow = 5
	}
	if crashFraction <= 0 || crashFraction >= 1 {
		crashFraction = 0.5
	}
	return &MilestoneDetector{
		history:          make([]int, stagnationWindow),
		stagnationWindow: stagnationWindow,
		crashFraction:    crashFraction,
	}
}

// Check analyzes the latest observation and returns any triggered milestones.
func (d *MilestoneDetector) Check(o Observation) []Milestone {
	var milestones []Milestone
	add := func(t MilestoneType, format string, args ...any) {
		milestones = append(milestones, Milestone{
			Type:        t,
			Observation: o.Index,
			Time:        o.Time,
			Description: fmt.Sprintf(format, args...),
		})
	}

	if d.seen {
		prev := d.last
		improved := false
		switch {
		case o.Complete && !prev.Complete:
			add(MilestoneGoalReached, "Goal reached with cost %d after %d events", o.BestCost, o.Events)
			improved = true
		case o.Complete && o.BestCost < prev.BestCost:
			add(MilestoneCostImproved, "Best cost improved from %d to %d", prev.BestCost, o.BestCost)
			improved = true
		case !o.Complete && o.BestComfort > prev.BestComfort:
			improved = true
		}

		if improved {
			d.sinceImprovement = 0
		} else {
			d.sinceImprovement++
			if d.sinceImprovement == d.stagnationWindow { // trigger once per streak
				add(MilestoneStagnation, "No improvement over %d observations", d.stagnationWindow)
			}
		}

		if o.Size == 0 && prev.Size > 0 {
			add(MilestoneExtinction, "Population died out")
		} else if peak := d.recentPeak(); peak > 0 && float64(o.Size) < float64(peak)*(1-d.crashFraction) {
			add(MilestonePopulationCrash, "Population crashed %.0f%% from peak %d to %d",
				(1-float64(o.Size)/float64(peak))*100, peak, o.Size)
			d.resetHistory()
		}
	} else if o.Complete {
		add(MilestoneGoalReached, "Goal reached with cost %d after %d events", o.BestCost, o.Events)
	}

	d.addToHistory(o.Size)
	d.last = o
	d.seen = true
	return milestones
}

func (d *MilestoneDetector) addToHistory(size int) {
	d.history[d.historyIdx] = size
	d.historyIdx = (d.historyIdx + 1) % len(d.history)
	if d.historyIdx == 0 {
		d.historyFull = true
	}
}

func (d *MilestoneDetector) resetHistory() {
	clear(d.history)
	d.historyIdx = 0
	d.historyFull = false
}

func (d *MilestoneDetector) recentPeak() int {
	h := d.history
	if !d.historyFull {
		h = h[:d.historyIdx]
	}
	peak := 0
	for _, s := range h {
		peak = max(peak, s)
	}
	return peak
}
