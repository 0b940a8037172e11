package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/pathfinder/config"
)

func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil || om != nil {
		t.Fatalf("NewOutputManager(\"\") = %v, %v, want nil, nil", om, err)
	}
	// All methods are nil-safe.
	if err := om.WriteObservation(Observation{}); err != nil {
		t.Error(err)
	}
	if err := om.WriteResult(Result{}); err != nil {
		t.Error(err)
	}
	if err := om.Close(); err != nil {
		t.Error(err)
	}
}

func TestOutputManagerWrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager failed: %v", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if err := om.WriteConfig(cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		o := Observation{Index: i, Time: float64(i * 5), BestPath: Route{{X: 1, Y: 1}, {X: 1, Y: 2}}}
		if err := om.WriteObservation(o); err != nil {
			t.Fatalf("WriteObservation failed: %v", err)
		}
	}
	if err := om.WriteMilestone(Milestone{Type: MilestoneGoalReached, Description: "done"}); err != nil {
		t.Fatalf("WriteMilestone failed: %v", err)
	}
	if err := om.WriteResult(Result{RunID: "abc", Complete: true, BestCost: 9}); err != nil {
		t.Fatalf("WriteResult failed: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "observations.csv"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 4 {
		t.Fatalf("observations.csv has %d lines, want header + 3", len(lines))
	}
	if !strings.HasPrefix(lines[0], "observation,time,events,size,complete,best_path") {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(lines[1], `"[(1, 1), (1, 2)]"`) {
		t.Errorf("route not marshalled: %s", lines[1])
	}

	data, err = os.ReadFile(filepath.Join(dir, "result.json"))
	if err != nil {
		t.Fatal(err)
	}
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		t.Fatalf("result.json: %v", err)
	}
	if r.RunID != "abc" || r.BestCost != 9 {
		t.Errorf("result = %+v", r)
	}

	if _, err := config.Load(filepath.Join(dir, "config.yaml")); err != nil {
		t.Errorf("config.yaml does not load: %v", err)
	}
}
