package telemetry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pthm-cable/pathfinder/grid"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version: SnapshotVersion,
		RunID:   "run-1",
		Seed:    42,
		Rows:    5,
		Cols:    4,
		Start:   grid.Cell{X: 1, Y: 1},
		Goal:    grid.Cell{X: 5, Y: 4},
		Time:    37.5,
		Events:  1000,
		Agents: []AgentState{
			{
				ID:         7,
				ParentID:   3,
				Generation: 2,
				Comfort:    0.42,
				Cost:       2,
				Path:       Route{{X: 1, Y: 1}, {X: 1, Y: 2}, {X: 2, Y: 2}},
			},
		},
		Milestone: &Milestone{
			Type:        MilestoneGoalReached,
			Observation: 4,
			Description: "Test milestone",
		},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Snapshot file not created at %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if loaded.Seed != snapshot.Seed {
		t.Errorf("Seed mismatch: got %d, want %d", loaded.Seed, snapshot.Seed)
	}
	if loaded.Events != snapshot.Events || loaded.Time != snapshot.Time {
		t.Errorf("clock mismatch: got %v/%d, want %v/%d", loaded.Time, loaded.Events, snapshot.Time, snapshot.Events)
	}
	if len(loaded.Agents) != 1 {
		t.Fatalf("Agents count mismatch: got %d, want 1", len(loaded.Agents))
	}
	got := loaded.Agents[0]
	if got.ID != 7 || got.Generation != 2 || got.Path.String() != "[(1, 1), (1, 2), (2, 2)]" {
		t.Errorf("agent mismatch: got %+v", got)
	}
	if loaded.Milestone == nil {
		t.Error("Milestone not loaded")
	} else if loaded.Milestone.Type != MilestoneGoalReached {
		t.Errorf("Milestone type mismatch: got %s, want %s", loaded.Milestone.Type, MilestoneGoalReached)
	}
}

func TestSnapshotFilename(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version:   SnapshotVersion,
		Events:    5000,
		Milestone: &Milestone{Type: MilestonePopulationCrash},
	}
	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	expected := filepath.Join(tmpDir, "snapshot_5000_population_crash.json")
	if path != expected {
		t.Errorf("Path mismatch: got %s, want %s", path, expected)
	}

	path, err = SaveSnapshot(&Snapshot{Version: SnapshotVersion, Events: 3000}, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	expected = filepath.Join(tmpDir, "snapshot_3000.json")
	if path != expected {
		t.Errorf("Path mismatch: got %s, want %s", path, expected)
	}
}

func TestLoadSnapshotVersionMismatch(t *testing.T) {
	path, err := SaveSnapshot(&Snapshot{Version: SnapshotVersion + 1}, t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(path); err == nil {
		t.Error("expected an error for a newer snapshot version")
	}
}
