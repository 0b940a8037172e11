package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/pathfinder/config"
)

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir             string
	observationFile *os.File
	milestoneFile   *os.File

	// Track if headers have been written
	observationHeaderWritten bool
	milestoneHeaderWritten   bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "observations.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating observations.csv: %w", err)
	}
	om.observationFile = f

	f, err = os.Create(filepath.Join(dir, "milestones.csv"))
	if err != nil {
		om.observationFile.Close()
		return nil, fmt.Errorf("creating milestones.csv: %w", err)
	}
	om.milestoneFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteObservation appends an observation to observations.csv.
func (om *OutputManager) WriteObservation(o Observation) error {
	if om == nil {
		return nil
	}
	if err := writeRecord(om.observationFile, []Observation{o}, &om.observationHeaderWritten); err != nil {
		return fmt.Errorf("writing observation: %w", err)
	}
	return nil
}

// WriteMilestone appends a milestone to milestones.csv.
func (om *OutputManager) WriteMilestone(m Milestone) error {
	if om == nil {
		return nil
	}
	if err := writeRecord(om.milestoneFile, []Milestone{m}, &om.milestoneHeaderWritten); err != nil {
		return fmt.Errorf("writing milestone: %w", err)
	}
	return nil
}

// writeRecord writes records as CSV, including the header on first use.
func writeRecord(f *os.File, records any, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}

// WriteResult saves the run result as JSON.
func (om *OutputManager) WriteResult(r Result) error {
	if om == nil {
		return nil
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}
	if err := os.WriteFile(filepath.Join(om.dir, "result.json"), data, 0644); err != nil {
		return fmt.Errorf("writing result.json: %w", err)
	}
	return nil
}

// WriteSnapshot saves a population snapshot under the snapshots directory.
func (om *OutputManager) WriteSnapshot(s *Snapshot) (string, error) {
	if om == nil || s == nil {
		return "", nil
	}
	return SaveSnapshot(s, filepath.Join(om.dir, "snapshots"))
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.observationFile, om.milestoneFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
