package lookdev

import (
	"encoding/json"
	"fmt"
	"os"
)

// SaveRunReport writes a run report as indented JSON. Reports live outside
// the bundle root; the bundler stays the only writer in there.
func SaveRunReport(filename string, report *RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("save run report: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("save run report: %w", err)
	}
	return nil
}

// LoadRunReport reads a report written by SaveRunReport.
func LoadRunReport(filename string) (*RunReport, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("load run report: %w", err)
	}
	var report RunReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("load run report: %w", err)
	}
	return &report, nil
}
