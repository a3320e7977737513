// Package model defines the core domain types shared across the application.
package model

import "fmt"

// Severity classifies how urgent a fault is.
type Severity string

const (
	// SeverityMinor represents faults that can wait for scheduled maintenance.
	SeverityMinor Severity = "Minor"
	// SeverityWarning represents faults that need attention soon.
	SeverityWarning Severity = "Warning"
	// SeverityCritical represents faults that require stopping the machine.
	SeverityCritical Severity = "Critical"
)

// Validate checks that the severity is one of the known levels.
func (s Severity) Validate() error {
	switch s {
	case SeverityMinor, SeverityWarning, SeverityCritical:
		return nil
	default:
		return fmt.Errorf("invalid severity: %s", s)
	}
}

// FaultCode is a curated knowledge base entry for a known equipment fault.
// Entries are immutable after the catalog is loaded.
type FaultCode struct {
	Code     string   `yaml:"code"`
	Brand    string   `yaml:"brand"`
	Problem  string   `yaml:"problem"`
	Fix      string   `yaml:"fix"`
	Severity Severity `yaml:"severity"`
	Cost     int64    `yaml:"cost"`
}

// Validate checks that a catalog entry is usable.
func (f FaultCode) Validate() error {
	if f.Code == "" {
		return fmt.Errorf("fault code entry missing code")
	}
	if f.Cost < 0 {
		return fmt.Errorf("fault code %s has negative cost %d", f.Code, f.Cost)
	}
	return f.Severity.Validate()
}
