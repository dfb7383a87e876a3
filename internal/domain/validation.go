package domain

import "fmt"

// Severity grades a validation finding.
type Severity string

const (
	SeverityOk       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ValidationIssue is one finding produced by the integrity auditor. It
// is reported, never persisted as authoritative state.
type ValidationIssue struct {
	Check    string
	Severity Severity
	Message  string
	Metrics  map[string]float64
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("[%s] %s: %s", v.Severity, v.Check, v.Message)
}
