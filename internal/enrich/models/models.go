// Package models defines the result vocabulary of an enrichment run. The
// statuses here describe per-run outcomes and are distinct from the
// verification status stored on identifiers.
package models

import (
	"fmt"

	entitymodels "fides/internal/entity/models"
)

// ResultStatus classifies the outcome of one identifier-type attempt.
type ResultStatus string

const (
	// StatusAdded: a new identifier was derived or found and persisted.
	StatusAdded ResultStatus = "added"
	// StatusExists: the identifier type was already present; the step was
	// skipped.
	StatusExists ResultStatus = "exists"
	// StatusNotAvailable: enrichment was attempted and definitively found
	// nothing (missing prerequisite, registry NotFound, ambiguous match).
	StatusNotAvailable ResultStatus = "not_available"
	// StatusError: a transient or unclassified failure prevented a
	// definitive outcome. Never conflated with StatusNotAvailable.
	StatusError ResultStatus = "error"
)

// Result is the outcome for one identifier type.
type Result struct {
	Identifier entitymodels.IdentifierType `json:"identifier"`
	Status     ResultStatus                `json:"status"`
	Value      string                      `json:"value,omitempty"`
	Message    string                      `json:"message,omitempty"`
}

// Added constructs an added result.
func Added(typ entitymodels.IdentifierType, value string) Result {
	return Result{Identifier: typ, Status: StatusAdded, Value: value}
}

// Exists constructs an already-present result.
func Exists(typ entitymodels.IdentifierType, value string) Result {
	return Result{Identifier: typ, Status: StatusExists, Value: value}
}

// NotAvailable constructs a definitive-absence result with an explanatory
// message. Callers need to know enrichment was attempted and correctly found
// nothing, versus never attempted.
func NotAvailable(typ entitymodels.IdentifierType, message string) Result {
	return Result{Identifier: typ, Status: StatusNotAvailable, Message: message}
}

// Errorf constructs an error result from a failure message.
func Errorf(typ entitymodels.IdentifierType, format string, args ...any) Result {
	return Result{Identifier: typ, Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// Summary partitions results by outcome for the report envelope.
type Summary struct {
	Added         []string `json:"added"`
	AlreadyExists []string `json:"already_exists"`
	NotAvailable  []string `json:"not_available"`
	Errors        []string `json:"errors"`
}

// Report is the full outcome of one enrichment run, in execution order.
type Report struct {
	Success    bool     `json:"success"`
	AddedCount int      `json:"added_count"`
	Results    []Result `json:"results"`
	Summary    Summary  `json:"summary"`
}

// BuildReport assembles the envelope from ordered results.
func BuildReport(results []Result) Report {
	report := Report{
		Success: true,
		Results: results,
		Summary: Summary{
			Added:         []string{},
			AlreadyExists: []string{},
			NotAvailable:  []string{},
			Errors:        []string{},
		},
	}
	for _, r := range results {
		switch r.Status {
		case StatusAdded:
			report.AddedCount++
			report.Summary.Added = append(report.Summary.Added, fmt.Sprintf("%s: %s", r.Identifier, r.Value))
		case StatusExists:
			report.Summary.AlreadyExists = append(report.Summary.AlreadyExists, fmt.Sprintf("%s: %s", r.Identifier, r.Value))
		case StatusNotAvailable:
			report.Summary.NotAvailable = append(report.Summary.NotAvailable, fmt.Sprintf("%s (%s)", r.Identifier, r.Message))
		case StatusError:
			report.Summary.Errors = append(report.Summary.Errors, fmt.Sprintf("%s (%s)", r.Identifier, r.Message))
		}
	}
	return report
}
