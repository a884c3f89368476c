package models

import (
	"sort"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
)

type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	case SeverityInfo:
		return 2
	default:
		return 3
	}
}

// SeverityFor maps a strictness toggle to the severity of the finding it controls.
func SeverityFor(strict bool) Severity {
	if strict {
		return SeverityError
	}
	return SeverityWarning
}

type Finding struct {
	Severity Severity       `json:"severity"`
	Code     errors.Code    `json:"code"`
	Message  string         `json:"message"`
	Path     string         `json:"path"`
	EntityID string         `json:"entityId,omitempty"`
	Context  map[string]any `json:"context,omitempty"`
}

// FindingFromError converts a PBV2Error raised during evaluation into an ERROR finding.
func FindingFromError(err error) Finding {
	pbErr, ok := errors.AsPBV2Error(err)
	if !ok {
		return Finding{Severity: SeverityError, Code: errors.CodeExprInvalid, Message: err.Error()}
	}
	return Finding{
		Severity: SeverityError,
		Code:     pbErr.Code,
		Message:  pbErr.Message,
		Path:     pbErr.Path,
		EntityID: pbErr.EntityID,
	}
}

// ValidationResult is the outcome of a validation, gate check or evaluation. Findings are sorted by
// severity, code, path, entity id and message.
type ValidationResult struct {
	OK       bool      `json:"ok"`
	Findings []Finding `json:"findings"`
	Errors   []Finding `json:"errors"`
	Warnings []Finding `json:"warnings"`
	Info     []Finding `json:"info"`
}

func NewValidationResult(findings []Finding) ValidationResult {
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	SortFindings(sorted)

	result := ValidationResult{
		Findings: sorted,
		Errors:   []Finding{},
		Warnings: []Finding{},
		Info:     []Finding{},
	}
	for _, f := range sorted {
		switch f.Severity {
		case SeverityError:
			result.Errors = append(result.Errors, f)
		case SeverityWarning:
			result.Warnings = append(result.Warnings, f)
		default:
			result.Info = append(result.Info, f)
		}
	}
	result.OK = len(result.Errors) == 0
	return result
}

func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Severity.rank() != b.Severity.rank() {
			return a.Severity.rank() < b.Severity.rank()
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.EntityID != b.EntityID {
			return a.EntityID < b.EntityID
		}
		return a.Message < b.Message
	})
}

// HasCode reports whether any finding carries code.
func (r ValidationResult) HasCode(code errors.Code) bool {
	return r.Find(code) != nil
}

// Find returns the first finding with code.
func (r ValidationResult) Find(code errors.Code) *Finding {
	for i := range r.Findings {
		if r.Findings[i].Code == code {
			return &r.Findings[i]
		}
	}
	return nil
}

// Merge combines results, re-sorting the findings.
func Merge(results ...ValidationResult) ValidationResult {
	all := []Finding{}
	for _, r := range results {
		all = append(all, r.Findings...)
	}
	return NewValidationResult(all)
}
