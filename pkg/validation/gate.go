package validation

import (
	"fmt"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

type Mode string

const (
	// ModePreview evaluates for display only. The result must never be persisted.
	ModePreview Mode = "preview"
	// ModePersist evaluates for a quote or order line that will be stored.
	ModePersist Mode = "persist"
)

func IsMode(m Mode) bool {
	return m == ModePreview || m == ModePersist
}

// ValidateEvaluationGate decides whether a tree version may be evaluated in mode. Persisted results
// require a published tree; previews of a DRAFT tree pass with a WARNING.
func ValidateEvaluationGate(meta models.TreeVersionMeta, mode Mode) models.ValidationResult {
	findings := []models.Finding{}

	if !IsMode(mode) {
		findings = append(findings, models.Finding{
			Severity: models.SeverityError,
			Code:     errors.CodeEvalModeInvalid,
			Message:  fmt.Sprintf("evaluation mode '%s' is not preview or persist", mode),
			Path:     "mode",
			EntityID: meta.ID,
		})
	}
	if !models.IsTreeStatus(meta.Status) {
		findings = append(findings, models.Finding{
			Severity: models.SeverityError,
			Code:     errors.CodeEvalTreeVersionStatusInvalid,
			Message:  fmt.Sprintf("tree version has unknown status '%s'", meta.Status),
			Path:     "status",
			EntityID: meta.ID,
		})
		return models.NewValidationResult(findings)
	}

	switch {
	case mode == ModePersist && !meta.Status.IsPublished():
		findings = append(findings, models.Finding{
			Severity: models.SeverityError,
			Code:     errors.CodeEvalTreeVersionStatusInvalid,
			Message:  fmt.Sprintf("a persisted evaluation requires an ACTIVE, DEPRECATED or ARCHIVED tree, got %s", meta.Status),
			Path:     "status",
			EntityID: meta.ID,
			Context:  map[string]any{"mode": string(mode), "status": string(meta.Status)},
		})
	case mode == ModePreview && meta.Status == models.TreeStatusDraft:
		findings = append(findings, models.Finding{
			Severity: models.SeverityWarning,
			Code:     errors.CodeEvalTreeVersionStatusInvalid,
			Message:  "preview of a DRAFT tree; the result must never be persisted",
			Path:     "status",
			EntityID: meta.ID,
			Context:  map[string]any{"mode": string(mode), "status": string(meta.Status)},
		})
	}

	return models.NewValidationResult(findings)
}
