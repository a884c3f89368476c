package validation

import (
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

// ValidateTreeHasBasePrice requires meta.pricingV2.base with at least one non-zero amount.
func ValidateTreeHasBasePrice(tree *models.Tree) models.ValidationResult {
	base := tree.Base()
	if base == nil {
		return models.NewValidationResult([]models.Finding{{
			Severity: models.SeverityError,
			Code:     errors.CodeBasePriceMissing,
			Message:  "tree has no meta.pricingV2.base",
			Path:     "meta.pricingV2.base",
		}})
	}

	for _, cents := range []*int64{base.PerSqftCents, base.PerPieceCents, base.MinimumChargeCents} {
		if cents != nil && *cents != 0 {
			return models.NewValidationResult(nil)
		}
	}
	return models.NewValidationResult([]models.Finding{{
		Severity: models.SeverityError,
		Code:     errors.CodeBasePriceMissing,
		Message:  "base pricing needs a non-zero perSqftCents, perPieceCents or minimumChargeCents",
		Path:     "meta.pricingV2.base",
	}})
}
