package pricing

import (
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/shopspring/decimal"
)

var sqInchesPerSqft = decimal.NewFromInt(144)

// LineItem is the priced line: finished dimensions in inches and a piece count.
type LineItem struct {
	WidthIn  decimal.Decimal `json:"widthIn"`
	HeightIn decimal.Decimal `json:"heightIn"`
	Quantity int64           `json:"quantity"`
}

func NewLineItem(widthIn, heightIn float64, quantity int64) LineItem {
	return LineItem{
		WidthIn:  decimal.NewFromFloat(widthIn),
		HeightIn: decimal.NewFromFloat(heightIn),
		Quantity: quantity,
	}
}

func (l LineItem) Validate() error {
	switch {
	case l.WidthIn.IsNegative():
		return errors.Newf(errors.CodeInvalidLineItem, "width %s is negative", l.WidthIn).AddPath("line.widthIn")
	case l.HeightIn.IsNegative():
		return errors.Newf(errors.CodeInvalidLineItem, "height %s is negative", l.HeightIn).AddPath("line.heightIn")
	case l.Quantity < 0:
		return errors.Newf(errors.CodeInvalidLineItem, "quantity %d is negative", l.Quantity).AddPath("line.quantity")
	}
	return nil
}

// SqftPerPiece is width * height / 144.
func (l LineItem) SqftPerPiece() decimal.Decimal {
	return l.WidthIn.Mul(l.HeightIn).Div(sqInchesPerSqft)
}

// TotalSqft is the square footage of the whole line.
func (l LineItem) TotalSqft() decimal.Decimal {
	return l.SqftPerPiece().Mul(decimal.NewFromInt(l.Quantity))
}

// Values exposes the line to lineRef expressions.
func (l LineItem) Values() map[string]expression.Value {
	return map[string]expression.Value{
		expression.LineWidthIn:  expression.Number(l.WidthIn),
		expression.LineHeightIn: expression.Number(l.HeightIn),
		expression.LineQuantity: expression.Int(l.Quantity),
		expression.LineSqft:     expression.Number(l.TotalSqft()),
	}
}

// LineBaseCents applies the tree's base pricing to the line. The minimum charge applies once per
// line, never per piece. A missing base prices at 0.
func LineBaseCents(base *models.BasePricing, line LineItem) int64 {
	if base == nil {
		return 0
	}

	total := decimal.Zero
	if base.PerSqftCents != nil {
		total = total.Add(decimal.NewFromInt(*base.PerSqftCents).Mul(line.TotalSqft()))
	}
	if base.PerPieceCents != nil {
		total = total.Add(decimal.NewFromInt(*base.PerPieceCents).Mul(decimal.NewFromInt(line.Quantity)))
	}

	cents := total.Round(0).IntPart()
	if base.MinimumChargeCents != nil && cents < *base.MinimumChargeCents {
		return *base.MinimumChargeCents
	}
	return cents
}
