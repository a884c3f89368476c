package pricing

import (
	"testing"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models/treetest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineBaseCentsMinimumChargePerLine(t *testing.T) {
	base := &models.BasePricing{PerSqftCents: treetest.Cents(400), MinimumChargeCents: treetest.Cents(444)}

	tests := []struct {
		name string
		line LineItem
		want int64
	}{
		{name: "minimum applies to a single square foot", line: NewLineItem(12, 12, 1), want: 444},
		{name: "two pieces exceed the minimum", line: NewLineItem(12, 12, 2), want: 800},
		{name: "three pieces", line: NewLineItem(12, 12, 3), want: 1200},
		{name: "large single piece", line: NewLineItem(24, 48, 1), want: 3200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LineBaseCents(base, tt.line))
		})
	}
}

func TestLineBaseCents(t *testing.T) {
	tests := []struct {
		name string
		base *models.BasePricing
		line LineItem
		want int64
	}{
		{name: "no base", base: nil, line: NewLineItem(12, 12, 1), want: 0},
		{name: "per piece", base: &models.BasePricing{PerPieceCents: treetest.Cents(250)}, line: NewLineItem(1, 1, 4), want: 1000},
		{name: "per sqft and per piece", base: &models.BasePricing{PerSqftCents: treetest.Cents(100), PerPieceCents: treetest.Cents(50)}, line: NewLineItem(24, 12, 2), want: 500},
		{name: "fractional sqft rounds to cents", base: &models.BasePricing{PerSqftCents: treetest.Cents(100)}, line: NewLineItem(10, 10, 1), want: 69},
		{name: "minimum only", base: &models.BasePricing{MinimumChargeCents: treetest.Cents(1500)}, line: NewLineItem(10, 10, 3), want: 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LineBaseCents(tt.base, tt.line))
		})
	}
}

func TestLineItemValidate(t *testing.T) {
	assert.NoError(t, NewLineItem(0, 0, 0).Validate())

	err := NewLineItem(12, -1, 1).Validate()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidLineItem))

	err = NewLineItem(12, 12, -2).Validate()
	require.Error(t, err)
	pbErr, _ := errors.AsPBV2Error(err)
	assert.Equal(t, "line.quantity", pbErr.Path)
}

func TestLineItemValues(t *testing.T) {
	values := NewLineItem(24, 48, 3).Values()

	assert.True(t, expression.Int(24).Equal(values[expression.LineSqft]), values[expression.LineSqft].String())
	assert.True(t, expression.Int(3).Equal(values[expression.LineQuantity]))
}

func lit(v any) *expression.Expr {
	return expression.NewLiteral(v)
}

func priceTree(nodes ...models.Node) *models.TreeIndex {
	tree := treetest.Tree(models.TreeStatusActive, []string{nodes[0].ID}, nodes, nil)
	return models.NewTreeIndex(treetest.WithBase(tree, 400, 0, 444))
}

func scope(selections map[string]expression.Value, line LineItem) expression.MapScope {
	return expression.MapScope{Selections: selections, Line: line.Values()}
}

func TestPriceAndMaterials(t *testing.T) {
	grommets := treetest.Component("grommets", models.ComponentPerQty, lit(25))
	grommets.QuantityRef = expression.NewSelectionRef("grommetCount")
	rush := treetest.Component("rush", models.ComponentFlat, lit(1500))
	rush.AppliesWhen = treetest.Equals("rush", true)
	lamination := treetest.Component("lamination", models.ComponentPerSqft, lit(35))

	ix := priceTree(
		treetest.Price("finishing", []models.PriceComponent{grommets, rush, lamination},
			treetest.Material("VINYL-13OZ", "sqft", expression.NewLineRef(expression.LineSqft)),
			treetest.Material("GROMMET-BRASS", "ea", expression.NewSelectionRef("grommetCount")),
		),
		treetest.Price("inactive", []models.PriceComponent{treetest.Component("x", models.ComponentFlat, lit(99999))}),
	)
	line := NewLineItem(24, 48, 2)
	sel := map[string]expression.Value{"grommetCount": expression.Int(8), "rush": expression.Bool(false)}

	result, err := PriceAndMaterials(ix, []string{"finishing"}, scope(sel, line), expression.NewEvaluator(expression.Options{}), line, Options{})
	require.NoError(t, err)

	// 16 sqft at 400 cents, 8 grommets at 25, 16 sqft lamination at 35
	assert.Equal(t, int64(6400), result.LineBaseCents)
	assert.Equal(t, []int64{200, 560}, result.ComponentsCents)
	assert.Equal(t, int64(7160), result.LineTotalCents)
	require.Len(t, result.Components, 2)
	assert.Equal(t, "grommets", result.Components[0].ComponentID)
	assert.Equal(t, "lamination", result.Components[1].ComponentID)

	require.Len(t, result.MaterialEffects, 2)
	require.Len(t, result.Materials, 2)
	assert.Equal(t, "GROMMET-BRASS", result.Materials[0].SkuRef)
	assert.Equal(t, "VINYL-13OZ", result.MaterialEffects[0].SkuRef)
	assert.True(t, decimal.NewFromInt(16).Equal(result.MaterialEffects[0].Quantity))
	assert.True(t, decimal.NewFromInt(8).Equal(result.MaterialEffects[1].Quantity))
	assert.Empty(t, result.Findings)
}

func TestPriceAndMaterialsPerQtyDefaultsToLineQuantity(t *testing.T) {
	ix := priceTree(treetest.Price("p", []models.PriceComponent{treetest.Component("setup", models.ComponentPerQty, lit(0.5))}))
	line := NewLineItem(12, 12, 5)

	result, err := PriceAndMaterials(ix, []string{"p"}, scope(nil, line), expression.NewEvaluator(expression.Options{}), line, Options{})
	require.NoError(t, err)
	// 2.5 rounds half away from zero
	assert.Equal(t, []int64{3}, result.ComponentsCents)
}

func TestPriceAndMaterialsErrors(t *testing.T) {
	negQty := treetest.Component("neg", models.ComponentPerQty, lit(10))
	negQty.QuantityRef = lit(-2)

	tests := []struct {
		name string
		node models.Node
		opts Options
		code errors.Code
		path string
	}{
		{
			name: "unresolved material quantity",
			node: treetest.Price("p", nil, treetest.Material("INK", "ml", expression.NewSelectionRef("ghost"))),
			code: errors.CodeExprRefUnresolved,
			path: "nodes.p.price.materialEffects.0.qtyRef",
		},
		{
			name: "negative material quantity strict",
			node: treetest.Price("p", nil, treetest.Material("INK", "ml", lit(-1))),
			opts: Options{NegativeQuantityStrict: true},
			code: errors.CodeMaterialNegativeQuantity,
			path: "nodes.p.price.materialEffects.0.qtyRef",
		},
		{
			name: "negative component quantity strict",
			node: treetest.Price("p", []models.PriceComponent{negQty}),
			opts: Options{NegativeQuantityStrict: true},
			code: errors.CodeQuantityNegative,
			path: "nodes.p.price.components.0.quantityRef",
		},
		{
			name: "non numeric unit price",
			node: treetest.Price("p", []models.PriceComponent{treetest.Component("c", models.ComponentFlat, lit("ten"))}),
			code: errors.CodeExprTypeMismatch,
			path: "nodes.p.price.components.0.unitCents",
		},
		{
			name: "unknown component kind",
			node: treetest.Price("p", []models.PriceComponent{treetest.Component("c", "PER_HOUR", lit(1))}),
			code: errors.CodeNodeInvalid,
			path: "nodes.p.price.components.0.kind",
		},
	}

	line := NewLineItem(12, 12, 1)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PriceAndMaterials(priceTree(tt.node), []string{"p"}, scope(map[string]expression.Value{}, line), expression.NewEvaluator(expression.Options{}), line, tt.opts)
			require.Error(t, err)
			pbErr, ok := errors.AsPBV2Error(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, pbErr.Code, pbErr.Error())
			assert.Equal(t, tt.path, pbErr.Path)
			assert.Equal(t, "p", pbErr.EntityID)
		})
	}
}

func TestPriceAndMaterialsNegativeComponentLenient(t *testing.T) {
	negQty := treetest.Component("neg", models.ComponentPerQty, lit(10))
	negQty.QuantityRef = lit(-2)
	ix := priceTree(treetest.Price("p", []models.PriceComponent{negQty}))
	line := NewLineItem(12, 12, 1)

	result, err := PriceAndMaterials(ix, []string{"p"}, scope(nil, line), expression.NewEvaluator(expression.Options{}), line, Options{NegativeQuantityStrict: false})
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, result.ComponentsCents)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, errors.CodeQuantityNegative, result.Findings[0].Code)
	assert.Equal(t, models.SeverityWarning, result.Findings[0].Severity)
}

func TestPriceAndMaterialsNegativeMaterialLenient(t *testing.T) {
	ix := priceTree(treetest.Price("p", nil, treetest.Material("INK", "ml", lit(-3))))
	line := NewLineItem(12, 12, 1)

	result, err := PriceAndMaterials(ix, []string{"p"}, scope(nil, line), expression.NewEvaluator(expression.Options{}), line, Options{NegativeQuantityStrict: false})
	require.NoError(t, err)
	require.Len(t, result.MaterialEffects, 1)
	assert.True(t, result.MaterialEffects[0].Quantity.IsZero())
	require.Len(t, result.Findings, 1)
	assert.Equal(t, errors.CodeMaterialNegativeQuantity, result.Findings[0].Code)
	assert.Equal(t, models.SeverityWarning, result.Findings[0].Severity)
	assert.Equal(t, "nodes.p.price.materialEffects.0.qtyRef", result.Findings[0].Path)
}

func TestPriceAndMaterialsTotalsBySkuAndUnit(t *testing.T) {
	ix := priceTree(
		treetest.Price("front", nil,
			treetest.Material("VINYL-13OZ", "sqft", expression.NewLineRef(expression.LineSqft)),
			treetest.Material("INK", "ml", lit(2.5)),
		),
		treetest.Price("back", nil,
			treetest.Material("VINYL-13OZ", "sqft", expression.NewLineRef(expression.LineSqft)),
			treetest.Material("VINYL-13OZ", "roll", lit(1)),
		),
	)
	line := NewLineItem(24, 48, 2)

	result, err := PriceAndMaterials(ix, []string{"front", "back"}, scope(nil, line), expression.NewEvaluator(expression.Options{}), line, Options{})
	require.NoError(t, err)
	require.Len(t, result.MaterialEffects, 4)

	require.Len(t, result.Materials, 3)
	assert.Equal(t, "INK", result.Materials[0].SkuRef)
	assert.True(t, decimal.RequireFromString("2.5").Equal(result.Materials[0].Quantity))

	assert.Equal(t, "VINYL-13OZ", result.Materials[1].SkuRef)
	assert.Equal(t, "roll", result.Materials[1].UOM)
	assert.Equal(t, []string{"back"}, result.Materials[1].NodeIDs)

	assert.Equal(t, "sqft", result.Materials[2].UOM)
	assert.True(t, decimal.NewFromInt(32).Equal(result.Materials[2].Quantity))
	assert.Equal(t, []string{"front", "back"}, result.Materials[2].NodeIDs)
}

func TestTotalsEmpty(t *testing.T) {
	assert.Equal(t, []MaterialTotal{}, Totals(nil))
}
