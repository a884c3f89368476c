// Package treetest builds option trees for tests.
package treetest

import (
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/shopspring/decimal"
)

func Tree(status models.TreeStatus, roots []string, nodes []models.Node, edges []models.Edge) *models.Tree {
	if roots == nil {
		roots = []string{}
	}
	if edges == nil {
		edges = []models.Edge{}
	}
	return &models.Tree{
		ID:          "tree-1",
		ProductID:   "product-1",
		Status:      status,
		RootNodeIDs: roots,
		Nodes:       nodes,
		Edges:       edges,
	}
}

// WithBase sets meta.pricingV2.base. Zero amounts are left unset.
func WithBase(t *models.Tree, perSqftCents, perPieceCents, minimumChargeCents int64) *models.Tree {
	base := &models.BasePricing{}
	if perSqftCents != 0 {
		base.PerSqftCents = Cents(perSqftCents)
	}
	if perPieceCents != 0 {
		base.PerPieceCents = Cents(perPieceCents)
	}
	if minimumChargeCents != 0 {
		base.MinimumChargeCents = Cents(minimumChargeCents)
	}
	t.Meta.PricingV2 = &models.PricingV2Meta{Base: base}
	return t
}

func Cents(v int64) *int64 {
	return &v
}

func Decimal(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func Input(id, selectionKey string, valueType models.ValueType, required bool) models.Node {
	return models.Node{
		ID:     id,
		Key:    id,
		Type:   models.NodeTypeInput,
		Status: models.StatusEnabled,
		Input: &models.InputSpec{
			SelectionKey: selectionKey,
			ValueType:    valueType,
			Constraints:  models.Constraints{Required: required},
		},
	}
}

func EnumInput(id, selectionKey string, required bool, options ...string) models.Node {
	n := Input(id, selectionKey, models.ValueTypeEnum, required)
	for _, o := range options {
		n.Input.Constraints.Options = append(n.Input.Constraints.Options, models.EnumOption{Value: o, Label: o})
	}
	return n
}

// NumberInput declares a NUMBER input. Empty bounds are unbounded.
func NumberInput(id, selectionKey string, required bool, min, max string) models.Node {
	n := Input(id, selectionKey, models.ValueTypeNumber, required)
	if min != "" {
		n.Input.Constraints.Min = Decimal(min)
	}
	if max != "" {
		n.Input.Constraints.Max = Decimal(max)
	}
	return n
}

func Compute(id string, expr *expression.Expr) models.Node {
	return models.Node{
		ID:     id,
		Key:    id,
		Type:   models.NodeTypeCompute,
		Status: models.StatusEnabled,
		Compute: &models.ComputeSpec{
			Expression: expr,
			Outputs: map[string]models.OutputDecl{
				models.DefaultOutputKey: {Type: models.ValueTypeNumber},
			},
		},
	}
}

func Price(id string, components []models.PriceComponent, effects ...models.MaterialEffect) models.Node {
	if components == nil {
		components = []models.PriceComponent{}
	}
	if effects == nil {
		effects = []models.MaterialEffect{}
	}
	return models.Node{
		ID:     id,
		Key:    id,
		Type:   models.NodeTypePrice,
		Status: models.StatusEnabled,
		Price: &models.PriceSpec{
			Components:      components,
			MaterialEffects: effects,
		},
	}
}

func Component(id string, kind models.ComponentKind, unitCents *expression.Expr) models.PriceComponent {
	return models.PriceComponent{ID: id, Label: id, Kind: kind, UnitCents: unitCents}
}

func Material(skuRef, uom string, qty *expression.Expr) models.MaterialEffect {
	return models.MaterialEffect{SkuRef: skuRef, UOM: uom, QtyRef: qty, Label: skuRef}
}

func Group(id string) models.Node {
	return models.Node{
		ID:     id,
		Key:    id,
		Type:   models.NodeTypeGroup,
		Status: models.StatusEnabled,
	}
}

func Deleted(n models.Node) models.Node {
	n.Status = models.StatusDeleted
	return n
}

func Edge(id, from, to string, priority int, condition *expression.Expr) models.Edge {
	return models.Edge{
		ID:         id,
		FromNodeID: from,
		ToNodeID:   to,
		Status:     models.StatusEnabled,
		Priority:   priority,
		Condition:  condition,
	}
}

// Equals is the condition selection == literal.
func Equals(selectionKey string, literal any) *expression.Expr {
	return expression.NewOp(expression.OpEq, expression.NewSelectionRef(selectionKey), expression.NewLiteral(literal))
}
