package pricing

import (
	"fmt"
	"sort"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/shopspring/decimal"
)

type Options struct {
	// NegativeQuantityStrict fails on a negative component or material quantity. Otherwise the
	// quantity is clamped to 0 with a WARNING under the same code.
	NegativeQuantityStrict bool
}

// ComponentCharge is one priced component of an active PRICE node.
type ComponentCharge struct {
	NodeID      string               `json:"nodeId"`
	ComponentID string               `json:"componentId"`
	Label       string               `json:"label,omitempty"`
	Kind        models.ComponentKind `json:"kind"`
	UnitCents   decimal.Decimal      `json:"unitCents"`
	Quantity    decimal.Decimal      `json:"quantity"`
	AmountCents int64                `json:"amountCents"`
}

// MaterialUsage is the resolved quantity of one material effect.
type MaterialUsage struct {
	NodeID   string          `json:"nodeId"`
	SkuRef   string          `json:"skuRef"`
	UOM      string          `json:"uom"`
	Quantity decimal.Decimal `json:"quantity"`
	Label    string          `json:"label,omitempty"`
}

// MaterialTotal is the summed quantity of one sku and unit across every active effect.
type MaterialTotal struct {
	SkuRef   string          `json:"skuRef"`
	UOM      string          `json:"uom"`
	Quantity decimal.Decimal `json:"quantity"`
	NodeIDs  []string        `json:"nodeIds"`
}

type Result struct {
	LineBaseCents   int64             `json:"lineBaseCents"`
	ComponentsCents []int64           `json:"componentsCents"`
	Components      []ComponentCharge `json:"components"`
	MaterialEffects []MaterialUsage   `json:"materialEffects"`
	Materials       []MaterialTotal   `json:"materials"`
	LineTotalCents  int64             `json:"lineTotalCents"`
	Findings        []models.Finding  `json:"-"`
}

// PriceAndMaterials prices the line and resolves material quantities for the active PRICE nodes,
// in activation order.
func PriceAndMaterials(ix *models.TreeIndex, activeNodeIDs []string, scope expression.Scope, ev *expression.Evaluator, line LineItem, opts Options) (*Result, error) {
	result := &Result{
		LineBaseCents:   LineBaseCents(ix.Tree.Base(), line),
		ComponentsCents: []int64{},
		Components:      []ComponentCharge{},
		MaterialEffects: []MaterialUsage{},
		Materials:       []MaterialTotal{},
		Findings:        []models.Finding{},
	}
	result.LineTotalCents = result.LineBaseCents

	for _, id := range activeNodeIDs {
		node, ok := ix.Node(id)
		if !ok || node.Type != models.NodeTypePrice || node.Price == nil {
			continue
		}

		for i, comp := range node.Price.Components {
			charge, ok, err := result.priceComponent(node.ID, i, comp, scope, ev, line, opts)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			result.Components = append(result.Components, charge)
			result.ComponentsCents = append(result.ComponentsCents, charge.AmountCents)
			result.LineTotalCents += charge.AmountCents
		}

		for i, effect := range node.Price.MaterialEffects {
			usage, err := result.materialUsage(node.ID, i, effect, scope, ev, opts)
			if err != nil {
				return nil, err
			}
			result.MaterialEffects = append(result.MaterialEffects, usage)
		}
	}

	result.Materials = Totals(result.MaterialEffects)
	return result, nil
}

// Totals sums usages by sku and unit, ordered by sku then unit.
func Totals(usages []MaterialUsage) []MaterialTotal {
	type key struct{ sku, uom string }
	index := map[key]int{}
	out := []MaterialTotal{}

	for _, u := range usages {
		k := key{u.SkuRef, u.UOM}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, MaterialTotal{SkuRef: u.SkuRef, UOM: u.UOM, Quantity: u.Quantity, NodeIDs: []string{u.NodeID}})
			continue
		}
		out[i].Quantity = out[i].Quantity.Add(u.Quantity)
		if last := out[i].NodeIDs[len(out[i].NodeIDs)-1]; last != u.NodeID {
			out[i].NodeIDs = append(out[i].NodeIDs, u.NodeID)
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		if out[a].SkuRef != out[b].SkuRef {
			return out[a].SkuRef < out[b].SkuRef
		}
		return out[a].UOM < out[b].UOM
	})
	return out
}

func (r *Result) priceComponent(nodeID string, i int, comp models.PriceComponent, scope expression.Scope, ev *expression.Evaluator, line LineItem, opts Options) (ComponentCharge, bool, error) {
	path := fmt.Sprintf("nodes.%s.price.components.%d", nodeID, i)

	applies, err := evaluateBool(ev, comp.AppliesWhen, scope, path+".appliesWhen", nodeID)
	if err != nil || !applies {
		return ComponentCharge{}, false, err
	}

	unit, err := evaluateNumber(ev, comp.UnitCents, scope, path+".unitCents", nodeID)
	if err != nil {
		return ComponentCharge{}, false, err
	}

	var qty decimal.Decimal
	switch comp.Kind {
	case models.ComponentFlat:
		qty = decimal.NewFromInt(1)
	case models.ComponentPerQty:
		qty = decimal.NewFromInt(line.Quantity)
		if comp.QuantityRef != nil {
			qty, err = evaluateNumber(ev, comp.QuantityRef, scope, path+".quantityRef", nodeID)
			if err != nil {
				return ComponentCharge{}, false, err
			}
		}
	case models.ComponentPerSqft:
		qty = line.TotalSqft()
	default:
		return ComponentCharge{}, false, errors.Newf(errors.CodeNodeInvalid, "price component has unknown kind '%s'", comp.Kind).
			AddNode(nodeID).AddPath(path + ".kind")
	}

	if qty.IsNegative() {
		msg := fmt.Sprintf("component '%s' quantity %s is negative", comp.ID, qty)
		if opts.NegativeQuantityStrict {
			return ComponentCharge{}, false, errors.New(errors.CodeQuantityNegative, msg).AddNode(nodeID).AddPath(path + ".quantityRef")
		}
		r.Findings = append(r.Findings, models.Finding{
			Severity: models.SeverityWarning,
			Code:     errors.CodeQuantityNegative,
			Message:  msg + "; using 0",
			Path:     path + ".quantityRef",
			EntityID: nodeID,
			Context:  map[string]any{"componentId": comp.ID, "quantity": qty.String()},
		})
		qty = decimal.Zero
	}

	return ComponentCharge{
		NodeID:      nodeID,
		ComponentID: comp.ID,
		Label:       comp.Label,
		Kind:        comp.Kind,
		UnitCents:   unit,
		Quantity:    qty,
		AmountCents: unit.Mul(qty).Round(0).IntPart(),
	}, true, nil
}

func (r *Result) materialUsage(nodeID string, i int, effect models.MaterialEffect, scope expression.Scope, ev *expression.Evaluator, opts Options) (MaterialUsage, error) {
	path := fmt.Sprintf("nodes.%s.price.materialEffects.%d.qtyRef", nodeID, i)

	qty, err := evaluateNumber(ev, effect.QtyRef, scope, path, nodeID)
	if err != nil {
		return MaterialUsage{}, err
	}
	if qty.IsNegative() {
		msg := fmt.Sprintf("material '%s' quantity %s is negative", effect.SkuRef, qty)
		if opts.NegativeQuantityStrict {
			return MaterialUsage{}, errors.New(errors.CodeMaterialNegativeQuantity, msg).AddNode(nodeID).AddPath(path)
		}
		r.Findings = append(r.Findings, models.Finding{
			Severity: models.SeverityWarning,
			Code:     errors.CodeMaterialNegativeQuantity,
			Message:  msg + "; using 0",
			Path:     path,
			EntityID: nodeID,
			Context:  map[string]any{"skuRef": effect.SkuRef, "quantity": qty.String()},
		})
		qty = decimal.Zero
	}

	return MaterialUsage{
		NodeID:   nodeID,
		SkuRef:   effect.SkuRef,
		UOM:      effect.UOM,
		Quantity: qty,
		Label:    effect.Label,
	}, nil
}

func evaluateBool(ev *expression.Evaluator, expr *expression.Expr, scope expression.Scope, path, nodeID string) (bool, error) {
	mark := ev.Mark()
	ok, err := ev.EvaluateBool(expr, scope)
	ev.Qualify(mark, path, nodeID)
	if err != nil {
		return false, locate(err, path, nodeID)
	}
	return ok, nil
}

func evaluateNumber(ev *expression.Evaluator, expr *expression.Expr, scope expression.Scope, path, nodeID string) (decimal.Decimal, error) {
	if expr == nil {
		return decimal.Zero, errors.New(errors.CodeExprInvalid, "expression is required").AddNode(nodeID).AddPath(path)
	}
	mark := ev.Mark()
	n, err := ev.EvaluateNumber(expr, scope)
	ev.Qualify(mark, path, nodeID)
	if err != nil {
		return decimal.Zero, locate(err, path, nodeID)
	}
	return n, nil
}

// locate attributes an evaluation error to the owning PRICE node unless a compute node it read from
// already claimed it.
func locate(err error, path, nodeID string) error {
	pbErr := errors.Wrap(errors.CodeExprInvalid, err)
	if pbErr.Node != "" {
		return pbErr
	}
	return pbErr.AddPath(path).AddNode(nodeID)
}
