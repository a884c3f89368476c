// Package evaluator runs one selection set through a tree: selections, activation, compute outputs
// and pricing, in that order.
package evaluator

import (
	"fmt"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/activation"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/compute"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/pricing"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/selections"
)

type Options struct {
	Policy models.Policy
}

func DefaultOptions() Options {
	return Options{Policy: models.DefaultPolicy()}
}

// Result is the outcome of one evaluation. OK is false when any ERROR finding was raised; Pricing is
// nil when the walk failed or a required input is missing.
type Result struct {
	models.ValidationResult

	ActiveNodeIDs []string                               `json:"activeNodeIds"`
	EdgeIDs       []string                               `json:"edgeIds"`
	Selections    map[string]expression.Value            `json:"selections"`
	Defaulted     []string                               `json:"defaulted"`
	Outputs       map[string]map[string]expression.Value `json:"outputs"`
	Pricing       *pricing.Result                        `json:"pricing,omitempty"`
}

// Evaluate evaluates tree for rawSelections and line. Only invalid input (a non-object selection
// set, a selection of the wrong JSON type, a bad line item) is returned as an error; every other
// problem becomes a finding on the result.
func Evaluate(tree *models.Tree, rawSelections any, line pricing.LineItem, opts Options) (*Result, error) {
	if tree == nil {
		return nil, errors.New(errors.CodeInvalidTree, "tree is required")
	}
	if err := line.Validate(); err != nil {
		return nil, err
	}

	ix := models.NewTreeIndex(tree)
	r := &run{
		ix:     ix,
		line:   line,
		opts:   opts,
		ev:     expression.NewEvaluator(expression.Options{DivByZeroStrict: opts.Policy.DivByZeroStrict}),
		result: &Result{
			ActiveNodeIDs: []string{},
			EdgeIDs:       []string{},
			Selections:    map[string]expression.Value{},
			Defaulted:     []string{},
			Outputs:       map[string]map[string]expression.Value{},
		},
	}

	resolved, err := selections.Resolve(ix, rawSelections, selections.Options{OutOfRangeStrict: opts.Policy.OutOfRangeSelectionsStrict})
	if err != nil {
		if errors.HasCode(err, errors.CodeInvalidSelections) {
			return nil, err
		}
		return r.fail(err), nil
	}
	r.resolved = resolved
	r.result.Selections = resolved.Values
	r.result.Defaulted = resolved.Defaulted
	r.findings = append(r.findings, resolved.Findings...)

	return r.evaluate(), nil
}

type run struct {
	ix       *models.TreeIndex
	line     pricing.LineItem
	opts     Options
	ev       *expression.Evaluator
	resolved *selections.Resolved
	findings []models.Finding
	result   *Result
}

func (r *run) evaluate() *Result {
	graph := compute.NewGraph(r.ix)
	if err := graph.CycleError(); err != nil {
		return r.fail(err)
	}

	outputs := compute.NewResolver(graph, &baseScope{ix: r.ix, values: r.resolved.Values, line: r.line.Values()}, r.ev)

	active, err := activation.Activate(r.ix, outputs, r.ev, activation.Options{AmbiguousEdgesStrict: r.opts.Policy.AmbiguousEdgesStrict})
	if err != nil {
		return r.fail(err)
	}
	r.result.ActiveNodeIDs = active.NodeIDs
	r.result.EdgeIDs = active.EdgeIDs
	r.findings = append(r.findings, active.Findings...)

	// a missing required input would otherwise surface as a type error in whatever reads it
	if missing := r.missingRequired(active.NodeIDs); len(missing) > 0 {
		r.findings = append(r.findings, missing...)
		r.result.Outputs = outputs.OutputsFor(active.NodeIDs)
		return r.finish()
	}

	err = outputs.ResolveActive(active.NodeIDs)
	r.result.Outputs = outputs.OutputsFor(active.NodeIDs)
	if err != nil {
		return r.fail(err)
	}

	priced, err := pricing.PriceAndMaterials(r.ix, active.NodeIDs, outputs, r.ev, r.line, pricing.Options{NegativeQuantityStrict: r.opts.Policy.NegativeQuantityStrict})
	if err != nil {
		return r.fail(err)
	}
	r.result.Pricing = priced
	r.findings = append(r.findings, priced.Findings...)

	return r.finish()
}

// missingRequired reports active required inputs left without a selection or default.
func (r *run) missingRequired(activeNodeIDs []string) []models.Finding {
	out := []models.Finding{}
	for _, id := range activeNodeIDs {
		node, ok := r.ix.Node(id)
		if !ok || node.Type != models.NodeTypeInput || node.Input == nil || !node.Input.Constraints.Required {
			continue
		}
		key := node.Input.SelectionKey
		if r.resolved.Has(key) {
			continue
		}
		out = append(out, models.Finding{
			Severity: models.SeverityError,
			Code:     errors.CodeRequiredInputMissing,
			Message:  fmt.Sprintf("required input '%s' is active but has no selection", key),
			Path:     "selections." + key,
			EntityID: id,
		})
	}
	return out
}

func (r *run) fail(err error) *Result {
	r.findings = append(r.findings, models.FindingFromError(err))
	return r.finish()
}

func (r *run) finish() *Result {
	for _, n := range r.ev.Notices() {
		r.findings = append(r.findings, models.Finding{
			Severity: models.SeverityWarning,
			Code:     n.Code,
			Message:  n.Message,
			Path:     n.Path,
			EntityID: n.EntityID,
		})
	}
	r.result.ValidationResult = models.NewValidationResult(r.findings)
	return r.result
}

// baseScope serves selections and line values. Inputs the tree declares but the customer left
// unselected read as Null.
type baseScope struct {
	ix     *models.TreeIndex
	values map[string]expression.Value
	line   map[string]expression.Value
}

func (s *baseScope) Lookup(ref expression.Ref) (expression.Value, error) {
	switch ref.Kind {
	case expression.SelectionRef:
		if v, ok := s.values[ref.SelectionKey]; ok {
			return v, nil
		}
		if _, ok := s.ix.InputBySelectionKey(ref.SelectionKey); ok {
			return expression.Null(), nil
		}
	case expression.LineRef:
		if v, ok := s.line[ref.Key]; ok {
			return v, nil
		}
	}
	return expression.Value{}, expression.UnresolvedError(ref)
}
