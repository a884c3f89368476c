// Package validation holds the static checks run on a tree without selections: the publish
// validator, the base price check and the evaluation gate.
package validation

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/compute"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/selections"
	"github.com/shopspring/decimal"
)

// SKUResolver checks material skuRefs against the pricebook.
type SKUResolver interface {
	SKUExists(skuRef string) bool
}

type Opts struct {
	models.Policy
	// SKUResolver is optional. Without one only empty skuRefs are reported.
	SKUResolver SKUResolver
}

func DefaultOpts() Opts {
	return Opts{Policy: models.DefaultPolicy()}
}

var extractor = selections.NewExtractor()

// ValidateTreeDocument parses a JSON tree and validates it. Only a document that is not a tree
// object is an error; every problem with the tree's content is a finding.
func ValidateTreeDocument(data []byte, opts Opts) (models.ValidationResult, error) {
	tree, err := models.ParseTree(data)
	if err != nil {
		return models.ValidationResult{}, err
	}
	return ValidateTreeForPublish(tree, opts), nil
}

// ValidateTreeForPublish runs every publish check and reports all findings.
func ValidateTreeForPublish(tree *models.Tree, opts Opts) models.ValidationResult {
	v := &validator{
		ix:       models.NewTreeIndex(tree),
		opts:     opts,
		findings: []models.Finding{},
	}
	v.solver = solver{ix: v.ix}

	v.checkIdentity()
	v.checkNodes()
	v.checkRoots()
	v.checkEdges()
	v.checkTreeCycles()
	v.checkComputeCycles()
	v.checkExpressions()
	v.checkPriceNodes()
	v.computeReachability()
	v.checkReachability()
	v.checkAmbiguity()

	return models.NewValidationResult(v.findings)
}

type validator struct {
	ix       *models.TreeIndex
	opts     Opts
	solver   solver
	findings []models.Finding

	reach   map[string]dnf
	settled map[string]bool
}

func (v *validator) add(severity models.Severity, code errors.Code, path, entityID, msg string, context map[string]any) {
	v.findings = append(v.findings, models.Finding{
		Severity: severity,
		Code:     code,
		Message:  msg,
		Path:     path,
		EntityID: entityID,
		Context:  context,
	})
}

func (v *validator) checkIdentity() {
	for _, id := range v.ix.DuplicateNodeIDs {
		v.add(models.SeverityError, errors.CodeNodeDuplicateID, "nodes."+id, id, fmt.Sprintf("node id '%s' is used more than once", id), nil)
	}
	for _, id := range v.ix.DuplicateEdgeIDs {
		v.add(models.SeverityError, errors.CodeEdgeDuplicateID, "edges."+id, id, fmt.Sprintf("edge id '%s' is used more than once", id), nil)
	}

	keys := make([]string, 0, len(v.ix.DuplicateSelectionKeys))
	for k := range v.ix.DuplicateSelectionKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		ids := v.ix.DuplicateSelectionKeys[key]
		for _, id := range ids[1:] {
			v.add(models.SeverityError, errors.CodeInputSelectionKeyConflict, "nodes."+id+".input.selectionKey", id,
				fmt.Sprintf("selection key '%s' is already used by input '%s'", key, ids[0]),
				map[string]any{"selectionKey": key, "nodeIds": ids})
		}
	}
}

func (v *validator) checkNodes() {
	for _, n := range v.ix.Nodes() {
		path := "nodes." + n.ID
		if n.Status != models.StatusEnabled && n.Status != models.StatusDeleted {
			v.add(models.SeverityError, errors.CodeNodeInvalid, path+".status", n.ID, fmt.Sprintf("node has unknown status '%s'", n.Status), nil)
			continue
		}
		if n.IsDeleted() {
			continue
		}

		switch n.Type {
		case models.NodeTypeInput:
			v.checkInput(n, path)
		case models.NodeTypeCompute:
			v.checkComputeNode(n, path)
		case models.NodeTypePrice:
			if n.Price == nil {
				v.add(models.SeverityError, errors.CodeNodeInvalid, path+".price", n.ID, "PRICE node has no price definition", nil)
			}
		case models.NodeTypeGroup:
		default:
			v.add(models.SeverityError, errors.CodeNodeInvalid, path+".type", n.ID, fmt.Sprintf("node has unknown type '%s'", n.Type), nil)
		}
	}
}

func (v *validator) checkInput(n *models.Node, path string) {
	if n.Input == nil {
		v.add(models.SeverityError, errors.CodeNodeInvalid, path+".input", n.ID, "INPUT node has no input definition", nil)
		return
	}
	in := n.Input
	path += ".input"

	if in.SelectionKey == "" {
		v.add(models.SeverityError, errors.CodeNodeInvalid, path+".selectionKey", n.ID, "input has no selection key", nil)
	}
	if _, ok := in.ValueType.Kind(); !ok {
		v.add(models.SeverityError, errors.CodeNodeInvalid, path+".valueType", n.ID, fmt.Sprintf("input has unknown value type '%s'", in.ValueType), nil)
		return
	}

	c := in.Constraints
	cpath := path + ".constraints"
	invalid := func(field, msg string) {
		v.add(models.SeverityError, errors.CodeInputConstraintsInvalid, cpath+"."+field, n.ID, msg, nil)
	}
	if c.Min != nil && c.Max != nil && c.Min.GreaterThan(*c.Max) {
		invalid("min", fmt.Sprintf("min %s is greater than max %s", c.Min, c.Max))
	}
	if c.MinLength != nil && *c.MinLength < 0 {
		invalid("minLength", "minLength is negative")
	}
	if c.MaxLength != nil && *c.MaxLength < 0 {
		invalid("maxLength", "maxLength is negative")
	}
	if c.MinLength != nil && c.MaxLength != nil && *c.MinLength > *c.MaxLength {
		invalid("minLength", fmt.Sprintf("minLength %d is greater than maxLength %d", *c.MinLength, *c.MaxLength))
	}
	if c.Pattern != "" && !selections.ValidPattern(c.Pattern) {
		invalid("pattern", fmt.Sprintf("pattern %q does not compile", c.Pattern))
	}
	if in.ValueType == models.ValueTypeEnum && len(c.Options) == 0 {
		invalid("options", "ENUM input declares no options")
	}

	if in.SourcePath != "" {
		if err := extractor.ValidatePath(in.SourcePath); err != nil {
			v.add(models.SeverityError, errors.CodeInputConstraintsInvalid, path+".sourcePath", n.ID,
				fmt.Sprintf("sourcePath %q is not a valid JMESPath expression: %v", in.SourcePath, err), nil)
		}
	}

	if in.DefaultValue != nil {
		value, err := selections.Coerce(in, in.DefaultValue)
		if err != nil {
			v.add(models.SeverityError, errors.CodeInputConstraintsInvalid, path+".defaultValue", n.ID, fmt.Sprintf("default value: %v", err), nil)
			return
		}
		if violation, ok := selections.CheckConstraints(in, value); !ok {
			v.add(models.SeverityFor(v.opts.OutOfRangeSelectionsStrict), errors.CodeSelectionOutOfRange, path+".defaultValue", n.ID,
				"default value "+violation, nil)
		}
	}
}

func (v *validator) checkComputeNode(n *models.Node, path string) {
	if n.Compute == nil {
		v.add(models.SeverityError, errors.CodeNodeInvalid, path+".compute", n.ID, "COMPUTE node has no compute definition", nil)
		return
	}
	for _, out := range n.Compute.OutputList() {
		if out.Expression == nil {
			v.add(models.SeverityError, errors.CodeNodeInvalid, path+".compute.outputs."+out.Key, n.ID,
				fmt.Sprintf("output '%s' has no expression and the node has none to inherit", out.Key), nil)
		}
		if out.Type == "" {
			continue
		}
		if _, ok := out.Type.Kind(); !ok {
			v.add(models.SeverityError, errors.CodeNodeInvalid, path+".compute.outputs."+out.Key+".type", n.ID,
				fmt.Sprintf("output '%s' has unknown type '%s'", out.Key, out.Type), nil)
		}
	}
}

func (v *validator) checkRoots() {
	roots := v.ix.Tree.RootNodeIDs
	if len(roots) == 0 {
		v.add(models.SeverityError, errors.CodeTreeNoRoots, "rootNodeIds", "", "tree has no root nodes", nil)
		return
	}
	for i, id := range roots {
		path := fmt.Sprintf("rootNodeIds.%d", i)
		n, ok := v.ix.Node(id)
		switch {
		case !ok:
			v.add(models.SeverityError, errors.CodeTreeRootInvalid, path, id, fmt.Sprintf("root '%s' does not exist", id), nil)
		case n.Type == models.NodeTypeGroup:
			v.add(models.SeverityError, errors.CodeTreeRootInvalid, path, id, fmt.Sprintf("root '%s' is a GROUP node and cannot be activated", id), nil)
		case !n.IsEnabled():
			v.add(models.SeverityError, errors.CodeTreeRootInvalid, path, id, fmt.Sprintf("root '%s' is %s", id, n.Status), nil)
		}
	}
}

func (v *validator) checkEdges() {
	for _, e := range v.ix.Edges() {
		path := "edges." + e.ID
		switch e.Status {
		case models.StatusDeleted:
			continue
		case models.StatusEnabled:
		default:
			v.add(models.SeverityError, errors.CodeEdgeStatusInvalid, path+".status", e.ID, fmt.Sprintf("edge has unknown status '%s'", e.Status), nil)
			continue
		}

		if _, ok := v.ix.Node(e.FromNodeID); !ok {
			v.add(models.SeverityError, errors.CodeEdgeEndpointMissing, path+".fromNodeId", e.ID, fmt.Sprintf("edge starts at missing node '%s'", e.FromNodeID), nil)
		}
		target, ok := v.ix.Node(e.ToNodeID)
		if !ok {
			v.add(models.SeverityError, errors.CodeEdgeEndpointMissing, path+".toNodeId", e.ID, fmt.Sprintf("edge targets missing node '%s'", e.ToNodeID), nil)
			continue
		}
		if target.IsDeleted() {
			v.add(models.SeverityError, errors.CodeEdgeStatusInvalid, path+".toNodeId", e.ID, fmt.Sprintf("enabled edge targets deleted node '%s'", e.ToNodeID), nil)
		}
	}
}

// live reports whether an edge takes part in activation: ENABLED and between ENABLED nodes.
func (v *validator) live(e *models.Edge) bool {
	if !e.IsEnabled() {
		return false
	}
	from, ok := v.ix.Node(e.FromNodeID)
	if !ok || !from.IsEnabled() {
		return false
	}
	to, ok := v.ix.Node(e.ToNodeID)
	return ok && to.IsEnabled()
}

func (v *validator) liveOutgoing(id string) []*models.Edge {
	out := []*models.Edge{}
	for _, e := range v.ix.Outgoing(id) {
		if v.live(e) {
			out = append(out, e)
		}
	}
	return out
}

func (v *validator) sortedNodeIDs() []string {
	ids := []string{}
	for _, n := range v.ix.Nodes() {
		if n.IsEnabled() {
			ids = append(ids, n.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

const (
	white = iota
	grey
	black
)

// checkTreeCycles reports each cycle among live edges once, at the edge that closes it. The walk
// starts from the roots.
func (v *validator) checkTreeCycles() {
	colour := map[string]int{}
	stack := []string{}
	reported := map[string]bool{}

	var visit func(id string)
	visit = func(id string) {
		colour[id] = grey
		stack = append(stack, id)
		for _, e := range v.liveOutgoing(id) {
			switch colour[e.ToNodeID] {
			case white:
				visit(e.ToNodeID)
			case grey:
				start := slices.Index(stack, e.ToNodeID)
				cycle := slices.Clone(stack[start:])
				key := slices.Clone(cycle)
				sort.Strings(key)
				if reported[strings.Join(key, ",")] {
					continue
				}
				reported[strings.Join(key, ",")] = true
				v.add(models.SeverityError, errors.CodeTreeEdgeCycle, "edges."+e.ID, e.ID,
					fmt.Sprintf("edges form a cycle: %s -> %s", strings.Join(cycle, " -> "), e.ToNodeID),
					map[string]any{"cycle": cycle})
			}
		}
		stack = stack[:len(stack)-1]
		colour[id] = black
	}

	order := []string{}
	for _, id := range v.ix.Tree.RootNodeIDs {
		if n, ok := v.ix.Node(id); ok && n.IsEnabled() {
			order = append(order, id)
		}
	}
	order = append(order, v.sortedNodeIDs()...)
	for _, id := range order {
		if colour[id] == white {
			visit(id)
		}
	}
}

func (v *validator) checkComputeCycles() {
	for _, cycle := range compute.NewGraph(v.ix).Cycles() {
		f := models.FindingFromError(compute.CycleErrorFor(cycle))
		f.Context = map[string]any{"cycle": cycle}
		v.findings = append(v.findings, f)
	}
}

// site is one expression in the tree together with its locator.
type site struct {
	path     string
	entityID string
	expr     *expression.Expr
}

func (v *validator) expressionSites() []site {
	sites := []site{}
	for _, e := range v.ix.Edges() {
		if e.IsEnabled() && e.Condition != nil {
			sites = append(sites, site{path: "edges." + e.ID + ".condition", entityID: e.ID, expr: e.Condition})
		}
	}

	for _, n := range v.ix.Nodes() {
		if !n.IsEnabled() {
			continue
		}
		path := "nodes." + n.ID
		switch {
		case n.Type == models.NodeTypeCompute && n.Compute != nil:
			if n.Compute.Expression != nil {
				sites = append(sites, site{path: path + ".compute.expression", entityID: n.ID, expr: n.Compute.Expression})
			}
			keys := make([]string, 0, len(n.Compute.Outputs))
			for k := range n.Compute.Outputs {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if expr := n.Compute.Outputs[k].Expression; expr != nil {
					sites = append(sites, site{path: path + ".compute.outputs." + k + ".expression", entityID: n.ID, expr: expr})
				}
			}
		case n.Type == models.NodeTypePrice && n.Price != nil:
			for i, c := range n.Price.Components {
				cpath := fmt.Sprintf("%s.price.components.%d", path, i)
				sites = append(sites, site{path: cpath + ".unitCents", entityID: n.ID, expr: c.UnitCents})
				if c.QuantityRef != nil {
					sites = append(sites, site{path: cpath + ".quantityRef", entityID: n.ID, expr: c.QuantityRef})
				}
				if c.AppliesWhen != nil {
					sites = append(sites, site{path: cpath + ".appliesWhen", entityID: n.ID, expr: c.AppliesWhen})
				}
			}
			for i, m := range n.Price.MaterialEffects {
				sites = append(sites, site{path: fmt.Sprintf("%s.price.materialEffects.%d.qtyRef", path, i), entityID: n.ID, expr: m.QtyRef})
			}
		}
	}
	return sites
}

func (v *validator) checkExpressions() {
	ranges := newRangeScope(v.ix)

	for _, s := range v.expressionSites() {
		if err := s.expr.Validate(); err != nil {
			pbErr := errors.Wrap(errors.CodeExprInvalid, err)
			v.add(models.SeverityError, errors.CodeExprInvalid, join(s.path, pbErr.Path), s.entityID, pbErr.Message, nil)
			continue
		}

		for _, ref := range expression.Refs(s.expr) {
			if v.resolves(ref.Ref) {
				continue
			}
			v.add(models.SeverityError, errors.CodeExprRefUnresolved, join(s.path, ref.Path), s.entityID,
				fmt.Sprintf("reference '%s' does not resolve", ref.Ref.String()),
				map[string]any{"ref": ref.Ref.String()})
		}

		expression.Walk(s.expr, func(e *expression.Expr, path string) bool {
			if e.Op == expression.OpDiv && len(e.Args) == 2 && expression.Range(e.Args[1], ranges).IsZero() {
				v.add(models.SeverityFor(v.opts.DivByZeroStrict), errors.CodeExprDivByZero, join(s.path, path), s.entityID,
					"divisor is always zero", nil)
			}
			return true
		})
	}
}

func (v *validator) resolves(ref expression.Ref) bool {
	switch ref.Kind {
	case expression.SelectionRef:
		_, ok := v.ix.InputBySelectionKey(ref.SelectionKey)
		return ok
	case expression.NodeOutputRef:
		return v.ix.ComputeOutputExists(ref.NodeID, ref.OutputKey)
	case expression.LineRef:
		return expression.IsLineKey(ref.Key)
	}
	return false
}

func (v *validator) checkPriceNodes() {
	ranges := newRangeScope(v.ix)

	for _, n := range v.ix.Nodes() {
		if !n.IsEnabled() || n.Type != models.NodeTypePrice || n.Price == nil {
			continue
		}
		path := "nodes." + n.ID + ".price"

		for i, c := range n.Price.Components {
			cpath := fmt.Sprintf("%s.components.%d", path, i)
			switch c.Kind {
			case models.ComponentFlat, models.ComponentPerQty, models.ComponentPerSqft:
			default:
				v.add(models.SeverityError, errors.CodeNodeInvalid, cpath+".kind", n.ID, fmt.Sprintf("component '%s' has unknown kind '%s'", c.ID, c.Kind), nil)
			}
			if c.QuantityRef != nil && expression.Range(c.QuantityRef, ranges).AlwaysNegative() {
				v.add(models.SeverityFor(v.opts.NegativeQuantityStrict), errors.CodeQuantityNegative, cpath+".quantityRef", n.ID,
					fmt.Sprintf("component '%s' quantity is always negative", c.ID), nil)
			}
		}

		for i, m := range n.Price.MaterialEffects {
			mpath := fmt.Sprintf("%s.materialEffects.%d", path, i)
			switch {
			case strings.TrimSpace(m.SkuRef) == "":
				v.add(models.SeverityFor(v.opts.StrictPricebookRefsAtPublish), errors.CodeMaterialSKUUnresolved, mpath+".skuRef", n.ID,
					"material effect has no skuRef", nil)
			case v.opts.SKUResolver != nil && !v.opts.SKUResolver.SKUExists(m.SkuRef):
				v.add(models.SeverityFor(v.opts.StrictPricebookRefsAtPublish), errors.CodeMaterialSKUUnresolved, mpath+".skuRef", n.ID,
					fmt.Sprintf("skuRef '%s' is not in the pricebook", m.SkuRef), map[string]any{"skuRef": m.SkuRef})
			}
			if m.QtyRef != nil && expression.Range(m.QtyRef, ranges).AlwaysNegative() {
				v.add(models.SeverityFor(v.opts.NegativeQuantityStrict), errors.CodeMaterialNegativeQuantity, mpath+".qtyRef", n.ID,
					fmt.Sprintf("material '%s' quantity is always negative", m.SkuRef), nil)
			}
		}
	}
}

// computeReachability folds edge conditions along every path from the roots into one condition per
// node, visiting nodes in topological order over live edges. Nodes on an edge cycle stay unsettled.
func (v *validator) computeReachability() {
	v.reach = map[string]dnf{}
	v.settled = map[string]bool{}

	roots := map[string]bool{}
	for _, id := range v.ix.Tree.RootNodeIDs {
		if n, ok := v.ix.Node(id); ok && n.IsEnabled() && n.Type != models.NodeTypeGroup {
			roots[id] = true
			v.reach[id] = dnfTrue()
		}
	}

	ids := v.sortedNodeIDs()
	indegree := map[string]int{}
	for _, id := range ids {
		for _, e := range v.liveOutgoing(id) {
			indegree[e.ToNodeID]++
		}
	}
	queue := []string{}
	for _, id := range ids {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		v.settled[id] = true

		for _, e := range v.liveOutgoing(id) {
			if !roots[e.ToNodeID] {
				v.reach[e.ToNodeID] = or(v.reach[e.ToNodeID], v.prune(and(v.reach[id], toDNF(e.Condition, false))))
			}
			indegree[e.ToNodeID]--
			if indegree[e.ToNodeID] == 0 {
				queue = append(queue, e.ToNodeID)
			}
		}
	}
}

func (v *validator) prune(d dnf) dnf {
	out := dnf{}
	for _, c := range d {
		if v.solver.conjunctionSatisfiable(c) {
			out = append(out, c)
		}
	}
	return out
}

func (v *validator) checkReachability() {
	for _, n := range v.ix.Nodes() {
		if !n.IsEnabled() || n.Type == models.NodeTypeGroup || !v.settled[n.ID] {
			continue
		}
		if v.solver.satisfiable(v.reach[n.ID]) {
			continue
		}

		path := "nodes." + n.ID
		if n.Type == models.NodeTypeInput && n.Input != nil && n.Input.Constraints.Required {
			v.add(models.SeverityError, errors.CodeRequiredInputUnreachable, path, n.ID,
				fmt.Sprintf("required input '%s' cannot be reached by any combination of selections", n.Input.SelectionKey),
				map[string]any{"selectionKey": n.Input.SelectionKey})
			continue
		}
		v.add(models.SeverityInfo, errors.CodeNodeUnreachable, path, n.ID, fmt.Sprintf("node '%s' can never be activated", n.ID), nil)
	}
}

// checkAmbiguity reports conditional edges from one node at one priority whose different
// conditions can hold together.
func (v *validator) checkAmbiguity() {
	for _, id := range v.sortedNodeIDs() {
		reach := dnfTrue()
		if v.settled[id] {
			reach = v.reach[id]
			if !v.solver.satisfiable(reach) {
				continue
			}
		}

		byPriority := map[int][]*models.Edge{}
		priorities := []int{}
		for _, e := range v.liveOutgoing(id) {
			if e.Condition == nil {
				continue
			}
			if _, ok := byPriority[e.Priority]; !ok {
				priorities = append(priorities, e.Priority)
			}
			byPriority[e.Priority] = append(byPriority[e.Priority], e)
		}
		sort.Ints(priorities)

		for _, p := range priorities {
			group := byPriority[p]
			overlapping := map[string]bool{}
			for i := 0; i < len(group); i++ {
				for j := i + 1; j < len(group); j++ {
					a, b := group[i], group[j]
					if expression.Equal(a.Condition, b.Condition) {
						continue
					}
					both := and(and(reach, toDNF(a.Condition, false)), toDNF(b.Condition, false))
					if v.solver.satisfiable(both) {
						overlapping[a.ID] = true
						overlapping[b.ID] = true
					}
				}
			}
			if len(overlapping) == 0 {
				continue
			}

			edgeIDs := make([]string, 0, len(overlapping))
			for eid := range overlapping {
				edgeIDs = append(edgeIDs, eid)
			}
			sort.Strings(edgeIDs)
			v.add(models.SeverityFor(v.opts.AmbiguousEdgesStrict), errors.CodeEdgeAmbiguousMatch, "nodes."+id, id,
				fmt.Sprintf("edges %s from node '%s' can match together at priority %d", strings.Join(edgeIDs, ", "), id, p),
				map[string]any{"edgeIds": edgeIDs, "priority": p})
		}
	}
}

func join(base, rest string) string {
	if rest == "" {
		return base
	}
	return base + "." + rest
}

// rangeScope bounds references from the tree's declarations: NUMBER input min/max, non-negative line
// values, and compute outputs from their own expressions.
type rangeScope struct {
	ix      *models.TreeIndex
	pending map[string]bool
}

func newRangeScope(ix *models.TreeIndex) *rangeScope {
	return &rangeScope{ix: ix, pending: map[string]bool{}}
}

func (r *rangeScope) RefRange(ref expression.Ref) expression.Interval {
	switch ref.Kind {
	case expression.SelectionRef:
		n, ok := r.ix.InputBySelectionKey(ref.SelectionKey)
		if !ok || n.Input.ValueType != models.ValueTypeNumber {
			return expression.Unbounded()
		}
		return expression.Between(n.Input.Constraints.Min, n.Input.Constraints.Max)
	case expression.LineRef:
		zero := decimal.Zero
		return expression.Between(&zero, nil)
	case expression.NodeOutputRef:
		key := ref.NodeID + "." + ref.OutputKey
		if r.pending[key] || !r.ix.ComputeOutputExists(ref.NodeID, ref.OutputKey) {
			return expression.Unbounded()
		}
		n, _ := r.ix.Node(ref.NodeID)
		for _, out := range n.Compute.OutputList() {
			if out.Key != ref.OutputKey {
				continue
			}
			r.pending[key] = true
			defer delete(r.pending, key)
			return expression.Range(out.Expression, r)
		}
	}
	return expression.Unbounded()
}
