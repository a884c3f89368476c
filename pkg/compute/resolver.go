package compute

import (
	"sort"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

// Resolver evaluates compute node outputs on demand and memoizes them. It is also the Scope the
// rest of an evaluation reads through: nodeOutputRef lookups go to the resolver, everything else
// to the base scope.
type Resolver struct {
	graph      *Graph
	base       expression.Scope
	ev         *expression.Evaluator
	outputs    map[string]map[string]expression.Value
	inProgress map[string]bool
}

func NewResolver(graph *Graph, base expression.Scope, ev *expression.Evaluator) *Resolver {
	return &Resolver{
		graph:      graph,
		base:       base,
		ev:         ev,
		outputs:    map[string]map[string]expression.Value{},
		inProgress: map[string]bool{},
	}
}

func (r *Resolver) Lookup(ref expression.Ref) (expression.Value, error) {
	if ref.Kind != expression.NodeOutputRef {
		return r.base.Lookup(ref)
	}
	return r.Output(ref.NodeID, ref.OutputKey)
}

// Output returns one output of a compute node, evaluating the node first if needed.
func (r *Resolver) Output(nodeID, outputKey string) (expression.Value, error) {
	if !r.graph.ix.ComputeOutputExists(nodeID, outputKey) {
		return expression.Value{}, expression.UnresolvedError(expression.Ref{Kind: expression.NodeOutputRef, NodeID: nodeID, OutputKey: outputKey})
	}
	if err := r.evaluateNode(nodeID); err != nil {
		return expression.Value{}, err
	}
	return r.outputs[nodeID][outputKey], nil
}

// ResolveActive evaluates every active compute node in topological order.
func (r *Resolver) ResolveActive(activeNodeIDs []string) error {
	order, err := r.graph.TopologicalOrder()
	if err != nil {
		return err
	}

	active := make(map[string]bool, len(activeNodeIDs))
	for _, id := range activeNodeIDs {
		active[id] = true
	}
	for _, id := range order {
		if !active[id] {
			continue
		}
		if err := r.evaluateNode(id); err != nil {
			return err
		}
	}
	return nil
}

// Outputs returns the evaluated outputs keyed by node id then output key. Nodes evaluated only
// because something referenced them are included.
func (r *Resolver) Outputs() map[string]map[string]expression.Value {
	return r.outputs
}

// OutputsFor returns the evaluated outputs of nodeIDs alone.
func (r *Resolver) OutputsFor(nodeIDs []string) map[string]map[string]expression.Value {
	out := map[string]map[string]expression.Value{}
	for _, id := range nodeIDs {
		if values, ok := r.outputs[id]; ok {
			out[id] = values
		}
	}
	return out
}

// EvaluatedNodeIDs lists the compute nodes evaluated so far, sorted.
func (r *Resolver) EvaluatedNodeIDs() []string {
	ids := make([]string, 0, len(r.outputs))
	for id := range r.outputs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Resolver) evaluateNode(nodeID string) error {
	if _, done := r.outputs[nodeID]; done {
		return nil
	}
	if r.inProgress[nodeID] {
		if cycleErr := r.graph.CycleError(); cycleErr != nil {
			return cycleErr
		}
		return errors.Newf(errors.CodeExprComputeDepCycle, "compute node '%s' depends on itself", nodeID).AddNode(nodeID)
	}
	r.inProgress[nodeID] = true
	defer delete(r.inProgress, nodeID)

	node, _ := r.graph.ix.Node(nodeID)
	values := map[string]expression.Value{}
	for _, out := range node.Compute.OutputList() {
		path := outputPath(node.Compute, nodeID, out.Key)
		if out.Expression == nil {
			return errors.Newf(errors.CodeNodeInvalid, "compute output '%s' has no expression", out.Key).AddNode(nodeID).AddPath(path)
		}

		mark := r.ev.Mark()
		v, err := r.ev.Evaluate(out.Expression, r)
		r.ev.Qualify(mark, path, nodeID)
		if err != nil {
			pbErr := errors.Wrap(errors.CodeExprInvalid, err)
			if pbErr.Node != "" || pbErr.Code == errors.CodeExprComputeDepCycle {
				return pbErr
			}
			return pbErr.AddPath(path).AddNode(nodeID)
		}
		if err := checkOutputType(out, v); err != nil {
			return err.AddNode(nodeID).AddPath(path)
		}
		values[out.Key] = v
	}

	r.outputs[nodeID] = values
	return nil
}

func checkOutputType(out models.ComputeOutput, v expression.Value) *errors.PBV2Error {
	if out.Type == "" || v.IsNull() {
		return nil
	}
	want, ok := out.Type.Kind()
	if !ok {
		return errors.Newf(errors.CodeNodeInvalid, "compute output '%s' declares unknown type '%s'", out.Key, out.Type)
	}
	if v.Kind() != want {
		return errors.Newf(errors.CodeExprTypeMismatch, "compute output '%s' is declared %s but evaluated to %s", out.Key, out.Type, v.Kind())
	}
	return nil
}

func outputPath(spec *models.ComputeSpec, nodeID, key string) string {
	if decl, ok := spec.Outputs[key]; ok && decl.Expression != nil {
		return "nodes." + nodeID + ".compute.outputs." + key + ".expression"
	}
	return "nodes." + nodeID + ".compute.expression"
}
