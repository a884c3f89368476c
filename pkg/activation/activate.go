package activation

import (
	"fmt"
	"strings"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

type Options struct {
	// AmbiguousEdgesStrict fails the walk on an ambiguous match instead of warning and taking the
	// lowest edge id.
	AmbiguousEdgesStrict bool
}

// ActiveSet is the result of walking a tree for one selection set.
type ActiveSet struct {
	// NodeIDs lists the activated nodes in activation order. GROUP nodes are walked through but
	// never activated.
	NodeIDs []string `json:"nodeIds"`
	// EdgeIDs lists the traversed edges in traversal order.
	EdgeIDs  []string         `json:"edgeIds"`
	Findings []models.Finding `json:"findings"`
}

// Activate walks the tree breadth first from its roots along ENABLED edges whose condition holds.
func Activate(ix *models.TreeIndex, scope expression.Scope, ev *expression.Evaluator, opts Options) (*ActiveSet, error) {
	tree := ix.Tree
	if len(tree.RootNodeIDs) == 0 {
		return nil, errors.New(errors.CodeTreeNoRoots, "tree has no root nodes").AddPath("rootNodeIds")
	}

	set := &ActiveSet{
		NodeIDs:  []string{},
		EdgeIDs:  []string{},
		Findings: []models.Finding{},
	}
	visited := map[string]bool{}
	queue := []string{}

	for i, rootID := range tree.RootNodeIDs {
		if err := checkRoot(ix, rootID); err != nil {
			return nil, err.AddPath(fmt.Sprintf("rootNodeIds.%d", i))
		}
		if visited[rootID] {
			continue
		}
		visited[rootID] = true
		queue = append(queue, rootID)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		node, _ := ix.Node(id)
		if node.Type != models.NodeTypeGroup {
			set.NodeIDs = append(set.NodeIDs, id)
		}

		taken, err := set.selectEdges(ix, node, scope, ev, opts)
		if err != nil {
			return nil, err
		}
		for _, edge := range taken {
			set.EdgeIDs = append(set.EdgeIDs, edge.ID)
			if visited[edge.ToNodeID] {
				continue
			}
			visited[edge.ToNodeID] = true
			queue = append(queue, edge.ToNodeID)
		}
	}

	return set, nil
}

func checkRoot(ix *models.TreeIndex, rootID string) *errors.PBV2Error {
	node, ok := ix.Node(rootID)
	switch {
	case !ok:
		return errors.Newf(errors.CodeTreeRootInvalid, "root '%s' does not exist", rootID).AddEntity(rootID)
	case node.Type == models.NodeTypeGroup:
		return errors.Newf(errors.CodeTreeRootInvalid, "root '%s' is a GROUP node and cannot be activated", rootID).AddNode(rootID)
	case !node.IsEnabled():
		return errors.Newf(errors.CodeTreeRootInvalid, "root '%s' is %s", rootID, node.Status).AddNode(rootID)
	}
	return nil
}

// selectEdges returns the outgoing edges of node to traverse, in priority order.
func (a *ActiveSet) selectEdges(ix *models.TreeIndex, node *models.Node, scope expression.Scope, ev *expression.Evaluator, opts Options) ([]*models.Edge, error) {
	matched := []*models.Edge{}

	for _, edge := range ix.Outgoing(node.ID) {
		switch edge.Status {
		case models.StatusDeleted:
			continue
		case models.StatusEnabled:
		default:
			return nil, errors.Newf(errors.CodeEdgeStatusInvalid, "edge has unknown status '%s'", edge.Status).
				AddEdge(edge.ID).AddPath(edgePath(edge.ID, "status"))
		}

		target, ok := ix.Node(edge.ToNodeID)
		if !ok {
			return nil, errors.Newf(errors.CodeEdgeEndpointMissing, "edge targets missing node '%s'", edge.ToNodeID).
				AddEdge(edge.ID).AddPath(edgePath(edge.ID, "toNodeId"))
		}
		if target.IsDeleted() {
			return nil, errors.Newf(errors.CodeEdgeStatusInvalid, "enabled edge targets deleted node '%s'", target.ID).
				AddEdge(edge.ID).AddPath(edgePath(edge.ID, "toNodeId"))
		}

		mark := ev.Mark()
		ok, err := ev.EvaluateBool(edge.Condition, scope)
		ev.Qualify(mark, edgePath(edge.ID, "condition"), edge.ID)
		if err != nil {
			return nil, errors.Wrap(errors.CodeExprInvalid, err).AddPath(edgePath(edge.ID, "condition")).AddEdge(edge.ID)
		}
		if ok {
			matched = append(matched, edge)
		}
	}

	return a.disambiguate(node, matched, opts)
}

// disambiguate picks the conditional edges to follow. Only the lowest priority with a matching
// conditional edge is taken. Within it the lowest edge id wins and edges with an identical
// condition go along; other matches are ambiguous. Unconditional edges never compete.
func (a *ActiveSet) disambiguate(node *models.Node, matched []*models.Edge, opts Options) ([]*models.Edge, error) {
	out := make([]*models.Edge, 0, len(matched))
	decided := false

	for i := 0; i < len(matched); {
		j := i
		for j < len(matched) && matched[j].Priority == matched[i].Priority {
			j++
		}
		group := matched[i:j]
		i = j

		var winner *models.Edge
		losers := []string{}
		for _, edge := range group {
			if edge.Condition == nil {
				out = append(out, edge)
				continue
			}
			if decided {
				continue
			}
			if winner == nil {
				winner = edge
				out = append(out, edge)
				continue
			}
			if expression.Equal(winner.Condition, edge.Condition) {
				out = append(out, edge)
				continue
			}
			losers = append(losers, edge.ID)
		}
		if winner != nil {
			decided = true
		}
		if len(losers) == 0 {
			continue
		}

		ids := append([]string{winner.ID}, losers...)
		msg := fmt.Sprintf("edges %s from node '%s' all match at priority %d", strings.Join(ids, ", "), node.ID, winner.Priority)
		if opts.AmbiguousEdgesStrict {
			return nil, errors.New(errors.CodeEdgeAmbiguousMatch, msg).AddPath("nodes."+node.ID).AddNode(node.ID)
		}
		a.Findings = append(a.Findings, models.Finding{
			Severity: models.SeverityWarning,
			Code:     errors.CodeEdgeAmbiguousMatch,
			Message:  msg + fmt.Sprintf("; took '%s'", winner.ID),
			Path:     "nodes." + node.ID,
			EntityID: node.ID,
			Context: map[string]any{
				"edgeIds":        ids,
				"priority":       winner.Priority,
				"selectedEdgeId": winner.ID,
			},
		})
	}

	return out, nil
}

func edgePath(edgeID, field string) string {
	return "edges." + edgeID + "." + field
}
