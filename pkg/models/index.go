package models

import (
	"slices"
)

// TreeIndex is an id-indexed read-only view over a Tree. Nodes and edges stay in the tree's slices;
// every traversal goes through id lookups.
type TreeIndex struct {
	Tree *Tree

	nodes       map[string]*Node
	edges       map[string]*Edge
	out         map[string][]*Edge
	in          map[string][]*Edge
	inputsByKey map[string]*Node

	// DuplicateNodeIDs and DuplicateEdgeIDs list ids seen more than once; the first occurrence wins.
	DuplicateNodeIDs []string
	DuplicateEdgeIDs []string
	// DuplicateSelectionKeys maps a selection key claimed by several ENABLED inputs to their node ids.
	DuplicateSelectionKeys map[string][]string
}

func NewTreeIndex(t *Tree) *TreeIndex {
	ix := &TreeIndex{
		Tree:                   t,
		nodes:                  make(map[string]*Node, len(t.Nodes)),
		edges:                  make(map[string]*Edge, len(t.Edges)),
		out:                    map[string][]*Edge{},
		in:                     map[string][]*Edge{},
		inputsByKey:            map[string]*Node{},
		DuplicateSelectionKeys: map[string][]string{},
	}

	for i := range t.Nodes {
		n := &t.Nodes[i]
		if _, ok := ix.nodes[n.ID]; ok {
			ix.DuplicateNodeIDs = append(ix.DuplicateNodeIDs, n.ID)
			continue
		}
		ix.nodes[n.ID] = n

		if n.Type != NodeTypeInput || n.Input == nil || !n.IsEnabled() {
			continue
		}
		key := n.Input.SelectionKey
		if first, ok := ix.inputsByKey[key]; ok {
			if len(ix.DuplicateSelectionKeys[key]) == 0 {
				ix.DuplicateSelectionKeys[key] = []string{first.ID}
			}
			ix.DuplicateSelectionKeys[key] = append(ix.DuplicateSelectionKeys[key], n.ID)
			continue
		}
		ix.inputsByKey[key] = n
	}

	for i := range t.Edges {
		e := &t.Edges[i]
		if _, ok := ix.edges[e.ID]; ok {
			ix.DuplicateEdgeIDs = append(ix.DuplicateEdgeIDs, e.ID)
			continue
		}
		ix.edges[e.ID] = e
		ix.out[e.FromNodeID] = append(ix.out[e.FromNodeID], e)
		ix.in[e.ToNodeID] = append(ix.in[e.ToNodeID], e)
	}
	for id := range ix.out {
		slices.SortFunc(ix.out[id], ByPriority)
	}
	for id := range ix.in {
		slices.SortFunc(ix.in[id], ByPriority)
	}

	return ix
}

func (ix *TreeIndex) Node(id string) (*Node, bool) {
	n, ok := ix.nodes[id]
	return n, ok
}

func (ix *TreeIndex) Edge(id string) (*Edge, bool) {
	e, ok := ix.edges[id]
	return e, ok
}

// Outgoing returns every edge leaving id, ordered by priority then edge id.
func (ix *TreeIndex) Outgoing(id string) []*Edge {
	return ix.out[id]
}

// Incoming returns every edge entering id, ordered by priority then edge id.
func (ix *TreeIndex) Incoming(id string) []*Edge {
	return ix.in[id]
}

// InputBySelectionKey finds the ENABLED INPUT node owning key.
func (ix *TreeIndex) InputBySelectionKey(key string) (*Node, bool) {
	n, ok := ix.inputsByKey[key]
	return n, ok
}

// Inputs returns the ENABLED inputs keyed by selection key.
func (ix *TreeIndex) Inputs() map[string]*Node {
	return ix.inputsByKey
}

// Nodes returns the indexed nodes in tree order.
func (ix *TreeIndex) Nodes() []*Node {
	out := make([]*Node, 0, len(ix.nodes))
	for i := range ix.Tree.Nodes {
		n := &ix.Tree.Nodes[i]
		if ix.nodes[n.ID] == n {
			out = append(out, n)
		}
	}
	return out
}

// Edges returns the indexed edges in tree order.
func (ix *TreeIndex) Edges() []*Edge {
	out := make([]*Edge, 0, len(ix.edges))
	for i := range ix.Tree.Edges {
		e := &ix.Tree.Edges[i]
		if ix.edges[e.ID] == e {
			out = append(out, e)
		}
	}
	return out
}

// ComputeOutputExists reports whether nodeID is an ENABLED COMPUTE node producing outputKey.
func (ix *TreeIndex) ComputeOutputExists(nodeID, outputKey string) bool {
	n, ok := ix.nodes[nodeID]
	if !ok || n.Type != NodeTypeCompute || !n.IsEnabled() {
		return false
	}
	return n.Compute.HasOutput(outputKey)
}
