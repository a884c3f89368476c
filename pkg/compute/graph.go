package compute

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/errors"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/expression"
	"github.com/Tombstone73/QuoteVaultPro-sub011/pkg/models"
)

// Graph is the data-dependency graph between ENABLED COMPUTE nodes, built from the nodeOutputRef
// references in their expressions. It is separate from the tree's edges.
type Graph struct {
	ix    *models.TreeIndex
	nodes []string
	deps  map[string][]string
}

func NewGraph(ix *models.TreeIndex) *Graph {
	g := &Graph{
		ix:   ix,
		deps: map[string][]string{},
	}

	for _, n := range ix.Nodes() {
		if n.Type != models.NodeTypeCompute || !n.IsEnabled() || n.Compute == nil {
			continue
		}
		g.nodes = append(g.nodes, n.ID)

		seen := map[string]bool{}
		deps := []string{}
		for _, out := range n.Compute.OutputList() {
			for _, ref := range expression.Refs(out.Expression) {
				if ref.Ref.Kind != expression.NodeOutputRef || seen[ref.Ref.NodeID] {
					continue
				}
				target, ok := ix.Node(ref.Ref.NodeID)
				if !ok || target.Type != models.NodeTypeCompute || !target.IsEnabled() {
					continue
				}
				seen[ref.Ref.NodeID] = true
				deps = append(deps, ref.Ref.NodeID)
			}
		}
		sort.Strings(deps)
		g.deps[n.ID] = deps
	}
	sort.Strings(g.nodes)

	return g
}

// Nodes returns the compute node ids in the graph, sorted.
func (g *Graph) Nodes() []string {
	return g.nodes
}

// Dependencies returns the compute nodes id reads from, sorted.
func (g *Graph) Dependencies(id string) []string {
	return g.deps[id]
}

// Cycles returns every strongly connected component that forms a cycle (more than one node, or a
// node reading its own output). Each cycle is sorted and the list is ordered by first id.
func (g *Graph) Cycles() [][]string {
	t := &tarjan{
		g:       g,
		index:   map[string]int{},
		lowlink: map[string]int{},
		onStack: map[string]bool{},
	}
	for _, id := range g.nodes {
		if _, ok := t.index[id]; !ok {
			t.strongConnect(id)
		}
	}

	cycles := [][]string{}
	for _, scc := range t.components {
		if len(scc) == 1 && !slices.Contains(g.deps[scc[0]], scc[0]) {
			continue
		}
		sort.Strings(scc)
		cycles = append(cycles, scc)
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

// CycleError describes the first cycle as a PBV2Error, or returns nil for an acyclic graph.
func (g *Graph) CycleError() *errors.PBV2Error {
	cycles := g.Cycles()
	if len(cycles) == 0 {
		return nil
	}
	return CycleErrorFor(cycles[0])
}

func CycleErrorFor(cycle []string) *errors.PBV2Error {
	return errors.Newf(errors.CodeExprComputeDepCycle, "compute nodes form a dependency cycle: %s", strings.Join(cycle, " -> ")).
		AddNode(cycle[0]).AddPath("nodes." + cycle[0] + ".compute")
}

type tarjan struct {
	g          *Graph
	counter    int
	index      map[string]int
	lowlink    map[string]int
	stack      []string
	onStack    map[string]bool
	components [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.g.deps[v] {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			t.lowlink[v] = min(t.lowlink[v], t.lowlink[w])
		} else if t.onStack[w] {
			t.lowlink[v] = min(t.lowlink[v], t.index[w])
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}
	component := []string{}
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		component = append(component, w)
		if w == v {
			break
		}
	}
	t.components = append(t.components, component)
}

const (
	unvisited = iota
	visiting
	visited
)

// TopologicalOrder returns the compute nodes so every node follows the nodes it reads from.
func (g *Graph) TopologicalOrder() ([]string, error) {
	state := make(map[string]int, len(g.nodes))
	order := make([]string, 0, len(g.nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case visiting:
			return fmt.Errorf("cycle through '%s'", id)
		case visited:
			return nil
		}
		state[id] = visiting
		for _, dep := range g.deps[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = visited
		order = append(order, id)
		return nil
	}

	for _, id := range g.nodes {
		if err := visit(id); err != nil {
			if cycleErr := g.CycleError(); cycleErr != nil {
				return nil, cycleErr
			}
			return nil, err
		}
	}
	return order, nil
}
