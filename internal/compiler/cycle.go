package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/criteria/internal/ir"
)

// JoinCycle is a set of templates that join each other, directly or
// transitively. Such templates can never be instantiated: every criteria
// owns a fresh child per join, so the tree would be infinite.
type JoinCycle struct {
	Path    []string `json:"path"`    // Cycle path: ["A", "B", "A"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeJoinCycles reports every cycle in the template join graph.
//
// The algorithm:
//  1. Build template → joined templates graph from the join specs
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-join as a cycle
//
// Joins to undefined templates are ignored here; ValidateCatalog reports
// them separately.
func AnalyzeJoinCycles(templates []ir.TemplateSpec) []JoinCycle {
	g := buildJoinGraph(templates)

	var cycles []JoinCycle
	for _, scc := range g.tarjanSCC() {
		if len(scc) > 1 || (len(scc) == 1 && g.hasSelfLoop(scc[0])) {
			path := g.reconstructCyclePath(scc)
			cycles = append(cycles, JoinCycle{
				Path:    path,
				Message: fmt.Sprintf("join cycle detected: %s", strings.Join(path, " → ")),
			})
		}
	}
	return cycles
}

// JoinOrder returns template names ordered so that every template comes
// after all templates it joins. It fails on a join cycle.
func JoinOrder(templates []ir.TemplateSpec) ([]string, error) {
	if cycles := AnalyzeJoinCycles(templates); len(cycles) > 0 {
		return nil, fmt.Errorf("[%s] %s", ErrJoinCycle, cycles[0].Message)
	}
	g := buildJoinGraph(templates)

	// Tarjan emits an SCC only after every SCC reachable from it, so on an
	// acyclic graph its output is already dependency-first.
	var order []string
	for _, scc := range g.tarjanSCC() {
		order = append(order, scc...)
	}
	return order, nil
}

// joinGraph maps template name → joined template names. nodes keeps
// declaration order so results are deterministic.
type joinGraph struct {
	nodes []string
	edges map[string][]string
}

func buildJoinGraph(templates []ir.TemplateSpec) *joinGraph {
	g := &joinGraph{edges: make(map[string][]string, len(templates))}
	defined := make(map[string]bool, len(templates))
	for _, t := range templates {
		if !defined[t.Name] {
			g.nodes = append(g.nodes, t.Name)
		}
		defined[t.Name] = true
	}
	for _, t := range templates {
		if g.edges[t.Name] == nil {
			g.edges[t.Name] = []string{}
		}
		for _, j := range t.Joins {
			if defined[j.Template] {
				g.edges[t.Name] = append(g.edges[t.Name], j.Template)
			}
		}
	}
	return g
}

// hasSelfLoop checks if a node has an edge to itself.
func (g *joinGraph) hasSelfLoop(node string) bool {
	for _, neighbor := range g.edges[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Single-node SCCs without self-loops are NOT cycles.
func (g *joinGraph) tarjanSCC() [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is the root of an SCC: pop it
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath walks edges inside the SCC from its first member
// until it returns to it. A self-join yields [name, name].
func (g *joinGraph) reconstructCyclePath(scc []string) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[len(scc)-1]
	current := start
	path := []string{current}
	visited := make(map[string]bool)
	for {
		visited[current] = true

		var next string
		for _, neighbor := range g.edges[current] {
			if members[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}
		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}
	return path
}
