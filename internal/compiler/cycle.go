package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/tactline/internal/ir"
)

// CycleWarning represents a cycle among working-memory default bindings.
//
// Cycles are warnings, not errors: a binding is only followed while the
// bound property has no value of its own, so a cycle may never be walked
// at run time. When it is, evaluation fails with a recursion error.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["a.x", "a.y", "a.x"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeBindings performs static cycle analysis on the default bindings of
// the world schema.
//
// The algorithm:
//  1. Build property → referenced property graph from leaf defaults
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a cycle warning
//
// A schema without binding cycles returns an empty warning list.
func AnalyzeBindings(kb *ir.KnowledgeBase) []CycleWarning {
	graph, order := buildBindingGraph(kb.World)
	if len(order) == 0 {
		return []CycleWarning{}
	}

	sccs := tarjanSCC(graph, order)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	return warnings
}

// dependencyGraph maps property path → paths its default reads.
type dependencyGraph map[string][]string

// buildBindingGraph returns the graph together with its nodes in schema
// order, so analysis output is stable across runs.
func buildBindingGraph(world []ir.Property) (dependencyGraph, []string) {
	graph := make(dependencyGraph)
	var order []string

	var walk func(props []ir.Property, prefix string)
	walk = func(props []ir.Property, prefix string) {
		for _, p := range props {
			path := prefix + p.Name
			if !p.IsLeaf() {
				walk(p.Children, path+".")
				continue
			}
			if p.Default == nil {
				continue
			}
			refs := collectRefs(p.Default, nil)
			if len(refs) == 0 {
				continue
			}
			if _, ok := graph[path]; !ok {
				order = append(order, path)
			}
			graph[path] = append(graph[path], refs...)
		}
	}
	walk(world, "")
	return graph, order
}

func collectRefs(e ir.Expr, acc []string) []string {
	switch n := e.(type) {
	case *ir.Ref:
		acc = append(acc, n.Path)
	case *ir.Unary:
		acc = collectRefs(n.Operand, acc)
	case *ir.Binary:
		acc = collectRefs(n.Left, acc)
		acc = collectRefs(n.Right, acc)
	}
	return acc
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm,
// starting from roots in the given order.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph, order []string) [][]string {
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

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

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

	for _, node := range order {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		p := scc[0]
		return CycleWarning{
			Path:    []string{p, p},
			Message: fmt.Sprintf("Self-referencing default binding: %s -> %s", p, p),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Default binding cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath follows edges inside the SCC from its last-popped
// member until it returns to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

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
		for _, neighbor := range graph[current] {
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
