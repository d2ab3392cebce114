package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fhchina/cci/internal/extract"
	"github.com/fhchina/cci/internal/ir"
)

// CycleWarning represents a contract-reference cycle in a unit.
//
// Cycles are warnings, not errors, because they may be intentional:
//   - Recursive validation helpers called from their own contract
//   - Mutually specified pairs (Encode/Decode asserting round trips)
//
// Aggregation breaks them at query time by degrading the re-entrant leg
// to "no contract"; the warning tells the author that degradation will
// happen.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["T.A()", "T.B()", "T.A()"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis over one unit's contract
// sections.
//
// The algorithm:
//  1. Split every routine body into its contract prefix
//  2. Build routine -> routine edges from calls inside the contract
//     conditions that resolve within the unit
//  3. Use Tarjan's algorithm to find strongly connected components
//  4. Report each SCC with size > 1, or with a self-loop, as a warning
//
// A unit whose contract graph is a DAG returns an empty list.
func AnalyzeCycles(unit *ir.CompiledUnit) []CycleWarning {
	graph := buildContractGraph(unit)
	sccs := tarjanSCC(graph)

	var warnings []CycleWarning
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, sccToWarning(scc, graph))
		}
	}
	return warnings
}

// contractGraph maps a routine's rendering to the routines its contract
// calls.
type contractGraph map[string][]string

// buildContractGraph splits each routine and collects in-unit call
// targets from its preconditions and postconditions.
func buildContractGraph(unit *ir.CompiledUnit) contractGraph {
	split := extract.StandardSplitter{}
	graph := make(contractGraph)

	for _, td := range unit.Types {
		for _, rd := range td.Routines {
			if !rd.HasBody() {
				continue
			}
			contract, _ := split.Split(rd.Body)
			if contract == nil {
				continue
			}

			from := rd.Ref().String()
			if graph[from] == nil {
				graph[from] = []string{}
			}
			for _, pre := range contract.Preconditions {
				graph[from] = append(graph[from], callTargets(unit, pre.Condition)...)
			}
			for _, post := range contract.Postconditions {
				graph[from] = append(graph[from], callTargets(unit, post.Condition)...)
				for _, capture := range post.Captures {
					graph[from] = append(graph[from], callTargets(unit, capture.Value)...)
				}
			}
		}
	}
	return graph
}

// callTargets walks a condition for calls resolving inside the unit.
func callTargets(unit *ir.CompiledUnit, e ir.Expression) []string {
	var out []string
	switch n := e.(type) {
	case nil:
		return nil
	case *ir.CallExpr:
		if def, ok := unit.ResolveRoutine(n.Target); ok {
			out = append(out, def.Ref().String())
		}
		out = append(out, callTargets(unit, n.Recv)...)
		for _, a := range n.Args {
			out = append(out, callTargets(unit, a)...)
		}
	case *ir.FieldExpr:
		out = append(out, callTargets(unit, n.Target)...)
	case *ir.BinaryExpr:
		out = append(out, callTargets(unit, n.Left)...)
		out = append(out, callTargets(unit, n.Right)...)
	case *ir.UnaryExpr:
		out = append(out, callTargets(unit, n.Operand)...)
	case *ir.OldExpr:
		out = append(out, callTargets(unit, n.Operand)...)
	}
	return out
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph contractGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of routine renderings.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph contractGraph) [][]string {
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

		// v roots an SCC: pop the stack down to it
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

	// Deterministic visit order keeps warning output stable.
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// sccToWarning converts an SCC to a CycleWarning.
//
// For self-loops the path is [r, r]; for multi-node cycles the path
// traverses the component back to its start.
func sccToWarning(scc []string, graph contractGraph) CycleWarning {
	if len(scc) == 1 {
		r := scc[0]
		return CycleWarning{
			Path:    []string{r, r},
			Message: fmt.Sprintf("contract of %s references itself", r),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("contract reference cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC: start at the
// first member, follow edges inside the component until returning to the
// start.
func reconstructCyclePath(scc []string, graph contractGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := map[string]bool{current: true}

	for {
		next := ""
		for _, neighbor := range graph[current] {
			if neighbor == start && len(path) > 1 {
				return append(path, start)
			}
			if members[neighbor] && !visited[neighbor] {
				next = neighbor
				break
			}
		}
		if next == "" {
			// Component is strongly connected, so the start is reachable;
			// close the path even when the greedy walk stalls.
			return append(path, start)
		}
		current = next
		visited[current] = true
		path = append(path, current)
	}
}
