// Package graph provides a directed graph over named nodes, with cycle
// detection that reports the full offending cycle and a deterministic
// wave-based topological ordering.
//
// It is shared by the pipeline dependency graph and by the dataset link tree
// checker: both derive their edges differently but need the same cycle
// reporting contract.
package graph

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError reports a directed cycle. Cycle holds every node on the cycle,
// in traversal order, without repeating the first node.
type CycleError struct {
	Cycle []string
}

func (e CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return "cycle detected"
	}
	return fmt.Sprintf("cycle detected: %s -> %s", strings.Join(e.Cycle, " -> "), e.Cycle[0])
}

// Digraph is a directed graph over string-named nodes.
type Digraph struct {
	nodes      map[string]struct{}
	successors map[string]map[string]struct{}
	ancestors  map[string]map[string]struct{}
}

func New() *Digraph {
	return &Digraph{
		nodes:      map[string]struct{}{},
		successors: map[string]map[string]struct{}{},
		ancestors:  map[string]map[string]struct{}{},
	}
}

// AddNode registers a node, without any edge.
func (g *Digraph) AddNode(name string) {
	g.nodes[name] = struct{}{}
}

// AddEdge registers a directed edge, adding both nodes if needed.
// Self-loops are recorded like any other edge and reported as cycles.
func (g *Digraph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)

	if g.successors[from] == nil {
		g.successors[from] = map[string]struct{}{}
	}
	g.successors[from][to] = struct{}{}

	if g.ancestors[to] == nil {
		g.ancestors[to] = map[string]struct{}{}
	}
	g.ancestors[to][from] = struct{}{}
}

// Nodes returns every node name in lexical order.
func (g *Digraph) Nodes() []string {
	return sortedSet(g.nodes)
}

// From returns the direct successors of a node, in lexical order.
func (g *Digraph) From(name string) []string {
	return sortedSet(g.successors[name])
}

// To returns the direct predecessors of a node, in lexical order.
func (g *Digraph) To(name string) []string {
	return sortedSet(g.ancestors[name])
}

// HasEdge reports whether the directed edge exists.
func (g *Digraph) HasEdge(from, to string) bool {
	_, ok := g.successors[from][to]
	return ok
}

// Reachable returns every node reachable from the given one, in lexical
// order, not including the node itself unless it lies on a cycle.
func (g *Digraph) Reachable(name string) []string {
	reached := map[string]struct{}{}

	var visit func(string)
	visit = func(current string) {
		for successor := range g.successors[current] {
			if _, seen := reached[successor]; seen {
				continue
			}
			reached[successor] = struct{}{}
			visit(successor)
		}
	}
	visit(name)

	return sortedSet(reached)
}

// FindCycle returns the nodes of a directed cycle in traversal order, or nil
// if the graph is acyclic. Traversal is deterministic: nodes and successors
// are visited in lexical order.
func (g *Digraph) FindCycle() []string {
	const (
		white = iota // unvisited
		gray         // on the current recursion stack
		black        // fully explored
	)

	colors := make(map[string]int, len(g.nodes))
	var stack []string
	var cycle []string

	var visit func(string) bool
	visit = func(current string) bool {
		colors[current] = gray
		stack = append(stack, current)

		for _, successor := range g.From(current) {
			switch colors[successor] {
			case gray:
				// Back-edge: the cycle is the stack from the successor onward.
				for i, name := range stack {
					if name == successor {
						cycle = append(cycle, stack[i:]...)
						break
					}
				}
				return true
			case white:
				if visit(successor) {
					return true
				}
			}
		}

		colors[current] = black
		stack = stack[:len(stack)-1]

		return false
	}

	for _, name := range g.Nodes() {
		if colors[name] == white && visit(name) {
			return cycle
		}
	}

	return nil
}

// Waves groups the nodes into a topological sequence of waves: every node of
// a wave has all its predecessors in strictly earlier waves, and none of its
// own wave. Nodes within a wave are sorted lexically so that the schedule is
// reproducible. Returns a CycleError if the graph is not acyclic.
func (g *Digraph) Waves() ([][]string, error) {
	pending := make(map[string]int, len(g.nodes))
	for name := range g.nodes {
		pending[name] = len(g.ancestors[name])
	}

	var waves [][]string
	for len(pending) > 0 {
		var wave []string
		for name, missing := range pending {
			if missing == 0 {
				wave = append(wave, name)
			}
		}

		if len(wave) == 0 {
			return nil, CycleError{Cycle: g.FindCycle()}
		}
		sort.Strings(wave)

		for _, name := range wave {
			delete(pending, name)
			for successor := range g.successors[name] {
				if _, ok := pending[successor]; ok {
					pending[successor]--
				}
			}
		}

		waves = append(waves, wave)
	}

	return waves, nil
}

func sortedSet(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}

	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
