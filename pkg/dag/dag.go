// Package dag builds the execution graph of a resolved pipeline: an edge goes
// from a producer to a consumer whenever one of the producer's declared
// output paths is also one of the consumer's declared input paths.
package dag

import (
	"path/filepath"

	"github.com/dpipe/dpipe/pkg/graph"
	"github.com/dpipe/dpipe/pkg/pipeline"
)

// DAG is the validated, acyclic dependency graph of a resolved pipeline.
// It is immutable once built and safe for concurrent reads.
type DAG struct {
	spec  *pipeline.Spec
	graph *graph.Digraph
}

// Build assembles the dependency graph of the spec and validates that it is
// acyclic. Matching is purely structural over the declared path strings:
// normalized equality, never filesystem inspection.
func Build(spec *pipeline.Spec) (*DAG, error) {
	g := graph.New()

	producers := map[string][]string{}
	for _, name := range spec.NodeNames() {
		g.AddNode(name)
		for _, path := range spec.Nodes[name].OutputPaths() {
			normalized := NormalizePath(path)
			producers[normalized] = append(producers[normalized], name)
		}
	}

	for _, name := range spec.NodeNames() {
		for _, path := range spec.Nodes[name].InputPaths() {
			for _, producer := range producers[NormalizePath(path)] {
				if producer == name {
					continue
				}
				g.AddEdge(producer, name)
			}
		}
	}

	if cycle := g.FindCycle(); cycle != nil {
		return nil, graph.CycleError{Cycle: cycle}
	}

	return &DAG{spec: spec, graph: g}, nil
}

// Spec returns the resolved pipeline this graph was built from.
func (d *DAG) Spec() *pipeline.Spec {
	return d.spec
}

// Node returns the resolved node with the given name, or nil.
func (d *DAG) Node(name string) *pipeline.Node {
	return d.spec.Nodes[name]
}

// Nodes returns every node name in lexical order.
func (d *DAG) Nodes() []string {
	return d.graph.Nodes()
}

// Dependencies returns the direct producers a node consumes from.
func (d *DAG) Dependencies(name string) []string {
	return d.graph.To(name)
}

// Dependents returns the direct consumers of a node's outputs.
func (d *DAG) Dependents(name string) []string {
	return d.graph.From(name)
}

// TransitiveDependents returns every node reachable from the given one.
func (d *DAG) TransitiveDependents(name string) []string {
	return d.graph.Reachable(name)
}

// Waves computes the execution schedule: a sequence of waves of mutually
// independent nodes. The graph was validated at build time, but the cycle
// check still applies in case of a hand-crafted graph.
func (d *DAG) Waves() ([][]string, error) {
	return d.graph.Waves()
}

// NormalizePath canonicalizes a declared path string: trailing separators are
// stripped and relative references are resolved lexically. Distinct textual
// paths pointing to the same physical location stay distinct.
func NormalizePath(path string) string {
	if path == "" {
		return path
	}
	return filepath.Clean(path)
}
