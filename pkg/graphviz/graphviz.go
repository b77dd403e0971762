// Package graphviz renders the dependency graph of a resolved pipeline.
package graphviz

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/dpipe/dpipe/pkg/dag"
)

const (
	// graphDot is the name of the file containing the raw graphviz dot language representation of the graph.
	graphDot = "pipeline.dot"

	// graphPng is the final file inside we put the rendered graph.
	graphPng = "pipeline.png"
)

// GenerateGraph generates a graphviz representation (png) of the dag.DAG in the given output directory.
func GenerateGraph(ctx context.Context, d *dag.DAG, outputDir string) error {
	rawGraphvizOutput := GenerateRawOutput(d)

	graphvizFile := path.Join(outputDir, graphDot)
	pngFile := path.Join(outputDir, graphPng)

	err := os.WriteFile(graphvizFile, []byte(rawGraphvizOutput), 0o644)
	if err != nil {
		return err
	}

	g, err := graphviz.New(ctx)
	if err != nil {
		return fmt.Errorf("failed to create graphviz: %w", err)
	}

	defer func() {
		_ = g.Close()
	}()

	parsed, err := graphviz.ParseBytes([]byte(rawGraphvizOutput))
	if err != nil {
		return fmt.Errorf("failed to parse graphviz: %w", err)
	}

	defer func() {
		_ = parsed.Close()
	}()

	err = g.RenderFilename(ctx, parsed, graphviz.PNG, pngFile)
	if err != nil {
		return fmt.Errorf("failed to render graph: %w", err)
	}

	return nil
}

// GenerateRawOutput generates the raw graphviz dot language from the given dag.DAG.
func GenerateRawOutput(d *dag.DAG) string {
	rawGraphvizDotLang := []string{
		"digraph pipeline {\n",
		"  rankdir = \"LR\";\n",
		"  node[fontsize=10, shape=cds, height=0.4];\n",
		"  edge[fontsize=10, arrowhead=vee];\n",
		"\n",
	}

	if d != nil {
		for _, name := range d.Nodes() {
			rawGraphvizDotLang = append(rawGraphvizDotLang, fmt.Sprintf(
				"  \"%s\" [fillcolor=white, style=filled];\n",
				name,
			))

			for _, dependent := range d.Dependents(name) {
				rawGraphvizDotLang = append(rawGraphvizDotLang, fmt.Sprintf(
					"  \"%s\" -> \"%s\" [dir=forward];\n",
					name,
					dependent,
				))
			}
		}
	}

	rawGraphvizDotLang = append(rawGraphvizDotLang, "}\n")

	return strings.Join(rawGraphvizDotLang, "")
}
