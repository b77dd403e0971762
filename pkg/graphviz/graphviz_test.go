package graphviz_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpipe/dpipe/pkg/dag"
	"github.com/dpipe/dpipe/pkg/graphviz"
	"github.com/dpipe/dpipe/pkg/pipeline"
)

func Test_GenerateRawOutput_EmptyGraph(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "digraph pipeline {\n"+
		"  rankdir = \"LR\";\n"+
		"  node[fontsize=10, shape=cds, height=0.4];\n"+
		"  edge[fontsize=10, arrowhead=vee];\n"+
		"\n"+
		"}\n",
		graphviz.GenerateRawOutput(nil))
}

func Test_GenerateRawOutput(t *testing.T) {
	t.Parallel()

	spec := &pipeline.Spec{Nodes: map[string]*pipeline.Node{
		"split": {
			Command: "python split.py",
			Outputs: map[string]any{"train": "data/train.csv"},
		},
		"train": {
			Command: "python train.py",
			Inputs:  map[string]any{"dataset": "data/train.csv"},
		},
	}}

	d, err := dag.Build(spec)
	require.NoError(t, err)

	output := graphviz.GenerateRawOutput(d)
	assert.Contains(t, output, "\"split\" [fillcolor=white, style=filled];")
	assert.Contains(t, output, "\"train\" [fillcolor=white, style=filled];")
	assert.Contains(t, output, "\"split\" -> \"train\" [dir=forward];")
}
