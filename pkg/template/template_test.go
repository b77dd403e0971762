package template_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dpipe/dpipe/pkg/params"
	"github.com/dpipe/dpipe/pkg/pipeline"
	"github.com/dpipe/dpipe/pkg/template"
)

func decode(t *testing.T, document string) map[string]any {
	t.Helper()

	raw := map[string]any{}
	require.NoError(t, yaml.Unmarshal([]byte(document), &raw))

	return raw
}

func Test_Resolve_ConcreteDocumentIsIdentity(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  split:
    command: python split.py
    inputs:
      dataset: data/raw.csv
    outputs:
      train: data/train.csv
`)

	spec, err := template.Resolve(raw, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"split"}, spec.NodeNames())
	assert.Equal(t, "python split.py", spec.Nodes["split"].Command)
	assert.Equal(t, map[string]any{"dataset": "data/raw.csv"}, spec.Nodes["split"].Inputs)
	assert.Equal(t, map[string]any{"train": "data/train.csv"}, spec.Nodes["split"].Outputs)
}

func Test_Resolve_VariablePlaceholders(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  train:
    command: python train.py
    inputs:
      dataset: $var(paths.dataset)
    outputs:
      model: $var(paths.models)/model.bin
    args:
      epochs: $var(training.epochs)
`)
	parameters := params.FromMap(map[string]any{
		"paths": map[string]any{
			"dataset": "data/train.csv",
			"models":  "models",
		},
		"training": map[string]any{"epochs": 20},
	})

	spec, err := template.Resolve(raw, parameters)
	require.NoError(t, err)

	node := spec.Nodes["train"]
	assert.Equal(t, "data/train.csv", node.Inputs["dataset"])
	assert.Equal(t, "models/model.bin", node.Outputs["model"])
	assert.Equal(t, 20, node.Args["epochs"], "whole-string placeholder keeps the parameter type")
}

func Test_Resolve_VariableInjectsList(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  merge:
    command: python merge.py
    inputs:
      parts: $var(parts)
`)
	parameters := params.FromMap(map[string]any{
		"parts": []any{"data/a.csv", "data/b.csv"},
	})

	spec, err := template.Resolve(raw, parameters)
	require.NoError(t, err)

	assert.Equal(t, []any{"data/a.csv", "data/b.csv"}, spec.Nodes["merge"].Inputs["parts"])
}

func Test_Resolve_UnknownVariable(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  train:
    command: python train.py
    args:
      epochs: $var(nope.epochs)
`)

	_, err := template.Resolve(raw, nil)
	require.Error(t, err)

	var unresolved template.UnresolvedPlaceholderError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "$var(nope.epochs)", unresolved.Placeholder)
}

func Test_Resolve_ForeachExpandsIndexedCopies(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  split:
    foreach:
      items: ["train", "test"]
      do:
        command: python split.py
        args:
          subset: $iter(item)
          rank: $iter(index)
        outputs:
          out: data/$iter(item).csv
`)

	spec, err := template.Resolve(raw, nil)
	require.NoError(t, err)

	require.Equal(t, []string{"split@0", "split@1"}, spec.NodeNames())

	first := spec.Nodes["split@0"]
	assert.Equal(t, "train", first.Args["subset"])
	assert.Equal(t, 0, first.Args["rank"])
	assert.Equal(t, "data/train.csv", first.Outputs["out"])

	second := spec.Nodes["split@1"]
	assert.Equal(t, "test", second.Args["subset"])
	assert.Equal(t, 1, second.Args["rank"])
	assert.Equal(t, "data/test.csv", second.Outputs["out"])
}

func Test_Resolve_ForeachItemsFromVariable(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  shard:
    foreach:
      items: $var(shards)
      do:
        command: python shard.py
        outputs:
          out: data/shard-$iter(item.name).bin
`)
	parameters := params.FromMap(map[string]any{
		"shards": []any{
			map[string]any{"name": "eu"},
			map[string]any{"name": "us"},
		},
	})

	spec, err := template.Resolve(raw, parameters)
	require.NoError(t, err)

	require.Equal(t, []string{"shard@0", "shard@1"}, spec.NodeNames())
	assert.Equal(t, "data/shard-eu.bin", spec.Nodes["shard@0"].Outputs["out"])
	assert.Equal(t, "data/shard-us.bin", spec.Nodes["shard@1"].Outputs["out"])
}

func Test_Resolve_ArgumentForeachCollectsList(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  merge:
    command: python merge.py
    inputs:
      parts:
        foreach:
          items: ["a", "b", "c"]
          do: data/$argiter(item).csv
    outputs:
      merged: data/all.csv
`)

	spec, err := template.Resolve(raw, nil)
	require.NoError(t, err)

	assert.Equal(t,
		[]any{"data/a.csv", "data/b.csv", "data/c.csv"},
		spec.Nodes["merge"].Inputs["parts"])
}

func Test_Resolve_ArgumentForeachRequiresStringTemplate(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  merge:
    command: python merge.py
    inputs:
      parts:
        foreach:
          items: ["a"]
          do:
            nested: $argiter(item)
`)

	_, err := template.Resolve(raw, nil)
	require.Error(t, err)

	var malformed template.MalformedTemplateError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "merge", malformed.Node)
}

func Test_Resolve_ForeachMissingItems(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  split:
    foreach:
      do:
        command: python split.py
`)

	_, err := template.Resolve(raw, nil)
	require.Error(t, err)

	var malformed template.MalformedTemplateError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Reason, "items")
}

func Test_Resolve_ForeachMissingDo(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  split:
    foreach:
      items: ["a"]
`)

	_, err := template.Resolve(raw, nil)
	require.Error(t, err)

	var malformed template.MalformedTemplateError
	require.ErrorAs(t, err, &malformed)
	assert.Contains(t, malformed.Reason, "do")
}

func Test_Resolve_IterationOutsideForeach(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  train:
    command: python train.py
    args:
      subset: $iter(item)
`)

	_, err := template.Resolve(raw, nil)
	require.Error(t, err)

	var unresolved template.UnresolvedPlaceholderError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "$iter(item)", unresolved.Placeholder)
	assert.Equal(t, "train", unresolved.Node)
}

func Test_Resolve_DuplicateExpandedName(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  split:
    foreach:
      items: ["a"]
      do:
        command: python split.py
  split@0:
    command: python clash.py
`)

	_, err := template.Resolve(raw, nil)
	require.Error(t, err)

	var duplicate template.DuplicateNodeNameError
	require.ErrorAs(t, err, &duplicate)
	assert.Equal(t, "split@0", duplicate.Name)
}

func Test_Resolve_MissingCommand(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  train:
    inputs:
      dataset: data/train.csv
`)

	_, err := template.Resolve(raw, nil)
	require.Error(t, err)

	var malformed template.MalformedTemplateError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "train", malformed.Node)
	assert.Contains(t, malformed.Reason, "command")
}

func Test_Resolve_BlankCommand(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  train:
    command: "   "
`)

	_, err := template.Resolve(raw, nil)
	require.Error(t, err)

	var malformed template.MalformedTemplateError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "train", malformed.Node)
	assert.Contains(t, malformed.Reason, "command")
}

func Test_Resolve_ForeachNestedInArgumentList(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  merge:
    command: python merge.py
    inputs:
      parts:
        - foreach:
            items: ["a", "b"]
            do: data/x.csv
`)

	_, err := template.Resolve(raw, nil)
	require.Error(t, err)

	var malformed template.MalformedTemplateError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "merge", malformed.Node)
	assert.Contains(t, malformed.Reason, "foreach")
}

func Test_Resolve_FirstMissingVariableIsReported(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  train:
    command: python train.py
    args:
      alpha: $var(missing.alpha)
      beta: $var(missing.beta)
`)

	for i := 0; i < 10; i++ {
		_, err := template.Resolve(raw, nil)
		require.Error(t, err)

		var unresolved template.UnresolvedPlaceholderError
		require.ErrorAs(t, err, &unresolved)
		assert.Equal(t, "$var(missing.alpha)", unresolved.Placeholder)
	}
}

func Test_Resolve_MissingNodesMapping(t *testing.T) {
	t.Parallel()

	_, err := template.Resolve(map[string]any{"pipeline": "x"}, nil)
	require.Error(t, err)

	var malformed template.MalformedTemplateError
	require.ErrorAs(t, err, &malformed)
}

func Test_Resolve_IsDeterministic(t *testing.T) {
	t.Parallel()

	document := `nodes:
  split:
    foreach:
      items: ["train", "test", "val"]
      do:
        command: python split.py
        outputs:
          out: data/$iter(item).csv
`
	parameters := params.Empty()

	first, err := template.Resolve(decode(t, document), parameters)
	require.NoError(t, err)
	second, err := template.Resolve(decode(t, document), parameters)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func Test_Resolve_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  train:
    command: python train.py
    args:
      epochs: $var(epochs)
`)
	parameters := params.FromMap(map[string]any{"epochs": 5})

	_, err := template.Resolve(raw, parameters)
	require.NoError(t, err)

	nodes := raw["nodes"].(map[string]any)
	train := nodes["train"].(map[string]any)
	args := train["args"].(map[string]any)
	assert.Equal(t, "$var(epochs)", args["epochs"])
}

func Test_Resolve_CompileFixedPoint(t *testing.T) {
	t.Parallel()

	raw := decode(t, `nodes:
  split:
    foreach:
      items: ["train", "test"]
      do:
        command: python split.py
        outputs:
          out: data/$iter(item).csv
`)

	spec, err := template.Resolve(raw, nil)
	require.NoError(t, err)

	rendered, err := spec.Render()
	require.NoError(t, err)

	reloaded := map[string]any{}
	require.NoError(t, yaml.Unmarshal(rendered, &reloaded))

	again, err := template.Resolve(reloaded, nil)
	require.NoError(t, err)
	assert.Equal(t, spec, again)
}

func Test_NewResolver_NilParameters(t *testing.T) {
	t.Parallel()

	spec, err := template.NewResolver(nil).Resolve(decode(t, `nodes:
  noop:
    command: "true"
`))
	require.NoError(t, err)
	assert.Equal(t, &pipeline.Spec{Nodes: map[string]*pipeline.Node{
		"noop": {Command: "true"},
	}}, spec)
}
