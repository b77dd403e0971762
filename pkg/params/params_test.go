package params_test

import (
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpipe/dpipe/pkg/params"
)

func Test_Get_NestedPaths(t *testing.T) {
	t.Parallel()

	tree := params.FromMap(map[string]any{
		"params": map[string]any{
			"folder": "data/raw",
			"splits": []any{
				map[string]any{"name": "train", "fraction": 0.8},
				map[string]any{"name": "test", "fraction": 0.2},
			},
		},
	})

	value, ok := tree.Get("params.folder")
	require.True(t, ok)
	assert.Equal(t, "data/raw", value)

	value, ok = tree.Get("params.splits[1].name")
	require.True(t, ok)
	assert.Equal(t, "test", value)

	value, ok = tree.Get("params.splits.0.fraction")
	require.True(t, ok)
	assert.InEpsilon(t, 0.8, value, 1e-9)
}

func Test_Get_KeepsValueTypes(t *testing.T) {
	t.Parallel()

	tree := params.FromMap(map[string]any{
		"flags":   []any{"-v", "--fast"},
		"retries": 3,
	})

	value, ok := tree.Get("flags")
	require.True(t, ok)
	assert.Equal(t, []any{"-v", "--fast"}, value)

	value, ok = tree.Get("retries")
	require.True(t, ok)
	assert.Equal(t, 3, value)
}

func Test_Get_MissingPath(t *testing.T) {
	t.Parallel()

	tree := params.FromMap(map[string]any{
		"params": map[string]any{
			"items": []any{"a"},
		},
	})

	testCases := []string{
		"nope",
		"params.nope",
		"params.items[1]",
		"params.items[-1]",
		"params.items.x",
		"params.items[0].deeper",
	}

	for _, testCase := range testCases {
		_, ok := tree.Get(testCase)
		assert.False(t, ok, "path %q should not resolve", testCase)
	}
}

func Test_Lookup_WorksOnAnyFragment(t *testing.T) {
	t.Parallel()

	scope := map[string]any{
		"item":  map[string]any{"name": "train"},
		"index": 0,
	}

	value, ok := params.Lookup(scope, "item.name")
	require.True(t, ok)
	assert.Equal(t, "train", value)

	value, ok = params.Lookup(scope, "index")
	require.True(t, ok)
	assert.Equal(t, 0, value)
}

func Test_Load(t *testing.T) {
	t.Parallel()

	filename := path.Join(t.TempDir(), "params.yml")
	document := []byte("params:\n  folder: data/raw\n  count: 2\n")
	require.NoError(t, os.WriteFile(filename, document, 0o600))

	tree, err := params.Load(filename)
	require.NoError(t, err)

	value, ok := tree.Get("params.folder")
	require.True(t, ok)
	assert.Equal(t, "data/raw", value)

	value, ok = tree.Get("params.count")
	require.True(t, ok)
	assert.Equal(t, 2, value)
}

func Test_Load_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := params.Load(path.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

func Test_Empty(t *testing.T) {
	t.Parallel()

	_, ok := params.Empty().Get("anything")
	assert.False(t, ok)
}
