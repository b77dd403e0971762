// Package params holds the parameters document of a pipeline: a read-only tree
// of configuration values addressed by dotted path expressions.
package params

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tree is an immutable tree of configuration values (scalars, sequences, mappings).
// Values are addressed with dotted paths, list elements with an index,
// e.g. "params.splits[0].name" or "params.splits.0.name".
type Tree struct {
	root map[string]any
}

// Empty returns a Tree containing no value at all.
func Empty() *Tree {
	return &Tree{root: map[string]any{}}
}

// FromMap builds a Tree from an already decoded document.
func FromMap(root map[string]any) *Tree {
	if root == nil {
		root = map[string]any{}
	}
	return &Tree{root: root}
}

// Load reads and decodes a YAML parameters document.
func Load(filename string) (*Tree, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameters file %s: %w", filename, err)
	}

	root := map[string]any{}
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to decode parameters file %s: %w", filename, err)
	}

	return FromMap(root), nil
}

// Get resolves a path expression against the tree.
// The second return value reports whether the path exists.
func (t *Tree) Get(path string) (any, bool) {
	return lookup(t.root, path)
}

// Lookup resolves a path expression against any decoded document fragment.
// It is shared with the template resolver, which addresses loop-local data
// the same way it addresses parameters.
func Lookup(root any, path string) (any, bool) {
	return lookup(root, path)
}

func lookup(root any, path string) (any, bool) {
	current := root
	for _, segment := range splitPath(path) {
		switch value := current.(type) {
		case map[string]any:
			next, ok := value[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(value) {
				return nil, false
			}
			current = value[index]
		default:
			return nil, false
		}
	}

	return current, true
}

// splitPath turns "a.b[0].c" into ["a" "b" "0" "c"].
func splitPath(path string) []string {
	normalized := strings.NewReplacer("[", ".", "]", "").Replace(path)

	var segments []string
	for _, segment := range strings.Split(normalized, ".") {
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	return segments
}
