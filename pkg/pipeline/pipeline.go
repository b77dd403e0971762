// Package pipeline defines the declarative pipeline document: a mapping of
// named nodes, each describing an external command with its inputs, outputs
// and free-form arguments.
package pipeline

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Spec is a pipeline document. In its resolved form it contains no
// placeholders and no repetition blocks, only concrete nodes.
type Spec struct {
	Nodes map[string]*Node `yaml:"nodes"`
}

// Node is a single unit of work, backed by an external command invocation.
// Input and output values are path strings, or lists of path strings when
// produced by a repetition block.
type Node struct {
	Command       string            `yaml:"command"`
	Inputs        map[string]any    `yaml:"inputs,omitempty"`
	Outputs       map[string]any    `yaml:"outputs,omitempty"`
	Args          map[string]any    `yaml:"args,omitempty"`
	InputsSchema  map[string]string `yaml:"inputs_schema,omitempty"`
	OutputsSchema map[string]string `yaml:"outputs_schema,omitempty"`
}

// Load reads and decodes a resolved pipeline document.
func Load(filename string) (*Spec, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file %s: %w", filename, err)
	}

	spec := &Spec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline file %s: %w", filename, err)
	}

	return spec, nil
}

// LoadRaw reads a pipeline document without interpreting it, so that
// repetition blocks and placeholders survive for the template resolver.
func LoadRaw(filename string) (map[string]any, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file %s: %w", filename, err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline file %s: %w", filename, err)
	}

	return raw, nil
}

// Render encodes the spec back to its declarative YAML form.
func (s *Spec) Render() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pipeline: %w", err)
	}
	return data, nil
}

// Save writes the spec to a file in its declarative YAML form.
func (s *Spec) Save(filename string) error {
	data, err := s.Render()
	if err != nil {
		return err
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write pipeline file %s: %w", filename, err)
	}

	return nil
}

// NodeNames returns the node names in lexical order.
func (s *Spec) NodeNames() []string {
	names := make([]string, 0, len(s.Nodes))
	for name := range s.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// InputPaths returns every declared input path of the node.
func (n *Node) InputPaths() []string {
	return collectPaths(n.Inputs)
}

// OutputPaths returns every declared output path of the node.
func (n *Node) OutputPaths() []string {
	return collectPaths(n.Outputs)
}

func collectPaths(arguments map[string]any) []string {
	var paths []string

	names := make([]string, 0, len(arguments))
	for name := range arguments {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		paths = append(paths, flattenPaths(arguments[name])...)
	}

	return paths
}

// PathList flattens a single argument value into its path strings: a string
// value yields one path, a list one per element.
func PathList(value any) []string {
	return flattenPaths(value)
}

func flattenPaths(value any) []string {
	switch typed := value.(type) {
	case string:
		return []string{typed}
	case []any:
		var paths []string
		for _, element := range typed {
			paths = append(paths, flattenPaths(element)...)
		}
		return paths
	case []string:
		return typed
	default:
		return nil
	}
}
