// Package template expands a raw pipeline document into a flat set of
// concrete nodes. It substitutes $var(...) placeholders against a parameters
// tree, unrolls foreach repetition blocks into name@N node copies, and
// flattens argument-level repetitions declared with $argiter(...).
package template

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dpipe/dpipe/pkg/params"
	"github.com/dpipe/dpipe/pkg/pipeline"
)

// Placeholder syntax: $kind(content), e.g. $var(params.flags) or $iter(item).
var placeholderRegexp = regexp.MustCompile(`\$(\w+)\(([^)]+)\)`)

const (
	placeholderVariable     = "var"
	placeholderIteration    = "iter"
	placeholderArgIteration = "argiter"

	foreachKey      = "foreach"
	foreachItemsKey = "items"
	foreachDoKey    = "do"
)

// lookupFunc resolves one placeholder occurrence. The second return value
// reports whether the placeholder kind is handled at all: unhandled
// placeholders are left untouched for a later expansion pass.
type lookupFunc func(kind, content string) (any, bool, error)

// Resolver expands raw pipeline documents against a parameters tree.
type Resolver struct {
	params *params.Tree
}

func NewResolver(parameters *params.Tree) *Resolver {
	if parameters == nil {
		parameters = params.Empty()
	}
	return &Resolver{params: parameters}
}

// Resolve is a convenience wrapper around Resolver for one-shot expansion.
func Resolve(raw map[string]any, parameters *params.Tree) (*pipeline.Spec, error) {
	return NewResolver(parameters).Resolve(raw)
}

// Resolve expands the raw document into a placeholder-free pipeline spec.
// Resolving the same document against the same parameters always yields the
// same spec, including the name@N suffixes assigned to repeated nodes.
func (r *Resolver) Resolve(raw map[string]any) (*pipeline.Spec, error) {
	tree, err := resolveValue(copyValue(raw), r.lookupVariable)
	if err != nil {
		return nil, err
	}

	document, ok := tree.(map[string]any)
	if !ok {
		return nil, MalformedTemplateError{Reason: "document must be a mapping"}
	}

	rawNodes, ok := document["nodes"].(map[string]any)
	if !ok {
		return nil, MalformedTemplateError{Reason: "document must contain a 'nodes' mapping"}
	}

	nodes, err := expandNodes(rawNodes)
	if err != nil {
		return nil, err
	}

	for _, name := range sortedKeys(nodes) {
		node, ok := nodes[name].(map[string]any)
		if !ok {
			return nil, MalformedTemplateError{Node: name, Reason: "node must be a mapping"}
		}
		if err := expandArguments(name, node); err != nil {
			return nil, err
		}
		if err := checkResolved(name, node); err != nil {
			return nil, err
		}
	}

	return decodeSpec(nodes)
}

func (r *Resolver) lookupVariable(kind, content string) (any, bool, error) {
	if kind != placeholderVariable {
		return nil, false, nil
	}

	value, ok := r.params.Get(content)
	if !ok {
		return nil, false, UnresolvedPlaceholderError{
			Placeholder: fmt.Sprintf("$%s(%s)", kind, content),
		}
	}

	return value, true, nil
}

// lookupIteration resolves $iter or $argiter placeholders against the current
// repetition element. The content is a path into {item, index}, so both
// $iter(item) and $iter(item.field) work.
func lookupIteration(kind string, item any, index int) lookupFunc {
	scope := map[string]any{"item": item, "index": index}

	return func(k, content string) (any, bool, error) {
		if k != kind {
			return nil, false, nil
		}

		value, ok := params.Lookup(scope, content)
		if !ok {
			return nil, false, UnresolvedPlaceholderError{
				Placeholder: fmt.Sprintf("$%s(%s)", k, content),
			}
		}

		return value, true, nil
	}
}

// expandNodes unrolls top-level foreach blocks: each produces one node copy
// per item, named after the original with an @N suffix assigned in item order.
func expandNodes(rawNodes map[string]any) (map[string]any, error) {
	expanded := make(map[string]any, len(rawNodes))

	for _, name := range sortedKeys(rawNodes) {
		node, ok := rawNodes[name].(map[string]any)
		if !ok {
			return nil, MalformedTemplateError{Node: name, Reason: "node must be a mapping"}
		}

		block, isForeach := node[foreachKey]
		if !isForeach {
			if err := insertNode(expanded, name, node); err != nil {
				return nil, err
			}
			continue
		}

		items, do, err := foreachParts(name, block)
		if err != nil {
			return nil, err
		}

		doTemplate, ok := do.(map[string]any)
		if !ok {
			return nil, MalformedTemplateError{Node: name, Reason: "foreach 'do' must be a node mapping"}
		}

		for index, item := range items {
			copied, err := resolveValue(copyValue(doTemplate), lookupIteration(placeholderIteration, item, index))
			if err != nil {
				return nil, attachNode(err, name)
			}

			copyName := fmt.Sprintf("%s@%d", name, index)
			if err := insertNode(expanded, copyName, copied.(map[string]any)); err != nil {
				return nil, err
			}
		}
	}

	return expanded, nil
}

// expandArguments unrolls foreach blocks nested inside a node's argument
// mappings (inputs, outputs, args). Their 'do' is a string template repeated
// once per item, collecting one list entry per item.
func expandArguments(nodeName string, node map[string]any) error {
	for _, field := range sortedKeys(node) {
		arguments, ok := node[field].(map[string]any)
		if !ok {
			continue
		}

		for _, argName := range sortedKeys(arguments) {
			value, ok := arguments[argName].(map[string]any)
			if !ok {
				continue
			}
			block, isForeach := value[foreachKey]
			if !isForeach {
				continue
			}

			items, do, err := foreachParts(nodeName, block)
			if err != nil {
				return err
			}

			doTemplate, ok := do.(string)
			if !ok {
				return MalformedTemplateError{
					Node:   nodeName,
					Reason: fmt.Sprintf("foreach 'do' of argument %q must be a string template", argName),
				}
			}

			entries := make([]any, 0, len(items))
			for index, item := range items {
				entry, err := substituteString(doTemplate, lookupIteration(placeholderArgIteration, item, index))
				if err != nil {
					return attachNode(err, nodeName)
				}
				entries = append(entries, entry)
			}

			arguments[argName] = entries
		}
	}

	return nil
}

func foreachParts(nodeName string, block any) ([]any, any, error) {
	mapping, ok := block.(map[string]any)
	if !ok {
		return nil, nil, MalformedTemplateError{Node: nodeName, Reason: "foreach must be a mapping"}
	}

	rawItems, ok := mapping[foreachItemsKey]
	if !ok {
		return nil, nil, MalformedTemplateError{Node: nodeName, Reason: "foreach is missing the 'items' key"}
	}

	do, ok := mapping[foreachDoKey]
	if !ok {
		return nil, nil, MalformedTemplateError{Node: nodeName, Reason: "foreach is missing the 'do' key"}
	}

	items, ok := rawItems.([]any)
	if !ok {
		return nil, nil, MalformedTemplateError{Node: nodeName, Reason: "foreach 'items' must be a sequence"}
	}

	return items, do, nil
}

func insertNode(nodes map[string]any, name string, node map[string]any) error {
	if _, exists := nodes[name]; exists {
		return DuplicateNodeNameError{Name: name}
	}

	nodes[name] = node

	return nil
}

// checkResolved refuses any placeholder that survived every expansion pass,
// like an $iter outside a foreach block. A compiled spec never executes
// half-resolved.
func checkResolved(nodeName string, value any) error {
	switch typed := value.(type) {
	case string:
		if match := placeholderRegexp.FindString(typed); match != "" {
			return UnresolvedPlaceholderError{Placeholder: match, Node: nodeName}
		}
	case map[string]any:
		if _, ok := typed[foreachKey]; ok {
			return MalformedTemplateError{
				Node:   nodeName,
				Reason: "foreach block left unexpanded; repetition is only supported at the node level or directly under an argument",
			}
		}
		for _, key := range sortedKeys(typed) {
			if err := checkResolved(nodeName, typed[key]); err != nil {
				return err
			}
		}
	case []any:
		for _, element := range typed {
			if err := checkResolved(nodeName, element); err != nil {
				return err
			}
		}
	}

	return nil
}

// resolveValue walks a document fragment depth-first, substituting
// placeholders in every string value.
func resolveValue(value any, lookup lookupFunc) (any, error) {
	switch typed := value.(type) {
	case string:
		return substituteString(typed, lookup)
	case map[string]any:
		// Keys are walked in lexical order so that, with several unresolved
		// placeholders, the reported one is always the same.
		for _, key := range sortedKeys(typed) {
			resolved, err := resolveValue(typed[key], lookup)
			if err != nil {
				return nil, err
			}
			typed[key] = resolved
		}
		return typed, nil
	case []any:
		for i, element := range typed {
			resolved, err := resolveValue(element, lookup)
			if err != nil {
				return nil, err
			}
			typed[i] = resolved
		}
		return typed, nil
	default:
		return value, nil
	}
}

// substituteString resolves the placeholders of a single string. When the
// whole string is one placeholder the resolved value keeps its original type,
// so $var(params.folders) can inject a list. Otherwise every occurrence is
// stringified in place.
func substituteString(s string, lookup lookupFunc) (any, error) {
	matches := placeholderRegexp.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	if len(matches) == 1 && matches[0][0] == 0 && matches[0][1] == len(s) {
		value, handled, err := lookup(s[matches[0][2]:matches[0][3]], s[matches[0][4]:matches[0][5]])
		if err != nil {
			return nil, err
		}
		if !handled {
			return s, nil
		}
		return value, nil
	}

	var builder strings.Builder
	last := 0
	for _, match := range matches {
		value, handled, err := lookup(s[match[2]:match[3]], s[match[4]:match[5]])
		if err != nil {
			return nil, err
		}

		builder.WriteString(s[last:match[0]])
		if handled {
			builder.WriteString(fmt.Sprintf("%v", value))
		} else {
			builder.WriteString(s[match[0]:match[1]])
		}
		last = match[1]
	}
	builder.WriteString(s[last:])

	return builder.String(), nil
}

func decodeSpec(nodes map[string]any) (*pipeline.Spec, error) {
	data, err := yaml.Marshal(map[string]any{"nodes": nodes})
	if err != nil {
		return nil, fmt.Errorf("failed to encode resolved nodes: %w", err)
	}

	spec := &pipeline.Spec{}
	if err := yaml.Unmarshal(data, spec); err != nil {
		return nil, MalformedTemplateError{Reason: err.Error()}
	}

	for _, name := range spec.NodeNames() {
		if strings.TrimSpace(spec.Nodes[name].Command) == "" {
			return nil, MalformedTemplateError{Node: name, Reason: "node is missing a non-blank 'command' key"}
		}
	}

	return spec, nil
}

// attachNode enriches placeholder errors raised during a repetition pass with
// the name of the node being expanded.
func attachNode(err error, nodeName string) error {
	if unresolved, ok := err.(UnresolvedPlaceholderError); ok && unresolved.Node == "" {
		unresolved.Node = nodeName
		return unresolved
	}
	return err
}

func copyValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		copied := make(map[string]any, len(typed))
		for key, element := range typed {
			copied[key] = copyValue(element)
		}
		return copied
	case []any:
		copied := make([]any, len(typed))
		for i, element := range typed {
			copied[i] = copyValue(element)
		}
		return copied
	default:
		return value
	}
}

func sortedKeys(mapping map[string]any) []string {
	keys := make([]string, 0, len(mapping))
	for key := range mapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}
