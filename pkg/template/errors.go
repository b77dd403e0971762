package template

import "fmt"

// MalformedTemplateError reports a pipeline document whose shape cannot be
// interpreted, like a repetition block missing its "items" or "do" keys.
type MalformedTemplateError struct {
	Node   string
	Reason string
}

func (e MalformedTemplateError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("malformed template: %s", e.Reason)
	}
	return fmt.Sprintf("malformed template in node %q: %s", e.Node, e.Reason)
}

// UnresolvedPlaceholderError reports a placeholder that cannot be resolved,
// either because the parameter it references does not exist, or because it
// survived every expansion pass.
type UnresolvedPlaceholderError struct {
	Placeholder string
	Node        string
}

func (e UnresolvedPlaceholderError) Error() string {
	if e.Node == "" {
		return fmt.Sprintf("unresolved placeholder %s", e.Placeholder)
	}
	return fmt.Sprintf("unresolved placeholder %s in node %q", e.Placeholder, e.Node)
}

// DuplicateNodeNameError reports a node name collision after repetition
// blocks have been expanded.
type DuplicateNodeNameError struct {
	Name string
}

func (e DuplicateNodeNameError) Error() string {
	return fmt.Sprintf("duplicate node name %q after expansion", e.Name)
}
