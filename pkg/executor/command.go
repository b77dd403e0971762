package executor

import (
	"fmt"
	"strings"

	"github.com/dpipe/dpipe/pkg/pipeline"
)

// CommandChunks builds the invocation line of a node: the command string
// split on spaces, followed by one --name/value pair per input, output and
// free-form argument, in lexical argument order so the line is reproducible.
// List values repeat the flag once per element, mapping values emit the flag
// followed by key/value pairs.
func CommandChunks(node *pipeline.Node) []string {
	chunks := strings.Fields(node.Command)

	for _, group := range []map[string]any{node.Inputs, node.Outputs, node.Args} {
		for _, name := range sortedKeys(group) {
			chunks = appendArgument(chunks, name, group[name])
		}
	}

	return chunks
}

func appendArgument(chunks []string, name string, value any) []string {
	switch typed := value.(type) {
	case []any:
		for _, element := range typed {
			chunks = appendArgument(chunks, name, element)
		}
	case []string:
		for _, element := range typed {
			chunks = appendArgument(chunks, name, element)
		}
	case map[string]any:
		chunks = append(chunks, "--"+name)
		for _, key := range sortedKeys(typed) {
			chunks = append(chunks, key, fmt.Sprintf("%v", typed[key]))
		}
	default:
		chunks = append(chunks, "--"+name, fmt.Sprintf("%v", typed))
	}

	return chunks
}
