// Package executor runs the nodes of a validated pipeline graph wave by
// wave, through a pluggable backend strategy, and reports one result per
// node. Backends spawn each node's command as a local subprocess.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	osexec "os/exec"
	"path"
	"sort"
	"strings"

	"github.com/dpipe/dpipe/internal/logger"
	"github.com/dpipe/dpipe/pkg/event"
	"github.com/dpipe/dpipe/pkg/pipeline"
)

const (
	StatusSkipped Status = iota
	StatusSucceeded
	StatusFailed
)

// Status is the terminal state of one node execution.
type Status int

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// Result is the outcome of running one node.
type Result struct {
	NodeName       string
	Status         Status
	ExitCode       int
	FailureMessage string
}

// Task is one node scheduled for execution.
type Task struct {
	Name string
	Node *pipeline.Node
}

// Backend is the polymorphic execution strategy: it consumes one wave of
// mutually independent nodes and returns a Result per node. Whether the wave
// runs one node at a time or concurrently is the backend's business, the
// scheduler never knows.
type Backend interface {
	RunWave(ctx context.Context, wave []Task) []Result
}

// Shell abstracts the subprocess spawning used to run node commands.
type Shell interface {
	ExecuteContext(ctx context.Context, stdout, stderr io.Writer, name string, args ...string) error
}

// Validator is the external collaborator checking a declared path against a
// schema reference. The engine treats a validation failure exactly like a
// process failure.
type Validator interface {
	Validate(path string, schemaRef string) error
}

// NopValidator accepts everything; schema references are ignored.
type NopValidator struct{}

func (NopValidator) Validate(string, string) error { return nil }

// ExecutionError reports a node process that terminated abnormally.
type ExecutionError struct {
	Node     string
	ExitCode int
	Err      error
}

func (e ExecutionError) Error() string {
	return fmt.Sprintf("node %q exited with code %d: %v", e.Node, e.ExitCode, e.Err)
}

func (e ExecutionError) Unwrap() error { return e.Err }

// ValidationError reports an input or output that does not match its
// declared schema reference.
type ValidationError struct {
	Node     string
	Argument string
	Path     string
	Schema   string
	Err      error
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("node %q: %s %q does not validate against schema %q: %v",
		e.Node, e.Argument, e.Path, e.Schema, e.Err)
}

func (e ValidationError) Unwrap() error { return e.Err }

// nodeRunner holds what both backends need to execute a single node.
type nodeRunner struct {
	shell     Shell
	validator Validator
	publisher event.Publisher
	logsDir   string
}

func newNodeRunner(shell Shell, validator Validator, publisher event.Publisher, logsDir string) nodeRunner {
	if validator == nil {
		validator = NopValidator{}
	}
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	return nodeRunner{
		shell:     shell,
		validator: validator,
		publisher: publisher,
		logsDir:   logsDir,
	}
}

// runNode executes one node: validate declared inputs, spawn the command,
// wait for it, then validate declared outputs.
func (r nodeRunner) runNode(ctx context.Context, task Task) Result {
	r.publisher.Publish(task.Name, event.TransitionStarted, "")

	if err := r.validatePaths(task, "input", task.Node.Inputs, task.Node.InputsSchema); err != nil {
		return r.failure(task, 0, err)
	}

	chunks := CommandChunks(task.Node)
	if len(chunks) == 0 {
		return r.failure(task, 0, fmt.Errorf("node %q has a blank command", task.Name))
	}

	output, closeOutput := r.openLog(task.Name)
	defer closeOutput()

	logger.Infof("Running node %q: %s", task.Name, strings.Join(chunks, " "))

	if err := r.shell.ExecuteContext(ctx, output, output, chunks[0], chunks[1:]...); err != nil {
		exitCode := 1
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return r.failure(task, exitCode, ExecutionError{Node: task.Name, ExitCode: exitCode, Err: err})
	}

	if err := r.validatePaths(task, "output", task.Node.Outputs, task.Node.OutputsSchema); err != nil {
		return r.failure(task, 0, err)
	}

	r.publisher.Publish(task.Name, event.TransitionSucceeded, "")

	return Result{NodeName: task.Name, Status: StatusSucceeded}
}

func (r nodeRunner) failure(task Task, exitCode int, err error) Result {
	logger.Errorf("Node %q failed: %v", task.Name, err)
	r.publisher.Publish(task.Name, event.TransitionFailed, err.Error())

	return Result{
		NodeName:       task.Name,
		Status:         StatusFailed,
		ExitCode:       exitCode,
		FailureMessage: err.Error(),
	}
}

// validatePaths hands every declared path carrying a schema reference to the
// validation collaborator.
func (r nodeRunner) validatePaths(task Task, kind string, values map[string]any, schemas map[string]string) error {
	for _, argName := range sortedKeys(schemas) {
		schema := schemas[argName]
		for _, p := range pipeline.PathList(values[argName]) {
			if err := r.validator.Validate(p, schema); err != nil {
				return ValidationError{
					Node:     task.Name,
					Argument: fmt.Sprintf("%s %q", kind, argName),
					Path:     p,
					Schema:   schema,
					Err:      err,
				}
			}
		}
	}

	return nil
}

// openLog returns the writer capturing the node's combined output. Without a
// logs directory, or when the file cannot be created, output is discarded.
func (r nodeRunner) openLog(nodeName string) (io.Writer, func()) {
	if r.logsDir == "" {
		return io.Discard, func() {}
	}

	if err := os.MkdirAll(r.logsDir, 0o755); err != nil {
		logger.Warnf("failed to create logs folder %s: %v", r.logsDir, err)
		return io.Discard, func() {}
	}

	filePath := path.Join(r.logsDir, fmt.Sprintf("%s.txt", strings.ReplaceAll(nodeName, "/", "_")))
	file, err := os.Create(filePath)
	if err != nil {
		logger.Warnf("failed to create log file %s: %v", filePath, err)
		return io.Discard, func() {}
	}

	return file, func() { _ = file.Close() }
}

func sortedKeys[V any](mapping map[string]V) []string {
	keys := make([]string, 0, len(mapping))
	for key := range mapping {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	return keys
}
