package executor

import (
	"context"

	"github.com/dpipe/dpipe/internal/logger"
	"github.com/dpipe/dpipe/pkg/dag"
	"github.com/dpipe/dpipe/pkg/event"
)

const (
	skippedDependencyMessage = "skipped: a dependency failed"
	skippedCancelledMessage  = "skipped: run cancelled"
)

// Runner drives a pipeline run: it computes the execution waves of the graph
// and feeds them to the backend, one wave at a time. A wave never starts
// before every node of the previous wave reached a terminal state.
type Runner struct {
	backend   Backend
	publisher event.Publisher
}

func NewRunner(backend Backend, publisher event.Publisher) *Runner {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	return &Runner{backend: backend, publisher: publisher}
}

// Run executes the graph and returns one Result per node, in lexical node
// order. When a node fails, its transitive dependents are marked skipped and
// never invoked, while independent branches keep running. Cancelling the
// context stops further waves; nodes that never ran are reported skipped.
func (r *Runner) Run(ctx context.Context, d *dag.DAG) ([]Result, error) {
	waves, err := d.Waves()
	if err != nil {
		return nil, err
	}

	results := make(map[string]Result, len(d.Nodes()))
	unavailable := map[string]bool{} // nodes failed or skipped

	for waveIndex, wave := range waves {
		tasks := make([]Task, 0, len(wave))
		for _, name := range wave {
			if message, skip := r.shouldSkip(ctx, d, name, unavailable); skip {
				unavailable[name] = true
				results[name] = Result{NodeName: name, Status: StatusSkipped, FailureMessage: message}
				r.publisher.Publish(name, event.TransitionSkipped, message)
				continue
			}
			tasks = append(tasks, Task{Name: name, Node: d.Node(name)})
		}

		if len(tasks) == 0 {
			continue
		}

		logger.Debugf("Running wave %d with %d node(s)", waveIndex, len(tasks))

		for _, result := range r.backend.RunWave(ctx, tasks) {
			results[result.NodeName] = result
			if result.Status == StatusFailed {
				unavailable[result.NodeName] = true
			}
		}
	}

	ordered := make([]Result, 0, len(results))
	for _, name := range d.Nodes() {
		if result, ok := results[name]; ok {
			ordered = append(ordered, result)
		}
	}

	return ordered, nil
}

// shouldSkip tells whether the node must not be invoked at all. Direct
// dependencies suffice: skipped nodes are unavailable too, so the mark
// propagates transitively wave after wave.
func (r *Runner) shouldSkip(ctx context.Context, d *dag.DAG, name string, unavailable map[string]bool) (string, bool) {
	if ctx.Err() != nil {
		return skippedCancelledMessage, true
	}

	for _, dependency := range d.Dependencies(name) {
		if unavailable[dependency] {
			return skippedDependencyMessage, true
		}
	}

	return "", false
}
