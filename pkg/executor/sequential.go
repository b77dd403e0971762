package executor

import (
	"context"

	"github.com/dpipe/dpipe/pkg/event"
)

// Sequential is a Backend running the nodes of a wave one at a time, in the
// order the scheduler handed them over.
type Sequential struct {
	nodeRunner
}

func NewSequential(shell Shell, validator Validator, publisher event.Publisher, logsDir string) *Sequential {
	return &Sequential{nodeRunner: newNodeRunner(shell, validator, publisher, logsDir)}
}

func (b *Sequential) RunWave(ctx context.Context, wave []Task) []Result {
	results := make([]Result, 0, len(wave))
	for _, task := range wave {
		results = append(results, b.runNode(ctx, task))
	}

	return results
}
