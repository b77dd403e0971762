package executor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/dpipe/dpipe/pkg/event"
	"github.com/dpipe/dpipe/pkg/ratelimit"
)

// Concurrent is a Backend running the nodes of a wave as concurrent
// subprocess invocations, bounded by a rate limiter. Completions race, so
// results are collected over a channel.
type Concurrent struct {
	nodeRunner
	rateLimiter ratelimit.RateLimiter
}

func NewConcurrent(
	shell Shell,
	validator Validator,
	publisher event.Publisher,
	logsDir string,
	concurrency int,
) *Concurrent {
	return &Concurrent{
		nodeRunner:  newNodeRunner(shell, validator, publisher, logsDir),
		rateLimiter: ratelimit.NewChannelRateLimiter(concurrency),
	}
}

func (b *Concurrent) RunWave(ctx context.Context, wave []Task) []Result {
	resultChan := make(chan Result, len(wave))

	errG := new(errgroup.Group)
	for _, task := range wave {
		errG.Go(func() error {
			b.rateLimiter.Acquire()
			defer b.rateLimiter.Release()

			resultChan <- b.runNode(ctx, task)

			return nil
		})
	}

	_ = errG.Wait()
	close(resultChan)

	results := make([]Result, 0, len(wave))
	for result := range resultChan {
		results = append(results, result)
	}

	return results
}
