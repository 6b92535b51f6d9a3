// Package fanout runs the independent queries of one aggregation request
// concurrently and assembles them into a single result bundle.
package fanout

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mneedham/pinot-cryptowatch/internal/logger"
)

// Task is one named query of a request bundle. Each task runs with its own
// query cursor; tasks must not share row iterators with each other.
type Task func(ctx context.Context) (interface{}, error)

// Run launches every task concurrently and blocks until all of them have
// completed or failed. The bundle is returned only when complete; there is
// no partial or streaming return.
//
// Failure policy: any task error fails the whole bundle. The returned error
// names the failing task, and the names of tasks that did complete are
// logged for diagnostics. Sibling tasks observe the cancelled context once
// one of them fails.
func Run(ctx context.Context, tasks map[string]Task) (map[string]interface{}, error) {
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	results := make(map[string]interface{}, len(tasks))

	for name, task := range tasks {
		n := name
		t := task
		g.Go(func() error {
			out, err := t(gctx)
			if err != nil {
				return fmt.Errorf("task %s: %w", n, err)
			}
			mu.Lock()
			results[n] = out
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		completed := make([]string, 0, len(results))
		mu.Lock()
		for n := range results {
			completed = append(completed, n)
		}
		mu.Unlock()
		logger.L().Debug().Strs("completed_tasks", completed).Err(err).Msg("fan-out bundle failed")
		return nil, err
	}

	return results, nil
}
