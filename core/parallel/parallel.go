// Package parallel provides small fan-out helpers for independent work items.
//
// Results must not depend on scheduling: callers derive any per-task random
// state before fanning out and write into pre-sized slices by index.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForEach runs fn(ctx, i) for i in [0, n) with at most limit goroutines in
// flight (limit <= 0 means GOMAXPROCS). The first error cancels ctx for the
// remaining tasks and is returned.
func ForEach(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error) error {
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	return g.Wait()
}
