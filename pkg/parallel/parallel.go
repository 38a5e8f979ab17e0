// Package parallel provides data-parallel helpers that split a range of
// work into chunked jobs on a jobs.Scheduler.
package parallel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/playground-engine/jobsystem/pkg/jobs"
)

// chunksPerWorker controls the default chunk size: enough chunks to keep
// every worker of the tier busy when chunks finish unevenly.
const chunksPerWorker = 4

// ChunkSize returns the chunk size For uses when chunk <= 0.
func ChunkSize(s *jobs.Scheduler, prio jobs.Priority, n int) int {
	workers := s.HighPerfWorkers()
	if prio == jobs.Low {
		workers = s.LowPerfWorkers()
	}
	if workers < 1 {
		workers = 1
	}
	size := (n + workers*chunksPerWorker - 1) / (workers * chunksPerWorker)
	return max(size, 1)
}

// For runs fn(i, workerID) for every i in [0, n). Indices are grouped into
// jobs of chunk indices each. The returned handle is a join job that
// completes after every chunk has run. A chunk <= 0 picks a size from the
// tier's worker count.
func For(s *jobs.Scheduler, name string, prio jobs.Priority, n, chunk int, fn func(i, workerID int)) (*jobs.Handle, error) {
	if n < 0 {
		return nil, fmt.Errorf("parallel.For: negative count %d", n)
	}
	if chunk <= 0 {
		chunk = ChunkSize(s, prio, n)
	}

	join := s.Create(name, prio, func(int) {})
	children := make([]*jobs.Handle, 0, (n+chunk-1)/chunk)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		child := s.Create(fmt.Sprintf("%s[%d:%d]", name, lo, hi), prio, func(workerID int) {
			for i := lo; i < hi; i++ {
				fn(i, workerID)
			}
		}, jobs.WithColour(join.Colour()))
		if err := join.AddDependency(child); err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	if err := s.Submit(join); err != nil {
		return nil, err
	}
	for _, c := range children {
		if err := s.Submit(c); err != nil {
			return nil, err
		}
	}
	return join, nil
}

// Wait blocks until h completes or ctx is done.
func Wait(ctx context.Context, h *jobs.Handle) error {
	select {
	case <-h.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// MapReduce maps every item in parallel and reduces the results in input
// order on the calling goroutine.
func MapReduce[T, M, R any](
	ctx context.Context,
	s *jobs.Scheduler,
	prio jobs.Priority,
	items []T,
	mapper func(item T) M,
	reducer func(mapped []M) R,
) (R, error) {
	var zero R
	mapped := make([]M, len(items))
	h, err := For(s, "map-reduce", prio, len(items), 0, func(i, _ int) {
		mapped[i] = mapper(items[i])
	})
	if err != nil {
		return zero, err
	}
	if err := Wait(ctx, h); err != nil {
		return zero, err
	}
	return reducer(mapped), nil
}

// ForEach calls fn for every item in parallel. It returns the number of
// items for which fn succeeded and the first error observed. A failing
// item does not stop the others.
func ForEach[T any](
	ctx context.Context,
	s *jobs.Scheduler,
	prio jobs.Priority,
	items []T,
	fn func(item T) error,
) (processed int64, firstErr error) {
	var (
		count   atomic.Int64
		errOnce sync.Once
		mu      sync.Mutex
	)
	h, err := For(s, "for-each", prio, len(items), 0, func(i, _ int) {
		if err := fn(items[i]); err != nil {
			errOnce.Do(func() {
				mu.Lock()
				firstErr = err
				mu.Unlock()
			})
			return
		}
		count.Add(1)
	})
	if err != nil {
		return 0, err
	}
	if err := Wait(ctx, h); err != nil {
		return count.Load(), err
	}

	mu.Lock()
	defer mu.Unlock()
	return count.Load(), firstErr
}

// Aggregate folds items into a map. Each chunk accumulates into its own
// map and the chunk maps are merged once every chunk has finished.
func Aggregate[T any, K comparable, V any](
	ctx context.Context,
	s *jobs.Scheduler,
	prio jobs.Priority,
	items []T,
	extractor func(item T) (K, V),
	merger func(existing, next V) V,
) (map[K]V, error) {
	chunk := ChunkSize(s, prio, len(items))
	locals := make([]map[K]V, (len(items)+chunk-1)/chunk)

	h, err := For(s, "aggregate", prio, len(locals), 1, func(c, _ int) {
		local := make(map[K]V)
		for _, item := range items[c*chunk : min((c+1)*chunk, len(items))] {
			mergeInto(local, merger, extractor(item))
		}
		locals[c] = local
	})
	if err != nil {
		return nil, err
	}
	if err := Wait(ctx, h); err != nil {
		return nil, err
	}

	out := make(map[K]V)
	for _, local := range locals {
		for k, v := range local {
			mergeInto(out, merger, k, v)
		}
	}
	return out, nil
}

func mergeInto[K comparable, V any](m map[K]V, merger func(existing, next V) V, k K, v V) {
	if existing, ok := m[k]; ok {
		m[k] = merger(existing, v)
		return
	}
	m[k] = v
}
