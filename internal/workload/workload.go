// Package workload generates synthetic dependency trees and drives them
// through a scheduler.
package workload

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
	"github.com/playground-engine/jobsystem/pkg/jobs"
	"github.com/playground-engine/jobsystem/pkg/utils"
)

// Spec shapes a workload: Trees independent trees, each Depth levels deep
// where every non-leaf job has Fanout children.
type Spec struct {
	Trees  int `json:"trees" mapstructure:"trees"`
	Depth  int `json:"depth" mapstructure:"depth"`
	Fanout int `json:"fanout" mapstructure:"fanout"`
	// LowShare is the fraction of jobs given Low priority, spread evenly.
	LowShare float64 `json:"low_share" mapstructure:"low_share"`
	// SpinIterations is the busy work each job performs.
	SpinIterations int `json:"spin_iterations" mapstructure:"spin_iterations"`
	// Producers bounds the goroutines submitting trees concurrently.
	Producers int `json:"producers" mapstructure:"producers"`
}

// DefaultSpec returns a small mixed workload.
func DefaultSpec() Spec {
	return Spec{
		Trees:          16,
		Depth:          3,
		Fanout:         4,
		LowShare:       0.25,
		SpinIterations: 2000,
		Producers:      4,
	}
}

// Validate checks the workload bounds.
func (s Spec) Validate() error {
	switch {
	case s.Trees < 1:
		return apperrors.Newf(apperrors.CodeInvalidInput, "trees must be >= 1, got %d", s.Trees)
	case s.Depth < 1:
		return apperrors.Newf(apperrors.CodeInvalidInput, "depth must be >= 1, got %d", s.Depth)
	case s.Fanout < 0:
		return apperrors.Newf(apperrors.CodeInvalidInput, "fanout must be >= 0, got %d", s.Fanout)
	case s.LowShare < 0 || s.LowShare > 1:
		return apperrors.Newf(apperrors.CodeInvalidInput, "low share must be in [0,1], got %v", s.LowShare)
	case s.SpinIterations < 0:
		return apperrors.Newf(apperrors.CodeInvalidInput, "spin iterations must be >= 0, got %d", s.SpinIterations)
	}
	return nil
}

// JobsPerTree returns the sum of Fanout^i for i in [0, Depth).
func (s Spec) JobsPerTree() int {
	total, level := 0, 1
	for i := 0; i < s.Depth; i++ {
		total += level
		level *= s.Fanout
	}
	return total
}

// JobCount returns the number of jobs across every tree.
func (s Spec) JobCount() int {
	return s.Trees * s.JobsPerTree()
}

var spinSink atomic.Uint64

// Spin performs n rounds of integer mixing that the compiler cannot elide.
func Spin(n int) {
	x := uint64(n) | 1
	for i := 0; i < n; i++ {
		x ^= x << 13
		x ^= x >> 7
		x ^= x << 17
	}
	spinSink.Add(x)
}

// Build returns one job tree per Trees.
func (s Spec) Build() []jobs.Job {
	trees := make([]jobs.Job, s.Trees)
	for t := range trees {
		b := builder{spec: s, tree: t}
		trees[t] = b.node(0, "0")
	}
	return trees
}

type builder struct {
	spec  Spec
	tree  int
	index int
}

func (b *builder) node(level int, path string) jobs.Job {
	prio := jobs.High
	// even spread: a job is Low when it crosses the next multiple of 1/LowShare
	if int(float64(b.index+1)*b.spec.LowShare) > int(float64(b.index)*b.spec.LowShare) {
		prio = jobs.Low
	}
	b.index++

	spin := b.spec.SpinIterations
	job := jobs.Job{
		Name:     fmt.Sprintf("tree%d/%s", b.tree, path),
		Priority: prio,
		Task:     func(int) { Spin(spin) },
	}
	if level+1 < b.spec.Depth {
		job.Dependencies = make([]jobs.Job, b.spec.Fanout)
		for i := range job.Dependencies {
			job.Dependencies[i] = b.node(level+1, fmt.Sprintf("%s.%d", path, i))
		}
	}
	return job
}

// Result summarises a run.
type Result struct {
	Jobs       int           `json:"jobs"`
	Roots      int           `json:"roots"`
	Duration   time.Duration `json:"duration"`
	Throughput float64       `json:"throughput"` // jobs per second
}

// Runner submits workloads to one scheduler.
type Runner struct {
	sched  *jobs.Scheduler
	clock  utils.Clock
	logger utils.Logger
}

// NewRunner creates a runner. A nil clock or logger selects the defaults.
func NewRunner(s *jobs.Scheduler, clock utils.Clock, logger utils.Logger) *Runner {
	if clock == nil {
		clock = utils.NewRealClock()
	}
	if logger == nil {
		logger = utils.GetGlobalLogger()
	}
	return &Runner{sched: s, clock: clock, logger: logger}
}

// Run builds spec, submits every tree from up to spec.Producers goroutines
// and waits for all roots. Cancelling ctx stops waiting; jobs already
// submitted keep running until the scheduler shuts down.
func (r *Runner) Run(ctx context.Context, spec Spec) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	trees := spec.Build()
	roots := make([]*jobs.Handle, len(trees))

	start := r.clock.Now()

	g, gctx := errgroup.WithContext(ctx)
	if spec.Producers > 0 {
		g.SetLimit(spec.Producers)
	}
	for i, tree := range trees {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			root, err := r.sched.SubmitJob(tree)
			if err != nil {
				return fmt.Errorf("submit %s: %w", tree.Name, err)
			}
			roots[i] = root
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, root := range roots {
		select {
		case <-root.Done():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	res := &Result{
		Jobs:     spec.JobCount(),
		Roots:    len(roots),
		Duration: r.clock.Since(start),
	}
	if secs := res.Duration.Seconds(); secs > 0 {
		res.Throughput = float64(res.Jobs) / secs
	}
	r.logger.WithFields(map[string]interface{}{
		"jobs":  res.Jobs,
		"trees": res.Roots,
	}).Info("workload finished in %v (%.0f jobs/s)", res.Duration, res.Throughput)
	return res, nil
}

// Run is a convenience wrapper around NewRunner(s, nil, nil).Run.
func Run(ctx context.Context, s *jobs.Scheduler, spec Spec) (*Result, error) {
	return NewRunner(s, nil, nil).Run(ctx, spec)
}
