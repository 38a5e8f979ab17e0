package jobs

import (
	"runtime"
	"sync/atomic"
	"weak"

	"github.com/zeebo/xxh3"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

var nextHandleID atomic.Uint64

// HandleOption configures a Handle at creation.
type HandleOption func(*Handle)

// WithColour sets the trace colour. Zero keeps the name-derived colour.
func WithColour(colour uint32) HandleOption {
	return func(h *Handle) {
		if colour != 0 {
			h.colour = colour
		}
	}
}

// WithCompletion registers a callback that runs once, on the worker, right
// after the task finishes and before the parent is notified.
func WithCompletion(fn func(*Handle)) HandleOption {
	return func(h *Handle) {
		h.onComplete = fn
	}
}

// Handle is the runtime state of one job.
//
// The dependency counter starts at 1. Each AddDependency adds one and each
// finished child subtracts one, so the handle is ready when the counter is
// back at 1 and done when its own completion takes it to 0.
type Handle struct {
	id         uint64
	name       string
	priority   Priority
	colour     uint32
	task       TaskFunc
	onComplete func(*Handle)
	sched      *Scheduler

	counter   atomic.Int64
	started   atomic.Bool
	queued    atomic.Bool
	parent    atomic.Pointer[weak.Pointer[Handle]]
	done      chan struct{}
}

func newHandle(s *Scheduler, name string, priority Priority, task TaskFunc, opts ...HandleOption) *Handle {
	h := &Handle{
		id:       nextHandleID.Add(1),
		name:     name,
		priority: priority,
		colour:   nameColour(name),
		task:     task,
		sched:    s,
		done:     make(chan struct{}),
	}
	h.counter.Store(1)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// nameColour derives a stable 24-bit RGB colour from a job name.
func nameColour(name string) uint32 {
	return uint32(xxh3.HashString(name) & 0xFFFFFF)
}

// ID returns the process-unique handle id.
func (h *Handle) ID() uint64 { return h.id }

// Name returns the job name.
func (h *Handle) Name() string { return h.name }

// Priority returns the tier the handle runs on.
func (h *Handle) Priority() Priority { return h.priority }

// Colour returns the trace colour.
func (h *Handle) Colour() uint32 { return h.colour }

// Pending returns the current dependency counter.
func (h *Handle) Pending() int64 { return h.counter.Load() }

// IsReady reports whether every dependency has completed.
func (h *Handle) IsReady() bool { return h.counter.Load() == 1 }

// IsDone reports whether the task has run to completion.
func (h *Handle) IsDone() bool { return h.counter.Load() == 0 }

// Done returns a channel that is closed once the handle completes.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait yields the calling goroutine until the handle is done.
func (h *Handle) Wait() {
	for !h.IsDone() {
		runtime.Gosched()
	}
}

// Parent returns the parent handle, or nil if there is none or it has
// already been collected.
func (h *Handle) Parent() *Handle {
	wp := h.parent.Load()
	if wp == nil {
		return nil
	}
	return wp.Value()
}

// AddDependency makes child a prerequisite of h. It must be called before
// either handle is submitted.
func (h *Handle) AddDependency(child *Handle) error {
	if child == nil {
		return apperrors.Wrap(apperrors.CodeDependencyError, "nil dependency", apperrors.ErrInvalidHandle)
	}
	if child == h {
		return apperrors.Newf(apperrors.CodeDependencyError, "job %q cannot depend on itself", h.name)
	}
	if child.sched != h.sched {
		return apperrors.Newf(apperrors.CodeDependencyError, "jobs %q and %q belong to different schedulers", h.name, child.name)
	}
	if h.started.Load() || h.queued.Load() || h.IsDone() {
		return apperrors.Newf(apperrors.CodeDependencyError, "job %q already dispatched", h.name)
	}
	if child.started.Load() || child.IsDone() {
		return apperrors.Newf(apperrors.CodeDependencyError, "job %q already started", child.name)
	}
	for a := h; a != nil; a = a.Parent() {
		if a == child {
			return apperrors.Newf(apperrors.CodeDependencyError, "adding %q under %q creates a cycle", child.name, h.name)
		}
	}

	wp := weak.Make(h)
	if !child.parent.CompareAndSwap(nil, &wp) {
		return apperrors.Newf(apperrors.CodeDependencyError, "job %q already has a parent", child.name)
	}
	h.counter.Add(1)
	return nil
}

// Complete runs the task on the calling goroutine and notifies the parent.
// It does nothing if the handle is not ready or has already run, and
// reports whether the task ran.
func (h *Handle) Complete(workerID int) bool {
	if !h.IsReady() || !h.started.CompareAndSwap(false, true) {
		return false
	}

	if h.task != nil {
		h.task(workerID)
	}

	h.counter.Add(-1)
	close(h.done)

	if h.onComplete != nil {
		h.onComplete(h)
	}

	if p := h.Parent(); p != nil {
		if p.counter.Add(-1) == 1 && p.sched != nil {
			_ = p.sched.Submit(p)
		}
	}
	return true
}
