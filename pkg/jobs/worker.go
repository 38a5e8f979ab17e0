package jobs

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/playground-engine/jobsystem/pkg/utils"
)

// Pinner pins the calling OS thread to a core.
type Pinner interface {
	PinCurrentThreadToCore(coreID int) error
}

// Worker owns one goroutine locked to one OS thread for its whole life.
type Worker struct {
	spec     WorkerSpec
	pull     func() (*Handle, bool)
	pinner   Pinner
	logger   utils.Logger
	observer Observer
	clock    utils.Clock
	tracer   trace.Tracer

	spinLimit int
	idleSleep time.Duration

	started  atomic.Bool
	running  atomic.Bool
	pinned   atomic.Bool
	done     chan struct{}
	executed atomic.Uint64
	busy     atomic.Int64
}

// WorkerStats is a snapshot of one worker.
type WorkerStats struct {
	ID       int           `json:"id"`
	Name     string        `json:"name"`
	Tier     string        `json:"tier"`
	CoreID   int           `json:"core_id"`
	Pinned   bool          `json:"pinned"`
	Executed uint64        `json:"executed"`
	Busy     time.Duration `json:"busy"`
}

func newWorker(s *Scheduler, spec WorkerSpec, queue *WorkQueue) *Worker {
	return &Worker{
		spec:      spec,
		pull:      queue.TryPop,
		pinner:    s.topo,
		logger:    s.logger.WithFields(map[string]interface{}{"worker": spec.Name, "core": spec.CoreID}),
		observer:  s.observer,
		clock:     s.clock,
		tracer:    s.tracer,
		spinLimit: s.cfg.IdleSpinLimit,
		idleSleep: s.cfg.IdleSleep,
		done:      make(chan struct{}),
	}
}

// ID returns the worker id.
func (w *Worker) ID() int { return w.spec.ID }

// Name returns the worker name.
func (w *Worker) Name() string { return w.spec.Name }

// Start launches the worker goroutine.
func (w *Worker) Start() {
	w.started.Store(true)
	w.running.Store(true)
	go w.run()
}

// Stop asks the worker to exit after its current job.
func (w *Worker) Stop() {
	w.running.Store(false)
}

// Join blocks until the worker goroutine has exited. It returns at once
// for a worker that was never started.
func (w *Worker) Join() {
	if !w.started.Load() {
		return
	}
	<-w.done
}

func (w *Worker) run() {
	// The thread is never unlocked: its affinity was changed, so the
	// runtime discards it when the goroutine exits.
	runtime.LockOSThread()
	defer close(w.done)

	w.pin()
	w.logger.Debug("worker started")

	idle := 0
	for w.running.Load() {
		h, ok := w.pull()
		if !ok {
			idle++
			if idle < w.spinLimit {
				runtime.Gosched()
			} else {
				w.clock.Sleep(w.idleSleep)
			}
			continue
		}
		if !w.running.Load() {
			break
		}
		w.execute(h)
		idle = 0
	}

	w.logger.Debug("worker stopped after %d jobs", w.executed.Load())
}

func (w *Worker) pin() {
	if w.spec.CoreID < 0 || w.pinner == nil {
		return
	}
	if err := w.pinner.PinCurrentThreadToCore(w.spec.CoreID); err != nil {
		w.logger.Warn("failed to pin to core %d: %v", w.spec.CoreID, err)
		return
	}
	w.pinned.Store(true)
}

func (w *Worker) execute(h *Handle) {
	ev := JobEvent{
		JobID:    h.id,
		Name:     h.name,
		Priority: h.priority,
		Colour:   h.colour,
		WorkerID: w.spec.ID,
		Worker:   w.spec.Name,
		Start:    w.clock.Now(),
	}
	w.observer.JobStarted(ev)

	_, span := w.tracer.Start(context.Background(), "jobs.execute", trace.WithAttributes(
		attribute.Int64("job.id", int64(h.id)),
		attribute.String("job.name", h.name),
		attribute.String("job.priority", h.priority.String()),
		attribute.Int64("job.colour", int64(h.colour)),
		attribute.Int("worker.id", w.spec.ID),
		attribute.String("worker.name", w.spec.Name),
	))
	ran := h.Complete(w.spec.ID)
	span.End()

	ev.End = w.clock.Now()
	if ran {
		w.executed.Add(1)
		w.busy.Add(int64(ev.End.Sub(ev.Start)))
	}
	w.observer.JobFinished(ev)
}

// Stats returns a snapshot of the worker counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		ID:       w.spec.ID,
		Name:     w.spec.Name,
		Tier:     w.spec.Tier.String(),
		CoreID:   w.spec.CoreID,
		Pinned:   w.pinned.Load(),
		Executed: w.executed.Load(),
		Busy:     time.Duration(w.busy.Load()),
	}
}
