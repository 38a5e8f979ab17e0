package jobs

import (
	"sync"
	"sync/atomic"

	"github.com/sasha-s/go-deadlock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
	"github.com/playground-engine/jobsystem/pkg/hardware"
	"github.com/playground-engine/jobsystem/pkg/utils"
)

const tracerName = "github.com/playground-engine/jobsystem/pkg/jobs"

const (
	stateNew int32 = iota
	stateRunning
	stateStopped
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver sets the execution observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock sets the clock used for idle sleeps and event timestamps.
func WithClock(c utils.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithTracerProvider sets the provider for job spans. The global provider
// is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Scheduler) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// Scheduler owns the worker pool, the two tier queues and the set of
// submitted handles that are still waiting on dependencies.
type Scheduler struct {
	cfg      Config
	topo     hardware.Topology
	logger   utils.Logger
	observer Observer
	clock    utils.Clock
	tracer   trace.Tracer

	lifecycle deadlock.Mutex
	state     atomic.Int32
	plan      Plan
	high      *WorkQueue
	low       *WorkQueue
	workers   []*Worker

	mu      deadlock.Mutex
	pending map[*Handle]struct{}

	submitted atomic.Uint64
	haltOnce  sync.Once
	halted    chan struct{}
}

// Stats is a snapshot of the scheduler.
type Stats struct {
	Running     bool          `json:"running"`
	HighWorkers int           `json:"high_workers"`
	LowWorkers  int           `json:"low_workers"`
	Pending     int           `json:"pending"`
	QueuedHigh  int           `json:"queued_high"`
	QueuedLow   int           `json:"queued_low"`
	Submitted   uint64        `json:"submitted"`
	Executed    uint64        `json:"executed"`
	Queues      []QueueStats  `json:"queues"`
	Workers     []WorkerStats `json:"workers"`
}

// New creates a scheduler. Workers are not started until Init.
func New(cfg Config, topo hardware.Topology, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg,
		topo:     topo,
		logger:   utils.GetGlobalLogger(),
		observer: nopObserver{},
		clock:    utils.NewRealClock(),
		tracer:   otel.Tracer(tracerName),
		halted:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init plans the worker layout from the topology and starts the workers.
// The topology must already be initialised.
func (s *Scheduler) Init() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	switch s.state.Load() {
	case stateRunning:
		return apperrors.ErrAlreadyInitialized
	case stateStopped:
		return apperrors.ErrSchedulerStopped
	}
	if s.topo == nil {
		return apperrors.Wrap(apperrors.CodeTopologyError, "scheduler has no topology", apperrors.ErrNotInitialized)
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}

	s.setup(PlanForTopology(s.topo, s.cfg))
	for _, w := range s.workers {
		w.Start()
	}

	s.logger.Info("job system started: %d high workers, %d low workers, %d reserved cores, fallback=%v",
		len(s.plan.High), len(s.plan.Low), len(s.plan.Reserved), s.plan.Fallback)
	return nil
}

// setup builds queues and workers for plan and marks the scheduler running
// without starting any goroutine.
func (s *Scheduler) setup(plan Plan) {
	s.plan = plan
	s.high = NewWorkQueue("high", s.cfg.QueueCapacity)
	s.low = NewWorkQueue("low", s.cfg.QueueCapacity)
	s.pending = make(map[*Handle]struct{}, s.cfg.PendingCapacity)

	s.workers = make([]*Worker, 0, len(plan.High)+len(plan.Low))
	for _, spec := range plan.High {
		s.workers = append(s.workers, newWorker(s, spec, s.high))
	}
	for _, spec := range plan.Low {
		s.workers = append(s.workers, newWorker(s, spec, s.low))
	}
	s.state.Store(stateRunning)
}

// Create returns a new handle bound to this scheduler. It is not submitted.
func (s *Scheduler) Create(name string, priority Priority, task TaskFunc, opts ...HandleOption) *Handle {
	return newHandle(s, name, priority, task, opts...)
}

// Submit makes h eligible for execution. A handle still waiting on
// dependencies is parked in the pending set and resubmitted by the
// completion of its last child. Submitting the same handle again is
// harmless: it is queued at most once.
func (s *Scheduler) Submit(h *Handle) error {
	if h == nil {
		return apperrors.ErrInvalidHandle
	}
	if h.sched != s {
		return apperrors.Newf(apperrors.CodeInvalidInput, "job %q belongs to another scheduler", h.name)
	}
	switch s.state.Load() {
	case stateNew:
		return apperrors.ErrNotInitialized
	case stateStopped:
		return apperrors.ErrSchedulerStopped
	}

	s.mu.Lock()
	delete(s.pending, h)
	if !h.IsReady() {
		if !h.IsDone() {
			s.pending[h] = struct{}{}
		}
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	s.enqueue(h)
	return nil
}

func (s *Scheduler) enqueue(h *Handle) {
	if !h.queued.CompareAndSwap(false, true) {
		return
	}
	s.submitted.Add(1)
	if h.priority == Low {
		s.low.Push(h)
		return
	}
	s.high.Push(h)
}

// SubmitJob turns a Job tree into handles, links every dependency and
// submits the whole tree. It returns the root handle.
func (s *Scheduler) SubmitJob(job Job) (*Handle, error) {
	all := make([]*Handle, 0, job.Count())
	root, err := s.build(job, &all)
	if err != nil {
		return nil, err
	}
	for _, h := range all {
		if err := s.Submit(h); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func (s *Scheduler) build(job Job, all *[]*Handle) (*Handle, error) {
	h := s.Create(job.Name, job.Priority, job.Task, WithColour(job.Colour))
	*all = append(*all, h)
	for _, dep := range job.Dependencies {
		child, err := s.build(dep, all)
		if err != nil {
			return nil, err
		}
		if err := h.AddDependency(child); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Shutdown stops every worker and waits for them to exit. Jobs already
// running finish; queued and pending jobs are abandoned. It is idempotent
// and the scheduler cannot be restarted. Concurrent callers all return
// once the workers have exited. It must not be called from inside a job.
func (s *Scheduler) Shutdown() {
	s.lifecycle.Lock()
	prev := s.state.Swap(stateStopped)
	workers := s.workers
	s.lifecycle.Unlock()

	if prev != stateRunning {
		if prev == stateNew {
			s.haltOnce.Do(func() { close(s.halted) })
		}
		<-s.halted
		return
	}

	for _, w := range workers {
		w.Stop()
	}
	for _, w := range workers {
		w.Join()
	}

	s.mu.Lock()
	abandoned := len(s.pending) + s.high.Len() + s.low.Len()
	clear(s.pending)
	s.mu.Unlock()

	s.logger.Info("job system stopped, %d jobs abandoned", abandoned)
	s.haltOnce.Do(func() { close(s.halted) })
}

// Running reports whether the scheduler accepts submissions.
func (s *Scheduler) Running() bool {
	return s.state.Load() == stateRunning
}

// Plan returns the worker layout chosen by Init.
func (s *Scheduler) Plan() Plan {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.plan
}

// HighPerfWorkers returns the number of High tier workers.
func (s *Scheduler) HighPerfWorkers() int {
	return len(s.Plan().High)
}

// LowPerfWorkers returns the number of Low tier workers.
func (s *Scheduler) LowPerfWorkers() int {
	return len(s.Plan().Low)
}

// PendingCount returns the number of parked handles.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stats returns a snapshot of scheduler counters.
func (s *Scheduler) Stats() Stats {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	st := Stats{
		Running:     s.state.Load() == stateRunning,
		HighWorkers: len(s.plan.High),
		LowWorkers:  len(s.plan.Low),
		Submitted:   s.submitted.Load(),
	}
	if s.high != nil {
		st.QueuedHigh = s.high.Len()
		st.QueuedLow = s.low.Len()
		st.Queues = []QueueStats{s.high.Stats(), s.low.Stats()}
	}

	s.mu.Lock()
	st.Pending = len(s.pending)
	s.mu.Unlock()

	for _, w := range s.workers {
		ws := w.Stats()
		st.Executed += ws.Executed
		st.Workers = append(st.Workers, ws)
	}
	return st
}
