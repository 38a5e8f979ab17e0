// Package capture records a timeline of job executions and persists it to
// object storage for later inspection.
package capture

import (
	"context"
	"runtime"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sasha-s/go-deadlock"

	"github.com/playground-engine/jobsystem/pkg/hardware"
	"github.com/playground-engine/jobsystem/pkg/jobs"
	"github.com/playground-engine/jobsystem/pkg/utils"
)

// Event is one finished execution on a worker.
type Event struct {
	JobID    uint64    `json:"job_id"`
	Name     string    `json:"name"`
	Priority string    `json:"priority"`
	Colour   uint32    `json:"colour"`
	WorkerID int       `json:"worker_id"`
	Worker   string    `json:"worker"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// Duration returns End-Start.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Host describes the machine a capture was taken on.
type Host struct {
	Source   string            `json:"source,omitempty"`
	Cores    hardware.Summary  `json:"cores"`
	Features hardware.Features `json:"features"`
}

// Capture is a saved timeline.
type Capture struct {
	SessionID string            `json:"session_id"`
	StartedAt time.Time         `json:"started_at"`
	Host      Host              `json:"host"`
	Workers   []jobs.WorkerSpec `json:"workers"`
	Events    []Event           `json:"events"`
	Dropped   int64             `json:"dropped"`
}

// Recorder is a jobs.Observer that keeps finished executions in memory.
// It is safe for concurrent use by every worker.
type Recorder struct {
	sessionID string
	startedAt time.Time
	maxEvents int

	mu      deadlock.Mutex
	host    Host
	workers []jobs.WorkerSpec
	events  []Event

	started  atomic.Int64
	finished atomic.Int64
	dropped  atomic.Int64
}

// NewRecorder creates a recorder holding at most maxEvents events; further
// events are counted as dropped. A maxEvents of 0 means unbounded.
func NewRecorder(maxEvents int, clock utils.Clock) *Recorder {
	if clock == nil {
		clock = utils.NewRealClock()
	}
	return &Recorder{
		sessionID: uuid.NewString(),
		startedAt: clock.Now(),
		maxEvents: maxEvents,
		events:    make([]Event, 0, min(maxEvents, 4096)),
	}
}

// SessionID returns the id the capture will be saved under.
func (r *Recorder) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessionID
}

// SetHost records the topology the scheduler was planned on.
func (r *Recorder) SetHost(topo hardware.Topology) {
	host := Host{Cores: hardware.Summarize(topo)}
	if d, ok := topo.(hardware.Describer); ok {
		host.Source = d.Source()
		host.Features = d.Features()
	}
	r.mu.Lock()
	r.host = host
	r.mu.Unlock()
}

// SetWorkers records the worker layout.
func (r *Recorder) SetWorkers(specs []jobs.WorkerSpec) {
	r.mu.Lock()
	r.workers = slices.Clone(specs)
	r.mu.Unlock()
}

// JobStarted counts the execution.
func (r *Recorder) JobStarted(jobs.JobEvent) {
	r.started.Add(1)
}

// JobFinished stores the execution, or counts it as dropped when full.
func (r *Recorder) JobFinished(ev jobs.JobEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.finished.Add(1)
	if r.maxEvents > 0 && len(r.events) >= r.maxEvents {
		r.dropped.Add(1)
		return
	}
	r.events = append(r.events, Event{
		JobID:    ev.JobID,
		Name:     ev.Name,
		Priority: ev.Priority.String(),
		Colour:   ev.Colour,
		WorkerID: ev.WorkerID,
		Worker:   ev.Worker,
		Start:    ev.Start,
		End:      ev.End,
	})
}

// Started returns the number of executions observed starting.
func (r *Recorder) Started() int64 { return r.started.Load() }

// WaitIdle blocks until every started execution has also finished. A job
// handle completes before its worker reports the finish, so callers that
// waited on handles use this before taking a Snapshot.
func (r *Recorder) WaitIdle(ctx context.Context) error {
	for r.finished.Load() < r.started.Load() {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

// Dropped returns the number of events discarded past maxEvents.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Len returns the number of stored events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Snapshot copies the recorded timeline ordered by start time.
func (r *Recorder) Snapshot() *Capture {
	r.mu.Lock()
	c := &Capture{
		SessionID: r.sessionID,
		StartedAt: r.startedAt,
		Host:      r.host,
		Workers:   slices.Clone(r.workers),
		Events:    slices.Clone(r.events),
		Dropped:   r.dropped.Load(),
	}
	r.mu.Unlock()

	slices.SortStableFunc(c.Events, func(a, b Event) int {
		return a.Start.Compare(b.Start)
	})
	return c
}

// Reset discards every stored event and starts a new session.
func (r *Recorder) Reset(clock utils.Clock) {
	if clock == nil {
		clock = utils.NewRealClock()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessionID = uuid.NewString()
	r.startedAt = clock.Now()
	r.events = r.events[:0]
	r.started.Store(0)
	r.finished.Store(0)
	r.dropped.Store(0)
}
