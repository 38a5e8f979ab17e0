package jobs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/playground-engine/jobsystem/pkg/hardware"
	"github.com/playground-engine/jobsystem/pkg/utils"
)

const waitTimeout = 5 * time.Second

// newIdleScheduler returns a running scheduler whose workers were never
// started, so queue and pending state can be inspected directly.
func newIdleScheduler(t *testing.T, topo hardware.Topology) *Scheduler {
	t.Helper()
	s := New(DefaultConfig(), topo, WithLogger(&utils.NullLogger{}))
	s.setup(PlanForTopology(topo, s.cfg))
	return s
}

func startScheduler(t *testing.T, topo hardware.Topology, cfg Config, opts ...Option) *Scheduler {
	t.Helper()
	opts = append([]Option{WithLogger(&utils.NullLogger{})}, opts...)
	s := New(cfg, topo, opts...)
	require.NoError(t, s.Init())
	t.Cleanup(s.Shutdown)
	return s
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(waitTimeout):
		t.Fatalf("job %q did not complete within %v", h.Name(), waitTimeout)
	}
}

// recorder collects names and worker ids in completion order.
type recorder struct {
	mu      sync.Mutex
	order   []string
	workers map[string]int
}

func newRecorder() *recorder {
	return &recorder{workers: make(map[string]int)}
}

func (r *recorder) task(name string) TaskFunc {
	return func(workerID int) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.order = append(r.order, name)
		r.workers[name] = workerID
	}
}

func (r *recorder) snapshot() ([]string, map[string]int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	workers := make(map[string]int, len(r.workers))
	for k, v := range r.workers {
		workers[k] = v
	}
	return append([]string(nil), r.order...), workers
}

// eventObserver records execution events.
type eventObserver struct {
	mu       sync.Mutex
	started  []JobEvent
	finished []JobEvent
}

func (o *eventObserver) JobStarted(e JobEvent) {
	o.mu.Lock()
	o.started = append(o.started, e)
	o.mu.Unlock()
}

func (o *eventObserver) JobFinished(e JobEvent) {
	o.mu.Lock()
	o.finished = append(o.finished, e)
	o.mu.Unlock()
}

func (o *eventObserver) events() ([]JobEvent, []JobEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]JobEvent(nil), o.started...), append([]JobEvent(nil), o.finished...)
}
