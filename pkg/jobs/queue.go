package jobs

import (
	"sync/atomic"

	"code.hybscloud.com/lfq"
	"github.com/sasha-s/go-deadlock"
)

// WorkQueue is a multi-producer multi-consumer queue of ready handles.
// A bounded lock-free ring carries the normal load; when the ring is full
// handles spill into a mutex-guarded overflow list, so Push never fails.
// Ordering is not guaranteed.
type WorkQueue struct {
	name string
	ring lfq.Queue[*Handle]

	overflowMu  deadlock.Mutex
	overflow    []*Handle
	overflowLen atomic.Int64

	pushed     atomic.Uint64
	popped     atomic.Uint64
	overflowed atomic.Uint64
}

// QueueStats is a snapshot of queue counters.
type QueueStats struct {
	Name       string `json:"name"`
	Pushed     uint64 `json:"pushed"`
	Popped     uint64 `json:"popped"`
	Overflowed uint64 `json:"overflowed"`
	Len        int    `json:"len"`
}

// NewWorkQueue creates a queue whose ring holds at least capacity handles.
func NewWorkQueue(name string, capacity int) *WorkQueue {
	if capacity < 2 {
		capacity = 2
	}
	return &WorkQueue{
		name: name,
		ring: lfq.BuildMPMC[*Handle](lfq.New(capacity).Compact()),
	}
}

// Name returns the queue name.
func (q *WorkQueue) Name() string { return q.name }

// Push adds h. It never blocks on consumers.
func (q *WorkQueue) Push(h *Handle) {
	q.pushed.Add(1)
	if q.overflowLen.Load() == 0 {
		if err := q.ring.Enqueue(&h); err == nil {
			return
		}
	}

	q.overflowMu.Lock()
	q.overflow = append(q.overflow, h)
	q.overflowLen.Add(1)
	q.overflowMu.Unlock()
	q.overflowed.Add(1)
}

// TryPop removes a handle if one is available.
func (q *WorkQueue) TryPop() (*Handle, bool) {
	if h, err := q.ring.Dequeue(); err == nil {
		q.popped.Add(1)
		return h, true
	}
	if q.overflowLen.Load() == 0 {
		return nil, false
	}

	q.overflowMu.Lock()
	if len(q.overflow) == 0 {
		q.overflowMu.Unlock()
		return nil, false
	}
	h := q.overflow[0]
	q.overflow[0] = nil
	q.overflow = q.overflow[1:]
	q.overflowLen.Add(-1)
	q.overflowMu.Unlock()

	q.popped.Add(1)
	return h, true
}

// Len approximates the number of queued handles.
func (q *WorkQueue) Len() int {
	pushed, popped := q.pushed.Load(), q.popped.Load()
	if popped >= pushed {
		return 0
	}
	return int(pushed - popped)
}

// Stats returns a snapshot of the queue counters.
func (q *WorkQueue) Stats() QueueStats {
	return QueueStats{
		Name:       q.name,
		Pushed:     q.pushed.Load(),
		Popped:     q.popped.Load(),
		Overflowed: q.overflowed.Load(),
		Len:        q.Len(),
	}
}
