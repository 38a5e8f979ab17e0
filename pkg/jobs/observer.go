package jobs

import "time"

// JobEvent describes one execution of a handle on a worker.
type JobEvent struct {
	JobID    uint64    `json:"job_id"`
	Name     string    `json:"name"`
	Priority Priority  `json:"priority"`
	Colour   uint32    `json:"colour"`
	WorkerID int       `json:"worker_id"`
	Worker   string    `json:"worker"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end,omitempty"`
}

// Duration returns End-Start, or zero for a started event.
func (e JobEvent) Duration() time.Duration {
	if e.End.IsZero() {
		return 0
	}
	return e.End.Sub(e.Start)
}

// Observer is notified by workers around each execution. Implementations
// are called concurrently from every worker and must not block.
type Observer interface {
	JobStarted(JobEvent)
	JobFinished(JobEvent)
}

type nopObserver struct{}

func (nopObserver) JobStarted(JobEvent)  {}
func (nopObserver) JobFinished(JobEvent) {}
