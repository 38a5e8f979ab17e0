// Package jobs runs short-lived closures on a fixed pool of OS-thread-backed
// workers. Work is split into two tiers: High priority jobs run on
// Performance cores and Low priority jobs run on Efficient cores. Jobs may
// depend on child jobs; a parent becomes runnable only once every child has
// completed.
package jobs

import (
	"fmt"
	"strings"
)

// Priority selects the tier, and therefore the queue, a job runs on.
type Priority uint8

const (
	// High jobs run on workers pinned to Performance cores.
	High Priority = iota
	// Low jobs run on workers pinned to Efficient cores.
	Low
)

// String returns the lower-case priority name.
func (p Priority) String() string {
	switch p {
	case High:
		return "high"
	case Low:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}

// ParsePriority accepts "high"/"h" and "low"/"l"/"e" case-insensitively.
func ParsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "h":
		return High, true
	case "low", "l", "e":
		return Low, true
	default:
		return High, false
	}
}

// TaskFunc is the body of a job. It receives the id of the worker running it.
type TaskFunc func(workerID int)

// Job describes work before it becomes a Handle. Dependencies are only
// consulted when the job is handed to Scheduler.SubmitJob.
type Job struct {
	Name         string
	Priority     Priority
	Colour       uint32
	Task         TaskFunc
	Dependencies []Job
}

// Count returns the number of jobs in the tree rooted at j.
func (j Job) Count() int {
	n := 1
	for _, d := range j.Dependencies {
		n += d.Count()
	}
	return n
}
