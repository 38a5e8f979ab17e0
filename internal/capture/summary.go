package capture

import (
	"cmp"
	"slices"
	"time"

	"github.com/playground-engine/jobsystem/pkg/profiling"
)

// WorkerSummary aggregates the events of one worker.
type WorkerSummary struct {
	WorkerID int           `json:"worker_id"`
	Worker   string        `json:"worker"`
	Jobs     int           `json:"jobs"`
	Busy     time.Duration `json:"busy"`
	// Utilisation is Busy over the capture's wall time.
	Utilisation float64 `json:"utilisation"`
}

// GroupSummary aggregates events sharing a worker group or job family.
type GroupSummary struct {
	Group string        `json:"group"`
	Jobs  int           `json:"jobs"`
	Busy  time.Duration `json:"busy"`
}

// Summary is the per-worker breakdown of a capture.
type Summary struct {
	Events  int             `json:"events"`
	Dropped int64           `json:"dropped"`
	Wall    time.Duration   `json:"wall"`
	Workers []WorkerSummary `json:"workers"`
	// Tiers groups workers by name prefix, e.g. H_WORKER_THREAD.
	Tiers []GroupSummary `json:"tiers,omitempty"`
	// Families groups jobs by tree or parallel loop name.
	Families []GroupSummary `json:"families,omitempty"`
}

// Summarize groups the events of c by worker. Workers listed in c.Workers
// appear even when they ran nothing.
func Summarize(c *Capture) Summary {
	sum := Summary{Events: len(c.Events), Dropped: c.Dropped}

	byID := make(map[int]*WorkerSummary, len(c.Workers))
	for _, w := range c.Workers {
		byID[w.ID] = &WorkerSummary{WorkerID: w.ID, Worker: w.Name}
	}

	families := make(map[string]*GroupSummary)
	var first, last time.Time
	for _, ev := range c.Events {
		fam := group(families, profiling.JobGroup(ev.Name))
		fam.Jobs++
		fam.Busy += ev.Duration()

		ws, ok := byID[ev.WorkerID]
		if !ok {
			ws = &WorkerSummary{WorkerID: ev.WorkerID, Worker: ev.Worker}
			byID[ev.WorkerID] = ws
		}
		ws.Jobs++
		ws.Busy += ev.Duration()

		if first.IsZero() || ev.Start.Before(first) {
			first = ev.Start
		}
		if ev.End.After(last) {
			last = ev.End
		}
	}
	if !first.IsZero() {
		sum.Wall = last.Sub(first)
	}

	tiers := make(map[string]*GroupSummary)
	for _, ws := range byID {
		if sum.Wall > 0 {
			ws.Utilisation = float64(ws.Busy) / float64(sum.Wall)
		}
		sum.Workers = append(sum.Workers, *ws)

		tier := group(tiers, profiling.WorkerGroup(ws.Worker))
		tier.Jobs += ws.Jobs
		tier.Busy += ws.Busy
	}
	slices.SortFunc(sum.Workers, func(a, b WorkerSummary) int { return a.WorkerID - b.WorkerID })
	sum.Tiers = sortedGroups(tiers)
	sum.Families = sortedGroups(families)
	return sum
}

func group(groups map[string]*GroupSummary, key string) *GroupSummary {
	g, ok := groups[key]
	if !ok {
		g = &GroupSummary{Group: key}
		groups[key] = g
	}
	return g
}

func sortedGroups(groups map[string]*GroupSummary) []GroupSummary {
	out := make([]GroupSummary, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	slices.SortFunc(out, func(a, b GroupSummary) int { return cmp.Compare(a.Group, b.Group) })
	return out
}
