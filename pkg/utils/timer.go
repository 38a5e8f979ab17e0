package utils

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Phase is one timed step of a benchmark session.
type Phase struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	start    time.Time
	stopped  bool
}

// PhaseTimer stops a single phase; intended for use with defer.
type PhaseTimer struct {
	timer *Timer
	name  string
}

// Stop records the phase duration. Only the first call has effect.
func (pt *PhaseTimer) Stop() time.Duration {
	return pt.timer.stop(pt.name)
}

// Timer records named phases in insertion order.
type Timer struct {
	mu     sync.Mutex
	name   string
	clock  Clock
	start  time.Time
	phases []*Phase
	index  map[string]*Phase
}

// NewTimer creates a Timer. A nil clock means the real clock.
func NewTimer(name string, clock Clock) *Timer {
	if clock == nil {
		clock = NewRealClock()
	}
	return &Timer{
		name:  name,
		clock: clock,
		start: clock.Now(),
		index: make(map[string]*Phase),
	}
}

// Start begins timing a phase. Restarting a name resets it.
func (t *Timer) Start(name string) *PhaseTimer {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.index[name]
	if !ok {
		p = &Phase{Name: name}
		t.index[name] = p
		t.phases = append(t.phases, p)
	}
	p.start = t.clock.Now()
	p.stopped = false
	p.Duration = 0
	return &PhaseTimer{timer: t, name: name}
}

func (t *Timer) stop(name string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.index[name]
	if !ok {
		return 0
	}
	if !p.stopped {
		p.Duration = t.clock.Since(p.start)
		p.stopped = true
	}
	return p.Duration
}

// Time runs fn as a phase and returns its error.
func (t *Timer) Time(name string, fn func() error) error {
	pt := t.Start(name)
	defer pt.Stop()
	return fn()
}

// Phases returns copies of all phases in insertion order.
func (t *Timer) Phases() []Phase {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Phase, 0, len(t.phases))
	for _, p := range t.phases {
		out = append(out, Phase{Name: p.Name, Duration: p.Duration})
	}
	return out
}

// Total returns the time elapsed since the timer was created.
func (t *Timer) Total() time.Duration {
	return t.clock.Since(t.start)
}

// Summary renders the phases one per line.
func (t *Timer) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== %s ===\n", t.name)
	for i, p := range t.Phases() {
		fmt.Fprintf(&sb, "%d. %s: %v\n", i+1, p.Name, p.Duration)
	}
	fmt.Fprintf(&sb, "Total: %v\n", t.Total())
	return sb.String()
}

// Log writes the summary through logger at Info level.
func (t *Timer) Log(logger Logger) {
	if logger == nil {
		return
	}
	for _, p := range t.Phases() {
		logger.Info("phase %s took %v", p.Name, p.Duration)
	}
	logger.Info("%s total %v", t.name, t.Total())
}
