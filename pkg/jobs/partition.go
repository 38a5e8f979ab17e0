package jobs

import (
	"fmt"

	"github.com/playground-engine/jobsystem/pkg/hardware"
)

// Worker name prefixes per tier.
const (
	HighWorkerPrefix = "H_WORKER_THREAD"
	LowWorkerPrefix  = "E_WORKER_THREAD"
)

// WorkerSpec describes one worker to spawn. CoreID is -1 when the worker
// is not pinned.
type WorkerSpec struct {
	ID     int                      `json:"id"`
	Name   string                   `json:"name"`
	Tier   Priority                 `json:"tier"`
	CoreID int                      `json:"core_id"`
	Class  hardware.EfficiencyClass `json:"class"`
}

// Plan is the worker layout derived from a topology.
type Plan struct {
	High     []WorkerSpec    `json:"high"`
	Low      []WorkerSpec    `json:"low"`
	Reserved []hardware.Core `json:"reserved"`
	// Fallback is set when there were no Efficient cores and the Low tier
	// was carved out of the Performance pool.
	Fallback bool `json:"fallback"`
	// FromUnknown is set when only unclassified cores were reported.
	FromUnknown bool `json:"from_unknown"`
}

// Workers returns the High specs followed by the Low specs.
func (p Plan) Workers() []WorkerSpec {
	out := make([]WorkerSpec, 0, len(p.High)+len(p.Low))
	out = append(out, p.High...)
	return append(out, p.Low...)
}

// PlanForTopology classifies the cores of topo and plans workers for them.
// A topology that reports neither Performance nor Efficient cores has its
// Unknown cores used as the Performance pool.
func PlanForTopology(topo hardware.Topology, cfg Config) Plan {
	perf := topo.CoresByEfficiency(hardware.Performance)
	eff := topo.CoresByEfficiency(hardware.Efficient)
	if len(perf) == 0 && len(eff) == 0 {
		plan := PlanWorkers(topo.CoresByEfficiency(hardware.Unknown), nil, cfg)
		plan.FromUnknown = true
		return plan
	}
	return PlanWorkers(perf, eff, cfg)
}

// PlanWorkers partitions workers across the two tiers.
//
// The first ReservedCores Performance cores are left for the caller. The
// High tier gets one worker per remaining Performance core and the Low tier
// one worker per Efficient core. Without Efficient cores, FallbackLowShare
// of the High workers move to the Low tier and share the Performance cores
// round-robin. HighWorkers and LowWorkers override the computed counts.
func PlanWorkers(perf, eff []hardware.Core, cfg Config) Plan {
	var plan Plan

	reserved := min(max(cfg.ReservedCores, 0), len(perf))
	plan.Reserved = append([]hardware.Core(nil), perf[:reserved]...)

	pool := perf[reserved:]
	if len(pool) == 0 {
		pool = perf
	}

	high := max(len(perf)-reserved, cfg.MinHighWorkers)
	low := len(eff)

	lowPool := eff
	if low == 0 {
		plan.Fallback = true
		share := cfg.FallbackLowShare
		low = max(cfg.MinLowWorkers, int(float64(high)*share))
		high = max(cfg.MinHighWorkers, int(float64(high)*(1-share)))
		lowPool = pool
	}

	if cfg.HighWorkers > 0 {
		high = cfg.HighWorkers
	}
	if cfg.LowWorkers > 0 {
		low = cfg.LowWorkers
	}

	highPool := pool
	if len(highPool) == 0 {
		highPool = eff
	}

	plan.High = make([]WorkerSpec, high)
	for i := range plan.High {
		plan.High[i] = WorkerSpec{
			ID:   i,
			Name: fmt.Sprintf("%s%d", HighWorkerPrefix, i),
			Tier: High,
		}
		assignCore(&plan.High[i], highPool, i, cfg.PinThreads)
	}

	// Fallback Low workers continue the round-robin after the High workers
	// so they land on different cores whenever the pool allows it.
	offset := 0
	if plan.Fallback {
		offset = high
	}
	plan.Low = make([]WorkerSpec, low)
	for i := range plan.Low {
		plan.Low[i] = WorkerSpec{
			ID:   high + i,
			Name: fmt.Sprintf("%s%d", LowWorkerPrefix, i),
			Tier: Low,
		}
		assignCore(&plan.Low[i], lowPool, offset+i, cfg.PinThreads)
	}

	return plan
}

func assignCore(w *WorkerSpec, pool []hardware.Core, i int, pin bool) {
	w.CoreID = -1
	w.Class = hardware.Unknown
	if len(pool) == 0 {
		return
	}
	core := pool[i%len(pool)]
	w.Class = core.Class
	if pin {
		w.CoreID = core.ID
	}
}
