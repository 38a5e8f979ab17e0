package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playground-engine/jobsystem/pkg/hardware"
)

func coreIDs(specs []WorkerSpec) []int {
	out := make([]int, len(specs))
	for i, s := range specs {
		out[i] = s.CoreID
	}
	return out
}

func TestPlanForTopology(t *testing.T) {
	tests := []struct {
		name        string
		perf, eff   int
		unknown     int
		mutate      func(*Config)
		highCores   []int
		lowCores    []int
		reserved    int
		fallback    bool
		fromUnknown bool
	}{
		{
			name: "hybrid 8p4e", perf: 8, eff: 4,
			highCores: []int{2, 3, 4, 5, 6, 7},
			lowCores:  []int{8, 9, 10, 11},
			reserved:  2,
		},
		{
			name: "no efficient cores 8p", perf: 8,
			highCores: []int{2, 3, 4, 5},
			lowCores:  []int{6},
			reserved:  2, fallback: true,
		},
		{
			name: "no efficient cores 4p", perf: 4,
			highCores: []int{2, 3},
			lowCores:  []int{2},
			reserved:  2, fallback: true,
		},
		{
			name: "reservation consumes every performance core", perf: 2, eff: 2,
			highCores: []int{0, 1},
			lowCores:  []int{2, 3},
			reserved:  2,
		},
		{
			name: "only efficient cores", eff: 4,
			highCores: []int{0, 1},
			lowCores:  []int{0, 1, 2, 3},
		},
		{
			name: "unknown cores become the performance pool", unknown: 4,
			highCores: []int{2, 3},
			lowCores:  []int{2},
			reserved:  2, fallback: true, fromUnknown: true,
		},
		{
			name: "no reservation", perf: 4,
			mutate:    func(c *Config) { c.ReservedCores = 0 },
			highCores: []int{0, 1, 2},
			lowCores:  []int{3},
			fallback:  true,
		},
		{
			name: "overrides wrap over the pool", perf: 8, eff: 4,
			mutate:    func(c *Config) { c.HighWorkers = 3; c.LowWorkers = 5 },
			highCores: []int{2, 3, 4},
			lowCores:  []int{8, 9, 10, 11, 8},
			reserved:  2,
		},
		{
			name: "pinning disabled", perf: 4, eff: 2,
			mutate:    func(c *Config) { c.PinThreads = false },
			highCores: []int{-1, -1},
			lowCores:  []int{-1, -1},
			reserved:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}
			topo := hardware.NewStaticCounts(tt.perf, tt.eff, tt.unknown)

			plan := PlanForTopology(topo, cfg)

			assert.Equal(t, tt.highCores, coreIDs(plan.High), "high cores")
			assert.Equal(t, tt.lowCores, coreIDs(plan.Low), "low cores")
			assert.Len(t, plan.Reserved, tt.reserved)
			assert.Equal(t, tt.fallback, plan.Fallback)
			assert.Equal(t, tt.fromUnknown, plan.FromUnknown)
		})
	}
}

func TestPlanWorkers_NamesAndIDs(t *testing.T) {
	plan := PlanForTopology(hardware.NewStaticCounts(6, 2, 0), DefaultConfig())

	require.Len(t, plan.High, 4)
	require.Len(t, plan.Low, 2)

	assert.Equal(t, "H_WORKER_THREAD0", plan.High[0].Name)
	assert.Equal(t, "H_WORKER_THREAD3", plan.High[3].Name)
	assert.Equal(t, "E_WORKER_THREAD0", plan.Low[0].Name)
	assert.Equal(t, "E_WORKER_THREAD1", plan.Low[1].Name)

	ids := map[int]bool{}
	for _, w := range plan.Workers() {
		assert.False(t, ids[w.ID], "duplicate worker id %d", w.ID)
		ids[w.ID] = true
	}
	assert.Len(t, ids, 6)

	for _, w := range plan.High {
		assert.Equal(t, High, w.Tier)
		assert.Equal(t, hardware.Performance, w.Class)
	}
	for _, w := range plan.Low {
		assert.Equal(t, Low, w.Tier)
		assert.Equal(t, hardware.Efficient, w.Class)
	}
}

func TestPlanWorkers_FallbackAlwaysHasLowWorker(t *testing.T) {
	for perf := 0; perf <= 32; perf++ {
		plan := PlanWorkers(hardware.NewStaticCounts(perf, 0, 0).CoresByEfficiency(hardware.Performance), nil, DefaultConfig())
		assert.GreaterOrEqual(t, len(plan.Low), 1, "perf=%d", perf)
		assert.GreaterOrEqual(t, len(plan.High), 2, "perf=%d", perf)
	}
}

func TestPlanWorkers_FallbackShare(t *testing.T) {
	perf := hardware.NewStaticCounts(18, 0, 0).CoresByEfficiency(hardware.Performance)

	plan := PlanWorkers(perf, nil, DefaultConfig())

	// 16 available: 25% to Low, 75% stay High.
	assert.Len(t, plan.Low, 4)
	assert.Len(t, plan.High, 12)
}
