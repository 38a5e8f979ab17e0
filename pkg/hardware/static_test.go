package hardware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

func TestParseSimulation(t *testing.T) {
	tests := []struct {
		spec          string
		perf, eff, un int
	}{
		{"8p4e", 8, 4, 0},
		{"6P", 6, 0, 0},
		{"4p 4e", 4, 4, 0},
		{"16u", 0, 0, 16},
		{"2p2p", 4, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			topo, err := ParseSimulation(tt.spec)
			require.NoError(t, err)
			assert.Len(t, topo.CoresByEfficiency(Performance), tt.perf)
			assert.Len(t, topo.CoresByEfficiency(Efficient), tt.eff)
			assert.Len(t, topo.CoresByEfficiency(Unknown), tt.un)
			assert.Equal(t, tt.perf+tt.eff+tt.un, topo.CPUCount())
		})
	}
}

func TestParseSimulation_PerformanceFirst(t *testing.T) {
	topo, err := ParseSimulation("2p2e")
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, ids(topo.CoresByEfficiency(Performance)))
	assert.Equal(t, []int{2, 3}, ids(topo.CoresByEfficiency(Efficient)))
}

func TestParseSimulation_Invalid(t *testing.T) {
	for _, spec := range []string{"", "abc", "8x", "8p junk", "0p0e"} {
		t.Run(spec, func(t *testing.T) {
			_, err := ParseSimulation(spec)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))
		})
	}
}

func TestStatic_RecordsPins(t *testing.T) {
	topo := NewStaticCounts(2, 1, 0)

	require.NoError(t, topo.PinCurrentThreadToCore(0))
	require.NoError(t, topo.PinCurrentThreadToCore(0))
	require.NoError(t, topo.PinCurrentThreadToCore(2))
	assert.Error(t, topo.PinCurrentThreadToCore(9))

	assert.Equal(t, map[int]int{0: 2, 2: 1}, topo.Pins())
}

func TestSummarize(t *testing.T) {
	topo := NewStaticCounts(8, 4, 0)

	assert.Equal(t, Summary{CPUs: 12, Performance: 8, Efficient: 4}, Summarize(topo))
}

func TestEfficiencyClass_String(t *testing.T) {
	assert.Equal(t, "performance", Performance.String())
	assert.Equal(t, "efficient", Efficient.String())
	assert.Equal(t, "unknown", Unknown.String())
	assert.Equal(t, uint8(0), uint8(Efficient))
	assert.Equal(t, uint8(1), uint8(Performance))
	assert.Equal(t, uint8(2), uint8(Unknown))
}
