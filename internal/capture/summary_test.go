package capture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playground-engine/jobsystem/pkg/jobs"
)

func TestSummarize(t *testing.T) {
	c := &Capture{
		Workers: []jobs.WorkerSpec{
			{ID: 0, Name: "H_WORKER_THREAD0"},
			{ID: 1, Name: "H_WORKER_THREAD1"},
			{ID: 2, Name: "E_WORKER_THREAD0"},
		},
		Events: []Event{
			{WorkerID: 0, Name: "tree0/0.1", Start: epoch, End: epoch.Add(4 * time.Millisecond)},
			{WorkerID: 0, Name: "tree0/0", Start: epoch.Add(5 * time.Millisecond), End: epoch.Add(10 * time.Millisecond)},
			{WorkerID: 1, Name: "blur[0:8]", Start: epoch.Add(time.Millisecond), End: epoch.Add(6 * time.Millisecond)},
		},
		Dropped: 2,
	}

	sum := Summarize(c)
	assert.Equal(t, 3, sum.Events)
	assert.EqualValues(t, 2, sum.Dropped)
	assert.Equal(t, 10*time.Millisecond, sum.Wall)

	require.Len(t, sum.Workers, 3)
	assert.Equal(t, 2, sum.Workers[0].Jobs)
	assert.Equal(t, 9*time.Millisecond, sum.Workers[0].Busy)
	assert.InDelta(t, 0.9, sum.Workers[0].Utilisation, 1e-9)
	assert.Equal(t, 1, sum.Workers[1].Jobs)
	assert.Zero(t, sum.Workers[2].Jobs)
	assert.Equal(t, "E_WORKER_THREAD0", sum.Workers[2].Worker)

	assert.Equal(t, []GroupSummary{
		{Group: "E_WORKER_THREAD", Jobs: 0, Busy: 0},
		{Group: "H_WORKER_THREAD", Jobs: 3, Busy: 14 * time.Millisecond},
	}, sum.Tiers)
	assert.Equal(t, []GroupSummary{
		{Group: "blur", Jobs: 1, Busy: 5 * time.Millisecond},
		{Group: "tree0", Jobs: 2, Busy: 9 * time.Millisecond},
	}, sum.Families)
}

func TestSummarize_Empty(t *testing.T) {
	sum := Summarize(&Capture{})
	assert.Zero(t, sum.Wall)
	assert.Empty(t, sum.Workers)
}
