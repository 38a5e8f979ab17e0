package capture

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playground-engine/jobsystem/pkg/hardware"
	"github.com/playground-engine/jobsystem/pkg/jobs"
	"github.com/playground-engine/jobsystem/pkg/utils"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func event(id uint64, worker int, start, end time.Duration) jobs.JobEvent {
	return jobs.JobEvent{
		JobID:    id,
		Name:     "job",
		Priority: jobs.Low,
		Colour:   0xABCDEF,
		WorkerID: worker,
		Worker:   "E_WORKER_THREAD0",
		Start:    epoch.Add(start),
		End:      epoch.Add(end),
	}
}

func TestRecorder_StoresFinishedEvents(t *testing.T) {
	r := NewRecorder(10, utils.NewMockClock(epoch))
	r.JobStarted(event(1, 0, 0, 0))
	r.JobFinished(event(1, 0, 0, time.Millisecond))

	c := r.Snapshot()
	require.Len(t, c.Events, 1)
	assert.Equal(t, "low", c.Events[0].Priority)
	assert.Equal(t, time.Millisecond, c.Events[0].Duration())
	assert.Equal(t, epoch, c.StartedAt)
	assert.EqualValues(t, 1, r.Started())
	assert.NotEmpty(t, c.SessionID)
}

func TestRecorder_DropsPastLimit(t *testing.T) {
	r := NewRecorder(2, nil)
	for i := 0; i < 5; i++ {
		r.JobFinished(event(uint64(i), 0, 0, time.Microsecond))
	}
	assert.Equal(t, 2, r.Len())
	assert.EqualValues(t, 3, r.Dropped())
	assert.EqualValues(t, 3, r.Snapshot().Dropped)
}

func TestRecorder_Unbounded(t *testing.T) {
	r := NewRecorder(0, nil)
	for i := 0; i < 100; i++ {
		r.JobFinished(event(uint64(i), 0, 0, time.Microsecond))
	}
	assert.Equal(t, 100, r.Len())
	assert.Zero(t, r.Dropped())
}

func TestRecorder_SnapshotSortedCopy(t *testing.T) {
	r := NewRecorder(10, nil)
	r.JobFinished(event(2, 0, 5*time.Millisecond, 6*time.Millisecond))
	r.JobFinished(event(1, 1, time.Millisecond, 2*time.Millisecond))

	c := r.Snapshot()
	require.Len(t, c.Events, 2)
	assert.EqualValues(t, 1, c.Events[0].JobID)
	assert.EqualValues(t, 2, c.Events[1].JobID)

	c.Events[0].Name = "mutated"
	assert.Equal(t, "job", r.Snapshot().Events[0].Name)
}

func TestRecorder_HostAndWorkers(t *testing.T) {
	topo := hardware.NewStaticCounts(4, 2, 0)
	plan := jobs.PlanForTopology(topo, jobs.DefaultConfig())

	r := NewRecorder(10, nil)
	r.SetHost(topo)
	r.SetWorkers(plan.Workers())

	c := r.Snapshot()
	assert.Equal(t, "static", c.Host.Source)
	assert.Equal(t, 4, c.Host.Cores.Performance)
	assert.Equal(t, 2, c.Host.Cores.Efficient)
	assert.Len(t, c.Workers, len(plan.High)+len(plan.Low))
}

func TestRecorder_Reset(t *testing.T) {
	r := NewRecorder(1, nil)
	first := r.SessionID()
	r.JobStarted(event(1, 0, 0, 0))
	r.JobFinished(event(1, 0, 0, 1))
	r.JobFinished(event(2, 0, 0, 1))

	r.Reset(nil)
	assert.NotEqual(t, first, r.SessionID())
	assert.Zero(t, r.Len())
	assert.Zero(t, r.Dropped())
	assert.Zero(t, r.Started())
}

func TestRecorder_Concurrent(t *testing.T) {
	r := NewRecorder(1000, nil)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				ev := event(uint64(worker*1000+i), worker, 0, time.Microsecond)
				r.JobStarted(ev)
				r.JobFinished(ev)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 1000, r.Len())
	assert.EqualValues(t, 600, r.Dropped())
	assert.EqualValues(t, 1600, r.Started())
}

func TestRecorder_AsSchedulerObserver(t *testing.T) {
	rec := NewRecorder(100, nil)
	cfg := jobs.DefaultConfig()
	cfg.PinThreads = false
	s := jobs.New(cfg, hardware.NewStaticCounts(4, 2, 0),
		jobs.WithLogger(&utils.NullLogger{}), jobs.WithObserver(rec))
	require.NoError(t, s.Init())
	defer s.Shutdown()

	root, err := s.SubmitJob(jobs.Job{
		Name:     "frame",
		Priority: jobs.High,
		Task:     func(int) {},
		Dependencies: []jobs.Job{
			{Name: "physics", Priority: jobs.High, Task: func(int) {}},
			{Name: "audio", Priority: jobs.Low, Task: func(int) {}},
		},
	})
	require.NoError(t, err)

	select {
	case <-root.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("frame did not complete")
	}
	require.Eventually(t, func() bool { return rec.Len() == 3 }, time.Second, time.Millisecond)

	names := map[string]string{}
	for _, ev := range rec.Snapshot().Events {
		names[ev.Name] = ev.Priority
	}
	assert.Equal(t, map[string]string{"frame": "high", "physics": "high", "audio": "low"}, names)
}

func TestRecorder_WaitIdle(t *testing.T) {
	r := NewRecorder(10, nil)
	r.JobStarted(event(1, 0, 0, 0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.WaitIdle(ctx), context.DeadlineExceeded)

	r.JobFinished(event(1, 0, 0, time.Microsecond))
	assert.NoError(t, r.WaitIdle(context.Background()))
}
