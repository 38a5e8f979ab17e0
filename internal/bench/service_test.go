package bench

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/playground-engine/jobsystem/internal/capture"
	"github.com/playground-engine/jobsystem/internal/mock"
	"github.com/playground-engine/jobsystem/internal/report"
	"github.com/playground-engine/jobsystem/internal/storage"
	"github.com/playground-engine/jobsystem/internal/workload"
	"github.com/playground-engine/jobsystem/pkg/compression"
	"github.com/playground-engine/jobsystem/pkg/config"
	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
	"github.com/playground-engine/jobsystem/pkg/hardware"
	"github.com/playground-engine/jobsystem/pkg/utils"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Scheduler.PinThreads = false
	cfg.Hardware.Simulate = "4p2e"
	cfg.Storage.LocalPath = t.TempDir()
	return cfg
}

func smallSpec() workload.Spec {
	return workload.Spec{Trees: 4, Depth: 3, Fanout: 2, LowShare: 0.25, SpinIterations: 50, Producers: 2}
}

func newService(t *testing.T, cfg *config.Config, opts ...Option) *Service {
	t.Helper()
	svc, err := New(cfg, &utils.NullLogger{}, opts...)
	require.NoError(t, err)
	require.NoError(t, svc.Initialize(context.Background()))
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func runContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestNew_NilConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.True(t, apperrors.IsConfigError(err))
}

func TestService_RunWithoutExtras(t *testing.T) {
	svc := newService(t, testConfig(t))
	assert.True(t, svc.IsRunning())
	assert.Equal(t, 2, svc.Scheduler().HighPerfWorkers())
	assert.Equal(t, 2, svc.Scheduler().LowPerfWorkers())

	rep, err := svc.Run(runContext(t), smallSpec())
	require.NoError(t, err)
	assert.Equal(t, 28, rep.Result.Jobs)
	assert.NotEmpty(t, rep.SessionID)
	assert.Empty(t, rep.CaptureKey)
	assert.Nil(t, rep.Capture)
	assert.Zero(t, rep.RunID)
	assert.Equal(t, "workload", rep.Phases[0].Name)

	_, err = svc.History(context.Background(), 5)
	assert.True(t, apperrors.IsConfigError(err))
}

func TestService_RunBeforeInitialize(t *testing.T) {
	svc, err := New(testConfig(t), &utils.NullLogger{})
	require.NoError(t, err)
	_, err = svc.Run(context.Background(), smallSpec())
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)
}

func TestService_CaptureAndReport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Capture.Enabled = true
	cfg.Capture.Compression = "zstd"
	cfg.Report.Enabled = true
	cfg.Report.Type = "sqlite"
	cfg.Report.Path = ":memory:"

	svc := newService(t, cfg)
	rep, err := svc.Run(runContext(t), smallSpec())
	require.NoError(t, err)

	assert.Equal(t, "captures/"+rep.SessionID+".json.zst", rep.CaptureKey)
	require.NotNil(t, rep.Capture)
	assert.Equal(t, 28, rep.Capture.Events)
	assert.NotZero(t, rep.RunID)

	st, err := storage.NewLocalStorage(cfg.Storage.LocalPath)
	require.NoError(t, err)
	loaded, err := capture.NewStore(st, "captures", compression.TypeZstd, nil).Load(context.Background(), rep.CaptureKey)
	require.NoError(t, err)
	assert.Len(t, loaded.Events, 28)
	assert.Len(t, loaded.Workers, 4)
	assert.Equal(t, "static", loaded.Host.Source)

	history, err := svc.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, rep.SessionID, history[0].SessionID)
	assert.Equal(t, "static", history[0].TopologySource)
	assert.Equal(t, 6, history[0].CPUs)

	// a second run gets a fresh session
	rep2, err := svc.Run(runContext(t), smallSpec())
	require.NoError(t, err)
	assert.NotEqual(t, rep.SessionID, rep2.SessionID)
	assert.Equal(t, 28, rep2.Capture.Events)
}

func TestService_InjectedDependencies(t *testing.T) {
	cfg := testConfig(t)
	cfg.Capture.Enabled = true
	cfg.Capture.Compression = "none"

	st := &mock.MockStorage{}
	st.ExpectUpload(nil)
	st.On("GetURL", tmock.Anything).Return("mem://capture")

	repo := &mock.MockReportRepository{}
	repo.ExpectSave(nil)

	svc := newService(t, cfg,
		WithTopology(hardware.NewStaticCounts(8, 4, 0)),
		WithStorage(st),
		WithRepository(repo))

	rep, err := svc.Run(runContext(t), smallSpec())
	require.NoError(t, err)
	assert.Equal(t, 6, svc.Scheduler().HighPerfWorkers())
	assert.Equal(t, 4, svc.Scheduler().LowPerfWorkers())
	assert.NotEmpty(t, rep.CaptureKey)

	st.AssertExpectations(t)
	repo.AssertExpectations(t)
	saved := repo.Calls[0].Arguments.Get(1).(*report.BenchRun)
	assert.Equal(t, rep.SessionID, saved.SessionID)
	assert.Equal(t, 12, saved.CPUs)
	assert.Contains(t, string(saved.Plan), "H_WORKER_THREAD0")
}

func TestService_ReportFailureSurfaces(t *testing.T) {
	repo := &mock.MockReportRepository{}
	repo.ExpectSave(apperrors.Wrap(apperrors.CodeDatabaseError, "save", errors.New("disk full")))

	svc := newService(t, testConfig(t), WithRepository(repo))
	_, err := svc.Run(runContext(t), smallSpec())
	assert.Equal(t, apperrors.CodeDatabaseError, apperrors.GetErrorCode(err))
}

func TestService_InvalidSimulation(t *testing.T) {
	cfg := testConfig(t)
	cfg.Hardware.Simulate = "lots of cores"

	svc, err := New(cfg, &utils.NullLogger{})
	require.NoError(t, err)
	assert.Error(t, svc.Initialize(context.Background()))
	assert.False(t, svc.IsRunning())
}

func TestService_Spans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	defer tp.Shutdown(context.Background())

	svc := newService(t, testConfig(t), WithTracerProvider(tp))
	rep, err := svc.Run(runContext(t), workload.Spec{Trees: 1, Depth: 2, Fanout: 2})
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	var benchSpans, jobSpans int
	for _, span := range sr.Ended() {
		switch span.Name() {
		case "bench.run":
			benchSpans++
		case "jobs.execute":
			jobSpans++
		}
	}
	assert.Equal(t, 1, benchSpans)
	assert.Equal(t, rep.Result.Jobs, jobSpans)
}

func TestService_Stats(t *testing.T) {
	svc, err := New(testConfig(t), &utils.NullLogger{})
	require.NoError(t, err)
	assert.False(t, svc.Stats().Running)

	require.NoError(t, svc.Initialize(context.Background()))
	defer svc.Close()
	stats := svc.Stats()
	assert.True(t, stats.Running)
	assert.Equal(t, 2, stats.Scheduler.HighWorkers)
}

func TestNewTopology(t *testing.T) {
	topo, err := NewTopology(&config.HardwareConfig{Simulate: "2p2e"})
	require.NoError(t, err)
	assert.IsType(t, &hardware.Static{}, topo)

	topo, err = NewTopology(&config.HardwareConfig{SysfsRoot: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &hardware.System{}, topo)
}
