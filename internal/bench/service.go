// Package bench wires configuration, topology, scheduler, capture and
// report history into one benchmark session.
package bench

import (
	"context"
	"os"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/playground-engine/jobsystem/internal/capture"
	"github.com/playground-engine/jobsystem/internal/report"
	"github.com/playground-engine/jobsystem/internal/storage"
	"github.com/playground-engine/jobsystem/internal/workload"
	"github.com/playground-engine/jobsystem/pkg/compression"
	"github.com/playground-engine/jobsystem/pkg/config"
	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
	"github.com/playground-engine/jobsystem/pkg/hardware"
	"github.com/playground-engine/jobsystem/pkg/jobs"
	"github.com/playground-engine/jobsystem/pkg/telemetry"
	"github.com/playground-engine/jobsystem/pkg/utils"
)

// Option customises a Service before Initialize.
type Option func(*Service)

// WithTopology replaces topology detection.
func WithTopology(topo hardware.Topology) Option {
	return func(s *Service) { s.topo = topo }
}

// WithStorage replaces the configured capture storage.
func WithStorage(st storage.Storage) Option {
	return func(s *Service) { s.storage = st }
}

// WithRepository replaces the configured report database.
func WithRepository(repo report.Repository) Option {
	return func(s *Service) { s.reports = repo }
}

// WithClock sets the clock for timings and the scheduler.
func WithClock(c utils.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithTracerProvider sets the provider for bench and job spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracerProvider = tp }
}

// Service runs workloads on a job system built from configuration.
type Service struct {
	config *config.Config
	logger utils.Logger
	clock  utils.Clock

	topo           hardware.Topology
	storage        storage.Storage
	reports        report.Repository
	closeReports   func() error
	tracerProvider trace.TracerProvider
	tracer         trace.Tracer

	sched    *jobs.Scheduler
	recorder *capture.Recorder
	captures *capture.Store

	running bool
}

// New creates a new Service. Nothing is started until Initialize.
func New(cfg *config.Config, logger utils.Logger, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "bench config is nil")
	}
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}

	s := &Service{config: cfg, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = utils.NewRealClock()
	}
	if s.tracerProvider != nil {
		s.tracer = s.tracerProvider.Tracer(telemetry.InstrumentationName)
	} else {
		s.tracer = telemetry.Tracer()
	}
	return s, nil
}

// Initialize detects the topology, opens storage and history, and starts
// the scheduler.
func (s *Service) Initialize(ctx context.Context) error {
	if s.running {
		return apperrors.ErrAlreadyInitialized
	}
	timer := utils.NewTimer("initialize", s.clock)

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"topology", s.initTopology},
		{"capture", s.initCapture},
		{"report", s.initReport},
		{"scheduler", s.initScheduler},
	}
	for _, step := range steps {
		if err := timer.Time(step.name, func() error { return step.fn(ctx) }); err != nil {
			s.Close()
			return err
		}
	}

	s.running = true
	timer.Log(s.logger.WithField("component", "bench"))
	return nil
}

func (s *Service) initTopology(context.Context) error {
	if s.topo == nil {
		topo, err := NewTopology(&s.config.Hardware)
		if err != nil {
			return err
		}
		s.topo = topo
	}
	if err := s.topo.Init(); err != nil {
		return err
	}

	sum := hardware.Summarize(s.topo)
	s.logger.Info("topology: %d cpus (%d performance, %d efficient, %d unknown)",
		sum.CPUs, sum.Performance, sum.Efficient, sum.Unknown)
	return nil
}

// NewTopology returns a simulated topology when cfg.Simulate is set, and
// the sysfs-backed one otherwise. The result is not initialised.
func NewTopology(cfg *config.HardwareConfig) (hardware.Topology, error) {
	if cfg.Simulate != "" {
		static, err := hardware.ParseSimulation(cfg.Simulate)
		if err != nil {
			return nil, err
		}
		return static, nil
	}
	var opts []hardware.SystemOption
	if cfg.SysfsRoot != "" {
		opts = append(opts, hardware.WithSysfsRoot(cfg.SysfsRoot))
	}
	if cfg.ProcRoot != "" {
		opts = append(opts, hardware.WithProcRoot(cfg.ProcRoot))
	}
	return hardware.NewSystem(opts...), nil
}

func (s *Service) initCapture(context.Context) error {
	if !s.config.Capture.Enabled {
		return nil
	}
	codec, err := compression.ParseType(s.config.Capture.Compression)
	if err != nil {
		return err
	}
	if s.storage == nil {
		st, err := storage.NewStorage(&s.config.Storage)
		if err != nil {
			return err
		}
		s.storage = st
	}

	s.recorder = capture.NewRecorder(s.config.Capture.MaxEvents, s.clock)
	s.recorder.SetHost(s.topo)
	s.captures = capture.NewStore(s.storage, s.config.Capture.Prefix, codec, s.logger)
	s.logger.Info("capture enabled: session %s, codec %s", s.recorder.SessionID(), codec)
	return nil
}

func (s *Service) initReport(ctx context.Context) error {
	if s.reports != nil || !s.config.Report.Enabled {
		return nil
	}
	repo, err := report.Open(ctx, &s.config.Report)
	if err != nil {
		return err
	}
	s.reports = repo
	s.closeReports = repo.Close
	s.logger.Info("report history: %s", s.config.Report.Type)
	return nil
}

func (s *Service) initScheduler(context.Context) error {
	opts := []jobs.Option{
		jobs.WithLogger(s.logger.WithField("component", "jobs")),
		jobs.WithClock(s.clock),
	}
	if s.recorder != nil {
		opts = append(opts, jobs.WithObserver(s.recorder))
	}
	if s.tracerProvider != nil {
		opts = append(opts, jobs.WithTracerProvider(s.tracerProvider))
	}

	s.sched = jobs.New(s.config.Scheduler.ToJobsConfig(), s.topo, opts...)
	if err := s.sched.Init(); err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.SetWorkers(s.sched.Plan().Workers())
	}
	return nil
}

// RunReport is the outcome of one Run.
type RunReport struct {
	SessionID  string           `json:"session_id"`
	Result     *workload.Result `json:"result"`
	Stats      jobs.Stats       `json:"stats"`
	CaptureKey string           `json:"capture_key,omitempty"`
	Capture    *capture.Summary `json:"capture,omitempty"`
	RunID      int64            `json:"run_id,omitempty"`
	Phases     []utils.Phase    `json:"phases"`
}

// Run executes spec and, when enabled, saves the capture and records the
// run in the report history. Each Run starts a new capture session.
func (s *Service) Run(ctx context.Context, spec workload.Spec) (*RunReport, error) {
	if !s.running {
		return nil, apperrors.ErrNotInitialized
	}

	ctx, span := s.tracer.Start(ctx, "bench.run", trace.WithAttributes(
		attribute.Int("workload.trees", spec.Trees),
		attribute.Int("workload.depth", spec.Depth),
		attribute.Int("workload.fanout", spec.Fanout),
		attribute.Float64("workload.low_share", spec.LowShare),
	))
	defer span.End()

	rep, err := s.run(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("bench.session", rep.SessionID),
		attribute.Int("bench.jobs", rep.Result.Jobs),
		attribute.Float64("bench.throughput", rep.Result.Throughput),
	)
	return rep, nil
}

func (s *Service) run(ctx context.Context, spec workload.Spec) (*RunReport, error) {
	timer := utils.NewTimer("run", s.clock)
	rep := &RunReport{SessionID: uuid.NewString()}
	if s.recorder != nil {
		rep.SessionID = s.recorder.SessionID()
	}

	err := timer.Time("workload", func() error {
		res, err := workload.NewRunner(s.sched, s.clock, s.logger).Run(ctx, spec)
		rep.Result = res
		return err
	})
	if err != nil {
		return nil, err
	}
	rep.Stats = s.sched.Stats()

	if s.recorder != nil {
		err := timer.Time("capture", func() error {
			if err := s.recorder.WaitIdle(ctx); err != nil {
				return err
			}
			snap := s.recorder.Snapshot()
			sum := capture.Summarize(snap)
			rep.Capture = &sum
			key, err := s.captures.Save(ctx, snap)
			rep.CaptureKey = key
			return err
		})
		s.recorder.Reset(s.clock)
		if err != nil {
			return nil, err
		}
	}

	if s.reports != nil {
		err := timer.Time("report", func() error {
			run := s.benchRun(rep, spec)
			if err := s.reports.Save(ctx, run); err != nil {
				return err
			}
			rep.RunID = run.ID
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	rep.Phases = timer.Phases()
	timer.Log(s.logger.WithField("session", rep.SessionID))
	return rep, nil
}

func (s *Service) benchRun(rep *RunReport, spec workload.Spec) *report.BenchRun {
	host, _ := os.Hostname()
	plan := s.sched.Plan()
	run := &report.BenchRun{
		SessionID:   rep.SessionID,
		Host:        host,
		CPUs:        s.topo.CPUCount(),
		HighWorkers: len(plan.High),
		LowWorkers:  len(plan.Low),
		Fallback:    plan.Fallback,
		Trees:       spec.Trees,
		Depth:       spec.Depth,
		Fanout:      spec.Fanout,
		Jobs:        int64(rep.Result.Jobs),
		DurationNS:  int64(rep.Result.Duration),
		Throughput:  rep.Result.Throughput,
		CaptureKey:  rep.CaptureKey,
	}
	if d, ok := s.topo.(hardware.Describer); ok {
		run.TopologySource = d.Source()
	}
	if err := run.SetPlan(plan); err != nil {
		s.logger.Warn("failed to encode plan: %v", err)
	}
	return run
}

// History returns the newest recorded runs.
func (s *Service) History(ctx context.Context, limit int) ([]report.BenchRun, error) {
	if s.reports == nil {
		return nil, apperrors.New(apperrors.CodeConfigError, "report history is disabled")
	}
	return s.reports.Latest(ctx, limit)
}

// Topology returns the detected topology.
func (s *Service) Topology() hardware.Topology { return s.topo }

// Scheduler returns the running scheduler.
func (s *Service) Scheduler() *jobs.Scheduler { return s.sched }

// IsRunning returns whether the service is running.
func (s *Service) IsRunning() bool { return s.running }

// Close stops the scheduler and closes the history database.
func (s *Service) Close() error {
	if s.sched != nil {
		s.sched.Shutdown()
	}
	var err error
	if s.closeReports != nil {
		err = s.closeReports()
		s.closeReports = nil
	}
	s.running = false
	return err
}

// ServiceStats holds service statistics.
type ServiceStats struct {
	Running   bool       `json:"running"`
	Scheduler jobs.Stats `json:"scheduler"`
}

// Stats returns service statistics.
func (s *Service) Stats() ServiceStats {
	stats := ServiceStats{Running: s.running}
	if s.sched != nil {
		stats.Scheduler = s.sched.Stats()
	}
	return stats
}
