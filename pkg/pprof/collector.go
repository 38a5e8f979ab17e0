package pprof

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	httppprof "net/http/pprof"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
	"github.com/playground-engine/jobsystem/pkg/utils"
)

// Status represents the collector's current status.
type Status struct {
	Running   bool                     `json:"running"`
	Mode      ModeType                 `json:"mode"`
	Addr      string                   `json:"addr,omitempty"`
	StartTime time.Time                `json:"start_time"`
	Files     map[ProfileType][]string `json:"files,omitempty"`
	Errors    []string                 `json:"errors,omitempty"`
}

// Collector profiles the process between Start and Stop.
type Collector struct {
	config *Config
	writer *Writer
	logger utils.Logger

	mu     sync.Mutex
	status Status
	cpuBuf *bytes.Buffer
	server *http.Server
	done   chan struct{}
}

// NewCollector creates a Collector. A nil logger discards messages.
func NewCollector(cfg *Config, logger utils.Logger) (*Collector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &Collector{
		config: cfg,
		writer: NewWriter(cfg.OutputDir, cfg.MaxFiles),
		logger: logger.WithField("component", "pprof"),
		status: Status{Mode: cfg.Mode, Files: make(map[ProfileType][]string)},
	}, nil
}

// Start begins collection. In file mode a CPU profile runs until Stop.
func (c *Collector) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status.Running {
		return apperrors.New(apperrors.CodeInvalidInput, "pprof collector is already running")
	}

	if c.config.HasProfile(ProfileBlock) {
		runtime.SetBlockProfileRate(1)
	}
	if c.config.HasProfile(ProfileMutex) {
		runtime.SetMutexProfileFraction(1)
	}

	switch c.config.Mode {
	case ModeFile:
		if c.config.HasProfile(ProfileCPU) {
			if c.config.CPURate > 0 {
				runtime.SetCPUProfileRate(c.config.CPURate)
			}
			c.cpuBuf = &bytes.Buffer{}
			if err := pprof.StartCPUProfile(c.cpuBuf); err != nil {
				c.resetRates()
				return apperrors.Wrap(apperrors.CodeInvalidInput, "start CPU profile", err)
			}
		}
	case ModeHTTP:
		if err := c.serve(); err != nil {
			c.resetRates()
			return err
		}
	}

	c.status.Running = true
	c.status.StartTime = time.Now()
	c.logger.Info("pprof collection started (mode: %s)", c.config.Mode)
	return nil
}

func (c *Collector) serve() error {
	ln, err := net.Listen("tcp", c.config.Addr)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "pprof listen "+c.config.Addr, err)
	}
	c.status.Addr = ln.Addr().String()

	c.server = &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	c.done = make(chan struct{})
	go func() {
		defer close(c.done)
		if err := c.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			c.addError("serve: " + err.Error())
		}
	}()
	c.logger.Info("pprof endpoints at http://%s/debug/pprof/", c.status.Addr)
	return nil
}

// Handler returns the pprof endpoints plus /debug/pprof/status.
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", httppprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", httppprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", httppprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", httppprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", httppprof.Trace)
	mux.HandleFunc("/debug/pprof/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(c.Status())
	})
	return mux
}

// Stop ends collection. File mode writes the CPU profile and a final
// snapshot of every other configured profile. Stop is idempotent.
func (c *Collector) Stop() error {
	c.mu.Lock()
	if !c.status.Running {
		c.mu.Unlock()
		return nil
	}
	c.status.Running = false
	server, done := c.server, c.done
	c.mu.Unlock()
	defer c.resetRates()

	// The status handler takes c.mu, so the server drains unlocked.
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(ctx)
		<-done
		if err != nil {
			return apperrors.Wrap(apperrors.CodeInvalidInput, "shutdown pprof server", err)
		}
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	record := func(pt ProfileType, data []byte, err error) {
		if err == nil {
			var path string
			path, err = c.writer.Write(pt, data)
			if path != "" {
				c.status.Files[pt] = append(c.status.Files[pt], path)
			}
		}
		if err != nil {
			c.status.Errors = append(c.status.Errors, string(pt)+": "+err.Error())
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if c.cpuBuf != nil {
		pprof.StopCPUProfile()
		record(ProfileCPU, c.cpuBuf.Bytes(), nil)
		c.cpuBuf = nil
	}
	for _, pt := range c.config.Profiles {
		if pt == ProfileCPU {
			continue
		}
		data, err := Snapshot(pt)
		record(pt, data, err)
	}

	c.logger.Info("pprof data saved to: %s", c.writer.OutputDir())
	return firstErr
}

// Status returns a copy of the collector status.
func (c *Collector) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.status
	s.Files = make(map[ProfileType][]string, len(c.status.Files))
	for k, v := range c.status.Files {
		s.Files[k] = append([]string(nil), v...)
	}
	s.Errors = append([]string(nil), c.status.Errors...)
	return s
}

// Writer returns the file writer.
func (c *Collector) Writer() *Writer {
	return c.writer
}

func (c *Collector) addError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status.Errors = append(c.status.Errors, msg)
}

func (c *Collector) resetRates() {
	runtime.SetBlockProfileRate(0)
	runtime.SetMutexProfileFraction(0)
}

// Snapshot collects a point-in-time profile. CPU profiles need a duration
// and are not supported here.
func Snapshot(pt ProfileType) ([]byte, error) {
	var buf bytes.Buffer
	switch pt {
	case ProfileCPU:
		return nil, apperrors.New(apperrors.CodeInvalidInput, "cpu profiles cannot be snapshotted")
	case ProfileHeap:
		runtime.GC()
		if err := pprof.WriteHeapProfile(&buf); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "write heap profile", err)
		}
	default:
		p := pprof.Lookup(string(pt))
		if p == nil {
			return nil, apperrors.Newf(apperrors.CodeInvalidInput, "unknown profile type: %s", pt)
		}
		if err := p.WriteTo(&buf, 0); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "write "+string(pt)+" profile", err)
		}
	}
	return buf.Bytes(), nil
}

// Run profiles fn according to cfg. A disabled config just runs fn.
func Run(ctx context.Context, cfg *Config, logger utils.Logger, fn func(ctx context.Context) error) error {
	if cfg == nil || !cfg.Enabled {
		return fn(ctx)
	}

	collector, err := NewCollector(cfg, logger)
	if err != nil {
		return err
	}
	if err := collector.Start(); err != nil {
		return err
	}

	runErr := fn(ctx)
	stopErr := collector.Stop()
	if runErr != nil {
		return runErr
	}
	return stopErr
}
