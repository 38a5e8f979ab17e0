// Package config provides configuration management for the job system.
package config

import (
	"bytes"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/playground-engine/jobsystem/pkg/compression"
	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
	"github.com/playground-engine/jobsystem/pkg/jobs"
	"github.com/playground-engine/jobsystem/pkg/pprof"
)

// EnvPrefix prefixes environment overrides, e.g. JOBSYS_SCHEDULER_RESERVED_CORES.
const EnvPrefix = "JOBSYS"

// Config holds all configuration for the application.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Hardware  HardwareConfig  `mapstructure:"hardware"`
	Log       LogConfig       `mapstructure:"log"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Report    ReportConfig    `mapstructure:"report"`
	Profiling pprof.Config    `mapstructure:"profiling"`
}

// SchedulerConfig holds worker pool configuration.
type SchedulerConfig struct {
	ReservedCores    int           `mapstructure:"reserved_cores"`
	MinHighWorkers   int           `mapstructure:"min_high_workers"`
	MinLowWorkers    int           `mapstructure:"min_low_workers"`
	FallbackLowShare float64       `mapstructure:"fallback_low_share"`
	HighWorkers      int           `mapstructure:"high_workers"` // 0 = derive from topology
	LowWorkers       int           `mapstructure:"low_workers"`
	QueueCapacity    int           `mapstructure:"queue_capacity"`
	PendingCapacity  int           `mapstructure:"pending_capacity"`
	IdleSpinLimit    int           `mapstructure:"idle_spin_limit"`
	IdleSleep        time.Duration `mapstructure:"idle_sleep"`
	PinThreads       bool          `mapstructure:"pin_threads"`
}

// HardwareConfig controls topology probing.
type HardwareConfig struct {
	SysfsRoot string `mapstructure:"sysfs_root"`
	ProcRoot  string `mapstructure:"proc_root"`
	Simulate  string `mapstructure:"simulate"` // e.g. "8p4e"
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// CaptureConfig controls the execution timeline recorder.
type CaptureConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
	// Compression is none, gzip or zstd.
	Compression string `mapstructure:"compression"`
	MaxEvents   int    `mapstructure:"max_events"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // for local storage
	Endpoint  string `mapstructure:"endpoint"`   // overrides the derived COS bucket URL
}

// ReportConfig holds the benchmark history database configuration.
type ReportConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Type     string `mapstructure:"type"` // sqlite, mysql or postgres
	Path     string `mapstructure:"path"` // sqlite file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// Load reads configuration from the specified file path. A missing file
// falls back to defaults and environment overrides.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("jobbench")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/jobsystem")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config file", err)
		}
	}

	return decode(v)
}

// LoadFromReader loads configuration from raw bytes (useful for testing).
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to read config", err)
	}
	return decode(v)
}

// Default returns the configuration produced by defaults alone.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "failed to unmarshal config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	d := jobs.DefaultConfig()

	// Scheduler defaults
	v.SetDefault("scheduler.reserved_cores", d.ReservedCores)
	v.SetDefault("scheduler.min_high_workers", d.MinHighWorkers)
	v.SetDefault("scheduler.min_low_workers", d.MinLowWorkers)
	v.SetDefault("scheduler.fallback_low_share", d.FallbackLowShare)
	v.SetDefault("scheduler.high_workers", 0)
	v.SetDefault("scheduler.low_workers", 0)
	v.SetDefault("scheduler.queue_capacity", d.QueueCapacity)
	v.SetDefault("scheduler.pending_capacity", d.PendingCapacity)
	v.SetDefault("scheduler.idle_spin_limit", d.IdleSpinLimit)
	v.SetDefault("scheduler.idle_sleep", d.IdleSleep)
	v.SetDefault("scheduler.pin_threads", d.PinThreads)

	// Hardware defaults
	v.SetDefault("hardware.sysfs_root", "/sys")
	v.SetDefault("hardware.proc_root", "/proc")
	v.SetDefault("hardware.simulate", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Capture defaults
	v.SetDefault("capture.enabled", false)
	v.SetDefault("capture.prefix", "captures")
	v.SetDefault("capture.compression", "zstd")
	v.SetDefault("capture.max_events", 65536)

	// Storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "./captures")

	// Report defaults
	v.SetDefault("report.enabled", false)
	v.SetDefault("report.type", "sqlite")
	v.SetDefault("report.path", "./jobbench.db")
	v.SetDefault("report.max_conns", 4)

	// Profiling defaults
	p := pprof.DefaultConfig()
	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.mode", string(p.Mode))
	v.SetDefault("profiling.profiles", []string{"cpu", "heap", "mutex"})
	v.SetDefault("profiling.output_dir", p.OutputDir)
	v.SetDefault("profiling.cpu_rate", p.CPURate)
	v.SetDefault("profiling.max_files", p.MaxFiles)
	v.SetDefault("profiling.addr", p.Addr)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Scheduler.ToJobsConfig().Validate(); err != nil {
		return err
	}

	if c.Log.Format != "text" && c.Log.Format != "json" {
		return apperrors.Newf(apperrors.CodeConfigError, "unsupported log format: %s", c.Log.Format)
	}

	if c.Capture.MaxEvents < 0 {
		return apperrors.Newf(apperrors.CodeConfigError, "capture max events must be >= 0")
	}

	if _, err := compression.ParseType(c.Capture.Compression); err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "capture compression", err)
	}

	// Storage config validation is delegated to storage package

	if c.Report.Enabled {
		switch c.Report.Type {
		case "sqlite":
			if c.Report.Path == "" {
				return apperrors.Newf(apperrors.CodeConfigError, "report path is required for sqlite")
			}
		case "mysql", "postgres":
			if c.Report.Host == "" {
				return apperrors.Newf(apperrors.CodeConfigError, "report host is required for %s", c.Report.Type)
			}
		default:
			return apperrors.Newf(apperrors.CodeConfigError, "unsupported report database type: %s", c.Report.Type)
		}
	}

	return c.Profiling.Validate()
}

// ToJobsConfig converts the scheduler section to a jobs.Config.
func (s SchedulerConfig) ToJobsConfig() jobs.Config {
	return jobs.Config{
		ReservedCores:    s.ReservedCores,
		MinHighWorkers:   s.MinHighWorkers,
		MinLowWorkers:    s.MinLowWorkers,
		FallbackLowShare: s.FallbackLowShare,
		HighWorkers:      s.HighWorkers,
		LowWorkers:       s.LowWorkers,
		QueueCapacity:    s.QueueCapacity,
		PendingCapacity:  s.PendingCapacity,
		IdleSpinLimit:    s.IdleSpinLimit,
		IdleSleep:        s.IdleSleep,
		PinThreads:       s.PinThreads,
	}
}
