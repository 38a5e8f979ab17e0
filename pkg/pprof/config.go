// Package pprof profiles the benchmark process while a workload runs.
// File mode records a CPU profile across the run and snapshots the other
// profiles when it stops. HTTP mode serves the standard pprof endpoints for
// on-demand collection.
package pprof

import (
	"strings"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

// ModeType defines the pprof collection mode.
type ModeType string

const (
	// ModeFile writes profile data to files when the collector stops.
	ModeFile ModeType = "file"
	// ModeHTTP exposes pprof endpoints via HTTP for on-demand collection.
	ModeHTTP ModeType = "http"
)

// ProfileType defines the type of profile to collect.
type ProfileType string

const (
	ProfileCPU       ProfileType = "cpu"
	ProfileHeap      ProfileType = "heap"
	ProfileGoroutine ProfileType = "goroutine"
	ProfileBlock     ProfileType = "block"
	ProfileMutex     ProfileType = "mutex"
	ProfileAllocs    ProfileType = "allocs"
)

// AllProfileTypes returns all supported profile types.
func AllProfileTypes() []ProfileType {
	return []ProfileType{
		ProfileCPU,
		ProfileHeap,
		ProfileGoroutine,
		ProfileBlock,
		ProfileMutex,
		ProfileAllocs,
	}
}

// DefaultProfileTypes returns the default profile types to collect.
// Mutex contention is included because Submit serialises on one lock.
func DefaultProfileTypes() []ProfileType {
	return []ProfileType{ProfileCPU, ProfileHeap, ProfileMutex}
}

// ParseProfileTypes parses a comma-separated string into profile types.
func ParseProfileTypes(s string) ([]ProfileType, error) {
	if strings.TrimSpace(s) == "" {
		return DefaultProfileTypes(), nil
	}

	valid := make(map[ProfileType]bool)
	for _, pt := range AllProfileTypes() {
		valid[pt] = true
	}

	parts := strings.Split(s, ",")
	types := make([]ProfileType, 0, len(parts))
	for _, p := range parts {
		pt := ProfileType(strings.TrimSpace(strings.ToLower(p)))
		if !valid[pt] {
			return nil, apperrors.Newf(apperrors.CodeInvalidInput, "unknown profile type: %q", p)
		}
		types = append(types, pt)
	}
	return types, nil
}

// Config holds the pprof configuration.
type Config struct {
	Enabled   bool          `mapstructure:"enabled"`
	Mode      ModeType      `mapstructure:"mode"`
	Profiles  []ProfileType `mapstructure:"profiles"`
	OutputDir string        `mapstructure:"output_dir"`
	// CPURate is the CPU sampling rate in Hz. Zero keeps the runtime default.
	CPURate int `mapstructure:"cpu_rate"`
	// MaxFiles is the number of files kept per profile type; 0 keeps all.
	MaxFiles int `mapstructure:"max_files"`
	// Addr is the listen address in HTTP mode.
	Addr string `mapstructure:"addr"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Mode:      ModeFile,
		Profiles:  DefaultProfileTypes(),
		OutputDir: "./pprof",
		MaxFiles:  10,
		Addr:      "localhost:6060",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.Mode {
	case ModeFile:
		if c.OutputDir == "" {
			return apperrors.New(apperrors.CodeConfigError, "pprof output directory is required")
		}
	case ModeHTTP:
		if c.Addr == "" {
			return apperrors.New(apperrors.CodeConfigError, "pprof HTTP address is required")
		}
	default:
		return apperrors.Newf(apperrors.CodeConfigError, "invalid pprof mode: %q (valid: file, http)", c.Mode)
	}

	if len(c.Profiles) == 0 {
		return apperrors.New(apperrors.CodeConfigError, "at least one profile type must be specified")
	}
	if c.CPURate < 0 || c.MaxFiles < 0 {
		return apperrors.New(apperrors.CodeConfigError, "pprof cpu rate and max files must be >= 0")
	}
	return nil
}

// HasProfile checks if a profile type is enabled.
func (c *Config) HasProfile(pt ProfileType) bool {
	for _, p := range c.Profiles {
		if p == pt {
			return true
		}
	}
	return false
}
