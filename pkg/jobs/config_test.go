package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.ReservedCores)
	assert.Equal(t, 2, cfg.MinHighWorkers)
	assert.Equal(t, 1, cfg.MinLowWorkers)
	assert.Equal(t, 0.25, cfg.FallbackLowShare)
	assert.Equal(t, 100, cfg.IdleSpinLimit)
	assert.Equal(t, time.Millisecond, cfg.IdleSleep)
	assert.True(t, cfg.PinThreads)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative reservation", func(c *Config) { c.ReservedCores = -1 }},
		{"zero min high", func(c *Config) { c.MinHighWorkers = 0 }},
		{"zero min low", func(c *Config) { c.MinLowWorkers = 0 }},
		{"share too large", func(c *Config) { c.FallbackLowShare = 1 }},
		{"negative share", func(c *Config) { c.FallbackLowShare = -0.1 }},
		{"negative override", func(c *Config) { c.LowWorkers = -2 }},
		{"zero queue capacity", func(c *Config) { c.QueueCapacity = 0 }},
		{"negative pending capacity", func(c *Config) { c.PendingCapacity = -1 }},
		{"negative idle sleep", func(c *Config) { c.IdleSleep = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.True(t, apperrors.IsConfigError(cfg.Validate()))
		})
	}
}

func TestParsePriority(t *testing.T) {
	for in, want := range map[string]Priority{"high": High, "H": High, "low": Low, "e": Low} {
		got, ok := ParsePriority(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParsePriority("urgent")
	assert.False(t, ok)
	assert.Equal(t, "low", Low.String())
}
