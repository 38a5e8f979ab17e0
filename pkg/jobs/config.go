package jobs

import (
	"time"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

// Config controls worker planning, queue sizing and idle behaviour.
type Config struct {
	// ReservedCores is the number of leading Performance cores left to the
	// caller's own threads (main, render).
	ReservedCores int
	// MinHighWorkers is the floor for the High tier.
	MinHighWorkers int
	// MinLowWorkers is the floor for the Low tier when there are no Efficient cores.
	MinLowWorkers int
	// FallbackLowShare is the share of High workers moved to the Low tier
	// when there are no Efficient cores.
	FallbackLowShare float64
	// HighWorkers and LowWorkers override the computed counts when > 0.
	HighWorkers int
	LowWorkers  int

	QueueCapacity   int
	PendingCapacity int

	// IdleSpinLimit is the number of empty polls a worker yields through
	// before it starts sleeping IdleSleep per poll.
	IdleSpinLimit int
	IdleSleep     time.Duration

	// PinThreads disables core pinning when false.
	PinThreads bool
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		ReservedCores:    2,
		MinHighWorkers:   2,
		MinLowWorkers:    1,
		FallbackLowShare: 0.25,
		QueueCapacity:    4096,
		PendingCapacity:  1024,
		IdleSpinLimit:    100,
		IdleSleep:        time.Millisecond,
		PinThreads:       true,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.ReservedCores < 0:
		return apperrors.Newf(apperrors.CodeConfigError, "reserved cores must be >= 0, got %d", c.ReservedCores)
	case c.MinHighWorkers < 1:
		return apperrors.Newf(apperrors.CodeConfigError, "min high workers must be >= 1, got %d", c.MinHighWorkers)
	case c.MinLowWorkers < 1:
		return apperrors.Newf(apperrors.CodeConfigError, "min low workers must be >= 1, got %d", c.MinLowWorkers)
	case c.FallbackLowShare < 0 || c.FallbackLowShare >= 1:
		return apperrors.Newf(apperrors.CodeConfigError, "fallback low share must be in [0, 1), got %v", c.FallbackLowShare)
	case c.HighWorkers < 0 || c.LowWorkers < 0:
		return apperrors.Newf(apperrors.CodeConfigError, "worker overrides must be >= 0")
	case c.QueueCapacity < 1:
		return apperrors.Newf(apperrors.CodeConfigError, "queue capacity must be >= 1, got %d", c.QueueCapacity)
	case c.PendingCapacity < 0:
		return apperrors.Newf(apperrors.CodeConfigError, "pending capacity must be >= 0, got %d", c.PendingCapacity)
	case c.IdleSpinLimit < 0 || c.IdleSleep < 0:
		return apperrors.Newf(apperrors.CodeConfigError, "idle policy must be non-negative")
	}
	return nil
}
