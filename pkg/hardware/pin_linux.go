//go:build linux

package hardware

import (
	"golang.org/x/sys/unix"

	apperrors "github.com/playground-engine/jobsystem/pkg/errors"
)

// pinThread sets the affinity of the calling thread (tid 0) to one CPU.
func pinThread(coreID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(coreID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return apperrors.Wrap(apperrors.CodeTopologyError, "sched_setaffinity", err)
	}
	return nil
}
