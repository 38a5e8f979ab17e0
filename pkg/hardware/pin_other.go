//go:build !linux

package hardware

import apperrors "github.com/playground-engine/jobsystem/pkg/errors"

func pinThread(coreID int) error {
	return apperrors.ErrPinUnsupported
}
