//go:build !unix && !windows

package platform

import (
	"fmt"
	"runtime"
)

func acquireRadioLock(_ string, _ lockOwner) (RadioLock, error) {
	return nil, fmt.Errorf("%w on %s", ErrRadioLockUnsupported, runtime.GOOS)
}
