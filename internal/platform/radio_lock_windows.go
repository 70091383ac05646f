//go:build windows

package platform

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

type windowsRadioLock struct {
	handle windows.Handle
}

// Named mutexes carry no payload, so owner details are not recorded here.
func acquireRadioLock(name string, _ lockOwner) (RadioLock, error) {
	sid, err := windowsCurrentUserSID()
	if err != nil {
		return nil, err
	}

	namePtr, err := windows.UTF16PtrFromString(windowsRadioMutexName(name, sid))
	if err != nil {
		return nil, fmt.Errorf("encode radio mutex name: %w", err)
	}

	handle, err := windows.CreateMutex(nil, false, namePtr)
	if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
		if handle != 0 {
			_ = windows.CloseHandle(handle)
		}

		return nil, ErrRadioBusy
	}
	if err != nil {
		if handle != 0 {
			_ = windows.CloseHandle(handle)
		}

		return nil, fmt.Errorf("create radio mutex: %w", err)
	}

	return &windowsRadioLock{handle: handle}, nil
}

func (l *windowsRadioLock) Release() error {
	if l == nil || l.handle == 0 {
		return nil
	}

	err := windows.CloseHandle(l.handle)
	l.handle = 0
	if err != nil {
		return fmt.Errorf("close radio mutex handle: %w", err)
	}

	return nil
}

func windowsCurrentUserSID() (string, error) {
	token := windows.GetCurrentProcessToken()
	tokenUser, err := token.GetTokenUser()
	if err != nil {
		return "", fmt.Errorf("read current user token: %w", err)
	}

	return tokenUser.User.Sid.String(), nil
}

func windowsRadioMutexName(name, userSID string) string {
	return `Local\` + name + `-radio-v1-` + normalizeLockComponent(userSID, "sid")
}
