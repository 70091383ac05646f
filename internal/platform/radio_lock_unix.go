//go:build unix && !windows

package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

type unixRadioLock struct {
	file *os.File
}

func acquireRadioLock(name string, owner lockOwner) (RadioLock, error) {
	lockPath, err := unixRadioLockPath(name)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- lockPath is built from process-owned runtime/temp directories.
	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open radio lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		holder := readLockHolder(file)
		_ = file.Close()
		if isUnixLockContention(err) {
			return nil, busyError(holder)
		}

		return nil, fmt.Errorf("acquire radio file lock: %w", err)
	}

	lock := &unixRadioLock{file: file}
	if err := writeLockHolder(file, owner); err != nil {
		_ = lock.Release()

		return nil, err
	}

	return lock, nil
}

func writeLockHolder(file *os.File, owner lockOwner) error {
	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("truncate radio lock file: %w", err)
	}
	if _, err := file.WriteAt([]byte(owner.String()+"\n"), 0); err != nil {
		return fmt.Errorf("write radio lock owner: %w", err)
	}

	return nil
}

// readLockHolder returns the first line the holder wrote, if any.
func readLockHolder(file *os.File) string {
	buf := make([]byte, 256)
	n, _ := file.ReadAt(buf, 0)
	line, _, _ := strings.Cut(string(buf[:n]), "\n")

	return strings.TrimSpace(line)
}

func (l *unixRadioLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	fd := int(l.file.Fd())
	unlockErr := syscall.Flock(fd, syscall.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	if unlockErr != nil && !errors.Is(unlockErr, syscall.EBADF) {
		return fmt.Errorf("unlock radio file lock: %w", unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close radio lock file: %w", closeErr)
	}

	return nil
}

// unixRadioLockPath keeps one lock file per radio in the user's runtime dir,
// or in a per-uid temp dir when XDG_RUNTIME_DIR is unset.
func unixRadioLockPath(name string) (string, error) {
	lockDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if lockDir != "" {
		lockDir = filepath.Join(lockDir, "advchat")
	} else {
		lockDir = filepath.Join(os.TempDir(), "advchat-"+strconv.Itoa(os.Getuid()))
	}

	if err := os.MkdirAll(lockDir, 0o700); err != nil {
		return "", fmt.Errorf("create radio lock dir: %w", err)
	}

	return filepath.Join(lockDir, name+".lock"), nil
}

func isUnixLockContention(err error) bool {
	return errors.Is(err, syscall.EWOULDBLOCK) || errors.Is(err, syscall.EAGAIN)
}
