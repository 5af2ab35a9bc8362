//go:build windows

package instance

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

// Lock holds the machine-wide named mutex
type Lock struct {
	handle windows.Handle
}

// Acquire creates the named mutex. path is unused on Windows. When the mutex
// already exists ErrAlreadyRunning is returned.
func Acquire(path string) (*Lock, error) {
	name, err := windows.UTF16PtrFromString(MutexName)
	if err != nil {
		return nil, err
	}

	h, err := windows.CreateMutex(nil, true, name)
	if err != nil {
		if h != 0 {
			windows.CloseHandle(h)
		}
		if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to create mutex: %w", err)
	}

	return &Lock{handle: h}, nil
}

// Release releases and closes the mutex
func (l *Lock) Release() error {
	if l == nil || l.handle == 0 {
		return nil
	}
	windows.ReleaseMutex(l.handle)
	err := windows.CloseHandle(l.handle)
	l.handle = 0
	return err
}
