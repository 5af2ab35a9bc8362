// Package instance keeps a second launcher from running on the same machine.
package instance

import "errors"

// ErrAlreadyRunning is returned by Acquire when another launcher holds the lock
var ErrAlreadyRunning = errors.New("another launcher instance is already running")

// MutexName is the machine-wide mutex used on Windows
const MutexName = `Global\MBBSLauncher_SingleInstance_E4F2A1B9`
