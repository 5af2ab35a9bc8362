//go:build !windows

package instance

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestAcquire_WritesPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launcher.lock")

	l, err := Acquire(path)
	require.NoError(t, err)
	defer l.Release()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), strings.TrimSpace(string(data)))
}

func TestRelease_KeepsFileSoWaitersShareTheLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launcher.lock")

	first, err := Acquire(path)
	require.NoError(t, err)

	// A second launcher that opened the file but has not locked it yet.
	waiter, err := os.OpenFile(path, os.O_RDWR, 0o644)
	require.NoError(t, err)
	defer waiter.Close()

	require.NoError(t, first.Release())
	assert.FileExists(t, path)

	require.NoError(t, unix.Flock(int(waiter.Fd()), unix.LOCK_EX|unix.LOCK_NB))

	// A third launcher must see the waiter's lock, not a fresh file.
	_, err = Acquire(path)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, unix.Flock(int(waiter.Fd()), unix.LOCK_UN))
	again, err := Acquire(path)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}
