package tab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLock_LockUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fstab")

	l := NewFileLock(path)
	require.NoError(t, l.Lock())

	// The sidecar file exists while held.
	_, err := os.Stat(path + ".lock")
	assert.NoError(t, err)

	require.NoError(t, l.Unlock())

	// Reacquiring after release works.
	require.NoError(t, l.Lock())
	require.NoError(t, l.Unlock())
}

func TestFileLock_DoubleLock(t *testing.T) {
	l := NewFileLock(filepath.Join(t.TempDir(), "fstab"))
	require.NoError(t, l.Lock())
	defer l.Unlock()

	assert.Error(t, l.Lock(), "locking a held lock must fail, not deadlock")
}

func TestFileLock_TryLockContention(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fstab")

	holder := NewFileLock(path)
	require.NoError(t, holder.Lock())

	// flock is per open file description, so a second descriptor in the
	// same process contends like another process would.
	contender := NewFileLock(path)
	ok, err := contender.TryLock()
	require.NoError(t, err)
	assert.False(t, ok, "lock is held elsewhere")

	require.NoError(t, holder.Unlock())

	ok, err = contender.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, contender.Unlock())
}

func TestFileLock_UnlockUnheld(t *testing.T) {
	l := NewFileLock(filepath.Join(t.TempDir(), "fstab"))
	assert.NoError(t, l.Unlock())
}
