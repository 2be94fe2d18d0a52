package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexLock_LockUnlock(t *testing.T) {
	dir := t.TempDir()
	lock := NewIndexLock(dir)

	require.NoError(t, lock.Lock())
	assert.True(t, lock.IsLocked())

	require.NoError(t, lock.Unlock())
	assert.False(t, lock.IsLocked())

	// Unlock is idempotent
	require.NoError(t, lock.Unlock())
}

func TestIndexLock_TryLock(t *testing.T) {
	dir := t.TempDir()
	lock := NewIndexLock(dir)

	acquired, err := lock.TryLock()
	require.NoError(t, err)
	assert.True(t, acquired)

	require.NoError(t, lock.Unlock())
}

func TestIndexLock_Path(t *testing.T) {
	lock := NewIndexLock("/tmp/apidex-data")
	assert.Equal(t, "/tmp/apidex-data/.index.lock", lock.Path())
}
