package distributed_lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLock_MutualExclusion(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()

	ok, err := lock.TryLock(ctx, "detection:v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	// 同键重复获取被拒绝
	ok, err = lock.TryLock(ctx, "detection:v1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// 不同键互不影响
	ok, err = lock.TryLock(ctx, "imputation:v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLock_UnlockReleases(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()

	ok, _ := lock.TryLock(ctx, "detection:v1", time.Minute)
	require.True(t, ok)

	require.NoError(t, lock.Unlock(ctx, "detection:v1"))

	ok, err := lock.TryLock(ctx, "detection:v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLock_ExpiredHoldIsReacquirable(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()

	ok, _ := lock.TryLock(ctx, "detection:v1", 10*time.Millisecond)
	require.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	ok, err := lock.TryLock(ctx, "detection:v1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLock_Close(t *testing.T) {
	lock := NewLocalLock()
	assert.NoError(t, lock.Close())
}
