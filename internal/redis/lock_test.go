package redisclient

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBranchDayLocker(client, 5*time.Second), client, mr
}

func TestWithBranchDayLockRunsAndReleases(t *testing.T) {
	locker, client, _ := newTestLocker(t)
	branchID := uuid.New()
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	key := fmt.Sprintf("lock:branch:%s:2026-03-02", branchID)

	ran := false
	err := locker.WithBranchDayLock(context.Background(), branchID, date, func(ctx context.Context) error {
		ran = true
		held, err := client.Exists(ctx, key).Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), held)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)

	held, err := client.Exists(context.Background(), key).Result()
	require.NoError(t, err)
	assert.Zero(t, held)
}

func TestWithBranchDayLockContended(t *testing.T) {
	locker, _, _ := newTestLocker(t)
	branchID := uuid.New()
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)

	err := locker.WithBranchDayLock(context.Background(), branchID, date, func(ctx context.Context) error {
		return locker.WithBranchDayLock(ctx, branchID, date, func(ctx context.Context) error {
			t.Fatal("second holder must not run while the lock is held")
			return nil
		})
	})
	assert.ErrorIs(t, err, ErrLockNotAcquired)
}

func TestWithBranchDayLockPerBranchDay(t *testing.T) {
	locker, _, _ := newTestLocker(t)
	branchA, branchB := uuid.New(), uuid.New()
	monday := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)

	// Another branch or another date does not contend.
	err := locker.WithBranchDayLock(context.Background(), branchA, monday, func(ctx context.Context) error {
		if err := locker.WithBranchDayLock(ctx, branchB, monday, func(context.Context) error { return nil }); err != nil {
			return err
		}
		return locker.WithBranchDayLock(ctx, branchA, tuesday, func(context.Context) error { return nil })
	})
	assert.NoError(t, err)
}

func TestWithBranchDayLockReleaseIsTokenChecked(t *testing.T) {
	locker, client, mr := newTestLocker(t)
	branchID := uuid.New()
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	key := fmt.Sprintf("lock:branch:%s:2026-03-02", branchID)

	err := locker.WithBranchDayLock(context.Background(), branchID, date, func(ctx context.Context) error {
		// Simulate TTL expiry and takeover by another holder mid-section.
		mr.FastForward(10 * time.Second)
		return client.Set(ctx, key, "someone-else", time.Minute).Err()
	})
	require.NoError(t, err)

	// The deferred release must not delete a lock it no longer owns.
	val, err := client.Get(context.Background(), key).Result()
	require.NoError(t, err)
	assert.Equal(t, "someone-else", val)
}

func TestWithBranchDayLockPropagatesError(t *testing.T) {
	locker, client, _ := newTestLocker(t)
	branchID := uuid.New()
	date := time.Date(2026, time.March, 2, 0, 0, 0, 0, time.UTC)
	key := fmt.Sprintf("lock:branch:%s:2026-03-02", branchID)

	sentinel := fmt.Errorf("reservation failed")
	err := locker.WithBranchDayLock(context.Background(), branchID, date, func(ctx context.Context) error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	// Released even on failure.
	held, err := client.Exists(context.Background(), key).Result()
	require.NoError(t, err)
	assert.Zero(t, held)
}
