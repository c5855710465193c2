//go:build !integration

package sched_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamshare/internal/config"
	"streamshare/internal/domain/model"
	red "streamshare/internal/infra/redis"
	"streamshare/internal/infra/sched"
)

type mockSweeper struct {
	expired      int
	cleanupLimit int
	calls        []string
	ExpireErr    error
}

func (m *mockSweeper) ExpireDue(ctx context.Context) (int, error) {
	m.calls = append(m.calls, "expire")
	return m.expired, m.ExpireErr
}

func (m *mockSweeper) CleanupExpired(ctx context.Context, limit int) (int, error) {
	m.calls = append(m.calls, "cleanup")
	m.cleanupLimit = limit
	return 1, nil
}

type mockCards struct{ calls int }

func (m *mockCards) ExpireStale(ctx context.Context) (int64, error) {
	m.calls++
	return 2, nil
}

type mockInventory struct{ platform *string }

func (m *mockInventory) Inventory(ctx context.Context, platformID string) ([]model.SlotInventory, error) {
	m.platform = &platformID
	return nil, nil
}

type mockLocker struct {
	held     bool
	unlocked []string
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.held {
		return "", red.ErrLockHeld
	}
	return "tok", nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	m.unlocked = append(m.unlocked, key+"/"+token)
	return nil
}

func cfg(release bool) config.SchedulerConfig {
	return config.SchedulerConfig{ExpiryInterval: time.Minute, LockTTL: 2 * time.Minute, ReleaseExpiredSlots: release, CleanupBatch: 50}
}

func TestExpiryWorker_RunOnce(t *testing.T) {
	logger := zerolog.Nop()
	ctx := context.Background()

	t.Run("full sweep under the lock", func(t *testing.T) {
		subs := &mockSweeper{expired: 3}
		cards := &mockCards{}
		inv := &mockInventory{}
		lock := &mockLocker{}
		w := sched.NewExpiryWorker(cfg(true), subs, cards, inv, lock, &logger)

		require.NoError(t, w.RunOnce(ctx))
		assert.Equal(t, []string{"expire", "cleanup"}, subs.calls)
		assert.Equal(t, 50, subs.cleanupLimit)
		assert.Equal(t, 1, cards.calls)
		require.NotNil(t, inv.platform)
		assert.Equal(t, "", *inv.platform, "inventory refresh covers every platform")
		assert.Equal(t, []string{"lock:expiry-sweep/tok"}, lock.unlocked)
	})

	t.Run("cleanup only when configured", func(t *testing.T) {
		subs := &mockSweeper{}
		w := sched.NewExpiryWorker(cfg(false), subs, nil, nil, nil, &logger)
		require.NoError(t, w.RunOnce(ctx))
		assert.Equal(t, []string{"expire"}, subs.calls)
	})

	t.Run("held lock skips the tick", func(t *testing.T) {
		subs := &mockSweeper{}
		w := sched.NewExpiryWorker(cfg(true), subs, nil, nil, &mockLocker{held: true}, &logger)
		assert.ErrorIs(t, w.RunOnce(ctx), red.ErrLockHeld)
		assert.Empty(t, subs.calls)
	})

	t.Run("one failing step does not stop the others", func(t *testing.T) {
		boom := errors.New("db down")
		subs := &mockSweeper{ExpireErr: boom}
		cards := &mockCards{}
		w := sched.NewExpiryWorker(cfg(true), subs, cards, nil, nil, &logger)
		assert.ErrorIs(t, w.RunOnce(ctx), boom)
		assert.Equal(t, 1, cards.calls)
		assert.Contains(t, subs.calls, "cleanup")
	})
}

func TestExpiryWorker_RunStopsOnCancel(t *testing.T) {
	logger := zerolog.Nop()
	c := cfg(false)
	c.ExpiryInterval = 5 * time.Millisecond
	subs := &mockSweeper{}
	w := sched.NewExpiryWorker(c, subs, nil, nil, nil, &logger)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Run(ctx), context.DeadlineExceeded)
	assert.NotEmpty(t, subs.calls)
}
