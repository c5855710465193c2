//go:build !integration

package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
)

func TestAllocator_AssignAndRelease(t *testing.T) {
	e := newEnv(t)
	p := e.platform("netflix", 4, false)
	acc := e.account(p.ID, nil, 0)
	sub, err := e.subs.Create(e.ctx, "user-1", e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 3}).ID)
	require.NoError(t, err)

	got, err := e.alloc.Assign(e.ctx, acc.ID, sub.ID, 3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, pr := range got {
		assert.Equal(t, i, pr.SlotIndex)
		assert.True(t, pr.IsAssigned)
		require.NotNil(t, pr.SubscriptionID)
		assert.Equal(t, sub.ID, *pr.SubscriptionID)
	}

	other, err := e.subs.Create(e.ctx, "user-2", e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 2}).ID)
	require.NoError(t, err)
	_, err = e.alloc.Assign(e.ctx, acc.ID, other.ID, 2)
	assert.ErrorIs(t, err, domain.ErrSlotsUnavailable)
	assert.ErrorIs(t, err, domain.ErrInsufficientCapacity)
	assert.Equal(t, 1, e.freeSlots(acc.ID), "a failed claim must not assign anything")

	n, err := e.alloc.Release(e.ctx, sub.ID, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 4, e.freeSlots(acc.ID))

	n, err = e.alloc.Release(e.ctx, sub.ID, acc.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "release is idempotent")
}

func TestAllocator_AssignStaysWithinOffer(t *testing.T) {
	t.Run("should refuse profiles beyond the offer's allowance", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 4, false)
		acc := e.account(p.ID, nil, 0)
		sub := e.activeSub(e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1}).ID)

		_, err := e.alloc.Assign(e.ctx, acc.ID, sub.ID, 3)
		assert.ErrorIs(t, err, domain.ErrAllowanceExceeded)
		assert.ErrorIs(t, err, domain.ErrInsufficientCapacity)
		assert.Equal(t, 3, e.freeSlots(acc.ID))
		assert.Equal(t, []int{0}, e.heldSlots(sub.ID))
	})

	t.Run("should refuse an account on a platform the offer does not cover", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 4, false)
		other := e.platform("disney", 4, false)
		acc := e.account(other.ID, nil, 0)
		sub, err := e.subs.Create(e.ctx, "user-1", e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1}).ID)
		require.NoError(t, err)

		_, err = e.alloc.Assign(e.ctx, acc.ID, sub.ID, 1)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		assert.Equal(t, 4, e.freeSlots(acc.ID))
	})

	t.Run("should refuse expired and superseded subscriptions", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 4, false)
		acc := e.account(p.ID, nil, 0)
		o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 2})

		renewed := e.activeSub(o.ID)
		_, err := e.subs.Renew(e.ctx, renewed.ID)
		require.NoError(t, err)
		_, err = e.alloc.Assign(e.ctx, acc.ID, renewed.ID, 1)
		assert.ErrorIs(t, err, domain.ErrSubscriptionClosed)
		assert.ErrorIs(t, err, domain.ErrInvalidState)

		expired := e.activeSub(o.ID)
		_, _, err = e.subs.ForceExpire(e.ctx, expired.ID)
		require.NoError(t, err)
		_, err = e.alloc.Assign(e.ctx, acc.ID, expired.ID, 1)
		assert.ErrorIs(t, err, domain.ErrSubscriptionClosed)
		assert.Equal(t, 2, e.freeSlots(acc.ID))
	})
}

func TestAllocator_AssignRejects(t *testing.T) {
	e := newEnv(t)
	p := e.platform("netflix", 4, false)
	acc := e.account(p.ID, nil, 0)
	sub, err := e.subs.Create(e.ctx, "user-1", e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1}).ID)
	require.NoError(t, err)

	_, err = e.alloc.Assign(e.ctx, acc.ID, sub.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = e.alloc.Assign(e.ctx, "missing", sub.ID, 1)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = e.alloc.Assign(e.ctx, acc.ID, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)

	require.NoError(t, e.accounts.SetStatus(e.ctx, acc.ID, model.AccountStatusInactive))
	_, err = e.alloc.Assign(e.ctx, acc.ID, sub.ID, 1)
	assert.ErrorIs(t, err, domain.ErrAccountUnavailable)
}

func TestAllocator_ReleaseAll(t *testing.T) {
	e := newEnv(t)
	p1 := e.platform("netflix", 4, false)
	p2 := e.platform("disney", 4, false)
	a1 := e.account(p1.ID, nil, 0)
	a2 := e.account(p2.ID, nil, 0)
	o := e.offer(30,
		model.OfferPlatform{PlatformID: p1.ID, ProfileCount: 2},
		model.OfferPlatform{PlatformID: p2.ID, ProfileCount: 1},
	)
	sub := e.activeSub(o.ID)

	n, err := e.alloc.ReleaseAll(e.ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 4, e.freeSlots(a1.ID))
	assert.Equal(t, 4, e.freeSlots(a2.ID))

	links, err := e.links.ListBySubscription(e.ctx, nil, sub.ID)
	require.NoError(t, err)
	for _, l := range links {
		assert.Equal(t, model.LinkStatusReleased, l.Status)
	}
}

func TestAllocator_DeleteProfile(t *testing.T) {
	e := newEnv(t)
	p := e.platform("netflix", 4, false)
	acc := e.account(p.ID, nil, 2)
	o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1})
	sub := e.activeSub(o.ID)

	held, err := e.profiles.ListBySubscription(e.ctx, nil, sub.ID)
	require.NoError(t, err)
	require.Len(t, held, 1)
	free, err := e.profiles.ListFree(e.ctx, nil, acc.ID)
	require.NoError(t, err)
	require.Len(t, free, 1)

	err = e.alloc.DeleteProfile(e.ctx, held[0].ID)
	assert.ErrorIs(t, err, domain.ErrSlotInUse)

	require.NoError(t, e.alloc.DeleteProfile(e.ctx, free[0].ID))
	n, err := e.profiles.CountByAccount(e.ctx, nil, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// the survivor is both assigned and the last slot; the last-slot rule wins
	err = e.alloc.DeleteProfile(e.ctx, held[0].ID)
	assert.ErrorIs(t, err, domain.ErrLastSlotProtected)

	err = e.alloc.DeleteProfile(e.ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}
