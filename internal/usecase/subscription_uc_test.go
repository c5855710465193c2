//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/adapter"
	"streamshare/internal/domain/ports/repository"
	"streamshare/internal/usecase"
)

func TestSubscriptionUseCase_Create(t *testing.T) {
	e := newEnv(t)
	p := e.platform("netflix", 4, false)
	o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1})

	s, err := e.subs.Create(e.ctx, "user-1", o.ID)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.Status != model.SubscriptionStatusPending {
		t.Errorf("status = %s, want PENDING", s.Status)
	}
	if !s.StartDate.Equal(t0) || !s.EndDate.Equal(t0.Add(30*day)) {
		t.Errorf("window = %v..%v", s.StartDate, *s.EndDate)
	}
	if got := e.heldSlots(s.ID); len(got) != 0 {
		t.Errorf("pending subscription must not hold slots, holds %v", got)
	}

	if _, err := e.subs.Create(e.ctx, "user-1", "missing"); !errors.Is(err, domain.ErrOfferNotFound) {
		t.Errorf("expected ErrOfferNotFound, got %v", err)
	}
}

func TestSubscriptionUseCase_Activate(t *testing.T) {
	t.Run("should assign exactly the lowest slots the offer needs", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 4, false)
		acc := e.account(p.ID, nil, 0)
		o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 2})

		s := e.activeSub(o.ID)

		if s.Status != model.SubscriptionStatusActive {
			t.Fatalf("status = %s, want ACTIVE", s.Status)
		}
		if got := e.heldSlots(s.ID); !reflect.DeepEqual(got, []int{0, 1}) {
			t.Errorf("held slots = %v, want [0 1]", got)
		}
		if got := e.freeSlots(acc.ID); got != 2 {
			t.Errorf("free slots = %d, want 2", got)
		}
		links, _ := e.links.ListBySubscription(e.ctx, nil, s.ID)
		if len(links) != 1 || links[0].AccountID != acc.ID || links[0].Status != model.LinkStatusActive {
			t.Errorf("unexpected links %+v", links)
		}
	})

	t.Run("should re-anchor the window at activation time", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 4, false)
		e.account(p.ID, nil, 0)
		o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1})

		s, err := e.subs.Create(e.ctx, "user-1", o.ID)
		e.must(err)
		e.clock.Advance(3 * day)
		s, err = e.subs.Activate(e.ctx, s.ID)
		e.must(err)
		if !s.StartDate.Equal(t0.Add(3*day)) || !s.EndDate.Equal(t0.Add(33*day)) {
			t.Errorf("window = %v..%v", s.StartDate, *s.EndDate)
		}
	})

	t.Run("should fail as a whole when one platform cannot be served", func(t *testing.T) {
		e := newEnv(t)
		p1 := e.platform("netflix", 4, false)
		p2 := e.platform("disney", 4, false)
		acc1 := e.account(p1.ID, nil, 0)
		acc2 := e.account(p2.ID, nil, 1)
		o := e.offer(30,
			model.OfferPlatform{PlatformID: p1.ID, ProfileCount: 1},
			model.OfferPlatform{PlatformID: p2.ID, ProfileCount: 2},
		)
		s, err := e.subs.Create(e.ctx, "user-1", o.ID)
		e.must(err)

		_, err = e.subs.Activate(e.ctx, s.ID)
		if !errors.Is(err, domain.ErrAllocationFailed) || !errors.Is(err, domain.ErrInsufficientCapacity) {
			t.Fatalf("expected ErrAllocationFailed, got %v", err)
		}
		var de *domain.Error
		if !errors.As(err, &de) || de.Entity != p2.ID {
			t.Errorf("error must name the platform, got %v", err)
		}
		if e.freeSlots(acc1.ID) != 4 || e.freeSlots(acc2.ID) != 1 {
			t.Error("failed activation must not leave slots assigned")
		}
		cur, _ := e.subs.Get(e.ctx, s.ID)
		if cur.Status != model.SubscriptionStatusPending {
			t.Errorf("status = %s, want PENDING", cur.Status)
		}
	})

	t.Run("should pick the best fitting account", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 5, false)
		roomy := e.account(p.ID, nil, 5)
		tight := e.account(p.ID, nil, 2)
		too := e.account(p.ID, nil, 1)
		o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 2})

		e.activeSub(o.ID)

		if e.freeSlots(tight.ID) != 0 {
			t.Error("expected the 2-slot account to be filled")
		}
		if e.freeSlots(roomy.ID) != 5 || e.freeSlots(too.ID) != 1 {
			t.Error("other accounts must be untouched")
		}
	})

	t.Run("should skip unusable accounts", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 4, false)
		suspended := e.account(p.ID, nil, 0)
		expired := e.account(p.ID, nil, 0)
		e.must(e.accounts.SetStatus(e.ctx, suspended.ID, model.AccountStatusSuspended))
		past := t0.Add(-day)
		expired.ExpiresAt = &past
		e.must(e.accountsRepo.Save(e.ctx, nil, expired))
		o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1})

		s, err := e.subs.Create(e.ctx, "user-1", o.ID)
		e.must(err)
		if _, err := e.subs.Activate(e.ctx, s.ID); !errors.Is(err, domain.ErrAllocationFailed) {
			t.Fatalf("expected ErrAllocationFailed, got %v", err)
		}
		good := e.account(p.ID, nil, 0)
		if _, err := e.subs.Activate(e.ctx, s.ID); err != nil {
			t.Fatalf("Activate: %v", err)
		}
		if e.freeSlots(good.ID) != 3 {
			t.Error("expected the usable account to serve the subscription")
		}
	})

	t.Run("should refuse to activate twice", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 4, false)
		e.account(p.ID, nil, 0)
		o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1})
		s := e.activeSub(o.ID)
		if _, err := e.subs.Activate(e.ctx, s.ID); !errors.Is(err, domain.ErrInvalidState) {
			t.Errorf("expected InvalidState, got %v", err)
		}
	})
}

func TestSubscriptionUseCase_ConcurrentActivationNeverExceedsCapacity(t *testing.T) {
	e := newEnv(t)
	p := e.platform("netflix", 4, false)
	acc := e.account(p.ID, nil, 0)
	o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1})

	const n = 12
	ids := make([]string, n)
	for i := range ids {
		s, err := e.subs.Create(e.ctx, "user", o.ID)
		e.must(err)
		ids[i] = s.ID
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, failed := 0, 0
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := e.subs.Activate(context.Background(), id)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrAllocationFailed):
				failed++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	if ok != 4 || failed != n-4 {
		t.Errorf("activated %d, failed %d; want 4 and %d", ok, failed, n-4)
	}
	inv, err := e.accounts.Inventory(e.ctx, p.ID)
	e.must(err)
	if len(inv) != 1 || inv[0].AccountID != acc.ID || inv[0].Assigned != 4 || inv[0].Total != 4 {
		t.Errorf("inventory = %+v", inv)
	}
}

func TestSubscriptionUseCase_Renew(t *testing.T) {
	t.Run("should carry over the remaining days and transfer the slots", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 4, false)
		acc := e.account(p.ID, nil, 0)
		o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 2})
		old := e.activeSub(o.ID)

		e.clock.Advance(20 * day) // 10 days left
		now := e.clock.Now()

		next, err := e.subs.Renew(e.ctx, old.ID)
		if err != nil {
			t.Fatalf("Renew: %v", err)
		}
		if next.Status != model.SubscriptionStatusPending {
			t.Errorf("successor status = %s, want PENDING", next.Status)
		}
		if !next.EndDate.Equal(now.Add(40 * day)) {
			t.Errorf("successor end = %v, want now+40d", *next.EndDate)
		}
		if next.RenewedFromID == nil || *next.RenewedFromID != old.ID {
			t.Error("successor must point back to the old subscription")
		}

		prev, err := e.subsRepo.FindByID(e.ctx, nil, old.ID)
		e.must(err)
		if prev.Status != model.SubscriptionStatusExpired || !prev.EndDate.Equal(now) || prev.AutoRenew {
			t.Errorf("old subscription = %+v", prev)
		}
		if prev.RenewedToID == nil || *prev.RenewedToID != next.ID {
			t.Error("old subscription must point to its successor")
		}

		if got := e.heldSlots(next.ID); !reflect.DeepEqual(got, []int{0, 1}) {
			t.Errorf("successor holds %v, want [0 1]", got)
		}
		if got := e.heldSlots(old.ID); len(got) != 0 {
			t.Errorf("old subscription still holds %v", got)
		}
		if e.freeSlots(acc.ID) != 2 {
			t.Error("renewal must not consume extra slots")
		}
		links, _ := e.links.ListBySubscription(e.ctx, nil, next.ID)
		if len(links) != 1 || links[0].Status != model.LinkStatusActive {
			t.Errorf("successor links = %+v", links)
		}
		if len(e.orders.Requests) != 1 || e.orders.Requests[0].SubscriptionID != next.ID {
			t.Errorf("order requests = %+v", e.orders.Requests)
		}

		// activating the successor allocates nothing new
		act, err := e.subs.Activate(e.ctx, next.ID)
		e.must(err)
		if !act.EndDate.Equal(now.Add(40 * day)) {
			t.Errorf("activated successor end = %v", *act.EndDate)
		}
		if e.freeSlots(acc.ID) != 2 {
			t.Error("activating a renewal must reuse the transferred slots")
		}
	})

	t.Run("should renew an expired subscription with nothing carried", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 4, false)
		e.account(p.ID, nil, 0)
		o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1})
		old := e.activeSub(o.ID)
		e.clock.Advance(45 * day)
		_, err := e.subs.ExpireDue(e.ctx)
		e.must(err)

		next, err := e.subs.Renew(e.ctx, old.ID)
		e.must(err)
		if !next.EndDate.Equal(e.clock.Now().Add(30 * day)) {
			t.Errorf("end = %v, want now+30d", *next.EndDate)
		}
	})

	t.Run("should reject subscriptions that cannot be renewed", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 4, false)
		e.account(p.ID, nil, 0)
		o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1})

		pending, err := e.subs.Create(e.ctx, "user-1", o.ID)
		e.must(err)
		if _, err := e.subs.Renew(e.ctx, pending.ID); !errors.Is(err, domain.ErrNotRenewable) {
			t.Errorf("pending: expected ErrNotRenewable, got %v", err)
		}

		active := e.activeSub(o.ID)
		_, err = e.subs.Renew(e.ctx, active.ID)
		e.must(err)
		if _, err := e.subs.Renew(e.ctx, active.ID); !errors.Is(err, domain.ErrNotRenewable) {
			t.Errorf("superseded: expected ErrNotRenewable, got %v", err)
		}
		if _, err := e.subs.Renew(e.ctx, "missing"); !errors.Is(err, domain.ErrSubscriptionNotFound) {
			t.Errorf("missing: expected not found, got %v", err)
		}
	})

	t.Run("should leave the old subscription untouched when the slot transfer fails", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 4, false)
		acc := e.account(p.ID, nil, 0)
		o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 2})
		old := e.activeSub(o.ID)
		e.clock.Advance(20 * day)

		profiles := &MockProfileRepository{
			ProfileRepository: e.profiles,
			ReassignFunc: func(ctx context.Context, tx repository.Tx, from, to string, now time.Time) (int, error) {
				return 0, errors.New("disk full")
			},
		}
		log := newTestLogger()
		alloc := usecase.NewAllocator(e.accountsRepo, profiles, e.links, e.subsRepo, e.offers, e.store, e.clock, log)
		subs := usecase.NewSubscriptionUseCase(e.subsRepo, e.offers, e.accountsRepo, profiles, e.links, alloc, e.orders, e.store, e.clock, log)

		if _, err := subs.Renew(e.ctx, old.ID); err == nil {
			t.Fatal("Renew must fail when the slots cannot move")
		}

		prev, err := e.subsRepo.FindByID(e.ctx, nil, old.ID)
		e.must(err)
		if prev.Status != model.SubscriptionStatusActive || prev.RenewedToID != nil {
			t.Errorf("old subscription changed: %+v", prev)
		}
		if !prev.EndDate.Equal(*old.EndDate) {
			t.Errorf("old end moved to %v", *prev.EndDate)
		}
		if got := e.heldSlots(old.ID); !reflect.DeepEqual(got, []int{0, 1}) {
			t.Errorf("old subscription holds %v, want [0 1]", got)
		}
		if e.freeSlots(acc.ID) != 2 {
			t.Error("failed renewal must not touch the inventory")
		}
		all, err := e.subsRepo.ListByUser(e.ctx, nil, "user-1")
		e.must(err)
		if len(all) != 1 {
			t.Errorf("found %d subscriptions, want no successor", len(all))
		}
		links, _ := e.links.ListBySubscription(e.ctx, nil, old.ID)
		if len(links) != 1 || links[0].Status != model.LinkStatusActive {
			t.Errorf("old links = %+v", links)
		}
		if len(e.orders.Requests) != 0 {
			t.Errorf("no order may be placed, got %+v", e.orders.Requests)
		}
	})

	t.Run("should keep the renewal when the order collaborator fails", func(t *testing.T) {
		e := newEnv(t)
		p := e.platform("netflix", 4, false)
		e.account(p.ID, nil, 0)
		o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1})
		old := e.activeSub(o.ID)
		e.orders.CreateRenewalOrderFunc = func(ctx context.Context, req adapter.OrderRequest) error {
			return errors.New("billing down")
		}

		next, err := e.subs.Renew(e.ctx, old.ID)
		if err != nil {
			t.Fatalf("Renew must succeed, got %v", err)
		}
		if cur, _ := e.subsRepo.FindByID(e.ctx, nil, next.ID); cur == nil {
			t.Error("successor must be persisted")
		}
	})
}

func TestSubscriptionUseCase_Expiry(t *testing.T) {
	e := newEnv(t)
	p := e.platform("netflix", 4, false)
	acc := e.account(p.ID, nil, 0)
	o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 2})
	a := e.activeSub(o.ID)
	b := e.activeSub(o.ID)

	e.clock.Advance(31 * day)

	got, err := e.subs.Get(e.ctx, a.ID)
	e.must(err)
	if got.Status != model.SubscriptionStatusExpired {
		t.Errorf("Get must expire lazily, status = %s", got.Status)
	}

	n, err := e.subs.ExpireDue(e.ctx)
	e.must(err)
	if n != 1 {
		t.Errorf("sweep expired %d, want 1 (a was already expired)", n)
	}
	if n, _ := e.subs.ExpireDue(e.ctx); n != 0 {
		t.Errorf("second sweep expired %d, want 0", n)
	}

	// profiles stay linked until cleanup
	if e.freeSlots(acc.ID) != 0 {
		t.Error("expiry alone must not release slots")
	}
	released, err := e.subs.Cleanup(e.ctx, a.ID)
	e.must(err)
	if released != 2 || e.freeSlots(acc.ID) != 2 {
		t.Errorf("released %d, free %d", released, e.freeSlots(acc.ID))
	}
	cleaned, err := e.subs.CleanupExpired(e.ctx, 10)
	e.must(err)
	if cleaned != 1 || e.freeSlots(acc.ID) != 4 {
		t.Errorf("cleaned %d, free %d", cleaned, e.freeSlots(acc.ID))
	}
	links, _ := e.links.ListBySubscription(e.ctx, nil, b.ID)
	if len(links) != 1 || links[0].Status != model.LinkStatusReleased {
		t.Errorf("links after cleanup = %+v", links)
	}

	fresh := e.activeSub(o.ID)
	if _, err := e.subs.Cleanup(e.ctx, fresh.ID); !errors.Is(err, domain.ErrNotExpired) {
		t.Errorf("cleanup of an active subscription: got %v", err)
	}
}

func TestSubscriptionUseCase_ForceExpire(t *testing.T) {
	e := newEnv(t)
	p := e.platform("netflix", 4, false)
	acc := e.account(p.ID, nil, 0)
	o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 2})
	s := e.activeSub(o.ID)

	e.clock.Advance(5 * day)
	got, released, err := e.subs.ForceExpire(e.ctx, s.ID)
	e.must(err)
	if got.Status != model.SubscriptionStatusExpired || !got.EndDate.Equal(t0.Add(5*day)) {
		t.Errorf("after override: %s until %v", got.Status, *got.EndDate)
	}
	if released != 2 || e.freeSlots(acc.ID) != 4 {
		t.Errorf("released %d, free %d", released, e.freeSlots(acc.ID))
	}
	if _, _, err := e.subs.ForceExpire(e.ctx, s.ID); !errors.Is(err, domain.ErrBadTransition) {
		t.Errorf("second override: got %v", err)
	}

	pending, err := e.subs.Create(e.ctx, "user-1", o.ID)
	e.must(err)
	got, released, err = e.subs.ForceExpire(e.ctx, pending.ID)
	e.must(err)
	if got.Status != model.SubscriptionStatusExpired || released != 0 {
		t.Errorf("pending override: %s, released %d", got.Status, released)
	}
}

func TestSubscriptionUseCase_ListAndAutoRenew(t *testing.T) {
	e := newEnv(t)
	p := e.platform("netflix", 4, false)
	e.account(p.ID, nil, 0)
	o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1})
	s := e.activeSub(o.ID)

	s, err := e.subs.SetAutoRenew(e.ctx, s.ID, true)
	e.must(err)
	if !s.AutoRenew {
		t.Error("auto renew not set")
	}
	next, err := e.subs.Renew(e.ctx, s.ID)
	e.must(err)
	if !next.AutoRenew {
		t.Error("successor must inherit auto renew")
	}
	if _, err := e.subs.SetAutoRenew(e.ctx, s.ID, true); !errors.Is(err, domain.ErrNotRenewable) {
		t.Errorf("expired subscription cannot auto renew, got %v", err)
	}

	list, err := e.subs.ListByUser(e.ctx, "user-1")
	e.must(err)
	if len(list) != 2 {
		t.Errorf("ListByUser returned %d subscriptions", len(list))
	}
}

func TestSubscriptionUseCase_RetriesConflictOnce(t *testing.T) {
	setup := func(failures int) (*env, *flakyTxManager, string) {
		var flaky *flakyTxManager
		e := newEnvWithTM(t, func(inner repository.TransactionManager) repository.TransactionManager {
			flaky = &flakyTxManager{inner: inner}
			return flaky
		})
		p := e.platform("netflix", 4, false)
		e.account(p.ID, nil, 0)
		o := e.offer(30, model.OfferPlatform{PlatformID: p.ID, ProfileCount: 1})
		s, err := e.subs.Create(e.ctx, "user-1", o.ID)
		e.must(err)
		flaky.Calls = 0
		flaky.Failures = failures
		return e, flaky, s.ID
	}

	e, flaky, id := setup(1)
	if _, err := e.subs.Activate(e.ctx, id); err != nil {
		t.Fatalf("one conflict must be absorbed, got %v", err)
	}
	if flaky.Calls != 2 {
		t.Errorf("transactions = %d, want 2", flaky.Calls)
	}

	e, flaky, id = setup(2)
	if _, err := e.subs.Activate(e.ctx, id); !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("second conflict must surface, got %v", err)
	}
	if flaky.Calls != 2 {
		t.Errorf("transactions = %d, want 2", flaky.Calls)
	}
}
