// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"streamshare/internal/domain"
	"streamshare/internal/domain/entitlement"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/adapter"
	"streamshare/internal/domain/ports/repository"
	"streamshare/internal/infra/logging"
	"streamshare/internal/infra/metrics"
)

// Compile-time check
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase drives a subscription through PENDING -> ACTIVE -> EXPIRED
// and replaces it on renewal without losing paid time.
type SubscriptionUseCase interface {
	Create(ctx context.Context, userID, offerID string) (*model.Subscription, error)
	Activate(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	Renew(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	Cleanup(ctx context.Context, subscriptionID string) (int, error)
	// ForceExpire ends a PENDING or ACTIVE subscription immediately and frees its slots.
	ForceExpire(ctx context.Context, subscriptionID string) (*model.Subscription, int, error)
	SetAutoRenew(ctx context.Context, subscriptionID string, on bool) (*model.Subscription, error)
	Get(ctx context.Context, subscriptionID string) (*model.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error)

	// ExpireDue is the periodic sweep; it returns how many subscriptions it expired.
	ExpireDue(ctx context.Context) (int, error)
	// CleanupExpired releases the slots of up to limit expired subscriptions.
	CleanupExpired(ctx context.Context, limit int) (int, error)
}

type subscriptionUC struct {
	subs     repository.SubscriptionRepository
	offers   repository.OfferRepository
	accounts repository.AccountRepository
	profiles repository.ProfileRepository
	links    repository.SubscriptionAccountRepository
	alloc    *allocator
	orders   adapter.OrderCreator
	tm       repository.TransactionManager
	clock    domain.Clock
	log      *zerolog.Logger
}

func NewSubscriptionUseCase(
	subs repository.SubscriptionRepository,
	offers repository.OfferRepository,
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	links repository.SubscriptionAccountRepository,
	alloc *allocator,
	orders adapter.OrderCreator,
	tm repository.TransactionManager,
	clock domain.Clock,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{
		subs:     subs,
		offers:   offers,
		accounts: accounts,
		profiles: profiles,
		links:    links,
		alloc:    alloc,
		orders:   orders,
		tm:       tm,
		clock:    clock,
		log:      logging.Component(logger, "SubscriptionUC"),
	}
}

// Create records a PENDING subscription whose window starts now. No slots are
// allocated until payment is confirmed and the subscription is activated.
func (u *subscriptionUC) Create(ctx context.Context, userID, offerID string) (*model.Subscription, error) {
	offer, err := u.offers.FindByID(ctx, repository.NoTX, offerID)
	if err != nil {
		return nil, err
	}
	now := u.clock.Now()
	end, err := entitlement.EndDate(now, offer.Duration, offer.DurationUnit)
	if err != nil {
		return nil, err
	}
	sub, err := model.NewSubscription(userID, offer.ID, now, end)
	if err != nil {
		return nil, err
	}
	if err := u.subs.Save(ctx, repository.NoTX, sub); err != nil {
		return nil, err
	}
	metrics.IncSubscriptionTransition("created")
	u.log.Info().Str("subscription_id", sub.ID).Str("user_id", userID).Str("offer_id", offerID).Msg("subscription created")
	return sub, nil
}

// Activate allocates the slots the offer promises on every platform, or none.
func (u *subscriptionUC) Activate(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.Activate")()

	var sub *model.Subscription
	err := retryOnConflict(u.log, "activate", func() error {
		return u.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
			var err error
			sub, err = u.activateTx(ctx, tx, subscriptionID)
			return err
		})
	})
	log := logging.With(logging.WithSubscriptionID(ctx, subscriptionID), u.log)
	if err != nil {
		log.Warn().Err(err).Msg("activation failed")
		return nil, err
	}
	metrics.IncSubscriptionTransition("activated")
	log.Info().Time("end_date", *sub.EndDate).Msg("subscription activated")
	return sub, nil
}

func (u *subscriptionUC) activateTx(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.Subscription, error) {
	now := u.clock.Now()
	sub, err := u.subs.FindByIDForUpdate(ctx, tx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.Status != model.SubscriptionStatusPending {
		return nil, domain.ErrBadTransition.With(sub.ID)
	}
	offer, err := u.offers.FindByID(ctx, tx, sub.OfferID)
	if err != nil {
		return nil, err
	}

	// only renewals start out holding profiles
	held, err := u.alloc.heldPerPlatform(ctx, tx, sub.ID)
	if err != nil {
		return nil, err
	}
	for _, op := range offer.Platforms {
		need := op.ProfileCount - held[op.PlatformID]
		if need <= 0 {
			continue
		}
		if err := u.allocateOnPlatform(ctx, tx, sub.ID, op.PlatformID, need, now); err != nil {
			return nil, err
		}
	}

	// keep the window length, start it at activation time
	var window time.Duration
	if sub.EndDate != nil {
		window = sub.EndDate.Sub(sub.StartDate)
	} else {
		days, err := entitlement.WindowDays(offer.Duration, offer.DurationUnit)
		if err != nil {
			return nil, err
		}
		window = time.Duration(days) * entitlement.Day
	}
	end := now.Add(window)
	sub.StartDate = now
	sub.EndDate = &end
	if err := sub.TransitionTo(model.SubscriptionStatusActive, now); err != nil {
		return nil, err
	}
	if err := u.subs.Save(ctx, tx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// allocateOnPlatform claims need slots on the best fitting account: the one
// with the fewest free slots that still covers the request.
func (u *subscriptionUC) allocateOnPlatform(ctx context.Context, tx repository.Tx, subscriptionID, platformID string, need int, now time.Time) error {
	candidates, err := u.accounts.ListCandidates(ctx, tx, platformID, need, now)
	if err != nil {
		return err
	}
	raced := false
	for _, c := range candidates {
		_, err := u.alloc.assignTx(ctx, tx, c.AccountID, subscriptionID, need)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrSlotRace):
			raced = true
		case errors.Is(err, domain.ErrSlotsUnavailable):
		default:
			return err
		}
	}
	if raced {
		return domain.ErrSlotRace.With(platformID)
	}
	return domain.ErrAllocationFailed.With(platformID)
}

// Renew replaces the subscription with a PENDING successor that carries over
// the remaining days and takes over the same profiles.
func (u *subscriptionUC) Renew(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	defer logging.TraceDuration(u.log, "SubscriptionUC.Renew")()

	var next *model.Subscription
	var offer *model.Offer
	var carried int
	err := retryOnConflict(u.log, "renew", func() error {
		return u.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
			var err error
			next, offer, carried, err = u.renewTx(ctx, tx, subscriptionID)
			return err
		})
	})
	log := logging.With(logging.WithSubscriptionID(ctx, subscriptionID), u.log)
	if err != nil {
		log.Warn().Err(err).Msg("renewal failed")
		return nil, err
	}
	metrics.IncSubscriptionTransition("renewed")
	log.Info().Str("renewed_to", next.ID).Int("carried_days", carried).Msg("subscription renewed")

	req := adapter.OrderRequest{
		SubscriptionID: next.ID,
		PreviousID:     subscriptionID,
		UserID:         next.UserID,
		OfferID:        offer.ID,
		Amount:         offer.Price,
		Currency:       offer.Currency,
		RequestedAt:    u.clock.Now(),
	}
	if err := u.orders.CreateRenewalOrder(ctx, req); err != nil {
		metrics.IncOrder("failed")
		log.Error().Err(err).Str("renewed_to", next.ID).Msg("renewal order not created, needs reconciliation")
	}
	return next, nil
}

func (u *subscriptionUC) renewTx(ctx context.Context, tx repository.Tx, subscriptionID string) (*model.Subscription, *model.Offer, int, error) {
	now := u.clock.Now()
	old, err := u.subs.FindByIDForUpdate(ctx, tx, subscriptionID)
	if err != nil {
		return nil, nil, 0, err
	}
	if !old.Renewable() {
		return nil, nil, 0, domain.ErrNotRenewable.With(old.ID)
	}
	offer, err := u.offers.FindByID(ctx, tx, old.OfferID)
	if err != nil {
		return nil, nil, 0, err
	}

	remaining := entitlement.RemainingDays(now, *old.EndDate)
	end, err := entitlement.EndDate(now, offer.Duration, offer.DurationUnit)
	if err != nil {
		return nil, nil, 0, err
	}
	end = entitlement.AddDays(end, remaining)

	next, err := model.NewSubscription(old.UserID, old.OfferID, now, end)
	if err != nil {
		return nil, nil, 0, err
	}
	next.AutoRenew = old.AutoRenew
	next.RenewedFromID = &old.ID
	if err := u.subs.Save(ctx, tx, next); err != nil {
		return nil, nil, 0, err
	}

	links, err := u.links.ListBySubscription(ctx, tx, old.ID)
	if err != nil {
		return nil, nil, 0, err
	}
	for _, l := range links {
		if l.Status != model.LinkStatusActive {
			continue
		}
		if err := u.links.Link(ctx, tx, next.ID, l.AccountID, now); err != nil {
			return nil, nil, 0, err
		}
		if err := u.links.MarkReleased(ctx, tx, old.ID, l.AccountID); err != nil {
			return nil, nil, 0, err
		}
	}
	// transfer, not release-and-claim: no capacity check and no race with other claims
	if _, err := u.profiles.Reassign(ctx, tx, old.ID, next.ID, now); err != nil {
		return nil, nil, 0, err
	}

	if old.Status == model.SubscriptionStatusActive {
		if err := old.TransitionTo(model.SubscriptionStatusExpired, now); err != nil {
			return nil, nil, 0, err
		}
	}
	old.AutoRenew = false
	old.EndDate = &now
	old.RenewedToID = &next.ID
	old.UpdatedAt = now
	if err := u.subs.Save(ctx, tx, old); err != nil {
		return nil, nil, 0, err
	}
	return next, offer, remaining, nil
}

// Cleanup releases every slot an expired subscription still holds.
func (u *subscriptionUC) Cleanup(ctx context.Context, subscriptionID string) (int, error) {
	var n int
	err := retryOnConflict(u.log, "cleanup", func() error {
		return u.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
			sub, err := u.subs.FindByIDForUpdate(ctx, tx, subscriptionID)
			if err != nil {
				return err
			}
			if sub.Due(u.clock.Now()) {
				if err := sub.TransitionTo(model.SubscriptionStatusExpired, u.clock.Now()); err != nil {
					return err
				}
				if err := u.subs.Save(ctx, tx, sub); err != nil {
					return err
				}
				metrics.IncSubscriptionsExpired(1)
			}
			if sub.Status != model.SubscriptionStatusExpired {
				return domain.ErrNotExpired.With(sub.ID)
			}
			n, err = u.alloc.releaseAllTx(ctx, tx, sub.ID)
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	metrics.IncSubscriptionTransition("cleaned")
	u.log.Info().Str("subscription_id", subscriptionID).Int("released", n).Msg("expired subscription cleaned up")
	return n, nil
}

func (u *subscriptionUC) ForceExpire(ctx context.Context, subscriptionID string) (*model.Subscription, int, error) {
	var (
		sub      *model.Subscription
		released int
	)
	err := retryOnConflict(u.log, "force_expire", func() error {
		return u.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
			var err error
			sub, err = u.subs.FindByIDForUpdate(ctx, tx, subscriptionID)
			if err != nil {
				return err
			}
			if err := sub.ForceExpire(u.clock.Now()); err != nil {
				return err
			}
			if err := u.subs.Save(ctx, tx, sub); err != nil {
				return err
			}
			released, err = u.alloc.releaseAllTx(ctx, tx, sub.ID)
			return err
		})
	})
	if err != nil {
		return nil, 0, err
	}
	metrics.IncSubscriptionTransition("force_expired")
	u.log.Warn().Str("subscription_id", subscriptionID).Int("released", released).Msg("subscription force-expired")
	return sub, released, nil
}

func (u *subscriptionUC) SetAutoRenew(ctx context.Context, subscriptionID string, on bool) (*model.Subscription, error) {
	var sub *model.Subscription
	err := u.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
		var err error
		sub, err = u.subs.FindByIDForUpdate(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}
		if on && sub.Status == model.SubscriptionStatusExpired {
			return domain.ErrNotRenewable.With(sub.ID)
		}
		sub.AutoRenew = on
		sub.UpdatedAt = u.clock.Now()
		return u.subs.Save(ctx, tx, sub)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Get returns the subscription, expiring it first if its end date has passed.
func (u *subscriptionUC) Get(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	sub, err := u.subs.FindByID(ctx, repository.NoTX, subscriptionID)
	if err != nil {
		return nil, err
	}
	if err := u.expireLazily(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (u *subscriptionUC) ListByUser(ctx context.Context, userID string) ([]*model.Subscription, error) {
	subs, err := u.subs.ListByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		if err := u.expireLazily(ctx, s); err != nil {
			return nil, err
		}
	}
	return subs, nil
}

func (u *subscriptionUC) expireLazily(ctx context.Context, sub *model.Subscription) error {
	now := u.clock.Now()
	if !sub.Due(now) {
		return nil
	}
	changed, err := u.subs.ExpireIfDue(ctx, repository.NoTX, sub.ID, now)
	if err != nil {
		return err
	}
	if changed {
		metrics.IncSubscriptionsExpired(1)
		metrics.IncSubscriptionTransition("expired")
	}
	sub.Status = model.SubscriptionStatusExpired
	sub.UpdatedAt = now
	return nil
}

func (u *subscriptionUC) ExpireDue(ctx context.Context) (int, error) {
	ids, err := u.subs.ExpireDue(ctx, repository.NoTX, u.clock.Now())
	if err != nil {
		return 0, err
	}
	if len(ids) > 0 {
		metrics.IncSubscriptionsExpired(len(ids))
		for range ids {
			metrics.IncSubscriptionTransition("expired")
		}
		u.log.Info().Int("count", len(ids)).Msg("subscriptions expired")
	}
	return len(ids), nil
}

func (u *subscriptionUC) CleanupExpired(ctx context.Context, limit int) (int, error) {
	ids, err := u.subs.ListExpiredHoldingSlots(ctx, repository.NoTX, limit)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, id := range ids {
		if _, err := u.Cleanup(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotExpired) {
				continue
			}
			return done, err
		}
		done++
	}
	return done, nil
}
