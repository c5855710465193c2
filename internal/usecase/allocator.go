package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
	"streamshare/internal/infra/logging"
	"streamshare/internal/infra/metrics"
)

// Compile-time check
var _ Allocator = (*allocator)(nil)

// Allocator hands profile slots of an account to subscriptions and takes them back.
type Allocator interface {
	Assign(ctx context.Context, accountID, subscriptionID string, count int) ([]*model.AccountProfile, error)
	Release(ctx context.Context, subscriptionID, accountID string) (int, error)
	ReleaseAll(ctx context.Context, subscriptionID string) (int, error)
	DeleteProfile(ctx context.Context, profileID string) error
}

type allocator struct {
	accounts repository.AccountRepository
	profiles repository.ProfileRepository
	links    repository.SubscriptionAccountRepository
	subs     repository.SubscriptionRepository
	offers   repository.OfferRepository
	tm       repository.TransactionManager
	clock    domain.Clock
	log      *zerolog.Logger
}

func NewAllocator(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	links repository.SubscriptionAccountRepository,
	subs repository.SubscriptionRepository,
	offers repository.OfferRepository,
	tm repository.TransactionManager,
	clock domain.Clock,
	logger *zerolog.Logger,
) *allocator {
	return &allocator{
		accounts: accounts,
		profiles: profiles,
		links:    links,
		subs:     subs,
		offers:   offers,
		tm:       tm,
		clock:    clock,
		log:      logging.Component(logger, "Allocator"),
	}
}

// Assign claims count free slots of one account for a PENDING or ACTIVE
// subscription. The subscription may never hold more profiles than its offer
// grants, in total or on the account's platform.
func (a *allocator) Assign(ctx context.Context, accountID, subscriptionID string, count int) ([]*model.AccountProfile, error) {
	if count <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	var claimed []*model.AccountProfile
	err := retryOnConflict(a.log, "assign", func() error {
		return a.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
			acc, err := a.accounts.FindByIDForUpdate(ctx, tx, accountID)
			if err != nil {
				return err
			}
			if !acc.Usable(a.clock.Now()) {
				return domain.ErrAccountUnavailable.With(acc.ID)
			}
			sub, err := a.subs.FindByIDForUpdate(ctx, tx, subscriptionID)
			if err != nil {
				return err
			}
			if sub.Status == model.SubscriptionStatusExpired || sub.RenewedToID != nil {
				return domain.ErrSubscriptionClosed.With(sub.ID)
			}
			if err := a.checkAllowance(ctx, tx, sub, acc.PlatformID, count); err != nil {
				return err
			}
			claimed, err = a.assignTx(ctx, tx, accountID, subscriptionID, count)
			return err
		})
	})
	return claimed, err
}

func (a *allocator) checkAllowance(ctx context.Context, tx repository.Tx, sub *model.Subscription, platformID string, count int) error {
	offer, err := a.offers.FindByID(ctx, tx, sub.OfferID)
	if err != nil {
		return err
	}
	granted := -1
	for _, op := range offer.Platforms {
		if op.PlatformID == platformID {
			granted = op.ProfileCount
		}
	}
	if granted < 0 {
		return domain.ErrInvalidArgument
	}
	held, err := a.heldPerPlatform(ctx, tx, sub.ID)
	if err != nil {
		return err
	}
	total := 0
	for _, n := range held {
		total += n
	}
	if held[platformID]+count > granted || total+count > offer.MaxProfiles {
		return domain.ErrAllowanceExceeded.With(sub.ID)
	}
	return nil
}

// heldPerPlatform counts the profiles the subscription already holds, per
// platform.
func (a *allocator) heldPerPlatform(ctx context.Context, tx repository.Tx, subscriptionID string) (map[string]int, error) {
	profiles, err := a.profiles.ListBySubscription(ctx, tx, subscriptionID)
	if err != nil {
		return nil, err
	}
	held := make(map[string]int)
	platformOf := make(map[string]string)
	for _, p := range profiles {
		platformID, ok := platformOf[p.AccountID]
		if !ok {
			acc, err := a.accounts.FindByID(ctx, tx, p.AccountID)
			if err != nil {
				return nil, err
			}
			platformID = acc.PlatformID
			platformOf[p.AccountID] = platformID
		}
		held[platformID]++
	}
	return held, nil
}

// assignTx is the transactional core shared with subscription activation.
func (a *allocator) assignTx(ctx context.Context, tx repository.Tx, accountID, subscriptionID string, count int) ([]*model.AccountProfile, error) {
	now := a.clock.Now()
	claimed, err := a.profiles.Claim(ctx, tx, accountID, subscriptionID, count, now)
	switch {
	case errors.Is(err, domain.ErrSlotRace):
		metrics.IncSlotClaim("race")
		return nil, err
	case errors.Is(err, domain.ErrSlotsUnavailable):
		metrics.IncSlotClaim("insufficient")
		return nil, err
	case err != nil:
		return nil, err
	}
	metrics.IncSlotClaim("claimed")
	if err := a.links.Link(ctx, tx, subscriptionID, accountID, now); err != nil {
		return nil, err
	}
	a.log.Debug().
		Str("account_id", accountID).
		Str("subscription_id", subscriptionID).
		Int("count", len(claimed)).
		Msg("slots assigned")
	return claimed, nil
}

func (a *allocator) Release(ctx context.Context, subscriptionID, accountID string) (int, error) {
	var n int
	err := a.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
		var err error
		n, err = a.releaseTx(ctx, tx, subscriptionID, accountID)
		return err
	})
	return n, err
}

func (a *allocator) releaseTx(ctx context.Context, tx repository.Tx, subscriptionID, accountID string) (int, error) {
	n, err := a.profiles.Release(ctx, tx, subscriptionID, accountID, a.clock.Now())
	if err != nil {
		return 0, err
	}
	if err := a.links.MarkReleased(ctx, tx, subscriptionID, accountID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, err
	}
	return n, nil
}

func (a *allocator) ReleaseAll(ctx context.Context, subscriptionID string) (int, error) {
	var n int
	err := a.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
		var err error
		n, err = a.releaseAllTx(ctx, tx, subscriptionID)
		return err
	})
	return n, err
}

func (a *allocator) releaseAllTx(ctx context.Context, tx repository.Tx, subscriptionID string) (int, error) {
	links, err := a.links.ListBySubscription(ctx, tx, subscriptionID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, l := range links {
		if l.Status != model.LinkStatusActive {
			continue
		}
		n, err := a.releaseTx(ctx, tx, subscriptionID, l.AccountID)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// DeleteProfile removes one slot row. The last slot of an account can never
// be removed; an assigned slot has to be released first.
func (a *allocator) DeleteProfile(ctx context.Context, profileID string) error {
	return a.tm.WithTx(ctx, repository.ReadCommitted, func(ctx context.Context, tx repository.Tx) error {
		p, err := a.profiles.FindByID(ctx, tx, profileID)
		if err != nil {
			return err
		}
		// the account lock serializes concurrent deletions on the same account
		if _, err := a.accounts.FindByIDForUpdate(ctx, tx, p.AccountID); err != nil {
			return err
		}
		n, err := a.profiles.CountByAccount(ctx, tx, p.AccountID)
		if err != nil {
			return err
		}
		if n <= 1 {
			return domain.ErrLastSlotProtected.With(profileID)
		}
		if p.IsAssigned {
			return domain.ErrSlotInUse.With(profileID)
		}
		if err := a.profiles.Delete(ctx, tx, profileID); err != nil {
			return err
		}
		a.log.Info().Str("profile_id", profileID).Str("account_id", p.AccountID).Msg("profile deleted")
		return nil
	})
}
