package memory

import (
	"context"
	"sort"
	"time"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
)

var (
	_ repository.SubscriptionRepository        = (*subscriptionRepo)(nil)
	_ repository.SubscriptionAccountRepository = (*linkRepo)(nil)
)

type subscriptionRepo struct{ s *Store }

func NewSubscriptionRepo(s *Store) *subscriptionRepo { return &subscriptionRepo{s: s} }

func copySub(s model.Subscription) *model.Subscription {
	s.EndDate = copyTime(s.EndDate)
	s.RenewedFromID = copyStr(s.RenewedFromID)
	s.RenewedToID = copyStr(s.RenewedToID)
	return &s
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	return r.s.with(tx, func(st *state) error {
		if _, ok := st.offers[s.OfferID]; !ok {
			return domain.ErrOfferNotFound.With(s.OfferID)
		}
		st.subs[s.ID] = *copySub(*s)
		return nil
	})
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	var out *model.Subscription
	err := r.s.with(tx, func(st *state) error {
		s, ok := st.subs[id]
		if !ok {
			return domain.ErrSubscriptionNotFound.With(id)
		}
		out = copySub(s)
		return nil
	})
	return out, err
}

func (r *subscriptionRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	var out []*model.Subscription
	err := r.s.with(tx, func(st *state) error {
		for _, s := range st.subs {
			if s.UserID == userID {
				out = append(out, copySub(s))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, err
}

func expire(st *state, id string, now time.Time) bool {
	s, ok := st.subs[id]
	if !ok || s.Status != model.SubscriptionStatusActive || s.EndDate == nil || !s.EndDate.Before(now) {
		return false
	}
	s.Status = model.SubscriptionStatusExpired
	s.UpdatedAt = now
	st.subs[id] = s
	return true
}

func (r *subscriptionRepo) ExpireIfDue(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	changed := false
	err := r.s.with(tx, func(st *state) error {
		changed = expire(st, id, now)
		return nil
	})
	return changed, err
}

func (r *subscriptionRepo) ExpireDue(ctx context.Context, tx repository.Tx, now time.Time) ([]string, error) {
	var ids []string
	err := r.s.with(tx, func(st *state) error {
		for id := range st.subs {
			if expire(st, id, now) {
				ids = append(ids, id)
			}
		}
		return nil
	})
	sort.Strings(ids)
	return ids, err
}

func (r *subscriptionRepo) ListExpiredHoldingSlots(ctx context.Context, tx repository.Tx, limit int) ([]string, error) {
	var ids []string
	err := r.s.with(tx, func(st *state) error {
		holding := make(map[string]bool)
		for k, l := range st.links {
			if l.Status == model.LinkStatusActive {
				holding[k.sub] = true
			}
		}
		for _, p := range st.profiles {
			if p.SubscriptionID != nil {
				holding[*p.SubscriptionID] = true
			}
		}
		for id := range holding {
			if s, ok := st.subs[id]; ok && s.Status == model.SubscriptionStatusExpired {
				ids = append(ids, id)
			}
		}
		return nil
	})
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, err
}

type linkRepo struct{ s *Store }

func NewSubscriptionAccountRepo(s *Store) *linkRepo { return &linkRepo{s: s} }

func (r *linkRepo) Link(ctx context.Context, tx repository.Tx, subscriptionID, accountID string, now time.Time) error {
	return r.s.with(tx, func(st *state) error {
		if _, ok := st.subs[subscriptionID]; !ok {
			return domain.ErrSubscriptionNotFound.With(subscriptionID)
		}
		if _, ok := st.accounts[accountID]; !ok {
			return domain.ErrAccountNotFound.With(accountID)
		}
		k := linkKey{subscriptionID, accountID}
		l, ok := st.links[k]
		if !ok {
			l = model.SubscriptionAccount{SubscriptionID: subscriptionID, AccountID: accountID, CreatedAt: now}
		}
		l.Status = model.LinkStatusActive
		st.links[k] = l
		return nil
	})
}

func (r *linkRepo) ListBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.SubscriptionAccount, error) {
	var out []*model.SubscriptionAccount
	err := r.s.with(tx, func(st *state) error {
		for k, l := range st.links {
			if k.sub == subscriptionID {
				l := l
				out = append(out, &l)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, err
}

func (r *linkRepo) MarkReleased(ctx context.Context, tx repository.Tx, subscriptionID, accountID string) error {
	return r.s.with(tx, func(st *state) error {
		k := linkKey{subscriptionID, accountID}
		l, ok := st.links[k]
		if !ok {
			return domain.ErrNotFound
		}
		l.Status = model.LinkStatusReleased
		st.links[k] = l
		return nil
	})
}
