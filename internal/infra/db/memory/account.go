package memory

import (
	"context"
	"sort"
	"time"

	"streamshare/internal/domain"
	"streamshare/internal/domain/entitlement"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
)

var (
	_ repository.AccountRepository = (*accountRepo)(nil)
	_ repository.ProfileRepository = (*profileRepo)(nil)
)

type accountRepo struct{ s *Store }

func NewAccountRepo(s *Store) *accountRepo { return &accountRepo{s: s} }

func copyAccount(a model.Account) *model.Account {
	a.ProviderOfferID = copyStr(a.ProviderOfferID)
	a.ExpiresAt = copyTime(a.ExpiresAt)
	return &a
}

func (r *accountRepo) Save(ctx context.Context, tx repository.Tx, a *model.Account) error {
	return r.s.with(tx, func(st *state) error {
		if _, ok := st.platforms[a.PlatformID]; !ok {
			return domain.ErrPlatformNotFound.With(a.PlatformID)
		}
		if a.ProviderOfferID != nil {
			if _, ok := st.providerOffers[*a.ProviderOfferID]; !ok {
				return domain.ErrProviderOfferNotFound.With(*a.ProviderOfferID)
			}
		}
		st.accounts[a.ID] = *copyAccount(*a)
		return nil
	})
}

func (r *accountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	var out *model.Account
	err := r.s.with(tx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return domain.ErrAccountNotFound.With(id)
		}
		out = copyAccount(a)
		return nil
	})
	return out, err
}

// FindByIDForUpdate needs no row lock here: transactions are already serialized.
func (r *accountRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *accountRepo) SetStatus(ctx context.Context, tx repository.Tx, id string, status model.AccountStatus, now time.Time) error {
	return r.s.with(tx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return domain.ErrAccountNotFound.With(id)
		}
		a.Status = status
		a.UpdatedAt = now
		st.accounts[id] = a
		return nil
	})
}

func (r *accountRepo) ExtendExpiry(ctx context.Context, tx repository.Tx, id string, days int, now time.Time) (time.Time, error) {
	var out time.Time
	err := r.s.with(tx, func(st *state) error {
		a, ok := st.accounts[id]
		if !ok {
			return domain.ErrAccountNotFound.With(id)
		}
		base := now
		if a.ExpiresAt != nil && a.ExpiresAt.After(now) {
			base = *a.ExpiresAt
		}
		out = entitlement.AddDays(base, days)
		a.ExpiresAt = &out
		a.Status = model.AccountStatusActive
		a.UpdatedAt = now
		st.accounts[id] = a
		return nil
	})
	return out, err
}

func inventory(st *state, platformID string) map[string]*model.SlotInventory {
	inv := make(map[string]*model.SlotInventory)
	for _, a := range st.accounts {
		if platformID != "" && a.PlatformID != platformID {
			continue
		}
		inv[a.ID] = &model.SlotInventory{AccountID: a.ID, PlatformID: a.PlatformID}
	}
	for _, p := range st.profiles {
		i, ok := inv[p.AccountID]
		if !ok {
			continue
		}
		i.Total++
		if p.IsAssigned {
			i.Assigned++
		}
	}
	return inv
}

func (r *accountRepo) ListCandidates(ctx context.Context, tx repository.Tx, platformID string, minFree int, now time.Time) ([]model.SlotInventory, error) {
	var out []model.SlotInventory
	err := r.s.with(tx, func(st *state) error {
		for id, i := range inventory(st, platformID) {
			a := st.accounts[id]
			if !a.Usable(now) || i.Free() < minFree {
				continue
			}
			out = append(out, *i)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Free() != out[j].Free() {
			return out[i].Free() < out[j].Free()
		}
		return out[i].AccountID < out[j].AccountID
	})
	return out, err
}

func (r *accountRepo) Inventory(ctx context.Context, tx repository.Tx, platformID string) ([]model.SlotInventory, error) {
	var out []model.SlotInventory
	err := r.s.with(tx, func(st *state) error {
		for _, i := range inventory(st, platformID) {
			out = append(out, *i)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, err
}

type profileRepo struct{ s *Store }

func NewProfileRepo(s *Store) *profileRepo { return &profileRepo{s: s} }

func copyProfile(p model.AccountProfile) *model.AccountProfile {
	p.SubscriptionID = copyStr(p.SubscriptionID)
	return &p
}

func sortProfiles(ps []*model.AccountProfile) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].AccountID != ps[j].AccountID {
			return ps[i].AccountID < ps[j].AccountID
		}
		return ps[i].SlotIndex < ps[j].SlotIndex
	})
}

func (r *profileRepo) SaveBatch(ctx context.Context, tx repository.Tx, profiles []*model.AccountProfile) error {
	return r.s.with(tx, func(st *state) error {
		taken := make(map[string]map[int]bool)
		for _, p := range st.profiles {
			if taken[p.AccountID] == nil {
				taken[p.AccountID] = map[int]bool{}
			}
			taken[p.AccountID][p.SlotIndex] = true
		}
		for _, p := range profiles {
			if _, ok := st.accounts[p.AccountID]; !ok {
				return domain.ErrAccountNotFound.With(p.AccountID)
			}
			if _, ok := st.profiles[p.ID]; ok || taken[p.AccountID][p.SlotIndex] {
				return domain.ErrAlreadyExists
			}
			if taken[p.AccountID] == nil {
				taken[p.AccountID] = map[int]bool{}
			}
			taken[p.AccountID][p.SlotIndex] = true
		}
		for _, p := range profiles {
			st.profiles[p.ID] = *copyProfile(*p)
		}
		return nil
	})
}

func (r *profileRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.AccountProfile, error) {
	var out *model.AccountProfile
	err := r.s.with(tx, func(st *state) error {
		p, ok := st.profiles[id]
		if !ok {
			return domain.ErrProfileNotFound.With(id)
		}
		out = copyProfile(p)
		return nil
	})
	return out, err
}

func (r *profileRepo) list(tx repository.Tx, keep func(p model.AccountProfile) bool) ([]*model.AccountProfile, error) {
	var out []*model.AccountProfile
	err := r.s.with(tx, func(st *state) error {
		for _, p := range st.profiles {
			if keep(p) {
				out = append(out, copyProfile(p))
			}
		}
		return nil
	})
	sortProfiles(out)
	return out, err
}

func (r *profileRepo) ListFree(ctx context.Context, tx repository.Tx, accountID string) ([]*model.AccountProfile, error) {
	return r.list(tx, func(p model.AccountProfile) bool { return p.AccountID == accountID && !p.IsAssigned })
}

func (r *profileRepo) ListBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.AccountProfile, error) {
	return r.list(tx, func(p model.AccountProfile) bool {
		return p.SubscriptionID != nil && *p.SubscriptionID == subscriptionID
	})
}

func (r *profileRepo) CountByAccount(ctx context.Context, tx repository.Tx, accountID string) (int, error) {
	ps, err := r.list(tx, func(p model.AccountProfile) bool { return p.AccountID == accountID })
	return len(ps), err
}

func (r *profileRepo) Claim(ctx context.Context, tx repository.Tx, accountID, subscriptionID string, count int, now time.Time) ([]*model.AccountProfile, error) {
	var out []*model.AccountProfile
	err := r.s.with(tx, func(st *state) error {
		if _, ok := st.accounts[accountID]; !ok {
			return domain.ErrAccountNotFound.With(accountID)
		}
		var free []model.AccountProfile
		for _, p := range st.profiles {
			if p.AccountID == accountID && !p.IsAssigned {
				free = append(free, p)
			}
		}
		if len(free) < count {
			return domain.ErrSlotsUnavailable.With(accountID)
		}
		sort.Slice(free, func(i, j int) bool { return free[i].SlotIndex < free[j].SlotIndex })
		for _, p := range free[:count] {
			sub := subscriptionID
			p.IsAssigned = true
			p.SubscriptionID = &sub
			p.UpdatedAt = now
			st.profiles[p.ID] = p
			out = append(out, copyProfile(p))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *profileRepo) Release(ctx context.Context, tx repository.Tx, subscriptionID, accountID string, now time.Time) (int, error) {
	n := 0
	err := r.s.with(tx, func(st *state) error {
		for id, p := range st.profiles {
			if p.AccountID != accountID || p.SubscriptionID == nil || *p.SubscriptionID != subscriptionID {
				continue
			}
			p.IsAssigned = false
			p.SubscriptionID = nil
			p.UpdatedAt = now
			st.profiles[id] = p
			n++
		}
		return nil
	})
	return n, err
}

func (r *profileRepo) Reassign(ctx context.Context, tx repository.Tx, from, to string, now time.Time) (int, error) {
	n := 0
	err := r.s.with(tx, func(st *state) error {
		for id, p := range st.profiles {
			if p.SubscriptionID == nil || *p.SubscriptionID != from {
				continue
			}
			next := to
			p.SubscriptionID = &next
			p.UpdatedAt = now
			st.profiles[id] = p
			n++
		}
		return nil
	})
	return n, err
}

func (r *profileRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return r.s.with(tx, func(st *state) error {
		p, ok := st.profiles[id]
		if !ok {
			return domain.ErrProfileNotFound.With(id)
		}
		if p.IsAssigned {
			return domain.ErrSlotInUse.With(id)
		}
		delete(st.profiles, id)
		return nil
	})
}
