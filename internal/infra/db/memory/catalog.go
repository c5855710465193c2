package memory

import (
	"context"
	"sort"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
)

var (
	_ repository.PlatformRepository      = (*platformRepo)(nil)
	_ repository.ProviderOfferRepository = (*providerOfferRepo)(nil)
	_ repository.OfferRepository         = (*offerRepo)(nil)
)

type platformRepo struct{ s *Store }

func NewPlatformRepo(s *Store) *platformRepo { return &platformRepo{s: s} }

func copyPlatform(p model.Platform) *model.Platform {
	p.MaxProfilesPerAccount = copyInt(p.MaxProfilesPerAccount)
	return &p
}

func (r *platformRepo) Save(ctx context.Context, tx repository.Tx, p *model.Platform) error {
	return r.s.with(tx, func(st *state) error {
		for id, other := range st.platforms {
			if id != p.ID && other.Slug == p.Slug {
				return domain.ErrAlreadyExists
			}
		}
		st.platforms[p.ID] = *copyPlatform(*p)
		return nil
	})
}

func (r *platformRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Platform, error) {
	var out *model.Platform
	err := r.s.with(tx, func(st *state) error {
		p, ok := st.platforms[id]
		if !ok {
			return domain.ErrPlatformNotFound.With(id)
		}
		out = copyPlatform(p)
		return nil
	})
	return out, err
}

func (r *platformRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Platform, error) {
	var out []*model.Platform
	err := r.s.with(tx, func(st *state) error {
		for _, p := range st.platforms {
			out = append(out, copyPlatform(p))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, err
}

type providerOfferRepo struct{ s *Store }

func NewProviderOfferRepo(s *Store) *providerOfferRepo { return &providerOfferRepo{s: s} }

func (r *providerOfferRepo) Save(ctx context.Context, tx repository.Tx, o *model.ProviderOffer) error {
	return r.s.with(tx, func(st *state) error {
		if _, ok := st.platforms[o.PlatformID]; !ok {
			return domain.ErrPlatformNotFound.With(o.PlatformID)
		}
		st.providerOffers[o.ID] = *o
		return nil
	})
}

func (r *providerOfferRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ProviderOffer, error) {
	var out *model.ProviderOffer
	err := r.s.with(tx, func(st *state) error {
		o, ok := st.providerOffers[id]
		if !ok {
			return domain.ErrProviderOfferNotFound.With(id)
		}
		out = &o
		return nil
	})
	return out, err
}

func (r *providerOfferRepo) ListByPlatform(ctx context.Context, tx repository.Tx, platformID string) ([]*model.ProviderOffer, error) {
	var out []*model.ProviderOffer
	err := r.s.with(tx, func(st *state) error {
		for _, o := range st.providerOffers {
			if o.PlatformID == platformID {
				o := o
				out = append(out, &o)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (r *providerOfferRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	return r.s.with(tx, func(st *state) error {
		if _, ok := st.providerOffers[id]; !ok {
			return domain.ErrProviderOfferNotFound.With(id)
		}
		for _, a := range st.accounts {
			if a.ProviderOfferID != nil && *a.ProviderOfferID == id {
				return domain.ErrInUse
			}
		}
		delete(st.providerOffers, id)
		return nil
	})
}

type offerRepo struct{ s *Store }

func NewOfferRepo(s *Store) *offerRepo { return &offerRepo{s: s} }

func copyOffer(o model.Offer) *model.Offer {
	o.Platforms = append([]model.OfferPlatform(nil), o.Platforms...)
	return &o
}

func (r *offerRepo) Save(ctx context.Context, tx repository.Tx, o *model.Offer) error {
	return r.s.with(tx, func(st *state) error {
		if _, ok := st.offers[o.ID]; ok {
			return domain.ErrAlreadyExists
		}
		for _, op := range o.Platforms {
			if _, ok := st.platforms[op.PlatformID]; !ok {
				return domain.ErrPlatformNotFound.With(op.PlatformID)
			}
		}
		st.offers[o.ID] = *copyOffer(*o)
		return nil
	})
}

func (r *offerRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Offer, error) {
	var out *model.Offer
	err := r.s.with(tx, func(st *state) error {
		o, ok := st.offers[id]
		if !ok {
			return domain.ErrOfferNotFound.With(id)
		}
		out = copyOffer(o)
		return nil
	})
	return out, err
}

func (r *offerRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Offer, error) {
	var out []*model.Offer
	err := r.s.with(tx, func(st *state) error {
		for _, o := range st.offers {
			out = append(out, copyOffer(o))
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, err
}
