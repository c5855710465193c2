package memory

import (
	"context"
	"sort"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
)

var (
	_ repository.PaymentRepository = (*paymentRepo)(nil)
	_ repository.OrderRepository   = (*orderRepo)(nil)
)

type paymentRepo struct{ s *Store }

func NewPaymentRepo(s *Store) *paymentRepo { return &paymentRepo{s: s} }

func refKey(subscriptionID, ref string) string { return subscriptionID + "|" + ref }

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	return r.s.with(tx, func(st *state) error {
		if _, ok := st.subs[p.SubscriptionID]; !ok {
			return domain.ErrSubscriptionNotFound.With(p.SubscriptionID)
		}
		k := refKey(p.SubscriptionID, p.ProviderRef)
		if _, ok := st.paymentRefs[k]; ok {
			return domain.ErrAlreadyExists
		}
		st.payments[p.ID] = *p
		st.paymentRefs[k] = p.ID
		return nil
	})
}

func (r *paymentRepo) FindByRef(ctx context.Context, tx repository.Tx, subscriptionID, providerRef string) (*model.Payment, error) {
	var out *model.Payment
	err := r.s.with(tx, func(st *state) error {
		id, ok := st.paymentRefs[refKey(subscriptionID, providerRef)]
		if !ok {
			return domain.ErrNotFound
		}
		p := st.payments[id]
		out = &p
		return nil
	})
	return out, err
}

type orderRepo struct{ s *Store }

func NewOrderRepo(s *Store) *orderRepo { return &orderRepo{s: s} }

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	return r.s.with(tx, func(st *state) error {
		if _, ok := st.orders[o.ID]; ok {
			return domain.ErrAlreadyExists
		}
		st.orders[o.ID] = *o
		return nil
	})
}

func (r *orderRepo) ListBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.Order, error) {
	var out []*model.Order
	err := r.s.with(tx, func(st *state) error {
		for _, o := range st.orders {
			if o.SubscriptionID == subscriptionID {
				o := o
				out = append(out, &o)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, err
}
