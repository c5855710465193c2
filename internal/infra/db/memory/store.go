// Package memory is an in-process storage adapter. A transaction works on a
// private copy of the whole arena and swaps it in on commit, so transactions
// are serializable and a rollback is simply dropping the copy.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ repository.TransactionManager = (*Store)(nil)

type linkKey struct{ sub, acc string }

type state struct {
	platforms      map[string]model.Platform
	providerOffers map[string]model.ProviderOffer
	offers         map[string]model.Offer
	accounts       map[string]model.Account
	profiles       map[string]model.AccountProfile
	subs           map[string]model.Subscription
	links          map[linkKey]model.SubscriptionAccount
	cards          map[string]model.GiftCard
	cardCodes      map[string]string // code -> card id
	payments       map[string]model.Payment
	paymentRefs    map[string]string // subscription|ref -> payment id
	orders         map[string]model.Order
	redemptions    map[string]model.Redemption
}

func newState() *state {
	return &state{
		platforms:      map[string]model.Platform{},
		providerOffers: map[string]model.ProviderOffer{},
		offers:         map[string]model.Offer{},
		accounts:       map[string]model.Account{},
		profiles:       map[string]model.AccountProfile{},
		subs:           map[string]model.Subscription{},
		links:          map[linkKey]model.SubscriptionAccount{},
		cards:          map[string]model.GiftCard{},
		cardCodes:      map[string]string{},
		payments:       map[string]model.Payment{},
		paymentRefs:    map[string]string{},
		orders:         map[string]model.Order{},
		redemptions:    map[string]model.Redemption{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone is shallow per record; records are copied in and out of the arena and
// their pointer fields are never written through.
func (s *state) clone() *state {
	return &state{
		platforms:      cloneMap(s.platforms),
		providerOffers: cloneMap(s.providerOffers),
		offers:         cloneMap(s.offers),
		accounts:       cloneMap(s.accounts),
		profiles:       cloneMap(s.profiles),
		subs:           cloneMap(s.subs),
		links:          cloneMap(s.links),
		cards:          cloneMap(s.cards),
		cardCodes:      cloneMap(s.cardCodes),
		payments:       cloneMap(s.payments),
		paymentRefs:    cloneMap(s.paymentRefs),
		orders:         cloneMap(s.orders),
		redemptions:    cloneMap(s.redemptions),
	}
}

// Store owns the arena and implements repository.TransactionManager.
type Store struct {
	mu sync.Mutex
	st *state
}

func NewStore() *Store {
	return &Store{st: newState()}
}

type memTx struct {
	st *state
}

// WithTx runs fn against a private copy of the arena. Transactions are fully
// serialized; the isolation level in txOpt is accepted and ignored.
func (s *Store) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.st.clone()
	if err := fn(ctx, &memTx{st: work}); err != nil {
		return err
	}
	s.st = work
	return nil
}

// with hands fn the arena tx works on, or the committed arena under the lock
// when tx is nil. Non-transactional writers validate before they mutate.
func (s *Store) with(tx repository.Tx, fn func(st *state) error) error {
	switch t := tx.(type) {
	case *memTx:
		return fn(t.st)
	case nil:
		s.mu.Lock()
		defer s.mu.Unlock()
		return fn(s.st)
	default:
		return domain.ErrInvalidExecContext
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}
