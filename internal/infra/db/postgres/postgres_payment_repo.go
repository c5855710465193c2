package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
)

var (
	_ repository.PaymentRepository = (*paymentRepo)(nil)
	_ repository.OrderRepository   = (*orderRepo)(nil)
)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

// Save relies on UNIQUE (subscription_id, provider_ref) for idempotency.
func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (id, subscription_id, amount, currency, provider_ref, confirmed_at)
VALUES ($1,$2,$3,$4,$5,$6);`
	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.SubscriptionID, p.Amount, p.Currency, p.ProviderRef, p.ConfirmedAt)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrSubscriptionNotFound.With(p.SubscriptionID)
	}
	return err
}

func (r *paymentRepo) FindByRef(ctx context.Context, tx repository.Tx, subscriptionID, providerRef string) (*model.Payment, error) {
	const q = `
SELECT id, subscription_id, amount, currency, provider_ref, confirmed_at
  FROM payments
 WHERE subscription_id=$1 AND provider_ref=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, subscriptionID, providerRef)
	if err != nil {
		return nil, err
	}
	p := &model.Payment{}
	if err := row.Scan(&p.ID, &p.SubscriptionID, &p.Amount, &p.Currency, &p.ProviderRef, &p.ConfirmedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment %s", domain.ErrNotFound, providerRef)
		}
		return nil, mapError(err)
	}
	return p, nil
}

// ---- orders ----

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo { return &orderRepo{pool: pool} }

const orderCols = `id, number, kind, subscription_id, user_id, offer_id, amount, currency, created_at`

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `
INSERT INTO orders (` + orderCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.Number, string(o.Kind), o.SubscriptionID, o.UserID, o.OfferID, o.Amount, o.Currency, o.CreatedAt)
	return err
}

func (r *orderRepo) ListBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.Order, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+orderCols+` FROM orders WHERE subscription_id=$1 ORDER BY number;`, subscriptionID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*model.Order, error) {
		o := &model.Order{}
		var kind string
		err := row.Scan(&o.ID, &o.Number, &kind, &o.SubscriptionID, &o.UserID, &o.OfferID, &o.Amount, &o.Currency, &o.CreatedAt)
		o.Kind = model.OrderKind(kind)
		return o, err
	})
}
