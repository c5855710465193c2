package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
)

var (
	_ repository.SubscriptionRepository        = (*subscriptionRepo)(nil)
	_ repository.SubscriptionAccountRepository = (*subscriptionAccountRepo)(nil)
)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subscriptionCols = `id, user_id, offer_id, start_date, end_date, status, auto_renew, renewed_from_id, renewed_to_id, created_at, updated_at`

func scanSub(row pgx.Row) (*model.Subscription, error) {
	s := &model.Subscription{}
	var status string
	if err := row.Scan(&s.ID, &s.UserID, &s.OfferID, &s.StartDate, &s.EndDate, &status, &s.AutoRenew, &s.RenewedFromID, &s.RenewedToID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = model.SubscriptionStatus(status)
	return s, nil
}

// Save upserts the subscription. A successor is inserted before its
// predecessor is updated to point at it, so both foreign keys resolve.
func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (` + subscriptionCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  start_date=$4, end_date=$5, status=$6, auto_renew=$7, renewed_from_id=$8, renewed_to_id=$9, updated_at=$11;`
	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.OfferID, s.StartDate, s.EndDate, string(s.Status), s.AutoRenew, s.RenewedFromID, s.RenewedToID, s.CreatedAt, s.UpdatedAt)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrOfferNotFound.With(s.OfferID)
	}
	return err
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, id string) (*model.Subscription, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, id)
	if err != nil {
		return nil, err
	}
	s, err := scanSub(row)
	if err != nil {
		return nil, scanErr(err, domain.ErrSubscriptionNotFound, id)
	}
	return s, nil
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	return r.queryOne(ctx, tx, `SELECT `+subscriptionCols+` FROM subscriptions WHERE id=$1;`, id)
}

func (r *subscriptionRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	q := `SELECT ` + subscriptionCols + ` FROM subscriptions WHERE id=$1`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	return r.queryOne(ctx, tx, q+`;`, id)
}

func (r *subscriptionRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Subscription, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+subscriptionCols+` FROM subscriptions WHERE user_id=$1 ORDER BY created_at, id;`, userID)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanSub)
}

func (r *subscriptionRepo) ExpireIfDue(ctx context.Context, tx repository.Tx, id string, now time.Time) (bool, error) {
	const q = `
UPDATE subscriptions
   SET status='EXPIRED', updated_at=$2
 WHERE id=$1 AND status='ACTIVE' AND end_date < $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *subscriptionRepo) ExpireDue(ctx context.Context, tx repository.Tx, now time.Time) ([]string, error) {
	const q = `
UPDATE subscriptions
   SET status='EXPIRED', updated_at=$1
 WHERE status='ACTIVE' AND end_date < $1
RETURNING id;`
	rows, err := queryRows(ctx, r.pool, tx, q, now)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func (r *subscriptionRepo) ListExpiredHoldingSlots(ctx context.Context, tx repository.Tx, limit int) ([]string, error) {
	const q = `
SELECT s.id
  FROM subscriptions s
 WHERE s.status = 'EXPIRED'
   AND (EXISTS (SELECT 1 FROM account_profiles p WHERE p.subscription_id = s.id)
        OR EXISTS (SELECT 1 FROM subscription_accounts l WHERE l.subscription_id = s.id AND l.status = 'ACTIVE'))
 ORDER BY s.id
 LIMIT NULLIF($1, 0);`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

func scanIDs(rows pgx.Rows) ([]string, error) {
	ids, err := collect(rows, func(row pgx.Row) (*string, error) {
		var id string
		err := row.Scan(&id)
		return &id, err
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, *id)
	}
	return out, nil
}

// ---- subscription <-> account links ----

type subscriptionAccountRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionAccountRepo(pool *pgxpool.Pool) *subscriptionAccountRepo {
	return &subscriptionAccountRepo{pool: pool}
}

func (r *subscriptionAccountRepo) Link(ctx context.Context, tx repository.Tx, subscriptionID, accountID string, now time.Time) error {
	const q = `
INSERT INTO subscription_accounts (subscription_id, account_id, status, created_at)
VALUES ($1,$2,'ACTIVE',$3)
ON CONFLICT (subscription_id, account_id) DO UPDATE SET status='ACTIVE';`
	_, err := execSQL(ctx, r.pool, tx, q, subscriptionID, accountID, now)
	return err
}

func (r *subscriptionAccountRepo) ListBySubscription(ctx context.Context, tx repository.Tx, subscriptionID string) ([]*model.SubscriptionAccount, error) {
	const q = `
SELECT subscription_id, account_id, status, created_at
  FROM subscription_accounts
 WHERE subscription_id=$1
 ORDER BY account_id;`
	rows, err := queryRows(ctx, r.pool, tx, q, subscriptionID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*model.SubscriptionAccount, error) {
		l := &model.SubscriptionAccount{}
		var status string
		if err := row.Scan(&l.SubscriptionID, &l.AccountID, &status, &l.CreatedAt); err != nil {
			return nil, err
		}
		l.Status = model.LinkStatus(status)
		return l, nil
	})
}

func (r *subscriptionAccountRepo) MarkReleased(ctx context.Context, tx repository.Tx, subscriptionID, accountID string) error {
	tag, err := execSQL(ctx, r.pool, tx, `UPDATE subscription_accounts SET status='RELEASED' WHERE subscription_id=$1 AND account_id=$2;`, subscriptionID, accountID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
