package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
)

var (
	_ repository.GiftCardRepository   = (*giftCardRepo)(nil)
	_ repository.RedemptionRepository = (*redemptionRepo)(nil)
)

type giftCardRepo struct{ pool *pgxpool.Pool }

func NewGiftCardRepo(pool *pgxpool.Pool) *giftCardRepo { return &giftCardRepo{pool: pool} }

const giftCardCols = `id, code, amount, currency, platform_id, status, expires_at, used_by_id, used_at, created_at`

func scanGiftCard(row pgx.Row) (*model.GiftCard, error) {
	c := &model.GiftCard{}
	var status string
	if err := row.Scan(&c.ID, &c.Code, &c.Amount, &c.Currency, &c.PlatformID, &status, &c.ExpiresAt, &c.UsedByID, &c.UsedAt, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Status = model.GiftCardStatus(status)
	return c, nil
}

func (r *giftCardRepo) SaveBatch(ctx context.Context, tx repository.Tx, cards []*model.GiftCard) error {
	const q = `
INSERT INTO gift_cards (` + giftCardCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10);`
	for _, c := range cards {
		_, err := execSQL(ctx, r.pool, tx, q, c.ID, c.Code, c.Amount, c.Currency, c.PlatformID, string(c.Status), c.ExpiresAt, c.UsedByID, c.UsedAt, c.CreatedAt)
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			return fmt.Errorf("%w: gift card %s", domain.ErrAlreadyExists, c.Code)
		case errors.Is(err, domain.ErrNotFound):
			return domain.ErrPlatformNotFound.With(c.PlatformID)
		case err != nil:
			return err
		}
	}
	return nil
}

// FindByCodesForUpdate locks in code order so concurrent batches sharing
// cards cannot deadlock.
func (r *giftCardRepo) FindByCodesForUpdate(ctx context.Context, tx repository.Tx, codes []string) ([]*model.GiftCard, error) {
	q := `SELECT ` + giftCardCols + ` FROM gift_cards WHERE code = ANY($1) ORDER BY code`
	if inTx(tx) {
		q += ` FOR UPDATE`
	}
	rows, err := queryRows(ctx, r.pool, tx, q+`;`, codes)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanGiftCard)
}

func (r *giftCardRepo) MarkUsed(ctx context.Context, tx repository.Tx, ids []string, accountID string, now time.Time) (int64, error) {
	const q = `
UPDATE gift_cards
   SET status='USED', used_by_id=$2, used_at=$3
 WHERE id = ANY($1) AND status='ACTIVE';`
	tag, err := execSQL(ctx, r.pool, tx, q, ids, accountID, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *giftCardRepo) ExpireStale(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	const q = `
UPDATE gift_cards
   SET status='EXPIRED'
 WHERE status='ACTIVE' AND expires_at IS NOT NULL AND expires_at < $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ---- redemptions ----

type redemptionRepo struct{ pool *pgxpool.Pool }

func NewRedemptionRepo(pool *pgxpool.Pool) *redemptionRepo { return &redemptionRepo{pool: pool} }

const redemptionCols = `id, account_id, card_ids, total_amount, currency, days_added, previous_expiry, new_expiry, created_at`

func (r *redemptionRepo) Save(ctx context.Context, tx repository.Tx, red *model.Redemption) error {
	const q = `
INSERT INTO redemptions (` + redemptionCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9);`
	_, err := execSQL(ctx, r.pool, tx, q, red.ID, red.AccountID, red.CardIDs, red.TotalAmount, red.Currency, red.DaysAdded, red.PreviousExpiry, red.NewExpiry, red.CreatedAt)
	return err
}

func (r *redemptionRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.Redemption, error) {
	rows, err := queryRows(ctx, r.pool, tx, `SELECT `+redemptionCols+` FROM redemptions WHERE account_id=$1 ORDER BY created_at, id;`, accountID)
	if err != nil {
		return nil, err
	}
	return collect(rows, func(row pgx.Row) (*model.Redemption, error) {
		red := &model.Redemption{}
		err := row.Scan(&red.ID, &red.AccountID, &red.CardIDs, &red.TotalAmount, &red.Currency, &red.DaysAdded, &red.PreviousExpiry, &red.NewExpiry, &red.CreatedAt)
		return red, err
	})
}
