package repository

import (
	"context"
	"time"

	"streamshare/internal/domain/model"
)

type GiftCardRepository interface {
	// SaveBatch inserts new cards; a taken code fails with domain.ErrAlreadyExists naming it.
	SaveBatch(ctx context.Context, tx Tx, cards []*model.GiftCard) error
	// FindByCodesForUpdate loads and locks the cards with the given codes. Missing codes are simply absent.
	FindByCodesForUpdate(ctx context.Context, tx Tx, codes []string) ([]*model.GiftCard, error)
	// MarkUsed flips the ACTIVE cards among ids to USED and returns how many changed.
	MarkUsed(ctx context.Context, tx Tx, ids []string, accountID string, now time.Time) (int64, error)
	ExpireStale(ctx context.Context, tx Tx, now time.Time) (int64, error)
}

type RedemptionRepository interface {
	Save(ctx context.Context, tx Tx, r *model.Redemption) error
	ListByAccount(ctx context.Context, tx Tx, accountID string) ([]*model.Redemption, error)
}
