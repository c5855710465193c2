package repository

import (
	"context"

	"streamshare/internal/domain/model"
)

type PaymentRepository interface {
	// Save fails with domain.ErrAlreadyExists when (subscription, provider ref) was recorded before.
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByRef(ctx context.Context, tx Tx, subscriptionID, providerRef string) (*model.Payment, error)
}

type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	ListBySubscription(ctx context.Context, tx Tx, subscriptionID string) ([]*model.Order, error)
}
