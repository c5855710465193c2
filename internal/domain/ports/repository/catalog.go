package repository

import (
	"context"

	"streamshare/internal/domain/model"
)

type PlatformRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Platform) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Platform, error)
	List(ctx context.Context, tx Tx) ([]*model.Platform, error)
}

type ProviderOfferRepository interface {
	Save(ctx context.Context, tx Tx, o *model.ProviderOffer) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.ProviderOffer, error)
	ListByPlatform(ctx context.Context, tx Tx, platformID string) ([]*model.ProviderOffer, error)
	// Delete fails with domain.ErrInUse while an account references the offer.
	Delete(ctx context.Context, tx Tx, id string) error
}

type OfferRepository interface {
	// Save inserts the offer with its platform configs. Offers are never updated.
	Save(ctx context.Context, tx Tx, o *model.Offer) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Offer, error)
	List(ctx context.Context, tx Tx) ([]*model.Offer, error)
}
