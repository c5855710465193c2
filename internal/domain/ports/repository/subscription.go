package repository

import (
	"context"
	"time"

	"streamshare/internal/domain/model"
)

type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByIDForUpdate(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Subscription, error)

	// ExpireIfDue flips one subscription to EXPIRED when it is ACTIVE and its
	// end date has passed. It reports whether a row changed.
	ExpireIfDue(ctx context.Context, tx Tx, id string, now time.Time) (bool, error)
	// ExpireDue is the sweep form of ExpireIfDue; it returns the expired ids.
	ExpireDue(ctx context.Context, tx Tx, now time.Time) ([]string, error)
	// ListExpiredHoldingSlots returns EXPIRED subscriptions that still hold profiles.
	ListExpiredHoldingSlots(ctx context.Context, tx Tx, limit int) ([]string, error)
}

type SubscriptionAccountRepository interface {
	// Link creates the (subscription, account) link or re-activates a released one.
	Link(ctx context.Context, tx Tx, subscriptionID, accountID string, now time.Time) error
	ListBySubscription(ctx context.Context, tx Tx, subscriptionID string) ([]*model.SubscriptionAccount, error)
	MarkReleased(ctx context.Context, tx Tx, subscriptionID, accountID string) error
}
