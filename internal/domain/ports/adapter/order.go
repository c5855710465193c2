package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRequest carries what the billing side needs to invoice a renewal.
type OrderRequest struct {
	SubscriptionID string
	PreviousID     string
	UserID         string
	OfferID        string
	Amount         decimal.Decimal
	Currency       string
	RequestedAt    time.Time
}

// OrderCreator produces a billing record for a renewal. Renewals never wait on
// it and never roll back when it fails.
type OrderCreator interface {
	CreateRenewalOrder(ctx context.Context, req OrderRequest) error
}
