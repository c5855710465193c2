package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment records a confirmation handed to the engine by the payment processor.
// The engine never authorizes or captures money itself.
type Payment struct {
	ID             string
	SubscriptionID string
	Amount         decimal.Decimal
	Currency       string
	ProviderRef    string
	ConfirmedAt    time.Time
}

type OrderKind string

const OrderKindRenewal OrderKind = "RENEWAL"

// Order is the billing record produced by the order collaborator.
type Order struct {
	ID             string
	Number         string // ULID, sortable by creation time
	Kind           OrderKind
	SubscriptionID string
	UserID         string
	OfferID        string
	Amount         decimal.Decimal
	Currency       string
	CreatedAt      time.Time
}
