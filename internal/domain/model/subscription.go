package model

import (
	"time"

	"github.com/google/uuid"

	"streamshare/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusPending SubscriptionStatus = "PENDING"
	SubscriptionStatusActive  SubscriptionStatus = "ACTIVE"
	SubscriptionStatusExpired SubscriptionStatus = "EXPIRED"
)

type transition struct {
	From, To SubscriptionStatus
}

var validTransitions = map[transition]bool{
	{SubscriptionStatusPending, SubscriptionStatusActive}: true, // activation after payment
	{SubscriptionStatusActive, SubscriptionStatusExpired}: true, // end date passed or superseded
}

// CanTransition reports whether from -> to is a regular lifecycle step.
func CanTransition(from, to SubscriptionStatus) bool {
	return validTransitions[transition{from, to}]
}

// Subscription links a customer to an Offer for an entitlement window.
type Subscription struct {
	ID            string
	UserID        string
	OfferID       string
	StartDate     time.Time
	EndDate       *time.Time // nil only while PENDING and not yet scheduled
	Status        SubscriptionStatus
	AutoRenew     bool
	RenewedFromID *string
	RenewedToID   *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewSubscription(userID, offerID string, start, end time.Time) (*Subscription, error) {
	if userID == "" || offerID == "" || end.Before(start) {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		OfferID:   offerID,
		StartDate: start,
		EndDate:   &end,
		Status:    SubscriptionStatusPending,
		CreatedAt: start,
		UpdatedAt: start,
	}, nil
}

// TransitionTo moves the subscription along the lifecycle or fails with ErrBadTransition.
func (s *Subscription) TransitionTo(to SubscriptionStatus, now time.Time) error {
	if !CanTransition(s.Status, to) {
		return domain.ErrBadTransition.With(s.ID)
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}

// ForceExpire is the administrative override: it ends a PENDING or ACTIVE
// subscription now, skipping the regular table.
func (s *Subscription) ForceExpire(now time.Time) error {
	if s.Status == SubscriptionStatusExpired {
		return domain.ErrBadTransition.With(s.ID)
	}
	s.Status = SubscriptionStatusExpired
	s.EndDate = &now
	s.AutoRenew = false
	s.UpdatedAt = now
	return nil
}

// Due reports whether an ACTIVE subscription has passed its end date.
func (s *Subscription) Due(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.EndDate != nil && now.After(*s.EndDate)
}

// Renewable reports whether a successor may be created for this subscription.
func (s *Subscription) Renewable() bool {
	if s.EndDate == nil || s.RenewedToID != nil {
		return false
	}
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusExpired
}

type LinkStatus string

const (
	LinkStatusActive   LinkStatus = "ACTIVE"
	LinkStatusReleased LinkStatus = "RELEASED"
)

// SubscriptionAccount records that an Account serves a Subscription.
type SubscriptionAccount struct {
	SubscriptionID string
	AccountID      string
	Status         LinkStatus
	CreatedAt      time.Time
}
