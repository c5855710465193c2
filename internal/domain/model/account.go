package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamshare/internal/domain"
)

type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusInactive  AccountStatus = "INACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
)

func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusInactive, AccountStatusSuspended:
		return true
	}
	return false
}

// Account is one upstream login whose profile slots are resold.
type Account struct {
	ID              string
	PlatformID      string
	ProviderOfferID *string // cost basis for gift card conversion
	Label           string
	Login           string
	SecretEnc       string // AES-GCM ciphertext of the upstream password
	Status          AccountStatus
	ExpiresAt       *time.Time // nil = no expiry tracked
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewAccount(id, platformID string, providerOfferID *string, label, login, secretEnc string, now time.Time) (*Account, error) {
	if platformID == "" || strings.TrimSpace(login) == "" {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = uuid.NewString()
	}
	return &Account{
		ID:              id,
		PlatformID:      platformID,
		ProviderOfferID: providerOfferID,
		Label:           strings.TrimSpace(label),
		Login:           strings.TrimSpace(login),
		SecretEnc:       secretEnc,
		Status:          AccountStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Usable reports whether new slots may be handed out on this account at now.
func (a *Account) Usable(now time.Time) bool {
	if a.Status != AccountStatusActive {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// AccountProfile is one slot of concurrent-use capacity on an Account.
type AccountProfile struct {
	ID             string
	AccountID      string
	SlotIndex      int
	Name           string
	IsAssigned     bool
	SubscriptionID *string
	UpdatedAt      time.Time
}

// NewProfiles builds the fixed slot set of a freshly provisioned account.
func NewProfiles(accountID string, count int, now time.Time) []*AccountProfile {
	out := make([]*AccountProfile, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, &AccountProfile{
			ID:        uuid.NewString(),
			AccountID: accountID,
			SlotIndex: i,
			Name:      fmt.Sprintf("Profile %d", i+1),
			UpdatedAt: now,
		})
	}
	return out
}

// SlotInventory summarizes slot usage of one account.
type SlotInventory struct {
	AccountID  string
	PlatformID string
	Total      int
	Assigned   int
}

func (s SlotInventory) Free() int { return s.Total - s.Assigned }
