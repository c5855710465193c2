//go:build !integration

package model_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
)

func TestSubscriptionTransitions(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		from, to model.SubscriptionStatus
		ok       bool
	}{
		{model.SubscriptionStatusPending, model.SubscriptionStatusActive, true},
		{model.SubscriptionStatusActive, model.SubscriptionStatusExpired, true},
		{model.SubscriptionStatusPending, model.SubscriptionStatusExpired, false},
		{model.SubscriptionStatusExpired, model.SubscriptionStatusActive, false},
		{model.SubscriptionStatusActive, model.SubscriptionStatusPending, false},
		{model.SubscriptionStatusActive, model.SubscriptionStatusActive, false},
	}
	for _, c := range cases {
		s := &model.Subscription{ID: "s1", Status: c.from}
		err := s.TransitionTo(c.to, now)
		if c.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", c.from, c.to, err)
		}
		if !c.ok {
			if !errors.Is(err, domain.ErrBadTransition) || !errors.Is(err, domain.ErrInvalidState) {
				t.Errorf("%s -> %s: expected bad transition, got %v", c.from, c.to, err)
			}
			if s.Status != c.from {
				t.Errorf("%s -> %s: status changed on rejected transition", c.from, c.to)
			}
		}
	}
}

func TestSubscriptionRenewable(t *testing.T) {
	end := time.Now()
	next := "s2"
	cases := []struct {
		name string
		sub  model.Subscription
		want bool
	}{
		{"active", model.Subscription{Status: model.SubscriptionStatusActive, EndDate: &end}, true},
		{"expired not superseded", model.Subscription{Status: model.SubscriptionStatusExpired, EndDate: &end}, true},
		{"expired and superseded", model.Subscription{Status: model.SubscriptionStatusExpired, EndDate: &end, RenewedToID: &next}, false},
		{"pending", model.Subscription{Status: model.SubscriptionStatusPending, EndDate: &end}, false},
		{"no end date", model.Subscription{Status: model.SubscriptionStatusActive}, false},
	}
	for _, c := range cases {
		if got := c.sub.Renewable(); got != c.want {
			t.Errorf("%s: Renewable = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestNewOfferValidation(t *testing.T) {
	price := decimal.NewFromInt(10)
	two := []model.OfferPlatform{{PlatformID: "p1", ProfileCount: 2}, {PlatformID: "p2", ProfileCount: 1}}

	if _, err := model.NewOffer("", "Duo", price, "usd", 1, model.DurationMonth, 3, two); err != nil {
		t.Fatalf("valid offer rejected: %v", err)
	}
	if _, err := model.NewOffer("", "Duo", price, "usd", 1, model.DurationMonth, 2, two); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("profile counts above max must be rejected, got %v", err)
	}
	if _, err := model.NewOffer("", "Duo", price, "usd", 0, model.DurationMonth, 3, two); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("zero duration must be rejected, got %v", err)
	}
	if _, err := model.NewOffer("", "Duo", price, "usd", 1, "CENTURY", 3, two); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("unknown unit must be rejected, got %v", err)
	}
	dup := []model.OfferPlatform{{PlatformID: "p1", ProfileCount: 1}, {PlatformID: "p1", ProfileCount: 1}}
	if _, err := model.NewOffer("", "Dup", price, "usd", 1, model.DurationMonth, 3, dup); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("duplicate platform must be rejected, got %v", err)
	}
}

func TestPlatformSlotCapacity(t *testing.T) {
	four := 4
	p, err := model.NewPlatform("p", "netflix", "Netflix", &four, true, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if n, err := p.SlotCapacity(0); err != nil || n != 4 {
		t.Errorf("default capacity = %d, %v", n, err)
	}
	if n, err := p.SlotCapacity(3); err != nil || n != 3 {
		t.Errorf("explicit capacity = %d, %v", n, err)
	}
	if _, err := p.SlotCapacity(5); err == nil {
		t.Error("capacity above platform maximum must be rejected")
	}
	single, _ := model.NewPlatform("q", "music", "Music", nil, false, false, false)
	if n, err := single.SlotCapacity(0); err != nil || n != 1 {
		t.Errorf("platform without profiles = %d, %v", n, err)
	}
	unlimited, _ := model.NewPlatform("r", "video", "Video", nil, true, true, false)
	if _, err := unlimited.SlotCapacity(0); err == nil {
		t.Error("unlimited platform needs an explicit slot count")
	}
}

func TestGiftCardRedeemable(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	card, err := model.NewGiftCard(" abc-1 ", decimal.NewFromInt(5), "eur", "p1", nil, now)
	if err != nil {
		t.Fatal(err)
	}
	if card.Code != "ABC-1" || card.Currency != "EUR" {
		t.Fatalf("code/currency not normalized: %q %q", card.Code, card.Currency)
	}
	if err := card.CheckRedeemable("p1", now); err != nil {
		t.Errorf("fresh card: %v", err)
	}
	if err := card.CheckRedeemable("p2", now); !errors.Is(err, domain.ErrPlatformMismatch) {
		t.Errorf("expected platform mismatch, got %v", err)
	}
	card.ExpiresAt = &past
	err = card.CheckRedeemable("p1", now)
	if !errors.Is(err, domain.ErrCardExpired) {
		t.Errorf("expected card expired, got %v", err)
	}
	var de *domain.Error
	if !errors.As(err, &de) || de.Entity != "ABC-1" {
		t.Errorf("error must name the card code, got %v", err)
	}
	card.ExpiresAt = nil
	card.Status = model.GiftCardStatusUsed
	if err := card.CheckRedeemable("p1", now); !errors.Is(err, domain.ErrCardUnavailable) {
		t.Errorf("expected card unavailable, got %v", err)
	}
}

func TestSubscriptionForceExpire(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, from := range []model.SubscriptionStatus{model.SubscriptionStatusPending, model.SubscriptionStatusActive} {
		s := &model.Subscription{ID: "s1", Status: from, AutoRenew: true}
		if err := s.ForceExpire(now); err != nil {
			t.Fatalf("%s: %v", from, err)
		}
		if s.Status != model.SubscriptionStatusExpired || !s.EndDate.Equal(now) || s.AutoRenew {
			t.Errorf("%s: got %+v", from, s)
		}
	}

	s := &model.Subscription{ID: "s1", Status: model.SubscriptionStatusExpired}
	if err := s.ForceExpire(now); !errors.Is(err, domain.ErrBadTransition) {
		t.Errorf("expired: got %v", err)
	}
}
