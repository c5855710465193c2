//go:build !integration

package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"streamshare/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		entity string
	}{
		{"not found", domain.ErrAccountNotFound.With("acc-1"), http.StatusNotFound, "account_not_found", "acc-1"},
		{"capacity", domain.ErrAllocationFailed.With("pf-1"), http.StatusConflict, "allocation_failed", "pf-1"},
		{"state", domain.ErrNotRenewable, http.StatusConflict, "not_renewable", ""},
		{"validation", domain.ErrCardExpired.With("OLD-1"), http.StatusUnprocessableEntity, "card_expired", "OLD-1"},
		{"conversion", domain.ErrInsufficientAmount, http.StatusUnprocessableEntity, "insufficient_amount", ""},
		{"conflict", domain.ErrSlotRace, http.StatusConflict, "slot_race", ""},
		{"exists", fmt.Errorf("%w: gift card X", domain.ErrAlreadyExists), http.StatusConflict, "already_exists", ""},
		{"in use", domain.ErrInUse, http.StatusConflict, "in_use", ""},
		{"argument", fmt.Errorf("%w: no codes", domain.ErrInvalidArgument), http.StatusBadRequest, "invalid_argument", ""},
		{"wrapped domain", fmt.Errorf("activate: %w", domain.ErrSubscriptionNotFound), http.StatusNotFound, "subscription_not_found", ""},
		{"unknown", errors.New("pq: connection reset"), http.StatusInternalServerError, "internal", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := statusFor(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body.Code)
			assert.Equal(t, tc.entity, body.Entity)
		})
	}

	_, body := statusFor(errors.New("secret dsn in message"))
	assert.Equal(t, "internal error", body.Message, "internal errors must not leak details")
}
