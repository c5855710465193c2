package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/repository"
)

var (
	_ repository.GiftCardRepository   = (*giftCardRepo)(nil)
	_ repository.RedemptionRepository = (*redemptionRepo)(nil)
)

type giftCardRepo struct{ s *Store }

func NewGiftCardRepo(s *Store) *giftCardRepo { return &giftCardRepo{s: s} }

func copyCard(c model.GiftCard) *model.GiftCard {
	c.ExpiresAt = copyTime(c.ExpiresAt)
	c.UsedByID = copyStr(c.UsedByID)
	c.UsedAt = copyTime(c.UsedAt)
	return &c
}

func (r *giftCardRepo) SaveBatch(ctx context.Context, tx repository.Tx, cards []*model.GiftCard) error {
	return r.s.with(tx, func(st *state) error {
		seen := make(map[string]bool, len(cards))
		for _, c := range cards {
			if _, ok := st.cardCodes[c.Code]; ok || seen[c.Code] {
				return fmt.Errorf("%w: gift card %s", domain.ErrAlreadyExists, c.Code)
			}
			if _, ok := st.platforms[c.PlatformID]; !ok {
				return domain.ErrPlatformNotFound.With(c.PlatformID)
			}
			seen[c.Code] = true
		}
		for _, c := range cards {
			st.cards[c.ID] = *copyCard(*c)
			st.cardCodes[c.Code] = c.ID
		}
		return nil
	})
}

func (r *giftCardRepo) FindByCodesForUpdate(ctx context.Context, tx repository.Tx, codes []string) ([]*model.GiftCard, error) {
	var out []*model.GiftCard
	err := r.s.with(tx, func(st *state) error {
		for _, code := range codes {
			if id, ok := st.cardCodes[code]; ok {
				out = append(out, copyCard(st.cards[id]))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, err
}

func (r *giftCardRepo) MarkUsed(ctx context.Context, tx repository.Tx, ids []string, accountID string, now time.Time) (int64, error) {
	var n int64
	err := r.s.with(tx, func(st *state) error {
		for _, id := range ids {
			c, ok := st.cards[id]
			if !ok || c.Status != model.GiftCardStatusActive {
				continue
			}
			acc, at := accountID, now
			c.Status = model.GiftCardStatusUsed
			c.UsedByID = &acc
			c.UsedAt = &at
			st.cards[id] = c
			n++
		}
		return nil
	})
	return n, err
}

func (r *giftCardRepo) ExpireStale(ctx context.Context, tx repository.Tx, now time.Time) (int64, error) {
	var n int64
	err := r.s.with(tx, func(st *state) error {
		for id, c := range st.cards {
			if c.Status != model.GiftCardStatusActive || c.ExpiresAt == nil || !c.ExpiresAt.Before(now) {
				continue
			}
			c.Status = model.GiftCardStatusExpired
			st.cards[id] = c
			n++
		}
		return nil
	})
	return n, err
}

type redemptionRepo struct{ s *Store }

func NewRedemptionRepo(s *Store) *redemptionRepo { return &redemptionRepo{s: s} }

func copyRedemption(r model.Redemption) *model.Redemption {
	r.CardIDs = append([]string(nil), r.CardIDs...)
	r.PreviousExpiry = copyTime(r.PreviousExpiry)
	return &r
}

func (r *redemptionRepo) Save(ctx context.Context, tx repository.Tx, red *model.Redemption) error {
	return r.s.with(tx, func(st *state) error {
		if _, ok := st.accounts[red.AccountID]; !ok {
			return domain.ErrAccountNotFound.With(red.AccountID)
		}
		st.redemptions[red.ID] = *copyRedemption(*red)
		return nil
	})
}

func (r *redemptionRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string) ([]*model.Redemption, error) {
	var out []*model.Redemption
	err := r.s.with(tx, func(st *state) error {
		for _, red := range st.redemptions {
			if red.AccountID == accountID {
				out = append(out, copyRedemption(red))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, err
}
