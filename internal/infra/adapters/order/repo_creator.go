package order

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/adapter"
	"streamshare/internal/domain/ports/repository"
)

var _ adapter.OrderCreator = (*RepoCreator)(nil)

// RepoCreator writes renewal orders into the orders table.
type RepoCreator struct {
	orders repository.OrderRepository
	clock  domain.Clock
	log    *zerolog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

func NewRepoCreator(orders repository.OrderRepository, clock domain.Clock, logger *zerolog.Logger) *RepoCreator {
	l := logger.With().Str("component", "orderCreator").Logger()
	return &RepoCreator{
		orders:  orders,
		clock:   clock,
		log:     &l,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// number is monotonic within the process so orders created in the same
// millisecond still sort by creation.
func (c *RepoCreator) number(at time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(at), c.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (c *RepoCreator) CreateRenewalOrder(ctx context.Context, req adapter.OrderRequest) error {
	now := c.clock.Now()
	num, err := c.number(now)
	if err != nil {
		return domain.ErrOperationFailed
	}
	o := &model.Order{
		ID:             uuid.NewString(),
		Number:         num,
		Kind:           model.OrderKindRenewal,
		SubscriptionID: req.SubscriptionID,
		UserID:         req.UserID,
		OfferID:        req.OfferID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		CreatedAt:      now,
	}
	if err := c.orders.Save(ctx, repository.NoTX, o); err != nil {
		return err
	}
	c.log.Info().Str("subscription_id", req.SubscriptionID).Str("order", num).Msg("renewal order created")
	return nil
}
