//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"streamshare/internal/domain"
	"streamshare/internal/domain/model"
	"streamshare/internal/domain/ports/adapter"
	"streamshare/internal/domain/ports/repository"
	"streamshare/internal/infra/db/memory"
	"streamshare/internal/usecase"
)

var t0 = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- fakes ----

type fakeSealer struct{}

func (fakeSealer) Encrypt(s string) (string, error) { return "sealed:" + s, nil }

type MockOrderCreator struct {
	mu       sync.Mutex
	Requests []adapter.OrderRequest

	CreateRenewalOrderFunc func(ctx context.Context, req adapter.OrderRequest) error
}

var _ adapter.OrderCreator = (*MockOrderCreator)(nil)

func (m *MockOrderCreator) CreateRenewalOrder(ctx context.Context, req adapter.OrderRequest) error {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.CreateRenewalOrderFunc != nil {
		return m.CreateRenewalOrderFunc(ctx, req)
	}
	return nil
}

// MockProfileRepository wraps a real profile repository. A set ReassignFunc
// replaces Reassign.
type MockProfileRepository struct {
	repository.ProfileRepository

	ReassignFunc func(ctx context.Context, tx repository.Tx, from, to string, now time.Time) (int, error)
}

func (m *MockProfileRepository) Reassign(ctx context.Context, tx repository.Tx, from, to string, now time.Time) (int, error) {
	if m.ReassignFunc != nil {
		return m.ReassignFunc(ctx, tx, from, to, now)
	}
	return m.ProfileRepository.Reassign(ctx, tx, from, to, now)
}

// flakyTxManager fails the first Failures transactions with a lost slot race.
type flakyTxManager struct {
	inner    repository.TransactionManager
	mu       sync.Mutex
	Failures int
	Calls    int
}

func (f *flakyTxManager) WithTx(ctx context.Context, opt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	f.mu.Lock()
	f.Calls++
	fail := f.Calls <= f.Failures
	f.mu.Unlock()
	if fail {
		return domain.ErrSlotRace
	}
	return f.inner.WithTx(ctx, opt, fn)
}

// ---- environment ----

type env struct {
	t     *testing.T
	ctx   context.Context
	clock *domain.FixedClock
	store *memory.Store

	platforms      repository.PlatformRepository
	providerOffers repository.ProviderOfferRepository
	offers         repository.OfferRepository
	accountsRepo   repository.AccountRepository
	profiles       repository.ProfileRepository
	subsRepo       repository.SubscriptionRepository
	links          repository.SubscriptionAccountRepository
	cardsRepo      repository.GiftCardRepository
	redemptions    repository.RedemptionRepository
	payments       repository.PaymentRepository

	orders *MockOrderCreator

	catalog  usecase.CatalogUseCase
	accounts usecase.AccountUseCase
	alloc    usecase.Allocator
	cards    usecase.GiftCardUseCase
	subs     usecase.SubscriptionUseCase
	pay      usecase.PaymentUseCase
}

func newEnv(t *testing.T) *env {
	return newEnvWithTM(t, nil)
}

// newEnvWithTM builds the engine on a fresh memory store. wrap, when set,
// decorates the store's transaction manager.
func newEnvWithTM(t *testing.T, wrap func(repository.TransactionManager) repository.TransactionManager) *env {
	t.Helper()
	store := memory.NewStore()
	e := &env{
		t:              t,
		ctx:            context.Background(),
		clock:          domain.NewFixedClock(t0),
		store:          store,
		platforms:      memory.NewPlatformRepo(store),
		providerOffers: memory.NewProviderOfferRepo(store),
		offers:         memory.NewOfferRepo(store),
		accountsRepo:   memory.NewAccountRepo(store),
		profiles:       memory.NewProfileRepo(store),
		subsRepo:       memory.NewSubscriptionRepo(store),
		links:          memory.NewSubscriptionAccountRepo(store),
		cardsRepo:      memory.NewGiftCardRepo(store),
		redemptions:    memory.NewRedemptionRepo(store),
		payments:       memory.NewPaymentRepo(store),
		orders:         &MockOrderCreator{},
	}
	var tm repository.TransactionManager = store
	if wrap != nil {
		tm = wrap(store)
	}
	log := newTestLogger()

	alloc := usecase.NewAllocator(e.accountsRepo, e.profiles, e.links, e.subsRepo, e.offers, tm, e.clock, log)
	subs := usecase.NewSubscriptionUseCase(e.subsRepo, e.offers, e.accountsRepo, e.profiles, e.links, alloc, e.orders, tm, e.clock, log)
	e.alloc = alloc
	e.subs = subs
	e.catalog = usecase.NewCatalogUseCase(e.platforms, e.providerOffers, e.offers, tm, log)
	e.accounts = usecase.NewAccountUseCase(e.accountsRepo, e.profiles, e.platforms, e.providerOffers, tm, fakeSealer{}, e.clock, log)
	e.cards = usecase.NewGiftCardUseCase(e.cardsRepo, e.redemptions, e.accountsRepo, e.platforms, e.providerOffers, tm, e.clock, log, true)
	e.pay = usecase.NewPaymentUseCase(e.payments, e.subsRepo, e.offers, subs, e.clock, log)
	return e
}

func (e *env) must(err error) {
	e.t.Helper()
	if err != nil {
		e.t.Fatalf("unexpected error: %v", err)
	}
}

func intPtr(i int) *int { return &i }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func (e *env) platform(slug string, capacity int, giftCards bool) *model.Platform {
	e.t.Helper()
	p, err := e.catalog.CreatePlatform(e.ctx, usecase.PlatformInput{
		Slug:                  slug,
		Name:                  slug,
		MaxProfilesPerAccount: intPtr(capacity),
		HasProfiles:           true,
		HasGiftCards:          giftCards,
	})
	e.must(err)
	return p
}

func (e *env) providerOffer(platformID, price, currency string) *model.ProviderOffer {
	e.t.Helper()
	po, err := e.catalog.CreateProviderOffer(e.ctx, usecase.ProviderOfferInput{
		PlatformID:  platformID,
		Name:        "standard",
		Price:       dec(price),
		Currency:    currency,
		DeviceCount: 4,
	})
	e.must(err)
	return po
}

func (e *env) account(platformID string, providerOfferID *string, slots int) *model.Account {
	e.t.Helper()
	acc, _, err := e.accounts.ProvisionAccount(e.ctx, usecase.ProvisionInput{
		PlatformID:      platformID,
		ProviderOfferID: providerOfferID,
		Label:           "acc",
		Login:           "login@example.com",
		Secret:          "hunter2",
		Slots:           slots,
	})
	e.must(err)
	return acc
}

func (e *env) offer(days int, platforms ...model.OfferPlatform) *model.Offer {
	e.t.Helper()
	total := 0
	for _, p := range platforms {
		total += p.ProfileCount
	}
	o, err := e.catalog.CreateOffer(e.ctx, usecase.OfferInput{
		Name:         "offer",
		Price:        dec("12.00"),
		Currency:     "EUR",
		Duration:     days,
		DurationUnit: model.DurationDay,
		MaxProfiles:  total,
		Platforms:    platforms,
	})
	e.must(err)
	return o
}

func (e *env) activeSub(offerID string) *model.Subscription {
	e.t.Helper()
	s, err := e.subs.Create(e.ctx, "user-1", offerID)
	e.must(err)
	s, err = e.subs.Activate(e.ctx, s.ID)
	e.must(err)
	return s
}

func (e *env) heldSlots(subID string) []int {
	e.t.Helper()
	ps, err := e.profiles.ListBySubscription(e.ctx, nil, subID)
	e.must(err)
	out := make([]int, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.SlotIndex)
	}
	return out
}

func (e *env) freeSlots(accountID string) int {
	e.t.Helper()
	ps, err := e.profiles.ListFree(e.ctx, nil, accountID)
	e.must(err)
	return len(ps)
}
