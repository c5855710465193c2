package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"streamshare/internal/config"
	"streamshare/internal/domain"
	"streamshare/internal/domain/ports/repository"
	"streamshare/internal/infra/adapters/order"
	"streamshare/internal/infra/db/memory"
	"streamshare/internal/infra/db/migrations"
	pg "streamshare/internal/infra/db/postgres"
	red "streamshare/internal/infra/redis"
	"streamshare/internal/infra/security"
	"streamshare/internal/infra/worker"
	"streamshare/internal/usecase"
)

// Engine is the composition root: repositories for the configured driver,
// the optional Redis services and every use case built on top of them.
type Engine struct {
	Catalog       usecase.CatalogUseCase
	Accounts      usecase.AccountUseCase
	Allocator     usecase.Allocator
	GiftCards     usecase.GiftCardUseCase
	Subscriptions usecase.SubscriptionUseCase
	Payments      usecase.PaymentUseCase

	Pool        *pgxpool.Pool      // nil for the memory driver
	Redis       *red.Client        // nil when redis.url is empty
	Locker      red.Locker         // nil without Redis
	RateLimiter *red.WindowLimiter // nil without Redis
	OrderPool   *worker.Pool

	log *zerolog.Logger
}

type repos struct {
	tm             repository.TransactionManager
	platforms      repository.PlatformRepository
	providerOffers repository.ProviderOfferRepository
	offers         repository.OfferRepository
	accounts       repository.AccountRepository
	profiles       repository.ProfileRepository
	subs           repository.SubscriptionRepository
	links          repository.SubscriptionAccountRepository
	cards          repository.GiftCardRepository
	redemptions    repository.RedemptionRepository
	payments       repository.PaymentRepository
	orders         repository.OrderRepository
}

func memoryRepos() repos {
	s := memory.NewStore()
	return repos{
		tm:             s,
		platforms:      memory.NewPlatformRepo(s),
		providerOffers: memory.NewProviderOfferRepo(s),
		offers:         memory.NewOfferRepo(s),
		accounts:       memory.NewAccountRepo(s),
		profiles:       memory.NewProfileRepo(s),
		subs:           memory.NewSubscriptionRepo(s),
		links:          memory.NewSubscriptionAccountRepo(s),
		cards:          memory.NewGiftCardRepo(s),
		redemptions:    memory.NewRedemptionRepo(s),
		payments:       memory.NewPaymentRepo(s),
		orders:         memory.NewOrderRepo(s),
	}
}

func postgresRepos(pool *pgxpool.Pool) repos {
	return repos{
		tm:             pg.NewTxManager(pool),
		platforms:      pg.NewPlatformRepo(pool),
		providerOffers: pg.NewProviderOfferRepo(pool),
		offers:         pg.NewOfferRepo(pool),
		accounts:       pg.NewAccountRepo(pool),
		profiles:       pg.NewProfileRepo(pool),
		subs:           pg.NewSubscriptionRepo(pool),
		links:          pg.NewSubscriptionAccountRepo(pool),
		cards:          pg.NewGiftCardRepo(pool),
		redemptions:    pg.NewRedemptionRepo(pool),
		payments:       pg.NewPaymentRepo(pool),
		orders:         pg.NewOrderRepo(pool),
	}
}

// Build connects the configured stores and wires the use cases. The order
// worker pool is created but not started; call Start.
func Build(ctx context.Context, cfg *config.Config, clock domain.Clock, logger *zerolog.Logger) (*Engine, error) {
	e := &Engine{log: logger}

	var r repos
	switch cfg.Database.Driver {
	case "memory":
		logger.Warn().Msg("using the in-memory store; data is lost on exit")
		r = memoryRepos()
	default:
		if cfg.Database.AutoMigrate {
			if err := migrations.Up(cfg.Database.URL); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		pool, err := pg.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		e.Pool = pool
		r = postgresRepos(pool)
	}

	if cfg.Redis.URL != "" {
		cli, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		e.Redis = cli
		e.Locker = red.NewLocker(cli)
		e.RateLimiter = red.NewWindowLimiter(cli, clock)
		r.platforms = pg.NewPlatformRepoCacheDecorator(r.platforms, cli, cfg.Redis.TTL, logger)
		r.offers = pg.NewOfferRepoCacheDecorator(r.offers, cli, cfg.Redis.TTL, logger)
	}

	sealer, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.OrderPool = worker.NewPool(cfg.Workers.Orders, cfg.Workers.QueueSize, logger)
	orders := order.NewAsyncCreator(order.NewRepoCreator(r.orders, clock, logger), e.OrderPool, 10*time.Second, logger)

	alloc := usecase.NewAllocator(r.accounts, r.profiles, r.links, r.subs, r.offers, r.tm, clock, logger)
	subs := usecase.NewSubscriptionUseCase(r.subs, r.offers, r.accounts, r.profiles, r.links, alloc, orders, r.tm, clock, logger)
	e.Allocator = alloc
	e.Subscriptions = subs
	e.Catalog = usecase.NewCatalogUseCase(r.platforms, r.providerOffers, r.offers, r.tm, logger)
	e.Accounts = usecase.NewAccountUseCase(r.accounts, r.profiles, r.platforms, r.providerOffers, r.tm, sealer, clock, logger)
	e.GiftCards = usecase.NewGiftCardUseCase(r.cards, r.redemptions, r.accounts, r.platforms, r.providerOffers, r.tm, clock, logger, cfg.Runtime.Dev)
	e.Payments = usecase.NewPaymentUseCase(r.payments, r.subs, r.offers, subs, clock, logger)
	return e, nil
}

// Start runs the order workers until ctx is canceled.
func (e *Engine) Start(ctx context.Context) { e.OrderPool.Start(ctx) }

// Health pings the stores the engine depends on.
func (e *Engine) Health(ctx context.Context) error {
	var errs []error
	if e.Pool != nil {
		errs = append(errs, e.Pool.Ping(ctx))
	}
	if e.Redis != nil {
		errs = append(errs, e.Redis.Ping(ctx))
	}
	return errors.Join(errs...)
}

// Close drains queued orders, then releases connections.
func (e *Engine) Close() {
	if e.OrderPool != nil {
		e.OrderPool.Stop()
	}
	if e.Redis != nil {
		if err := e.Redis.Close(); err != nil {
			e.log.Warn().Err(err).Msg("redis close")
		}
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
}
