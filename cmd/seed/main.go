// File: cmd/seed/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"streamshare/internal/application"
	"streamshare/internal/config"
	"streamshare/internal/domain"
	"streamshare/internal/infra/logging"
	"streamshare/internal/usecase"
)

func main() {
	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Catalog.Path == "" {
		log.Fatalf("catalog.path is not set")
	}
	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("%v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	engine, err := application.Build(ctx, cfg, domain.SystemClock{}, logger)
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	defer engine.Close()

	created, skipped, err := seedCatalog(ctx, engine.Catalog, cat)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	fmt.Printf("catalog seeded: %d created, %d already present\n", created, skipped)
}

// seedCatalog creates every entry whose id is not yet known. Platforms come
// first since provider offers and offers reference them.
func seedCatalog(ctx context.Context, uc usecase.CatalogUseCase, cat *catalogFile) (created, skipped int, err error) {
	for _, p := range cat.Platforms {
		_, err := uc.GetPlatform(ctx, p.ID)
		switch {
		case err == nil:
			skipped++
			continue
		case !errors.Is(err, domain.ErrPlatformNotFound):
			return created, skipped, err
		}
		if _, err := uc.CreatePlatform(ctx, p.input()); err != nil {
			return created, skipped, fmt.Errorf("platform %s: %w", p.ID, err)
		}
		created++
	}

	listed := map[string]bool{}
	known := map[string]bool{}
	for _, po := range cat.ProviderOffers {
		if !listed[po.PlatformID] {
			existing, err := uc.ListProviderOffers(ctx, po.PlatformID)
			if err != nil {
				return created, skipped, err
			}
			listed[po.PlatformID] = true
			for _, e := range existing {
				known[e.ID] = true
			}
		}
		if known[po.ID] {
			skipped++
			continue
		}
		if _, err := uc.CreateProviderOffer(ctx, po.input()); err != nil {
			return created, skipped, fmt.Errorf("provider offer %s: %w", po.ID, err)
		}
		known[po.ID] = true
		created++
	}

	for _, o := range cat.Offers {
		_, err := uc.GetOffer(ctx, o.ID)
		switch {
		case err == nil:
			skipped++
			continue
		case !errors.Is(err, domain.ErrOfferNotFound):
			return created, skipped, err
		}
		if _, err := uc.CreateOffer(ctx, o.input()); err != nil {
			return created, skipped, fmt.Errorf("offer %s: %w", o.ID, err)
		}
		created++
	}
	return created, skipped, nil
}
