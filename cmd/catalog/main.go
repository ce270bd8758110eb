// cmd/catalog/main.go
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"libraryinventory/internal/admission"
	"libraryinventory/internal/api"
	"libraryinventory/internal/cache"
	"libraryinventory/internal/catalog"
	"libraryinventory/internal/config"
	"libraryinventory/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Setup(ctx, "library-inventory", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up telemetry")
	}

	bookCache, err := cache.New[string, catalog.Book](cfg.CacheMaxSize, cfg.CacheInitialCapacity, cfg.CacheLoadFactor)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create book cache")
	}
	gate, err := admission.NewGate(cfg.MaxConcurrentRequests)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create admission gate")
	}

	store := catalog.NewStore(cfg.InventoryShards)
	svc := catalog.NewCachingService(store, bookCache)

	if cfg.SeedDatabaseURL != "" {
		if err := seed(ctx, svc, cfg.SeedDatabaseURL); err != nil {
			log.Fatal().Err(err).Msg("failed to seed inventory")
		}
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(svc, gate),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Int("max_concurrent_requests", gate.Capacity()).
			Int("cache_max_size", cfg.CacheMaxSize).
			Msg("starting catalog service")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("telemetry shutdown")
	}
}

func seed(ctx context.Context, svc catalog.Service, dbURL string) error {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return err
	}
	defer db.Close()

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	books, skipped, err := catalog.LoadBooks(loadCtx, db)
	if err != nil {
		return err
	}
	created := catalog.Seed(ctx, svc, books)
	log.Info().Int("loaded", created).Int("skipped", skipped).Msg("inventory seeded")
	return nil
}
