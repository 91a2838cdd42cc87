package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
	"github.com/trogers1052/stock-watchlist/internal/api"
	"github.com/trogers1052/stock-watchlist/internal/auth"
	"github.com/trogers1052/stock-watchlist/internal/catalogseed"
	"github.com/trogers1052/stock-watchlist/internal/config"
	"github.com/trogers1052/stock-watchlist/internal/database"
	"github.com/trogers1052/stock-watchlist/internal/kafka"
	"github.com/trogers1052/stock-watchlist/internal/logging"
	"github.com/trogers1052/stock-watchlist/internal/quotes"
	"github.com/trogers1052/stock-watchlist/internal/watchlist"
)

func setup() (*config.Config, *slog.Logger, *database.DB, error) {
	cfg := config.Load()
	logger := logging.New(cfg.Log.Level, cfg.Log.File)
	slog.SetDefault(logger)

	db, err := database.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, db, nil
}

func runMigrate() error {
	_, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func runSeed(ctx context.Context, path string) error {
	_, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	stocks, err := catalogseed.Load(path)
	if err != nil {
		return err
	}
	n, err := catalogseed.Apply(ctx, db, stocks)
	if err != nil {
		return err
	}
	logger.Info("catalog seeded", "file", path, "stocks", n)
	return nil
}

func runServe(parent context.Context, skipMigrations bool) error {
	cfg, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	if !skipMigrations {
		if err := db.RunMigrations(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	generator := quotes.NewGenerator()
	var source quotes.Source = quotes.NewTwelveData(quotes.TwelveDataConfig{
		BaseURL:    cfg.Quotes.BaseURL,
		APIKey:     cfg.Quotes.APIKey,
		Interval:   cfg.Quotes.Interval,
		OutputSize: cfg.Quotes.OutputSize,
		Timeout:    cfg.Quotes.Timeout,
	}, generator, logger)

	var revoker auth.Revoker
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unavailable, running without quote cache and local sign-out", "addr", cfg.Redis.Addr, "error", err)
		} else {
			source = quotes.NewCachedSource(source, quotes.NewRedisCache(rdb), cfg.Quotes.RefreshInterval, logger)
			revoker = auth.NewRedisRevocations(rdb)
			logger.Info("connected to redis", "addr", cfg.Redis.Addr)
		}
	}

	var publisher watchlist.EventPublisher
	var wg conc.WaitGroup
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.SelectionsTopic)
		defer producer.Close()
		publisher = producer

		consumer := kafka.NewCatalogConsumer(cfg.Kafka.Brokers, cfg.Kafka.CatalogTopic, cfg.Kafka.GroupID, db, logger)
		wg.Go(func() {
			if err := consumer.Start(ctx); err != nil {
				logger.Error("catalog consumer stopped", "error", err)
			}
		})
	}

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("SUPABASE_JWT_SECRET is not set, every session will be rejected")
	}
	sessions := auth.NewService(
		auth.NewVerifier(cfg.Auth.JWTSecret, revoker),
		auth.NewProviderClient(cfg.Auth.ProviderURL, cfg.Auth.AnonKey, cfg.Auth.OAuthName),
		revoker,
		auth.NewStateBroker(),
		logger,
	)

	handler := api.NewHandler(api.Deps{
		Sessions:        sessions,
		Users:           db,
		Catalog:         db,
		Selections:      db,
		Publisher:       publisher,
		Quotes:          source,
		RefreshInterval: cfg.Quotes.RefreshInterval,
		DefaultRedirect: cfg.Auth.RedirectURL,
		DB:              db,
		Logger:          logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.SetupRoutes(handler),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		stop()
		wg.Wait()
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	wg.Wait()
	logger.Info("server stopped")
	return nil
}
