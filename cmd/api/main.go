package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/shopfront-backend/api/routes"
	"github.com/angelmondragon/shopfront-backend/internal/admin"
	"github.com/angelmondragon/shopfront-backend/internal/auth"
	"github.com/angelmondragon/shopfront-backend/internal/catalog"
	"github.com/angelmondragon/shopfront-backend/internal/contacts"
	"github.com/angelmondragon/shopfront-backend/internal/imports"
	"github.com/angelmondragon/shopfront-backend/internal/orders"
	"github.com/angelmondragon/shopfront-backend/internal/shops"
	"github.com/angelmondragon/shopfront-backend/internal/users"
	"github.com/angelmondragon/shopfront-backend/pkg/auth/session"
	"github.com/angelmondragon/shopfront-backend/pkg/config"
	"github.com/angelmondragon/shopfront-backend/pkg/db"
	"github.com/angelmondragon/shopfront-backend/pkg/env"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
	"github.com/angelmondragon/shopfront-backend/pkg/metrics"
	"github.com/angelmondragon/shopfront-backend/pkg/migrate"
	"github.com/angelmondragon/shopfront-backend/pkg/outbox"
	"github.com/angelmondragon/shopfront-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := multierr.Combine(redisClient.Close(), dbClient.Close()); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := buildDeps(cfg, logg, dbClient, redisClient, registry)
	if err != nil {
		logg.Error(ctx, "failed to wire services", err)
		os.Exit(1)
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}
}

func buildDeps(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, registry *prometheus.Registry) (routes.Deps, error) {
	conn := dbClient.DB()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return routes.Deps{}, err
	}
	outboxService := outbox.NewService(outbox.NewRepository(conn), logg)

	authService, err := auth.NewService(auth.ServiceParams{
		UserRepo:       users.NewRepository(conn),
		TokenRepo:      users.NewTokenRepository(conn),
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		TokenConfig:    cfg.AuthToken,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	registerService, err := auth.NewRegisterService(auth.RegisterServiceParams{
		DB:             dbClient,
		Outbox:         outboxService,
		PasswordConfig: cfg.Password,
		ConfirmConfig:  cfg.EmailConfirm,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	userService, err := users.NewService(users.NewRepository(conn), cfg.Password)
	if err != nil {
		return routes.Deps{}, err
	}
	contactService, err := contacts.NewService(contacts.NewRepository(conn))
	if err != nil {
		return routes.Deps{}, err
	}
	shopService, err := shops.NewService(shops.NewRepository(conn))
	if err != nil {
		return routes.Deps{}, err
	}
	catalogService, err := catalog.NewService(catalog.NewRepository(conn))
	if err != nil {
		return routes.Deps{}, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:    orders.NewRepository(conn),
		DB:      dbClient,
		Outbox:  outboxService,
		Metrics: metrics.NewOrderMetrics(registry),
	})
	if err != nil {
		return routes.Deps{}, err
	}
	importService, err := imports.NewService(imports.ServiceParams{
		DB:      dbClient,
		Locker:  redisClient,
		Fetcher: imports.NewHTTPFetcher(cfg.Import.FetchTimeout, cfg.Import.MaxBodyBytes),
		Outbox:  outboxService,
		Metrics: metrics.NewImportMetrics(registry),
		Logger:  logg,
		LockTTL: cfg.Import.LockTTL,
	})
	if err != nil {
		return routes.Deps{}, err
	}
	policy, err := admin.NewPolicy()
	if err != nil {
		return routes.Deps{}, err
	}
	adminService, err := admin.NewService(admin.ServiceParams{
		DB:     conn,
		Policy: policy,
		Orders: orderService,
	})
	if err != nil {
		return routes.Deps{}, err
	}

	return routes.Deps{
		DB:       dbClient,
		Redis:    redisClient,
		Sessions: sessionManager,
		Gatherer: registry,
		HTTP:     metrics.NewHTTPMetrics(registry),
		Auth:     authService,
		Register: registerService,
		Users:    userService,
		Contacts: contactService,
		Shops:    shopService,
		Catalog:  catalogService,
		Orders:   orderService,
		Imports:  importService,
		Admin:    adminService,
	}, nil
}
