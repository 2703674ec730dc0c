package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/marketloop/cartengine/api/routes"
	"github.com/marketloop/cartengine/internal/cart"
	"github.com/marketloop/cartengine/internal/catalog"
	"github.com/marketloop/cartengine/internal/guard"
	"github.com/marketloop/cartengine/internal/pricing"
	"github.com/marketloop/cartengine/internal/promotion"
	"github.com/marketloop/cartengine/internal/reservation"
	"github.com/marketloop/cartengine/pkg/config"
	"github.com/marketloop/cartengine/pkg/db"
	"github.com/marketloop/cartengine/pkg/logger"
	"github.com/marketloop/cartengine/pkg/migrate"
	"github.com/marketloop/cartengine/pkg/outbox"
	"github.com/marketloop/cartengine/pkg/redis"
)

const flatShippingFee = 5

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

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	events := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	reservations, err := reservation.NewManager(dbClient.DB(), events, cfg.Reservation, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation manager", err)
		os.Exit(1)
	}

	promoCatalog := catalog.NewPromotionRepository(dbClient.DB())
	evaluator, err := promotion.NewEvaluator(promoCatalog, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create promotion evaluator", err)
		os.Exit(1)
	}
	engine, err := promotion.NewEngine(evaluator, promoCatalog, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create promotion engine", err)
		os.Exit(1)
	}

	prices := catalog.NewRepository(dbClient.DB())
	pipeline, err := pricing.NewPipeline(
		prices,
		catalog.NewStaticTaxRates(),
		catalog.NewFlatShipping(decimal.NewFromInt(flatShippingFee)),
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create pricing pipeline", err)
		os.Exit(1)
	}

	abuse, err := guard.NewAbuseMonitor(redisClient, cfg.Abuse, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create abuse monitor", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(
		cart.NewRepository(dbClient.DB()),
		dbClient,
		guard.NewGuard(cfg.Cart),
		abuse,
		reservations,
		engine,
		pipeline,
		prices,
		events,
		cfg.Cart,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, cartService, abuse),
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-shutdownCtx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(drainCtx); err != nil {
			logg.Error(ctx, "server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
