package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"storefront-system/config"
	"storefront-system/internal/commerce"
	"storefront-system/internal/database"
	"storefront-system/internal/events"
	"storefront-system/internal/idempotency"
	"storefront-system/internal/services/checkout"
	"storefront-system/internal/services/pricing"
	"storefront-system/internal/store/memory"
	"storefront-system/internal/store/mongo"
	"storefront-system/internal/store/postgres"
)

func SetupLogger(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// Closer releases whatever a constructor opened. It is never nil.
type Closer func()

// OpenStore connects the configured backend. Postgres is migrated and
// mongo gets its indexes before the store is returned.
func OpenStore(ctx context.Context, cfg config.Config) (commerce.Store, Closer, error) {
	switch cfg.Store.Driver {
	case "postgres":
		dsn := cfg.DB.URL()
		if err := database.MigrateStoreDB(dsn); err != nil {
			return nil, nil, err
		}
		db, err := database.NewConnection(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to db: %w", err)
		}
		closer := func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		log.Info().Str("driver", "postgres").Msg("store ready")
		return postgres.New(db), closer, nil

	case "mongo":
		client, err := config.NewMongoClient(ctx, cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		closer := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(ctx)
		}
		store := mongo.New(client.Database(cfg.Mongo.Database))
		if err := store.EnsureIndexes(ctx); err != nil {
			closer()
			return nil, nil, err
		}
		log.Info().Str("driver", "mongo").Msg("store ready")
		return store, closer, nil

	case "memory":
		log.Warn().Msg("using in-memory store, data is lost on restart")
		return memory.New(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// OpenRedis returns nil when redis is disabled or unreachable; callers
// fall back to in-process implementations.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		return nil
	}
	rdb, err := config.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, idempotency and events stay in-process")
		return nil
	}
	return rdb
}

// NewCheckoutService wires the storefront service from config. rdb may be nil.
func NewCheckoutService(store commerce.Store, rdb *redis.Client, cfg config.Config) (*checkout.Service, error) {
	table, err := pricing.LoadFallbackTable(cfg.Checkout.BrandFallbackPath)
	if err != nil {
		return nil, err
	}

	var (
		idem      checkout.IdempotencyStore
		publisher checkout.EventPublisher
	)
	if rdb != nil {
		idem = idempotency.NewRedisStore(rdb, cfg.Checkout.IdempotencyTTL)
		publisher = events.NewRedisPublisher(rdb)
	} else {
		idem = idempotency.NewMemoryStore(cfg.Checkout.IdempotencyTTL)
		publisher = events.LogPublisher{}
	}

	return checkout.NewService(store, pricing.NewRateResolver(table), idem, publisher, checkout.Config{
		ShippingFee: cfg.Checkout.ShippingFee,
		Policy:      commerce.CommissionPolicy(cfg.Checkout.CommissionPolicy),
		CallTimeout: cfg.Checkout.CallTimeout,
	}), nil
}
