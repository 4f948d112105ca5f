package main

import (
	"context"

	"shopcore/internal/cart"
	"shopcore/internal/clock"
	"shopcore/internal/config"
	"shopcore/internal/database"
	"shopcore/internal/events"
	"shopcore/internal/handler"
	"shopcore/internal/metrics"
	"shopcore/internal/promotion"
	"shopcore/internal/purchase"
	"shopcore/internal/repository"
	"shopcore/internal/router"
	"shopcore/internal/service"
	"shopcore/internal/stock"
	"shopcore/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module wires every component of the API process.
var Module = fx.Options(
	InfraModule,
	DomainModule,
	ServiceModule,
	HandlerModule,
)

// InfraModule provides connections to the outside world and closes them on stop.
var InfraModule = fx.Module("infra",
	fx.Provide(
		func(cfg *config.Config) zerolog.Logger {
			return config.NewLogger(cfg.Logger)
		},
		newPool,
		newRedis,
		newPublisher,
		newTracerProvider,
		newRegistry,
		metrics.New,
		clock.NewRealClock,
	),
	// The provider must be installed before any component asks for a tracer.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)

// DomainModule provides repositories and the stock, promotion and cart engines.
var DomainModule = fx.Module("domain",
	fx.Provide(
		repository.NewProductRepository,
		repository.NewOrderRepository,
		repository.NewLedgerRepository,
		repository.NewPromotionRepository,
		func(pool *pgxpool.Pool, cfg *config.Config, logger zerolog.Logger) repository.TxManager {
			return repository.NewTxManager(pool, repository.TxOptions{
				MaxRetries:  cfg.Tx.MaxRetries,
				BaseBackoff: cfg.Tx.BaseBackoff,
			}, logger)
		},
		stock.NewManager,
		stock.NewReservation,
		promotion.NewEngine,
		func(client *redis.Client, products repository.ProductRepository, cfg *config.Config, clk clock.Clock, logger zerolog.Logger) *cart.Store {
			return cart.NewStore(client, products, cfg.Redis.CartTTL, clk, logger)
		},
		newPurchaseLoader,
		func(loader purchase.Loader, m *stock.Manager, mt *metrics.Metrics, logger zerolog.Logger) *purchase.Importer {
			return purchase.NewImporter(loader, m, mt, logger)
		},
	),
)

// ServiceModule narrows the engines to the interfaces the services and
// handlers depend on.
var ServiceModule = fx.Module("service",
	fx.Provide(
		func(m *stock.Manager) service.StockService { return m },
		func(r *stock.Reservation) service.StockReserver { return r },
		func(e *promotion.Engine) service.PromotionService { return e },
		func(s *cart.Store) service.CartService { return s },
		func(i *purchase.Importer) service.PurchaseService { return i },
		func(cfg *config.Config) service.SettingsProvider {
			return service.NewStaticSettings(cfg.Shop.Settings())
		},
		service.NewProductService,
		service.NewOrderService,
	),
)

// HandlerModule provides the HTTP handlers and mounts them on the engine.
var HandlerModule = fx.Module("handler",
	fx.Provide(
		handler.NewProductHandler,
		handler.NewStockHandler,
		handler.NewCartHandler,
		handler.NewPromotionHandler,
		handler.NewOrderHandler,
	),
	fx.Invoke(func(
		engine *gin.Engine,
		cfg *config.Config,
		reg *prometheus.Registry,
		logger zerolog.Logger,
		products *handler.ProductHandler,
		stockHandler *handler.StockHandler,
		carts *handler.CartHandler,
		promotions *handler.PromotionHandler,
		orders *handler.OrderHandler,
	) {
		router.New(engine, cfg, router.Handlers{
			Product:   products,
			Stock:     stockHandler,
			Cart:      carts,
			Promotion: promotions,
			Order:     orders,
		}, reg, logger)
	}),
)

func newPool(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().Msg("database schema applied")
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})
	return pool, nil
}

func newRedis(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				return err
			}
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}

func newPublisher(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) events.Publisher {
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic), logger)
		logger.Info().
			Str("brokers", cfg.Kafka.BrokerList()).
			Str("topic", cfg.Kafka.Topic).
			Msg("publishing order events to kafka")
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return publisher.Close()
		},
	})
	return publisher
}

func newTracerProvider(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (*sdktrace.TracerProvider, error) {
	tp, err := tracing.NewProvider(cfg.Tracing, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return tracing.Shutdown(ctx, tp)
		},
	})
	return tp, nil
}

func newRegistry() (*prometheus.Registry, prometheus.Registerer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, reg
}

// newPurchaseLoader reads purchase order files from S3 when configured and
// from local disk otherwise or when S3 is unreachable.
func newPurchaseLoader(cfg *config.Config, logger zerolog.Logger) purchase.Loader {
	fileLoader := purchase.NewFileLoader(logger)
	if !cfg.S3.Enabled {
		logger.Info().Msg("using local file system for purchase order files (S3 disabled)")
		return fileLoader
	}

	s3Loader, err := purchase.NewS3Loader(context.Background(), cfg.S3.Bucket, cfg.S3.Region, logger)
	if err != nil {
		logger.Warn().
			Err(err).
			Msg("failed to initialise S3 loader, falling back to local file system only")
		return fileLoader
	}
	return purchase.NewFallbackLoader(s3Loader, fileLoader, cfg.S3.Prefix, true, logger)
}
