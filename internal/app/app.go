package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/storefront/internal/client/order"
	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/internal/event"
	handler "github.com/utafrali/storefront/internal/handler/http"
	"github.com/utafrali/storefront/internal/repository"
	filerepo "github.com/utafrali/storefront/internal/repository/file"
	"github.com/utafrali/storefront/internal/repository/memory"
	redisrepo "github.com/utafrali/storefront/internal/repository/redis"
	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/database"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/httpclient"
	pkgkafka "github.com/utafrali/storefront/pkg/kafka"
	"github.com/utafrali/storefront/pkg/middleware"
	"github.com/utafrali/storefront/pkg/tracing"
)

// App wires together all dependencies and runs the cart service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	carts          *service.CartService
	publisher      pkgkafka.Publisher
	closeSlots     func() error
	httpServer     *http.Server
	tracerShutdown tracing.ShutdownFunc
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    "cart",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Durable slots.
	slots, closeSlots, err := openSlots(ctx, cfg, logger)
	if err != nil {
		_ = tracerShutdown(context.Background())
		return nil, err
	}

	// Cart events. Without brokers events are dropped.
	var publisher pkgkafka.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	} else {
		publisher = pkgkafka.NewNopPublisher(logger)
		logger.Info("no kafka brokers configured, cart events disabled")
	}

	// Order service client. Order creation is not idempotent, so the
	// breaker sees every attempt and nothing is retried.
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         cfg.OrderTimeout,
		MaxRetries:      0,
		RetryWaitMin:    500 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		MaxConnsPerHost: 100,
	})
	cbCfg := httpclient.DefaultBreakerConfig("cart-orders")
	orderHTTP := httpclient.NewBreakerClient(baseClient, cbCfg, logger)
	orders := order.NewClient(cfg.OrderServiceURL, orderHTTP, logger)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.String("order_service_url", cfg.OrderServiceURL),
	)

	// Build the dependency graph.
	carts := service.NewCartService(slots, event.NewProducer(publisher, logger), orders, logger, service.Config{
		SessionIdle: cfg.SessionIdle,
		SlotTimeout: cfg.SlotTimeout,
	})

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("slot_"+slots.Name(), slots.Ping)
	healthHandler.RegisterNonCritical("kafka", publisher.Ping)
	healthHandler.RegisterNonCritical("order_service", func(context.Context) error {
		if orderHTTP.State() == gobreaker.StateOpen {
			return errors.New("circuit breaker open")
		}
		return nil
	})

	// HTTP router.
	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSOrigins
	cors.Environment = cfg.Environment
	router := handler.NewRouter(carts, healthHandler, logger, handler.RouterConfig{
		CORS:       cors,
		PprofCIDRs: cfg.PprofCIDRs,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		carts:          carts,
		publisher:      publisher,
		closeSlots:     closeSlots,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// openSlots builds the configured slot provider and its close function.
func openSlots(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.SlotProvider, func() error, error) {
	switch cfg.SlotBackend {
	case config.BackendRedis:
		rcfg := database.DefaultRedisConfig()
		rcfg.Addr = cfg.RedisAddr
		rcfg.Password = cfg.RedisPass
		rcfg.DB = cfg.RedisDB
		rcfg.SlowThreshold = cfg.RedisSlowThreshold
		rcfg.Logger = logger
		rdb, err := database.NewRedisClient(ctx, rcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		database.RegisterPoolMetrics(rdb, "cart")
		logger.Info("connected to Redis",
			slog.String("addr", cfg.RedisAddr),
			slog.Int("db", cfg.RedisDB),
		)
		return redisrepo.NewProvider(rdb, cfg.CartTTLDuration()), rdb.Close, nil

	case config.BackendFile:
		p, err := filerepo.NewProvider(cfg.SlotDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open slot directory: %w", err)
		}
		logger.Info("using file slots", slog.String("dir", cfg.SlotDir))
		return p, func() error { return nil }, nil

	default:
		logger.Warn("using in-memory slots, carts will not survive a restart")
		return memory.NewProvider(), func() error { return nil }, nil
	}
}

// Run starts the HTTP server and the session janitor, and blocks until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go a.carts.Run(janitorCtx)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components in order: the HTTP server
// drains in-flight requests, then the tracer flushes, then the publisher
// and slot backend close.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
	}

	if err := a.tracerShutdown(shutdownCtx); err != nil {
		a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
	}

	if err := a.publisher.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
	}

	if err := a.closeSlots(); err != nil {
		a.logger.Error("slot backend close error", slog.String("error", err.Error()))
	}

	a.logger.Info("application shutdown complete")
	return nil
}
