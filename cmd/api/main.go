// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/localmart/localmart/internal/access"
	"github.com/localmart/localmart/internal/admin"
	"github.com/localmart/localmart/internal/auth"
	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/delivery"
	"github.com/localmart/localmart/internal/featureflag"
	"github.com/localmart/localmart/internal/geocode"
	"github.com/localmart/localmart/internal/health"
	"github.com/localmart/localmart/internal/middleware"
	"github.com/localmart/localmart/internal/order"
	"github.com/localmart/localmart/internal/payment"
	"github.com/localmart/localmart/internal/pricing"
	"github.com/localmart/localmart/internal/schema"
	"github.com/localmart/localmart/internal/search"
	"github.com/localmart/localmart/internal/server"
	"github.com/localmart/localmart/internal/store"
	"github.com/localmart/localmart/internal/user"
)

const (
	drainDelay          = 5 * time.Second
	defaultPollInterval = 30 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("localmart api exited", "error", err)
		os.Exit(1)
	}
}

// infra is everything that holds a connection and must be closed.
type infra struct {
	db        *core.Database
	redis     *core.Redis
	telemetry *core.Telemetry
	jwt       *auth.JWTManager
}

func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*infra, error) {
	tel, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
	if err != nil {
		logger.Warn("tracing disabled", "error", err)
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("postgres connected", "max_open_conns", cfg.Database.MaxOpenConns)

	rdb, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close() //nolint:errcheck
		return nil, err
	}
	logger.Info("redis connected", "pool_size", cfg.Redis.PoolSize)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		_ = rdb.Close() //nolint:errcheck
		_ = db.Close()  //nolint:errcheck
		return nil, err
	}
	logger.Info("signing key loaded", "kid", jwtManager.KeyID())

	return &infra{db: db, redis: rdb, telemetry: tel, jwt: jwtManager}, nil
}

func (in *infra) close(ctx context.Context, logger *slog.Logger) {
	if err := in.telemetry.Shutdown(ctx); err != nil {
		logger.Error("flush traces", "error", err)
	}
	if err := in.redis.Close(); err != nil {
		logger.Error("close redis", "error", err)
	}
	if err := in.db.Close(); err != nil {
		logger.Error("close postgres", "error", err)
	}
}

// app holds the wired services and their HTTP handlers.
type app struct {
	auth     *auth.Service
	orders   *order.Service
	handlers handlers
}

type handlers struct {
	auth     *auth.Handler
	user     *user.Handler
	store    *store.Handler
	order    *order.Handler
	payment  *payment.Handler
	delivery *delivery.Handler
	search   *search.Handler
	flags    *featureflag.Handler
	admin    *admin.Handler
	health   *health.Handler
}

func build(cfg *config.Config, in *infra, logger *slog.Logger) (*app, error) {
	state, err := schema.Final()
	if err != nil {
		return nil, err
	}
	authz := access.NewAuthorizer(state, access.NewSQLResolver(in.db.DB, state), logger)
	geocoder := geocode.New(cfg.Google, logger)

	users := user.NewService(user.NewRepository(in.db.DB), geocoder, logger)
	sessions := auth.NewService(auth.ServiceConfig{
		Repo:         auth.NewRepository(in.db.DB),
		JWT:          in.jwt,
		UserProvider: users,
		Redis:        in.redis.Client,
		MagicLink:    cfg.MagicLink,
		Logger:       logger,
	})
	stores := store.NewService(store.NewRepository(in.db.DB), geocoder, logger)

	payments := payment.NewService(payment.ServiceConfig{
		Repo:          payment.NewRepository(in.db.DB),
		Processor:     payment.NewStripeProcessor(cfg.Stripe),
		Accounts:      users,
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Logger:        logger,
	})

	// Without Uber credentials quotes answer 503 and dispatch is refused;
	// the rest of the marketplace keeps working.
	var (
		quoter  delivery.Quoter
		courier order.Courier
	)
	if cfg.Uber.Enabled() {
		uber, err := delivery.New(cfg.Uber, logger)
		if err != nil {
			return nil, err
		}
		quoter, courier = uber, uber
	} else {
		logger.Warn("uber direct not configured, dispatch and quotes disabled")
	}

	orders := order.NewService(order.ServiceConfig{
		Repo:       order.NewRepository(in.db.DB),
		Catalog:    stores,
		Payments:   payments,
		Courier:    courier,
		Calculator: pricing.NewCalculator(cfg.Pricing),
		Logger:     logger,
	})
	payments.SetOrders(orders)

	flags := featureflag.NewService(featureflag.NewRepository(in.db.DB), logger)

	return &app{
		auth:   sessions,
		orders: orders,
		handlers: handlers{
			auth:     auth.NewHandler(sessions),
			user:     user.NewHandler(users),
			store:    store.NewHandler(stores, authz),
			order:    order.NewHandler(orders, authz),
			payment:  payment.NewHandler(payments),
			delivery: delivery.NewHandler(quoter, stores),
			search:   search.NewHandler(search.NewClient(cfg.Search), flags),
			flags:    featureflag.NewHandler(flags),
			admin: admin.NewHandler(admin.HandlerConfig{
				Orders:     admin.NewRepository(in.db.DB),
				Sessions:   sessions,
				DBStats:    in.db.Stats,
				RedisStats: in.redis.PoolStats,
				DBPing:     in.db.Ping,
				RedisPing:  in.redis.Ping,
			}),
			health: health.NewHandler(
				health.Check{Name: "database", Critical: true, Probe: in.db.Ping},
				health.Check{Name: "redis", Critical: true, Probe: in.redis.Ping},
			),
		},
	}, nil
}

func routes(r chi.Router, cfg *config.Config, in *infra, a *app, logger *slog.Logger) {
	h := a.handlers

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.GlobalLimit(in.redis.Client, cfg.RateLimit).Handler)
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	r.Use(middleware.CORS(cfg.CORS))

	h.health.RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/.well-known/jwks.json", in.jwt.JWKSHandler())

	authenticated := middleware.Authenticator(a.auth)
	adminOnly := middleware.RequireGlobalAdmin
	authLimit := middleware.AuthLimit(in.redis.Client, cfg.RateLimit).Handler

	r.Route("/api/v0", func(r chi.Router) {
		h.auth.RegisterRoutes(r, authenticated, authLimit)
		h.user.RegisterRoutes(r, authenticated, h.order.UserOrders)
		h.store.RegisterRoutes(r, authenticated, h.order.StoreOrders)
		h.order.RegisterRoutes(r, authenticated)
		h.payment.RegisterRoutes(r, authenticated)
		h.delivery.RegisterRoutes(r)
		h.search.RegisterRoutes(r)
		h.flags.RegisterRoutes(r, func(next http.Handler) http.Handler {
			return authenticated(adminOnly(next))
		})
		h.admin.RegisterRoutes(r, authenticated, adminOnly)
	})
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("starting localmart api",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	in, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}

	a, err := build(cfg, in, logger)
	if err != nil {
		in.close(context.Background(), logger)
		return err
	}

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: a.handlers.health,
		Logger:        logger,
	})
	routes(srv.Router(), cfg, in, a, logger)

	pollInterval := cfg.Uber.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	scheduler, err := newScheduler(ctx, logger,
		job{name: "delivery_poll", spec: every(pollInterval), run: a.orders.PollDeliveries},
		job{name: "purge_refresh_tokens", spec: "@hourly", run: func(ctx context.Context) error {
			n, err := a.auth.PurgeExpired(ctx)
			if err == nil && n > 0 {
				logger.Info("purged expired refresh tokens", "count", n)
			}
			return err
		}},
	)
	if err != nil {
		in.close(context.Background(), logger)
		return err
	}
	scheduler.Start()

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	select {
	case err := <-serveErr:
		<-scheduler.Stop().Done()
		in.close(context.Background(), logger)
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("background jobs still running at shutdown")
	}
	in.close(shutdownCtx, logger)

	logger.Info("stopped")
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
