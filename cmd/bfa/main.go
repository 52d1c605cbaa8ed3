package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/access"
	chatinfra "github.com/boddenberg/coop-transporte-bfa/internal/chat/infra"
	chatservice "github.com/boddenberg/coop-transporte-bfa/internal/chat/service"
	"github.com/boddenberg/coop-transporte-bfa/internal/config"
	"github.com/boddenberg/coop-transporte-bfa/internal/handler"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/cache"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/localauth"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/observability"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/postgres"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/resilience"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/supabase"
	"github.com/boddenberg/coop-transporte-bfa/internal/port"
	"github.com/boddenberg/coop-transporte-bfa/internal/service"
)

// accessBackend is what the Supabase client and the Postgres store both
// serve: login lookups, the user directory and schedule windows.
type accessBackend interface {
	port.AccessStore
	port.DirectoryStore
	port.ScheduleStore
}

// identityBackend signs members in and manages their identities.
type identityBackend interface {
	port.IdentityProvider
	port.UserAdmin
}

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("access_store", cfg.AccessStore),
		zap.String("auth_provider", cfg.AuthProvider),
		zap.String("schedule_timezone", cfg.ScheduleTimezone),
		zap.String("schedule_gated_roles", cfg.ScheduleGatedRoles),
		zap.Bool("revalidate_on_restore", cfg.RevalidateOnRestore),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Int("max_retries", cfg.MaxRetries),
	)

	policy, err := access.ParsePolicy(cfg.ScheduleGatedRoles)
	if err != nil {
		logger.Fatal("invalid SCHEDULE_GATED_ROLES", zap.Error(err))
	}

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(context.Background(), cfg.OTLPEndpoint)
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Supabase ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
		CallTimeout:    cfg.BackendCallTimeout,
	}
	sb := supabase.NewClient(
		httpClient,
		cfg.SupabaseURL,
		cfg.SupabaseAnonKey,
		cfg.SupabaseServiceKey,
		resilience.NewCircuitBreaker("supabase"),
		resilienceCfg,
		logger,
	).WithMetrics(metrics)
	backends := map[string]handler.Pinger{"supabase": sb}

	// --- Postgres (optional) ---
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" && (cfg.AccessStore == "postgres" || cfg.AuthProvider == "local") {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pool, err = postgres.Connect(ctx, cfg.DatabaseURL, cfg.ScheduleTimezone, logger)
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		backends["postgres"] = pool
	}

	var accessStore accessBackend = sb
	if cfg.AccessStore == "postgres" {
		accessStore = postgres.NewAccessStore(pool, cfg.BackendCallTimeout)
		logger.Info("access data served from postgres")
	}

	var identity identityBackend = sb
	if cfg.AuthProvider == "local" {
		identity = localauth.New(pool, cfg.JWTSecret, cfg.SessionTTL, logger)
		logger.Warn("using local identity provider, not for production")
	}

	// --- Caches ---
	sessions := cache.NewSessionRegistry(cfg.SessionTTL, metrics)
	selections := cache.NewSelectionStore(cfg.SelectionTTL, metrics)

	// --- Services ---
	sessionSvc := service.NewSessionService(
		identity,
		accessStore,
		sessions,
		selections,
		service.SessionConfig{
			JWTSecret:           cfg.JWTSecret,
			SessionTTL:          cfg.SessionTTL,
			Policy:              policy,
			Location:            cfg.Location(),
			RevalidateOnRestore: cfg.RevalidateOnRestore,
		},
		metrics,
		logger,
	)
	roleRequestSvc := service.NewRoleRequestService(sb, sb, accessStore, accessStore, metrics, logger)

	// --- Chat ---
	hub := chatinfra.NewHub(cfg.StreamBuffer, logger)
	supportSvc := chatservice.NewChatService(sb, []chatservice.ChatStrategy{
		chatservice.NewGreetingStrategy(),
		chatservice.NewIncidentStrategy(),
		chatservice.NewPointsStrategy(sb),
		chatservice.NewScheduleStrategy(sb),
		chatservice.NewRouteStrategy(sb),
	}, logger)

	// --- Hosted function auth ---
	functionAuth, err := handler.NewFunctionAuth(cfg.JWKSURL(), cfg.JWKSRefresh, logger)
	if err != nil {
		logger.Fatal("failed to init function auth", zap.Error(err))
	}

	// --- Router ---
	router := handler.NewRouter(handler.Services{
		Sessions:        sessionSvc,
		RoleRequests:    roleRequestSvc,
		SignUp:          service.NewSignUpService(identity, accessStore, logger),
		Users:           service.NewUserService(accessStore, accessStore, sb, logger),
		Schedules:       service.NewScheduleService(accessStore, sb, logger),
		Notifications:   service.NewNotificationService(sb),
		Fleet:           service.NewFleetService(sb, sb, logger),
		Incidents:       service.NewIncidentService(sb, sb, logger),
		Rewards:         service.NewRewardsService(sb, cfg.PointsPerDollar, sb, logger),
		Settings:        service.NewSettingsService(sb, sb, logger),
		Support:         supportSvc,
		Messaging:       chatservice.NewMessagingService(sb, accessStore, hub, logger),
		Hub:             hub,
		FunctionAuth:    functionAuth,
		Backends:        backends,
		RequestTimeout:  cfg.RequestTimeout,
		StreamHeartbeat: cfg.StreamHeartbeat,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}
	roleRequestSvc.Wait()

	logger.Info("server stopped")
}
