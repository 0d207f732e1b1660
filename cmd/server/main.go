package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	redisstore "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/viziersvault/vault-session/internal/config"
	"github.com/viziersvault/vault-session/internal/database"
	"github.com/viziersvault/vault-session/internal/handlers"
	"github.com/viziersvault/vault-session/internal/hint"
	"github.com/viziersvault/vault-session/internal/logger"
	"github.com/viziersvault/vault-session/internal/middleware"
	"github.com/viziersvault/vault-session/internal/ratelimit"
	"github.com/viziersvault/vault-session/internal/services/identity"
	"github.com/viziersvault/vault-session/internal/telemetry"
)

const serviceName = "vault-session"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = logger.Sync(zapLogger)
	}()

	zapLogger.Info("starting_server",
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.Bool("hint_minting_enabled", cfg.HintMintingEnabled()),
		zap.Bool("identity_verification_enabled", cfg.IdentityVerificationEnabled()),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	// Initialize OpenTelemetry if enabled
	var tracerProvider interface{ Shutdown(context.Context) error }
	if cfg.OTELEnabled {
		if cfg.OTELEndpoint == "" {
			zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		} else {
			tp, err := telemetry.InitTracer(context.Background(), serviceName, cfg.OTELEndpoint)
			if err != nil {
				zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
			} else {
				tracerProvider = tp
				zapLogger.Info("otel_tracer_initialized",
					zap.String("endpoint", cfg.OTELEndpoint),
				)
				defer func() {
					shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer shutdownCancel()
					if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
						zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
					}
				}()
			}
		}
	}

	// Connect to the account store
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	// Rate limit counters live in Redis when configured, otherwise in
	// process memory (single-instance deployments only).
	var redisClient *redis.Client
	var store limiter.Store
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("invalid_redis_url", zap.Error(err))
		}
		redisClient = redis.NewClient(opts)
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		store, err = redisstore.NewStoreWithOptions(redisClient, limiter.StoreOptions{
			Prefix: "vv:ratelimit",
		})
		if err != nil {
			zapLogger.Fatal("failed_to_create_redis_rate_limit_store", zap.Error(err))
		}
		zapLogger.Info("connected_to_redis")
	} else {
		store = memorystore.NewStore()
		zapLogger.Warn("redis_not_configured_using_in_memory_rate_limits")
	}

	// Quota table: file override for local development, built-in defaults
	// otherwise. The DB-backed reloader takes over after startup.
	table := ratelimit.DefaultTable()
	if cfg.QuotasFile != "" {
		table, err = ratelimit.LoadFile(cfg.QuotasFile)
		if err != nil {
			zapLogger.Fatal("failed_to_load_quotas_file",
				zap.String("path", cfg.QuotasFile),
				zap.Error(err))
		}
		zapLogger.Info("loaded_quotas_file", zap.String("path", cfg.QuotasFile))
	}

	gateLimiter, err := ratelimit.New(store, table)
	if err != nil {
		zapLogger.Fatal("invalid_quota_table", zap.Error(err))
	}

	// Initialize repositories
	profileRepo := database.NewProfileRepository(db)
	originConfigRepo := database.NewOriginConfigRepository(db)
	quotaConfigRepo := database.NewQuotaConfigRepository(db)

	// Hint codec; nil disables minting and degrades every caller to free.
	var codec *hint.Codec
	if cfg.HintMintingEnabled() {
		codec, err = hint.NewCodec(cfg.CookieSecret)
		if err != nil {
			zapLogger.Fatal("invalid_cookie_secret", zap.Error(err))
		}
	} else {
		zapLogger.Warn("cookie_secret_not_configured_hint_minting_disabled")
	}

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(codec, profileRepo,
		time.Duration(cfg.HintTTLHours)*time.Hour, cfg.SecureCookies, zapLogger)
	if cfg.IdentityVerificationEnabled() {
		sessionHandler = sessionHandler.WithIdentityVerifier(
			identity.NewVerifier(cfg.IDPIssuer, cfg.IDPJWKSURL))
		zapLogger.Info("identity_verification_enabled",
			zap.String("issuer", cfg.IDPIssuer))
	}
	gateHandler := handlers.NewGateHandler(gateLimiter, zapLogger)
	healthChecker := handlers.NewHealthChecker(db, redisClient)

	// Setup router
	r := mux.NewRouter()

	if cfg.OTELEnabled && tracerProvider != nil {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))

	// Allowed origins come from the DB with ALLOWED_ORIGINS as fallback,
	// hot-reloaded every minute.
	originReloader := middleware.NewOriginReloader(originConfigRepo, cfg.AllowedOrigins, zapLogger, 1*time.Minute)
	r.Use(originReloader.Middleware())

	r.Use(middleware.RequestID)
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(10 * time.Second))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.Logging(zapLogger))

	// Per-IP service rate limit, applied to the public endpoints below.
	serviceLimitMW, err := middleware.ServiceRateLimit(store, cfg.ServiceRate)
	if err != nil {
		zapLogger.Fatal("invalid_service_rate", zap.Error(err))
	}

	// Public routes (no rate limiting for health checks)
	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods("GET")

	// Session routes: cross-site writes are rejected before any account
	// store work happens.
	sessionRouter := r.PathPrefix("/session").Subrouter()
	sessionRouter.Use(middleware.OriginCheck(originReloader.Origins, zapLogger))
	sessionRouter.Use(serviceLimitMW)
	sessionRouter.Use(middleware.Eligibility(codec, zapLogger))
	sessionHandler.RegisterRoutes(sessionRouter)

	// Gate routes: the hint decides the tier, the limiter decides admission.
	gateRouter := r.PathPrefix("/gate").Subrouter()
	gateRouter.Use(serviceLimitMW)
	gateRouter.Use(middleware.Eligibility(codec, zapLogger))
	gateHandler.RegisterRoutes(gateRouter)

	// Preflight requests only need the CORS headers set upstream.
	r.Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB max header size
	}

	// Hot-reload loops for origins and quotas
	reloadCtx, reloadCancel := context.WithCancel(context.Background())
	defer reloadCancel()
	go originReloader.Start(reloadCtx)
	quotaReloader := ratelimit.NewReloader(gateLimiter, quotaConfigRepo, table, zapLogger, 1*time.Minute)
	go quotaReloader.Start(reloadCtx)

	go func() {
		zapLogger.Info("server_starting",
			zap.String("port", cfg.ServerPort),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	reloadCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Fatal("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}
