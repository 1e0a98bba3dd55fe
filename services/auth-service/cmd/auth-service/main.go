package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fridakids/salon-api/libs/config"
	"github.com/fridakids/salon-api/libs/db"
	"github.com/fridakids/salon-api/libs/httpx"
	"github.com/fridakids/salon-api/libs/kafkax"
	"github.com/fridakids/salon-api/libs/outbox"
	otelx "github.com/fridakids/salon-api/libs/otel"
	"github.com/fridakids/salon-api/libs/runtime"
	"github.com/fridakids/salon-api/services/auth-service/internal/audit"
	"github.com/fridakids/salon-api/services/auth-service/internal/handlers"
	"github.com/fridakids/salon-api/services/auth-service/internal/lockout"
	"github.com/fridakids/salon-api/services/auth-service/internal/reset"
	"github.com/fridakids/salon-api/services/auth-service/internal/sessions"
	"github.com/fridakids/salon-api/services/auth-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "auth-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	users := storage.NewUserRepository(pool)
	auditRepo := audit.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	refreshRepo := sessions.NewRefreshRepository(pool)
	resetRepo := reset.NewRepository(pool)
	lockoutGuard := lockout.New(lockout.NewRepository(pool), lockout.Config{
		MaxFailures: config.Int("LOGIN_MAX_FAILURES", 5),
		LockFor:     config.Duration("LOGIN_LOCKOUT", 30*time.Minute),
	})

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	authHandler := handlers.NewAuthHandler(pool, users, auditRepo, outboxRepo, refreshRepo, lockoutGuard, resetRepo, logger, handlers.Config{
		JWTSecret:  jwtSecret,
		AccessTTL:  config.Duration("ACCESS_TOKEN_TTL", time.Hour),
		RefreshTTL: config.Duration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		ResetTTL:   config.Duration("RESET_TOKEN_TTL", time.Hour),
		ResetURL:   config.String("RESET_URL", "https://fridakids.com/redefinir-senha"),
	})

	// Brute-force protection beyond the account lockout: a per-IP fixed
	// window on the public endpoints. Redis-backed when available (shared
	// across replicas, failing open if redis is down), in-memory otherwise.
	var rateLimitMW httpx.Middleware
	rateLimit := config.Int("RATE_LIMIT", 30)
	if redisAddr := config.String("REDIS_ADDR", ""); redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		limiter := httpx.NewRedisRateLimiter(rdb, rateLimit, time.Minute, service)
		rateLimitMW = limiter.Middleware(logger, true)
		logger.Info("rate limiting enabled (redis)", "per_minute", rateLimit, "redis_addr", redisAddr)
	} else {
		rateLimitMW = httpx.NewRateLimiter(rateLimit, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", rateLimit)
	}
	public := func(h http.HandlerFunc) http.Handler { return rateLimitMW(h) }

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("/api/v1/auth/register", public(authHandler.Register))
	mux.Handle("/api/v1/auth/login", public(authHandler.Login))
	mux.Handle("/api/v1/auth/refresh", public(authHandler.Refresh))
	mux.Handle("/api/v1/auth/logout", public(authHandler.Logout))
	mux.Handle("/api/v1/auth/reset", public(authHandler.RequestPasswordReset))
	mux.Handle("/api/v1/auth/reset/confirm", public(authHandler.ConfirmPasswordReset))
	mux.HandleFunc("/api/v1/auth/me", authHandler.Me)
	mux.HandleFunc("/api/v1/auth/profile", authHandler.UpdateProfile)
	mux.HandleFunc("/api/v1/auth/audit", authHandler.Audit)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.StringSlice("CORS_ALLOWED_ORIGINS", nil),
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "auth")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}
