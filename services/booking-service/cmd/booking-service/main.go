package main

import (
	"context"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fridakids/salon-api/libs/auth"
	"github.com/fridakids/salon-api/libs/config"
	"github.com/fridakids/salon-api/libs/db"
	"github.com/fridakids/salon-api/libs/httpx"
	"github.com/fridakids/salon-api/libs/kafkax"
	outboxx "github.com/fridakids/salon-api/libs/outbox"
	otelx "github.com/fridakids/salon-api/libs/otel"
	"github.com/fridakids/salon-api/libs/runtime"
	"github.com/fridakids/salon-api/services/booking-service/internal/booking"
	"github.com/fridakids/salon-api/services/booking-service/internal/catalog"
	"github.com/fridakids/salon-api/services/booking-service/internal/handlers"
	"github.com/fridakids/salon-api/services/booking-service/internal/policy"
	"github.com/fridakids/salon-api/services/booking-service/internal/storage"
	"github.com/fridakids/salon-api/services/booking-service/internal/sweep"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8082")
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

	loc, err := time.LoadLocation(config.String("SALON_TIMEZONE", "America/Sao_Paulo"))
	if err != nil {
		logger.Error("invalid salon timezone, falling back to UTC", "err", err)
		loc = time.UTC
	}

	rules := policy.Default(loc)
	rules.CurrentYearOnly = config.Bool("BOOKING_CURRENT_YEAR_ONLY", rules.CurrentYearOnly)
	rules.AdminBypassWeekday = config.Bool("BOOKING_ADMIN_BYPASS_WEEKDAY", rules.AdminBypassWeekday)
	rules.AdminBypassDayBlock = config.Bool("BOOKING_ADMIN_BYPASS_DAY_BLOCK", rules.AdminBypassDayBlock)
	rules.Staff = config.StringSlice("SALON_STAFF", rules.Staff)
	rules.Services = config.StringSlice("SALON_SERVICES", rules.Services)

	cat := catalog.Default()
	if std := config.StringSlice("SALON_SLOTS", nil); len(std) > 0 {
		cat = catalog.New(std, config.StringSlice("SALON_SLOTS_EXTENDED", nil))
	}

	outboxRepo := outboxx.NewRepository(pool)
	repo := storage.NewRepository(pool, outboxRepo)
	svc := booking.New(repo, cat, rules, nil)

	outboxPublisher := outboxx.NewPublisher(pool, outboxRepo, logger, outboxx.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	sweeper := sweep.New(repo, logger, sweep.Config{
		Grace: config.Duration("COMPLETION_GRACE", 30*time.Minute),
		Every: config.Duration("COMPLETION_SWEEP_EVERY", time.Minute),
	})
	go sweeper.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(svc, logger)
	adminHandler := handlers.NewAdminHandler(svc, repo, cat, rules, logger)

	requireAuth := auth.RequireAuth(jwtSecret)
	authed := func(h http.HandlerFunc) http.Handler { return requireAuth(h) }
	adminOnly := func(h http.Handler) http.Handler { return requireAuth(auth.RequireAdmin(h)) }

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.Handle("/api/v1/slots", authed(bookingHandler.Slots))
	mux.Handle("/api/v1/bookings", authed(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			bookingHandler.Create(w, r)
		case http.MethodGet:
			bookingHandler.ListMine(w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}))
	mux.Handle("/api/v1/bookings/update", authed(bookingHandler.Update))
	mux.Handle("/api/v1/bookings/cancel", authed(bookingHandler.Cancel))

	mux.Handle("/api/v1/admin/day", adminOnly(http.HandlerFunc(adminHandler.Day)))
	mux.Handle("/api/v1/admin/complete", adminOnly(http.HandlerFunc(adminHandler.Complete)))
	mux.Handle("/api/v1/admin/blocks", adminOnly(http.HandlerFunc(adminHandler.ListBlocks)))
	mux.Handle("/api/v1/admin/blocks/day", adminOnly(adminHandler.AddDayBlock()))
	mux.Handle("/api/v1/admin/blocks/day/remove", adminOnly(adminHandler.RemoveDayBlock()))
	mux.Handle("/api/v1/admin/blocks/time", adminOnly(adminHandler.AddTimeBlock()))
	mux.Handle("/api/v1/admin/blocks/time/remove", adminOnly(adminHandler.RemoveTimeBlock()))

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
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
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
