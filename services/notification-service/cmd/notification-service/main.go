package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fridakids/salon-api/libs/config"
	"github.com/fridakids/salon-api/libs/db"
	"github.com/fridakids/salon-api/libs/httpx"
	"github.com/fridakids/salon-api/libs/kafkax"
	otelx "github.com/fridakids/salon-api/libs/otel"
	"github.com/fridakids/salon-api/libs/runtime"
	"github.com/fridakids/salon-api/services/notification-service/internal/consumer"
	"github.com/fridakids/salon-api/services/notification-service/internal/email"
	"github.com/fridakids/salon-api/services/notification-service/internal/inbox"
	"github.com/fridakids/salon-api/services/notification-service/internal/storage"
)

const (
	topicBooked    = "booking.appointment.booked.v1"
	topicEdited    = "booking.appointment.edited.v1"
	topicCancelled = "booking.appointment.cancelled.v1"
	topicReset     = "auth.password_reset.requested.v1"
)

func main() {
	service := config.String("SERVICE_NAME", "notification-service")
	port, err := config.Port("PORT", "8083")
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
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	sender := email.NewSMTPSender(
		config.String("SMTP_HOST", "localhost"),
		config.String("SMTP_PORT", "1025"),
		config.String("EMAIL_FROM", "no-reply@fridakids.com"),
		config.String("EMAIL_BCC", ""),
	)
	repo := storage.NewRepository(pool)
	inboxRepo := inbox.NewRepository(pool)

	// deliver sends and records the attempt. Send failures are logged and
	// written to the delivery log, never bubbled up: a broken mailbox must
	// not block or replay bookings.
	deliver := func(ctx context.Context, msg kafka.Message, to, subject, body string) error {
		meta := kafkax.ExtractEventMeta(msg)
		n := storage.Notification{
			EventID:   meta.EventID,
			EventType: meta.EventType,
			Recipient: to,
			Subject:   subject,
			Status:    storage.StatusSent,
		}
		if err := sender.Send(to, subject, body); err != nil {
			logger.Error("email send failed", "err", err, "recipient", to, "subject", subject)
			n.Status = storage.StatusFailed
			n.Error = err.Error()
		}
		if err := repo.Insert(ctx, n); err != nil {
			logger.Error("notification log failed", "err", err)
		}
		return nil
	}

	appointmentHandler := func(subject string, body func(email.AppointmentEvent) string) consumer.Handler {
		return func(ctx context.Context, msg kafka.Message) error {
			var evt email.AppointmentEvent
			if err := json.Unmarshal(msg.Value, &evt); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if evt.UserEmail == "" {
				logger.Error("event without recipient", "topic", msg.Topic)
				return nil
			}
			return deliver(ctx, msg, evt.UserEmail, subject, body(evt))
		}
	}

	resetHandler := func(ctx context.Context, msg kafka.Message) error {
		var evt email.ResetEvent
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
			return nil
		}
		if evt.Email == "" {
			logger.Error("event without recipient", "topic", msg.Topic)
			return nil
		}
		return deliver(ctx, msg, evt.Email, email.SubjectReset, email.ResetBody(evt))
	}

	brokers := config.String("KAFKA_BROKERS", "")
	groupID := config.String("KAFKA_GROUP_ID", "notification-service")
	if brokers == "" {
		logger.Warn("consumers disabled (no kafka brokers configured)")
	} else {
		start := func(topic string, handler consumer.Handler) {
			c := consumer.New(logger, inboxRepo, consumer.Config{
				Brokers: brokers,
				GroupID: groupID,
				Topic:   topic,
			}, handler)
			go c.Run(ctx)
		}
		start(topicBooked, appointmentHandler(email.SubjectBooked, email.BookedBody))
		start(topicEdited, appointmentHandler(email.SubjectEdited, email.EditedBody))
		start(topicCancelled, appointmentHandler(email.SubjectCancelled, email.CancelledBody))
		start(topicReset, resetHandler)
	}

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)},
	)
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "notification")
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
