package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bookwell/bookwell/internal/booking"
	"github.com/bookwell/bookwell/internal/consumer"
	"github.com/bookwell/bookwell/internal/handlers"
	"github.com/bookwell/bookwell/internal/identity"
	"github.com/bookwell/bookwell/internal/inbox"
	"github.com/bookwell/bookwell/internal/lifecycle"
	"github.com/bookwell/bookwell/internal/outbox"
	"github.com/bookwell/bookwell/internal/payments"
	"github.com/bookwell/bookwell/internal/policy"
	"github.com/bookwell/bookwell/internal/schedule"
	"github.com/bookwell/bookwell/internal/storage"
	"github.com/bookwell/bookwell/libs/config"
	"github.com/bookwell/bookwell/libs/db"
	"github.com/bookwell/bookwell/libs/httpx"
	"github.com/bookwell/bookwell/libs/kafkax"
	otelx "github.com/bookwell/bookwell/libs/otel"
	"github.com/bookwell/bookwell/libs/runtime"
)

func main() {
	service := config.String("SERVICE_NAME", "bookwell")
	port, err := config.Port("PORT", "8080")
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
	pool, err := db.OpenWithOptions(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 10)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	bookingRepo := storage.NewBookingRepository(pool)
	catalogRepo := storage.NewCatalogRepository(pool)
	scheduleRepo := schedule.NewRepository(pool)
	tokenRepo := identity.NewTokenRepository(pool)
	outboxRepo := outbox.NewRepository()
	policyProvider := policy.NewPGProvider(pool)

	manager := booking.NewManager(catalogRepo, scheduleRepo, bookingRepo, outboxRepo, policyProvider, logger)
	resolver := booking.NewResolver(catalogRepo, scheduleRepo, bookingRepo, policyProvider)
	machine := lifecycle.NewMachine(bookingRepo, outboxRepo, policyProvider, logger)

	brokers := config.String("KAFKA_BROKERS", "")

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	completion := lifecycle.NewCompletionWorker(bookingRepo, outboxRepo, logger, lifecycle.CompletionConfig{
		SweepEach: config.Minutes("COMPLETION_SWEEP_MINUTES", time.Minute),
		BatchSize: config.Int("COMPLETION_BATCH_SIZE", 100),
	})
	go completion.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(brokers) == "" || strings.TrimSpace(topic) == "" {
			return
		}
		c := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "bookwell"),
			Topic:   topic,
		}, handler)
		go c.Run(ctx)
	}
	startConsumer(consumer.TopicPaymentUpdated, consumer.PaymentUpdated(machine))
	startConsumer(consumer.TopicReminderSent, consumer.ReminderSent(machine))

	bookingHandler := handlers.NewBookingHandler(resolver, manager, machine, bookingRepo, tokenRepo, logger)
	scheduleHandler := handlers.NewScheduleHandler(scheduleRepo, catalogRepo, logger)
	catalogHandler := handlers.NewCatalogHandler(catalogRepo, logger)
	stripeHandler := payments.NewStripeWebhook(machine, payments.NewProviderEventsRepository(pool), logger,
		config.String("STRIPE_WEBHOOK_SECRET", ""),
		config.Minutes("STRIPE_WEBHOOK_TOLERANCE_MINUTES", 5*time.Minute))

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}
	if strings.TrimSpace(brokers) != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	var publicLimiter httpx.Middleware
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		redisOpts, err := redis.ParseURL(redisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "err", err)
			panic(err)
		}
		rdb := redis.NewClient(redisOpts)
		defer rdb.Close()
		limiter := httpx.NewRedisRateLimiter(rdb,
			config.Int("RATE_LIMIT_PUBLIC", 60), time.Minute, service)
		publicLimiter = limiter.Middleware(logger, true)
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	} else {
		publicLimiter = httpx.NewRateLimiter(config.Int("RATE_LIMIT_PUBLIC", 60), time.Minute).Middleware()
	}

	requireBusiness := handlers.RequireBusiness(jwtSecret)
	public := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, publicLimiter)
	}

	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("/api/v1/public/slots", public(bookingHandler.Slots))
	mux.Handle("/api/v1/public/book", public(bookingHandler.Book))
	mux.Handle("/api/v1/public/cancel", public(bookingHandler.CustomerCancel))
	mux.Handle("/api/v1/public/appointments", public(bookingHandler.CustomerAppointments))
	mux.Handle("/api/v1/appointments", requireBusiness(http.HandlerFunc(bookingHandler.List)))
	mux.Handle("/api/v1/appointments/cancel", requireBusiness(http.HandlerFunc(bookingHandler.Cancel)))
	mux.Handle("/api/v1/appointments/confirm", requireBusiness(http.HandlerFunc(bookingHandler.Confirm)))
	mux.Handle("/api/v1/staff/availability", requireBusiness(http.HandlerFunc(scheduleHandler.Availability)))
	mux.Handle("/api/v1/services", requireBusiness(http.HandlerFunc(catalogHandler.Services)))
	mux.Handle("/api/v1/staff", requireBusiness(http.HandlerFunc(catalogHandler.Staff)))
	mux.Handle("/api/v1/webhooks/stripe", stripeHandler)

	var corsOrigins []string
	if raw := config.String("CORS_ALLOWED_ORIGINS", ""); raw != "" {
		corsOrigins = strings.Split(raw, ",")
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
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
