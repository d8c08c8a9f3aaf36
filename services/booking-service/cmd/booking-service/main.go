package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/md-rashed-zaman/salonbook/libs/config"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/libs/grpcx"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/kafkax"
	otelx "github.com/md-rashed-zaman/salonbook/libs/otel"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/bookings"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/consumer"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/handlers"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/inbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/slotcache"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/slots"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "check the local gRPC health service and exit")
	flag.Parse()

	if err := config.Load(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		panic(err)
	}
	if *healthcheck {
		if err := runHealthcheck(context.Background(), "127.0.0.1:"+grpcPort, service, 3*time.Second); err != nil {
			fmt.Fprintln(os.Stderr, "unhealthy:", err)
			os.Exit(1)
		}
		return
	}
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	leadTime, err := config.Int("LEAD_TIME_MINUTES", 40)
	if err != nil {
		panic(err)
	}
	cacheTTL, err := config.Duration("SLOT_CACHE_TTL", 15*time.Second)
	if err != nil {
		panic(err)
	}
	ratePerMinute, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("MERCHANT_JWT_SECRET")
	if err != nil {
		panic(err)
	}

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
	pool, err := db.Open(ctx, dbURL, db.Options{})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	readyChecks := []runtime.ReadyCheck{
		{Name: "db", Check: db.ReadyCheck(pool)},
	}

	var rdb *redis.Client
	if redisURL := config.String("REDIS_URL", ""); redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			panic(err)
		}
		rdb = redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: slotcache.ReadyCheck(rdb)})
	} else {
		logger.Warn("REDIS_URL not set; slot cache disabled and rate limit is per instance")
	}

	brokers := config.String("KAFKA_BROKERS", "")
	if brokers != "" {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	filter := availability.NewFilter(availability.SystemClock{}, logger)
	slotRepo := storage.NewSlotRepository(pool)
	bookingRepo := storage.NewBookingRepository(pool)
	outboxRepo := outbox.NewRepository()

	var cache slots.Cache
	if rdb != nil {
		cache = slotcache.New(rdb, cacheTTL)
	}
	slotService := slots.NewService(slotRepo, cache, filter, m, logger, slots.Config{LeadTimeMinutes: leadTime})
	bookingService := bookings.NewService(pool, bookingRepo, outboxRepo, slotService, m, logger)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go publisher.Run(ctx)

	if brokers != "" {
		scheduleConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
			Topic:   config.String("KAFKA_CONSUME_TOPIC", consumer.TopicScheduleUpdated),
		}, consumer.ScheduleHandler(slotService, logger))
		go scheduleConsumer.Run(ctx)
	}

	trustProxy := config.Bool("TRUST_PROXY_HEADERS", false)
	var limit httpx.Middleware
	if rdb != nil {
		limit = httpx.NewRedisRateLimiter(rdb, ratePerMinute, time.Minute, "rl:booking").TrustForwardedFor(trustProxy).Middleware(logger, true)
	} else {
		limit = httpx.NewRateLimiter(ratePerMinute, time.Minute).TrustForwardedFor(trustProxy).Middleware()
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Logger:         logger,
		Slots:          slotService,
		Bookings:       bookingService,
		JWTSecret:      jwtSecret,
		AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS"),
		RateLimit:      limit,
		Gatherer:       prometheus.DefaultGatherer,
		ReadyChecks:    readyChecks,
	})
	httpHandler := httpx.Chain(router,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	healthSrv := grpcx.NewHealthServer(logger)
	healthSrv.SetServing("", true)
	healthSrv.SetServing(service, true)
	go serveGRPC(ctx, healthSrv, ":"+grpcPort, logger)

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	healthSrv.SetServing(service, false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func serveGRPC(ctx context.Context, srv *grpcx.HealthServer, addr string, logger *slog.Logger) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("grpc listen failed", "err", err, "addr", addr)
		return
	}
	if err := srv.Serve(ctx, lis); err != nil {
		logger.Error("grpc server error", "err", err)
	}
}
