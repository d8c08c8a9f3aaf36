package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/libs/httpx"
	"github.com/md-rashed-zaman/salonbook/libs/runtime"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Logger    *slog.Logger
	Slots     SlotReader
	Bookings  BookingService
	JWTSecret string

	AllowedOrigins []string
	// RateLimit guards the public routes. Nil disables limiting.
	RateLimit httpx.Middleware

	Gatherer       prometheus.Gatherer
	ReadyChecks    []runtime.ReadyCheck
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	slotsHandler := NewSlotsHandler(cfg.Slots, cfg.Logger)
	bookingHandler := NewBookingHandler(cfg.Bookings, cfg.Logger)

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", httpx.RequestIDHeader},
		ExposedHeaders: []string{httpx.RequestIDHeader, "X-Slots-Source"},
		MaxAge:         300,
	}))

	r.Get("/healthz", runtime.HealthHandler)
	r.Get("/readyz", runtime.ReadyHandler(cfg.ReadyChecks...))
	r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(httpx.WithBodyLimit(cfg.MaxBodyBytes), httpx.WithTimeout(cfg.RequestTimeout))

		api.Group(func(public chi.Router) {
			if cfg.RateLimit != nil {
				public.Use(cfg.RateLimit)
			}
			public.Get("/public/slots", slotsHandler.List)
			public.Post("/public/bookings", bookingHandler.Create)
		})

		api.Group(func(merchant chi.Router) {
			merchant.Use(auth.Middleware(cfg.JWTSecret))
			merchant.Get("/merchant/bookings", bookingHandler.List)
			merchant.Post("/merchant/bookings/{bookingID}/status", bookingHandler.UpdateStatus)
		})
	})

	return r
}
