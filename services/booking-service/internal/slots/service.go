package slots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	SourceCache = "cache"
	SourceDB    = "db"
)

// MaxDurationMinutes caps a single booking at one working day.
const MaxDurationMinutes = 12 * 60

var ErrInvalidQuery = errors.New("invalid slot query")

// Source is the authoritative slot data source.
type Source interface {
	FetchSlots(ctx context.Context, q model.SlotQuery) ([]availability.Slot, error)
	ServiceDuration(ctx context.Context, merchantID string, serviceIDs []string) (int, error)
}

type Cache interface {
	Get(ctx context.Context, q model.SlotQuery) ([]availability.Slot, bool, error)
	Set(ctx context.Context, q model.SlotQuery, slots []availability.Slot) error
	Invalidate(ctx context.Context, merchantID string) error
}

// Query is what a caller asks for. When ServiceIDs is set the duration is the
// sum of those services and DurationMinutes is ignored.
type Query struct {
	MerchantID      string
	StaffID         string
	Date            time.Time
	ServiceIDs      []string
	DurationMinutes int
}

type Result struct {
	Query       model.SlotQuery
	SlotsNeeded int
	Source      string
	Bookable    []availability.Slot
	Evaluations []availability.Evaluation
}

type Config struct {
	LeadTimeMinutes int
}

type Service struct {
	source  Source
	cache   Cache
	filter  *availability.Filter
	metrics *metrics.Metrics
	logger  *slog.Logger
	cfg     Config
	tracer  trace.Tracer
}

func NewService(source Source, cache Cache, filter *availability.Filter, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Service {
	if cfg.LeadTimeMinutes < 0 {
		cfg.LeadTimeMinutes = 0
	}
	return &Service{
		source:  source,
		cache:   cache,
		filter:  filter,
		metrics: m,
		logger:  logger,
		cfg:     cfg,
		tracer:  otel.Tracer("salonbook/slots"),
	}
}

// Resolve validates q and turns it into a slot source query with a concrete
// duration.
func (s *Service) Resolve(ctx context.Context, q Query) (model.SlotQuery, error) {
	q.MerchantID = strings.TrimSpace(q.MerchantID)
	q.StaffID = strings.TrimSpace(q.StaffID)
	if q.MerchantID == "" {
		return model.SlotQuery{}, fmt.Errorf("%w: merchant id is required", ErrInvalidQuery)
	}
	if q.Date.IsZero() {
		return model.SlotQuery{}, fmt.Errorf("%w: date is required", ErrInvalidQuery)
	}

	duration := q.DurationMinutes
	if len(q.ServiceIDs) > 0 {
		d, err := s.source.ServiceDuration(ctx, q.MerchantID, q.ServiceIDs)
		if err != nil {
			return model.SlotQuery{}, err
		}
		duration = d
	}
	if duration > MaxDurationMinutes {
		return model.SlotQuery{}, fmt.Errorf("%w: duration %d exceeds %d minutes", ErrInvalidQuery, duration, MaxDurationMinutes)
	}
	if duration < 0 {
		duration = 0
	}

	return model.SlotQuery{
		MerchantID:      q.MerchantID,
		StaffID:         q.StaffID,
		Date:            q.Date,
		DurationMinutes: duration,
	}, nil
}

// Availability returns every slot of the day with its verdict plus the
// bookable subset. The result is advisory; only the booking write decides.
func (s *Service) Availability(ctx context.Context, q Query) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "slots.availability")
	defer span.End()

	sq, err := s.Resolve(ctx, q)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	span.SetAttributes(
		attribute.String("merchant.id", sq.MerchantID),
		attribute.String("slots.date", availability.FormatDate(sq.Date)),
		attribute.Int("slots.duration_minutes", sq.DurationMinutes),
	)

	raw, source, err := s.load(ctx, sq)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	rep := s.filter.Evaluate(raw, sq.DurationMinutes, sq.Date, s.cfg.LeadTimeMinutes)
	bookable := rep.Bookable()
	s.metrics.ObserveSlotRequest(source)
	s.metrics.ObserveMalformed(rep.Skipped)
	s.metrics.ObserveBookableStarts(len(bookable))
	span.SetAttributes(attribute.String("slots.source", source), attribute.Int("slots.bookable", len(bookable)))

	return Result{
		Query:       sq,
		SlotsNeeded: rep.SlotsNeeded,
		Source:      source,
		Bookable:    bookable,
		Evaluations: rep.Evaluations,
	}, nil
}

// Verify re-reads the slot list from the source, bypassing the cache, and
// reports whether staffID can start a booking at timeSlot.
func (s *Service) Verify(ctx context.Context, sq model.SlotQuery, staffID, timeSlot string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "slots.verify")
	defer span.End()

	sq.StaffID = staffID
	raw, err := s.source.FetchSlots(ctx, sq)
	if err != nil {
		span.RecordError(err)
		return false, err
	}
	s.metrics.ObserveSlotRequest(SourceDB)
	for _, slot := range s.filter.FilterBookableStarts(raw, sq.DurationMinutes, sq.Date, s.cfg.LeadTimeMinutes) {
		if slot.StaffID == staffID && slot.TimeSlot == timeSlot {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) Invalidate(ctx context.Context, merchantID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, merchantID)
}

func (s *Service) load(ctx context.Context, sq model.SlotQuery) ([]availability.Slot, string, error) {
	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, sq)
		if err != nil {
			s.logger.Warn("slot cache read failed; using db", "err", err, "merchant_id", sq.MerchantID)
		} else if hit {
			return cached, SourceCache, nil
		}
	}

	raw, err := s.source.FetchSlots(ctx, sq)
	if err != nil {
		return nil, "", err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, sq, raw); err != nil {
			s.logger.Warn("slot cache write failed", "err", err, "merchant_id", sq.MerchantID)
		}
	}
	return raw, SourceDB, nil
}
