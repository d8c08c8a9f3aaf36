package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/slots"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type SlotReader interface {
	Availability(ctx context.Context, q slots.Query) (slots.Result, error)
}

type SlotsHandler struct {
	slots  SlotReader
	logger *slog.Logger
}

func NewSlotsHandler(reader SlotReader, logger *slog.Logger) *SlotsHandler {
	return &SlotsHandler{slots: reader, logger: logger}
}

type slotItem struct {
	StaffID   string `json:"staff_id"`
	StaffName string `json:"staff_name"`
	TimeSlot  string `json:"time_slot"`
	EndTime   string `json:"end_time"`
}

type evaluationItem struct {
	StaffID        string `json:"staff_id"`
	TimeSlot       string `json:"time_slot"`
	IsAvailable    bool   `json:"is_available"`
	Bookable       bool   `json:"bookable"`
	Reason         string `json:"reason,omitempty"`
	ConflictReason string `json:"conflict_reason,omitempty"`
}

type slotsResponse struct {
	MerchantID      string           `json:"merchant_id"`
	Date            string           `json:"date"`
	DurationMinutes int              `json:"duration_minutes"`
	SlotsNeeded     int              `json:"slots_needed"`
	Slots           []slotItem       `json:"slots"`
	Evaluations     []evaluationItem `json:"evaluations,omitempty"`
}

// List serves the bookable start times of one merchant day. With
// include_rejected=true the response also carries every slot's verdict.
func (h *SlotsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	merchantID := strings.TrimSpace(q.Get("merchant_id"))
	dateStr := strings.TrimSpace(q.Get("date"))
	if merchantID == "" || dateStr == "" {
		http.Error(w, "merchant_id and date are required", http.StatusBadRequest)
		return
	}
	date, err := availability.ParseDate(dateStr)
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	duration := 0
	if raw := strings.TrimSpace(q.Get("duration_minutes")); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid duration_minutes", http.StatusBadRequest)
			return
		}
	}

	res, err := h.slots.Availability(r.Context(), slots.Query{
		MerchantID:      merchantID,
		StaffID:         strings.TrimSpace(q.Get("staff_id")),
		Date:            date,
		ServiceIDs:      splitList(q.Get("service_ids")),
		DurationMinutes: duration,
	})
	switch {
	case errors.Is(err, slots.ErrInvalidQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case storage.IsNotFound(err):
		http.Error(w, "unknown service", http.StatusNotFound)
		return
	case err != nil:
		h.logger.Error("slot availability failed", "err", err, "merchant_id", merchantID)
		http.Error(w, "failed to load slots", http.StatusInternalServerError)
		return
	}

	span := res.Query.DurationMinutes
	if span < availability.GridMinutes {
		span = availability.GridMinutes
	}
	resp := slotsResponse{
		MerchantID:      res.Query.MerchantID,
		Date:            availability.FormatDate(res.Query.Date),
		DurationMinutes: res.Query.DurationMinutes,
		SlotsNeeded:     res.SlotsNeeded,
		Slots:           make([]slotItem, 0, len(res.Bookable)),
	}
	for _, s := range res.Bookable {
		end, _ := availability.EndTime(s.TimeSlot, span)
		resp.Slots = append(resp.Slots, slotItem{
			StaffID:   s.StaffID,
			StaffName: s.StaffName,
			TimeSlot:  s.TimeSlot,
			EndTime:   end,
		})
	}
	if include, _ := strconv.ParseBool(q.Get("include_rejected")); include {
		resp.Evaluations = make([]evaluationItem, 0, len(res.Evaluations))
		for _, e := range res.Evaluations {
			resp.Evaluations = append(resp.Evaluations, evaluationItem{
				StaffID:        e.StaffID,
				TimeSlot:       e.TimeSlot,
				IsAvailable:    e.IsAvailable,
				Bookable:       e.Bookable,
				Reason:         string(e.Reason),
				ConflictReason: e.ConflictReason,
			})
		}
	}

	w.Header().Set("X-Slots-Source", res.Source)
	writeJSON(w, http.StatusOK, resp)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
