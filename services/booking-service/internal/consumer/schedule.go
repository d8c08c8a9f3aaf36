package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/segmentio/kafka-go"
)

const TopicScheduleUpdated = "merchant.schedule.updated.v1"

// ScheduleUpdated is published whenever operating hours, staff schedules or
// blocked time of a merchant change.
type ScheduleUpdated struct {
	MerchantID string `json:"merchant_id"`
	StaffID    string `json:"staff_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type Invalidator interface {
	Invalidate(ctx context.Context, merchantID string) error
}

// ScheduleHandler drops cached slot lists of the merchant named in the event.
func ScheduleHandler(inv Invalidator, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg kafka.Message) error {
		var evt ScheduleUpdated
		if err := json.Unmarshal(msg.Value, &evt); err != nil {
			return fmt.Errorf("decode schedule event: %w", err)
		}
		merchantID := strings.TrimSpace(evt.MerchantID)
		if merchantID == "" {
			return errors.New("schedule event without merchant_id")
		}
		if err := inv.Invalidate(ctx, merchantID); err != nil {
			return err
		}
		logger.Info("slot cache invalidated", "merchant_id", merchantID, "reason", evt.Reason)
		return nil
	}
}
