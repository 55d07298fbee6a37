package cache

import (
	"context"
	"encoding/json"

	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/outbox"
	"github.com/segmentio/kafka-go"
)

// HandleScheduleReplaced drops the cached rules named by a schedule_replaced
// event. Malformed payloads are logged and skipped so they are not redelivered.
func (c *TemplateCache) HandleScheduleReplaced(_ context.Context, msg kafka.Message) error {
	var payload outbox.ScheduleReplacedPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil || payload.ProfessionalID == "" {
		if c.logger != nil {
			c.logger.Error("invalid schedule_replaced payload", "topic", msg.Topic, "err", err)
		}
		return nil
	}
	c.Invalidate(payload.ProfessionalID)
	return nil
}
