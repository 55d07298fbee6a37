package booking

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
)

// WeeklyRules reads the professional's current rule set through the cache.
func (s *Service) WeeklyRules(ctx context.Context, professionalID string) ([]scheduling.Rule, error) {
	return s.deps.Schedules.WeeklyRules(ctx, professionalID)
}

// ReplaceSchedule validates the full rule set and swaps it in atomically. Rules
// are stamped with professionalID. Existing appointments are left untouched.
func (s *Service) ReplaceSchedule(ctx context.Context, professionalID string, rules []scheduling.Rule) ([]scheduling.Rule, error) {
	ctx, span := s.tracer.Start(ctx, "booking.ReplaceSchedule")
	defer span.End()

	stamped := make([]scheduling.Rule, len(rules))
	for i, r := range rules {
		r.ProfessionalID = professionalID
		stamped[i] = r
	}
	tpl, err := scheduling.NewTemplate(stamped)
	if err != nil {
		return nil, err
	}
	ordered := tpl.Rules(professionalID)

	evt, err := outbox.NewEvent(outbox.AggregateProfessional, professionalID, outbox.TypeScheduleReplaced,
		outbox.ScheduleReplacedPayload{ProfessionalID: professionalID, Rules: len(ordered)})
	if err != nil {
		return nil, err
	}
	if err := s.deps.Schedule.ReplaceSchedule(ctx, professionalID, ordered, evt); err != nil {
		return nil, spanError(span, fmt.Errorf("replace schedule: %w", err))
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Invalidate(professionalID)
	}
	s.logger.Info("schedule replaced", "professional_id", professionalID, "rules", len(ordered))
	return ordered, nil
}
