package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	otelx "github.com/md-rashed-zaman/clinicdesk/libs/otel"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	// Location is the clinic's civil time zone for rule times and instants.
	Location *time.Location
	// HidePast drops slots that already started from availability listings.
	HidePast bool
	Now      func() time.Time
}

type Deps struct {
	Schedules    ScheduleSource
	Ledger       LedgerSource
	Directory    Directory
	Appointments AppointmentStore
	Schedule     ScheduleWriter
	Cache        Invalidator
}

type Service struct {
	deps     Deps
	loc      *time.Location
	hidePast bool
	now      func() time.Time
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewService(deps Deps, logger *slog.Logger, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		deps:     deps,
		loc:      cfg.Location,
		hidePast: cfg.HidePast,
		now:      cfg.Now,
		logger:   logger,
		tracer:   otelx.Tracer("clinic-service/booking"),
	}
}

func (s *Service) Location() *time.Location { return s.loc }

// Result is the outcome of a write. Appointment is set only when Verdict accepts.
type Result struct {
	Appointment model.Appointment  `json:"appointment"`
	Verdict     scheduling.Verdict `json:"verdict"`
	// Replayed marks a booking answered from an earlier request with the same idempotency key.
	Replayed bool `json:"replayed,omitempty"`
}

func (s *Service) template(ctx context.Context, professionalID string) (scheduling.Template, error) {
	rules, err := s.deps.Schedules.WeeklyRules(ctx, professionalID)
	if err != nil {
		return scheduling.Template{}, fmt.Errorf("load schedule: %w", err)
	}
	tpl, err := scheduling.NewTemplate(rules)
	if err != nil {
		return scheduling.Template{}, fmt.Errorf("schedule of %s: %w", professionalID, err)
	}
	return tpl, nil
}

func (s *Service) ledger(ctx context.Context, professionalID string, d scheduling.Date) (scheduling.Ledger, error) {
	from := d.At(scheduling.Midnight, s.loc)
	to := d.AddDays(1).At(scheduling.Midnight, s.loc)
	appts, err := s.deps.Ledger.AppointmentsBetween(ctx, professionalID, from, to)
	if err != nil {
		return scheduling.Ledger{}, fmt.Errorf("load ledger: %w", err)
	}
	return scheduling.NewLedger(appts), nil
}

func (s *Service) generator(ctx context.Context, professionalID string, d scheduling.Date) (scheduling.SlotGenerator, bool, error) {
	active, err := s.deps.Directory.ProfessionalActive(ctx, professionalID)
	if err != nil || !active {
		return scheduling.SlotGenerator{}, false, err
	}
	tpl, err := s.template(ctx, professionalID)
	if err != nil {
		return scheduling.SlotGenerator{}, false, err
	}
	ledger, err := s.ledger(ctx, professionalID, d)
	if err != nil {
		return scheduling.SlotGenerator{}, false, err
	}
	g := scheduling.SlotGenerator{Template: tpl, Ledger: ledger, Location: s.loc}
	if s.hidePast {
		g.NotBefore = s.now()
	}
	return g, true, nil
}

// AvailableSlots lists the free slot starts of the professional on d. Unknown or
// inactive professionals have none.
func (s *Service) AvailableSlots(ctx context.Context, professionalID string, d scheduling.Date) ([]scheduling.TimeOfDay, error) {
	ctx, span := s.tracer.Start(ctx, "booking.AvailableSlots", trace.WithAttributes(
		attribute.String("professional.id", professionalID),
		attribute.String("date", d.String()),
	))
	defer span.End()

	g, ok, err := s.generator(ctx, professionalID, d)
	if err != nil {
		return nil, spanError(span, err)
	}
	if !ok {
		return nil, nil
	}
	slots := g.Generate(professionalID, d)
	span.SetAttributes(attribute.Int("slots.free", len(slots)))
	return slots, nil
}

// Proposals lists every grid slot of the day with its occupancy.
func (s *Service) Proposals(ctx context.Context, professionalID string, d scheduling.Date) ([]scheduling.SlotProposal, error) {
	g, ok, err := s.generator(ctx, professionalID, d)
	if err != nil || !ok {
		return nil, err
	}
	return g.Proposals(professionalID, d), nil
}

func (s *Service) ValidateBooking(ctx context.Context, req scheduling.Request) (scheduling.Verdict, error) {
	ctx, span := s.tracer.Start(ctx, "booking.ValidateBooking", trace.WithAttributes(
		attribute.String("professional.id", req.ProfessionalID),
		attribute.String("at", req.At.Format(time.RFC3339)),
	))
	defer span.End()

	v, err := s.validate(ctx, req)
	if err != nil {
		return scheduling.Verdict{}, spanError(span, err)
	}
	span.SetAttributes(attribute.Bool("accepted", v.Accepted), attribute.String("reason", string(v.Reason)))
	return v, nil
}

func (s *Service) validate(ctx context.Context, req scheduling.Request) (scheduling.Verdict, error) {
	var facts scheduling.Facts
	var err error
	if facts.ProfessionalActive, err = s.deps.Directory.ProfessionalActive(ctx, req.ProfessionalID); err != nil {
		return scheduling.Verdict{}, err
	}
	if !facts.ProfessionalActive {
		return scheduling.Reject(scheduling.ReasonUnknownProfessional), nil
	}
	if facts.PatientExists, err = s.deps.Directory.PatientExists(ctx, req.PatientID); err != nil {
		return scheduling.Verdict{}, err
	}
	if !facts.PatientExists {
		return scheduling.Reject(scheduling.ReasonUnknownPatient), nil
	}

	tpl, err := s.template(ctx, req.ProfessionalID)
	if err != nil {
		return scheduling.Verdict{}, err
	}
	day, _, _ := scheduling.ClockOf(req.At, s.loc)
	ledger, err := s.ledger(ctx, req.ProfessionalID, day)
	if err != nil {
		return scheduling.Verdict{}, err
	}
	v := scheduling.BookingValidator{Template: tpl, Ledger: ledger, Location: s.loc}
	return v.Validate(req, facts), nil
}

func (s *Service) IsValidTransition(from, to scheduling.Status) bool {
	return scheduling.CanTransition(from, to)
}

type BookRequest struct {
	ProfessionalID string
	PatientID      string
	At             time.Time
	Reason         string
	Notes          string
	IdempotencyKey string
}

// Book validates and stores a new PENDING appointment.
func (s *Service) Book(ctx context.Context, req BookRequest) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Book", trace.WithAttributes(
		attribute.String("professional.id", req.ProfessionalID),
		attribute.String("at", req.At.Format(time.RFC3339)),
	))
	defer span.End()

	if req.IdempotencyKey != "" {
		if prior, ok, err := s.replay(ctx, req); err != nil || ok {
			return prior, spanError(span, err)
		}
	}

	check := scheduling.Request{ProfessionalID: req.ProfessionalID, PatientID: req.PatientID, At: req.At}
	v, err := s.validate(ctx, check)
	if err != nil {
		return Result{}, spanError(span, err)
	}
	if !v.Accepted {
		return Result{Verdict: v}, nil
	}

	a := model.Appointment{Appointment: scheduling.Appointment{
		ID:             uuid.NewString(),
		PatientID:      req.PatientID,
		ProfessionalID: req.ProfessionalID,
		ScheduledAt:    req.At,
		Status:         scheduling.StatusPending,
		Reason:         req.Reason,
		Notes:          req.Notes,
	}}
	evt, err := outbox.NewEvent(outbox.AggregateAppointment, a.ID, outbox.TypeAppointmentBooked, payloadOf(a.Appointment, nil))
	if err != nil {
		return Result{}, spanError(span, err)
	}

	created, err := s.deps.Appointments.Create(ctx, a, req.IdempotencyKey, evt)
	switch {
	case err == nil:
		s.logger.Info("appointment booked", "appointment_id", created.ID, "professional_id", created.ProfessionalID,
			"scheduled_at", created.ScheduledAt.In(s.loc).Format(time.RFC3339))
		return Result{Appointment: created, Verdict: scheduling.Accept()}, nil
	case errors.Is(err, model.ErrSlotTaken):
		v, err := s.conflictVerdict(ctx, check)
		return Result{Verdict: v}, spanError(span, err)
	case errors.Is(err, model.ErrDuplicate) && req.IdempotencyKey != "":
		prior, ok, rerr := s.replay(ctx, req)
		if rerr == nil && !ok {
			rerr = err
		}
		return prior, spanError(span, rerr)
	}
	return Result{}, spanError(span, err)
}

// ErrIdempotencyMismatch reports a reused idempotency key whose request names
// another professional, patient or instant than the booking it recorded.
var ErrIdempotencyMismatch = fmt.Errorf("idempotency key reused with a different booking: %w", model.ErrConflict)

func (s *Service) replay(ctx context.Context, req BookRequest) (Result, bool, error) {
	prior, err := s.deps.Appointments.FindByIdempotencyKey(ctx, req.IdempotencyKey)
	if errors.Is(err, model.ErrNotFound) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}
	if prior.ProfessionalID != req.ProfessionalID || prior.PatientID != req.PatientID || !prior.ScheduledAt.Equal(req.At) {
		return Result{}, false, ErrIdempotencyMismatch
	}
	return Result{Appointment: prior, Verdict: scheduling.Accept(), Replayed: true}, true, nil
}

// conflictVerdict decides how to report a write the uniqueness guard refused
// after validation passed: re-validating against fresh data tells a slot that
// was taken meanwhile apart from a race the ledger cannot explain.
func (s *Service) conflictVerdict(ctx context.Context, req scheduling.Request) (scheduling.Verdict, error) {
	v, err := s.validate(ctx, req)
	if err != nil {
		return scheduling.Verdict{}, err
	}
	if v.Reason == scheduling.ReasonSlotAlreadyBooked {
		return v, nil
	}
	s.logger.Warn("storage conflict after validation", "professional_id", req.ProfessionalID, "at", req.At)
	return scheduling.Reject(scheduling.ReasonStorageConflict), nil
}

var errRejected = errors.New("rejected")

// rejection carries a verdict out of a storage mutation callback.
type rejection struct{ verdict scheduling.Verdict }

func (r rejection) Error() string { return string(r.verdict.Reason) }
func (r rejection) Unwrap() error { return errRejected }

func asRejection(err error) (scheduling.Verdict, bool) {
	var r rejection
	if errors.As(err, &r) {
		return r.verdict, true
	}
	return scheduling.Verdict{}, false
}

// Reschedule moves a PENDING or CONFIRMED appointment to at.
func (s *Service) Reschedule(ctx context.Context, actor Actor, id string, at time.Time) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "booking.Reschedule", trace.WithAttributes(
		attribute.String("appointment.id", id),
		attribute.String("at", at.Format(time.RFC3339)),
	))
	defer span.End()

	current, err := s.deps.Appointments.Get(ctx, id)
	if err != nil {
		return Result{}, spanError(span, err)
	}
	if !actor.allowed(current.ProfessionalID) {
		return Result{}, model.ErrForbidden
	}
	if !current.Status.Reschedulable() {
		return Result{Verdict: scheduling.Reject(scheduling.ReasonInvalidStateTransition)}, nil
	}
	check := scheduling.Request{
		ProfessionalID:       current.ProfessionalID,
		PatientID:            current.PatientID,
		At:                   at,
		ExcludeAppointmentID: id,
	}
	v, err := s.validate(ctx, check)
	if err != nil {
		return Result{}, spanError(span, err)
	}
	if !v.Accepted {
		return Result{Verdict: v}, nil
	}

	updated, err := s.deps.Appointments.Update(ctx, id, func(a *model.Appointment) (outbox.Event, error) {
		if !a.Status.Reschedulable() {
			return outbox.Event{}, rejection{scheduling.Reject(scheduling.ReasonInvalidStateTransition)}
		}
		if a.ProfessionalID != current.ProfessionalID {
			return outbox.Event{}, rejection{scheduling.Reject(scheduling.ReasonStorageConflict)}
		}
		before := a.Appointment
		a.ScheduledAt = at
		return outbox.NewEvent(outbox.AggregateAppointment, a.ID, outbox.TypeAppointmentRescheduled, payloadOf(a.Appointment, &before))
	})
	if rv, ok := asRejection(err); ok {
		return Result{Verdict: rv}, nil
	}
	if errors.Is(err, model.ErrSlotTaken) {
		v, err := s.conflictVerdict(ctx, check)
		return Result{Verdict: v}, spanError(span, err)
	}
	if err != nil {
		return Result{}, spanError(span, err)
	}
	s.logger.Info("appointment rescheduled", "appointment_id", id,
		"from", current.ScheduledAt.In(s.loc).Format(time.RFC3339), "to", at.In(s.loc).Format(time.RFC3339))
	return Result{Appointment: updated, Verdict: scheduling.Accept()}, nil
}

// ChangeStatus applies one transition of the appointment state machine.
func (s *Service) ChangeStatus(ctx context.Context, actor Actor, id string, to scheduling.Status) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "booking.ChangeStatus", trace.WithAttributes(
		attribute.String("appointment.id", id),
		attribute.String("status.to", string(to)),
	))
	defer span.End()

	updated, err := s.deps.Appointments.Update(ctx, id, func(a *model.Appointment) (outbox.Event, error) {
		if !actor.allowed(a.ProfessionalID) {
			return outbox.Event{}, model.ErrForbidden
		}
		if v := scheduling.CheckTransition(a.Status, to); !v.Accepted {
			return outbox.Event{}, rejection{v}
		}
		before := a.Appointment
		a.Status = to
		return outbox.NewEvent(outbox.AggregateAppointment, a.ID, outbox.TypeAppointmentStatusChanged, payloadOf(a.Appointment, &before))
	})
	if rv, ok := asRejection(err); ok {
		return Result{Verdict: rv}, nil
	}
	if err != nil {
		if errors.Is(err, model.ErrForbidden) {
			return Result{}, err
		}
		return Result{}, spanError(span, err)
	}
	s.logger.Info("appointment status changed", "appointment_id", id, "status", to)
	return Result{Appointment: updated, Verdict: scheduling.Accept()}, nil
}

func (s *Service) Get(ctx context.Context, actor Actor, id string) (model.Appointment, error) {
	a, err := s.deps.Appointments.Get(ctx, id)
	if err != nil {
		return model.Appointment{}, err
	}
	if !actor.allowed(a.ProfessionalID) {
		return model.Appointment{}, model.ErrForbidden
	}
	return a, nil
}

// List narrows restricted actors to their own appointments. A set Day limits the
// result to that civil date in the clinic zone.
func (s *Service) List(ctx context.Context, actor Actor, f model.AppointmentFilter, day scheduling.Date) ([]model.Appointment, error) {
	scope, err := actor.Scope(f.ProfessionalID)
	if err != nil {
		return nil, err
	}
	f.ProfessionalID = scope
	if !day.IsZero() {
		f.From = day.At(scheduling.Midnight, s.loc)
		f.To = day.AddDays(1).At(scheduling.Midnight, s.loc)
	}
	return s.deps.Appointments.List(ctx, f)
}

func payloadOf(a scheduling.Appointment, before *scheduling.Appointment) outbox.AppointmentPayload {
	p := outbox.AppointmentPayload{
		AppointmentID:  a.ID,
		ProfessionalID: a.ProfessionalID,
		PatientID:      a.PatientID,
		ScheduledAt:    a.ScheduledAt.UTC(),
		Status:         string(a.Status),
	}
	if before != nil {
		if !before.ScheduledAt.Equal(a.ScheduledAt) {
			p.PreviousAt = before.ScheduledAt.UTC()
		}
		if before.Status != a.Status {
			p.PreviousStatus = string(before.Status)
		}
	}
	return p
}

func spanError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
