package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/libs/httpx"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
)

// Booking is the part of booking.Service the HTTP layer drives.
type Booking interface {
	Location() *time.Location
	AvailableSlots(ctx context.Context, professionalID string, d scheduling.Date) ([]scheduling.TimeOfDay, error)
	Proposals(ctx context.Context, professionalID string, d scheduling.Date) ([]scheduling.SlotProposal, error)
	ValidateBooking(ctx context.Context, req scheduling.Request) (scheduling.Verdict, error)
	IsValidTransition(from, to scheduling.Status) bool
	Book(ctx context.Context, req booking.BookRequest) (booking.Result, error)
	Reschedule(ctx context.Context, actor booking.Actor, id string, at time.Time) (booking.Result, error)
	ChangeStatus(ctx context.Context, actor booking.Actor, id string, to scheduling.Status) (booking.Result, error)
	Get(ctx context.Context, actor booking.Actor, id string) (model.Appointment, error)
	List(ctx context.Context, actor booking.Actor, f model.AppointmentFilter, day scheduling.Date) ([]model.Appointment, error)
	WeeklyRules(ctx context.Context, professionalID string) ([]scheduling.Rule, error)
	ReplaceSchedule(ctx context.Context, professionalID string, rules []scheduling.Rule) ([]scheduling.Rule, error)
}

type AppointmentHandler struct {
	booking Booking
	logger  *slog.Logger
}

func NewAppointmentHandler(b Booking, logger *slog.Logger) *AppointmentHandler {
	return &AppointmentHandler{booking: b, logger: logger}
}

type bookRequest struct {
	ProfessionalID string `json:"professional_id" validate:"required,uuid"`
	PatientID      string `json:"patient_id" validate:"required,uuid"`
	ScheduledAt    string `json:"scheduled_at" validate:"required"`
	Reason         string `json:"reason" validate:"max=500"`
	Notes          string `json:"notes" validate:"max=2000"`
}

type validateRequest struct {
	ProfessionalID       string `json:"professional_id" validate:"required,uuid"`
	PatientID            string `json:"patient_id" validate:"required,uuid"`
	ScheduledAt          string `json:"scheduled_at" validate:"required"`
	ExcludeAppointmentID string `json:"exclude_appointment_id" validate:"omitempty,uuid"`
}

type rescheduleRequest struct {
	ScheduledAt string `json:"scheduled_at" validate:"required"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type appointmentResponse struct {
	model.Appointment
	// LocalTime is ScheduledAt rendered in the clinic zone.
	LocalTime string `json:"local_time"`
}

func (h *AppointmentHandler) present(a model.Appointment) appointmentResponse {
	return appointmentResponse{Appointment: a, LocalTime: a.ScheduledAt.In(h.booking.Location()).Format(time.RFC3339)}
}

// parseInstant accepts RFC3339 with offset, or a naive "2006-01-02T15:04" read in the clinic zone.
func (h *AppointmentHandler) parseInstant(w http.ResponseWriter, raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, raw, h.booking.Location()); err == nil {
			return t, true
		}
	}
	httpx.WriteError(w, http.StatusBadRequest, "invalid_scheduled_at", "scheduled_at must be RFC3339 or YYYY-MM-DDTHH:MM")
	return time.Time{}, false
}

func (h *AppointmentHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	at, ok := h.parseInstant(w, req.ScheduledAt)
	if !ok {
		return
	}
	v, err := h.booking.ValidateBooking(r.Context(), scheduling.Request{
		ProfessionalID:       req.ProfessionalID,
		PatientID:            req.PatientID,
		At:                   at,
		ExcludeAppointmentID: req.ExcludeAppointmentID,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newVerdictResponse(v))
}

func (h *AppointmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	at, ok := h.parseInstant(w, req.ScheduledAt)
	if !ok {
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > 128 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_idempotency_key", "Idempotency-Key must be at most 128 characters")
		return
	}

	res, err := h.booking.Book(r.Context(), booking.BookRequest{
		ProfessionalID: req.ProfessionalID,
		PatientID:      req.PatientID,
		At:             at,
		Reason:         strings.TrimSpace(req.Reason),
		Notes:          strings.TrimSpace(req.Notes),
		IdempotencyKey: key,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if !res.Verdict.Accepted {
		writeRejection(w, res.Verdict)
		return
	}
	status := http.StatusCreated
	if res.Replayed {
		w.Header().Set("Idempotent-Replayed", "true")
		status = http.StatusOK
	}
	httpx.WriteJSON(w, status, h.present(res.Appointment))
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	a, err := h.booking.Get(r.Context(), actorOf(r), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.present(a))
}

func (h *AppointmentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.AppointmentFilter{
		ProfessionalID: strings.TrimSpace(q.Get("professional_id")),
		PatientID:      strings.TrimSpace(q.Get("patient_id")),
	}
	if !optionalUUID(w, "professional_id", f.ProfessionalID) || !optionalUUID(w, "patient_id", f.PatientID) {
		return
	}
	if raw := q.Get("status"); raw != "" {
		st, err := scheduling.ParseStatus(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}
		f.Status = st
	}
	var day scheduling.Date
	if raw := q.Get("date"); raw != "" {
		d, err := scheduling.ParseDate(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		day = d
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		f.Limit = n
	}

	list, err := h.booking.List(r.Context(), actorOf(r), f, day)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	items := make([]appointmentResponse, 0, len(list))
	for _, a := range list {
		items = append(items, h.present(a))
	}
	httpx.WriteJSON(w, http.StatusOK, newList(items))
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req rescheduleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	at, ok := h.parseInstant(w, req.ScheduledAt)
	if !ok {
		return
	}
	h.writeResult(w, r, func() (booking.Result, error) {
		return h.booking.Reschedule(r.Context(), actorOf(r), id, at)
	})
}

func (h *AppointmentHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	to, err := scheduling.ParseStatus(req.Status)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	h.writeResult(w, r, func() (booking.Result, error) {
		return h.booking.ChangeStatus(r.Context(), actorOf(r), id, to)
	})
}

func (h *AppointmentHandler) writeResult(w http.ResponseWriter, r *http.Request, do func() (booking.Result, error)) {
	res, err := do()
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if !res.Verdict.Accepted {
		writeRejection(w, res.Verdict)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.present(res.Appointment))
}

type transitionResponse struct {
	From    scheduling.Status   `json:"from"`
	To      scheduling.Status   `json:"to,omitempty"`
	Valid   *bool               `json:"valid,omitempty"`
	Allowed []scheduling.Status `json:"allowed"`
}

// Transitions answers whether from→to is allowed; without "to" it lists the allowed targets.
func (h *AppointmentHandler) Transitions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := scheduling.ParseStatus(q.Get("from"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_status", err.Error())
		return
	}
	resp := transitionResponse{From: from, Allowed: scheduling.Transitions(from)}
	if resp.Allowed == nil {
		resp.Allowed = []scheduling.Status{}
	}
	if raw := q.Get("to"); raw != "" {
		to, err := scheduling.ParseStatus(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}
		valid := h.booking.IsValidTransition(from, to)
		resp.To = to
		resp.Valid = &valid
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
