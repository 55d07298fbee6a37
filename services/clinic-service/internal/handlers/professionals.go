package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicdesk/libs/httpx"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
)

type ProfessionalStore interface {
	Create(ctx context.Context, p model.Professional, rules []scheduling.Rule) (model.Professional, error)
	Update(ctx context.Context, p model.Professional) (model.Professional, error)
	SetActive(ctx context.Context, id string, active bool) (model.Professional, error)
	Get(ctx context.Context, id string) (model.Professional, error)
	List(ctx context.Context, f model.ProfessionalFilter) ([]model.Professional, error)
	Specialties(ctx context.Context) ([]model.Specialty, error)
}

type ProfessionalHandler struct {
	store   ProfessionalStore
	booking Booking
	logger  *slog.Logger
}

func NewProfessionalHandler(store ProfessionalStore, b Booking, logger *slog.Logger) *ProfessionalHandler {
	return &ProfessionalHandler{store: store, booking: b, logger: logger}
}

type ruleRequest struct {
	Day         string `json:"day" validate:"required"`
	Start       string `json:"start" validate:"required,hhmm"`
	End         string `json:"end" validate:"required,hhmm"`
	SlotMinutes int    `json:"slot_minutes" validate:"required,min=1,max=1440"`
}

type professionalRequest struct {
	FirstName     string        `json:"first_name" validate:"required,max=100"`
	LastName      string        `json:"last_name" validate:"required,max=100"`
	LicenseNumber string        `json:"license_number" validate:"required,max=50"`
	SpecialtyID   string        `json:"specialty_id" validate:"required,uuid"`
	Phone         string        `json:"phone" validate:"omitempty,phone_ar"`
	Email         string        `json:"email" validate:"omitempty,email,max=255"`
	Schedule      []ruleRequest `json:"schedule" validate:"omitempty,dive"`
}

type scheduleRequest struct {
	Rules []ruleRequest `json:"rules" validate:"dive"`
}

type activeRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type slotsResponse struct {
	ProfessionalID string                    `json:"professional_id"`
	Date           scheduling.Date           `json:"date"`
	Slots          []scheduling.TimeOfDay    `json:"slots"`
	Grid           []scheduling.SlotProposal `json:"grid,omitempty"`
}

type scheduleResponse struct {
	ProfessionalID string            `json:"professional_id"`
	Rules          []scheduling.Rule `json:"rules"`
}

// toRules converts and checks request rules. Overlaps are caught later by the template.
func toRules(professionalID string, in []ruleRequest) ([]scheduling.Rule, error) {
	out := make([]scheduling.Rule, 0, len(in))
	for _, rr := range in {
		day, err := scheduling.ParseWeekday(rr.Day)
		if err != nil {
			return nil, err
		}
		start, err := scheduling.ParseTimeOfDay(rr.Start)
		if err != nil {
			return nil, err
		}
		end, err := scheduling.ParseTimeOfDay(rr.End)
		if err != nil {
			return nil, err
		}
		rule := scheduling.Rule{ProfessionalID: professionalID, Day: day, Start: start, End: end, SlotMinutes: rr.SlotMinutes}
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	if _, err := scheduling.NewTemplate(out); err != nil {
		return nil, err
	}
	return out, nil
}

func (req professionalRequest) model(id string) model.Professional {
	return model.Professional{
		ID:            id,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		LicenseNumber: strings.TrimSpace(req.LicenseNumber),
		SpecialtyID:   req.SpecialtyID,
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.TrimSpace(req.Email),
	}
}

func (h *ProfessionalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req professionalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	id := uuid.NewString()
	rules, err := toRules(id, req.Schedule)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid_schedule", err.Error())
		return
	}
	p, err := h.store.Create(r.Context(), req.model(id), rules)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.logger.Info("professional created", "professional_id", p.ID, "rules", len(rules))
	httpx.WriteJSON(w, http.StatusCreated, p)
}

// Update edits personal data only; the schedule has its own endpoint.
func (h *ProfessionalHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req professionalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if len(req.Schedule) > 0 {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body", "use PUT /api/v1/professionals/{id}/schedule to change the schedule")
		return
	}
	p, err := h.store.Update(r.Context(), req.model(id))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *ProfessionalHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	p, err := h.store.SetActive(r.Context(), id, *req.Active)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *ProfessionalHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.store.Get(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *ProfessionalHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	active, ok := model.ParseActiveFilter(q.Get("active"))
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_active", "active must be active, inactive or all")
		return
	}
	f := model.ProfessionalFilter{Active: active, SpecialtyID: strings.TrimSpace(q.Get("specialty_id"))}
	if !optionalUUID(w, "specialty_id", f.SpecialtyID) {
		return
	}
	list, err := h.store.List(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newList(list))
}

func (h *ProfessionalHandler) Specialties(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.Specialties(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newList(list))
}

func (h *ProfessionalHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rules, err := h.booking.WeeklyRules(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if rules == nil {
		rules = []scheduling.Rule{}
	}
	httpx.WriteJSON(w, http.StatusOK, scheduleResponse{ProfessionalID: id, Rules: rules})
}

func (h *ProfessionalHandler) ReplaceSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req scheduleRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	rules, err := toRules(id, req.Rules)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid_schedule", err.Error())
		return
	}
	if _, err := h.store.Get(r.Context(), id); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	stored, err := h.booking.ReplaceSchedule(r.Context(), id, rules)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if stored == nil {
		stored = []scheduling.Rule{}
	}
	httpx.WriteJSON(w, http.StatusOK, scheduleResponse{ProfessionalID: id, Rules: stored})
}

// Slots lists free slot starts for ?date=YYYY-MM-DD. With ?grid=true the full
// grid including occupied slots is returned as well.
func (h *ProfessionalHandler) Slots(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	d, err := scheduling.ParseDate(q.Get("date"))
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return
	}
	slots, err := h.booking.AvailableSlots(r.Context(), id, d)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	resp := slotsResponse{ProfessionalID: id, Date: d, Slots: slots}
	if resp.Slots == nil {
		resp.Slots = []scheduling.TimeOfDay{}
	}
	if q.Get("grid") == "true" {
		if resp.Grid, err = h.booking.Proposals(r.Context(), id, d); err != nil {
			writeError(w, h.logger, r, err)
			return
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
