package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicdesk/libs/httpx"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
)

type PatientStore interface {
	Create(ctx context.Context, p model.Patient) (model.Patient, error)
	Update(ctx context.Context, p model.Patient) (model.Patient, error)
	SetActive(ctx context.Context, id string, active bool) (model.Patient, error)
	Get(ctx context.Context, id string) (model.Patient, error)
	List(ctx context.Context, f model.PatientFilter) ([]model.Patient, error)
}

type PatientHandler struct {
	store  PatientStore
	logger *slog.Logger
}

func NewPatientHandler(store PatientStore, logger *slog.Logger) *PatientHandler {
	return &PatientHandler{store: store, logger: logger}
}

type patientRequest struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	DNI       string `json:"dni" validate:"required,dni"`
	BirthDate string `json:"birth_date" validate:"required,datetime=2006-01-02"`
	Sex       string `json:"sex" validate:"required,oneof=MASCULINO FEMENINO OTRO"`
	Phone     string `json:"phone" validate:"omitempty,phone_ar"`
	Email     string `json:"email" validate:"omitempty,email,max=255"`
	Address   string `json:"address" validate:"max=255"`
}

func (req patientRequest) model(id string) (model.Patient, error) {
	birth, err := time.Parse("2006-01-02", req.BirthDate)
	if err != nil {
		return model.Patient{}, err
	}
	return model.Patient{
		ID:        id,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		DNI:       req.DNI,
		BirthDate: birth,
		Sex:       model.Sex(req.Sex),
		Phone:     strings.TrimSpace(req.Phone),
		Email:     strings.TrimSpace(req.Email),
		Address:   strings.TrimSpace(req.Address),
	}, nil
}

func (h *PatientHandler) decode(w http.ResponseWriter, r *http.Request, id string) (model.Patient, bool) {
	var req patientRequest
	if !decodeAndValidate(w, r, &req) {
		return model.Patient{}, false
	}
	p, err := req.model(id)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation_failed", "birth_date must be a date as YYYY-MM-DD")
		return model.Patient{}, false
	}
	if p.BirthDate.After(time.Now()) {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "validation_failed", "birth_date cannot be in the future")
		return model.Patient{}, false
	}
	return p, true
}

func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := h.decode(w, r, uuid.NewString())
	if !ok {
		return
	}
	created, err := h.store.Create(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	h.logger.Info("patient created", "patient_id", created.ID)
	httpx.WriteJSON(w, http.StatusCreated, created)
}

func (h *PatientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, ok := h.decode(w, r, id)
	if !ok {
		return
	}
	updated, err := h.store.Update(r.Context(), p)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, updated)
}

func (h *PatientHandler) SetActive(w http.ResponseWriter, r *http.Request) {
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

func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
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

func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	active, ok := model.ParseActiveFilter(q.Get("active"))
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_active", "active must be active, inactive or all")
		return
	}
	list, err := h.store.List(r.Context(), model.PatientFilter{Active: active, Search: strings.TrimSpace(q.Get("q"))})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newList(list))
}
