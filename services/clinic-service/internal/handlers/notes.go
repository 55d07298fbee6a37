package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/clinicdesk/libs/httpx"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/history"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
)

type Notes interface {
	Create(ctx context.Context, actor booking.Actor, in history.NoteInput) (model.ClinicalNote, error)
	List(ctx context.Context, actor booking.Actor, f model.NoteFilter) ([]model.ClinicalNote, error)
}

type NoteHandler struct {
	notes  Notes
	logger *slog.Logger
}

func NewNoteHandler(notes Notes, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{notes: notes, logger: logger}
}

type noteRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required,uuid"`
	Observations  string `json:"observations" validate:"required,min=10,max=5000"`
	Diagnosis     string `json:"diagnosis" validate:"max=2000"`
	Treatment     string `json:"treatment" validate:"max=2000"`
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	n, err := h.notes.Create(r.Context(), actorOf(r), history.NoteInput{
		AppointmentID: req.AppointmentID,
		Observations:  req.Observations,
		Diagnosis:     req.Diagnosis,
		Treatment:     req.Treatment,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, n)
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.NoteFilter{
		PatientID:      strings.TrimSpace(q.Get("patient_id")),
		ProfessionalID: strings.TrimSpace(q.Get("professional_id")),
	}
	if !optionalUUID(w, "patient_id", f.PatientID) || !optionalUUID(w, "professional_id", f.ProfessionalID) {
		return
	}
	list, err := h.notes.List(r.Context(), actorOf(r), f)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newList(list))
}
