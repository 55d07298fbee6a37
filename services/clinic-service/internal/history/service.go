package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/booking"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
)

var (
	ErrNotAttended = fmt.Errorf("%w: notes can only be written for attended appointments", model.ErrConflict)
	ErrNoteExists  = fmt.Errorf("%w: the appointment already has a clinical note", model.ErrDuplicate)
	ErrTooShort    = fmt.Errorf("%w: observations must have at least %d characters", model.ErrInvalid, model.MinObservationLen)
)

type AppointmentReader interface {
	Get(ctx context.Context, id string) (model.Appointment, error)
}

type NoteStore interface {
	Create(ctx context.Context, n model.ClinicalNote) (model.ClinicalNote, error)
	List(ctx context.Context, f model.NoteFilter) ([]model.ClinicalNote, error)
}

type Service struct {
	appointments AppointmentReader
	notes        NoteStore
	logger       *slog.Logger
}

func NewService(appointments AppointmentReader, notes NoteStore, logger *slog.Logger) *Service {
	return &Service{appointments: appointments, notes: notes, logger: logger}
}

type NoteInput struct {
	AppointmentID string
	Observations  string
	Diagnosis     string
	Treatment     string
}

// Create attaches the clinical note of an attended appointment. Patient and
// professional are taken from the appointment.
func (s *Service) Create(ctx context.Context, actor booking.Actor, in NoteInput) (model.ClinicalNote, error) {
	in.Observations = strings.TrimSpace(in.Observations)
	if utf8.RuneCountInString(in.Observations) < model.MinObservationLen {
		return model.ClinicalNote{}, ErrTooShort
	}
	a, err := s.appointments.Get(ctx, in.AppointmentID)
	if err != nil {
		return model.ClinicalNote{}, err
	}
	if actor.Restricted && actor.ProfessionalID != a.ProfessionalID {
		return model.ClinicalNote{}, model.ErrForbidden
	}
	if a.Status != scheduling.StatusAttended {
		return model.ClinicalNote{}, ErrNotAttended
	}

	note, err := s.notes.Create(ctx, model.ClinicalNote{
		ID:             uuid.NewString(),
		AppointmentID:  a.ID,
		PatientID:      a.PatientID,
		ProfessionalID: a.ProfessionalID,
		Observations:   in.Observations,
		Diagnosis:      strings.TrimSpace(in.Diagnosis),
		Treatment:      strings.TrimSpace(in.Treatment),
	})
	if errors.Is(err, model.ErrDuplicate) {
		return model.ClinicalNote{}, ErrNoteExists
	}
	if err != nil {
		return model.ClinicalNote{}, err
	}
	s.logger.Info("clinical note recorded", "note_id", note.ID, "appointment_id", a.ID)
	return note, nil
}

// List returns notes newest first. Restricted actors only see their own.
func (s *Service) List(ctx context.Context, actor booking.Actor, f model.NoteFilter) ([]model.ClinicalNote, error) {
	scope, err := actor.Scope(f.ProfessionalID)
	if err != nil {
		return nil, err
	}
	f.ProfessionalID = scope
	return s.notes.List(ctx, f)
}
