package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicdesk/libs/db"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
)

type NoteRepository struct {
	pool *db.Pool
}

const noteColumns = `id::text, appointment_id::text, patient_id::text, professional_id::text,
	observations, diagnosis, treatment, created_at`

func scanNote(row pgx.Row) (model.ClinicalNote, error) {
	var n model.ClinicalNote
	err := row.Scan(&n.ID, &n.AppointmentID, &n.PatientID, &n.ProfessionalID,
		&n.Observations, &n.Diagnosis, &n.Treatment, &n.CreatedAt)
	return n, err
}

// Create fails with model.ErrDuplicate when the appointment already has a note.
func (r *NoteRepository) Create(ctx context.Context, n model.ClinicalNote) (model.ClinicalNote, error) {
	created, err := scanNote(r.pool.QueryRow(ctx, `
		INSERT INTO clinical_notes (id, appointment_id, patient_id, professional_id, observations, diagnosis, treatment)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+noteColumns,
		n.ID, n.AppointmentID, n.PatientID, n.ProfessionalID, n.Observations, n.Diagnosis, n.Treatment))
	return created, classify(err, "create clinical note")
}

func (r *NoteRepository) List(ctx context.Context, f model.NoteFilter) ([]model.ClinicalNote, error) {
	var w where
	if f.PatientID != "" {
		w.add("patient_id = $%d", f.PatientID)
	}
	if f.ProfessionalID != "" {
		w.add("professional_id = $%d", f.ProfessionalID)
	}
	query := `SELECT ` + noteColumns + ` FROM clinical_notes` + w.String() + ` ORDER BY created_at DESC` + w.limit(f.Limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, classify(err, "list clinical notes")
	}
	defer rows.Close()

	var out []model.ClinicalNote
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
