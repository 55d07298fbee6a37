package storage

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicdesk/libs/db"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
)

type PatientRepository struct {
	pool *db.Pool
}

const patientColumns = `id::text, first_name, last_name, dni, birth_date, sex, phone, email, address, active, created_at`

func scanPatient(row pgx.Row) (model.Patient, error) {
	var p model.Patient
	var sex string
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DNI, &p.BirthDate, &sex,
		&p.Phone, &p.Email, &p.Address, &p.Active, &p.CreatedAt)
	p.Sex = model.Sex(sex)
	return p, err
}

func (r *PatientRepository) Create(ctx context.Context, p model.Patient) (model.Patient, error) {
	created, err := scanPatient(r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, first_name, last_name, dni, birth_date, sex, phone, email, address, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, true)
		RETURNING `+patientColumns,
		p.ID, p.FirstName, p.LastName, p.DNI, p.BirthDate, string(p.Sex), p.Phone, p.Email, p.Address))
	return created, classify(err, "create patient")
}

func (r *PatientRepository) Update(ctx context.Context, p model.Patient) (model.Patient, error) {
	updated, err := scanPatient(r.pool.QueryRow(ctx, `
		UPDATE patients
		SET first_name = $2, last_name = $3, dni = $4, birth_date = $5, sex = $6,
			phone = $7, email = $8, address = $9
		WHERE id = $1
		RETURNING `+patientColumns,
		p.ID, p.FirstName, p.LastName, p.DNI, p.BirthDate, string(p.Sex), p.Phone, p.Email, p.Address))
	return updated, classify(err, "update patient")
}

func (r *PatientRepository) SetActive(ctx context.Context, id string, active bool) (model.Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx, `
		UPDATE patients SET active = $2 WHERE id = $1 RETURNING `+patientColumns, id, active))
	return p, classify(err, "set patient active")
}

func (r *PatientRepository) Get(ctx context.Context, id string) (model.Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id))
	return p, classify(err, "get patient")
}

func (r *PatientRepository) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&ok)
	return ok, classify(err, "patient exists")
}

func (r *PatientRepository) List(ctx context.Context, f model.PatientFilter) ([]model.Patient, error) {
	var w where
	switch f.Active {
	case model.OnlyActive, "":
		w.add("active = $%d", true)
	case model.OnlyInactive:
		w.add("active = $%d", false)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		w.add("(lower(last_name) LIKE $%[1]d OR lower(first_name) LIKE $%[1]d OR dni LIKE $%[1]d)", strings.ToLower(escapeLike(s))+"%")
	}
	query := `SELECT ` + patientColumns + ` FROM patients` + w.String() + ` ORDER BY last_name, first_name` + w.limit(f.Limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, classify(err, "list patients")
	}
	defer rows.Close()

	var out []model.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
