package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/clinicdesk/libs/db"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/outbox"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/scheduling"
)

type ProfessionalRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

const professionalColumns = `p.id::text, p.first_name, p.last_name, p.license_number, p.specialty_id::text,
	s.name, p.phone, p.email, p.active, p.created_at`

const professionalFrom = ` FROM professionals p JOIN specialties s ON s.id = p.specialty_id`

func scanProfessional(row pgx.Row) (model.Professional, error) {
	var p model.Professional
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.LicenseNumber, &p.SpecialtyID,
		&p.SpecialtyName, &p.Phone, &p.Email, &p.Active, &p.CreatedAt)
	return p, err
}

// Create inserts the professional and its initial weekly rules atomically.
func (r *ProfessionalRepository) Create(ctx context.Context, p model.Professional, rules []scheduling.Rule) (model.Professional, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Professional{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO professionals (id, first_name, last_name, license_number, specialty_id, phone, email, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true)
	`, p.ID, p.FirstName, p.LastName, p.LicenseNumber, p.SpecialtyID, p.Phone, p.Email); err != nil {
		return model.Professional{}, classify(err, "create professional")
	}
	if err := insertRules(ctx, tx, p.ID, rules); err != nil {
		return model.Professional{}, err
	}
	created, err := scanProfessional(tx.QueryRow(ctx, `SELECT `+professionalColumns+professionalFrom+` WHERE p.id = $1`, p.ID))
	if err != nil {
		return model.Professional{}, classify(err, "reload professional")
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Professional{}, classify(err, "commit professional")
	}
	return created, nil
}

func (r *ProfessionalRepository) Update(ctx context.Context, p model.Professional) (model.Professional, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE professionals
		SET first_name = $2, last_name = $3, license_number = $4, specialty_id = $5, phone = $6, email = $7
		WHERE id = $1
	`, p.ID, p.FirstName, p.LastName, p.LicenseNumber, p.SpecialtyID, p.Phone, p.Email)
	if err != nil {
		return model.Professional{}, classify(err, "update professional")
	}
	if tag.RowsAffected() == 0 {
		return model.Professional{}, fmt.Errorf("update professional: %w", model.ErrNotFound)
	}
	return r.Get(ctx, p.ID)
}

func (r *ProfessionalRepository) SetActive(ctx context.Context, id string, active bool) (model.Professional, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE professionals SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return model.Professional{}, classify(err, "set professional active")
	}
	if tag.RowsAffected() == 0 {
		return model.Professional{}, fmt.Errorf("set professional active: %w", model.ErrNotFound)
	}
	return r.Get(ctx, id)
}

func (r *ProfessionalRepository) Get(ctx context.Context, id string) (model.Professional, error) {
	p, err := scanProfessional(r.pool.QueryRow(ctx, `SELECT `+professionalColumns+professionalFrom+` WHERE p.id = $1`, id))
	return p, classify(err, "get professional")
}

// IsActive is false both for inactive and for unknown professionals.
func (r *ProfessionalRepository) IsActive(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM professionals WHERE id = $1 AND active)`, id).Scan(&ok)
	return ok, classify(err, "professional active")
}

func (r *ProfessionalRepository) List(ctx context.Context, f model.ProfessionalFilter) ([]model.Professional, error) {
	var w where
	switch f.Active {
	case model.OnlyActive, "":
		w.add("p.active = $%d", true)
	case model.OnlyInactive:
		w.add("p.active = $%d", false)
	}
	if f.SpecialtyID != "" {
		w.add("p.specialty_id = $%d", f.SpecialtyID)
	}
	query := `SELECT ` + professionalColumns + professionalFrom + w.String() + ` ORDER BY p.last_name, p.first_name` + w.limit(f.Limit)

	rows, err := r.pool.Query(ctx, query, w.args...)
	if err != nil {
		return nil, classify(err, "list professionals")
	}
	defer rows.Close()

	var out []model.Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProfessionalRepository) WeeklyRules(ctx context.Context, professionalID string) ([]scheduling.Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT weekday, start_minute, end_minute, slot_minutes
		FROM schedule_rules
		WHERE professional_id = $1
		ORDER BY weekday, start_minute
	`, professionalID)
	if err != nil {
		return nil, classify(err, "list schedule rules")
	}
	defer rows.Close()

	var out []scheduling.Rule
	for rows.Next() {
		rule := scheduling.Rule{ProfessionalID: professionalID}
		var day, start, end int
		if err := rows.Scan(&day, &start, &end, &rule.SlotMinutes); err != nil {
			return nil, err
		}
		rule.Day = scheduling.Weekday(day)
		rule.Start = scheduling.TimeOfDay(start)
		rule.End = scheduling.TimeOfDay(end)
		out = append(out, rule)
	}
	return out, rows.Err()
}

// ReplaceSchedule swaps the professional's whole rule set in one transaction and
// records evt with it. Concurrent replacements for the same professional serialise
// on the professional row.
func (r *ProfessionalRepository) ReplaceSchedule(ctx context.Context, professionalID string, rules []scheduling.Rule, evt outbox.Event) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	if err := tx.QueryRow(ctx, `SELECT id::text FROM professionals WHERE id = $1 FOR UPDATE`, professionalID).Scan(&id); err != nil {
		return classify(err, "lock professional")
	}
	if _, err := tx.Exec(ctx, `DELETE FROM schedule_rules WHERE professional_id = $1`, professionalID); err != nil {
		return classify(err, "delete schedule rules")
	}
	if err := insertRules(ctx, tx, professionalID, rules); err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, evt); err != nil {
		return err
	}
	return classify(tx.Commit(ctx), "commit schedule")
}

func insertRules(ctx context.Context, tx pgx.Tx, professionalID string, rules []scheduling.Rule) error {
	if len(rules) == 0 {
		return nil
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"schedule_rules"},
		[]string{"professional_id", "weekday", "start_minute", "end_minute", "slot_minutes"},
		pgx.CopyFromSlice(len(rules), func(i int) ([]any, error) {
			r := rules[i]
			return []any{professionalID, int16(r.Day), int32(r.Start), int32(r.End), int32(r.SlotMinutes)}, nil
		}),
	)
	return classify(err, "insert schedule rules")
}

func (r *ProfessionalRepository) Specialties(ctx context.Context) ([]model.Specialty, error) {
	rows, err := r.pool.Query(ctx, `SELECT id::text, name, description FROM specialties ORDER BY name`)
	if err != nil {
		return nil, classify(err, "list specialties")
	}
	defer rows.Close()

	var out []model.Specialty
	for rows.Next() {
		var s model.Specialty
		if err := rows.Scan(&s.ID, &s.Name, &s.Description); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
