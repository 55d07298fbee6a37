package storage

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/clinicdesk/services/clinic-service/internal/model"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, model.ErrNotFound},
		{"live slot taken", &pgconn.PgError{Code: "23505", ConstraintName: slotConstraint}, model.ErrSlotTaken},
		{"dni reused", &pgconn.PgError{Code: "23505", ConstraintName: dniConstraint}, model.ErrDuplicate},
		{"missing patient", &pgconn.PgError{Code: "23503"}, model.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := classify(tc.err, "op"); !errors.Is(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
	if classify(nil, "op") != nil {
		t.Fatal("nil stays nil")
	}
	boom := errors.New("boom")
	if got := classify(boom, "op"); !errors.Is(got, boom) {
		t.Fatalf("unknown errors are wrapped, got %v", got)
	}
}

func TestWhereBuilder(t *testing.T) {
	var w where
	w.add("professional_id = $%d", "pro-1")
	w.add("status = $%d", "PENDING")
	lim := w.limit(0)
	if got := w.String(); got != " WHERE professional_id = $1 AND status = $2" {
		t.Fatalf("unexpected where %q", got)
	}
	if lim != " LIMIT $3" || w.args[2] != defaultListLimit {
		t.Fatalf("unexpected limit %q args=%v", lim, w.args)
	}

	var empty where
	if empty.String() != "" {
		t.Fatal("empty builder renders nothing")
	}
	if fmt.Sprint(clampLimit(10_000)) != fmt.Sprint(maxListLimit) {
		t.Fatal("limit should be clamped")
	}
}

func TestPrefixed(t *testing.T) {
	got := prefixed("a", "id::text, status,\n\tcreated_at")
	if got != "a.id::text, a.status, a.created_at" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_a\b`); got != `50\%\_a\\b` {
		t.Fatalf("unexpected %q", got)
	}
}
