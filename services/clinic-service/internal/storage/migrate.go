package storage

import (
	"context"
	"embed"
	"io/fs"

	"github.com/md-rashed-zaman/clinicdesk/libs/db"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate brings the schema up to date and returns the versions it applied.
func Migrate(ctx context.Context, pool *db.Pool) ([]string, error) {
	sub, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return db.Migrate(ctx, pool, sub)
}
