// Package migrate applies embedded SQL migrations on open.
package migrate

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"

	"github.com/scoutpluse/scoutsync/migrations"
)

// Up runs all pending migrations from the embedded filesystem against the
// provided SQLite handle.
func Up(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
