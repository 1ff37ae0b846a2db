package postgres

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/duosync/internal/directory/store/drivers/postgres/migrations"
	"github.com/pressly/goose/v3"
)

func applyMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(context.Background(), db, ".")
}
