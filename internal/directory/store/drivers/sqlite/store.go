package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/duosync/internal/directory/store/drivers/sqldb"
	_ "modernc.org/sqlite"
)

// NewStore opens a SQLite database. Use ":memory:" for tests.
func NewStore(dsn string) (*sqldb.Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// One connection: SQLite has a single writer anyway, the foreign_keys
	// pragma is per connection, and ":memory:" databases are per connection.
	db.SetMaxOpenConns(1)

	// Enforce FKs, association rows cascade from duo_users deletes
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return sqldb.New(db, sqldb.Question, applyMigrations), nil
}
