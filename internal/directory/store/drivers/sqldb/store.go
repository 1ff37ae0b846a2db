// Package sqldb implements store.Store over database/sql. The sqlite and
// postgres drivers open the connection, pick a placeholder dialect and
// provide their own migrations; everything else lives here.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/duosync/internal/directory/store"
)

// Dialect selects the bind parameter style of the underlying driver.
type Dialect int

const (
	// Question keeps "?" placeholders (sqlite).
	Question Dialect = iota
	// Dollar rewrites "?" into "$1, $2, ..." (postgres).
	Dollar
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Migrator applies the driver's embedded schema migrations.
type Migrator func(db *sql.DB) error

type Store struct {
	db      *sql.DB
	q       *queries
	migrate Migrator
}

// New wraps an open database. The Store takes ownership of db.
func New(db *sql.DB, dialect Dialect, migrate Migrator) *Store {
	return &Store{
		db:      db,
		q:       newQueries(db, dialect),
		migrate: migrate,
	}
}

// DB exposes the underlying handle for driver specific setup and tests.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) ApplyMigrations() error {
	if s.migrate == nil {
		return nil
	}
	return s.migrate(s.db)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return newTx(tx, s.q.dialect), nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // safe to call even after commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users   { return &usersRepo{q: s.q} }
func (s *Store) Groups() store.Groups { return &groupsRepo{q: s.q} }
func (s *Store) Tokens() store.Tokens { return &tokensRepo{q: s.q} }
func (s *Store) Phones() store.Phones { return &phonesRepo{q: s.q} }

// queries binds a DBTX to a placeholder dialect.
type queries struct {
	db      DBTX
	dialect Dialect
}

func newQueries(db DBTX, dialect Dialect) *queries {
	return &queries{db: db, dialect: dialect}
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.db.ExecContext(ctx, rebind(q.dialect, query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, rebind(q.dialect, query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.db.QueryRowContext(ctx, rebind(q.dialect, query), args...)
}

// inserted reports whether an INSERT ... ON CONFLICT DO NOTHING wrote a row.
func inserted(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// rebind rewrites "?" placeholders for the dialect. Queries in this package
// never contain literal question marks.
func rebind(d Dialect, query string) string {
	if d != Dollar {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func now() time.Time { return time.Now().UTC() }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func mapNullStringPtr(ns sql.NullString) *string {
	if ns.Valid {
		val := ns.String
		return &val
	}
	return nil
}

func mapOptionalString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

func mapNullTimePtr(nt sql.NullTime) *time.Time {
	if nt.Valid {
		val := nt.Time
		return &val
	}
	return nil
}

func mapOptionalTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func mapNullBoolPtr(nb sql.NullBool) *bool {
	if nb.Valid {
		val := nb.Bool
		return &val
	}
	return nil
}

func mapOptionalBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{Valid: false}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func mapNullIntPtr(ni sql.NullInt64) *int {
	if ni.Valid {
		val := int(ni.Int64)
		return &val
	}
	return nil
}

func mapOptionalInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

// scanStrings drains a single column result set.
func scanStrings(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
