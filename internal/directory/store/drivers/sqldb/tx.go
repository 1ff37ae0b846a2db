package sqldb

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/duosync/internal/directory/store"
)

type txStore struct {
	tx *sql.Tx
	q  *queries
}

func newTx(tx *sql.Tx, dialect Dialect) *txStore {
	return &txStore{
		tx: tx,
		q:  newQueries(tx, dialect),
	}
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

func (t *txStore) Close() error { return nil } // caller will commit/rollback and outer DB stays open

// Ping is a no-op for transactions, the connection is already held.
func (t *txStore) Ping(ctx context.Context) error {
	return nil
}

func (t *txStore) Tx(ctx context.Context) (store.Tx, error) {
	// Nested tx not supported; could emulate with SAVEPOINT if needed
	return nil, sql.ErrTxDone
}

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users   { return &usersRepo{q: t.q} }
func (t *txStore) Groups() store.Groups { return &groupsRepo{q: t.q} }
func (t *txStore) Tokens() store.Tokens { return &tokensRepo{q: t.q} }
func (t *txStore) Phones() store.Phones { return &phonesRepo{q: t.q} }

func (t *txStore) ApplyMigrations() error { return nil } // migrations are applied before starting a tx
