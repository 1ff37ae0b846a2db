package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/duosync/internal/directory/domain"
)

var (
	ErrNotFound = errors.New("store: not found")
)

// Store is the root data access interface. Concrete drivers (sqlite, postgres)
// implement this and expose one sub-repository per entity. Sub-repos are
// methods so a Tx can hand out the same repos bound to the transaction.
type Store interface {
	Users() Users
	Groups() Groups
	Tokens() Tokens
	Phones() Phones

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Upserter is the find-or-create-then-overwrite capability every entity
// repository shares.
type Upserter[T any] interface {
	// GetOrCreate looks the record up by its natural key and inserts defaults
	// when it is absent. The returned bool reports whether a row was created.
	GetOrCreate(ctx context.Context, defaults T) (T, bool, error)

	// Update overwrites every mutable column of an existing record (matched on
	// its natural key) and bumps updated_at.
	Update(ctx context.Context, record T) error
}

type Users interface {
	Upserter[domain.User]

	// GetUserByUserID returns a user by its Duo user_id.
	GetUserByUserID(ctx context.Context, userID string) (domain.User, error)

	// ListUserIDs returns the Duo user_id of every local user.
	ListUserIDs(ctx context.Context) ([]string, error)

	// DeleteUserByUserID removes a user and cascades to its association rows.
	// Deleting an unknown user is a no-op.
	DeleteUserByUserID(ctx context.Context, userID string) error

	CountUsers(ctx context.Context) (int, error)
}

type Groups interface {
	Upserter[domain.Group]

	GetGroupByGroupID(ctx context.Context, groupID string) (domain.Group, error)
	ListGroups(ctx context.Context) ([]domain.Group, error)

	// AddUser links a group and a user by surrogate ID and reports whether a
	// new link row was written. Linking twice is a no-op returning false.
	AddUser(ctx context.Context, groupID, userID string) (bool, error)
	RemoveUser(ctx context.Context, groupID, userID string) error

	// ListGroupsForUser returns the groups a user (surrogate ID) belongs to.
	ListGroupsForUser(ctx context.Context, userID string) ([]domain.Group, error)

	// ListMemberUserIDs returns the Duo user_id of every member of a group.
	ListMemberUserIDs(ctx context.Context, groupID string) ([]string, error)
}

type Tokens interface {
	Upserter[domain.Token]

	GetTokenBySerial(ctx context.Context, serial string) (domain.Token, error)

	AddUser(ctx context.Context, tokenID, userID string) (bool, error)
	RemoveUser(ctx context.Context, tokenID, userID string) error
	ListTokensForUser(ctx context.Context, userID string) ([]domain.Token, error)
	CountTokens(ctx context.Context) (int, error)
}

type Phones interface {
	Upserter[domain.Phone]

	GetPhoneByPhoneID(ctx context.Context, phoneID string) (domain.Phone, error)

	AddUser(ctx context.Context, phoneID, userID string) (bool, error)
	RemoveUser(ctx context.Context, phoneID, userID string) error
	ListPhonesForUser(ctx context.Context, userID string) ([]domain.Phone, error)
	CountPhones(ctx context.Context) (int, error)
}
