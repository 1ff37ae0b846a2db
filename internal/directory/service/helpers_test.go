package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aussiebroadwan/duosync/internal/directory/domain"
	"github.com/aussiebroadwan/duosync/internal/directory/store"
	"github.com/aussiebroadwan/duosync/internal/directory/store/drivers/sqlite"
	"github.com/aussiebroadwan/duosync/pkg/duoapi"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int { return &i }
func i64Ptr(i int64) *int64 { return &i }

// fakeDirectory serves canned payloads and counts calls.
type fakeDirectory struct {
	mu        sync.Mutex
	users     []duoapi.User
	groups    []duoapi.Group
	usersErr  error
	groupsErr error

	userCalls  int
	groupCalls int
}

func (f *fakeDirectory) GetUsers(ctx context.Context) ([]duoapi.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userCalls++
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return f.users, nil
}

func (f *fakeDirectory) GetGroups(ctx context.Context) ([]duoapi.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.groupCalls++
	if f.groupsErr != nil {
		return nil, f.groupsErr
	}
	return f.groups, nil
}

// faultyStore fails GetOrCreate for one user_id inside transactions.
type faultyStore struct {
	store.Store
	failUserID string
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return f.Store.WithTx(ctx, func(tx store.Tx) error {
		return fn(&faultyTx{baseTx: tx, failUserID: f.failUserID})
	})
}

// baseTx is embedded through an alias so the field is not named Tx and
// does not shadow the promoted Tx method.
type baseTx = store.Tx

type faultyTx struct {
	baseTx
	failUserID string
}

func (t *faultyTx) Users() store.Users {
	return &faultyUsers{Users: t.baseTx.Users(), failUserID: t.failUserID}
}

type faultyUsers struct {
	store.Users
	failUserID string
}

func (u *faultyUsers) GetOrCreate(ctx context.Context, defaults domain.User) (domain.User, bool, error) {
	if defaults.UserID == u.failUserID {
		return domain.User{}, false, errBoom
	}
	return u.Users.GetOrCreate(ctx, defaults)
}

func seedUser(t *testing.T, s store.Store, userID string) domain.User {
	t.Helper()
	u, _, err := s.Users().GetOrCreate(context.Background(), domain.User{
		UserID:   userID,
		Username: "seed-" + userID,
		Status:   "active",
	})
	require.NoError(t, err)
	return u
}

func seedGroup(t *testing.T, s store.Store, groupID string) domain.Group {
	t.Helper()
	g, _, err := s.Groups().GetOrCreate(context.Background(), domain.Group{
		GroupID: groupID,
		Name:    "group " + groupID,
		Status:  "Active",
	})
	require.NoError(t, err)
	return g
}

func userIDs(t *testing.T, s store.Store) []string {
	t.Helper()
	ids, err := s.Users().ListUserIDs(context.Background())
	require.NoError(t, err)
	return ids
}
