package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aussiebroadwan/duosync/internal/directory/domain"
	"github.com/aussiebroadwan/duosync/pkg/duoapi"
	"github.com/stretchr/testify/require"
)

func allEntities() domain.EntitySet {
	return domain.NewEntitySet(domain.AllEntities...)
}

func newTestSync(t *testing.T, dir Directory, opts SyncOptions) (*SyncService, *Reconciler) {
	t.Helper()
	s := newTestStore(t)
	svc, err := NewSyncService(dir, s, opts)
	require.NoError(t, err)
	return svc, svc.reconciler
}

func TestSyncOptionsValidate(t *testing.T) {
	t.Parallel()

	require.Error(t, SyncOptions{}.Validate())
	require.Error(t, SyncOptions{Entities: domain.NewEntitySet(domain.EntityTokens)}.Validate())
	require.Error(t, SyncOptions{Entities: domain.NewEntitySet(domain.EntityGroups, domain.EntityPhones)}.Validate())
	require.NoError(t, SyncOptions{Entities: domain.NewEntitySet(domain.EntityGroups)}.Validate())
	require.NoError(t, SyncOptions{Entities: allEntities()}.Validate())
}

func TestSyncLinksUserToExistingGroup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{users: []duoapi.User{{
		UserID:   "U1",
		Username: "alice",
		Groups:   []duoapi.Group{{GroupID: "G1"}},
	}}}
	svc, r := newTestSync(t, dir, SyncOptions{
		Entities: domain.NewEntitySet(domain.EntityUsers, domain.EntityTokens, domain.EntityPhones),
	})
	st := r.Store

	seedGroup(t, st, "G1")
	seedUser(t, st, "U-old")

	summary, err := svc.Run(ctx)
	require.NoError(t, err)
	require.False(t, summary.RunID.IsZero())
	require.Equal(t, 1, summary.Users.Created)
	require.Equal(t, 1, summary.Removed)
	require.Equal(t, 1, summary.Linked)
	require.Empty(t, summary.Failures())
	require.Zero(t, summary.Tokens.Created+summary.Tokens.Updated)
	require.Zero(t, summary.Phones.Created+summary.Phones.Updated)
	require.Zero(t, dir.groupCalls, "groups are not fetched unless selected")

	user, err := st.Users().GetUserByUserID(ctx, "U1")
	require.NoError(t, err)
	groups, err := st.Groups().ListGroupsForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "G1", groups[0].GroupID)

	tokens, err := st.Tokens().CountTokens(ctx)
	require.NoError(t, err)
	require.Zero(t, tokens)
	phones, err := st.Phones().CountPhones(ctx)
	require.NoError(t, err)
	require.Zero(t, phones)
}

func TestSyncRemovesStaleAndUpdatesRemaining(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{users: []duoapi.User{{UserID: "U1", Username: "renamed"}}}
	svc, r := newTestSync(t, dir, SyncOptions{Entities: allEntities()})
	st := r.Store

	u1 := seedUser(t, st, "U1")
	u2 := seedUser(t, st, "U2")
	g := seedGroup(t, st, "G1")
	_, err := st.Groups().AddUser(ctx, g.ID, u2.ID)
	require.NoError(t, err)

	summary, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Removed)
	require.Equal(t, 1, summary.Users.Updated)
	require.Zero(t, summary.Users.Created)

	require.Equal(t, []string{"U1"}, userIDs(t, st))

	got, err := st.Users().GetUserByUserID(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, u1.ID, got.ID)
	require.Equal(t, "renamed", got.Username)

	// Group survives, the removed user's link goes by cascade
	members, err := st.Groups().ListMemberUserIDs(ctx, g.ID)
	require.NoError(t, err)
	require.Empty(t, members)
	_, err = st.Groups().GetGroupByGroupID(ctx, "G1")
	require.NoError(t, err)
}

func TestSyncIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{
		groups: []duoapi.Group{{GroupID: "G1", Name: "Admins"}},
		users: []duoapi.User{{
			UserID:    "U1",
			Username:  "alice",
			LastLogin: i64Ptr(1700000000),
			Groups:    []duoapi.Group{{GroupID: "G1"}},
			Tokens:    []duoapi.Token{{Serial: "S1", Type: "h6"}},
			Phones:    []duoapi.Phone{{PhoneID: "P1", Number: "+15555550100"}},
		}},
	}
	svc, r := newTestSync(t, dir, SyncOptions{Entities: allEntities()})
	st := r.Store

	first, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Empty(t, first.Failures())
	require.Equal(t, 1, first.Groups.Created)
	require.Equal(t, 1, first.Users.Created)
	require.Equal(t, 1, first.Tokens.Created)
	require.Equal(t, 1, first.Phones.Created)
	require.Equal(t, 3, first.Linked)

	before, err := st.Users().GetUserByUserID(ctx, "U1")
	require.NoError(t, err)

	second, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Empty(t, second.Failures())
	require.Zero(t, second.Groups.Created+second.Users.Created+second.Tokens.Created+second.Phones.Created)
	require.Zero(t, second.Removed)
	require.Zero(t, second.Linked)
	require.Zero(t, second.Unlinked)

	after, err := st.Users().GetUserByUserID(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, before.ID, after.ID)
	require.Equal(t, before.Username, after.Username)
	require.True(t, before.LastLogin.Equal(*after.LastLogin))

	groups, err := st.Groups().ListGroupsForUser(ctx, after.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	tokens, err := st.Tokens().ListTokensForUser(ctx, after.ID)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	phones, err := st.Phones().ListPhonesForUser(ctx, after.ID)
	require.NoError(t, err)
	require.Len(t, phones, 1)
}

func TestSyncFetchFailureLeavesStoreUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	apiErr := &duoapi.APIError{StatusCode: 401, Code: 40103, Message: "Invalid signature in request credentials"}
	dir := &fakeDirectory{
		groups:   []duoapi.Group{{GroupID: "G1"}},
		usersErr: apiErr,
	}
	svc, r := newTestSync(t, dir, SyncOptions{Entities: allEntities()})
	st := r.Store
	seedUser(t, st, "U-local")

	_, err := svc.Run(ctx)
	require.Error(t, err)
	require.ErrorContains(t, err, "fetch users")

	var target *duoapi.APIError
	require.True(t, errors.As(err, &target))
	require.True(t, target.Unauthorized())

	// Groups were fetched but not written, the local user was not removed
	require.Equal(t, []string{"U-local"}, userIDs(t, st))
	groups, err := st.Groups().ListGroups(ctx)
	require.NoError(t, err)
	require.Empty(t, groups)
}

func TestSyncSkipsAssociationsOfFailedUser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	s := newTestStore(t)
	seedGroup(t, s, "G1")

	dir := &fakeDirectory{users: []duoapi.User{
		{UserID: "U1", Tokens: []duoapi.Token{{Serial: "S1"}}, Groups: []duoapi.Group{{GroupID: "G1"}}},
		{UserID: "U2", Tokens: []duoapi.Token{{Serial: "S2"}}, Groups: []duoapi.Group{{GroupID: "G1"}}},
	}}
	svc, err := NewSyncService(dir, &faultyStore{Store: s, failUserID: "U1"}, SyncOptions{
		Entities: domain.NewEntitySet(domain.EntityUsers, domain.EntityTokens, domain.EntityPhones),
	})
	require.NoError(t, err)

	summary, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Users.Created)
	require.Len(t, summary.Users.Failed, 1)
	require.Equal(t, "U1", summary.Users.Failed[0].Key)
	require.Equal(t, 1, summary.Tokens.Created)
	require.Len(t, summary.Failures(), 1)

	_, err = s.Tokens().GetTokenBySerial(ctx, "S1")
	require.Error(t, err)
	_, err = s.Tokens().GetTokenBySerial(ctx, "S2")
	require.NoError(t, err)
}

func TestSyncRecordsUnknownGroup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{users: []duoapi.User{{UserID: "U1", Groups: []duoapi.Group{{GroupID: "G-missing"}}}}}
	svc, _ := newTestSync(t, dir, SyncOptions{Entities: domain.NewEntitySet(domain.EntityUsers)})

	summary, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Users.Created)
	require.Len(t, summary.LinkFailed, 1)
	require.ErrorIs(t, summary.LinkFailed[0].Err, ErrUnknownGroup)
}

func TestSyncPruneLinks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dir := &fakeDirectory{
		groups: []duoapi.Group{{GroupID: "G1"}},
		users: []duoapi.User{{
			UserID: "U1",
			Groups: []duoapi.Group{{GroupID: "G1"}},
			Tokens: []duoapi.Token{{Serial: "S1"}},
			Phones: []duoapi.Phone{{PhoneID: "P1"}},
		}},
	}
	svc, r := newTestSync(t, dir, SyncOptions{Entities: allEntities(), PruneLinks: true})
	st := r.Store

	_, err := svc.Run(ctx)
	require.NoError(t, err)

	// Upstream drops every association of U1
	dir.mu.Lock()
	dir.users[0].Groups = nil
	dir.users[0].Tokens = nil
	dir.users[0].Phones = nil
	dir.mu.Unlock()

	summary, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, summary.Unlinked)
	require.Empty(t, summary.Failures())

	user, err := st.Users().GetUserByUserID(ctx, "U1")
	require.NoError(t, err)
	groups, err := st.Groups().ListGroupsForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, groups)
	tokens, err := st.Tokens().ListTokensForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, tokens)
	phones, err := st.Phones().ListPhonesForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Empty(t, phones)
}

func TestSyncCancelledContext(t *testing.T) {
	t.Parallel()

	dir := &fakeDirectory{users: []duoapi.User{{UserID: "U1"}}}
	svc, r := newTestSync(t, dir, SyncOptions{Entities: allEntities(), Location: time.UTC})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, userIDs(t, r.Store))
}
