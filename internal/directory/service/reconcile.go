package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/aussiebroadwan/duosync/internal/directory/domain"
	"github.com/aussiebroadwan/duosync/internal/directory/store"
	"github.com/aussiebroadwan/duosync/pkg/duoapi"
	"github.com/aussiebroadwan/duosync/pkg/slogx"
)

// Failure is one record that could not be reconciled, linked or removed.
type Failure struct {
	Entity domain.Entity
	Key    string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Entity, f.Key, f.Err)
}

// Result counts the outcome of reconciling one entity type.
type Result struct {
	Created int
	Updated int
	Failed  []Failure
}

func (r *Result) record(created bool) {
	if created {
		r.Created++
	} else {
		r.Updated++
	}
}

func (r *Result) fail(entity domain.Entity, key string, err error) {
	r.Failed = append(r.Failed, Failure{Entity: entity, Key: key, Err: err})
}

// Reconciler upserts remote records by natural key using
// find-or-create-then-overwrite, which keeps local surrogate IDs and the
// association rows pointing at them.
type Reconciler struct {
	Store    store.Store
	Location *time.Location // zone for converted timestamps, UTC when nil
}

// ReconcileGroups upserts every group. A failing record never aborts the batch.
func (r *Reconciler) ReconcileGroups(ctx context.Context, groups []duoapi.Group) Result {
	return reconcileAll(ctx, r.Store, groupMapping, groups)
}

// UpsertUser reconciles a single user and returns the stored row.
func (r *Reconciler) UpsertUser(ctx context.Context, u duoapi.User) (domain.User, bool, error) {
	return reconcileOne(ctx, r.Store, userMapping(r.Location), u)
}

func (r *Reconciler) UpsertToken(ctx context.Context, t duoapi.Token) (domain.Token, bool, error) {
	return reconcileOne(ctx, r.Store, tokenMapping, t)
}

func (r *Reconciler) UpsertPhone(ctx context.Context, p duoapi.Phone) (domain.Phone, bool, error) {
	return reconcileOne(ctx, r.Store, phoneMapping, p)
}

func reconcileAll[R, T any](ctx context.Context, st store.Store, m entityMapping[R, T], records []R) Result {
	logger := slogx.FromContext(ctx)

	var res Result
	for _, rec := range records {
		key := m.key(rec)
		_, created, err := reconcileOne(ctx, st, m, rec)
		if err != nil {
			logger.Error("failed to reconcile record", "entity", m.entity, "key", key, "error", err)
			res.fail(m.entity, key, err)
			continue
		}
		res.record(created)
	}

	logger.Info("reconciled records",
		"entity", m.entity,
		"total", len(records),
		"created", res.Created,
		"updated", res.Updated,
		"failed", len(res.Failed),
	)
	return res
}

// reconcileOne finds or creates the record and, when it already existed,
// overwrites every mapped field. Both steps share one transaction.
func reconcileOne[R, T any](ctx context.Context, st store.Store, m entityMapping[R, T], rec R) (T, bool, error) {
	var (
		zero    T
		stored  T
		created bool
	)

	key := m.key(rec)
	if key == "" {
		return zero, false, ErrMissingNaturalKey
	}
	bag := m.bag(rec)

	err := st.WithTx(ctx, func(tx store.Tx) error {
		repo := m.repo(tx)

		current, isNew, err := repo.GetOrCreate(ctx, bag)
		if err != nil {
			return fmt.Errorf("get or create: %w", err)
		}
		if !isNew {
			applyFields(&current, bag, m.fields)
			if err := repo.Update(ctx, current); err != nil {
				return fmt.Errorf("update: %w", err)
			}
		}

		stored, created = current, isNew
		return nil
	})
	if err != nil {
		return zero, false, err
	}

	if created {
		slogx.FromContext(ctx).Debug("created record", "entity", m.entity, "key", key)
	}
	return stored, created, nil
}

// StaleUserIDs returns local - remote, sorted.
func StaleUserIDs(local, remote []string) []string {
	keep := make(map[string]struct{}, len(remote))
	for _, id := range remote {
		keep[id] = struct{}{}
	}

	seen := make(map[string]struct{}, len(local))
	var stale []string
	for _, id := range local {
		if _, ok := keep[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		stale = append(stale, id)
	}

	sort.Strings(stale)
	return stale
}

// RemoveStaleUsers deletes every local user missing from remoteIDs. Each
// deletion is independent; failures are returned and the rest continue.
func (r *Reconciler) RemoveStaleUsers(ctx context.Context, remoteIDs []string) (int, []Failure) {
	logger := slogx.FromContext(ctx)

	local, err := r.Store.Users().ListUserIDs(ctx)
	if err != nil {
		logger.Error("failed to list local users", "error", err)
		return 0, []Failure{{Entity: domain.EntityUsers, Key: "*", Err: fmt.Errorf("list local users: %w", err)}}
	}

	stale := StaleUserIDs(local, remoteIDs)
	logger.Info("removing stale local users", "count", len(stale), slog.Int("local", len(local)))

	var (
		removed  int
		failures []Failure
	)
	for _, id := range stale {
		if err := r.Store.Users().DeleteUserByUserID(ctx, id); err != nil {
			logger.Error("failed to remove stale user", "user_id", id, "error", err)
			failures = append(failures, Failure{Entity: domain.EntityUsers, Key: id, Err: err})
			continue
		}
		removed++
	}
	return removed, failures
}
