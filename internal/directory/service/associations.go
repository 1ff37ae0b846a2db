package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/duosync/internal/directory/domain"
	"github.com/aussiebroadwan/duosync/internal/directory/store"
	"github.com/aussiebroadwan/duosync/pkg/duoapi"
	"github.com/aussiebroadwan/duosync/pkg/slogx"
)

// LinkResult counts association changes for one relation. Linked counts
// only rows actually written, so an unchanged re-run reports zero.
type LinkResult struct {
	Linked   int
	Unlinked int
	Failed   []Failure
}

func (l *LinkResult) add(other LinkResult) {
	l.Linked += other.Linked
	l.Unlinked += other.Unlinked
	l.Failed = append(l.Failed, other.Failed...)
}

// AssociationBuilder persists the user links implied by the nesting of a
// remote user record.
type AssociationBuilder struct {
	Store      store.Store
	Reconciler *Reconciler

	// PruneLinks removes links to records no longer nested under the user.
	PruneLinks bool
}

// LinkGroups links user to every nested group that already exists locally.
// Unknown groups are recorded as ErrUnknownGroup and skipped.
func (b *AssociationBuilder) LinkGroups(ctx context.Context, user domain.User, groups []duoapi.Group) LinkResult {
	logger := slogx.FromContext(ctx)

	var res LinkResult
	keep := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		keep[g.GroupID] = struct{}{}

		local, err := b.Store.Groups().GetGroupByGroupID(ctx, g.GroupID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				err = fmt.Errorf("%w: %s", ErrUnknownGroup, g.GroupID)
			}
			logger.Warn("skipping group link", "user_id", user.UserID, "group_id", g.GroupID, "error", err)
			res.Failed = append(res.Failed, Failure{Entity: domain.EntityGroups, Key: g.GroupID, Err: err})
			continue
		}

		added, err := b.Store.Groups().AddUser(ctx, local.ID, user.ID)
		if err != nil {
			logger.Error("failed to link group", "user_id", user.UserID, "group_id", g.GroupID, "error", err)
			res.Failed = append(res.Failed, Failure{Entity: domain.EntityGroups, Key: g.GroupID, Err: err})
			continue
		}
		if added {
			res.Linked++
		}
	}

	if b.PruneLinks {
		current, err := b.Store.Groups().ListGroupsForUser(ctx, user.ID)
		res.add(prune(ctx, domain.EntityGroups, user, current, err, keep,
			func(g domain.Group) (string, string) { return g.GroupID, g.ID },
			b.Store.Groups().RemoveUser,
		))
	}
	return res
}

// LinkTokens upserts every nested token and links it to user.
func (b *AssociationBuilder) LinkTokens(ctx context.Context, user domain.User, tokens []duoapi.Token) (Result, LinkResult) {
	var (
		rec  Result
		link LinkResult
	)
	keep := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		keep[t.Serial] = struct{}{}

		local, created, err := b.Reconciler.UpsertToken(ctx, t)
		if err != nil {
			slogx.FromContext(ctx).Error("failed to reconcile token", "user_id", user.UserID, "serial", t.Serial, "error", err)
			rec.fail(domain.EntityTokens, t.Serial, err)
			continue
		}
		rec.record(created)

		added, err := b.Store.Tokens().AddUser(ctx, local.ID, user.ID)
		if err != nil {
			link.Failed = append(link.Failed, Failure{Entity: domain.EntityTokens, Key: t.Serial, Err: err})
			continue
		}
		if added {
			link.Linked++
		}
	}

	if b.PruneLinks {
		current, err := b.Store.Tokens().ListTokensForUser(ctx, user.ID)
		link.add(prune(ctx, domain.EntityTokens, user, current, err, keep,
			func(t domain.Token) (string, string) { return t.Serial, t.ID },
			b.Store.Tokens().RemoveUser,
		))
	}
	return rec, link
}

// LinkPhones upserts every nested phone and links it to user.
func (b *AssociationBuilder) LinkPhones(ctx context.Context, user domain.User, phones []duoapi.Phone) (Result, LinkResult) {
	var (
		rec  Result
		link LinkResult
	)
	keep := make(map[string]struct{}, len(phones))
	for _, p := range phones {
		keep[p.PhoneID] = struct{}{}

		local, created, err := b.Reconciler.UpsertPhone(ctx, p)
		if err != nil {
			slogx.FromContext(ctx).Error("failed to reconcile phone", "user_id", user.UserID, "phone_id", p.PhoneID, "error", err)
			rec.fail(domain.EntityPhones, p.PhoneID, err)
			continue
		}
		rec.record(created)

		added, err := b.Store.Phones().AddUser(ctx, local.ID, user.ID)
		if err != nil {
			link.Failed = append(link.Failed, Failure{Entity: domain.EntityPhones, Key: p.PhoneID, Err: err})
			continue
		}
		if added {
			link.Linked++
		}
	}

	if b.PruneLinks {
		current, err := b.Store.Phones().ListPhonesForUser(ctx, user.ID)
		link.add(prune(ctx, domain.EntityPhones, user, current, err, keep,
			func(p domain.Phone) (string, string) { return p.PhoneID, p.ID },
			b.Store.Phones().RemoveUser,
		))
	}
	return rec, link
}

// prune unlinks every current record whose natural key is not in keep.
// ids returns the natural key and the surrogate ID of a record.
func prune[T any](
	ctx context.Context,
	entity domain.Entity,
	user domain.User,
	current []T,
	listErr error,
	keep map[string]struct{},
	ids func(T) (string, string),
	remove func(ctx context.Context, id, userID string) error,
) LinkResult {
	var res LinkResult
	if listErr != nil {
		res.Failed = append(res.Failed, Failure{Entity: entity, Key: "*", Err: fmt.Errorf("list links: %w", listErr)})
		return res
	}

	for _, rec := range current {
		key, id := ids(rec)
		if _, ok := keep[key]; ok {
			continue
		}
		if err := remove(ctx, id, user.ID); err != nil {
			res.Failed = append(res.Failed, Failure{Entity: entity, Key: key, Err: fmt.Errorf("unlink: %w", err)})
			continue
		}
		slogx.FromContext(ctx).Debug("pruned link", "entity", entity, "user_id", user.UserID, "key", key)
		res.Unlinked++
	}
	return res
}
