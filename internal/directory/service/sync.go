package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/duosync/internal/directory/domain"
	"github.com/aussiebroadwan/duosync/internal/directory/store"
	"github.com/aussiebroadwan/duosync/pkg/duoapi"
	"github.com/aussiebroadwan/duosync/pkg/idx"
	"github.com/aussiebroadwan/duosync/pkg/slogx"
)

// Directory is the remote source of truth. *duoapi.Client implements it.
type Directory interface {
	GetUsers(ctx context.Context) ([]duoapi.User, error)
	GetGroups(ctx context.Context) ([]duoapi.Group, error)
}

// SyncOptions selects what a run touches.
type SyncOptions struct {
	Entities   domain.EntitySet
	Location   *time.Location
	PruneLinks bool
}

func (o SyncOptions) Validate() error {
	if len(o.Entities) == 0 {
		return errors.New("no entities selected")
	}
	for _, e := range []domain.Entity{domain.EntityTokens, domain.EntityPhones} {
		if o.Entities.Has(e) && !o.Entities.Has(domain.EntityUsers) {
			return fmt.Errorf("%s are nested under users and require %q", e, domain.EntityUsers)
		}
	}
	return nil
}

// Summary is the outcome of one run.
type Summary struct {
	RunID idx.ID

	Users  Result
	Groups Result
	Tokens Result
	Phones Result

	Removed      int
	RemoveFailed []Failure

	Linked     int
	Unlinked   int
	LinkFailed []Failure

	Duration time.Duration
}

// Failures returns every recorded per-record failure of the run.
func (s Summary) Failures() []Failure {
	var out []Failure
	for _, r := range []Result{s.Groups, s.Users, s.Tokens, s.Phones} {
		out = append(out, r.Failed...)
	}
	out = append(out, s.RemoveFailed...)
	return append(out, s.LinkFailed...)
}

func (s *Summary) addLinks(l LinkResult) {
	s.Linked += l.Linked
	s.Unlinked += l.Unlinked
	s.LinkFailed = append(s.LinkFailed, l.Failed...)
}

func mergeResult(dst *Result, src Result) {
	dst.Created += src.Created
	dst.Updated += src.Updated
	dst.Failed = append(dst.Failed, src.Failed...)
}

// SyncService runs the full-refresh reconciliation of the local store
// against a Directory.
type SyncService struct {
	directory  Directory
	reconciler *Reconciler
	links      *AssociationBuilder
	opts       SyncOptions
}

func NewSyncService(dir Directory, st store.Store, opts SyncOptions) (*SyncService, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	rec := &Reconciler{Store: st, Location: opts.Location}
	return &SyncService{
		directory:  dir,
		reconciler: rec,
		links:      &AssociationBuilder{Store: st, Reconciler: rec, PruneLinks: opts.PruneLinks},
		opts:       opts,
	}, nil
}

// Run executes one sync. Only fetch failures and cancellation abort the run;
// per-record failures are collected in the Summary.
func (s *SyncService) Run(ctx context.Context) (Summary, error) {
	started := time.Now()
	ctx, runID := slogx.WithRunID(ctx)
	logger := slogx.FromContext(ctx)

	summary := Summary{RunID: runID}
	logger.Info("sync started", "entities", s.opts.Entities.String(), "prune_links", s.opts.PruneLinks)

	// Everything is fetched before the store is touched.
	var (
		users  []duoapi.User
		groups []duoapi.Group
		err    error
	)
	if s.opts.Entities.Has(domain.EntityGroups) {
		if groups, err = s.directory.GetGroups(ctx); err != nil {
			return summary, fmt.Errorf("fetch groups: %w", err)
		}
		logger.Info("fetched remote groups", "count", len(groups))
	}
	if s.opts.Entities.Has(domain.EntityUsers) {
		if users, err = s.directory.GetUsers(ctx); err != nil {
			return summary, fmt.Errorf("fetch users: %w", err)
		}
		logger.Info("fetched remote users", "count", len(users))
	}

	if s.opts.Entities.Has(domain.EntityGroups) {
		summary.Groups = s.reconciler.ReconcileGroups(ctx, groups)
	}

	if s.opts.Entities.Has(domain.EntityUsers) {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		remote := make([]string, 0, len(users))
		for _, u := range users {
			if u.UserID != "" {
				remote = append(remote, u.UserID)
			}
		}
		summary.Removed, summary.RemoveFailed = s.reconciler.RemoveStaleUsers(ctx, remote)

		for _, u := range users {
			if err := ctx.Err(); err != nil {
				return summary, err
			}
			s.syncUser(ctx, u, &summary)
		}
	}

	summary.Duration = time.Since(started)
	logger.Info("sync finished",
		"duration", summary.Duration,
		"users_created", summary.Users.Created,
		"users_updated", summary.Users.Updated,
		"removed", summary.Removed,
		"linked", summary.Linked,
		"unlinked", summary.Unlinked,
		"failures", len(summary.Failures()),
	)
	return summary, nil
}

// syncUser reconciles one user row and then its nested records. Associations
// are skipped when the user itself could not be stored.
func (s *SyncService) syncUser(ctx context.Context, u duoapi.User, summary *Summary) {
	local, created, err := s.reconciler.UpsertUser(ctx, u)
	if err != nil {
		slogx.FromContext(ctx).Error("failed to reconcile user", "user_id", u.UserID, "error", err)
		summary.Users.fail(domain.EntityUsers, u.UserID, err)
		return
	}
	summary.Users.record(created)

	pruning := s.opts.PruneLinks

	if s.opts.Entities.Has(domain.EntityTokens) && (len(u.Tokens) > 0 || pruning) {
		rec, links := s.links.LinkTokens(ctx, local, u.Tokens)
		mergeResult(&summary.Tokens, rec)
		summary.addLinks(links)
	}

	if len(u.Groups) > 0 || pruning {
		summary.addLinks(s.links.LinkGroups(ctx, local, u.Groups))
	}

	// Phones are attempted even for an empty list.
	if s.opts.Entities.Has(domain.EntityPhones) {
		rec, links := s.links.LinkPhones(ctx, local, u.Phones)
		mergeResult(&summary.Phones, rec)
		summary.addLinks(links)
	}
}
