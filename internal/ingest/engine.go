// Package ingest applies normalized webhook events to the store. Every path
// is an idempotent upsert: redelivering the same webhook never creates
// duplicate rows or double-counts.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/relnotary/relnotary/internal/category"
	"github.com/relnotary/relnotary/internal/event"
	"github.com/relnotary/relnotary/internal/gh"
	"github.com/relnotary/relnotary/internal/logging"
	"github.com/relnotary/relnotary/internal/metrics"
	"github.com/relnotary/relnotary/internal/store"
)

// SourceControl is the subset of the GitHub API the engine needs to backfill
// a newly observed release.
type SourceControl interface {
	ListMergedPullRequests(ctx context.Context, owner, repo string) ([]gh.PullRequest, error)
	ListPullRequestCommits(ctx context.Context, owner, repo string, number int) ([]gh.Commit, error)
}

// Outcome describes what an event application did.
type Outcome string

const (
	OutcomeCreated             Outcome = "created"
	OutcomeUpdated             Outcome = "updated"
	OutcomeAdded               Outcome = "added"
	OutcomeDraftReleaseCreated Outcome = "draft-release-created"
	OutcomeNoRelease           Outcome = "no-release"
	OutcomeCommitsStored       Outcome = "commits-stored"
)

// Result is the outcome of applying one event.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Commits int     `json:"commits,omitempty"`
}

// Engine applies normalized events to the store.
type Engine struct {
	store *store.Store
	src   SourceControl // nil disables backfill
	log   *logging.Logger
}

// New creates an ingestion engine. src may be nil, in which case newly
// created releases start empty and fill up from later webhooks.
func New(s *store.Store, src SourceControl, log *logging.Logger) *Engine {
	return &Engine{
		store: s,
		src:   src,
		log:   log.With("component", "ingest"),
	}
}

// Apply dispatches a normalized event to its handler.
func (e *Engine) Apply(ctx context.Context, evt event.Event) (*Result, error) {
	switch ev := evt.(type) {
	case *event.ReleaseEvent:
		outcome, err := e.ApplyRelease(ctx, ev)
		return &Result{Outcome: outcome}, err
	case *event.PullRequestEvent:
		outcome, err := e.ApplyPullRequest(ctx, ev)
		return &Result{Outcome: outcome}, err
	case *event.PushEvent:
		stored, outcome, err := e.ApplyPush(ctx, ev)
		return &Result{Outcome: outcome, Commits: stored}, err
	default:
		return nil, fmt.Errorf("%w: %T", event.ErrUnsupported, evt)
	}
}

// ApplyRelease upserts a release. A first sighting inserts the release as
// published and backfills its pull requests and commits; a redelivery or a
// later edit updates the existing row and skips backfill.
func (e *Engine) ApplyRelease(ctx context.Context, ev *event.ReleaseEvent) (Outcome, error) {
	existing, err := e.store.GetRelease(ctx, ev.Repository, ev.Version)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", err
	}

	if existing != nil {
		if err := e.updateRelease(ctx, existing.ID, ev); err != nil {
			return "", err
		}
		return OutcomeUpdated, nil
	}

	rel := &store.Release{
		Repository:  ev.Repository,
		Version:     ev.Version,
		Name:        ev.Name,
		Description: ev.Body,
		Status:      store.StatusPublished,
		ReleasedAt:  ev.PublishedAt,
	}
	created, err := e.store.CreateRelease(ctx, rel)
	if err != nil {
		return "", err
	}
	if !created {
		// A concurrent redelivery won the insert race; treat as an update.
		rel, err = e.store.GetRelease(ctx, ev.Repository, ev.Version)
		if err != nil {
			return "", err
		}
		if err := e.updateRelease(ctx, rel.ID, ev); err != nil {
			return "", err
		}
		return OutcomeUpdated, nil
	}

	metrics.ReleaseCreated()
	e.log.Info("release created", "repository", ev.Repository, "version", ev.Version)

	e.backfill(ctx, rel)
	return OutcomeCreated, nil
}

func (e *Engine) updateRelease(ctx context.Context, id uint, ev *event.ReleaseEvent) error {
	updates := map[string]interface{}{
		"description": ev.Body,
		"status":      store.StatusPublished,
	}
	if ev.Name != "" {
		updates["name"] = ev.Name
	}
	return e.store.UpdateRelease(ctx, id, updates)
}

// ApplyPullRequest attaches a merged pull request to the repository's most
// recent release, auto-creating an "unreleased" draft when no release exists.
func (e *Engine) ApplyPullRequest(ctx context.Context, ev *event.PullRequestEvent) (Outcome, error) {
	if ev.MergedAt.IsZero() {
		return "", fmt.Errorf("%w: pull request #%d has no merge timestamp", event.ErrInvalidPayload, ev.Number)
	}

	outcome := OutcomeAdded
	rel, err := e.store.LatestRelease(ctx, ev.Repository)
	if errors.Is(err, store.ErrNotFound) {
		rel, outcome, err = e.draftRelease(ctx, ev.Repository)
	}
	if err != nil {
		return "", err
	}

	if _, err := e.insertPullRequest(ctx, rel.ID, prRecord{
		Number:   ev.Number,
		Title:    ev.Title,
		Author:   ev.Author,
		Body:     ev.Body,
		URL:      ev.URL,
		MergedAt: ev.MergedAt,
		Labels:   ev.Labels,
	}); err != nil {
		return "", err
	}

	return outcome, nil
}

// draftRelease creates (or re-reads, under a lost insert race) the
// "unreleased" draft release for a repository.
func (e *Engine) draftRelease(ctx context.Context, repository string) (*store.Release, Outcome, error) {
	draft := &store.Release{
		Repository: repository,
		Version:    store.VersionUnreleased,
		Status:     store.StatusDraft,
		ReleasedAt: time.Now().UTC(),
	}
	created, err := e.store.CreateRelease(ctx, draft)
	if err != nil {
		return nil, "", err
	}
	if !created {
		existing, err := e.store.GetRelease(ctx, repository, store.VersionUnreleased)
		if err != nil {
			return nil, "", err
		}
		return existing, OutcomeAdded, nil
	}

	metrics.ReleaseCreated()
	e.log.Info("draft release created", "repository", repository)
	return draft, OutcomeDraftReleaseCreated, nil
}

// ApplyPush stores the commits of a default-branch push under the
// repository's most recent release, resolving PR back-references from commit
// messages. Pushes ahead of any known release are acknowledged and dropped.
func (e *Engine) ApplyPush(ctx context.Context, ev *event.PushEvent) (int, Outcome, error) {
	rel, err := e.store.LatestRelease(ctx, ev.Repository)
	if errors.Is(err, store.ErrNotFound) {
		return 0, OutcomeNoRelease, nil
	}
	if err != nil {
		return 0, "", err
	}

	stored := 0
	for _, c := range ev.Commits {
		cm := &store.Commit{
			Hash:        c.Hash,
			Message:     c.Message,
			AuthorName:  c.AuthorName,
			AuthorEmail: c.AuthorEmail,
			CommittedAt: c.Timestamp,
			ReleaseID:   &rel.ID,
		}
		e.linkPullRequest(ctx, rel.ID, cm)

		inserted, err := e.store.InsertCommit(ctx, cm)
		if err != nil {
			return stored, "", err
		}
		if inserted {
			stored++
		}
	}

	metrics.CommitStored(stored)
	return stored, OutcomeCommitsStored, nil
}

// prRecord carries the fields of the shared pull request insert procedure.
type prRecord struct {
	Number   int
	Title    string
	Author   string
	Body     string
	URL      string
	MergedAt time.Time
	Labels   []string
}

// insertPullRequest is the single insert path for pull requests, shared by
// webhook ingestion and backfill. The category is computed from labels once,
// here, and never recomputed.
func (e *Engine) insertPullRequest(ctx context.Context, releaseID uint, rec prRecord) (bool, error) {
	pr := &store.PullRequest{
		ReleaseID: releaseID,
		Number:    rec.Number,
		Title:     rec.Title,
		Author:    rec.Author,
		Body:      rec.Body,
		URL:       rec.URL,
		MergedAt:  rec.MergedAt,
	}
	if err := pr.SetLabels(rec.Labels); err != nil {
		return false, fmt.Errorf("encoding labels: %w", err)
	}

	if name, ok := category.Categorize(rec.Labels); ok {
		if err := e.store.SeedCategories(ctx); err != nil {
			return false, err
		}
		id, err := e.store.CategoryIDByName(ctx, name)
		if err != nil {
			return false, err
		}
		pr.CategoryID = &id
	}

	inserted, err := e.store.InsertPullRequest(ctx, pr)
	if err != nil {
		return false, err
	}
	if inserted {
		metrics.PullRequestStored()
	}
	return inserted, nil
}

// backfill pulls the repository's merged PR history and their commits into a
// newly created release. Upstream failures are logged and skipped per item:
// the release itself is never rolled back, and a later redelivery completes
// whatever is missing.
func (e *Engine) backfill(ctx context.Context, rel *store.Release) {
	if e.src == nil {
		return
	}

	owner, repo, ok := splitRepo(rel.Repository)
	if !ok {
		e.log.Warn("skipping backfill for malformed repository name", "repository", rel.Repository)
		return
	}

	prs, err := e.src.ListMergedPullRequests(ctx, owner, repo)
	if err != nil {
		e.log.Warn("backfill: listing merged pull requests failed", "repository", rel.Repository, "error", err)
		return
	}

	for _, pr := range prs {
		if _, err := e.insertPullRequest(ctx, rel.ID, prRecord{
			Number:   pr.Number,
			Title:    pr.Title,
			Author:   pr.Author,
			Body:     pr.Body,
			URL:      pr.URL,
			MergedAt: pr.MergedAt,
			Labels:   pr.Labels,
		}); err != nil {
			e.log.Warn("backfill: storing pull request failed", "number", pr.Number, "error", err)
			continue
		}

		commits, err := e.src.ListPullRequestCommits(ctx, owner, repo, pr.Number)
		if err != nil {
			e.log.Warn("backfill: listing commits failed", "number", pr.Number, "error", err)
			continue
		}

		prRow, err := e.store.GetPullRequestByNumber(ctx, rel.ID, pr.Number)
		if err != nil {
			e.log.Warn("backfill: re-reading pull request failed", "number", pr.Number, "error", err)
			continue
		}

		stored := 0
		for _, c := range commits {
			cm := &store.Commit{
				Hash:          c.SHA,
				Message:       c.Message,
				AuthorName:    c.AuthorName,
				AuthorEmail:   c.AuthorEmail,
				CommittedAt:   c.AuthoredAt,
				PullRequestID: &prRow.ID,
				ReleaseID:     &rel.ID,
			}
			inserted, err := e.store.InsertCommit(ctx, cm)
			if err != nil {
				e.log.Warn("backfill: storing commit failed", "hash", c.SHA, "error", err)
				continue
			}
			if inserted {
				stored++
			}
		}
		metrics.CommitStored(stored)
	}
}

// linkPullRequest resolves an optional "#<number>" back-reference in the
// commit message against PRs of the same release. A reference to an unknown
// PR number stores a null link, never an error.
func (e *Engine) linkPullRequest(ctx context.Context, releaseID uint, cm *store.Commit) {
	n := parsePRNumber(cm.Message)
	if n == 0 {
		return
	}
	pr, err := e.store.GetPullRequestByNumber(ctx, releaseID, n)
	if err != nil {
		return
	}
	cm.PullRequestID = &pr.ID
}

var prNumberPattern = regexp.MustCompile(`#(\d+)`)

func parsePRNumber(text string) int {
	match := prNumberPattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}

func splitRepo(fullName string) (owner, repo string, ok bool) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
