package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/relnotary/relnotary/internal/changelog"
	"github.com/relnotary/relnotary/internal/category"
	"github.com/relnotary/relnotary/internal/store"
)

const mergedPRPayload = `{
	"action": "closed",
	"number": 42,
	"repository": {"full_name": "octo/widgets"},
	"pull_request": {
		"title": "Fix login",
		"merged_at": "2025-03-02T09:30:00Z",
		"user": {"login": "hubot"},
		"html_url": "https://github.com/octo/widgets/pull/42",
		"labels": [{"name": "bug"}]
	}
}`

// TestServer_ReleaseLifecycle walks the full flow: a published release event,
// a merged pull request event, and a markdown changelog request.
func TestServer_ReleaseLifecycle(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	rec := postWebhook(t, srv, "release", releasePayload)
	if rec.Code != http.StatusOK {
		t.Fatalf("release webhook status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rel, err := s.GetRelease(ctx, "octo/widgets", "v1.0.0")
	if err != nil {
		t.Fatalf("release not stored: %v", err)
	}
	if rel.Status != store.StatusPublished {
		t.Fatalf("release status = %q, want %q", rel.Status, store.StatusPublished)
	}

	rec = postWebhook(t, srv, "pull_request", mergedPRPayload)
	if rec.Code != http.StatusOK {
		t.Fatalf("pull_request webhook status = %d, body = %s", rec.Code, rec.Body.String())
	}

	prs, err := s.ListPullRequests(ctx, rel.ID)
	if err != nil {
		t.Fatalf("listing pull requests: %v", err)
	}
	if len(prs) != 1 || prs[0].Number != 42 {
		t.Fatalf("stored PRs = %+v, want just #42", prs)
	}
	if prs[0].CategoryID == nil {
		t.Fatal("PR #42 has no category, want Bug Fixes")
	}
	name, err := categoryName(ctx, s, *prs[0].CategoryID)
	if err != nil {
		t.Fatalf("resolving category: %v", err)
	}
	if name != category.BugFixes {
		t.Errorf("PR category = %q, want %q", name, category.BugFixes)
	}

	body := `{"format":"markdown","include_commits":false}`
	httpReq := httptest.NewRequest(http.MethodPost, "/api/releases/1/changelog", strings.NewReader(body))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httpReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("changelog status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var out changelog.Rendered
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("parsing changelog response: %v", err)
	}
	if !strings.Contains(out.Output, "## Bug Fixes") {
		t.Errorf("changelog missing Bug Fixes section:\n%s", out.Output)
	}
	if !strings.Contains(out.Output, "#42") {
		t.Errorf("changelog missing PR reference #42:\n%s", out.Output)
	}

	// The rendered output is persisted on the release.
	rel, err = s.GetReleaseByID(ctx, rel.ID)
	if err != nil {
		t.Fatalf("re-fetching release: %v", err)
	}
	if rel.GeneratedNotes != out.Output {
		t.Error("generated notes not persisted on the release")
	}
}

// TestServer_RedeliveredWebhooksAreIdempotent replays both webhook deliveries
// and verifies nothing is double-stored.
func TestServer_RedeliveredWebhooksAreIdempotent(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		postWebhook(t, srv, "release", releasePayload)
		postWebhook(t, srv, "pull_request", mergedPRPayload)
	}

	rels, err := s.ListReleases(ctx, "octo/widgets")
	if err != nil {
		t.Fatalf("listing releases: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("got %d releases, want 1", len(rels))
	}

	prs, err := s.ListPullRequests(ctx, rels[0].ID)
	if err != nil {
		t.Fatalf("listing pull requests: %v", err)
	}
	if len(prs) != 1 {
		t.Errorf("got %d pull requests, want 1", len(prs))
	}
}

func categoryName(ctx context.Context, s *store.Store, id uint) (string, error) {
	cats, err := s.ListCategories(ctx)
	if err != nil {
		return "", err
	}
	for _, c := range cats {
		if c.ID == id {
			return c.Name, nil
		}
	}
	return "", store.ErrNotFound
}
