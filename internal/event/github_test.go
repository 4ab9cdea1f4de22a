package event

import (
	"errors"
	"testing"
	"time"
)

func TestNormalize_ReleasePublished(t *testing.T) {
	body := []byte(`{
		"action": "published",
		"release": {
			"tag_name": "v1.2.0",
			"name": "Spring cleanup",
			"body": "Bug fixes and improvements",
			"published_at": "2025-03-01T12:00:00Z"
		},
		"repository": {"full_name": "octo/widgets"}
	}`)

	evt, err := Normalize("release", body)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	rel, ok := evt.(*ReleaseEvent)
	if !ok {
		t.Fatalf("Normalize() returned %T, want *ReleaseEvent", evt)
	}
	if rel.Repository != "octo/widgets" {
		t.Errorf("Repository = %q, want %q", rel.Repository, "octo/widgets")
	}
	if rel.Version != "v1.2.0" {
		t.Errorf("Version = %q, want %q", rel.Version, "v1.2.0")
	}
	if rel.Name != "Spring cleanup" {
		t.Errorf("Name = %q, want %q", rel.Name, "Spring cleanup")
	}
	want := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if !rel.PublishedAt.Equal(want) {
		t.Errorf("PublishedAt = %v, want %v", rel.PublishedAt, want)
	}
}

func TestNormalize_ReleaseIgnoredActions(t *testing.T) {
	for _, action := range []string{"deleted", "edited", "prereleased", "unpublished"} {
		body := []byte(`{"action":"` + action + `","release":{"tag_name":"v1.0.0"},"repository":{"full_name":"octo/widgets"}}`)
		_, err := Normalize("release", body)
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("action %q: error = %v, want ErrUnsupported", action, err)
		}
	}
}

func TestNormalize_PullRequestMerged(t *testing.T) {
	body := []byte(`{
		"action": "closed",
		"number": 42,
		"pull_request": {
			"title": "Fix login flow",
			"body": "Closes a session bug",
			"html_url": "https://github.com/octo/widgets/pull/42",
			"merged_at": "2025-03-02T09:30:00Z",
			"user": {"login": "hubot"},
			"labels": [{"name": "bug"}, {"name": "backend"}]
		},
		"repository": {"full_name": "octo/widgets"}
	}`)

	evt, err := Normalize("pull_request", body)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	pr, ok := evt.(*PullRequestEvent)
	if !ok {
		t.Fatalf("Normalize() returned %T, want *PullRequestEvent", evt)
	}
	if pr.Number != 42 {
		t.Errorf("Number = %d, want 42", pr.Number)
	}
	if pr.Author != "hubot" {
		t.Errorf("Author = %q, want %q", pr.Author, "hubot")
	}
	if len(pr.Labels) != 2 || pr.Labels[0] != "bug" || pr.Labels[1] != "backend" {
		t.Errorf("Labels = %v, want [bug backend]", pr.Labels)
	}
	if pr.MergedAt.IsZero() {
		t.Error("MergedAt should be set for a merged pull request")
	}
}

func TestNormalize_PullRequestClosedWithoutMerge(t *testing.T) {
	body := []byte(`{
		"action": "closed",
		"number": 7,
		"pull_request": {"title": "Abandoned work", "merged_at": null},
		"repository": {"full_name": "octo/widgets"}
	}`)

	_, err := Normalize("pull_request", body)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestNormalize_PullRequestOpenedIgnored(t *testing.T) {
	body := []byte(`{
		"action": "opened",
		"number": 7,
		"pull_request": {"title": "New work"},
		"repository": {"full_name": "octo/widgets"}
	}`)

	_, err := Normalize("pull_request", body)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestNormalize_PushDefaultBranch(t *testing.T) {
	body := []byte(`{
		"ref": "refs/heads/main",
		"repository": {"full_name": "octo/widgets", "default_branch": "main"},
		"commits": [
			{
				"id": "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2",
				"message": "Fix login (#42)",
				"url": "https://github.com/octo/widgets/commit/a1b2c3d",
				"timestamp": "2025-03-02T10:00:00Z",
				"author": {"name": "Hubot", "email": "hubot@example.com"}
			}
		]
	}`)

	evt, err := Normalize("push", body)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	push, ok := evt.(*PushEvent)
	if !ok {
		t.Fatalf("Normalize() returned %T, want *PushEvent", evt)
	}
	if len(push.Commits) != 1 {
		t.Fatalf("len(Commits) = %d, want 1", len(push.Commits))
	}
	c := push.Commits[0]
	if c.Hash != "a1b2c3d4e5f6a1b2c3d4e5f6a1b2c3d4e5f6a1b2" {
		t.Errorf("Hash = %q", c.Hash)
	}
	if c.AuthorName != "Hubot" || c.AuthorEmail != "hubot@example.com" {
		t.Errorf("Author = %q <%q>", c.AuthorName, c.AuthorEmail)
	}
}

func TestNormalize_PushOtherBranchIgnored(t *testing.T) {
	body := []byte(`{
		"ref": "refs/heads/feature/shiny",
		"repository": {"full_name": "octo/widgets", "default_branch": "main"},
		"commits": []
	}`)

	_, err := Normalize("push", body)
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestNormalize_UnsupportedEventType(t *testing.T) {
	_, err := Normalize("workflow_run", []byte(`{}`))
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("error = %v, want ErrUnsupported", err)
	}
}

func TestNormalize_InvalidRepositoryName(t *testing.T) {
	body := []byte(`{"action":"published","release":{"tag_name":"v1.0.0"},"repository":{"full_name":"no-slash"}}`)
	_, err := Normalize("release", body)
	if !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("error = %v, want ErrInvalidPayload", err)
	}
}
