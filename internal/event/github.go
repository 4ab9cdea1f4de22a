package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// releasePayload is the subset of a GitHub release webhook body we consume.
type releasePayload struct {
	Action  string `json:"action"`
	Release struct {
		TagName     string     `json:"tag_name"`
		Name        string     `json:"name"`
		Body        string     `json:"body"`
		CreatedAt   *time.Time `json:"created_at"`
		PublishedAt *time.Time `json:"published_at"`
	} `json:"release"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// pullRequestPayload is the subset of a GitHub pull_request webhook body we consume.
type pullRequestPayload struct {
	Action      string `json:"action"`
	Number      int    `json:"number"`
	PullRequest struct {
		Title    string     `json:"title"`
		Body     string     `json:"body"`
		HTMLURL  string     `json:"html_url"`
		MergedAt *time.Time `json:"merged_at"`
		User     struct {
			Login string `json:"login"`
		} `json:"user"`
		Labels []struct {
			Name string `json:"name"`
		} `json:"labels"`
	} `json:"pull_request"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// pushPayload is the subset of a GitHub push webhook body we consume.
type pushPayload struct {
	Ref     string `json:"ref"`
	Commits []struct {
		ID        string    `json:"id"`
		Message   string    `json:"message"`
		URL       string    `json:"url"`
		Timestamp time.Time `json:"timestamp"`
		Author    struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"author"`
	} `json:"commits"`
	Repository struct {
		FullName      string `json:"full_name"`
		DefaultBranch string `json:"default_branch"`
	} `json:"repository"`
}

// Normalize converts a raw GitHub webhook body into a typed event.
// It returns ErrUnsupported for event types, actions, or branches the
// pipeline ignores, and ErrInvalidPayload for bodies missing required fields.
func Normalize(eventType string, body []byte) (Event, error) {
	switch eventType {
	case "release":
		return normalizeRelease(body)
	case "pull_request":
		return normalizePullRequest(body)
	case "push":
		return normalizePush(body)
	default:
		return nil, fmt.Errorf("%w: event type %q", ErrUnsupported, eventType)
	}
}

func normalizeRelease(body []byte) (Event, error) {
	var payload releasePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parsing release payload: %v", ErrInvalidPayload, err)
	}

	if payload.Action != "published" && payload.Action != "created" {
		return nil, fmt.Errorf("%w: release action %q", ErrUnsupported, payload.Action)
	}

	if err := validRepoName(payload.Repository.FullName); err != nil {
		return nil, err
	}
	if payload.Release.TagName == "" {
		return nil, fmt.Errorf("%w: release without tag_name", ErrInvalidPayload)
	}

	publishedAt := time.Now().UTC()
	if payload.Release.PublishedAt != nil {
		publishedAt = *payload.Release.PublishedAt
	} else if payload.Release.CreatedAt != nil {
		publishedAt = *payload.Release.CreatedAt
	}

	return &ReleaseEvent{
		Repository:  payload.Repository.FullName,
		Version:     payload.Release.TagName,
		Name:        payload.Release.Name,
		Body:        payload.Release.Body,
		PublishedAt: publishedAt,
	}, nil
}

func normalizePullRequest(body []byte) (Event, error) {
	var payload pullRequestPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parsing pull_request payload: %v", ErrInvalidPayload, err)
	}

	// Only merged PRs matter; a close without merge never reaches the store.
	if payload.Action != "closed" || payload.PullRequest.MergedAt == nil {
		return nil, fmt.Errorf("%w: pull_request action %q", ErrUnsupported, payload.Action)
	}

	if err := validRepoName(payload.Repository.FullName); err != nil {
		return nil, err
	}
	if payload.Number == 0 {
		return nil, fmt.Errorf("%w: pull_request without number", ErrInvalidPayload)
	}

	labels := make([]string, len(payload.PullRequest.Labels))
	for i, l := range payload.PullRequest.Labels {
		labels[i] = l.Name
	}

	return &PullRequestEvent{
		Repository: payload.Repository.FullName,
		Number:     payload.Number,
		Title:      payload.PullRequest.Title,
		Author:     payload.PullRequest.User.Login,
		Body:       payload.PullRequest.Body,
		URL:        payload.PullRequest.HTMLURL,
		MergedAt:   *payload.PullRequest.MergedAt,
		Labels:     labels,
	}, nil
}

func normalizePush(body []byte) (Event, error) {
	var payload pushPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parsing push payload: %v", ErrInvalidPayload, err)
	}

	if err := validRepoName(payload.Repository.FullName); err != nil {
		return nil, err
	}

	defaultRef := "refs/heads/" + payload.Repository.DefaultBranch
	if payload.Repository.DefaultBranch == "" || payload.Ref != defaultRef {
		return nil, fmt.Errorf("%w: push to %q", ErrUnsupported, payload.Ref)
	}

	commits := make([]PushCommit, len(payload.Commits))
	for i, c := range payload.Commits {
		commits[i] = PushCommit{
			Hash:        c.ID,
			Message:     c.Message,
			AuthorName:  c.Author.Name,
			AuthorEmail: c.Author.Email,
			URL:         c.URL,
			Timestamp:   c.Timestamp,
		}
	}

	return &PushEvent{
		Repository: payload.Repository.FullName,
		Ref:        payload.Ref,
		Commits:    commits,
	}, nil
}

func validRepoName(fullName string) error {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%w: invalid repository full_name %q", ErrInvalidPayload, fullName)
	}
	return nil
}
