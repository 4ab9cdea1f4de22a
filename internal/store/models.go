package store

import (
	"encoding/json"
	"time"
)

// Release publication statuses.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// VersionUnreleased is the version sentinel for the auto-created draft
// release that collects orphan pull requests and commits.
const VersionUnreleased = "unreleased"

// Release is a versioned snapshot of a repository's changes. Identity is the
// (repository, version) pair.
type Release struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Repository     string    `gorm:"size:255;not null;uniqueIndex:idx_releases_repo_version,priority:1" json:"repository"`
	Version        string    `gorm:"size:255;not null;uniqueIndex:idx_releases_repo_version,priority:2" json:"version"`
	Name           string    `gorm:"size:255" json:"name,omitempty"`
	Description    string    `gorm:"type:text" json:"description,omitempty"`
	Status         string    `gorm:"size:16;not null;default:'draft'" json:"status"`
	ReleasedAt     time.Time `gorm:"not null;index" json:"released_at"`
	GeneratedNotes string    `gorm:"type:text" json:"generated_notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PullRequest is a merged pull request attached to a release. Identity is the
// (release_id, number) pair; a PR without a merge timestamp is never persisted.
type PullRequest struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReleaseID  uint      `gorm:"not null;uniqueIndex:idx_pull_requests_release_number,priority:1" json:"release_id"`
	Number     int       `gorm:"not null;uniqueIndex:idx_pull_requests_release_number,priority:2" json:"number"`
	Title      string    `gorm:"size:512;not null" json:"title"`
	Author     string    `gorm:"size:255" json:"author"`
	Body       string    `gorm:"type:text" json:"body,omitempty"`
	URL        string    `gorm:"size:512" json:"url"`
	MergedAt   time.Time `gorm:"not null" json:"merged_at"`
	Labels     string    `gorm:"type:text" json:"-"` // JSON-encoded string array
	CategoryID *uint     `gorm:"index" json:"category_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SetLabels stores the label set as a JSON string array.
func (p *PullRequest) SetLabels(labels []string) error {
	if len(labels) == 0 {
		p.Labels = "[]"
		return nil
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return err
	}
	p.Labels = string(data)
	return nil
}

// LabelList decodes the stored label set. A malformed value decodes as empty.
func (p *PullRequest) LabelList() []string {
	if p.Labels == "" {
		return nil
	}
	var labels []string
	if err := json.Unmarshal([]byte(p.Labels), &labels); err != nil {
		return nil
	}
	return labels
}

// Commit is a single commit, globally unique by hash. It may back-reference a
// pull request within the same release.
type Commit struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Hash          string    `gorm:"size:64;not null;uniqueIndex" json:"hash"`
	Message       string    `gorm:"type:text" json:"message"`
	AuthorName    string    `gorm:"size:255" json:"author_name"`
	AuthorEmail   string    `gorm:"size:255" json:"author_email,omitempty"`
	CommittedAt   time.Time `json:"committed_at"`
	PullRequestID *uint     `gorm:"index" json:"pull_request_id,omitempty"`
	ReleaseID     *uint     `gorm:"index" json:"release_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Category is a named changelog bucket. The taxonomy is seeded once and never
// mutated afterward; display order drives rendering order.
type Category struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Name         string `gorm:"size:64;not null;uniqueIndex" json:"name"`
	DisplayOrder int    `gorm:"not null;default:0" json:"display_order"`
}
