package event

import (
	"errors"
	"time"
)

// ErrUnsupported indicates an event type or action the pipeline does not
// handle. Callers should acknowledge and ignore: the delivering transport
// retries any non-2xx response indefinitely.
var ErrUnsupported = errors.New("unsupported event")

// ErrInvalidPayload indicates a payload that parsed as JSON but is missing
// required fields.
var ErrInvalidPayload = errors.New("invalid payload")

// Kind identifies the normalized event type.
type Kind string

const (
	KindRelease     Kind = "release"
	KindPullRequest Kind = "pull_request"
	KindPush        Kind = "push"
)

// Event is a normalized webhook event.
type Event interface {
	// EventKind returns the normalized event type.
	EventKind() Kind

	// Repo returns the repository full name (owner/name).
	Repo() string
}

// ReleaseEvent is a published or created GitHub release.
type ReleaseEvent struct {
	Repository  string
	Version     string // tag name
	Name        string
	Body        string
	PublishedAt time.Time
}

func (e *ReleaseEvent) EventKind() Kind { return KindRelease }
func (e *ReleaseEvent) Repo() string    { return e.Repository }

// PullRequestEvent is a pull request that was closed by merging.
type PullRequestEvent struct {
	Repository string
	Number     int
	Title      string
	Author     string
	Body       string
	URL        string
	MergedAt   time.Time
	Labels     []string
}

func (e *PullRequestEvent) EventKind() Kind { return KindPullRequest }
func (e *PullRequestEvent) Repo() string    { return e.Repository }

// PushEvent is a push to the repository default branch.
type PushEvent struct {
	Repository string
	Ref        string
	Commits    []PushCommit
}

func (e *PushEvent) EventKind() Kind { return KindPush }
func (e *PushEvent) Repo() string    { return e.Repository }

// PushCommit is a single commit carried by a push event.
type PushCommit struct {
	Hash        string
	Message     string
	AuthorName  string
	AuthorEmail string
	URL         string
	Timestamp   time.Time
}
