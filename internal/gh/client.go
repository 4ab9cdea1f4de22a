// Package gh is the GitHub API client used to backfill pull requests and
// commits for newly observed releases.
package gh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v60/github"
)

// ErrMissingToken indicates the client was constructed without credentials.
var ErrMissingToken = errors.New("github token is required")

// Repository is repository metadata.
type Repository struct {
	FullName      string
	DefaultBranch string
	Description   string
	HTMLURL       string
}

// PullRequest is a merged pull request as reported by the API.
type PullRequest struct {
	Number   int
	Title    string
	Author   string
	Body     string
	URL      string
	MergedAt time.Time
	Labels   []string
}

// Commit is a single commit as reported by the API.
type Commit struct {
	SHA         string
	Message     string
	AuthorName  string
	AuthorEmail string
	AuthoredAt  time.Time
}

// Client wraps the GitHub API for backfill operations.
type Client struct {
	client *github.Client
	token  string
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.client.BaseURL, _ = c.client.BaseURL.Parse(url + "/")
	}
}

// New creates a GitHub client. A missing token is an error: unauthenticated
// backfill would silently degrade into rate-limited partial data.
func New(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	httpClient := &http.Client{
		Transport: &tokenTransport{token: token},
		Timeout:   30 * time.Second,
	}

	c := &Client{
		client: github.NewClient(httpClient),
		token:  token,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// tokenTransport adds the authorization header to requests.
type tokenTransport struct {
	token string
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.token)
	return http.DefaultTransport.RoundTrip(req)
}

// GetRepository fetches repository metadata.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*Repository, error) {
	r, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("fetching repository: %w", err)
	}

	return &Repository{
		FullName:      r.GetFullName(),
		DefaultBranch: r.GetDefaultBranch(),
		Description:   r.GetDescription(),
		HTMLURL:       r.GetHTMLURL(),
	}, nil
}

// GetReleaseByTag fetches a published release by tag name.
func (c *Client) GetReleaseByTag(ctx context.Context, owner, repo, tag string) (version, name, body string, publishedAt time.Time, err error) {
	rel, _, err := c.client.Repositories.GetReleaseByTag(ctx, owner, repo, tag)
	if err != nil {
		return "", "", "", time.Time{}, fmt.Errorf("fetching release by tag: %w", err)
	}
	return rel.GetTagName(), rel.GetName(), rel.GetBody(), rel.GetPublishedAt().Time, nil
}

// ListMergedPullRequests lists merged pull requests for a repository,
// paginated and sorted by update time descending. Closed-but-unmerged PRs are
// filtered out.
func (c *Client) ListMergedPullRequests(ctx context.Context, owner, repo string) ([]PullRequest, error) {
	opts := &github.PullRequestListOptions{
		State:       "closed",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var out []PullRequest
	for {
		prs, resp, err := c.client.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests: %w", err)
		}

		for _, pr := range prs {
			if pr.MergedAt == nil {
				continue
			}
			labels := make([]string, len(pr.Labels))
			for i, l := range pr.Labels {
				labels[i] = l.GetName()
			}
			out = append(out, PullRequest{
				Number:   pr.GetNumber(),
				Title:    pr.GetTitle(),
				Author:   pr.GetUser().GetLogin(),
				Body:     pr.GetBody(),
				URL:      pr.GetHTMLURL(),
				MergedAt: pr.GetMergedAt().Time,
				Labels:   labels,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

// ListPullRequestCommits lists the commits belonging to a pull request.
func (c *Client) ListPullRequestCommits(ctx context.Context, owner, repo string, number int) ([]Commit, error) {
	opts := &github.ListOptions{PerPage: 100}

	var out []Commit
	for {
		commits, resp, err := c.client.PullRequests.ListCommits(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing commits for pull request #%d: %w", number, err)
		}

		for _, rc := range commits {
			out = append(out, repositoryCommit(rc))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return out, nil
}

// CompareCommits lists the commits between two SHAs (base exclusive).
func (c *Client) CompareCommits(ctx context.Context, owner, repo, base, head string) ([]Commit, error) {
	cmp, _, err := c.client.Repositories.CompareCommits(ctx, owner, repo, base, head, &github.ListOptions{PerPage: 100})
	if err != nil {
		return nil, fmt.Errorf("comparing %s...%s: %w", base, head, err)
	}

	out := make([]Commit, len(cmp.Commits))
	for i, rc := range cmp.Commits {
		out[i] = repositoryCommit(rc)
	}
	return out, nil
}

func repositoryCommit(rc *github.RepositoryCommit) Commit {
	return Commit{
		SHA:         rc.GetSHA(),
		Message:     rc.GetCommit().GetMessage(),
		AuthorName:  rc.GetCommit().GetAuthor().GetName(),
		AuthorEmail: rc.GetCommit().GetAuthor().GetEmail(),
		AuthoredAt:  rc.GetCommit().GetAuthor().GetDate().Time,
	}
}
