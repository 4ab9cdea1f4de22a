// Package changelog assembles release notes from stored pull requests and
// commits, optionally rewritten by a generative backend, and renders them as
// JSON, markdown, or HTML.
package changelog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relnotary/relnotary/internal/category"
	"github.com/relnotary/relnotary/internal/store"
)

// Format selects the output encoding of an assembled changelog.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat validates a caller-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatMarkdown, FormatHTML:
		return Format(s), nil
	case "":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown changelog format %q", s)
}

// Style selects the tone of generated prose.
type Style string

const (
	StyleTechnical    Style = "technical"
	StyleUserFriendly Style = "user-friendly"
	StyleDetailed     Style = "detailed"
	StyleConcise      Style = "concise"
)

// ParseStyle validates a caller-supplied style string.
func ParseStyle(s string) (Style, error) {
	switch Style(s) {
	case StyleTechnical, StyleUserFriendly, StyleDetailed, StyleConcise:
		return Style(s), nil
	case "":
		return StyleTechnical, nil
	}
	return "", fmt.Errorf("unknown changelog style %q", s)
}

// Item is a single pull request line within a section.
type Item struct {
	Title  string `json:"title"`
	Number int    `json:"number"`
	Author string `json:"author"`
	URL    string `json:"url,omitempty"`
}

// Section is one category bucket with its pull requests.
type Section struct {
	Title string `json:"title"`
	Items []Item `json:"items"`
}

// CommitLine is one commit entry in the optional trailing commit list.
type CommitLine struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
	Author  string `json:"author"`
}

// ReleaseNotes is the canonical structured representation of a changelog.
// Renderers and the generative backend both work in terms of this shape.
type ReleaseNotes struct {
	Repository  string       `json:"repository"`
	Version     string       `json:"version"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	ReleasedAt  time.Time    `json:"released_at"`
	Sections    []Section    `json:"sections"`
	Commits     []CommitLine `json:"commits,omitempty"`
	Disclaimer  string       `json:"disclaimer,omitempty"`
}

// EncodeJSON renders the notes as indented JSON.
func (n *ReleaseNotes) EncodeJSON() (string, error) {
	data, err := json.MarshalIndent(n, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding release notes: %w", err)
	}
	return string(data), nil
}

// DecodeNotes parses a JSON document into ReleaseNotes. It rejects documents
// with no sections so that an empty or unrelated JSON object from the
// generative backend does not pass for a changelog.
func DecodeNotes(data []byte) (*ReleaseNotes, error) {
	var n ReleaseNotes
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decoding release notes: %w", err)
	}
	if len(n.Sections) == 0 {
		return nil, fmt.Errorf("decoding release notes: no sections")
	}
	return &n, nil
}

// BuildNotes groups stored pull requests into the fixed category taxonomy and
// produces the structured notes for a release. Pull requests whose category is
// unset or dangling land in the Other Changes bucket, which renders last and
// only when non-empty.
func BuildNotes(rel *store.Release, prs []store.PullRequest, commits []store.Commit, cats []store.Category) *ReleaseNotes {
	nameByID := make(map[uint]string, len(cats))
	for _, c := range cats {
		nameByID[c.ID] = c.Name
	}

	buckets := make(map[string][]Item)
	for _, pr := range prs {
		name := category.Other
		if pr.CategoryID != nil {
			if n, ok := nameByID[*pr.CategoryID]; ok {
				name = n
			}
		}
		buckets[name] = append(buckets[name], Item{
			Title:  pr.Title,
			Number: pr.Number,
			Author: pr.Author,
			URL:    pr.URL,
		})
	}

	notes := &ReleaseNotes{
		Repository:  rel.Repository,
		Version:     rel.Version,
		Name:        rel.Name,
		Description: rel.Description,
		ReleasedAt:  rel.ReleasedAt,
	}
	for _, name := range append(append([]string{}, category.Names...), category.Other) {
		items := buckets[name]
		if len(items) == 0 {
			continue
		}
		notes.Sections = append(notes.Sections, Section{Title: name, Items: items})
	}
	for _, c := range commits {
		notes.Commits = append(notes.Commits, CommitLine{
			Hash:    shortHash(c.Hash),
			Message: firstLine(c.Message),
			Author:  c.AuthorName,
		})
	}
	return notes
}

func shortHash(hash string) string {
	if len(hash) > 7 {
		return hash[:7]
	}
	return hash
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
