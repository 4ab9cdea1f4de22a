package changelog

import (
	"context"
	"time"

	"github.com/relnotary/relnotary/internal/llm"
	"github.com/relnotary/relnotary/internal/logging"
	"github.com/relnotary/relnotary/internal/metrics"
	"github.com/relnotary/relnotary/internal/store"
)

const defaultGenerateTimeout = 60 * time.Second

// Options controls a single changelog assembly.
type Options struct {
	Format             Format
	Style              Style
	IncludeCommits     bool
	CustomInstructions string
}

// Rendered is the result of an assembly: the structured notes plus the
// literal output in the requested format.
type Rendered struct {
	Notes    *ReleaseNotes `json:"notes"`
	Output   string        `json:"output"`
	Format   Format        `json:"format"`
	Fallback bool          `json:"fallback"`
}

// Assembler builds changelogs for stored releases. A nil generator is valid
// and routes every request straight to the deterministic renderers.
type Assembler struct {
	store   *store.Store
	gen     llm.Generator
	log     *logging.Logger
	timeout time.Duration
}

// New returns an Assembler. timeout bounds each generation call; zero means
// the default.
func New(s *store.Store, gen llm.Generator, log *logging.Logger, timeout time.Duration) *Assembler {
	if timeout <= 0 {
		timeout = defaultGenerateTimeout
	}
	return &Assembler{store: s, gen: gen, log: log, timeout: timeout}
}

// Assemble loads a release and produces its changelog. Generation failures
// degrade to the deterministic renderers and never surface to the caller; the
// only errors returned are store errors, including store.ErrNotFound for an
// unknown release.
func (a *Assembler) Assemble(ctx context.Context, releaseID uint, opts Options) (*Rendered, error) {
	rel, err := a.store.GetReleaseByID(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	prs, err := a.store.ListPullRequests(ctx, rel.ID)
	if err != nil {
		return nil, err
	}
	var commits []store.Commit
	if opts.IncludeCommits {
		if commits, err = a.store.ListCommits(ctx, rel.ID); err != nil {
			return nil, err
		}
	}
	cats, err := a.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	base := BuildNotes(rel, prs, commits, cats)
	in := PromptInput{Notes: base, Style: opts.Style, CustomInstructions: opts.CustomInstructions}

	notes, fellBack := a.generateNotes(ctx, base, in)
	out := &Rendered{Notes: notes, Format: opts.Format, Fallback: fellBack}

	switch opts.Format {
	case FormatJSON:
		text, err := notes.EncodeJSON()
		if err != nil {
			return nil, err
		}
		out.Output = text
	case FormatHTML:
		out.Output, fellBack = a.generateText(ctx, notes, in, FormatHTML)
		out.Fallback = out.Fallback || fellBack
	default:
		out.Output, fellBack = a.generateText(ctx, notes, in, FormatMarkdown)
		out.Fallback = out.Fallback || fellBack
	}

	if err := a.store.SaveGeneratedNotes(ctx, rel.ID, out.Output); err != nil {
		return nil, err
	}

	metrics.ChangelogGenerated()
	if out.Fallback {
		metrics.FallbackRender()
	}
	a.log.Info("changelog assembled",
		"release_id", rel.ID,
		"repository", rel.Repository,
		"version", rel.Version,
		"format", string(out.Format),
		"fallback", out.Fallback,
	)
	return out, nil
}

// generateNotes asks the backend for the canonical JSON shape. On any
// failure, including unparseable output, it returns the locally built notes
// with the fallback disclaimer attached.
func (a *Assembler) generateNotes(ctx context.Context, base *ReleaseNotes, in PromptInput) (*ReleaseNotes, bool) {
	if a.gen == nil {
		return fallbackNotes(base), true
	}

	genCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.gen.Generate(genCtx, systemPrompt, BuildJSONPrompt(in))
	if err != nil {
		a.log.Warn("changelog generation failed, using deterministic notes", "error", err)
		return fallbackNotes(base), true
	}

	parsed, err := DecodeNotes([]byte(llm.ExtractJSON(raw)))
	if err != nil {
		a.log.Warn("changelog output did not parse, using deterministic notes", "error", err)
		return fallbackNotes(base), true
	}

	// The backend only rewrites prose. Identity and the commit list come
	// from the store, not from model output.
	parsed.Repository = base.Repository
	parsed.Version = base.Version
	parsed.Name = base.Name
	parsed.ReleasedAt = base.ReleasedAt
	parsed.Commits = base.Commits
	if parsed.Description == "" {
		parsed.Description = base.Description
	}
	return parsed, false
}

// generateText asks the backend for literal markdown or HTML, degrading to
// the matching deterministic renderer.
func (a *Assembler) generateText(ctx context.Context, notes *ReleaseNotes, in PromptInput, format Format) (string, bool) {
	render := RenderMarkdown
	if format == FormatHTML {
		render = RenderHTML
	}
	if a.gen == nil || notes.Disclaimer != "" {
		return render(notes), true
	}

	genCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	in.Notes = notes
	raw, err := a.gen.Generate(genCtx, systemPrompt, BuildTextPrompt(in, format))
	if err != nil {
		a.log.Warn("changelog text generation failed, rendering locally",
			"format", string(format), "error", err)
		return render(notes), true
	}
	if raw == "" {
		return render(notes), true
	}
	return raw, false
}

func fallbackNotes(base *ReleaseNotes) *ReleaseNotes {
	out := *base
	out.Disclaimer = fallbackDisclaimer
	return &out
}
