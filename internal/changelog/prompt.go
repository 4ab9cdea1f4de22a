package changelog

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a release notes writer. You receive a structured
summary of a software release and produce polished release notes. Follow the
style directive exactly. Do not invent changes that are not in the summary.`

// styleDirectives maps each style to the instruction text sent to the
// generative backend.
var styleDirectives = map[Style]string{
	StyleTechnical:    "Write for engineers. Keep precise technical terminology, reference pull request numbers, and do not simplify implementation details.",
	StyleUserFriendly: "Write for end users. Avoid jargon, explain what each change means for the person using the software, and keep a warm tone.",
	StyleDetailed:     "Write thorough notes. Expand each change into a short paragraph covering what changed, why, and any migration steps.",
	StyleConcise:      "Write the shortest useful notes. One line per change, no preamble, no closing remarks.",
}

// PromptInput carries everything the prompt builder needs beyond the notes
// themselves.
type PromptInput struct {
	Notes              *ReleaseNotes
	Style              Style
	CustomInstructions string
}

// BuildJSONPrompt asks the backend for the canonical JSON shape. The request
// always goes through this form first regardless of the final output format.
func BuildJSONPrompt(in PromptInput) string {
	var b strings.Builder
	writeReleaseSummary(&b, in)
	b.WriteString("Respond with a single JSON object matching this shape, and nothing else:\n")
	b.WriteString(`{"sections":[{"title":"<category>","items":[{"title":"...","number":1,"author":"...","url":"..."}]}],"description":"<one paragraph summary>"}`)
	b.WriteString("\nKeep the section titles and item numbers from the summary. Rewrite only the item titles and the description.\n")
	return b.String()
}

// BuildTextPrompt asks the backend for literal markdown or HTML output.
func BuildTextPrompt(in PromptInput, format Format) string {
	var b strings.Builder
	writeReleaseSummary(&b, in)
	switch format {
	case FormatHTML:
		b.WriteString("Respond with the release notes as a standalone HTML fragment. Use <h2> for the version heading, <h3> for section headings, and <ul>/<li> for items. No markdown, no code fences.\n")
	default:
		b.WriteString("Respond with the release notes as GitHub-flavored markdown. Use ## for section headings and - for items. No code fences around the document.\n")
	}
	return b.String()
}

func writeReleaseSummary(b *strings.Builder, in PromptInput) {
	n := in.Notes
	fmt.Fprintf(b, "Repository: %s\nVersion: %s\n", n.Repository, n.Version)
	if n.Name != "" {
		fmt.Fprintf(b, "Release name: %s\n", n.Name)
	}
	fmt.Fprintf(b, "Released: %s\n", n.ReleasedAt.Format("2006-01-02"))
	if n.Description != "" {
		fmt.Fprintf(b, "Release description: %s\n", n.Description)
	}
	b.WriteString("\nChanges by category:\n")
	for _, sec := range n.Sections {
		fmt.Fprintf(b, "\n%s:\n", sec.Title)
		for _, it := range sec.Items {
			fmt.Fprintf(b, "- %s (#%d) by @%s\n", it.Title, it.Number, it.Author)
		}
	}
	if len(n.Commits) > 0 {
		b.WriteString("\nCommits:\n")
		for _, c := range n.Commits {
			fmt.Fprintf(b, "- %s: %s (%s)\n", c.Hash, c.Message, c.Author)
		}
	}
	fmt.Fprintf(b, "\nStyle directive: %s\n", styleDirectives[in.Style])
	if in.CustomInstructions != "" {
		fmt.Fprintf(b, "\nAdditional instructions: %s\n", in.CustomInstructions)
	}
	b.WriteString("\n")
}
