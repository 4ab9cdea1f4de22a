package changelog

import (
	"fmt"
	"html"
	"strings"
)

// fallbackDisclaimer marks output produced by the deterministic renderers
// instead of the generative backend.
const fallbackDisclaimer = "These notes were generated automatically from pull request titles."

// RenderMarkdown renders the structured notes as markdown. It is a pure
// function and serves as both the markdown backend and the guaranteed
// fallback when generation fails.
func RenderMarkdown(n *ReleaseNotes) string {
	var b strings.Builder

	heading := n.Version
	if n.Name != "" {
		heading = fmt.Sprintf("%s - %s", n.Version, n.Name)
	}
	fmt.Fprintf(&b, "# %s\n\n", heading)
	fmt.Fprintf(&b, "_Released %s_\n\n", n.ReleasedAt.Format("January 2, 2006"))
	if n.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", n.Description)
	}

	for _, sec := range n.Sections {
		fmt.Fprintf(&b, "## %s\n\n", sec.Title)
		for _, it := range sec.Items {
			b.WriteString(markdownItem(it))
		}
		b.WriteString("\n")
	}

	if len(n.Commits) > 0 {
		b.WriteString("## Commits\n\n")
		for _, c := range n.Commits {
			fmt.Fprintf(&b, "- %s: %s - %s\n", c.Hash, c.Message, c.Author)
		}
		b.WriteString("\n")
	}

	if n.Disclaimer != "" {
		fmt.Fprintf(&b, "---\n\n_%s_\n", n.Disclaimer)
	}
	return b.String()
}

func markdownItem(it Item) string {
	ref := fmt.Sprintf("(#%d)", it.Number)
	if it.URL != "" {
		ref = fmt.Sprintf("[%s](%s)", ref, it.URL)
	}
	if it.Author != "" {
		return fmt.Sprintf("- %s %s - @%s\n", it.Title, ref, it.Author)
	}
	return fmt.Sprintf("- %s %s\n", it.Title, ref)
}

// RenderHTML renders the structured notes as a standalone HTML fragment with
// the same section ordering and item counts as the markdown renderer.
func RenderHTML(n *ReleaseNotes) string {
	var b strings.Builder

	heading := n.Version
	if n.Name != "" {
		heading = fmt.Sprintf("%s - %s", n.Version, n.Name)
	}
	fmt.Fprintf(&b, "<h2>%s</h2>\n", html.EscapeString(heading))
	fmt.Fprintf(&b, "<p><em>Released %s</em></p>\n", n.ReleasedAt.Format("January 2, 2006"))
	if n.Description != "" {
		fmt.Fprintf(&b, "<p>%s</p>\n", html.EscapeString(n.Description))
	}

	for _, sec := range n.Sections {
		fmt.Fprintf(&b, "<h3>%s</h3>\n<ul>\n", html.EscapeString(sec.Title))
		for _, it := range sec.Items {
			b.WriteString(htmlItem(it))
		}
		b.WriteString("</ul>\n")
	}

	if len(n.Commits) > 0 {
		b.WriteString("<h3>Commits</h3>\n<ul>\n")
		for _, c := range n.Commits {
			fmt.Fprintf(&b, "<li><code>%s</code>: %s - %s</li>\n",
				html.EscapeString(c.Hash), html.EscapeString(c.Message), html.EscapeString(c.Author))
		}
		b.WriteString("</ul>\n")
	}

	if n.Disclaimer != "" {
		fmt.Fprintf(&b, "<hr/>\n<p><em>%s</em></p>\n", html.EscapeString(n.Disclaimer))
	}
	return b.String()
}

func htmlItem(it Item) string {
	ref := fmt.Sprintf("(#%d)", it.Number)
	if it.URL != "" {
		ref = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(it.URL), ref)
	}
	line := fmt.Sprintf("%s %s", html.EscapeString(it.Title), ref)
	if it.Author != "" {
		line += " - @" + html.EscapeString(it.Author)
	}
	return fmt.Sprintf("<li>%s</li>\n", line)
}
