// Package category maps pull request labels to changelog categories.
package category

import "strings"

// Category names, in rendering order.
const (
	Features        = "Features"
	BugFixes        = "Bug Fixes"
	Improvements    = "Improvements"
	Documentation   = "Documentation"
	Dependencies    = "Dependencies"
	BreakingChanges = "Breaking Changes"

	// Other is the render-time bucket for uncategorized pull requests.
	// It is never persisted.
	Other = "Other Changes"
)

// Names lists the persisted categories in display order.
var Names = []string{
	Features,
	BugFixes,
	Improvements,
	Documentation,
	Dependencies,
	BreakingChanges,
}

// rule maps label substrings to a category. Rules are evaluated in order and
// the first match wins, so a PR labeled both "feature" and "breaking-change"
// lands in Features.
type rule struct {
	substrings []string
	category   string
}

var rules = []rule{
	{[]string{"feat", "feature"}, Features},
	{[]string{"fix", "bug"}, BugFixes},
	{[]string{"improve", "enhancement"}, Improvements},
	{[]string{"doc"}, Documentation},
	{[]string{"dep"}, Dependencies},
	{[]string{"break"}, BreakingChanges},
}

// Categorize maps a label set to a category name. The second return value is
// false when no label matched; callers bucket those as Other at render time.
func Categorize(labels []string) (string, bool) {
	lowered := make([]string, len(labels))
	for i, l := range labels {
		lowered[i] = strings.ToLower(l)
	}

	for _, r := range rules {
		for _, l := range lowered {
			for _, sub := range r.substrings {
				if strings.Contains(l, sub) {
					return r.category, true
				}
			}
		}
	}
	return "", false
}
