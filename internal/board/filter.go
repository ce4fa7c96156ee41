// Package board projects the full note set into what a viewer sees. It is
// pure: filtering never reorders notes and holds no state.
package board

import (
	"strings"

	"github.com/mtaani/noticeboard/internal/category"
	"github.com/mtaani/noticeboard/internal/model"
)

// Visible returns the notes shown under the active section tab with the
// given search text. A note is visible iff its type matches the tab and the
// search is empty or case-insensitively matches title or description.
// Untitled notes never match a non-empty search. Input order is preserved.
func Visible(notes []model.Note, activeTab, search string) []model.Note {
	q := strings.ToLower(strings.TrimSpace(search))

	visible := make([]model.Note, 0, len(notes))
	for _, n := range notes {
		if n.Type != activeTab {
			continue
		}
		if q != "" && !matches(n, q) {
			continue
		}
		visible = append(visible, n)
	}
	return visible
}

func matches(n model.Note, q string) bool {
	if n.Title == "" {
		return false
	}
	return strings.Contains(strings.ToLower(n.Title), q) ||
		strings.Contains(strings.ToLower(n.Description), q)
}

// Counts returns the total notes per section, independent of any search
// text. Every section appears in the result, zero or not.
func Counts(notes []model.Note) map[string]int {
	counts := make(map[string]int, len(category.All))
	for _, c := range category.All {
		counts[c.ID] = 0
	}
	for _, n := range notes {
		if _, ok := counts[n.Type]; ok {
			counts[n.Type]++
		}
	}
	return counts
}
