// Package outline extracts the heading structure of a markdown document.
package outline

import (
	"regexp"
	"strings"
)

// Entry is one heading. Line is 1-based.
type Entry struct {
	Level int    `json:"level"`
	Title string `json:"title"`
	Line  int    `json:"line"`
}

var headingExpr = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)

// Extract returns the ATX headings of a markdown document in order.
// Headings inside fenced code blocks are not headings.
func Extract(markdown string) []Entry {
	entries := make([]Entry, 0)
	inFence := false

	for i, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		m := headingExpr.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		entries = append(entries, Entry{
			Level: len(m[1]),
			Title: strings.TrimSpace(m[2]),
			Line:  i + 1,
		})
	}
	return entries
}
