package agents

import (
	"strings"
	"unicode"
)

// parseListItems extracts list items from generated text. A line counts as a
// list item when it carries a leading digit+period, dash, asterisk, or bullet
// marker; the marker is stripped. Items shorter than minLen or lacking a
// question mark (when required) are discarded.
func parseListItems(text string, minLen int, requireQuestionMark bool) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		cleaned, ok := stripListMarker(line)
		if !ok {
			continue
		}
		cleaned = strings.TrimSpace(cleaned)
		if len(cleaned) < minLen {
			continue
		}
		if requireQuestionMark && !strings.Contains(cleaned, "?") {
			continue
		}
		items = append(items, cleaned)
	}
	return items
}

// parseLooseQuestions is the lenient second pass: any line long enough that
// contains a question mark, marker or not.
func parseLooseQuestions(text string, minLen, max int) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) <= minLen || !strings.Contains(line, "?") {
			continue
		}
		items = append(items, line)
		if max > 0 && len(items) >= max {
			break
		}
	}
	return items
}

func stripListMarker(line string) (string, bool) {
	switch {
	case strings.HasPrefix(line, "- "):
		return line[2:], true
	case strings.HasPrefix(line, "* "):
		return line[2:], true
	case strings.HasPrefix(line, "• "):
		return strings.TrimPrefix(line, "• "), true
	}

	// Numbered markers: one or more digits followed by '.' or ')'.
	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return line[i+1:], true
	}
	return "", false
}
