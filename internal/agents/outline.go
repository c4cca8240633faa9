package agents

import (
	"strings"
	"unicode"
)

// isOutline classifies generated report text as outline-only: many numbered
// or roman-numeral headers and too few long free-text paragraphs. The
// heuristic is approximate, so its thresholds come from configuration.
func (a *Agents) isOutline(text string) bool {
	markerThreshold := a.wf.OutlineMarkerThreshold
	if markerThreshold <= 0 {
		markerThreshold = 5
	}
	longLineMax := a.wf.OutlineLongLineMax
	if longLineMax <= 0 {
		longLineMax = 10
	}
	longLineLen := a.wf.OutlineLongLineLength
	if longLineLen <= 0 {
		longLineLen = 100
	}

	markers := 0
	longLines := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if hasOutlineMarker(line) {
			markers++
			continue
		}
		if len(line) > longLineLen {
			longLines++
		}
	}

	return markers >= markerThreshold && longLines < longLineMax
}

func hasOutlineMarker(line string) bool {
	// Digit markers: "1." "12)"
	i := 0
	for i < len(line) && unicode.IsDigit(rune(line[i])) {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return true
	}

	// Roman numeral markers: "IV." "viii."
	j := 0
	for j < len(line) && isRomanDigit(line[j]) {
		j++
	}
	if j > 0 && j < len(line) && line[j] == '.' {
		return true
	}
	return false
}

func isRomanDigit(b byte) bool {
	switch b {
	case 'I', 'V', 'X', 'L', 'C', 'D', 'M', 'i', 'v', 'x', 'l', 'c', 'd', 'm':
		return true
	}
	return false
}
