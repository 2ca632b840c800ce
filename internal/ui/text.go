package ui

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMaxLines bounds how much of a payload list views show.
const DefaultMaxLines = 15

// TruncateLines keeps the first and last contextLines of text when it has
// more than maxLines lines, with a muted marker counting the hidden lines.
func TruncateLines(text string, maxLines, contextLines int) string {
	lines := strings.Split(text, "\n")
	if text == "" || len(lines) <= maxLines {
		return text
	}
	if contextLines < 1 {
		contextLines = 1
	}
	if maxLines < contextLines*2+1 {
		return strings.Join(lines[:maxLines], "\n") + "\n..."
	}

	hidden := len(lines) - 2*contextLines
	var b strings.Builder
	b.WriteString(strings.Join(lines[:contextLines], "\n"))
	b.WriteString("\n")
	b.WriteString(RenderMuted("... (" + strconv.Itoa(hidden) + " lines hidden, use --full) ..."))
	b.WriteString("\n")
	b.WriteString(strings.Join(lines[len(lines)-contextLines:], "\n"))
	return b.String()
}

// TruncateSimple cuts text to maxLen runes with a "..." suffix.
func TruncateSimple(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string([]rune(text)[:maxLen-3]) + "..."
}

// OneLine collapses whitespace so payloads and notes fit a table cell.
func OneLine(text string, maxLen int) string {
	return TruncateSimple(strings.Join(strings.Fields(text), " "), maxLen)
}

// WrapText wraps text at word boundaries to fit maxWidth, keeping existing
// line breaks.
func WrapText(text string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = 80
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = wrapLine(line, maxWidth)
	}
	return strings.Join(lines, "\n")
}

func wrapLine(line string, maxWidth int) string {
	if utf8.RuneCountInString(line) <= maxWidth {
		return line
	}
	var b strings.Builder
	n := 0
	for _, word := range strings.Fields(line) {
		wl := utf8.RuneCountInString(word)
		switch {
		case n == 0:
		case n+1+wl <= maxWidth:
			b.WriteString(" ")
			n++
		default:
			b.WriteString("\n")
			n = 0
		}
		b.WriteString(word)
		n += wl
	}
	return b.String()
}
