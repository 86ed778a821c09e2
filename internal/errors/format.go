package errors

import (
	"strings"
)

// Headline returns the first line of the error: "CODE: message".
func (e *BuildError) Headline() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Details returns the indented lines that follow the headline: the path,
// the cause, the wrapped detail text and the hint. It is empty when the
// error carries none of them.
func (e *BuildError) Details() string {
	var b strings.Builder

	if e.Path != "" {
		b.WriteString("  ")
		b.WriteString(e.Path)
		b.WriteString("\n")
	}

	if e.Wrapped != nil {
		b.WriteString("  cause: ")
		b.WriteString(e.Wrapped.Error())
		b.WriteString("\n")
	}

	if detail := strings.TrimSpace(e.Detail); detail != "" {
		b.WriteString("\n")
		for _, line := range strings.Split(detail, "\n") {
			for _, wrapped := range wrapText(line, 100) {
				b.WriteString("  ")
				b.WriteString(wrapped)
				b.WriteString("\n")
			}
		}
	}

	if e.Suggestion != "" {
		b.WriteString("\n  Hint: ")
		b.WriteString(e.Suggestion)
		b.WriteString("\n")
	}

	return b.String()
}

// Format returns the error as plain text, prefixed with the failure symbol.
func (e *BuildError) Format() string {
	return "X " + e.Headline() + "\n" + e.Details()
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	var current strings.Builder

	for _, word := range strings.Fields(text) {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}

	return lines
}
