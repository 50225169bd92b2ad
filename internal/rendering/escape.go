package rendering

import "strings"

// InlineText flattens text for use inside a single Markdown line such as a
// heading or a bold label. Runs of whitespace, including newlines, collapse to
// one space and leading '#' characters are escaped.
func InlineText(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	if strings.HasPrefix(text, "#") {
		text = `\` + text
	}
	return text
}

// DatePrefix returns the calendar date of an RFC 3339 timestamp, or the input
// unchanged when it is shorter than a date.
func DatePrefix(ts string) string {
	if len(ts) < 10 {
		return ts
	}
	return ts[:10]
}
