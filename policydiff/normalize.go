package policydiff

import "strings"

// Normalize canonicalises text before comparison: lower case, \n line
// endings, runs of whitespace inside a line collapsed to one space, lines
// trimmed, empty lines dropped. Line structure is kept because paragraphs
// are the unit of comparison.
//
// Normalize(Normalize(x)) == Normalize(x) for every x.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// Paragraphs splits normalized text into its non-empty lines.
func Paragraphs(normalized string) []string {
	var out []string
	for _, p := range strings.Split(normalized, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
