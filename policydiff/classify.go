package policydiff

import "strings"

// Keyword sets, matched case-insensitively as substrings of the span text.
// Order matters only for readability: any critical hit beats any important one.
var (
	criticalKeywords = []string{
		"prohibited", "forbidden", "illegal", "violation",
		"must", "required", "mandatory", "shall",
		"deadline", "due date", "effective date",
	}
	importantKeywords = []string{
		"should", "recommended", "consider",
		"frequency", "period", "schedule",
		"procedure", "process", "requirement",
	}
	additionCriticalKeywords = []string{"prohibited", "illegal", "deadline"}
)

const (
	modifiedConfidence = 0.85
	spanConfidence     = 0.90

	modifiedExcerpt = 50
	spanExcerpt     = 70
)

// Classify turns one opcode into a ChangeDetail. It is total: an equal
// opcode or a span outside the inputs yields an empty description instead
// of failing.
func Classify(op Opcode, a, b []string) ChangeDetail {
	oldText := spanText(a, op.I1, op.I2)
	newText := spanText(b, op.J1, op.J2)

	switch op.Tag {
	case OpReplace:
		d := ChangeDetail{
			Kind:         Modified,
			Impact:       modificationImpact(oldText, newText),
			OriginalText: &oldText,
			NewText:      &newText,
			Confidence:   modifiedConfidence,
		}
		if oldText != "" || newText != "" {
			d.Description = "Modified text: '" + excerpt(oldText, modifiedExcerpt) + "...' → '" + excerpt(newText, modifiedExcerpt) + "...'"
		}
		return d

	case OpInsert:
		d := ChangeDetail{
			Kind:       Added,
			Impact:     additionImpact(newText),
			NewText:    &newText,
			Confidence: spanConfidence,
		}
		if newText != "" {
			d.Description = "Added: '" + excerpt(newText, spanExcerpt) + "...'"
		}
		return d

	case OpDelete:
		d := ChangeDetail{
			Kind:         Removed,
			Impact:       removalImpact(oldText),
			OriginalText: &oldText,
			Confidence:   spanConfidence,
		}
		if oldText != "" {
			d.Description = "Removed: '" + excerpt(oldText, spanExcerpt) + "...'"
		}
		return d
	}

	return ChangeDetail{Kind: Modified, Impact: Minor}
}

// ClassifyAll classifies every non-equal opcode, in order.
func ClassifyAll(ops []Opcode, a, b []string) []ChangeDetail {
	var out []ChangeDetail
	for _, op := range Changed(ops) {
		out = append(out, Classify(op, a, b))
	}
	return out
}

func modificationImpact(oldText, newText string) ImpactLevel {
	combined := strings.ToLower(oldText + " " + newText)
	if containsAny(combined, criticalKeywords) {
		return Critical
	}
	if containsAny(combined, importantKeywords) {
		return Important
	}
	return Minor
}

// additionImpact defaults to Important: new content is assumed consequential.
func additionImpact(newText string) ImpactLevel {
	if containsAny(strings.ToLower(newText), additionCriticalKeywords) {
		return Critical
	}
	return Important
}

// removalImpact is Important whatever the removed text says.
// TODO(product): confirm removals should stay keyword-blind while additions
// and modifications are keyword-gated.
func removalImpact(string) ImpactLevel {
	return Important
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

func spanText(paras []string, lo, hi int) string {
	if lo < 0 || hi > len(paras) || lo >= hi {
		return ""
	}
	return strings.Join(paras[lo:hi], " ")
}

// excerpt truncates s to at most n runes.
func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
