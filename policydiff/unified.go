package policydiff

import (
	"bytes"
	"fmt"

	"github.com/sourcegraph/go-diff/diff"
)

// contextParagraphs is how many unchanged paragraphs surround each hunk.
const contextParagraphs = 1

// UnifiedDiff renders the paragraph alignment of two raw texts as a unified
// diff. Changes separated by at most two unchanged paragraphs share a hunk,
// so hunks never overlap. Paragraphs are the normalized lines, so the output
// shows what the classifier saw rather than the raw layout. It returns an
// empty string when nothing changed.
func UnifiedDiff(policyName, oldText, newText string) (string, error) {
	a, b := Paragraphs(Normalize(oldText)), Paragraphs(Normalize(newText))
	groups := groupOpcodes(Align(a, b), contextParagraphs)
	if len(groups) == 0 {
		return "", nil
	}

	fd := &diff.FileDiff{
		OrigName: "a/" + policyName,
		NewName:  "b/" + policyName,
	}
	for _, g := range groups {
		fd.Hunks = append(fd.Hunks, hunkFor(g, a, b))
	}

	out, err := diff.PrintFileDiff(fd)
	if err != nil {
		return "", fmt.Errorf("policydiff: print diff: %w", err)
	}
	return string(out), nil
}

// groupOpcodes splits ops into hunks padded with up to n equal paragraphs on
// each side. An equal run longer than 2n ends one hunk and starts the next.
func groupOpcodes(ops []Opcode, n int) [][]Opcode {
	if len(Changed(ops)) == 0 {
		return nil
	}
	codes := append([]Opcode(nil), ops...)
	if first := &codes[0]; first.Tag == OpEqual {
		first.I1, first.J1 = max(first.I1, first.I2-n), max(first.J1, first.J2-n)
	}
	if last := &codes[len(codes)-1]; last.Tag == OpEqual {
		last.I2, last.J2 = min(last.I2, last.I1+n), min(last.J2, last.J1+n)
	}

	var groups [][]Opcode
	var group []Opcode
	for _, op := range codes {
		if op.Tag == OpEqual && op.I2-op.I1 > 2*n {
			group = append(group, Opcode{Tag: OpEqual, I1: op.I1, I2: min(op.I2, op.I1+n), J1: op.J1, J2: min(op.J2, op.J1+n)})
			groups = append(groups, group)
			group = nil
			op.I1, op.J1 = max(op.I1, op.I2-n), max(op.J1, op.J2-n)
		}
		group = append(group, op)
	}
	if !(len(group) == 1 && group[0].Tag == OpEqual) {
		groups = append(groups, group)
	}
	return groups
}

func hunkFor(group []Opcode, a, b []string) *diff.Hunk {
	first, last := group[0], group[len(group)-1]

	var body bytes.Buffer
	section := ""
	for _, op := range group {
		if op.Tag == OpEqual {
			for _, p := range a[op.I1:op.I2] {
				body.WriteString(" " + p + "\n")
			}
			continue
		}
		if section == "" {
			section = string(op.Tag)
		}
		for _, p := range a[op.I1:op.I2] {
			body.WriteString("-" + p + "\n")
		}
		for _, p := range b[op.J1:op.J2] {
			body.WriteString("+" + p + "\n")
		}
	}

	h := &diff.Hunk{
		OrigStartLine: int32(first.I1 + 1),
		OrigLines:     int32(last.I2 - first.I1),
		NewStartLine:  int32(first.J1 + 1),
		NewLines:      int32(last.J2 - first.J1),
		Section:       section,
		Body:          body.Bytes(),
	}
	// Unified diff convention: an empty range starts at the line before it.
	if h.OrigLines == 0 {
		h.OrigStartLine--
	}
	if h.NewLines == 0 {
		h.NewStartLine--
	}
	return h
}
