package policydiff

import (
	"strings"
	"testing"
)

func TestClassify_Kinds(t *testing.T) {
	a := []string{"old one", "old two"}
	b := []string{"new one"}

	mod := Classify(Opcode{OpReplace, 0, 2, 0, 1}, a, b)
	if mod.Kind != Modified || mod.Confidence != 0.85 {
		t.Errorf("replace -> %s/%v, want modified/0.85", mod.Kind, mod.Confidence)
	}
	if mod.OriginalText == nil || *mod.OriginalText != "old one old two" {
		t.Errorf("original text = %v", mod.OriginalText)
	}
	if mod.NewText == nil || *mod.NewText != "new one" {
		t.Errorf("new text = %v", mod.NewText)
	}

	add := Classify(Opcode{OpInsert, 0, 0, 0, 1}, a, b)
	if add.Kind != Added || add.Confidence != 0.90 || add.OriginalText != nil {
		t.Errorf("insert -> %+v", add)
	}
	if add.NewText == nil || *add.NewText != "new one" {
		t.Errorf("insert new text = %v", add.NewText)
	}

	rem := Classify(Opcode{OpDelete, 0, 1, 0, 0}, a, b)
	if rem.Kind != Removed || rem.Confidence != 0.90 || rem.NewText != nil {
		t.Errorf("delete -> %+v", rem)
	}
}

func TestClassify_ModifiedImpact(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		want     ImpactLevel
	}{
		{"critical in new", "reports are filed.", "reports shall be filed.", Critical},
		{"critical in old", "smoking is forbidden indoors.", "smoking is discouraged indoors.", Critical},
		{"multiword critical", "starts in may.", "the effective date is may 1.", Critical},
		{"important", "reports are filed monthly.", "reports follow a review process.", Important},
		{"critical beats important", "follow the procedure.", "the procedure is mandatory.", Critical},
		{"minor", "the office is blue.", "the office is green.", Minor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Classify(Opcode{OpReplace, 0, 1, 0, 1}, []string{tt.old}, []string{tt.new})
			if d.Impact != tt.want {
				t.Errorf("impact = %s, want %s", d.Impact, tt.want)
			}
		})
	}
}

func TestClassify_AddedImpact(t *testing.T) {
	tests := []struct {
		text string
		want ImpactLevel
	}{
		{"weapons are prohibited.", Critical},
		{"the filing deadline is friday.", Critical},
		{"this is illegal.", Critical},
		// "must" is critical for modifications but not for additions.
		{"employees must wear badges.", Important},
		{"a new cafeteria opens.", Important},
	}
	for _, tt := range tests {
		d := Classify(Opcode{OpInsert, 0, 0, 0, 1}, nil, []string{tt.text})
		if d.Impact != tt.want {
			t.Errorf("added %q impact = %s, want %s", tt.text, d.Impact, tt.want)
		}
	}
}

func TestClassify_RemovedAlwaysImportant(t *testing.T) {
	// WHAT: Removed content is Important whatever keywords it has.
	// WHY: Loss of content is treated as risky by default.
	for _, text := range []string{"this is prohibited.", "the office is blue.", "you should consider it."} {
		d := Classify(Opcode{OpDelete, 0, 1, 0, 0}, []string{text}, nil)
		if d.Impact != Important {
			t.Errorf("removed %q impact = %s, want important", text, d.Impact)
		}
	}
}

func TestClassify_Description(t *testing.T) {
	long := strings.Repeat("é", 80)
	d := Classify(Opcode{OpInsert, 0, 0, 0, 1}, nil, []string{long})
	want := "Added: '" + strings.Repeat("é", 70) + "...'"
	if d.Description != want {
		t.Errorf("description = %q, want %q", d.Description, want)
	}
	if *d.NewText != long {
		t.Error("full text must be retained in NewText")
	}

	m := Classify(Opcode{OpReplace, 0, 1, 0, 1}, []string{"short old"}, []string{"short new"})
	if m.Description != "Modified text: 'short old...' → 'short new...'" {
		t.Errorf("modified description = %q", m.Description)
	}

	r := Classify(Opcode{OpDelete, 0, 1, 0, 0}, []string{"gone"}, nil)
	if r.Description != "Removed: 'gone...'" {
		t.Errorf("removed description = %q", r.Description)
	}
}

func TestClassify_Total(t *testing.T) {
	// WHAT: Malformed spans and equal opcodes classify without panicking.
	// WHY: Classification is a total function over opcodes.
	ops := []Opcode{
		{OpInsert, 0, 0, 5, 9},
		{OpDelete, -1, 3, 0, 0},
		{OpReplace, 2, 1, 0, 0},
		{OpEqual, 0, 1, 0, 1},
		{"bogus", 0, 0, 0, 0},
	}
	for _, op := range ops {
		d := Classify(op, []string{"x"}, []string{"y"})
		if d.Description != "" {
			t.Errorf("op %+v: description = %q, want empty", op, d.Description)
		}
		if !d.Kind.Valid() || !d.Impact.Valid() {
			t.Errorf("op %+v: invalid detail %+v", op, d)
		}
	}
}
