package policydiff

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercase", "The Policy", "the policy"},
		{"collapse spaces", "a   b\t\tc", "a b c"},
		{"crlf", "line one\r\nline two", "line one\nline two"},
		{"bare cr", "line one\rline two", "line one\nline two"},
		{"trim lines", "  padded  \n\tindented", "padded\nindented"},
		{"drop blank lines", "a\n\n\n   \nb", "a\nb"},
		{"trim document", "\n\n  text  \n\n", "text"},
		{"empty", "", ""},
		{"whitespace only", " \t\r\n ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	// WHAT: Normalize applied twice equals Normalize applied once.
	// WHY: The equality fast path depends on normalized text being a fixed point.
	inputs := []string{
		"",
		"Plain text",
		"  Mixed\r\nLine\rEndings\n\n",
		"TABS\tand nbsp em space",
		"ÉTÉ Über İstanbul",
		"a \n b \r\n\r\n c",
		" odd separators",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestNormalize_CaseAndSpacingOnly(t *testing.T) {
	// WHAT: Texts differing only in case and spacing normalize to the same string.
	// WHY: This is the "nothing meaningful changed" signal.
	old := "All employees MUST attend   training.\nTraining is mandatory."
	new := "all employees must attend training.  \r\n\r\n  TRAINING IS MANDATORY."
	if Normalize(old) != Normalize(new) {
		t.Fatalf("expected equal normalization:\n%q\n%q", Normalize(old), Normalize(new))
	}
}

func TestParagraphs(t *testing.T) {
	got := Paragraphs("first\n\nsecond\n third ")
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if p := Paragraphs(""); len(p) != 0 {
		t.Errorf("Paragraphs(\"\") = %v, want empty", p)
	}
}
