package policydiff

import (
	"strings"
	"testing"

	"github.com/sourcegraph/go-diff/diff"
)

func TestUnifiedDiff_NoChanges(t *testing.T) {
	out, err := UnifiedDiff("p", "Same text.", "SAME   text.")
	if err != nil {
		t.Fatal(err)
	}
	if out != "" {
		t.Fatalf("expected empty diff, got %q", out)
	}
}

func TestUnifiedDiff_Replace(t *testing.T) {
	out, err := UnifiedDiff("leave", "x\ny\nz", "x\nq\nz")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"--- a/leave", "+++ b/leave", "@@ -1,3 +1,3 @@", " x\n-y\n+q\n z\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("diff missing %q:\n%s", want, out)
		}
	}
}

func TestUnifiedDiff_Parses(t *testing.T) {
	// WHAT: Two changes split by one unchanged paragraph render as one hunk.
	// WHY: Separate hunks would both claim the shared paragraph and overlap.
	old := "intro\nkeep\ndrop me\nmiddle\nend"
	new := "intro\nkeep\nmiddle\nadded line\nend"
	out, err := UnifiedDiff("p", old, new)
	if err != nil {
		t.Fatal(err)
	}

	fd, err := diff.ParseFileDiff([]byte(out))
	if err != nil {
		t.Fatalf("parse: %v\n%s", err, out)
	}
	if len(fd.Hunks) != 1 {
		t.Fatalf("hunks = %d, want 1:\n%s", len(fd.Hunks), out)
	}
	h := fd.Hunks[0]
	if h.OrigStartLine != 2 || h.OrigLines != 4 || h.NewStartLine != 2 || h.NewLines != 4 {
		t.Errorf("hunk = -%d,%d +%d,%d, want -2,4 +2,4", h.OrigStartLine, h.OrigLines, h.NewStartLine, h.NewLines)
	}
	if want := " keep\n-drop me\n middle\n+added line\n end\n"; string(h.Body) != want {
		t.Errorf("body = %q, want %q", h.Body, want)
	}
}

func TestUnifiedDiff_DistantChangesDoNotOverlap(t *testing.T) {
	// WHAT: Changes far apart get separate hunks with disjoint line ranges.
	// WHY: Overlapping ranges make patch tools reject the diff.
	old := "alpha\nb\nc\nd\ne\nf\nomega"
	new := "first\nb\nc\nd\ne\nf\nlast"
	out, err := UnifiedDiff("p", old, new)
	if err != nil {
		t.Fatal(err)
	}

	fd, err := diff.ParseFileDiff([]byte(out))
	if err != nil {
		t.Fatalf("parse: %v\n%s", err, out)
	}
	if len(fd.Hunks) != 2 {
		t.Fatalf("hunks = %d, want 2:\n%s", len(fd.Hunks), out)
	}
	h1, h2 := fd.Hunks[0], fd.Hunks[1]
	if h1.OrigStartLine != 1 || h1.OrigLines != 2 || h2.OrigStartLine != 6 || h2.OrigLines != 2 {
		t.Errorf("hunks = -%d,%d and -%d,%d, want -1,2 and -6,2", h1.OrigStartLine, h1.OrigLines, h2.OrigStartLine, h2.OrigLines)
	}
	if h2.OrigStartLine <= h1.OrigStartLine+h1.OrigLines-1 {
		t.Errorf("hunks overlap:\n%s", out)
	}
}
