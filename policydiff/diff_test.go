package policydiff

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestAlign_Basic(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want []Opcode
	}{
		{
			name: "identical",
			a:    []string{"x", "y"},
			b:    []string{"x", "y"},
			want: []Opcode{{OpEqual, 0, 2, 0, 2}},
		},
		{
			name: "replace middle",
			a:    []string{"x", "y", "z"},
			b:    []string{"x", "q", "z"},
			want: []Opcode{{OpEqual, 0, 1, 0, 1}, {OpReplace, 1, 2, 1, 2}, {OpEqual, 2, 3, 2, 3}},
		},
		{
			name: "insert",
			a:    []string{"x", "z"},
			b:    []string{"x", "y", "z"},
			want: []Opcode{{OpEqual, 0, 1, 0, 1}, {OpInsert, 1, 1, 1, 2}, {OpEqual, 1, 2, 2, 3}},
		},
		{
			name: "delete",
			a:    []string{"x", "y", "z"},
			b:    []string{"x", "z"},
			want: []Opcode{{OpEqual, 0, 1, 0, 1}, {OpDelete, 1, 2, 1, 1}, {OpEqual, 2, 3, 1, 2}},
		},
		{
			name: "from empty",
			a:    nil,
			b:    []string{"p"},
			want: []Opcode{{OpInsert, 0, 0, 0, 1}},
		},
		{
			name: "to empty",
			a:    []string{"p", "q"},
			b:    nil,
			want: []Opcode{{OpDelete, 0, 2, 0, 0}},
		},
		{
			name: "both empty",
			want: nil,
		},
		{
			name: "longest block wins",
			a:    []string{"a", "b", "c", "d", "x"},
			b:    []string{"x", "a", "b", "c", "d"},
			want: []Opcode{{OpInsert, 0, 0, 0, 1}, {OpEqual, 0, 4, 1, 5}, {OpDelete, 4, 5, 5, 5}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Align(tt.a, tt.b)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Align mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// checkPartition asserts ops cover [0,len(a)) and [0,len(b)) contiguously,
// each index exactly once, and that equal spans really are equal.
func checkPartition(t *testing.T, a, b []string, ops []Opcode) {
	t.Helper()
	i, j := 0, 0
	for k, op := range ops {
		if op.I1 != i || op.J1 != j {
			t.Fatalf("op %d %+v not contiguous with (%d,%d)", k, op, i, j)
		}
		if op.I2 < op.I1 || op.J2 < op.J1 {
			t.Fatalf("op %d %+v has a negative span", k, op)
		}
		if op.I2 == op.I1 && op.J2 == op.J1 {
			t.Fatalf("op %d %+v is empty", k, op)
		}
		switch op.Tag {
		case OpEqual:
			if !slices.Equal(a[op.I1:op.I2], b[op.J1:op.J2]) {
				t.Fatalf("op %d equal span differs", k)
			}
		case OpInsert:
			if op.I1 != op.I2 {
				t.Fatalf("op %d insert consumes old paragraphs", k)
			}
		case OpDelete:
			if op.J1 != op.J2 {
				t.Fatalf("op %d delete consumes new paragraphs", k)
			}
		case OpReplace:
			if op.I1 == op.I2 || op.J1 == op.J2 {
				t.Fatalf("op %d replace with an empty side", k)
			}
		default:
			t.Fatalf("op %d unknown tag %q", k, op.Tag)
		}
		i, j = op.I2, op.J2
	}
	if i != len(a) || j != len(b) {
		t.Fatalf("coverage ends at (%d,%d), want (%d,%d)", i, j, len(a), len(b))
	}
}

func TestAlign_Partition(t *testing.T) {
	// WHAT: For random paragraph sequences every index appears in exactly one opcode.
	// WHY: The classifier must see every changed paragraph once and only once.
	rng := rand.New(rand.NewPCG(7, 42))
	vocab := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	gen := func() []string {
		n := rng.IntN(12)
		out := make([]string, n)
		for i := range out {
			out[i] = vocab[rng.IntN(len(vocab))]
		}
		return out
	}
	for iter := 0; iter < 500; iter++ {
		a, b := gen(), gen()
		checkPartition(t, a, b, Align(a, b))
	}
}

func TestAlign_Deterministic(t *testing.T) {
	a := []string{"a", "b", "a", "c", "b", "a"}
	b := []string{"b", "a", "c", "a", "b"}
	first := Align(a, b)
	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(first, Align(a, b)); diff != "" {
			t.Fatalf("run %d differs:\n%s", i, diff)
		}
	}
}

func TestChanged(t *testing.T) {
	ops := Align([]string{"x", "y", "z"}, []string{"x", "q", "z", "w"})
	for _, op := range Changed(ops) {
		if op.Tag == OpEqual {
			t.Fatalf("Changed kept an equal opcode: %+v", op)
		}
	}
	if n := len(Changed(ops)); n != 2 {
		t.Fatalf("changed ops = %d, want 2 (replace + insert)", n)
	}
}
