package policydiff

import "sort"

// OpTag labels an Opcode.
type OpTag string

const (
	OpEqual   OpTag = "equal"
	OpReplace OpTag = "replace"
	OpInsert  OpTag = "insert"
	OpDelete  OpTag = "delete"
)

// Opcode maps old paragraphs a[I1:I2] onto new paragraphs b[J1:J2].
type Opcode struct {
	Tag OpTag `json:"tag"`
	I1  int   `json:"i1"`
	I2  int   `json:"i2"`
	J1  int   `json:"j1"`
	J2  int   `json:"j2"`
}

// block is a matching run a[I:I+Size] == b[J:J+Size].
type block struct {
	I, J, Size int
}

// Align computes the opcodes turning a into b. Matching blocks are found
// greedily from longest to shortest, recursing on the gaps on each side.
// The result is deterministic and its spans partition both [0,len(a)) and
// [0,len(b)) contiguously.
func Align(a, b []string) []Opcode {
	blocks := matchingBlocks(a, b)

	var ops []Opcode
	i, j := 0, 0
	for _, m := range blocks {
		var tag OpTag
		switch {
		case i < m.I && j < m.J:
			tag = OpReplace
		case i < m.I:
			tag = OpDelete
		case j < m.J:
			tag = OpInsert
		}
		if tag != "" {
			ops = append(ops, Opcode{Tag: tag, I1: i, I2: m.I, J1: j, J2: m.J})
		}
		i, j = m.I+m.Size, m.J+m.Size
		if m.Size > 0 {
			ops = append(ops, Opcode{Tag: OpEqual, I1: m.I, I2: i, J1: m.J, J2: j})
		}
	}
	return ops
}

// Changed drops the equal opcodes; they carry no change information.
func Changed(ops []Opcode) []Opcode {
	out := make([]Opcode, 0, len(ops))
	for _, op := range ops {
		if op.Tag != OpEqual {
			out = append(out, op)
		}
	}
	return out
}

// matchingBlocks returns the sorted, merged matching blocks of a and b,
// terminated by the sentinel {len(a), len(b), 0}.
func matchingBlocks(a, b []string) []block {
	b2j := make(map[string][]int, len(b))
	for j, s := range b {
		b2j[s] = append(b2j[s], j)
	}

	type window struct{ alo, ahi, blo, bhi int }
	queue := []window{{0, len(a), 0, len(b)}}
	var found []block
	for len(queue) > 0 {
		w := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		m := longestMatch(a, b2j, w.alo, w.ahi, w.blo, w.bhi)
		if m.Size == 0 {
			continue
		}
		found = append(found, m)
		if w.alo < m.I && w.blo < m.J {
			queue = append(queue, window{w.alo, m.I, w.blo, m.J})
		}
		if m.I+m.Size < w.ahi && m.J+m.Size < w.bhi {
			queue = append(queue, window{m.I + m.Size, w.ahi, m.J + m.Size, w.bhi})
		}
	}

	sort.Slice(found, func(x, y int) bool {
		if found[x].I != found[y].I {
			return found[x].I < found[y].I
		}
		return found[x].J < found[y].J
	})

	merged := make([]block, 0, len(found)+1)
	for _, m := range found {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.I+last.Size == m.I && last.J+last.Size == m.J {
				last.Size += m.Size
				continue
			}
		}
		merged = append(merged, m)
	}
	return append(merged, block{I: len(a), J: len(b)})
}

// longestMatch finds the longest block with a[i:i+k] == b[j:j+k] inside
// a[alo:ahi] x b[blo:bhi]. Ties go to the smallest i, then the smallest j.
func longestMatch(a []string, b2j map[string][]int, alo, ahi, blo, bhi int) block {
	best := block{I: alo, J: blo}
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		next := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > best.Size {
				best = block{I: i - k + 1, J: j - k + 1, Size: k}
			}
		}
		j2len = next
	}
	return best
}
