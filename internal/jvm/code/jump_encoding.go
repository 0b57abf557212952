package code

import (
	"sort"

	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
)

// Signed 16-bit relative offset range that `goto` and `if*` branch
// instructions support.
const (
	minRegularJump = -32768
	maxRegularJump = 32767
)

// jumpInterval is one jump this pass may need to widen: the block it
// starts from, the range of block indices it spans, whether it is a goto
// (vs. an if*/ifnull form), and the direction and running distance of the
// jump. Indices and distances are tracked in the index/byte space computed
// once up front; widening a jump elsewhere only ever grows distances, never
// shrinks them, so updating in place is sound.
type jumpInterval struct {
	fromBlock            insn.Label
	rangeStart, rangeEnd int
	isGoto               bool
	isForward            bool
	distance             int
}

func (j *jumpInterval) isOversized() bool {
	return j.distance < minRegularJump || j.distance > maxRegularJump
}

// lengthen grows the jump by by bytes (in whichever direction it already
// points) and reports whether it is now oversized.
func (j *jumpInterval) lengthen(by int) bool {
	if j.distance < 0 {
		j.distance -= by
	} else {
		j.distance += by
	}
	return j.isOversized()
}

// startIndex is where, in index space, this jump's own rewrite adds bytes:
// the index just past the jump's own block, which is rangeStart for a
// forward jump and rangeEnd for a backward one.
func (j *jumpInterval) startIndex() int {
	if j.isForward {
		return j.rangeStart
	}
	return j.rangeEnd
}

// intervalTree is a segment tree over block-index space: each jump interval
// is stored on the O(log n) nodes that tile it, so collecting every interval
// containing a given index is a single root-to-leaf walk instead of a scan
// of all jumps — the widening worklist below queries it once per drained
// record.
type intervalTree struct {
	lo, hi      int
	left, right *intervalTree
	spanning    []*jumpInterval
}

func newIntervalTree(lo, hi int) *intervalTree {
	t := &intervalTree{lo: lo, hi: hi}
	if lo < hi {
		mid := lo + (hi-lo)/2
		t.left = newIntervalTree(lo, mid)
		t.right = newIntervalTree(mid+1, hi)
	}
	return t
}

func (t *intervalTree) insert(j *jumpInterval) {
	if j.rangeEnd < t.lo || j.rangeStart > t.hi {
		return
	}
	if j.rangeStart <= t.lo && t.hi <= j.rangeEnd {
		t.spanning = append(t.spanning, j)
		return
	}
	t.left.insert(j)
	t.right.insert(j)
}

// intervalsContaining calls visit for every inserted interval whose range
// contains idx.
func (t *intervalTree) intervalsContaining(idx int, visit func(*jumpInterval)) {
	if idx < t.lo || idx > t.hi {
		return
	}
	for _, j := range t.spanning {
		visit(j)
	}
	if t.left == nil {
		return
	}
	if idx <= t.left.hi {
		t.left.intervalsContaining(idx, visit)
	} else {
		t.right.intervalsContaining(idx, visit)
	}
}

// WidenOversizedJumps detects 16-bit relative jumps that fall outside
// [-32768, 32767] once real block offsets are known, and rewrites them to
// use a 32-bit offset instead.
//
// A plain `goto` grows in place: two `nop`s are appended to its block and
// its op becomes GotoW, four bytes added exactly where the jump itself
// lives. A conditional (`if`/`if_icmp`/`if_acmp`/`ifnull`) cannot grow in
// place — its encoding has no wide form — so its comparator is negated and
// its two destinations rerouted through two fresh trampoline blocks spliced
// in immediately after it: the negated compare now falls through into a
// `goto_w` to the original far target and jumps (8 bytes, well within the
// 16-bit form) over it to a short `goto` back to the original fallthrough.
// freshLabel allocates the two trampoline labels, one pair per rewritten
// conditional.
//
// Growing one jump can push a previously-fine jump whose range straddles
// the rewrite site over the 16-bit limit, so this runs to a fixed point: a
// worklist of oversized jumps, and for each one popped, every other
// still-undecided jump whose range contains that jump's start index is
// grown by the (4- or 8-byte) amount its own rewrite would add and
// re-queued if that tips it over. Every rewrite only removes jumps from
// further consideration or adds new ones with small fixed distances, so
// this always terminates.
func WidenOversizedJumps(order *[]insn.Label, blocks map[insn.Label]*ResolvedBlock, freshLabel func() insn.Label) {
	type position struct {
		index, offset int
	}
	positions := make(map[insn.Label]position, len(*order))
	offset := 0
	for i, lbl := range *order {
		positions[lbl] = position{i, offset}
		offset += blocks[lbl].Width()
	}

	var rewritable []*jumpInterval
	for _, lbl := range *order {
		bb := blocks[lbl]
		if !bb.BranchEnd.IsRegularJump() {
			continue
		}
		targets := bb.BranchEnd.JumpTargets()
		if len(targets) != 1 {
			continue
		}
		target := targets[0]

		fromPos := positions[lbl]
		fromIndex := fromPos.index + 1
		fromOffset := fromPos.offset + instructionsWidth(bb.Instructions)
		toPos := positions[target]

		distance := toPos.offset - fromOffset
		isForward := fromIndex <= toPos.index
		rangeStart, rangeEnd := toPos.index, fromIndex
		if isForward {
			rangeStart, rangeEnd = fromIndex, toPos.index
		}

		rewritable = append(rewritable, &jumpInterval{
			fromBlock:  lbl,
			rangeStart: rangeStart,
			rangeEnd:   rangeEnd,
			isGoto:     bb.BranchEnd.Op == insn.Goto,
			isForward:  isForward,
			distance:   distance,
		})
	}

	// Deterministic interval order before the tree is built, so the worklist
	// (and with it trampoline label allocation) runs in the same order for
	// the same input.
	sort.Slice(rewritable, func(i, k int) bool {
		a, b := rewritable[i], rewritable[k]
		if a.rangeStart != b.rangeStart {
			return a.rangeStart < b.rangeStart
		}
		if a.rangeEnd != b.rangeEnd {
			return a.rangeEnd < b.rangeEnd
		}
		return a.fromBlock < b.fromBlock
	})

	var oversized []*jumpInterval
	knownOversized := make(map[insn.Label]bool)
	for _, j := range rewritable {
		if j.isOversized() {
			oversized = append(oversized, j)
			knownOversized[j.fromBlock] = true
		}
	}
	if len(oversized) == 0 {
		return
	}

	tree := newIntervalTree(0, len(*order))
	for _, j := range rewritable {
		tree.insert(j)
	}

	widenGoto := make(map[insn.Label]bool)
	widenBranch := make(map[insn.Label][2]insn.Label)

	for len(oversized) > 0 {
		j := oversized[len(oversized)-1]
		oversized = oversized[:len(oversized)-1]

		if j.isGoto {
			widenGoto[j.fromBlock] = true
		} else {
			widenBranch[j.fromBlock] = [2]insn.Label{freshLabel(), freshLabel()}
		}

		tree.intervalsContaining(j.startIndex(), func(other *jumpInterval) {
			if knownOversized[other.fromBlock] {
				return
			}

			bytesAdded := 8
			if other.isGoto {
				bytesAdded = 4
			}
			if other.lengthen(bytesAdded) {
				knownOversized[other.fromBlock] = true
				oversized = append(oversized, other)
			}
		})
	}

	newOrder := make([]insn.Label, 0, len(*order)+2*len(widenBranch))
	for _, lbl := range *order {
		newOrder = append(newOrder, lbl)
		if extra, ok := widenBranch[lbl]; ok {
			newOrder = append(newOrder, extra[0], extra[1])
		}
	}

	for lbl := range widenGoto {
		bb := blocks[lbl]
		bb.Instructions = append(bb.Instructions,
			insn.ResolvedInstruction{Op: insn.Nop},
			insn.ResolvedInstruction{Op: insn.Nop})
		bb.BranchEnd = insn.BranchInstruction{Op: insn.GotoW, WideTarget: bb.BranchEnd.Target}
	}

	// The comparator is negated, so the two runtime outcomes swap which
	// encoded path they take: the case that used to jump far now falls
	// through — into the goto_w trampoline spliced directly after the block —
	// and the case that used to fall through now takes the (8-byte,
	// trivially short) conditional jump over it to a goto back to the
	// original fallthrough.
	for lbl, extra := range widenBranch {
		bb := blocks[lbl]
		farTramp, nextTramp := extra[0], extra[1]
		originalNext, originalTarget := bb.BranchEnd.Next, bb.BranchEnd.Target

		rewritten := bb.BranchEnd
		switch rewritten.Op {
		case insn.If, insn.IfICmp:
			rewritten.OrdCmp = rewritten.OrdCmp.Negate()
		case insn.IfACmp, insn.IfNull:
			rewritten.EqCmp = rewritten.EqCmp.Negate()
		}
		rewritten.Next = farTramp
		rewritten.Target = nextTramp
		bb.BranchEnd = rewritten

		blocks[farTramp] = &ResolvedBlock{
			Frame:     blocks[originalTarget].Frame,
			BranchEnd: insn.BranchInstruction{Op: insn.GotoW, WideTarget: originalTarget},
		}
		blocks[nextTramp] = &ResolvedBlock{
			Frame:     blocks[originalNext].Frame,
			BranchEnd: insn.BranchInstruction{Op: insn.Goto, Target: originalNext},
		}
	}

	*order = newOrder
}

func instructionsWidth(instructions []insn.ResolvedInstruction) int {
	w := 0
	for _, in := range instructions {
		w += in.Width()
	}
	return w
}
