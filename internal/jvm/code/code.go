// Package code implements the frame-exact bytecode builder: a single-pass,
// block-at-a-time API that accumulates instructions into labeled basic
// blocks, runs the verifier's transfer function on every instruction as it
// is pushed, and refuses to close a jump onto a block whose already-recorded
// entry frame does not match exactly. It also houses the post-processing
// pass that rewrites jumps whose 16-bit offsets would overflow.
package code

import (
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
	"github.com/harpocrates/wasm2jar/internal/jvm/verify"
)

// BasicBlock is one finished block: the frame verified to hold on entry, the
// straight-line instructions run in order, and the branch that closes it.
// Every block in a finished Code ends in an explicit BranchInstruction —
// insn.FallThrough stands in for a block that simply runs into the next one.
type BasicBlock struct {
	Frame        verify.Frame
	Instructions []insn.UnresolvedInstruction
	BranchEnd    insn.BranchInstruction
}

// Code is the finished output of a Builder: every block the method's body
// was split into, the order blocks should be laid out in the final code
// array, and the max-locals/max-stack the verifier computed along the way.
type Code struct {
	MaxLocals  int
	MaxStack   int
	EntryLabel insn.Label
	Blocks     map[insn.Label]*BasicBlock
	BlockOrder []insn.Label

	// NextLabel is the first label the Builder never used, so jump widening
	// can keep allocating fresh trampoline labels after the builder is gone.
	NextLabel insn.Label
}
