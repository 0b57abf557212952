package code

import (
	"github.com/harpocrates/wasm2jar/internal/jvm/cpool"
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
	"github.com/harpocrates/wasm2jar/internal/jvm/verify"
)

// ResolvedBlock is a BasicBlock whose instructions have had every class,
// constant, field, method, and invoke-dynamic payload interned into a
// constant pool — the form jump widening and the class serializer both
// work on.
type ResolvedBlock struct {
	Frame        verify.Frame
	Instructions []insn.ResolvedInstruction
	BranchEnd    insn.BranchInstruction
}

// Width is the number of bytes this block occupies in the method's code
// array: its straight-line instructions plus its closing branch.
func (b *ResolvedBlock) Width() int {
	w := 0
	for _, in := range b.Instructions {
		w += in.Width()
	}
	return w + b.BranchEnd.Width()
}

// Resolve interns every block's instructions into pool, producing the
// resolved block map jump widening and serialization consume. The returned
// order is a copy of c.BlockOrder safe for WidenOversizedJumps to mutate.
func Resolve(pool *cpool.Pool, c *Code) (map[insn.Label]*ResolvedBlock, []insn.Label, error) {
	blocks := make(map[insn.Label]*ResolvedBlock, len(c.Blocks))
	for label, bb := range c.Blocks {
		instructions := make([]insn.ResolvedInstruction, len(bb.Instructions))
		for i, in := range bb.Instructions {
			r, err := insn.Resolve(pool, in)
			if err != nil {
				return nil, nil, err
			}
			instructions[i] = r
		}
		blocks[label] = &ResolvedBlock{
			Frame:        bb.Frame,
			Instructions: instructions,
			BranchEnd:    bb.BranchEnd,
		}
	}
	order := append([]insn.Label(nil), c.BlockOrder...)
	return blocks, order, nil
}
