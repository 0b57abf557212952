package classfile

import (
	"bytes"
	"fmt"

	"github.com/harpocrates/wasm2jar/internal/jvm/code"
	"github.com/harpocrates/wasm2jar/internal/jvm/cpool"
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
	"github.com/harpocrates/wasm2jar/internal/jvm/verify"
)

// Verification type tag bytes a StackMapTable frame's locals/stack entries
// are written with (JVMS 4.7.4).
const (
	vtTopTag               byte = 0
	vtIntegerTag           byte = 1
	vtFloatTag             byte = 2
	vtDoubleTag            byte = 3
	vtLongTag              byte = 4
	vtNullTag              byte = 5
	vtUninitializedThisTag byte = 6
	vtObjectTag            byte = 7
	vtUninitializedTag     byte = 8
)

// newInstructionByteOffset turns a NewSite (block label plus instruction
// index within that block) into the absolute bytecode offset the
// Uninitialized verification type tag carries: the sum of every earlier
// resolved instruction's width in that block, plus the block's own offset
// from the finished layout.
func newInstructionByteOffset(blocks map[insn.Label]*code.ResolvedBlock, blockOffsets map[insn.Label]int, block uint32, instrIndex int) (int, error) {
	lbl := insn.Label(block)
	bb, ok := blocks[lbl]
	if !ok {
		return 0, fmt.Errorf("classfile: BUG: uninitialized site references unknown block %d", block)
	}
	if instrIndex > len(bb.Instructions) {
		return 0, fmt.Errorf("classfile: BUG: uninitialized site offset %d beyond block %d's %d instructions", instrIndex, block, len(bb.Instructions))
	}
	w := 0
	for _, in := range bb.Instructions[:instrIndex] {
		w += in.Width()
	}
	return blockOffsets[lbl] + w, nil
}

// serializeVerificationType writes one locals/stack entry of a StackMapTable
// frame (JVMS 4.7.4's verification_type_info).
func serializeVerificationType(
	pool *cpool.Pool,
	v verify.VerificationType,
	blocks map[insn.Label]*code.ResolvedBlock,
	blockOffsets map[insn.Label]int,
) ([]byte, error) {
	buf := new(bytes.Buffer)
	switch v.Kind() {
	case verify.Integer:
		buf.WriteByte(vtIntegerTag)
	case verify.Float:
		buf.WriteByte(vtFloatTag)
	case verify.Double:
		buf.WriteByte(vtDoubleTag)
	case verify.Long:
		buf.WriteByte(vtLongTag)
	case verify.Null:
		buf.WriteByte(vtNullTag)
	case verify.UninitializedThis:
		buf.WriteByte(vtUninitializedThisTag)
	case verify.Object:
		buf.WriteByte(vtObjectTag)
		idx, err := pool.GetClass(v.Ref())
		if err != nil {
			return nil, err
		}
		writeU16(buf, uint16(idx))
	case verify.Uninitialized:
		buf.WriteByte(vtUninitializedTag)
		site, _ := v.Site()
		off, err := newInstructionByteOffset(blocks, blockOffsets, site.Block, site.Offset)
		if err != nil {
			return nil, err
		}
		writeU16(buf, uint16(off))
	default:
		return nil, fmt.Errorf("classfile: unhandled verification type kind %v", v.Kind())
	}
	return buf.Bytes(), nil
}
