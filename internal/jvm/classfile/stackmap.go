package classfile

import (
	"bytes"
	"fmt"

	"github.com/harpocrates/wasm2jar/internal/jvm/code"
	"github.com/harpocrates/wasm2jar/internal/jvm/cpool"
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
	"github.com/harpocrates/wasm2jar/internal/jvm/verify"
)

// buildStackMapTable emits one StackMapTable frame per block that the JVM
// verifier cannot reach by straight-line fallthrough: the target of any
// jump edge, and any block whose layout predecessor ends
// in a branch that never falls through (goto/goto_w, a switch, a return, or
// athrow — dead-code entry points included, since the verifier types those
// too and needs a frame to start from). The entry block's frame is implicit
// in the method descriptor and never gets an entry of its own; blocks only
// ever reached by falling off the previous block need none either.
func buildStackMapTable(
	pool *cpool.Pool,
	order []insn.Label,
	blocks map[insn.Label]*code.ResolvedBlock,
	blockOffsets map[insn.Label]int,
) ([]byte, int, error) {
	if len(order) == 0 {
		return nil, 0, nil
	}

	jumpTargets := make(map[insn.Label]bool)
	for _, lbl := range order {
		for _, target := range blocks[lbl].BranchEnd.JumpTargets() {
			jumpTargets[target] = true
		}
	}

	buf := new(bytes.Buffer)
	frameCount := 0
	prevOffset := -1
	prevLocals := blocks[order[0]].Frame.LocalsList()

	for i, lbl := range order[1:] {
		bb := blocks[lbl]
		if _, prevFallsThrough := blocks[order[i]].BranchEnd.FallthroughTarget(); prevFallsThrough && !jumpTargets[lbl] {
			continue
		}
		offset, ok := blockOffsets[lbl]
		if !ok {
			return nil, 0, fmt.Errorf("classfile: BUG: block %d missing from layout", lbl)
		}
		delta := offset - prevOffset - 1

		curLocals := bb.Frame.LocalsList()
		curStack := bb.Frame.StackList()

		body, err := buildFrame(pool, blocks, blockOffsets, delta, prevLocals, curLocals, curStack)
		if err != nil {
			return nil, 0, err
		}
		buf.Write(body)
		frameCount++

		prevOffset = offset
		prevLocals = curLocals
	}

	return buf.Bytes(), frameCount, nil
}

func buildFrame(
	pool *cpool.Pool,
	blocks map[insn.Label]*code.ResolvedBlock,
	blockOffsets map[insn.Label]int,
	delta int,
	prevLocals, curLocals []verify.VerificationType,
	curStack []verify.VerificationType,
) ([]byte, error) {
	commonLen := 0
	for commonLen < len(prevLocals) && commonLen < len(curLocals) && prevLocals[commonLen] == curLocals[commonLen] {
		commonLen++
	}
	prefixMatches := commonLen == len(prevLocals) || commonLen == len(curLocals)

	switch {
	case prefixMatches && len(curLocals) == len(prevLocals) && len(curStack) == 0:
		return writeSameFrame(delta), nil

	case prefixMatches && len(curLocals) == len(prevLocals) && len(curStack) == 1:
		return writeSameLocals1Frame(pool, blocks, blockOffsets, delta, curStack[0])

	case prefixMatches && len(curLocals) < len(prevLocals) && len(curStack) == 0 && len(prevLocals)-len(curLocals) <= 3:
		return writeChopFrame(delta, len(prevLocals)-len(curLocals)), nil

	case prefixMatches && len(curLocals) > len(prevLocals) && len(curStack) == 0 && len(curLocals)-len(prevLocals) <= 3:
		return writeAppendFrame(pool, blocks, blockOffsets, delta, curLocals[len(prevLocals):])

	default:
		return writeFullFrame(pool, blocks, blockOffsets, delta, curLocals, curStack)
	}
}

func writeSameFrame(delta int) []byte {
	buf := new(bytes.Buffer)
	if delta <= 63 {
		buf.WriteByte(byte(delta))
	} else {
		buf.WriteByte(251)
		writeU16(buf, uint16(delta))
	}
	return buf.Bytes()
}

func writeSameLocals1Frame(pool *cpool.Pool, blocks map[insn.Label]*code.ResolvedBlock, blockOffsets map[insn.Label]int, delta int, stackTop verify.VerificationType) ([]byte, error) {
	vt, err := serializeVerificationType(pool, stackTop, blocks, blockOffsets)
	if err != nil {
		return nil, err
	}
	buf := new(bytes.Buffer)
	if delta <= 63 {
		buf.WriteByte(byte(64 + delta))
	} else {
		buf.WriteByte(247)
		writeU16(buf, uint16(delta))
	}
	buf.Write(vt)
	return buf.Bytes(), nil
}

func writeChopFrame(delta, k int) []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(251 - k))
	writeU16(buf, uint16(delta))
	return buf.Bytes()
}

func writeAppendFrame(pool *cpool.Pool, blocks map[insn.Label]*code.ResolvedBlock, blockOffsets map[insn.Label]int, delta int, added []verify.VerificationType) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(byte(251 + len(added)))
	writeU16(buf, uint16(delta))
	for _, v := range added {
		vt, err := serializeVerificationType(pool, v, blocks, blockOffsets)
		if err != nil {
			return nil, err
		}
		buf.Write(vt)
	}
	return buf.Bytes(), nil
}

func writeFullFrame(pool *cpool.Pool, blocks map[insn.Label]*code.ResolvedBlock, blockOffsets map[insn.Label]int, delta int, locals, stack []verify.VerificationType) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(255)
	writeU16(buf, uint16(delta))
	writeU16(buf, uint16(len(locals)))
	for _, v := range locals {
		vt, err := serializeVerificationType(pool, v, blocks, blockOffsets)
		if err != nil {
			return nil, err
		}
		buf.Write(vt)
	}
	writeU16(buf, uint16(len(stack)))
	for _, v := range stack {
		vt, err := serializeVerificationType(pool, v, blocks, blockOffsets)
		if err != nil {
			return nil, err
		}
		buf.Write(vt)
	}
	return buf.Bytes(), nil
}
