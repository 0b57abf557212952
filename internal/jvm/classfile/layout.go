package classfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/harpocrates/wasm2jar/internal/jvm/code"
	"github.com/harpocrates/wasm2jar/internal/jvm/cpool"
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
	"github.com/harpocrates/wasm2jar/internal/jvm/modutf8"
)

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeAttribute(buf *bytes.Buffer, a cpool.Attribute) {
	writeU16(buf, uint16(a.NameIndex))
	writeU32(buf, uint32(len(a.Info)))
	buf.Write(a.Info)
}

func instructionsWidth(ins []insn.ResolvedInstruction) int {
	w := 0
	for _, i := range ins {
		w += i.Width()
	}
	return w
}

// computeSwitchPadding is the number of zero-padding bytes a
// tableswitch/lookupswitch needs so its first 4-byte-aligned operand (the
// default-offset word) starts on a multiple of 4 from the method body
// start, per JVMS 6.5 tableswitch/lookupswitch: opcodeOffset is the byte
// offset of the switch opcode itself.
func computeSwitchPadding(opcodeOffset int) uint8 {
	rem := (opcodeOffset + 1) % 4
	if rem == 0 {
		return 0
	}
	return uint8(4 - rem)
}

// assignLayout computes each block's byte offset from the method body
// start by a single forward scan over order, fixing up any switch's
// Padding field along the way. It returns the offset map and the total
// code length.
func assignLayout(order []insn.Label, blocks map[insn.Label]*code.ResolvedBlock) (map[insn.Label]int, int) {
	offsets := make(map[insn.Label]int, len(order))
	offset := 0
	for _, lbl := range order {
		bb := blocks[lbl]
		switch bb.BranchEnd.Op {
		case insn.TableSwitch, insn.LookupSwitch:
			switchOffset := offset + instructionsWidth(bb.Instructions)
			rewritten := bb.BranchEnd
			rewritten.Padding = computeSwitchPadding(switchOffset)
			bb.BranchEnd = rewritten
		}
		offsets[lbl] = offset
		offset += bb.Width()
	}
	return offsets, offset
}

// computeBranchOffsets translates lbl's closing branch targets into the
// signed relative offsets JVM branch instructions encode, now that every
// block's final byte offset is known.
func computeBranchOffsets(lbl insn.Label, bb *code.ResolvedBlock, offsets map[insn.Label]int) (insn.Offsets, error) {
	branchStart := offsets[lbl] + instructionsWidth(bb.Instructions)

	switch bb.BranchEnd.Op {
	case insn.If, insn.IfICmp, insn.IfACmp, insn.IfNull, insn.Goto:
		rel := offsets[bb.BranchEnd.Target] - branchStart
		if rel < math.MinInt16 || rel > math.MaxInt16 {
			return insn.Offsets{}, fmt.Errorf("classfile: BUG: jump from block %d still overflows a 16-bit offset (%d) after widening", lbl, rel)
		}
		return insn.Offsets{Regular: int16(rel)}, nil

	case insn.GotoW:
		rel := offsets[bb.BranchEnd.WideTarget] - branchStart
		return insn.Offsets{Wide: int32(rel)}, nil

	case insn.TableSwitch, insn.LookupSwitch:
		wide := int32(offsets[bb.BranchEnd.Default] - branchStart)
		targets := make([]int32, len(bb.BranchEnd.Targets))
		for i, t := range bb.BranchEnd.Targets {
			targets[i] = int32(offsets[t] - branchStart)
		}
		return insn.Offsets{Wide: wide, Targets: targets}, nil

	default:
		return insn.Offsets{}, nil
	}
}

func writeConstant(buf *bytes.Buffer, c cpool.Constant) error {
	switch v := c.(type) {
	case cpool.Utf8Constant:
		encoded := modutf8.Encode(v.Value)
		if len(encoded) > 0xFFFF {
			return fmt.Errorf("classfile: UTF-8 constant too long (%d bytes)", len(encoded))
		}
		buf.WriteByte(cpool.TagUtf8)
		writeU16(buf, uint16(len(encoded)))
		buf.Write(encoded)
	case cpool.ClassConstant:
		buf.WriteByte(cpool.TagClass)
		writeU16(buf, uint16(v.NameIndex))
	case cpool.NameAndTypeConstant:
		buf.WriteByte(cpool.TagNameAndType)
		writeU16(buf, uint16(v.NameIndex))
		writeU16(buf, uint16(v.DescriptorIndex))
	case cpool.FieldrefConstant:
		buf.WriteByte(cpool.TagFieldref)
		writeU16(buf, uint16(v.ClassIndex))
		writeU16(buf, uint16(v.NameAndTypeIndex))
	case cpool.MethodrefConstant:
		buf.WriteByte(cpool.TagMethodref)
		writeU16(buf, uint16(v.ClassIndex))
		writeU16(buf, uint16(v.NameAndTypeIndex))
	case cpool.InterfaceMethodrefConstant:
		buf.WriteByte(cpool.TagInterfaceMethodref)
		writeU16(buf, uint16(v.ClassIndex))
		writeU16(buf, uint16(v.NameAndTypeIndex))
	case cpool.StringConstant:
		buf.WriteByte(cpool.TagString)
		writeU16(buf, uint16(v.Utf8Index))
	case cpool.IntegerConstant:
		buf.WriteByte(cpool.TagInteger)
		writeU32(buf, uint32(v.Value))
	case cpool.FloatConstant:
		buf.WriteByte(cpool.TagFloat)
		writeU32(buf, math.Float32bits(v.Value))
	case cpool.LongConstant:
		buf.WriteByte(cpool.TagLong)
		writeU32(buf, uint32(uint64(v.Value)>>32))
		writeU32(buf, uint32(v.Value))
	case cpool.DoubleConstant:
		buf.WriteByte(cpool.TagDouble)
		bits := math.Float64bits(v.Value)
		writeU32(buf, uint32(bits>>32))
		writeU32(buf, uint32(bits))
	case cpool.MethodHandleConstant:
		buf.WriteByte(cpool.TagMethodHandle)
		buf.WriteByte(byte(v.Kind))
		writeU16(buf, uint16(v.RefIndex))
	case cpool.MethodTypeConstant:
		buf.WriteByte(cpool.TagMethodType)
		writeU16(buf, uint16(v.DescriptorIndex))
	case cpool.InvokeDynamicConstant:
		buf.WriteByte(cpool.TagInvokeDynamic)
		writeU16(buf, v.BootstrapMethodIndex)
		writeU16(buf, uint16(v.NameAndTypeIndex))
	default:
		return fmt.Errorf("classfile: unhandled constant pool entry type %T", c)
	}
	return nil
}
