package insn

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Label is an opaque block identifier allocated by the code builder's
// FreshLabel. It is carried by BranchInstruction from construction all the
// way through the jump-widening pass; only the class serializer ever turns
// one into a byte offset.
type Label uint32

// BranchOp is the logical form of a block-terminating instruction. As with
// straight-line Op, several opcodes collapse into one (If covers ifeq..ifle,
// IfICmp covers if_icmpeq..if_icmple).
type BranchOp byte

const (
	If BranchOp = iota // OrdCmp
	IfICmp
	IfACmp // EqCmp
	Goto
	GotoW
	TableSwitch
	LookupSwitch
	IReturn
	LReturn
	FReturn
	DReturn
	AReturn
	Return
	AThrow
	IfNull // EqCmp
	// FallThrough is a synthetic marker for a block that ends without any
	// jump, making every block's terminator explicit.
	FallThrough
)

// BranchInstruction is the block-terminating counterpart of Instruction.
// Unlike straight-line instructions, none of its opcodes have a width that
// depends on a resolved numeric value (switch width depends only on entry
// count and padding), so it needs no generic payload parameter: one Label
// type suffices from construction through widening, and only Serialize
// needs actual byte offsets.
type BranchInstruction struct {
	Op BranchOp

	OrdCmp OrdComparison // If, IfICmp
	EqCmp  EqComparison  // IfACmp, IfNull

	// Target is the non-fallthrough jump target for If/IfICmp/IfACmp/Goto/
	// IfNull. Next is the fallthrough continuation for the conditional forms
	// and for the synthetic FallThrough marker.
	Target Label
	Next   Label

	// GotoW's single target.
	WideTarget Label

	// TableSwitch/LookupSwitch payload.
	Padding uint8
	Default Label
	Low     int32   // TableSwitch only
	Targets []Label // TableSwitch: dense, indexed by value-Low. LookupSwitch: parallel to Keys.
	Keys    []int32 // LookupSwitch only, ascending
}

// FallthroughTarget returns the implicit next-block label when this branch
// can fall through (conditional branches, null compares, and the synthetic
// FallThrough marker).
func (b BranchInstruction) FallthroughTarget() (Label, bool) {
	switch b.Op {
	case If, IfICmp, IfACmp, IfNull, FallThrough:
		return b.Next, true
	default:
		return 0, false
	}
}

// JumpTargets returns every non-fallthrough target this branch can jump to:
// none, one regular target, one wide target, or many wide targets (switches).
func (b BranchInstruction) JumpTargets() []Label {
	switch b.Op {
	case If, IfICmp, IfACmp, IfNull:
		return []Label{b.Target}
	case Goto:
		return []Label{b.Target}
	case GotoW:
		return []Label{b.WideTarget}
	case TableSwitch, LookupSwitch:
		ts := make([]Label, 0, len(b.Targets)+1)
		ts = append(ts, b.Default)
		ts = append(ts, b.Targets...)
		return ts
	default:
		return nil
	}
}

// IsRegularJump reports whether this branch's primary target (from
// JumpTargets) is encoded as a 16-bit relative offset rather than a 32-bit
// one — the distinction the jump-widening pass cares about.
func (b BranchInstruction) IsRegularJump() bool {
	switch b.Op {
	case If, IfICmp, IfACmp, IfNull, Goto:
		return true
	default:
		return false
	}
}

// MapLabels rewrites every label this branch carries.
func (b BranchInstruction) MapLabels(f func(Label) Label) BranchInstruction {
	out := b
	out.Target = f(b.Target)
	out.Next = f(b.Next)
	out.WideTarget = f(b.WideTarget)
	out.Default = f(b.Default)
	if b.Targets != nil {
		out.Targets = make([]Label, len(b.Targets))
		for i, t := range b.Targets {
			out.Targets[i] = f(t)
		}
	}
	return out
}

// Width is the number of bytes this branch occupies in the method's code
// array.
func (b BranchInstruction) Width() int {
	switch b.Op {
	case FallThrough:
		return 0
	case IReturn, LReturn, FReturn, DReturn, AReturn, Return, AThrow:
		return 1
	case Goto, If, IfICmp, IfACmp, IfNull:
		return 3
	case GotoW:
		return 5
	case TableSwitch:
		return 1 + int(b.Padding) + 4*(3+len(b.Targets))
	case LookupSwitch:
		return 1 + int(b.Padding) + 8*(1+len(b.Targets))
	default:
		panic(fmt.Sprintf("insn: unhandled BranchOp %d in Width", b.Op))
	}
}

// Offsets carries the final, resolved relative byte offsets for one
// branch's targets, computed by the class serializer from the finished
// block layout. Regular is the 16-bit offset used
// by If/IfICmp/IfACmp/IfNull/Goto; Wide is the 32-bit offset used by GotoW
// and by switch default/targets.
type Offsets struct {
	Regular int16
	Wide    int32
	Targets []int32 // parallel to BranchInstruction.Targets, for switches
}

// Serialize writes this branch's opcode and operands, given the already
// resolved offsets for its targets.
func (b BranchInstruction) Serialize(w io.Writer, off Offsets) error {
	bw := byteWriter{w: w}
	switch b.Op {
	case If:
		bw.u8(ordOpcode(b.OrdCmp, 0x99, 0x9a, 0x9b, 0x9c, 0x9d, 0x9e))
		bw.i16(off.Regular)
	case IfICmp:
		bw.u8(ordOpcode(b.OrdCmp, 0x9f, 0xa0, 0xa1, 0xa2, 0xa3, 0xa4))
		bw.i16(off.Regular)
	case IfACmp:
		if b.EqCmp == EqEQ {
			bw.u8(0xa5)
		} else {
			bw.u8(0xa6)
		}
		bw.i16(off.Regular)
	case Goto:
		bw.u8(0xa7)
		bw.i16(off.Regular)
	case GotoW:
		bw.u8(0xc8)
		bw.i32(off.Wide)
	case TableSwitch:
		bw.u8(0xaa)
		for n := 0; n < int(b.Padding); n++ {
			bw.u8(0)
		}
		bw.i32(off.Wide)
		bw.i32(b.Low)
		bw.i32(b.Low + int32(len(b.Targets)) - 1)
		for _, t := range off.Targets {
			bw.i32(t)
		}
	case LookupSwitch:
		bw.u8(0xab)
		for n := 0; n < int(b.Padding); n++ {
			bw.u8(0)
		}
		bw.i32(off.Wide)
		bw.i32(int32(len(b.Keys)))
		for i, k := range b.Keys {
			bw.i32(k)
			bw.i32(off.Targets[i])
		}
	case IReturn:
		bw.u8(0xac)
	case LReturn:
		bw.u8(0xad)
	case FReturn:
		bw.u8(0xae)
	case DReturn:
		bw.u8(0xaf)
	case AReturn:
		bw.u8(0xb0)
	case Return:
		bw.u8(0xb1)
	case AThrow:
		bw.u8(0xbf)
	case IfNull:
		if b.EqCmp == EqEQ {
			bw.u8(0xc6)
		} else {
			bw.u8(0xc7)
		}
		bw.i16(off.Regular)
	case FallThrough:
		// emits nothing
	default:
		return fmt.Errorf("insn: unhandled BranchOp %d in Serialize", b.Op)
	}
	return bw.err
}

func ordOpcode(c OrdComparison, eq, ne, lt, ge, gt, le byte) byte {
	switch c {
	case CmpEQ:
		return eq
	case CmpNE:
		return ne
	case CmpLT:
		return lt
	case CmpGE:
		return ge
	case CmpGT:
		return gt
	default:
		return le
	}
}

func (b *byteWriter) i32(v int32) {
	if b.err != nil {
		return
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(v))
	_, b.err = b.w.Write(buf[:])
}
