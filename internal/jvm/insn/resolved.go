package insn

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/harpocrates/wasm2jar/internal/jvm/cpool"
	"github.com/harpocrates/wasm2jar/internal/jvm/desc"
)

// ResolvedInstruction is a straight-line instruction whose class, constant,
// field, method, and invoke-dynamic payloads have all been interned into a
// constant pool as cpool.Index values — the form the class serializer
// writes out. It is a defined type (not an alias) over
// the generic Instruction so that Width/Serialize, which only make sense
// once every payload is a concrete index, can be attached.
type ResolvedInstruction Instruction[cpool.Index, cpool.Index, cpool.Index, cpool.Index, cpool.Index]

// Width is the number of bytes this instruction occupies in the method's
// code array: load/store/iinc pick short, normal, or wide encodings from
// the index magnitude; ldc picks the 2-byte form if its index fits a u1.
func (i ResolvedInstruction) Width() int {
	switch i.Op {
	case IKill, LKill, FKill, DKill, AKill, AHint:
		return 0

	case Nop, AConstNull, IConst, LConst, FConst, DConst,
		IALoad, LALoad, FALoad, DALoad, AALoad, BALoad, CALoad, SALoad,
		IAStore, LAStore, FAStore, DAStore, AAStore, BAStore, CAStore, SAStore,
		Pop, Pop2, Dup, DupX1, DupX2, Dup2, Dup2X1, Dup2X2, Swap,
		IAdd, LAdd, FAdd, DAdd, ISub, LSub, FSub, DSub, IMul, LMul, FMul, DMul,
		IDiv, LDiv, FDiv, DDiv, IRem, LRem, FRem, DRem, INeg, LNeg, FNeg, DNeg,
		IAnd, LAnd, IOr, LOr, IXor, LXor,
		I2L, I2F, I2D, L2I, L2F, L2D, F2I, F2L, F2D, D2I, D2L, D2F, I2B, I2C, I2S,
		LCmp, FCmp, DCmp, ArrayLength:
		return 1

	case ILoad, LLoad, FLoad, DLoad, ALoad, IStore, LStore, FStore, DStore, AStore:
		return loadStoreWidth(i.VarIndex)

	case BiPush:
		return 2
	case SiPush:
		return 3
	case Ldc:
		if i.ConstVal <= 0xff {
			return 2
		}
		return 3
	case Ldc2:
		return 3
	case ISh, LSh:
		return 1
	case IInc:
		if i.VarIndex <= 0xff && i.IntImm >= -128 && i.IntImm <= 127 {
			return 3
		}
		return 6
	case GetStatic, PutStatic, GetField, PutField:
		return 3
	case Invoke:
		if i.InvokeKind.Interface {
			return 5
		}
		return 3
	case InvokeDynamic:
		return 5
	case New, ANewArray, CheckCast, InstanceOf:
		return 3
	case NewArray:
		return 2
	default:
		panic(fmt.Sprintf("insn: unhandled Op %d in Width", i.Op))
	}
}

func loadStoreWidth(idx uint16) int {
	switch {
	case idx <= 3:
		return 1
	case idx <= 0xff:
		return 2
	default:
		return 4
	}
}

// Serialize writes this instruction's opcode and operands following the
// JVM opcode table exactly (JVMS 6.5).
func (i ResolvedInstruction) Serialize(w io.Writer) error {
	bw := byteWriter{w: w}
	switch i.Op {
	case Nop:
		bw.u8(0x00)
	case AConstNull:
		bw.u8(0x01)
	case IConst:
		// 0x03 + IntImm covers iconst_0..iconst_5 directly, and also
		// iconst_m1 (0x02) when IntImm == -1.
		bw.u8(byte(0x03 + i.IntImm))
	case LConst:
		bw.u8(byte(0x09 + i.IntImm))
	case FConst:
		bw.u8(byte(0x0b + i.IntImm))
	case DConst:
		bw.u8(byte(0x0e + i.IntImm))
	case BiPush:
		bw.u8(0x10)
		bw.i8(int8(i.IntImm))
	case SiPush:
		bw.u8(0x11)
		bw.i16(int16(i.IntImm))
	case Ldc:
		if i.ConstVal <= 0xff {
			bw.u8(0x12)
			bw.u8(byte(i.ConstVal))
		} else {
			bw.u8(0x13)
			bw.u16(uint16(i.ConstVal))
		}
	case Ldc2:
		bw.u8(0x14)
		bw.u16(uint16(i.ConstVal))
	case ILoad:
		bw.loadStore(i.VarIndex, 0x1a, 0x15, 0xc4)
	case LLoad:
		bw.loadStore(i.VarIndex, 0x1e, 0x16, 0xc4)
	case FLoad:
		bw.loadStore(i.VarIndex, 0x22, 0x17, 0xc4)
	case DLoad:
		bw.loadStore(i.VarIndex, 0x26, 0x18, 0xc4)
	case ALoad:
		bw.loadStore(i.VarIndex, 0x2a, 0x19, 0xc4)
	case IALoad:
		bw.u8(0x2e)
	case LALoad:
		bw.u8(0x2f)
	case FALoad:
		bw.u8(0x30)
	case DALoad:
		bw.u8(0x31)
	case AALoad:
		bw.u8(0x32)
	case BALoad:
		bw.u8(0x33)
	case CALoad:
		bw.u8(0x34)
	case SALoad:
		bw.u8(0x35)
	case IStore:
		bw.loadStore(i.VarIndex, 0x3b, 0x36, 0xc4)
	case LStore:
		bw.loadStore(i.VarIndex, 0x3f, 0x37, 0xc4)
	case FStore:
		bw.loadStore(i.VarIndex, 0x43, 0x38, 0xc4)
	case DStore:
		bw.loadStore(i.VarIndex, 0x47, 0x39, 0xc4)
	case AStore:
		bw.loadStore(i.VarIndex, 0x4b, 0x3a, 0xc4)
	case IKill, LKill, FKill, DKill, AKill, AHint:
		// emits nothing
	case IAStore:
		bw.u8(0x4f)
	case LAStore:
		bw.u8(0x50)
	case FAStore:
		bw.u8(0x51)
	case DAStore:
		bw.u8(0x52)
	case AAStore:
		bw.u8(0x53)
	case BAStore:
		bw.u8(0x54)
	case CAStore:
		bw.u8(0x55)
	case SAStore:
		bw.u8(0x56)
	case Pop:
		bw.u8(0x57)
	case Pop2:
		bw.u8(0x58)
	case Dup:
		bw.u8(0x59)
	case DupX1:
		bw.u8(0x5a)
	case DupX2:
		bw.u8(0x5b)
	case Dup2:
		bw.u8(0x5c)
	case Dup2X1:
		bw.u8(0x5d)
	case Dup2X2:
		bw.u8(0x5e)
	case Swap:
		bw.u8(0x5f)
	case IAdd:
		bw.u8(0x60)
	case LAdd:
		bw.u8(0x61)
	case FAdd:
		bw.u8(0x62)
	case DAdd:
		bw.u8(0x63)
	case ISub:
		bw.u8(0x64)
	case LSub:
		bw.u8(0x65)
	case FSub:
		bw.u8(0x66)
	case DSub:
		bw.u8(0x67)
	case IMul:
		bw.u8(0x68)
	case LMul:
		bw.u8(0x69)
	case FMul:
		bw.u8(0x6a)
	case DMul:
		bw.u8(0x6b)
	case IDiv:
		bw.u8(0x6c)
	case LDiv:
		bw.u8(0x6d)
	case FDiv:
		bw.u8(0x6e)
	case DDiv:
		bw.u8(0x6f)
	case IRem:
		bw.u8(0x70)
	case LRem:
		bw.u8(0x71)
	case FRem:
		bw.u8(0x72)
	case DRem:
		bw.u8(0x73)
	case INeg:
		bw.u8(0x74)
	case LNeg:
		bw.u8(0x75)
	case FNeg:
		bw.u8(0x76)
	case DNeg:
		bw.u8(0x77)
	case ISh:
		bw.u8(shiftOpcode(i.ShiftVal, 0x78, 0x7a, 0x7c))
	case LSh:
		bw.u8(shiftOpcode(i.ShiftVal, 0x79, 0x7b, 0x7d))
	case IAnd:
		bw.u8(0x7e)
	case LAnd:
		bw.u8(0x7f)
	case IOr:
		bw.u8(0x80)
	case LOr:
		bw.u8(0x81)
	case IXor:
		bw.u8(0x82)
	case LXor:
		bw.u8(0x83)
	case IInc:
		if i.VarIndex <= 0xff && i.IntImm >= -128 && i.IntImm <= 127 {
			bw.u8(0x84)
			bw.u8(byte(i.VarIndex))
			bw.i8(int8(i.IntImm))
		} else {
			bw.u8(0xc4)
			bw.u8(0x84)
			bw.u16(i.VarIndex)
			bw.i16(int16(i.IntImm))
		}
	case I2L:
		bw.u8(0x85)
	case I2F:
		bw.u8(0x86)
	case I2D:
		bw.u8(0x87)
	case L2I:
		bw.u8(0x88)
	case L2F:
		bw.u8(0x89)
	case L2D:
		bw.u8(0x8a)
	case F2I:
		bw.u8(0x8b)
	case F2L:
		bw.u8(0x8c)
	case F2D:
		bw.u8(0x8d)
	case D2I:
		bw.u8(0x8e)
	case D2L:
		bw.u8(0x8f)
	case D2F:
		bw.u8(0x90)
	case I2B:
		bw.u8(0x91)
	case I2C:
		bw.u8(0x92)
	case I2S:
		bw.u8(0x93)
	case LCmp:
		bw.u8(0x94)
	case FCmp:
		if i.FCmpVal == CompareL {
			bw.u8(0x95)
		} else {
			bw.u8(0x96)
		}
	case DCmp:
		if i.DCmpVal == CompareL {
			bw.u8(0x97)
		} else {
			bw.u8(0x98)
		}
	case GetStatic:
		bw.u8(0xb2)
		bw.u16(uint16(i.FieldVal))
	case PutStatic:
		bw.u8(0xb3)
		bw.u16(uint16(i.FieldVal))
	case GetField:
		bw.u8(0xb4)
		bw.u16(uint16(i.FieldVal))
	case PutField:
		bw.u8(0xb5)
		bw.u16(uint16(i.FieldVal))
	case Invoke:
		switch {
		case i.InvokeKind.Virtual:
			bw.u8(0xb6)
			bw.u16(uint16(i.MethodVal))
		case i.InvokeKind.Special:
			bw.u8(0xb7)
			bw.u16(uint16(i.MethodVal))
		case i.InvokeKind.Static:
			bw.u8(0xb8)
			bw.u16(uint16(i.MethodVal))
		case i.InvokeKind.Interface:
			bw.u8(0xb9)
			bw.u16(uint16(i.MethodVal))
			bw.u8(i.InvokeKind.InterfaceArgsWidth)
			bw.u8(0)
		default:
			return fmt.Errorf("insn: Invoke instruction with no dispatch kind set")
		}
	case InvokeDynamic:
		bw.u8(0xba)
		bw.u16(uint16(i.IndyVal))
		bw.u16(0)
	case New:
		bw.u8(0xbb)
		bw.u16(uint16(i.ClassVal))
	case NewArray:
		bw.u8(0xbc)
		bw.u8(newArrayAtype(i.BaseTypeVal))
	case ANewArray:
		bw.u8(0xbd)
		bw.u16(uint16(i.ClassVal))
	case ArrayLength:
		bw.u8(0xbe)
	case CheckCast:
		bw.u8(0xc0)
		bw.u16(uint16(i.ClassVal))
	case InstanceOf:
		bw.u8(0xc1)
		bw.u16(uint16(i.ClassVal))
	default:
		return fmt.Errorf("insn: unhandled Op %d in Serialize", i.Op)
	}
	return bw.err
}

func shiftOpcode(s ShiftType, left, arith, logical byte) byte {
	switch s {
	case ShiftLeft:
		return left
	case ShiftArithmeticRight:
		return arith
	default:
		return logical
	}
}

func newArrayAtype(b desc.BaseType) byte {
	switch b {
	case desc.Boolean:
		return 4
	case desc.Char:
		return 5
	case desc.Float:
		return 6
	case desc.Double:
		return 7
	case desc.Byte:
		return 8
	case desc.Short:
		return 9
	case desc.Int:
		return 10
	case desc.Long:
		return 11
	default:
		panic("newarray of a non-primitive base type")
	}
}

// byteWriter is a small helper collapsing the error-checking boilerplate of
// writing individual opcode/operand fields.
type byteWriter struct {
	w   io.Writer
	err error
}

func (b *byteWriter) u8(v byte) {
	if b.err != nil {
		return
	}
	_, b.err = b.w.Write([]byte{v})
}

func (b *byteWriter) i8(v int8) { b.u8(byte(v)) }

func (b *byteWriter) u16(v uint16) {
	if b.err != nil {
		return
	}
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	_, b.err = b.w.Write(buf[:])
}

func (b *byteWriter) i16(v int16) { b.u16(uint16(v)) }

func (b *byteWriter) loadStore(idx uint16, shortBase, normalOp, wideOp byte) {
	switch {
	case idx <= 3:
		b.u8(shortBase + byte(idx))
	case idx <= 0xff:
		b.u8(normalOp)
		b.u8(byte(idx))
	default:
		b.u8(wideOp)
		b.u8(normalOp)
		b.u16(idx)
	}
}
