package insn

import (
	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/desc"
)

// Constant is the front-end-facing payload of Ldc/Ldc2: a literal value, or
// a reference that must be resolved against the class graph before it can
// become a constant-pool index. It is the unresolved counterpart of a
// cpool.Index.
type Constant interface{ isConstant() }

type IntConstant int32
type LongConstant int64
type FloatConstant float32
type DoubleConstant float64
type StringConstant string
type ClassConstant struct{ Type classgraph.RefType }
type MethodTypeConstant struct{ Descriptor desc.MethodDescriptor }
type MethodHandleConstant struct {
	Kind   HandleKind
	Member Member
}

func (IntConstant) isConstant()          {}
func (LongConstant) isConstant()         {}
func (FloatConstant) isConstant()        {}
func (DoubleConstant) isConstant()       {}
func (StringConstant) isConstant()       {}
func (ClassConstant) isConstant()        {}
func (MethodTypeConstant) isConstant()   {}
func (MethodHandleConstant) isConstant() {}

// HandleKind mirrors cpool.HandleKind without requiring this package to
// import cpool for its own sake (insn is resolved *into* cpool, not the
// other way around).
type HandleKind byte

const (
	RefGetField HandleKind = iota + 1
	RefGetStatic
	RefPutField
	RefPutStatic
	RefInvokeVirtual
	RefInvokeStatic
	RefInvokeSpecial
	RefNewInvokeSpecial
	RefInvokeInterface
)

// Member is the field or method a MethodHandleConstant points at. Exactly
// one of Field/Method is non-nil.
type Member struct {
	Field  *classgraph.FieldData
	Method *classgraph.MethodData
}

// Indy is the unresolved payload of an InvokeDynamic instruction: the
// bootstrap method handle plus static arguments, and the call site's own
// name and descriptor (the part that becomes a NameAndType entry).
type Indy struct {
	Bootstrap     MethodHandleConstant
	BootstrapArgs []Constant
	Name          string
	Descriptor    desc.MethodDescriptor
}
