package insn

import (
	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/desc"
)

// Instruction is a straight-line (non-branching) JVM instruction, generic
// over the representation of its class, constant, field, method, and
// invoke-dynamic payloads — see UnresolvedInstruction and
// ResolvedInstruction for the two instantiations this package uses. Only
// the fields relevant to Op are meaningful; this mirrors the flat-node
// shape described in op.go's doc comment.
type Instruction[Class, Const, Field, Method, Dyn any] struct {
	Op Op

	VarIndex uint16 // load/store/iinc/kill local index
	IntImm   int32  // bipush/sipush/iconst/lconst/fconst/dconst/iinc operand

	ConstVal Const
	FieldVal Field

	MethodVal  Method
	InvokeKind InvokeKind

	IndyVal Dyn

	ClassVal     Class
	BaseTypeVal  desc.BaseType
	ShiftVal     ShiftType
	FCmpVal      CompareMode
	DCmpVal      CompareMode
	ClassHint    classgraph.RefType // AHint payload; never resolved further
}

// Map rewrites an instruction's payloads via caller-supplied functions,
// short-circuiting on the first error. The class serializer uses it to turn
// unresolved (class-graph handle) instructions into resolved
// (constant-pool index) ones.
func Map[Class, Const, Field, Method, Dyn any, Class2, Const2, Field2, Method2, Dyn2 any](
	in Instruction[Class, Const, Field, Method, Dyn],
	mapClass func(Class) (Class2, error),
	mapConst func(Const) (Const2, error),
	mapField func(Field) (Field2, error),
	mapMethod func(Method) (Method2, error),
	mapDyn func(Dyn) (Dyn2, error),
) (Instruction[Class2, Const2, Field2, Method2, Dyn2], error) {
	out := Instruction[Class2, Const2, Field2, Method2, Dyn2]{
		Op:          in.Op,
		VarIndex:    in.VarIndex,
		IntImm:      in.IntImm,
		InvokeKind:  in.InvokeKind,
		BaseTypeVal: in.BaseTypeVal,
		ShiftVal:    in.ShiftVal,
		FCmpVal:     in.FCmpVal,
		DCmpVal:     in.DCmpVal,
		ClassHint:   in.ClassHint,
	}

	switch in.Op {
	case Ldc, Ldc2:
		c, err := mapConst(in.ConstVal)
		if err != nil {
			return out, err
		}
		out.ConstVal = c
	case GetStatic, PutStatic, GetField, PutField:
		f, err := mapField(in.FieldVal)
		if err != nil {
			return out, err
		}
		out.FieldVal = f
	case Invoke:
		m, err := mapMethod(in.MethodVal)
		if err != nil {
			return out, err
		}
		out.MethodVal = m
	case InvokeDynamic:
		d, err := mapDyn(in.IndyVal)
		if err != nil {
			return out, err
		}
		out.IndyVal = d
	case New, ANewArray, CheckCast, InstanceOf:
		c, err := mapClass(in.ClassVal)
		if err != nil {
			return out, err
		}
		out.ClassVal = c
	}
	return out, nil
}

// UnresolvedInstruction is the front-end-facing instruction shape: class
// payloads are class-graph reference types, field/method payloads are
// class-graph handles, and constant/invoke-dynamic payloads may still
// reference unresolved literals and handles.
type UnresolvedInstruction = Instruction[classgraph.RefType, Constant, *classgraph.FieldData, *classgraph.MethodData, Indy]
