package verify

import (
	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
)

// InterpretBranch runs the transfer function of a block-terminating
// instruction against f. returnType is the owning method's declared return
// type (nil for void), needed to check *return opcodes.
func (f *Frame) InterpretBranch(b insn.BranchInstruction, returnType *classgraph.FieldType) error {
	switch b.Op {
	case insn.If:
		return f.popExpectingType(VInteger())

	case insn.IfICmp:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		return f.popExpectingType(VInteger())

	case insn.IfACmp:
		v1, err := f.pop()
		if err != nil {
			return err
		}
		if !v1.IsReference() {
			return &Error{Kind: ErrInvalidType}
		}
		v2, err := f.pop()
		if err != nil {
			return err
		}
		if !v2.IsReference() {
			return &Error{Kind: ErrInvalidType}
		}

	case insn.Goto, insn.GotoW, insn.FallThrough:
		// no-op

	case insn.TableSwitch, insn.LookupSwitch:
		return f.popExpectingType(VInteger())

	case insn.IReturn:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if v.kind != Integer {
			return &Error{Kind: ErrReturnTypeMismatch}
		}
		if returnType == nil || returnType.IsRef() {
			return &Error{Kind: ErrReturnTypeMismatch}
		}

	case insn.LReturn:
		if err := f.popExpectingType(VLong()); err != nil {
			return &Error{Kind: ErrReturnTypeMismatch}
		}
		if returnType == nil || returnType.IsRef() {
			return &Error{Kind: ErrReturnTypeMismatch}
		}

	case insn.FReturn:
		if err := f.popExpectingType(VFloat()); err != nil {
			return &Error{Kind: ErrReturnTypeMismatch}
		}
		if returnType == nil || returnType.IsRef() {
			return &Error{Kind: ErrReturnTypeMismatch}
		}

	case insn.DReturn:
		if err := f.popExpectingType(VDouble()); err != nil {
			return &Error{Kind: ErrReturnTypeMismatch}
		}
		if returnType == nil || returnType.IsRef() {
			return &Error{Kind: ErrReturnTypeMismatch}
		}

	case insn.AReturn:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if returnType == nil || !returnType.IsRef() {
			return &Error{Kind: ErrReturnTypeMismatch}
		}
		if !IsAssignable(v, FromFieldType(*returnType)) {
			return &Error{Kind: ErrReturnTypeMismatch}
		}

	case insn.Return:
		if returnType != nil {
			return &Error{Kind: ErrReturnTypeMismatch}
		}

	case insn.AThrow:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if !isThrowable(v) {
			return &Error{Kind: ErrThrowableCheckFailed}
		}
		f.Stack = f.Stack[:0]
		f.push(v)

	case insn.IfNull:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if !v.IsReference() {
			return &Error{Kind: ErrInvalidType}
		}
	}
	return nil
}

// isThrowable reports whether v is a legal athrow operand: the null type, or
// an object type assignable to java.lang.Throwable.
func isThrowable(v VerificationType) bool {
	switch v.kind {
	case Null:
		return true
	case Object:
		return v.ref.IsObject() && v.ref.Class().IsThrowable()
	default:
		return false
	}
}
