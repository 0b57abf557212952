package verify

import (
	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/desc"
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
)

func arrayOf(base desc.BaseType) VerificationType {
	return VObject(classgraph.NewPrimitiveArrayRef(base, 0))
}

// Interpret runs the transfer function of one straight-line instruction
// against f. graph resolves the name-only descriptors
// FieldData/MethodData carry into class-graph-backed types; java supplies
// the well-known library classes Ldc and invokedynamic need; thisClass and
// block/offsetInBlock identify `new` sites and the receiver type `<init>`
// rewrites.
func (f *Frame) Interpret(
	in insn.UnresolvedInstruction,
	graph *classgraph.Graph,
	java *classgraph.JavaLibrary,
	thisClass classgraph.RefType,
	block uint32,
	offsetInBlock int,
) error {
	switch in.Op {
	case insn.Nop:
		// no-op

	case insn.AConstNull:
		f.push(VNull())

	case insn.IConst, insn.BiPush, insn.SiPush:
		f.push(VInteger())

	case insn.LConst:
		f.push(VLong())

	case insn.FConst:
		f.push(VFloat())

	case insn.DConst:
		f.push(VDouble())

	case insn.Ldc:
		v, err := ldcType(in.ConstVal, java)
		if err != nil {
			return err
		}
		f.push(v)

	case insn.Ldc2:
		switch in.ConstVal.(type) {
		case insn.LongConstant:
			f.push(VLong())
		case insn.DoubleConstant:
			f.push(VDouble())
		default:
			return &Error{Kind: ErrInvalidWidth, Width: 1}
		}

	case insn.ILoad:
		if err := f.Locals.GetExpectingType(in.VarIndex, VInteger()); err != nil {
			return err
		}
		f.push(VInteger())
	case insn.LLoad:
		if err := f.Locals.GetExpectingType(in.VarIndex, VLong()); err != nil {
			return err
		}
		f.push(VLong())
	case insn.FLoad:
		if err := f.Locals.GetExpectingType(in.VarIndex, VFloat()); err != nil {
			return err
		}
		f.push(VFloat())
	case insn.DLoad:
		if err := f.Locals.GetExpectingType(in.VarIndex, VDouble()); err != nil {
			return err
		}
		f.push(VDouble())
	case insn.ALoad:
		v, err := f.Locals.Get(in.VarIndex)
		if err != nil {
			return err
		}
		f.push(v)

	case insn.IALoad:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(arrayOf(desc.Int)); err != nil {
			return err
		}
		f.push(VInteger())
	case insn.LALoad:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(arrayOf(desc.Long)); err != nil {
			return err
		}
		f.push(VLong())
	case insn.FALoad:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(arrayOf(desc.Float)); err != nil {
			return err
		}
		f.push(VFloat())
	case insn.DALoad:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(arrayOf(desc.Double)); err != nil {
			return err
		}
		f.push(VDouble())
	case insn.AALoad:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		arr, err := f.pop()
		if err != nil {
			return err
		}
		elem, err := arrayElementType(arr)
		if err != nil {
			return err
		}
		f.push(elem)
	case insn.BALoad:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(arrayOf(desc.Byte)); err != nil {
			return err
		}
		f.push(VInteger())
	case insn.CALoad:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(arrayOf(desc.Char)); err != nil {
			return err
		}
		f.push(VInteger())
	case insn.SALoad:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(arrayOf(desc.Short)); err != nil {
			return err
		}
		f.push(VInteger())

	case insn.IStore:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		return f.Locals.Set(in.VarIndex, VInteger())
	case insn.FStore:
		if err := f.popExpectingType(VFloat()); err != nil {
			return err
		}
		return f.Locals.Set(in.VarIndex, VFloat())
	case insn.LStore:
		if err := f.popExpectingType(VLong()); err != nil {
			return err
		}
		return f.Locals.Set(in.VarIndex, VLong())
	case insn.DStore:
		if err := f.popExpectingType(VDouble()); err != nil {
			return err
		}
		return f.Locals.Set(in.VarIndex, VDouble())
	case insn.AStore:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if !v.IsReference() {
			return &Error{Kind: ErrInvalidType}
		}
		return f.Locals.Set(in.VarIndex, v)

	case insn.IKill:
		return f.Locals.Kill(in.VarIndex, false, Integer)
	case insn.FKill:
		return f.Locals.Kill(in.VarIndex, false, Float)
	case insn.LKill:
		return f.Locals.Kill(in.VarIndex, false, Long)
	case insn.DKill:
		return f.Locals.Kill(in.VarIndex, false, Double)
	case insn.AKill:
		return f.Locals.Kill(in.VarIndex, true, 0)
	case insn.AHint:
		return f.GeneralizeTopStackType(in.ClassHint)

	case insn.IAStore:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		return f.popExpectingType(arrayOf(desc.Int))
	case insn.LAStore:
		if err := f.popExpectingType(VLong()); err != nil {
			return err
		}
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		return f.popExpectingType(arrayOf(desc.Long))
	case insn.FAStore:
		if err := f.popExpectingType(VFloat()); err != nil {
			return err
		}
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		return f.popExpectingType(arrayOf(desc.Float))
	case insn.DAStore:
		if err := f.popExpectingType(VDouble()); err != nil {
			return err
		}
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		return f.popExpectingType(arrayOf(desc.Double))
	case insn.AAStore:
		elemVal, err := f.pop()
		if err != nil {
			return err
		}
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		arr, err := f.pop()
		if err != nil {
			return err
		}
		expected, err := arrayElementType(arr)
		if err != nil {
			return err
		}
		if !IsAssignable(elemVal, expected) {
			return &Error{Kind: ErrInvalidType}
		}
	case insn.BAStore:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		return f.popExpectingType(arrayOf(desc.Byte))
	case insn.CAStore:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		return f.popExpectingType(arrayOf(desc.Char))
	case insn.SAStore:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		return f.popExpectingType(arrayOf(desc.Short))

	case insn.Pop:
		_, err := f.popExpectingWidth(1)
		return err

	case insn.Pop2:
		arg1, err := f.pop()
		if err != nil {
			return err
		}
		switch arg1.Width() {
		case 1:
			_, err := f.popExpectingWidth(1)
			return err
		case 2:
		default:
			return &Error{Kind: ErrInvalidWidth, Width: arg1.Width()}
		}

	case insn.Dup:
		arg1, err := f.popExpectingWidth(1)
		if err != nil {
			return err
		}
		f.push(arg1)
		f.push(arg1)

	case insn.DupX1:
		arg1, err := f.popExpectingWidth(1)
		if err != nil {
			return err
		}
		arg2, err := f.popExpectingWidth(1)
		if err != nil {
			return err
		}
		f.push(arg1)
		f.push(arg2)
		f.push(arg1)

	case insn.DupX2:
		arg1, err := f.popExpectingWidth(1)
		if err != nil {
			return err
		}
		arg2, err := f.pop()
		if err != nil {
			return err
		}
		switch arg2.Width() {
		case 1:
			arg3, err := f.popExpectingWidth(1)
			if err != nil {
				return err
			}
			f.push(arg1)
			f.push(arg3)
			f.push(arg2)
			f.push(arg1)
		case 2:
			f.push(arg1)
			f.push(arg2)
			f.push(arg1)
		default:
			return &Error{Kind: ErrInvalidWidth, Width: arg2.Width()}
		}

	case insn.Dup2:
		arg1, err := f.pop()
		if err != nil {
			return err
		}
		switch arg1.Width() {
		case 1:
			arg2, err := f.popExpectingWidth(1)
			if err != nil {
				return err
			}
			f.push(arg2)
			f.push(arg1)
			f.push(arg2)
			f.push(arg1)
		case 2:
			f.push(arg1)
			f.push(arg1)
		default:
			return &Error{Kind: ErrInvalidWidth, Width: arg1.Width()}
		}

	case insn.Dup2X1:
		arg1, err := f.pop()
		if err != nil {
			return err
		}
		arg2, err := f.popExpectingWidth(1)
		if err != nil {
			return err
		}
		switch arg1.Width() {
		case 1:
			arg3, err := f.popExpectingWidth(1)
			if err != nil {
				return err
			}
			f.push(arg2)
			f.push(arg1)
			f.push(arg3)
			f.push(arg2)
			f.push(arg1)
		case 2:
			f.push(arg1)
			f.push(arg2)
			f.push(arg1)
		default:
			return &Error{Kind: ErrInvalidWidth, Width: arg1.Width()}
		}

	case insn.Dup2X2:
		arg1, err := f.pop()
		if err != nil {
			return err
		}
		switch arg1.Width() {
		case 1:
			arg2, err := f.popExpectingWidth(1)
			if err != nil {
				return err
			}
			arg3, err := f.pop()
			if err != nil {
				return err
			}
			switch arg3.Width() {
			case 1:
				arg4, err := f.popExpectingWidth(1)
				if err != nil {
					return err
				}
				f.push(arg2)
				f.push(arg1)
				f.push(arg4)
				f.push(arg3)
				f.push(arg2)
				f.push(arg1)
			case 2:
				f.push(arg2)
				f.push(arg1)
				f.push(arg3)
				f.push(arg2)
				f.push(arg1)
			default:
				return &Error{Kind: ErrInvalidWidth, Width: arg3.Width()}
			}
		case 2:
			arg2, err := f.pop()
			if err != nil {
				return err
			}
			switch arg2.Width() {
			case 1:
				arg3, err := f.popExpectingWidth(1)
				if err != nil {
					return err
				}
				f.push(arg1)
				f.push(arg3)
				f.push(arg2)
				f.push(arg1)
			case 2:
				f.push(arg1)
				f.push(arg2)
				f.push(arg1)
			default:
				return &Error{Kind: ErrInvalidWidth, Width: arg2.Width()}
			}
		default:
			return &Error{Kind: ErrInvalidWidth, Width: arg1.Width()}
		}

	case insn.Swap:
		arg1, err := f.popExpectingWidth(1)
		if err != nil {
			return err
		}
		arg2, err := f.popExpectingWidth(1)
		if err != nil {
			return err
		}
		f.push(arg1)
		f.push(arg2)

	case insn.IAdd, insn.ISub, insn.IMul, insn.IDiv, insn.IRem, insn.IAnd, insn.IOr, insn.IXor, insn.ISh:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		f.push(VInteger())

	case insn.LAdd, insn.LSub, insn.LMul, insn.LDiv, insn.LRem, insn.LAnd, insn.LOr, insn.LXor:
		if err := f.popExpectingType(VLong()); err != nil {
			return err
		}
		if err := f.popExpectingType(VLong()); err != nil {
			return err
		}
		f.push(VLong())

	case insn.FAdd, insn.FSub, insn.FMul, insn.FDiv, insn.FRem:
		if err := f.popExpectingType(VFloat()); err != nil {
			return err
		}
		if err := f.popExpectingType(VFloat()); err != nil {
			return err
		}
		f.push(VFloat())

	case insn.DAdd, insn.DSub, insn.DMul, insn.DDiv, insn.DRem:
		if err := f.popExpectingType(VDouble()); err != nil {
			return err
		}
		if err := f.popExpectingType(VDouble()); err != nil {
			return err
		}
		f.push(VDouble())

	case insn.INeg, insn.I2B, insn.I2C, insn.I2S:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		f.push(VInteger())
	case insn.LNeg:
		if err := f.popExpectingType(VLong()); err != nil {
			return err
		}
		f.push(VLong())
	case insn.FNeg:
		if err := f.popExpectingType(VFloat()); err != nil {
			return err
		}
		f.push(VFloat())
	case insn.DNeg:
		if err := f.popExpectingType(VDouble()); err != nil {
			return err
		}
		f.push(VDouble())

	case insn.LSh:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		if err := f.popExpectingType(VLong()); err != nil {
			return err
		}
		f.push(VLong())

	case insn.IInc:
		if err := f.Locals.GetExpectingType(in.VarIndex, VInteger()); err != nil {
			return err
		}

	case insn.I2L:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		f.push(VLong())
	case insn.I2F:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		f.push(VFloat())
	case insn.I2D:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		f.push(VDouble())
	case insn.L2I:
		if err := f.popExpectingType(VLong()); err != nil {
			return err
		}
		f.push(VInteger())
	case insn.L2F:
		if err := f.popExpectingType(VLong()); err != nil {
			return err
		}
		f.push(VFloat())
	case insn.L2D:
		if err := f.popExpectingType(VLong()); err != nil {
			return err
		}
		f.push(VDouble())
	case insn.F2I:
		if err := f.popExpectingType(VFloat()); err != nil {
			return err
		}
		f.push(VInteger())
	case insn.F2L:
		if err := f.popExpectingType(VFloat()); err != nil {
			return err
		}
		f.push(VLong())
	case insn.F2D:
		if err := f.popExpectingType(VFloat()); err != nil {
			return err
		}
		f.push(VDouble())
	case insn.D2I:
		if err := f.popExpectingType(VDouble()); err != nil {
			return err
		}
		f.push(VInteger())
	case insn.D2L:
		if err := f.popExpectingType(VDouble()); err != nil {
			return err
		}
		f.push(VLong())
	case insn.D2F:
		if err := f.popExpectingType(VDouble()); err != nil {
			return err
		}
		f.push(VFloat())

	case insn.LCmp:
		if err := f.popExpectingType(VLong()); err != nil {
			return err
		}
		if err := f.popExpectingType(VLong()); err != nil {
			return err
		}
		f.push(VInteger())
	case insn.FCmp:
		if err := f.popExpectingType(VFloat()); err != nil {
			return err
		}
		if err := f.popExpectingType(VFloat()); err != nil {
			return err
		}
		f.push(VInteger())
	case insn.DCmp:
		if err := f.popExpectingType(VDouble()); err != nil {
			return err
		}
		if err := f.popExpectingType(VDouble()); err != nil {
			return err
		}
		f.push(VInteger())

	case insn.GetStatic:
		fd := in.FieldVal
		ft, err := graph.ResolveFieldType(fd.Descriptor)
		if err != nil {
			return err
		}
		f.push(FromFieldType(ft))
	case insn.PutStatic:
		fd := in.FieldVal
		ft, err := graph.ResolveFieldType(fd.Descriptor)
		if err != nil {
			return err
		}
		return f.popExpectingAssignable(FromFieldType(ft))
	case insn.GetField:
		fd := in.FieldVal
		ft, err := graph.ResolveFieldType(fd.Descriptor)
		if err != nil {
			return err
		}
		recv, err := f.pop()
		if err != nil {
			return err
		}
		if !IsAssignable(recv, VObject(classgraph.NewObjectRef(fd.Owner))) {
			return &Error{Kind: ErrInvalidType}
		}
		f.push(FromFieldType(ft))
	case insn.PutField:
		fd := in.FieldVal
		ft, err := graph.ResolveFieldType(fd.Descriptor)
		if err != nil {
			return err
		}
		val, err := f.pop()
		if err != nil {
			return err
		}
		owner := VObject(classgraph.NewObjectRef(fd.Owner))
		recv, err := f.pop()
		if err != nil {
			return err
		}
		if !IsAssignable(val, FromFieldType(ft)) || !IsAssignable(recv, owner) {
			return &Error{Kind: ErrInvalidType}
		}

	case insn.Invoke:
		return f.interpretInvoke(in, graph, thisClass)

	case insn.InvokeDynamic:
		d := in.IndyVal
		params, ret, err := graph.ResolveMethodDescriptor(d.Descriptor)
		if err != nil {
			return err
		}
		for i := len(params) - 1; i >= 0; i-- {
			if err := f.popExpectingAssignable(FromFieldType(params[i])); err != nil {
				return err
			}
		}
		if ret != nil {
			f.push(FromFieldType(*ret))
		}

	case insn.New:
		site := NewSite{Block: block, Offset: offsetInBlock}
		f.push(VUninitialized(site, in.ClassVal))
	case insn.NewArray:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		f.push(VObject(classgraph.NewPrimitiveArrayRef(in.BaseTypeVal, 0)))
	case insn.ANewArray:
		if err := f.popExpectingType(VInteger()); err != nil {
			return err
		}
		f.push(VObject(objectArrayOf(in.ClassVal)))
	case insn.ArrayLength:
		arr, err := f.pop()
		if err != nil {
			return err
		}
		if arr.kind != Object || !arr.ref.IsArray() {
			return &Error{Kind: ErrInvalidType}
		}
		f.push(VInteger())
	case insn.CheckCast:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if v.kind != Object && v.kind != Null {
			return &Error{Kind: ErrInvalidType}
		}
		f.push(VObject(in.ClassVal))
	case insn.InstanceOf:
		v, err := f.pop()
		if err != nil {
			return err
		}
		if v.kind != Object && v.kind != Null {
			return &Error{Kind: ErrInvalidType}
		}
		f.push(VInteger())
	}
	return nil
}

// arrayElementType decomposes an object array's verification type one
// dimension down, as aaload/aastore need.
func arrayElementType(arr VerificationType) (VerificationType, error) {
	if arr.kind != Object || !arr.ref.IsObjectArray() {
		return VerificationType{}, &Error{Kind: ErrInvalidType}
	}
	return FromFieldType(arr.ref.ElementType()), nil
}

func objectArrayOf(elem classgraph.RefType) classgraph.RefType {
	if elem.IsObject() {
		return classgraph.NewObjectArrayRef(elem.Class(), 0)
	}
	if elem.IsObjectArray() {
		return classgraph.NewObjectArrayRef(elem.Class(), elem.AdditionalDims()+1)
	}
	return classgraph.NewPrimitiveArrayRef(elem.ElementBase(), elem.AdditionalDims()+1)
}

func ldcType(c insn.Constant, java *classgraph.JavaLibrary) (VerificationType, error) {
	switch c.(type) {
	case insn.StringConstant:
		return VObject(classgraph.NewObjectRef(java.String)), nil
	case insn.ClassConstant:
		return VObject(classgraph.NewObjectRef(java.Class)), nil
	case insn.IntConstant:
		return VInteger(), nil
	case insn.FloatConstant:
		return VFloat(), nil
	case insn.MethodHandleConstant:
		return VObject(classgraph.NewObjectRef(java.MethodHandle)), nil
	case insn.MethodTypeConstant:
		return VObject(classgraph.NewObjectRef(java.MethodType)), nil
	case insn.LongConstant, insn.DoubleConstant:
		return VerificationType{}, &Error{Kind: ErrInvalidWidth, Width: 2}
	default:
		return VerificationType{}, &Error{Kind: ErrNotLoadableConstant}
	}
}

func (f *Frame) interpretInvoke(in insn.UnresolvedInstruction, graph *classgraph.Graph, thisClass classgraph.RefType) error {
	m := in.MethodVal
	isInterface := m.Owner.IsInterface
	isInit := m.IsInit()
	params, ret, err := graph.ResolveMethodDescriptor(m.Descriptor)
	if err != nil {
		return err
	}

	// Arguments come off in reverse order, each checked for assignability to
	// (not exact equality with) its declared parameter type: a null literal
	// or a subtype is fine anywhere the declared type would be.
	for i := len(params) - 1; i >= 0; i-- {
		if err := f.popExpectingAssignable(FromFieldType(params[i])); err != nil {
			return err
		}
	}

	if in.InvokeKind.Special && isInit {
		receiver, err := f.pop()
		if err != nil {
			return err
		}
		switch receiver.kind {
		case UninitializedThis:
			replaceAll(f.Stack, receiver, VObject(thisClass))
			f.Locals.replaceAll(receiver, VObject(thisClass))
		case Uninitialized:
			_, constructed := receiver.Site()
			initialised := VObject(constructed)
			replaceAll(f.Stack, receiver, initialised)
			f.Locals.replaceAll(receiver, initialised)
		default:
			return &Error{Kind: ErrInvalidType}
		}
		if isInterface || ret != nil {
			return &Error{Kind: ErrInvalidType}
		}
		return nil
	}

	var needsReceiver, expectInterface bool
	switch {
	case in.InvokeKind.Static:
		needsReceiver, expectInterface = false, false
	case in.InvokeKind.Virtual, in.InvokeKind.Special:
		needsReceiver, expectInterface = true, false
	case in.InvokeKind.Interface:
		needsReceiver, expectInterface = true, true
	}
	if isInterface != expectInterface {
		return &Error{Kind: ErrInvalidType}
	}
	if needsReceiver {
		receiver, err := f.pop()
		if err != nil {
			return err
		}
		expected := VObject(classgraph.NewObjectRef(m.Owner))
		if !IsAssignable(receiver, expected) {
			return &Error{Kind: ErrInvalidType}
		}
	}
	if ret != nil {
		f.push(FromFieldType(*ret))
	}
	return nil
}
