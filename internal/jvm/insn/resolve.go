package insn

import (
	"fmt"

	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/cpool"
)

// Resolve interns every class-graph handle an UnresolvedInstruction carries
// into the given constant pool, producing the ResolvedInstruction the class
// serializer can size and write.
func Resolve(pool *cpool.Pool, in UnresolvedInstruction) (ResolvedInstruction, error) {
	out, err := Map(in,
		func(rt classgraph.RefType) (cpool.Index, error) { return pool.GetClass(rt) },
		func(c Constant) (cpool.Index, error) { return resolveConstant(pool, c) },
		func(f *classgraph.FieldData) (cpool.Index, error) { return pool.GetFieldrefFor(f) },
		func(m *classgraph.MethodData) (cpool.Index, error) { return pool.GetMethodrefFor(m) },
		func(d Indy) (cpool.Index, error) { return resolveIndy(pool, d) },
	)
	return ResolvedInstruction(out), err
}

func resolveConstant(pool *cpool.Pool, c Constant) (cpool.Index, error) {
	switch v := c.(type) {
	case IntConstant:
		return pool.GetInteger(int32(v))
	case LongConstant:
		return pool.GetLong(int64(v))
	case FloatConstant:
		return pool.GetFloat(float32(v))
	case DoubleConstant:
		return pool.GetDouble(float64(v))
	case StringConstant:
		return pool.GetString(string(v))
	case ClassConstant:
		return pool.GetClass(v.Type)
	case MethodTypeConstant:
		return pool.GetMethodType(v.Descriptor.Render())
	case MethodHandleConstant:
		return resolveMethodHandle(pool, v)
	default:
		return 0, fmt.Errorf("insn: unresolvable constant %T", c)
	}
}

func resolveMethodHandle(pool *cpool.Pool, mh MethodHandleConstant) (cpool.Index, error) {
	var refIdx cpool.Index
	var err error
	switch {
	case mh.Member.Field != nil:
		refIdx, err = pool.GetFieldrefFor(mh.Member.Field)
	case mh.Member.Method != nil:
		refIdx, err = pool.GetMethodrefFor(mh.Member.Method)
	default:
		return 0, fmt.Errorf("insn: method handle with neither field nor method set")
	}
	if err != nil {
		return 0, err
	}
	return pool.GetMethodHandle(toCpoolHandleKind(mh.Kind), refIdx)
}

func toCpoolHandleKind(k HandleKind) cpool.HandleKind {
	switch k {
	case RefGetField:
		return cpool.RefGetField
	case RefGetStatic:
		return cpool.RefGetStatic
	case RefPutField:
		return cpool.RefPutField
	case RefPutStatic:
		return cpool.RefPutStatic
	case RefInvokeVirtual:
		return cpool.RefInvokeVirtual
	case RefInvokeStatic:
		return cpool.RefInvokeStatic
	case RefInvokeSpecial:
		return cpool.RefInvokeSpecial
	case RefNewInvokeSpecial:
		return cpool.RefNewInvokeSpecial
	case RefInvokeInterface:
		return cpool.RefInvokeInterface
	default:
		panic(fmt.Sprintf("insn: invalid HandleKind %d", k))
	}
}

func resolveIndy(pool *cpool.Pool, d Indy) (cpool.Index, error) {
	handleIdx, err := resolveMethodHandle(pool, d.Bootstrap)
	if err != nil {
		return 0, err
	}
	argIdxs := make([]cpool.Index, len(d.BootstrapArgs))
	for i, a := range d.BootstrapArgs {
		idx, err := resolveConstant(pool, a)
		if err != nil {
			return 0, err
		}
		argIdxs[i] = idx
	}
	bidx := pool.GetOrAddBootstrapMethod(handleIdx, argIdxs)
	return pool.GetInvokeDynamic(bidx, d.Name, d.Descriptor.Render())
}
