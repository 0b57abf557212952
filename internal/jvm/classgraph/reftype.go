package classgraph

import (
	"strings"

	"github.com/harpocrates/wasm2jar/internal/jvm/desc"
)

// refKind mirrors desc's flattened array representation, but resolved
// against actual *ClassData handles instead of bare BinaryNames — this is
// the type verification types and frame locals/stack carry (see the verify
// package), since assignability checks need real class records, not just
// names.
type refKind byte

const (
	refObject refKind = iota
	refObjectArray
	refPrimitiveArray
)

// RefType is a reference type resolved against the class graph: a named
// class/interface, an array of objects, or an array of primitives.
type RefType struct {
	kind     refKind
	class    *ClassData // refObject, refObjectArray: the (element) class
	primBase desc.BaseType
	dims     int // additional dimensions beyond the first
}

func NewObjectRef(cls *ClassData) RefType { return RefType{kind: refObject, class: cls} }

func NewObjectArrayRef(elemClass *ClassData, additionalDims int) RefType {
	return RefType{kind: refObjectArray, class: elemClass, dims: additionalDims}
}

func NewPrimitiveArrayRef(elem desc.BaseType, additionalDims int) RefType {
	return RefType{kind: refPrimitiveArray, primBase: elem, dims: additionalDims}
}

func (r RefType) IsArray() bool  { return r.kind != refObject }
func (r RefType) IsObject() bool { return r.kind == refObject }

// IsPrimitiveArray reports whether r is an array of a primitive base type,
// as opposed to an array of objects.
func (r RefType) IsPrimitiveArray() bool { return r.kind == refPrimitiveArray }

// IsObjectArray reports whether r is an array of objects.
func (r RefType) IsObjectArray() bool { return r.kind == refObjectArray }

// Class returns the class handle for an object type, or the element class
// for an object array. Panics for a primitive array.
func (r RefType) Class() *ClassData {
	if r.kind == refPrimitiveArray {
		panic("RefType.Class called on a primitive array")
	}
	return r.class
}

func (r RefType) ElementBase() desc.BaseType {
	if r.kind != refPrimitiveArray {
		panic("RefType.ElementBase called on a non-primitive-array type")
	}
	return r.primBase
}

func (r RefType) AdditionalDims() int { return r.dims }

// ElementType returns the field type one array dimension down (see
// desc.RefType.ElementType, which this mirrors for resolved types).
func (r RefType) ElementType() FieldType {
	switch r.kind {
	case refObject:
		panic("RefType.ElementType called on a non-array type")
	case refPrimitiveArray:
		if r.dims == 0 {
			return FieldType{base: r.primBase}
		}
		return FieldType{isRef: true, ref: NewPrimitiveArrayRef(r.primBase, r.dims-1)}
	default:
		if r.dims == 0 {
			return FieldType{isRef: true, ref: NewObjectRef(r.class)}
		}
		return FieldType{isRef: true, ref: NewObjectArrayRef(r.class, r.dims-1)}
	}
}

// Render produces the descriptor string for this reference type, e.g.
// "Ljava/lang/String;" or "[[I" — the same grammar as desc.RefType.Render.
func (r RefType) Render() string {
	var sb strings.Builder
	switch r.kind {
	case refObject:
		sb.WriteByte('L')
		sb.WriteString(string(r.class.Name))
		sb.WriteByte(';')
	case refObjectArray:
		for i := 0; i <= r.dims; i++ {
			sb.WriteByte('[')
		}
		sb.WriteByte('L')
		sb.WriteString(string(r.class.Name))
		sb.WriteByte(';')
	case refPrimitiveArray:
		for i := 0; i <= r.dims; i++ {
			sb.WriteByte('[')
		}
		sb.WriteByte(baseTypeChar(r.primBase))
	}
	return sb.String()
}

func baseTypeChar(b desc.BaseType) byte {
	switch b {
	case desc.Byte:
		return 'B'
	case desc.Char:
		return 'C'
	case desc.Double:
		return 'D'
	case desc.Float:
		return 'F'
	case desc.Int:
		return 'I'
	case desc.Long:
		return 'J'
	case desc.Short:
		return 'S'
	case desc.Boolean:
		return 'Z'
	default:
		return '?'
	}
}

// RenderClassInfo renders the form used inside a CONSTANT_Class_info: a bare
// binary name for object types, the full array descriptor otherwise (JVMS
// 4.4.1), mirroring desc.RefType.RenderClassInfo for resolved types.
func (r RefType) RenderClassInfo() string {
	if r.kind == refObject {
		return string(r.class.Name)
	}
	return r.Render()
}

func (r RefType) String() string { return r.Render() }

// FieldType mirrors desc.FieldType but resolved against the class graph.
type FieldType struct {
	base  desc.BaseType
	ref   RefType
	isRef bool
}

func NewBaseField(b desc.BaseType) FieldType { return FieldType{base: b} }
func NewRefField(r RefType) FieldType        { return FieldType{ref: r, isRef: true} }

func (f FieldType) IsRef() bool      { return f.isRef }
func (f FieldType) Base() desc.BaseType {
	if f.isRef {
		panic("FieldType.Base called on a reference type")
	}
	return f.base
}
func (f FieldType) Ref() RefType {
	if !f.isRef {
		panic("FieldType.Ref called on a base type")
	}
	return f.ref
}

func (f FieldType) Width() int {
	if f.isRef {
		return 1
	}
	return f.base.Width()
}

// IsAssignable implements the JVM verifier's isJavaAssignable predicate
// (JVMS 4.10.1.2), covering array-to-Object/Cloneable/Serializable,
// primitive array invariance, object array covariance, and object-to-object
// graph search (delegated to ClassData.IsAssignable).
func IsAssignable(sub, super RefType) bool {
	switch {
	case (sub.kind == refPrimitiveArray || sub.kind == refObjectArray) && super.kind == refObject:
		return isArraySuperType(super.class)

	case sub.kind == refPrimitiveArray && super.kind == refPrimitiveArray:
		return sub.primBase == super.primBase && sub.dims == super.dims

	case sub.kind == refPrimitiveArray && super.kind == refObjectArray:
		if sub.dims <= super.dims {
			return false
		}
		return isArraySuperType(super.class)

	case sub.kind == refObjectArray && super.kind == refObjectArray:
		switch {
		case sub.dims < super.dims:
			return false
		case sub.dims == super.dims:
			return sub.class.IsAssignable(super.class)
		default:
			return isArraySuperType(super.class)
		}

	case sub.kind == refObject && super.kind == refObject:
		return sub.class.IsAssignable(super.class)

	default:
		return false
	}
}

// isArraySuperType reports whether cls is one of the three types every
// array is assignable to: Object, Cloneable, Serializable.
func isArraySuperType(cls *ClassData) bool {
	switch cls.Name {
	case desc.Object, desc.Cloneable, desc.Serializable:
		return true
	default:
		return false
	}
}
