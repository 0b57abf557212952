// Package desc implements the JVM's field, method, and class-info
// descriptor grammar: parsing, rendering, and the width arithmetic the
// verifier needs (longs and doubles occupy two local/stack slots).
//
// Descriptors are pure data — nothing here touches the class graph or the
// constant pool. The name, base, reference and field types are comparable
// and safe to use as map keys (no pointer indirection in their
// representation), which the constant pool and frame-verifier packages rely
// on for interning and for frame-equality checks. MethodDescriptor holds a
// parameter slice and a return pointer, so it is not comparable with ==.
package desc

import (
	"fmt"
	"strings"
)

// BaseType is one of the eight JVM primitive types.
type BaseType byte

const (
	Byte BaseType = iota
	Char
	Double
	Float
	Int
	Long
	Short
	Boolean
)

// Width returns 2 for long/double, 1 for everything else.
func (b BaseType) Width() int {
	switch b {
	case Long, Double:
		return 2
	default:
		return 1
	}
}

func (b BaseType) String() string {
	switch b {
	case Byte:
		return "byte"
	case Char:
		return "char"
	case Double:
		return "double"
	case Float:
		return "float"
	case Int:
		return "int"
	case Long:
		return "long"
	case Short:
		return "short"
	case Boolean:
		return "boolean"
	default:
		return fmt.Sprintf("BaseType(%d)", byte(b))
	}
}

func (b BaseType) char() byte {
	switch b {
	case Byte:
		return 'B'
	case Char:
		return 'C'
	case Double:
		return 'D'
	case Float:
		return 'F'
	case Int:
		return 'I'
	case Long:
		return 'J'
	case Short:
		return 'S'
	case Boolean:
		return 'Z'
	default:
		panic(fmt.Sprintf("invalid BaseType %d", byte(b)))
	}
}

func baseTypeFromChar(c byte) (BaseType, bool) {
	switch c {
	case 'B':
		return Byte, true
	case 'C':
		return Char, true
	case 'D':
		return Double, true
	case 'F':
		return Float, true
	case 'I':
		return Int, true
	case 'J':
		return Long, true
	case 'S':
		return Short, true
	case 'Z':
		return Boolean, true
	default:
		return 0, false
	}
}

// BinaryName is a fully qualified class or interface name using the JVM's
// internal '/'-separated form (e.g. "java/lang/Object", not
// "java.lang.Object").
type BinaryName string

// Common library class names used throughout the class graph and verifier.
const (
	Object           BinaryName = "java/lang/Object"
	Class            BinaryName = "java/lang/Class"
	String           BinaryName = "java/lang/String"
	Throwable        BinaryName = "java/lang/Throwable"
	Exception        BinaryName = "java/lang/Exception"
	RuntimeException BinaryName = "java/lang/RuntimeException"
	Error            BinaryName = "java/lang/Error"
	AssertionError   BinaryName = "java/lang/AssertionError"
	ArithmeticExcept BinaryName = "java/lang/ArithmeticException"
	IntegerBox       BinaryName = "java/lang/Integer"
	LongBox          BinaryName = "java/lang/Long"
	FloatBox         BinaryName = "java/lang/Float"
	DoubleBox        BinaryName = "java/lang/Double"
	MethodHandleBox  BinaryName = "java/lang/invoke/MethodHandle"
	MethodTypeBox    BinaryName = "java/lang/invoke/MethodType"
	Cloneable        BinaryName = "java/lang/Cloneable"
	Serializable     BinaryName = "java/io/Serializable"
)

// Valid reports whether name could plausibly be a binary class name: it must
// be non-empty and must not contain '.', ';', or '['.
func (n BinaryName) Valid() bool {
	if n == "" {
		return false
	}
	return !strings.ContainsAny(string(n), ".;[")
}

// UnqualifiedName is a simple (non-qualified) field or method name.
type UnqualifiedName string

// Valid reports whether name is legal as a field or plain method name: it
// must be non-empty and must not contain '.', ';', '[', or '/'. Method names
// additionally may be the special names "<init>"/"<clinit>" but no other
// name may contain '<' or '>'.
func (n UnqualifiedName) Valid() bool {
	if n == "" {
		return false
	}
	if n == "<init>" || n == "<clinit>" {
		return true
	}
	return !strings.ContainsAny(string(n), ".;[/<>")
}

// refKind distinguishes the three shapes a reference type can take. Arrays
// are stored flattened (element type + dimension count) rather than as
// recursively nested wrappers: that keeps RefType a plain comparable value
// with no pointer indirection, which the constant pool (map keys) and the
// verifier (frame equality) both rely on.
type refKind byte

const (
	refObject refKind = iota
	refObjectArray
	refPrimitiveArray
)

// RefType is a JVM reference type: a named object class/interface, an array
// of objects, or an array of primitives.
type RefType struct {
	kind refKind

	// object names the class/interface (refObject), or the element class of
	// an object array (refObjectArray).
	object BinaryName
	// primBase is the element base type of a primitive array (refPrimitiveArray).
	primBase BaseType
	// dims is the number of *additional* dimensions beyond the first, so a
	// simple "T[]" has dims == 0 and "T[][]" has dims == 1.
	dims int
}

// NewObject builds an object reference type.
func NewObject(name BinaryName) RefType { return RefType{kind: refObject, object: name} }

// NewObjectArray builds an array of objects of the given element class, with
// additionalDims extra dimensions (0 for a simple one-dimensional array).
func NewObjectArray(elemClass BinaryName, additionalDims int) RefType {
	if additionalDims < 0 {
		panic("negative array dimension")
	}
	return RefType{kind: refObjectArray, object: elemClass, dims: additionalDims}
}

// NewPrimitiveArray builds an array of a primitive base type, with
// additionalDims extra dimensions (0 for a simple one-dimensional array).
func NewPrimitiveArray(elem BaseType, additionalDims int) RefType {
	if additionalDims < 0 {
		panic("negative array dimension")
	}
	return RefType{kind: refPrimitiveArray, primBase: elem, dims: additionalDims}
}

// IsArray reports whether r is an array type (of either kind).
func (r RefType) IsArray() bool { return r.kind != refObject }

// IsObject reports whether r is a plain (non-array) object type.
func (r RefType) IsObject() bool { return r.kind == refObject }

// IsPrimitiveArray reports whether r is an array of a primitive base type.
func (r RefType) IsPrimitiveArray() bool { return r.kind == refPrimitiveArray }

// ObjectName returns the class name for an object type, or the element
// class for an object-array type. Panics if r is a primitive array.
func (r RefType) ObjectName() BinaryName {
	if r.kind == refPrimitiveArray {
		panic("RefType.ObjectName called on a primitive array")
	}
	return r.object
}

// ElementBase returns the element base type of a primitive array. Panics
// otherwise.
func (r RefType) ElementBase() BaseType {
	if r.kind != refPrimitiveArray {
		panic("RefType.ElementBase called on a non-primitive-array type")
	}
	return r.primBase
}

// AdditionalDims returns the number of additional array dimensions (0 for a
// one-dimensional array, or for a non-array type).
func (r RefType) AdditionalDims() int { return r.dims }

// Width is always 1 for reference types.
func (RefType) Width() int { return 1 }

// ElementType returns the field type one array dimension down from r: for a
// primitive array with dims==0 this is the base type; for a primitive array
// with dims>0, or any object array, it is a reference type with one fewer
// dimension.
func (r RefType) ElementType() FieldType {
	switch r.kind {
	case refObject:
		panic("RefType.ElementType called on a non-array type")
	case refPrimitiveArray:
		if r.dims == 0 {
			return BaseFieldType(r.primBase)
		}
		return RefFieldType(NewPrimitiveArray(r.primBase, r.dims-1))
	default: // refObjectArray
		if r.dims == 0 {
			return ObjectType(r.object)
		}
		return RefFieldType(NewObjectArray(r.object, r.dims-1))
	}
}

func (r RefType) render(sb *strings.Builder) {
	switch r.kind {
	case refObject:
		sb.WriteByte('L')
		sb.WriteString(string(r.object))
		sb.WriteByte(';')
	case refObjectArray:
		for i := 0; i <= r.dims; i++ {
			sb.WriteByte('[')
		}
		sb.WriteByte('L')
		sb.WriteString(string(r.object))
		sb.WriteByte(';')
	case refPrimitiveArray:
		for i := 0; i <= r.dims; i++ {
			sb.WriteByte('[')
		}
		sb.WriteByte(r.primBase.char())
	}
}

// Render produces the descriptor string for this reference type, e.g.
// "Ljava/lang/String;" or "[[I".
func (r RefType) Render() string {
	var sb strings.Builder
	r.render(&sb)
	return sb.String()
}

// RenderClassInfo renders the form used inside a CONSTANT_Class_info: a bare
// binary name for object types ("java/lang/String"), but the full array
// descriptor for array types ("[Ljava/lang/String;"), per JVMS 4.4.1.
func (r RefType) RenderClassInfo() string {
	if r.kind == refObject {
		return string(r.object)
	}
	return r.Render()
}

// ParseClassInfo parses the class-info form: a bare binary name, or an array
// descriptor if the first character is '['.
func ParseClassInfo(s string) (RefType, error) {
	if strings.HasPrefix(s, "[") {
		return ParseRefType(s)
	}
	name := BinaryName(s)
	if !name.Valid() {
		return RefType{}, &DescriptorError{Input: s, Pos: 0, Msg: "invalid binary class name"}
	}
	return NewObject(name), nil
}

func (r RefType) String() string { return r.Render() }

// FieldType is the type of a field, local variable, or stack slot: a
// primitive base type or a reference type.
type FieldType struct {
	base  BaseType
	ref   RefType
	isRef bool
}

func ObjectType(name BinaryName) FieldType { return FieldType{ref: NewObject(name), isRef: true} }

func RefFieldType(r RefType) FieldType { return FieldType{ref: r, isRef: true} }

func BaseFieldType(b BaseType) FieldType { return FieldType{base: b} }

// Array builds the canonical array type for elem with additionalDims extra
// dimensions beyond the implicit first one (additionalDims == 0 means a
// simple one-dimensional array of elem).
func Array(elem FieldType, additionalDims int) FieldType {
	if additionalDims < 0 {
		panic("negative array dimension")
	}
	if elem.isRef {
		if elem.ref.kind == refObject {
			return RefFieldType(NewObjectArray(elem.ref.object, additionalDims))
		}
		// elem is itself an array: flatten rather than nest, keeping the
		// representation canonical (no redundant array wrappers).
		innerDims := elem.ref.dims
		totalDims := innerDims + 1 + additionalDims
		if elem.ref.kind == refObjectArray {
			return RefFieldType(NewObjectArray(elem.ref.object, totalDims))
		}
		return RefFieldType(NewPrimitiveArray(elem.ref.primBase, totalDims))
	}
	return RefFieldType(NewPrimitiveArray(elem.base, additionalDims))
}

// IsRef reports whether this is a reference (as opposed to primitive) type.
func (f FieldType) IsRef() bool { return f.isRef }

// Base returns the primitive base type. Panics if IsRef() is true.
func (f FieldType) Base() BaseType {
	if f.isRef {
		panic("FieldType.Base called on a reference type")
	}
	return f.base
}

// Ref returns the reference type. Panics if IsRef() is false.
func (f FieldType) Ref() RefType {
	if !f.isRef {
		panic("FieldType.Ref called on a base type")
	}
	return f.ref
}

// Width returns 2 for long/double, 1 for everything else (including every
// reference type).
func (f FieldType) Width() int {
	if f.isRef {
		return 1
	}
	return f.base.Width()
}

func (f FieldType) render(sb *strings.Builder) {
	if f.isRef {
		f.ref.render(sb)
		return
	}
	sb.WriteByte(f.base.char())
}

// Render produces the descriptor string for this field type.
func (f FieldType) Render() string {
	var sb strings.Builder
	f.render(&sb)
	return sb.String()
}

func (f FieldType) String() string { return f.Render() }

var (
	IntType     = BaseFieldType(Int)
	LongType    = BaseFieldType(Long)
	FloatType   = BaseFieldType(Float)
	DoubleType  = BaseFieldType(Double)
	CharType    = BaseFieldType(Char)
	ShortType   = BaseFieldType(Short)
	ByteType    = BaseFieldType(Byte)
	BooleanType = BaseFieldType(Boolean)
	ObjectObj   = ObjectType(Object)
	StringObj   = ObjectType(String)
)

// DescriptorError reports a malformed descriptor: the input string, the
// byte position where parsing failed, and a human-readable reason.
type DescriptorError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("malformed descriptor %q at byte %d: %s", e.Input, e.Pos, e.Msg)
}

// ParseFieldType parses a single field type descriptor, requiring the whole
// string be consumed.
func ParseFieldType(s string) (FieldType, error) {
	ft, rest, err := parseFieldTypeFrom(s, 0)
	if err != nil {
		return FieldType{}, err
	}
	if rest != len(s) {
		return FieldType{}, &DescriptorError{Input: s, Pos: rest, Msg: "unexpected leftover input"}
	}
	return ft, nil
}

// ParseRefType parses a single reference type descriptor (an object or array
// type; not a base type), requiring the whole string be consumed.
func ParseRefType(s string) (RefType, error) {
	ft, err := ParseFieldType(s)
	if err != nil {
		return RefType{}, err
	}
	if !ft.isRef {
		return RefType{}, &DescriptorError{Input: s, Pos: 0, Msg: "expected a reference type"}
	}
	return ft.ref, nil
}

// parseFieldTypeFrom parses one field type starting at pos, returning the
// position just past it. Array dimensions are counted up front so the
// result is built directly in canonical (flattened) form.
func parseFieldTypeFrom(s string, pos int) (FieldType, int, error) {
	start := pos
	dims := 0
	for pos < len(s) && s[pos] == '[' {
		dims++
		pos++
	}
	if pos >= len(s) {
		return FieldType{}, pos, &DescriptorError{Input: s, Pos: start, Msg: "missing field type"}
	}
	c := s[pos]
	if bt, ok := baseTypeFromChar(c); ok {
		if dims == 0 {
			return BaseFieldType(bt), pos + 1, nil
		}
		return RefFieldType(NewPrimitiveArray(bt, dims-1)), pos + 1, nil
	}
	if c != 'L' {
		return FieldType{}, pos, &DescriptorError{Input: s, Pos: pos, Msg: fmt.Sprintf("unexpected character %q", c)}
	}
	end := strings.IndexByte(s[pos+1:], ';')
	if end < 0 {
		return FieldType{}, pos, &DescriptorError{Input: s, Pos: pos, Msg: "missing ';' terminator for object type"}
	}
	name := BinaryName(s[pos+1 : pos+1+end])
	if !name.Valid() {
		return FieldType{}, pos, &DescriptorError{Input: s, Pos: pos, Msg: "invalid binary class name"}
	}
	next := pos + 1 + end + 1
	if dims == 0 {
		return ObjectType(name), next, nil
	}
	return RefFieldType(NewObjectArray(name, dims-1)), next, nil
}

// MethodDescriptor is the parameter/return signature of a method.
type MethodDescriptor struct {
	Parameters []FieldType
	// Return is nil for a void method.
	Return *FieldType
}

// ParamsWidth returns the sum of the widths of the parameters, i.e. the
// number of local-variable slots the parameters occupy (not counting any
// implicit `this`).
func (m MethodDescriptor) ParamsWidth() int {
	w := 0
	for _, p := range m.Parameters {
		w += p.Width()
	}
	return w
}

// Render produces the descriptor string, e.g. "(II)I" or "()V".
func (m MethodDescriptor) Render() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for _, p := range m.Parameters {
		p.render(&sb)
	}
	sb.WriteByte(')')
	if m.Return != nil {
		m.Return.render(&sb)
	} else {
		sb.WriteByte('V')
	}
	return sb.String()
}

func (m MethodDescriptor) String() string { return m.Render() }

// ParseMethodDescriptor parses a full method descriptor such as "(II)I".
func ParseMethodDescriptor(s string) (MethodDescriptor, error) {
	if len(s) == 0 || s[0] != '(' {
		return MethodDescriptor{}, &DescriptorError{Input: s, Pos: 0, Msg: "method descriptor must start with '('"}
	}
	pos := 1
	var params []FieldType
	for pos < len(s) && s[pos] != ')' {
		ft, next, err := parseFieldTypeFrom(s, pos)
		if err != nil {
			return MethodDescriptor{}, err
		}
		params = append(params, ft)
		pos = next
	}
	if pos >= len(s) {
		return MethodDescriptor{}, &DescriptorError{Input: s, Pos: pos, Msg: "missing ')' terminator"}
	}
	pos++ // consume ')'
	if pos == len(s) {
		return MethodDescriptor{}, &DescriptorError{Input: s, Pos: pos, Msg: "missing return type"}
	}
	if s[pos] == 'V' && pos == len(s)-1 {
		return MethodDescriptor{Parameters: params, Return: nil}, nil
	}
	ret, next, err := parseFieldTypeFrom(s, pos)
	if err != nil {
		return MethodDescriptor{}, err
	}
	if next != len(s) {
		return MethodDescriptor{}, &DescriptorError{Input: s, Pos: next, Msg: "unexpected leftover input"}
	}
	return MethodDescriptor{Parameters: params, Return: &ret}, nil
}
