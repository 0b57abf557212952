// Package verify implements the frame verifier: abstract interpretation of
// a basic block's instructions against a typed operand stack and local
// variable array, producing the running max-locals/max-stack and the
// entry/exit frames the code builder and class serializer need to build a
// StackMapTable.
//
// The locals array is a direct slot-indexed array: wide entries occupy two
// consecutive slots, exactly like the real JVM local variable table, so
// every index in a Frame means what the same index means in a running
// frame.
package verify

import (
	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/desc"
)

// Kind is the tag of a VerificationType.
type Kind byte

const (
	Integer Kind = iota
	Float
	Double
	Long
	Null
	UninitializedThis
	Object
	Uninitialized

	// top fills the second slot of a wide local and can never be produced by
	// any constructor below; it exists only so Locals.slots has something to
	// put there. Attempting to read it back is always an error.
	top
)

// NewSite identifies one `new` instruction by the block it occurs in plus
// its position within that block. Two uninitialized tokens are equal iff
// their sites are equal: the token's identity, not the class it will
// become, is what drives the rewrite when its constructor runs.
type NewSite struct {
	Block  uint32
	Offset int
}

// VerificationType is one JVM verification type (JVMS 4.10.1.2): the four
// primitive-ish categories used on the operand stack and in locals, the
// null type, the two uninitialized-object states, and a resolved object
// type (which may itself be an array).
type VerificationType struct {
	kind Kind
	ref  classgraph.RefType // valid when kind == Object

	// site and siteRef are valid when kind == Uninitialized: the identity of
	// the originating `new`, and the type it becomes once constructed.
	site    NewSite
	siteRef classgraph.RefType
}

func VInteger() VerificationType { return VerificationType{kind: Integer} }
func VFloat() VerificationType   { return VerificationType{kind: Float} }
func VDouble() VerificationType  { return VerificationType{kind: Double} }
func VLong() VerificationType    { return VerificationType{kind: Long} }
func VNull() VerificationType    { return VerificationType{kind: Null} }
func VUninitializedThis() VerificationType {
	return VerificationType{kind: UninitializedThis}
}

func VObject(ref classgraph.RefType) VerificationType {
	return VerificationType{kind: Object, ref: ref}
}

func VUninitialized(site NewSite, constructedType classgraph.RefType) VerificationType {
	return VerificationType{kind: Uninitialized, site: site, siteRef: constructedType}
}

// FromFieldType lifts a resolved field type to the verification type it
// occupies on the stack or in a local: byte, short, char, boolean, and int
// all collapse to integer.
func FromFieldType(ft classgraph.FieldType) VerificationType {
	if !ft.IsRef() {
		switch ft.Base() {
		case desc.Float:
			return VFloat()
		case desc.Long:
			return VLong()
		case desc.Double:
			return VDouble()
		default:
			return VInteger()
		}
	}
	return VObject(ft.Ref())
}

// Kind reports the verification-type tag.
func (v VerificationType) Kind() Kind { return v.kind }

// Ref returns the reference type for an Object verification type. Panics
// otherwise.
func (v VerificationType) Ref() classgraph.RefType {
	if v.kind != Object {
		panic("verify: Ref called on a non-Object VerificationType")
	}
	return v.ref
}

// Site returns the identifying site and constructed type for an
// Uninitialized verification type. Panics otherwise.
func (v VerificationType) Site() (NewSite, classgraph.RefType) {
	if v.kind != Uninitialized {
		panic("verify: Site called on a non-Uninitialized VerificationType")
	}
	return v.site, v.siteRef
}

// IsReference reports whether v is one of the four reference-ish kinds
// (Null, UninitializedThis, Object, Uninitialized).
func (v VerificationType) IsReference() bool {
	switch v.kind {
	case Integer, Float, Double, Long:
		return false
	default:
		return true
	}
}

// Width is 2 for Long/Double, 1 for everything else.
func (v VerificationType) Width() int {
	if v.kind == Long || v.kind == Double {
		return 2
	}
	return 1
}

// IsAssignable implements the verifier's subtyping predicate: the trivial
// reflexive cases for the four primitive-ish kinds, null assignable to any
// object, and object-to-object assignability delegated to the class graph.
// Uninitialized tokens are deliberately excluded (opaque, compared only via
// ==).
func IsAssignable(sub, super VerificationType) bool {
	switch {
	case sub.kind == Integer && super.kind == Integer,
		sub.kind == Float && super.kind == Float,
		sub.kind == Long && super.kind == Long,
		sub.kind == Double && super.kind == Double,
		sub.kind == Null && super.kind == Null:
		return true
	case sub.kind == Null && super.kind == Object:
		return true
	case sub.kind == Object && super.kind == Object:
		return classgraph.IsAssignable(sub.ref, super.ref)
	default:
		return false
	}
}

// localSlot is one entry of a Locals array: either a live verification
// type, or the filler placeholder occupying the second slot of a wide
// (long/double) local.
type localSlot struct {
	typ VerificationType
}

// Locals is a JVM local-variable array, indexed exactly like the real JVM's
// (a long/double at index i also reserves index i+1).
type Locals struct {
	slots []localSlot
}

// Len reports the number of occupied slots (== max-locals contribution).
func (l *Locals) Len() int { return len(l.slots) }

// List returns the live local types in slot order, skipping the filler
// second slot of any wide (long/double) entry — the form a StackMapTable
// frame's locals array is written in.
func (l *Locals) List() []VerificationType {
	out := make([]VerificationType, 0, len(l.slots))
	for _, s := range l.slots {
		if s.typ.kind == top {
			continue
		}
		out = append(out, s.typ)
	}
	return out
}

// Get returns the verification type stored at index. Fails if index is out
// of range or addresses the second slot of a wide entry.
func (l *Locals) Get(index uint16) (VerificationType, error) {
	if int(index) >= len(l.slots) || l.slots[index].typ.kind == top {
		return VerificationType{}, &Error{Kind: ErrInvalidIndex}
	}
	return l.slots[index].typ, nil
}

// GetExpectingType is Get plus an exact-kind check (used for load opcodes
// and iinc, which require the declared local type, not just assignability).
func (l *Locals) GetExpectingType(index uint16, expected VerificationType) error {
	got, err := l.Get(index)
	if err != nil {
		return err
	}
	if got != expected {
		return &Error{Kind: ErrInvalidType}
	}
	return nil
}

// Set stores typ at index, growing the array (padding any gap with the
// internal filler) if index is beyond the current length. This backs both
// store opcodes and the entry-frame construction for declared parameters.
func (l *Locals) Set(index uint16, typ VerificationType) error {
	need := int(index) + typ.Width()
	if need > len(l.slots) {
		grown := make([]localSlot, need)
		copy(grown, l.slots)
		for i := len(l.slots); i < int(index); i++ {
			grown[i] = localSlot{typ: VerificationType{kind: top}}
		}
		l.slots = grown
	}
	l.slots[index] = localSlot{typ: typ}
	if typ.Width() == 2 {
		l.slots[index+1] = localSlot{typ: VerificationType{kind: top}}
	}
	return nil
}

// Kill retires the last local, which must sit exactly at offset and (unless
// byReference is set) have exactly kind k; with byReference set, the check
// is IsReference() instead of an exact kind match. This backs the
// imaginary *Kill opcodes.
func (l *Locals) Kill(offset uint16, byReference bool, k Kind) error {
	if len(l.slots) == 0 {
		return &Error{Kind: ErrInvalidIndex}
	}
	last := len(l.slots) - 1
	typ := l.slots[last].typ
	width := typ.Width()
	if last-width+1 != int(offset) {
		return &Error{Kind: ErrInvalidIndex}
	}
	if byReference {
		if !typ.IsReference() {
			return &Error{Kind: ErrInvalidIndex}
		}
	} else if typ.kind != k {
		return &Error{Kind: ErrInvalidIndex}
	}
	l.slots = l.slots[:last-width+1]
	return nil
}

// replaceAll rewrites every occurrence of original (by value equality) in
// locals and stack to updated, used to turn every alias of an
// uninitialized token into the initialised object type once its
// constructor returns.
func replaceAll(slots []VerificationType, original, updated VerificationType) {
	for i, t := range slots {
		if t == original {
			slots[i] = updated
		}
	}
}

func (l *Locals) replaceAll(original, updated VerificationType) {
	for i := range l.slots {
		if l.slots[i].typ == original {
			l.slots[i].typ = updated
		}
	}
}

// Frame is the verifier's view of a basic block's state: its local variable
// array and its operand stack (top at the end of the slice).
type Frame struct {
	Locals Locals
	Stack  []VerificationType
}

// Clone returns an independent copy, used by the code builder to snapshot
// an entry frame before interpreting a block's instructions.
func (f *Frame) Clone() Frame {
	out := Frame{
		Locals: Locals{slots: append([]localSlot(nil), f.Locals.slots...)},
		Stack:  append([]VerificationType(nil), f.Stack...),
	}
	return out
}

// Equal reports whether two frames hold identical locals and stack — the
// code builder's no-merging, frame-exact invariant checks this at every
// control-flow edge.
func (f *Frame) Equal(other *Frame) bool {
	if len(f.Stack) != len(other.Stack) || len(f.Locals.slots) != len(other.Locals.slots) {
		return false
	}
	for i := range f.Stack {
		if f.Stack[i] != other.Stack[i] {
			return false
		}
	}
	for i := range f.Locals.slots {
		if f.Locals.slots[i].typ != other.Locals.slots[i].typ {
			return false
		}
	}
	return true
}

func (f *Frame) pop() (VerificationType, error) {
	n := len(f.Stack)
	if n == 0 {
		return VerificationType{}, &Error{Kind: ErrEmptyStack}
	}
	v := f.Stack[n-1]
	f.Stack = f.Stack[:n-1]
	return v, nil
}

func (f *Frame) popExpectingWidth(width int) (VerificationType, error) {
	v, err := f.pop()
	if err != nil {
		return VerificationType{}, err
	}
	if v.Width() != width {
		return VerificationType{}, &Error{Kind: ErrInvalidWidth, Width: v.Width()}
	}
	return v, nil
}

func (f *Frame) popExpectingType(expected VerificationType) error {
	v, err := f.pop()
	if err != nil {
		return err
	}
	if v != expected {
		return &Error{Kind: ErrInvalidType}
	}
	return nil
}

// popExpectingAssignable pops the top of the stack and checks it is
// assignable to expected — the check used wherever a value flows into a
// declared type (invoke arguments, field stores, array element stores),
// where e.g. null must be accepted for any object-typed slot.
func (f *Frame) popExpectingAssignable(expected VerificationType) error {
	v, err := f.pop()
	if err != nil {
		return err
	}
	if !IsAssignable(v, expected) {
		return &Error{Kind: ErrInvalidType}
	}
	return nil
}

func (f *Frame) push(v VerificationType) { f.Stack = append(f.Stack, v) }

// stackWidth is the sum of the widths of every entry currently on the
// stack — the quantity max-stack tracks.
func (f *Frame) stackWidth() int {
	w := 0
	for _, v := range f.Stack {
		w += v.Width()
	}
	return w
}

// UpdateMaximums raises *maxLocals/*maxStack to the current frame's widths
// if they are larger; the code builder calls this after every transfer.
func (f *Frame) UpdateMaximums(maxLocals, maxStack *int) {
	if n := f.Locals.Len(); n > *maxLocals {
		*maxLocals = n
	}
	if n := f.stackWidth(); n > *maxStack {
		*maxStack = n
	}
}

// GeneralizeTopStackType widens the current top of the stack to general,
// erroring if the current type is not assignable to it.
func (f *Frame) GeneralizeTopStackType(general classgraph.RefType) error {
	specific, err := f.pop()
	if err != nil {
		return err
	}
	generalType := VObject(general)
	if !IsAssignable(specific, generalType) {
		return &Error{Kind: ErrInvalidType}
	}
	f.push(generalType)
	return nil
}

// KillTopLocal retires the top local, forwarding to Locals.Kill. expected is
// nil to only check the local is a reference (AKill-equivalent use from the
// code builder), or a specific VerificationType to require an exact match.
func (f *Frame) KillTopLocal(offset uint16, expected *VerificationType) error {
	if expected == nil {
		return f.Locals.Kill(offset, true, 0)
	}
	return f.Locals.Kill(offset, false, expected.kind)
}

// LocalsList returns the frame's live local types in slot order, for
// building a StackMapTable frame's locals array.
func (f *Frame) LocalsList() []VerificationType { return f.Locals.List() }

// StackList returns an independent copy of the frame's operand stack, bottom
// first, for building a StackMapTable frame's stack array.
func (f *Frame) StackList() []VerificationType {
	return append([]VerificationType(nil), f.Stack...)
}
