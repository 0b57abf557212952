package verify

import (
	"testing"

	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/desc"
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testGraph(t *testing.T) (*classgraph.Graph, *classgraph.JavaLibrary) {
	t.Helper()
	g := classgraph.New()
	java, err := classgraph.InsertJavaLibraryTypes(g)
	require.NoError(t, err)
	return g, java
}

func TestIAddPopsTwoIntsPushesOne(t *testing.T) {
	g, java := testGraph(t)
	f := &Frame{Stack: []VerificationType{VInteger(), VInteger()}}
	in := insn.UnresolvedInstruction{Op: insn.IAdd}
	require.NoError(t, f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0))
	assert.Equal(t, []VerificationType{VInteger()}, f.Stack)
}

func TestIAddRejectsWrongType(t *testing.T) {
	g, java := testGraph(t)
	f := &Frame{Stack: []VerificationType{VFloat(), VInteger()}}
	in := insn.UnresolvedInstruction{Op: insn.IAdd}
	err := f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidType, err.(*Error).Kind)
}

func TestLShPopsIntThenLongPushesLong(t *testing.T) {
	g, java := testGraph(t)
	f := &Frame{Stack: []VerificationType{VLong(), VInteger()}}
	in := insn.UnresolvedInstruction{Op: insn.LSh}
	require.NoError(t, f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0))
	assert.Equal(t, []VerificationType{VLong()}, f.Stack)
}

func TestLoadStoreRoundTrip(t *testing.T) {
	g, java := testGraph(t)
	f := &Frame{}
	store := insn.UnresolvedInstruction{Op: insn.IStore, VarIndex: 2}
	f.push(VInteger())
	require.NoError(t, f.Interpret(store, g, java, classgraph.NewObjectRef(java.Object), 0, 0))

	load := insn.UnresolvedInstruction{Op: insn.ILoad, VarIndex: 2}
	require.NoError(t, f.Interpret(load, g, java, classgraph.NewObjectRef(java.Object), 0, 0))
	assert.Equal(t, []VerificationType{VInteger()}, f.Stack)
}

func TestWideLocalOccupiesTwoSlots(t *testing.T) {
	g, java := testGraph(t)
	f := &Frame{}
	f.push(VLong())
	store := insn.UnresolvedInstruction{Op: insn.LStore, VarIndex: 0}
	require.NoError(t, f.Interpret(store, g, java, classgraph.NewObjectRef(java.Object), 0, 0))
	assert.Equal(t, 2, f.Locals.Len())

	// index 1 (the filler slot) cannot be read back.
	_, err := f.Locals.Get(1)
	require.Error(t, err)
}

func TestDupDuplicatesTopOfStack(t *testing.T) {
	g, java := testGraph(t)
	f := &Frame{Stack: []VerificationType{VInteger()}}
	in := insn.UnresolvedInstruction{Op: insn.Dup}
	require.NoError(t, f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0))
	assert.Equal(t, []VerificationType{VInteger(), VInteger()}, f.Stack)
}

func TestDup2WideSingleForm(t *testing.T) {
	g, java := testGraph(t)
	f := &Frame{Stack: []VerificationType{VLong()}}
	in := insn.UnresolvedInstruction{Op: insn.Dup2}
	require.NoError(t, f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0))
	assert.Equal(t, []VerificationType{VLong(), VLong()}, f.Stack)
}

func TestDup2NarrowPairForm(t *testing.T) {
	g, java := testGraph(t)
	f := &Frame{Stack: []VerificationType{VInteger(), VFloat()}}
	in := insn.UnresolvedInstruction{Op: insn.Dup2}
	require.NoError(t, f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0))
	assert.Equal(t, []VerificationType{VInteger(), VFloat(), VInteger(), VFloat()}, f.Stack)
}

func TestDupOnWideValueIsInvalidWidth(t *testing.T) {
	g, java := testGraph(t)
	f := &Frame{Stack: []VerificationType{VLong()}}
	in := insn.UnresolvedInstruction{Op: insn.Dup}
	err := f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidWidth, err.(*Error).Kind)
}

func TestAALoadDecomposesArrayElementType(t *testing.T) {
	g, java := testGraph(t)
	strArr := classgraph.NewObjectArrayRef(java.String, 0)
	f := &Frame{Stack: []VerificationType{VObject(strArr), VInteger()}}
	in := insn.UnresolvedInstruction{Op: insn.AALoad}
	require.NoError(t, f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0))
	require.Len(t, f.Stack, 1)
	assert.Equal(t, java.String, f.Stack[0].Ref().Class())
}

func TestAAStoreRejectsIncompatibleElement(t *testing.T) {
	g, java := testGraph(t)
	strArr := classgraph.NewObjectArrayRef(java.String, 0)
	f := &Frame{Stack: []VerificationType{VObject(strArr), VInteger(), VObject(classgraph.NewObjectRef(java.Object))}}
	in := insn.UnresolvedInstruction{Op: insn.AAStore}
	err := f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidType, err.(*Error).Kind)
}

func TestNewPushesUninitializedTaggedBySite(t *testing.T) {
	g, java := testGraph(t)
	someCls := classgraph.NewObjectRef(java.Exception)
	f := &Frame{}
	in := insn.UnresolvedInstruction{Op: insn.New, ClassVal: someCls}
	require.NoError(t, f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 3, 7))
	require.Len(t, f.Stack, 1)
	assert.Equal(t, Uninitialized, f.Stack[0].Kind())
	site, constructed := f.Stack[0].Site()
	assert.Equal(t, NewSite{Block: 3, Offset: 7}, site)
	assert.Equal(t, someCls, constructed)
}

func TestInvokeSpecialInitRewritesEveryAlias(t *testing.T) {
	g, java := testGraph(t)
	excCls := java.Exception
	ctor := g.AddMethod(excCls, desc.UnqualifiedName("<init>"), desc.MethodDescriptor{}, 0, false)

	site := NewSite{Block: 0, Offset: 0}
	uninit := VUninitialized(site, classgraph.NewObjectRef(excCls))
	f := &Frame{Stack: []VerificationType{uninit, uninit}}
	require.NoError(t, f.Locals.Set(0, uninit))

	in := insn.UnresolvedInstruction{
		Op:         insn.Invoke,
		MethodVal:  ctor,
		InvokeKind: insn.InvokeKind{Special: true},
	}
	require.NoError(t, f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0))

	want := VObject(classgraph.NewObjectRef(excCls))
	assert.Equal(t, want, f.Stack[0])
	local, err := f.Locals.Get(0)
	require.NoError(t, err)
	assert.Equal(t, want, local)
}

// TestInvokeSpecialInitDoesNotAliasDistinctNewSites pins the token-identity
// rule: two interleaved `new` sites carry distinct uninitialized tokens, so
// initializing one never touches the other, even when both are object of
// the exact same class.
func TestInvokeSpecialInitDoesNotAliasDistinctNewSites(t *testing.T) {
	g, java := testGraph(t)
	excCls := java.Exception
	ctor := g.AddMethod(excCls, desc.UnqualifiedName("<init>"), desc.MethodDescriptor{}, 0, false)

	siteA := NewSite{Block: 0, Offset: 0}
	siteB := NewSite{Block: 0, Offset: 3}
	uninitA := VUninitialized(siteA, classgraph.NewObjectRef(excCls))
	uninitB := VUninitialized(siteB, classgraph.NewObjectRef(excCls))

	// Stack (bottom to top, the last element is top): [B, A]. Initializing A
	// must leave B's token, sitting right underneath, completely untouched.
	f := &Frame{Stack: []VerificationType{uninitB, uninitA}}
	in := insn.UnresolvedInstruction{
		Op:         insn.Invoke,
		MethodVal:  ctor,
		InvokeKind: insn.InvokeKind{Special: true},
	}
	require.NoError(t, f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0))

	require.Len(t, f.Stack, 1)
	assert.Equal(t, Uninitialized, f.Stack[0].Kind())
	site, constructed := f.Stack[0].Site()
	assert.Equal(t, siteB, site)
	assert.Equal(t, classgraph.NewObjectRef(excCls), constructed)
}

func TestInvokeSpecialInitThis(t *testing.T) {
	g, java := testGraph(t)
	thisRef := classgraph.NewObjectRef(java.RuntimeException)
	ctor := g.AddMethod(java.RuntimeException, desc.UnqualifiedName("<init>"), desc.MethodDescriptor{}, 0, false)

	// As after `aload_0; dup`: the constructor call consumes the top copy as
	// its receiver, and the copy underneath is rewritten to the class type.
	f := &Frame{Stack: []VerificationType{VUninitializedThis(), VUninitializedThis()}}
	in := insn.UnresolvedInstruction{
		Op:         insn.Invoke,
		MethodVal:  ctor,
		InvokeKind: insn.InvokeKind{Special: true},
	}
	require.NoError(t, f.Interpret(in, g, java, thisRef, 0, 0))
	assert.Equal(t, []VerificationType{VObject(thisRef)}, f.Stack)
}

// TestInvokeAcceptsNullAndSubtypeArguments pins the argument rule: values
// are checked for assignability to the declared parameter type, not exact
// equality, so a null literal or a subtype works anywhere the declared type
// would.
func TestInvokeAcceptsNullAndSubtypeArguments(t *testing.T) {
	g, java := testGraph(t)
	throwableParam := desc.ObjectType(desc.Throwable)
	m := g.AddMethod(java.Object, desc.UnqualifiedName("accept"),
		desc.MethodDescriptor{Parameters: []desc.FieldType{throwableParam}}, 0, true)
	in := insn.UnresolvedInstruction{Op: insn.Invoke, MethodVal: m, InvokeKind: insn.InvokeKind{Static: true}}

	fNull := &Frame{Stack: []VerificationType{VNull()}}
	require.NoError(t, fNull.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0))

	fSub := &Frame{Stack: []VerificationType{VObject(classgraph.NewObjectRef(java.RuntimeException))}}
	require.NoError(t, fSub.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0))

	fBad := &Frame{Stack: []VerificationType{VObject(classgraph.NewObjectRef(java.Object))}}
	err := fBad.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidType, err.(*Error).Kind)
}

func TestAStoreRequiresReference(t *testing.T) {
	g, java := testGraph(t)
	f := &Frame{Stack: []VerificationType{VInteger()}}
	err := f.Interpret(insn.UnresolvedInstruction{Op: insn.AStore, VarIndex: 0}, g, java, classgraph.NewObjectRef(java.Object), 0, 0)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidType, err.(*Error).Kind)

	f2 := &Frame{Stack: []VerificationType{VNull()}}
	require.NoError(t, f2.Interpret(insn.UnresolvedInstruction{Op: insn.AStore, VarIndex: 0}, g, java, classgraph.NewObjectRef(java.Object), 0, 0))
}

func TestGetFieldChecksReceiverAssignability(t *testing.T) {
	g, java := testGraph(t)
	fd := g.AddField(java.RuntimeException, desc.UnqualifiedName("msg"), desc.BaseFieldType(desc.Int), 0, false)
	f := &Frame{Stack: []VerificationType{VObject(classgraph.NewObjectRef(java.ArithmeticExc))}}
	in := insn.UnresolvedInstruction{Op: insn.GetField, FieldVal: fd}
	require.NoError(t, f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0))
	assert.Equal(t, []VerificationType{VInteger()}, f.Stack)
}

func TestAThrowClearsStackAndRequiresThrowable(t *testing.T) {
	_, java := testGraph(t)
	f := &Frame{Stack: []VerificationType{VInteger(), VObject(classgraph.NewObjectRef(java.RuntimeException))}}
	b := insn.BranchInstruction{Op: insn.AThrow}
	require.NoError(t, f.InterpretBranch(b, nil))
	assert.Equal(t, []VerificationType{VObject(classgraph.NewObjectRef(java.RuntimeException))}, f.Stack)

	f2 := &Frame{Stack: []VerificationType{VInteger()}}
	err := f2.InterpretBranch(b, nil)
	require.Error(t, err)
	assert.Equal(t, ErrThrowableCheckFailed, err.(*Error).Kind)
}

func TestAReturnChecksAssignability(t *testing.T) {
	_, java := testGraph(t)
	retType := classgraph.NewRefField(classgraph.NewObjectRef(java.Exception))
	f := &Frame{Stack: []VerificationType{VObject(classgraph.NewObjectRef(java.RuntimeException))}}
	require.NoError(t, f.InterpretBranch(insn.BranchInstruction{Op: insn.AReturn}, &retType))

	f2 := &Frame{Stack: []VerificationType{VObject(classgraph.NewObjectRef(java.Object))}}
	err := f2.InterpretBranch(insn.BranchInstruction{Op: insn.AReturn}, &retType)
	require.Error(t, err)
	assert.Equal(t, ErrReturnTypeMismatch, err.(*Error).Kind)
}

func TestReturnRequiresVoidDeclaration(t *testing.T) {
	f := &Frame{}
	require.NoError(t, f.InterpretBranch(insn.BranchInstruction{Op: insn.Return}, nil))

	retType := classgraph.NewBaseField(desc.Int)
	err := f.InterpretBranch(insn.BranchInstruction{Op: insn.Return}, &retType)
	require.Error(t, err)
	assert.Equal(t, ErrReturnTypeMismatch, err.(*Error).Kind)
}

func TestIfICmpPopsTwoInts(t *testing.T) {
	f := &Frame{Stack: []VerificationType{VInteger(), VInteger()}}
	b := insn.BranchInstruction{Op: insn.IfICmp, OrdCmp: insn.CmpLT}
	require.NoError(t, f.InterpretBranch(b, nil))
	assert.Empty(t, f.Stack)
}

func TestKillRequiresExactOffsetOfLastLocal(t *testing.T) {
	g, java := testGraph(t)
	f := &Frame{}
	require.NoError(t, f.Locals.Set(0, VInteger()))
	require.NoError(t, f.Locals.Set(1, VInteger()))

	in := insn.UnresolvedInstruction{Op: insn.IKill, VarIndex: 0}
	err := f.Interpret(in, g, java, classgraph.NewObjectRef(java.Object), 0, 0)
	require.Error(t, err, "killing a non-last local must fail")

	in2 := insn.UnresolvedInstruction{Op: insn.IKill, VarIndex: 1}
	require.NoError(t, f.Interpret(in2, g, java, classgraph.NewObjectRef(java.Object), 0, 0))
	assert.Equal(t, 1, f.Locals.Len())
}

func TestFrameCloneIsIndependent(t *testing.T) {
	f := &Frame{Stack: []VerificationType{VInteger()}}
	require.NoError(t, f.Locals.Set(0, VLong()))
	clone := f.Clone()
	f.push(VFloat())
	assert.NotEqual(t, f.Stack, clone.Stack)
	assert.True(t, clone.Equal(&Frame{Stack: []VerificationType{VInteger()}, Locals: clone.Locals}))
}
