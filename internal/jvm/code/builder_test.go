package code

import (
	"testing"

	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/desc"
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
	"github.com/harpocrates/wasm2jar/internal/jvm/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilder(t *testing.T, descriptor string, static bool) *Builder {
	t.Helper()
	g := classgraph.New()
	java, err := classgraph.InsertJavaLibraryTypes(g)
	require.NoError(t, err)

	owner, err := g.AddClass(classgraph.ClassInput{Name: "com/example/Test"})
	require.NoError(t, err)

	md, err := desc.ParseMethodDescriptor(descriptor)
	require.NoError(t, err)

	name := desc.UnqualifiedName("run")
	method := g.AddMethod(owner, name, md, 0, static)

	b, err := NewBuilder(g, java, method)
	require.NoError(t, err)
	return b
}

func TestNewBuilderSeedsInstanceLocals(t *testing.T) {
	b := testBuilder(t, "(I)V", false)
	// this, plus one int parameter.
	assert.Equal(t, 2, b.code.MaxLocals)
}

func TestNewBuilderSeedsStaticLocals(t *testing.T) {
	b := testBuilder(t, "(I)V", true)
	assert.Equal(t, 1, b.code.MaxLocals)
}

func TestPushInstructionThenReturn(t *testing.T) {
	b := testBuilder(t, "()V", true)
	require.NoError(t, b.PushBranchInstruction(insn.BranchInstruction{Op: insn.Return}))

	code, err := b.Result()
	require.NoError(t, err)
	assert.Len(t, code.Blocks, 1)
	assert.Equal(t, []insn.Label{entryLabel}, code.BlockOrder)
}

func TestResultFailsWhenBlockLeftOpen(t *testing.T) {
	b := testBuilder(t, "()V", true)
	_, err := b.Result()
	require.Error(t, err)
	assert.Equal(t, MethodCodeNotFinished, err.(*BuilderError).Kind)
}

func TestResultFailsWhenJumpNeverPlaced(t *testing.T) {
	b := testBuilder(t, "()V", true)
	target := b.FreshLabel()
	require.NoError(t, b.PushBranchInstruction(insn.BranchInstruction{Op: insn.Goto, Target: target}))

	_, err := b.Result()
	require.Error(t, err)
	assert.Equal(t, UnresolvedLabel, err.(*BuilderError).Kind)
}

func TestPlaceLabelBeforeReferenceFails(t *testing.T) {
	b := testBuilder(t, "()V", true)
	require.NoError(t, b.PushBranchInstruction(insn.BranchInstruction{Op: insn.Return}))
	stray := b.FreshLabel()
	err := b.PlaceLabel(stray)
	require.Error(t, err)
	assert.Equal(t, PlacingLabelBeforeReference, err.(*BuilderError).Kind)
}

func TestGotoToPlacedLabelWithMatchingFrame(t *testing.T) {
	b := testBuilder(t, "()V", true)
	target := b.FreshLabel()
	require.NoError(t, b.PushBranchInstruction(insn.BranchInstruction{Op: insn.Goto, Target: target}))
	require.NoError(t, b.PlaceLabel(target))
	require.NoError(t, b.PushBranchInstruction(insn.BranchInstruction{Op: insn.Return}))

	code, err := b.Result()
	require.NoError(t, err)
	assert.Len(t, code.Blocks, 2)
	assert.Equal(t, []insn.Label{entryLabel, target}, code.BlockOrder)
}

func TestDuplicatePlaceLabelFails(t *testing.T) {
	b := testBuilder(t, "()V", true)
	target := b.FreshLabel()
	require.NoError(t, b.PushBranchInstruction(insn.BranchInstruction{Op: insn.Goto, Target: target}))
	require.NoError(t, b.PlaceLabel(target))
	require.NoError(t, b.PushBranchInstruction(insn.BranchInstruction{Op: insn.Goto, Target: target}))

	err := b.PlaceLabel(target)
	require.Error(t, err)
	assert.Equal(t, DuplicateLabel, err.(*BuilderError).Kind)
}

func TestIncompatibleFramesRejected(t *testing.T) {
	b := testBuilder(t, "()V", true)
	target := b.FreshLabel()

	// First jump sees an empty stack.
	require.NoError(t, b.PushBranchInstruction(insn.BranchInstruction{Op: insn.Goto, Target: target}))

	// Second block pushes a value onto the stack before jumping to the
	// same target, so the frames the builder sees for `target` disagree.
	other := b.FreshLabel()
	require.NoError(t, b.PlaceLabelWithFrame(other, &verify.Frame{}))
	require.NoError(t, b.PushInstruction(insn.UnresolvedInstruction{Op: insn.IConst, IntImm: 1}))
	err := b.PushBranchInstruction(insn.BranchInstruction{Op: insn.Goto, Target: target})
	require.Error(t, err)
	assert.Equal(t, IncompatibleFrames, err.(*BuilderError).Kind)
}

func TestPlaceLabelWithFrameOpensDeadCodeBlock(t *testing.T) {
	b := testBuilder(t, "()V", true)
	require.NoError(t, b.PushBranchInstruction(insn.BranchInstruction{Op: insn.Return}))
	assert.Nil(t, b.CurrentFrame(), "return closes the entry block, leaving a dead-code position")

	// A label nothing has jumped to yet can still start a block here, but
	// only with an explicit frame — plain PlaceLabel has nothing to infer
	// its entry state from.
	target := b.FreshLabel()
	entry := verify.Frame{}
	require.NoError(t, b.PlaceLabelWithFrame(target, &entry))
	require.NotNil(t, b.CurrentFrame())
	require.NoError(t, b.PushBranchInstruction(insn.BranchInstruction{Op: insn.Return}))

	code, err := b.Result()
	require.NoError(t, err)
	assert.Len(t, code.Blocks, 2)
}

func TestCurrentFrameReflectsPushedInstructions(t *testing.T) {
	b := testBuilder(t, "()V", true)
	assert.NotNil(t, b.CurrentFrame())
	require.NoError(t, b.PushInstruction(insn.UnresolvedInstruction{Op: insn.IConst, IntImm: 1}))
	assert.Equal(t, []verify.VerificationType{verify.VInteger()}, b.CurrentFrame().Stack)
}
