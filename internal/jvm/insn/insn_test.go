package insn

import (
	"bytes"
	"testing"

	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/cpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serialize(t *testing.T, i ResolvedInstruction) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, i.Serialize(&buf))
	assert.Equal(t, i.Width(), buf.Len())
	return buf.Bytes()
}

func TestIConstCoversFullRange(t *testing.T) {
	for imm := int32(-1); imm <= 5; imm++ {
		i := ResolvedInstruction{Op: IConst, IntImm: imm}
		b := serialize(t, i)
		require.Len(t, b, 1)
		assert.Equal(t, byte(0x02+imm+1), b[0])
	}
}

func TestLdcWidthDependsOnIndex(t *testing.T) {
	small := ResolvedInstruction{Op: Ldc, ConstVal: 5}
	assert.Equal(t, 2, small.Width())
	b := serialize(t, small)
	assert.Equal(t, []byte{0x12, 0x05}, b)

	big := ResolvedInstruction{Op: Ldc, ConstVal: 300}
	assert.Equal(t, 3, big.Width())
	b = serialize(t, big)
	assert.Equal(t, byte(0x13), b[0])
}

func TestLdc2AlwaysWide(t *testing.T) {
	i := ResolvedInstruction{Op: Ldc2, ConstVal: 2}
	assert.Equal(t, 3, i.Width())
	b := serialize(t, i)
	assert.Equal(t, byte(0x14), b[0])
}

func TestLoadStoreWidthTiers(t *testing.T) {
	cases := []struct {
		idx   uint16
		width int
	}{
		{0, 1}, {3, 1}, {4, 2}, {255, 2}, {256, 4}, {65535, 4},
	}
	for _, c := range cases {
		i := ResolvedInstruction{Op: ILoad, VarIndex: c.idx}
		assert.Equal(t, c.width, i.Width(), "idx=%d", c.idx)
		serialize(t, i)
	}
}

func TestILoadShortForm(t *testing.T) {
	i := ResolvedInstruction{Op: ILoad, VarIndex: 2}
	b := serialize(t, i)
	assert.Equal(t, []byte{0x1a + 2}, b)
}

func TestILoadWideForm(t *testing.T) {
	i := ResolvedInstruction{Op: ILoad, VarIndex: 1000}
	b := serialize(t, i)
	assert.Equal(t, byte(0xc4), b[0])
	assert.Equal(t, byte(0x15), b[1])
}

func TestIIncWidthAndWideForm(t *testing.T) {
	narrow := ResolvedInstruction{Op: IInc, VarIndex: 1, IntImm: 5}
	assert.Equal(t, 3, narrow.Width())
	serialize(t, narrow)

	wide := ResolvedInstruction{Op: IInc, VarIndex: 1, IntImm: 1000}
	assert.Equal(t, 6, wide.Width())
	b := serialize(t, wide)
	assert.Equal(t, byte(0xc4), b[0])
	assert.Equal(t, byte(0x84), b[1])
}

func TestInvokeInterfaceEncodesArgCount(t *testing.T) {
	i := ResolvedInstruction{Op: Invoke, MethodVal: 7, InvokeKind: InvokeKind{Interface: true, InterfaceArgsWidth: 3}}
	b := serialize(t, i)
	assert.Equal(t, byte(0xb9), b[0])
	assert.Equal(t, byte(3), b[3])
	assert.Equal(t, byte(0), b[4])
}

func TestInvokeDynamicReservedBytesAreZero(t *testing.T) {
	i := ResolvedInstruction{Op: InvokeDynamic, IndyVal: 9}
	b := serialize(t, i)
	assert.Equal(t, byte(0xba), b[0])
	assert.Equal(t, []byte{0, 0}, b[3:5])
}

func TestImaginaryInstructionsEmitNothing(t *testing.T) {
	for _, op := range []Op{IKill, LKill, FKill, DKill, AKill, AHint} {
		i := ResolvedInstruction{Op: op}
		assert.Equal(t, 0, i.Width())
		var buf bytes.Buffer
		require.NoError(t, i.Serialize(&buf))
		assert.Empty(t, buf.Bytes())
	}
}

func TestMapRewritesOnlyRelevantPayload(t *testing.T) {
	in := UnresolvedInstruction{Op: IAdd}
	out, err := Map(in,
		func(rt classgraph.RefType) (cpool.Index, error) { return 0, nil },
		func(c Constant) (cpool.Index, error) { t.Fatal("constant mapper should not run for IAdd"); return 0, nil },
		func(f *classgraph.FieldData) (cpool.Index, error) { return 0, nil },
		func(m *classgraph.MethodData) (cpool.Index, error) { return 0, nil },
		func(d Indy) (cpool.Index, error) { return 0, nil },
	)
	require.NoError(t, err)
	assert.Equal(t, IAdd, out.Op)
}

func TestOrdComparisonNegateIsInvolutive(t *testing.T) {
	for _, c := range []OrdComparison{CmpEQ, CmpNE, CmpLT, CmpGE, CmpGT, CmpLE} {
		assert.Equal(t, c, c.Negate().Negate())
		assert.NotEqual(t, c, c.Negate())
	}
}

func TestEqComparisonNegateIsInvolutive(t *testing.T) {
	assert.Equal(t, EqNE, EqEQ.Negate())
	assert.Equal(t, EqEQ, EqEQ.Negate().Negate())
}

func TestBranchFallthroughAndJumpTargets(t *testing.T) {
	b := BranchInstruction{Op: If, OrdCmp: CmpEQ, Target: 5, Next: 6}
	next, ok := b.FallthroughTarget()
	require.True(t, ok)
	assert.Equal(t, Label(6), next)
	assert.Equal(t, []Label{5}, b.JumpTargets())
	assert.True(t, b.IsRegularJump())

	g := BranchInstruction{Op: GotoW, WideTarget: 9}
	_, ok = g.FallthroughTarget()
	assert.False(t, ok)
	assert.Equal(t, []Label{9}, g.JumpTargets())
	assert.False(t, g.IsRegularJump())
}

func TestBranchMapLabels(t *testing.T) {
	b := BranchInstruction{Op: TableSwitch, Default: 1, Targets: []Label{2, 3, 4}}
	out := b.MapLabels(func(l Label) Label { return l + 100 })
	assert.Equal(t, Label(101), out.Default)
	assert.Equal(t, []Label{102, 103, 104}, out.Targets)
	// original untouched
	assert.Equal(t, Label(1), b.Default)
}

func TestBranchWidths(t *testing.T) {
	assert.Equal(t, 0, BranchInstruction{Op: FallThrough}.Width())
	assert.Equal(t, 1, BranchInstruction{Op: Return}.Width())
	assert.Equal(t, 3, BranchInstruction{Op: Goto}.Width())
	assert.Equal(t, 5, BranchInstruction{Op: GotoW}.Width())
	sw := BranchInstruction{Op: TableSwitch, Padding: 1, Targets: []Label{1, 2}}
	assert.Equal(t, 1+1+4*(3+2), sw.Width())
}

func TestBranchSerializeGoto(t *testing.T) {
	b := BranchInstruction{Op: Goto}
	var buf bytes.Buffer
	require.NoError(t, b.Serialize(&buf, Offsets{Regular: -3}))
	assert.Equal(t, []byte{0xa7, 0xff, 0xfd}, buf.Bytes())
}

func TestBranchSerializeLookupSwitch(t *testing.T) {
	b := BranchInstruction{Op: LookupSwitch, Keys: []int32{1, 2}}
	var buf bytes.Buffer
	require.NoError(t, b.Serialize(&buf, Offsets{Wide: 10, Targets: []int32{20, 30}}))
	assert.Equal(t, byte(0xab), buf.Bytes()[0])
}
