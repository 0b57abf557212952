package cpool

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetUTF8Idempotent(t *testing.T) {
	p := New()
	i1, err := p.GetUTF8("hello")
	require.NoError(t, err)
	i2, err := p.GetUTF8("hello")
	require.NoError(t, err)
	require.Equal(t, i1, i2)

	i3, err := p.GetUTF8("world")
	require.NoError(t, err)
	require.NotEqual(t, i1, i3)
	require.Len(t, p.Entries(), 2)
}

func TestGetClassByNameIdempotent(t *testing.T) {
	p := New()
	i1, err := p.GetClassByName("java/lang/Object")
	require.NoError(t, err)
	i2, err := p.GetClassByName("java/lang/Object")
	require.NoError(t, err)
	require.Equal(t, i1, i2)
	// One UTF8 entry plus one Class entry.
	require.Len(t, p.Entries(), 2)
}

func TestLongDoubleWidthTwo(t *testing.T) {
	p := New()
	i1, err := p.GetLong(42)
	require.NoError(t, err)
	i2, err := p.GetInteger(7)
	require.NoError(t, err)
	// The long at i1 reserves i1 and i1+1; the next entry must start after that.
	require.Equal(t, Index(uint16(i1)+2), i2)
}

func TestFloatDoubleDistinguishNaNBitPatterns(t *testing.T) {
	p := New()
	nan1 := math.Float32frombits(0x7fc00001)
	nan2 := math.Float32frombits(0x7fc00002)
	i1, err := p.GetFloat(nan1)
	require.NoError(t, err)
	i2, err := p.GetFloat(nan2)
	require.NoError(t, err)
	require.NotEqual(t, i1, i2)

	i3, err := p.GetFloat(nan1)
	require.NoError(t, err)
	require.Equal(t, i1, i3)
}

func TestConstantPoolOverflow(t *testing.T) {
	p := New()
	for i := 0; i < MaxIndex; i++ {
		if _, err := p.GetInteger(int32(i)); err != nil {
			require.IsType(t, &OverflowError{}, err)
			return
		}
	}
	t.Fatal("expected overflow before filling the pool")
}

func TestGetFieldrefAndMethodref(t *testing.T) {
	p := New()
	f1, err := p.GetFieldref("com/example/Foo", "bar", "I")
	require.NoError(t, err)
	f2, err := p.GetFieldref("com/example/Foo", "bar", "I")
	require.NoError(t, err)
	require.Equal(t, f1, f2)

	m1, err := p.GetMethodref("com/example/Foo", "doIt", "()V", false)
	require.NoError(t, err)
	m2, err := p.GetMethodref("com/example/Foo", "doIt", "()V", true)
	require.NoError(t, err)
	require.NotEqual(t, m1, m2, "Methodref and InterfaceMethodref must be distinct entries")
}

func TestBootstrapMethodDedup(t *testing.T) {
	p := New()
	handle, err := p.GetMethodHandle(RefInvokeStatic, Index(5))
	require.NoError(t, err)

	i1 := p.GetOrAddBootstrapMethod(handle, []Index{1, 2})
	i2 := p.GetOrAddBootstrapMethod(handle, []Index{1, 2})
	require.Equal(t, i1, i2)

	i3 := p.GetOrAddBootstrapMethod(handle, []Index{1, 3})
	require.NotEqual(t, i1, i3)
	require.Len(t, p.BootstrapMethods(), 2)
}

func TestInvokeDynamicInterning(t *testing.T) {
	p := New()
	handle, err := p.GetMethodHandle(RefInvokeStatic, Index(5))
	require.NoError(t, err)
	bidx := p.GetOrAddBootstrapMethod(handle, nil)

	i1, err := p.GetInvokeDynamic(bidx, "call", "()V")
	require.NoError(t, err)
	i2, err := p.GetInvokeDynamic(bidx, "call", "()V")
	require.NoError(t, err)
	require.Equal(t, i1, i2)
}

func TestPoolCountAccountsForWideEntries(t *testing.T) {
	p := New()
	_, err := p.GetLong(1)
	require.NoError(t, err)
	// One long entry (width 2) plus the reserved slot 0 => count == 3.
	require.Equal(t, uint16(3), p.Count())
}
