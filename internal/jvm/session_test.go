package jvmgen

import (
	"testing"

	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/desc"
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
	"github.com/harpocrates/wasm2jar/internal/jvmtest"
	"github.com/stretchr/testify/require"
)

// buildAddClass drives a whole session end to end: one class, one static
// int-add method, serialized to bytes.
func buildAddClass(t *testing.T, opts ...SessionOption) []byte {
	t.Helper()
	session, err := NewSession(opts...)
	require.NoError(t, err)

	classData, err := session.Graph.AddClass(classgraph.ClassInput{
		Name:        "generated/Add",
		Superclass:  session.Java.Object,
		AccessFlags: 0x0031,
	})
	require.NoError(t, err)

	intType := desc.BaseFieldType(desc.Int)
	addDescriptor := desc.MethodDescriptor{
		Parameters: []desc.FieldType{intType, intType},
		Return:     &intType,
	}
	methodData := session.Graph.AddMethod(classData, "add", addDescriptor, 0x0009, true)

	builder, err := session.NewMethodBuilder(methodData)
	require.NoError(t, err)
	require.NoError(t, builder.PushInstruction(insn.UnresolvedInstruction{Op: insn.ILoad, VarIndex: 0}))
	require.NoError(t, builder.PushInstruction(insn.UnresolvedInstruction{Op: insn.ILoad, VarIndex: 1}))
	require.NoError(t, builder.PushInstruction(insn.UnresolvedInstruction{Op: insn.IAdd}))
	require.NoError(t, builder.PushBranchInstruction(insn.BranchInstruction{Op: insn.IReturn}))
	methodCode, err := builder.Result()
	require.NoError(t, err)

	classFile := session.NewClass(classData)
	require.NoError(t, classFile.AddMethod(methodData, methodCode))
	bytes, err := classFile.Bytes()
	require.NoError(t, err)
	return bytes
}

// Two independent sessions over the same input must produce the same bytes:
// every table in the pipeline is insertion-ordered, so nothing about the
// output may depend on map iteration order.
func TestSessionOutputIsDeterministic(t *testing.T) {
	jvmtest.RequireClassFileBytes(t, buildAddClass(t), buildAddClass(t))
}

func TestSessionClassFileHeader(t *testing.T) {
	b := buildAddClass(t)
	require.GreaterOrEqual(t, len(b), 10)
	require.Equal(t, []byte{0xCA, 0xFE, 0xBA, 0xBE}, b[:4])

	minor := int(b[4])<<8 | int(b[5])
	major := int(b[6])<<8 | int(b[7])
	require.Equal(t, 0, minor)
	require.Equal(t, 55, major, "defaults to Java 11")
}

func TestWithClassFileVersion(t *testing.T) {
	b := buildAddClass(t, WithClassFileVersion(61, 0))
	major := int(b[6])<<8 | int(b[7])
	require.Equal(t, 61, major)
}
