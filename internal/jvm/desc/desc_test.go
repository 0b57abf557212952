package desc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseTypeWidth(t *testing.T) {
	wide := []BaseType{Long, Double}
	narrow := []BaseType{Byte, Char, Float, Int, Short, Boolean}
	for _, b := range wide {
		require.Equal(t, 2, b.Width(), b.String())
	}
	for _, b := range narrow {
		require.Equal(t, 1, b.Width(), b.String())
	}
}

func TestFieldTypeRenderParseRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		ft   FieldType
		want string
	}{
		{"int", IntType, "I"},
		{"long", LongType, "J"},
		{"object", ObjectType(String), "Ljava/lang/String;"},
		{"array of int", Array(IntType, 0), "[I"},
		{"2d array of int", Array(IntType, 1), "[[I"},
		{"array of object", Array(ObjectType(String), 0), "[Ljava/lang/String;"},
		{"3d array of object", Array(ObjectType(Object), 2), "[[[Ljava/lang/Object;"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, c.ft.Render())
			parsed, err := ParseFieldType(c.want)
			require.NoError(t, err)
			require.Equal(t, c.ft, parsed)
			require.Equal(t, c.want, parsed.Render())
		})
	}
}

func TestArrayIsCanonicalWhenNestedViaArrayHelper(t *testing.T) {
	// Array(Array(int,0), 0) must equal Array(int, 1): no redundant wrapper.
	nested := Array(Array(IntType, 0), 0)
	flat := Array(IntType, 1)
	require.Equal(t, flat, nested)
	require.Equal(t, "[[I", nested.Render())

	nestedObj := Array(Array(ObjectType(String), 1), 0)
	flatObj := Array(ObjectType(String), 2)
	require.Equal(t, flatObj, nestedObj)
}

func TestFieldTypeMapKey(t *testing.T) {
	// FieldType/RefType must be usable as map keys with structural equality
	// (no pointer indirection), since the constant pool interns by value.
	m := map[FieldType]int{}
	m[Array(IntType, 0)] = 1
	m[Array(ObjectType(String), 0)] = 2
	require.Equal(t, 1, m[Array(IntType, 0)])
	require.Equal(t, 2, m[Array(ObjectType(String), 0)])
}

func TestElementType(t *testing.T) {
	arr := NewPrimitiveArray(Int, 1) // [[I
	require.Equal(t, Array(IntType, 0), arr.ElementType())

	objArr := NewObjectArray(String, 0) // [Ljava/lang/String;
	require.Equal(t, ObjectType(String), objArr.ElementType())
}

func TestMethodDescriptorRoundTrip(t *testing.T) {
	cases := []string{
		"()V",
		"(II)I",
		"(Ljava/lang/String;I)Ljava/lang/Object;",
		"([I[[Ljava/lang/String;)V",
	}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			md, err := ParseMethodDescriptor(c)
			require.NoError(t, err)
			require.Equal(t, c, md.Render())
		})
	}
}

func TestMethodDescriptorParamsWidth(t *testing.T) {
	md, err := ParseMethodDescriptor("(IJLjava/lang/String;D)V")
	require.NoError(t, err)
	// int(1) + long(2) + object(1) + double(2) == 6
	require.Equal(t, 6, md.ParamsWidth())
}

func TestMalformedDescriptors(t *testing.T) {
	cases := []string{
		"",
		"Q",
		"L",
		"Ljava/lang/String",
		"(I",
		"()",
		"()X",
	}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			_, err := ParseFieldType(c)
			if err == nil {
				_, err = ParseMethodDescriptor(c)
			}
			require.Error(t, err)
			var descErr *DescriptorError
			require.ErrorAs(t, err, &descErr)
		})
	}
}

func TestNameValidity(t *testing.T) {
	require.True(t, BinaryName("java/lang/Object").Valid())
	require.False(t, BinaryName("java.lang.Object").Valid())
	require.False(t, BinaryName("").Valid())

	require.True(t, UnqualifiedName("toString").Valid())
	require.True(t, UnqualifiedName("<init>").Valid())
	require.True(t, UnqualifiedName("<clinit>").Valid())
	require.False(t, UnqualifiedName("a/b").Valid())
	require.False(t, UnqualifiedName("a<b>").Valid())
}
