package modutf8

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"java/lang/Object",
		string(rune(0)),
		"a\x00b",
		"café",     // 2-byte sequence
		"中文",  // 3-byte sequences (Chinese characters)
		"\U0001F600",    // supplementary code point, needs surrogate pair
		"mix\x00é\U0001F600end",
	}
	for _, s := range cases {
		encoded := Encode(s)
		decoded, err := Decode(encoded)
		require.NoError(t, err)
		require.Equal(t, s, decoded)
	}
}

func TestEncodeNullIsTwoBytes(t *testing.T) {
	encoded := Encode(string(rune(0)))
	require.Equal(t, []byte{0xC0, 0x80}, encoded)
}

func TestEncodeNeverContainsRawNull(t *testing.T) {
	encoded := Encode("a\x00b\x00c")
	for _, b := range encoded {
		require.NotEqual(t, byte(0), b)
	}
}

func TestEncodeSupplementaryUsesSurrogatePair(t *testing.T) {
	// U+1F600 GRINNING FACE should become two 3-byte sequences (6 bytes total).
	encoded := Encode("\U0001F600")
	require.Len(t, encoded, 6)
}

func TestDecodeTruncatedSequence(t *testing.T) {
	_, err := Decode([]byte{0xE0, 0x80}) // missing third byte
	require.Error(t, err)
}
