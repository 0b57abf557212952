// Package jvmtest provides fixtures and assertion helpers shared by
// internal/jvm's package tests: a ready-seeded class graph, and a
// byte-exact class file comparison that reports a useful diff on mismatch.
package jvmtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
)

// NewGraph returns a fresh class graph seeded with the Java standard
// library types, plus the library handle.
func NewGraph(t *testing.T) (*classgraph.Graph, *classgraph.JavaLibrary) {
	t.Helper()
	g := classgraph.New()
	java, err := classgraph.InsertJavaLibraryTypes(g)
	require.NoError(t, err)
	return g, java
}

// RequireClassFileBytes asserts that got matches want byte for byte. On
// mismatch it reports the first differing offset and a small window of
// surrounding bytes, which is far easier to act on for a multi-hundred-byte
// class file than a line-by-line diff of the whole thing.
func RequireClassFileBytes(t *testing.T, want, got []byte) {
	t.Helper()

	n := len(want)
	if len(got) < n {
		n = len(got)
	}
	for i := 0; i < n; i++ {
		if want[i] != got[i] {
			failMismatch(t, i, want, got)
			return
		}
	}
	if len(want) != len(got) {
		failMismatch(t, n, want, got)
	}
}

func failMismatch(t *testing.T, at int, want, got []byte) {
	t.Helper()
	lo := at - 4
	if lo < 0 {
		lo = 0
	}
	hiWant := at + 4
	if hiWant > len(want) {
		hiWant = len(want)
	}
	hiGot := at + 4
	if hiGot > len(got) {
		hiGot = len(got)
	}
	t.Fatalf(
		"class file mismatch at byte %d (want %d bytes, got %d bytes)\nwant: % x\ngot:  % x",
		at, len(want), len(got), want[lo:hiWant], got[lo:hiGot],
	)
}
