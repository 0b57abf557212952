// Package jvmgen is the public façade tying the class graph, the Java
// standard-library bootstrap, and the class serializer into one session. A
// front end drives a Session: register classes/fields/methods against its
// Graph, build method bodies with a code.Builder, then ask the session for
// a classfile.ClassFile ready for Bytes().
package jvmgen

import (
	"github.com/harpocrates/wasm2jar/internal/jvm/classfile"
	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/code"
)

// Session owns the state confined to one goroutine for its lifetime: a
// class graph and the Java library handles resolved against it.
type Session struct {
	Graph *classgraph.Graph
	Java  *classgraph.JavaLibrary

	classFileMajor, classFileMinor uint16
}

// SessionOption configures a Session at construction time.
type SessionOption func(*Session)

// WithClassFileVersion overrides the default class file version every class
// this session builds uses (classfile.New's own default otherwise applies).
func WithClassFileVersion(major, minor uint16) SessionOption {
	return func(s *Session) {
		s.classFileMajor = major
		s.classFileMinor = minor
	}
}

// NewSession starts a session with a fresh class graph seeded with the Java
// standard library types the verifier and code builder need.
func NewSession(opts ...SessionOption) (*Session, error) {
	graph := classgraph.New()
	java, err := classgraph.InsertJavaLibraryTypes(graph)
	if err != nil {
		return nil, err
	}
	s := &Session{Graph: graph, Java: java}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewClass starts a ClassFile for data (already registered against
// s.Graph), carrying this session's configured class file version.
//
// A class's nest membership (host or member) and a call site's bootstrap
// method are deliberately not session-level options: nest membership is a
// property of one class (classgraph.ClassData carries it in its Nest field,
// set when the class is registered with Graph.AddClass) and a bootstrap
// method is a property of one invokedynamic call site (interned on demand
// via ClassFile.Pool().GetOrAddBootstrapMethod). Threading either through
// Session would only let one value apply session-wide — wrong for a session
// that builds more than one class or more than one dynamic call site.
func (s *Session) NewClass(data *classgraph.ClassData) *classfile.ClassFile {
	var opts []classfile.Option
	if s.classFileMajor != 0 {
		opts = append(opts, classfile.WithVersion(s.classFileMajor, s.classFileMinor))
	}
	return classfile.New(s.Graph, s.Java, data, opts...)
}

// NewMethodBuilder starts a code.Builder for method, ready to accept
// PushInstruction/PushBranchInstruction/PlaceLabel calls.
func (s *Session) NewMethodBuilder(method *classgraph.MethodData) (*code.Builder, error) {
	return code.NewBuilder(s.Graph, s.Java, method)
}
