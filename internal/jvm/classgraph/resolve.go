package classgraph

import (
	"fmt"

	"github.com/harpocrates/wasm2jar/internal/jvm/desc"
)

// UnresolvedClassError reports that a descriptor named a class with no
// matching record in the graph. Every class a field or method descriptor
// can mention is expected to already be registered (via Graph.AddClass or
// InsertJavaLibraryTypes) by the time the verifier needs to reason about
// its assignability.
type UnresolvedClassError struct{ Name BinaryName }

func (e *UnresolvedClassError) Error() string {
	return fmt.Sprintf("classgraph: no class registered for %q", e.Name)
}

// ResolveRefType looks up the class record(s) a descriptor-level reference
// type names, producing the RefType the verifier compares for
// assignability. This is the bridge between the name-only descriptors
// FieldData/MethodData carry and the *ClassData-backed types verification
// types need.
func (g *Graph) ResolveRefType(rt desc.RefType) (RefType, error) {
	if rt.IsPrimitiveArray() {
		return NewPrimitiveArrayRef(rt.ElementBase(), rt.AdditionalDims()), nil
	}
	cd, ok := g.Lookup(rt.ObjectName())
	if !ok {
		return RefType{}, &UnresolvedClassError{Name: rt.ObjectName()}
	}
	if rt.IsObject() {
		return NewObjectRef(cd), nil
	}
	return NewObjectArrayRef(cd, rt.AdditionalDims()), nil
}

// ResolveFieldType resolves a descriptor-level field type (primitive base
// type or reference type) against the graph.
func (g *Graph) ResolveFieldType(ft desc.FieldType) (FieldType, error) {
	if !ft.IsRef() {
		return NewBaseField(ft.Base()), nil
	}
	rt, err := g.ResolveRefType(ft.Ref())
	if err != nil {
		return FieldType{}, err
	}
	return NewRefField(rt), nil
}

// ResolveMethodDescriptor resolves every parameter and the return type of a
// descriptor-level method descriptor against the graph.
func (g *Graph) ResolveMethodDescriptor(md desc.MethodDescriptor) ([]FieldType, *FieldType, error) {
	params := make([]FieldType, len(md.Parameters))
	for i, p := range md.Parameters {
		rp, err := g.ResolveFieldType(p)
		if err != nil {
			return nil, nil, err
		}
		params[i] = rp
	}
	if md.Return == nil {
		return params, nil, nil
	}
	ret, err := g.ResolveFieldType(*md.Return)
	if err != nil {
		return nil, nil, err
	}
	return params, &ret, nil
}
