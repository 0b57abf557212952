package cpool

import "github.com/harpocrates/wasm2jar/internal/jvm/classgraph"

// GetClass interns a CONSTANT_Class_info for a resolved class-graph
// reference type, recursively interning the UTF-8 name before the Class
// entry itself.
func (p *Pool) GetClass(rt classgraph.RefType) (Index, error) {
	return p.GetClassByName(rt.RenderClassInfo())
}

// GetFieldrefFor interns a CONSTANT_Fieldref_info for a class-graph field
// handle.
func (p *Pool) GetFieldrefFor(f *classgraph.FieldData) (Index, error) {
	return p.GetFieldref(string(f.Owner.Name), string(f.Name), f.Descriptor.Render())
}

// GetMethodrefFor interns a CONSTANT_Methodref_info or
// CONSTANT_InterfaceMethodref_info for a class-graph method handle,
// selecting the tag by whether the owning class is an interface.
func (p *Pool) GetMethodrefFor(m *classgraph.MethodData) (Index, error) {
	return p.GetMethodref(string(m.Owner.Name), string(m.Name), m.Descriptor.Render(), m.Owner.IsInterface)
}
