package classfile

import (
	"bytes"

	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/code"
	"github.com/harpocrates/wasm2jar/internal/jvm/cpool"
)

// FieldInfo is one field_info entry awaiting serialization.
type FieldInfo struct {
	field *classgraph.FieldData
}

// MethodInfo is one method_info entry awaiting serialization. codeAttr is
// nil for abstract and native methods, which carry no Code attribute.
type MethodInfo struct {
	method   *classgraph.MethodData
	codeAttr *cpool.Attribute
}

// AddField registers a field_info entry for field, interning its name and
// descriptor into the class file's shared pool.
func (cf *ClassFile) AddField(field *classgraph.FieldData) {
	cf.fields = append(cf.fields, &FieldInfo{field: field})
}

// AddMethod registers a method_info entry for method. c is the method's
// compiled body, run through the full code-serializer pipeline immediately
// so any resolution error surfaces at the call site; c is nil for abstract
// or native methods, which get no Code attribute.
func (cf *ClassFile) AddMethod(method *classgraph.MethodData, c *code.Code) error {
	info := &MethodInfo{method: method}
	if c != nil {
		attr, err := compileCode(cf.pool, c)
		if err != nil {
			return err
		}
		info.codeAttr = &attr
	}
	cf.methods = append(cf.methods, info)
	return nil
}

func (cf *ClassFile) serializeFields() ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, f := range cf.fields {
		nameIdx, err := cf.pool.GetUTF8(string(f.field.Name))
		if err != nil {
			return nil, err
		}
		descIdx, err := cf.pool.GetUTF8(f.field.Descriptor.Render())
		if err != nil {
			return nil, err
		}
		writeU16(buf, f.field.AccessFlags)
		writeU16(buf, uint16(nameIdx))
		writeU16(buf, uint16(descIdx))
		writeU16(buf, 0) // attributes_count: no field attributes are emitted.
	}
	return buf.Bytes(), nil
}

func (cf *ClassFile) serializeMethods() ([]byte, error) {
	buf := new(bytes.Buffer)
	for _, m := range cf.methods {
		nameIdx, err := cf.pool.GetUTF8(string(m.method.Name))
		if err != nil {
			return nil, err
		}
		descIdx, err := cf.pool.GetUTF8(m.method.Descriptor.Render())
		if err != nil {
			return nil, err
		}
		writeU16(buf, m.method.AccessFlags)
		writeU16(buf, uint16(nameIdx))
		writeU16(buf, uint16(descIdx))

		if m.codeAttr == nil {
			writeU16(buf, 0)
			continue
		}
		writeU16(buf, 1)
		writeAttribute(buf, *m.codeAttr)
	}
	return buf.Bytes(), nil
}
