package classfile

import (
	"bytes"

	"github.com/harpocrates/wasm2jar/internal/jvm/cpool"
)

// buildBootstrapMethodsAttribute assembles the class-level BootstrapMethods
// attribute (JVMS 4.7.23) from every bootstrap method interned via
// Pool.GetOrAddBootstrapMethod, or returns nil if no invokedynamic call site
// ever ran. The table is already in the index order callers were handed, so
// no reordering is needed here.
func buildBootstrapMethodsAttribute(pool *cpool.Pool) (*cpool.Attribute, error) {
	methods := pool.BootstrapMethods()
	if len(methods) == 0 {
		return nil, nil
	}

	buf := new(bytes.Buffer)
	writeU16(buf, uint16(len(methods)))
	for _, m := range methods {
		writeU16(buf, uint16(m.MethodHandleIndex))
		writeU16(buf, uint16(len(m.Arguments)))
		for _, arg := range m.Arguments {
			writeU16(buf, uint16(arg))
		}
	}

	attr, err := pool.GetAttribute("BootstrapMethods", buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &attr, nil
}
