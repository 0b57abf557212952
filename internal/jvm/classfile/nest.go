package classfile

import (
	"bytes"
	"strings"

	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/cpool"
)

// buildNestAttributes builds the NestHost or NestMembers attribute implied
// by data's nest membership (JVMS 4.7.28/4.7.29), or (nil, nil, nil) if data
// does not participate in a nest.
func buildNestAttributes(pool *cpool.Pool, data *classgraph.ClassData) (nestHost, nestMembers *cpool.Attribute, err error) {
	switch data.Nest.Kind {
	case classgraph.NestHostKind:
		buf := new(bytes.Buffer)
		writeU16(buf, uint16(len(data.Nest.Members)))
		for _, member := range data.Nest.Members {
			idx, err := pool.GetClassByName(string(member.Name))
			if err != nil {
				return nil, nil, err
			}
			writeU16(buf, uint16(idx))
		}
		attr, err := pool.GetAttribute("NestMembers", buf.Bytes())
		if err != nil {
			return nil, nil, err
		}
		return nil, &attr, nil

	case classgraph.NestMemberKind:
		hostIdx, err := pool.GetClassByName(string(data.Nest.Host.Name))
		if err != nil {
			return nil, nil, err
		}
		buf := new(bytes.Buffer)
		writeU16(buf, uint16(hostIdx))
		attr, err := pool.GetAttribute("NestHost", buf.Bytes())
		if err != nil {
			return nil, nil, err
		}
		return &attr, nil, nil

	default:
		return nil, nil, nil
	}
}

// buildInnerClassesAttribute builds the InnerClasses attribute (JVMS 4.7.6)
// listing, in pool order, every class the constant pool references that is
// a nest member — each with its enclosing host, simple name, and member
// access flags. By the time this runs, the nest attributes have already
// interned the host's member list (or a member's own class and host), so
// the scan covers the class's own nest as well as any foreign nest member
// its code happens to mention. Returns (nil, nil) when no referenced class
// is a nest member.
func buildInnerClassesAttribute(pool *cpool.Pool, graph *classgraph.Graph) (*cpool.Attribute, error) {
	type entry struct {
		inner, outer, innerName cpool.Index
		access                  uint16
	}
	var entries []entry

	// First pass: slot index -> UTF-8 value, so the class constants scanned
	// below can be resolved back to binary names.
	utf8At := make(map[cpool.Index]string)
	slot := cpool.Index(1)
	for _, c := range pool.Entries() {
		if u, ok := c.(cpool.Utf8Constant); ok {
			utf8At[slot] = u.Value
		}
		slot += cpool.Index(c.Width())
	}

	for _, c := range pool.Entries() {
		cc, ok := c.(cpool.ClassConstant)
		if !ok {
			continue
		}
		name, ok := utf8At[cc.NameIndex]
		if !ok || strings.HasPrefix(name, "[") {
			continue
		}
		cd, ok := graph.Lookup(classgraph.BinaryName(name))
		if !ok || cd.Nest.Kind != classgraph.NestMemberKind {
			continue
		}
		innerIdx, err := pool.GetClassByName(name)
		if err != nil {
			return nil, err
		}
		outerIdx, err := pool.GetClassByName(string(cd.Nest.Host.Name))
		if err != nil {
			return nil, err
		}
		nameIdx, err := pool.GetUTF8(cd.Nest.SimpleName)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{inner: innerIdx, outer: outerIdx, innerName: nameIdx, access: cd.Nest.MemberAccessFlags})
	}
	if len(entries) == 0 {
		return nil, nil
	}

	buf := new(bytes.Buffer)
	writeU16(buf, uint16(len(entries)))
	for _, e := range entries {
		writeU16(buf, uint16(e.inner))
		writeU16(buf, uint16(e.outer))
		writeU16(buf, uint16(e.innerName))
		writeU16(buf, e.access)
	}
	attr, err := pool.GetAttribute("InnerClasses", buf.Bytes())
	if err != nil {
		return nil, err
	}
	return &attr, nil
}
