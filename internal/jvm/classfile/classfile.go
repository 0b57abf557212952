// Package classfile implements the class serializer: it resolves a
// compiled method's instructions into a shared constant pool, runs the
// jump-widening pass, lays out final byte offsets, emits the bytecode and
// its StackMapTable, and assembles the whole class file byte stream in the
// standard layout (magic, versions, constant pool, access flags,
// this/super, interfaces, fields, methods, attributes).
//
// The format is too irregular for a reflection-based struct codec —
// variable-width instructions, offset-dependent switch padding, two-slot
// constant-pool entries — so every field is written out explicitly with
// big-endian helpers.
package classfile

import (
	"bytes"
	"fmt"

	"github.com/harpocrates/wasm2jar/internal/jvm/classgraph"
	"github.com/harpocrates/wasm2jar/internal/jvm/code"
	"github.com/harpocrates/wasm2jar/internal/jvm/cpool"
	"github.com/harpocrates/wasm2jar/internal/jvm/insn"
)

// JVM access_flags bit values used by classes, fields, and methods, named
// after the spec's own ACC_* constants (JVMS 4.1/4.5/4.6 tables).
const (
	ACC_PUBLIC       uint16 = 0x0001
	ACC_PRIVATE      uint16 = 0x0002
	ACC_PROTECTED    uint16 = 0x0004
	ACC_STATIC       uint16 = 0x0008
	ACC_FINAL        uint16 = 0x0010
	ACC_SUPER        uint16 = 0x0020
	ACC_SYNCHRONIZED uint16 = 0x0020
	ACC_VOLATILE     uint16 = 0x0040
	ACC_BRIDGE       uint16 = 0x0040
	ACC_VARARGS      uint16 = 0x0080
	ACC_TRANSIENT    uint16 = 0x0080
	ACC_NATIVE       uint16 = 0x0100
	ACC_INTERFACE    uint16 = 0x0200
	ACC_ABSTRACT     uint16 = 0x0400
	ACC_STRICT       uint16 = 0x0800
	ACC_SYNTHETIC    uint16 = 0x1000
	ACC_ANNOTATION   uint16 = 0x2000
	ACC_ENUM         uint16 = 0x4000
)

// Java 11 class file version: the earliest that supports NestHost/
// NestMembers (JVMS 4.7.28/4.7.29), which the translator relies on for
// hidden/lambda-adjacent inner classes.
const (
	defaultMajorVersion uint16 = 55
	defaultMinorVersion uint16 = 0
)

// ClassFile accumulates one compiled class: a constant pool shared by every
// field, method, and class-level attribute, built up against a single
// class-graph record. A ClassFile is not safe for concurrent use; like the
// rest of internal/jvm, it is owned by one session on one goroutine.
type ClassFile struct {
	pool  *cpool.Pool
	graph *classgraph.Graph
	java  *classgraph.JavaLibrary
	data  *classgraph.ClassData

	majorVersion, minorVersion uint16

	fields  []*FieldInfo
	methods []*MethodInfo
}

// Option configures a ClassFile at construction time.
type Option func(*ClassFile)

// WithVersion overrides the default (Java 11, 55.0) class file version.
func WithVersion(major, minor uint16) Option {
	return func(cf *ClassFile) {
		cf.majorVersion = major
		cf.minorVersion = minor
	}
}

// New starts a ClassFile for data, whose constant pool is fresh and shared
// across every field, method, and attribute subsequently added.
func New(graph *classgraph.Graph, java *classgraph.JavaLibrary, data *classgraph.ClassData, opts ...Option) *ClassFile {
	cf := &ClassFile{
		pool:         cpool.New(),
		graph:        graph,
		java:         java,
		data:         data,
		majorVersion: defaultMajorVersion,
		minorVersion: defaultMinorVersion,
	}
	for _, opt := range opts {
		opt(cf)
	}
	return cf
}

// Pool returns the constant pool this class file interns into. Exposed so a
// front end can intern ad-hoc constants (e.g. invokedynamic bootstrap
// arguments) before building the code that references them.
func (cf *ClassFile) Pool() *cpool.Pool { return cf.pool }

// Bytes assembles the full class file byte stream (JVMS 4.1): magic,
// versions, constant pool, access flags, this/super, interfaces, fields,
// methods, and class-level attributes (BootstrapMethods, NestHost or
// NestMembers, InnerClasses), in that order.
func (cf *ClassFile) Bytes() ([]byte, error) {
	thisIdx, err := cf.pool.GetClassByName(string(cf.data.Name))
	if err != nil {
		return nil, err
	}
	var superIdx cpool.Index
	if cf.data.Superclass != nil {
		superIdx, err = cf.pool.GetClassByName(string(cf.data.Superclass.Name))
		if err != nil {
			return nil, err
		}
	}
	interfaceIdx := make([]cpool.Index, len(cf.data.Interfaces))
	for i, iface := range cf.data.Interfaces {
		idx, err := cf.pool.GetClassByName(string(iface.Name))
		if err != nil {
			return nil, err
		}
		interfaceIdx[i] = idx
	}

	fieldBytes, err := cf.serializeFields()
	if err != nil {
		return nil, err
	}
	methodBytes, err := cf.serializeMethods()
	if err != nil {
		return nil, err
	}

	var classAttrs []cpool.Attribute
	if bm, err := buildBootstrapMethodsAttribute(cf.pool); err != nil {
		return nil, err
	} else if bm != nil {
		classAttrs = append(classAttrs, *bm)
	}
	nestHost, nestMembers, err := buildNestAttributes(cf.pool, cf.data)
	if err != nil {
		return nil, err
	}
	if nestHost != nil {
		classAttrs = append(classAttrs, *nestHost)
	}
	if nestMembers != nil {
		classAttrs = append(classAttrs, *nestMembers)
	}
	if ic, err := buildInnerClassesAttribute(cf.pool, cf.graph); err != nil {
		return nil, err
	} else if ic != nil {
		classAttrs = append(classAttrs, *ic)
	}

	// Every constant-pool append above (and inside field/method/attribute
	// construction) must land before the pool itself is written out, so
	// this is the only place constant_pool_count and the entries are
	// serialized — after every other pass has finished interning.
	buf := new(bytes.Buffer)
	buf.Write([]byte{0xCA, 0xFE, 0xBA, 0xBE})
	writeU16(buf, cf.minorVersion)
	writeU16(buf, cf.majorVersion)

	writeU16(buf, cf.pool.Count())
	if err := writeConstantPool(buf, cf.pool); err != nil {
		return nil, err
	}

	writeU16(buf, cf.data.AccessFlags)
	writeU16(buf, uint16(thisIdx))
	writeU16(buf, uint16(superIdx))

	writeU16(buf, uint16(len(interfaceIdx)))
	for _, idx := range interfaceIdx {
		writeU16(buf, uint16(idx))
	}

	writeU16(buf, uint16(len(cf.fields)))
	buf.Write(fieldBytes)

	writeU16(buf, uint16(len(cf.methods)))
	buf.Write(methodBytes)

	writeU16(buf, uint16(len(classAttrs)))
	for _, a := range classAttrs {
		writeAttribute(buf, a)
	}

	return buf.Bytes(), nil
}

func writeConstantPool(buf *bytes.Buffer, pool *cpool.Pool) error {
	for _, c := range pool.Entries() {
		if err := writeConstant(buf, c); err != nil {
			return err
		}
	}
	return nil
}

// compileCode runs the full serialization pipeline for one method body:
// resolve into the shared pool, widen oversized jumps, lay out final
// offsets, emit bytecode, build the StackMapTable, and wrap the result as a
// Code attribute.
func compileCode(pool *cpool.Pool, c *code.Code) (cpool.Attribute, error) {
	blocks, order, err := code.Resolve(pool, c)
	if err != nil {
		return cpool.Attribute{}, err
	}

	// Provisional layout: switch padding depends on byte offset, and the
	// widening pass's own Width() calls need something to work with before
	// the authoritative offsets (computed after widening) exist. Being off
	// by a few bytes here cannot change a jump's widen/don't-widen verdict
	// except at the exact 16-bit boundary, and the final emission below
	// always uses the authoritative, post-widening layout.
	assignLayout(order, blocks)

	next := c.NextLabel
	freshLabel := func() insn.Label {
		l := next
		next++
		return l
	}
	code.WidenOversizedJumps(&order, blocks, freshLabel)

	offsets, totalWidth := assignLayout(order, blocks)
	if totalWidth > 0xFFFF {
		return cpool.Attribute{}, &code.SizeOverflowError{Quantity: "code size", Amount: totalWidth}
	}

	body := new(bytes.Buffer)
	for _, lbl := range order {
		bb := blocks[lbl]
		for _, in := range bb.Instructions {
			if err := in.Serialize(body); err != nil {
				return cpool.Attribute{}, err
			}
		}
		off, err := computeBranchOffsets(lbl, bb, offsets)
		if err != nil {
			return cpool.Attribute{}, err
		}
		if err := bb.BranchEnd.Serialize(body, off); err != nil {
			return cpool.Attribute{}, err
		}
	}
	if body.Len() != totalWidth {
		return cpool.Attribute{}, fmt.Errorf("classfile: BUG: emitted %d code bytes, layout computed %d", body.Len(), totalWidth)
	}

	stackMap, frameCount, err := buildStackMapTable(pool, order, blocks, offsets)
	if err != nil {
		return cpool.Attribute{}, err
	}

	return assembleCodeAttribute(pool, c.MaxStack, c.MaxLocals, body.Bytes(), stackMap, frameCount)
}

func assembleCodeAttribute(pool *cpool.Pool, maxStack, maxLocals int, code []byte, stackMap []byte, frameCount int) (cpool.Attribute, error) {
	buf := new(bytes.Buffer)
	writeU16(buf, uint16(maxStack))
	writeU16(buf, uint16(maxLocals))
	writeU32(buf, uint32(len(code)))
	buf.Write(code)
	writeU16(buf, 0) // exception_table_length: the core never emits try/catch ranges.

	if frameCount == 0 {
		writeU16(buf, 0)
		return pool.GetAttribute("Code", buf.Bytes())
	}

	smtBody := new(bytes.Buffer)
	writeU16(smtBody, uint16(frameCount))
	smtBody.Write(stackMap)
	smt, err := pool.GetAttribute("StackMapTable", smtBody.Bytes())
	if err != nil {
		return cpool.Attribute{}, err
	}
	writeU16(buf, 1)
	writeAttribute(buf, smt)
	return pool.GetAttribute("Code", buf.Bytes())
}
