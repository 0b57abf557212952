// Package classgraph implements the append-only arena of class/interface,
// field, and method records used both to validate references the front end
// builds and to answer the subtype queries ("isJavaAssignable") the frame
// verifier needs.
//
// The arena owns every record; a *ClassData pointer is the copyable handle
// the rest of the system passes around. Records are created on first
// mention and never mutated after insertion, the append-only child lists
// excepted, so handles stay valid for the whole translation session.
package classgraph

import (
	"fmt"

	"github.com/harpocrates/wasm2jar/internal/jvm/desc"
)

// NestKind distinguishes whether a class participates in a Java 11+ nest as
// the host, as a member, or not at all.
type NestKind int

const (
	NestNone NestKind = iota
	NestHostKind
	NestMemberKind
)

// NestInfo records a class's nest membership: a host carries its member
// list, a member carries its enclosing host plus the simple name and access
// flags its InnerClasses entry reports.
type NestInfo struct {
	Kind NestKind

	// Members is populated when Kind == NestHostKind.
	Members []*ClassData

	// Host, SimpleName, and MemberAccessFlags are populated when
	// Kind == NestMemberKind.
	Host              *ClassData
	SimpleName        string
	MemberAccessFlags uint16
}

// ClassData is one class or interface record in the graph. Instances are
// only ever created through Graph.AddClass and are never mutated after
// insertion, except for the append-only Fields/Methods slices and the
// Nest.Members slice (host side).
type ClassData struct {
	Name BinaryName

	// Superclass is nil only for java/lang/Object.
	Superclass  *ClassData
	Interfaces  []*ClassData
	IsInterface bool
	AccessFlags uint16
	Nest        NestInfo

	Fields  []*FieldData
	Methods []*MethodData
}

// BinaryName re-exports desc.BinaryName for readability in this package's
// public surface.
type BinaryName = desc.BinaryName

// FieldData is one field record, referencing back to its owning class.
type FieldData struct {
	Owner       *ClassData
	Name        desc.UnqualifiedName
	Descriptor  desc.FieldType
	AccessFlags uint16
	IsStatic    bool
}

// MethodData is one method record, referencing back to its owning class.
type MethodData struct {
	Owner       *ClassData
	Name        desc.UnqualifiedName
	Descriptor  desc.MethodDescriptor
	AccessFlags uint16
	IsStatic    bool
}

// IsInit reports whether this is an instance initializer ("<init>").
func (m *MethodData) IsInit() bool { return m.Name == "<init>" }

// ClassInput is the data needed to register a new class; see Graph.AddClass.
type ClassInput struct {
	Name        BinaryName
	Superclass  *ClassData
	Interfaces  []*ClassData
	IsInterface bool
	AccessFlags uint16
	Nest        NestInfo
}

// DuplicateClassError is returned by AddClass when name is already bound to
// a class whose recorded data differs from the one just supplied.
type DuplicateClassError struct {
	Name BinaryName
}

func (e *DuplicateClassError) Error() string {
	return fmt.Sprintf("class %q already registered with different data", e.Name)
}

// Graph is a session-scoped arena of class records. It is not safe for
// concurrent use — a session runs on one goroutine.
type Graph struct {
	arena []*ClassData
	byName map[BinaryName]*ClassData
}

// New creates an empty class graph.
func New() *Graph {
	return &Graph{byName: make(map[BinaryName]*ClassData)}
}

// Lookup returns the class previously registered under name, if any.
func (g *Graph) Lookup(name BinaryName) (*ClassData, bool) {
	c, ok := g.byName[name]
	return c, ok
}

// AddClass inserts a new class record, or returns the existing handle if
// name was already registered with equal data. It fails if name is already
// registered with different data.
func (g *Graph) AddClass(in ClassInput) (*ClassData, error) {
	if existing, ok := g.byName[in.Name]; ok {
		if !sameClassData(existing, in) {
			return nil, &DuplicateClassError{Name: in.Name}
		}
		return existing, nil
	}
	cd := &ClassData{
		Name:        in.Name,
		Superclass:  in.Superclass,
		Interfaces:  append([]*ClassData(nil), in.Interfaces...),
		IsInterface: in.IsInterface,
		AccessFlags: in.AccessFlags,
		Nest:        in.Nest,
	}
	g.arena = append(g.arena, cd)
	g.byName[in.Name] = cd
	return cd, nil
}

func sameClassData(existing *ClassData, in ClassInput) bool {
	if existing.Superclass != in.Superclass ||
		existing.IsInterface != in.IsInterface ||
		existing.AccessFlags != in.AccessFlags ||
		len(existing.Interfaces) != len(in.Interfaces) {
		return false
	}
	for i, iface := range existing.Interfaces {
		if iface != in.Interfaces[i] {
			return false
		}
	}
	return true
}

// AddField appends a field record to cls, deduplicating by (name,
// descriptor, is-static): if an identical field is already present, its
// existing handle is returned.
func (g *Graph) AddField(cls *ClassData, name desc.UnqualifiedName, fd desc.FieldType, access uint16, static bool) *FieldData {
	for _, f := range cls.Fields {
		if f.Name == name && f.Descriptor == fd && f.IsStatic == static {
			return f
		}
	}
	field := &FieldData{Owner: cls, Name: name, Descriptor: fd, AccessFlags: access, IsStatic: static}
	cls.Fields = append(cls.Fields, field)
	return field
}

// AddMethod appends a method record to cls, deduplicating by (name,
// descriptor, is-static): if an identical method is already present, its
// existing handle is returned.
func (g *Graph) AddMethod(cls *ClassData, name desc.UnqualifiedName, md desc.MethodDescriptor, access uint16, static bool) *MethodData {
	for _, m := range cls.Methods {
		if m.Name == name && methodDescEqual(m.Descriptor, md) && m.IsStatic == static {
			return m
		}
	}
	method := &MethodData{Owner: cls, Name: name, Descriptor: md, AccessFlags: access, IsStatic: static}
	cls.Methods = append(cls.Methods, method)
	return method
}

func methodDescEqual(a, b desc.MethodDescriptor) bool {
	if len(a.Parameters) != len(b.Parameters) {
		return false
	}
	for i := range a.Parameters {
		if a.Parameters[i] != b.Parameters[i] {
			return false
		}
	}
	if (a.Return == nil) != (b.Return == nil) {
		return false
	}
	if a.Return != nil && *a.Return != *b.Return {
		return false
	}
	return true
}

// IsAssignable reports whether sub is a (reflexive, transitive) subtype of
// super by walking superclass and interface edges. This is ClassData's half
// of the "isJavaAssignable" predicate; the package-level IsAssignable in
// reftype.go covers array/primitive cases before delegating here for the
// object-to-object case.
func (sub *ClassData) IsAssignable(super *ClassData) bool {
	if sub == super {
		return true
	}
	visited := map[*ClassData]bool{sub: true}
	stack := []*ClassData{sub}

	// If the super type is a class (not an interface), interface edges can
	// never reach it, so skip them.
	superIsClass := !super.IsInterface

	for len(stack) > 0 {
		cd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cd == super {
			return true
		}
		if cd.Superclass != nil && !visited[cd.Superclass] {
			visited[cd.Superclass] = true
			stack = append(stack, cd.Superclass)
		}
		if !superIsClass {
			for _, iface := range cd.Interfaces {
				if !visited[iface] {
					visited[iface] = true
					stack = append(stack, iface)
				}
			}
		}
	}
	return false
}

// IsThrowable reports whether cls is java/lang/Throwable or a subclass of it.
func (cls *ClassData) IsThrowable() bool {
	for c := cls; c != nil; c = c.Superclass {
		if c.Name == desc.Throwable {
			return true
		}
	}
	return false
}
