package cpool

import (
	"fmt"
	"math"
)

// MaxIndex (65535) is the largest constant_pool_count a class file can hold,
// since that field is a u2. The count is one more than the slots used (slot
// 0 is reserved), so the last usable index is MaxIndex-1.
const MaxIndex = 65535

// OverflowError is returned when appending another constant would push the
// next available index past MaxIndex.
type OverflowError struct {
	Constant Constant
	Offset   int
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("constant pool overflow: cannot add %T at offset %d (limit %d)", e.Constant, e.Offset, MaxIndex)
}

// Pool is an append-only, interned JVM constant pool builder. A Pool is not
// safe for concurrent use; it is owned by a single class-serialization
// session.
type Pool struct {
	entries []Constant // entries[0] is pool index 1
	width   int        // total index slots consumed (wide entries count twice)

	utf8s          map[string]Index
	classes        map[Index]Index // utf8 name index -> class index
	nameAndTypes   map[[2]Index]Index
	fieldrefs      map[[2]Index]Index
	methodrefs     map[[2]Index]Index
	ifaceMethods   map[[2]Index]Index
	strings        map[Index]Index
	integers       map[int32]Index
	floats         map[uint32]Index // keyed by IEEE-754 bits so distinct NaNs don't collide
	longs          map[int64]Index
	doubles        map[uint64]Index
	methodHandles  map[[2]uint16]Index // (kind, refIndex)
	methodTypes    map[Index]Index
	invokeDynamics map[[2]uint16]Index // (bootstrapIndex, nameAndTypeIndex)

	bootstrapMethods []BootstrapMethod
	bootstrapIndex   map[string]uint16 // serialized key -> index, for dedup
}

// New creates an empty constant pool.
func New() *Pool {
	return &Pool{
		utf8s:          make(map[string]Index),
		classes:        make(map[Index]Index),
		nameAndTypes:   make(map[[2]Index]Index),
		fieldrefs:      make(map[[2]Index]Index),
		methodrefs:     make(map[[2]Index]Index),
		ifaceMethods:   make(map[[2]Index]Index),
		strings:        make(map[Index]Index),
		integers:       make(map[int32]Index),
		floats:         make(map[uint32]Index),
		longs:          make(map[int64]Index),
		doubles:        make(map[uint64]Index),
		methodHandles:  make(map[[2]uint16]Index),
		methodTypes:    make(map[Index]Index),
		invokeDynamics: make(map[[2]uint16]Index),
		bootstrapIndex: make(map[string]uint16),
	}
}

// Entries returns the finished, 1-indexed sequence of constants. Entries at
// a width-2 index occupy that index and the one after it, which holds no
// entry of its own.
func (p *Pool) Entries() []Constant { return p.entries }

// Count is the constant_pool_count value for the class file: one more than
// the number of index slots consumed.
func (p *Pool) Count() uint16 {
	return uint16(p.width + 1)
}

func (p *Pool) push(c Constant) (Index, error) {
	nextIndex := p.width + 1
	if nextIndex+c.Width() > MaxIndex {
		return 0, &OverflowError{Constant: c, Offset: p.width}
	}
	p.entries = append(p.entries, c)
	p.width += c.Width()
	return Index(nextIndex), nil
}

// GetUTF8 interns a UTF-8 string constant.
func (p *Pool) GetUTF8(s string) (Index, error) {
	if idx, ok := p.utf8s[s]; ok {
		return idx, nil
	}
	idx, err := p.push(Utf8Constant{Value: s})
	if err != nil {
		return 0, err
	}
	p.utf8s[s] = idx
	return idx, nil
}

// GetClassByName interns a CONSTANT_Class_info for the given class-info
// string (a bare binary name, or an array descriptor — see
// desc.RefType.RenderClassInfo).
func (p *Pool) GetClassByName(classInfo string) (Index, error) {
	nameIdx, err := p.GetUTF8(classInfo)
	if err != nil {
		return 0, err
	}
	if idx, ok := p.classes[nameIdx]; ok {
		return idx, nil
	}
	idx, err := p.push(ClassConstant{NameIndex: nameIdx})
	if err != nil {
		return 0, err
	}
	p.classes[nameIdx] = idx
	return idx, nil
}

// GetNameAndType interns a CONSTANT_NameAndType_info.
func (p *Pool) GetNameAndType(name, descriptor string) (Index, error) {
	nameIdx, err := p.GetUTF8(name)
	if err != nil {
		return 0, err
	}
	descIdx, err := p.GetUTF8(descriptor)
	if err != nil {
		return 0, err
	}
	key := [2]Index{nameIdx, descIdx}
	if idx, ok := p.nameAndTypes[key]; ok {
		return idx, nil
	}
	idx, err := p.push(NameAndTypeConstant{NameIndex: nameIdx, DescriptorIndex: descIdx})
	if err != nil {
		return 0, err
	}
	p.nameAndTypes[key] = idx
	return idx, nil
}

// GetFieldref interns a CONSTANT_Fieldref_info.
func (p *Pool) GetFieldref(classInfo, name, descriptor string) (Index, error) {
	classIdx, err := p.GetClassByName(classInfo)
	if err != nil {
		return 0, err
	}
	natIdx, err := p.GetNameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	key := [2]Index{classIdx, natIdx}
	if idx, ok := p.fieldrefs[key]; ok {
		return idx, nil
	}
	idx, err := p.push(FieldrefConstant{ClassIndex: classIdx, NameAndTypeIndex: natIdx})
	if err != nil {
		return 0, err
	}
	p.fieldrefs[key] = idx
	return idx, nil
}

// GetMethodref interns a CONSTANT_Methodref_info or
// CONSTANT_InterfaceMethodref_info, selected by isInterface.
func (p *Pool) GetMethodref(classInfo, name, descriptor string, isInterface bool) (Index, error) {
	classIdx, err := p.GetClassByName(classInfo)
	if err != nil {
		return 0, err
	}
	natIdx, err := p.GetNameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	key := [2]Index{classIdx, natIdx}
	if isInterface {
		if idx, ok := p.ifaceMethods[key]; ok {
			return idx, nil
		}
		idx, err := p.push(InterfaceMethodrefConstant{ClassIndex: classIdx, NameAndTypeIndex: natIdx})
		if err != nil {
			return 0, err
		}
		p.ifaceMethods[key] = idx
		return idx, nil
	}
	if idx, ok := p.methodrefs[key]; ok {
		return idx, nil
	}
	idx, err := p.push(MethodrefConstant{ClassIndex: classIdx, NameAndTypeIndex: natIdx})
	if err != nil {
		return 0, err
	}
	p.methodrefs[key] = idx
	return idx, nil
}

// GetString interns a CONSTANT_String_info for the literal value s.
func (p *Pool) GetString(s string) (Index, error) {
	utf8Idx, err := p.GetUTF8(s)
	if err != nil {
		return 0, err
	}
	if idx, ok := p.strings[utf8Idx]; ok {
		return idx, nil
	}
	idx, err := p.push(StringConstant{Utf8Index: utf8Idx})
	if err != nil {
		return 0, err
	}
	p.strings[utf8Idx] = idx
	return idx, nil
}

func (p *Pool) GetInteger(v int32) (Index, error) {
	if idx, ok := p.integers[v]; ok {
		return idx, nil
	}
	idx, err := p.push(IntegerConstant{Value: v})
	if err != nil {
		return 0, err
	}
	p.integers[v] = idx
	return idx, nil
}

func (p *Pool) GetFloat(v float32) (Index, error) {
	bits := math.Float32bits(v)
	if idx, ok := p.floats[bits]; ok {
		return idx, nil
	}
	idx, err := p.push(FloatConstant{Value: v})
	if err != nil {
		return 0, err
	}
	p.floats[bits] = idx
	return idx, nil
}

func (p *Pool) GetLong(v int64) (Index, error) {
	if idx, ok := p.longs[v]; ok {
		return idx, nil
	}
	idx, err := p.push(LongConstant{Value: v})
	if err != nil {
		return 0, err
	}
	p.longs[v] = idx
	return idx, nil
}

func (p *Pool) GetDouble(v float64) (Index, error) {
	bits := math.Float64bits(v)
	if idx, ok := p.doubles[bits]; ok {
		return idx, nil
	}
	idx, err := p.push(DoubleConstant{Value: v})
	if err != nil {
		return 0, err
	}
	p.doubles[bits] = idx
	return idx, nil
}

// GetMethodHandle interns a CONSTANT_MethodHandle_info. refIndex must
// already be a Fieldref/Methodref/InterfaceMethodref index appropriate for
// kind (the caller — usually code/classfile — is responsible for having
// obtained it via GetFieldref/GetMethodref).
func (p *Pool) GetMethodHandle(kind HandleKind, refIndex Index) (Index, error) {
	key := [2]uint16{uint16(kind), uint16(refIndex)}
	if idx, ok := p.methodHandles[key]; ok {
		return idx, nil
	}
	idx, err := p.push(MethodHandleConstant{Kind: kind, RefIndex: refIndex})
	if err != nil {
		return 0, err
	}
	p.methodHandles[key] = idx
	return idx, nil
}

// GetMethodType interns a CONSTANT_MethodType_info for the given method
// descriptor string.
func (p *Pool) GetMethodType(descriptor string) (Index, error) {
	descIdx, err := p.GetUTF8(descriptor)
	if err != nil {
		return 0, err
	}
	if idx, ok := p.methodTypes[descIdx]; ok {
		return idx, nil
	}
	idx, err := p.push(MethodTypeConstant{DescriptorIndex: descIdx})
	if err != nil {
		return 0, err
	}
	p.methodTypes[descIdx] = idx
	return idx, nil
}

// GetOrAddBootstrapMethod interns an entry in the per-class
// BootstrapMethods table, returning its index. Bootstrap methods are
// deduplicated by (handle, arguments) so repeated invokedynamic call sites
// targeting the same bootstrap share one table entry.
func (p *Pool) GetOrAddBootstrapMethod(handle Index, args []Index) uint16 {
	key := bootstrapKey(handle, args)
	if idx, ok := p.bootstrapIndex[key]; ok {
		return idx
	}
	idx := uint16(len(p.bootstrapMethods))
	p.bootstrapMethods = append(p.bootstrapMethods, BootstrapMethod{MethodHandleIndex: handle, Arguments: append([]Index(nil), args...)})
	p.bootstrapIndex[key] = idx
	return idx
}

func bootstrapKey(handle Index, args []Index) string {
	buf := make([]byte, 0, 2+2*len(args))
	buf = append(buf, byte(handle>>8), byte(handle))
	for _, a := range args {
		buf = append(buf, byte(a>>8), byte(a))
	}
	return string(buf)
}

// BootstrapMethods returns the finished, insertion-ordered bootstrap method
// table. Indices returned from GetOrAddBootstrapMethod are indices into
// this slice; it must not be reordered once indices have been handed out.
func (p *Pool) BootstrapMethods() []BootstrapMethod { return p.bootstrapMethods }

// GetInvokeDynamic interns a CONSTANT_InvokeDynamic_info referencing
// bootstrapMethodIndex (from GetOrAddBootstrapMethod) and a name+descriptor.
func (p *Pool) GetInvokeDynamic(bootstrapMethodIndex uint16, name, descriptor string) (Index, error) {
	natIdx, err := p.GetNameAndType(name, descriptor)
	if err != nil {
		return 0, err
	}
	key := [2]uint16{bootstrapMethodIndex, uint16(natIdx)}
	if idx, ok := p.invokeDynamics[key]; ok {
		return idx, nil
	}
	idx, err := p.push(InvokeDynamicConstant{BootstrapMethodIndex: bootstrapMethodIndex, NameAndTypeIndex: natIdx})
	if err != nil {
		return 0, err
	}
	p.invokeDynamics[key] = idx
	return idx, nil
}
