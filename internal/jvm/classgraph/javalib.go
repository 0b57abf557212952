package classgraph

import "github.com/harpocrates/wasm2jar/internal/jvm/desc"

// JavaLibrary holds handles to the subset of the standard library class
// hierarchy the verifier and code builder need to reason about assignability
// (array super types, throwable checks, boxed numeric types used by
// non-trapping conversions). It is built once per session with
// InsertJavaLibraryTypes.
type JavaLibrary struct {
	Object           *ClassData
	Class            *ClassData
	Cloneable        *ClassData
	Serializable     *ClassData
	String           *ClassData
	Throwable        *ClassData
	Exception        *ClassData
	RuntimeException *ClassData
	Error            *ClassData
	AssertionError   *ClassData
	ArithmeticExc    *ClassData
	Number           *ClassData
	Integer          *ClassData
	Long             *ClassData
	Float            *ClassData
	Double           *ClassData
	MethodHandle     *ClassData
	MethodType       *ClassData
}

// InsertJavaLibraryTypes registers the minimal standard-library class
// hierarchy the core needs into g, wiring up the superclass/interface edges
// that make IsAssignable produce correct results for common patterns (e.g.
// java/lang/Integer <: java/lang/Number <: java/lang/Object, or
// java/lang/String <: java/lang/CharSequence).
func InsertJavaLibraryTypes(g *Graph) (*JavaLibrary, error) {
	must := func(cd *ClassData, err error) *ClassData {
		if err != nil {
			panic(err) // only fails on conflicting re-registration, which cannot happen here
		}
		return cd
	}

	object := must(g.AddClass(ClassInput{Name: desc.Object, AccessFlags: 0x0021}))
	cloneable := must(g.AddClass(ClassInput{Name: desc.Cloneable, Superclass: object, IsInterface: true, AccessFlags: 0x0601}))
	serializable := must(g.AddClass(ClassInput{Name: desc.Serializable, Superclass: object, IsInterface: true, AccessFlags: 0x0601}))
	charSequence := must(g.AddClass(ClassInput{Name: "java/lang/CharSequence", Superclass: object, IsInterface: true, AccessFlags: 0x0601}))
	comparable := must(g.AddClass(ClassInput{Name: "java/lang/Comparable", Superclass: object, IsInterface: true, AccessFlags: 0x0601}))

	str := must(g.AddClass(ClassInput{
		Name: desc.String, Superclass: object,
		Interfaces: []*ClassData{serializable, comparable, charSequence}, AccessFlags: 0x0031,
	}))

	throwable := must(g.AddClass(ClassInput{
		Name: desc.Throwable, Superclass: object, Interfaces: []*ClassData{serializable}, AccessFlags: 0x0021,
	}))
	exception := must(g.AddClass(ClassInput{Name: desc.Exception, Superclass: throwable, AccessFlags: 0x0021}))
	runtimeException := must(g.AddClass(ClassInput{Name: desc.RuntimeException, Superclass: exception, AccessFlags: 0x0021}))
	arithmeticException := must(g.AddClass(ClassInput{Name: desc.ArithmeticExcept, Superclass: runtimeException, AccessFlags: 0x0021}))
	errorCls := must(g.AddClass(ClassInput{Name: desc.Error, Superclass: throwable, AccessFlags: 0x0021}))
	assertionError := must(g.AddClass(ClassInput{Name: desc.AssertionError, Superclass: errorCls, AccessFlags: 0x0021}))

	number := must(g.AddClass(ClassInput{
		Name: "java/lang/Number", Superclass: object, Interfaces: []*ClassData{serializable}, AccessFlags: 0x0421,
	}))
	boxed := func(name desc.BinaryName) *ClassData {
		return must(g.AddClass(ClassInput{
			Name: name, Superclass: number, Interfaces: []*ClassData{comparable}, AccessFlags: 0x0031,
		}))
	}
	integer := boxed(desc.IntegerBox)
	long := boxed(desc.LongBox)
	float := boxed(desc.FloatBox)
	double := boxed(desc.DoubleBox)

	methodHandle := must(g.AddClass(ClassInput{Name: desc.MethodHandleBox, Superclass: object, AccessFlags: 0x0421}))
	methodType := must(g.AddClass(ClassInput{
		Name: desc.MethodTypeBox, Superclass: object, Interfaces: []*ClassData{serializable}, AccessFlags: 0x0031,
	}))

	classCls := must(g.AddClass(ClassInput{
		Name: desc.Class, Superclass: object, Interfaces: []*ClassData{serializable}, AccessFlags: 0x0031,
	}))

	return &JavaLibrary{
		Object: object, Class: classCls, Cloneable: cloneable, Serializable: serializable,
		String: str, Throwable: throwable, Exception: exception, RuntimeException: runtimeException,
		Error: errorCls, AssertionError: assertionError, ArithmeticExc: arithmeticException,
		Number: number, Integer: integer, Long: long, Float: float, Double: double,
		MethodHandle: methodHandle, MethodType: methodType,
	}, nil
}
