package corelib

import (
	"fmt"

	"github.com/saymow/simpl-sub000/pkg/value"
	"github.com/saymow/simpl-sub000/pkg/vm"
)

// Install builds every built-in class onto v and binds the user-visible
// ones into the global namespace, then loads the self-hosted extension
// snippet. Call once, right after vm.New, before compiling any script.
//
// Bootstrap order follows core.c's initCore exactly: each class is
// created empty, wired to its metaclass with SetMetaclass, then given its
// own native methods (instance methods on the class itself, static
// methods on its metaclass) — the wiring is also what lets `toString`,
// defined once on Class, reach every other built-in by the time its own
// bootstrap step runs.
func Install(v *vm.VM) error {
	classClass := v.DefineClass("Class", nil)
	v.SetMetaclass(&classClass.Obj, classClass) // Class is its own metaclass
	installClassMethods(v, classClass)

	metaString := v.DefineClass("MetaString", nil)
	v.SetMetaclass(&metaString.Obj, classClass)
	installMetaStringMethods(v, metaString)

	stringClass := v.DefineClass("String", nil)
	v.SetMetaclass(&stringClass.Obj, metaString)
	installStringMethods(v, stringClass)

	// Every interned ObjString's own Obj.Class becomes String from here
	// on (see InternString's callers in alloc.go / vm.go); class names
	// created before this point (Class's and MetaString's own Name
	// strings) are retrofitted so a class's .name, if ever read as a
	// value, has String's instance methods too.
	v.SetMetaclass(&classClass.Name.Obj, stringClass)
	v.SetMetaclass(&metaString.Name.Obj, stringClass)
	v.SetMetaclass(&stringClass.Name.Obj, stringClass)

	nativeFunctionClass := v.DefineClass("NativeFunction", nil)
	v.SetMetaclass(&nativeFunctionClass.Obj, classClass)

	nilClass := v.DefineClass("Nil", nil)
	v.SetMetaclass(&nilClass.Obj, classClass)

	boolClass := v.DefineClass("Bool", nil)
	v.SetMetaclass(&boolClass.Obj, classClass)

	metaNumber := v.DefineClass("MetaNumber", nil)
	v.SetMetaclass(&metaNumber.Obj, classClass)
	installMetaNumberMethods(v, metaNumber)

	numberClass := v.DefineClass("Number", nil)
	v.SetMetaclass(&numberClass.Obj, metaNumber)

	metaMath := v.DefineClass("MetaMath", nil)
	v.SetMetaclass(&metaMath.Obj, classClass)
	installMetaMathMethods(v, metaMath)

	mathClass := v.DefineClass("Math", nil)
	v.SetMetaclass(&mathClass.Obj, metaMath)

	functionClass := v.DefineClass("Function", nil)
	v.SetMetaclass(&functionClass.Obj, classClass)

	metaArray := v.DefineClass("MetaArray", nil)
	v.SetMetaclass(&metaArray.Obj, classClass)
	installMetaArrayMethods(v, metaArray)

	metaObject := v.DefineClass("MetaObject", nil)
	v.SetMetaclass(&metaObject.Obj, classClass)
	installMetaObjectMethods(v, metaObject)

	arrayClass := v.DefineClass("Array", nil)
	v.SetMetaclass(&arrayClass.Obj, metaArray)
	installArrayMethods(v, arrayClass)

	metaError := v.DefineClass("MetaError", nil)
	v.SetMetaclass(&metaError.Obj, classClass)
	installMetaErrorMethods(v, metaError)

	errorClass := v.DefineClass("Error", nil)
	v.SetMetaclass(&errorClass.Obj, metaError)

	exportsClass := v.DefineClass("Exports", nil)
	v.SetMetaclass(&exportsClass.Obj, classClass)

	metaSystem := v.DefineClass("MetaSystem", nil)
	v.SetMetaclass(&metaSystem.Obj, classClass)
	installMetaSystemMethods(v, metaSystem)
	installSyncNamespace(v, classClass)

	systemClass := v.DefineClass("System", nil)
	v.SetMetaclass(&systemClass.Obj, metaSystem)

	objectClass := v.DefineClass("Object", nil)
	v.SetMetaclass(&objectClass.Obj, metaObject)

	// attachCore: only these seven names, plus Sync (attached by
	// installSyncNamespace above), become user-visible globals;
	// Class/Nil/Bool/Function/NativeFunction/Exports/the Meta* classes
	// exist solely so classProperty has somewhere to resolve methods.
	v.AttachGlobal("Error", errorClass)
	v.AttachGlobal("String", stringClass)
	v.AttachGlobal("Number", numberClass)
	v.AttachGlobal("Math", mathClass)
	v.AttachGlobal("Array", arrayClass)
	v.AttachGlobal("System", systemClass)
	v.AttachGlobal("Object", objectClass)

	if err := loadExtensions(v); err != nil {
		return fmt.Errorf("corelib: %w", err)
	}
	return nil
}

// installClassMethods defines the one method every class (and, through
// the metaclass chain, every built-in value) inherits: a readable
// toString tagging the receiver with its class name.
func installClassMethods(v *vm.VM, class *value.ObjClass) {
	v.DefineNativeMethod(class.Methods, "toString", 0, func(th any, args []value.Value) (value.Value, error) {
		s := v.InternString(value.Stringify(args[0]))
		return value.FromObj(&s.Obj), nil
	})
}
