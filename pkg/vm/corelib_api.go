package vm

import "github.com/saymow/simpl-sub000/pkg/value"

// This file is pkg/corelib's entire window into the VM's otherwise
// unexported allocation and class-wiring internals. The reference
// implementation's core.c calls straight into vm.c's static helpers
// because both live in one translation unit; Go's package boundary means
// the installer needs a deliberate, minimal exported surface instead.
// Nothing here does anything an ordinary bytecode instruction couldn't
// already trigger — it just gives corelib the same capabilities at
// bootstrap time, before any Thread or bytecode exists.

// DefineClass allocates a brand-new, empty class named name and registers
// it under that name (vm.Class/vm.RegisterClass), mirroring core.c's
// defineNewClass. super may be nil for Class itself, which is wired to be
// its own metaclass by the caller afterwards.
func (vm *VM) DefineClass(name string, super *value.ObjClass) *value.ObjClass {
	c := vm.newClass(nil, vm.InternString(name), super)
	vm.RegisterClass(name, c)
	return c
}

// SetMetaclass sets obj's class (Obj.Class) to metaclass and, if obj is
// itself a class, also copies metaclass's own method table into obj's —
// exactly core.c's single-purpose inherit(): classProperty only ever
// walks one hop (callee's Obj.Class, then that class's Methods), so a
// class several metaclass-hops below Class (Array -> MetaArray -> Class)
// only sees Class's shared methods (toString) if each hop flattens its
// parent's table down into its own, rather than classProperty itself
// walking a chain. This is also why a class's static methods (new,
// isString, ...) end up technically reachable as instance methods too
// (classProperty does not distinguish "called on the class value" from
// "called on an instance of it" beyond which Methods table it lands on) —
// a faithful, if slightly leaky, carry-over of the reference's single
// inherit() helper rather than a deliberately stricter redesign.
func (vm *VM) SetMetaclass(obj *value.Obj, metaclass *value.ObjClass) {
	obj.Class = metaclass
	if obj.Kind == value.ObjClassKind {
		obj.AsClass().Methods.AddAll(metaclass.Methods)
	}
}

// DefineNativeMethod registers fn as name's implementation at the given
// arity within methods, extending an existing native overload set if one
// already exists under that name (exactly core.c's defineNativeFunction:
// slice(0)/slice(1)/slice(2) and insert(2..15) all share one
// ObjOverloadedMethod, one arity slot each). Re-using the name for a
// previously user-defined (non-native) method replaces it outright, since
// a single OverloadedMethod can't mix native and user slots under one
// dispatch Kind.
func (vm *VM) DefineNativeMethod(methods *value.Table, name string, arity int, fn value.NativeFn) {
	nameStr := vm.InternString(name)
	native := vm.newNativeFn(nil, nameStr, arity, fn)

	if existing, ok := methods.Get(nameStr); ok {
		if om := existing.AsObj().AsOverloadedMethod(); om.Kind == value.MethodNative {
			om.Slots[arity] = value.FromObj(&native.Obj)
			return
		}
	}

	om := vm.newOverloadedMethod(nil, nameStr, value.MethodNative)
	om.Slots[arity] = value.FromObj(&native.Obj)
	methods.Set(nameStr, value.FromObj(&om.Obj))
}

// AttachGlobal binds name to class in the global namespace, mirroring
// core.c's attachCore — only the classes meant to be visible as
// user-level identifiers get this; Class/Nil/Bool/Function/NativeFunction
// exist solely for classProperty's internal method-resolution.
func (vm *VM) AttachGlobal(name string, class *value.ObjClass) {
	vm.Globals.Set(vm.InternString(name), value.FromObj(&class.Obj))
}

// NewInstance, NewArray and NewNativeFnValue expose the allocation
// primitives natives need once the VM is running (t is the calling
// Thread; bootstrap code that runs before any Thread exists passes nil,
// which allocate's safe-point check tolerates).

func (vm *VM) NewInstance(t *Thread, class *value.ObjClass) *value.ObjInstance {
	return vm.newInstance(t, class)
}

func (vm *VM) NewArray(t *Thread, elements []value.Value) *value.ObjArray {
	return vm.newArray(t, elements)
}

// NewError allocates an Error instance the way a thrown internal runtime
// error does, capturing t's current call stack as its "stack" property.
// Exposed so Error.new/Error(...) natives build identical instances to
// ones raise() produces internally.
func (vm *VM) NewError(t *Thread, message string) value.Value {
	return vm.newError(t, message, formatStackTrace(t.stackTrace()))
}

// SpawnThread, JoinThread, InitLock, LockSection, UnlockSection,
// InitSemaphore, PostSemaphore and WaitSemaphore expose the concurrency
// primitives threads.go already implements, for System's natives.

func (vm *VM) SpawnThread(caller *Thread, fn value.Value, arg value.Value, hasArg bool) (uint32, error) {
	return vm.spawnThread(caller, fn, arg, hasArg)
}

func (vm *VM) JoinThread(caller *Thread, id uint32) (value.Value, error) {
	return vm.joinThread(caller, id)
}

func (vm *VM) InitLock(name string) error { return vm.initLock(name) }

func (vm *VM) LockSection(caller *Thread, name string) error {
	return vm.lockSection(caller, name)
}

func (vm *VM) UnlockSection(name string) error { return vm.unlockSection(name) }

func (vm *VM) InitSemaphore(name string, initial int) error {
	return vm.initSemaphore(name, initial)
}

func (vm *VM) PostSemaphore(name string) error { return vm.postSemaphore(name) }

func (vm *VM) WaitSemaphore(caller *Thread, name string) error {
	return vm.waitSemaphore(caller, name)
}
