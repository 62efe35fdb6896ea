package vm

import "github.com/saymow/simpl-sub000/pkg/value"

// The constructors below are the only way runtime code should create a
// heap object: each registers the new Obj on vm's allocation list (via
// allocate, which also drives the GC threshold check and safe-point) so
// every live object is reachable to the collector in gc.go.

func (vm *VM) newArray(t *Thread, elements []value.Value) *value.ObjArray {
	a := &value.ObjArray{Elements: elements}
	a.Obj.Kind = value.ObjArrayKind
	a.Obj.Class = vm.classes["Array"]
	vm.allocate(&a.Obj, t)
	return a
}

func (vm *VM) newInstance(t *Thread, class *value.ObjClass) *value.ObjInstance {
	inst := &value.ObjInstance{Properties: value.NewTable()}
	inst.Obj.Kind = value.ObjInstanceKind
	inst.Obj.Class = class
	vm.allocate(&inst.Obj, t)
	return inst
}

func (vm *VM) newClosure(t *Thread, fn *value.ObjFunction, upvalues []*value.ObjUpvalue) *value.ObjClosure {
	cl := &value.ObjClosure{Function: fn, Upvalues: upvalues}
	cl.Obj.Kind = value.ObjClosureKind
	vm.allocate(&cl.Obj, t)
	return cl
}

func (vm *VM) newUpvalue(t *Thread, slot *value.Value) *value.ObjUpvalue {
	uv := &value.ObjUpvalue{Location: slot}
	uv.Obj.Kind = value.ObjUpvalueKind
	vm.allocate(&uv.Obj, t)
	return uv
}

func (vm *VM) newClass(t *Thread, name *value.ObjString, super *value.ObjClass) *value.ObjClass {
	c := &value.ObjClass{Name: name, Super: super, Methods: value.NewTable()}
	c.Obj.Kind = value.ObjClassKind
	vm.allocate(&c.Obj, t)
	return c
}

func (vm *VM) newBoundMethod(t *Thread, base value.Value, method *value.ObjOverloadedMethod) *value.ObjBoundOverloadedMethod {
	b := &value.ObjBoundOverloadedMethod{Base: base, Method: method}
	b.Obj.Kind = value.ObjBoundOverloadedMethodKind
	vm.allocate(&b.Obj, t)
	return b
}

func (vm *VM) newOverloadedMethod(t *Thread, name *value.ObjString, kind value.MethodKind) *value.ObjOverloadedMethod {
	m := &value.ObjOverloadedMethod{Name: name, Kind: kind}
	m.Obj.Kind = value.ObjOverloadedMethodKind
	vm.allocate(&m.Obj, t)
	return m
}

// newNativeFn allocates a native function wrapper. Unlike the other
// constructors this is normally called during corelib bootstrap, before
// any Thread exists; t may be nil (allocate's safe-point check tolerates
// a nil thread by skipping the handshake).
func (vm *VM) newNativeFn(t *Thread, name *value.ObjString, arity int, fn value.NativeFn) *value.ObjNativeFn {
	n := &value.ObjNativeFn{Name: name, Arity: arity, Fn: fn}
	n.Obj.Kind = value.ObjNativeFnKind
	vm.allocate(&n.Obj, t)
	return n
}
