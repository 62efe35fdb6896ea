package vm

import "github.com/saymow/simpl-sub000/pkg/value"

// callResult is what every call-mechanics helper returns: either a new
// frame was pushed (ok), or a recoverable error message was raised and
// the caller should let raise()'s unwind decide what happens next.
type callResult struct {
	ok  bool
	msg string
}

func callOK() callResult           { return callResult{ok: true} }
func callErr(msg string) callResult { return callResult{ok: false, msg: msg} }

// callValue dispatches `callee(argCount args)` sitting on top of t's
// stack (callee itself at depth argCount) to whichever call mechanism its
// kind implies, per §4.4: a Class constructs an instance, a
// BoundOverloadedMethod rebinds its receiver into the callee slot, a
// Closure or a NativeFn is called directly, anything else is a "Can only
// call functions" error.
func (vm *VM) callValue(t *Thread, argCount int) callResult {
	callee := t.peek(argCount)
	if !callee.IsObj() {
		return callErr("Can only call functions.")
	}

	o := callee.AsObj()
	switch o.Kind {
	case value.ObjClassKind:
		return vm.callConstructor(t, o.AsClass(), argCount)
	case value.ObjBoundOverloadedMethodKind:
		bound := o.AsBoundOverloadedMethod()
		t.stack[t.stackTop-argCount-1] = bound.Base
		return vm.dispatchOverload(t, bound.Method, argCount)
	case value.ObjClosureKind:
		cl := o.AsClosure()
		if cl.Function.Arity > argCount {
			return callErr(arityMessage(cl.Function.Arity, argCount))
		}
		return vm.call(t, cl, argCount)
	case value.ObjNativeFnKind:
		return vm.callNative(t, o.AsNativeFn(), argCount, false)
	default:
		return callErr("Can only call functions.")
	}
}

func arityMessage(want, got int) string {
	return "Expected " + itoa(want) + " arguments but got " + itoa(got) + "."
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// resolveOverload picks which arity slot of an OverloadedMethod to invoke
// for argCount arguments, per §4.4: arguments beyond arity 15 collapse
// into slot 15 (variadic-by-convention); search downward from that slot
// first (an exact-or-fewer match), then upward (a higher-arity method
// that will simply be under-supplied is reported as an arity error rather
// than silently called).
func resolveOverload(slots [value.MaxArity]value.Value, argCount int) (value.Value, string) {
	arity := argCount
	if arity >= value.MaxArity {
		arity = value.MaxArity - 1
	}
	for idx := arity; idx >= 0; idx-- {
		if !slots[idx].IsNil() {
			return slots[idx], ""
		}
	}
	for idx := arity + 1; idx < value.MaxArity; idx++ {
		if !slots[idx].IsNil() {
			return value.Nil, arityMessage(idx, argCount)
		}
	}
	return value.Nil, "Undefined method."
}

// dispatchOverload resolves and invokes whichever arity slot of method
// fits argCount, as either a user closure or a native function.
func (vm *VM) dispatchOverload(t *Thread, method *value.ObjOverloadedMethod, argCount int) callResult {
	target, errMsg := resolveOverload(method.Slots, argCount)
	if errMsg != "" {
		return callErr(errMsg)
	}
	if method.Kind == value.MethodNative {
		return vm.callNative(t, target.AsNativeFn(), argCount, true)
	}
	return vm.call(t, target.AsClosure(), argCount)
}

// callConstructor allocates a fresh Instance of class, replaces the
// callee slot with it (so `this`/slot 0 and the eventual return value
// line up the same way a Closure call would), and dispatches the class's
// own overloaded constructor method (named identically to the class) if
// one exists; a class with no declared constructor accepts exactly zero
// arguments.
func (vm *VM) callConstructor(t *Thread, class *value.ObjClass, argCount int) callResult {
	inst := vm.newInstance(t, class)
	t.stack[t.stackTop-argCount-1] = value.FromObj(&inst.Obj)

	ctor, ok := class.Methods.Get(class.Name)
	if !ok {
		if argCount != 0 {
			return callErr(arityMessage(0, argCount))
		}
		return callOK()
	}
	return vm.dispatchOverload(t, ctor.AsOverloadedMethod(), argCount)
}

// call pushes a new CallFrame for closure over the argCount arguments (and
// receiver, for a bound method) already sitting on t's stack.
func (vm *VM) call(t *Thread, closure *value.ObjClosure, argCount int) callResult {
	if t.frameCount == framesMax {
		return callErr("Stack overflow.")
	}
	t.frames[t.frameCount] = CallFrame{
		kind:    frameClosure,
		closure: closure,
		ip:      0,
		base:    t.stackTop - argCount - 1,
	}
	t.frameCount++
	return callOK()
}

// callModuleFrame pushes a module body's frame the first time it is
// imported; OP_IMPORT gates this on module.Evaluated.
func (vm *VM) callModuleFrame(t *Thread, module *value.ObjModule) callResult {
	if t.frameCount == framesMax {
		return callErr("Stack overflow.")
	}
	t.frames[t.frameCount] = CallFrame{
		kind:   frameModule,
		module: module,
		ip:     0,
		base:   t.stackTop - 1,
	}
	t.frameCount++
	return callOK()
}

// callNative invokes a Go-implemented primitive. isMethod controls
// whether slot 0 of the argument window is the receiver (methods) or the
// first ordinary argument (free functions), matching the native ABI's
// `(thread, argCount, firstArg)` convention (§6.2).
func (vm *VM) callNative(t *Thread, fn *value.ObjNativeFn, argCount int, isMethod bool) callResult {
	first := t.stackTop - argCount
	if isMethod {
		first--
	}
	args := t.stack[first:t.stackTop]
	result, err := fn.Fn(t, args)
	if err != nil {
		return callErr(err.Error())
	}
	t.stackTop = first
	t.push(result)
	return callOK()
}

// classProperty looks up name on base's class method table (built-in
// classes for primitives, base's own class for objects), binding it to
// base if it is a method. Mirrors objectClassProperty (§4.4).
func (vm *VM) classProperty(t *Thread, base value.Value, name *value.ObjString) (value.Value, bool) {
	var class *value.ObjClass
	switch {
	case base.IsObj():
		class = base.AsObj().Class
	case base.IsNumber():
		class = vm.classes["Number"]
	case base.IsBool():
		class = vm.classes["Bool"]
	case base.IsNil():
		class = vm.classes["Nil"]
	}
	if class == nil {
		return value.Nil, false
	}
	prop, ok := class.Methods.Get(name)
	if !ok {
		return value.Nil, false
	}
	if prop.IsObjKind(value.ObjOverloadedMethodKind) {
		bound := vm.newBoundMethod(t, base, prop.AsOverloadedMethod())
		return value.FromObj(&bound.Obj), true
	}
	return prop, true
}

// classBoundMethod resolves `super.method` against class's own method
// table (bypassing the instance's dynamic class), binding base as the
// receiver (§4.4).
func (vm *VM) classBoundMethod(t *Thread, base value.Value, class *value.ObjClass, name *value.ObjString) (value.Value, bool) {
	prop, ok := class.Methods.Get(name)
	if !ok || !prop.IsObjKind(value.ObjOverloadedMethodKind) {
		return value.Nil, false
	}
	bound := vm.newBoundMethod(t, base, prop.AsOverloadedMethod())
	return value.FromObj(&bound.Obj), true
}

// invokeMethod is OP_INVOKE's mechanism: an instance's own property takes
// priority over its class's methods (so a stored closure shadows a
// same-named method), otherwise fall back to classProperty.
func (vm *VM) invokeMethod(t *Thread, base value.Value, name *value.ObjString, argCount int) callResult {
	if base.IsObjKind(value.ObjInstanceKind) {
		if prop, ok := base.AsObj().AsInstance().Properties.Get(name); ok {
			t.stack[t.stackTop-argCount-1] = prop
			return vm.callValue(t, argCount)
		}
	}
	prop, ok := vm.classProperty(t, base, name)
	if !ok {
		return callErr("Undefined property '" + name.Chars + "'.")
	}
	t.stack[t.stackTop-argCount-1] = prop
	return vm.callValue(t, argCount)
}

// defineMethod implements OP_METHOD: the closure on top of the stack
// becomes (or extends) an OverloadedMethod slot on the class just below
// it, keyed by the closure's declared arity. Re-declaring the same
// user-method name adds another arity overload instead of replacing the
// whole method, the one overloading rule the language allows (§4.4); a
// name already bound to a native method is simply overwritten, since
// overloading native and user slots together is not supported.
func (vm *VM) defineMethod(t *Thread) {
	method := t.pop().AsObj().AsClosure()
	class := t.peek(0).AsObj().AsClass()
	name := method.Function.Name

	if existing, ok := class.Methods.Get(name); ok {
		if old := existing.AsObj().AsOverloadedMethod(); old.Kind == value.MethodUser {
			// OP_INHERIT copies the superclass's method entries by pointer,
			// so extend a copy rather than the (possibly shared) original.
			om := vm.newOverloadedMethod(t, name, value.MethodUser)
			om.Slots = old.Slots
			om.Slots[method.Function.Arity] = value.FromObj(&method.Obj)
			class.Methods.Set(name, value.FromObj(&om.Obj))
			return
		}
	}

	om := vm.newOverloadedMethod(t, name, value.MethodUser)
	om.Slots[method.Function.Arity] = value.FromObj(&method.Obj)
	class.Methods.Set(name, value.FromObj(&om.Obj))
}
