package vm

import (
	"strings"

	"github.com/saymow/simpl-sub000/pkg/value"
)

// concat implements string "+": both operands are already-interned, so the
// result is reinterned rather than boxed as a fresh uncanonical string.
func (vm *VM) concat(a, b *value.ObjString) value.Value {
	s := vm.InternString(a.Chars + b.Chars)
	return value.FromObj(&s.Obj)
}

// unwindToCatch pops the nearest TryCatch record (if any) and discards
// every frame and loop/switch record between the current point of
// execution and that try-catch's own frame, exactly mirroring
// recoverableRuntimeError/OP_THROW's unwind in the reference vm.c: frames
// opened after the try block vanish entirely, and any loop the try-catch's
// own frame left open whose body lies inside the try block is popped too,
// so a `break`/`continue` reached via a later catch doesn't consult a
// loop record describing code the catch has already jumped past.
func (vm *VM) unwindToCatch(t *Thread) (TryCatch, bool) {
	if t.tryCatchCount == 0 {
		return TryCatch{}, false
	}
	t.tryCatchCount--
	tc := t.tryCatchStack[t.tryCatchCount]

	for t.frameCount-1 != tc.frameIndex {
		for t.loopCount > 0 && t.loopStack[t.loopCount-1].frameIndex == t.frameCount-1 {
			t.loopCount--
		}
		for t.switchCount > 0 && t.switchStack[t.switchCount-1].frameIndex == t.frameCount-1 {
			t.switchCount--
		}
		t.frameCount--
	}

	for t.loopCount > 0 {
		top := t.loopStack[t.loopCount-1]
		if top.frameIndex == tc.frameIndex && top.outIP > tc.startIP && top.outIP < tc.outIP {
			t.loopCount--
			continue
		}
		break
	}
	for t.switchCount > 0 {
		top := t.switchStack[t.switchCount-1]
		if top.frameIndex == tc.frameIndex && top.outIP > tc.startIP && top.outIP < tc.outIP {
			t.switchCount--
			continue
		}
		break
	}

	t.stackTop = tc.stackTop
	t.frames[tc.frameIndex].ip = tc.catchIP
	t.closeUpvalues(tc.stackTop - 1)
	return tc, true
}

// raise is how every internal VM error (type mismatches, undefined names,
// arity mismatches, stack overflow) reaches a catch block: unlike a
// language-level throw, the thrown value is always a freshly built Error
// instance wrapping message+stack, per recoverableRuntimeError. Returns
// (nil, true) when a catch handled it — the caller must refresh its
// `frame` pointer, since execution may now be in an outer frame — or a
// fatal *RuntimeError (handled=false) when nothing caught it.
func (vm *VM) raise(t *Thread, message string) (*RuntimeError, bool) {
	stack := t.stackTrace()
	tc, ok := vm.unwindToCatch(t)
	if !ok {
		return newRuntimeError("Uncaught Exception.\n"+message, stack), false
	}
	if tc.hasCatchParam {
		t.push(vm.newError(t, message, formatStackTrace(stack)))
	}
	return nil, true
}

// throwValue is OP_THROW: the thrown value is whatever the `throw`
// expression evaluated to, pushed into the catch param unchanged (no
// wrapping) — only the uncaught path special-cases an Error instance to
// report its own message instead of a generic stringification.
func (vm *VM) throwValue(t *Thread, thrown value.Value) (*RuntimeError, bool) {
	stack := t.stackTrace()
	tc, ok := vm.unwindToCatch(t)
	if !ok {
		return newRuntimeError(vm.uncaughtMessage(thrown), stack), false
	}
	if tc.hasCatchParam {
		t.push(thrown)
	}
	return nil, true
}

func (vm *VM) uncaughtMessage(v value.Value) string {
	if v.IsInstance() {
		if msg, ok := v.AsInstance().Properties.Get(vm.InternString("message")); ok {
			return "Uncaught Exception.\n" + value.Stringify(msg)
		}
	}
	return "Uncaught Exception.\n" + value.Stringify(v)
}

// newError allocates an Error instance carrying the two properties every
// catch block can read off its param: message and stack.
func (vm *VM) newError(t *Thread, message, stack string) value.Value {
	inst := vm.newInstance(t, vm.classes["Error"])
	inst.Properties.Set(vm.InternString("message"), value.FromObj(&vm.InternString(message).Obj))
	inst.Properties.Set(vm.InternString("stack"), value.FromObj(&vm.InternString(stack).Obj))
	return value.FromObj(&inst.Obj)
}

// popTryCatchWithin discards every TryCatch record nested inside a
// loop/switch being broken or continued out of: its own frame, and an
// outIP strictly within the block's [startIP, outIP) span. Symmetric to
// unwindToCatch's own loop/switch cleanup, mirroring OP_LOOP_BREAK's
// try-catch-popping loop in vm.c (§4.4).
func popTryCatchWithin(t *Thread, frameIndex, startIP, outIP int) {
	for t.tryCatchCount > 0 {
		tc := t.tryCatchStack[t.tryCatchCount-1]
		if tc.frameIndex == frameIndex && tc.outIP > startIP && tc.outIP < outIP {
			t.tryCatchCount--
			continue
		}
		break
	}
}

// getArrayItem is OP_GET_ITEM's element lookup: an Array indexes
// numerically (an out-of-range index yields nil rather than an error, per
// the reference's explicit "todo: should it be a runtime error?" choice
// carried as-is); an Instance indexes by string key, filling a gap the
// reference left as a bare "// todo" with no implementation at all.
func (vm *VM) getArrayItem(t *Thread, base, index value.Value) (value.Value, *RuntimeError, bool) {
	switch {
	case base.IsArray():
		if !index.IsNumber() {
			nf, handled := vm.raise(t, "Array index must be a number.")
			return value.Nil, nf, handled
		}
		elems := base.AsArray().Elements
		idx := int(index.AsNumber())
		if idx < 0 || idx >= len(elems) {
			return value.Nil, nil, true
		}
		return elems[idx], nil, true
	case base.IsInstance():
		if !index.IsString() {
			nf, handled := vm.raise(t, "Object index must be a string.")
			return value.Nil, nf, handled
		}
		v, ok := base.AsInstance().Properties.Get(index.AsString())
		if !ok {
			return value.Nil, nil, true
		}
		return v, nil, true
	default:
		nf, handled := vm.raise(t, "Cannot access property.")
		return value.Nil, nf, handled
	}
}

// setArrayItem is OP_SET_ITEM's element store: unlike getArrayItem, an
// out-of-range Array index IS an error here, matching the reference's
// asymmetric read/write bounds checking.
func (vm *VM) setArrayItem(t *Thread, base, index, v value.Value) (*RuntimeError, bool) {
	switch {
	case base.IsArray():
		if !index.IsNumber() {
			return vm.raise(t, "Array index must be a number.")
		}
		elems := base.AsArray().Elements
		idx := int(index.AsNumber())
		if idx < 0 || idx >= len(elems) {
			return vm.raise(t, "Array index out of bounds.")
		}
		elems[idx] = v
		return nil, true
	case base.IsInstance():
		if !index.IsString() {
			return vm.raise(t, "Object index must be a string.")
		}
		base.AsInstance().Properties.Set(index.AsString(), v)
		return nil, true
	default:
		return vm.raise(t, "Cannot access property.")
	}
}

// execObjectLiteral is OP_OBJECT: construct a plain Object instance, then
// read propertiesCount key/value pairs the compiler pushed in reverse and
// fold them onto its properties table.
func (vm *VM) execObjectLiteral(t *Thread, frame *CallFrame) (*RuntimeError, bool) {
	t.push(value.Nil) // placeholder callee slot, matching a zero-arg call
	if res := vm.callConstructor(t, vm.classes["Object"], 0); !res.ok {
		return vm.raise(t, res.msg)
	}
	base := t.pop()
	inst := base.AsObj().AsInstance()

	propertiesCount := int(readByte(frame))
	for i := 0; i < propertiesCount; i++ {
		v := t.pop()
		key := t.pop().AsString()
		inst.Properties.Set(key, v)
	}

	t.push(base)
	return nil, true
}

// execStringInterpolation is OP_STRING_INTERPOLATION: template carries the
// escaped source text with its $(...) placeholders intact; the compiler
// pushed one value per placeholder, in source order, just before this
// instruction. Supplements the reference, which has no string
// interpolation at all.
func (vm *VM) execStringInterpolation(t *Thread, template *value.ObjString, placeholders int) value.Value {
	values := make([]value.Value, placeholders)
	copy(values, t.stack[t.stackTop-placeholders:t.stackTop])
	t.stackTop -= placeholders

	s := template.Chars
	var b strings.Builder
	vi := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '(' {
			depth := 1
			j := i + 2
			for depth > 0 {
				switch s[j] {
				case '(':
					depth++
				case ')':
					depth--
				}
				j++
			}
			if vi < len(values) {
				b.WriteString(value.Stringify(values[vi]))
				vi++
			}
			i = j - 1
			continue
		}
		b.WriteByte(s[i])
	}

	return value.FromObj(&vm.InternString(b.String()).Obj)
}

// execNamedLoop is OP_NAMED_LOOP, the `for x of iterable` step: the stack
// (bottom to top, within the loop's scope) holds the bound name, a hidden
// iteration index starting at -1, and the iterable itself. Each pass
// advances the index and rebinds the name to the next element, or exits
// through the loop's outIP once the iterable is exhausted (§4.4).
func (vm *VM) execNamedLoop(t *Thread, frame *CallFrame) (*RuntimeError, bool) {
	iterator := t.peek(0)
	idx := t.peek(1)

	if !iterator.IsArray() {
		return vm.raise(t, "Expected for each iterator variable to be iterable.")
	}

	elems := iterator.AsArray().Elements
	nextIdx := int(idx.AsNumber()) + 1

	if nextIdx >= len(elems) {
		loop := t.loopStack[t.loopCount-1]
		frame.ip = loop.outIP
		t.stackTop = loop.stackTop + 1
		return nil, true
	}

	t.stack[t.stackTop-2] = value.Number(float64(nextIdx))
	t.stack[t.stackTop-3] = elems[nextIdx]
	return nil, true
}

// signum reports the sign of n as -1, 0 or 1, used by execRangedLoopSetup
// to derive an omitted step from the direction of the range.
func signum(n float64) float64 {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

// execRangedLoopSetup is OP_RANGED_LOOP_SETUP: normalizes the three hidden
// locals `for range(...)` pushed (start, end, step, in that stack order)
// before the first RANGED_LOOP check. A single argument is the upper
// bound of an implicit 0-based range (`range(n)` ~ 0..n), stepping by 1.
// In the two/three-argument form, an omitted step defaults to
// signum(end - start) per spec §4.4 — +1 for an ascending range, -1 for a
// descending one, 0 when start == end (which then hits the explicit
// zero-step error below, same as a literal step of 0 would). Has no
// counterpart in the reference, which never implements ranged loops
// despite the compiler emitting for them — derived from the compiler's
// own emission shape (§SPEC_FULL Open Question: a zero step is a
// recoverable error, not an infinite loop).
func (vm *VM) execRangedLoopSetup(t *Thread) (*RuntimeError, bool) {
	stepSlot := t.stackTop - 1
	endSlot := t.stackTop - 2
	startSlot := t.stackTop - 3

	start := t.stack[startSlot]
	end := t.stack[endSlot]
	step := t.stack[stepSlot]

	if end.IsNil() {
		if !start.IsNumber() {
			return vm.raise(t, "Range bounds must be numbers.")
		}
		t.stack[endSlot] = start
		t.stack[startSlot] = value.Number(0)
		t.stack[stepSlot] = value.Number(1)
		return nil, true
	}

	if !start.IsNumber() || !end.IsNumber() {
		return vm.raise(t, "Range bounds and step must be numbers.")
	}

	if step.IsNil() {
		step = value.Number(signum(end.AsNumber() - start.AsNumber()))
		t.stack[stepSlot] = step
	}

	if !step.IsNumber() {
		return vm.raise(t, "Range bounds and step must be numbers.")
	}
	if step.AsNumber() == 0 {
		return vm.raise(t, "Range step must not be zero.")
	}
	return nil, true
}

// execRangedLoop is OP_RANGED_LOOP: advances the running value (reusing
// the start slot as the loop's current position — no name is ever bound
// for this form) by step and checks the direction-appropriate bound,
// exiting through the loop's outIP exactly like execNamedLoop.
func (vm *VM) execRangedLoop(t *Thread, frame *CallFrame) {
	stepSlot := t.stackTop - 1
	endSlot := t.stackTop - 2
	startSlot := t.stackTop - 3

	current := t.stack[startSlot].AsNumber()
	end := t.stack[endSlot].AsNumber()
	step := t.stack[stepSlot].AsNumber()

	done := current >= end
	if step < 0 {
		done = current <= end
	}

	if done {
		loop := t.loopStack[t.loopCount-1]
		frame.ip = loop.outIP
		t.stackTop = loop.stackTop + 1
		return
	}

	t.stack[startSlot] = value.Number(current + step)
}
