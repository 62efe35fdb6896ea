package vm

import (
	"unsafe"

	"github.com/saymow/simpl-sub000/pkg/value"
)

// addr converts a pointer into a Thread's fixed stack array to a
// comparable integer, mirroring the reference's raw pointer arithmetic
// (ObjUpValue.location compared with >/>=) — Go forbids ordering
// comparisons on pointers directly, so upvalue bookkeeping goes through
// uintptr instead.
func addr(v *value.Value) uintptr { return uintptr(unsafe.Pointer(v)) }

// captureUpvalue finds or creates the open upvalue for the stack slot at
// local, keeping the thread's open-upvalue list sorted by descending slot
// address so two closures over the same local share one ObjUpvalue (§4.4).
func (vm *VM) captureUpvalue(t *Thread, local *value.Value) *value.ObjUpvalue {
	var prev *value.ObjUpvalue
	uv := t.openUpvalues
	for uv != nil && addr(uv.Location) > addr(local) {
		prev = uv
		uv = uv.Next
	}
	if uv != nil && uv.Location == local {
		return uv
	}

	created := vm.newUpvalue(t, local)
	created.Next = uv
	if prev == nil {
		t.openUpvalues = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above the stack slot
// fromSlot, copying its value in and detaching it from the thread's open
// list. Called on scope exit, loop break/continue, return, and exception
// unwinding.
func (t *Thread) closeUpvalues(fromSlot int) {
	from := addr(&t.stack[fromSlot])
	for t.openUpvalues != nil && addr(t.openUpvalues.Location) >= from {
		uv := t.openUpvalues
		uv.Close()
		t.openUpvalues = uv.Next
	}
}
