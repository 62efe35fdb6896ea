// Package corelib installs the language's built-in classes — Class, Nil,
// Bool, Number, Math, String, Array, Function, NativeFunction, Error,
// Object and System — onto a freshly constructed *vm.VM, the way
// core.c's initCore/attachCore populate a fresh VM in the reference
// implementation. Call Install once, immediately after vm.New, before
// compiling or running any user source.
package corelib

import (
	"fmt"

	"github.com/saymow/simpl-sub000/pkg/value"
	"github.com/saymow/simpl-sub000/pkg/vm"
)

// thread recovers the concrete *vm.Thread every native actually receives;
// the NativeFn signature types it as `any` only to avoid an import cycle
// between pkg/value and pkg/vm (see value.NativeFn's doc comment).
func thread(th any) *vm.Thread { return th.(*vm.Thread) }

func argError(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

func wantNumber(args []value.Value, i int, what string) (float64, error) {
	if i >= len(args) || !args[i].IsNumber() {
		return 0, argError("Expected %s to be a number.", what)
	}
	return args[i].AsNumber(), nil
}

func wantInt(args []value.Value, i int, what string) (int, error) {
	n, err := wantNumber(args, i, what)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func wantString(args []value.Value, i int, what string) (*value.ObjString, error) {
	if i >= len(args) || !args[i].IsString() {
		return nil, argError("Expected %s to be a string.", what)
	}
	return args[i].AsString(), nil
}

func wantArray(args []value.Value, i int, what string) (*value.ObjArray, error) {
	if i >= len(args) || !args[i].IsArray() {
		return nil, argError("Expected %s to be an array.", what)
	}
	return args[i].AsArray(), nil
}

func wantInstance(args []value.Value, i int, what string) (*value.ObjInstance, error) {
	if i >= len(args) || !args[i].IsInstance() {
		return nil, argError("Expected %s to be an object.", what)
	}
	return args[i].AsInstance(), nil
}

// wantCallable accepts anything callValue would: a Closure, a native
// function, a class (constructs), or a bound method.
func wantCallable(args []value.Value, i int, what string) (value.Value, error) {
	if i >= len(args) {
		return value.Nil, argError("Expected %s to be callable.", what)
	}
	v := args[i]
	if v.IsClosure() || v.IsNativeFn() || v.IsClass() || v.IsBoundOverloadedMethod() || v.IsOverloadedMethod() {
		return v, nil
	}
	return value.Nil, argError("Expected %s to be callable.", what)
}

// clampIndex folds a possibly-negative, possibly-out-of-range index into
// [0, length] (inclusive upper bound, for slice/insert-style endpoints
// that may point one past the last element).
func clampIndex(idx, length int) int {
	if idx < 0 {
		idx += length
	}
	if idx < 0 {
		return 0
	}
	if idx > length {
		return length
	}
	return idx
}

// clampElementIndex folds a possibly-negative index into [0, length), for
// operations that must land on an existing element (e.g. take).
func clampElementIndex(idx, length int) int {
	if idx < 0 {
		idx += length
	}
	if idx < 0 {
		return 0
	}
	if idx > length-1 {
		return length - 1
	}
	return idx
}
