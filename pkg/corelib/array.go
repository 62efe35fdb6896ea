package corelib

import (
	"sort"
	"strings"

	"github.com/saymow/simpl-sub000/pkg/value"
	"github.com/saymow/simpl-sub000/pkg/vm"
)

// installMetaArrayMethods defines Array's static methods: isArray, and
// new/Array (construct an empty array, or one copying another array's
// elements), matching core.c's MetaArray roster.
func installMetaArrayMethods(v *vm.VM, class *value.ObjClass) {
	v.DefineNativeMethod(class.Methods, "isArray", 1, func(th any, args []value.Value) (value.Value, error) {
		return value.Bool(args[1].IsArray()), nil
	})

	emptyFn := func(th any, args []value.Value) (value.Value, error) {
		arr := v.NewArray(thread(th), nil)
		return value.FromObj(&arr.Obj), nil
	}
	copyFn := func(th any, args []value.Value) (value.Value, error) {
		src, err := wantArray(args, 1, "value")
		if err != nil {
			return value.Nil, err
		}
		elements := make([]value.Value, len(src.Elements))
		copy(elements, src.Elements)
		arr := v.NewArray(thread(th), elements)
		return value.FromObj(&arr.Obj), nil
	}

	v.DefineNativeMethod(class.Methods, "new", 0, emptyFn)
	v.DefineNativeMethod(class.Methods, "new", 1, copyFn)
	v.DefineNativeMethod(class.Methods, "Array", 0, emptyFn)
	v.DefineNativeMethod(class.Methods, "Array", 1, copyFn)
}

// installArrayMethods defines Array's instance methods: the core.c roster
// (length, push, pop, unshift, shift, slice, indexOf, insert, remove,
// take, join, reverse) plus SPEC_FULL §9.1's supplement (sort, flat,
// concat, fill, copyWithin) implemented natively with ordinary Go slice
// operations rather than core.c's manual GROW_ARRAY/SHRINK_ARRAY
// bookkeeping, since ObjArray.Elements is already a Go slice. The
// callback-taking methods (map, filter, forEach, reduce, find, findIndex,
// some, every, sortBy) live in the self-hosted extension instead — natives
// here can't call back into the bytecode dispatch loop.
func installArrayMethods(v *vm.VM, class *value.ObjClass) {
	methods := class.Methods

	v.DefineNativeMethod(methods, "length", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		return value.Number(float64(len(self.Elements))), nil
	})

	v.DefineNativeMethod(methods, "push", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		self.Elements = append(self.Elements, args[1])
		return args[0], nil
	})

	v.DefineNativeMethod(methods, "pop", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		if len(self.Elements) == 0 {
			return value.Nil, argError("Cannot pop from an empty array.")
		}
		last := self.Elements[len(self.Elements)-1]
		self.Elements = self.Elements[:len(self.Elements)-1]
		return last, nil
	})

	v.DefineNativeMethod(methods, "unshift", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		self.Elements = append([]value.Value{args[1]}, self.Elements...)
		return args[0], nil
	})

	v.DefineNativeMethod(methods, "shift", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		if len(self.Elements) == 0 {
			return value.Nil, argError("Cannot shift from an empty array.")
		}
		first := self.Elements[0]
		self.Elements = self.Elements[1:]
		return first, nil
	})

	v.DefineNativeMethod(methods, "reverse", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		for i, j := 0, len(self.Elements)-1; i < j; i, j = i+1, j-1 {
			self.Elements[i], self.Elements[j] = self.Elements[j], self.Elements[i]
		}
		return args[0], nil
	})

	v.DefineNativeMethod(methods, "indexOf", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		for i, el := range self.Elements {
			if value.Equal(el, args[1]) {
				return value.Number(float64(i)), nil
			}
		}
		return value.Number(-1), nil
	})

	v.DefineNativeMethod(methods, "take", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		if len(self.Elements) == 0 {
			return value.Nil, argError("Cannot take from an empty array.")
		}
		idx, err := wantInt(args, 1, "index")
		if err != nil {
			return value.Nil, err
		}
		idx = clampElementIndex(idx, len(self.Elements))
		return self.Elements[idx], nil
	})

	v.DefineNativeMethod(methods, "remove", 2, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		from, err := wantInt(args, 1, "from")
		if err != nil {
			return value.Nil, err
		}
		to, err := wantInt(args, 2, "to")
		if err != nil {
			return value.Nil, err
		}
		length := len(self.Elements)
		from = clampIndex(from, length)
		to = clampIndex(to, length)
		if to < from {
			to = from
		}
		removed := make([]value.Value, to-from)
		copy(removed, self.Elements[from:to])
		self.Elements = append(self.Elements[:from], self.Elements[to:]...)
		arr := v.NewArray(thread(th), removed)
		return value.FromObj(&arr.Obj), nil
	})

	slice := func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		length := len(self.Elements)
		start, end := 0, length
		if len(args) > 1 {
			n, err := wantInt(args, 1, "start")
			if err != nil {
				return value.Nil, err
			}
			start = clampIndex(n, length)
		}
		if len(args) > 2 {
			n, err := wantInt(args, 2, "end")
			if err != nil {
				return value.Nil, err
			}
			end = clampIndex(n, length)
		}
		if end < start {
			end = start
		}
		elements := make([]value.Value, end-start)
		copy(elements, self.Elements[start:end])
		arr := v.NewArray(thread(th), elements)
		return value.FromObj(&arr.Obj), nil
	}
	v.DefineNativeMethod(methods, "slice", 0, slice)
	v.DefineNativeMethod(methods, "slice", 1, slice)
	v.DefineNativeMethod(methods, "slice", 2, slice)

	// insert(index, v1, v2, ..., vN) for arities 2..15, one native slot
	// per arity, matching core.c's handwritten insert(2)..insert(15) — the
	// last arity an ObjOverloadedMethod's fixed Slots[MaxArity] can hold.
	for arity := 2; arity < value.MaxArity; arity++ {
		v.DefineNativeMethod(methods, "insert", arity, func(th any, args []value.Value) (value.Value, error) {
			self, err := wantArray(args, 0, "receiver")
			if err != nil {
				return value.Nil, err
			}
			idx, err := wantInt(args, 1, "index")
			if err != nil {
				return value.Nil, err
			}
			idx = clampIndex(idx, len(self.Elements))
			values := args[2:]
			grown := make([]value.Value, 0, len(self.Elements)+len(values))
			grown = append(grown, self.Elements[:idx]...)
			grown = append(grown, values...)
			grown = append(grown, self.Elements[idx:]...)
			self.Elements = grown
			return args[0], nil
		})
	}

	join := func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		sep := ","
		if len(args) > 1 {
			s, err := wantString(args, 1, "separator")
			if err != nil {
				return value.Nil, err
			}
			sep = s.Chars
		}
		parts := make([]string, len(self.Elements))
		for i, el := range self.Elements {
			parts[i] = value.Stringify(el)
		}
		return value.FromObj(&v.InternString(strings.Join(parts, sep)).Obj), nil
	}
	v.DefineNativeMethod(methods, "join", 0, join)
	v.DefineNativeMethod(methods, "join", 1, join)

	v.DefineNativeMethod(methods, "concat", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		other, err := wantArray(args, 1, "value")
		if err != nil {
			return value.Nil, err
		}
		elements := make([]value.Value, 0, len(self.Elements)+len(other.Elements))
		elements = append(elements, self.Elements...)
		elements = append(elements, other.Elements...)
		arr := v.NewArray(thread(th), elements)
		return value.FromObj(&arr.Obj), nil
	})

	v.DefineNativeMethod(methods, "flat", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		var elements []value.Value
		for _, el := range self.Elements {
			if el.IsArray() {
				elements = append(elements, el.AsArray().Elements...)
			} else {
				elements = append(elements, el)
			}
		}
		arr := v.NewArray(thread(th), elements)
		return value.FromObj(&arr.Obj), nil
	})

	v.DefineNativeMethod(methods, "fill", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		for i := range self.Elements {
			self.Elements[i] = args[1]
		}
		return args[0], nil
	})

	v.DefineNativeMethod(methods, "copyWithin", 2, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		length := len(self.Elements)
		target, err := wantInt(args, 1, "target")
		if err != nil {
			return value.Nil, err
		}
		start, err := wantInt(args, 2, "start")
		if err != nil {
			return value.Nil, err
		}
		target = clampIndex(target, length)
		start = clampIndex(start, length)
		copy(self.Elements[target:], self.Elements[start:])
		return args[0], nil
	})

	v.DefineNativeMethod(methods, "sort", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantArray(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		var sortErr error
		sort.SliceStable(self.Elements, func(i, j int) bool {
			a, b := self.Elements[i], self.Elements[j]
			if a.IsNumber() && b.IsNumber() {
				return a.AsNumber() < b.AsNumber()
			}
			if a.IsString() && b.IsString() {
				return a.AsString().Chars < b.AsString().Chars
			}
			if sortErr == nil {
				sortErr = argError("Default sort only compares numbers or strings; use sortBy for custom ordering.")
			}
			return false
		})
		if sortErr != nil {
			return value.Nil, sortErr
		}
		return args[0], nil
	})
}
