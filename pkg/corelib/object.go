package corelib

import (
	"github.com/saymow/simpl-sub000/pkg/value"
	"github.com/saymow/simpl-sub000/pkg/vm"
)

// installMetaObjectMethods defines Object's static methods: keys, values,
// entries — each walking the instance's own property table, matching
// core.c's __nativeStaticObjectKeys/Values/Entries.
func installMetaObjectMethods(v *vm.VM, class *value.ObjClass) {
	v.DefineNativeMethod(class.Methods, "keys", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantInstance(args, 1, "value")
		if err != nil {
			return value.Nil, err
		}
		var elements []value.Value
		self.Properties.Each(func(key *value.ObjString, val value.Value) {
			elements = append(elements, value.FromObj(&key.Obj))
		})
		arr := v.NewArray(thread(th), elements)
		return value.FromObj(&arr.Obj), nil
	})

	v.DefineNativeMethod(class.Methods, "values", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantInstance(args, 1, "value")
		if err != nil {
			return value.Nil, err
		}
		var elements []value.Value
		self.Properties.Each(func(key *value.ObjString, val value.Value) {
			elements = append(elements, val)
		})
		arr := v.NewArray(thread(th), elements)
		return value.FromObj(&arr.Obj), nil
	})

	v.DefineNativeMethod(class.Methods, "entries", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantInstance(args, 1, "value")
		if err != nil {
			return value.Nil, err
		}
		t := thread(th)
		var elements []value.Value
		self.Properties.Each(func(key *value.ObjString, val value.Value) {
			pair := v.NewArray(t, []value.Value{value.FromObj(&key.Obj), val})
			elements = append(elements, value.FromObj(&pair.Obj))
		})
		arr := v.NewArray(t, elements)
		return value.FromObj(&arr.Obj), nil
	})
}

// installMetaErrorMethods defines Error's static constructors: new/Error,
// both building an instance carrying message and a captured stack trace
// the same way an internal runtime error does (vm.NewError).
func installMetaErrorMethods(v *vm.VM, class *value.ObjClass) {
	newFn := func(th any, args []value.Value) (value.Value, error) {
		message := ""
		if len(args) > 1 {
			s, err := wantString(args, 1, "message")
			if err != nil {
				return value.Nil, err
			}
			message = s.Chars
		}
		return v.NewError(thread(th), message), nil
	}
	v.DefineNativeMethod(class.Methods, "new", 0, newFn)
	v.DefineNativeMethod(class.Methods, "new", 1, newFn)
	v.DefineNativeMethod(class.Methods, "Error", 0, newFn)
	v.DefineNativeMethod(class.Methods, "Error", 1, newFn)
}
