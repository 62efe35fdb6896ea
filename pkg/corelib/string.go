package corelib

import (
	"strings"

	"github.com/saymow/simpl-sub000/pkg/value"
	"github.com/saymow/simpl-sub000/pkg/vm"
)

const asciiCaseOffset = 'a' - 'A'

func asciiToUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - asciiCaseOffset
		}
	}
	return string(b)
}

func asciiToLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + asciiCaseOffset
		}
	}
	return string(b)
}

// installMetaStringMethods defines String's static methods: isString,
// new/String (construct from a value's toString, or "" with no
// argument), matching core.c's MetaString roster.
func installMetaStringMethods(v *vm.VM, class *value.ObjClass) {
	v.DefineNativeMethod(class.Methods, "isString", 1, func(th any, args []value.Value) (value.Value, error) {
		return value.Bool(args[1].IsString()), nil
	})

	newFn := func(th any, args []value.Value) (value.Value, error) {
		if len(args) < 2 {
			return value.FromObj(&v.InternString("").Obj), nil
		}
		s := v.InternString(value.Stringify(args[1]))
		return value.FromObj(&s.Obj), nil
	}
	emptyFn := func(th any, args []value.Value) (value.Value, error) {
		return value.FromObj(&v.InternString("").Obj), nil
	}

	v.DefineNativeMethod(class.Methods, "new", 0, emptyFn)
	v.DefineNativeMethod(class.Methods, "new", 1, newFn)
	v.DefineNativeMethod(class.Methods, "String", 0, emptyFn)
	v.DefineNativeMethod(class.Methods, "String", 1, newFn)
}

// installStringMethods defines String's instance methods: the core.c
// roster (toUpperCase, toLowerCase, includes, split, substr, length,
// endsWith, startsWith, trimEnd, trimStart, charCodeAt, isEmpty, compare)
// plus SPEC_FULL §9.2's supplement (replace, repeat, toArray, trim),
// matching core.c's fuller ObjString method table. Case folding is
// ASCII-only throughout, per the reference's byte-wise implementation.
func installStringMethods(v *vm.VM, class *value.ObjClass) {
	methods := class.Methods

	v.DefineNativeMethod(methods, "length", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		return value.Number(float64(len(self.Chars))), nil
	})

	v.DefineNativeMethod(methods, "isEmpty", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		return value.Bool(len(self.Chars) == 0), nil
	})

	v.DefineNativeMethod(methods, "toUpperCase", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		return value.FromObj(&v.InternString(asciiToUpper(self.Chars)).Obj), nil
	})

	v.DefineNativeMethod(methods, "toLowerCase", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		return value.FromObj(&v.InternString(asciiToLower(self.Chars)).Obj), nil
	})

	includesFn := func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		needle, err := wantString(args, 1, "search value")
		if err != nil {
			return value.Nil, err
		}
		return value.Bool(strings.Contains(self.Chars, needle.Chars)), nil
	}
	v.DefineNativeMethod(methods, "includes", 1, includesFn)

	v.DefineNativeMethod(methods, "startsWith", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		prefix, err := wantString(args, 1, "prefix")
		if err != nil {
			return value.Nil, err
		}
		return value.Bool(strings.HasPrefix(self.Chars, prefix.Chars)), nil
	})

	v.DefineNativeMethod(methods, "endsWith", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		suffix, err := wantString(args, 1, "suffix")
		if err != nil {
			return value.Nil, err
		}
		return value.Bool(strings.HasSuffix(self.Chars, suffix.Chars)), nil
	})

	v.DefineNativeMethod(methods, "trimStart", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		return value.FromObj(&v.InternString(strings.TrimLeft(self.Chars, " ")).Obj), nil
	})

	v.DefineNativeMethod(methods, "trimEnd", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		return value.FromObj(&v.InternString(strings.TrimRight(self.Chars, " ")).Obj), nil
	})

	v.DefineNativeMethod(methods, "trim", 0, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		return value.FromObj(&v.InternString(strings.Trim(self.Chars, " ")).Obj), nil
	})

	v.DefineNativeMethod(methods, "charCodeAt", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		idx, err := wantInt(args, 1, "index")
		if err != nil {
			return value.Nil, err
		}
		if idx < 0 || idx >= len(self.Chars) {
			return value.Nil, argError("String index out of bounds.")
		}
		return value.Number(float64(self.Chars[idx])), nil
	})

	v.DefineNativeMethod(methods, "compare", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		other, err := wantString(args, 1, "value")
		if err != nil {
			return value.Nil, err
		}
		return value.Number(float64(strings.Compare(self.Chars, other.Chars))), nil
	})

	v.DefineNativeMethod(methods, "split", 1, func(th any, args []value.Value) (value.Value, error) {
		t := thread(th)
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		sep, err := wantString(args, 1, "separator")
		if err != nil {
			return value.Nil, err
		}
		var parts []string
		if sep.Chars == "" {
			parts = make([]string, len(self.Chars))
			for i := range self.Chars {
				parts[i] = string(self.Chars[i])
			}
		} else {
			parts = strings.Split(self.Chars, sep.Chars)
		}
		elements := make([]value.Value, len(parts))
		for i, p := range parts {
			elements[i] = value.FromObj(&v.InternString(p).Obj)
		}
		arr := v.NewArray(t, elements)
		return value.FromObj(&arr.Obj), nil
	})

	v.DefineNativeMethod(methods, "toArray", 0, func(th any, args []value.Value) (value.Value, error) {
		t := thread(th)
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		elements := make([]value.Value, len(self.Chars))
		for i := 0; i < len(self.Chars); i++ {
			elements[i] = value.FromObj(&v.InternString(string(self.Chars[i])).Obj)
		}
		arr := v.NewArray(t, elements)
		return value.FromObj(&arr.Obj), nil
	})

	v.DefineNativeMethod(methods, "repeat", 1, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		count, err := wantInt(args, 1, "count")
		if err != nil {
			return value.Nil, err
		}
		if count < 0 {
			return value.Nil, argError("Expected count to be non-negative.")
		}
		return value.FromObj(&v.InternString(strings.Repeat(self.Chars, count)).Obj), nil
	})

	v.DefineNativeMethod(methods, "replace", 2, func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		old, err := wantString(args, 1, "search value")
		if err != nil {
			return value.Nil, err
		}
		replacement, err := wantString(args, 2, "replacement")
		if err != nil {
			return value.Nil, err
		}
		return value.FromObj(&v.InternString(strings.ReplaceAll(self.Chars, old.Chars, replacement.Chars)).Obj), nil
	})

	substr := func(th any, args []value.Value) (value.Value, error) {
		self, err := wantString(args, 0, "receiver")
		if err != nil {
			return value.Nil, err
		}
		start, err := wantInt(args, 1, "start")
		if err != nil {
			return value.Nil, err
		}
		length := len(self.Chars)
		end := length
		if len(args) > 2 {
			n, err := wantInt(args, 2, "length")
			if err != nil {
				return value.Nil, err
			}
			end = start + n
		}
		start = clampIndex(start, length)
		end = clampIndex(end, length)
		if end < start {
			end = start
		}
		return value.FromObj(&v.InternString(self.Chars[start:end]).Obj), nil
	}
	v.DefineNativeMethod(methods, "substr", 1, substr)
	v.DefineNativeMethod(methods, "substr", 2, substr)
}
