package corelib

import (
	"math"
	"strconv"
	"strings"

	"github.com/saymow/simpl-sub000/pkg/value"
	"github.com/saymow/simpl-sub000/pkg/vm"
)

// installMetaNumberMethods defines Number's static methods: isNumber,
// toNumber (a number passes through, a string is parsed after trimming
// surrounding whitespace and yields nil when it is not numeric, any other
// kind, bool included, is an error), toInteger (truncates toward zero),
// matching core.c's MetaNumber roster.
func installMetaNumberMethods(v *vm.VM, class *value.ObjClass) {
	v.DefineNativeMethod(class.Methods, "isNumber", 1, func(th any, args []value.Value) (value.Value, error) {
		return value.Bool(args[1].IsNumber()), nil
	})

	v.DefineNativeMethod(class.Methods, "toNumber", 1, func(th any, args []value.Value) (value.Value, error) {
		switch {
		case args[1].IsNumber():
			return args[1], nil
		case args[1].IsString():
			n, err := strconv.ParseFloat(strings.TrimSpace(args[1].AsString().Chars), 64)
			if err != nil {
				return value.Nil, nil
			}
			return value.Number(n), nil
		default:
			return value.Nil, argError("Expected value to be convertible to a number.")
		}
	})

	v.DefineNativeMethod(class.Methods, "toInteger", 1, func(th any, args []value.Value) (value.Value, error) {
		n, err := wantNumber(args, 1, "value")
		if err != nil {
			return value.Nil, err
		}
		return value.Number(math.Trunc(n)), nil
	})
}

// installMetaMathMethods defines Math's static methods: abs, min, max,
// clamp(lower, value, upper) — note the argument order, matching
// __nativeStaticMathClamp's exact consumption order in core.c.
func installMetaMathMethods(v *vm.VM, class *value.ObjClass) {
	v.DefineNativeMethod(class.Methods, "abs", 1, func(th any, args []value.Value) (value.Value, error) {
		n, err := wantNumber(args, 1, "value")
		if err != nil {
			return value.Nil, err
		}
		return value.Number(math.Abs(n)), nil
	})

	v.DefineNativeMethod(class.Methods, "min", 2, func(th any, args []value.Value) (value.Value, error) {
		a, err := wantNumber(args, 1, "first value")
		if err != nil {
			return value.Nil, err
		}
		b, err := wantNumber(args, 2, "second value")
		if err != nil {
			return value.Nil, err
		}
		return value.Number(math.Min(a, b)), nil
	})

	v.DefineNativeMethod(class.Methods, "max", 2, func(th any, args []value.Value) (value.Value, error) {
		a, err := wantNumber(args, 1, "first value")
		if err != nil {
			return value.Nil, err
		}
		b, err := wantNumber(args, 2, "second value")
		if err != nil {
			return value.Nil, err
		}
		return value.Number(math.Max(a, b)), nil
	})

	v.DefineNativeMethod(class.Methods, "clamp", 3, func(th any, args []value.Value) (value.Value, error) {
		lower, err := wantNumber(args, 1, "lower bound")
		if err != nil {
			return value.Nil, err
		}
		n, err := wantNumber(args, 2, "value")
		if err != nil {
			return value.Nil, err
		}
		upper, err := wantNumber(args, 3, "upper bound")
		if err != nil {
			return value.Nil, err
		}
		if n < lower {
			return value.Number(lower), nil
		}
		if n > upper {
			return value.Number(upper), nil
		}
		return value.Number(n), nil
	})
}
