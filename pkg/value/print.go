package value

import (
	"fmt"
	"strconv"
	"strings"
)

// FNV1a hashes a string's bytes with the 32-bit FNV-1a algorithm, the
// same hash the reference object.c uses for ObjString.
func FNV1a(s string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return hash
}

// NumberToString renders a float64 the way the language's Number.toString
// does: integral values other than -0 print as plain integers with no
// fractional part; everything else uses the shortest 'g' form that
// round-trips.
func NumberToString(n float64) string {
	if n == float64(int64(n)) && !isNegZero(n) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func isNegZero(n float64) bool {
	return n == 0 && strconv.FormatFloat(n, 'g', -1, 64) == "-0"
}

// Stringify renders any Value the way `System.log` and string
// interpolation do. Object kinds other than String/Array/Class/Instance
// render as "<Kind name>", matching the reference's toString() fallback.
func Stringify(v Value) string {
	switch v.Kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindNumber:
		return NumberToString(v.AsNumber())
	case KindObj:
		return stringifyObj(v.obj)
	}
	return "?"
}

func stringifyObj(o *Obj) string {
	switch o.Kind {
	case ObjStringKind:
		return o.AsString().Chars
	case ObjFunctionKind:
		fn := o.AsFunction()
		if fn.Name == nil {
			return "<lambda function>"
		}
		return fmt.Sprintf("<function %s>", fn.Name.Chars)
	case ObjClosureKind:
		return stringifyObj(&o.AsClosure().Function.Obj)
	case ObjNativeFnKind:
		return fmt.Sprintf("<native function %s>", o.AsNativeFn().Name.Chars)
	case ObjOverloadedMethodKind:
		return fmt.Sprintf("<method %s>", o.AsOverloadedMethod().Name.Chars)
	case ObjBoundOverloadedMethodKind:
		return fmt.Sprintf("<bound method %s>", o.AsBoundOverloadedMethod().Method.Name.Chars)
	case ObjClassKind:
		return fmt.Sprintf("<class %s>", o.AsClass().Name.Chars)
	case ObjInstanceKind:
		return fmt.Sprintf("<instance %s>", o.ClassName())
	case ObjArrayKind:
		arr := o.AsArray()
		parts := make([]string, len(arr.Elements))
		for i, e := range arr.Elements {
			if e.IsString() {
				parts[i] = strconv.Quote(e.AsString().Chars)
			} else {
				parts[i] = Stringify(e)
			}
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ObjModuleKind:
		return fmt.Sprintf("<module %s>", o.AsModule().Path)
	case ObjUpvalueKind:
		return "<upvalue>"
	}
	return "<object>"
}
