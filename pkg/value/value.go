// Package value defines the tagged value representation and the heap
// object model used throughout the interpreter: booleans, numbers, nil,
// and pointers to heap-allocated Objects (strings, functions, closures,
// classes, instances, arrays and modules).
//
// The representation follows a plain tag+union rather than NaN-boxing
// (both are sanctioned by the language design; tag+union keeps the Go
// code legible and avoids unsafe float-bit tricks for a VM that is not
// chasing microbenchmark throughput). Equality follows the rules in the
// language design: booleans compare by value, nil equals only nil,
// numbers compare by IEEE double ==, and object values compare by pointer
// identity (strings achieve value equality through interning).
package value

// Kind tags a Value with its runtime type.
type Kind byte

const (
	KindNil Kind = iota
	KindBool
	KindNumber
	KindObj
)

// Value is the tagged union every bytecode instruction operates on.
type Value struct {
	Kind Kind
	num  float64
	b    bool
	obj  *Obj
}

// Nil is the singleton nil value.
var Nil = Value{Kind: KindNil}

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, b: b} }

// Number constructs a numeric value.
func Number(n float64) Value { return Value{Kind: KindNumber, num: n} }

// FromObj wraps a heap object pointer as a Value. obj must not be nil;
// use value.Nil for the absence of a value.
func FromObj(obj *Obj) Value { return Value{Kind: KindObj, obj: obj} }

// IsNil, IsBool, IsNumber and IsObj test the value's tag.
func (v Value) IsNil() bool    { return v.Kind == KindNil }
func (v Value) IsBool() bool   { return v.Kind == KindBool }
func (v Value) IsNumber() bool { return v.Kind == KindNumber }
func (v Value) IsObj() bool    { return v.Kind == KindObj }

// AsBool, AsNumber and AsObj unwrap the value. Callers must have checked
// the corresponding Is* predicate first; these do not panic on mismatch
// so that speculative dispatch code can stay branch-light, matching the
// unchecked AS_* macros in the reference object model.
func (v Value) AsBool() bool     { return v.b }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsObj() *Obj      { return v.obj }

// IsObjKind reports whether the value is an object of the given kind.
func (v Value) IsObjKind(k ObjKind) bool {
	return v.Kind == KindObj && v.obj != nil && v.obj.Kind == k
}

// IsTruthy implements the language's truthiness rule: everything is truthy
// except nil and the boolean false.
func (v Value) IsTruthy() bool {
	switch v.Kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	default:
		return true
	}
}

// Equal implements the language's value-equality relation.
func Equal(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNil:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num
	case KindObj:
		// Strings are interned, so pointer identity already implies value
		// equality; every other object kind is compared by identity too.
		return a.obj == b.obj
	}
	return false
}

// TypeName returns the language-level type name used in error messages.
func TypeName(v Value) string {
	switch v.Kind {
	case KindNil:
		return "Nil"
	case KindBool:
		return "Bool"
	case KindNumber:
		return "Number"
	case KindObj:
		if v.obj == nil {
			return "Nil"
		}
		return v.obj.ClassName()
	}
	return "Unknown"
}
