package value

import "unsafe"

// ObjKind tags the concrete shape of a heap Object.
type ObjKind byte

const (
	ObjStringKind ObjKind = iota
	ObjFunctionKind
	ObjClosureKind
	ObjUpvalueKind
	ObjNativeFnKind
	ObjOverloadedMethodKind
	ObjBoundOverloadedMethodKind
	ObjClassKind
	ObjInstanceKind
	ObjArrayKind
	ObjModuleKind
)

// Obj is the common header every heap object carries: a kind tag, the
// collector's mark bit, a pointer to the object's class, and the
// allocation-list link the garbage collector sweeps over. Every concrete
// object type below embeds Obj as its first field, so a *Obj can be cast
// back to its concrete type with unsafe.Pointer once Kind has been
// checked — the same upcast trick the reference implementation performs
// in C by embedding `struct Obj obj;` as the first struct member.
type Obj struct {
	Kind   ObjKind
	Marked bool
	Class  *ObjClass
	Next   *Obj
}

// ClassName returns the class name of the object, or a placeholder for
// objects installed before their class exists (only possible during VM
// bootstrap).
func (o *Obj) ClassName() string {
	if o == nil || o.Class == nil {
		return "Object"
	}
	return o.Class.Name.Chars
}

func (o *Obj) AsString() *ObjString {
	return (*ObjString)(unsafe.Pointer(o))
}
func (o *Obj) AsFunction() *ObjFunction {
	return (*ObjFunction)(unsafe.Pointer(o))
}
func (o *Obj) AsClosure() *ObjClosure {
	return (*ObjClosure)(unsafe.Pointer(o))
}
func (o *Obj) AsUpvalue() *ObjUpvalue {
	return (*ObjUpvalue)(unsafe.Pointer(o))
}
func (o *Obj) AsNativeFn() *ObjNativeFn {
	return (*ObjNativeFn)(unsafe.Pointer(o))
}
func (o *Obj) AsOverloadedMethod() *ObjOverloadedMethod {
	return (*ObjOverloadedMethod)(unsafe.Pointer(o))
}
func (o *Obj) AsBoundOverloadedMethod() *ObjBoundOverloadedMethod {
	return (*ObjBoundOverloadedMethod)(unsafe.Pointer(o))
}
func (o *Obj) AsClass() *ObjClass {
	return (*ObjClass)(unsafe.Pointer(o))
}
func (o *Obj) AsInstance() *ObjInstance {
	return (*ObjInstance)(unsafe.Pointer(o))
}
func (o *Obj) AsArray() *ObjArray {
	return (*ObjArray)(unsafe.Pointer(o))
}
func (o *Obj) AsModule() *ObjModule {
	return (*ObjModule)(unsafe.Pointer(o))
}

// Convenience Value-level predicates mirroring the reference IS_* macros.
func (v Value) IsString() bool                 { return v.IsObjKind(ObjStringKind) }
func (v Value) IsFunction() bool                { return v.IsObjKind(ObjFunctionKind) }
func (v Value) IsClosure() bool                 { return v.IsObjKind(ObjClosureKind) }
func (v Value) IsNativeFn() bool                { return v.IsObjKind(ObjNativeFnKind) }
func (v Value) IsOverloadedMethod() bool        { return v.IsObjKind(ObjOverloadedMethodKind) }
func (v Value) IsBoundOverloadedMethod() bool   { return v.IsObjKind(ObjBoundOverloadedMethodKind) }
func (v Value) IsClass() bool                   { return v.IsObjKind(ObjClassKind) }
func (v Value) IsInstance() bool                { return v.IsObjKind(ObjInstanceKind) }
func (v Value) IsArray() bool                   { return v.IsObjKind(ObjArrayKind) }
func (v Value) IsModule() bool                  { return v.IsObjKind(ObjModuleKind) }

func (v Value) AsString() *ObjString               { return v.obj.AsString() }
func (v Value) AsFunction() *ObjFunction            { return v.obj.AsFunction() }
func (v Value) AsClosure() *ObjClosure              { return v.obj.AsClosure() }
func (v Value) AsNativeFn() *ObjNativeFn            { return v.obj.AsNativeFn() }
func (v Value) AsOverloadedMethod() *ObjOverloadedMethod {
	return v.obj.AsOverloadedMethod()
}
func (v Value) AsBoundOverloadedMethod() *ObjBoundOverloadedMethod {
	return v.obj.AsBoundOverloadedMethod()
}
func (v Value) AsClass() *ObjClass       { return v.obj.AsClass() }
func (v Value) AsInstance() *ObjInstance { return v.obj.AsInstance() }
func (v Value) AsArray() *ObjArray       { return v.obj.AsArray() }
func (v Value) AsModule() *ObjModule     { return v.obj.AsModule() }

// ObjString is an interned, immutable byte string. Hash is FNV-1a over the
// bytes, computed once at construction time.
type ObjString struct {
	Obj
	Chars string
	Hash  uint32
}

// MaxArity is one past the highest parameter count an OverloadedMethod can
// hold a slot for (arity slots 0..15).
const MaxArity = 16

// ObjFunction is a compiled unit: its bytecode chunk, declared arity,
// number of upvalues it closes over, and optional name (anonymous
// functions such as lambdas have a nil Name and print as "lambda
// function" in stack traces).
type ObjFunction struct {
	Obj
	Arity        int
	UpvalueCount int
	Chunk        *Chunk
	Name         *ObjString
	IsMethod     bool
	IsModule     bool
}

// ObjUpvalue is the indirection object closures use to share a mutable
// binding with their lexical environment. While open, Location points into
// a live stack slot; Close copies the value into the upvalue itself and
// rebinds Location to that owned storage.
type ObjUpvalue struct {
	Obj
	Location *Value
	Closed   Value
	Next     *ObjUpvalue // open-upvalue list, kept sorted by descending Location address
}

// Close converts an open upvalue into a closed one.
func (u *ObjUpvalue) Close() {
	u.Closed = *u.Location
	u.Location = &u.Closed
}

// NativeFn is the native function ABI: given the current thread and its
// receiver-inclusive argument window, return a result or a recoverable
// error. The thread parameter is `any` here to avoid an import cycle with
// the vm package; vm.Thread is the only concrete type ever passed.
type NativeFn func(th any, args []Value) (Value, error)

// ObjNativeFn wraps a Go-implemented primitive with the name and arity it
// presents to the language.
type ObjNativeFn struct {
	Obj
	Name  *ObjString
	Arity int
	Fn    NativeFn
}

// MethodKind distinguishes user-defined methods (ObjClosure) from natives
// (ObjNativeFn) stored in an OverloadedMethod's arity slots.
type MethodKind byte

const (
	MethodUser MethodKind = iota
	MethodNative
)

// ObjOverloadedMethod is the single callable a method name resolves to
// within a class: up to 16 implementations selected by argument count.
// Slots hold either *ObjClosure or *ObjNativeFn values (wrapped as
// Value), or Nil if that arity is unpopulated.
type ObjOverloadedMethod struct {
	Obj
	Name  *ObjString
	Kind  MethodKind
	Slots [MaxArity]Value
}

// ObjBoundOverloadedMethod binds a receiver to an OverloadedMethod, the
// object produced by `instance.method` property access before it is
// called.
type ObjBoundOverloadedMethod struct {
	Obj
	Base   Value
	Method *ObjOverloadedMethod
}

// ObjClass is a class: its interned name and its own methods table. Its
// Obj.Class field is the metaclass; for the root class `Class`, the
// metaclass is itself (see vm/corelib bootstrap).
type ObjClass struct {
	Obj
	Name    *ObjString
	Super   *ObjClass
	Methods *Table
}

// ObjInstance is a user-level object: a properties table plus the class
// pointer inherited from Obj.
type ObjInstance struct {
	Obj
	Properties *Table
}

// ObjArray is a growable vector of Values.
type ObjArray struct {
	Obj
	Elements []Value
}

// ObjClosure pairs a compiled Function with the upvalues it captured at
// creation time.
type ObjClosure struct {
	Obj
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

// ObjModule is a top-level compiled body plus its cached exports. A module
// is evaluated at most once; Evaluated latches true and never reverts.
type ObjModule struct {
	Obj
	Function  *ObjFunction
	Evaluated bool
	Exports   *Table
	Path      string
}
