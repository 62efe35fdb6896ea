// Package vm implements the bytecode interpreter: a stack machine that
// executes the Chunks the compiler package produces.
//
// Execution pipeline:
//
//	*value.ObjFunction (from pkg/compiler) -> wrapped in a Closure
//	-> pushed as the entry frame of a Thread -> run() dispatches
//	bytecode.Op one instruction at a time until the entry frame returns.
//
// A VM owns everything threads share: the object heap (a singly linked
// list threaded through Obj.Next, swept by the collector in gc.go), the
// string-intern table, the global namespace, the installed built-in
// classes, and the named locks/semaphores/threads registries (§5). Every
// spawned System.Thread runs its own *Thread (private stack, frames,
// open-upvalue list) against this shared state, serialized by heapMu the
// way the reference's memoryAllocationMutex serializes allocation.
package vm

import (
	"sync"

	"github.com/saymow/simpl-sub000/pkg/value"
)

// VM is the shared interpreter state. The zero value is not usable; build
// one with New.
type VM struct {
	heapMu sync.Mutex

	objects        *value.Obj // head of the GC's allocation list
	bytesAllocated int64
	gcThreshold    int64
	// assemblyLine is the allocation-list head saved by beginAssemblyLine;
	// assemblyLineActive distinguishes "no assembly line" from "assembly
	// line started while vm.objects was still nil", which assemblyLine
	// alone can't (both are the nil pointer).
	assemblyLine       *value.Obj
	assemblyLineActive bool
	whiteList          []*value.Obj

	strings *value.Table // interned strings, keyed by themselves (FindString does the content lookup)

	Globals *value.Table // the single flat global namespace every module/script frame shares

	classes map[string]*value.ObjClass // built-in classes, installed by pkg/corelib

	threadsMu sync.Mutex
	threads   map[uint32]*threadHandle
	nextTID   uint32

	locksMu     sync.Mutex
	locks       map[string]*namedLock
	semaphores  map[string]*namedSemaphore

	gc gcState

	// Stdout is where PRINT and System.log write; defaults to os.Stdout,
	// overridable by tests and the REPL.
	Stdout Writer

	// Stdin is where System.scan reads a line from; defaults to os.Stdin,
	// overridable by tests.
	Stdin Reader

	// Debugger, if non-nil, is attached to the root thread Interpret
	// creates (ambient dev tooling, §4.4; not attached to threads spawned
	// by System.Thread). Set before calling Interpret.
	Debugger *Debugger
}

// Writer is the minimal sink PRINT and System.log write through, so tests
// can capture output without touching os.Stdout.
type Writer interface {
	WriteString(s string) (int, error)
}

// Reader is the minimal source System.scan reads a line from, so tests
// can feed input without touching os.Stdin.
type Reader interface {
	Read(p []byte) (int, error)
}

const initialGCThreshold = 1 << 20 // 1 MiB of estimated object weight before the first collection

// New builds a VM with an empty heap and global namespace. Callers that
// want the standard library (Number, String, Array, Class, ...) should
// follow with the installer in pkg/corelib.
func New(stdout Writer) *VM {
	vm := &VM{
		strings:    value.NewTable(),
		Globals:    value.NewTable(),
		classes:    map[string]*value.ObjClass{},
		threads:    map[uint32]*threadHandle{},
		locks:      map[string]*namedLock{},
		semaphores: map[string]*namedSemaphore{},
		Stdout:     stdout,
	}
	vm.gcThreshold = initialGCThreshold
	vm.initGC()
	return vm
}

// Class looks up one of the built-in classes corelib installed, by name
// ("Number", "String", "Array", "Error", ...). Returns nil if absent.
func (vm *VM) Class(name string) *value.ObjClass { return vm.classes[name] }

// RegisterClass installs or replaces a built-in class by name; used by
// pkg/corelib during bootstrap.
func (vm *VM) RegisterClass(name string, c *value.ObjClass) { vm.classes[name] = c }

// InternString returns the canonical *ObjString for s, allocating and
// registering a new one the first time s is seen. Shared by runtime
// string construction (concatenation, interpolation) and by adopting a
// freshly compiled chunk's string constants into the VM-wide table so
// property 1 (two equal-content live strings share one pointer) holds
// even for constants baked in at compile time.
func (vm *VM) InternString(s string) *value.ObjString {
	vm.heapMu.Lock()
	defer vm.heapMu.Unlock()
	return vm.internStringLocked(s)
}

func (vm *VM) internStringLocked(s string) *value.ObjString {
	hash := value.FNV1a(s)
	if existing := vm.strings.FindString(s, hash); existing != nil {
		return existing
	}
	str := &value.ObjString{Chars: s, Hash: hash}
	str.Obj.Kind = value.ObjStringKind
	str.Obj.Class = vm.classes["String"]
	vm.registerLocked(&str.Obj)
	// The intern table only ever needs str as a set member; the value
	// just has to be non-nil so Table doesn't treat the slot as a
	// tombstone (see table.go's findEntry).
	vm.strings.Set(str, value.Bool(true))
	return str
}

// adoptFunction walks fn's constant pool, re-interning every string
// constant through the VM's shared table (replacing the compiler's own
// private copy) and recursing into nested function constants (closures
// created inside fn), then registers fn itself onto the heap so the
// collector's blacken step can trace its constants as roots. Called once
// per top-level compiled function (the script, and each module as it is
// first imported).
func (vm *VM) adoptFunction(fn *value.ObjFunction) {
	vm.heapMu.Lock()
	defer vm.heapMu.Unlock()
	vm.adoptFunctionLocked(fn)
}

// adoptFunctionLocked must only be called once per *value.ObjFunction:
// once for the script's top-level function (by Interpret), and once per
// module the first time it is imported (by the OP_IMPORT handler, gated
// on that module's Evaluated flag). Nested function constants are only
// ever reachable from the one enclosing function that declared them, so
// the recursive walk below never revisits the same object twice.
func (vm *VM) adoptFunctionLocked(fn *value.ObjFunction) {
	if fn.Name != nil {
		fn.Name = vm.internStringLocked(fn.Name.Chars)
	}
	for i, c := range fn.Chunk.Constants {
		if !c.IsObj() {
			continue
		}
		o := c.AsObj()
		switch o.Kind {
		case value.ObjStringKind:
			canon := vm.internStringLocked(o.AsString().Chars)
			fn.Chunk.Constants[i] = value.FromObj(&canon.Obj)
		case value.ObjFunctionKind:
			vm.adoptFunctionLocked(o.AsFunction())
		case value.ObjModuleKind:
			// module constants are adopted lazily by OP_IMPORT, once
			// resolution decides whether this is the first import.
		}
	}
	vm.registerLocked(&fn.Obj)
}
