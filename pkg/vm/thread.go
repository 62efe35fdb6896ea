package vm

import "github.com/saymow/simpl-sub000/pkg/value"

// Bounds from §8's testable properties, unified per DESIGN.md's Open
// Question decision: one constant covers the compiler's block-stack
// sizing and all three of the thread's runtime nesting stacks.
const (
	framesMax     = 64
	stackMax      = framesMax * 256
	blockStackMax = 8
)

// frameKind distinguishes the two things a CallFrame can be running:
// an ordinary closure, or a module body being evaluated for the first
// (and only) time.
type frameKind int

const (
	frameClosure frameKind = iota
	frameModule
)

// CallFrame is one activation record: where execution is in its chunk,
// where its locals start in the thread's value stack, and which closure
// or module owns the code being run.
type CallFrame struct {
	kind    frameKind
	closure *value.ObjClosure
	module  *value.ObjModule
	ip      int
	base    int // index into thread.stack of this frame's slot 0
}

func (f *CallFrame) function() *value.ObjFunction {
	if f.kind == frameModule {
		return f.module.Function
	}
	return f.closure.Function
}

func (f *CallFrame) chunk() *value.Chunk { return f.function().Chunk }

// name renders the frame the way stack traces do (§7): named functions
// and methods by name, anonymous ones as "lambda function", module
// bodies as "file <path>", and the entry frame as "script".
func (f *CallFrame) name() string {
	fn := f.function()
	if f.kind == frameModule {
		return "file " + f.module.Path
	}
	if fn.Name == nil {
		return "lambda function"
	}
	if fn.Name.Chars == "script" {
		return "script"
	}
	return fn.Name.Chars
}

// Loop is the runtime record a LOOP_GUARD instruction pushes, read back
// by LOOP_BREAK/LOOP_CONTINUE/LOOP_GUARD_END (§4.4).
type Loop struct {
	frameIndex int // index into thread.frames of the frame the loop lives in
	stackTop   int // stack snapshot to restore to on break/continue
	startIP    int
	outIP      int
}

// TryCatch is the runtime record OP_TRY_CATCH pushes, consulted by
// throw-unwinding (§4.4 Exceptions).
type TryCatch struct {
	frameIndex   int
	stackTop     int
	startIP      int
	catchIP      int
	outIP        int
	hasCatchParam bool
}

// Switch is the runtime record OP_SWITCH pushes so SWITCH_BREAK can
// unwind to the statement's end, and SWITCH_END can decide whether to
// loop back into the default block (only when no case matched, per
// DESIGN.md's switch-semantics decision).
type Switch struct {
	frameIndex int
	stackTop   int
	startIP    int
	outIP      int
	matched    bool
	ranDefault bool
}

// Thread is one OS-thread-like execution context (§5): its own frame
// stack, value stack and open-upvalue list, all private; allocation and
// the rest of the object heap are shared with the owning VM under
// vm.heapMu.
type Thread struct {
	vm *VM
	id uint32

	frames     [framesMax]CallFrame
	frameCount int

	stack    [stackMax]value.Value
	stackTop int

	openUpvalues *value.ObjUpvalue // sorted by descending Location address

	loopStack     [blockStackMax]Loop
	loopCount     int
	tryCatchStack [blockStackMax]TryCatch
	tryCatchCount int
	switchStack   [blockStackMax]Switch
	switchCount   int

	debugger *Debugger // nil unless attached via AttachDebugger
}

// AttachDebugger wires d into t's dispatch loop; run checks d.ShouldPause
// before every instruction once attached.
func (t *Thread) AttachDebugger(d *Debugger) {
	d.thread = t
	t.debugger = d
}

func newThread(vm *VM, id uint32) *Thread {
	return &Thread{vm: vm, id: id}
}

func (t *Thread) push(v value.Value) {
	t.stack[t.stackTop] = v
	t.stackTop++
}

func (t *Thread) pop() value.Value {
	t.stackTop--
	return t.stack[t.stackTop]
}

func (t *Thread) peek(distance int) value.Value {
	return t.stack[t.stackTop-1-distance]
}

func (t *Thread) currentFrame() *CallFrame { return &t.frames[t.frameCount-1] }

// stackTrace captures a snapshot of the frame stack, innermost first, for
// an error thrown or raised at the current instruction.
func (t *Thread) stackTrace() []StackFrame {
	frames := make([]StackFrame, 0, t.frameCount)
	for i := t.frameCount - 1; i >= 0; i-- {
		f := &t.frames[i]
		frames = append(frames, StackFrame{
			Name:       f.name(),
			SourceLine: f.chunk().Lines[f.ip],
			IP:         f.ip,
		})
	}
	return frames
}
