package vm

import (
	"sync"
	"sync/atomic"

	"github.com/saymow/simpl-sub000/pkg/value"
)

// gcState is the cooperative stop-the-world handshake from §5/§9: the
// collector sets requested, every thread checks it at each instruction
// boundary (a "safe-point", per the glossary) and at each allocation,
// parks on cond, and resumes once the collector broadcasts completion.
type gcState struct {
	mu          sync.Mutex
	cond        *sync.Cond
	requested   atomic.Bool
	parkedCount int
}

func (vm *VM) initGC() {
	vm.gc.cond = sync.NewCond(&vm.gc.mu)
}

// safepoint is called at the top of the dispatch loop and before any
// potentially long block (thread join, lock/semaphore wait, System.scan).
// The common case is a single atomic load.
func (vm *VM) safepoint(t *Thread) {
	if !vm.gc.requested.Load() {
		return
	}
	vm.gc.mu.Lock()
	vm.gc.parkedCount++
	vm.gc.cond.Broadcast()
	for vm.gc.requested.Load() {
		vm.gc.cond.Wait()
	}
	vm.gc.parkedCount--
	vm.gc.mu.Unlock()
}

// enterBlocking and exitBlocking bracket a thread's call into something
// that can block for a while outside the interpreter's own instruction
// loop (threadJoin, lockSection, waitSemaphore, System.scan) — the
// "explicit safe-zone entry" §5 requires so a collection is never stuck
// waiting for a thread that is parked on a channel or a native read
// instead of executing bytecode.
func (vm *VM) enterBlocking(t *Thread) {
	vm.gc.mu.Lock()
	vm.gc.parkedCount++
	vm.gc.cond.Broadcast()
	vm.gc.mu.Unlock()
}

func (vm *VM) exitBlocking(t *Thread) {
	vm.gc.mu.Lock()
	vm.gc.parkedCount--
	vm.gc.mu.Unlock()
	// A collection may have run to completion entirely while we were
	// blocked; safepoint is a no-op unless one is requested right now.
	vm.safepoint(t)
}

// registerLocked links o onto the head of the allocation list and charges
// its estimated weight against bytesAllocated, possibly arming the next
// collection's threshold. Caller must hold heapMu.
func (vm *VM) registerLocked(o *value.Obj) {
	o.Next = vm.objects
	vm.objects = o
	vm.bytesAllocated += objectWeight(o)
}

// objectWeight is a rough accounting of an object's footprint, used only
// to decide when to collect — not an exact byte count.
func objectWeight(o *value.Obj) int64 {
	const header = 32
	switch o.Kind {
	case value.ObjStringKind:
		return header + int64(len(o.AsString().Chars))
	case value.ObjArrayKind:
		return header + int64(len(o.AsArray().Elements))*24
	case value.ObjInstanceKind:
		return header + int64(o.AsInstance().Properties.Count())*40
	case value.ObjClassKind:
		return header + int64(o.AsClass().Methods.Count())*40
	case value.ObjClosureKind:
		return header + int64(len(o.AsClosure().Upvalues))*8
	case value.ObjFunctionKind:
		fn := o.AsFunction()
		return header + int64(len(fn.Chunk.Code)) + int64(len(fn.Chunk.Constants))*16
	default:
		return header
	}
}

// allocate registers o on the heap and, if the resulting bytesAllocated
// crosses gcThreshold, runs a collection (after releasing heapMu, so the
// collector can re-acquire it for the sweep). t is the calling thread,
// whose roots the collector must NOT mark concurrently with its own
// execution — collectGarbage's handshake parks every other thread first.
func (vm *VM) allocate(o *value.Obj, t *Thread) {
	vm.safepoint(t)

	vm.heapMu.Lock()
	vm.registerLocked(o)
	shouldCollect := vm.bytesAllocated >= vm.gcThreshold
	vm.heapMu.Unlock()

	if shouldCollect {
		vm.collectGarbage(t)
	}
}

// collectGarbage runs one stop-the-world mark-sweep cycle. t is the
// thread that triggered it (already "running" from the handshake's point
// of view — it does not park itself).
func (vm *VM) collectGarbage(t *Thread) {
	vm.threadsMu.Lock()
	total := 0
	for _, h := range vm.threads {
		if !h.terminated {
			total++
		}
	}
	vm.threadsMu.Unlock()

	vm.gc.mu.Lock()
	if vm.gc.requested.Load() {
		// A collection is already in flight (another thread raced us to
		// the threshold); just wait it out like an ordinary safe-point.
		for vm.gc.requested.Load() {
			vm.gc.cond.Wait()
		}
		vm.gc.mu.Unlock()
		return
	}
	vm.gc.requested.Store(true)
	for vm.gc.parkedCount < total-1 {
		vm.gc.cond.Wait()
	}
	vm.gc.mu.Unlock()

	vm.heapMu.Lock()
	marked := map[*value.Obj]bool{}
	vm.markRoots(marked)
	vm.blackenAll(marked)
	vm.sweep(marked)
	vm.gcThreshold = vm.bytesAllocated * 2
	if vm.gcThreshold < initialGCThreshold {
		vm.gcThreshold = initialGCThreshold
	}
	vm.heapMu.Unlock()

	vm.gc.mu.Lock()
	vm.gc.requested.Store(false)
	vm.gc.cond.Broadcast()
	vm.gc.mu.Unlock()
}

// markRoots grey-enqueues every root described in §4.5: for each live
// thread, its value stack, its frames' closures/modules, its open
// upvalues; globally, the installed built-in classes, the assembly-line
// window (only while one is active) and the white-list. The intern
// table is deliberately NOT walked here — interned strings are weak
// references (§4.6); a string only survives this cycle if something
// else in the graph reaches it, and sweep's RemoveWhiteUnreferenced
// prunes the table entries that didn't.
func (vm *VM) markRoots(grey map[*value.Obj]bool) {
	vm.threadsMu.Lock()
	handles := make([]*threadHandle, 0, len(vm.threads))
	for _, h := range vm.threads {
		if !h.terminated {
			handles = append(handles, h)
		}
	}
	vm.threadsMu.Unlock()

	for _, h := range handles {
		th := h.thread
		for i := 0; i < th.stackTop; i++ {
			markValue(grey, th.stack[i])
		}
		for i := 0; i < th.frameCount; i++ {
			f := &th.frames[i]
			if f.kind == frameClosure {
				markObj(grey, &f.closure.Obj)
			} else {
				markObj(grey, &f.module.Obj)
			}
		}
		for uv := th.openUpvalues; uv != nil; uv = uv.Next {
			markObj(grey, &uv.Obj)
		}
	}

	for _, c := range vm.classes {
		markObj(grey, &c.Obj)
	}
	if vm.assemblyLineActive {
		for o := vm.objects; o != nil && o != vm.assemblyLine; o = o.Next {
			markObj(grey, o)
		}
	}
	for _, o := range vm.whiteList {
		markObj(grey, o)
	}
	vm.Globals.Mark(func(o *value.Obj) { markObj(grey, o) }, func(v value.Value) { markValue(grey, v) })
}

func markValue(grey map[*value.Obj]bool, v value.Value) {
	if v.IsObj() {
		markObj(grey, v.AsObj())
	}
}

func markObj(grey map[*value.Obj]bool, o *value.Obj) {
	if o == nil || o.Marked {
		return
	}
	o.Marked = true
	grey[o] = true
}

// blackenAll traces every referent of every marked object until no new
// object is discovered, per kind as described in §4.5.
func (vm *VM) blackenAll(grey map[*value.Obj]bool) {
	for len(grey) > 0 {
		var o *value.Obj
		for k := range grey {
			o = k
			break
		}
		delete(grey, o)
		blacken(grey, o)
	}
}

// blacken marks every object o directly references, per kind, as
// described in §4.5.
func blacken(grey map[*value.Obj]bool, o *value.Obj) {
	if o.Class != nil {
		markObj(grey, &o.Class.Obj)
	}
	switch o.Kind {
	case value.ObjStringKind:
		// no outgoing references
	case value.ObjFunctionKind:
		fn := o.AsFunction()
		if fn.Name != nil {
			markObj(grey, &fn.Name.Obj)
		}
		for _, c := range fn.Chunk.Constants {
			markValue(grey, c)
		}
	case value.ObjClosureKind:
		cl := o.AsClosure()
		markObj(grey, &cl.Function.Obj)
		for _, uv := range cl.Upvalues {
			markObj(grey, &uv.Obj)
		}
	case value.ObjUpvalueKind:
		markValue(grey, o.AsUpvalue().Closed)
	case value.ObjNativeFnKind:
		markObj(grey, &o.AsNativeFn().Name.Obj)
	case value.ObjOverloadedMethodKind:
		m := o.AsOverloadedMethod()
		markObj(grey, &m.Name.Obj)
		for _, s := range m.Slots {
			markValue(grey, s)
		}
	case value.ObjBoundOverloadedMethodKind:
		b := o.AsBoundOverloadedMethod()
		markValue(grey, b.Base)
		markObj(grey, &b.Method.Obj)
	case value.ObjClassKind:
		cls := o.AsClass()
		markObj(grey, &cls.Name.Obj)
		if cls.Super != nil {
			markObj(grey, &cls.Super.Obj)
		}
		cls.Methods.Mark(func(x *value.Obj) { markObj(grey, x) }, func(v value.Value) { markValue(grey, v) })
	case value.ObjInstanceKind:
		o.AsInstance().Properties.Mark(func(x *value.Obj) { markObj(grey, x) }, func(v value.Value) { markValue(grey, v) })
	case value.ObjArrayKind:
		for _, e := range o.AsArray().Elements {
			markValue(grey, e)
		}
	case value.ObjModuleKind:
		mod := o.AsModule()
		markObj(grey, &mod.Function.Obj)
		mod.Exports.Mark(func(x *value.Obj) { markObj(grey, x) }, func(v value.Value) { markValue(grey, v) })
	}
}

// sweep traverses the allocation list, unlinking and dropping every
// object whose mark bit is clear, clearing the bit on survivors. Go's own
// GC reclaims the memory once nothing references a dropped node; this
// sweep only severs the interpreter-level reachability that keeps that
// object "alive" to the language. Finally, the intern table drops any
// string that did not survive, so dead strings stop accumulating there
// (§4.6, property 4).
func (vm *VM) sweep(_ map[*value.Obj]bool) {
	// Prune the intern table while mark bits still reflect this cycle's
	// reachability — the list sweep below clears them on survivors.
	vm.strings.RemoveWhiteUnreferenced()

	var prev *value.Obj
	cur := vm.objects
	for cur != nil {
		if cur.Marked {
			cur.Marked = false
			prev = cur
			cur = cur.Next
			continue
		}
		next := cur.Next
		if prev == nil {
			vm.objects = next
		} else {
			prev.Next = next
		}
		cur = next
	}
}

// pushWhiteList pins o against collection until popWhiteList releases it
// — used by allocation code that builds a small object graph (e.g. an
// Instance plus its freshly allocated Properties table) across more than
// one allocate() call, where an intervening collection could otherwise
// free the not-yet-linked-in object (§4.5's "white-list").
func (vm *VM) pushWhiteList(o *value.Obj) {
	vm.heapMu.Lock()
	vm.whiteList = append(vm.whiteList, o)
	vm.heapMu.Unlock()
}

func (vm *VM) popWhiteList() {
	vm.heapMu.Lock()
	vm.whiteList = vm.whiteList[:len(vm.whiteList)-1]
	vm.heapMu.Unlock()
}

// beginAssemblyLine remembers the current head of the allocation list;
// every object allocated after this point (and therefore prepended
// ahead of that saved head) is treated as a root by markRoots until
// endAssemblyLine — used when constructing a longer object chain where
// pushWhiteList's single-slot stack would be awkward (§4.5).
func (vm *VM) beginAssemblyLine() {
	vm.heapMu.Lock()
	vm.assemblyLine = vm.objects
	vm.assemblyLineActive = true
	vm.heapMu.Unlock()
}

func (vm *VM) endAssemblyLine() {
	vm.heapMu.Lock()
	vm.assemblyLine = nil
	vm.assemblyLineActive = false
	vm.heapMu.Unlock()
}
