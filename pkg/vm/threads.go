package vm

import (
	"fmt"
	"sync"

	"github.com/saymow/simpl-sub000/pkg/value"
)

// threadHandle is the VM-wide record of a spawned thread: the registry
// entry markRoots walks while the thread is live, and the join point once
// it finishes. Guarded by vm.threadsMu.
type threadHandle struct {
	thread     *Thread
	done       chan struct{}
	result     value.Value
	err        error
	terminated bool
}

// namedLock is a user-visible mutual-exclusion lock created by
// Sync.Lock / initLock (§5, §9.3).
type namedLock struct {
	mu sync.Mutex
}

// namedSemaphore is a counting semaphore created by Sync.Semaphore
// / initSemaphore, matching POSIX sem_t's unbounded-post semantics (§5).
type namedSemaphore struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

func newNamedSemaphore(initial int) *namedSemaphore {
	s := &namedSemaphore{count: initial}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *namedSemaphore) post() {
	s.mu.Lock()
	s.count++
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *namedSemaphore) wait(vm *VM, t *Thread) {
	vm.enterBlocking(t)
	s.mu.Lock()
	for s.count == 0 {
		s.cond.Wait()
	}
	s.count--
	s.mu.Unlock()
	vm.exitBlocking(t)
}

// newRootThread creates and registers the one thread that runs the script
// or REPL entry itself, so its stack is a GC root exactly like a spawned
// thread's — it just never gets its own goroutine or join point.
func (vm *VM) newRootThread() *Thread {
	vm.threadsMu.Lock()
	id := vm.nextTID
	vm.nextTID++
	th := newThread(vm, id)
	vm.threads[id] = &threadHandle{thread: th, done: make(chan struct{})}
	vm.threadsMu.Unlock()
	return th
}

// spawnThread starts fn (a Closure or NativeFn value) running on a brand
// new Thread in its own goroutine, registers it so the collector can trace
// its stack while it runs, and returns the integer id System.Thread hands
// back to the caller. hasArg reports whether arg should be passed (the
// language form is System.Thread(fn) or System.Thread(fn, arg)).
func (vm *VM) spawnThread(caller *Thread, fn value.Value, arg value.Value, hasArg bool) (uint32, error) {
	vm.threadsMu.Lock()
	id := vm.nextTID
	vm.nextTID++
	th := newThread(vm, id)
	handle := &threadHandle{thread: th, done: make(chan struct{})}
	vm.threads[id] = handle
	vm.threadsMu.Unlock()

	go func() {
		result, err := vm.runThread(th, fn, arg, hasArg)

		vm.threadsMu.Lock()
		handle.result = result
		handle.err = err
		handle.terminated = true
		vm.threadsMu.Unlock()

		close(handle.done)
	}()

	return id, nil
}

// joinThread blocks caller until the thread identified by id finishes,
// entering the GC safe-zone for the wait per §5's suspension-point
// contract. Returns the joined thread's top-of-stack value, or the
// uncaught exception it terminated with.
func (vm *VM) joinThread(caller *Thread, id uint32) (value.Value, error) {
	vm.threadsMu.Lock()
	handle, ok := vm.threads[id]
	vm.threadsMu.Unlock()
	if !ok {
		return value.Nil, fmt.Errorf("no thread with id %d", id)
	}

	vm.enterBlocking(caller)
	<-handle.done
	vm.exitBlocking(caller)

	if handle.err != nil {
		return value.Nil, handle.err
	}
	return handle.result, nil
}

// initLock creates a named lock; re-using an existing name is an error
// (§5: "duplicate init is an error").
func (vm *VM) initLock(name string) error {
	vm.locksMu.Lock()
	defer vm.locksMu.Unlock()
	if _, exists := vm.locks[name]; exists {
		return fmt.Errorf("lock %q already initialized", name)
	}
	vm.locks[name] = &namedLock{}
	return nil
}

func (vm *VM) lookupLock(name string) (*namedLock, error) {
	vm.locksMu.Lock()
	l, ok := vm.locks[name]
	vm.locksMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown lock %q", name)
	}
	return l, nil
}

func (vm *VM) lockSection(caller *Thread, name string) error {
	l, err := vm.lookupLock(name)
	if err != nil {
		return err
	}
	vm.enterBlocking(caller)
	l.mu.Lock()
	vm.exitBlocking(caller)
	return nil
}

func (vm *VM) unlockSection(name string) error {
	l, err := vm.lookupLock(name)
	if err != nil {
		return err
	}
	l.mu.Unlock()
	return nil
}

// initSemaphore creates a named counting semaphore with the given initial
// value; re-using an existing name is an error, mirroring initLock.
func (vm *VM) initSemaphore(name string, initial int) error {
	vm.locksMu.Lock()
	defer vm.locksMu.Unlock()
	if _, exists := vm.semaphores[name]; exists {
		return fmt.Errorf("semaphore %q already initialized", name)
	}
	vm.semaphores[name] = newNamedSemaphore(initial)
	return nil
}

func (vm *VM) lookupSemaphore(name string) (*namedSemaphore, error) {
	vm.locksMu.Lock()
	s, ok := vm.semaphores[name]
	vm.locksMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown semaphore %q", name)
	}
	return s, nil
}

func (vm *VM) postSemaphore(name string) error {
	s, err := vm.lookupSemaphore(name)
	if err != nil {
		return err
	}
	s.post()
	return nil
}

func (vm *VM) waitSemaphore(caller *Thread, name string) error {
	s, err := vm.lookupSemaphore(name)
	if err != nil {
		return err
	}
	s.wait(vm, caller)
	return nil
}
