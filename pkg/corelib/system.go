package corelib

import (
	"bufio"
	"time"

	"github.com/saymow/simpl-sub000/pkg/value"
	"github.com/saymow/simpl-sub000/pkg/vm"
)

// installMetaSystemMethods defines System's static methods: clock (wall
// time in seconds, matching core.c's __nativeStaticSystemClock), log
// (writes a line to vm.Stdout), scan (reads a line from vm.Stdin), and
// the thread lifecycle entry points Thread/threadJoin wrapping
// threads.go's spawnThread/joinThread.
func installMetaSystemMethods(v *vm.VM, class *value.ObjClass) {
	start := time.Now()

	v.DefineNativeMethod(class.Methods, "clock", 0, func(th any, args []value.Value) (value.Value, error) {
		return value.Number(time.Since(start).Seconds()), nil
	})

	v.DefineNativeMethod(class.Methods, "log", 1, func(th any, args []value.Value) (value.Value, error) {
		_, err := v.Stdout.WriteString(value.Stringify(args[1]) + "\n")
		return value.Nil, err
	})

	v.DefineNativeMethod(class.Methods, "scan", 0, func(th any, args []value.Value) (value.Value, error) {
		if v.Stdin == nil {
			return value.Nil, argError("System.scan has no input source configured.")
		}
		scanner := bufio.NewScanner(v.Stdin)
		if !scanner.Scan() {
			return value.Nil, nil
		}
		return value.FromObj(&v.InternString(scanner.Text()).Obj), nil
	})

	v.DefineNativeMethod(class.Methods, "Thread", 1, func(th any, args []value.Value) (value.Value, error) {
		fn, err := wantCallable(args, 1, "function")
		if err != nil {
			return value.Nil, err
		}
		id, err := v.SpawnThread(thread(th), fn, value.Nil, false)
		if err != nil {
			return value.Nil, err
		}
		return value.Number(float64(id)), nil
	})

	v.DefineNativeMethod(class.Methods, "Thread", 2, func(th any, args []value.Value) (value.Value, error) {
		fn, err := wantCallable(args, 1, "function")
		if err != nil {
			return value.Nil, err
		}
		id, err := v.SpawnThread(thread(th), fn, args[2], true)
		if err != nil {
			return value.Nil, err
		}
		return value.Number(float64(id)), nil
	})

	v.DefineNativeMethod(class.Methods, "threadJoin", 1, func(th any, args []value.Value) (value.Value, error) {
		id, err := wantInt(args, 1, "thread id")
		if err != nil {
			return value.Nil, err
		}
		return v.JoinThread(thread(th), uint32(id))
	})
}

// installSyncNamespace builds Sync.Lock(name)/Sync.Semaphore(name, value),
// object wrappers around threads.go's name-keyed mutex/semaphore table —
// grounded on vm.h's metaSystemSyncClass/syncClass fields. The language's
// property access only auto-invokes a method through an explicit call
// (dot() always emits OpInvoke for `.name(...)`, and a bare `.name` is a
// property read, never an auto-call — see pkg/compiler/expr.go's dot()),
// so `System.Sync.Lock(...)` as literally written in SPEC_FULL §9.3 isn't
// reachable: a property read of `System.Sync` would yield a bound method
// value, not its result. Sync is exposed as its own top-level class
// instead (`Sync.Lock(name)`), preserving the object-wrapper semantics.
func installSyncNamespace(v *vm.VM, classClass *value.ObjClass) {
	lockClass := v.DefineClass("Lock", nil)
	v.SetMetaclass(&lockClass.Obj, classClass)
	installLockMethods(v, lockClass)

	semaphoreClass := v.DefineClass("Semaphore", nil)
	v.SetMetaclass(&semaphoreClass.Obj, classClass)
	installSemaphoreMethods(v, semaphoreClass)

	metaSync := v.DefineClass("MetaSync", nil)
	v.SetMetaclass(&metaSync.Obj, classClass)

	v.DefineNativeMethod(metaSync.Methods, "Lock", 1, func(th any, args []value.Value) (value.Value, error) {
		name, err := wantString(args, 1, "lock name")
		if err != nil {
			return value.Nil, err
		}
		if err := v.InitLock(name.Chars); err != nil {
			return value.Nil, err
		}
		t := thread(th)
		instance := v.NewInstance(t, lockClass)
		instance.Properties.Set(v.InternString("name"), args[1])
		return value.FromObj(&instance.Obj), nil
	})

	v.DefineNativeMethod(metaSync.Methods, "Semaphore", 2, func(th any, args []value.Value) (value.Value, error) {
		name, err := wantString(args, 1, "semaphore name")
		if err != nil {
			return value.Nil, err
		}
		initial, err := wantInt(args, 2, "initial value")
		if err != nil {
			return value.Nil, err
		}
		if err := v.InitSemaphore(name.Chars, initial); err != nil {
			return value.Nil, err
		}
		t := thread(th)
		instance := v.NewInstance(t, semaphoreClass)
		instance.Properties.Set(v.InternString("name"), args[1])
		return value.FromObj(&instance.Obj), nil
	})

	syncClass := v.DefineClass("Sync", nil)
	v.SetMetaclass(&syncClass.Obj, metaSync)
	v.AttachGlobal("Sync", syncClass)
}

// lockName recovers the name a Lock/Semaphore instance was constructed
// with, stored as its "name" property by Sync.Lock/Sync.Semaphore.
func lockName(v *vm.VM, args []value.Value) (string, error) {
	self, err := wantInstance(args, 0, "receiver")
	if err != nil {
		return "", err
	}
	nameVal, ok := self.Properties.Get(v.InternString("name"))
	if !ok || !nameVal.IsString() {
		return "", argError("Malformed lock/semaphore handle.")
	}
	return nameVal.AsString().Chars, nil
}

// installLockMethods defines Lock's instance methods: lock and unlock,
// both keyed by the name the constructing Sync.Lock call registered.
func installLockMethods(v *vm.VM, class *value.ObjClass) {
	v.DefineNativeMethod(class.Methods, "lock", 0, func(th any, args []value.Value) (value.Value, error) {
		name, err := lockName(v, args)
		if err != nil {
			return value.Nil, err
		}
		if err := v.LockSection(thread(th), name); err != nil {
			return value.Nil, err
		}
		return value.Nil, nil
	})

	v.DefineNativeMethod(class.Methods, "unlock", 0, func(th any, args []value.Value) (value.Value, error) {
		name, err := lockName(v, args)
		if err != nil {
			return value.Nil, err
		}
		if err := v.UnlockSection(name); err != nil {
			return value.Nil, err
		}
		return value.Nil, nil
	})
}

// installSemaphoreMethods defines Semaphore's instance methods: post and
// wait, both keyed by the name the constructing Sync.Semaphore call
// registered.
func installSemaphoreMethods(v *vm.VM, class *value.ObjClass) {
	v.DefineNativeMethod(class.Methods, "post", 0, func(th any, args []value.Value) (value.Value, error) {
		name, err := lockName(v, args)
		if err != nil {
			return value.Nil, err
		}
		if err := v.PostSemaphore(name); err != nil {
			return value.Nil, err
		}
		return value.Nil, nil
	})

	v.DefineNativeMethod(class.Methods, "wait", 0, func(th any, args []value.Value) (value.Value, error) {
		name, err := lockName(v, args)
		if err != nil {
			return value.Nil, err
		}
		if err := v.WaitSemaphore(thread(th), name); err != nil {
			return value.Nil, err
		}
		return value.Nil, nil
	})
}
