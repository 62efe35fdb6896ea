package vm_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saymow/simpl-sub000/pkg/compiler"
	"github.com/saymow/simpl-sub000/pkg/corelib"
	"github.com/saymow/simpl-sub000/pkg/vm"
)

// run compiles and interprets source against a fresh VM with the standard
// library installed, returning whatever System.log wrote and any uncaught
// runtime error.
func run(t *testing.T, source string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	v := vm.New(&out)
	require.NoError(t, corelib.Install(v))

	fn, err := compiler.Compile(source, "<test>")
	require.NoError(t, err)

	err = v.Interpret(fn)
	return out.String(), err
}

func TestArithmeticAndLogic(t *testing.T) {
	out, err := run(t, `System.log(1 + 2 * 3);`)
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestStringConcatenationAndInterpolation(t *testing.T) {
	out, err := run(t, `
		var name = "world";
		System.log("hello " + name);
		System.log("count: $(1 + 1)");
	`)
	require.NoError(t, err)
	assert.Equal(t, "hello world\ncount: 2\n", out)
}

func TestClosuresCaptureByReference(t *testing.T) {
	out, err := run(t, `
		fun makeCounter() {
			var count = 0;
			fun increment() {
				count = count + 1;
				return count;
			}
			return increment;
		}
		var counter = makeCounter();
		System.log(counter());
		System.log(counter());
		System.log(counter());
	`)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestClassesAndSingleInheritance(t *testing.T) {
	out, err := run(t, `
		class Animal {
			Animal(name) { this.name = name; }
			speak() { return this.name + " makes a sound"; }
		}
		class Dog extends Animal {
			Dog(name) { super.Animal(name); }
			speak() { return super.speak() + " (bark)"; }
		}
		var d = Dog("Rex");
		System.log(d.speak());
	`)
	require.NoError(t, err)
	assert.Equal(t, "Rex makes a sound (bark)\n", out)
}

func TestArityOverloadedMethods(t *testing.T) {
	out, err := run(t, `
		class Greeter {
			greet() { return "hi"; }
			greet(name) { return "hi " + name; }
		}
		var g = Greeter();
		System.log(g.greet());
		System.log(g.greet("Ada"));
	`)
	require.NoError(t, err)
	assert.Equal(t, "hi\nhi Ada\n", out)
}

func TestArrayBuiltins(t *testing.T) {
	out, err := run(t, `
		var a = Array.new();
		a.push(3);
		a.push(1);
		a.push(2);
		System.log(a.length());
		System.log(a.indexOf(1));
		var doubled = a.map((x) -> x * 2);
		System.log(doubled);
	`)
	require.NoError(t, err)
	assert.Equal(t, "3\n1\n[6, 2, 4]\n", out)
}

func TestArraySortBy(t *testing.T) {
	out, err := run(t, `
		var a = [3, 1, 2];
		a.sortBy((x, y) -> x - y);
		System.log(a);
	`)
	require.NoError(t, err)
	assert.Equal(t, "[1, 2, 3]\n", out)
}

func TestStructuredExceptions(t *testing.T) {
	out, err := run(t, `
		try {
			throw Error("boom");
		} catch (e) {
			System.log("caught: " + e.message);
		}
	`)
	require.NoError(t, err)
	assert.Equal(t, "caught: boom\n", out)
}

func TestUncaughtExceptionSurfacesAsRuntimeError(t *testing.T) {
	_, err := run(t, `throw Error("unhandled");`)
	require.Error(t, err)
	var rerr *vm.RuntimeError
	require.ErrorAs(t, err, &rerr)
	assert.Contains(t, rerr.Message, "unhandled")
}

func TestModuleExportImport(t *testing.T) {
	// import/from resolves against the filesystem relative to the
	// importing file's path, so the module is written to a temp directory
	// and the script is compiled as if it lived beside it.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "answer.simpl"), []byte("var answer = 42;\nexport answer;\n"), 0o644))

	var out bytes.Buffer
	v := vm.New(&out)
	require.NoError(t, corelib.Install(v))
	fn, err := compiler.Compile(`import m from "answer.simpl"; System.log(m.answer);`, filepath.Join(dir, "main.simpl"))
	require.NoError(t, err)
	require.NoError(t, v.Interpret(fn))
	assert.Equal(t, "42\n", out.String())
}

func TestConcurrencyLockSerializesCounter(t *testing.T) {
	out, err := run(t, `
		var counter = 0;
		var lock = Sync.Lock("counter");
		fun increment() {
			lock.lock();
			counter = counter + 1;
			lock.unlock();
		}
		var t1 = System.Thread(() -> increment());
		var t2 = System.Thread(() -> increment());
		System.threadJoin(t1);
		System.threadJoin(t2);
		System.log(counter);
	`)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestSemaphorePostWait(t *testing.T) {
	out, err := run(t, `
		var sem = Sync.Semaphore("ready", 0);
		var worker = System.Thread(() -> {
			sem.wait();
			System.log("signalled");
		});
		sem.post();
		System.threadJoin(worker);
	`)
	require.NoError(t, err)
	assert.Equal(t, "signalled\n", out)
}

func TestRangeAndForOfLoops(t *testing.T) {
	out, err := run(t, `
		var total = 0;
		for range(5) total = total + 1;
		System.log(total);

		for x of [10, 20, 30] System.log(x);
	`)
	require.NoError(t, err)
	assert.Equal(t, "5\n10\n20\n30\n", out)
}

func TestRangeWithOmittedStepDefaultsToDirectionOfTravel(t *testing.T) {
	out, err := run(t, `
		var up = 0;
		for range(0, 5) up = up + 1;
		System.log(up);

		var down = 0;
		for range(5, 0) down = down + 1;
		System.log(down);
	`)
	require.NoError(t, err)
	assert.Equal(t, "5\n5\n", out)
}

func TestSwitchStatement(t *testing.T) {
	out, err := run(t, `
		fun label(n) {
			switch (n) {
				case 1: return "one";
				case 2: return "two";
				default: return "other";
			}
		}
		System.log(label(1));
		System.log(label(2));
		System.log(label(99));
	`)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\nother\n", out)
}

func TestGarbageCollectionSurvivesManyAllocations(t *testing.T) {
	out, err := run(t, `
		var last = nil;
		for range(2000) {
			last = Array.new();
			last.push("x");
		}
		System.log(last.length());
	`)
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestStackTraceNamesNestedFrames(t *testing.T) {
	_, err := run(t, `
		fun inner() { throw Error("deep"); }
		fun outer() { inner(); }
		outer();
	`)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "inner"))
	assert.True(t, strings.Contains(err.Error(), "outer"))
}
