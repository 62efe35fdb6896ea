package corelib_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saymow/simpl-sub000/pkg/compiler"
	"github.com/saymow/simpl-sub000/pkg/corelib"
	"github.com/saymow/simpl-sub000/pkg/vm"
)

// run installs the standard library onto a fresh VM, compiles source and
// interprets it, returning whatever System.log wrote.
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

func logs(t *testing.T, source string) string {
	t.Helper()
	out, err := run(t, source)
	require.NoError(t, err)
	return out
}

func TestStringMethods(t *testing.T) {
	t.Run("CaseConversionIsASCIIOnly", func(t *testing.T) {
		assert.Equal(t, "HELLO\n", logs(t, `System.log("hello".toUpperCase());`))
		assert.Equal(t, "hello\n", logs(t, `System.log("HELLO".toLowerCase());`))
	})

	t.Run("LengthIncludesStartsEndsWith", func(t *testing.T) {
		out := logs(t, `
			var s = "hello world";
			System.log(s.length());
			System.log(s.startsWith("hello"));
			System.log(s.endsWith("world"));
			System.log(s.includes("lo wo"));
		`)
		assert.Equal(t, "11\ntrue\ntrue\ntrue\n", out)
	})

	t.Run("TrimVariants", func(t *testing.T) {
		out := logs(t, `
			System.log("  hi  ".trim());
			System.log("  hi  ".trimStart());
			System.log("  hi  ".trimEnd());
		`)
		assert.Equal(t, "hi\nhi  \n  hi\n", out)
	})

	t.Run("SplitAndToArray", func(t *testing.T) {
		out := logs(t, `
			System.log("a,b,c".split(","));
			System.log("ab".toArray());
		`)
		assert.Equal(t, "[\"a\", \"b\", \"c\"]\n[\"a\", \"b\"]\n", out)
	})

	t.Run("SubstrWithAndWithoutLength", func(t *testing.T) {
		out := logs(t, `
			System.log("hello world".substr(6));
			System.log("hello world".substr(0, 5));
		`)
		assert.Equal(t, "world\nhello\n", out)
	})

	t.Run("ReplaceAndRepeat", func(t *testing.T) {
		out := logs(t, `
			System.log("ababab".replace("a", "X"));
			System.log("ab".repeat(3));
		`)
		assert.Equal(t, "XbXbXb\nababab\n", out)
	})

	t.Run("StringConstructorUsesToString", func(t *testing.T) {
		out := logs(t, `
			System.log(String.new(42));
			System.log(String.new());
		`)
		assert.Equal(t, "42\n\n", out)
	})
}

func TestNumberAndMathMethods(t *testing.T) {
	t.Run("ToNumberAndToInteger", func(t *testing.T) {
		out := logs(t, `
			System.log(Number.toNumber("3.5"));
			System.log(Number.toInteger(3.9));
		`)
		assert.Equal(t, "3.5\n3\n", out)
	})

	t.Run("MathAbsMinMaxClamp", func(t *testing.T) {
		out := logs(t, `
			System.log(Math.abs(-4));
			System.log(Math.min(2, 5));
			System.log(Math.max(2, 5));
			System.log(Math.clamp(0, 15, 10));
		`)
		assert.Equal(t, "4\n2\n5\n10\n", out)
	})
}

func TestArrayNativeMethods(t *testing.T) {
	t.Run("PushPopUnshiftShift", func(t *testing.T) {
		out := logs(t, `
			var a = Array.new();
			a.push(1);
			a.push(2);
			a.unshift(0);
			System.log(a);
			System.log(a.pop());
			System.log(a.shift());
			System.log(a);
		`)
		assert.Equal(t, "[0, 1, 2]\n2\n0\n[1]\n", out)
	})

	t.Run("SliceJoinConcatFlat", func(t *testing.T) {
		out := logs(t, `
			var a = [1, 2, 3, 4];
			System.log(a.slice(1, 3));
			System.log(a.join("-"));
			System.log([1, 2].concat([3, 4]));
			System.log([1, [2, 3]].flat());
		`)
		assert.Equal(t, "[2, 3]\n1-2-3-4\n[1, 2, 3, 4]\n[1, 2, 3]\n", out)
	})

	t.Run("SortReverseIndexOf", func(t *testing.T) {
		out := logs(t, `
			var a = [3, 1, 2];
			System.log(a.sort());
			System.log(a.reverse());
			System.log(a.indexOf(2));
		`)
		assert.Equal(t, "[1, 2, 3]\n[3, 2, 1]\n1\n", out)
	})
}

func TestArrayExtensionMethods(t *testing.T) {
	t.Run("FilterFindSomeEvery", func(t *testing.T) {
		out := logs(t, `
			var a = [1, 2, 3, 4];
			System.log(a.filter((x) -> x > 2));
			System.log(a.find((x) -> x > 2));
			System.log(a.findIndex((x) -> x > 2));
			System.log(a.some((x) -> x > 10));
			System.log(a.every((x) -> x > 0));
		`)
		assert.Equal(t, "[3, 4]\n3\n2\nfalse\ntrue\n", out)
	})

	t.Run("ReduceWithAndWithoutInitial", func(t *testing.T) {
		out := logs(t, `
			var a = [1, 2, 3];
			System.log(a.reduce((acc, x) -> acc + x));
			System.log(a.reduce((acc, x) -> acc + x, 10));
		`)
		assert.Equal(t, "6\n16\n", out)
	})

	t.Run("ForEachVisitsEveryElement", func(t *testing.T) {
		out := logs(t, `
			var sum = 0;
			[1, 2, 3].forEach((x) -> { sum = sum + x; });
			System.log(sum);
		`)
		assert.Equal(t, "6\n", out)
	})
}

func TestObjectMethods(t *testing.T) {
	// Table (pkg/value/table.go) is open-addressed and hash-ordered, so
	// Object.keys/values/entries order isn't insertion order — sort before
	// asserting instead of depending on a specific iteration order.
	t.Run("KeysValuesEntries", func(t *testing.T) {
		out := logs(t, `
			var o = { a: 1, b: 2 };
			System.log(Object.keys(o).sort());
			System.log(Object.values(o).sort());
			System.log(o.entries().map((pair) -> pair[0]).sort());
		`)
		assert.Equal(t, "[\"a\", \"b\"]\n[1, 2]\n[\"a\", \"b\"]\n", out)
	})
}

func TestErrorConstructionAndMessage(t *testing.T) {
	t.Run("ErrorNewCarriesMessage", func(t *testing.T) {
		out := logs(t, `
			var e = Error.new("bad input");
			System.log(e.message);
		`)
		assert.Equal(t, "bad input\n", out)
	})
}
