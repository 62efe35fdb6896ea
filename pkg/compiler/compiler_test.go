package compiler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saymow/simpl-sub000/pkg/bytecode"
	"github.com/saymow/simpl-sub000/pkg/value"
)

func compile(t *testing.T, source string) *fnCompileResult {
	t.Helper()
	fn, err := Compile(source, "<test>")
	require.NoError(t, err)
	require.NotNil(t, fn)
	return &fnCompileResult{ops: opsOf(fn.Chunk)}
}

type fnCompileResult struct{ ops []bytecode.Op }

// opsOf walks chunk the same way bytecode.Disassemble does, reusing
// DisassembleInstruction to step over each opcode's real operand width
// (including OpClosure's variable-length upvalue descriptor list)
// instead of re-deriving the widths by hand. It then descends into every
// function and module body held in chunk's constant pool, so ops emitted
// inside nested functions, methods and imported modules are collected too.
func opsOf(chunk *value.Chunk) []bytecode.Op {
	var out []bytecode.Op
	var b strings.Builder
	for offset := 0; offset < len(chunk.Code); {
		out = append(out, bytecode.Op(chunk.Code[offset]))
		offset = bytecode.DisassembleInstruction(&b, chunk, offset)
	}
	for _, c := range chunk.Constants {
		if c.IsFunction() {
			out = append(out, opsOf(c.AsFunction().Chunk)...)
		} else if c.IsModule() {
			out = append(out, opsOf(c.AsModule().Function.Chunk)...)
		}
	}
	return out
}

func (r *fnCompileResult) contains(op bytecode.Op) bool {
	for _, o := range r.ops {
		if o == op {
			return true
		}
	}
	return false
}

func TestCompileLiterals(t *testing.T) {
	t.Run("NumberEmitsConstant", func(t *testing.T) {
		r := compile(t, "42;")
		assert.True(t, r.contains(bytecode.OpConstant))
	})

	t.Run("TrueFalseNilEmitDedicatedOps", func(t *testing.T) {
		r := compile(t, "true; false; nil;")
		assert.True(t, r.contains(bytecode.OpTrue))
		assert.True(t, r.contains(bytecode.OpFalse))
		assert.True(t, r.contains(bytecode.OpNil))
	})

	t.Run("ArrayLiteralEmitsArrayOp", func(t *testing.T) {
		r := compile(t, "[1, 2, 3];")
		assert.True(t, r.contains(bytecode.OpArray))
	})

	t.Run("ObjectLiteralEmitsObjectOp", func(t *testing.T) {
		r := compile(t, `var x = { a: 1 };`)
		assert.True(t, r.contains(bytecode.OpObject))
	})
}

func TestCompileVariables(t *testing.T) {
	t.Run("TopLevelVarIsGlobal", func(t *testing.T) {
		r := compile(t, "var x = 1;")
		assert.True(t, r.contains(bytecode.OpDefineGlobal))
	})

	t.Run("BlockScopedVarIsLocal", func(t *testing.T) {
		r := compile(t, "{ var x = 1; x = x + 1; }")
		assert.True(t, r.contains(bytecode.OpGetLocal))
		assert.True(t, r.contains(bytecode.OpSetLocal))
	})
}

func TestCompileFunctionsAndClosures(t *testing.T) {
	t.Run("ClosureOverLocalEmitsUpvalueOps", func(t *testing.T) {
		r := compile(t, `
			fun outer() {
				var x = 1;
				fun inner() { return x; }
				return inner;
			}
		`)
		assert.True(t, r.contains(bytecode.OpClosure))
		assert.True(t, r.contains(bytecode.OpGetUpvalue))
	})

	t.Run("CallEmitsCallOp", func(t *testing.T) {
		r := compile(t, `
			fun f() { return 1; }
			f();
		`)
		assert.True(t, r.contains(bytecode.OpCall))
	})
}

func TestCompileClasses(t *testing.T) {
	t.Run("ClassDeclarationEmitsClassAndMethod", func(t *testing.T) {
		r := compile(t, `
			class Point {
				init(x, y) { this.x = x; this.y = y; }
			}
		`)
		assert.True(t, r.contains(bytecode.OpClass))
		assert.True(t, r.contains(bytecode.OpMethod))
	})

	t.Run("SubclassEmitsInheritAndSuper", func(t *testing.T) {
		r := compile(t, `
			class Shape {
				area() { return 0; }
			}
			class Square extends Shape {
				area() { return super.area(); }
			}
		`)
		assert.True(t, r.contains(bytecode.OpInherit))
		assert.True(t, r.contains(bytecode.OpSuper))
	})

	t.Run("PropertyAccessWithoutCallIsGetProperty", func(t *testing.T) {
		r := compile(t, `
			class Box { value() { return 1; } }
			var b = Box();
			b.value;
		`)
		assert.True(t, r.contains(bytecode.OpGetProperty))
	})

	t.Run("PropertyAccessWithCallIsInvoke", func(t *testing.T) {
		r := compile(t, `
			class Box { value() { return 1; } }
			var b = Box();
			b.value();
		`)
		assert.True(t, r.contains(bytecode.OpInvoke))
	})
}

func TestCompileExceptions(t *testing.T) {
	t.Run("TryCatchEmitsTryCatchAndThrow", func(t *testing.T) {
		r := compile(t, `
			try {
				throw Error("boom");
			} catch (e) {
				nil;
			}
		`)
		assert.True(t, r.contains(bytecode.OpTryCatch))
		assert.True(t, r.contains(bytecode.OpThrow))
	})
}

func TestCompileLoops(t *testing.T) {
	t.Run("WhileLoopEmitsLoopGuard", func(t *testing.T) {
		r := compile(t, `
			var i = 0;
			while (i < 10) { i = i + 1; }
		`)
		assert.True(t, r.contains(bytecode.OpLoopGuard))
		assert.True(t, r.contains(bytecode.OpLoopGuardEnd))
	})

	t.Run("BreakAndContinueEmitLoopOps", func(t *testing.T) {
		r := compile(t, `
			var i = 0;
			while (i < 10) {
				if (i == 5) break;
				i = i + 1;
				continue;
			}
		`)
		assert.True(t, r.contains(bytecode.OpLoopBreak))
		assert.True(t, r.contains(bytecode.OpLoopContinue))
	})
}

func TestCompileSwitch(t *testing.T) {
	t.Run("SwitchEmitsSwitchOps", func(t *testing.T) {
		r := compile(t, `
			var x = 1;
			switch (x) {
				case 1: nil;
				default: nil;
			}
		`)
		assert.True(t, r.contains(bytecode.OpSwitch))
		assert.True(t, r.contains(bytecode.OpSwitchCase))
		assert.True(t, r.contains(bytecode.OpSwitchEnd))
	})
}

func TestCompileErrorsAccumulate(t *testing.T) {
	t.Run("SyntaxErrorReturnsCompileError", func(t *testing.T) {
		_, err := Compile("var = ;", "<test>")
		require.Error(t, err)
		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		assert.NotEmpty(t, ce.Messages)
	})

	t.Run("PanicModeSynchronizeReportsMultipleErrors", func(t *testing.T) {
		_, err := Compile("var = ; var = ;", "<test>")
		require.Error(t, err)
		var ce *CompileError
		require.ErrorAs(t, err, &ce)
		assert.GreaterOrEqual(t, len(ce.Messages), 2)
	})
}

func TestCompileModules(t *testing.T) {
	t.Run("ExportStatementEmitsExportOp", func(t *testing.T) {
		// export is only accepted at a module's top level, so the exporting
		// source is a module file that the compiled script imports.
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "mod.simpl"), []byte("var x = 1;\nexport x;\n"), 0o644))
		fn, err := Compile(`import "mod.simpl";`, filepath.Join(dir, "main.simpl"))
		require.NoError(t, err)
		r := &fnCompileResult{ops: opsOf(fn.Chunk)}
		assert.True(t, r.contains(bytecode.OpExport))
	})
}
