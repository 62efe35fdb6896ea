// Package compiler turns source text into bytecode in a single pass: a
// recursive-descent parser drives a Pratt-style expression table and emits
// directly into a value.Chunk as it goes. There is no intermediate AST.
//
// Compilation pipeline:
//
//	source text -> lexer.Lexer -> Compiler (this package) -> *value.ObjFunction
//
// A Compiler record exists per function body being compiled (the top-level
// script, a module, a function/method/lambda). Records are linked two ways:
// enclosing (lexically, the Compiler whose body textually contains this
// one) and semantic (the same chain but skipping over module boundaries,
// since a module body does not see its importer's locals). Name resolution
// walks the semantic chain so closures capture the right upvalues while
// import isolation is preserved.
package compiler

import (
	"fmt"

	"github.com/saymow/simpl-sub000/pkg/lexer"
	"github.com/saymow/simpl-sub000/pkg/value"
)

const (
	maxLocals       = 256
	maxUpvalues     = 256
	maxConstants    = 256
	maxParams       = 255
	maxArgs         = 255
	maxArrayElems   = 255
	maxObjectProps  = 255
	maxInterpolants = 255
	blockStackMax   = 8 // compile-time loop+switch nesting bound, matches the runtime stacks (see DESIGN.md)
)

// FunctionType distinguishes the few ways a compiled body is invoked, which
// changes slot-0 semantics and what "return" is allowed to do.
type FunctionType int

const (
	FnScript FunctionType = iota
	FnModule
	FnFunction
	FnLambda
	FnMethod
	FnConstructor
)

// Local is one entry in a Compiler's local-variable array.
type Local struct {
	Name       string
	Depth      int // -1 means "declared but not yet defined" (self-reference guard)
	IsCaptured bool
}

// upvalueDesc records where an upvalue's value comes from: a local slot in
// the immediately enclosing function, or an upvalue already captured there.
type upvalueDesc struct {
	index   byte
	isLocal bool
}

// blockKind distinguishes the two constructs that can be targeted by break
// and (loops only) continue.
type blockKind int

const (
	blockLoop blockKind = iota
	blockSwitch
)

// block is a compile-time record of one loop or switch body. break and
// continue don't need compile-time jump-patch lists: at runtime they pop
// the innermost Loop/Switch record (pushed by LOOP_GUARD/SWITCH) and jump
// to the offsets stored there. The compiler only needs block's kind, to
// reject break/continue outside any block and continue outside a loop.
type block struct {
	kind blockKind
}

// Compiler holds all compile-time state for one function body.
type Compiler struct {
	module *moduleGraph

	enclosing *Compiler // lexical parent
	semantic  *Compiler // nearest non-module ancestor (for upvalue capture)

	fnType FunctionType
	fn     *value.ObjFunction

	locals     [maxLocals]Local
	localCount int
	upvalues   [maxUpvalues]upvalueDesc
	scopeDepth int

	blocks []block // bounded by blockStackMax

	path string // absolute source path, for error messages and import resolution
}

// newCompiler allocates a Compiler for a nested function/method/lambda,
// wiring its enclosing/semantic links and reserving local slot 0.
func newCompiler(p *Parser, enclosing *Compiler, fnType FunctionType, name string) *Compiler {
	c := &Compiler{
		module:    enclosing.module,
		enclosing: enclosing,
		fnType:    fnType,
		path:      enclosing.path,
		fn:        &value.ObjFunction{Chunk: &value.Chunk{}},
	}
	c.fn.Obj.Kind = value.ObjFunctionKind
	if fnType == FnModule {
		c.semantic = nil
	} else if fnType == FnFunction || fnType == FnLambda || fnType == FnMethod || fnType == FnConstructor {
		c.semantic = enclosing.nearestFunctionAncestor()
	}
	if name != "" {
		c.fn.Name = p.internString(name)
	}
	c.fn.IsMethod = fnType == FnMethod || fnType == FnConstructor

	slot0 := ""
	if fnType == FnMethod || fnType == FnConstructor {
		slot0 = "this"
	}
	c.locals[0] = Local{Name: slot0, Depth: 0}
	c.localCount = 1

	return c
}

// nearestFunctionAncestor walks up past module compilers: a module body's
// locals are never visible to closures defined inside it via upvalue
// capture from outside, because imports don't carry lexical scope.
func (c *Compiler) nearestFunctionAncestor() *Compiler {
	cur := c
	for cur != nil && cur.fnType == FnModule {
		cur = cur.enclosing
	}
	return cur
}

// classState tracks the class currently being compiled, so `this`/`super`
// can be validated and super-dispatch knows whether a superclass exists.
// Linked to the enclosing class being compiled (for nested class bodies,
// which the grammar doesn't otherwise forbid).
type classState struct {
	enclosing      *classState
	name           string
	hasSuperclass  bool
}

// Parser drives the token stream and owns the error-reporting/panic-mode
// state shared by every Compiler record compiling the same file tree.
type Parser struct {
	lex *lexer.Lexer

	current  lexer.Token
	previous lexer.Token

	hadError  bool
	panicMode bool
	errors    []string

	current_ *Compiler  // the Compiler currently receiving emitted bytecode
	class_   *classState

	strings map[string]*value.ObjString // interning table shared for the whole compile
}

func currentClass(p *Parser) *classState { return p.class_ }

// pushBlock opens a loop/switch nesting level, enforcing the shared
// compile-time bound (8 entries, matching the runtime loop/try-catch/
// switch stacks — see DESIGN.md's Open Question decision).
func (p *Parser) pushBlock(kind blockKind) {
	c := p.cc()
	if len(c.blocks) >= blockStackMax {
		p.errorAtPrevious("Too many nested loops/switches.")
		return
	}
	c.blocks = append(c.blocks, block{kind: kind})
}

func (p *Parser) popBlock() {
	c := p.cc()
	c.blocks = c.blocks[:len(c.blocks)-1]
}

// Compile compiles source as a top-level script and returns the resulting
// function, wrapped by the caller into a Closure and run as the entry
// frame of a Thread. path is used to resolve relative imports and to tag
// stack-trace frames.
func Compile(source, path string) (*value.ObjFunction, error) {
	g := newModuleGraph(path)
	p := &Parser{lex: lexer.New(source), strings: map[string]*value.ObjString{}}
	c := &Compiler{module: g, fnType: FnScript, path: path, fn: &value.ObjFunction{Chunk: &value.Chunk{}}}
	c.fn.Obj.Kind = value.ObjFunctionKind
	c.fn.Name = p.internString("script")
	c.localCount = 1 // slot 0 unnamed placeholder
	p.current_ = c

	p.advance()
	for !p.match(lexer.TokenEOF) {
		p.declaration()
	}
	fn := p.endCompiler()

	if p.hadError {
		return nil, &CompileError{Messages: p.errors}
	}
	return fn, nil
}

// compileModule compiles source as a module body sharing the parent
// compile's module graph and string-intern table, used by import
// resolution (see module.go).
func compileModule(p *Parser, path, source string) (*value.ObjFunction, []string) {
	saved := p.current_
	savedLex := p.lex
	savedCur, savedPrev := p.current, p.previous
	errStart := len(p.errors)

	p.lex = lexer.New(source)
	c := &Compiler{module: saved.module, fnType: FnModule, path: path, fn: &value.ObjFunction{Chunk: &value.Chunk{}, IsModule: true}}
	c.fn.Obj.Kind = value.ObjFunctionKind
	c.localCount = 1
	p.current_ = c

	p.advance()
	for !p.match(lexer.TokenEOF) {
		p.declaration()
	}
	fn := p.endCompiler()

	errs := append([]string(nil), p.errors[errStart:]...)
	p.current_ = saved
	p.lex = savedLex
	p.current, p.previous = savedCur, savedPrev
	return fn, errs
}

// CompileError aggregates every panic-mode-recovered parse error found in
// one compilation, so a single run reports them all instead of just the
// first.
type CompileError struct {
	Messages []string
}

func (e *CompileError) Error() string {
	if len(e.Messages) == 1 {
		return e.Messages[0]
	}
	s := fmt.Sprintf("%d compile errors:", len(e.Messages))
	for _, m := range e.Messages {
		s += "\n  " + m
	}
	return s
}

func (p *Parser) cc() *Compiler { return p.current_ }

// endCompiler finalizes the Compiler's function: emits an implicit return
// (of `this` for constructors, nil otherwise) and pops the frame off the
// parser's notion of "current".
func (p *Parser) endCompiler() *value.ObjFunction {
	c := p.cc()
	p.emitReturn()
	fn := c.fn
	if c.enclosing != nil {
		p.current_ = c.enclosing
	}
	return fn
}

func (p *Parser) internString(s string) *value.ObjString {
	if existing, ok := p.strings[s]; ok {
		return existing
	}
	str := &value.ObjString{Chars: s, Hash: value.FNV1a(s)}
	str.Obj.Kind = value.ObjStringKind
	p.strings[s] = str
	return str
}
