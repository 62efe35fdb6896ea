package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/saymow/simpl-sub000/pkg/bytecode"
	"github.com/saymow/simpl-sub000/pkg/lexer"
	"github.com/saymow/simpl-sub000/pkg/value"
)

// moduleState tracks where a module sits in the compile-time dependency
// graph, so a module that imports itself (directly or transitively) is
// reported instead of recursing forever.
type moduleState int

const (
	moduleCompiling moduleState = iota
	moduleCompiled
)

type moduleNode struct {
	state moduleState
	obj   *value.ObjModule
}

// moduleGraph caches one compiled ObjModule per absolute source path for
// the whole compile, so two import statements naming the same file share
// a single cached-eval module object at runtime (see §4.2).
type moduleGraph struct {
	entryDir string
	nodes    map[string]*moduleNode
}

func newModuleGraph(entryPath string) *moduleGraph {
	return &moduleGraph{
		entryDir: filepath.Dir(entryPath),
		nodes:    map[string]*moduleNode{},
	}
}

// resolvePath turns an import literal into an absolute path: one starting
// with "/" is rooted at the entry script's directory, everything else is
// relative to the importing file's own directory.
func (g *moduleGraph) resolvePath(importerPath, importPath string) string {
	if strings.HasPrefix(importPath, "/") {
		return filepath.Join(g.entryDir, strings.TrimPrefix(importPath, "/"))
	}
	return filepath.Clean(filepath.Join(filepath.Dir(importerPath), importPath))
}

// resolve returns the cached ObjModule for absPath, compiling it the
// first time it's seen. p is the importing Parser, reused (with its
// lexer/current state saved and restored) to compile the dependency so
// string interning and error aggregation stay shared across the whole
// module tree.
func (g *moduleGraph) resolve(p *Parser, absPath string) (*value.ObjModule, error) {
	if node, ok := g.nodes[absPath]; ok {
		if node.state == moduleCompiling {
			return nil, fmt.Errorf("cyclic import of %q", absPath)
		}
		return node.obj, nil
	}

	node := &moduleNode{state: moduleCompiling}
	g.nodes[absPath] = node

	src, err := os.ReadFile(absPath)
	if err != nil {
		delete(g.nodes, absPath)
		return nil, fmt.Errorf("cannot read module %q: %v", absPath, err)
	}

	// compileModule's errors are already appended to p.errors (errorAt
	// mutates it directly); the returned slice is only used to notice
	// that this particular module failed.
	fn, errs := compileModule(p, absPath, string(src))
	if len(errs) > 0 {
		p.hadError = true
	}

	obj := &value.ObjModule{Function: fn, Exports: value.NewTable(), Path: absPath}
	obj.Obj.Kind = value.ObjModuleKind

	node.state = moduleCompiled
	node.obj = obj
	return obj, nil
}

// importStatement compiles `import NAME from "path";` or the bare
// `import "path";` form (evaluated for side effects only, binding
// nothing). The imported file is compiled at most once per compile; every
// import site after the first reuses the same ObjModule constant.
func (p *Parser) importStatement() {
	var nameConst byte
	bindsName := false
	if !p.check(lexer.TokenString) {
		bindsName = true
		nameConst, _ = p.parseVariableTarget("Expect import identifier.")
		p.consume(lexer.TokenFrom, "Expect 'from' after import identifier.")
	}

	p.consume(lexer.TokenString, "Expect import path.")
	importPath := unescape(rawLexemeBody(p.previous.Lexeme))

	absPath := p.cc().module.resolvePath(p.cc().path, importPath)
	mod, err := p.cc().module.resolve(p, absPath)
	if err != nil {
		p.errorAtPrevious(err.Error())
		return
	}

	modConst := p.addConstant(value.FromObj(&mod.Obj))
	p.emitBytes(byte(bytecode.OpImport), modConst)

	if bindsName {
		p.defineVariable(nameConst)
	} else {
		p.emitOp(bytecode.OpPop)
	}
	p.consume(lexer.TokenSemicolon, "Expect ';' after import statement.")
}

// exportStatement compiles `export NAME;`, valid only at a module's top
// level, copying the named binding's current value into the module's
// exports table.
func (p *Parser) exportStatement() {
	if p.cc().fnType != FnModule {
		p.errorAtPrevious("Can only export from the top level of a module.")
	}
	p.consume(lexer.TokenIdentifier, "Expect name to export.")
	nameTok := p.previous
	nameConst := p.identifierConstant(nameTok.Lexeme)
	p.namedVariable(nameTok, false)
	p.emitBytes(byte(bytecode.OpExport), nameConst)
	p.consume(lexer.TokenSemicolon, "Expect ';' after export statement.")
}
