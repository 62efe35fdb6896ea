package compiler

import "github.com/saymow/simpl-sub000/pkg/bytecode"

func (p *Parser) beginScope() { p.cc().scopeDepth++ }

// endScope pops every local declared at the scope being closed, emitting
// CLOSE_UPVALUE for any that were captured (so the heap upvalue detaches
// from the dying stack slot) or a plain POP otherwise.
func (p *Parser) endScope() {
	c := p.cc()
	c.scopeDepth--
	for c.localCount > 0 && c.locals[c.localCount-1].Depth > c.scopeDepth {
		if c.locals[c.localCount-1].IsCaptured {
			p.emitOp(bytecode.OpCloseUpvalue)
		} else {
			p.emitOp(bytecode.OpPop)
		}
		c.localCount--
	}
}

// declareVariable registers name as a local of the current scope. At
// global scope (scopeDepth == 0) this is a no-op; DEFINE_GLOBAL handles
// globals entirely at runtime via the name constant.
func (p *Parser) declareVariable(name string) {
	c := p.cc()
	if c.scopeDepth == 0 {
		return
	}
	for i := c.localCount - 1; i >= 0; i-- {
		l := c.locals[i]
		if l.Depth != -1 && l.Depth < c.scopeDepth {
			break
		}
		if l.Name == name {
			p.errorAtPrevious("Variable with this name already declared in this scope.")
		}
	}
	p.addLocal(name)
}

func (p *Parser) addLocal(name string) {
	c := p.cc()
	if c.localCount >= maxLocals {
		p.errorAtPrevious("Too many local variables in function.")
		return
	}
	c.locals[c.localCount] = Local{Name: name, Depth: -1}
	c.localCount++
}

// markInitialized promotes the most recently declared local from
// "declared" (depth -1, invisible to its own initializer expression) to
// "defined" (visible at the enclosing scope depth).
func (p *Parser) markInitialized() {
	c := p.cc()
	if c.scopeDepth == 0 {
		return
	}
	c.locals[c.localCount-1].Depth = c.scopeDepth
}

// resolveLocal searches c's own locals, bottom-up, for name.
func resolveLocal(c *Compiler, name string) int {
	for i := c.localCount - 1; i >= 0; i-- {
		if c.locals[i].Name == name {
			if c.locals[i].Depth == -1 {
				return -2 // sentinel: self-referential initializer
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue implements the three-step resolution order from §4.2:
// locals of c, then recursively the semantic enclosing compiler (capturing
// as an upvalue if found there), else -1 meaning "treat as global".
func resolveUpvalue(c *Compiler, name string) int {
	if c.semantic == nil {
		return -1
	}
	if local := resolveLocal(c.semantic, name); local >= 0 {
		c.semantic.locals[local].IsCaptured = true
		return addUpvalue(c, byte(local), true)
	}
	if up := resolveUpvalue(c.semantic, name); up >= 0 {
		return addUpvalue(c, byte(up), false)
	}
	return -1
}

func addUpvalue(c *Compiler, index byte, isLocal bool) int {
	for i, existing := range c.upvaluesSlice() {
		if existing.index == index && existing.isLocal == isLocal {
			return i
		}
	}
	if c.fn.UpvalueCount >= maxUpvalues {
		return 0
	}
	c.upvalues[c.fn.UpvalueCount] = upvalueDesc{index: index, isLocal: isLocal}
	n := c.fn.UpvalueCount
	c.fn.UpvalueCount++
	return n
}

func (c *Compiler) upvaluesSlice() []upvalueDesc { return c.upvalues[:c.fn.UpvalueCount] }
