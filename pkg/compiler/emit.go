package compiler

import (
	"github.com/saymow/simpl-sub000/pkg/bytecode"
	"github.com/saymow/simpl-sub000/pkg/value"
)

// emitByte appends one byte to the current function's chunk, tagged with
// the line of the token just consumed.
func (p *Parser) emitByte(b byte) {
	p.cc().fn.Chunk.Write(b, p.previous.Line)
}

func (p *Parser) emitBytes(bs ...byte) {
	for _, b := range bs {
		p.emitByte(b)
	}
}

func (p *Parser) emitOp(op bytecode.Op) { p.emitByte(byte(op)) }

// addConstant appends v to the current chunk's constant pool, failing if
// the pool would exceed 256 entries (CONSTANT's operand is one byte).
func (p *Parser) addConstant(v value.Value) byte {
	c := p.cc().fn.Chunk
	if len(c.Constants) >= maxConstants {
		p.errorAtPrevious("Too many constants in one chunk.")
		return 0
	}
	idx := c.AddConstant(v)
	return byte(idx)
}

// emitConstant emits CONSTANT for a literal value.
func (p *Parser) emitConstant(v value.Value) {
	p.emitOp(bytecode.OpConstant)
	p.emitByte(p.addConstant(v))
}

// identifierConstant interns name and adds it to the constant pool as a
// String value, used by every opcode that names a variable/property/method
// (GET_GLOBAL, GET_PROPERTY, METHOD, ...).
func (p *Parser) identifierConstant(name string) byte {
	return p.addConstant(value.FromObj(&p.internString(name).Obj))
}

// emitJump emits a jump-family opcode with a two-byte placeholder operand
// and returns the offset of the first placeholder byte, to be patched by
// patchJump once the target is known.
func (p *Parser) emitJump(op bytecode.Op) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return len(p.cc().fn.Chunk.Code) - 2
}

// patchJump backfills the jump operand at offset with the distance from
// just past the operand to the current end of the chunk.
func (p *Parser) patchJump(offset int) {
	jump := len(p.cc().fn.Chunk.Code) - offset - 2
	if jump > 0xffff {
		p.errorAtPrevious("Jump target too far to encode.")
	}
	p.cc().fn.Chunk.Code[offset] = byte((jump >> 8) & 0xff)
	p.cc().fn.Chunk.Code[offset+1] = byte(jump & 0xff)
}

// patchJumpTo patches the jump operand at offset to reach an already-known
// absolute target, used when the target was recorded before the jump
// itself was emitted (e.g. loop-guard start offsets).
func (p *Parser) patchJumpTo(offset, target int) {
	jump := target - offset - 2
	p.cc().fn.Chunk.Code[offset] = byte((jump >> 8) & 0xff)
	p.cc().fn.Chunk.Code[offset+1] = byte(jump & 0xff)
}

// emitLoop emits OP_LOOP with a backward offset to loopStart.
func (p *Parser) emitLoop(loopStart int) {
	p.emitOp(bytecode.OpLoop)
	jump := len(p.cc().fn.Chunk.Code) - loopStart + 2
	if jump > 0xffff {
		p.errorAtPrevious("Loop body too large.")
	}
	p.emitByte(byte((jump >> 8) & 0xff))
	p.emitByte(byte(jump & 0xff))
}

func here(p *Parser) int { return len(p.cc().fn.Chunk.Code) }
