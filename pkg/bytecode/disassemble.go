package bytecode

import (
	"fmt"
	"strings"

	"github.com/saymow/simpl-sub000/pkg/value"
)

// Disassemble renders every instruction in chunk as human-readable text,
// labelled with name. Not called from elsewhere in the module; the
// debugger and tests use DisassembleInstruction directly.
func Disassemble(chunk *value.Chunk, name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		var line string
		b.WriteString(fmt.Sprintf("%04d ", offset))
		if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
			line = "   | "
		} else {
			line = fmt.Sprintf("%4d ", chunk.Lines[offset])
		}
		b.WriteString(line)
		offset = DisassembleInstruction(&b, chunk, offset)
	}
	return b.String()
}

// DisassembleInstruction writes one instruction at offset to b and
// returns the offset of the next instruction.
func DisassembleInstruction(b *strings.Builder, chunk *value.Chunk, offset int) int {
	op := Op(chunk.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal,
		OpSetProperty, OpClass, OpMethod, OpSuper, OpImport, OpExport:
		return constantInstruction(b, op, chunk, offset)
	case OpStringInterpolation, OpInvoke:
		return constantByteInstruction(b, op, chunk, offset)
	case OpGetProperty:
		return getPropertyInstruction(b, chunk, offset)
	case OpArray, OpObject, OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall, OpGetItem:
		return byteInstruction(b, op, chunk, offset)
	case OpJump, OpJumpIfFalse, OpLoop, OpSwitch, OpSwitchCase, OpSwitchEnd:
		return jumpInstruction(b, op, chunk, offset)
	case OpLoopGuard:
		return loopGuardInstruction(b, op, chunk, offset)
	case OpTryCatch:
		return tryCatchInstruction(b, op, chunk, offset)
	case OpClosure:
		return closureInstruction(b, chunk, offset)
	default:
		return simpleInstruction(b, op, offset)
	}
}

// getPropertyInstruction is GET_PROPERTY's own formatter: unlike every
// other constant-indexed opcode, it carries a trailing keepBase byte
// (non-zero when the receiver must stay on the stack for a following
// SET_PROPERTY, as in `obj.x += 1`).
func getPropertyInstruction(b *strings.Builder, chunk *value.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	keepBase := chunk.Code[offset+2]
	fmt.Fprintf(b, "%-20s %4d '%s' keepBase=%d\n", OpGetProperty.String(), idx, value.Stringify(chunk.Constants[idx]), keepBase)
	return offset + 3
}

func simpleInstruction(b *strings.Builder, op Op, offset int) int {
	fmt.Fprintf(b, "%-20s\n", op.String())
	return offset + 1
}

func byteInstruction(b *strings.Builder, op Op, chunk *value.Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(b, "%-20s %4d\n", op.String(), slot)
	return offset + 2
}

func constantInstruction(b *strings.Builder, op Op, chunk *value.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	fmt.Fprintf(b, "%-20s %4d '%s'\n", op.String(), idx, value.Stringify(chunk.Constants[idx]))
	return offset + 2
}

// constantByteInstruction formats the opcodes that carry a constant index
// followed by a count byte (INVOKE's argc, STRING_INTERPOLATION's
// placeholder count).
func constantByteInstruction(b *strings.Builder, op Op, chunk *value.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	n := chunk.Code[offset+2]
	fmt.Fprintf(b, "%-20s %4d '%s' %d\n", op.String(), idx, value.Stringify(chunk.Constants[idx]), n)
	return offset + 3
}

func jumpInstruction(b *strings.Builder, op Op, chunk *value.Chunk, offset int) int {
	jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	sign := 1
	if op == OpLoop || op == OpSwitchEnd {
		sign = -1
	}
	fmt.Fprintf(b, "%-20s %4d -> %d\n", op.String(), offset, offset+3+sign*jump)
	return offset + 3
}

func loopGuardInstruction(b *strings.Builder, op Op, chunk *value.Chunk, offset int) int {
	startOff := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	outOff := int(chunk.Code[offset+3])<<8 | int(chunk.Code[offset+4])
	fmt.Fprintf(b, "%-20s start=%d out=%d\n", op.String(), offset+5+startOff, offset+5+outOff)
	return offset + 5
}

func tryCatchInstruction(b *strings.Builder, op Op, chunk *value.Chunk, offset int) int {
	catchOff := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	outOff := int(chunk.Code[offset+3])<<8 | int(chunk.Code[offset+4])
	hasParam := chunk.Code[offset+5]
	fmt.Fprintf(b, "%-20s catch=%d out=%d hasParam=%d\n", op.String(), offset+6+catchOff, offset+6+outOff, hasParam)
	return offset + 6
}

func closureInstruction(b *strings.Builder, chunk *value.Chunk, offset int) int {
	idx := chunk.Code[offset+1]
	fmt.Fprintf(b, "%-20s %4d '%s'\n", OpClosure.String(), idx, value.Stringify(chunk.Constants[idx]))
	offset += 2

	fn := chunk.Constants[idx].AsFunction()
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.Code[offset]
		index := chunk.Code[offset+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		fmt.Fprintf(b, "%04d      |                     %s %d\n", offset, kind, index)
		offset += 2
	}
	return offset
}
