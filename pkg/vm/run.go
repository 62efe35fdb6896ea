package vm

import (
	"github.com/saymow/simpl-sub000/pkg/bytecode"
	"github.com/saymow/simpl-sub000/pkg/value"
)

// Interpret runs the already-compiled fn as the program entry: a fresh root
// Thread executes its closure to completion, returning the uncaught
// RuntimeError (if any) that terminated it.
func (vm *VM) Interpret(fn *value.ObjFunction) error {
	vm.adoptFunction(fn)

	t := vm.newRootThread()
	if vm.Debugger != nil {
		t.AttachDebugger(vm.Debugger)
	}
	vm.beginAssemblyLine()
	closure := vm.newClosure(t, fn, nil)
	vm.endAssemblyLine()

	t.push(value.FromObj(&closure.Obj))
	if res := vm.call(t, closure, 0); !res.ok {
		return newRuntimeError(res.msg, nil)
	}

	_, err := vm.run(t)
	return err
}

// runThread is the entry point for a goroutine spawned by System.Thread:
// fn is the closure (or native) to run, optionally with one argument.
func (vm *VM) runThread(t *Thread, fn value.Value, arg value.Value, hasArg bool) (value.Value, error) {
	t.push(fn)
	argCount := 0
	if hasArg {
		t.push(arg)
		argCount = 1
	}
	if res := vm.callValue(t, argCount); !res.ok {
		return value.Nil, newRuntimeError(res.msg, t.stackTrace())
	}
	return vm.run(t)
}

// run is the tight instruction-dispatch loop: read one opcode, execute
// it, repeat until the entry frame returns or an uncaught exception
// terminates the thread.
func (vm *VM) run(t *Thread) (value.Value, error) {
	frame := t.currentFrame()

	for {
		vm.safepoint(t)

		if t.debugger != nil && t.debugger.ShouldPause() {
			if !t.debugger.InteractivePrompt() {
				return value.Nil, newRuntimeError("execution aborted by debugger", t.stackTrace())
			}
		}

		chunk := frame.chunk()
		op := bytecode.Op(chunk.Code[frame.ip])
		frame.ip++

		switch op {
		case bytecode.OpConstant:
			t.push(chunk.Constants[readByte(frame)])

		case bytecode.OpStringInterpolation:
			template := chunk.Constants[readByte(frame)].AsObj().AsString()
			placeholders := int(readByte(frame))
			t.push(vm.execStringInterpolation(t, template, placeholders))

		case bytecode.OpArray:
			length := int(readByte(frame))
			elements := make([]value.Value, length)
			copy(elements, t.stack[t.stackTop-length:t.stackTop])
			t.stackTop -= length
			arr := vm.newArray(t, elements)
			t.push(value.FromObj(&arr.Obj))

		case bytecode.OpObject:
			if nf, handled := vm.execObjectLiteral(t, frame); !handled {
				return value.Nil, nf
			}
			frame = t.currentFrame()

		case bytecode.OpTrue:
			t.push(value.Bool(true))
		case bytecode.OpFalse:
			t.push(value.Bool(false))
		case bytecode.OpNil:
			t.push(value.Nil)

		case bytecode.OpGetLocal:
			t.push(t.stack[frame.base+int(readByte(frame))])
		case bytecode.OpSetLocal:
			t.stack[frame.base+int(readByte(frame))] = t.peek(0)

		case bytecode.OpGetUpvalue:
			t.push(*frame.closure.Upvalues[readByte(frame)].Location)
		case bytecode.OpSetUpvalue:
			*frame.closure.Upvalues[readByte(frame)].Location = t.peek(0)

		case bytecode.OpGetGlobal:
			name := chunk.Constants[readByte(frame)].AsObj().AsString()
			v, ok := vm.Globals.Get(name)
			if !ok {
				if nf, handled := vm.raise(t, "Undefined variable '"+name.Chars+"'."); !handled {
					return value.Nil, nf
				}
				frame = t.currentFrame()
				continue
			}
			t.push(v)

		case bytecode.OpDefineGlobal:
			name := chunk.Constants[readByte(frame)].AsObj().AsString()
			vm.Globals.Set(name, t.peek(0))
			t.pop()

		case bytecode.OpSetGlobal:
			name := chunk.Constants[readByte(frame)].AsObj().AsString()
			if vm.Globals.Set(name, t.peek(0)) {
				vm.Globals.Delete(name)
				if nf, handled := vm.raise(t, "Undefined variable '"+name.Chars+"'."); !handled {
					return value.Nil, nf
				}
				frame = t.currentFrame()
				continue
			}

		case bytecode.OpCloseUpvalue:
			t.closeUpvalues(t.stackTop - 1)
			t.pop()

		case bytecode.OpGetProperty:
			name := chunk.Constants[readByte(frame)].AsObj().AsString()
			keepBase := readByte(frame)
			var base value.Value
			if keepBase != 0 {
				base = t.peek(0)
			} else {
				base = t.pop()
			}
			v := value.Nil
			found := false
			if base.IsInstance() {
				v, found = base.AsInstance().Properties.Get(name)
			}
			if !found {
				v, found = vm.classProperty(t, base, name)
			}
			if !found {
				v = value.Nil
			}
			t.push(v)

		case bytecode.OpSetProperty:
			v := t.pop()
			base := t.pop()
			name := chunk.Constants[readByte(frame)].AsObj().AsString()
			if !base.IsInstance() {
				if nf, handled := vm.raise(t, "Cannot access property '"+name.Chars+"'."); !handled {
					return value.Nil, nf
				}
				frame = t.currentFrame()
				continue
			}
			base.AsInstance().Properties.Set(name, v)
			t.push(v)

		case bytecode.OpGetItem:
			keepBase := readByte(frame)
			var idx, base value.Value
			if keepBase != 0 {
				idx = t.peek(0)
				base = t.peek(1)
			} else {
				idx = t.pop()
				base = t.pop()
			}
			v, nf, handled := vm.getArrayItem(t, base, idx)
			if !handled {
				return value.Nil, nf
			}
			frame = t.currentFrame()
			t.push(v)

		case bytecode.OpSetItem:
			v := t.pop()
			idx := t.pop()
			base := t.pop()
			if nf, handled := vm.setArrayItem(t, base, idx, v); !handled {
				return value.Nil, nf
			}
			frame = t.currentFrame()
			t.push(v)

		case bytecode.OpInvoke:
			name := chunk.Constants[readByte(frame)].AsObj().AsString()
			argCount := int(readByte(frame))
			base := t.peek(argCount)
			if res := vm.invokeMethod(t, base, name, argCount); !res.ok {
				if nf, handled := vm.raise(t, res.msg); !handled {
					return value.Nil, nf
				}
			}
			frame = t.currentFrame()

		case bytecode.OpAdd:
			a, b := t.peek(1), t.peek(0)
			switch {
			case a.IsString() && b.IsString():
				t.pop()
				t.pop()
				t.push(vm.concat(a.AsString(), b.AsString()))
			case a.IsNumber() && b.IsNumber():
				t.pop()
				t.pop()
				t.push(value.Number(a.AsNumber() + b.AsNumber()))
			default:
				if nf, handled := vm.raise(t, "Operands must be two numbers or two strings."); !handled {
					return value.Nil, nf
				}
				frame = t.currentFrame()
			}

		case bytecode.OpSubtract, bytecode.OpMultiply, bytecode.OpDivide, bytecode.OpGreater, bytecode.OpLess:
			if !t.peek(0).IsNumber() || !t.peek(1).IsNumber() {
				if nf, handled := vm.raise(t, "Operands must be numbers."); !handled {
					return value.Nil, nf
				}
				frame = t.currentFrame()
				continue
			}
			b := t.pop().AsNumber()
			a := t.pop().AsNumber()
			switch op {
			case bytecode.OpSubtract:
				t.push(value.Number(a - b))
			case bytecode.OpMultiply:
				t.push(value.Number(a * b))
			case bytecode.OpDivide:
				t.push(value.Number(a / b))
			case bytecode.OpGreater:
				t.push(value.Bool(a > b))
			case bytecode.OpLess:
				t.push(value.Bool(a < b))
			}

		case bytecode.OpEqual:
			b := t.pop()
			a := t.pop()
			t.push(value.Bool(value.Equal(a, b)))

		case bytecode.OpNot:
			t.push(value.Bool(!t.pop().IsTruthy()))

		case bytecode.OpNegate:
			if !t.peek(0).IsNumber() {
				if nf, handled := vm.raise(t, "Operand must be a number."); !handled {
					return value.Nil, nf
				}
				frame = t.currentFrame()
				continue
			}
			t.push(value.Number(-t.pop().AsNumber()))

		case bytecode.OpJump:
			frame.ip += int(readShort(frame))

		case bytecode.OpJumpIfFalse:
			off := readShort(frame)
			if !t.peek(0).IsTruthy() {
				frame.ip += int(off)
			}

		case bytecode.OpLoop:
			frame.ip -= int(readShort(frame))

		case bytecode.OpNamedLoop:
			if nf, handled := vm.execNamedLoop(t, frame); !handled {
				return value.Nil, nf
			}
			frame = t.currentFrame()

		case bytecode.OpRangedLoopSetup:
			if nf, handled := vm.execRangedLoopSetup(t); !handled {
				return value.Nil, nf
			}
			frame = t.currentFrame()

		case bytecode.OpRangedLoop:
			vm.execRangedLoop(t, frame)

		case bytecode.OpLoopGuard:
			startOff := readShort(frame)
			outOff := readShort(frame)
			t.loopStack[t.loopCount] = Loop{
				frameIndex: t.frameCount - 1,
				stackTop:   t.stackTop,
				startIP:    frame.ip + int(startOff),
				outIP:      frame.ip + int(outOff),
			}
			t.loopCount++

		case bytecode.OpLoopGuardEnd:
			t.loopCount--

		case bytecode.OpLoopBreak:
			loop := t.loopStack[t.loopCount-1]
			popTryCatchWithin(t, loop.frameIndex, loop.startIP, loop.outIP)
			frame.ip = loop.outIP
			t.stackTop = loop.stackTop + 1
			t.closeUpvalues(loop.stackTop - 1)

		case bytecode.OpLoopContinue:
			loop := t.loopStack[t.loopCount-1]
			popTryCatchWithin(t, loop.frameIndex, loop.startIP, loop.outIP)
			frame.ip = loop.startIP
			t.stackTop = loop.stackTop
			t.closeUpvalues(loop.stackTop - 1)

		case bytecode.OpSwitch:
			off := readShort(frame)
			t.switchStack[t.switchCount] = Switch{
				frameIndex: t.frameCount - 1,
				stackTop:   t.stackTop - 1,
				startIP:    frame.ip,
				outIP:      frame.ip + int(off) + 3,
			}
			t.switchCount++

		case bytecode.OpSwitchCase:
			off := readShort(frame)
			candidate := t.pop()
			subject := t.peek(0)
			sw := &t.switchStack[t.switchCount-1]
			if value.Equal(subject, candidate) {
				sw.matched = true
			} else {
				frame.ip += int(off)
			}

		case bytecode.OpSwitchDefault:
			// Never emitted by the compiler (default bodies are guarded by
			// a plain OP_JUMP instead); kept so dispatch stays exhaustive.

		case bytecode.OpSwitchBreak:
			sw := t.switchStack[t.switchCount-1]
			t.switchCount--
			popTryCatchWithin(t, sw.frameIndex, sw.startIP, sw.outIP)
			frame.ip = sw.outIP
			t.stackTop = sw.stackTop
			t.closeUpvalues(sw.stackTop)

		case bytecode.OpSwitchEnd:
			backOff := readShort(frame)
			sw := &t.switchStack[t.switchCount-1]
			if backOff == 0 || sw.matched || sw.ranDefault {
				t.switchCount--
			} else {
				sw.ranDefault = true
				frame.ip -= int(backOff)
			}

		case bytecode.OpCall:
			argCount := int(readByte(frame))
			if res := vm.callValue(t, argCount); !res.ok {
				if nf, handled := vm.raise(t, res.msg); !handled {
					return value.Nil, nf
				}
			}
			frame = t.currentFrame()

		case bytecode.OpClosure:
			fn := chunk.Constants[readByte(frame)].AsObj().AsFunction()
			upvalues := make([]*value.ObjUpvalue, fn.UpvalueCount)
			vm.beginAssemblyLine()
			cl := vm.newClosure(t, fn, upvalues)
			vm.endAssemblyLine()
			t.push(value.FromObj(&cl.Obj))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := readByte(frame)
				index := readByte(frame)
				if isLocal != 0 {
					upvalues[i] = vm.captureUpvalue(t, &t.stack[frame.base+int(index)])
				} else {
					upvalues[i] = frame.closure.Upvalues[index]
				}
			}

		case bytecode.OpClass:
			name := chunk.Constants[readByte(frame)].AsObj().AsString()
			cls := vm.newClass(t, name, nil)
			t.push(value.FromObj(&cls.Obj))

		case bytecode.OpInherit:
			class := t.pop().AsObj().AsClass()
			super := t.peek(0)
			if !super.IsClass() {
				if nf, handled := vm.raise(t, "Superclass must be a class."); !handled {
					return value.Nil, nf
				}
				frame = t.currentFrame()
				continue
			}
			superClass := super.AsObj().AsClass()
			class.Super = superClass
			class.Methods.AddAll(superClass.Methods)

		case bytecode.OpSuper:
			class := t.pop().AsObj().AsClass()
			base := t.pop()
			name := chunk.Constants[readByte(frame)].AsObj().AsString()
			v, ok := vm.classBoundMethod(t, base, class, name)
			if !ok {
				if nf, handled := vm.raise(t, "Cannot access method '"+name.Chars+"'."); !handled {
					return value.Nil, nf
				}
				frame = t.currentFrame()
				continue
			}
			t.push(v)

		case bytecode.OpMethod:
			readByte(frame) // name_cidx; defineMethod takes the name from the closure
			vm.defineMethod(t)

		case bytecode.OpTryCatch:
			catchOff := readShort(frame)
			outOff := readShort(frame)
			hasParam := readByte(frame)
			t.tryCatchStack[t.tryCatchCount] = TryCatch{
				frameIndex:    t.frameCount - 1,
				stackTop:      t.stackTop,
				startIP:       frame.ip,
				catchIP:       frame.ip + int(catchOff),
				outIP:         frame.ip + int(outOff),
				hasCatchParam: hasParam != 0,
			}
			t.tryCatchCount++

		case bytecode.OpTryCatchTryEnd:
			t.tryCatchCount--
			frame.ip = t.tryCatchStack[t.tryCatchCount].outIP

		case bytecode.OpThrow:
			thrown := t.pop()
			if nf, handled := vm.throwValue(t, thrown); !handled {
				return value.Nil, nf
			}
			frame = t.currentFrame()

		case bytecode.OpImport:
			module := chunk.Constants[readByte(frame)].AsObj().AsModule()
			if !module.Evaluated {
				vm.adoptFunction(module.Function)
				t.push(value.FromObj(&module.Function.Obj))
				vm.beginAssemblyLine()
				closure := vm.newClosure(t, module.Function, nil)
				vm.endAssemblyLine()
				t.stack[t.stackTop-1] = value.FromObj(&closure.Obj)
				if res := vm.callModuleFrame(t, module); !res.ok {
					if nf, handled := vm.raise(t, res.msg); !handled {
						return value.Nil, nf
					}
				}
				frame = t.currentFrame()
			} else {
				t.push(vm.moduleExportsInstance(t, module))
			}

		case bytecode.OpExport:
			name := chunk.Constants[readByte(frame)].AsObj().AsString()
			if frame.kind != frameModule {
				if nf, handled := vm.raise(t, "Export outside of a module."); !handled {
					return value.Nil, nf
				}
				frame = t.currentFrame()
				continue
			}
			if frame.module.Exports.Set(name, t.peek(0)) {
				t.pop()
			} else {
				if nf, handled := vm.raise(t, "Already exporting member with name '"+name.Chars+"'."); !handled {
					return value.Nil, nf
				}
				frame = t.currentFrame()
			}

		case bytecode.OpPop:
			t.pop()

		case bytecode.OpDup:
			t.push(t.peek(0))

		case bytecode.OpPrint:
			vm.Stdout.WriteString(value.Stringify(t.pop()))
			vm.Stdout.WriteString("\n")

		case bytecode.OpReturn:
			result := t.pop()
			t.closeUpvalues(frame.base)

			if frame.kind == frameModule {
				frame.module.Evaluated = true
				result = vm.moduleExportsInstance(t, frame.module)
			}

			for t.loopCount > 0 && t.loopStack[t.loopCount-1].frameIndex == t.frameCount-1 {
				t.loopCount--
			}
			for t.tryCatchCount > 0 && t.tryCatchStack[t.tryCatchCount-1].frameIndex == t.frameCount-1 {
				t.tryCatchCount--
			}
			for t.switchCount > 0 && t.switchStack[t.switchCount-1].frameIndex == t.frameCount-1 {
				t.switchCount--
			}

			t.frameCount--
			if t.frameCount == 0 {
				return result, nil
			}
			t.stackTop = frame.base
			t.push(result)
			frame = t.currentFrame()

		default:
			if nf, handled := vm.raise(t, "Unknown opcode."); !handled {
				return value.Nil, nf
			}
			frame = t.currentFrame()
		}
	}
}

func readByte(frame *CallFrame) byte {
	b := frame.chunk().Code[frame.ip]
	frame.ip++
	return b
}

func readShort(frame *CallFrame) uint16 {
	hi := frame.chunk().Code[frame.ip]
	lo := frame.chunk().Code[frame.ip+1]
	frame.ip += 2
	return uint16(hi)<<8 | uint16(lo)
}

// moduleExportsInstance synthesizes the plain Object instance OP_IMPORT /
// OP_RETURN hand back for a module: a fresh Instance whose properties
// mirror the module's cached Exports table, so each import site gets its
// own object (mutating one importer's view never affects another's) while
// all of them read the one cached evaluation.
func (vm *VM) moduleExportsInstance(t *Thread, module *value.ObjModule) value.Value {
	inst := vm.newInstance(t, vm.classes["Exports"])
	inst.Properties.AddAll(module.Exports)
	return value.FromObj(&inst.Obj)
}
