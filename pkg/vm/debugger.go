package vm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/saymow/simpl-sub000/pkg/bytecode"
	"github.com/saymow/simpl-sub000/pkg/value"
)

// Debugger provides interactive breakpoint/step debugging over a Thread's
// dispatch loop. Adapted from the teacher's pkg/vm/debugger.go to this
// VM's frame/chunk layout (one *value.Chunk per function, not a single
// flat bytecode.Bytecode, and a per-Thread frame/value stack instead of a
// package-level one) — ambient dev tooling, not a spec feature, gated
// behind the simpl CLI's --debug flag.
type Debugger struct {
	thread      *Thread
	breakpoints map[int]bool // chunk-relative instruction offsets
	stepMode    bool
	enabled     bool
	in          io.Reader
	out         io.Writer
}

// NewDebugger creates a debugger with no thread bound yet; AttachDebugger
// binds it once the thread exists. It starts disabled; Enable must be
// called before run's dispatch loop consults ShouldPause.
func NewDebugger(in io.Reader, out io.Writer) *Debugger {
	return &Debugger{breakpoints: make(map[int]bool), in: in, out: out}
}

func (d *Debugger) Enable()  { d.enabled = true }
func (d *Debugger) Disable() { d.enabled = false }

func (d *Debugger) AddBreakpoint(ip int)    { d.breakpoints[ip] = true }
func (d *Debugger) RemoveBreakpoint(ip int) { delete(d.breakpoints, ip) }
func (d *Debugger) ClearBreakpoints()       { d.breakpoints = make(map[int]bool) }

// ShouldPause reports whether the dispatch loop should hand control to
// InteractivePrompt before executing the current frame's next instruction.
func (d *Debugger) ShouldPause() bool {
	if !d.enabled {
		return false
	}
	if d.stepMode {
		return true
	}
	frame := d.thread.currentFrame()
	return d.breakpoints[frame.ip]
}

func (d *Debugger) showCurrentInstruction() {
	frame := d.thread.currentFrame()
	chunk := frame.chunk()
	if frame.ip >= len(chunk.Code) {
		fmt.Fprintln(d.out, "no current instruction")
		return
	}
	var b strings.Builder
	bytecode.DisassembleInstruction(&b, chunk, frame.ip)
	fmt.Fprint(d.out, b.String())
}

func (d *Debugger) showStack() {
	t := d.thread
	fmt.Fprintln(d.out, "stack (top to bottom):")
	if t.stackTop == 0 {
		fmt.Fprintln(d.out, "  (empty)")
		return
	}
	for i := t.stackTop - 1; i >= 0; i-- {
		fmt.Fprintf(d.out, "  [%d] %s\n", i, value.Stringify(t.stack[i]))
	}
}

func (d *Debugger) showLocals() {
	t := d.thread
	frame := t.currentFrame()
	fmt.Fprintln(d.out, "locals (this frame's stack slots):")
	if t.stackTop <= frame.base {
		fmt.Fprintln(d.out, "  (none)")
		return
	}
	for i := frame.base; i < t.stackTop; i++ {
		fmt.Fprintf(d.out, "  [%d] %s\n", i-frame.base, value.Stringify(t.stack[i]))
	}
}

func (d *Debugger) showGlobals() {
	fmt.Fprintln(d.out, "globals:")
	empty := true
	d.thread.vm.Globals.Each(func(key *value.ObjString, v value.Value) {
		empty = false
		fmt.Fprintf(d.out, "  %s = %s\n", key.Chars, value.Stringify(v))
	})
	if empty {
		fmt.Fprintln(d.out, "  (none)")
	}
}

func (d *Debugger) showCallStack() {
	t := d.thread
	fmt.Fprintln(d.out, "call stack (top to bottom):")
	if t.frameCount == 0 {
		fmt.Fprintln(d.out, "  (empty)")
		return
	}
	for i := t.frameCount - 1; i >= 0; i-- {
		f := &t.frames[i]
		fmt.Fprintf(d.out, "  %s [ip=%d]\n", f.name(), f.ip)
	}
}

func (d *Debugger) listInstructions() {
	frame := d.thread.currentFrame()
	chunk := frame.chunk()
	var b strings.Builder
	offset := 0
	for offset < len(chunk.Code) {
		marker := "  "
		if offset == frame.ip {
			marker = "->"
		} else if d.breakpoints[offset] {
			marker = "* "
		}
		fmt.Fprint(&b, marker)
		offset = bytecode.DisassembleInstruction(&b, chunk, offset)
	}
	fmt.Fprint(d.out, b.String())
}

// InteractivePrompt is called by the dispatch loop when ShouldPause
// returns true. It blocks reading commands from d.in until one of them
// resumes execution (continue/step/next) or aborts it (quit).
func (d *Debugger) InteractivePrompt() (resume bool) {
	scanner := bufio.NewScanner(d.in)

	fmt.Fprintln(d.out, "\n=== paused ===")
	d.showCurrentInstruction()

	for {
		fmt.Fprint(d.out, "debug> ")
		if !scanner.Scan() {
			return false
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		switch parts[0] {
		case "help", "h", "?":
			d.printHelp()
		case "continue", "c":
			d.stepMode = false
			return true
		case "step", "s", "next", "n":
			d.stepMode = true
			return true
		case "stack", "st":
			d.showStack()
		case "locals", "l":
			d.showLocals()
		case "globals", "g":
			d.showGlobals()
		case "callstack", "cs":
			d.showCallStack()
		case "instruction", "i":
			d.showCurrentInstruction()
		case "list", "ls":
			d.listInstructions()
		case "breakpoint", "b":
			if len(parts) < 2 {
				fmt.Fprintln(d.out, "usage: breakpoint <offset>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Fprintln(d.out, "invalid offset")
				continue
			}
			d.AddBreakpoint(ip)
			fmt.Fprintf(d.out, "breakpoint set at %d\n", ip)
		case "delete", "d":
			if len(parts) < 2 {
				fmt.Fprintln(d.out, "usage: delete <offset>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Fprintln(d.out, "invalid offset")
				continue
			}
			d.RemoveBreakpoint(ip)
			fmt.Fprintf(d.out, "breakpoint removed at %d\n", ip)
		case "quit", "q":
			return false
		default:
			fmt.Fprintf(d.out, "unknown command %q (type 'help')\n", parts[0])
		}
	}
}

func (d *Debugger) printHelp() {
	fmt.Fprintln(d.out, "commands:")
	fmt.Fprintln(d.out, "  help, h, ?        show this help")
	fmt.Fprintln(d.out, "  continue, c       resume until next breakpoint")
	fmt.Fprintln(d.out, "  step, s, next, n  execute one instruction")
	fmt.Fprintln(d.out, "  stack, st         show the value stack")
	fmt.Fprintln(d.out, "  locals, l         show the current frame's locals")
	fmt.Fprintln(d.out, "  globals, g        show global variables")
	fmt.Fprintln(d.out, "  callstack, cs     show the call stack")
	fmt.Fprintln(d.out, "  instruction, i    show the current instruction")
	fmt.Fprintln(d.out, "  list, ls          list the current chunk's instructions")
	fmt.Fprintln(d.out, "  breakpoint, b <n> set a breakpoint at offset n")
	fmt.Fprintln(d.out, "  delete, d <n>     remove the breakpoint at offset n")
	fmt.Fprintln(d.out, "  quit, q           abort execution")
}
