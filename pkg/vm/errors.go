package vm

import (
	"fmt"
	"strings"
)

// StackFrame is one entry of a thrown error's captured call stack: which
// function was running, and where in its source it had reached.
type StackFrame struct {
	Name       string // function/method name, "lambda function" when anonymous, "file <path>" for a module body, or "script"
	SourceLine int    // source line the failing instruction was tagged with
	IP         int    // instruction offset within the frame's chunk, for debugging
}

// RuntimeError is a language-level exception that escaped every try/catch
// in its thread: the uncaught value plus the stack captured at the throw
// site, formatted for the CLI's non-zero exit path.
type RuntimeError struct {
	Message    string
	StackTrace []StackFrame
}

func (e *RuntimeError) Error() string {
	return e.Message + formatStackTrace(e.StackTrace)
}

// formatStackTrace renders a captured call stack, innermost frame first,
// the way a thrown Error's "stack" property and an uncaught RuntimeError's
// CLI output both present it.
func formatStackTrace(stack []StackFrame) string {
	var b strings.Builder
	for _, frame := range stack {
		b.WriteString(fmt.Sprintf("\n  at %s", frame.Name))
		if frame.SourceLine > 0 {
			b.WriteString(fmt.Sprintf(" [line %d]", frame.SourceLine))
		}
	}
	return b.String()
}

func newRuntimeError(message string, stack []StackFrame) *RuntimeError {
	return &RuntimeError{Message: message, StackTrace: stack}
}
