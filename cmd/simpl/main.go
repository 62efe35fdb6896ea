// Command simpl runs the language's REPL or a source file.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/saymow/simpl-sub000/pkg/compiler"
	"github.com/saymow/simpl-sub000/pkg/corelib"
	"github.com/saymow/simpl-sub000/pkg/vm"
)

const version = "0.1.0"

// Exit codes match the reference interpreter's main.c exactly: a failed
// compile exits 65, an uncaught runtime error exits 70.
const (
	exitCompileError = 65
	exitRuntimeError = 70
)

var (
	showVersion = flag.BoolP("version", "v", false, "print version and exit")
	showHelp    = flag.BoolP("help", "h", false, "print usage and exit")
	debugFlag   = flag.BoolP("debug", "d", false, "pause in the interactive debugger before each instruction")
)

func main() {
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		fmt.Printf("simpl %s\n", version)
		return
	}

	args := flag.Args()
	switch {
	case len(args) == 0:
		runREPL()
	default:
		runFile(args[0])
	}
}

func printUsage() {
	fmt.Println("simpl - a small dynamically-typed scripting language")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  simpl                 start the interactive REPL")
	fmt.Println("  simpl <file>          run a source file")
	fmt.Println("  simpl --version       print the version")
	fmt.Println("  simpl --help          print this message")
	fmt.Println("  simpl --debug <file>  run a file, pausing in the interactive debugger")
}

func newVM() *vm.VM {
	v := vm.New(os.Stdout)
	v.Stdin = os.Stdin
	if *debugFlag {
		d := vm.NewDebugger(os.Stdin, os.Stdout)
		d.Enable()
		v.Debugger = d
	}
	if err := corelib.Install(v); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("fatal: %v", err))
		os.Exit(1)
	}
	return v
}

func runFile(path string) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error reading file: %v", err))
		os.Exit(1)
	}

	fn, err := compiler.Compile(string(source), path)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("%v", err))
		os.Exit(exitCompileError)
	}

	v := newVM()
	if err := v.Interpret(fn); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("%v", err))
		os.Exit(exitRuntimeError)
	}
}

// runREPL drives an interactive session. Each line is compiled and run
// against the same *vm.VM, so globals declared on one line are visible on
// the next — matching the reference's one-VM-for-the-process repl(), just
// with line editing and history via liner instead of a bare fgets loop.
func runREPL() {
	fmt.Printf("simpl %s\n", version)
	fmt.Println("Press Ctrl+D to exit.")

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	v := newVM()
	historyPath := replHistoryPath()
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			break
		}
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		fn, err := compiler.Compile(input, "<repl>")
		if err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("%v", err))
			continue
		}
		if err := v.Interpret(fn); err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("%v", err))
		}
	}

	if f, err := os.Create(historyPath); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
}

func replHistoryPath() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".simpl_history"
	}
	return dir + "/.simpl_history"
}
