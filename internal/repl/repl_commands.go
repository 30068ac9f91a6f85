package repl

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// handleCommand processes a :command line. It returns true when the
// REPL should exit.
func (r *REPL) handleCommand(cmd string, out io.Writer) bool {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case ":help", ":h":
		r.printHelp(out)

	case ":quit", ":q", ":exit":
		fmt.Fprintln(out, green("Goodbye!"))
		return true

	case ":flags":
		if len(parts) < 2 {
			fmt.Fprintf(out, "flags: %s\n", cyan(strings.Join(r.session.Flags(), " ")))
			return false
		}
		r.session.SetFlags(parts[1:])
		r.awaitIdle()
		fmt.Fprintf(out, "flags set to %s\n", cyan(strings.Join(parts[1:], " ")))

	case ":header":
		r.showHeader(out)

	case ":output":
		if chunk := r.session.CompilerOutput(); chunk != "" {
			fmt.Fprint(out, chunk)
		} else {
			fmt.Fprintln(out, dim("(no pending compiler output)"))
		}

	case ":cleanup":
		captured, err := r.session.Cleanup(r.cfg.CaptureStdout)
		if err != nil {
			fmt.Fprintf(out, "%s %v\n", red("ERROR"), err)
			return false
		}
		if captured != "" {
			fmt.Fprint(out, captured)
		}
		r.shownHeader = "#pragma once\n"
		fmt.Fprintln(out, green("all modules unloaded, header reset"))

	default:
		fmt.Fprintf(out, "%s: unknown command '%s'\n", red("Error"), parts[0])
		r.printHelp(out)
	}
	return false
}

// showHeader prints the growth of the persistent header since it was
// last shown, as a colored diff.
func (r *REPL) showHeader(out io.Writer) {
	data, err := os.ReadFile(r.session.HeaderPath())
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", red("ERROR"), err)
		return
	}
	current := string(data)
	if current == r.shownHeader {
		fmt.Fprintln(out, dim("(header unchanged)"))
		return
	}
	fmt.Fprint(out, formatHeaderDiff(r.shownHeader, current))
	r.shownHeader = current
}

func (r *REPL) printHelp(out io.Writer) {
	fmt.Fprintln(out, bold("Commands:"))
	fmt.Fprintln(out, "  :help, :h          show this help")
	fmt.Fprintln(out, "  :flags [f ...]     show or replace the compiler flag set")
	fmt.Fprintln(out, "  :header            show persistent header changes since last shown")
	fmt.Fprintln(out, "  :output            print pending compiler output")
	fmt.Fprintln(out, "  :cleanup           unload all modules (reverse order), reset header")
	fmt.Fprintln(out, "  :quit, :q          unload everything and exit")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Anything else is compiled as a C++ fragment and, on success,")
	fmt.Fprintln(out, "loaded into this process. Declarations persist across fragments;")
	fmt.Fprintln(out, "statements run once at load time.")
}
