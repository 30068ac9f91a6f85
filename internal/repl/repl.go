// Package repl is the interactive front-end of the engine: it reads
// C++ fragments, drives the session through its compile/poll/load
// cycle and prints diagnostics and captured output.
package repl

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/peterh/liner"

	"github.com/sunholo/crepl/internal/config"
	"github.com/sunholo/crepl/internal/session"
)

// Color functions for pretty output
var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
)

// pollInterval is how often the loop drains compiler output while a
// build is in flight.
const pollInterval = 50 * time.Millisecond

// REPL drives one session interactively.
type REPL struct {
	cfg     *config.Config
	session *session.Session
	version string

	// shownHeader is the header contents at the last :header, for the
	// incremental diff view.
	shownHeader string
}

// New creates a session from cfg and wraps it in a REPL.
func New(cfg *config.Config, version string) (*REPL, error) {
	s, err := session.New(session.Options{
		Dir:      cfg.WorkDir,
		Base:     cfg.BaseName,
		Compiler: cfg.Compiler,
		Flags:    cfg.Flags,
	})
	if err != nil {
		return nil, err
	}
	if version == "" {
		version = "dev"
	}
	return &REPL{cfg: cfg, session: s, version: version, shownHeader: "#pragma once\n"}, nil
}

// Session exposes the underlying session (used by the run command and
// by tests).
func (r *REPL) Session() *session.Session { return r.session }

// Start begins the interactive loop and blocks until :quit or EOF.
func (r *REPL) Start(out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetMultiLineMode(true)

	historyFile := filepath.Join(os.TempDir(), ".crepl_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f) // history is optional
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
		r.session.Close()
	}()

	fmt.Fprintf(out, "%s %s — interactive C++\n", bold("crepl"), r.version)
	fmt.Fprintf(out, "%s\n", dim("Type :help for commands. Fragments ending in \\ continue on the next line."))

	for {
		input, err := r.readFragment(line)
		if err == liner.ErrPromptAborted {
			fmt.Fprintln(out, dim("(aborted)"))
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, ":") {
			if quit := r.handleCommand(input, out); quit {
				return nil
			}
			continue
		}
		r.submit(input, out)
	}
}

// readFragment reads one fragment; a trailing backslash continues it.
func (r *REPL) readFragment(line *liner.State) (string, error) {
	prompt := fmt.Sprintf("cpp[%d]> ", r.session.ModuleCount())
	var parts []string
	for {
		l, err := line.Prompt(prompt)
		if err != nil {
			return "", err
		}
		if strings.HasSuffix(l, "\\") {
			parts = append(parts, strings.TrimSuffix(l, "\\"))
			prompt = "   ...> "
			continue
		}
		parts = append(parts, l)
		return strings.Join(parts, "\n"), nil
	}
}

// submit runs one fragment through compile → poll → load.
func (r *REPL) submit(code string, out io.Writer) {
	if !r.session.Compile(code) {
		fmt.Fprintln(out, yellow("nothing to compile"))
		return
	}
	exit := r.awaitExit(out)
	if exit != 0 {
		fmt.Fprintf(out, "%s exit status %d\n", red("ERROR"), exit)
		return
	}
	captured, err := r.session.Load(r.cfg.CaptureStdout)
	if err != nil {
		fmt.Fprintf(out, "%s %v\n", red("ERROR"), err)
		return
	}
	if captured != "" {
		fmt.Fprint(out, captured)
		if !strings.HasSuffix(captured, "\n") {
			fmt.Fprintln(out)
		}
	}
	fmt.Fprintf(out, "%s module %d loaded\n", green("ok"), r.session.ModuleCount())
}

// awaitExit drains diagnostics while the build runs and returns its
// exit status.
func (r *REPL) awaitExit(out io.Writer) int {
	for {
		if chunk := r.session.CompilerOutput(); chunk != "" {
			fmt.Fprint(out, chunk)
		}
		if code, done := r.session.TryGetExitStatus(); done {
			if chunk := r.session.CompilerOutput(); chunk != "" {
				fmt.Fprint(out, chunk)
			}
			return code
		}
		time.Sleep(pollInterval)
	}
}

// awaitIdle waits for an async reconfigure to finish.
func (r *REPL) awaitIdle() {
	for r.session.IsCompiling() {
		time.Sleep(pollInterval)
	}
}
