// Package session ties the engine together: one Session owns the
// working source, the persistent header, the inspector, the build
// driver and the loaded-module stack for one interactive run.
//
// The session is driven by a single front-end thread. Compile returns
// immediately and the build runs on a worker; the front-end polls
// IsCompiling and TryGetExitStatus each frame and must not call any
// mutating method while a build is in flight. Protocol misuse panics:
// it is a bug in the caller, not a user condition.
//
// SetFlags reconfigures the parser and the next build only; modules
// already loaded stay loaded.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/sunholo/crepl/internal/build"
	"github.com/sunholo/crepl/internal/dynlib"
	"github.com/sunholo/crepl/internal/emit"
	creplerrors "github.com/sunholo/crepl/internal/errors"
	"github.com/sunholo/crepl/internal/inspect"
)

// headerSeed is the initial (and post-cleanup) persistent header.
const headerSeed = "#pragma once\n"

// state is the session's position in its three-state protocol.
type state int

const (
	// stateIdle accepts Compile, Cleanup and SetFlags.
	stateIdle state = iota
	// stateCompiling covers an in-flight build (or reconfigure) and a
	// finished build whose exit has not been harvested yet.
	stateCompiling
	// stateAwaitingLoad holds a harvested successful build; it is left
	// only by Load or by compiling again.
	stateAwaitingLoad
)

// Options configure a new session.
type Options struct {
	Dir      string   // working directory; created if missing
	Base     string   // base name for <base>.cpp / <base>.hpp / modules
	Compiler string   // compiler binary; build.DefaultCompiler if empty
	Flags    []string // initial user flag set
}

// Session is the single public object of the engine.
type Session struct {
	dir   string
	base  string
	flags []string

	insp    *inspect.Inspector
	counter *emit.Counter
	out     *build.Buffer
	driver  *build.Driver
	mods    *dynlib.Registry

	compiling atomic.Bool
	pending   bool // accepted compile not yet harvested
	lastOK    bool
	exit      chan int
}

// New creates the working source and the persistent header (seeded
// with #pragma once) and parses the empty source once.
func New(opts Options) (*Session, error) {
	if opts.Base == "" {
		opts.Base = "fragment"
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, creplerrors.Wrap(creplerrors.SES001, "session", err)
	}
	s := &Session{
		dir:     opts.Dir,
		base:    opts.Base,
		flags:   append([]string(nil), opts.Flags...),
		counter: &emit.Counter{},
		out:     &build.Buffer{},
		exit:    make(chan int, 1),
	}
	s.driver = build.NewDriver(opts.Compiler, s.out)
	s.mods = dynlib.NewRegistry(s.dir, s.base)
	if err := os.WriteFile(s.HeaderPath(), []byte(headerSeed), 0o644); err != nil {
		return nil, creplerrors.Wrap(creplerrors.SES001, "session", err)
	}
	insp, err := inspect.New(s.SourcePath(), s.flags)
	if err != nil {
		return nil, creplerrors.Wrap(creplerrors.PAR001, "parse", err)
	}
	s.insp = insp
	return s, nil
}

// SourcePath is the working source file of the session.
func (s *Session) SourcePath() string { return filepath.Join(s.dir, s.base+".cpp") }

// HeaderPath is the persistent header of the session.
func (s *Session) HeaderPath() string { return filepath.Join(s.dir, s.base+".hpp") }

// Flags returns the current user flag set.
func (s *Session) Flags() []string { return append([]string(nil), s.flags...) }

// ModuleCount returns the number of loaded modules.
func (s *Session) ModuleCount() int { return s.mods.Count() }

// LastCompileOK reports whether the most recently harvested compile
// succeeded and has not been loaded yet.
func (s *Session) LastCompileOK() bool { return s.lastOK }

// CompilerOutput drains and returns the diagnostics accumulated since
// the previous drain.
func (s *Session) CompilerOutput() string { return s.out.Drain() }

// IsCompiling reports whether a build (or a flag reconfigure) is in
// flight.
func (s *Session) IsCompiling() bool { return s.compiling.Load() }

// Compile accepts one fragment and starts an asynchronous build.
// The empty fragment is rejected without starting anything. Compiling
// again over an un-loaded successful build discards that build.
func (s *Session) Compile(code string) bool {
	if s.state() == stateCompiling {
		panic("session: Compile while a build is outstanding")
	}
	if code == "" {
		return false
	}
	code = strings.ReplaceAll(code, "\r", "\n")

	// The raw fragment is written behind an include of the persistent
	// header so the reparse sees every prior declaration.
	raw := s.includeLine() + code
	if err := os.WriteFile(s.SourcePath(), []byte(raw), 0o644); err != nil {
		glog.Errorf("session: write %s: %v", s.SourcePath(), err)
		return false
	}

	s.lastOK = false
	s.out.Reset()
	s.pending = true
	s.compiling.Store(true)
	go func() {
		// Reparsing takes a while; it overlaps with build start-up by
		// living on the worker.
		if err := s.insp.Reparse(); err != nil {
			glog.Errorf("session: reparse: %v", err)
		}
		gen := emit.NewGenerator(s.insp.Blocks(), s.insp.Content(), s.counter)
		src := gen.Source(s.includeLine(), "")
		if err := os.WriteFile(s.SourcePath(), []byte(src), 0o644); err != nil {
			glog.Errorf("session: write %s: %v", s.SourcePath(), err)
		}
		exit := s.driver.Run(s.flags, s.SourcePath(), s.mods.BuiltPath())
		s.compiling.Store(false)
		s.exit <- exit
	}()
	return true
}

// TryGetExitStatus harvests the exit code of a finished build. It
// returns true exactly once per accepted Compile. On success the
// fragment's persistent declarations are appended to the header; on
// failure the header is untouched.
func (s *Session) TryGetExitStatus() (int, bool) {
	if !s.pending {
		return 0, false
	}
	select {
	case code := <-s.exit:
		s.pending = false
		s.lastOK = code == 0
		if s.lastOK {
			s.extendHeader()
		} else {
			s.out.Append(fmt.Sprintf("\nERROR: compiler exited with status %d\n", code))
		}
		return code, true
	default:
		return 0, false
	}
}

// Load copies the built module aside and loads it, running the
// fragment's static initializers inline. Preconditions: no build in
// flight and the last harvested compile succeeded; calling Load twice
// without a successful Compile in between is a programming error.
func (s *Session) Load(redirectStdout bool) (string, error) {
	if s.state() == stateCompiling {
		panic("session: Load while a compile is outstanding")
	}
	if s.state() != stateAwaitingLoad {
		panic("session: Load without a successful compile")
	}
	s.lastOK = false
	return s.mods.CopyAndLoad(redirectStdout)
}

// Cleanup unloads every module in reverse order of loading, deletes
// their files and resets the persistent header. It is only valid in
// the Idle state: a harvested successful build must be loaded (or
// overwritten by another Compile) first.
func (s *Session) Cleanup(redirectStdout bool) (string, error) {
	s.requireIdle("Cleanup")
	out, err := s.mods.Cleanup(redirectStdout)
	s.lastOK = false
	if werr := os.WriteFile(s.HeaderPath(), []byte(headerSeed), 0o644); werr != nil && err == nil {
		err = creplerrors.Wrap(creplerrors.SES002, "session", werr)
	}
	return out, err
}

// SetFlags replaces the user flag set and reconfigures the parser on a
// worker (the old translation unit is unusable under new flags). Like
// Cleanup it is only valid in the Idle state.
func (s *Session) SetFlags(flags []string) {
	s.requireIdle("SetFlags")
	s.flags = append([]string(nil), flags...)
	s.compiling.Store(true)
	go func() {
		if err := s.insp.SetFlags(s.flags); err != nil {
			glog.Errorf("session: reconfigure: %v", err)
		}
		s.compiling.Store(false)
	}()
}

// Close unloads everything and disposes the parser. Unlike Cleanup it
// is session teardown: a successful build still awaiting load is
// discarded rather than treated as caller error.
func (s *Session) Close() error {
	s.lastOK = false
	_, err := s.Cleanup(false)
	s.insp.Dispose()
	return err
}

func (s *Session) includeLine() string {
	return fmt.Sprintf("#include %q\n", s.base+".hpp")
}

func (s *Session) extendHeader() {
	gen := emit.NewGenerator(s.insp.Blocks(), s.insp.Content(), s.counter)
	text := gen.Header(s.base)
	if text == "" {
		return
	}
	f, err := os.OpenFile(s.HeaderPath(), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		glog.Errorf("session: open header: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		glog.Errorf("session: extend header: %v", err)
	}
	glog.V(1).Infof("session: header extended by %d bytes", len(text))
}

func (s *Session) state() state {
	if s.IsCompiling() || s.pending {
		return stateCompiling
	}
	if s.lastOK {
		return stateAwaitingLoad
	}
	return stateIdle
}

func (s *Session) requireIdle(op string) {
	switch s.state() {
	case stateCompiling:
		panic("session: " + op + " while a compile is outstanding")
	case stateAwaitingLoad:
		panic("session: " + op + " with a successful build awaiting load")
	}
}
