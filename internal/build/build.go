// Package build drives the external compiler. One driver runs at most
// one build at a time; its merged stdout/stderr is streamed into a
// shared buffer so the front-end can show diagnostics live.
package build

import (
	"fmt"
	"os/exec"
	"runtime"
	"sync/atomic"

	"github.com/golang/glog"
)

// DefaultCompiler is used when the config names none. It must be a
// clang front-end: the deduced types written into the persistent header
// come from libclang and have to match the compiler's own deduction.
const DefaultCompiler = "clang++"

// sharedFlags are always appended to the user flag set: build a shared
// module, hide everything not explicitly exported, PIC, and fail the
// link on unresolved symbols instead of deferring to load time.
func sharedFlags() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"-shared", "-fvisibility=hidden", "-fPIC", "-Wl,-undefined,error", "-Wl,-flat_namespace"}
	case "windows":
		return []string{"-shared", "-fvisibility=hidden"}
	default:
		return []string{"-shared", "-fvisibility=hidden", "-fPIC", "-Wl,--no-undefined"}
	}
}

// Driver spawns the compiler asynchronously and reports its exit.
type Driver struct {
	compiler string
	out      *Buffer
	running  atomic.Bool
	done     chan int
}

// NewDriver returns a driver writing diagnostics to out.
func NewDriver(compiler string, out *Buffer) *Driver {
	if compiler == "" {
		compiler = DefaultCompiler
	}
	return &Driver{compiler: compiler, out: out}
}

// Output returns the shared diagnostics buffer.
func (d *Driver) Output() *Buffer { return d.out }

// Start spawns the compiler on sourcePath producing outputPath.
// Submitting a build while one is in flight is a programming error.
func (d *Driver) Start(flags []string, sourcePath, outputPath string) {
	if !d.running.CompareAndSwap(false, true) {
		panic("build: compile submitted while a build is in flight")
	}
	d.done = make(chan int, 1)
	args := append(append([]string(nil), flags...), sharedFlags()...)
	args = append(args, sourcePath, "-o", outputPath)
	go func() {
		code := d.run(args)
		d.done <- code
		d.running.Store(false)
	}()
}

// Run builds synchronously and returns the exit code. It reuses the
// same streaming path as Start.
func (d *Driver) Run(flags []string, sourcePath, outputPath string) int {
	d.Start(flags, sourcePath, outputPath)
	return <-d.done
}

// InFlight reports whether a build is outstanding.
func (d *Driver) InFlight() bool { return d.running.Load() }

// TryExit consumes the exit code of a finished build. It returns false
// while the build is still in flight or when no build was started.
func (d *Driver) TryExit() (int, bool) {
	if d.done == nil {
		return 0, false
	}
	select {
	case code := <-d.done:
		d.done = nil
		return code, true
	default:
		return 0, false
	}
}

func (d *Driver) run(args []string) int {
	glog.V(1).Infof("build: %s %v", d.compiler, args)
	cmd := exec.Command(d.compiler, args...)
	// stdout and stderr are merged into the session buffer. Both are the
	// same writer, so os/exec gives the child one pipe for the two and a
	// single copier appends chunks in the order the child wrote them.
	cmd.Stdout = d.out
	cmd.Stderr = d.out
	err := cmd.Run()
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		code := ee.ExitCode()
		if code < 0 {
			// Killed by a signal; surface it textually, the code stays
			// non-zero for the caller.
			d.out.Append(fmt.Sprintf("\ncompiler %s\n", ee.ProcessState.String()))
			return 128
		}
		return code
	}
	// The compiler could not be spawned at all (not found, not
	// executable). Report through the same stream the UI already shows.
	d.out.Append(fmt.Sprintf("error: cannot run %s: %v\n", d.compiler, err))
	return 127
}
