// Package dynlib manages the chain of built modules: copy each fresh
// build to a unique name, load it with global symbol visibility so
// later modules resolve against earlier ones, and unwind the chain in
// strictly reverse order on cleanup.
package dynlib

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/golang/glog"
)

// Module is one loaded fragment module.
type Module struct {
	Path   string
	Handle uintptr
}

// Registry owns the loaded-module stack of a session.
type Registry struct {
	dir         string
	base        string
	captureFile string
	mods        []Module

	// seams for tests; the platform files install the real loaders
	open  func(path string) (uintptr, error)
	close func(handle uintptr) error
}

// NewRegistry returns an empty registry for modules named
// <base>_<i><ext> under dir. Captured stdout goes to <base>_stdout.txt.
func NewRegistry(dir, base string) *Registry {
	return &Registry{
		dir:         dir,
		base:        base,
		captureFile: filepath.Join(dir, base+"_stdout.txt"),
		open:        dlopen,
		close:       dlclose,
	}
}

// Ext is the shared-module extension for the host platform.
func Ext() string {
	if runtime.GOOS == "windows" {
		return ".dll"
	}
	return ".so"
}

// BuiltPath is where the compiler writes each build before it is
// copied aside for loading.
func (r *Registry) BuiltPath() string {
	return filepath.Join(r.dir, r.base+Ext())
}

// Count returns the number of loaded modules.
func (r *Registry) Count() int { return len(r.mods) }

// Modules returns the load-ordered module list.
func (r *Registry) Modules() []Module { return r.mods }

// CopyAndLoad copies the freshly built module to a unique name, loads
// it (running the fragment's static initializers inline) and pushes it
// on the stack. When redirect is set, anything the initializers write
// to stdout is captured and returned.
//
// A failed load is fatal: a missing symbol at this point means the
// generated header and the loaded state have diverged, and continuing
// would compound the divergence.
func (r *Registry) CopyAndLoad(redirect bool) (string, error) {
	src := r.BuiltPath()
	dst := filepath.Join(r.dir, fmt.Sprintf("%s_%d%s", r.base, len(r.mods), Ext()))
	if err := copyFile(src, dst); err != nil {
		return "", fmt.Errorf("dynlib: copy %s: %w", src, err)
	}

	var handle uintptr
	load := func() error {
		h, err := r.open(dst)
		handle = h
		return err
	}

	out, err := r.withCapture(redirect, load)
	if err != nil {
		glog.Fatalf("dynlib: load %s: %v", dst, err)
	}
	r.mods = append(r.mods, Module{Path: dst, Handle: handle})
	glog.V(1).Infof("dynlib: loaded %s (%d modules)", dst, len(r.mods))
	return out, nil
}

// Cleanup closes every loaded module in reverse order of loading and
// removes their files. Static destructors of later fragments may hold
// references into earlier ones, so later modules must unwind first.
func (r *Registry) Cleanup(redirect bool) (string, error) {
	unload := func() error {
		for i := len(r.mods) - 1; i >= 0; i-- {
			if err := r.close(r.mods[i].Handle); err != nil {
				glog.Errorf("dynlib: close %s: %v", r.mods[i].Path, err)
			}
		}
		return nil
	}
	out, _ := r.withCapture(redirect, unload)
	for _, m := range r.mods {
		if err := os.Remove(m.Path); err != nil && !os.IsNotExist(err) {
			glog.Errorf("dynlib: remove %s: %v", m.Path, err)
		}
	}
	r.mods = r.mods[:0]
	return out, nil
}

// withCapture runs f, optionally redirecting the process stdout file
// descriptor into the capture file for the duration and returning what
// was written. fd-level redirection is required: the loaded code is
// native and writes to fd 1 directly, bypassing anything Go wraps
// around os.Stdout.
func (r *Registry) withCapture(redirect bool, f func() error) (string, error) {
	if !redirect {
		return "", f()
	}
	restore, err := redirectStdout(r.captureFile)
	if err != nil {
		glog.Errorf("dynlib: redirect stdout: %v", err)
		return "", f()
	}
	ferr := f()
	restore()
	data, rerr := os.ReadFile(r.captureFile)
	if rerr != nil {
		return "", ferr
	}
	return string(data), ferr
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
