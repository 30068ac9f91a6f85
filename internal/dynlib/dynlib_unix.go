//go:build !windows

package dynlib

import (
	"os"

	"github.com/ebitengine/purego"
	"golang.org/x/sys/unix"
)

// dlopen loads with lazy binding and global visibility: symbols of
// earlier modules must be visible to the relocations of later ones.
func dlopen(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
}

func dlclose(handle uintptr) error {
	return purego.Dlclose(handle)
}

// redirectStdout points fd 1 at path and returns the restore function.
func redirectStdout(path string) (func(), error) {
	saved, err := unix.Dup(1)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, 0o644)
	if err != nil {
		unix.Close(saved)
		return nil, err
	}
	if err := unix.Dup2(fd, 1); err != nil {
		unix.Close(fd)
		unix.Close(saved)
		return nil, err
	}
	unix.Close(fd)
	return func() {
		os.Stdout.Sync()
		unix.Dup2(saved, 1)
		unix.Close(saved)
	}, nil
}
