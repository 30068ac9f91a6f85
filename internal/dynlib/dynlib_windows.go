//go:build windows

package dynlib

import (
	"os"

	"golang.org/x/sys/windows"
)

func dlopen(path string) (uintptr, error) {
	h, err := windows.LoadLibrary(path)
	return uintptr(h), err
}

func dlclose(handle uintptr) error {
	return windows.FreeLibrary(windows.Handle(handle))
}

// redirectStdout points the stdout handle at path and returns the
// restore function.
func redirectStdout(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	saved, err := windows.GetStdHandle(windows.STD_OUTPUT_HANDLE)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := windows.SetStdHandle(windows.STD_OUTPUT_HANDLE, windows.Handle(f.Fd())); err != nil {
		f.Close()
		return nil, err
	}
	return func() {
		windows.SetStdHandle(windows.STD_OUTPUT_HANDLE, saved)
		f.Close()
	}, nil
}
