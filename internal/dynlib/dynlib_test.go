package dynlib

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRegistry installs loader seams that record the call order
// instead of touching the real dynamic linker.
func fakeRegistry(t *testing.T) (*Registry, *[]string) {
	t.Helper()
	dir := t.TempDir()
	r := NewRegistry(dir, "frag")
	var calls []string
	next := uintptr(1)
	r.open = func(path string) (uintptr, error) {
		calls = append(calls, "open "+filepath.Base(path))
		next++
		return next, nil
	}
	r.close = func(handle uintptr) error {
		calls = append(calls, fmt.Sprintf("close %d", handle))
		return nil
	}
	return r, &calls
}

func writeBuilt(t *testing.T, r *Registry) {
	t.Helper()
	require.NoError(t, os.WriteFile(r.BuiltPath(), []byte("module"), 0o755))
}

func TestCopyAndLoadNamesModulesByLoadCount(t *testing.T) {
	r, calls := fakeRegistry(t)

	for i := 0; i < 3; i++ {
		writeBuilt(t, r)
		_, err := r.CopyAndLoad(false)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, r.Count())
	want := []string{
		"open frag_0" + Ext(),
		"open frag_1" + Ext(),
		"open frag_2" + Ext(),
	}
	if diff := cmp.Diff(want, *calls); diff != "" {
		t.Errorf("load order mismatch (-want +got):\n%s", diff)
	}
}

func TestCleanupUnloadsInReverseOrder(t *testing.T) {
	r, calls := fakeRegistry(t)
	for i := 0; i < 3; i++ {
		writeBuilt(t, r)
		_, err := r.CopyAndLoad(false)
		require.NoError(t, err)
	}
	paths := make([]string, 0, 3)
	for _, m := range r.Modules() {
		paths = append(paths, m.Path)
	}
	*calls = (*calls)[:0]

	_, err := r.Cleanup(false)
	require.NoError(t, err)

	// handles were 2, 3, 4 in load order; cleanup closes 4, 3, 2
	want := []string{"close 4", "close 3", "close 2"}
	if diff := cmp.Diff(want, *calls); diff != "" {
		t.Errorf("unload order mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 0, r.Count())
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), "module file %s should be removed", p)
	}
}

func TestCopyAndLoadFailsWithoutBuild(t *testing.T) {
	r, _ := fakeRegistry(t)
	_, err := r.CopyAndLoad(false)
	assert.Error(t, err)
	assert.Equal(t, 0, r.Count())
}

func TestCopyOverwritesStaleModule(t *testing.T) {
	r, _ := fakeRegistry(t)
	writeBuilt(t, r)

	dst := filepath.Join(filepath.Dir(r.BuiltPath()), "frag_0"+Ext())
	require.NoError(t, os.WriteFile(dst, []byte("stale"), 0o755))

	_, err := r.CopyAndLoad(false)
	require.NoError(t, err)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "module", string(data))
}
