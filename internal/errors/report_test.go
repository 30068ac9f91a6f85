package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapAndAsReport(t *testing.T) {
	cause := fmt.Errorf("clang++ not found")
	err := Wrap(BLD001, "build", cause)
	require.Error(t, err)
	assert.Contains(t, err.Error(), BLD001)

	rep, ok := AsReport(err)
	require.True(t, ok)
	assert.Equal(t, "build", rep.Phase)
	assert.Equal(t, BLD001, rep.Code)

	// wrapping layers must not hide the report
	wrapped := fmt.Errorf("session start: %w", err)
	_, ok = AsReport(wrapped)
	assert.True(t, ok)
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(BLD001, "build", nil))
}

func TestToJSONDeterministic(t *testing.T) {
	r := New(LNK001, "load", "undefined symbol")
	a, err := r.ToJSON(true)
	require.NoError(t, err)
	b, err := r.ToJSON(true)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Contains(t, a, `"crepl.error/v1"`)
}
