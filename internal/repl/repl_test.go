package repl

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSplitFragments(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "two fragments",
			text: "int a = 5;\n// ---\na++;\n",
			want: []string{"int a = 5;", "a++;"},
		},
		{
			name: "separator with trailing text",
			text: "int a;\n// --- next part\nint b;",
			want: []string{"int a;", "int b;"},
		},
		{
			name: "empty fragments dropped",
			text: "// ---\n\n// ---\nint a;\n// ---",
			want: []string{"int a;"},
		},
		{
			name: "no separator",
			text: "int a;\nint b;",
			want: []string{"int a;\nint b;"},
		},
		{
			name: "empty input",
			text: "",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitFragments(tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitFragments mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatHeaderDiff(t *testing.T) {
	old := "#pragma once\n"
	current := "#pragma once\nusing _0_t = int;\nextern _0_t a;\n"

	got := formatHeaderDiff(old, current)

	assert.Contains(t, got, "+ using _0_t = int;")
	assert.Contains(t, got, "+ extern _0_t a;")
	assert.Contains(t, got, "#pragma once")
	assert.NotContains(t, got, "- #pragma once")
}

func TestFormatHeaderDiffAfterCleanup(t *testing.T) {
	old := "#pragma once\nextern int a;\n"
	current := "#pragma once\n"

	got := formatHeaderDiff(old, current)
	assert.Contains(t, got, "- extern int a;")
}

func TestFormatHeaderDiffLinesAreWhole(t *testing.T) {
	// the diff is line-oriented: a line never splits mid-token
	old := "#pragma once\n"
	current := "#pragma once\nusing _12_t = std::vector<int>;\n"

	got := formatHeaderDiff(old, current)
	for _, line := range strings.Split(strings.TrimRight(got, "\n"), "\n") {
		assert.NotEmpty(t, line)
	}
	assert.Contains(t, got, "+ using _12_t = std::vector<int>;")
}
