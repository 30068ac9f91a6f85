package repl

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// formatHeaderDiff renders the change between two header snapshots as
// a line diff: insertions green, deletions red (deletions only ever
// appear after a cleanup), context dimmed.
func formatHeaderDiff(old, current string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(old, current)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		for _, line := range splitKeepNonEmpty(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				sb.WriteString(green("+ "+line) + "\n")
			case diffmatchpatch.DiffDelete:
				sb.WriteString(red("- "+line) + "\n")
			default:
				sb.WriteString(dim("  "+line) + "\n")
			}
		}
	}
	return sb.String()
}

func splitKeepNonEmpty(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}
