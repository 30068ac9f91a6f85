package repl

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// fragmentSeparator splits a script file into fragments.
const fragmentSeparator = "// ---"

// RunFile compiles and loads every fragment of a script file in order.
// Fragments are separated by lines starting with "// ---". The first
// failing compile stops the run and is returned as an error.
func (r *REPL) RunFile(path string, out io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fragments := SplitFragments(string(data))
	for i, frag := range fragments {
		fmt.Fprintf(out, "%s fragment %d/%d\n", cyan("──"), i+1, len(fragments))
		if !r.session.Compile(frag) {
			continue
		}
		if exit := r.awaitExit(out); exit != 0 {
			return fmt.Errorf("fragment %d: compiler exited with status %d", i+1, exit)
		}
		captured, err := r.session.Load(r.cfg.CaptureStdout)
		if err != nil {
			return err
		}
		if captured != "" {
			fmt.Fprint(out, captured)
		}
	}
	return nil
}

// SplitFragments cuts script text at separator lines. Separator-only
// and empty fragments are dropped.
func SplitFragments(text string) []string {
	var out []string
	var cur []string
	flush := func() {
		frag := strings.TrimSpace(strings.Join(cur, "\n"))
		if frag != "" {
			out = append(out, frag)
		}
		cur = cur[:0]
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), fragmentSeparator) {
			flush()
			continue
		}
		cur = append(cur, line)
	}
	flush()
	return out
}
