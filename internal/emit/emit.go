// Package emit turns the inspected blocks of a fragment into the two
// artifacts of a compile: the generated source file and the persistent
// header increment.
//
// Persistent declarations are emitted first and the once-initializer
// last, so static initializers of the fragment's declarations always
// run before its free statements, regardless of how the user
// interleaved them.
package emit

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/golang/glog"

	"github.com/sunholo/crepl/internal/source"
)

// Counter mints the unique numbers behind synthesized type aliases and
// once-initializer names. It is owned by the session and strictly
// increases for its whole lifetime.
type Counter struct {
	n int
}

// Next returns the current value and advances.
func (c *Counter) Next() int {
	n := c.n
	c.n++
	return n
}

// Value returns the current value without advancing.
func (c *Counter) Value() int { return c.n }

// Markers are the visibility annotations spliced into generated code.
// POSIX builds hide everything by default (-fvisibility=hidden), so
// exported definitions carry the default-visibility attribute and
// imports need nothing; Windows uses dllexport/dllimport.
func exportMarker() string {
	if runtime.GOOS == "windows" {
		return "__declspec(dllexport)"
	}
	return `__attribute__((visibility("default")))`
}

func importMarker() string {
	if runtime.GOOS == "windows" {
		return "__declspec(dllimport) "
	}
	return ""
}

type nsReopen struct {
	start  source.Point
	end    source.Point
	header string // "namespace X {" up to and including the brace
}

// Generator emits source and header text for one parsed fragment.
type Generator struct {
	blocks  []source.CodeBlock
	content source.Content
	counter *Counter

	buf        strings.Builder
	namespaces []nsReopen
}

// NewGenerator captures one inspection result. The counter is shared
// with the owning session so numbers never repeat across fragments.
func NewGenerator(blocks []source.CodeBlock, content source.Content, counter *Counter) *Generator {
	return &Generator{blocks: blocks, content: content, counter: counter}
}

// Source produces the full generated translation unit:
// prepend ++ declarations ++ once-initializer ++ trailer.
func (g *Generator) Source(prepend, trailer string) string {
	g.buf.Reset()
	g.namespaces = g.namespaces[:0]
	g.buf.WriteString(prepend)

	for _, blk := range g.blocks {
		switch blk.Kind {
		case source.Function, source.Variable:
			g.writeWrapped(blk, exportMarker()+" ")
		default:
			g.writeWrapped(blk, "")
		}
	}

	g.buf.WriteString(fmt.Sprintf("\nint __once_%d = [](){\n", g.counter.Next()))
	g.writeOnceBody()
	g.buf.WriteString("  return 0; }();\n")
	g.buf.WriteString(trailer)
	return g.buf.String()
}

// Header produces the increment to append to the persistent header for
// this fragment. baseName identifies the session header so includes of
// it are elided.
func (g *Generator) Header(baseName string) string {
	g.buf.Reset()
	g.namespaces = g.namespaces[:0]

	for _, blk := range g.blocks {
		switch blk.Kind {
		case source.Namespace:
			// Record the wrapper so members re-open it, but emit nothing:
			// the header is assembled at global scope.
			g.recordNamespace(blk)

		case source.Include:
			if g.isSelfInclude(blk, baseName) {
				continue
			}
			g.writeWrapped(blk, "")

		case source.Variable:
			alias := fmt.Sprintf("_%d_t", g.counter.Next())
			g.wrapNamespaces(blk, func() {
				fmt.Fprintf(&g.buf, "using %s = %s;\n%sextern %s %s;\n",
					alias, blk.Type, importMarker(), alias, blk.Name)
			})

		case source.Function:
			alias := fmt.Sprintf("_%d_t", g.counter.Next())
			g.wrapNamespaces(blk, func() {
				fmt.Fprintf(&g.buf, "using %s = %s;\n%sextern %s %s(",
					alias, blk.Type, importMarker(), alias, blk.Name)
				for i, arg := range blk.Args {
					if i > 0 {
						g.buf.WriteString(", ")
					}
					g.buf.WriteString(g.content.Slice(arg.Start, arg.End))
				}
				if blk.Variadic {
					if len(blk.Args) > 0 {
						g.buf.WriteString(", ")
					}
					g.buf.WriteString("...")
				}
				g.buf.WriteString(");\n")
			})

		default:
			g.writeWrapped(blk, "")
		}
	}
	return g.buf.String()
}

// writeWrapped emits one block verbatim, re-opening any enclosing
// namespaces around it and closing them after.
func (g *Generator) writeWrapped(blk source.CodeBlock, prefix string) {
	g.wrapNamespaces(blk, func() {
		g.buf.WriteString(prefix)
		g.writeBare(blk)
	})
}

func (g *Generator) wrapNamespaces(blk source.CodeBlock, body func()) {
	opened := 0
	for _, ns := range g.namespaces {
		if ns.start.Before(blk.Start) && blk.End.Before(ns.end) {
			g.buf.WriteString(ns.header + "\n")
			opened++
		}
	}
	body()
	for i := 0; i < opened; i++ {
		g.buf.WriteString("}\n")
	}
}

func (g *Generator) writeBare(blk source.CodeBlock) {
	if blk.Kind == source.Namespace {
		g.recordNamespace(blk)
		return
	}
	mark := g.buf.Len()
	g.buf.WriteString(g.content.Slice(blk.Start, blk.End))
	switch blk.Kind {
	case source.Include, source.Macro:
		g.buf.WriteString("\n")
	default:
		g.buf.WriteString(";\n")
	}
	if blk.Kind == source.Function || blk.Kind == source.Variable {
		g.replaceAuto(mark, blk)
	}
}

// recordNamespace computes the opening "namespace X {" line (scanned
// from the namespace start up to its first brace) and remembers it with
// the extent so member blocks re-open it. It writes nothing itself:
// wrapNamespaces writes the opening line and the matching brace around
// each member.
func (g *Generator) recordNamespace(blk source.CodeBlock) {
	header := g.content.ScanTo(blk.Start, "{") + "{"
	g.namespaces = append(g.namespaces, nsReopen{start: blk.Start, end: blk.End, header: header})
}

// replaceAuto rewrites a deduced-type definition in place: "auto" in
// the declarator (before any body) becomes the type libclang resolved,
// so the emitted definition matches the extern in the header.
func (g *Generator) replaceAuto(mark int, blk source.CodeBlock) {
	if blk.Type == "" {
		return
	}
	text := g.buf.String()
	emitted := text[mark:]
	// Pad with a space so an "auto" opening the declarator matches too;
	// i is then the index of "auto" itself within emitted.
	i := strings.Index(" "+emitted, " auto ")
	if i < 0 {
		return
	}
	if body := strings.Index(emitted, "{"); body >= 0 && body < i {
		return
	}
	patched := emitted[:i] + blk.Type + " " + emitted[i+len("auto "):]
	g.buf.Reset()
	g.buf.WriteString(text[:mark])
	g.buf.WriteString(patched)
	glog.V(2).Infof("emit: auto in %q resolved to %q", blk.Name, blk.Type)
}

// writeOnceBody walks the file content and appends everything that lies
// outside every block extent: the fragment's free statements, in their
// original order.
func (g *Generator) writeOnceBody() {
	sorted := make([]source.CodeBlock, len(g.blocks))
	copy(sorted, g.blocks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	pos := source.Point{Line: 1, Column: 1}
	for _, blk := range sorted {
		g.buf.WriteString(g.content.Slice(pos, blk.Start))
		// A namespace extent covers all of its members, and anything else
		// inside it is a compile error anyway, so the whole extent is
		// skipped like any other block.
		if pos.Before(blk.End) {
			pos = blk.End
		}
	}
	g.buf.WriteString(g.content.Slice(pos, g.content.End()))
}

// isSelfInclude reports whether the block includes the session's own
// persistent header, which must not re-enter the header it is part of.
func (g *Generator) isSelfInclude(blk source.CodeBlock, baseName string) bool {
	text := g.content.Slice(blk.Start, blk.End)
	for _, q := range []string{`"` + baseName + `.hpp"`, "<" + baseName + ".hpp>"} {
		if strings.Contains(text, q) {
			return true
		}
	}
	return false
}
