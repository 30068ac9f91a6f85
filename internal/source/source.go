// Package source models positions and extents in the working C++ source
// file of a session. The inspector produces CodeBlocks in terms of these
// types and the emitter slices the raw file content through them.
package source

import (
	"fmt"
	"os"
	"strings"
)

// Point is a 1-based (line, column) position in the working source.
type Point struct {
	Line   uint32
	Column uint32
}

// Before reports whether p comes strictly before q in source order.
func (p Point) Before(q Point) bool {
	return p.Line < q.Line || (p.Line == q.Line && p.Column < q.Column)
}

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Extent is a half-open [Start, End) range of source text.
type Extent struct {
	Start Point
	End   Point
}

// BlockKind classifies a top-level construct of the working source.
type BlockKind int

const (
	Invalid BlockKind = iota
	Include
	Macro
	UsingDirective
	UsingDeclaration
	NamespaceAlias
	Namespace
	TypeAlias
	TypeAliasTemplate
	Typedef
	Struct
	Class
	Union
	Enum
	EnumConstant
	FunctionTemplate
	ClassTemplate
	ClassTemplatePartialSpec
	Function
	Variable
)

var kindNames = map[BlockKind]string{
	Invalid:                  "Invalid",
	Include:                  "Include",
	Macro:                    "Macro",
	UsingDirective:           "UsingDirective",
	UsingDeclaration:         "UsingDeclaration",
	NamespaceAlias:           "NamespaceAlias",
	Namespace:                "Namespace",
	TypeAlias:                "TypeAlias",
	TypeAliasTemplate:        "TypeAliasTemplate",
	Typedef:                  "Typedef",
	Struct:                   "Struct",
	Class:                    "Class",
	Union:                    "Union",
	Enum:                     "Enum",
	EnumConstant:             "EnumConstant",
	FunctionTemplate:         "FunctionTemplate",
	ClassTemplate:            "ClassTemplate",
	ClassTemplatePartialSpec: "ClassTemplatePartialSpec",
	Function:                 "Function",
	Variable:                 "Variable",
}

func (k BlockKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("BlockKind(%d)", int(k))
}

// CodeBlock is one top-level construct discovered in the main file.
// Name and Type are only populated for the kinds whose header form is
// synthesized (variables carry their deduced type, functions their
// result type and argument extents).
type CodeBlock struct {
	Start    Point
	End      Point
	Kind     BlockKind
	Name     string
	Type     string
	Args     []Extent
	Variadic bool
}

// Content is the working source split into lines. Every line keeps its
// trailing newline so extents can be spliced back verbatim.
type Content []string

// Read loads a file into line-oriented content.
func Read(path string) (Content, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Split(string(data)), nil
}

// Split turns raw text into line-oriented content.
func Split(text string) Content {
	lines := strings.SplitAfter(text, "\n")
	// SplitAfter leaves a trailing empty element when the text ends in a
	// newline; drop it so len(c) is the number of real lines.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return Content(lines)
}

func (c Content) line(n uint32) string {
	if n == 0 || int(n) > len(c) {
		return ""
	}
	return c[n-1]
}

// End is the position one past the last character of the content.
func (c Content) End() Point {
	if len(c) == 0 {
		return Point{1, 1}
	}
	last := uint32(len(c))
	return Point{last, uint32(len(c[last-1])) + 1}
}

// Slice returns the text of the half-open range [start, end).
func (c Content) Slice(start, end Point) string {
	if !start.Before(end) {
		return ""
	}
	if start.Line == end.Line {
		l := c.line(start.Line)
		return sub(l, start.Column, end.Column)
	}
	var b strings.Builder
	b.WriteString(suffix(c.line(start.Line), start.Column))
	for n := start.Line + 1; n < end.Line; n++ {
		b.WriteString(c.line(n))
	}
	b.WriteString(sub(c.line(end.Line), 1, end.Column))
	return b.String()
}

// ScanTo returns the text from start up to (not including) the first
// occurrence of any character in chars, scanning across lines.
func (c Content) ScanTo(start Point, chars string) string {
	var b strings.Builder
	col := start.Column
	for n := start.Line; int(n) <= len(c); n++ {
		l := suffix(c.line(n), col)
		if i := strings.IndexAny(l, chars); i >= 0 {
			b.WriteString(l[:i])
			return b.String()
		}
		b.WriteString(l)
		col = 1
	}
	return b.String()
}

// sub slices one line by 1-based columns, [from, to).
func sub(l string, from, to uint32) string {
	if int(from) > len(l)+1 {
		return ""
	}
	if int(to) > len(l)+1 {
		to = uint32(len(l)) + 1
	}
	if to <= from {
		return ""
	}
	return l[from-1 : to-1]
}

// suffix slices one line from a 1-based column to its end.
func suffix(l string, from uint32) string {
	if int(from) > len(l) {
		return ""
	}
	return l[from-1:]
}
