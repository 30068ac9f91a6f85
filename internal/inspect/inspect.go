// Package inspect drives libclang over the working source file and
// reports the top-level constructs of the main file as ordered
// CodeBlocks. Parsing is best effort: diagnostics are left to the real
// compile, whose exit code is authoritative.
package inspect

import (
	"fmt"
	"os"

	"github.com/go-clang/clang-v15/clang"
	"github.com/golang/glog"

	"github.com/sunholo/crepl/internal/source"
)

// tuOptions make headers readable (detailed preprocessing record), keep
// parsing past errors and skip non-error noise from included files.
var tuOptions = uint32(clang.TranslationUnit_DetailedPreprocessingRecord) |
	uint32(clang.TranslationUnit_Incomplete) |
	uint32(clang.TranslationUnit_KeepGoing) |
	uint32(clang.TranslationUnit_CreatePreambleOnFirstParse) |
	uint32(clang.TranslationUnit_IgnoreNonErrorsFromIncludedFiles) |
	uint32(clang.TranslationUnit_IncludeAttributedTypes)

// Inspector owns one libclang index and the translation unit of the
// working source. It is not safe for concurrent use; the session
// serializes access to it.
type Inspector struct {
	path    string
	flags   []string
	idx     clang.Index
	tu      clang.TranslationUnit
	hasTU   bool
	content source.Content
	blocks  []source.CodeBlock
}

// New creates the working source file (empty) and parses it once.
func New(path string, flags []string) (*Inspector, error) {
	if err := os.WriteFile(path, []byte("\n"), 0o644); err != nil {
		return nil, fmt.Errorf("inspect: create %s: %w", path, err)
	}
	in := &Inspector{
		path:  path,
		flags: append([]string(nil), flags...),
		idx:   clang.NewIndex(0, 0),
	}
	if err := in.parse(); err != nil {
		in.idx.Dispose()
		return nil, err
	}
	return in, nil
}

// Path returns the working source path.
func (in *Inspector) Path() string { return in.path }

// Flags returns the current parse flag set.
func (in *Inspector) Flags() []string { return in.flags }

// Content returns the line-oriented content of the last (re)parse.
func (in *Inspector) Content() source.Content { return in.content }

// Blocks returns the top-level blocks of the last (re)parse, in
// visitation order (namespace wrappers precede their children).
func (in *Inspector) Blocks() []source.CodeBlock { return in.blocks }

// Reparse re-reads the file from disk and reparses the same
// translation unit.
func (in *Inspector) Reparse() error {
	if err := in.reload(); err != nil {
		return err
	}
	in.tu.ReparseTranslationUnit(nil, uint32(clang.Reparse_None))
	in.collect()
	return nil
}

// SetFlags replaces the flag set. The old translation unit cannot be
// reused under different flags, so it is disposed and the file parsed
// from scratch on the same index.
func (in *Inspector) SetFlags(flags []string) error {
	in.flags = append([]string(nil), flags...)
	if in.hasTU {
		in.tu.Dispose()
		in.hasTU = false
	}
	return in.parse()
}

// Dispose releases the translation unit and index.
func (in *Inspector) Dispose() {
	if in.hasTU {
		in.tu.Dispose()
		in.hasTU = false
	}
	in.idx.Dispose()
}

func (in *Inspector) parse() error {
	if err := in.reload(); err != nil {
		return err
	}
	in.tu = in.idx.ParseTranslationUnit(in.path, in.flags, nil, tuOptions)
	if !in.tu.IsValid() {
		return fmt.Errorf("inspect: parse %s failed", in.path)
	}
	in.hasTU = true
	in.collect()
	return nil
}

func (in *Inspector) reload() error {
	content, err := source.Read(in.path)
	if err != nil {
		return fmt.Errorf("inspect: read %s: %w", in.path, err)
	}
	in.content = content
	return nil
}

func (in *Inspector) collect() {
	in.blocks = in.blocks[:0]
	root := in.tu.TranslationUnitCursor()
	root.Visit(func(c, parent clang.Cursor) clang.ChildVisitResult {
		return in.visit(c)
	})
	glog.V(2).Infof("inspect: %d top-level blocks in %s", len(in.blocks), in.path)
}

func (in *Inspector) visit(c clang.Cursor) clang.ChildVisitResult {
	if !c.Location().IsFromMainFile() {
		return clang.ChildVisit_Continue
	}
	kind := mapKind(c)
	if kind == source.Invalid {
		return clang.ChildVisit_Continue
	}
	if !accepted(c, kind) {
		return clang.ChildVisit_Continue
	}
	in.blocks = append(in.blocks, makeBlock(c, kind))
	// Only namespaces are recursed into: their members become blocks of
	// their own while the namespace itself stays a wrapper block.
	if kind == source.Namespace {
		return clang.ChildVisit_Recurse
	}
	return clang.ChildVisit_Continue
}

// accepted applies the classification gate. Inclusion directives, macro
// definitions and namespace aliases are taken as-is; everything else
// must be a valid declaration, and entity-defining kinds must be the
// definition (a bare prototype falls through to the once-initializer,
// where a local declaration is still well-formed).
func accepted(c clang.Cursor, kind source.BlockKind) bool {
	switch kind {
	case source.Include, source.Macro, source.NamespaceAlias:
		return true
	}
	if !c.Kind().IsDeclaration() || c.IsInvalidDeclaration() {
		return false
	}
	switch kind {
	case source.UsingDirective, source.UsingDeclaration, source.Namespace,
		source.TypeAlias, source.TypeAliasTemplate, source.Typedef:
		return true
	}
	return c.IsCursorDefinition()
}

func mapKind(c clang.Cursor) source.BlockKind {
	switch c.Kind() {
	case clang.Cursor_InclusionDirective:
		return source.Include
	case clang.Cursor_MacroDefinition:
		return source.Macro
	case clang.Cursor_UsingDirective:
		return source.UsingDirective
	case clang.Cursor_UsingDeclaration:
		return source.UsingDeclaration
	case clang.Cursor_NamespaceAlias:
		return source.NamespaceAlias
	case clang.Cursor_Namespace:
		return source.Namespace
	case clang.Cursor_TypeAliasDecl:
		return source.TypeAlias
	case clang.Cursor_TypeAliasTemplateDecl:
		return source.TypeAliasTemplate
	case clang.Cursor_TypedefDecl:
		return source.Typedef
	case clang.Cursor_StructDecl:
		return source.Struct
	case clang.Cursor_ClassDecl:
		return source.Class
	case clang.Cursor_UnionDecl:
		return source.Union
	case clang.Cursor_EnumDecl:
		return source.Enum
	case clang.Cursor_EnumConstantDecl:
		return source.EnumConstant
	case clang.Cursor_FunctionTemplate:
		return source.FunctionTemplate
	case clang.Cursor_ClassTemplate:
		return source.ClassTemplate
	case clang.Cursor_ClassTemplatePartialSpecialization:
		return source.ClassTemplatePartialSpec
	case clang.Cursor_FunctionDecl:
		return source.Function
	case clang.Cursor_VarDecl:
		return source.Variable
	}
	return source.Invalid
}

func makeBlock(c clang.Cursor, kind source.BlockKind) source.CodeBlock {
	blk := source.CodeBlock{
		Kind:  kind,
		Start: expansion(c.Extent().Start()),
		End:   expansion(c.Extent().End()),
	}
	// #define lives to the right of its extent start; force column 1 so
	// the directive itself is captured.
	if kind == source.Macro {
		blk.Start.Column = 1
	}
	switch kind {
	case source.Variable:
		blk.Name = c.Spelling()
		blk.Type = c.Type().Spelling()
	case source.Function:
		blk.Name = c.Spelling()
		blk.Type = c.ResultType().Spelling()
		blk.Variadic = c.IsVariadic()
		n := c.NumArguments()
		for i := int32(0); i < n; i++ {
			arg := c.Argument(uint32(i)).Definition()
			blk.Args = append(blk.Args, source.Extent{
				Start: expansion(arg.Extent().Start()),
				End:   expansion(arg.Extent().End()),
			})
		}
	}
	return blk
}

func expansion(loc clang.SourceLocation) source.Point {
	_, line, col, _ := loc.ExpansionLocation()
	return source.Point{Line: line, Column: col}
}
