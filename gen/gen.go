package gen

import (
	"bytes"
	"context"
	"fmt"
	"go/build/constraint"
	"go/token"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/dylink/errors"
	"github.com/wippyai/dylink/gen/internal/decl"
	"github.com/wippyai/dylink/gen/internal/ir"
	"github.com/wippyai/dylink/gen/internal/printer"
	"github.com/wippyai/dylink/gen/internal/synth"
)

// Re-exported intermediate types.
type (
	Unit       = ir.Unit
	Signature  = ir.Signature
	Param      = ir.Param
	Visibility = ir.Visibility
	Stmt       = ir.Stmt
	Forward    = ir.Forward
	Track      = ir.Track
	Return     = ir.Return
)

// Defaults for Options.
const (
	DefaultTag         = "dylink"
	DefaultSuffix      = "_dylink.go"
	DefaultRuntimePath = "github.com/wippyai/dylink"
)

// Options configures a Generator.
type Options struct {
	// Tag is the build tag that marks input files. Generated files carry
	// the negated constraint.
	Tag string
	// Suffix replaces ".go" in the input name to form the output name.
	Suffix string
	// RuntimePath is the import path of the runtime package.
	RuntimePath string
	// RuntimeName is the qualifier for the runtime package. It defaults to
	// the last element of RuntimePath.
	RuntimeName string
}

func (o Options) withDefaults() Options {
	if o.Tag == "" {
		o.Tag = DefaultTag
	}
	if o.Suffix == "" {
		o.Suffix = DefaultSuffix
	}
	if o.RuntimePath == "" {
		o.RuntimePath = DefaultRuntimePath
	}
	if o.RuntimeName == "" {
		o.RuntimeName = path.Base(o.RuntimePath)
		if !token.IsIdentifier(o.RuntimeName) {
			o.RuntimeName = DefaultTag
		}
	}
	return o
}

// Generator expands extern blocks. One Generator is one compilation:
// trampoline identifiers are unique across everything it expands.
//
// Generator is safe for concurrent use.
type Generator struct {
	fset  *token.FileSet
	alloc synth.Allocator
	opts  Options
}

// New creates a generator.
func New(opts Options) *Generator {
	return &Generator{
		fset: token.NewFileSet(),
		opts: opts.withDefaults(),
	}
}

// Options returns the effective options.
func (g *Generator) Options() Options { return g.opts }

// Result is the expansion of one input file.
type Result struct {
	Input   string
	Output  string
	Package string
	// Source is the formatted generated file, or nil when the block was
	// rejected as a whole.
	Source      []byte
	Units       []Unit
	Diagnostics errors.List
	Warnings    errors.List
}

// Err returns the diagnostics combined into one error, or nil.
func (r *Result) Err() error { return r.Diagnostics.Err() }

// Rejected reports whether the whole block failed.
func (r *Result) Rejected() bool { return r.Source == nil }

// Stale reports whether the output file is missing or differs from Source.
func (r *Result) Stale() (bool, error) {
	existing, err := os.ReadFile(r.Output)
	if os.IsNotExist(err) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", r.Output, err)
	}
	return !bytes.Equal(existing, r.Source), nil
}

// Write writes Source to Output.
func (r *Result) Write() error {
	if r.Source == nil {
		return errors.New(errors.PhaseGenerate, errors.KindInvalidInput).
			Detail("%s was rejected; nothing to write", r.Input).
			Build()
	}
	if err := os.WriteFile(r.Output, r.Source, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", r.Output, err)
	}
	return nil
}

// OutputPath returns the generated file name for an input file.
func (g *Generator) OutputPath(input string) string {
	return strings.TrimSuffix(input, ".go") + g.opts.Suffix
}

// Source expands one input file held in memory.
func (g *Generator) Source(filename string, src []byte) *Result {
	return g.expand(g.parse(filename, src))
}

// Dir expands every input file in dir. Files are selected by their build
// constraint, parsed concurrently and expanded in file name order.
func (g *Generator) Dir(ctx context.Context, dir string) ([]*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") ||
			strings.HasSuffix(name, "_test.go") || strings.HasSuffix(name, g.opts.Suffix) {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return g.Files(ctx, files)
}

// Files expands the given files. Files without the input build constraint
// are skipped.
func (g *Generator) Files(ctx context.Context, files []string) ([]*Result, error) {
	files = append([]string(nil), files...)
	sort.Strings(files)

	parsed := make([]*parsedFile, len(files))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))

	for i, file := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			if !IsInput(src, g.opts.Tag) {
				Logger().Debug("skipping file without input constraint", zap.String("file", file))
				return nil
			}
			parsed[i] = g.parse(file, src)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var results []*Result
	for _, p := range parsed {
		if p != nil {
			results = append(results, g.expand(p))
		}
	}
	return results, nil
}

// IsInput reports whether src carries a //go:build constraint that requires
// tag, the marker of a dylink input file.
func IsInput(src []byte, tag string) bool {
	for _, line := range strings.Split(string(src), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || (strings.HasPrefix(line, "//") && !constraint.IsGoBuild(line)) {
			continue
		}
		if !constraint.IsGoBuild(line) {
			return false
		}
		expr, err := constraint.Parse(line)
		if err != nil {
			return false
		}
		all := expr.Eval(func(string) bool { return true })
		without := expr.Eval(func(t string) bool { return t != tag })
		return all && !without
	}
	return false
}

type parsedFile struct {
	filename string
	block    *decl.Block
	diags    errors.List
}

func (g *Generator) parse(filename string, src []byte) *parsedFile {
	block, diags := decl.Parse(g.fset, filename, src, decl.Options{
		RuntimeName: g.opts.RuntimeName,
		RuntimePath: g.opts.RuntimePath,
	})
	return &parsedFile{filename: filename, block: block, diags: diags}
}

func (g *Generator) expand(p *parsedFile) *Result {
	log := Logger().With(zap.String("file", p.filename))
	res := &Result{
		Input:  p.filename,
		Output: g.OutputPath(p.filename),
	}

	if p.block == nil {
		res.Diagnostics = p.diags
		log.Warn("extern block rejected", zap.Error(res.Err()))
		return res
	}
	block := p.block
	res.Package = block.Package
	res.Warnings = block.Warnings

	units, diags := synth.Block(&g.alloc, block.Strategy, block.Funcs)
	res.Units = units
	res.Diagnostics = append(p.diags, diags...)
	res.Diagnostics.Sort()

	file := &ir.File{
		Source:      filepath.Base(p.filename),
		Package:     block.Package,
		Tag:         g.opts.Tag,
		RuntimePath: g.opts.RuntimePath,
		RuntimeName: g.opts.RuntimeName,
		Imports:     block.Imports,
		Decls:       block.Decls,
		Units:       units,
	}
	for _, imp := range block.Imports {
		if imp.Path == g.opts.RuntimePath && imp.Name != "" && imp.Name != "_" && imp.Name != "." {
			file.RuntimeName = imp.Name
		}
	}

	src, err := printer.Print(file)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, errors.Flatten(err)...)
		log.Error("cannot render generated code", zap.Error(err))
		return res
	}
	res.Source = src

	for _, w := range res.Warnings {
		log.Warn(w.Detail, zap.Stringer("pos", w.Span))
	}
	log.Debug("expanded extern block",
		zap.String("strategy", block.Strategy.String()),
		zap.Int("functions", len(units)),
		zap.Int("diagnostics", len(res.Diagnostics)))
	return res
}

// RenderUnit renders the cache cell and trampoline of a unit on their own.
func (g *Generator) RenderUnit(u *Unit) ([]byte, error) {
	return printer.PrintUnit(u, g.opts.RuntimeName)
}
