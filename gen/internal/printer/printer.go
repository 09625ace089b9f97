// Package printer renders the intermediate form as Go source.
package printer

import (
	"fmt"
	"go/format"
	"path"
	"strconv"
	"strings"

	"github.com/wippyai/dylink"
	"github.com/wippyai/dylink/errors"
	"github.com/wippyai/dylink/gen/internal/ir"
)

// Identifiers used inside generated trampolines.
const (
	FnIdent  = "__fn"
	RetIdent = "__ret"
)

// Print renders a complete generated file and formats it with gofmt.
func Print(f *ir.File) ([]byte, error) {
	p := &printer{rt: f.RuntimeName}
	p.file(f)
	return finish(p.buf.Bytes)
}

// PrintUnit renders the cache cell and trampoline of a single unit.
func PrintUnit(u *ir.Unit, runtimeName string) ([]byte, error) {
	p := &printer{rt: runtimeName}
	p.unit(u)
	return finish(p.buf.Bytes)
}

// Header is the first line of every generated file.
func Header(source string) string {
	return "// Code generated by dylink from " + source + ". DO NOT EDIT."
}

func finish(src []byte) ([]byte, error) {
	out, err := format.Source(src)
	if err != nil {
		return nil, errors.New(errors.PhaseGenerate, errors.KindInternal).
			Detail("generated code does not parse").
			Value(string(src)).
			Cause(err).
			Build()
	}
	return out, nil
}

type printer struct {
	buf Buffer
	rt  string
}

func (p *printer) file(f *ir.File) {
	p.buf.Line(Header(f.Source))
	p.buf.Blank()
	p.buf.Linef("//go:build !%s", f.Tag)
	p.buf.Blank()
	p.buf.Linef("package %s", f.Package)

	p.imports(f)

	for _, d := range f.Decls {
		p.buf.Blank()
		p.buf.Text(d.Text)
	}

	for i := range f.Units {
		p.buf.Blank()
		p.unit(&f.Units[i])
	}

	if len(f.Units) > 0 {
		p.buf.Blank()
		p.buf.Open("func init() {")
		for _, u := range f.Units {
			p.buf.Linef("%s.Init(%s)", u.CellID, u.TrampolineID)
		}
		p.buf.Close("}")
	}
}

func (p *printer) imports(f *ir.File) {
	imports := f.Imports
	if len(f.Units) > 0 && !hasImport(imports, f.RuntimePath) {
		rt := ir.Import{Path: f.RuntimePath}
		if path.Base(f.RuntimePath) != f.RuntimeName {
			rt.Name = f.RuntimeName
		}
		imports = append(imports[:len(imports):len(imports)], rt)
	}
	if len(imports) == 0 {
		return
	}

	var std, other []ir.Import
	for _, imp := range imports {
		if isStd(imp.Path) {
			std = append(std, imp)
		} else {
			other = append(other, imp)
		}
	}

	p.buf.Blank()
	p.buf.Open("import (")
	for i, group := range [][]ir.Import{std, other} {
		if i > 0 && len(std) > 0 && len(other) > 0 {
			p.buf.Blank()
		}
		for _, imp := range group {
			if imp.Name != "" {
				p.buf.Linef("%s %s", imp.Name, strconv.Quote(imp.Path))
			} else {
				p.buf.Line(strconv.Quote(imp.Path))
			}
		}
	}
	p.buf.Close(")")
}

// isStd reports whether an import path belongs to the standard library.
func isStd(importPath string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}

func (p *printer) unit(u *ir.Unit) {
	sig := &u.Signature
	for _, attr := range sig.Attrs {
		p.buf.Text(attr)
	}
	cell := fmt.Sprintf("var %s = %s.NewLazyFn[%s](%s, %s, %s)",
		u.CellID, p.rt, sig.FuncType(),
		strconv.Quote(sig.Symbol), strconv.Quote(string(sig.ABI)), p.strategy(u.Strategy))
	if !u.Injected() {
		p.buf.Line(cell)
	} else {
		// The wrapper lives at package scope so parameter names cannot
		// shadow the types in its signature.
		ft := sig.FuncType()
		p.buf.Open(cell + ".Wrap(func(" + FnIdent + " " + ft + ") " + ft + " {")
		p.buf.Open("return func" + signature(sig) + " {")
		p.stmts(sig, u.Body, FnIdent)
		p.buf.Close("}")
		p.buf.Close("})")
	}
	p.buf.Blank()

	p.buf.Open("func " + u.TrampolineID + signature(sig) + " {")
	p.stmts(sig, []ir.Stmt{ir.Forward{Tail: true}}, u.CellID+".Resolve()")
	p.buf.Close("}")
}

func (p *printer) stmts(sig *ir.Signature, body []ir.Stmt, callee string) {
	call := callee + "(" + sig.Args() + ")"
	for _, s := range body {
		switch s := s.(type) {
		case ir.Forward:
			switch {
			case !sig.HasResult():
				p.buf.Line(call)
			case s.Tail:
				p.buf.Line("return " + call)
			default:
				p.buf.Line(RetIdent + " := " + call)
			}
		case ir.Track:
			method := "RegisterOutput"
			if s.Op == ir.Unregister {
				method = "Unregister"
			}
			p.buf.Linef("%s.%s.%s(%s)", p.rt, s.Table, method, sig.Params[s.Param].Name)
		case ir.Return:
			if sig.HasResult() {
				p.buf.Line("return " + RetIdent)
			}
		}
	}
}

func (p *printer) strategy(s dylink.Strategy) string {
	switch s.Kind() {
	case dylink.KindWellKnown:
		tag := "Vulkan"
		if s.Tag() == dylink.OpenGL {
			tag = "OpenGL"
		}
		return p.rt + ".WellKnown(" + p.rt + "." + tag + ")"
	case dylink.KindNamed:
		return p.rt + ".Named(" + strconv.Quote(s.Libraries()[0]) + ")"
	}
	libs := s.Libraries()
	quoted := make([]string, len(libs))
	for i, lib := range libs {
		quoted[i] = strconv.Quote(lib)
	}
	return p.rt + ".NamedAny(" + strings.Join(quoted, ", ") + ")"
}

// signature renders "(params) result" for a declaration.
func signature(sig *ir.Signature) string {
	s := "(" + sig.ParamList() + ")"
	if sig.HasResult() {
		s += " " + sig.Result
	}
	return s
}

func hasImport(imports []ir.Import, importPath string) bool {
	for _, imp := range imports {
		if imp.Path == importPath {
			return true
		}
	}
	return false
}
