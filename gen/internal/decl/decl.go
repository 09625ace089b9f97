// Package decl reads a dylink input file: the block directives before the
// package clause, the body-less function prototypes, and everything that is
// carried into the generated file unchanged.
package decl

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/wippyai/dylink"
	"github.com/wippyai/dylink/errors"
	"github.com/wippyai/dylink/gen/internal/annotation"
	"github.com/wippyai/dylink/gen/internal/ir"
)

// Directive prefixes.
const (
	DirectivePrefix = "//dylink:"
	LinkDirective   = "//dylink:link"
	ExternDirective = "//dylink:extern"
	SymbolDirective = "//dylink:symbol"
)

// Options controls name checks that depend on how code is generated.
type Options struct {
	// RuntimeName is the qualifier generated code uses for the runtime package.
	RuntimeName string
	// RuntimePath is the runtime import path.
	RuntimePath string
}

// Block is a parsed extern block.
type Block struct {
	Package  string
	Strategy dylink.Strategy
	ABI      dylink.ABI
	Imports  []ir.Import
	Decls    []ir.Decl
	Funcs    []ir.Signature
	Warnings errors.List
	Pos      token.Position
}

// Parse reads one input file. Block-level failures (Go syntax, link
// annotation, extern directive) return a nil block. Otherwise the block holds
// every well-formed prototype and the returned list holds one diagnostic per
// rejected function.
func Parse(fset *token.FileSet, filename string, src []byte, opts Options) (*Block, errors.List) {
	f, err := parser.ParseFile(fset, filename, src, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil {
		return nil, syntaxErrors(err)
	}

	p := &blockParser{
		fset:  fset,
		file:  fset.File(f.Package),
		src:   src,
		opts:  opts,
		names: make(map[string]token.Position),
	}
	return p.parse(f)
}

type blockParser struct {
	fset  *token.FileSet
	file  *token.File
	opts  Options
	names map[string]token.Position
	src   []byte
	block Block
	diags errors.List
}

func (p *blockParser) parse(f *ast.File) (*Block, errors.List) {
	p.block.Package = f.Name.Name
	p.block.Pos = p.position(f.Package)

	if err := p.directives(f); err != nil {
		return nil, errors.List{err}
	}

	kept := make(map[string]bool)
	rejected := make(map[string]bool)
	var imports []importInfo

	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.GenDecl:
			if d.Tok == token.IMPORT {
				for _, spec := range d.Specs {
					imp, err := p.importSpec(spec.(*ast.ImportSpec))
					if err != nil {
						return nil, errors.List{err}
					}
					imports = append(imports, imp)
				}
				continue
			}
			decl := p.passThrough(d)
			for _, q := range decl.Qualifiers {
				kept[q] = true
			}
			p.block.Decls = append(p.block.Decls, decl)

		case *ast.FuncDecl:
			sig, err := p.function(d)
			if err != nil {
				for _, q := range qualifiers(d.Type) {
					rejected[q] = true
				}
				p.diags.Add(err)
				continue
			}
			for _, q := range sig.Qualifiers {
				kept[q] = true
			}
			p.block.Funcs = append(p.block.Funcs, sig)
		}
	}

	// Imports referenced only by rejected prototypes would not compile.
	for _, imp := range imports {
		if name := imp.Qualifier(); rejected[name] && !kept[name] {
			continue
		}
		p.block.Imports = append(p.block.Imports, ir.Import{Name: imp.Name, Path: imp.Path})
	}

	p.strayDirectives(f)
	if len(p.block.Funcs) == 0 && len(p.diags) == 0 {
		p.warn(p.block.Pos, "extern block declares no functions")
	}

	p.diags.Sort()
	return &p.block, p.diags
}

// directives reads the block directives that precede the package clause.
func (p *blockParser) directives(f *ast.File) *errors.Error {
	var linkPos, externPos token.Position
	linked, externed := false, false

	for _, group := range f.Comments {
		if group.Pos() > f.Package {
			break
		}
		for _, c := range group.List {
			if !strings.HasPrefix(c.Text, DirectivePrefix) {
				continue
			}
			name, arg, argOff := splitDirective(c.Text)
			pos := p.position(c.Slash)

			switch name {
			case LinkDirective:
				if linked {
					return errors.Duplicate(errors.PhaseDeclaration, p.span(c), "directive", LinkDirective, linkPos)
				}
				linked, linkPos = true, pos
				base := pos
				base.Offset += argOff
				base.Column += argOff
				s, err := annotation.Parse(arg, base)
				if err != nil {
					return err
				}
				p.block.Strategy = s

			case ExternDirective:
				if externed {
					return errors.Duplicate(errors.PhaseDeclaration, p.span(c), "directive", ExternDirective, externPos)
				}
				externed, externPos = true, pos
				abi, err := strconv.Unquote(arg)
				if err != nil || abi == "" {
					return errors.New(errors.PhaseDeclaration, errors.KindInvalidSyntax).
						At(p.span(c)).
						Detail("malformed %s directive", ExternDirective).
						Expected(`quoted calling convention such as "C"`).
						Found(strconv.Quote(arg)).
						Build()
				}
				p.block.ABI = dylink.ABI(abi)

			default:
				return errors.Unsupported(errors.PhaseDeclaration, p.span(c),
					fmt.Sprintf("unknown block directive %s", name))
			}
		}
	}

	pkgSpan := errors.Span{Start: p.block.Pos, End: p.position(f.Name.End())}
	if !linked {
		return errors.Missing(errors.PhaseDeclaration, pkgSpan, LinkDirective+" directive")
	}
	if !externed {
		return errors.Missing(errors.PhaseDeclaration, pkgSpan, ExternDirective+" directive (calling convention)")
	}

	if f.Doc != nil {
		for _, c := range f.Doc.List {
			if !strings.HasPrefix(c.Text, "//go:") && !strings.HasPrefix(c.Text, DirectivePrefix) {
				p.warn(p.position(f.Doc.Pos()), "unused doc comment: package documentation is not carried into generated code")
				break
			}
		}
	}
	return nil
}

func (p *blockParser) importSpec(spec *ast.ImportSpec) (importInfo, *errors.Error) {
	importPath, _ := strconv.Unquote(spec.Path.Value)
	imp := importInfo{Path: importPath}
	if spec.Name != nil {
		imp.Name = spec.Name.Name
	}
	if importPath == p.opts.RuntimePath && (imp.Name == "_" || imp.Name == ".") {
		return imp, errors.New(errors.PhaseDeclaration, errors.KindUnsupported).
			At(p.nodeSpan(spec)).
			Detail("runtime package %q cannot be imported as %s", importPath, imp.Name).
			Build()
	}
	if importPath != p.opts.RuntimePath && imp.Qualifier() == p.opts.RuntimeName {
		return imp, errors.Reserved(errors.PhaseDeclaration, p.nodeSpan(spec), imp.Qualifier(),
			"collides with the runtime package qualifier")
	}
	return imp, nil
}

func (p *blockParser) passThrough(d *ast.GenDecl) ir.Decl {
	start := d.Pos()
	if d.Doc != nil {
		start = d.Doc.Pos()
	}
	return ir.Decl{
		Text:       p.text(start, d.End()),
		Qualifiers: qualifiers(d),
		Pos:        p.position(d.Pos()),
	}
}

func (p *blockParser) function(d *ast.FuncDecl) (ir.Signature, *errors.Error) {
	name := d.Name.Name

	if d.Recv != nil {
		return ir.Signature{}, errors.New(errors.PhaseDeclaration, errors.KindUnsupported).
			At(p.nodeSpan(d.Recv)).
			Symbol(name).
			Detail("receiver arguments are unsupported").
			Build()
	}

	pos := p.position(d.Name.Pos())
	if first, ok := p.names[name]; ok && name != "_" {
		err := errors.Duplicate(errors.PhaseDeclaration, p.nodeSpan(d.Name), "function", name, first)
		return ir.Signature{}, err
	}
	p.names[name] = pos

	if d.Body != nil {
		return ir.Signature{}, errors.New(errors.PhaseDeclaration, errors.KindInvalidSyntax).
			At(p.nodeSpan(d.Body)).
			Symbol(name).
			Detail("missing terminator: extern functions are prototypes").
			Expected("declaration without a body").
			Found("function body").
			Build()
	}

	if err := p.checkName(d.Name, "function"); err != nil {
		return ir.Signature{}, withSymbol(err, name)
	}

	if d.Type.TypeParams != nil && len(d.Type.TypeParams.List) > 0 {
		return ir.Signature{}, p.unsupported(d.Type.TypeParams, name, "type parameters are unsupported")
	}

	sig := ir.Signature{
		Name:       name,
		Symbol:     name,
		ABI:        p.block.ABI,
		Visibility: ir.Unexported,
		Qualifiers: qualifiers(d.Type),
		Pos:        pos,
	}
	if ast.IsExported(name) {
		sig.Visibility = ir.Exported
	}

	params, err := p.params(d, name)
	if err != nil {
		return ir.Signature{}, err
	}
	sig.Params = params

	if res := d.Type.Results; res != nil && res.NumFields() > 0 {
		if res.NumFields() > 1 {
			return ir.Signature{}, p.unsupported(res, name, "multiple results are unsupported")
		}
		sig.Result = p.text(res.List[0].Type.Pos(), res.List[0].Type.End())
	}

	if d.Doc != nil {
		if err := p.attributes(d.Doc, &sig); err != nil {
			return ir.Signature{}, err
		}
	}
	return sig, nil
}

func (p *blockParser) params(d *ast.FuncDecl, fn string) ([]ir.Param, *errors.Error) {
	var (
		params   []ir.Param
		explicit = make(map[string]*ast.Ident)
	)

	for _, field := range d.Type.Params.List {
		if _, ok := field.Type.(*ast.Ellipsis); ok {
			return nil, p.unsupported(field, fn, "variadic parameters are unsupported")
		}
		typ := p.text(field.Type.Pos(), field.Type.End())

		if len(field.Names) == 0 {
			params = append(params, ir.Param{Type: typ, Synthesized: true})
			continue
		}
		for _, id := range field.Names {
			if id.Name == "_" {
				params = append(params, ir.Param{Type: typ, Synthesized: true})
				continue
			}
			if err := p.checkName(id, "parameter"); err != nil {
				return nil, withSymbol(err, fn)
			}
			if id.Name == fn {
				return nil, withSymbol(errors.Reserved(errors.PhaseDeclaration, p.nodeSpan(id), id.Name,
					"shadows the function it belongs to"), fn)
			}
			if first, ok := explicit[id.Name]; ok {
				return nil, errors.New(errors.PhaseDeclaration, errors.KindDuplicate).
					At(p.nodeSpan(id)).
					Symbol(fn).
					Detail("duplicate parameter %q, first declared at %s", id.Name, p.position(first.Pos())).
					Value(id.Name).
					Build()
			}
			explicit[id.Name] = id
			params = append(params, ir.Param{Name: id.Name, Type: typ})
		}
	}

	for i := range params {
		if !params[i].Synthesized {
			continue
		}
		params[i].Name = "p" + strconv.Itoa(i)
		if other, ok := explicit[params[i].Name]; ok {
			return nil, errors.New(errors.PhaseDeclaration, errors.KindDuplicate).
				At(p.nodeSpan(other)).
				Symbol(fn).
				Detail("parameter %q collides with the name generated for parameter %d", other.Name, i).
				Value(other.Name).
				Build()
		}
	}
	return params, nil
}

var symbolName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_@$.?]*$`)

func (p *blockParser) attributes(doc *ast.CommentGroup, sig *ir.Signature) *errors.Error {
	symbolSet := false
	for _, c := range doc.List {
		if !strings.HasPrefix(c.Text, DirectivePrefix) {
			sig.Attrs = append(sig.Attrs, c.Text)
			continue
		}
		name, arg, _ := splitDirective(c.Text)
		if name != SymbolDirective {
			return withSymbol(errors.Unsupported(errors.PhaseDeclaration, p.span(c),
				fmt.Sprintf("unknown function directive %s", name)), sig.Name)
		}
		if symbolSet {
			return withSymbol(errors.Duplicate(errors.PhaseDeclaration, p.span(c),
				"directive", SymbolDirective, token.Position{}), sig.Name)
		}
		if !symbolName.MatchString(arg) {
			return errors.New(errors.PhaseDeclaration, errors.KindInvalidSyntax).
				At(p.span(c)).
				Symbol(sig.Name).
				Detail("malformed %s directive", SymbolDirective).
				Expected("native symbol name").
				Found(strconv.Quote(arg)).
				Build()
		}
		symbolSet = true
		sig.Symbol = arg
	}
	return nil
}

// checkName rejects identifiers that collide with generated code.
func (p *blockParser) checkName(id *ast.Ident, what string) *errors.Error {
	span := p.nodeSpan(id)
	switch {
	case id.Name == "_" || id.Name == "init":
		return errors.Reserved(errors.PhaseDeclaration, span, id.Name, "cannot name an extern "+what)
	case strings.HasPrefix(id.Name, "__"):
		return errors.Reserved(errors.PhaseDeclaration, span, id.Name, "uses the prefix reserved for generated code")
	case id.Name == p.opts.RuntimeName:
		return errors.Reserved(errors.PhaseDeclaration, span, id.Name, "collides with the runtime package qualifier")
	}
	return nil
}

// strayDirectives warns about dylink directives that are neither block
// directives nor attached to a prototype.
func (p *blockParser) strayDirectives(f *ast.File) {
	attached := make(map[*ast.CommentGroup]bool)
	for _, d := range f.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok && fd.Doc != nil {
			attached[fd.Doc] = true
		}
	}
	for _, group := range f.Comments {
		if group.Pos() < f.Package || attached[group] {
			continue
		}
		for _, c := range group.List {
			if strings.HasPrefix(c.Text, DirectivePrefix) {
				p.warn(p.position(c.Slash), fmt.Sprintf("%s is ignored here", strings.Fields(c.Text)[0]))
			}
		}
	}
}

func (p *blockParser) unsupported(n ast.Node, fn, what string) *errors.Error {
	return errors.New(errors.PhaseDeclaration, errors.KindUnsupported).
		At(p.nodeSpan(n)).
		Symbol(fn).
		Detail("%s", what).
		Build()
}

func (p *blockParser) warn(pos token.Position, msg string) {
	p.block.Warnings.Add(&errors.Error{
		Phase:  errors.PhaseDeclaration,
		Kind:   errors.KindUnsupported,
		Span:   errors.Span{Start: pos},
		Detail: msg,
	})
}

func (p *blockParser) text(start, end token.Pos) string {
	return string(p.src[p.file.Offset(start):p.file.Offset(end)])
}

func (p *blockParser) position(pos token.Pos) token.Position {
	return p.fset.Position(pos)
}

func (p *blockParser) nodeSpan(n ast.Node) errors.Span {
	return errors.Span{Start: p.position(n.Pos()), End: p.position(n.End())}
}

func (p *blockParser) span(c *ast.Comment) errors.Span {
	return p.nodeSpan(c)
}

func withSymbol(err *errors.Error, name string) *errors.Error {
	err.Symbol = name
	return err
}

// splitDirective splits "//dylink:name arg" into its name, its trimmed
// argument and the byte offset of the argument within the comment.
func splitDirective(text string) (name, arg string, argOff int) {
	i := strings.IndexAny(text, " \t")
	if i < 0 {
		return text, "", len(text)
	}
	trimmed := strings.TrimLeft(text[i:], " \t")
	argOff = len(text) - len(trimmed)
	return text[:i], strings.TrimRight(trimmed, " \t"), argOff
}

func syntaxErrors(err error) errors.List {
	var list errors.List
	if el, ok := err.(scanner.ErrorList); ok {
		for _, e := range el {
			list.Add(errors.New(errors.PhaseDeclaration, errors.KindInvalidSyntax).
				At(errors.Span{Start: e.Pos}).
				Detail("%s", e.Msg).
				Build())
		}
		return list
	}
	list.Add(errors.Wrap(errors.PhaseDeclaration, errors.KindInvalidInput, err, "cannot parse input"))
	return list
}

func qualifiers(n ast.Node) []string {
	var names []string
	ast.Inspect(n, func(n ast.Node) bool {
		if sel, ok := n.(*ast.SelectorExpr); ok {
			if x, ok := sel.X.(*ast.Ident); ok && !slices.Contains(names, x.Name) {
				names = append(names, x.Name)
			}
		}
		return true
	})
	return names
}

type importInfo struct {
	Name string
	Path string
}

// Qualifier returns the name the import is referenced by, guessing the
// package name from the last path element for unnamed imports.
func (i importInfo) Qualifier() string {
	if i.Name != "" {
		return i.Name
	}
	base := path.Base(i.Path)
	if isMajorVersion(base) {
		base = path.Base(path.Dir(i.Path))
	}
	base = strings.TrimPrefix(base, "go-")
	base = strings.TrimSuffix(base, ".go")
	return strings.ReplaceAll(base, "-", "_")
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	_, err := strconv.Atoi(s[1:])
	return err == nil
}
