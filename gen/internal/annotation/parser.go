package annotation

import (
	gotoken "go/token"
	"strconv"
	"strings"

	"github.com/wippyai/dylink"
	"github.com/wippyai/dylink/errors"
	"github.com/wippyai/dylink/gen/internal/token"
)

// Diagnostic messages. Callers and tests match on them.
const (
	MsgShape        = "expected `vulkan`, `opengl`, `any`, or `name`"
	MsgName         = "expected identifier `name`"
	MsgStringLit    = "expected string literal"
	MsgFuncAny      = "expected function `any`"
	MsgNameArg      = "expected `name = <string>`"
	MsgNoArguments  = "no arguments detected"
	MsgEmpty        = "empty link annotation"
	MsgUnterminated = "unterminated string literal"
)

// expectations pairs each diagnostic with the input it accepts instead.
var expectations = map[string]string{
	MsgShape:        "`vulkan`, `opengl`, `any(...)`, or `name = <string>`",
	MsgName:         "`name`",
	MsgStringLit:    "string literal",
	MsgFuncAny:      "`any`",
	MsgNameArg:      "`name = <string>`",
	MsgNoArguments:  "at least one `name = <string>`",
	MsgEmpty:        "link annotation",
	MsgUnterminated: "closing quote",
	msgEOF:          "expression",
	msgRparen:       "`)`",
}

const (
	msgEOF    = "unexpected end of annotation"
	msgRparen = "missing `)`"
)

// Parser parses one link annotation.
type Parser struct {
	text   string
	base   gotoken.Position
	tokens []token.Token
	pos    int
}

// New creates a parser for an annotation whose first byte sits at base.
func New(text string, base gotoken.Position) *Parser {
	return &Parser{
		text:   text,
		base:   base,
		tokens: token.Tokenize(text),
	}
}

// Parse parses a link annotation into a strategy.
func Parse(text string, base gotoken.Position) (dylink.Strategy, *errors.Error) {
	p := New(text, base)
	expr, err := p.ParseExpr()
	if err != nil {
		return dylink.Strategy{}, err
	}
	return p.Strategy(expr)
}

// ParseExpr parses the whole annotation as a single expression.
func (p *Parser) ParseExpr() (Expr, *errors.Error) {
	if len(p.tokens) == 0 {
		return nil, p.errorAt(0, len(p.text), MsgEmpty)
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t != nil {
		return nil, p.unexpected(t, "end of annotation")
	}
	return expr, nil
}

// Strategy converts a parsed annotation to a link strategy. The three accepted
// forms are a well-known keyword, `name = "<lib>"` and
// `any(name = "<lib>", ...)`. The first offending sub-expression is reported.
func (p *Parser) Strategy(e Expr) (dylink.Strategy, *errors.Error) {
	switch x := e.(type) {
	case *Ident:
		if tag, ok := dylink.TagFromKeyword(x.Name); ok {
			return dylink.WellKnown(tag), nil
		}
		return dylink.Strategy{}, p.errorIn(x, MsgShape)

	case *Assign:
		lib, err := p.library(x)
		if err != nil {
			return dylink.Strategy{}, err
		}
		return dylink.Named(lib), nil

	case *Call:
		if !IsIdent(x.Fun, "any") {
			return dylink.Strategy{}, p.errorIn(x.Fun, MsgFuncAny)
		}
		// any() does not nest; only name assignments are accepted inside.
		libs := make([]string, 0, len(x.Args))
		for _, arg := range x.Args {
			assign, ok := arg.(*Assign)
			if !ok {
				return dylink.Strategy{}, p.errorIn(arg, MsgNameArg)
			}
			lib, err := p.library(assign)
			if err != nil {
				return dylink.Strategy{}, err
			}
			libs = append(libs, lib)
		}
		if len(libs) == 0 {
			return dylink.Strategy{}, p.errorIn(x, MsgNoArguments)
		}
		return dylink.NamedAny(libs...), nil
	}

	return dylink.Strategy{}, p.errorIn(e, MsgShape)
}

func (p *Parser) library(a *Assign) (string, *errors.Error) {
	if !IsIdent(a.LHS, "name") {
		return "", p.errorIn(a.LHS, MsgName)
	}
	lit, ok := a.RHS.(*Lit)
	if !ok || lit.Kind != token.String {
		return "", p.errorIn(a.RHS, MsgStringLit)
	}
	lib, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", errors.New(errors.PhaseAnnotation, errors.KindInvalidSyntax).
			At(p.span(lit.ValPos, lit.ValEnd)).
			Detail("invalid string literal %s", lit.Value).
			Expected("valid Go string literal").
			Found(lit.Value).
			Cause(err).
			Build()
	}
	return lib, nil
}

func (p *Parser) parseExpr() (Expr, *errors.Error) {
	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t == nil || t.Type != token.Assign {
		return lhs, nil
	}
	p.next()
	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &Assign{LHS: lhs, RHS: rhs}, nil
}

func (p *Parser) parseOperand() (Expr, *errors.Error) {
	t := p.next()
	if t == nil {
		return nil, p.errorAt(len(p.text), len(p.text), msgEOF)
	}

	switch t.Type {
	case token.Ident:
		id := &Ident{Name: t.Value, NamePos: t.Offset, NameEnd: t.End}
		if next := p.peek(); next != nil && next.Type == token.LParen {
			return p.parseCall(id)
		}
		return id, nil
	case token.String, token.Number:
		return &Lit{Value: t.Value, Kind: t.Type, ValPos: t.Offset, ValEnd: t.End}, nil
	case token.Illegal:
		if strings.HasPrefix(t.Value, `"`) || strings.HasPrefix(t.Value, "`") {
			return nil, p.errorAt(t.Offset, t.End, MsgUnterminated)
		}
	}
	return nil, p.unexpected(t, "expression")
}

func (p *Parser) parseCall(fun Expr) (Expr, *errors.Error) {
	lparen := p.next()
	call := &Call{Fun: fun}

	for {
		t := p.peek()
		if t == nil {
			return nil, p.errorAt(lparen.Offset, len(p.text), msgRparen)
		}
		if t.Type == token.RParen {
			p.next()
			call.Rparen = t.Offset
			return call, nil
		}

		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)

		t = p.peek()
		switch {
		case t == nil:
			continue
		case t.Type == token.Comma:
			p.next()
		case t.Type != token.RParen:
			return nil, p.unexpected(t, "`,` or `)`")
		}
	}
}

func (p *Parser) peek() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	return &p.tokens[p.pos]
}

func (p *Parser) next() *token.Token {
	if p.pos >= len(p.tokens) {
		return nil
	}
	t := &p.tokens[p.pos]
	p.pos++
	return t
}

func (p *Parser) unexpected(t *token.Token, expected string) *errors.Error {
	return errors.New(errors.PhaseAnnotation, errors.KindInvalidSyntax).
		At(p.span(t.Offset, t.End)).
		Detail("unexpected %s %s", t.Type, t.Value).
		Expected(expected).
		Found(t.Value).
		Build()
}

func (p *Parser) errorIn(e Expr, msg string) *errors.Error {
	return p.errorAt(e.Pos(), e.End(), msg)
}

func (p *Parser) errorAt(start, end int, msg string) *errors.Error {
	return errors.New(errors.PhaseAnnotation, errors.KindInvalidSyntax).
		At(p.span(start, end)).
		Detail("%s", msg).
		Expected(expectations[msg]).
		Found(p.found(start, end)).
		Build()
}

// found returns the offending source text, or "end of annotation" when the
// range is empty.
func (p *Parser) found(start, end int) string {
	if start < 0 || end > len(p.text) || start >= end {
		return "end of annotation"
	}
	if text := strings.TrimSpace(p.text[start:end]); text != "" {
		return text
	}
	return "end of annotation"
}

func (p *Parser) span(start, end int) errors.Span {
	return errors.Span{Start: p.position(start), End: p.position(end)}
}

// position maps a byte offset in the annotation back to the source file.
// Annotations never span lines.
func (p *Parser) position(off int) gotoken.Position {
	pos := p.base
	if !pos.IsValid() {
		return gotoken.Position{}
	}
	pos.Offset += off
	pos.Column += off
	return pos
}
