// Package ir is the typed intermediate form produced by the synthesizer and
// consumed by the printer: one Unit (cache cell + trampoline) per extern
// function, grouped into a File per input.
package ir

import (
	"go/token"
	"strings"

	"github.com/wippyai/dylink"
)

// Visibility is the scope of a declared function and its cache cell.
type Visibility int

const (
	Unexported Visibility = iota
	Exported
)

func (v Visibility) String() string {
	if v == Exported {
		return "exported"
	}
	return "unexported"
}

// Param is a parameter of an extern function.
type Param struct {
	Name string
	// Type is the source spelling of the parameter type.
	Type string
	// Synthesized is set when Name was generated for a blank or unnamed parameter.
	Synthesized bool
}

// Signature is a validated extern function prototype.
type Signature struct {
	Name   string
	Symbol string
	ABI    dylink.ABI
	Params []Param
	// Result is the source spelling of the single result type, or "".
	Result string
	// Attrs are comment lines copied verbatim onto the cache cell.
	Attrs      []string
	Visibility Visibility
	// Qualifiers lists the package names referenced by the parameter and
	// result types.
	Qualifiers []string
	Pos        token.Position
}

// HasResult reports whether the function returns a value.
func (s *Signature) HasResult() bool { return s.Result != "" }

// ParamList renders the parameter list without parentheses: "a T, b U".
func (s *Signature) ParamList() string {
	parts := make([]string, len(s.Params))
	for i, p := range s.Params {
		parts[i] = p.Name + " " + p.Type
	}
	return strings.Join(parts, ", ")
}

// Args renders the parameter names as call arguments: "a, b".
func (s *Signature) Args() string {
	names := make([]string, len(s.Params))
	for i, p := range s.Params {
		names[i] = p.Name
	}
	return strings.Join(names, ", ")
}

// FuncType renders the function type: "func(a T, b U) R".
func (s *Signature) FuncType() string {
	t := "func(" + s.ParamList() + ")"
	if s.HasResult() {
		t += " " + s.Result
	}
	return t
}

// Stmt is a trampoline body statement.
type Stmt interface {
	stmt()
}

// Forward calls the resolved function with every parameter in order.
// A Tail forward returns the call's result directly; otherwise the result,
// if any, is held until Return.
type Forward struct {
	Tail bool
}

// TrackOp is a lifecycle table operation.
type TrackOp int

const (
	Register TrackOp = iota
	Unregister
)

func (op TrackOp) String() string {
	if op == Unregister {
		return "unregister"
	}
	return "register"
}

// Track records the handle carried by parameter Param in a lifecycle table.
type Track struct {
	// Table is the name of the runtime table variable, e.g. "Instances".
	Table string
	Op    TrackOp
	Param int
}

// Return returns the result held by a non-tail Forward.
type Return struct{}

func (Forward) stmt() {}
func (Track) stmt()   {}
func (Return) stmt()  {}

// Unit is the generated pair for one extern function.
type Unit struct {
	// CellID names the cache cell; it keeps the declared function name.
	CellID string
	// TrampolineID names the first-call trampoline.
	TrampolineID string
	Signature    Signature
	Strategy     dylink.Strategy
	Body         []Stmt
}

// Injected reports whether the body carries lifecycle bookkeeping.
func (u *Unit) Injected() bool {
	for _, s := range u.Body {
		if _, ok := s.(Track); ok {
			return true
		}
	}
	return false
}

// Import is an import carried into the generated file.
type Import struct {
	Name string
	Path string
}

// Decl is a declaration passed through verbatim.
type Decl struct {
	Text       string
	Qualifiers []string
	Pos        token.Position
}

// File is everything rendered into one generated file.
type File struct {
	// Source is the base name of the input file.
	Source      string
	Package     string
	Tag         string
	RuntimePath string
	// RuntimeName is the qualifier the generated code uses for the runtime.
	RuntimeName string
	Imports     []Import
	Decls       []Decl
	Units       []Unit
}
