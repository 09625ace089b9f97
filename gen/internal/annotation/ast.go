package annotation

import "github.com/wippyai/dylink/gen/internal/token"

// Expr is a node of a parsed annotation. Pos and End are byte offsets into
// the annotation text.
type Expr interface {
	Pos() int
	End() int
	exprNode()
}

// Ident is a bare identifier such as `vulkan` or `name`.
type Ident struct {
	Name    string
	NamePos int
	NameEnd int
}

// Lit is a string or number literal. Value keeps the source spelling.
type Lit struct {
	Value  string
	Kind   token.Type
	ValPos int
	ValEnd int
}

// Assign is `lhs = rhs`.
type Assign struct {
	LHS Expr
	RHS Expr
}

// Call is `fun(args...)`.
type Call struct {
	Fun    Expr
	Args   []Expr
	Rparen int
}

func (x *Ident) Pos() int  { return x.NamePos }
func (x *Ident) End() int  { return x.NameEnd }
func (x *Lit) Pos() int    { return x.ValPos }
func (x *Lit) End() int    { return x.ValEnd }
func (x *Assign) Pos() int { return x.LHS.Pos() }
func (x *Assign) End() int { return x.RHS.End() }
func (x *Call) Pos() int   { return x.Fun.Pos() }
func (x *Call) End() int   { return x.Rparen + 1 }

func (*Ident) exprNode()  {}
func (*Lit) exprNode()    {}
func (*Assign) exprNode() {}
func (*Call) exprNode()   {}

// IsIdent reports whether e is the identifier name.
func IsIdent(e Expr, name string) bool {
	id, ok := e.(*Ident)
	return ok && id.Name == name
}
