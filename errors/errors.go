package errors

import (
	"fmt"
	"go/token"
	"sort"
	"strings"

	"go.uber.org/multierr"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseAnnotation  Phase = "annotation"  // link annotation parsing
	PhaseDeclaration Phase = "declaration" // extern block parsing
	PhaseGenerate    Phase = "generate"    // synthesis and printing
	PhaseResolve     Phase = "resolve"     // runtime symbol resolution
	PhaseConfig      Phase = "config"      // generator configuration
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidSyntax Kind = "invalid_syntax"
	KindUnsupported   Kind = "unsupported"
	KindDuplicate     Kind = "duplicate"
	KindMissing       Kind = "missing"
	KindReserved      Kind = "reserved"
	KindNotFound      Kind = "not_found"
	KindInvalidInput  Kind = "invalid_input"
	KindInternal      Kind = "internal"
)

// Span is a half-open source range.
type Span struct {
	Start token.Position
	End   token.Position
}

// IsValid reports whether the span points into a source file.
func (s Span) IsValid() bool {
	return s.Start.IsValid()
}

// String formats the span start the way go/token does.
func (s Span) String() string {
	if !s.Start.IsValid() {
		return ""
	}
	return s.Start.String()
}

// Error is the structured error type used throughout dylink
type Error struct {
	Value    any
	Cause    error
	Phase    Phase
	Kind     Kind
	Span     Span
	Expected string
	Found    string
	Detail   string
	Symbol   string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Span.IsValid() {
		b.WriteString(e.Span.String())
		b.WriteString(": ")
	}

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Symbol != "" {
		b.WriteString(" at ")
		b.WriteString(e.Symbol)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Expected != "" || e.Found != "" {
		b.WriteString(" (")
		if e.Expected != "" {
			b.WriteString("expected ")
			b.WriteString(e.Expected)
		}
		if e.Found != "" {
			if e.Expected != "" {
				b.WriteString(", ")
			}
			b.WriteString("found ")
			b.WriteString(e.Found)
		}
		b.WriteByte(')')
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// At sets the source span
func (b *Builder) At(span Span) *Builder {
	b.err.Span = span
	return b
}

// Symbol sets the function or symbol the error refers to
func (b *Builder) Symbol(name string) *Builder {
	b.err.Symbol = name
	return b
}

// Expected sets what the parser expected
func (b *Builder) Expected(s string) *Builder {
	b.err.Expected = s
	return b
}

// Found sets what the parser found instead
func (b *Builder) Found(s string) *Builder {
	b.err.Found = s
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Syntax creates an expected/found syntax error
func Syntax(phase Phase, span Span, expected, found string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindInvalidSyntax,
		Span:     span,
		Expected: expected,
		Found:    found,
	}
}

// Unsupported creates an unsupported construct error
func Unsupported(phase Phase, span Span, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Span:   span,
		Detail: what,
	}
}

// Missing creates an error for a required element that is absent
func Missing(phase Phase, span Span, what string) *Error {
	return &Error{
		Phase:    phase,
		Kind:     KindMissing,
		Span:     span,
		Detail:   fmt.Sprintf("missing %s", what),
		Expected: what,
	}
}

// Duplicate creates a duplicate definition error
func Duplicate(phase Phase, span Span, what, name string, first token.Position) *Error {
	detail := fmt.Sprintf("duplicate %s %q", what, name)
	if first.IsValid() {
		detail += fmt.Sprintf(", first declared at %s", first)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindDuplicate,
		Span:   span,
		Detail: detail,
		Symbol: name,
		Value:  name,
	}
}

// Reserved creates an error for a name that collides with generated code
func Reserved(phase Phase, span Span, name, reason string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindReserved,
		Span:   span,
		Detail: fmt.Sprintf("%q %s", name, reason),
		Value:  name,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
		Symbol: name,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Internal creates an error for a generator defect
func Internal(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseGenerate,
		Kind:   KindInternal,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// List is an ordered collection of diagnostics.
type List []*Error

// Add appends a diagnostic; nil is ignored.
func (l *List) Add(err *Error) {
	if err != nil {
		*l = append(*l, err)
	}
}

// Sort orders diagnostics by file, line and column.
func (l List) Sort() {
	sort.SliceStable(l, func(i, j int) bool {
		a, b := l[i].Span.Start, l[j].Span.Start
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Column < b.Column
	})
}

// Err combines the list into a single error, or nil when empty.
func (l List) Err() error {
	var err error
	for _, e := range l {
		err = multierr.Append(err, e)
	}
	return err
}

// Flatten extracts every *Error from a combined error.
// Errors that are not *Error are wrapped as internal diagnostics.
func Flatten(err error) List {
	if err == nil {
		return nil
	}
	var out List
	for _, e := range multierr.Errors(err) {
		if de, ok := e.(*Error); ok {
			out = append(out, de)
			continue
		}
		out = append(out, Internal("unexpected error", e))
	}
	return out
}
