// Package errors provides structured diagnostics for dylink.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// Parser diagnostics also carry the source Span of the offending sub-expression and an
// expected/found pair.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseAnnotation, errors.KindInvalidSyntax).
//		At(span).
//		Expected("string literal").
//		Found("42").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Syntax(errors.PhaseDeclaration, span, "`;`", "function body")
//	err := errors.Unsupported(errors.PhaseDeclaration, span, "receiver arguments are unsupported")
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
