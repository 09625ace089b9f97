package token

import (
	"unicode"
	"unicode/utf8"
)

type Type int

const (
	Illegal Type = iota
	Ident
	String
	Number
	LParen
	RParen
	Comma
	Assign
)

func (t Type) String() string {
	switch t {
	case Ident:
		return "identifier"
	case String:
		return "string literal"
	case Number:
		return "number"
	case LParen:
		return "'('"
	case RParen:
		return "')'"
	case Comma:
		return "','"
	case Assign:
		return "'='"
	}
	return "illegal token"
}

// Token is a lexeme of a link annotation. Offset and End are byte offsets into
// the annotation text; String tokens keep their quotes.
type Token struct {
	Value  string
	Type   Type
	Offset int
	End    int
}

// Tokenize splits a link annotation into tokens. It never fails: characters
// outside the annotation language and unterminated strings become Illegal
// tokens for the parser to report.
func Tokenize(input string) []Token {
	var tokens []Token

	for i := 0; i < len(input); {
		r, size := utf8.DecodeRuneInString(input[i:])

		if unicode.IsSpace(r) {
			i += size
			continue
		}

		switch r {
		case '(':
			tokens = append(tokens, Token{"(", LParen, i, i + 1})
			i++
			continue
		case ')':
			tokens = append(tokens, Token{")", RParen, i, i + 1})
			i++
			continue
		case ',':
			tokens = append(tokens, Token{",", Comma, i, i + 1})
			i++
			continue
		case '=':
			tokens = append(tokens, Token{"=", Assign, i, i + 1})
			i++
			continue
		}

		// Interpreted or raw string literal
		if r == '"' || r == '`' {
			start := i
			i++
			closed := false
			for i < len(input) {
				c := input[i]
				if c == '\\' && r == '"' {
					i += 2
					continue
				}
				if c == '\n' && r == '"' {
					break
				}
				i++
				if rune(c) == r {
					closed = true
					break
				}
			}
			i = min(i, len(input))
			typ := String
			if !closed {
				typ = Illegal
			}
			tokens = append(tokens, Token{input[start:i], typ, start, i})
			continue
		}

		if unicode.IsDigit(r) {
			start := i
			for i < len(input) {
				c, n := utf8.DecodeRuneInString(input[i:])
				if !isIdentRune(c) && c != '.' {
					break
				}
				i += n
			}
			tokens = append(tokens, Token{input[start:i], Number, start, i})
			continue
		}

		if unicode.IsLetter(r) || r == '_' {
			start := i
			for i < len(input) {
				c, n := utf8.DecodeRuneInString(input[i:])
				if !isIdentRune(c) {
					break
				}
				i += n
			}
			tokens = append(tokens, Token{input[start:i], Ident, start, i})
			continue
		}

		tokens = append(tokens, Token{input[i : i+size], Illegal, i, i + size})
		i += size
	}

	return tokens
}

func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}
