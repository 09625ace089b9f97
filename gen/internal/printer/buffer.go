package printer

import (
	"fmt"
	"strings"
)

// Buffer accumulates source lines at the current indentation depth.
type Buffer struct {
	Bytes  []byte
	indent int
}

func (b *Buffer) Line(s string) {
	if s != "" {
		b.Bytes = append(b.Bytes, strings.Repeat("\t", b.indent)...)
		b.Bytes = append(b.Bytes, s...)
	}
	b.Bytes = append(b.Bytes, '\n')
}

func (b *Buffer) Linef(format string, args ...any) {
	b.Line(fmt.Sprintf(format, args...))
}

func (b *Buffer) Blank() {
	b.Bytes = append(b.Bytes, '\n')
}

// Open writes s and indents the lines that follow.
func (b *Buffer) Open(s string) {
	b.Line(s)
	b.indent++
}

// Close dedents and writes s.
func (b *Buffer) Close(s string) {
	if b.indent > 0 {
		b.indent--
	}
	b.Line(s)
}

// Text writes a multi-line fragment verbatim.
func (b *Buffer) Text(s string) {
	b.Bytes = append(b.Bytes, s...)
	if !strings.HasSuffix(s, "\n") {
		b.Bytes = append(b.Bytes, '\n')
	}
}
