package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/wippyai/dylink/errors"
	"github.com/wippyai/dylink/gen"
)

var (
	posStyle = lipgloss.NewStyle().
			Bold(true)

	errorLabel = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	warnLabel = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD75F"))

	kindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))
)

type severity int

const (
	sevError severity = iota
	sevWarning
)

// reporter prints diagnostics, styled when writing to a terminal.
type reporter struct {
	w      io.Writer
	styled bool
}

func newReporter(f *os.File) *reporter {
	return &reporter{w: f, styled: term.IsTerminal(int(f.Fd()))}
}

// Results prints every diagnostic and warning and returns the number of
// diagnostics.
func (r *reporter) Results(results []*gen.Result) int {
	n := 0
	for _, res := range results {
		for _, w := range res.Warnings {
			fmt.Fprintln(r.w, r.format(w, sevWarning))
		}
		for _, d := range res.Diagnostics {
			fmt.Fprintln(r.w, r.format(d, sevError))
			n++
		}
	}
	return n
}

// Stale reports every output that differs from what is on disk and returns
// how many do.
func (r *reporter) Stale(results []*gen.Result) (int, error) {
	n := 0
	for _, res := range results {
		if res.Rejected() {
			continue
		}
		stale, err := res.Stale()
		if err != nil {
			return n, err
		}
		if stale {
			fmt.Fprintf(r.w, "%s: %s\n", r.style(posStyle, res.Output), "out of date")
			n++
		}
	}
	return n, nil
}

func (r *reporter) format(e *errors.Error, sev severity) string {
	var b strings.Builder
	if e.Span.IsValid() {
		pos := e.Span.Start
		pos.Filename = relPath(pos.Filename)
		b.WriteString(r.style(posStyle, pos.String()))
		b.WriteString(": ")
	}

	if sev == sevWarning {
		b.WriteString(r.style(warnLabel, "warning"))
	} else {
		b.WriteString(r.style(errorLabel, "error"))
	}
	b.WriteString(": ")

	msg := e.Detail
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Symbol != "" && !strings.Contains(msg, e.Symbol) {
		msg = e.Symbol + ": " + msg
	}
	b.WriteString(msg)
	b.WriteString(" ")
	b.WriteString(r.style(kindStyle, "["+string(e.Phase)+"/"+string(e.Kind)+"]"))

	if e.Expected != "" || e.Found != "" {
		var hint []string
		if e.Expected != "" {
			hint = append(hint, "expected "+e.Expected)
		}
		if e.Found != "" {
			hint = append(hint, "found "+e.Found)
		}
		b.WriteString("\n\t")
		b.WriteString(r.style(hintStyle, strings.Join(hint, ", ")))
	}
	if e.Cause != nil {
		b.WriteString("\n\t")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (r *reporter) style(s lipgloss.Style, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}

func relPath(name string) string {
	wd, err := os.Getwd()
	if err != nil || !filepath.IsAbs(name) {
		return name
	}
	if rel, err := filepath.Rel(wd, name); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return name
}
