package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/dylink/gen"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	funcStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	symbolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// listHeight is the number of unit rows shown above the code view.
const listHeight = 8

type unitInfo struct {
	file     string
	name     string
	symbol   string
	strategy string
	injected bool
	code     string
}

func (u unitInfo) matches(filter string) bool {
	if filter == "" {
		return true
	}
	filter = strings.ToLower(filter)
	return strings.Contains(strings.ToLower(u.name), filter) ||
		strings.Contains(strings.ToLower(u.symbol), filter) ||
		strings.Contains(strings.ToLower(u.file), filter)
}

type interactiveModel struct {
	units    []unitInfo
	visible  []int
	diags    []string
	filter   textinput.Model
	code     viewport.Model
	selected int
	ready    bool
}

func newInteractiveModel(g *gen.Generator, results []*gen.Result) (*interactiveModel, error) {
	m := &interactiveModel{}
	r := &reporter{}
	for _, res := range results {
		for _, d := range res.Diagnostics {
			m.diags = append(m.diags, r.format(d, sevError))
		}
		for i := range res.Units {
			u := &res.Units[i]
			code, err := g.RenderUnit(u)
			if err != nil {
				return nil, fmt.Errorf("render %s: %w", u.Signature.Name, err)
			}
			m.units = append(m.units, unitInfo{
				file:     filepath.Base(res.Input),
				name:     u.Signature.Name,
				symbol:   u.Signature.Symbol,
				strategy: u.Strategy.String(),
				injected: u.Injected(),
				code:     string(code),
			})
		}
	}

	ti := textinput.New()
	ti.Placeholder = "filter by name, symbol or file"
	ti.Prompt = "/ "
	ti.Width = 40
	ti.Focus()
	m.filter = ti

	m.code = viewport.New(80, 20)
	m.applyFilter()
	return m, nil
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "up":
			if m.selected > 0 {
				m.selected--
				m.showSelected()
			}
			return m, nil

		case "down":
			if m.selected < len(m.visible)-1 {
				m.selected++
				m.showSelected()
			}
			return m, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.code, cmd = m.code.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.code.Width = msg.Width
		m.code.Height = max(msg.Height-listHeight-len(m.diags)-6, 3)
		m.ready = true
		m.showSelected()
	}

	before := m.filter.Value()
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	cmds = append(cmds, cmd)
	if m.filter.Value() != before {
		m.applyFilter()
	}

	return m, tea.Batch(cmds...)
}

func (m *interactiveModel) applyFilter() {
	m.visible = m.visible[:0]
	for i, u := range m.units {
		if u.matches(m.filter.Value()) {
			m.visible = append(m.visible, i)
		}
	}
	m.selected = 0
	m.showSelected()
}

func (m *interactiveModel) current() (unitInfo, bool) {
	if m.selected < 0 || m.selected >= len(m.visible) {
		return unitInfo{}, false
	}
	return m.units[m.visible[m.selected]], true
}

func (m *interactiveModel) showSelected() {
	u, ok := m.current()
	if !ok {
		m.code.SetContent("")
		return
	}
	m.code.SetContent(u.code)
	m.code.GotoTop()
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("dylink"))
	b.WriteString(fmt.Sprintf(" %d functions\n\n", len(m.units)))
	b.WriteString(m.filter.View())
	b.WriteString("\n\n")

	if len(m.visible) == 0 {
		b.WriteString(helpStyle.Render("no matching functions"))
		b.WriteString("\n")
	}

	start := 0
	if m.selected >= listHeight {
		start = m.selected - listHeight + 1
	}
	for i := start; i < len(m.visible) && i < start+listHeight; i++ {
		line := m.formatUnit(m.units[m.visible[i]])
		if i == m.selected {
			b.WriteString(selectedStyle.Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for _, d := range m.diags {
		b.WriteString(errorStyle.Render(d))
		b.WriteString("\n")
	}

	if m.ready {
		b.WriteString(m.code.View())
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("type to filter • ↑/↓ select • pgup/pgdown scroll • esc quit"))
	return b.String()
}

func (m *interactiveModel) formatUnit(u unitInfo) string {
	s := funcStyle.Render(u.name)
	if u.symbol != u.name {
		s += " → " + symbolStyle.Render(u.symbol)
	}
	s += "  " + helpStyle.Render(u.file+" "+u.strategy)
	if u.injected {
		s += helpStyle.Render(" +lifecycle")
	}
	return s
}

func runInteractive(g *gen.Generator, results []*gen.Result) error {
	m, err := newInteractiveModel(g, results)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
