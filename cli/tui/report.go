package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gridops-tools/ctgrun/types"
)

const (
	defaultTableHeight = 15
	minColumnWidth     = 6
	maxColumnWidth     = 32
)

var sheetTitles = []string{"Voltage", "Flow (pu)", "Unsolved"}

// ReportModel browses the three violation tables, one sheet at a time.
type ReportModel struct {
	tables   []table.Model
	counts   []int
	active   int
	quitting bool
}

// NewReportModel creates a viewer for rpt.
func NewReportModel(rpt *types.ViolationReport) ReportModel {
	m := ReportModel{}
	for _, t := range rpt.Tables() {
		m.tables = append(m.tables, newTable(t))
		m.counts = append(m.counts, t.Len())
	}
	m.tables[0].Focus()
	return m
}

func newTable(t types.Table) table.Model {
	widths := make([]int, len(t.Columns))
	for i, c := range t.Columns {
		widths[i] = max(minColumnWidth, len(c))
	}
	for _, row := range t.Rows {
		for i := range widths {
			if i < len(row) {
				widths[i] = max(widths[i], len(row[i]))
			}
		}
	}

	cols := make([]table.Column, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = table.Column{Title: c, Width: min(widths[i], maxColumnWidth)}
	}
	rows := make([]table.Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		// Rows must have exactly one cell per column.
		row := make(table.Row, len(cols))
		copy(row, r)
		rows = append(rows, row)
	}

	tm := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithHeight(defaultTableHeight),
	)
	tm.SetStyles(tableStyles())
	return tm
}

// Active returns the index of the sheet being shown.
func (m ReportModel) Active() int {
	return m.active
}

// Init implements tea.Model.
func (m ReportModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ReportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h := max(msg.Height-8, 3)
		for i := range m.tables {
			m.tables[i].SetHeight(h)
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.switchTo((m.active + 1) % len(m.tables))
			return m, nil
		case key.Matches(msg, keys.Prev):
			m.switchTo((m.active + len(m.tables) - 1) % len(m.tables))
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.tables[m.active], cmd = m.tables[m.active].Update(msg)
	return m, cmd
}

func (m *ReportModel) switchTo(i int) {
	m.tables[m.active].Blur()
	m.active = i
	m.tables[m.active].Focus()
}

// View implements tea.Model.
func (m ReportModel) View() string {
	if m.quitting {
		return ""
	}

	var tabs []string
	for i, title := range sheetTitles {
		label := fmt.Sprintf("%s %d", title, m.counts[i])
		if i == m.active {
			tabs = append(tabs, ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, TabStyle.Render(label))
		}
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Contingency Violations"))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n\n")
	if m.counts[m.active] == 0 {
		b.WriteString(SuccessStyle.Render("No rows."))
	} else {
		b.WriteString(m.tables[m.active].View())
	}
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("tab/shift+tab switch sheet, up/down scroll, q quit"))
	return b.String()
}
