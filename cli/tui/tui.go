package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gridops-tools/ctgrun/archive"
	"github.com/gridops-tools/ctgrun/metrics"
	"github.com/gridops-tools/ctgrun/types"
)

// View types that support TUI mode.
const (
	ViewReport  = "report"
	ViewRun     = "run"
	ViewMetrics = "metrics"
)

// Run starts the viewer for viewType. Returns an error if the view type does
// not support TUI or data has the wrong type.
func Run(viewType string, data any) error {
	model, err := NewModel(viewType, data)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}

// NewModel builds the Bubble Tea model for viewType.
func NewModel(viewType string, data any) (tea.Model, error) {
	switch viewType {
	case ViewReport:
		rpt, ok := data.(*types.ViolationReport)
		if !ok || rpt == nil {
			return nil, fmt.Errorf("report view needs a violation report, got %T", data)
		}
		return NewReportModel(rpt), nil
	case ViewRun:
		rec, ok := data.(*archive.RunRecord)
		if !ok || rec == nil {
			return nil, fmt.Errorf("run view needs a run record, got %T", data)
		}
		return NewRunModel(rec), nil
	case ViewMetrics:
		snap, ok := data.(*metrics.Snapshot)
		if !ok || snap == nil {
			return nil, fmt.Errorf("metrics view needs a metrics snapshot, got %T", data)
		}
		return NewMetricsModel(snap), nil
	default:
		return nil, fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
}

// IsTUISupported returns true if the view type supports TUI mode.
func IsTUISupported(viewType string) bool {
	for _, v := range SupportedTUIViews() {
		if v == viewType {
			return true
		}
	}
	return false
}

// SupportedTUIViews returns the view types that support TUI.
func SupportedTUIViews() []string {
	return []string{ViewReport, ViewRun, ViewMetrics}
}

type keyMap struct {
	Quit key.Binding
	Next key.Binding
	Prev key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
	Next: key.NewBinding(
		key.WithKeys("tab", "right", "l"),
		key.WithHelp("tab", "next sheet"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "left", "h"),
		key.WithHelp("shift+tab", "previous sheet"),
	),
}

// ViewModel is a read-only view that only handles resize and quit.
type ViewModel struct {
	render   func(width int) string
	width    int
	quitting bool
}

func (m ViewModel) Init() tea.Cmd { return nil }

func (m ViewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ViewModel) View() string {
	if m.quitting {
		return ""
	}
	return m.render(m.width) + "\n" + HelpStyle.Render("Press q or Ctrl+C to quit")
}
