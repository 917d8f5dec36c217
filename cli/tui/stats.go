package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gridops-tools/ctgrun/metrics"
)

// NewMetricsModel creates a read-only view of a run's counters.
func NewMetricsModel(snap *metrics.Snapshot) ViewModel {
	return ViewModel{render: func(width int) string { return renderMetrics(snap, width) }}
}

func statBox(label string, value int64) string {
	return StatBoxStyle.Render(StatValueStyle.Render(fmt.Sprint(value)) + "\n" + StatLabelStyle.Render(label))
}

func renderMetrics(s *metrics.Snapshot, width int) string {
	boxes := []string{
		statBox("runs started", s.RunsStarted),
		statBox("runs completed", s.RunsCompleted),
		statBox("runs failed", s.RunsFailed),
		statBox("contingencies", s.Contingencies),
		statBox("voltage violations", s.VoltageViolations),
		statBox("flow violations", s.FlowViolations),
		statBox("unsolved", s.UnsolvedContingencies),
		statBox("process timeouts", s.ProcessTimeouts),
	}

	perRow := 4
	if width > 0 {
		perRow = max(1, width/(lipgloss.Width(boxes[0])+1))
	}
	var rows []string
	for i := 0; i < len(boxes); i += perRow {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, boxes[i:min(i+perRow, len(boxes))]...))
	}

	var stages []string
	for _, name := range sortedKeys(s.StageDurations) {
		stages = append(stages, field(name, s.StageDurations[name].String()))
	}

	out := TitleStyle.Render(fmt.Sprintf("Run Metrics %s", s.RunID)) + "\n" + strings.Join(rows, "\n")
	if len(stages) > 0 {
		out += "\n\n" + TitleStyle.Render("Stage durations") + "\n" + strings.Join(stages, "\n")
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
