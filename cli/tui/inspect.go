package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/gridops-tools/ctgrun/archive"
)

// NewRunModel creates a read-only view of an archived run.
func NewRunModel(rec *archive.RunRecord) ViewModel {
	return ViewModel{render: func(int) string { return renderRun(rec) }}
}

func field(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}

func renderRun(rec *archive.RunRecord) string {
	lines := []string{
		field("Run ID", rec.RunID),
		field("Case", rec.CaseName),
		LabelStyle.Render("Status") + StatusStyle(rec.Status).Render(rec.Status),
	}
	if rec.Code != "" {
		lines = append(lines,
			LabelStyle.Render("Code")+ErrorStyle.Render(rec.Code),
			field("Failed stage", rec.FailedStage))
	}
	if rec.Error != "" {
		lines = append(lines, field("Error", rec.Error))
	}
	lines = append(lines,
		field("Contingencies", fmt.Sprint(rec.Contingencies)),
		field("Started", rec.StartedAt.Format(time.RFC3339)),
		field("Completed", rec.CompletedAt.Format(time.RFC3339)),
		field("Duration", (time.Duration(rec.DurationMS)*time.Millisecond).String()),
		field("Directory", rec.Dir),
	)
	if r := rec.Report; r != nil {
		for _, t := range r.Tables() {
			lines = append(lines, LabelStyle.Render(t.Name)+CountStyle(t.Len()).Render(fmt.Sprint(t.Len())))
		}
	}
	return TitleStyle.Render("Archived Run") + "\n" + BoxStyle.Render(strings.Join(lines, "\n"))
}
