package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/gridops-tools/ctgrun/archive"
	"github.com/gridops-tools/ctgrun/cli/render"
)

// listWarningThreshold is the number of items above which we warn about using --limit.
const listWarningThreshold = 100

// archiveReadTimeout bounds archive queries made by read-only commands.
const archiveReadTimeout = 30 * time.Second

// archiveReadFlags are the flags of commands that query the archive.
func archiveReadFlags(extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{ConfigFlag}
	flags = append(flags, ReadOnlyFlags()...)
	flags = append(flags, archiveFlags()...)
	return append(flags, extra...)
}

// ListCommand returns the list command.
// List returns thin rows (not inspect-level detail) of archived runs.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List archived runs, newest first",
		Flags: archiveReadFlags(
			&cli.StringFlag{Name: "case-name", Usage: "Only runs of this case"},
			&cli.StringFlag{Name: "status", Usage: "Filter by status: success or failed"},
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of runs to return (0 = no limit)"},
		),
		Action: listAction,
	}
}

// RunRow is one archived run in list output.
type RunRow struct {
	RunID         string `json:"run_id"`
	Case          string `json:"case"`
	Status        string `json:"status"`
	Code          string `json:"code"`
	Contingencies int    `json:"contingencies"`
	CompletedAt   string `json:"completed_at"`
	DurationMS    int64  `json:"duration_ms"`
}

func newRunRow(rec archive.RunRecord) RunRow {
	return RunRow{
		RunID:         rec.RunID,
		Case:          rec.CaseName,
		Status:        rec.Status,
		Code:          rec.Code,
		Contingencies: rec.Contingencies,
		CompletedAt:   rec.CompletedAt.UTC().Format(time.RFC3339),
		DurationMS:    rec.DurationMS,
	}
}

func listAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError("%v", err)
	}

	// TUI not supported for list
	if c.Bool("tui") {
		return usageError("--tui is not supported for list")
	}

	status := c.String("status")
	switch status {
	case "", "success", "failed":
	default:
		return usageError("invalid --status %q (must be success or failed)", status)
	}
	limit := c.Int("limit")
	if limit < 0 {
		return usageError("--limit must not be negative")
	}

	ctx, cancel := context.WithTimeout(c.Context, archiveReadTimeout)
	defer cancel()

	a, err := openArchive(ctx, c)
	if err != nil {
		return err
	}

	// The status filter is applied after the query, so the limit is too.
	records, err := a.List(ctx, archive.Filter{CaseName: c.String("case-name")}, 0)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to list runs: %v", err), exitFailure)
	}

	rows := make([]RunRow, 0, len(records))
	for _, rec := range records {
		if status != "" && rec.Status != status {
			continue
		}
		rows = append(rows, newRunRow(rec))
		if limit > 0 && len(rows) == limit {
			break
		}
	}

	// Warn if output is large and --limit was not specified (TTY only to avoid noise in pipelines)
	if len(rows) > listWarningThreshold && limit == 0 && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: returning %d results. Consider using --limit to reduce output.\n\n", len(rows))
	}

	return r.Render(rows)
}
