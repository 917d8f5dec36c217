package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/gridops-tools/ctgrun/archive"
	"github.com/gridops-tools/ctgrun/cli/render"
	"github.com/gridops-tools/ctgrun/cli/tui"
)

// InspectCommand returns the inspect command.
// Inspect returns a deep view of one archived run, violation tables included.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect an archived run (latest when no run ID is given)",
		ArgsUsage: "[run-id]",
		Flags: archiveReadFlags(
			&cli.StringFlag{Name: "case-name", Usage: "Latest run of this case"},
			&cli.BoolFlag{Name: "report", Usage: "Show only the violation tables"},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError("%v", err)
	}

	ctx, cancel := context.WithTimeout(c.Context, archiveReadTimeout)
	defer cancel()

	a, err := openArchive(ctx, c)
	if err != nil {
		return err
	}

	rec, err := a.Latest(ctx, archive.Filter{RunID: c.Args().First(), CaseName: c.String("case-name")})
	if err != nil {
		if errors.Is(err, archive.ErrNoRunsFound) {
			return cli.Exit(err.Error(), exitFailure)
		}
		return cli.Exit(fmt.Sprintf("failed to read run: %v", err), exitFailure)
	}

	if c.Bool("report") {
		if rec.Report == nil {
			return cli.Exit(fmt.Sprintf("run %s has no violation report (status %s)", rec.RunID, rec.Status), exitFailure)
		}
		if c.Bool("tui") {
			return r.RenderTUI(tui.ViewReport, rec.Report)
		}
		return r.Render(rec.Report)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewRun, rec)
	}
	return r.Render(rec)
}
