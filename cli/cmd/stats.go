package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/gridops-tools/ctgrun/archive"
	"github.com/gridops-tools/ctgrun/cli/render"
	"github.com/gridops-tools/ctgrun/cli/tui"
)

// StatsCommand returns the stats command.
// Stats shows the metrics snapshot archived with a run.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show run metrics from the archive (latest run by default)",
		Flags: archiveReadFlags(
			&cli.StringFlag{Name: "run-id", Usage: "Read metrics for a specific run ID"},
			&cli.StringFlag{Name: "case-name", Usage: "Latest metrics of this case"},
		),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
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

	snap, err := a.LatestMetrics(ctx, archive.Filter{RunID: c.String("run-id"), CaseName: c.String("case-name")})
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read metrics: %v", err), exitFailure)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewMetrics, snap)
	}
	return r.Render(snap)
}
