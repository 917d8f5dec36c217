package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/gridops-tools/ctgrun/cli/render"
	"github.com/gridops-tools/ctgrun/cli/tui"
	"github.com/gridops-tools/ctgrun/report"
)

// ParseCommand returns the parse command.
// Parse reads a violation spreadsheet produced by an earlier run or by hand.
func ParseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse a violation spreadsheet into the three violation tables",
		ArgsUsage: "<spreadsheet.xlsx>",
		Flags:     ReadOnlyFlags(),
		Action:    parseAction,
	}
}

func parseAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return usageError("spreadsheet path required")
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError("%v", err)
	}

	rpt, err := report.NewParser().Parse(c.Args().First())
	if err != nil {
		return cli.Exit(fmt.Sprintf("parse failed: %v", err), exitFailure)
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewReport, rpt)
	}
	return r.Render(rpt)
}
