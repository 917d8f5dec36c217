package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/urfave/cli/v2"

	"github.com/gridops-tools/ctgrun/author"
	"github.com/gridops-tools/ctgrun/scripts"
)

// AuthorCommand returns the author command with one subcommand per control file.
// Author renders a file exactly as a pipeline run would, without running anything.
func AuthorCommand() *cli.Command {
	return &cli.Command{
		Name:  "author",
		Usage: "Render a control file (criteria, run, report, launcher, script)",
		Subcommands: []*cli.Command{
			{
				Name:   "criteria",
				Usage:  "Render the fixed monitoring criteria",
				Flags:  []cli.Flag{outFlag()},
				Action: authorAction(0o644, func(*cli.Context) (author.Artifact, error) { return author.DefaultCriteria(), nil }),
			},
			{
				Name:  "run",
				Usage: "Render a batch solver run descriptor",
				Flags: []cli.Flag{
					outFlag(),
					&cli.StringFlag{Name: "label", Usage: "CASE label", Required: true},
					&cli.StringFlag{Name: "sav", Usage: "Snapshot path", Required: true},
					&cli.StringFlag{Name: "otg", Usage: "Contingency list path", Required: true},
					&cli.StringFlag{Name: "cntl", Usage: "Criteria path", Required: true},
					&cli.StringFlag{Name: "output", Usage: "Results container path", Required: true},
				},
				Action: authorAction(0o644, func(c *cli.Context) (author.Artifact, error) {
					return author.RunDescriptor{
						Label:         c.String("label"),
						Snapshot:      c.String("sav"),
						Contingencies: c.String("otg"),
						Criteria:      c.String("cntl"),
						Output:        c.String("output"),
					}, nil
				}),
			},
			{
				Name:  "report",
				Usage: "Render a reporting tool descriptor",
				Flags: []cli.Flag{
					outFlag(),
					&cli.StringFlag{Name: "results", Usage: "Results container to read", Required: true},
					&cli.StringFlag{Name: "spreadsheet", Usage: "Spreadsheet to write", Required: true},
				},
				Action: authorAction(0o644, func(c *cli.Context) (author.Artifact, error) {
					return author.ReportDescriptor{Input: c.String("results"), Output: c.String("spreadsheet")}, nil
				}),
			},
			{
				Name:  "launcher",
				Usage: "Render the reporting tool launcher script",
				Flags: []cli.Flag{
					outFlag(),
					&cli.StringFlag{Name: "install-dir", Usage: "Reporting tool installation directory", Required: true},
					&cli.StringFlag{Name: "java", Usage: "JVM launcher", Value: "java"},
					&cli.StringFlag{Name: "main-class", Usage: "Batch entry point", Required: true},
					&cli.StringFlag{Name: "descriptor", Usage: "Report descriptor path", Required: true},
				},
				Action: authorAction(0o755, func(c *cli.Context) (author.Artifact, error) {
					return author.Launcher{
						InstallDir: c.String("install-dir"),
						Java:       c.String("java"),
						MainClass:  c.String("main-class"),
						Descriptor: c.String("descriptor"),
					}, nil
				}),
			},
			{
				Name:  "script",
				Usage: "Render the packaged N-1 contingency script",
				Flags: []cli.Flag{
					outFlag(),
					&cli.StringFlag{Name: "savfile", Usage: "Snapshot the script loads", Required: true},
					&cli.StringFlag{Name: "otgfile", Usage: "Contingency list the script writes", Required: true},
				},
				Action: authorAction(0o644, func(c *cli.Context) (author.Artifact, error) {
					return scriptArtifact{scripts.Params{SavFile: c.String("savfile"), OtgFile: c.String("otgfile")}}, nil
				}),
			},
		},
	}
}

func outFlag() cli.Flag {
	return &cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Write to file instead of stdout"}
}

// scriptArtifact renders the packaged script with a parameter header.
type scriptArtifact struct {
	params scripts.Params
}

func (s scriptArtifact) Bytes() ([]byte, error) {
	return scripts.Render(s.params)
}

func authorAction(perm os.FileMode, build func(*cli.Context) (author.Artifact, error)) cli.ActionFunc {
	return func(c *cli.Context) error {
		a, err := build(c)
		if err != nil {
			return usageError("%v", err)
		}

		out := c.String("out")
		if out == "" {
			data, err := a.Bytes()
			if err != nil {
				return usageError("%v", err)
			}
			_, err = c.App.Writer.Write(data)
			return err
		}

		abs, err := filepath.Abs(out)
		if err != nil {
			return usageError("invalid --out: %v", err)
		}
		if err := author.Write(osfs.New(filepath.Dir(abs)), filepath.Base(abs), a, perm); err != nil {
			return cli.Exit(fmt.Sprintf("author %s: %v", c.Command.Name, err), exitFailure)
		}
		return nil
	}
}
