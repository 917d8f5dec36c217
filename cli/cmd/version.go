package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/gridops-tools/ctgrun/cli/render"
	"github.com/gridops-tools/ctgrun/scripts"
	"github.com/gridops-tools/ctgrun/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	// ScriptSHA256 identifies the packaged contingency script.
	ScriptSHA256 string `json:"script_sha256"`
	ScriptBytes  int    `json:"script_bytes"`
}

// VersionCommand returns the version command.
// It must not load a case or contact any external tool.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return usageError("%v", err)
		}

		// TUI not supported for version command
		if c.Bool("tui") {
			return usageError("--tui is not supported for version command")
		}

		return r.Render(VersionResponse{
			Version:      types.Version,
			Commit:       commit,
			ScriptSHA256: scripts.EmbeddedChecksum(),
			ScriptBytes:  scripts.EmbeddedSize(),
		})
	}
}
