package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/gridops-tools/ctgrun/cli/render"
)

// DebugCommand returns the debug command with subcommands.
// Debug commands are opt-in diagnostics and never start a run.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Diagnostic tools (resolved run settings)",
		Subcommands: []*cli.Command{
			debugSettingsCommand(),
		},
	}
}

// ResolvedSettings is the effective configuration of a run after flags,
// config file and defaults are merged.
type ResolvedSettings struct {
	Case             string   `json:"case"`
	CaseName         string   `json:"case_name"`
	WorkdirRoot      string   `json:"workdir_root"`
	WorkdirMode      string   `json:"workdir_mode"`
	Keep             bool     `json:"keep"`
	Script           string   `json:"script,omitempty"`
	Solver           string   `json:"solver"`
	SolverArgs       []string `json:"solver_args,omitempty"`
	SolverTimeout    string   `json:"solver_timeout"`
	ReportInstallDir string   `json:"report_install_dir"`
	Java             string   `json:"java"`
	MainClass        string   `json:"main_class"`
	ReportTimeout    string   `json:"report_timeout"`
	ArchiveBackend   string   `json:"archive_backend,omitempty"`
	ArchivePath      string   `json:"archive_path,omitempty"`
	Adapter          string   `json:"adapter,omitempty"`
	AdapterURL       string   `json:"adapter_url,omitempty"`
}

func newResolvedSettings(s *runSettings) ResolvedSettings {
	out := ResolvedSettings{
		Case:             s.casePath,
		CaseName:         s.caseName,
		WorkdirRoot:      s.workdirRoot,
		WorkdirMode:      string(s.mode),
		Keep:             s.keep,
		Script:           s.script,
		Solver:           s.solverPath,
		SolverArgs:       s.solverArgs,
		SolverTimeout:    s.solverTimeout.String(),
		ReportInstallDir: s.reportInstallDir,
		Java:             s.reportJava,
		MainClass:        s.reportMainClass,
		ReportTimeout:    s.reportTimeout.String(),
	}
	if s.archive != nil {
		out.ArchiveBackend = s.archive.Backend
		out.ArchivePath = s.archive.Path
	}
	if s.adapter != nil {
		out.Adapter = s.adapter.adapterType
		out.AdapterURL = s.adapter.url
	}
	return out
}

func debugSettingsCommand() *cli.Command {
	flags := []cli.Flag{ConfigFlag}
	flags = append(flags, ReadOnlyFlags()...)
	return &cli.Command{
		Name:   "settings",
		Usage:  "Show the settings 'run' would use with the same flags",
		Flags:  append(flags, pipelineFlags()...),
		Action: debugSettingsAction,
	}
}

func debugSettingsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError("%v", err)
	}

	// TUI not supported for debug commands
	if c.Bool("tui") {
		return usageError("--tui is not supported for debug commands")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	s, err := resolveRunSettings(c, cfg)
	if err != nil {
		return err
	}
	return r.Render(newResolvedSettings(s))
}
