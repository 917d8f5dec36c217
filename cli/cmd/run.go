package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/gridops-tools/ctgrun/cli/config"
	"github.com/gridops-tools/ctgrun/cli/render"
	"github.com/gridops-tools/ctgrun/cli/tui"
	"github.com/gridops-tools/ctgrun/engine"
	"github.com/gridops-tools/ctgrun/engine/memengine"
	"github.com/gridops-tools/ctgrun/types"
	"github.com/gridops-tools/ctgrun/workdir"
)

// RunCommand returns the run command.
// Run is the only command that launches the external solver and reporting tool.
func RunCommand() *cli.Command {
	flags := []cli.Flag{ConfigFlag}
	flags = append(flags, ReadOnlyFlags()...)
	flags = append(flags, pipelineFlags()...)
	flags = append(flags,
		&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Suppress result output"},
		&cli.BoolFlag{Name: "show-report", Usage: "Print the violation tables instead of the summary"},
		&cli.BoolFlag{Name: "verbose", Usage: "Log stage details at debug level"},
	)
	return &cli.Command{
		Name:   "run",
		Usage:  "Run N-1 contingency analysis on a case",
		Flags:  flags,
		Action: runAction,
	}
}

// pipelineFlags configure a pipeline run. Shared by run and call.
func pipelineFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{Name: "case", Usage: "Case file to load into the engine"},
		&cli.StringFlag{Name: "case-name", Usage: "CASE label for the run (default: case file name)"},
		&cli.StringFlag{Name: "workdir", Usage: "Working directory root"},
		&cli.StringFlag{Name: "mode", Usage: "Working directory mode: isolated or shared"},
		&cli.BoolFlag{Name: "keep", Usage: "Keep the per-run directory after a successful run"},
		&cli.StringFlag{Name: "script", Usage: "Contingency script (default: packaged N-1 script)"},
		&cli.StringFlag{Name: "solver", Usage: "Batch contingency solver executable"},
		&cli.StringSliceFlag{Name: "solver-arg", Usage: "Argument placed before the run descriptor (repeatable)"},
		&cli.DurationFlag{Name: "solver-timeout", Usage: "Solver deadline (0 = none)"},
		&cli.StringFlag{Name: "report-install-dir", Usage: "Reporting tool installation directory"},
		&cli.StringFlag{Name: "java", Usage: "JVM launcher for the reporting tool"},
		&cli.StringFlag{Name: "main-class", Usage: "Reporting tool batch entry point"},
		&cli.DurationFlag{Name: "report-timeout", Usage: "Reporting tool deadline (0 = none)"},
	}
	flags = append(flags, archiveFlags()...)
	return append(flags, adapterFlags()...)
}

// resolveRunSettings merges flags over the config file over built-in defaults.
func resolveRunSettings(c *cli.Context, cfg *config.Config) (*runSettings, error) {
	base := config.Defaults()
	if cfg != nil {
		cp := *cfg
		cp.ApplyDefaults()
		base = &cp
	}

	s := &runSettings{
		casePath:         resolveString(c, "case", base.Engine.Case),
		workdirRoot:      resolveString(c, "workdir", base.Workdir.Root),
		keep:             resolveBool(c, "keep", base.Workdir.Keep),
		script:           resolveString(c, "script", base.Contingency.Script),
		solverPath:       resolveString(c, "solver", base.Solver.Path),
		solverArgs:       base.Solver.Args,
		solverTimeout:    resolveDuration(c, "solver-timeout", base.Timeouts.Solver.Duration),
		reportInstallDir: resolveString(c, "report-install-dir", base.Report.InstallDir),
		reportJava:       resolveString(c, "java", base.Report.Java),
		reportMainClass:  resolveString(c, "main-class", base.Report.MainClass),
		reportTimeout:    resolveDuration(c, "report-timeout", base.Timeouts.Report.Duration),
	}
	if c.IsSet("solver-arg") {
		s.solverArgs = c.StringSlice("solver-arg")
	}
	if s.solverTimeout < 0 || s.reportTimeout < 0 {
		return nil, usageError("--solver-timeout and --report-timeout must not be negative")
	}

	mode, err := workdir.ParseMode(resolveString(c, "mode", base.Workdir.Mode))
	if err != nil {
		return nil, usageError("invalid --mode: %v", err)
	}
	s.mode = mode

	if s.casePath == "" {
		return nil, usageError("--case is required (or engine.case in config)")
	}
	s.caseName = c.String("case-name")
	if s.caseName == "" {
		s.caseName = caseNameFromPath(s.casePath)
	}

	if s.archive, err = resolveArchive(c, cfg); err != nil {
		return nil, err
	}

	if t := resolveString(c, "adapter", configVal(cfg, func(cf *config.Config) string { return cf.Adapter.Type })); t != "" {
		ac, err := parseAdapterConfigWithPrecedence(c, cfg, t)
		if err != nil {
			return nil, usageError("%v", err)
		}
		s.adapter = ac
	}
	return s, nil
}

func caseNameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loadCase opens the case file into a fresh engine.
func loadCase(path string) (*memengine.Engine, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	eng := memengine.New()
	if code := eng.LoadCase(abs); code != engine.CodeOK {
		return nil, fmt.Errorf("cannot load case %s (engine code %d)", abs, code)
	}
	return eng, nil
}

// RunSummary is the run command's default output.
type RunSummary struct {
	RunID                 string `json:"run_id"`
	Case                  string `json:"case"`
	Status                string `json:"status"`
	Code                  string `json:"code,omitempty"`
	FailedStage           string `json:"failed_stage,omitempty"`
	Error                 string `json:"error,omitempty"`
	Dir                   string `json:"dir,omitempty"`
	Contingencies         int    `json:"contingencies"`
	VoltageViolations     int    `json:"voltage_violations"`
	FlowViolations        int    `json:"flow_violations"`
	UnsolvedContingencies int    `json:"unsolved_contingencies"`
	DurationMS            int64  `json:"duration_ms"`
	Archived              bool   `json:"archived"`
	ArchiveError          string `json:"archive_error,omitempty"`
	NotifyError           string `json:"notify_error,omitempty"`
}

func newRunSummary(an *analysis, archived bool) RunSummary {
	res := an.result
	s := RunSummary{
		RunID:         res.RunMeta.RunID,
		Case:          res.RunMeta.CaseName,
		Status:        string(res.Status),
		Code:          res.Code,
		FailedStage:   string(res.FailedStage),
		Dir:           res.Dir,
		Contingencies: res.Contingencies,
		DurationMS:    res.Duration.Milliseconds(),
		Archived:      archived && an.archiveErr == nil,
	}
	if res.Err != nil {
		s.Error = res.Err.Error()
	}
	if r := res.Report; r != nil {
		s.VoltageViolations = r.VoltageViolations.Len()
		s.FlowViolations = r.PerUnitFlowViolations.Len()
		s.UnsolvedContingencies = r.UnsolvedContingencies.Len()
	}
	if an.archiveErr != nil {
		s.ArchiveError = an.archiveErr.Error()
	}
	if an.publishErr != nil {
		s.NotifyError = an.publishErr.Error()
	}
	return s
}

func logWriter(c *cli.Context) io.Writer {
	if c.App != nil && c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

func logLevel(c *cli.Context) zapcore.Level {
	if c.Bool("verbose") {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return usageError("%v", err)
	}
	if c.Bool("tui") && !c.Bool("show-report") {
		return usageError("--tui requires --show-report for run")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	settings, err := resolveRunSettings(c, cfg)
	if err != nil {
		return err
	}

	eng, err := loadCase(settings.casePath)
	if err != nil {
		return usageError("%v", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	an, err := newAnalyzer(ctx, settings, logWriter(c), logLevel(c))
	if err != nil {
		return cli.Exit(err.Error(), exitFailure)
	}
	defer func() { _ = an.Close() }()

	out, runErr := an.analyze(ctx, eng)
	if out == nil {
		return cli.Exit(fmt.Sprintf("run could not start: %v", runErr), exitFailure)
	}

	if !c.Bool("quiet") {
		if err := renderRun(c, r, out, settings.archive != nil); err != nil {
			return err
		}
	}

	if out.result.Status != types.OutcomeSuccess {
		return cli.Exit("", exitFailure)
	}
	return nil
}

func renderRun(c *cli.Context, r *render.Renderer, out *analysis, archived bool) error {
	if c.Bool("show-report") && out.result.Report != nil {
		if c.Bool("tui") {
			return r.RenderTUI(tui.ViewReport, out.result.Report)
		}
		return r.Render(out.result.Report)
	}
	return r.Render(newRunSummary(out, archived))
}
