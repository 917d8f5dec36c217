package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gridops-tools/ctgrun/author"
	"github.com/gridops-tools/ctgrun/engine"
	"github.com/gridops-tools/ctgrun/iox"
	"github.com/gridops-tools/ctgrun/procexec"
	"github.com/gridops-tools/ctgrun/scripts"
	"github.com/gridops-tools/ctgrun/types"
	"github.com/gridops-tools/ctgrun/workdir"
)

// stderrTail bounds how much process stderr is carried into errors.
const stderrTail = 512

func (o *Orchestrator) path(name string) string {
	return o.config.Workdir.Path(name)
}

// writeSnapshot saves the live case. A failed save leaves no snapshot file.
func (o *Orchestrator) writeSnapshot(context.Context) error {
	fs := o.config.Workdir.FS()
	code := o.config.Engine.SaveCase(o.path(workdir.SnapshotFile))
	if code != engine.CodeOK {
		if err := iox.RemoveIfExists(fs, workdir.SnapshotFile); err != nil {
			o.logger.Warn("failed to remove partial snapshot", map[string]any{"error": err.Error()})
		}
		return fmt.Errorf("engine save returned code %d", code)
	}
	if !iox.Exists(fs, workdir.SnapshotFile) {
		return errors.New("engine reported success but wrote no snapshot")
	}
	return nil
}

// generateContingencies installs the contingency script and has the engine run it.
func (o *Orchestrator) generateContingencies(context.Context) error {
	const state = types.StateGeneratingContingencies
	fs := o.config.Workdir.FS()
	params := scripts.Params{
		SavFile: o.path(workdir.SnapshotFile),
		OtgFile: o.path(workdir.ContingencyFile),
	}

	if o.config.ScriptPath != "" {
		body, err := os.ReadFile(o.config.ScriptPath)
		if err != nil {
			return NewStageError(ErrScriptNotFound, state, err)
		}
		body, err = scripts.RewriteHeader(body, params)
		if err != nil {
			return NewStageError(ErrContingencyGeneration, state,
				fmt.Errorf("script %s has an unusable parameter header: %w", o.config.ScriptPath, err))
		}
		if err := iox.WriteFile(fs, workdir.ContingencyScript, body, 0o644); err != nil {
			return NewStageError(ErrScriptNotFound, state, err)
		}
	} else if err := scripts.Install(fs, workdir.ContingencyScript, params); err != nil {
		return NewStageError(ErrScriptNotFound, state, err)
	}

	if err := iox.RemoveIfExists(fs, workdir.ContingencyFile); err != nil {
		return NewStageError(ErrContingencyGeneration, state, fmt.Errorf("remove stale contingency file: %w", err))
	}
	code := o.config.Engine.RunScript(o.path(workdir.ContingencyScript))
	switch {
	case code == engine.CodeFileNotFound:
		return NewStageError(ErrScriptNotFound, state, fmt.Errorf("engine could not find script (code %d)", code))
	case code != engine.CodeOK:
		return NewStageError(ErrContingencyGeneration, state, fmt.Errorf("engine script returned code %d", code))
	}

	f, err := fs.Open(workdir.ContingencyFile)
	if err != nil {
		return NewStageError(ErrContingencyGeneration, state, fmt.Errorf("contingency file not produced: %w", err))
	}
	defer iox.DiscardClose(f)

	n, err := countContingencies(f)
	if err != nil {
		return NewStageError(ErrContingencyGeneration, state, err)
	}
	o.contingencies = n
	o.config.Collector.SetContingencies(n)
	o.logger.Info("contingency set generated", map[string]any{"contingencies": n})
	return nil
}

// countContingencies counts the lines opening a contingency block.
func countContingencies(r io.Reader) (int, error) {
	n := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 && strings.EqualFold(fields[0], "contingency") {
			n++
		}
	}
	return n, sc.Err()
}

func (o *Orchestrator) authorCriteria(context.Context) error {
	return author.Write(o.config.Workdir.FS(), workdir.CriteriaFile, author.DefaultCriteria(), 0o644)
}

func (o *Orchestrator) authorRunDescriptor(context.Context) error {
	d := author.RunDescriptor{
		Label:         o.config.RunMeta.CaseName,
		Snapshot:      o.path(workdir.SnapshotFile),
		Contingencies: o.path(workdir.ContingencyFile),
		Criteria:      o.path(workdir.CriteriaFile),
		Output:        o.path(workdir.ResultsFile),
	}
	return author.Write(o.config.Workdir.FS(), workdir.RunDescriptorFile, d, 0o644)
}

func (o *Orchestrator) solve(ctx context.Context) error {
	if err := iox.RemoveIfExists(o.config.Workdir.FS(), workdir.ResultsFile); err != nil {
		return NewStageError(ErrSolverInvocation, types.StateSolving, fmt.Errorf("remove stale results: %w", err))
	}
	args := append(append([]string(nil), o.config.SolverArgs...), o.path(workdir.RunDescriptorFile))
	cmd := procexec.Command{
		Path:    o.config.SolverPath,
		Args:    args,
		Dir:     o.config.Workdir.Dir(),
		Timeout: o.config.SolverTimeout,
	}
	return o.invoke(ctx, types.StateSolving, cmd, ErrSolverInvocation, ErrSolverTimeout)
}

func (o *Orchestrator) authorReport(context.Context) error {
	fs := o.config.Workdir.FS()
	d := author.ReportDescriptor{
		Input:  o.path(workdir.ResultsFile),
		Output: o.path(workdir.SpreadsheetFile),
	}
	if err := author.Write(fs, workdir.ReportDescriptorFile, d, 0o644); err != nil {
		return err
	}
	l := author.Launcher{
		InstallDir: o.config.ReportInstallDir,
		Java:       o.config.ReportJava,
		MainClass:  o.config.ReportMainClass,
		Descriptor: o.path(workdir.ReportDescriptorFile),
	}
	return author.Write(fs, workdir.LauncherFile, l, 0o755)
}

func (o *Orchestrator) runReport(ctx context.Context) error {
	const state = types.StateRunningReport
	info, err := os.Stat(o.config.ReportInstallDir)
	if err != nil || !info.IsDir() {
		return NewStageError(ErrReportInvocation, state,
			fmt.Errorf("%w: %s", ErrReportToolNotInstalled, o.config.ReportInstallDir))
	}
	if err := iox.RemoveIfExists(o.config.Workdir.FS(), workdir.SpreadsheetFile); err != nil {
		return NewStageError(ErrReportInvocation, state, fmt.Errorf("remove stale spreadsheet: %w", err))
	}
	cmd := procexec.Command{
		Path:    o.path(workdir.LauncherFile),
		Dir:     o.config.Workdir.Dir(),
		Timeout: o.config.ReportTimeout,
	}
	return o.invoke(ctx, state, cmd, ErrReportInvocation, ErrReportTimeout)
}

func (o *Orchestrator) parse() (*types.ViolationReport, error) {
	return o.parser.Parse(o.path(workdir.SpreadsheetFile))
}

// invoke runs an external process and classifies its outcome into the
// stage's failure and timeout kinds.
func (o *Orchestrator) invoke(ctx context.Context, state types.State, cmd procexec.Command, failKind, timeoutKind error) error {
	c := o.config.Collector
	logger := o.logger.With("stage", string(state))
	logger.Info("invoking process", map[string]any{
		"command":    cmd.String(),
		"timeout_ms": cmd.Timeout.Milliseconds(),
	})

	res, err := o.runner.Run(ctx, cmd)
	if err != nil {
		switch {
		case errors.Is(err, procexec.ErrTimeout):
			c.IncProcessTimeout()
			return NewStageError(timeoutKind, state, err)
		case res == nil:
			c.IncProcessLaunchFailure()
		}
		return NewStageError(failKind, state, err)
	}
	c.IncProcessLaunchSuccess()

	logger.Info("process exited", map[string]any{
		"exit_code":   res.ExitCode,
		"duration_ms": res.Duration.Milliseconds(),
	})

	if !res.Success() {
		c.IncProcessNonZeroExit()
		msg := fmt.Sprintf("%s exited with status %d", cmd.Path, res.ExitCode)
		if tail := tailOf(res.Stderr); tail != "" {
			msg += ": " + tail
		}
		return NewStageError(failKind, state, errors.New(msg))
	}
	return nil
}

func tailOf(b []byte) string {
	b = bytes.TrimSpace(b)
	if len(b) > stderrTail {
		b = b[len(b)-stderrTail:]
	}
	return string(b)
}
