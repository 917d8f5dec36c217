package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/gridops-tools/ctgrun/adapter"
	"github.com/gridops-tools/ctgrun/archive"
	"github.com/gridops-tools/ctgrun/engine"
	"github.com/gridops-tools/ctgrun/iox"
	"github.com/gridops-tools/ctgrun/log"
	"github.com/gridops-tools/ctgrun/metrics"
	"github.com/gridops-tools/ctgrun/pipeline"
	"github.com/gridops-tools/ctgrun/types"
	"github.com/gridops-tools/ctgrun/workdir"
)

// publishTimeout bounds a notification after the run has finished.
const publishTimeout = 30 * time.Second

// runSettings is the resolved configuration of a pipeline run.
type runSettings struct {
	casePath string
	caseName string

	workdirRoot string
	mode        workdir.Mode
	keep        bool

	script        string
	solverPath    string
	solverArgs    []string
	solverTimeout time.Duration

	reportInstallDir string
	reportJava       string
	reportMainClass  string
	reportTimeout    time.Duration

	archive *archive.Config
	adapter *adapterChoice
}

// analysis is one finished run with its side effects.
type analysis struct {
	result  *pipeline.Result
	metrics metrics.Snapshot
	// archiveErr and publishErr are reported but never fail the run.
	archiveErr error
	publishErr error
}

// analyzer runs the pipeline against an engine and records the outcome.
type analyzer struct {
	settings *runSettings
	archive  *archive.Archive
	notifier adapter.Adapter
	logOut   io.Writer
	logLevel zapcore.Level
}

// newAnalyzer opens the archive and notifier named by s.
func newAnalyzer(ctx context.Context, s *runSettings, logOut io.Writer, level zapcore.Level) (*analyzer, error) {
	a := &analyzer{settings: s, logOut: logOut, logLevel: level}
	if s.archive != nil {
		arc, err := archive.Open(ctx, *s.archive)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		a.archive = arc
	}
	if s.adapter != nil {
		n, err := buildAdapter(s.adapter)
		if err != nil {
			return nil, fmt.Errorf("create %s adapter: %w", s.adapter.adapterType, err)
		}
		a.notifier = n
	}
	return a, nil
}

// Close releases the notifier.
func (a *analyzer) Close() error {
	if a.notifier == nil {
		return nil
	}
	return a.notifier.Close()
}

// analyze runs the pipeline once. The returned error is the run's stage
// error, or a setup error when the run could not start.
func (a *analyzer) analyze(ctx context.Context, eng engine.Engine) (*analysis, error) {
	s := a.settings
	meta := types.NewRunMeta(s.caseName)
	logger := log.NewLoggerWithWriter(meta, a.logOut, a.logLevel)
	defer iox.DiscardErr(logger.Sync)

	wd, err := workdir.Acquire(s.workdirRoot, meta.RunID, s.mode)
	if err != nil {
		return nil, err
	}

	backend := ""
	if a.archive != nil {
		backend = a.archive.Backend()
	}
	collector := metrics.NewCollector(meta.RunID, meta.CaseName, string(wd.Mode()), backend)

	orch, err := pipeline.New(&pipeline.Config{
		RunMeta:          meta,
		Engine:           eng,
		Workdir:          wd,
		ScriptPath:       s.script,
		SolverPath:       s.solverPath,
		SolverArgs:       s.solverArgs,
		SolverTimeout:    s.solverTimeout,
		ReportInstallDir: s.reportInstallDir,
		ReportJava:       s.reportJava,
		ReportMainClass:  s.reportMainClass,
		ReportTimeout:    s.reportTimeout,
		Logger:           logger,
		Collector:        collector,
	})
	if err != nil {
		iox.DiscardErr(func() error { return wd.Release(false) })
		return nil, err
	}

	res, runErr := orch.Run(ctx)
	completedAt := time.Now().UTC()

	purge := runErr == nil && !s.keep
	if err := wd.Release(purge); err != nil {
		logger.Warn("failed to release working directory", map[string]any{"error": err.Error()})
	} else if purge && res != nil {
		res.Dir = ""
	}

	// Recording the outcome must survive an interrupted run.
	bg := context.WithoutCancel(ctx)

	out := &analysis{result: res}
	if a.archive != nil {
		// The archived metrics cover the run itself; the write outcome is
		// only counted in the returned snapshot.
		rec := archive.RecordFromResult(res, completedAt)
		snap := collector.Snapshot()
		if err := a.archive.WriteRun(bg, rec, &snap); err != nil {
			out.archiveErr = err
			collector.IncArchiveWriteFailure()
			logger.Error("failed to archive run", map[string]any{"error": err.Error()})
		} else {
			collector.IncArchiveWriteSuccess()
		}
	}
	out.metrics = collector.Snapshot()

	if a.notifier != nil {
		event := adapter.NewEvent(res, completedAt)
		if s.archive != nil {
			event.ArchivePath = s.archive.Path
		}
		pctx, cancel := context.WithTimeout(bg, publishTimeout)
		out.publishErr = a.notifier.Publish(pctx, event)
		cancel()
		if out.publishErr != nil {
			logger.Warn("failed to publish completion event", map[string]any{"error": out.publishErr.Error()})
		}
	}

	return out, runErr
}

// pipelineFunc adapts analyze to the operation registry.
func (a *analyzer) pipelineFunc(eng engine.Engine) func(context.Context) (*pipeline.Result, error) {
	return func(ctx context.Context) (*pipeline.Result, error) {
		out, err := a.analyze(ctx, eng)
		if out == nil {
			return nil, err
		}
		return out.result, err
	}
}
