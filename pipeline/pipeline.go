// Package pipeline orchestrates a contingency-analysis run.
//
// A run walks a fixed sequence of stages, each of which produces one or more
// files in the run's working directory for the next stage to consume:
//
//	snapshot -> contingency set -> criteria -> run descriptor -> batch solve
//	-> report descriptor + launcher -> report run -> spreadsheet parse
//
// The first failing stage aborts the run with a StageError; later stages never
// start and intermediate files are left in place for inspection.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridops-tools/ctgrun/engine"
	"github.com/gridops-tools/ctgrun/iox"
	"github.com/gridops-tools/ctgrun/log"
	"github.com/gridops-tools/ctgrun/metrics"
	"github.com/gridops-tools/ctgrun/procexec"
	"github.com/gridops-tools/ctgrun/report"
	"github.com/gridops-tools/ctgrun/types"
	"github.com/gridops-tools/ctgrun/workdir"
)

// Parser reads the violation spreadsheet.
type Parser interface {
	Parse(path string) (*types.ViolationReport, error)
}

// Transition is one state change of a run.
type Transition struct {
	From types.State
	To   types.State
	At   time.Time
	// Err is the stage error for transitions into Failed.
	Err error
}

// Observer receives every state transition synchronously.
type Observer func(Transition)

// Config configures a single run.
type Config struct {
	// RunMeta is the run identity. CaseName is used as the CASE label.
	RunMeta *types.RunMeta
	// Engine holds the live case to analyze.
	Engine engine.Engine
	// Workdir is the acquired working directory for the run's files.
	Workdir *workdir.Workdir

	// ScriptPath overrides the packaged contingency script. Its savfile and
	// otgfile header assignments are rewritten for the run.
	ScriptPath string

	// SolverPath is the batch solver executable.
	SolverPath string
	// SolverArgs precede the run descriptor path on the solver command line.
	SolverArgs []string
	// SolverTimeout bounds the batch solve. Zero means no deadline.
	SolverTimeout time.Duration

	// ReportInstallDir is the reporting tool installation directory.
	ReportInstallDir string
	// ReportJava is the JVM launcher binary.
	ReportJava string
	// ReportMainClass is the reporting tool's batch entry point.
	ReportMainClass string
	// ReportTimeout bounds the report run. Zero means no deadline.
	ReportTimeout time.Duration

	// Runner overrides process execution (for testing).
	// If nil, uses procexec.NewExecRunner.
	Runner procexec.Runner
	// Parser overrides spreadsheet parsing.
	// If nil, uses report.NewParser.
	Parser Parser
	// Logger receives stage and process logs.
	// If nil, a stderr logger carrying the run context is created.
	Logger *log.Logger
	// Collector records run metrics. Nil disables metrics.
	Collector *metrics.Collector
	// Observer is notified of every state transition. Optional.
	Observer Observer
}

// Result is the outcome of a run.
type Result struct {
	RunMeta *types.RunMeta
	// Status is success when Report is complete, failed otherwise.
	Status types.OutcomeStatus
	// State is the terminal state (Done or Failed).
	State types.State
	// FailedStage is the state the run failed in, empty on success.
	FailedStage types.State
	// Code is the stable error code, empty on success.
	Code string
	// Err is the StageError of a failed run.
	Err error
	// Report is the parsed violation report of a successful run.
	Report *types.ViolationReport
	// Contingencies is the number of outages found in the contingency set.
	Contingencies int
	// Dir is the run's working directory. Callers clear it once the
	// directory has been purged.
	Dir string
	// Transitions lists every state change in order.
	Transitions []Transition
	// Duration is the total run duration.
	Duration time.Duration
}

// Orchestrator runs the pipeline once.
type Orchestrator struct {
	config *Config
	logger *log.Logger
	runner procexec.Runner
	parser Parser

	state         types.State
	transitions   []Transition
	contingencies int
}

// New creates an orchestrator. Returns error if the config is incomplete.
func New(config *Config) (*Orchestrator, error) {
	if config == nil {
		return nil, errors.New("pipeline config is required")
	}
	if config.RunMeta == nil {
		return nil, errors.New("run metadata is required")
	}
	if err := config.RunMeta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run metadata: %w", err)
	}
	if config.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if config.Workdir == nil {
		return nil, errors.New("working directory is required")
	}
	if config.SolverPath == "" {
		return nil, errors.New("solver path is required")
	}
	if config.ReportInstallDir == "" || config.ReportJava == "" || config.ReportMainClass == "" {
		return nil, errors.New("report install dir, java and main class are required")
	}
	if config.SolverTimeout < 0 || config.ReportTimeout < 0 {
		return nil, errors.New("timeouts must not be negative")
	}

	o := &Orchestrator{
		config: config,
		logger: config.Logger,
		runner: config.Runner,
		parser: config.Parser,
		state:  types.StateIdle,
	}
	if o.logger == nil {
		o.logger = log.NewLogger(config.RunMeta)
	}
	if o.runner == nil {
		o.runner = procexec.NewExecRunner()
	}
	if o.parser == nil {
		o.parser = report.NewParser()
	}
	return o, nil
}

// State returns the current state.
func (o *Orchestrator) State() types.State {
	return o.state
}

type stage struct {
	state types.State
	kind  error
	run   func(ctx context.Context) error
}

func (o *Orchestrator) stages(out **types.ViolationReport) []stage {
	return []stage{
		{types.StateSnapshotting, ErrSnapshot, o.writeSnapshot},
		{types.StateGeneratingContingencies, ErrContingencyGeneration, o.generateContingencies},
		{types.StateAuthoringCriteria, ErrCriteriaAuthoring, o.authorCriteria},
		{types.StateAuthoringRun, ErrRunDescriptorAuthoring, o.authorRunDescriptor},
		{types.StateSolving, ErrSolverInvocation, o.solve},
		{types.StateAuthoringReport, ErrReportAuthoring, o.authorReport},
		{types.StateRunningReport, ErrReportInvocation, o.runReport},
		{types.StateParsing, ErrReportParse, func(context.Context) error {
			r, err := o.parse()
			*out = r
			return err
		}},
	}
}

// Run executes every stage in order and returns the result.
// The returned error is the run's StageError, or nil on success. A run
// cannot be restarted; calling Run twice returns an error.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if o.state != types.StateIdle {
		return nil, fmt.Errorf("pipeline already ran (state %s)", o.state)
	}

	start := time.Now()
	c := o.config.Collector
	c.IncRunStarted()

	o.logger.Info("starting pipeline", map[string]any{
		"dir":    o.config.Workdir.Dir(),
		"mode":   string(o.config.Workdir.Mode()),
		"solver": o.config.SolverPath,
	})

	var rpt *types.ViolationReport
	for _, s := range o.stages(&rpt) {
		if err := o.runStage(ctx, s); err != nil {
			return o.fail(start, err)
		}
	}

	o.transition(types.StateDone, nil)
	c.IncRunCompleted()
	c.AbsorbReport(rpt.VoltageViolations.Len(), rpt.PerUnitFlowViolations.Len(), rpt.UnsolvedContingencies.Len())

	o.logger.Info("pipeline completed", map[string]any{
		"voltage_violations":     rpt.VoltageViolations.Len(),
		"flow_violations":        rpt.PerUnitFlowViolations.Len(),
		"unsolved_contingencies": rpt.UnsolvedContingencies.Len(),
		"duration_ms":            time.Since(start).Milliseconds(),
	})

	return o.result(start, types.OutcomeSuccess, rpt, nil), nil
}

// runStage enters s, runs it, and converts panics and unclassified errors
// into StageErrors.
func (o *Orchestrator) runStage(ctx context.Context, s stage) (err error) {
	o.transition(s.state, nil)
	started := time.Now()
	defer func() {
		o.config.Collector.ObserveStage(string(s.state), time.Since(started))
	}()

	defer func() {
		if r := recover(); r != nil {
			if s.state == types.StateSnapshotting {
				if rmErr := iox.RemoveIfExists(o.config.Workdir.FS(), workdir.SnapshotFile); rmErr != nil {
					o.logger.Warn("failed to remove partial snapshot", map[string]any{"error": rmErr.Error()})
				}
			}
			err = NewStageError(ErrUnknown, s.state, fmt.Errorf("panic: %v", r))
		}
	}()

	if ctxErr := ctx.Err(); ctxErr != nil {
		return NewStageError(s.kind, s.state, ctxErr)
	}

	o.logger.Debug("stage started", map[string]any{"stage": string(s.state)})
	if err := s.run(ctx); err != nil {
		var se *StageError
		if errors.As(err, &se) {
			return err
		}
		return NewStageError(s.kind, s.state, err)
	}
	o.logger.Debug("stage completed", map[string]any{
		"stage":       string(s.state),
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return nil
}

func (o *Orchestrator) fail(start time.Time, err error) (*Result, error) {
	failedIn := o.state
	o.transition(types.StateFailed, err)
	code := Code(err)
	o.config.Collector.IncRunFailed(code)

	o.logger.Error("pipeline failed", map[string]any{
		"stage": string(failedIn),
		"code":  code,
		"error": err.Error(),
	})

	res := o.result(start, types.OutcomeFailed, nil, err)
	res.FailedStage = failedIn
	res.Code = code
	return res, err
}

func (o *Orchestrator) transition(to types.State, err error) {
	t := Transition{From: o.state, To: to, At: time.Now(), Err: err}
	o.state = to
	o.transitions = append(o.transitions, t)
	if o.config.Observer != nil {
		o.config.Observer(t)
	}
}

func (o *Orchestrator) result(start time.Time, status types.OutcomeStatus, rpt *types.ViolationReport, err error) *Result {
	return &Result{
		RunMeta:       o.config.RunMeta,
		Status:        status,
		State:         o.state,
		Err:           err,
		Report:        rpt,
		Contingencies: o.contingencies,
		Dir:           o.config.Workdir.Dir(),
		Transitions:   append([]Transition(nil), o.transitions...),
		Duration:      time.Since(start),
	}
}
