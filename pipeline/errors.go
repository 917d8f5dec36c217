package pipeline

import (
	"errors"
	"fmt"

	"github.com/gridops-tools/ctgrun/types"
)

// Sentinel errors classifying pipeline failures.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrSnapshot indicates the engine could not write the case snapshot.
	ErrSnapshot = errors.New("snapshot failed")

	// ErrScriptNotFound indicates the contingency script is missing or unreadable.
	ErrScriptNotFound = errors.New("contingency script not found")

	// ErrContingencyGeneration indicates the engine failed to produce the contingency set.
	ErrContingencyGeneration = errors.New("contingency generation failed")

	// ErrCriteriaAuthoring indicates the criteria file could not be written.
	ErrCriteriaAuthoring = errors.New("criteria authoring failed")

	// ErrRunDescriptorAuthoring indicates the run descriptor could not be written.
	ErrRunDescriptorAuthoring = errors.New("run descriptor authoring failed")

	// ErrSolverInvocation indicates the batch solver failed to start or exited non-zero.
	ErrSolverInvocation = errors.New("batch solver failed")

	// ErrSolverTimeout indicates the batch solver exceeded its deadline.
	ErrSolverTimeout = errors.New("batch solver timed out")

	// ErrReportAuthoring indicates the report descriptor or launcher could not be written.
	ErrReportAuthoring = errors.New("report authoring failed")

	// ErrReportInvocation indicates the reporting tool failed to start or exited non-zero.
	ErrReportInvocation = errors.New("reporting tool failed")

	// ErrReportTimeout indicates the reporting tool exceeded its deadline.
	ErrReportTimeout = errors.New("reporting tool timed out")

	// ErrReportParse indicates the violation spreadsheet did not satisfy its schema.
	ErrReportParse = errors.New("report parse failed")

	// ErrUnknown indicates an unclassified failure, including recovered panics.
	ErrUnknown = errors.New("unknown pipeline failure")
)

// ErrReportToolNotInstalled is the cause of a report invocation failure
// when the reporting tool's install directory does not exist.
var ErrReportToolNotInstalled = errors.New("reporting tool not installed")

// codes maps each kind to its stable string code.
var codes = map[error]string{
	ErrSnapshot:               "SNAPSHOT_FAILED",
	ErrScriptNotFound:         "SCRIPT_NOT_FOUND",
	ErrContingencyGeneration:  "CONTINGENCY_GENERATION_FAILED",
	ErrCriteriaAuthoring:      "CRITERIA_AUTHORING_FAILED",
	ErrRunDescriptorAuthoring: "RUN_DESCRIPTOR_AUTHORING_FAILED",
	ErrSolverInvocation:       "SOLVER_FAILED",
	ErrSolverTimeout:          "SOLVER_TIMEOUT",
	ErrReportAuthoring:        "REPORT_AUTHORING_FAILED",
	ErrReportInvocation:       "REPORT_FAILED",
	ErrReportTimeout:          "REPORT_TIMEOUT",
	ErrReportParse:            "REPORT_PARSE_FAILED",
	ErrUnknown:                "UNKNOWN",
}

// Kinds returns every failure kind in pipeline order.
func Kinds() []error {
	return []error{
		ErrSnapshot,
		ErrScriptNotFound,
		ErrContingencyGeneration,
		ErrCriteriaAuthoring,
		ErrRunDescriptorAuthoring,
		ErrSolverInvocation,
		ErrSolverTimeout,
		ErrReportAuthoring,
		ErrReportInvocation,
		ErrReportTimeout,
		ErrReportParse,
		ErrUnknown,
	}
}

// StageError is a pipeline failure tagged with the stage it occurred in.
// It preserves the underlying cause in the chain for inspection via errors.As.
type StageError struct {
	// Kind is the sentinel error for classification (e.g., ErrSnapshot).
	Kind error
	// Stage is the state the pipeline was in when it failed.
	Stage types.State
	// Err is the underlying cause.
	Err error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap returns the underlying cause for errors.Is/As chain traversal.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// Code returns the stable string code of the error's kind.
func (e *StageError) Code() string {
	if c, ok := codes[e.Kind]; ok {
		return c
	}
	return codes[ErrUnknown]
}

// NewStageError creates a classified stage error.
func NewStageError(kind error, stage types.State, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

// Code returns the stable code for err: the StageError code when err carries
// one, "" for nil, and the unknown code otherwise.
func Code(err error) string {
	if err == nil {
		return ""
	}
	var se *StageError
	if errors.As(err, &se) {
		return se.Code()
	}
	return codes[ErrUnknown]
}

// CodeOf returns the stable code of a kind sentinel.
func CodeOf(kind error) string {
	if c, ok := codes[kind]; ok {
		return c
	}
	return codes[ErrUnknown]
}
