// Package types defines core domain types for ctgrun.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// RunMeta identifies a single contingency pipeline run.
type RunMeta struct {
	// RunID is the canonical run identifier. Must be globally unique.
	RunID string
	// CaseName is a human label for the case being analyzed (used as the CASE label).
	CaseName string
	// StartedAt is the run start time.
	StartedAt time.Time
}

// NewRunMeta creates run metadata with a fresh UUID run ID.
func NewRunMeta(caseName string) *RunMeta {
	return &RunMeta{
		RunID:     uuid.NewString(),
		CaseName:  caseName,
		StartedAt: time.Now().UTC(),
	}
}

// Validate checks that the run metadata is usable.
func (r *RunMeta) Validate() error {
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	if r.CaseName == "" {
		return errors.New("case name must be non-empty")
	}
	return nil
}

// State is a pipeline state.
type State string

// Pipeline states in execution order. Failed is terminal and reachable from any state.
const (
	StateIdle                    State = "idle"
	StateSnapshotting            State = "snapshotting"
	StateGeneratingContingencies State = "generating_contingencies"
	StateAuthoringCriteria       State = "authoring_criteria"
	StateAuthoringRun            State = "authoring_run"
	StateSolving                 State = "solving"
	StateAuthoringReport         State = "authoring_report"
	StateRunningReport           State = "running_report"
	StateParsing                 State = "parsing"
	StateDone                    State = "done"
	StateFailed                  State = "failed"
)

// StateOrder lists the non-terminal-failure states in the order a successful run visits them.
var StateOrder = []State{
	StateIdle,
	StateSnapshotting,
	StateGeneratingContingencies,
	StateAuthoringCriteria,
	StateAuthoringRun,
	StateSolving,
	StateAuthoringReport,
	StateRunningReport,
	StateParsing,
	StateDone,
}

// Next returns the state that follows s on the success path.
// Done and Failed have no successor.
func (s State) Next() (State, bool) {
	for i, st := range StateOrder {
		if st == s && i+1 < len(StateOrder) {
			return StateOrder[i+1], true
		}
	}
	return "", false
}

// Terminal reports whether s is Done or Failed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// OutcomeStatus represents the final status of a pipeline run.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates the run produced a complete ViolationReport.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeFailed indicates a stage failed and the run was aborted.
	OutcomeFailed OutcomeStatus = "failed"
)
