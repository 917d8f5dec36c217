// Package adapter defines the notification boundary for finished runs.
//
// Adapters publish a PipelineCompletedEvent to a downstream system once a
// run reaches Done or Failed. Delivery failures never change a run's outcome.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/gridops-tools/ctgrun/pipeline"
	"github.com/gridops-tools/ctgrun/types"
)

// EventType is the event_type of every published event.
const EventType = "pipeline_completed"

// PipelineCompletedEvent is the payload published when a run finishes.
type PipelineCompletedEvent struct {
	EventType             string `json:"event_type"`
	Version               string `json:"version"`
	RunID                 string `json:"run_id"`
	CaseName              string `json:"case_name"`
	Day                   string `json:"day"`
	Outcome               string `json:"outcome"`
	Code                  string `json:"code,omitempty"`
	FailedStage           string `json:"failed_stage,omitempty"`
	Error                 string `json:"error,omitempty"`
	Dir                   string `json:"dir,omitempty"`
	ArchivePath           string `json:"archive_path,omitempty"`
	Timestamp             string `json:"timestamp"` // RFC 3339
	Contingencies         int    `json:"contingencies"`
	VoltageViolations     int    `json:"voltage_violations"`
	FlowViolations        int    `json:"flow_violations"`
	UnsolvedContingencies int    `json:"unsolved_contingencies"`
	DurationMs            int64  `json:"duration_ms"`
}

// NewEvent builds the event for a finished run.
func NewEvent(res *pipeline.Result, completedAt time.Time) *PipelineCompletedEvent {
	completedAt = completedAt.UTC()
	e := &PipelineCompletedEvent{
		EventType:     EventType,
		Version:       types.Version,
		Day:           completedAt.Format("2006-01-02"),
		Outcome:       string(res.Status),
		Code:          res.Code,
		FailedStage:   string(res.FailedStage),
		Dir:           res.Dir,
		Timestamp:     completedAt.Format(time.RFC3339),
		Contingencies: res.Contingencies,
		DurationMs:    res.Duration.Milliseconds(),
	}
	if res.RunMeta != nil {
		e.RunID = res.RunMeta.RunID
		e.CaseName = res.RunMeta.CaseName
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	if r := res.Report; r != nil {
		e.VoltageViolations = r.VoltageViolations.Len()
		e.FlowViolations = r.PerUnitFlowViolations.Len()
		e.UnsolvedContingencies = r.UnsolvedContingencies.Len()
	}
	return e
}

// Adapter publishes completion events to a downstream system.
type Adapter interface {
	// Publish sends the event. Must respect context cancellation.
	Publish(ctx context.Context, event *PipelineCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// BaseBackoff is the delay before the first retry. Each later retry doubles it.
const BaseBackoff = 500 * time.Millisecond

// Retry calls attempt up to 1+retries times with exponential backoff between
// calls. It stops early when permanent reports the error as non-retriable.
func Retry(ctx context.Context, name string, retries int, attempt func(context.Context) error, permanent func(error) bool) error {
	attempts := 1 + retries
	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BaseBackoff
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		lastErr = attempt(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
