// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single pipeline run. It is a
// leaf package with no internal dependencies. Report row counts are absorbed
// once after parsing rather than recorded live.
package metrics

import (
	"sync"
	"time"
)

// Snapshot is an immutable point-in-time view of all metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64 `json:"runs_started_total"`
	RunsCompleted int64 `json:"runs_completed_total"`
	RunsFailed    int64 `json:"runs_failed_total"`
	// FailuresByCode counts failed runs by stage error code.
	FailuresByCode map[string]int64 `json:"failures_by_code"`

	// External processes
	ProcessLaunchSuccess int64 `json:"process_launch_success_total"`
	ProcessLaunchFailure int64 `json:"process_launch_failure_total"`
	ProcessNonZeroExit   int64 `json:"process_nonzero_exit_total"`
	ProcessTimeouts      int64 `json:"process_timeout_total"`

	// Stage wall time, keyed by pipeline state.
	StageDurations map[string]time.Duration `json:"stage_durations"`

	// Results (absorbed after parsing)
	Contingencies         int64 `json:"contingencies"`
	VoltageViolations     int64 `json:"voltage_violations"`
	FlowViolations        int64 `json:"flow_violations"`
	UnsolvedContingencies int64 `json:"unsolved_contingencies"`

	// Archive
	ArchiveWriteSuccess int64 `json:"archive_write_success_total"`
	ArchiveWriteFailure int64 `json:"archive_write_failure_total"`

	// Dimensions (informational, set at construction)
	RunID          string `json:"run_id"`
	CaseName       string `json:"case"`
	WorkdirMode    string `json:"workdir_mode"`
	ArchiveBackend string `json:"archive_backend"`
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	runsStarted    int64
	runsCompleted  int64
	runsFailed     int64
	failuresByCode map[string]int64

	processLaunchSuccess int64
	processLaunchFailure int64
	processNonZeroExit   int64
	processTimeouts      int64

	stageDurations map[string]time.Duration

	contingencies         int64
	voltageViolations     int64
	flowViolations        int64
	unsolvedContingencies int64

	archiveWriteSuccess int64
	archiveWriteFailure int64

	runID          string
	caseName       string
	workdirMode    string
	archiveBackend string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(runID, caseName, workdirMode, archiveBackend string) *Collector {
	return &Collector{
		failuresByCode: make(map[string]int64),
		stageDurations: make(map[string]time.Duration),
		runID:          runID,
		caseName:       caseName,
		workdirMode:    workdirMode,
		archiveBackend: archiveBackend,
	}
}

func (c *Collector) add(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Run lifecycle ---

// IncRunStarted records a run start.
func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.add(&c.runsStarted)
}

// IncRunCompleted records a successful run.
func (c *Collector) IncRunCompleted() {
	if c == nil {
		return
	}
	c.add(&c.runsCompleted)
}

// IncRunFailed records a failed run under its stage error code.
func (c *Collector) IncRunFailed(code string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.runsFailed++
	c.failuresByCode[code]++
	c.mu.Unlock()
}

// --- External processes ---

// IncProcessLaunchSuccess records a process that started and exited.
func (c *Collector) IncProcessLaunchSuccess() {
	if c == nil {
		return
	}
	c.add(&c.processLaunchSuccess)
}

// IncProcessLaunchFailure records a process that could not be started.
func (c *Collector) IncProcessLaunchFailure() {
	if c == nil {
		return
	}
	c.add(&c.processLaunchFailure)
}

// IncProcessNonZeroExit records a process that exited with a failure status.
func (c *Collector) IncProcessNonZeroExit() {
	if c == nil {
		return
	}
	c.add(&c.processNonZeroExit)
}

// IncProcessTimeout records a process killed at its deadline.
func (c *Collector) IncProcessTimeout() {
	if c == nil {
		return
	}
	c.add(&c.processTimeouts)
}

// ObserveStage records the wall time of one stage.
func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stageDurations[stage] += d
	c.mu.Unlock()
}

// --- Results ---

// SetContingencies records the size of the generated contingency set.
func (c *Collector) SetContingencies(n int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.contingencies = int64(n)
	c.mu.Unlock()
}

// AbsorbReport copies the row counts of a parsed report into the collector.
func (c *Collector) AbsorbReport(voltage, flow, unsolved int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.voltageViolations = int64(voltage)
	c.flowViolations = int64(flow)
	c.unsolvedContingencies = int64(unsolved)
	c.mu.Unlock()
}

// --- Archive ---

// IncArchiveWriteSuccess records a successful archive write (per call).
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteSuccess)
}

// IncArchiveWriteFailure records a failed archive write (per call).
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	failures := make(map[string]int64, len(c.failuresByCode))
	for k, v := range c.failuresByCode {
		failures[k] = v
	}
	durations := make(map[string]time.Duration, len(c.stageDurations))
	for k, v := range c.stageDurations {
		durations[k] = v
	}

	return Snapshot{
		RunsStarted:    c.runsStarted,
		RunsCompleted:  c.runsCompleted,
		RunsFailed:     c.runsFailed,
		FailuresByCode: failures,

		ProcessLaunchSuccess: c.processLaunchSuccess,
		ProcessLaunchFailure: c.processLaunchFailure,
		ProcessNonZeroExit:   c.processNonZeroExit,
		ProcessTimeouts:      c.processTimeouts,

		StageDurations: durations,

		Contingencies:         c.contingencies,
		VoltageViolations:     c.voltageViolations,
		FlowViolations:        c.flowViolations,
		UnsolvedContingencies: c.unsolvedContingencies,

		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,

		RunID:          c.runID,
		CaseName:       c.caseName,
		WorkdirMode:    c.workdirMode,
		ArchiveBackend: c.archiveBackend,
	}
}
