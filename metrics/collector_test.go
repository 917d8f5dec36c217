package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("run-001", "study", "isolated", "fs")

	c.IncRunStarted()
	c.IncRunCompleted()
	c.IncRunFailed("SOLVER_FAILED")
	c.IncRunFailed("SOLVER_FAILED")
	c.IncRunFailed("REPORT_TIMEOUT")
	c.IncProcessLaunchSuccess()
	c.IncProcessLaunchSuccess()
	c.IncProcessLaunchFailure()
	c.IncProcessNonZeroExit()
	c.IncProcessTimeout()
	c.IncArchiveWriteSuccess()
	c.IncArchiveWriteSuccess()
	c.IncArchiveWriteFailure()

	s := c.Snapshot()

	if s.RunsStarted != 1 {
		t.Errorf("RunsStarted = %d, want 1", s.RunsStarted)
	}
	if s.RunsCompleted != 1 {
		t.Errorf("RunsCompleted = %d, want 1", s.RunsCompleted)
	}
	if s.RunsFailed != 3 {
		t.Errorf("RunsFailed = %d, want 3", s.RunsFailed)
	}
	if s.FailuresByCode["SOLVER_FAILED"] != 2 {
		t.Errorf("FailuresByCode[SOLVER_FAILED] = %d, want 2", s.FailuresByCode["SOLVER_FAILED"])
	}
	if s.FailuresByCode["REPORT_TIMEOUT"] != 1 {
		t.Errorf("FailuresByCode[REPORT_TIMEOUT] = %d, want 1", s.FailuresByCode["REPORT_TIMEOUT"])
	}
	if s.ProcessLaunchSuccess != 2 {
		t.Errorf("ProcessLaunchSuccess = %d, want 2", s.ProcessLaunchSuccess)
	}
	if s.ProcessLaunchFailure != 1 {
		t.Errorf("ProcessLaunchFailure = %d, want 1", s.ProcessLaunchFailure)
	}
	if s.ProcessNonZeroExit != 1 {
		t.Errorf("ProcessNonZeroExit = %d, want 1", s.ProcessNonZeroExit)
	}
	if s.ProcessTimeouts != 1 {
		t.Errorf("ProcessTimeouts = %d, want 1", s.ProcessTimeouts)
	}
	if s.ArchiveWriteSuccess != 2 {
		t.Errorf("ArchiveWriteSuccess = %d, want 2", s.ArchiveWriteSuccess)
	}
	if s.ArchiveWriteFailure != 1 {
		t.Errorf("ArchiveWriteFailure = %d, want 1", s.ArchiveWriteFailure)
	}
}

func TestCollector_Dimensions(t *testing.T) {
	s := NewCollector("run-42", "winter peak", "shared", "s3").Snapshot()

	if s.RunID != "run-42" {
		t.Errorf("RunID = %q, want %q", s.RunID, "run-42")
	}
	if s.CaseName != "winter peak" {
		t.Errorf("CaseName = %q, want %q", s.CaseName, "winter peak")
	}
	if s.WorkdirMode != "shared" {
		t.Errorf("WorkdirMode = %q, want %q", s.WorkdirMode, "shared")
	}
	if s.ArchiveBackend != "s3" {
		t.Errorf("ArchiveBackend = %q, want %q", s.ArchiveBackend, "s3")
	}
}

func TestCollector_Results(t *testing.T) {
	c := NewCollector("run-001", "study", "isolated", "")
	c.SetContingencies(12)
	c.AbsorbReport(2, 1, 3)

	s := c.Snapshot()
	if s.Contingencies != 12 {
		t.Errorf("Contingencies = %d, want 12", s.Contingencies)
	}
	if s.VoltageViolations != 2 || s.FlowViolations != 1 || s.UnsolvedContingencies != 3 {
		t.Errorf("report counts = %d/%d/%d, want 2/1/3", s.VoltageViolations, s.FlowViolations, s.UnsolvedContingencies)
	}
}

func TestCollector_ObserveStage(t *testing.T) {
	c := NewCollector("run-001", "study", "isolated", "")
	c.ObserveStage("solving", 2*time.Second)
	c.ObserveStage("solving", time.Second)
	c.ObserveStage("parsing", 10*time.Millisecond)

	s := c.Snapshot()
	if s.StageDurations["solving"] != 3*time.Second {
		t.Errorf("solving = %s, want 3s", s.StageDurations["solving"])
	}
	if s.StageDurations["parsing"] != 10*time.Millisecond {
		t.Errorf("parsing = %s, want 10ms", s.StageDurations["parsing"])
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("run-001", "study", "isolated", "")
	c.IncRunStarted()
	c.IncArchiveWriteSuccess()

	s1 := c.Snapshot()

	c.IncRunCompleted()
	c.IncArchiveWriteSuccess()
	c.IncArchiveWriteSuccess()

	if s1.RunsCompleted != 0 {
		t.Errorf("s1.RunsCompleted = %d, want 0 (snapshot should be frozen)", s1.RunsCompleted)
	}
	if s1.ArchiveWriteSuccess != 1 {
		t.Errorf("s1.ArchiveWriteSuccess = %d, want 1 (snapshot should be frozen)", s1.ArchiveWriteSuccess)
	}

	s2 := c.Snapshot()
	if s2.RunsCompleted != 1 {
		t.Errorf("s2.RunsCompleted = %d, want 1", s2.RunsCompleted)
	}
	if s2.ArchiveWriteSuccess != 3 {
		t.Errorf("s2.ArchiveWriteSuccess = %d, want 3", s2.ArchiveWriteSuccess)
	}
}

func TestCollector_SnapshotMapIsolation(t *testing.T) {
	c := NewCollector("run-001", "study", "isolated", "")
	c.IncRunFailed("SNAPSHOT_FAILED")
	c.ObserveStage("snapshotting", time.Second)

	s := c.Snapshot()
	s.FailuresByCode["SNAPSHOT_FAILED"] = 999
	s.FailuresByCode["injected"] = 1
	s.StageDurations["snapshotting"] = time.Hour

	s2 := c.Snapshot()
	if s2.FailuresByCode["SNAPSHOT_FAILED"] != 1 {
		t.Errorf("FailuresByCode[SNAPSHOT_FAILED] = %d, want 1 (collector should be isolated from snapshot mutation)", s2.FailuresByCode["SNAPSHOT_FAILED"])
	}
	if _, exists := s2.FailuresByCode["injected"]; exists {
		t.Error("FailuresByCode should not contain injected key from snapshot mutation")
	}
	if s2.StageDurations["snapshotting"] != time.Second {
		t.Errorf("StageDurations[snapshotting] = %s, want 1s", s2.StageDurations["snapshotting"])
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncRunStarted()
	c.IncRunCompleted()
	c.IncRunFailed("UNKNOWN")
	c.IncProcessLaunchSuccess()
	c.IncProcessLaunchFailure()
	c.IncProcessNonZeroExit()
	c.IncProcessTimeout()
	c.ObserveStage("solving", time.Second)
	c.SetContingencies(3)
	c.AbsorbReport(1, 2, 3)
	c.IncArchiveWriteSuccess()
	c.IncArchiveWriteFailure()

	s := c.Snapshot()
	if s.RunsStarted != 0 {
		t.Errorf("nil collector snapshot RunsStarted = %d, want 0", s.RunsStarted)
	}
	if s.FailuresByCode != nil {
		t.Errorf("nil collector snapshot FailuresByCode should be nil, got %v", s.FailuresByCode)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("run-001", "study", "isolated", "")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncRunStarted()
				c.IncProcessLaunchSuccess()
				c.ObserveStage("solving", time.Nanosecond)
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.RunsStarted != want {
		t.Errorf("RunsStarted = %d, want %d", s.RunsStarted, want)
	}
	if s.ProcessLaunchSuccess != want {
		t.Errorf("ProcessLaunchSuccess = %d, want %d", s.ProcessLaunchSuccess, want)
	}
	if s.StageDurations["solving"] != time.Duration(want) {
		t.Errorf("StageDurations[solving] = %s, want %s", s.StageDurations["solving"], time.Duration(want))
	}
}
