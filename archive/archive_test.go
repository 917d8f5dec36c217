package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/justapithecus/lode/lode"

	"github.com/gridops-tools/ctgrun/metrics"
	"github.com/gridops-tools/ctgrun/pipeline"
	"github.com/gridops-tools/ctgrun/types"
)

func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func sampleReport() *types.ViolationReport {
	return &types.ViolationReport{
		VoltageViolations: types.Table{
			Name:    types.SheetVoltageViolations,
			Columns: []string{"Contingency", "Bus", "Voltage"},
			Rows:    [][]string{{"Branch 1-2 ckt 1", "3", "0.92"}},
		},
		PerUnitFlowViolations: types.Table{
			Name:    types.SheetPerUnitFlowViolations,
			Columns: []string{"Contingency", "Branch", "Loading"},
			Rows:    [][]string{},
		},
		UnsolvedContingencies: types.Table{
			Name:    types.SheetUnsolvedContingencies,
			Columns: []string{"Contingency"},
			Rows:    [][]string{},
		},
	}
}

func sampleRecord(runID, caseName string, completed time.Time) *RunRecord {
	return &RunRecord{
		RunID:         runID,
		CaseName:      caseName,
		Status:        string(types.OutcomeSuccess),
		Contingencies: 2,
		Dir:           "/work/runs/" + runID,
		StartedAt:     completed.Add(-time.Minute),
		CompletedAt:   completed,
		DurationMS:    60000,
		Report:        sampleReport(),
	}
}

func TestWriteRun_LatestRoundTrip(t *testing.T) {
	a, err := New("ctgrun", BackendMemory, sharedFactory(lode.NewMemory()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	completed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := sampleRecord("run-1", "summer peak", completed)

	snap := metrics.Snapshot{RunsStarted: 1, RunsCompleted: 1, Contingencies: 2, RunID: "run-1"}
	if err := a.WriteRun(t.Context(), rec, &snap); err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}

	got, err := a.Latest(t.Context(), Filter{})
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	gotSnap, err := a.LatestMetrics(t.Context(), Filter{RunID: "run-1"})
	if err != nil {
		t.Fatalf("LatestMetrics failed: %v", err)
	}
	if gotSnap.RunsCompleted != 1 || gotSnap.Contingencies != 2 || gotSnap.RunID != "run-1" {
		t.Errorf("metrics = %+v", gotSnap)
	}
}

func TestWriteRun_WithoutMetrics(t *testing.T) {
	a, err := NewMemory("ctgrun")
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	if err := a.WriteRun(t.Context(), sampleRecord("run-1", "c", time.Now()), nil); err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}
	if _, err := a.LatestMetrics(t.Context(), Filter{}); !errors.Is(err, ErrNoMetricsFound) {
		t.Errorf("LatestMetrics error = %v, want ErrNoMetricsFound", err)
	}
}

func TestWriteRun_RequiresRunID(t *testing.T) {
	a, err := NewMemory("")
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	if err := a.WriteRun(t.Context(), &RunRecord{}, nil); err == nil {
		t.Error("WriteRun with empty run ID = nil, want error")
	}
}

func TestLatest_EmptyArchive(t *testing.T) {
	a, err := NewMemory("ctgrun")
	if err != nil {
		t.Fatalf("NewMemory failed: %v", err)
	}
	if _, err := a.Latest(t.Context(), Filter{}); !errors.Is(err, ErrNoRunsFound) {
		t.Errorf("Latest error = %v, want ErrNoRunsFound", err)
	}
}

func TestLatest_Filters(t *testing.T) {
	a, err := New("ctgrun", BackendMemory, sharedFactory(lode.NewMemory()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range []struct{ run, name string }{
		{"run-1", "north"},
		{"run-10", "north"},
		{"run-2", "south"},
	} {
		if err := a.WriteRun(t.Context(), sampleRecord(c.run, c.name, base.Add(time.Duration(i)*time.Hour)), nil); err != nil {
			t.Fatalf("WriteRun(%s) failed: %v", c.run, err)
		}
	}

	got, err := a.Latest(t.Context(), Filter{RunID: "run-1"})
	if err != nil {
		t.Fatalf("Latest(run-1) failed: %v", err)
	}
	if got.RunID != "run-1" {
		t.Errorf("RunID = %q, want run-1 (not a prefix match)", got.RunID)
	}

	got, err = a.Latest(t.Context(), Filter{CaseName: "north"})
	if err != nil {
		t.Fatalf("Latest(north) failed: %v", err)
	}
	if got.RunID != "run-10" {
		t.Errorf("latest north run = %q, want run-10", got.RunID)
	}

	if _, err := a.Latest(t.Context(), Filter{RunID: "run-3"}); !errors.Is(err, ErrNoRunsFound) {
		t.Errorf("Latest(run-3) error = %v, want ErrNoRunsFound", err)
	}
}

func TestList(t *testing.T) {
	a, err := New("ctgrun", BackendMemory, sharedFactory(lode.NewMemory()))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		rec := sampleRecord(fmt.Sprintf("run-%d", i), "grid", base.Add(time.Duration(i)*time.Hour))
		if err := a.WriteRun(t.Context(), rec, nil); err != nil {
			t.Fatalf("WriteRun failed: %v", err)
		}
	}

	all, err := a.List(t.Context(), Filter{}, 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var ids []string
	for _, r := range all {
		ids = append(ids, r.RunID)
		if r.Report != nil {
			t.Errorf("List returned report for %s", r.RunID)
		}
	}
	if diff := cmp.Diff([]string{"run-2", "run-1", "run-0"}, ids); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}

	limited, err := a.List(t.Context(), Filter{}, 1)
	if err != nil {
		t.Fatalf("List(limit 1) failed: %v", err)
	}
	if len(limited) != 1 || limited[0].RunID != "run-2" {
		t.Errorf("List(limit 1) = %+v, want newest run only", limited)
	}
}

func TestNewFS_PersistsAcrossInstances(t *testing.T) {
	root := t.TempDir()
	a, err := NewFS("ctgrun", root)
	if err != nil {
		t.Fatalf("NewFS failed: %v", err)
	}
	if err := a.WriteRun(t.Context(), sampleRecord("run-fs", "grid", time.Now()), nil); err != nil {
		t.Fatalf("WriteRun failed: %v", err)
	}

	b, err := NewFS("ctgrun", root)
	if err != nil {
		t.Fatalf("NewFS (reopen) failed: %v", err)
	}
	got, err := b.Latest(t.Context(), Filter{RunID: "run-fs"})
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if got.Report.VoltageViolations.Len() != 1 {
		t.Errorf("voltage violations = %d, want 1", got.Report.VoltageViolations.Len())
	}
}

func TestRecordFromResult(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	res := &pipeline.Result{
		RunMeta:     &types.RunMeta{RunID: "run-x", CaseName: "grid", StartedAt: started},
		Status:      types.OutcomeFailed,
		FailedStage: types.StateSolving,
		Code:        "SOLVER_FAILED",
		Err:         errors.New("solver exited with status 2"),
		Dir:         "/work/runs/run-x",
		Duration:    1500 * time.Millisecond,
	}
	completed := started.Add(2 * time.Second)
	got := RecordFromResult(res, completed)
	want := &RunRecord{
		RunID:       "run-x",
		CaseName:    "grid",
		Status:      string(types.OutcomeFailed),
		Code:        "SOLVER_FAILED",
		FailedStage: string(types.StateSolving),
		Error:       "solver exited with status 2",
		Dir:         "/work/runs/run-x",
		StartedAt:   started,
		CompletedAt: completed,
		DurationMS:  1500,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	if a, err := Open(ctx, Config{Backend: BackendMemory}); err != nil || a.Backend() != BackendMemory {
		t.Errorf("Open(memory) = %v, %v", a, err)
	}
	if a, err := Open(ctx, Config{Backend: BackendFS, Path: t.TempDir()}); err != nil || a.Backend() != BackendFS {
		t.Errorf("Open(fs) = %v, %v", a, err)
	}
	if _, err := Open(ctx, Config{Backend: BackendFS}); err == nil {
		t.Error("Open(fs) without path = nil error")
	}
	if _, err := Open(ctx, Config{Backend: "tape"}); err == nil {
		t.Error("Open(tape) = nil error")
	}
	if _, err := Open(ctx, Config{Backend: BackendS3}); err == nil {
		t.Error("Open(s3) without bucket = nil error")
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct{ in, bucket, prefix string }{
		{"bucket", "bucket", ""},
		{"bucket/runs", "bucket", "runs"},
		{"s3://bucket/a/b/", "bucket", "a/b"},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.in)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q; want %q, %q", tt.in, b, p, tt.bucket, tt.prefix)
		}
	}
}

func TestCaseKey(t *testing.T) {
	tests := map[string]string{
		"summer peak":  "summer_peak",
		"a/b=c":        "a_b_c",
		"":             "_",
		"Case-1.final": "Case-1.final",
	}
	for in, want := range tests {
		if got := caseKey(in); got != want {
			t.Errorf("caseKey(%q) = %q, want %q", in, got, want)
		}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "dial" }
func (timeoutErr) Timeout() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{timeoutErr{}, ErrTimeout},
		{errors.New("context deadline exceeded"), ErrTimeout},
		{errors.New("AccessDenied: no access"), ErrAccessDenied},
		{errors.New("received status 403"), ErrAccessDenied},
		{&os.PathError{Op: "open", Path: "/x", Err: syscall.EACCES}, ErrPermissionDenied},
		{&os.PathError{Op: "open", Path: "/x", Err: syscall.ENOENT}, ErrNotFound},
		{errors.New("NoSuchBucket: gone"), ErrNotFound},
		{errors.New("write: no space left on device"), ErrDiskFull},
		{errors.New("SlowDown: reduce request rate"), ErrThrottled},
		{errors.New("NoCredentialProviders: no valid providers"), ErrAuth},
		{errors.New("dial tcp 10.0.0.1:443: connection refused"), ErrNetwork},
		{errors.New("something odd"), ErrUnclassified},
	}
	for _, tt := range tests {
		if got := classify(tt.err); got != tt.want {
			t.Errorf("classify(%q) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestStorageError(t *testing.T) {
	cause := errors.New("no space left on device")
	err := wrap("write", "case=grid/run_id=r", cause)

	if !errors.Is(err, ErrDiskFull) {
		t.Error("errors.Is(err, ErrDiskFull) = false")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("errors.As(%v) = false, want StorageError", err)
	}
	if se.Op != "write" {
		t.Errorf("Op = %q, want write", se.Op)
	}
	if want := "archive write case=grid/run_id=r: no space left on device: no space left on device"; err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if wrap("read", "", err) != err {
		t.Error("wrap re-wrapped a StorageError")
	}
	if wrap("read", "", nil) != nil {
		t.Error("wrap(nil) != nil")
	}
}

func TestNewFS_UnwritableRoot(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	root := filepath.Join(t.TempDir(), "ro")
	if err := os.Mkdir(root, 0o500); err != nil {
		t.Fatal(err)
	}
	a, err := NewFS("ctgrun", root)
	if err != nil {
		return
	}
	err = a.WriteRun(t.Context(), sampleRecord("run-ro", "grid", time.Now()), nil)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("WriteRun error = %v, want ErrPermissionDenied", err)
	}
}
