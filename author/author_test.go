package author

import (
	"errors"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
)

const goldenCriteria = `rating 1 100.0 0.0
monitor voltage 1 1.050 0.950
monitor flows 1 100.0 0.0
monitor interface 1 100.0 0.0
monitor svd 0
monitor load 0
monitor gens 0
monitor 1 0.0 9999.0
LTC 0
SVD 0
PAR 0
dctap 0
area 0 9999
`

func TestDefaultCriteria_Golden(t *testing.T) {
	got, err := DefaultCriteria().Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if diff := cmp.Diff(goldenCriteria, string(got)); diff != "" {
		t.Errorf("criteria mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultCriteria_Stable(t *testing.T) {
	a, _ := DefaultCriteria().Bytes()
	b, _ := DefaultCriteria().Bytes()
	if string(a) != string(b) {
		t.Error("criteria output differs between calls")
	}
}

func TestRunDescriptor_Golden(t *testing.T) {
	d := RunDescriptor{
		Label:         "system study",
		Snapshot:      "/work/runs/r 1/snapshot.sav",
		Contingencies: "/work/runs/r 1/n1.otg",
		Criteria:      "/work/runs/r 1/criteria.cntl",
		Output:        "/work/runs/r 1/results.rslt",
	}
	want := `CASE "system study" 0 {
  SAV "/work/runs/r 1/snapshot.sav";
  OTG "/work/runs/r 1/n1.otg";
  CNTL "/work/runs/r 1/criteria.cntl";
  OUTPUT "/work/runs/r 1/results.rslt"
}
`
	got, err := d.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
	}
	if n := strings.Count(string(got), "CASE "); n != 1 {
		t.Errorf("CASE blocks = %d, want 1", n)
	}
}

func TestRunDescriptor_Rejects(t *testing.T) {
	base := RunDescriptor{Label: "l", Snapshot: "s", Contingencies: "o", Criteria: "c", Output: "r"}

	quoted := base
	quoted.Snapshot = `/tmp/a"b.sav`
	if _, err := quoted.Bytes(); !errors.Is(err, ErrUnquotable) {
		t.Errorf("quote in path: err = %v, want ErrUnquotable", err)
	}

	newline := base
	newline.Label = "two\nlines"
	if _, err := newline.Bytes(); !errors.Is(err, ErrUnquotable) {
		t.Errorf("newline in label: err = %v, want ErrUnquotable", err)
	}

	missing := base
	missing.Output = ""
	if _, err := missing.Bytes(); err == nil {
		t.Error("missing output path should fail")
	}
}

func TestReportDescriptor_Golden(t *testing.T) {
	d := ReportDescriptor{Input: "/w/results.rslt", Output: "/w/violations.xlsx"}
	want := `runtype ctg
report ctgviolations
postproc 1
ratingunits percent
"/w/results.rslt" "/w/violations.xlsx"
end
`
	got, err := d.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("report descriptor mismatch (-want +got):\n%s", diff)
	}
}

func TestLauncher_Golden(t *testing.T) {
	l := Launcher{
		InstallDir: "/opt/ge/plotting",
		Java:       "/usr/bin/java",
		MainClass:  "com.example.Batch",
		Descriptor: "/w/run 7/report.desc",
	}
	want := `#!/bin/sh
export PLOT_HOME="/opt/ge/plotting"
export CLASSPATH="/opt/ge/plotting/lib/*"
exec "/usr/bin/java" -cp "$CLASSPATH" com.example.Batch -batch "/w/run 7/report.desc"
`
	got, err := l.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if diff := cmp.Diff(want, string(got)); diff != "" {
		t.Errorf("launcher mismatch (-want +got):\n%s", diff)
	}
}

func TestLauncher_RejectsShellMetacharacters(t *testing.T) {
	for _, dir := range []string{"/opt/$HOME", "/opt/`id`", `/opt/a\b`, `/opt/"x"`} {
		l := Launcher{InstallDir: dir, Java: "java", MainClass: "M", Descriptor: "d"}
		if _, err := l.Bytes(); !errors.Is(err, ErrUnquotable) {
			t.Errorf("InstallDir %q: err = %v, want ErrUnquotable", dir, err)
		}
	}
}

func TestWrite(t *testing.T) {
	fs := memfs.New()
	if err := Write(fs, "criteria.cntl", DefaultCriteria(), 0o644); err != nil {
		t.Fatalf("Write: %v", err)
	}
	data, err := util.ReadFile(fs, "criteria.cntl")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != goldenCriteria {
		t.Errorf("written criteria differs from golden")
	}
}

func TestWrite_RenderFailureLeavesNoFile(t *testing.T) {
	fs := memfs.New()
	err := Write(fs, "run.ctg", RunDescriptor{Label: "x"}, 0o644)
	if err == nil {
		t.Fatal("expected render error")
	}
	if _, statErr := fs.Stat("run.ctg"); statErr == nil {
		t.Error("file should not exist after render failure")
	}
}
