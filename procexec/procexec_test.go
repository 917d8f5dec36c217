package procexec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sh(script string) Command {
	return Command{Path: "sh", Args: []string{"-c", script}}
}

func TestRun_Success(t *testing.T) {
	res, err := NewExecRunner().Run(t.Context(), sh("echo out; echo err >&2"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success() {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if strings.TrimSpace(string(res.Stdout)) != "out" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if strings.TrimSpace(string(res.Stderr)) != "err" {
		t.Errorf("Stderr = %q", res.Stderr)
	}
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	res, err := NewExecRunner().Run(t.Context(), sh("exit 3"))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if res.Success() {
		t.Error("Success() should be false")
	}
}

func TestRun_DirAndEnv(t *testing.T) {
	dir := t.TempDir()
	cmd := sh(`printf '%s' "$CTG_TEST_VALUE" > marker`)
	cmd.Dir = dir
	cmd.Env = map[string]string{"CTG_TEST_VALUE": "hello world"}

	if _, err := NewExecRunner().Run(t.Context(), cmd); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "marker"))
	if err != nil {
		t.Fatalf("marker not written in Dir: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("env value = %q", data)
	}
}

func TestRun_Timeout(t *testing.T) {
	cmd := sh("exec sleep 5")
	cmd.Timeout = 100 * time.Millisecond

	start := time.Now()
	_, err := NewExecRunner().Run(t.Context(), cmd)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("timeout took %s", elapsed)
	}
}

func TestRun_ParentCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	cmd := sh("exec sleep 5")
	cmd.Timeout = time.Minute
	_, err := NewExecRunner().Run(ctx, cmd)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("parent cancellation must not be reported as a timeout")
	}
}

func TestRun_NotFound(t *testing.T) {
	_, err := NewExecRunner().Run(t.Context(), Command{Path: "ctgrun-no-such-binary"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	_, err = NewExecRunner().Run(t.Context(), Command{Path: filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("absolute path: err = %v, want ErrNotFound", err)
	}
}

func TestRun_EmptyPath(t *testing.T) {
	if _, err := NewExecRunner().Run(t.Context(), Command{}); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestCommand_String(t *testing.T) {
	c := Command{Path: "ctgsolve", Args: []string{"run.ctg"}}
	if c.String() != "ctgsolve run.ctg" {
		t.Errorf("String() = %q", c.String())
	}
}

func TestDeduplicateEnv(t *testing.T) {
	got := deduplicateEnv([]string{"A=1", "B=2", "A=3"})
	want := []string{"B=2", "A=3"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("deduplicateEnv = %v, want %v", got, want)
	}
}

func TestMergeEnv_OverridesWin(t *testing.T) {
	got := mergeEnv([]string{"PATH=/bin", "PLOT_HOME=/old"}, map[string]string{"PLOT_HOME": "/new", "CLASSPATH": "x"})
	joined := strings.Join(got, ",")
	if strings.Contains(joined, "PLOT_HOME=/old") {
		t.Errorf("inherited value not shadowed: %v", got)
	}
	for _, want := range []string{"PATH=/bin", "PLOT_HOME=/new", "CLASSPATH=x"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing %s in %v", want, got)
		}
	}
}
