package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/gridops-tools/ctgrun/types"
)

func TestLogger_RunContextFields(t *testing.T) {
	var buf bytes.Buffer
	meta := &types.RunMeta{RunID: "run-1", CaseName: "3bus"}
	l := NewLoggerWithWriter(meta, &buf, zapcore.DebugLevel)

	l.Info("stage started", map[string]any{"stage": "snapshot"})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v (%q)", err, buf.String())
	}
	if entry["run_id"] != "run-1" {
		t.Errorf("run_id = %v", entry["run_id"])
	}
	if entry["case"] != "3bus" {
		t.Errorf("case = %v", entry["case"])
	}
	if entry["message"] != "stage started" {
		t.Errorf("message = %v", entry["message"])
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["stage"] != "snapshot" {
		t.Errorf("fields = %v", entry["fields"])
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerWithWriter(nil, &buf, zapcore.WarnLevel)
	l.Info("hidden", nil)
	if buf.Len() != 0 {
		t.Errorf("info should be filtered at warn level, got %q", buf.String())
	}
	l.Warn("shown", nil)
	if buf.Len() == 0 {
		t.Error("warn should be written")
	}
}

func TestLogger_WithOutput(t *testing.T) {
	var buf bytes.Buffer
	NewNop().WithOutput(&buf).Error("boom", map[string]any{"code": 2})
	if !bytes.Contains(buf.Bytes(), []byte(`"boom"`)) {
		t.Errorf("expected message in output, got %q", buf.String())
	}
}

func TestLogger_With(t *testing.T) {
	var buf bytes.Buffer
	base := NewLoggerWithWriter(&types.RunMeta{RunID: "run-2", CaseName: "3bus"}, &buf, zapcore.InfoLevel)
	base.With("stage", "solving").Info("invoking process", nil)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v (%q)", err, buf.String())
	}
	if entry["stage"] != "solving" || entry["run_id"] != "run-2" {
		t.Errorf("entry = %v", entry)
	}

	buf.Reset()
	base.Info("after", nil)
	if bytes.Contains(buf.Bytes(), []byte(`"stage"`)) {
		t.Errorf("With must not modify the parent logger: %q", buf.String())
	}
}
