package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"fatal", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := parseLevel(tc.input); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func readLogFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(data)
}

func TestJSONLoggerOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scorecard.log")
	logger, err := New(Options{Level: "info", Format: "json", OutputPaths: []string{path}, ErrorOutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("model promoted",
		String(FieldComponent, "publisher"),
		String(FieldModelVersion, "v20260824-120000"),
		Int64(FieldRunID, 12),
	)

	var record map[string]any
	line := strings.TrimSpace(readLogFile(t, path))
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, line)
	}
	if record["msg"] != "model promoted" {
		t.Fatalf("unexpected msg: %v", record["msg"])
	}
	if record["level"] != "info" {
		t.Fatalf("level should be lowercased: %v", record["level"])
	}
	if record[FieldModelVersion] != "v20260824-120000" {
		t.Fatalf("missing model version attr: %v", record)
	}
	ts, ok := record["ts"].(string)
	if !ok {
		t.Fatalf("missing ts field: %v", record)
	}
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Fatalf("ts not RFC3339: %v", err)
	}
}

func TestConsoleLoggerOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scorecard.log")
	logger, err := New(Options{Level: "info", Format: "console", OutputPaths: []string{path}, ErrorOutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Warn("drift share above threshold",
		String(FieldComponent, "drift-monitor"),
		Float64("share", 0.42),
		String("detail", "needs quoting here"),
	)
	logger.Debug("should be filtered at info level")

	out := readLogFile(t, path)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line (debug filtered), got %d: %q", len(lines), out)
	}
	line := lines[0]
	if !strings.Contains(line, "WARN") {
		t.Fatalf("missing level label: %q", line)
	}
	if !strings.Contains(line, "drift-monitor: drift share above threshold") {
		t.Fatalf("component should prefix the message: %q", line)
	}
	if !strings.Contains(line, "share=0.42") {
		t.Fatalf("missing key=value attr: %q", line)
	}
	if !strings.Contains(line, `detail="needs quoting here"`) {
		t.Fatalf("values with spaces should be quoted: %q", line)
	}
}

func TestConsoleHandlerGroupsAndWith(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scorecard.log")
	logger, err := New(Options{Level: "debug", Format: "console", OutputPaths: []string{path}, ErrorOutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.With(String("run_id", "7")).WithGroup("gate").Info("evaluated", Float64("auc", 0.83))

	out := readLogFile(t, path)
	if !strings.Contains(out, "run_id=7") {
		t.Fatalf("With attrs lost: %q", out)
	}
	if !strings.Contains(out, "gate.auc=0.83") {
		t.Fatalf("group prefix lost: %q", out)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewNop()
	// Must not panic and must report all levels disabled.
	logger.Error("ignored", Error(nil))
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "scorecard-20250101T000000Z.log")
	fresh := filepath.Join(dir, "scorecard-20260824T000000Z.log")
	excluded := filepath.Join(dir, "scorecard-20250102T000000Z.log")
	unrelated := filepath.Join(dir, "notes.txt")

	for _, path := range []string{old, fresh, excluded, unrelated} {
		if err := os.WriteFile(path, []byte("log"), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	ancient := time.Now().AddDate(0, 0, -120)
	for _, path := range []string{old, excluded, unrelated} {
		if err := os.Chtimes(path, ancient, ancient); err != nil {
			t.Fatalf("chtimes %s: %v", path, err)
		}
	}

	CleanupOldLogs(NewNop(), 60, RetentionTarget{
		Dir:     dir,
		Pattern: "scorecard-*.log",
		Exclude: []string{excluded},
	})

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatal("expired log should be removed")
	}
	for name, path := range map[string]string{"fresh": fresh, "excluded": excluded, "unrelated": unrelated} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("%s file should survive: %v", name, err)
		}
	}
}

func TestCleanupOldLogsDisabled(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "scorecard-20200101T000000Z.log")
	if err := os.WriteFile(old, []byte("log"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ancient := time.Now().AddDate(0, 0, -1000)
	if err := os.Chtimes(old, ancient, ancient); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	CleanupOldLogs(NewNop(), 0, RetentionTarget{Dir: dir, Pattern: "scorecard-*.log"})
	if _, err := os.Stat(old); err != nil {
		t.Fatal("retention of 0 days must not prune anything")
	}
}
