package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderTableCountPreset(t *testing.T) {
	out := renderTable(countColumns("Runs"), [][]string{
		{"pending", "2"},
		{"failed"},
	})
	for _, want := range []string{"Runs", "Count", "pending", "2", "failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<nil>") {
		t.Errorf("short row should pad with empty cells:\n%s", out)
	}
	if renderTable(nil, nil) != "" {
		t.Error("empty column set should render nothing")
	}
}

func TestRenderTableRunListPreset(t *testing.T) {
	out := renderTable(runListColumns, [][]string{
		{"7", "20260101120000", "manual", "completed", "100%", "2026-01-01 12:00:00"},
	})
	for _, want := range []string{"ID", "Version", "Trigger", "Status", "Progress", "Updated", "20260101120000"} {
		if !strings.Contains(out, want) {
			t.Errorf("run table missing %q:\n%s", want, out)
		}
	}
}

func TestStatusPrinterPlainOutput(t *testing.T) {
	var buf bytes.Buffer
	printer := &statusPrinter{out: &buf}
	printer.section("Daemon")
	printer.line("Workflow running", statusOK, "yes")
	printer.line("Last error", statusError, "boom")
	printer.line("PID", statusInfo, "")

	out := buf.String()
	for _, want := range []string{"== Daemon ==", "[OK] yes", "[ERROR] boom", "[INFO]"} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Errorf("non-terminal writer should not receive ANSI codes:\n%s", out)
	}
}

func TestStatusPrinterColorizesKinds(t *testing.T) {
	var buf bytes.Buffer
	printer := &statusPrinter{out: &buf, colorize: true}
	printer.line("Database", statusWarn, "integrity check pending")
	if !strings.Contains(buf.String(), ansiYellow) {
		t.Errorf("warn line should be yellow:\n%q", buf.String())
	}
}
