package pipeline_test

import (
	"testing"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
)

func TestParseStatus(t *testing.T) {
	tests := []struct {
		input string
		want  pipeline.Status
		ok    bool
	}{
		{"pending", pipeline.StatusPending, true},
		{"  Completed ", pipeline.StatusCompleted, true},
		{"REVIEW", pipeline.StatusReview, true},
		{"quantizing", pipeline.StatusQuantizing, true},
		{"", "", false},
		{"bogus", "bogus", false},
	}
	for _, tc := range tests {
		got, ok := pipeline.ParseStatus(tc.input)
		if ok != tc.ok {
			t.Errorf("ParseStatus(%q) ok = %v, want %v", tc.input, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("ParseStatus(%q) = %s, want %s", tc.input, got, tc.want)
		}
	}
}

func TestStatusPredicates(t *testing.T) {
	if !pipeline.IsTerminal(pipeline.StatusCompleted) || !pipeline.IsTerminal(pipeline.StatusFailed) || !pipeline.IsTerminal(pipeline.StatusReview) {
		t.Fatal("completed, failed, and review are terminal")
	}
	if pipeline.IsTerminal(pipeline.StatusTraining) {
		t.Fatal("training is not terminal")
	}
	if !pipeline.IsProcessingStatus(pipeline.StatusPublishing) {
		t.Fatal("publishing is a processing status")
	}
	if pipeline.IsProcessingStatus(pipeline.StatusPending) {
		t.Fatal("pending is not a processing status")
	}
}

func TestRunFailureAndReviewHelpers(t *testing.T) {
	run := &pipeline.Run{Status: pipeline.StatusEvaluating}
	run.SetFailed("evaluation crashed")
	if run.Status != pipeline.StatusFailed {
		t.Fatalf("expected failed status, got %s", run.Status)
	}
	if run.ErrorMessage != "evaluation crashed" || run.ProgressStage != "Failed" {
		t.Fatalf("unexpected failure fields: %+v", run)
	}

	run = &pipeline.Run{Status: pipeline.StatusEvaluating}
	run.SetReview("AUC below promotion gate")
	if run.Status != pipeline.StatusReview || !run.NeedsReview {
		t.Fatalf("expected review routing, got %+v", run)
	}
	if run.ReviewReason != "AUC below promotion gate" {
		t.Fatalf("unexpected review reason: %q", run.ReviewReason)
	}
}

func TestIsUserStopReason(t *testing.T) {
	if !pipeline.IsUserStopReason(pipeline.UserStopReason) {
		t.Fatal("canonical stop reason should match")
	}
	if !pipeline.IsUserStopReason("  stop requested by user ") {
		t.Fatal("match should be case-insensitive and trimmed")
	}
	if pipeline.IsUserStopReason("stopped by operator") {
		t.Fatal("unrelated reason should not match")
	}
}

func TestInitProgressPreservesExistingStage(t *testing.T) {
	run := &pipeline.Run{ProgressStage: "Training", ProgressPercent: 40, ErrorMessage: "old error"}
	run.InitProgress("Conversion", "resuming")
	if run.ProgressStage != "Training" {
		t.Fatalf("existing stage should be preserved, got %q", run.ProgressStage)
	}
	if run.ProgressPercent != 0 || run.ErrorMessage != "" {
		t.Fatalf("progress should reset: %+v", run)
	}

	fresh := &pipeline.Run{}
	fresh.InitProgress("Training", "starting")
	if fresh.ProgressStage != "Training" {
		t.Fatalf("empty stage should adopt the new value, got %q", fresh.ProgressStage)
	}
}

func TestLaneForRun(t *testing.T) {
	if lane := pipeline.LaneForRun(nil); lane != pipeline.LaneForeground {
		t.Fatalf("nil run maps to foreground, got %s", lane)
	}
	background := []pipeline.Status{pipeline.StatusEvaluated, pipeline.StatusPublishing, pipeline.StatusCompleted}
	for _, status := range background {
		if lane := pipeline.LaneForRun(&pipeline.Run{Status: status}); lane != pipeline.LaneBackground {
			t.Errorf("status %s should map to background, got %s", status, lane)
		}
	}
	if lane := pipeline.LaneForRun(&pipeline.Run{Status: pipeline.StatusTraining}); lane != pipeline.LaneForeground {
		t.Fatalf("training maps to foreground, got %s", lane)
	}
}

func TestStageKey(t *testing.T) {
	tests := []struct {
		status pipeline.Status
		want   string
	}{
		{pipeline.StatusPending, "planned"},
		{pipeline.StatusCompleted, "final"},
		{pipeline.StatusTraining, "training"},
		{pipeline.Status(""), ""},
		{pipeline.Status("bogus"), ""},
	}
	for _, tc := range tests {
		if got := tc.status.StageKey(); got != tc.want {
			t.Errorf("StageKey(%q) = %q, want %q", tc.status, got, tc.want)
		}
	}
}
