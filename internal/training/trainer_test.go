package training_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/services"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/testsupport"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/training"
)

func TestTrainerProducesArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "20260101120000", pipeline.TriggerManual)

	trainer := training.NewTrainer(cfg, store, logging.NewNop())
	ctx := context.Background()
	if err := trainer.Prepare(ctx, run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := trainer.Execute(ctx, run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	for _, path := range []string{run.CheckpointFile, run.ScalerFile, run.TestDataFile} {
		if path == "" {
			t.Fatal("run artifact path not set")
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("artifact missing: %v", err)
		}
	}
	if !strings.Contains(run.MetricsJSON, "best_epoch") {
		t.Errorf("metrics JSON missing training summary: %s", run.MetricsJSON)
	}
	if run.ProgressPercent != 100 {
		t.Errorf("progress percent %v, want 100", run.ProgressPercent)
	}

	// Synthetic reference data lands at the configured path on first run.
	if _, err := os.Stat(cfg.Monitoring.ReferenceDataPath); err != nil {
		t.Errorf("reference dataset not generated: %v", err)
	}
}

func TestTrainerReusesExistingData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ds := testsupport.SmallDataset(t, 300)
	testsupport.WriteDataset(t, ds, cfg.Monitoring.ReferenceDataPath)

	run := testsupport.NewRun(t, store, "20260101130000", pipeline.TriggerManual)
	trainer := training.NewTrainer(cfg, store, logging.NewNop())
	ctx := context.Background()
	if err := trainer.Prepare(ctx, run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := trainer.Execute(ctx, run); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if run.DataPath != cfg.Monitoring.ReferenceDataPath {
		t.Errorf("data path %q, want %q", run.DataPath, cfg.Monitoring.ReferenceDataPath)
	}
}

func TestTrainerRejectsTooFewSamples(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Training.MinSamples = 1000
	store := testsupport.MustOpenStore(t, cfg)
	ds := testsupport.SmallDataset(t, 100)
	testsupport.WriteDataset(t, ds, cfg.Monitoring.ReferenceDataPath)

	run := testsupport.NewRun(t, store, "20260101140000", pipeline.TriggerManual)
	trainer := training.NewTrainer(cfg, store, logging.NewNop())
	ctx := context.Background()
	if err := trainer.Prepare(ctx, run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	err := trainer.Execute(ctx, run)
	if err == nil {
		t.Fatal("expected validation error for undersized dataset")
	}
	if !errors.Is(err, services.ErrValidation) {
		t.Errorf("error %v is not a validation error", err)
	}
	if services.FailureStatus(err) != pipeline.StatusReview {
		t.Errorf("undersized dataset should route to review")
	}
}

func TestTrainerPrepareRequiresModelVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	trainer := training.NewTrainer(cfg, nil, logging.NewNop())
	run := &pipeline.Run{}
	if err := trainer.Prepare(context.Background(), run); err == nil {
		t.Error("expected error for missing model version")
	}
}

func TestTrainerHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	trainer := training.NewTrainer(cfg, nil, logging.NewNop())
	health := trainer.HealthCheck(context.Background())
	if !health.Ready {
		t.Errorf("healthy config reported unhealthy: %s", health.Detail)
	}

	cfg.Training.Epochs = 0
	if health := trainer.HealthCheck(context.Background()); health.Ready {
		t.Error("zero epochs should be unhealthy")
	}
}

func TestTrainerTestSplitKeepsRawScale(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	run := testsupport.NewRun(t, store, "20260101150000", pipeline.TriggerManual)

	trainer := training.NewTrainer(cfg, store, logging.NewNop())
	ctx := context.Background()
	if err := trainer.Prepare(ctx, run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := trainer.Execute(ctx, run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	testSet, err := dataset.LoadCSV(run.TestDataFile)
	if err != nil {
		t.Fatalf("load test split: %v", err)
	}
	ages, err := testSet.Column("age")
	if err != nil {
		t.Fatalf("age column: %v", err)
	}
	// Raw ages sit in adult ranges; standardized values would hover near 0.
	maxAge := 0.0
	for _, v := range ages {
		if v > maxAge {
			maxAge = v
		}
	}
	if maxAge < 18 {
		t.Errorf("test split looks standardized, max age %v", maxAge)
	}
}
