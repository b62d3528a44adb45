package conversion_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/conversion"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/model"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/nn"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/services"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/testsupport"
)

func checkpointRun(t *testing.T, dir string) *pipeline.Run {
	t.Helper()
	net := nn.NewNetwork(dataset.NumFeatures, []int{16, 8}, 0.3, 42)
	path := filepath.Join(dir, "checkpoint.json")
	if err := nn.SaveCheckpoint(net, path); err != nil {
		t.Fatalf("save checkpoint: %v", err)
	}
	return &pipeline.Run{ID: 1, ModelVersion: "20260101120000", Status: pipeline.StatusConverting, CheckpointFile: path}
}

func TestConverterProducesValidArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	run := checkpointRun(t, cfg.Paths.ArtifactsDir)

	converter := conversion.NewConverter(cfg, logging.NewNop())
	ctx := context.Background()
	if err := converter.Prepare(ctx, run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := converter.Execute(ctx, run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.ModelFile == "" {
		t.Fatal("run has no model file")
	}
	artifact, err := model.Load(run.ModelFile)
	if err != nil {
		t.Fatalf("load artifact: %v", err)
	}

	// The folded artifact must reproduce checkpoint inference exactly.
	net, err := nn.LoadCheckpoint(run.CheckpointFile)
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	row := make([]float64, dataset.NumFeatures)
	for i := range row {
		row[i] = 0.1 * float64(i)
	}
	want, err := net.Predict(row)
	if err != nil {
		t.Fatalf("network predict: %v", err)
	}
	got, err := artifact.Predict(row)
	if err != nil {
		t.Fatalf("artifact predict: %v", err)
	}
	if math.Abs(want-got) > 1e-9 {
		t.Errorf("artifact predicts %v, checkpoint %v", got, want)
	}
}

func TestConverterPrepareRequiresCheckpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	converter := conversion.NewConverter(cfg, logging.NewNop())
	ctx := context.Background()

	if err := converter.Prepare(ctx, &pipeline.Run{}); err == nil {
		t.Error("expected error for missing checkpoint path")
	}

	run := &pipeline.Run{CheckpointFile: filepath.Join(cfg.Paths.ArtifactsDir, "missing.json")}
	err := converter.Prepare(ctx, run)
	if err == nil {
		t.Fatal("expected error for nonexistent checkpoint")
	}
	if !errors.Is(err, services.ErrNotFound) {
		t.Errorf("error %v should mark not found", err)
	}
}

func TestConverterRejectsCorruptCheckpoint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(cfg.Paths.ArtifactsDir, "checkpoint.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	run := &pipeline.Run{ModelVersion: "v", CheckpointFile: path}

	converter := conversion.NewConverter(cfg, logging.NewNop())
	err := converter.Execute(context.Background(), run)
	if err == nil {
		t.Fatal("expected error for corrupt checkpoint")
	}
	if services.FailureStatus(err) != pipeline.StatusReview {
		t.Errorf("corrupt checkpoint should route to review")
	}
}

func TestConverterHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	converter := conversion.NewConverter(cfg, logging.NewNop())
	if health := converter.HealthCheck(context.Background()); !health.Ready {
		t.Errorf("healthy config reported unhealthy: %s", health.Detail)
	}

	cfg.Paths.ArtifactsDir = ""
	if health := converter.HealthCheck(context.Background()); health.Ready {
		t.Error("missing artifacts directory should be unhealthy")
	}
}
