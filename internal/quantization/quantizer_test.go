package quantization_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/model"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/nn"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/quantization"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/services"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/testsupport"
)

// convertedRun assembles the artifacts a quantization run expects: a float
// model, a scaler, and a raw test split.
func convertedRun(t *testing.T, dir string) *pipeline.Run {
	t.Helper()

	ds := testsupport.SmallDataset(t, 300)
	split, err := dataset.StratifiedSplit(ds, 0.15, 0.15, 42)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	scaler, err := dataset.FitScaler(split.Train)
	if err != nil {
		t.Fatalf("fit scaler: %v", err)
	}
	scalerPath := filepath.Join(dir, "scaler.json")
	if err := scaler.Save(scalerPath); err != nil {
		t.Fatalf("save scaler: %v", err)
	}
	testPath := filepath.Join(dir, "test_data.csv")
	if err := dataset.SaveCSV(split.Test, testPath); err != nil {
		t.Fatalf("save test split: %v", err)
	}

	net := nn.NewNetwork(dataset.NumFeatures, []int{16, 8}, 0.3, 42)
	artifact, err := model.FromNetwork(net, "20260101120000", dataset.FeatureNames)
	if err != nil {
		t.Fatalf("convert network: %v", err)
	}
	modelPath := filepath.Join(dir, "credit_scoring_model.json")
	if err := artifact.Save(modelPath); err != nil {
		t.Fatalf("save model: %v", err)
	}

	return &pipeline.Run{
		ID:           1,
		ModelVersion: "20260101120000",
		Status:       pipeline.StatusQuantizing,
		ModelFile:    modelPath,
		ScalerFile:   scalerPath,
		TestDataFile: testPath,
	}
}

func TestQuantizerProducesArtifactAndReport(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	run := convertedRun(t, cfg.Paths.ArtifactsDir)

	quantizer := quantization.NewQuantizer(cfg, logging.NewNop())
	ctx := context.Background()
	if err := quantizer.Prepare(ctx, run); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := quantizer.Execute(ctx, run); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if run.QuantizedFile == "" {
		t.Fatal("run has no quantized file")
	}
	quantized, err := model.LoadQuantized(run.QuantizedFile)
	if err != nil {
		t.Fatalf("load quantized model: %v", err)
	}
	if quantized.ModelVersion != run.ModelVersion {
		t.Errorf("quantized model version %q, want %q", quantized.ModelVersion, run.ModelVersion)
	}

	reportPath := filepath.Join(filepath.Dir(run.ModelFile), "optimization_report.json")
	if _, err := os.Stat(reportPath); err != nil {
		t.Errorf("optimization report missing: %v", err)
	}
}

func TestQuantizerGateRejectsDivergence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	// An impossible bar guarantees the agreement gate trips.
	cfg.Quantization.MinCorrelation = 1.0000001
	run := convertedRun(t, cfg.Paths.ArtifactsDir)

	quantizer := quantization.NewQuantizer(cfg, logging.NewNop())
	err := quantizer.Execute(context.Background(), run)
	if err == nil {
		t.Skip("quantized predictions matched float predictions exactly")
	}
	if status := services.FailureStatus(err); status != pipeline.StatusReview {
		t.Errorf("gate rejection routed to %s, want review", status)
	}
}

func TestQuantizerPrepareRequiresArtifacts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	quantizer := quantization.NewQuantizer(cfg, logging.NewNop())
	if err := quantizer.Prepare(context.Background(), &pipeline.Run{}); err == nil {
		t.Error("expected error for missing model file")
	}
}

func TestQuantizerHealthCheck(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	quantizer := quantization.NewQuantizer(cfg, logging.NewNop())
	if health := quantizer.HealthCheck(context.Background()); !health.Ready {
		t.Errorf("healthy config reported unhealthy: %s", health.Detail)
	}

	cfg.Quantization.MinCorrelation = 0
	if health := quantizer.HealthCheck(context.Background()); health.Ready {
		t.Error("zero correlation threshold should be unhealthy")
	}
}
