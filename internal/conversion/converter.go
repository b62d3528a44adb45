package conversion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"golang.org/x/exp/rand"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/model"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/nn"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/services"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/stage"
)

// Folding is exact algebra, so the saved artifact must reproduce the
// checkpoint's probabilities up to float rounding on a fixed sample batch.
const (
	verifySamples   = 100
	verifyTolerance = 1e-5
)

// Converter folds a trained checkpoint into the portable inference artifact.
type Converter struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewConverter constructs the conversion handler.
func NewConverter(cfg *config.Config, logger *slog.Logger) *Converter {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "converter"))
	}
	return &Converter{cfg: cfg, logger: stageLogger}
}

func (c *Converter) Prepare(ctx context.Context, run *pipeline.Run) error {
	if strings.TrimSpace(run.CheckpointFile) == "" {
		return services.Wrap(services.ErrValidation, "conversion", "prepare", "run has no checkpoint file", nil)
	}
	if _, err := os.Stat(run.CheckpointFile); err != nil {
		return services.Wrap(services.ErrNotFound, "conversion", "prepare", run.CheckpointFile, err)
	}
	run.SetProgress("Converting", "Loading checkpoint", 0)
	return nil
}

func (c *Converter) Execute(ctx context.Context, run *pipeline.Run) error {
	logger := logging.WithContext(ctx, c.logger)

	net, err := nn.LoadCheckpoint(run.CheckpointFile)
	if err != nil {
		return services.Wrap(services.ErrValidation, "conversion", "load checkpoint", run.CheckpointFile, err)
	}

	run.SetProgress("Converting", "Folding batch normalization", 40)
	artifact, err := model.FromNetwork(net, run.ModelVersion, dataset.FeatureNames)
	if err != nil {
		return services.Wrap(services.ErrValidation, "conversion", "convert checkpoint", "", err)
	}

	modelPath := filepath.Join(filepath.Dir(run.CheckpointFile), "credit_scoring_model.json")
	if err := artifact.Save(modelPath); err != nil {
		return services.Wrap(services.ErrTransient, "conversion", "save model", modelPath, err)
	}

	// Reload to confirm what lands on disk passes structural validation.
	saved, err := model.Load(modelPath)
	if err != nil {
		return services.Wrap(services.ErrValidation, "conversion", "verify saved model", modelPath, err)
	}

	run.SetProgress("Converting", "Verifying numeric equivalence", 70)
	maxDiff, err := model.ConversionDifference(net, saved, verificationRows(net.InputSize))
	if err != nil {
		return services.Wrap(services.ErrValidation, "conversion", "verify conversion", modelPath, err)
	}
	if maxDiff > verifyTolerance {
		detail := fmt.Sprintf("max probability difference %.3g exceeds %.0g", maxDiff, verifyTolerance)
		return services.Wrap(services.ErrValidation, "conversion", "verify conversion", detail, nil)
	}

	run.ModelFile = modelPath
	run.SetProgressComplete("Converting", "Conversion complete")
	logger.Info("checkpoint converted",
		logging.String("model_file", modelPath),
		logging.Int("parameters", artifact.ParameterCount()),
		logging.Int("layers", len(artifact.Layers)),
		logging.Float64("max_probability_diff", maxDiff))
	return nil
}

// verificationRows draws a deterministic standard-normal batch in the
// standardized feature space.
func verificationRows(inputSize int) [][]float64 {
	rng := rand.New(rand.NewSource(42))
	rows := make([][]float64, verifySamples)
	for i := range rows {
		row := make([]float64, inputSize)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		rows[i] = row
	}
	return rows
}

// HealthCheck verifies the conversion stage can write artifacts.
func (c *Converter) HealthCheck(ctx context.Context) stage.Health {
	const name = "converter"
	if c.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(c.cfg.Paths.ArtifactsDir) == "" {
		return stage.Unhealthy(name, "artifacts directory not configured")
	}
	if err := os.MkdirAll(c.cfg.Paths.ArtifactsDir, 0o755); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("artifacts directory not writable: %v", err))
	}
	return stage.Healthy(name)
}
