package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/model"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/nn"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/services"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/stage"
)

// Evaluator scores the candidate artifact on the held-out test split and
// enforces the promotion gates.
type Evaluator struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewEvaluator constructs the evaluation handler.
func NewEvaluator(cfg *config.Config, logger *slog.Logger) *Evaluator {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "evaluator"))
	}
	return &Evaluator{cfg: cfg, logger: stageLogger}
}

// Result is the evaluation summary persisted on the run and next to the
// artifacts.
type Result struct {
	ModelVersion string     `json:"model_version"`
	EvaluatedAt  time.Time  `json:"evaluated_at"`
	TestSamples  int        `json:"test_samples"`
	Metrics      nn.Metrics `json:"metrics"`
	MinAccuracy  float64    `json:"min_accuracy"`
	MinAUC       float64    `json:"min_auc"`
	Passed       bool       `json:"passed"`
}

func (e *Evaluator) Prepare(ctx context.Context, run *pipeline.Run) error {
	for _, check := range []struct {
		path, what string
	}{
		{run.QuantizedFile, "quantized model file"},
		{run.ModelFile, "model file"},
		{run.TestDataFile, "test data file"},
		{run.ScalerFile, "scaler file"},
	} {
		if strings.TrimSpace(check.path) == "" {
			return services.Wrap(services.ErrValidation, "evaluation", "prepare", "run has no "+check.what, nil)
		}
		if _, err := os.Stat(check.path); err != nil {
			return services.Wrap(services.ErrNotFound, "evaluation", "prepare", check.path, err)
		}
	}
	run.SetProgress("Evaluating", "Loading test data", 0)
	return nil
}

func (e *Evaluator) Execute(ctx context.Context, run *pipeline.Run) error {
	logger := logging.WithContext(ctx, e.logger)

	ds, err := dataset.LoadCSV(run.TestDataFile)
	if err != nil {
		return services.Wrap(services.ErrValidation, "evaluation", "load test data", run.TestDataFile, err)
	}
	scaler, err := dataset.LoadScaler(run.ScalerFile)
	if err != nil {
		return services.Wrap(services.ErrValidation, "evaluation", "load scaler", run.ScalerFile, err)
	}
	rows, err := scaler.TransformAll(ds)
	if err != nil {
		return services.Wrap(services.ErrValidation, "evaluation", "standardize test data", "", err)
	}

	run.SetProgress("Evaluating", fmt.Sprintf("Scoring %d test samples", len(rows)), 40)
	scorer, err := e.candidate(run)
	if err != nil {
		return err
	}
	probs, err := scorer.PredictBatch(rows)
	if err != nil {
		return services.Wrap(services.ErrTransient, "evaluation", "score test data", "", err)
	}
	metrics := nn.ComputeMetrics(probs, ds.Y)

	result := Result{
		ModelVersion: run.ModelVersion,
		EvaluatedAt:  time.Now().UTC(),
		TestSamples:  len(rows),
		Metrics:      metrics,
		MinAccuracy:  e.cfg.Evaluation.MinAccuracy,
		MinAUC:       e.cfg.Evaluation.MinAUC,
		Passed:       metrics.Accuracy >= e.cfg.Evaluation.MinAccuracy && metrics.AUC >= e.cfg.Evaluation.MinAUC,
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return services.Wrap(services.ErrTransient, "evaluation", "marshal result", "", err)
	}
	evalPath := filepath.Join(filepath.Dir(run.ModelFile), "evaluation.json")
	if err := os.WriteFile(evalPath, resultJSON, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "evaluation", "save result", evalPath, err)
	}
	run.EvalJSON = string(resultJSON)

	logger.Info("candidate evaluated",
		logging.Float64("accuracy", metrics.Accuracy),
		logging.Float64("auc", metrics.AUC),
		logging.Float64("f1", metrics.F1),
		logging.Bool("passed", result.Passed))

	if !result.Passed {
		return services.Wrap(services.ErrGate, "evaluation", "promotion gates",
			fmt.Sprintf("accuracy %.4f (min %.2f), AUC %.4f (min %.2f)",
				metrics.Accuracy, e.cfg.Evaluation.MinAccuracy, metrics.AUC, e.cfg.Evaluation.MinAUC), nil)
	}

	run.SetProgressComplete("Evaluating", "Promotion gates passed")
	return nil
}

// HealthCheck verifies the gate thresholds are configured.
func (e *Evaluator) HealthCheck(ctx context.Context) stage.Health {
	const name = "evaluator"
	if e.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if e.cfg.Evaluation.MinAccuracy <= 0 || e.cfg.Evaluation.MinAccuracy >= 1 {
		return stage.Unhealthy(name, "minimum accuracy must be in (0, 1)")
	}
	if e.cfg.Evaluation.MinAUC <= 0 || e.cfg.Evaluation.MinAUC >= 1 {
		return stage.Unhealthy(name, "minimum AUC must be in (0, 1)")
	}
	return stage.Healthy(name)
}

// candidate picks the artifact evaluation gates on: the quantized model when
// serving uses it, otherwise the float model.
func (e *Evaluator) candidate(run *pipeline.Run) (model.Predictor, error) {
	if e.cfg.Serving.UseQuantized {
		q, err := model.LoadQuantized(run.QuantizedFile)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "evaluation", "load quantized model", run.QuantizedFile, err)
		}
		return q, nil
	}
	m, err := model.Load(run.ModelFile)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "evaluation", "load model", run.ModelFile, err)
	}
	return m, nil
}
