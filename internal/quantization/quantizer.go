package quantization

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/model"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/services"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/stage"
)

// Quantizer produces the int8 artifact and gates it on prediction agreement
// with the float model.
type Quantizer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewQuantizer constructs the quantization handler.
func NewQuantizer(cfg *config.Config, logger *slog.Logger) *Quantizer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "quantizer"))
	}
	return &Quantizer{cfg: cfg, logger: stageLogger}
}

func (q *Quantizer) Prepare(ctx context.Context, run *pipeline.Run) error {
	if strings.TrimSpace(run.ModelFile) == "" {
		return services.Wrap(services.ErrValidation, "quantization", "prepare", "run has no model file", nil)
	}
	if _, err := os.Stat(run.ModelFile); err != nil {
		return services.Wrap(services.ErrNotFound, "quantization", "prepare", run.ModelFile, err)
	}
	if strings.TrimSpace(run.TestDataFile) == "" {
		return services.Wrap(services.ErrValidation, "quantization", "prepare", "run has no test data file", nil)
	}
	run.SetProgress("Quantizing", "Loading model", 0)
	return nil
}

func (q *Quantizer) Execute(ctx context.Context, run *pipeline.Run) error {
	logger := logging.WithContext(ctx, q.logger)

	floatModel, err := model.Load(run.ModelFile)
	if err != nil {
		return services.Wrap(services.ErrValidation, "quantization", "load model", run.ModelFile, err)
	}
	rows, err := q.calibrationRows(run)
	if err != nil {
		return err
	}

	run.SetProgress("Quantizing", "Quantizing weights to int8", 30)
	quantized, err := model.Quantize(floatModel)
	if err != nil {
		return services.Wrap(services.ErrTransient, "quantization", "quantize model", "", err)
	}

	corr, err := model.PredictionCorrelation(floatModel, quantized, rows)
	if err != nil {
		return services.Wrap(services.ErrTransient, "quantization", "compare predictions", "", err)
	}
	if corr < q.cfg.Quantization.MinCorrelation {
		return services.Wrap(services.ErrGate, "quantization", "verify predictions",
			fmt.Sprintf("prediction correlation %.6f below minimum %.2f", corr, q.cfg.Quantization.MinCorrelation), nil)
	}

	quantPath := filepath.Join(filepath.Dir(run.ModelFile), "credit_scoring_model_quantized.json")
	if err := quantized.Save(quantPath); err != nil {
		return services.Wrap(services.ErrTransient, "quantization", "save quantized model", quantPath, err)
	}
	run.QuantizedFile = quantPath

	run.SetProgress("Quantizing", "Benchmarking artifacts", 70)
	report, err := q.benchmark(run, floatModel, quantized, rows, corr)
	if err != nil {
		logger.Warn("benchmark failed", logging.Error(err))
	} else {
		reportPath := filepath.Join(filepath.Dir(run.ModelFile), "optimization_report.json")
		if err := report.Save(reportPath); err != nil {
			logger.Warn("failed to save optimization report", logging.Error(err))
		}
	}

	run.SetProgressComplete("Quantizing", "Quantization complete")
	logger.Info("model quantized",
		logging.String("quantized_file", quantPath),
		logging.Float64("prediction_correlation", corr))
	return nil
}

// HealthCheck verifies the quantization thresholds are sane.
func (q *Quantizer) HealthCheck(ctx context.Context) stage.Health {
	const name = "quantizer"
	if q.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if q.cfg.Quantization.MinCorrelation <= 0 || q.cfg.Quantization.MinCorrelation > 1 {
		return stage.Unhealthy(name, "minimum correlation must be in (0, 1]")
	}
	if q.cfg.Quantization.BenchmarkIterations <= 0 {
		return stage.Unhealthy(name, "benchmark iterations not configured")
	}
	return stage.Healthy(name)
}

// calibrationRows loads the held-out test split and standardizes it with the
// run's scaler, giving realistic inputs for the agreement check.
func (q *Quantizer) calibrationRows(run *pipeline.Run) ([][]float64, error) {
	ds, err := dataset.LoadCSV(run.TestDataFile)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "quantization", "load test data", run.TestDataFile, err)
	}
	scaler, err := dataset.LoadScaler(run.ScalerFile)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "quantization", "load scaler", run.ScalerFile, err)
	}
	rows, err := scaler.TransformAll(ds)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "quantization", "standardize test data", "", err)
	}
	return rows, nil
}

func (q *Quantizer) benchmark(run *pipeline.Run, floatModel *model.Model, quantized *model.QuantizedModel, rows [][]float64, corr float64) (*model.OptimizationReport, error) {
	iterations := q.cfg.Quantization.BenchmarkIterations
	floatStats, err := model.Benchmark(floatModel, rows, iterations)
	if err != nil {
		return nil, fmt.Errorf("benchmark float model: %w", err)
	}
	quantStats, err := model.Benchmark(quantized, rows, iterations)
	if err != nil {
		return nil, fmt.Errorf("benchmark quantized model: %w", err)
	}

	report := &model.OptimizationReport{
		ModelVersion: run.ModelVersion,
		CreatedAt:    floatModel.CreatedAt,
		Correlation:  corr,
		FloatLatency: floatStats,
		QuantLatency: quantStats,
	}
	if info, err := os.Stat(run.ModelFile); err == nil {
		report.FloatSizeBytes = info.Size()
	}
	if info, err := os.Stat(run.QuantizedFile); err == nil {
		report.QuantSizeBytes = info.Size()
	}
	if report.QuantSizeBytes > 0 {
		report.CompressionRatio = float64(report.FloatSizeBytes) / float64(report.QuantSizeBytes)
	}
	if quantStats.MeanMs > 0 {
		report.Speedup = floatStats.MeanMs / quantStats.MeanMs
	}
	return report, nil
}
