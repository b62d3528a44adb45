package training

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"log/slog"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/nn"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/services"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/stage"
)

// Trainer manages data preparation and network training for a run.
type Trainer struct {
	store  *pipeline.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewTrainer constructs the training handler.
func NewTrainer(cfg *config.Config, store *pipeline.Store, logger *slog.Logger) *Trainer {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "trainer"))
	}
	return &Trainer{store: store, cfg: cfg, logger: stageLogger}
}

// TrainingMetrics is the training summary persisted next to the checkpoint.
type TrainingMetrics struct {
	ModelVersion   string     `json:"model_version"`
	Samples        int        `json:"samples"`
	TrainSamples   int        `json:"train_samples"`
	ValSamples     int        `json:"val_samples"`
	TestSamples    int        `json:"test_samples"`
	PositiveRate   float64    `json:"positive_rate"`
	Epochs         int        `json:"epochs"`
	BestEpoch      int        `json:"best_epoch"`
	BestValLoss    float64    `json:"best_val_loss"`
	Validation     nn.Metrics `json:"validation"`
	TrainLossFirst float64    `json:"train_loss_first"`
	TrainLossLast  float64    `json:"train_loss_last"`
}

func (t *Trainer) Prepare(ctx context.Context, run *pipeline.Run) error {
	logger := logging.WithContext(ctx, t.logger)
	if run.ProgressStage == "" {
		run.InitProgress("Training", "Preparing training data")
	}
	if strings.TrimSpace(run.ModelVersion) == "" {
		return services.Wrap(services.ErrValidation, "training", "prepare", "run has no model version", nil)
	}
	if err := os.MkdirAll(t.runDir(run), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "training", "prepare", "create artifacts directory", err)
	}
	if strings.TrimSpace(run.DataPath) == "" {
		run.DataPath = t.cfg.Monitoring.ReferenceDataPath
	}
	logger.Info("training prepared",
		logging.String("data_path", run.DataPath),
		logging.String("artifacts_dir", t.runDir(run)))
	return nil
}

func (t *Trainer) Execute(ctx context.Context, run *pipeline.Run) error {
	logger := logging.WithContext(ctx, t.logger)

	ds, err := t.loadOrGenerate(run, logger)
	if err != nil {
		return err
	}
	if err := ds.Validate(t.cfg.Training.MinSamples); err != nil {
		return services.Wrap(services.ErrValidation, "training", "validate dataset", run.DataPath, err)
	}
	t.saveProgress(ctx, run, "Training", "Splitting and standardizing", 10)

	split, err := dataset.StratifiedSplit(ds, t.cfg.Training.ValFraction, t.cfg.Training.TestFraction, uint64(t.cfg.Training.Seed))
	if err != nil {
		return services.Wrap(services.ErrValidation, "training", "split dataset", "", err)
	}
	scaler, err := dataset.FitScaler(split.Train)
	if err != nil {
		return services.Wrap(services.ErrTransient, "training", "fit scaler", "", err)
	}
	trainX, err := scaler.TransformAll(split.Train)
	if err != nil {
		return services.Wrap(services.ErrTransient, "training", "standardize training split", "", err)
	}
	valX, err := scaler.TransformAll(split.Val)
	if err != nil {
		return services.Wrap(services.ErrTransient, "training", "standardize validation split", "", err)
	}

	t.saveProgress(ctx, run, "Training", fmt.Sprintf("Training on %d samples", split.Train.Len()), 20)

	net := nn.NewNetwork(dataset.NumFeatures, t.cfg.Training.HiddenSizes, t.cfg.Training.Dropout, uint64(t.cfg.Training.Seed))
	trainCfg := nn.TrainConfig{
		Epochs:       t.cfg.Training.Epochs,
		BatchSize:    t.cfg.Training.BatchSize,
		LearningRate: t.cfg.Training.LearningRate,
		Seed:         uint64(t.cfg.Training.Seed),
	}
	best, history, err := nn.Train(ctx, net, trainX, split.Train.Y, valX, split.Val.Y, trainCfg, logger)
	if err != nil {
		return services.Wrap(services.ErrTransient, "training", "train network", "", err)
	}

	t.saveProgress(ctx, run, "Training", "Saving artifacts", 90)

	dir := t.runDir(run)
	checkpointPath := filepath.Join(dir, "checkpoint.json")
	if err := nn.SaveCheckpoint(best, checkpointPath); err != nil {
		return services.Wrap(services.ErrTransient, "training", "save checkpoint", checkpointPath, err)
	}
	scalerPath := filepath.Join(dir, "scaler.json")
	if err := scaler.Save(scalerPath); err != nil {
		return services.Wrap(services.ErrTransient, "training", "save scaler", scalerPath, err)
	}
	// Test rows stay raw; evaluation re-applies the persisted scaler.
	testPath := filepath.Join(dir, "test_data.csv")
	if err := dataset.SaveCSV(split.Test, testPath); err != nil {
		return services.Wrap(services.ErrTransient, "training", "save test split", testPath, err)
	}

	valProbs, err := best.PredictBatch(valX)
	if err != nil {
		return services.Wrap(services.ErrTransient, "training", "score validation split", "", err)
	}
	metrics := TrainingMetrics{
		ModelVersion:   run.ModelVersion,
		Samples:        ds.Len(),
		TrainSamples:   split.Train.Len(),
		ValSamples:     split.Val.Len(),
		TestSamples:    split.Test.Len(),
		PositiveRate:   ds.PositiveRate(),
		Epochs:         len(history.TrainLoss),
		BestEpoch:      history.BestEpoch,
		BestValLoss:    history.BestValLoss,
		Validation:     nn.ComputeMetrics(valProbs, split.Val.Y),
		TrainLossFirst: history.TrainLoss[0],
		TrainLossLast:  history.TrainLoss[len(history.TrainLoss)-1],
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return services.Wrap(services.ErrTransient, "training", "marshal metrics", "", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "training_metrics.json"), metricsJSON, 0o644); err != nil {
		return services.Wrap(services.ErrTransient, "training", "save metrics", "", err)
	}

	run.CheckpointFile = checkpointPath
	run.ScalerFile = scalerPath
	run.TestDataFile = testPath
	run.MetricsJSON = string(metricsJSON)
	run.SetProgressComplete("Training", "Training complete")

	logger.Info("training finished",
		logging.Int("best_epoch", history.BestEpoch),
		logging.Float64("best_val_loss", history.BestValLoss),
		logging.Float64("val_accuracy", metrics.Validation.Accuracy),
		logging.Float64("val_auc", metrics.Validation.AUC))
	return nil
}

// HealthCheck verifies the data and artifact directories are usable.
func (t *Trainer) HealthCheck(ctx context.Context) stage.Health {
	const name = "trainer"
	if t.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(t.cfg.Paths.ArtifactsDir) == "" {
		return stage.Unhealthy(name, "artifacts directory not configured")
	}
	if err := os.MkdirAll(t.cfg.Paths.ArtifactsDir, 0o755); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("artifacts directory not writable: %v", err))
	}
	if t.cfg.Training.Epochs <= 0 || t.cfg.Training.BatchSize <= 0 {
		return stage.Unhealthy(name, "training parameters not configured")
	}
	return stage.Healthy(name)
}

// loadOrGenerate loads the run's dataset, generating the synthetic reference
// set on first use when no data file exists yet.
func (t *Trainer) loadOrGenerate(run *pipeline.Run, logger *slog.Logger) (*dataset.Dataset, error) {
	path := strings.TrimSpace(run.DataPath)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "training", "load dataset", "no data path configured", nil)
	}
	if _, err := os.Stat(path); err == nil {
		ds, err := dataset.LoadCSV(path)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "training", "load dataset", path, err)
		}
		logger.Info("loaded training data", logging.String("path", path), logging.Int("rows", ds.Len()))
		return ds, nil
	} else if !os.IsNotExist(err) {
		return nil, services.Wrap(services.ErrTransient, "training", "stat dataset", path, err)
	}

	params := dataset.ReferenceParams(t.cfg.Training.SyntheticSamples)
	ds := dataset.Generate(params)
	if err := dataset.SaveCSV(ds, path); err != nil {
		return nil, services.Wrap(services.ErrTransient, "training", "save generated dataset", path, err)
	}
	logger.Info("generated synthetic training data",
		logging.String("path", path),
		logging.Int("rows", ds.Len()))
	return ds, nil
}

func (t *Trainer) runDir(run *pipeline.Run) string {
	return filepath.Join(t.cfg.Paths.ArtifactsDir, run.ModelVersion)
}

// saveProgress persists intermediate progress without failing the stage when
// the write does not land.
func (t *Trainer) saveProgress(ctx context.Context, run *pipeline.Run, stageName, message string, percent float64) {
	run.SetProgress(stageName, message, percent)
	if t.store == nil {
		return
	}
	if err := t.store.Update(ctx, run); err != nil {
		logging.WithContext(ctx, t.logger).Warn("failed to persist progress", logging.Error(err))
	}
}
