package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and training parameters small enough for fast test runs.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ArtifactsDir = filepath.Join(base, "artifacts")
	cfg.Paths.RegistryDir = filepath.Join(base, "registry")
	cfg.Paths.StateDir = filepath.Join(base, "state")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ReportsDir = filepath.Join(base, "reports")
	cfg.Monitoring.ReferenceDataPath = filepath.Join(base, "data", "credit_data.csv")
	cfg.Monitoring.CurrentDataPath = filepath.Join(base, "data", "current_data.csv")
	cfg.Serving.Bind = "127.0.0.1:0"
	cfg.Training.Epochs = 5
	cfg.Training.HiddenSizes = []int{16, 8}
	cfg.Training.MinSamples = 50
	cfg.Training.SyntheticSamples = 400
	cfg.Quantization.BenchmarkIterations = 3
	cfg.Workflow.RunPollInterval = 1
	cfg.Workflow.ErrorRetryInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 5

	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithEpochs overrides the training epoch count on the test config.
func WithEpochs(epochs int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Training.Epochs = epochs
	}
}

// WithGates overrides the evaluation promotion gates on the test config.
func WithGates(minAccuracy, minAUC float64) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Evaluation.MinAccuracy = minAccuracy
		cfg.Evaluation.MinAUC = minAUC
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
