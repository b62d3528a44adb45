package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	ArtifactsDir string `toml:"artifacts_dir"`
	RegistryDir  string `toml:"registry_dir"`
	StateDir     string `toml:"state_dir"`
	LogDir       string `toml:"log_dir"`
	ReportsDir   string `toml:"reports_dir"`
}

// Training contains hyperparameters for the neural network trainer.
type Training struct {
	Epochs           int       `toml:"epochs"`
	BatchSize        int       `toml:"batch_size"`
	LearningRate     float64   `toml:"learning_rate"`
	HiddenSizes      []int     `toml:"hidden_sizes"`
	Dropout          float64   `toml:"dropout"`
	Seed             int64     `toml:"seed"`
	ValFraction      float64   `toml:"val_fraction"`
	TestFraction     float64   `toml:"test_fraction"`
	MinSamples       int       `toml:"min_samples"`
	SyntheticSamples int       `toml:"synthetic_samples"`
	RiskThresholds   []float64 `toml:"risk_thresholds"`
}

// Quantization contains settings for int8 weight quantization.
type Quantization struct {
	MinCorrelation      float64 `toml:"min_correlation"`
	BenchmarkIterations int     `toml:"benchmark_iterations"`
}

// Evaluation contains promotion gate thresholds.
type Evaluation struct {
	MinAccuracy float64 `toml:"min_accuracy"`
	MinAUC      float64 `toml:"min_auc"`
}

// Publishing contains settings for the promotion step.
type Publishing struct {
	// DeploymentManifest is an optional Kubernetes deployment file whose
	// model-version annotation is stamped on promotion. Empty disables it.
	DeploymentManifest string `toml:"deployment_manifest"`
}

// Serving contains configuration for the prediction HTTP server.
type Serving struct {
	Bind            string `toml:"bind"`
	ReadTimeout     int    `toml:"read_timeout"`
	WriteTimeout    int    `toml:"write_timeout"`
	ShutdownTimeout int    `toml:"shutdown_timeout"`
	MaxBatchSize    int    `toml:"max_batch_size"`
	UseQuantized    bool   `toml:"use_quantized"`
}

// Monitoring contains drift detection thresholds and data locations.
type Monitoring struct {
	KSAlpha           float64 `toml:"ks_alpha"`
	PSIThreshold      float64 `toml:"psi_threshold"`
	RetrainThreshold  float64 `toml:"retrain_threshold"`
	ReferenceDataPath string  `toml:"reference_data_path"`
	CurrentDataPath   string  `toml:"current_data_path"`
}

// Schedule contains configuration for periodic pipeline triggers.
type Schedule struct {
	Enabled            bool `toml:"enabled"`
	RetrainInterval    int  `toml:"retrain_interval_hours"`
	DriftCheckInterval int  `toml:"drift_check_interval_hours"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic          string `toml:"ntfy_topic"`
	RequestTimeout     int    `toml:"request_timeout"`
	Training           bool   `toml:"training"`
	Promotion          bool   `toml:"promotion"`
	Drift              bool   `toml:"drift"`
	Errors             bool   `toml:"errors"`
	DedupWindowSeconds int    `toml:"dedup_window_seconds"`
}

// Workflow contains configuration for daemon timing and intervals.
type Workflow struct {
	RunPollInterval    int `toml:"run_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	HeartbeatTimeout   int `toml:"heartbeat_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for the credit scoring pipeline.
//
// Configuration sections by subsystem:
//   - Paths: data, artifact, registry, state, and log directories
//   - Training: network hyperparameters and dataset splits
//   - Quantization: int8 quantization fidelity and benchmarking
//   - Evaluation: promotion gate thresholds
//   - Publishing: promotion side effects such as manifest stamping
//   - Serving: prediction API bind address and timeouts
//   - Monitoring: drift detection thresholds and data locations
//   - Schedule: periodic retraining and drift check triggers
//   - Notifications: ntfy push notification settings
//   - Workflow: daemon polling intervals and heartbeats
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Training      Training      `toml:"training"`
	Quantization  Quantization  `toml:"quantization"`
	Evaluation    Evaluation    `toml:"evaluation"`
	Publishing    Publishing    `toml:"publishing"`
	Serving       Serving       `toml:"serving"`
	Monitoring    Monitoring    `toml:"monitoring"`
	Schedule      Schedule      `toml:"schedule"`
	Notifications Notifications `toml:"notifications"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scorecard/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/scorecard/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scorecard.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.DataDir,
		c.Paths.ArtifactsDir,
		c.Paths.RegistryDir,
		c.Paths.StateDir,
		c.Paths.LogDir,
		c.Paths.ReportsDir,
	} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the filesystem location of the daemon IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.StateDir, "scorecardd.sock")
}

// LockPath returns the filesystem location of the daemon instance lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "scorecardd.lock")
}

// ManifestPath returns the location of the promoted model manifest.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Paths.RegistryDir, "manifest.yaml")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
