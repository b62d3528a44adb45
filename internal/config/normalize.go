package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeMonitoring(); err != nil {
		return err
	}
	if err := c.normalizePublishing(); err != nil {
		return err
	}
	c.normalizeTraining()
	c.normalizeQuantization()
	c.normalizeServing()
	c.normalizeSchedule()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name     string
		value    *string
		fallback string
	}{
		{"paths.data_dir", &c.Paths.DataDir, defaultDataDir},
		{"paths.artifacts_dir", &c.Paths.ArtifactsDir, defaultArtifactsDir},
		{"paths.registry_dir", &c.Paths.RegistryDir, defaultRegistryDir},
		{"paths.state_dir", &c.Paths.StateDir, defaultStateDir},
		{"paths.log_dir", &c.Paths.LogDir, defaultLogDir},
		{"paths.reports_dir", &c.Paths.ReportsDir, defaultReportsDir},
	}
	for _, field := range fields {
		if strings.TrimSpace(*field.value) == "" {
			*field.value = field.fallback
		}
		expanded, err := expandPath(*field.value)
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}
	return nil
}

func (c *Config) normalizePublishing() error {
	if strings.TrimSpace(c.Publishing.DeploymentManifest) == "" {
		return nil
	}
	expanded, err := expandPath(c.Publishing.DeploymentManifest)
	if err != nil {
		return fmt.Errorf("publishing.deployment_manifest: %w", err)
	}
	c.Publishing.DeploymentManifest = expanded
	return nil
}

func (c *Config) normalizeMonitoring() error {
	var err error
	if strings.TrimSpace(c.Monitoring.ReferenceDataPath) != "" {
		if c.Monitoring.ReferenceDataPath, err = expandPath(c.Monitoring.ReferenceDataPath); err != nil {
			return fmt.Errorf("monitoring.reference_data_path: %w", err)
		}
	}
	if strings.TrimSpace(c.Monitoring.CurrentDataPath) != "" {
		if c.Monitoring.CurrentDataPath, err = expandPath(c.Monitoring.CurrentDataPath); err != nil {
			return fmt.Errorf("monitoring.current_data_path: %w", err)
		}
	}
	if c.Monitoring.KSAlpha <= 0 {
		c.Monitoring.KSAlpha = defaultKSAlpha
	}
	if c.Monitoring.PSIThreshold <= 0 {
		c.Monitoring.PSIThreshold = defaultPSIThreshold
	}
	if c.Monitoring.RetrainThreshold <= 0 {
		c.Monitoring.RetrainThreshold = defaultRetrainThreshold
	}
	return nil
}

func (c *Config) normalizeTraining() {
	if c.Training.Epochs <= 0 {
		c.Training.Epochs = defaultEpochs
	}
	if c.Training.BatchSize <= 0 {
		c.Training.BatchSize = defaultBatchSize
	}
	if c.Training.LearningRate <= 0 {
		c.Training.LearningRate = defaultLearningRate
	}
	if len(c.Training.HiddenSizes) == 0 {
		c.Training.HiddenSizes = []int{128, 64, 32}
	}
	if c.Training.Seed == 0 {
		c.Training.Seed = defaultSeed
	}
	if c.Training.ValFraction <= 0 {
		c.Training.ValFraction = defaultValFraction
	}
	if c.Training.TestFraction <= 0 {
		c.Training.TestFraction = defaultTestFraction
	}
	if c.Training.MinSamples <= 0 {
		c.Training.MinSamples = defaultMinSamples
	}
	if c.Training.SyntheticSamples <= 0 {
		c.Training.SyntheticSamples = defaultSyntheticSamples
	}
	if len(c.Training.RiskThresholds) != 2 {
		c.Training.RiskThresholds = []float64{0.3, 0.7}
	}
}

func (c *Config) normalizeQuantization() {
	if c.Quantization.MinCorrelation <= 0 {
		c.Quantization.MinCorrelation = defaultMinCorrelation
	}
	if c.Quantization.BenchmarkIterations <= 0 {
		c.Quantization.BenchmarkIterations = defaultBenchmarkIterations
	}
}

func (c *Config) normalizeServing() {
	c.Serving.Bind = strings.TrimSpace(c.Serving.Bind)
	if c.Serving.Bind == "" {
		c.Serving.Bind = defaultServingBind
	}
	if c.Serving.ReadTimeout <= 0 {
		c.Serving.ReadTimeout = defaultServingReadTimeout
	}
	if c.Serving.WriteTimeout <= 0 {
		c.Serving.WriteTimeout = defaultServingWriteTimeout
	}
	if c.Serving.ShutdownTimeout <= 0 {
		c.Serving.ShutdownTimeout = defaultServingShutdownTimeout
	}
	if c.Serving.MaxBatchSize <= 0 {
		c.Serving.MaxBatchSize = defaultMaxBatchSize
	}
}

func (c *Config) normalizeSchedule() {
	if c.Schedule.RetrainInterval <= 0 {
		c.Schedule.RetrainInterval = defaultRetrainIntervalHours
	}
	if c.Schedule.DriftCheckInterval <= 0 {
		c.Schedule.DriftCheckInterval = defaultDriftIntervalHours
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
