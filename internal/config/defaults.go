package config

const (
	defaultDataDir                = "~/.local/share/scorecard/data"
	defaultArtifactsDir           = "~/.local/share/scorecard/artifacts"
	defaultRegistryDir            = "~/.local/share/scorecard/registry"
	defaultStateDir               = "~/.local/share/scorecard/state"
	defaultLogDir                 = "~/.local/share/scorecard/logs"
	defaultReportsDir             = "~/.local/share/scorecard/reports"
	defaultLogRetentionDays       = 60
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
	defaultEpochs                 = 50
	defaultBatchSize              = 64
	defaultLearningRate           = 0.001
	defaultDropout                = 0.3
	defaultSeed                   = 42
	defaultValFraction            = 0.15
	defaultTestFraction           = 0.15
	defaultMinSamples             = 1000
	defaultSyntheticSamples       = 10000
	defaultMinCorrelation         = 0.99
	defaultBenchmarkIterations    = 100
	defaultMinAccuracy            = 0.75
	defaultMinAUC                 = 0.80
	defaultServingBind            = "127.0.0.1:8000"
	defaultServingReadTimeout     = 10
	defaultServingWriteTimeout    = 30
	defaultServingShutdownTimeout = 15
	defaultMaxBatchSize           = 100
	defaultKSAlpha                = 0.05
	defaultPSIThreshold           = 0.2
	defaultRetrainThreshold       = 0.3
	defaultRetrainIntervalHours   = 168
	defaultDriftIntervalHours     = 24
	defaultHeartbeatInterval      = 15
	defaultHeartbeatTimeout       = 120
	defaultNotifyRequestTimeout   = 10
	defaultNotifyDedupWindow      = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:      defaultDataDir,
			ArtifactsDir: defaultArtifactsDir,
			RegistryDir:  defaultRegistryDir,
			StateDir:     defaultStateDir,
			LogDir:       defaultLogDir,
			ReportsDir:   defaultReportsDir,
		},
		Training: Training{
			Epochs:           defaultEpochs,
			BatchSize:        defaultBatchSize,
			LearningRate:     defaultLearningRate,
			HiddenSizes:      []int{128, 64, 32},
			Dropout:          defaultDropout,
			Seed:             defaultSeed,
			ValFraction:      defaultValFraction,
			TestFraction:     defaultTestFraction,
			MinSamples:       defaultMinSamples,
			SyntheticSamples: defaultSyntheticSamples,
			RiskThresholds:   []float64{0.3, 0.7},
		},
		Quantization: Quantization{
			MinCorrelation:      defaultMinCorrelation,
			BenchmarkIterations: defaultBenchmarkIterations,
		},
		Evaluation: Evaluation{
			MinAccuracy: defaultMinAccuracy,
			MinAUC:      defaultMinAUC,
		},
		Serving: Serving{
			Bind:            defaultServingBind,
			ReadTimeout:     defaultServingReadTimeout,
			WriteTimeout:    defaultServingWriteTimeout,
			ShutdownTimeout: defaultServingShutdownTimeout,
			MaxBatchSize:    defaultMaxBatchSize,
			UseQuantized:    true,
		},
		Monitoring: Monitoring{
			KSAlpha:          defaultKSAlpha,
			PSIThreshold:     defaultPSIThreshold,
			RetrainThreshold: defaultRetrainThreshold,
		},
		Schedule: Schedule{
			Enabled:            true,
			RetrainInterval:    defaultRetrainIntervalHours,
			DriftCheckInterval: defaultDriftIntervalHours,
		},
		Notifications: Notifications{
			RequestTimeout:     defaultNotifyRequestTimeout,
			Training:           true,
			Promotion:          true,
			Drift:              true,
			Errors:             true,
			DedupWindowSeconds: defaultNotifyDedupWindow,
		},
		Workflow: Workflow{
			RunPollInterval:    5,
			ErrorRetryInterval: 10,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
