package preflight

import (
	"context"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Artifacts directory", cfg.Paths.ArtifactsDir),
		CheckDirectoryAccess("Registry directory", cfg.Paths.RegistryDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Reports directory", cfg.Paths.ReportsDir),
		CheckBindAddress("Serving bind address", cfg.Serving.Bind),
	}

	if cfg.Monitoring.ReferenceDataPath != "" {
		results = append(results, CheckDataFile("Reference dataset", cfg.Monitoring.ReferenceDataPath, true))
	}
	if cfg.Monitoring.CurrentDataPath != "" {
		results = append(results, CheckDataFile("Current dataset", cfg.Monitoring.CurrentDataPath, true))
	}
	if cfg.Notifications.NtfyTopic != "" {
		results = append(results, CheckNtfy(ctx, cfg.Notifications.NtfyTopic))
	}

	return results
}
