package publishing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"log/slog"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/notifications"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/registry"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/services"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/stage"
)

// Publisher promotes an evaluated candidate into the model registry and
// smoke-tests the serving endpoint afterwards.
type Publisher struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier notifications.Service
	client   *http.Client

	// smokeBudget bounds how long Execute waits for serving to pick up the
	// promoted version.
	smokeBudget time.Duration
}

// NewPublisher constructs the publishing handler.
func NewPublisher(cfg *config.Config, logger *slog.Logger) *Publisher {
	return NewPublisherWithNotifier(cfg, logger, notifications.NewService(cfg))
}

// NewPublisherWithNotifier allows injecting the notifier (used in tests).
func NewPublisherWithNotifier(cfg *config.Config, logger *slog.Logger, notifier notifications.Service) *Publisher {
	stageLogger := logger
	if stageLogger != nil {
		stageLogger = stageLogger.With(logging.String(logging.FieldComponent, "publisher"))
	}
	return &Publisher{
		cfg:         cfg,
		logger:      stageLogger,
		notifier:    notifier,
		client:      &http.Client{Timeout: 5 * time.Second},
		smokeBudget: 10 * time.Second,
	}
}

func (p *Publisher) Prepare(ctx context.Context, run *pipeline.Run) error {
	for _, check := range []struct {
		path, what string
	}{
		{run.ModelFile, "model file"},
		{run.QuantizedFile, "quantized model file"},
		{run.ScalerFile, "scaler file"},
	} {
		if strings.TrimSpace(check.path) == "" {
			return services.Wrap(services.ErrValidation, "publishing", "prepare", "run has no "+check.what, nil)
		}
		if _, err := os.Stat(check.path); err != nil {
			return services.Wrap(services.ErrNotFound, "publishing", "prepare", check.path, err)
		}
	}
	if strings.TrimSpace(run.EvalJSON) == "" {
		return services.Wrap(services.ErrValidation, "publishing", "prepare", "run has no evaluation result", nil)
	}
	run.SetProgress("Publishing", "Promoting model to registry", 0)
	return nil
}

func (p *Publisher) Execute(ctx context.Context, run *pipeline.Run) error {
	logger := logging.WithContext(ctx, p.logger)

	var eval struct {
		Metrics struct {
			Accuracy float64 `json:"accuracy"`
			AUC      float64 `json:"roc_auc"`
		} `json:"metrics"`
		Passed bool `json:"passed"`
	}
	if err := json.Unmarshal([]byte(run.EvalJSON), &eval); err != nil {
		return services.Wrap(services.ErrValidation, "publishing", "parse evaluation result", "", err)
	}
	if !eval.Passed {
		return services.Wrap(services.ErrGate, "publishing", "promotion gates", "evaluation did not pass", nil)
	}

	entry := registry.Entry{
		Version:    run.ModelVersion,
		PromotedAt: time.Now().UTC(),
		Trigger:    run.Trigger,
		Accuracy:   eval.Metrics.Accuracy,
		AUC:        eval.Metrics.AUC,
		RunID:      run.ID,
	}
	files := map[string]string{
		registry.ModelFileName:     run.ModelFile,
		registry.QuantizedFileName: run.QuantizedFile,
		registry.ScalerFileName:    run.ScalerFile,
	}
	if err := registry.Promote(p.cfg.Paths.RegistryDir, entry, files); err != nil {
		return services.Wrap(services.ErrTransient, "publishing", "promote model", run.ModelVersion, err)
	}
	logger.Info("model promoted",
		logging.String(logging.FieldModelVersion, run.ModelVersion),
		logging.Float64("accuracy", entry.Accuracy),
		logging.Float64("auc", entry.AUC))

	if manifest := strings.TrimSpace(p.cfg.Publishing.DeploymentManifest); manifest != "" {
		run.SetProgress("Publishing", "Stamping deployment manifest", 50)
		if err := StampDeployment(manifest, run.ModelVersion); err != nil {
			logger.Warn("deployment manifest not stamped",
				logging.String("manifest", manifest),
				logging.Error(err),
				logging.String(logging.FieldEventType, "deployment_stamp_failed"),
				logging.String(logging.FieldImpact, "cluster rollout will not see the new model version"))
		} else {
			logger.Info("deployment manifest stamped",
				logging.String("manifest", manifest),
				logging.String(logging.FieldModelVersion, run.ModelVersion))
		}
	}

	run.SetProgress("Publishing", "Smoke testing serving endpoint", 70)
	p.smokeTest(ctx, logger, run.ModelVersion)

	if p.notifier != nil {
		payload := notifications.Payload{
			"model_version": run.ModelVersion,
			"accuracy":      entry.Accuracy,
			"auc":           entry.AUC,
		}
		if err := p.notifier.Publish(ctx, notifications.EventModelPromoted, payload); err != nil {
			logger.Debug("promotion notification failed", logging.Error(err))
		}
	}

	run.SetProgressComplete("Publishing", "Model published")
	return nil
}

// HealthCheck verifies the registry directory is writable.
func (p *Publisher) HealthCheck(ctx context.Context) stage.Health {
	const name = "publisher"
	if p.cfg == nil {
		return stage.Unhealthy(name, "configuration unavailable")
	}
	if strings.TrimSpace(p.cfg.Paths.RegistryDir) == "" {
		return stage.Unhealthy(name, "registry directory not configured")
	}
	if err := os.MkdirAll(p.cfg.Paths.RegistryDir, 0o755); err != nil {
		return stage.Unhealthy(name, fmt.Sprintf("registry directory not writable: %v", err))
	}
	return stage.Healthy(name)
}

// smokeTest polls the serving health endpoint until it reports the promoted
// version or the budget runs out. Serving reloads off the manifest, so a slow
// pickup is logged but does not fail the publish.
func (p *Publisher) smokeTest(ctx context.Context, logger *slog.Logger, version string) {
	url := fmt.Sprintf("http://%s/health", p.cfg.Serving.Bind)
	deadline := time.Now().Add(p.smokeBudget)
	for {
		if ctx.Err() != nil {
			return
		}
		ok, served := p.probeHealth(ctx, url)
		if ok && served == version {
			logger.Info("smoke test passed", logging.String("url", url))
			return
		}
		if time.Now().After(deadline) {
			logger.Warn("smoke test did not confirm promoted version",
				logging.String("url", url),
				logging.String("served_version", served))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (p *Publisher) probeHealth(ctx context.Context, url string) (bool, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, ""
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, ""
	}
	var body struct {
		Status       string `json:"status"`
		ModelVersion string `json:"model_version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, ""
	}
	return body.Status == "healthy", body.ModelVersion
}
