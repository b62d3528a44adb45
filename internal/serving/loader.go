package serving

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/fsnotify/fsnotify"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/model"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/registry"
)

// LoadedModel bundles everything one promoted version needs to score traffic.
type LoadedModel struct {
	Version   string
	Entry     registry.Entry
	Predictor model.Predictor
	Scaler    *dataset.Scaler
	Quantized bool
	LoadedAt  time.Time
}

// Loader keeps the currently served model in memory and swaps it atomically
// when the registry manifest changes.
type Loader struct {
	cfg     *config.Config
	logger  *slog.Logger
	current atomic.Pointer[LoadedModel]
}

// NewLoader constructs a loader; call Reload to populate it.
func NewLoader(cfg *config.Config, logger *slog.Logger) *Loader {
	loaderLogger := logger
	if loaderLogger != nil {
		loaderLogger = loaderLogger.With(logging.String(logging.FieldComponent, "model-loader"))
	}
	return &Loader{cfg: cfg, logger: loaderLogger}
}

// Current returns the served model, or nil when nothing has been promoted.
func (l *Loader) Current() *LoadedModel {
	return l.current.Load()
}

// Reload reads the manifest and loads the current version's artifacts. A
// registry with no promoted model clears the served model.
func (l *Loader) Reload(ctx context.Context) error {
	manifest, err := registry.LoadManifest(l.cfg.Paths.RegistryDir)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	if manifest.CurrentVersion == "" {
		l.current.Store(nil)
		return nil
	}
	served := l.Current()
	if served != nil && served.Version == manifest.CurrentVersion {
		return nil
	}

	entry, _ := manifest.Current()
	versionDir := registry.VersionDir(l.cfg.Paths.RegistryDir, manifest.CurrentVersion)

	var predictor model.Predictor
	if l.cfg.Serving.UseQuantized {
		predictor, err = model.LoadQuantized(filepath.Join(versionDir, registry.QuantizedFileName))
	} else {
		predictor, err = model.Load(filepath.Join(versionDir, registry.ModelFileName))
	}
	if err != nil {
		return fmt.Errorf("load model %s: %w", manifest.CurrentVersion, err)
	}
	scaler, err := dataset.LoadScaler(filepath.Join(versionDir, registry.ScalerFileName))
	if err != nil {
		return fmt.Errorf("load scaler %s: %w", manifest.CurrentVersion, err)
	}

	l.current.Store(&LoadedModel{
		Version:   manifest.CurrentVersion,
		Entry:     entry,
		Predictor: predictor,
		Scaler:    scaler,
		Quantized: l.cfg.Serving.UseQuantized,
		LoadedAt:  time.Now().UTC(),
	})
	if l.logger != nil {
		l.logger.Info("model loaded",
			logging.String(logging.FieldModelVersion, manifest.CurrentVersion),
			logging.Bool("quantized", l.cfg.Serving.UseQuantized))
	}
	return nil
}

// Watch reloads the served model whenever the registry manifest is replaced.
// It blocks until the context ends.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.cfg.Paths.RegistryDir); err != nil {
		return fmt.Errorf("watch registry directory: %w", err)
	}

	manifestPath := registry.ManifestPath(l.cfg.Paths.RegistryDir)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Name != manifestPath {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := l.Reload(ctx); err != nil && l.logger != nil {
				l.logger.Warn("model reload failed", logging.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if l.logger != nil {
				l.logger.Warn("registry watcher error", logging.Error(err))
			}
		}
	}
}
