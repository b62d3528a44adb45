package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/drift"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/notifications"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/services"
)

// syntheticCurrentSamples is the size of the generated stand-in dataset when
// no production data has landed at the current data path yet.
const syntheticCurrentSamples = 1000

// DriftCheck compares the reference and current datasets, writes the report
// files, and queues a retraining run when the drifted share crosses the
// retrain threshold. When no current dataset exists yet, a synthetic drifted
// sample stands in for production traffic.
func (d *Daemon) DriftCheck(ctx context.Context) (*drift.Metrics, error) {
	reference, err := d.loadDriftDataset(d.cfg.Monitoring.ReferenceDataPath, "reference")
	if err != nil {
		return nil, err
	}
	current, err := d.loadDriftDataset(d.cfg.Monitoring.CurrentDataPath, "current")
	if errors.Is(err, services.ErrNotFound) {
		current = dataset.Generate(dataset.DriftedParams(syntheticCurrentSamples))
		d.logger.Info("current dataset missing, generated synthetic drifted sample",
			logging.String("path", d.cfg.Monitoring.CurrentDataPath),
			logging.Int("samples", syntheticCurrentSamples))
		if saveErr := dataset.SaveCSV(current, d.cfg.Monitoring.CurrentDataPath); saveErr != nil {
			d.logger.Warn("failed to persist synthetic current dataset", logging.Error(saveErr))
		}
	} else if err != nil {
		return nil, err
	}

	metrics, err := drift.Detect(reference, current, drift.Thresholds{
		KSAlpha:      d.cfg.Monitoring.KSAlpha,
		PSIThreshold: d.cfg.Monitoring.PSIThreshold,
		RetrainShare: d.cfg.Monitoring.RetrainThreshold,
	})
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "drift", "detect", "", err)
	}

	if err := os.MkdirAll(d.cfg.Paths.ReportsDir, 0o755); err == nil {
		if err := metrics.SaveJSON(filepath.Join(d.cfg.Paths.ReportsDir, "drift_metrics.json")); err != nil {
			d.logger.Warn("failed to save drift metrics", logging.Error(err))
		}
		if err := metrics.SaveHTML(filepath.Join(d.cfg.Paths.ReportsDir, "drift_report.html")); err != nil {
			d.logger.Warn("failed to save drift report", logging.Error(err))
		}
	}

	if d.driftObserver != nil {
		d.driftObserver(metrics.DriftShare, metrics.DriftedColumns)
	}

	d.logger.Info("drift check finished",
		logging.Int("drifted_columns", metrics.DriftedColumns),
		logging.Float64("drift_share", metrics.DriftShare),
		logging.Bool("should_retrain", metrics.ShouldRetrain))

	if metrics.DriftDetected && d.notifier != nil {
		payload := notifications.Payload{
			"drifted_columns": metrics.DriftedColumns,
			"drift_share":     metrics.DriftShare,
			"should_retrain":  metrics.ShouldRetrain,
		}
		if err := d.notifier.Publish(ctx, notifications.EventDriftDetected, payload); err != nil {
			d.logger.Debug("drift notification failed", logging.Error(err))
		}
	}

	if metrics.ShouldRetrain {
		run, err := d.TriggerRun(ctx, pipeline.TriggerDrift)
		if err != nil {
			d.logger.Warn("drift retraining not queued", logging.Error(err))
		} else {
			d.logger.Info("drift retraining queued",
				logging.Int64(logging.FieldRunID, run.ID),
				logging.String(logging.FieldModelVersion, run.ModelVersion))
		}
	}
	return metrics, nil
}

func (d *Daemon) loadDriftDataset(path, role string) (*dataset.Dataset, error) {
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "drift", "load "+role+" data", "path not configured", nil)
	}
	ds, err := dataset.LoadCSV(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "drift", "load "+role+" data", path, err)
		}
		return nil, services.Wrap(services.ErrValidation, "drift", "load "+role+" data", path, err)
	}
	return ds, nil
}
