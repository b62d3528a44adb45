package schedule

import (
	"context"
	"time"

	"log/slog"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/drift"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
)

// Target abstracts the daemon operations the scheduler drives.
type Target interface {
	TriggerRun(ctx context.Context, trigger string) (*pipeline.Run, error)
	DriftCheck(ctx context.Context) (*drift.Metrics, error)
}

// Scheduler fires periodic retraining runs and drift checks based on the
// configured intervals.
type Scheduler struct {
	target Target
	logger *slog.Logger

	enabled      bool
	retrainEvery time.Duration
	driftEvery   time.Duration
}

// New builds a scheduler from the schedule config section. Intervals of zero
// disable the corresponding trigger.
func New(cfg *config.Config, target Target, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Scheduler{
		target: target,
		logger: logger.With(logging.String(logging.FieldComponent, "schedule")),
	}
	if cfg != nil {
		s.enabled = cfg.Schedule.Enabled
		s.retrainEvery = time.Duration(cfg.Schedule.RetrainInterval) * time.Hour
		s.driftEvery = time.Duration(cfg.Schedule.DriftCheckInterval) * time.Hour
	}
	return s
}

// Run blocks until the context is canceled, firing scheduled retraining and
// drift checks. It returns immediately when scheduling is disabled.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.enabled || s.target == nil {
		s.logger.Debug("scheduler disabled")
		return nil
	}
	if s.retrainEvery <= 0 && s.driftEvery <= 0 {
		s.logger.Debug("scheduler has no active intervals")
		return nil
	}

	var retrainCh, driftCh <-chan time.Time
	if s.retrainEvery > 0 {
		retrain := time.NewTicker(s.retrainEvery)
		defer retrain.Stop()
		retrainCh = retrain.C
	}
	if s.driftEvery > 0 {
		driftTicker := time.NewTicker(s.driftEvery)
		defer driftTicker.Stop()
		driftCh = driftTicker.C
	}

	s.logger.Info("scheduler started",
		logging.Duration("retrain_interval", s.retrainEvery),
		logging.Duration("drift_check_interval", s.driftEvery))

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("scheduler stopped")
			return ctx.Err()
		case <-retrainCh:
			s.fireRetrain(ctx)
		case <-driftCh:
			s.fireDriftCheck(ctx)
		}
	}
}

func (s *Scheduler) fireRetrain(ctx context.Context) {
	run, err := s.target.TriggerRun(ctx, pipeline.TriggerScheduled)
	if err != nil {
		// A run already in flight is expected under short intervals.
		s.logger.Debug("scheduled retraining skipped", logging.Error(err))
		return
	}
	s.logger.Info("scheduled retraining queued",
		logging.String(logging.FieldEventType, "scheduled_retrain"),
		logging.Int64(logging.FieldRunID, run.ID),
		logging.String(logging.FieldModelVersion, run.ModelVersion))
}

func (s *Scheduler) fireDriftCheck(ctx context.Context) {
	metrics, err := s.target.DriftCheck(ctx)
	if err != nil {
		s.logger.Warn("scheduled drift check failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "drift_check_failed"),
			logging.String(logging.FieldErrorHint, "verify reference and current dataset paths in the monitoring config"))
		return
	}
	s.logger.Info("scheduled drift check finished",
		logging.String(logging.FieldEventType, "drift_check"),
		logging.Int("drifted_columns", metrics.DriftedColumns),
		logging.Bool("should_retrain", metrics.ShouldRetrain))
}
