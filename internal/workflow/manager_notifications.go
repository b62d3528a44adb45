package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/notifications"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
)

func (m *Manager) notifyRunStarted(ctx context.Context, run *pipeline.Run) {
	if m.notifier == nil || run == nil {
		return
	}
	m.publish(ctx, notifications.EventRunStarted, notifications.Payload{
		"run_id":  run.ID,
		"trigger": run.Trigger,
	})
}

func (m *Manager) notifyRunCompleted(ctx context.Context, run *pipeline.Run) {
	if m.notifier == nil || run == nil {
		return
	}
	m.publish(ctx, notifications.EventRunCompleted, notifications.Payload{
		"run_id":        run.ID,
		"model_version": run.ModelVersion,
	})
}

func (m *Manager) notifyStageError(ctx context.Context, stageName string, run *pipeline.Run, stageErr error, resolved pipeline.Status) {
	if m.notifier == nil || stageErr == nil {
		return
	}
	if resolved == pipeline.StatusReview {
		m.publish(ctx, notifications.EventRunReview, notifications.Payload{
			"run_id": run.ID,
			"reason": run.ReviewReason,
		})
		return
	}
	m.publish(ctx, notifications.EventRunFailed, notifications.Payload{
		"run_id": run.ID,
		"stage":  stageName,
		"error":  fmt.Sprint(stageErr),
	})
}

func (m *Manager) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	logger := m.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := m.notifier.Publish(ctx, event, payload); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, notification skipped", logging.String("event", string(event)))
		} else {
			logger.Debug("notification failed", logging.String("event", string(event)), logging.Error(err))
		}
	}
}
