package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
)

// ModelVersion format for new runs: a UTC timestamp that doubles as the
// registry directory name.
const modelVersionLayout = "20060102150405"

// TriggerRun enqueues a new pipeline run unless one is already in flight.
func (d *Daemon) TriggerRun(ctx context.Context, trigger string) (*pipeline.Run, error) {
	if d.store == nil {
		return nil, errors.New("run store unavailable")
	}
	active, err := d.store.NextForStatuses(ctx, activeStatuses()...)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("run %d (%s) is already %s", active.ID, active.ModelVersion, active.Status)
	}

	version := time.Now().UTC().Format(modelVersionLayout)
	run, err := d.store.NewRun(ctx, version, trigger)
	if err != nil {
		return nil, err
	}
	d.logger.Info("pipeline run queued",
		logging.Int64(logging.FieldRunID, run.ID),
		logging.String(logging.FieldModelVersion, version),
		logging.String("trigger", trigger))
	return run, nil
}

func activeStatuses() []pipeline.Status {
	statuses := []pipeline.Status{pipeline.StatusPending}
	for _, status := range pipeline.AllStatuses() {
		if pipeline.IsProcessingStatus(status) {
			statuses = append(statuses, status)
		}
	}
	return statuses
}

// ListRuns returns runs filtered by optional statuses.
func (d *Daemon) ListRuns(ctx context.Context, statuses []pipeline.Status) ([]*pipeline.Run, error) {
	if d.store == nil {
		return nil, errors.New("run store unavailable")
	}
	return d.store.List(ctx, statuses...)
}

// GetRun returns a single run by ID.
func (d *Daemon) GetRun(ctx context.Context, id int64) (*pipeline.Run, error) {
	if d.store == nil {
		return nil, errors.New("run store unavailable")
	}
	return d.store.GetByID(ctx, id)
}

// RetryRuns moves failed and review runs back to pending. An empty ID list
// retries everything eligible.
func (d *Daemon) RetryRuns(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("run store unavailable")
	}
	return d.store.RetryFailed(ctx, ids...)
}

// StopRuns marks the given runs failed with a user-stop reason. Runs that are
// already terminal are skipped.
func (d *Daemon) StopRuns(ctx context.Context, ids []int64) (int64, error) {
	if d.store == nil {
		return 0, errors.New("run store unavailable")
	}
	var stopped int64
	for _, id := range ids {
		run, err := d.store.GetByID(ctx, id)
		if err != nil {
			return stopped, err
		}
		if run == nil || pipeline.IsTerminal(run.Status) {
			continue
		}
		run.SetFailed(pipeline.UserStopReason)
		if err := d.store.Update(ctx, run); err != nil {
			return stopped, err
		}
		stopped++
	}
	return stopped, nil
}

// RemoveRun deletes a single run record.
func (d *Daemon) RemoveRun(ctx context.Context, id int64) (bool, error) {
	if d.store == nil {
		return false, errors.New("run store unavailable")
	}
	return d.store.Remove(ctx, id)
}

// ClearRuns removes all run records.
func (d *Daemon) ClearRuns(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("run store unavailable")
	}
	return d.store.Clear(ctx)
}

// ClearCompleted removes completed run records.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("run store unavailable")
	}
	return d.store.ClearCompleted(ctx)
}

// ClearFailed removes failed run records.
func (d *Daemon) ClearFailed(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("run store unavailable")
	}
	return d.store.ClearFailed(ctx)
}

// ResetStuck rolls runs stuck in processing states back to their preceding
// stable status.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	if d.store == nil {
		return 0, errors.New("run store unavailable")
	}
	return d.store.ResetStuckProcessing(ctx)
}

// RunHealth returns aggregate run counts.
func (d *Daemon) RunHealth(ctx context.Context) (pipeline.HealthSummary, error) {
	if d.store == nil {
		return pipeline.HealthSummary{}, errors.New("run store unavailable")
	}
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed store diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (pipeline.DatabaseHealth, error) {
	if d.store == nil {
		return pipeline.DatabaseHealth{}, errors.New("run store unavailable")
	}
	return d.store.CheckHealth(ctx)
}
