package pipeline

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a pipeline run.
type Status string

const (
	StatusPending    Status = "pending"
	StatusTraining   Status = "training"
	StatusTrained    Status = "trained"
	StatusConverting Status = "converting"
	StatusConverted  Status = "converted"
	StatusQuantizing Status = "quantizing"
	StatusQuantized  Status = "quantized"
	StatusEvaluating Status = "evaluating"
	StatusEvaluated  Status = "evaluated"
	StatusPublishing Status = "publishing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusReview     Status = "review"
)

// Trigger reasons recorded when a run is enqueued.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
	TriggerDrift     = "drift"
)

// UserStopReason is the review reason set when a user explicitly stops a run.
const UserStopReason = "Stop requested by user"

// DaemonStopReason is the error message set when runs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusTraining,
	StatusTrained,
	StatusConverting,
	StatusConverted,
	StatusQuantizing,
	StatusQuantized,
	StatusEvaluating,
	StatusEvaluated,
	StatusPublishing,
	StatusCompleted,
	StatusFailed,
	StatusReview,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusTraining:   {},
	StatusConverting: {},
	StatusQuantizing: {},
	StatusEvaluating: {},
	StatusPublishing: {},
}

type statusTransition struct {
	from Status
	to   Status
}

var stageRollbackTransitions = []statusTransition{
	{from: StatusTraining, to: StatusPending},
	{from: StatusConverting, to: StatusTrained},
	{from: StatusQuantizing, to: StatusConverted},
	{from: StatusEvaluating, to: StatusQuantized},
	{from: StatusPublishing, to: StatusEvaluated},
}

func processingRollbackTransitions() []statusTransition {
	return stageRollbackTransitions
}

// DatabaseHealth captures diagnostic information about the run database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalRuns        int
	Error            string
}

// HealthSummary describes aggregated run counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Review     int
	Completed  int
}

// Run represents a pipeline run persisted in SQLite. A run carries a candidate
// model from training through conversion, quantization, evaluation, and
// publication.
type Run struct {
	ID              int64
	ModelVersion    string
	Trigger         string
	Status          Status
	DataPath        string
	CheckpointFile  string
	ScalerFile      string
	TestDataFile    string
	ModelFile       string
	QuantizedFile   string
	MetricsJSON     string
	EvalJSON        string
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	LastHeartbeat   *time.Time
	NeedsReview     bool
	ReviewReason    string
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing returns true when the status reflects an in-flight stage.
func (r Run) IsProcessing() bool {
	_, ok := processingStatuses[r.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight stage.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status represents a finished run.
func IsTerminal(status Status) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusReview:
		return true
	default:
		return false
	}
}

// IsUserStopReason reports whether a review reason represents a user-initiated stop.
func IsUserStopReason(reason string) bool {
	return strings.EqualFold(strings.TrimSpace(reason), UserStopReason)
}

// InitProgress resets progress fields for a new stage.
// If ProgressStage is currently empty, it is set to the provided stage value;
// otherwise the existing stage is preserved (to support resume scenarios).
// ProgressMessage is set to message, ProgressPercent is reset to 0,
// and ErrorMessage is cleared.
func (r *Run) InitProgress(stage, message string) {
	if r.ProgressStage == "" {
		r.ProgressStage = stage
	}
	r.ProgressMessage = message
	r.ProgressPercent = 0
	r.ErrorMessage = ""
}

// SetProgress updates all three progress fields atomically.
// Use this instead of setting ProgressStage, ProgressPercent, and ProgressMessage individually.
func (r *Run) SetProgress(stage, message string, percent float64) {
	r.ProgressStage = stage
	r.ProgressMessage = message
	r.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (r *Run) SetProgressComplete(stage, message string) {
	r.SetProgress(stage, message, 100)
}

// SetFailed marks the run as failed with the given error message.
// Clears heartbeat and sets progress fields appropriately.
func (r *Run) SetFailed(message string) {
	r.Status = StatusFailed
	r.ErrorMessage = message
	r.ProgressPercent = 0
	r.ProgressMessage = message
	r.LastHeartbeat = nil
	r.ProgressStage = "Failed"
}

// SetReview routes the run to manual review with the given reason. Gate
// failures land here rather than in failed so operators can inspect metrics
// before retraining.
func (r *Run) SetReview(reason string) {
	r.Status = StatusReview
	r.NeedsReview = true
	r.ReviewReason = reason
	r.ProgressPercent = 0
	r.ProgressMessage = reason
	r.LastHeartbeat = nil
	r.ProgressStage = "Review"
}

// StageKey returns the normalized stage identifier used in API/CLI presentation.
func (s Status) StageKey() string {
	switch s {
	case "":
		return ""
	case StatusPending:
		return "planned"
	case StatusCompleted:
		return "final"
	default:
		if _, ok := statusSet[s]; ok {
			return string(s)
		}
		return ""
	}
}

// ProcessingLane partitions workflow into foreground model-building stages and
// background publication work.
type ProcessingLane string

const (
	LaneForeground ProcessingLane = "foreground"
	LaneBackground ProcessingLane = "background"
)

// LaneForRun maps a pipeline run to its processing lane for observability purposes.
func LaneForRun(run *Run) ProcessingLane {
	if run == nil {
		return LaneForeground
	}
	switch run.Status {
	case StatusEvaluated, StatusPublishing, StatusCompleted:
		return LaneBackground
	default:
		return LaneForeground
	}
}
