package ipc

import (
	"time"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
)

// RunInfo is the wire representation of a pipeline run.
type RunInfo struct {
	ID              int64      `json:"id"`
	ModelVersion    string     `json:"model_version"`
	Trigger         string     `json:"trigger"`
	Status          string     `json:"status"`
	DataPath        string     `json:"data_path,omitempty"`
	ModelFile       string     `json:"model_file,omitempty"`
	QuantizedFile   string     `json:"quantized_file,omitempty"`
	MetricsJSON     string     `json:"metrics_json,omitempty"`
	EvalJSON        string     `json:"eval_json,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ProgressStage   string     `json:"progress_stage,omitempty"`
	ProgressPercent float64    `json:"progress_percent"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	NeedsReview     bool       `json:"needs_review"`
	ReviewReason    string     `json:"review_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	LastHeartbeat   *time.Time `json:"last_heartbeat,omitempty"`
}

// FromRun converts a store run into its wire form.
func FromRun(run *pipeline.Run) RunInfo {
	info := RunInfo{
		ID:              run.ID,
		ModelVersion:    run.ModelVersion,
		Trigger:         run.Trigger,
		Status:          string(run.Status),
		DataPath:        run.DataPath,
		ModelFile:       run.ModelFile,
		QuantizedFile:   run.QuantizedFile,
		MetricsJSON:     run.MetricsJSON,
		EvalJSON:        run.EvalJSON,
		ErrorMessage:    run.ErrorMessage,
		ProgressStage:   run.ProgressStage,
		ProgressPercent: run.ProgressPercent,
		ProgressMessage: run.ProgressMessage,
		NeedsReview:     run.NeedsReview,
		ReviewReason:    run.ReviewReason,
		CreatedAt:       run.CreatedAt,
		UpdatedAt:       run.UpdatedAt,
	}
	if run.LastHeartbeat != nil {
		hb := *run.LastHeartbeat
		info.LastHeartbeat = &hb
	}
	return info
}

// StageHealth describes readiness of a workflow stage.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running     bool           `json:"running"`
	RunStats    map[string]int `json:"run_stats"`
	LastError   string         `json:"last_error"`
	LastRun     *RunInfo       `json:"last_run"`
	LockPath    string         `json:"lock_path"`
	RunDBPath   string         `json:"run_db_path"`
	StageHealth []StageHealth  `json:"stage_health"`
	PID         int            `json:"pid"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// TriggerRunRequest queues a new pipeline run.
type TriggerRunRequest struct {
	Trigger string `json:"trigger"`
}

// TriggerRunResponse returns the queued run.
type TriggerRunResponse struct {
	Run RunInfo `json:"run"`
}

// RunListRequest filters run listing by status.
type RunListRequest struct {
	Statuses []string `json:"statuses"`
}

// RunListResponse contains run entries.
type RunListResponse struct {
	Runs []RunInfo `json:"runs"`
}

// RunDescribeRequest fetches a single run by id.
type RunDescribeRequest struct {
	ID int64 `json:"id"`
}

// RunDescribeResponse contains a single run.
type RunDescribeResponse struct {
	Run RunInfo `json:"run"`
}

// RunRetryRequest retries failed or review runs. Empty list means all
// eligible runs.
type RunRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// RunRetryResponse reports number of retried runs.
type RunRetryResponse struct {
	Updated int64 `json:"updated"`
}

// RunStopRequest stops in-flight runs. Empty list is invalid.
type RunStopRequest struct {
	IDs []int64 `json:"ids"`
}

// RunStopResponse reports number of stopped runs.
type RunStopResponse struct {
	Updated int64 `json:"updated"`
}

// RunRemoveRequest removes a specific run by ID.
type RunRemoveRequest struct {
	ID int64 `json:"id"`
}

// RunRemoveResponse reports whether a run was removed.
type RunRemoveResponse struct {
	Removed bool `json:"removed"`
}

// RunClearRequest removes all runs.
type RunClearRequest struct{}

// RunClearResponse reports number of removed runs.
type RunClearResponse struct {
	Removed int64 `json:"removed"`
}

// RunClearCompletedRequest removes completed runs.
type RunClearCompletedRequest struct{}

// RunClearCompletedResponse reports number of removed runs.
type RunClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// RunClearFailedRequest removes failed runs.
type RunClearFailedRequest struct{}

// RunClearFailedResponse reports number of removed runs.
type RunClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// RunResetRequest rolls stuck processing runs back to stable statuses.
type RunResetRequest struct{}

// RunResetResponse reports number of runs reset.
type RunResetResponse struct {
	Updated int64 `json:"updated"`
}

// RunHealthRequest fetches aggregate diagnostics.
type RunHealthRequest struct{}

// RunHealthResponse reports run health information.
type RunHealthResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Review     int `json:"review"`
	Completed  int `json:"completed"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalRuns        int      `json:"total_runs"`
	Error            string   `json:"error"`
}

// DriftCheckRequest runs an on-demand drift comparison.
type DriftCheckRequest struct{}

// DriftColumn is the wire form of a per-feature drift result.
type DriftColumn struct {
	Column      string  `json:"column"`
	KSStatistic float64 `json:"ks_statistic"`
	KSPValue    float64 `json:"ks_p_value"`
	PSI         float64 `json:"psi"`
	Drifted     bool    `json:"drifted"`
}

// DriftCheckResponse reports the drift comparison outcome.
type DriftCheckResponse struct {
	Columns        []DriftColumn `json:"columns"`
	DriftedColumns int           `json:"drifted_columns"`
	DriftShare     float64       `json:"drift_share"`
	DriftDetected  bool          `json:"drift_detected"`
	ShouldRetrain  bool          `json:"should_retrain"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
