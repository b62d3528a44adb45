package config

import (
	"errors"
	"fmt"
	"net"
	"sort"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTraining(); err != nil {
		return err
	}
	if err := c.validateQuantization(); err != nil {
		return err
	}
	if err := c.validateEvaluation(); err != nil {
		return err
	}
	if err := c.validateServing(); err != nil {
		return err
	}
	if err := c.validateMonitoring(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTraining() error {
	if c.Training.Dropout < 0 || c.Training.Dropout >= 1 {
		return errors.New("training.dropout must be in [0, 1)")
	}
	if c.Training.ValFraction <= 0 || c.Training.ValFraction >= 1 {
		return errors.New("training.val_fraction must be between 0 and 1")
	}
	if c.Training.TestFraction <= 0 || c.Training.TestFraction >= 1 {
		return errors.New("training.test_fraction must be between 0 and 1")
	}
	if c.Training.ValFraction+c.Training.TestFraction >= 1 {
		return errors.New("training.val_fraction and training.test_fraction must leave room for a train split")
	}
	for _, size := range c.Training.HiddenSizes {
		if size <= 0 {
			return errors.New("training.hidden_sizes entries must be positive")
		}
	}
	if len(c.Training.RiskThresholds) != 2 {
		return errors.New("training.risk_thresholds must contain exactly two values")
	}
	thresholds := append([]float64(nil), c.Training.RiskThresholds...)
	if !sort.Float64sAreSorted(thresholds) {
		return errors.New("training.risk_thresholds must be ascending")
	}
	if thresholds[0] <= 0 || thresholds[1] >= 1 {
		return errors.New("training.risk_thresholds must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateQuantization() error {
	if c.Quantization.MinCorrelation <= 0 || c.Quantization.MinCorrelation > 1 {
		return errors.New("quantization.min_correlation must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateEvaluation() error {
	if c.Evaluation.MinAccuracy <= 0 || c.Evaluation.MinAccuracy > 1 {
		return errors.New("evaluation.min_accuracy must be between 0 and 1")
	}
	if c.Evaluation.MinAUC <= 0 || c.Evaluation.MinAUC > 1 {
		return errors.New("evaluation.min_auc must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateServing() error {
	if _, _, err := net.SplitHostPort(c.Serving.Bind); err != nil {
		return fmt.Errorf("serving.bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateMonitoring() error {
	if c.Monitoring.KSAlpha <= 0 || c.Monitoring.KSAlpha >= 1 {
		return errors.New("monitoring.ks_alpha must be between 0 and 1")
	}
	if c.Monitoring.PSIThreshold <= 0 {
		return errors.New("monitoring.psi_threshold must be positive")
	}
	if c.Monitoring.RetrainThreshold <= 0 || c.Monitoring.RetrainThreshold > 1 {
		return errors.New("monitoring.retrain_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.run_poll_interval":    c.Workflow.RunPollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		return errors.New("workflow.heartbeat_interval must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= 0 {
		return errors.New("workflow.heartbeat_timeout must be positive")
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		return errors.New("workflow.heartbeat_timeout must be greater than workflow.heartbeat_interval")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
