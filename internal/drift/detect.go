package drift

import (
	"fmt"
	"time"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
)

// Thresholds controls when a column counts as drifted and when the dataset
// as a whole warrants retraining.
type Thresholds struct {
	KSAlpha         float64 `json:"ks_alpha"`
	PSIThreshold    float64 `json:"psi_threshold"`
	RetrainShare    float64 `json:"retrain_share"`
}

// ColumnDrift holds the per-feature test results.
type ColumnDrift struct {
	Column      string  `json:"column"`
	KSStatistic float64 `json:"ks_statistic"`
	KSPValue    float64 `json:"ks_p_value"`
	PSI         float64 `json:"psi"`
	Drifted     bool    `json:"drifted"`
}

// Metrics is the full drift report for one reference/current comparison.
type Metrics struct {
	GeneratedAt      time.Time     `json:"generated_at"`
	ReferenceSamples int           `json:"reference_samples"`
	CurrentSamples   int           `json:"current_samples"`
	Thresholds       Thresholds    `json:"thresholds"`
	Columns          []ColumnDrift `json:"columns"`
	NumberOfColumns  int           `json:"number_of_columns"`
	DriftedColumns   int           `json:"number_of_drifted_columns"`
	DriftShare       float64       `json:"dataset_drift_score"`
	DriftDetected    bool          `json:"drift_detected"`
	ShouldRetrain    bool          `json:"should_retrain"`
}

// Detect compares every shared feature column of the two datasets. A column
// drifts when the KS p-value falls below alpha or the PSI exceeds its
// threshold; the dataset drift score is the share of drifted columns, and
// retraining is recommended once that share reaches the retrain threshold.
func Detect(reference, current *dataset.Dataset, th Thresholds) (*Metrics, error) {
	if reference == nil || current == nil {
		return nil, fmt.Errorf("both reference and current datasets are required")
	}
	if reference.Len() == 0 || current.Len() == 0 {
		return nil, fmt.Errorf("reference has %d rows, current has %d; both must be non-empty", reference.Len(), current.Len())
	}

	m := &Metrics{
		GeneratedAt:      time.Now().UTC(),
		ReferenceSamples: reference.Len(),
		CurrentSamples:   current.Len(),
		Thresholds:       th,
	}

	for _, name := range dataset.FeatureNames {
		refCol, err := reference.Column(name)
		if err != nil {
			return nil, fmt.Errorf("reference dataset: %w", err)
		}
		curCol, err := current.Column(name)
		if err != nil {
			return nil, fmt.Errorf("current dataset: %w", err)
		}

		statistic, pValue := ksTest(refCol, curCol)
		index := psi(refCol, curCol)

		col := ColumnDrift{
			Column:      name,
			KSStatistic: statistic,
			KSPValue:    pValue,
			PSI:         index,
			Drifted:     pValue < th.KSAlpha || index > th.PSIThreshold,
		}
		if col.Drifted {
			m.DriftedColumns++
		}
		m.Columns = append(m.Columns, col)
	}

	m.NumberOfColumns = len(m.Columns)
	m.DriftShare = float64(m.DriftedColumns) / float64(len(m.Columns))
	m.DriftDetected = m.DriftedColumns > 0
	m.ShouldRetrain = m.DriftShare >= th.RetrainShare
	return m, nil
}
