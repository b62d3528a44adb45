package serving

import (
	"fmt"
	"math"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
)

// Applicant is one scoring request: a value per feature, keyed by the
// canonical feature names.
type Applicant map[string]float64

// Prediction is the scoring response for one applicant. Prediction is the
// thresholded class (0 approved, 1 declined), Probability the raw default
// probability behind it.
type Prediction struct {
	Prediction   int     `json:"prediction"`
	Probability  float64 `json:"probability"`
	RiskLevel    string  `json:"risk_level"`
	Timestamp    string  `json:"timestamp"`
	ModelVersion string  `json:"model_version"`
}

// BatchRequest wraps multiple applications.
type BatchRequest struct {
	Applications []Applicant `json:"applications"`
}

// BatchResponse returns per-application predictions in request order.
type BatchResponse struct {
	Predictions []Prediction `json:"predictions"`
	BatchSize   int          `json:"batch_size"`
}

// featureRow validates an applicant against the canonical ranges and returns
// the raw feature vector in model order.
func featureRow(a Applicant) ([]float64, error) {
	if len(a) == 0 {
		return nil, fmt.Errorf("request has no features")
	}
	row := make([]float64, len(dataset.FeatureNames))
	for i, name := range dataset.FeatureNames {
		value, ok := a[name]
		if !ok {
			return nil, fmt.Errorf("missing feature %q", name)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf("feature %q is not finite", name)
		}
		bounds, ok := dataset.ValidationRanges[name]
		if ok && (value < bounds.Min || value > bounds.Max) {
			return nil, fmt.Errorf("feature %q value %v outside [%v, %v]", name, value, bounds.Min, bounds.Max)
		}
		row[i] = value
	}
	for name := range a {
		if _, ok := dataset.ValidationRanges[name]; !ok {
			return nil, fmt.Errorf("unknown feature %q", name)
		}
	}
	return row, nil
}

// riskLevel maps a default probability onto the configured bands.
func riskLevel(probability float64, thresholds []float64) string {
	if len(thresholds) != 2 {
		thresholds = []float64{0.3, 0.7}
	}
	switch {
	case probability < thresholds[0]:
		return "low"
	case probability < thresholds[1]:
		return "medium"
	default:
		return "high"
	}
}
