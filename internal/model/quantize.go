package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	quantizedFormat  = "credit-scoring-model-int8"
	quantizedVersion = 1
)

// QuantizedLayer stores int8 weights with one symmetric scale per output row.
// Biases stay in float64 since they contribute little to artifact size.
type QuantizedLayer struct {
	Weights    [][]int8  `json:"weights"`
	Scales     []float64 `json:"scales"`
	Bias       []float64 `json:"bias"`
	Activation string    `json:"activation"`
}

// QuantizedModel is the int8 inference artifact. Dequantization happens per
// weight during the forward pass, so accuracy loss comes only from the 8-bit
// rounding of weights.
type QuantizedModel struct {
	Format       string           `json:"format"`
	Version      int              `json:"version"`
	ModelVersion string           `json:"model_version"`
	CreatedAt    time.Time        `json:"created_at"`
	InputSize    int              `json:"input_size"`
	FeatureNames []string         `json:"feature_names"`
	Layers       []QuantizedLayer `json:"layers"`
}

// Quantize converts a float model to int8 with symmetric per-row scales:
// each output row's weights map linearly onto [-127, 127] around zero.
func Quantize(m *Model) (*QuantizedModel, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("source model invalid: %w", err)
	}

	q := &QuantizedModel{
		Format:       quantizedFormat,
		Version:      quantizedVersion,
		ModelVersion: m.ModelVersion,
		CreatedAt:    time.Now().UTC(),
		InputSize:    m.InputSize,
		FeatureNames: append([]string(nil), m.FeatureNames...),
		Layers:       make([]QuantizedLayer, len(m.Layers)),
	}

	for i, layer := range m.Layers {
		out := len(layer.Weights)
		ql := QuantizedLayer{
			Weights:    make([][]int8, out),
			Scales:     make([]float64, out),
			Bias:       append([]float64(nil), layer.Bias...),
			Activation: layer.Activation,
		}
		for r, row := range layer.Weights {
			maxAbs := 0.0
			for _, w := range row {
				if abs := math.Abs(w); abs > maxAbs {
					maxAbs = abs
				}
			}
			scale := maxAbs / 127
			if scale == 0 {
				scale = 1
			}
			quantized := make([]int8, len(row))
			for c, w := range row {
				v := math.Round(w / scale)
				if v > 127 {
					v = 127
				} else if v < -127 {
					v = -127
				}
				quantized[c] = int8(v)
			}
			ql.Weights[r] = quantized
			ql.Scales[r] = scale
		}
		q.Layers[i] = ql
	}
	return q, nil
}

// Predict runs the dequantized forward pass on a single standardized row.
func (q *QuantizedModel) Predict(row []float64) (float64, error) {
	if len(row) != q.InputSize {
		return 0, fmt.Errorf("input has %d features, model expects %d", len(row), q.InputSize)
	}
	activation := row
	for _, layer := range q.Layers {
		next := make([]float64, len(layer.Weights))
		for j, weights := range layer.Weights {
			sum := layer.Bias[j]
			scale := layer.Scales[j]
			for k, w := range weights {
				sum += float64(w) * scale * activation[k]
			}
			if layer.Activation == ActivationReLU && sum < 0 {
				sum = 0
			}
			next[j] = sum
		}
		activation = next
	}
	return sigmoid(activation[0]), nil
}

// PredictBatch scores every row with the quantized model.
func (q *QuantizedModel) PredictBatch(rows [][]float64) ([]float64, error) {
	probs := make([]float64, len(rows))
	for i, row := range rows {
		p, err := q.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		probs[i] = p
	}
	return probs, nil
}

// Save writes the quantized artifact as JSON.
func (q *QuantizedModel) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model directory: %w", err)
		}
	}
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("marshal quantized model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write quantized model: %w", err)
	}
	return nil
}

// LoadQuantized reads a quantized artifact and checks its format header.
func LoadQuantized(path string) (*QuantizedModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quantized model: %w", err)
	}
	var q QuantizedModel
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("parse quantized model: %w", err)
	}
	if q.Format != quantizedFormat {
		return nil, fmt.Errorf("quantized model %s has format %q, expected %q", path, q.Format, quantizedFormat)
	}
	if q.Version != quantizedVersion {
		return nil, fmt.Errorf("quantized model %s has version %d, expected %d", path, q.Version, quantizedVersion)
	}
	return &q, nil
}

// PredictionCorrelation scores the sample rows with both artifacts and
// returns the Pearson correlation between the probability vectors. The
// quantization stage gates on this to catch accuracy regressions.
func PredictionCorrelation(m *Model, q *QuantizedModel, rows [][]float64) (float64, error) {
	if len(rows) < 2 {
		return 0, fmt.Errorf("need at least 2 sample rows, got %d", len(rows))
	}
	floatProbs, err := m.PredictBatch(rows)
	if err != nil {
		return 0, fmt.Errorf("float model predictions: %w", err)
	}
	quantProbs, err := q.PredictBatch(rows)
	if err != nil {
		return 0, fmt.Errorf("quantized model predictions: %w", err)
	}
	corr := stat.Correlation(floatProbs, quantProbs, nil)
	if math.IsNaN(corr) {
		// Constant predictions on either side; treat as full agreement
		// only when the vectors match exactly.
		for i := range floatProbs {
			if math.Abs(floatProbs[i]-quantProbs[i]) > 1e-9 {
				return 0, nil
			}
		}
		return 1, nil
	}
	return corr, nil
}
