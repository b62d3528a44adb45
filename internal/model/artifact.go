package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

const (
	artifactFormat  = "credit-scoring-model"
	artifactVersion = 1

	// ActivationReLU and ActivationSigmoid name the supported layer
	// activations in the artifact format.
	ActivationReLU    = "relu"
	ActivationSigmoid = "sigmoid"
)

// DenseLayer is a fully connected layer in the inference artifact. Batch
// normalization has already been folded into the weights and bias.
type DenseLayer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

// Model is the portable float32-precision inference artifact produced by the
// conversion stage. It carries only what serving needs: the dense layer chain
// and the feature ordering inputs must follow.
type Model struct {
	Format       string       `json:"format"`
	Version      int          `json:"version"`
	ModelVersion string       `json:"model_version"`
	CreatedAt    time.Time    `json:"created_at"`
	InputSize    int          `json:"input_size"`
	FeatureNames []string     `json:"feature_names"`
	Layers       []DenseLayer `json:"layers"`
}

// Save writes the artifact as JSON, creating parent directories as needed.
func (m *Model) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create model directory: %w", err)
		}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write model: %w", err)
	}
	return nil
}

// Load reads and structurally validates a model artifact.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("model %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks the artifact's structural integrity: format and version,
// a consistent layer chain, known activations, a single sigmoid output, and
// finite parameters throughout.
func (m *Model) Validate() error {
	if m.Format != artifactFormat {
		return fmt.Errorf("format %q, expected %q", m.Format, artifactFormat)
	}
	if m.Version != artifactVersion {
		return fmt.Errorf("version %d, expected %d", m.Version, artifactVersion)
	}
	if m.InputSize <= 0 {
		return fmt.Errorf("input size %d must be positive", m.InputSize)
	}
	if len(m.FeatureNames) != m.InputSize {
		return fmt.Errorf("%d feature names for input size %d", len(m.FeatureNames), m.InputSize)
	}
	if len(m.Layers) == 0 {
		return fmt.Errorf("model has no layers")
	}

	expectIn := m.InputSize
	for i, layer := range m.Layers {
		out := len(layer.Weights)
		if out == 0 {
			return fmt.Errorf("layer %d has no rows", i)
		}
		for r, row := range layer.Weights {
			if len(row) != expectIn {
				return fmt.Errorf("layer %d row %d has width %d, expected %d", i, r, len(row), expectIn)
			}
			for c, w := range row {
				if math.IsNaN(w) || math.IsInf(w, 0) {
					return fmt.Errorf("layer %d weight [%d][%d] is not finite", i, r, c)
				}
			}
		}
		if len(layer.Bias) != out {
			return fmt.Errorf("layer %d bias length %d, expected %d", i, len(layer.Bias), out)
		}
		for j, b := range layer.Bias {
			if math.IsNaN(b) || math.IsInf(b, 0) {
				return fmt.Errorf("layer %d bias [%d] is not finite", i, j)
			}
		}

		last := i == len(m.Layers)-1
		switch layer.Activation {
		case ActivationReLU:
			if last {
				return fmt.Errorf("output layer must use %s activation", ActivationSigmoid)
			}
		case ActivationSigmoid:
			if !last {
				return fmt.Errorf("layer %d: %s activation only allowed on the output layer", i, ActivationSigmoid)
			}
		default:
			return fmt.Errorf("layer %d has unknown activation %q", i, layer.Activation)
		}
		if last && out != 1 {
			return fmt.Errorf("output layer has width %d, expected 1", out)
		}
		expectIn = out
	}
	return nil
}

// Predict runs a forward pass on a single standardized feature row and
// returns the default probability.
func (m *Model) Predict(row []float64) (float64, error) {
	if len(row) != m.InputSize {
		return 0, fmt.Errorf("input has %d features, model expects %d", len(row), m.InputSize)
	}
	activation := row
	for _, layer := range m.Layers {
		next := make([]float64, len(layer.Weights))
		for j, weights := range layer.Weights {
			sum := layer.Bias[j]
			for k, w := range weights {
				sum += w * activation[k]
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

// PredictBatch scores every row with the float model.
func (m *Model) PredictBatch(rows [][]float64) ([]float64, error) {
	probs := make([]float64, len(rows))
	for i, row := range rows {
		p, err := m.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		probs[i] = p
	}
	return probs, nil
}

// ParameterCount returns the total number of weights and biases.
func (m *Model) ParameterCount() int {
	total := 0
	for _, layer := range m.Layers {
		for _, row := range layer.Weights {
			total += len(row)
		}
		total += len(layer.Bias)
	}
	return total
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
