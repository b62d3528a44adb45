package model

import (
	"fmt"
	"math"
	"time"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/nn"
)

const bnEpsilon = 1e-5

// FromNetwork converts a trained network into the inference artifact. Batch
// normalization is folded into each hidden layer's weights and bias using the
// running statistics, and dropout is discarded since inference never applies
// it. The resulting chain is plain dense layers with ReLU activations and a
// sigmoid output, numerically equivalent to the network's inference pass.
func FromNetwork(net *nn.Network, modelVersion string, featureNames []string) (*Model, error) {
	if net == nil || len(net.Layers) == 0 {
		return nil, fmt.Errorf("network has no layers")
	}
	if len(featureNames) != net.InputSize {
		return nil, fmt.Errorf("%d feature names for input size %d", len(featureNames), net.InputSize)
	}

	m := &Model{
		Format:       artifactFormat,
		Version:      artifactVersion,
		ModelVersion: modelVersion,
		CreatedAt:    time.Now().UTC(),
		InputSize:    net.InputSize,
		FeatureNames: append([]string(nil), featureNames...),
		Layers:       make([]DenseLayer, len(net.Layers)),
	}

	for i, layer := range net.Layers {
		out, in := layer.W.Dims()
		last := i == len(net.Layers)-1

		weights := make([][]float64, out)
		bias := make([]float64, out)
		for r := 0; r < out; r++ {
			row := make([]float64, in)
			scale := 1.0
			shift := 0.0
			if !last {
				// y = gamma * (Wx + b - mean) / sqrt(var + eps) + beta
				// folds to y = (gamma/sd) * Wx + (gamma*(b-mean)/sd + beta).
				sd := math.Sqrt(layer.RunVar[r] + bnEpsilon)
				scale = layer.Gamma[r] / sd
				shift = layer.Gamma[r]*(layer.B[r]-layer.RunMean[r])/sd + layer.Beta[r]
			} else {
				shift = layer.B[r]
			}
			for c := 0; c < in; c++ {
				row[c] = layer.W.At(r, c) * scale
			}
			weights[r] = row
			bias[r] = shift
		}

		activation := ActivationReLU
		if last {
			activation = ActivationSigmoid
		}
		m.Layers[i] = DenseLayer{Weights: weights, Bias: bias, Activation: activation}
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("converted model failed validation: %w", err)
	}
	return m, nil
}

// ConversionDifference scores the sample rows with both the checkpoint
// network and the folded artifact and returns the maximum absolute
// difference between the probability vectors. Since folding is exact
// algebra, anything beyond float rounding indicates a conversion bug.
func ConversionDifference(net *nn.Network, m *Model, rows [][]float64) (float64, error) {
	if len(rows) == 0 {
		return 0, fmt.Errorf("need at least 1 sample row")
	}
	netProbs, err := net.PredictBatch(rows)
	if err != nil {
		return 0, fmt.Errorf("network predictions: %w", err)
	}
	artifactProbs, err := m.PredictBatch(rows)
	if err != nil {
		return 0, fmt.Errorf("artifact predictions: %w", err)
	}
	maxDiff := 0.0
	for i := range netProbs {
		if diff := math.Abs(netProbs[i] - artifactProbs[i]); diff > maxDiff {
			maxDiff = diff
		}
	}
	return maxDiff, nil
}
