package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const bnEpsilon = 1e-5

// Layer is a fully connected layer. Hidden layers carry batch normalization
// parameters; the output layer does not.
type Layer struct {
	// W has shape out x in, B has length out.
	W *mat.Dense
	B []float64

	// Batch normalization parameters, nil on the output layer.
	Gamma   []float64
	Beta    []float64
	RunMean []float64
	RunVar  []float64
}

// InputSize returns the layer's input width.
func (l *Layer) InputSize() int {
	_, c := l.W.Dims()
	return c
}

// OutputSize returns the layer's output width.
func (l *Layer) OutputSize() int {
	r, _ := l.W.Dims()
	return r
}

func (l *Layer) hasBatchNorm() bool {
	return len(l.Gamma) > 0
}

// Network is a multilayer perceptron for binary default prediction: dense
// layers with batch normalization, ReLU, and dropout, ending in a single
// sigmoid output.
type Network struct {
	InputSize int
	Hidden    []int
	Dropout   float64
	Layers    []*Layer
}

// NewNetwork initializes a network with He-initialized weights.
func NewNetwork(inputSize int, hidden []int, dropout float64, seed uint64) *Network {
	src := rand.NewSource(seed)
	sizes := append([]int{inputSize}, hidden...)
	sizes = append(sizes, 1)

	net := &Network{
		InputSize: inputSize,
		Hidden:    append([]int(nil), hidden...),
		Dropout:   dropout,
		Layers:    make([]*Layer, len(sizes)-1),
	}
	for i := 0; i < len(sizes)-1; i++ {
		in, out := sizes[i], sizes[i+1]
		dist := distuv.Normal{Mu: 0, Sigma: math.Sqrt(2.0 / float64(in)), Src: src}
		weights := make([]float64, out*in)
		for j := range weights {
			weights[j] = dist.Rand()
		}
		layer := &Layer{
			W: mat.NewDense(out, in, weights),
			B: make([]float64, out),
		}
		if i < len(sizes)-2 {
			layer.Gamma = onesSlice(out)
			layer.Beta = make([]float64, out)
			layer.RunMean = make([]float64, out)
			layer.RunVar = onesSlice(out)
		}
		net.Layers[i] = layer
	}
	return net
}

// Predict runs an inference forward pass on a single standardized row,
// returning the default probability. Batch normalization uses running
// statistics and dropout is disabled.
func (n *Network) Predict(row []float64) (float64, error) {
	if len(row) != n.InputSize {
		return 0, fmt.Errorf("input has %d features, network expects %d", len(row), n.InputSize)
	}
	activation := append([]float64(nil), row...)
	for i, layer := range n.Layers {
		out := layer.OutputSize()
		next := make([]float64, out)
		for j := 0; j < out; j++ {
			sum := layer.B[j]
			for k := 0; k < layer.InputSize(); k++ {
				sum += layer.W.At(j, k) * activation[k]
			}
			next[j] = sum
		}
		if layer.hasBatchNorm() {
			for j := 0; j < out; j++ {
				xhat := (next[j] - layer.RunMean[j]) / math.Sqrt(layer.RunVar[j]+bnEpsilon)
				next[j] = layer.Gamma[j]*xhat + layer.Beta[j]
			}
		}
		if i < len(n.Layers)-1 {
			for j := range next {
				if next[j] < 0 {
					next[j] = 0
				}
			}
		} else {
			for j := range next {
				next[j] = sigmoid(next[j])
			}
		}
		activation = next
	}
	return activation[0], nil
}

// PredictBatch scores every row, returning default probabilities.
func (n *Network) PredictBatch(rows [][]float64) ([]float64, error) {
	probs := make([]float64, len(rows))
	for i, row := range rows {
		p, err := n.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		probs[i] = p
	}
	return probs, nil
}

// Clone returns a deep copy of the network parameters.
func (n *Network) Clone() *Network {
	clone := &Network{
		InputSize: n.InputSize,
		Hidden:    append([]int(nil), n.Hidden...),
		Dropout:   n.Dropout,
		Layers:    make([]*Layer, len(n.Layers)),
	}
	for i, layer := range n.Layers {
		cl := &Layer{
			W: mat.DenseCopyOf(layer.W),
			B: append([]float64(nil), layer.B...),
		}
		if layer.hasBatchNorm() {
			cl.Gamma = append([]float64(nil), layer.Gamma...)
			cl.Beta = append([]float64(nil), layer.Beta...)
			cl.RunMean = append([]float64(nil), layer.RunMean...)
			cl.RunVar = append([]float64(nil), layer.RunVar...)
		}
		clone.Layers[i] = cl
	}
	return clone
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func onesSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = 1
	}
	return s
}
