package nn

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

const (
	checkpointFormat  = "scorecard-checkpoint"
	checkpointVersion = 1
)

type checkpointLayer struct {
	Weights     [][]float64 `json:"weights"`
	Bias        []float64   `json:"bias"`
	Gamma       []float64   `json:"gamma,omitempty"`
	Beta        []float64   `json:"beta,omitempty"`
	RunningMean []float64   `json:"running_mean,omitempty"`
	RunningVar  []float64   `json:"running_var,omitempty"`
}

type checkpointFile struct {
	Format    string            `json:"format"`
	Version   int               `json:"version"`
	InputSize int               `json:"input_size"`
	Hidden    []int             `json:"hidden"`
	Dropout   float64           `json:"dropout"`
	Layers    []checkpointLayer `json:"layers"`
}

// SaveCheckpoint persists the full training-state network as JSON, including
// batch normalization running statistics.
func SaveCheckpoint(net *Network, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint directory: %w", err)
		}
	}

	file := checkpointFile{
		Format:    checkpointFormat,
		Version:   checkpointVersion,
		InputSize: net.InputSize,
		Hidden:    net.Hidden,
		Dropout:   net.Dropout,
		Layers:    make([]checkpointLayer, len(net.Layers)),
	}
	for i, layer := range net.Layers {
		out, in := layer.W.Dims()
		weights := make([][]float64, out)
		for r := 0; r < out; r++ {
			row := make([]float64, in)
			for c := 0; c < in; c++ {
				row[c] = layer.W.At(r, c)
			}
			weights[r] = row
		}
		file.Layers[i] = checkpointLayer{
			Weights:     weights,
			Bias:        layer.B,
			Gamma:       layer.Gamma,
			Beta:        layer.Beta,
			RunningMean: layer.RunMean,
			RunningVar:  layer.RunVar,
		}
	}

	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint restores a network from a checkpoint file.
func LoadCheckpoint(path string) (*Network, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var file checkpointFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	if file.Format != checkpointFormat {
		return nil, fmt.Errorf("checkpoint %s has format %q, expected %q", path, file.Format, checkpointFormat)
	}
	if file.Version != checkpointVersion {
		return nil, fmt.Errorf("checkpoint %s has version %d, expected %d", path, file.Version, checkpointVersion)
	}
	if len(file.Layers) == 0 {
		return nil, fmt.Errorf("checkpoint %s has no layers", path)
	}

	net := &Network{
		InputSize: file.InputSize,
		Hidden:    file.Hidden,
		Dropout:   file.Dropout,
		Layers:    make([]*Layer, len(file.Layers)),
	}
	for i, cl := range file.Layers {
		out := len(cl.Weights)
		if out == 0 {
			return nil, fmt.Errorf("checkpoint layer %d is empty", i)
		}
		in := len(cl.Weights[0])
		flat := make([]float64, 0, out*in)
		for _, row := range cl.Weights {
			if len(row) != in {
				return nil, fmt.Errorf("checkpoint layer %d has ragged weights", i)
			}
			flat = append(flat, row...)
		}
		if len(cl.Bias) != out {
			return nil, fmt.Errorf("checkpoint layer %d bias length mismatch", i)
		}
		net.Layers[i] = &Layer{
			W:       mat.NewDense(out, in, flat),
			B:       cl.Bias,
			Gamma:   cl.Gamma,
			Beta:    cl.Beta,
			RunMean: cl.RunningMean,
			RunVar:  cl.RunningVar,
		}
	}
	return net, nil
}
