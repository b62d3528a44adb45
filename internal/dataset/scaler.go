package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes features to zero mean and unit variance. Parameters are
// fitted on training data only and persisted next to the model artifact so
// serving applies the identical transform.
type Scaler struct {
	Columns []string  `json:"columns"`
	Mean    []float64 `json:"mean"`
	Std     []float64 `json:"std"`
}

// FitScaler computes per-column mean and standard deviation.
func FitScaler(ds *Dataset) (*Scaler, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("cannot fit scaler on empty dataset")
	}
	width := len(ds.Columns)
	scaler := &Scaler{
		Columns: append([]string(nil), ds.Columns...),
		Mean:    make([]float64, width),
		Std:     make([]float64, width),
	}
	column := make([]float64, ds.Len())
	for j := 0; j < width; j++ {
		for i, row := range ds.X {
			column[i] = row[j]
		}
		mean, std := stat.MeanStdDev(column, nil)
		if std == 0 {
			std = 1
		}
		scaler.Mean[j] = mean
		scaler.Std[j] = std
	}
	return scaler, nil
}

// Transform standardizes a single row in place order of Columns.
func (s *Scaler) Transform(row []float64) ([]float64, error) {
	if len(row) != len(s.Mean) {
		return nil, fmt.Errorf("row has %d values, scaler expects %d", len(row), len(s.Mean))
	}
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Std[j]
	}
	return out, nil
}

// TransformAll standardizes every row of a dataset, returning a new matrix.
func (s *Scaler) TransformAll(ds *Dataset) ([][]float64, error) {
	out := make([][]float64, ds.Len())
	for i, row := range ds.X {
		scaled, err := s.Transform(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = scaled
	}
	return out, nil
}

// Save persists scaler parameters as JSON.
func (s *Scaler) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create scaler directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scaler: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write scaler: %w", err)
	}
	return nil
}

// LoadScaler reads scaler parameters from JSON.
func LoadScaler(path string) (*Scaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scaler: %w", err)
	}
	var scaler Scaler
	if err := json.Unmarshal(data, &scaler); err != nil {
		return nil, fmt.Errorf("parse scaler: %w", err)
	}
	if len(scaler.Mean) != len(scaler.Std) || len(scaler.Mean) == 0 {
		return nil, fmt.Errorf("scaler %s has inconsistent parameters", path)
	}
	return &scaler, nil
}
