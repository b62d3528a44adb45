package dataset

import (
	"errors"
	"fmt"
	"math"
)

// Dataset holds feature rows and binary default labels.
type Dataset struct {
	Columns []string
	X       [][]float64
	Y       []int
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.X)
}

// PositiveRate returns the share of rows labeled as defaults.
func (d *Dataset) PositiveRate() float64 {
	if d.Len() == 0 {
		return 0
	}
	positives := 0
	for _, y := range d.Y {
		if y == 1 {
			positives++
		}
	}
	return float64(positives) / float64(len(d.Y))
}

// Column extracts a single feature column by name.
func (d *Dataset) Column(name string) ([]float64, error) {
	idx := -1
	for i, col := range d.Columns {
		if col == name {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("unknown column %q", name)
	}
	values := make([]float64, len(d.X))
	for i, row := range d.X {
		values[i] = row[idx]
	}
	return values, nil
}

// Validate runs data quality checks before training: minimum row count, no
// missing values, consistent row width, and a target balance that leaves both
// classes represented.
func (d *Dataset) Validate(minSamples int) error {
	if d.Len() < minSamples {
		return fmt.Errorf("dataset has %d rows, need at least %d", d.Len(), minSamples)
	}
	if len(d.X) != len(d.Y) {
		return fmt.Errorf("feature rows (%d) and labels (%d) differ", len(d.X), len(d.Y))
	}
	width := len(d.Columns)
	if width == 0 {
		return errors.New("dataset has no columns")
	}
	for i, row := range d.X {
		if len(row) != width {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), width)
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("row %d column %s has invalid value", i, d.Columns[j])
			}
		}
	}
	rate := d.PositiveRate()
	if rate < 0.1 || rate > 0.9 {
		return fmt.Errorf("target balance %.3f outside [0.1, 0.9]", rate)
	}
	return nil
}
