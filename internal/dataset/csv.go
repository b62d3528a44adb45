package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// LoadCSV reads a dataset from a CSV file. The header must contain the
// feature columns; a trailing target column is optional.
func LoadCSV(path string) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("dataset %s has no data rows", path)
	}

	header := records[0]
	hasTarget := header[len(header)-1] == TargetName
	featureCount := len(header)
	if hasTarget {
		featureCount--
	}

	ds := &Dataset{
		Columns: append([]string(nil), header[:featureCount]...),
		X:       make([][]float64, 0, len(records)-1),
	}
	if hasTarget {
		ds.Y = make([]int, 0, len(records)-1)
	}

	for lineNo, record := range records[1:] {
		if len(record) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", lineNo+2, len(record), len(header))
		}
		row := make([]float64, featureCount)
		for i := 0; i < featureCount; i++ {
			value, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return nil, fmt.Errorf("row %d column %s: %w", lineNo+2, header[i], err)
			}
			row[i] = value
		}
		ds.X = append(ds.X, row)
		if hasTarget {
			label, err := strconv.Atoi(record[featureCount])
			if err != nil {
				return nil, fmt.Errorf("row %d target: %w", lineNo+2, err)
			}
			ds.Y = append(ds.Y, label)
		}
	}
	return ds, nil
}

// SaveCSV writes the dataset to a CSV file, including the target column when
// labels are present.
func SaveCSV(ds *Dataset, path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create dataset directory: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create dataset: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	hasTarget := len(ds.Y) == len(ds.X) && len(ds.Y) > 0

	header := append([]string(nil), ds.Columns...)
	if hasTarget {
		header = append(header, TargetName)
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, 0, len(header))
	for i, row := range ds.X {
		record = record[:0]
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if hasTarget {
			record = append(record, strconv.Itoa(ds.Y[i]))
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush dataset: %w", err)
	}
	return nil
}
