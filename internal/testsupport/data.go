package testsupport

import (
	"testing"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
)

// SmallDataset generates a compact synthetic reference dataset for tests.
func SmallDataset(t testing.TB, samples int) *dataset.Dataset {
	t.Helper()
	return dataset.Generate(dataset.ReferenceParams(samples))
}

// WriteDataset persists a generated dataset as CSV and returns nothing; the
// caller owns the path.
func WriteDataset(t testing.TB, ds *dataset.Dataset, path string) {
	t.Helper()
	if err := dataset.SaveCSV(ds, path); err != nil {
		t.Fatalf("save dataset: %v", err)
	}
}
