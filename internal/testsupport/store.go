package testsupport

import (
	"context"
	"testing"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/config"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/pipeline"
)

// MustOpenStore opens a pipeline.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *pipeline.Store {
	t.Helper()

	store, err := pipeline.Open(cfg)
	if err != nil {
		t.Fatalf("pipeline.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRun creates a pipeline run for tests using the provided store.
func NewRun(t testing.TB, store *pipeline.Store, modelVersion, trigger string) *pipeline.Run {
	t.Helper()

	run, err := store.NewRun(context.Background(), modelVersion, trigger)
	if err != nil {
		t.Fatalf("store.NewRun: %v", err)
	}
	return run
}
