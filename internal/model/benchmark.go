package model

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// LatencyStats summarizes per-call inference latency over a benchmark run.
type LatencyStats struct {
	MeanMs       float64 `json:"mean_ms"`
	StdMs        float64 `json:"std_ms"`
	MinMs        float64 `json:"min_ms"`
	MaxMs        float64 `json:"max_ms"`
	MedianMs     float64 `json:"median_ms"`
	P95Ms        float64 `json:"p95_ms"`
	P99Ms        float64 `json:"p99_ms"`
	PerSecond    float64 `json:"throughput_per_second"`
	Iterations   int     `json:"iterations"`
	RowsPerBatch int     `json:"rows_per_batch"`
}

// OptimizationReport compares the float and int8 artifacts after
// quantization: file sizes, prediction agreement, and latency.
type OptimizationReport struct {
	ModelVersion     string       `json:"model_version"`
	CreatedAt        time.Time    `json:"created_at"`
	FloatSizeBytes   int64        `json:"float_size_bytes"`
	QuantSizeBytes   int64        `json:"quantized_size_bytes"`
	CompressionRatio float64      `json:"compression_ratio"`
	Correlation      float64      `json:"prediction_correlation"`
	FloatLatency     LatencyStats `json:"float_latency"`
	QuantLatency     LatencyStats `json:"quantized_latency"`
	Speedup          float64      `json:"speedup"`
}

// Predictor is the scoring surface shared by the float and int8 artifacts.
type Predictor interface {
	Predict(row []float64) (float64, error)
	PredictBatch(rows [][]float64) ([]float64, error)
}

// Benchmark times batch scoring over the sample rows for the given number of
// iterations and summarizes the per-iteration latency distribution.
func Benchmark(p Predictor, rows [][]float64, iterations int) (LatencyStats, error) {
	if iterations <= 0 {
		return LatencyStats{}, fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	if len(rows) == 0 {
		return LatencyStats{}, fmt.Errorf("no sample rows to benchmark")
	}

	// Warm-up pass, excluded from timing.
	if _, err := p.PredictBatch(rows); err != nil {
		return LatencyStats{}, fmt.Errorf("warm-up pass: %w", err)
	}

	samples := make([]float64, iterations)
	for i := 0; i < iterations; i++ {
		start := time.Now()
		if _, err := p.PredictBatch(rows); err != nil {
			return LatencyStats{}, fmt.Errorf("iteration %d: %w", i, err)
		}
		samples[i] = float64(time.Since(start).Nanoseconds()) / 1e6
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(samples, nil)
	if math.IsNaN(std) {
		std = 0
	}
	stats := LatencyStats{
		MeanMs:       mean,
		StdMs:        std,
		MinMs:        sorted[0],
		MaxMs:        sorted[len(sorted)-1],
		MedianMs:     percentile(sorted, 0.50),
		P95Ms:        percentile(sorted, 0.95),
		P99Ms:        percentile(sorted, 0.99),
		Iterations:   iterations,
		RowsPerBatch: len(rows),
	}
	if mean > 0 {
		stats.PerSecond = float64(len(rows)) / (mean / 1000)
	}
	return stats, nil
}

// Save writes the report as indented JSON for human inspection.
func (r *OptimizationReport) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal optimization report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write optimization report: %w", err)
	}
	return nil
}

// percentile reads from a sorted sample with nearest-rank interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
