package model

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/dataset"
	"github.com/kal4shnikova/credit-scoring-mlops/internal/nn"
)

func testNetwork(t *testing.T) *nn.Network {
	t.Helper()
	net := nn.NewNetwork(4, []int{8, 4}, 0.3, 42)
	// Non-trivial running statistics so folding actually has work to do.
	for _, layer := range net.Layers[:len(net.Layers)-1] {
		for j := range layer.RunMean {
			layer.RunMean[j] = 0.1 * float64(j+1)
			layer.RunVar[j] = 1 + 0.05*float64(j)
			layer.Gamma[j] = 1.1
			layer.Beta[j] = -0.05
		}
	}
	return net
}

func testFeatureNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = dataset.FeatureNames[i]
	}
	return names
}

func sampleRows(n, width int) [][]float64 {
	rows := make([][]float64, n)
	for i := range rows {
		row := make([]float64, width)
		for j := range row {
			row[j] = math.Sin(float64(i*width+j)) * 1.5
		}
		rows[i] = row
	}
	return rows
}

func TestFromNetworkMatchesInference(t *testing.T) {
	net := testNetwork(t)
	m, err := FromNetwork(net, "20260823120000", testFeatureNames(4))
	if err != nil {
		t.Fatalf("FromNetwork: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	for _, row := range sampleRows(20, 4) {
		want, err := net.Predict(row)
		if err != nil {
			t.Fatalf("network Predict: %v", err)
		}
		got, err := m.Predict(row)
		if err != nil {
			t.Fatalf("model Predict: %v", err)
		}
		if math.Abs(want-got) > 1e-9 {
			t.Fatalf("folded model predicts %v, network %v", got, want)
		}
	}
}

func TestConversionDifferenceFlagsDivergence(t *testing.T) {
	net := testNetwork(t)
	m, err := FromNetwork(net, "20260823120000", testFeatureNames(4))
	if err != nil {
		t.Fatalf("FromNetwork: %v", err)
	}

	rows := sampleRows(50, 4)
	diff, err := ConversionDifference(net, m, rows)
	if err != nil {
		t.Fatalf("ConversionDifference: %v", err)
	}
	if diff > 1e-9 {
		t.Errorf("faithful conversion differs by %v", diff)
	}

	// A corrupted output bias must push the probabilities apart.
	m.Layers[len(m.Layers)-1].Bias[0] += 2.0
	diff, err = ConversionDifference(net, m, rows)
	if err != nil {
		t.Fatalf("ConversionDifference after corruption: %v", err)
	}
	if diff < 1e-3 {
		t.Errorf("corrupted artifact differs by only %v", diff)
	}

	if _, err := ConversionDifference(net, m, nil); err == nil {
		t.Error("expected error for empty sample batch")
	}
}

func TestFromNetworkRejectsNameMismatch(t *testing.T) {
	net := testNetwork(t)
	if _, err := FromNetwork(net, "v", []string{"age"}); err == nil {
		t.Error("expected error for feature name count mismatch")
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	net := testNetwork(t)
	m, err := FromNetwork(net, "20260823120000", testFeatureNames(4))
	if err != nil {
		t.Fatalf("FromNetwork: %v", err)
	}

	path := filepath.Join(t.TempDir(), "models", "credit_scoring_model.json")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ModelVersion != m.ModelVersion {
		t.Errorf("model version %q, want %q", loaded.ModelVersion, m.ModelVersion)
	}

	row := []float64{0.5, -0.3, 1.1, 0.0}
	want, _ := m.Predict(row)
	got, err := loaded.Predict(row)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if math.Abs(want-got) > 1e-12 {
		t.Errorf("loaded model predicts %v, original %v", got, want)
	}
}

func TestValidateCatchesStructuralDamage(t *testing.T) {
	net := testNetwork(t)
	base, err := FromNetwork(net, "v", testFeatureNames(4))
	if err != nil {
		t.Fatalf("FromNetwork: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(m *Model)
	}{
		{"wrong format", func(m *Model) { m.Format = "other" }},
		{"no layers", func(m *Model) { m.Layers = nil }},
		{"ragged row", func(m *Model) { m.Layers[1].Weights[0] = []float64{1} }},
		{"nan weight", func(m *Model) { m.Layers[0].Weights[0][0] = math.NaN() }},
		{"bias mismatch", func(m *Model) { m.Layers[0].Bias = m.Layers[0].Bias[:1] }},
		{"unknown activation", func(m *Model) { m.Layers[0].Activation = "tanh" }},
		{"relu output", func(m *Model) { m.Layers[len(m.Layers)-1].Activation = ActivationReLU }},
		{"sigmoid hidden", func(m *Model) { m.Layers[0].Activation = ActivationSigmoid }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			copied := *base
			copied.Layers = make([]DenseLayer, len(base.Layers))
			for i, layer := range base.Layers {
				weights := make([][]float64, len(layer.Weights))
				for r, row := range layer.Weights {
					weights[r] = append([]float64(nil), row...)
				}
				copied.Layers[i] = DenseLayer{
					Weights:    weights,
					Bias:       append([]float64(nil), layer.Bias...),
					Activation: layer.Activation,
				}
			}
			tc.mutate(&copied)
			if err := copied.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestQuantizeTracksFloatModel(t *testing.T) {
	net := testNetwork(t)
	m, err := FromNetwork(net, "v", testFeatureNames(4))
	if err != nil {
		t.Fatalf("FromNetwork: %v", err)
	}
	q, err := Quantize(m)
	if err != nil {
		t.Fatalf("Quantize: %v", err)
	}

	rows := sampleRows(200, 4)
	corr, err := PredictionCorrelation(m, q, rows)
	if err != nil {
		t.Fatalf("PredictionCorrelation: %v", err)
	}
	if corr < 0.99 {
		t.Errorf("prediction correlation %v, want >= 0.99", corr)
	}

	for _, layer := range q.Layers {
		for r, row := range layer.Weights {
			if layer.Scales[r] <= 0 {
				t.Fatalf("scale %v must be positive", layer.Scales[r])
			}
			for _, w := range row {
				if w < -127 || w > 127 {
					t.Fatalf("quantized weight %d out of int8 symmetric range", w)
				}
			}
		}
	}
}

func TestQuantizedRoundTrip(t *testing.T) {
	net := testNetwork(t)
	m, err := FromNetwork(net, "v", testFeatureNames(4))
	if err != nil {
		t.Fatalf("FromNetwork: %v", err)
	}
	q, err := Quantize(m)
	if err != nil {
		t.Fatalf("Quantize: %v", err)
	}

	path := filepath.Join(t.TempDir(), "credit_scoring_model_quantized.json")
	if err := q.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := LoadQuantized(path)
	if err != nil {
		t.Fatalf("LoadQuantized: %v", err)
	}

	row := []float64{0.2, -0.7, 0.4, 1.3}
	want, _ := q.Predict(row)
	got, err := loaded.Predict(row)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if math.Abs(want-got) > 1e-12 {
		t.Errorf("loaded quantized model predicts %v, original %v", got, want)
	}
}

func TestBenchmarkStats(t *testing.T) {
	net := testNetwork(t)
	m, err := FromNetwork(net, "v", testFeatureNames(4))
	if err != nil {
		t.Fatalf("FromNetwork: %v", err)
	}

	stats, err := Benchmark(m, sampleRows(10, 4), 5)
	if err != nil {
		t.Fatalf("Benchmark: %v", err)
	}
	if stats.Iterations != 5 || stats.RowsPerBatch != 10 {
		t.Errorf("unexpected shape: %+v", stats)
	}
	if stats.MinMs < 0 || stats.MaxMs < stats.MinMs {
		t.Errorf("inconsistent min/max: %+v", stats)
	}
	if stats.MeanMs <= 0 || stats.PerSecond <= 0 {
		t.Errorf("mean and throughput must be positive: %+v", stats)
	}
	if stats.P95Ms > stats.MaxMs || stats.MedianMs > stats.P95Ms+1e-9 {
		t.Errorf("percentiles out of order: %+v", stats)
	}

	if _, err := Benchmark(m, nil, 5); err == nil {
		t.Error("expected error for empty sample rows")
	}
	if _, err := Benchmark(m, sampleRows(2, 4), 0); err == nil {
		t.Error("expected error for zero iterations")
	}
}
