package nn

import (
	"context"
	"math"
	"os"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}

// separableSet builds a linearly separable two-cluster problem that a small
// network should fit easily.
func separableSet(n int, seed uint64) ([][]float64, []int) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]int, n)
	for i := 0; i < n; i++ {
		label := i % 2
		center := -1.0
		if label == 1 {
			center = 1.0
		}
		row := make([]float64, 4)
		for j := range row {
			row[j] = center + rng.NormFloat64()*0.3
		}
		x[i] = row
		y[i] = label
	}
	return x, y
}

func TestTrainReducesLoss(t *testing.T) {
	trainX, trainY := separableSet(400, 1)
	valX, valY := separableSet(100, 2)

	net := NewNetwork(4, []int{16, 8}, 0.2, 42)
	cfg := TrainConfig{Epochs: 20, BatchSize: 32, LearningRate: 0.005, Seed: 42}
	best, history, err := Train(context.Background(), net, trainX, trainY, valX, valY, cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(history.TrainLoss) != cfg.Epochs {
		t.Fatalf("expected %d epochs of history, got %d", cfg.Epochs, len(history.TrainLoss))
	}
	first, last := history.TrainLoss[0], history.TrainLoss[len(history.TrainLoss)-1]
	if last >= first {
		t.Errorf("training loss did not decrease: first %v, last %v", first, last)
	}

	_, acc := Evaluate(best, valX, valY)
	if acc < 0.9 {
		t.Errorf("validation accuracy %v on separable data, want >= 0.9", acc)
	}
	if history.BestEpoch < 1 || history.BestEpoch > cfg.Epochs {
		t.Errorf("best epoch %d out of range", history.BestEpoch)
	}
	if math.IsNaN(history.BestValLoss) || math.IsInf(history.BestValLoss, 0) {
		t.Errorf("best validation loss is not finite: %v", history.BestValLoss)
	}
}

func TestTrainHonorsContextCancellation(t *testing.T) {
	trainX, trainY := separableSet(200, 1)
	valX, valY := separableSet(50, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	net := NewNetwork(4, []int{8}, 0.2, 42)
	cfg := TrainConfig{Epochs: 10, BatchSize: 32, LearningRate: 0.005, Seed: 42}
	if _, _, err := Train(ctx, net, trainX, trainY, valX, valY, cfg, logging.NewNop()); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestEvaluateOnKnownPredictions(t *testing.T) {
	trainX, trainY := separableSet(400, 3)
	net := NewNetwork(4, []int{16}, 0.0, 42)
	cfg := TrainConfig{Epochs: 15, BatchSize: 32, LearningRate: 0.005, Seed: 42}
	best, _, err := Train(context.Background(), net, trainX, trainY, trainX, trainY, cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	loss, acc := Evaluate(best, trainX, trainY)
	if loss <= 0 {
		t.Errorf("loss %v should be positive", loss)
	}
	if acc < 0.9 {
		t.Errorf("training-set accuracy %v, want >= 0.9", acc)
	}
}

func TestComputeMetrics(t *testing.T) {
	probs := []float64{0.9, 0.8, 0.3, 0.2, 0.6, 0.1}
	labels := []int{1, 1, 0, 0, 0, 1}

	m := ComputeMetrics(probs, labels)
	// Predictions at 0.5: 1 1 0 0 1 0 -> tp=2 fp=1 tn=2 fn=1.
	if math.Abs(m.Accuracy-4.0/6.0) > 1e-9 {
		t.Errorf("accuracy %v, want %v", m.Accuracy, 4.0/6.0)
	}
	if math.Abs(m.Precision-2.0/3.0) > 1e-9 {
		t.Errorf("precision %v, want %v", m.Precision, 2.0/3.0)
	}
	if math.Abs(m.Recall-2.0/3.0) > 1e-9 {
		t.Errorf("recall %v, want %v", m.Recall, 2.0/3.0)
	}
	if math.Abs(m.F1-2.0/3.0) > 1e-9 {
		t.Errorf("f1 %v, want %v", m.F1, 2.0/3.0)
	}
}

func TestAUC(t *testing.T) {
	perfect := AUC([]float64{0.9, 0.8, 0.2, 0.1}, []int{1, 1, 0, 0})
	if math.Abs(perfect-1.0) > 1e-9 {
		t.Errorf("perfect ranking AUC %v, want 1", perfect)
	}

	inverted := AUC([]float64{0.1, 0.2, 0.8, 0.9}, []int{1, 1, 0, 0})
	if math.Abs(inverted) > 1e-9 {
		t.Errorf("inverted ranking AUC %v, want 0", inverted)
	}

	// All probabilities tied: AUC is 0.5 by midrank convention.
	tied := AUC([]float64{0.5, 0.5, 0.5, 0.5}, []int{1, 0, 1, 0})
	if math.Abs(tied-0.5) > 1e-9 {
		t.Errorf("tied ranking AUC %v, want 0.5", tied)
	}

	if got := AUC([]float64{0.5}, []int{1}); got != 0 {
		t.Errorf("single-class AUC %v, want 0", got)
	}
}
