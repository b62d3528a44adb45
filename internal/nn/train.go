package nn

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/exp/rand"

	"github.com/kal4shnikova/credit-scoring-mlops/internal/logging"
)

// TrainConfig controls the optimization loop.
type TrainConfig struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         uint64
}

// History records per-epoch metrics from a training run.
type History struct {
	TrainLoss   []float64
	ValLoss     []float64
	ValAccuracy []float64
	BestEpoch   int
	BestValLoss float64
}

type adamState struct {
	step int
	mW   [][]float64
	vW   [][]float64
	mB   [][]float64
	vB   [][]float64
	mG   [][]float64
	vG   [][]float64
	mBe  [][]float64
	vBe  [][]float64
}

const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
	bnMomentum  = 0.1
)

// Train optimizes the network with minibatch Adam against binary
// cross-entropy, evaluating on the validation set after every epoch and
// returning the parameters from the best validation epoch.
func Train(ctx context.Context, net *Network, trainX [][]float64, trainY []int, valX [][]float64, valY []int, cfg TrainConfig, logger *slog.Logger) (*Network, *History, error) {
	if len(trainX) == 0 || len(trainX) != len(trainY) {
		return nil, nil, fmt.Errorf("training data has %d rows and %d labels", len(trainX), len(trainY))
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	opt := newAdamState(net)

	history := &History{BestValLoss: math.Inf(1)}
	best := net.Clone()

	indices := make([]int, len(trainX))
	for i := range indices {
		indices[i] = i
	}

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		rng.Shuffle(len(indices), func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

		epochLoss := 0.0
		batches := 0
		for start := 0; start < len(indices); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(indices) {
				end = len(indices)
			}
			batch := indices[start:end]
			x := make([][]float64, len(batch))
			y := make([]float64, len(batch))
			for i, idx := range batch {
				x[i] = trainX[idx]
				y[i] = float64(trainY[idx])
			}
			loss := trainBatch(net, opt, x, y, cfg.LearningRate, rng)
			epochLoss += loss
			batches++
		}
		epochLoss /= float64(batches)

		valLoss, valAcc := Evaluate(net, valX, valY)
		history.TrainLoss = append(history.TrainLoss, epochLoss)
		history.ValLoss = append(history.ValLoss, valLoss)
		history.ValAccuracy = append(history.ValAccuracy, valAcc)

		if valLoss < history.BestValLoss {
			history.BestValLoss = valLoss
			history.BestEpoch = epoch
			best = net.Clone()
		}

		if epoch == 1 || epoch%10 == 0 || epoch == cfg.Epochs {
			logger.Info("epoch finished",
				logging.Int("epoch", epoch),
				logging.Float64("train_loss", epochLoss),
				logging.Float64("val_loss", valLoss),
				logging.Float64("val_accuracy", valAcc),
			)
		}
	}

	return best, history, nil
}

// Evaluate computes mean binary cross-entropy and accuracy on a labeled set.
func Evaluate(net *Network, x [][]float64, y []int) (loss float64, accuracy float64) {
	if len(x) == 0 {
		return 0, 0
	}
	correct := 0
	for i, row := range x {
		p, err := net.Predict(row)
		if err != nil {
			continue
		}
		loss += bceLoss(p, float64(y[i]))
		if (p >= 0.5) == (y[i] == 1) {
			correct++
		}
	}
	loss /= float64(len(x))
	accuracy = float64(correct) / float64(len(x))
	return loss, accuracy
}

func bceLoss(p, y float64) float64 {
	const eps = 1e-12
	p = math.Min(math.Max(p, eps), 1-eps)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

type layerCache struct {
	input     [][]float64
	z         [][]float64
	xhat      [][]float64
	batchMean []float64
	batchVar  []float64
	bnOut     [][]float64
	dropMask  [][]float64
	output    [][]float64
}

// trainBatch runs one forward/backward pass and applies Adam updates,
// returning the mean batch loss.
func trainBatch(net *Network, opt *adamState, x [][]float64, y []float64, lr float64, rng *rand.Rand) float64 {
	m := len(x)
	caches := make([]*layerCache, len(net.Layers))

	activation := x
	for li, layer := range net.Layers {
		cache := &layerCache{input: activation}
		out := layer.OutputSize()
		in := layer.InputSize()

		z := make([][]float64, m)
		for i := 0; i < m; i++ {
			row := make([]float64, out)
			for j := 0; j < out; j++ {
				sum := layer.B[j]
				for k := 0; k < in; k++ {
					sum += layer.W.At(j, k) * activation[i][k]
				}
				row[j] = sum
			}
			z[i] = row
		}
		cache.z = z

		current := z
		if layer.hasBatchNorm() {
			mean := make([]float64, out)
			variance := make([]float64, out)
			for j := 0; j < out; j++ {
				sum := 0.0
				for i := 0; i < m; i++ {
					sum += z[i][j]
				}
				mean[j] = sum / float64(m)
			}
			for j := 0; j < out; j++ {
				sum := 0.0
				for i := 0; i < m; i++ {
					d := z[i][j] - mean[j]
					sum += d * d
				}
				variance[j] = sum / float64(m)
			}
			xhat := make([][]float64, m)
			bnOut := make([][]float64, m)
			for i := 0; i < m; i++ {
				xr := make([]float64, out)
				br := make([]float64, out)
				for j := 0; j < out; j++ {
					xr[j] = (z[i][j] - mean[j]) / math.Sqrt(variance[j]+bnEpsilon)
					br[j] = layer.Gamma[j]*xr[j] + layer.Beta[j]
				}
				xhat[i] = xr
				bnOut[i] = br
			}
			for j := 0; j < out; j++ {
				layer.RunMean[j] = (1-bnMomentum)*layer.RunMean[j] + bnMomentum*mean[j]
				layer.RunVar[j] = (1-bnMomentum)*layer.RunVar[j] + bnMomentum*variance[j]
			}
			cache.batchMean = mean
			cache.batchVar = variance
			cache.xhat = xhat
			cache.bnOut = bnOut
			current = bnOut
		}

		isOutput := li == len(net.Layers)-1
		next := make([][]float64, m)
		if isOutput {
			for i := 0; i < m; i++ {
				row := make([]float64, out)
				for j := 0; j < out; j++ {
					row[j] = sigmoid(current[i][j])
				}
				next[i] = row
			}
		} else {
			keep := 1 - net.Dropout
			mask := make([][]float64, m)
			for i := 0; i < m; i++ {
				row := make([]float64, out)
				mr := make([]float64, out)
				for j := 0; j < out; j++ {
					v := current[i][j]
					if v < 0 {
						v = 0
					}
					scale := 0.0
					if net.Dropout <= 0 || rng.Float64() < keep {
						scale = 1 / keep
					}
					mr[j] = scale
					row[j] = v * scale
				}
				mask[i] = mr
				next[i] = row
			}
			cache.dropMask = mask
		}
		cache.output = next
		caches[li] = cache
		activation = next
	}

	loss := 0.0
	probs := activation
	for i := 0; i < m; i++ {
		loss += bceLoss(probs[i][0], y[i])
	}
	loss /= float64(m)

	opt.step++

	// Backward pass. For the sigmoid output with BCE the gradient with
	// respect to the pre-activation is (p - y) / m.
	dZ := make([][]float64, m)
	for i := 0; i < m; i++ {
		dZ[i] = []float64{(probs[i][0] - y[i]) / float64(m)}
	}

	for li := len(net.Layers) - 1; li >= 0; li-- {
		layer := net.Layers[li]
		cache := caches[li]
		out := layer.OutputSize()
		in := layer.InputSize()

		var dGamma, dBeta []float64
		if layer.hasBatchNorm() {
			// dZ currently holds the gradient with respect to the layer
			// output; fold back through dropout and ReLU first.
			for i := 0; i < m; i++ {
				for j := 0; j < out; j++ {
					g := dZ[i][j] * cache.dropMask[i][j]
					if cache.bnOut[i][j] <= 0 {
						g = 0
					}
					dZ[i][j] = g
				}
			}
			dGamma = make([]float64, out)
			dBeta = make([]float64, out)
			dzNew := make([][]float64, m)
			for i := range dzNew {
				dzNew[i] = make([]float64, out)
			}
			for j := 0; j < out; j++ {
				invStd := 1 / math.Sqrt(cache.batchVar[j]+bnEpsilon)
				sumDxhat := 0.0
				sumDxhatXhat := 0.0
				for i := 0; i < m; i++ {
					dxhat := dZ[i][j] * layer.Gamma[j]
					sumDxhat += dxhat
					sumDxhatXhat += dxhat * cache.xhat[i][j]
					dGamma[j] += dZ[i][j] * cache.xhat[i][j]
					dBeta[j] += dZ[i][j]
				}
				for i := 0; i < m; i++ {
					dxhat := dZ[i][j] * layer.Gamma[j]
					dzNew[i][j] = invStd / float64(m) * (float64(m)*dxhat - sumDxhat - cache.xhat[i][j]*sumDxhatXhat)
				}
			}
			dZ = dzNew
		}

		dW := make([]float64, out*in)
		dB := make([]float64, out)
		for i := 0; i < m; i++ {
			for j := 0; j < out; j++ {
				g := dZ[i][j]
				dB[j] += g
				for k := 0; k < in; k++ {
					dW[j*in+k] += g * cache.input[i][k]
				}
			}
		}

		var dInput [][]float64
		if li > 0 {
			dInput = make([][]float64, m)
			for i := 0; i < m; i++ {
				row := make([]float64, in)
				for k := 0; k < in; k++ {
					sum := 0.0
					for j := 0; j < out; j++ {
						sum += dZ[i][j] * layer.W.At(j, k)
					}
					row[k] = sum
				}
				dInput[i] = row
			}
		}

		opt.apply(li, layer, dW, dB, dGamma, dBeta, lr)
		dZ = dInput
	}

	return loss
}

func newAdamState(net *Network) *adamState {
	opt := &adamState{
		mW:  make([][]float64, len(net.Layers)),
		vW:  make([][]float64, len(net.Layers)),
		mB:  make([][]float64, len(net.Layers)),
		vB:  make([][]float64, len(net.Layers)),
		mG:  make([][]float64, len(net.Layers)),
		vG:  make([][]float64, len(net.Layers)),
		mBe: make([][]float64, len(net.Layers)),
		vBe: make([][]float64, len(net.Layers)),
	}
	for i, layer := range net.Layers {
		out, in := layer.W.Dims()
		opt.mW[i] = make([]float64, out*in)
		opt.vW[i] = make([]float64, out*in)
		opt.mB[i] = make([]float64, out)
		opt.vB[i] = make([]float64, out)
		if layer.hasBatchNorm() {
			opt.mG[i] = make([]float64, out)
			opt.vG[i] = make([]float64, out)
			opt.mBe[i] = make([]float64, out)
			opt.vBe[i] = make([]float64, out)
		}
	}
	return opt
}

// apply performs an Adam update for one layer.
func (a *adamState) apply(li int, layer *Layer, dW, dB, dGamma, dBeta []float64, lr float64) {
	step := a.step
	if step == 0 {
		step = 1
	}

	update := func(grads, m, v []float64, set func(idx int, value float64), get func(idx int) float64) {
		c1 := 1 - math.Pow(adamBeta1, float64(step))
		c2 := 1 - math.Pow(adamBeta2, float64(step))
		for idx, g := range grads {
			m[idx] = adamBeta1*m[idx] + (1-adamBeta1)*g
			v[idx] = adamBeta2*v[idx] + (1-adamBeta2)*g*g
			mhat := m[idx] / c1
			vhat := v[idx] / c2
			set(idx, get(idx)-lr*mhat/(math.Sqrt(vhat)+adamEpsilon))
		}
	}

	_, in := layer.W.Dims()
	update(dW, a.mW[li], a.vW[li],
		func(idx int, value float64) { layer.W.Set(idx/in, idx%in, value) },
		func(idx int) float64 { return layer.W.At(idx/in, idx%in) },
	)
	update(dB, a.mB[li], a.vB[li],
		func(idx int, value float64) { layer.B[idx] = value },
		func(idx int) float64 { return layer.B[idx] },
	)
	if layer.hasBatchNorm() && dGamma != nil {
		update(dGamma, a.mG[li], a.vG[li],
			func(idx int, value float64) { layer.Gamma[idx] = value },
			func(idx int) float64 { return layer.Gamma[idx] },
		)
		update(dBeta, a.mBe[li], a.vBe[li],
			func(idx int, value float64) { layer.Beta[idx] = value },
			func(idx int) float64 { return layer.Beta[idx] },
		)
	}
}
