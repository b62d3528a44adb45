package nn

import "sort"

// Metrics summarizes classifier quality on a labeled set.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AUC       float64 `json:"roc_auc"`
	Loss      float64 `json:"loss"`
}

// ComputeMetrics derives classification metrics from predicted probabilities
// at the 0.5 decision threshold.
func ComputeMetrics(probs []float64, labels []int) Metrics {
	var tp, fp, tn, fn int
	loss := 0.0
	for i, p := range probs {
		loss += bceLoss(p, float64(labels[i]))
		predicted := p >= 0.5
		actual := labels[i] == 1
		switch {
		case predicted && actual:
			tp++
		case predicted && !actual:
			fp++
		case !predicted && !actual:
			tn++
		default:
			fn++
		}
	}
	total := len(probs)
	m := Metrics{AUC: AUC(probs, labels)}
	if total > 0 {
		m.Accuracy = float64(tp+tn) / float64(total)
		m.Loss = loss / float64(total)
	}
	if tp+fp > 0 {
		m.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		m.Recall = float64(tp) / float64(tp+fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	return m
}

// AUC computes the area under the ROC curve via the rank statistic, with
// midrank handling for tied probabilities.
func AUC(probs []float64, labels []int) float64 {
	n := len(probs)
	if n == 0 || n != len(labels) {
		return 0
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	sort.Slice(indices, func(a, b int) bool {
		return probs[indices[a]] < probs[indices[b]]
	})

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && probs[indices[j]] == probs[indices[i]] {
			j++
		}
		// Average rank across the tie group, 1-based.
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[indices[k]] = avg
		}
		i = j
	}

	var positives int
	var rankSum float64
	for i, label := range labels {
		if label == 1 {
			positives++
			rankSum += ranks[i]
		}
	}
	negatives := n - positives
	if positives == 0 || negatives == 0 {
		return 0
	}
	return (rankSum - float64(positives)*(float64(positives)+1)/2) / (float64(positives) * float64(negatives))
}
