package drift

import (
	"math"
	"sort"
)

const (
	psiBins = 10
	// Floor for empty bin proportions so the log ratio stays finite.
	psiMinProportion = 1e-4
)

// psi computes the Population Stability Index between the reference and
// current samples, binning both by reference-quantile edges.
func psi(reference, current []float64) float64 {
	if len(reference) == 0 || len(current) == 0 {
		return 0
	}

	edges := quantileEdges(reference, psiBins)
	refCounts := binCounts(reference, edges)
	curCounts := binCounts(current, edges)

	total := 0.0
	for i := range refCounts {
		refProp := float64(refCounts[i]) / float64(len(reference))
		curProp := float64(curCounts[i]) / float64(len(current))
		if refProp < psiMinProportion {
			refProp = psiMinProportion
		}
		if curProp < psiMinProportion {
			curProp = psiMinProportion
		}
		total += (curProp - refProp) * math.Log(curProp/refProp)
	}
	return total
}

// quantileEdges returns the bins-1 interior cut points of the reference
// distribution. Duplicate edges collapse, which effectively merges bins for
// heavily tied data.
func quantileEdges(sample []float64, bins int) []float64 {
	sorted := append([]float64(nil), sample...)
	sort.Float64s(sorted)

	edges := make([]float64, 0, bins-1)
	for i := 1; i < bins; i++ {
		rank := float64(i) / float64(bins) * float64(len(sorted)-1)
		lo := int(math.Floor(rank))
		hi := int(math.Ceil(rank))
		var edge float64
		if lo == hi {
			edge = sorted[lo]
		} else {
			frac := rank - float64(lo)
			edge = sorted[lo]*(1-frac) + sorted[hi]*frac
		}
		if len(edges) == 0 || edge > edges[len(edges)-1] {
			edges = append(edges, edge)
		}
	}
	return edges
}

// binCounts assigns each value to the bin whose upper edge is the first one
// exceeding it; values past the last edge land in the final bin.
func binCounts(sample []float64, edges []float64) []int {
	counts := make([]int, len(edges)+1)
	for _, v := range sample {
		idx := sort.SearchFloat64s(edges, v)
		if idx < len(edges) && v == edges[idx] {
			idx++
		}
		if idx > len(edges) {
			idx = len(edges)
		}
		counts[idx]++
	}
	return counts
}
