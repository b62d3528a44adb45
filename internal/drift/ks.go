package drift

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ksTest runs the two-sample Kolmogorov-Smirnov test and returns the D
// statistic with its asymptotic p-value.
func ksTest(reference, current []float64) (statistic, pValue float64) {
	ref := append([]float64(nil), reference...)
	cur := append([]float64(nil), current...)
	sort.Float64s(ref)
	sort.Float64s(cur)

	d := stat.KolmogorovSmirnov(ref, nil, cur, nil)
	return d, ksPValue(d, len(ref), len(cur))
}

// ksPValue evaluates the asymptotic Kolmogorov distribution tail
// Q(lambda) = 2 * sum_{k>=1} (-1)^{k-1} exp(-2 k^2 lambda^2) with the
// small-sample correction from Numerical Recipes.
func ksPValue(d float64, n1, n2 int) float64 {
	if n1 == 0 || n2 == 0 {
		return 1
	}
	ne := float64(n1) * float64(n2) / float64(n1+n2)
	sqrtNe := math.Sqrt(ne)
	lambda := (sqrtNe + 0.12 + 0.11/sqrtNe) * d

	if lambda <= 0 {
		return 1
	}

	sum := 0.0
	sign := 1.0
	for k := 1; k <= 100; k++ {
		term := sign * math.Exp(-2*float64(k)*float64(k)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-12 {
			break
		}
		sign = -sign
	}
	p := 2 * sum
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
