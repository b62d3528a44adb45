package dataset

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// GeneratorParams parameterize the synthetic credit application generator.
// Reference and drifted production data use the same machinery with shifted
// distributions.
type GeneratorParams struct {
	Seed    uint64
	Samples int

	AgeMin, AgeMax               int
	IncomeMu, IncomeSigma        float64
	LoanMu, LoanSigma            float64
	HistoryMax                   int
	OpenAccountsMax              int
	DebtToIncomeMax              float64
	LatePaymentsLambda           float64
	EmploymentMax                int
	InquiriesLambda              float64
	UtilizationMax               float64
	AgeCoef, LoanCoef, LateCoef  float64
	DebtCoef, UtilizationCoef    float64
	HistoryCoef, IncomeCoef      float64
	NoiseSigma                   float64
}

// ReferenceParams returns the generator settings for training data.
func ReferenceParams(samples int) GeneratorParams {
	return GeneratorParams{
		Seed:               42,
		Samples:            samples,
		AgeMin:             18,
		AgeMax:             70,
		IncomeMu:           10.5,
		IncomeSigma:        0.8,
		LoanMu:             9,
		LoanSigma:          1,
		HistoryMax:         30,
		OpenAccountsMax:    15,
		DebtToIncomeMax:    1,
		LatePaymentsLambda: 1,
		EmploymentMax:      40,
		InquiriesLambda:    2,
		UtilizationMax:     1,
		AgeCoef:            -0.02,
		IncomeCoef:         -0.00001,
		LoanCoef:           0.00002,
		HistoryCoef:        -0.01,
		LateCoef:           0.03,
		DebtCoef:           0.5,
		UtilizationCoef:    0.1,
		NoiseSigma:         0.1,
	}
}

// DriftedParams returns generator settings that mimic production data with
// covariate and concept drift relative to the reference distribution.
func DriftedParams(samples int) GeneratorParams {
	return GeneratorParams{
		Seed:               123,
		Samples:            samples,
		AgeMin:             20,
		AgeMax:             75,
		IncomeMu:           10.7,
		IncomeSigma:        0.9,
		LoanMu:             9.2,
		LoanSigma:          1.1,
		HistoryMax:         35,
		OpenAccountsMax:    18,
		DebtToIncomeMax:    0.9,
		LatePaymentsLambda: 1.5,
		EmploymentMax:      42,
		InquiriesLambda:    2.5,
		UtilizationMax:     0.95,
		AgeCoef:            -0.025,
		IncomeCoef:         -0.00001,
		LoanCoef:           0.00003,
		HistoryCoef:        -0.01,
		LateCoef:           0.04,
		DebtCoef:           0.6,
		UtilizationCoef:    0.12,
		NoiseSigma:         0.1,
	}
}

// Generate produces a synthetic credit application dataset. Labels come from a
// linear risk score pushed through a sigmoid with Gaussian noise.
func Generate(params GeneratorParams) *Dataset {
	src := rand.NewSource(params.Seed)
	rng := rand.New(src)

	income := distuv.LogNormal{Mu: params.IncomeMu, Sigma: params.IncomeSigma, Src: src}
	loan := distuv.LogNormal{Mu: params.LoanMu, Sigma: params.LoanSigma, Src: src}
	late := distuv.Poisson{Lambda: params.LatePaymentsLambda, Src: src}
	inquiries := distuv.Poisson{Lambda: params.InquiriesLambda, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: params.NoiseSigma, Src: src}

	columns := append([]string(nil), FeatureNames...)
	ds := &Dataset{
		Columns: columns,
		X:       make([][]float64, params.Samples),
		Y:       make([]int, params.Samples),
	}

	for i := 0; i < params.Samples; i++ {
		row := make([]float64, NumFeatures)
		row[0] = float64(params.AgeMin + rng.Intn(params.AgeMax-params.AgeMin))
		row[1] = income.Rand()
		row[2] = loan.Rand()
		row[3] = float64(rng.Intn(params.HistoryMax))
		row[4] = float64(rng.Intn(params.OpenAccountsMax))
		row[5] = rng.Float64() * params.DebtToIncomeMax
		row[6] = late.Rand()
		row[7] = float64(rng.Intn(params.EmploymentMax))
		row[8] = inquiries.Rand()
		row[9] = rng.Float64() * params.UtilizationMax

		score := params.AgeCoef*row[0] +
			params.IncomeCoef*row[1] +
			params.LoanCoef*row[2] +
			params.HistoryCoef*row[3] +
			params.LateCoef*row[6] +
			params.DebtCoef*row[5] +
			params.UtilizationCoef*row[9] +
			noise.Rand()

		ds.X[i] = row
		if 1/(1+math.Exp(-score)) > 0.5 {
			ds.Y[i] = 1
		}
	}

	return ds
}
