// Package pmi scores region and risk-cluster association with pointwise
// mutual information over article co-occurrence.
package pmi

import "math"

// Calculator handles PMI (Pointwise Mutual Information) calculations
type Calculator struct {
	epsilon float64 // smoothing constant
}

// NewCalculator creates a new PMI calculator with the given epsilon.
// A non-positive epsilon falls back to 1.
func NewCalculator(epsilon float64) *Calculator {
	if epsilon <= 0 {
		epsilon = 1.0
	}
	return &Calculator{epsilon: epsilon}
}

// PMI calculates the pointwise mutual information of a region and a cluster
//
// PMI(a,b) = log((N_ab + ε) * N / ((N_a + ε)(N_b + ε)))
//
// Where:
//   - N_ab = number of articles mentioning both
//   - N_a, N_b = number of articles mentioning each
//   - N = total number of articles
//   - ε = smoothing constant
func (c *Calculator) PMI(nAB, nA, nB, N int64) float64 {
	if N == 0 {
		return 0
	}
	numerator := (float64(nAB) + c.epsilon) * float64(N)
	denominator := (float64(nA) + c.epsilon) * (float64(nB) + c.epsilon)
	return math.Log(numerator / denominator)
}

// NPMI calculates normalized PMI, clamped to [-1, 1].
// NPMI(a,b) = PMI(a,b) / -log(P(a,b))
func (c *Calculator) NPMI(nAB, nA, nB, N int64) float64 {
	if N == 0 || nAB == 0 {
		return 0
	}
	pAB := (float64(nAB) + c.epsilon) / (float64(N) + c.epsilon)
	logPAB := math.Log(pAB)
	if logPAB == 0 {
		return 0
	}
	v := c.PMI(nAB, nA, nB, N) / -logPAB
	return math.Max(-1, math.Min(1, v))
}

// Association is the scored co-occurrence of one pair.
type Association struct {
	Pair
	Articles int64
	NPMI     float64
}

// Associations scores every co-occurring pair of counter, sorted by region
// then cluster.
func (c *Calculator) Associations(counter *Counter) []Association {
	pairs := counter.Pairs()
	out := make([]Association, 0, len(pairs))
	for _, p := range pairs {
		nAB := counter.Nxy[p]
		out = append(out, Association{
			Pair:     p,
			Articles: nAB,
			NPMI:     c.NPMI(nAB, counter.Nx[p.Region], counter.Ny[p.Cluster], counter.N),
		})
	}
	return out
}
