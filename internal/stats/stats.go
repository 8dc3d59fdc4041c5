// Package stats implements the pure statistical primitives shared by the
// backtest metrics aggregator, the bootstrap resampler, the walk-forward
// optimizer, and the edge analyzer: Wilson score intervals, a two-sided
// binomial test, a one-sample t-test against zero, percentiles, simple
// linear regression, and the standard-normal CDF.
package stats

import "math"

// wilsonZ is the z-score for a 95% confidence interval.
const wilsonZ = 1.96

// WilsonInterval returns the 95% Wilson score confidence interval for the
// proportion k/n. Returns (0, 0) when n == 0. The result is always clamped
// to [0, 1] and always contains k/n.
func WilsonInterval(k, n int) (lower, upper float64) {
	if n == 0 {
		return 0, 0
	}
	nf := float64(n)
	p := float64(k) / nf
	z2 := wilsonZ * wilsonZ

	denom := 1 + z2/nf
	center := p + z2/(2*nf)
	margin := wilsonZ * math.Sqrt(p*(1-p)/nf+z2/(4*nf*nf))

	lower = (center - margin) / denom
	upper = (center + margin) / denom

	return clamp01(lower), clamp01(upper)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// BinomialTest computes the two-sided p-value for observing k successes in
// n trials under the null hypothesis that the true success probability is
// p0 (default comparison target: 0.5). Uses a normal approximation when n
// is large enough for it to be reasonable (n*p0*(1-p0) >= 10), otherwise
// falls back to the exact binomial tail sum.
func BinomialTest(k, n int, p0 float64) float64 {
	if n == 0 {
		return 1
	}
	nf := float64(n)
	if nf*p0*(1-p0) >= 10 {
		mean := nf * p0
		sd := math.Sqrt(nf * p0 * (1 - p0))
		z := (float64(k) - mean) / sd
		p := 2 * (1 - StandardNormalCDF(math.Abs(z)))
		return clamp01(p)
	}
	return exactBinomialTwoSided(k, n, p0)
}

func exactBinomialTwoSided(k, n int, p0 float64) float64 {
	observed := binomialPMF(k, n, p0)
	const eps = 1e-12
	total := 0.0
	for i := 0; i <= n; i++ {
		pmf := binomialPMF(i, n, p0)
		if pmf <= observed+eps {
			total += pmf
		}
	}
	return clamp01(total)
}

func binomialPMF(k, n int, p float64) float64 {
	if k < 0 || k > n {
		return 0
	}
	logCoef := lgammaInt(n+1) - lgammaInt(k+1) - lgammaInt(n-k+1)
	logP := float64(k)*math.Log(safeLog(p)) + float64(n-k)*math.Log(safeLog(1-p))
	return math.Exp(logCoef + logP)
}

func safeLog(p float64) float64 {
	if p <= 0 {
		return 1e-300
	}
	if p >= 1 {
		return 1
	}
	return p
}

func lgammaInt(n int) float64 {
	v, _ := math.Lgamma(float64(n))
	return v
}

// TTestResult is the outcome of a one-sample t-test against a mean of zero.
type TTestResult struct {
	T float64
	P float64
}

// OneSampleTTest tests whether the mean of samples differs significantly
// from zero. With n<2 returns (0, 1). With zero variance and a nonzero
// mean, the t statistic is infinite in the sign of the mean and p is 0.
// Zero mean with zero variance returns (0, 1) — there is no signal to test.
func OneSampleTTest(samples []float64) TTestResult {
	n := len(samples)
	if n < 2 {
		return TTestResult{T: 0, P: 1}
	}

	mean := Mean(samples)
	variance := sampleVariance(samples, mean)

	if variance == 0 {
		if mean == 0 {
			return TTestResult{T: 0, P: 1}
		}
		t := math.Inf(1)
		if mean < 0 {
			t = math.Inf(-1)
		}
		return TTestResult{T: t, P: 0}
	}

	se := math.Sqrt(variance / float64(n))
	t := mean / se
	p := 2 * (1 - StandardNormalCDF(math.Abs(t)))
	return TTestResult{T: t, P: clamp01(p)}
}

// Mean computes the arithmetic mean of samples. Returns 0 for an empty slice.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}

func sampleVariance(samples []float64, mean float64) float64 {
	if len(samples) < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range samples {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(samples)-1)
}

// Percentile returns the p-th percentile (p in [0,1]) of an already-sorted
// slice using the nearest-rank-by-rounding method:
// index = round(p * (n-1)), clamped to [0, n-1].
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	idx := int(math.Round(p * float64(n-1)))
	if idx < 0 {
		idx = 0
	}
	if idx > n-1 {
		idx = n - 1
	}
	return sorted[idx]
}

// LinearRegressionResult holds the fitted line y = a + b*x and its fit
// quality.
type LinearRegressionResult struct {
	Slope     float64
	Intercept float64
	RSquared  float64
	PValue    float64
}

// SimpleLinearRegression fits y = a + b*x by ordinary least squares. A
// near-zero residual sum of squares (a perfect or near-perfect fit) yields
// PValue == 0.
func SimpleLinearRegression(x, y []float64) LinearRegressionResult {
	n := len(x)
	if n < 2 || n != len(y) {
		return LinearRegressionResult{}
	}

	meanX := Mean(x)
	meanY := Mean(y)

	var sxx, sxy, syy float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		sxx += dx * dx
		sxy += dx * dy
		syy += dy * dy
	}

	if sxx == 0 {
		return LinearRegressionResult{Intercept: meanY, PValue: 1}
	}

	slope := sxy / sxx
	intercept := meanY - slope*meanX

	var ssRes float64
	for i := 0; i < n; i++ {
		pred := intercept + slope*x[i]
		resid := y[i] - pred
		ssRes += resid * resid
	}

	var rSquared float64
	if syy > 0 {
		rSquared = 1 - ssRes/syy
	}

	const eps = 1e-12
	if ssRes < eps {
		return LinearRegressionResult{Slope: slope, Intercept: intercept, RSquared: rSquared, PValue: 0}
	}

	// Standard error of the slope, then a t-test on slope == 0.
	dof := n - 2
	if dof < 1 {
		return LinearRegressionResult{Slope: slope, Intercept: intercept, RSquared: rSquared, PValue: 1}
	}
	mse := ssRes / float64(dof)
	seSlope := math.Sqrt(mse / sxx)
	if seSlope == 0 {
		return LinearRegressionResult{Slope: slope, Intercept: intercept, RSquared: rSquared, PValue: 0}
	}
	t := slope / seSlope
	p := 2 * (1 - StandardNormalCDF(math.Abs(t)))

	return LinearRegressionResult{Slope: slope, Intercept: intercept, RSquared: rSquared, PValue: clamp01(p)}
}

// Abramowitz-Stegun erf approximation coefficients (max error 1.5e-7).
const (
	asA1 = 0.254829592
	asA2 = -0.284496736
	asA3 = 1.421413741
	asA4 = -1.453152027
	asA5 = 1.061405429
	asP  = 0.3275911
)

// Erf approximates the error function via the Abramowitz-Stegun series.
func Erf(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
		x = -x
	}
	t := 1.0 / (1.0 + asP*x)
	y := 1.0 - (((((asA5*t+asA4)*t)+asA3)*t+asA2)*t+asA1)*t*math.Exp(-x*x)
	return sign * y
}

// StandardNormalCDF returns P(Z <= x) for the standard normal distribution,
// via the erf-based approximation above.
func StandardNormalCDF(x float64) float64 {
	return 0.5 * (1 + Erf(x/math.Sqrt2))
}
