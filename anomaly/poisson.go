package anomaly

import "math"

// poissonCDF is P(X <= k) for X ~ Poisson(lambda). The sum runs in log
// space so large rates cannot underflow the running term.
func poissonCDF(k int, lambda float64) float64 {
	if k < 0 {
		return 0
	}
	if lambda <= 0 {
		return 1
	}

	logLambda := math.Log(lambda)
	logTerm := -lambda
	logSum := logTerm
	for i := 1; i <= k; i++ {
		logTerm += logLambda - math.Log(float64(i))
		logSum = logAddExp(logSum, logTerm)
	}

	p := math.Exp(logSum)
	if p > 1 {
		p = 1
	}
	return p
}

// logAddExp computes log(exp(a) + exp(b)) without overflow.
func logAddExp(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(a, -1) {
		return b
	}
	return a + math.Log1p(math.Exp(b-a))
}
