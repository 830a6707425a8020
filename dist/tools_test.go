package dist

import (
	"math"
	"testing"
)

func TestQuantileChi2(tst *testing.T) {
	// reference values are squared normal quantiles
	probs := []float64{0.95, 0.9}
	res := []float64{3.841458820694124, 2.705543454095404}
	for i, prob := range probs {
		q := QuantileChi2(prob, 1)
		if math.Abs(q-res[i]) > 1e-4 {
			tst.Errorf("Incorrect chi2 quantile for p=%v: %v, expected %v", prob, q, res[i])
		}
	}
	if QuantileChi2(1e-8, 1) != 0 {
		tst.Error("Expected 0 quantile for tiny probability")
	}
	if QuantileChi2(0.95, 0) != -1 {
		tst.Error("Expected error value for zero degrees of freedom")
	}
}

func TestCDFBeta(tst *testing.T) {
	// I_x(2,2) = x^2 * (3 - 2x)
	res := CDFBeta(0.375, 2, 2)
	if math.Abs(res-0.31640625) > 1e-12 {
		tst.Errorf("Incorrect incomplete beta ratio %v, expected 0.31640625", res)
	}
	res = CDFBeta(0.2, 5, 2)
	if math.Abs(res-0.0016) > 1e-12 {
		tst.Errorf("Incorrect incomplete beta ratio %v, expected 0.0016", res)
	}
}
