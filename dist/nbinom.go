package dist

import (
	"math"
)

// NBLogDensity returns the log density at x of the negative binomial
// distribution parameterized by mean mu and size (dispersion). The
// density is Gamma(x+size) / (Gamma(size) x!) * p^size * (1-p)^x with
// p = size/(size+mu). A non-positive mu or size degenerates into a
// point mass at zero.
func NBLogDensity(x, mu, size float64) float64 {
	if x < 0 {
		return math.Inf(-1)
	}
	if size <= 0 || mu <= 0 {
		if x == 0 {
			return 0
		}
		return math.Inf(-1)
	}
	p := size / (size + mu)
	lgxs, _ := math.Lgamma(x + size)
	lgs, _ := math.Lgamma(size)
	lgx1, _ := math.Lgamma(x + 1)
	return lgxs - lgs - lgx1 + size*math.Log(p) + x*math.Log1p(-p)
}

// NBUpperTail returns Prob{X>q} for a negative binomial X with mean
// mu and the given size. Since X is integer valued, this is
// Prob{X>=floor(q)+1}, computed through the incomplete beta ratio.
func NBUpperTail(q, mu, size float64) float64 {
	k := math.Floor(q) + 1
	if k <= 0 {
		return 1
	}
	if mu <= 0 || size <= 0 {
		return 0
	}
	return CDFBeta(mu/(mu+size), k, size)
}
