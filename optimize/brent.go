package optimize

import (
	"math"
)

const (
	// cgold is the golden section ratio (3-sqrt(5))/2.
	cgold = 0.3819660112501051
	// sqrtEps is the square root of the float64 machine epsilon.
	sqrtEps = 1.4901161193847656e-08
)

// Brent is a bounded single-parameter likelihood maximizer using
// Brent's method. It combines golden section search with successive
// parabolic interpolation and needs no derivatives.
type Brent struct {
	BaseOptimizer
	tol float64
}

// NewBrent creates a new Brent optimizer.
func NewBrent() (brent *Brent) {
	brent = &Brent{
		BaseOptimizer: BaseOptimizer{
			repPeriod: 10,
			method:    "brent",
		},
		tol: 1e-6,
	}
	return
}

// SetTolerance sets the absolute tolerance of the maximum position.
func (b *Brent) SetTolerance(tol float64) {
	b.tol = tol
}

// Run runs the optimization. The parameter bounds are used as the
// search interval; the bounds themselves are never evaluated.
func (b *Brent) Run(iterations int) {
	if len(b.parameters) != 1 {
		log.Fatalf("Brent's method works with a single parameter, got %d", len(b.parameters))
	}
	par := b.parameters[0]
	lo := par.GetMin()
	hi := par.GetMax()
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) || hi <= lo {
		log.Fatalf("Brent's method needs finite parameter bounds, got [%v, %v]", lo, hi)
	}

	b.SaveStart()
	b.PrintHeader()

	// minimize the negated likelihood
	f := func(u float64) float64 {
		par.Set(u)
		l := b.Likelihood()
		b.calls++
		if l > b.maxL {
			b.maxL = l
			b.maxLPar = b.parameters.Values(b.maxLPar)
		}
		return -l
	}

	var d, e float64
	x := lo + cgold*(hi-lo)
	w, v := x, x
	fx := f(x)
	fw, fv := fx, fx

Iter:
	for b.i = 1; b.i <= iterations; b.i++ {
		m := 0.5 * (lo + hi)
		tol1 := sqrtEps*math.Abs(x) + b.tol/3
		tol2 := 2 * tol1
		if math.Abs(x-m) <= tol2-0.5*(hi-lo) {
			break
		}
		var p, q, r float64
		if math.Abs(e) > tol1 {
			// fit a parabola
			r = (x - w) * (fx - fv)
			q = (x - v) * (fx - fw)
			p = (x-v)*q - (x-w)*r
			q = 2 * (q - r)
			if q > 0 {
				p = -p
			} else {
				q = -q
			}
			r = e
			e = d
		}
		if math.Abs(p) < math.Abs(0.5*q*r) && p > q*(lo-x) && p < q*(hi-x) {
			// take the parabolic interpolation step
			d = p / q
			u := x + d
			if u-lo < tol2 || hi-u < tol2 {
				if x < m {
					d = tol1
				} else {
					d = -tol1
				}
			}
		} else {
			// golden section step
			if x < m {
				e = hi - x
			} else {
				e = lo - x
			}
			d = cgold * e
		}
		// never step less than tol1
		var u float64
		switch {
		case math.Abs(d) >= tol1:
			u = x + d
		case d > 0:
			u = x + tol1
		default:
			u = x - tol1
		}
		fu := f(u)
		if fu <= fx {
			if u < x {
				hi = x
			} else {
				lo = x
			}
			v, fv = w, fw
			w, fw = x, fx
			x, fx = u, fu
		} else {
			if u < x {
				lo = u
			} else {
				hi = u
			}
			if fu <= fw || w == x {
				v, fv = w, fw
				w, fw = u, fu
			} else if fu <= fv || v == x || v == w {
				v, fv = u, fu
			}
		}

		b.PrintLine(b.parameters, -fx, b.repPeriod)
		b.SaveCheckpoint(false)
		select {
		case s := <-b.sig:
			log.Warningf("Received signal %v, exiting.", s)
			break Iter
		default:
		}
	}

	par.Set(x)
	b.l = -fx

	log.Info("Finished Brent's method")
	log.Noticef("Maximum likelihood: %v", b.maxL)
	log.Infof("Likelihood function calls: %v", b.calls)
	b.PrintFinal(b.parameters)
	b.SaveCheckpoint(true)
}
