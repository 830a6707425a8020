package optimize

import (
	"math"
)

const (
	// TINY prevents division by zero in the convergence test.
	TINY = 1e-10
	// SMALL is the likelihood difference for the restart test.
	SMALL = 1e-6
)

// DS is a downhill simplex optimizer.
type DS struct {
	BaseOptimizer
	delta  float64
	ftol   float64
	repeat bool
	oldL   float64
	points []Optimizable
	pts    []FloatParameters
	psum   []float64
	pl     []float64
	newOpt Optimizable
	newPar FloatParameters
}

// NewDS creates a new downhill simplex optimizer.
func NewDS() (ds *DS) {
	ds = &DS{
		delta: 1,
		ftol:  TINY,
	}
	ds.repPeriod = 10
	ds.method = "simplex"
	return
}

// createSimplex creates a simplex around the optimizable starting
// point by offsetting one parameter per vertex.
func (ds *DS) createSimplex(opt Optimizable, delta float64) {
	parameters := opt.GetFloatParameters()
	ds.points = make([]Optimizable, len(parameters)+1)
	ds.pts = make([]FloatParameters, len(ds.points))
	ds.pl = make([]float64, len(ds.points))
	ds.points[0] = opt
	ds.pts[0] = parameters
	for i := 1; i < len(ds.points); i++ {
		point := opt.Copy()
		ds.points[i] = point
		ds.pts[i] = point.GetFloatParameters()
	}
	for i := 0; i < len(parameters); i++ {
		parameter := ds.pts[i+1][i]
		parameter.Set(parameter.Get() + delta)
	}
	for i := range ds.points {
		if ds.pts[i].InRange() {
			ds.pl[i] = ds.points[i].Likelihood()
			ds.calls++
		} else {
			ds.pl[i] = math.Inf(-1)
		}
	}
}

// amotry extrapolates by factor fac through the face of the simplex
// across from the low point, tries it, and replaces the low point if
// the new point is better.
func (ds *DS) amotry(ilo int, fac float64) float64 {
	if ds.newOpt == nil {
		ds.newOpt = ds.points[0].Copy()
		ds.newPar = ds.newOpt.GetFloatParameters()
	}
	ds.calcPsum()
	ndim := len(ds.newPar)
	fac1 := (1 - fac) / float64(ndim)
	fac2 := fac1 - fac
	for j := 0; j < ndim; j++ {
		ds.newPar[j].Set(ds.psum[j]*fac1 - ds.pts[ilo][j].Get()*fac2)
	}
	var l float64
	if ds.newPar.InRange() {
		l = ds.newOpt.Likelihood()
		ds.calls++
	} else {
		l = math.Inf(-1)
	}
	if l > ds.pl[ilo] {
		ds.points[ilo], ds.newOpt = ds.newOpt, ds.points[ilo]
		ds.pts[ilo], ds.newPar = ds.newPar, ds.pts[ilo]
		ds.pl[ilo] = l
	}
	return l
}

func (ds *DS) calcPsum() {
	ds.psum = make([]float64, len(ds.pts[0]))
	for i := range ds.psum {
		for _, parameters := range ds.pts {
			ds.psum[i] += parameters[i].Get()
		}
	}
}

// SetOptimizable sets a model for the optimization and creates the
// simplex around it.
func (ds *DS) SetOptimizable(opt Optimizable) {
	ds.BaseOptimizer.SetOptimizable(opt)
	ds.createSimplex(opt, ds.delta)
}

// Run starts the optimization.
func (ds *DS) Run(iterations int) {
	// lowest (worst), next-lowest and highest points
	var ilo, inlo, ihi int
	var llo, lnlo, lhi float64
	ds.SaveStart()
	ds.PrintHeader()
	ds.maxL = math.Inf(-1)
Iter:
	for ds.i = 1; ds.i <= iterations; ds.i++ {
		if ds.pl[0] < ds.pl[1] {
			ilo = 0
			inlo = 1
			ihi = 1
		} else {
			ilo = 1
			inlo = 0
			ihi = 0
		}
		llo = ds.pl[ilo]
		lnlo = ds.pl[inlo]
		lhi = ds.pl[ihi]
		for i := 2; i < len(ds.points); i++ {
			if ds.pl[i] >= lhi {
				lhi = ds.pl[i]
				ihi = i
			}
			if ds.pl[i] < llo {
				lnlo = llo
				inlo = ilo
				llo = ds.pl[i]
				ilo = i
			} else if ds.pl[i] < lnlo {
				lnlo = ds.pl[i]
				inlo = i
			}
		}
		if lhi > ds.maxL {
			ds.maxL = lhi
			ds.maxLPar = ds.pts[ihi].Values(ds.maxLPar)
		}
		ds.l = lhi
		if ds.i%ds.repPeriod == 0 {
			log.Debugf("%d: L=%f (%f)", ds.i, lhi, lhi-llo)
			ds.PrintLine(ds.pts[ihi], lhi, ds.repPeriod)
		}
		rtol := 2 * math.Abs(ds.pl[ihi]-ds.pl[ilo]) / (math.Abs(ds.pl[ilo]) + math.Abs(ds.pl[ihi]) + TINY)
		if rtol < ds.ftol {
			if ds.repeat && math.Abs(ds.oldL-lhi) < SMALL {
				break Iter
			} else {
				ds.repeat = true
				ds.oldL = lhi
				log.Infof("converged. retrying")
				ds.createSimplex(ds.points[ihi], ds.delta)
				continue
			}
		}
		l := ds.amotry(ilo, -1)
		switch {
		case l >= lhi:
			ds.amotry(ilo, 2)
		case l <= lnlo:
			lsave := llo
			l := ds.amotry(ilo, 0.5)
			if l <= lsave {
				for i, point := range ds.points {
					if i != ihi {
						for j := range ds.pts[i] {
							ds.pts[i][j].Set(0.5 * (ds.pts[i][j].Get() + ds.pts[ihi][j].Get()))
						}
						if ds.pts[i].InRange() {
							ds.pl[i] = point.Likelihood()
							ds.calls++
						} else {
							ds.pl[i] = math.Inf(-1)
						}
					}
				}
			}
		}
		ds.SaveCheckpoint(false)
		select {
		case s := <-ds.sig:
			log.Warningf("Received signal %v, exiting.", s)
			break Iter
		default:
		}
	}
	if ds.i >= iterations {
		log.Warningf("Iterations exceeded (%d)", iterations)
	}

	// expose the best point through the base optimizable
	ds.parameters.SetValues(ds.maxLPar)

	log.Info("Finished downhill simplex")
	log.Noticef("Maximum likelihood: %v", ds.maxL)
	log.Infof("Parameter  names: %v", ds.pts[ihi].NamesString())
	log.Infof("Parameter values: %v", ds.pts[ihi].ValuesString())
	ds.PrintFinal(ds.pts[ihi])
	ds.SaveCheckpoint(true)
}
