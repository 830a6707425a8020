package smodel

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"syscall"

	bolt "go.etcd.io/bbolt"

	"bitbucket.org/Davydov/sitednds/checkpoint"
	"bitbucket.org/Davydov/sitednds/dist"
	"bitbucket.org/Davydov/sitednds/optimize"
)

const (
	// ciLevel is the profile confidence level.
	ciLevel = 0.95
	// ciPoints is the number of points added per boundary interval
	// and refinement round.
	ciPoints = 5
	// ciRounds is the number of refinement rounds.
	ciRounds = 5
	// thetaGridMax is the upper end of the profile grid. It is above
	// the optimization bound on purpose: the interval may extend past
	// the point estimate range.
	thetaGridMax = 1e4
)

// FitSettings controls the dispersion likelihood optimization.
type FitSettings struct {
	// Method is the optimization method (brent, lbfgsb, simplex, mh,
	// annealing, none).
	Method string
	// Iterations is the maximum number of iterations.
	Iterations int
	// ReportPeriod is the trajectory reporting period.
	ReportPeriod int
	// AccPeriod is the MCMC acceptance rate reporting period.
	AccPeriod int
	// Adaptive enables adaptive MCMC parameters.
	Adaptive bool
	// Skip is the number of iterations to skip before adaptation
	// (negative means automatic).
	Skip int
	// MaxAdapt is the number of iterations to adapt (negative means
	// automatic).
	MaxAdapt int
	// Trajectory receives the optimization trajectory if not nil.
	Trajectory io.Writer
	// Checkpoint saves and restores the fit state if not nil. A
	// finished fit is cached and returned without refitting; an
	// unfinished one seeds the optimizer start.
	Checkpoint *bolt.DB
	// CheckpointEvery is the minimum number of seconds between
	// snapshots.
	CheckpointEvery float64
	// WatchSignals makes the optimizer stop on SIGINT and SIGUSR2.
	WatchSignals bool
	// ProfilePlot receives an SVG plot of the likelihood profile if
	// not nil.
	ProfilePlot io.Writer
}

// NewFitSettings returns the default fit settings.
func NewFitSettings() *FitSettings {
	return &FitSettings{
		Method:          "brent",
		Iterations:      10000,
		ReportPeriod:    10,
		AccPeriod:       200,
		Skip:            -1,
		MaxAdapt:        -1,
		CheckpointEvery: 30,
	}
}

// getOptimizer returns an optimizer from a method string.
func getOptimizer(method string, accept, annealingSkip int) (optimize.Optimizer, error) {
	switch method {
	case "brent":
		return optimize.NewBrent(), nil
	case "lbfgsb":
		return optimize.NewLBFGSB(), nil
	case "simplex":
		return optimize.NewDS(), nil
	case "mh":
		chain := optimize.NewMH(false, 0)
		chain.AccPeriod = accept
		return chain, nil
	case "annealing":
		chain := optimize.NewMH(true, annealingSkip)
		chain.AccPeriod = accept
		return chain, nil
	case "none":
		return optimize.NewNone(), nil
	}
	return nil, fmt.Errorf("unknown optimization method: %s", method)
}

// ProfilePoint is a single evaluated point of the likelihood
// profile.
type ProfilePoint struct {
	// Theta is the dispersion value.
	Theta float64 `json:"theta"`
	// Deviance is -2*(lnL(theta) - lnL(mle)).
	Deviance float64 `json:"deviance"`
}

// Dispersion is the fitted negative binomial dispersion with its
// profile likelihood confidence interval.
type Dispersion struct {
	// MLE is the dispersion point estimate.
	MLE float64 `json:"mle"`
	// Lo and Hi are the profile confidence interval bounds.
	Lo float64 `json:"ciLow"`
	Hi float64 `json:"ciHigh"`
	// LnL is the maximum log likelihood.
	LnL float64 `json:"lnL"`
	// Profile holds the finite evaluated profile points in theta
	// order.
	Profile []ProfilePoint `json:"profile,omitempty"`
	// Fit is the optimization summary.
	Fit optimize.Summary `json:"fit"`
}

// Theta returns the dispersion used for site testing: the point
// estimate for the "mle" option, the conservative lower confidence
// bound for anything else.
func (d *Dispersion) Theta(option string) float64 {
	if option == "mle" {
		return d.MLE
	}
	return d.Lo
}

// FitDispersion estimates the negative binomial dispersion for
// observed counts given expected rates, then computes the profile
// likelihood confidence interval.
func FitDispersion(obs, exp []float64, settings *FitSettings) (*Dispersion, error) {
	if len(obs) != len(exp) {
		return nil, fmt.Errorf("observed and expected lengths differ (%d != %d)",
			len(obs), len(exp))
	}
	if len(obs) == 0 {
		return nil, errors.New("no codons to fit the dispersion on")
	}

	method := settings.Method
	if method == "" {
		method = "brent"
	}

	var key []byte
	var cio *checkpoint.IO
	if settings.Checkpoint != nil {
		key = CheckpointKey(obs, exp, method)
		if d, err := loadDispersion(settings.Checkpoint, key); err != nil {
			log.Errorf("Error loading cached dispersion: %v", err)
		} else if d != nil {
			log.Noticef("Reusing finished fit, theta=%v CI=[%v, %v]", d.MLE, d.Lo, d.Hi)
			if settings.ProfilePlot != nil {
				if err := writeProfile(settings.ProfilePlot, NewNBModel(obs, exp), d); err != nil {
					log.Errorf("Error writing profile plot: %v", err)
				}
			}
			return d, nil
		}
		cio = checkpoint.NewIO(settings.Checkpoint, key, settings.CheckpointEvery)
	}

	m := NewNBModel(obs, exp)

	annealingSkip := 0
	if settings.Adaptive {
		as := optimize.NewAdaptiveSettings()
		skip := settings.Skip
		maxAdapt := settings.MaxAdapt
		if skip < 0 {
			skip = settings.Iterations / 20
		}
		if maxAdapt < 0 {
			maxAdapt = settings.Iterations / 5
		}
		annealingSkip = maxAdapt
		log.Infof("Setting adaptive parameters, skip=%v, maxAdapt=%v", skip, maxAdapt)
		as.Skip = skip
		as.MaxAdapt = maxAdapt
		m.SetAdaptive(as)
	}

	if cio != nil {
		state, err := cio.Load()
		switch {
		case err != nil:
			log.Errorf("Error loading checkpoint: %v", err)
		case state != nil:
			par := m.GetFloatParameters()
			par.SetFromMap(state.Parameters)
		}
	}

	opt, err := getOptimizer(method, settings.AccPeriod, annealingSkip)
	if err != nil {
		return nil, err
	}
	log.Infof("Using %s optimization.", method)

	opt.SetOptimizable(m)
	opt.SetReportPeriod(settings.ReportPeriod)
	if settings.Trajectory != nil {
		opt.SetTrajectoryOutput(settings.Trajectory)
	}
	if cio != nil {
		opt.SetCheckpointIO(cio)
	}
	if settings.WatchSignals {
		opt.WatchSignals(os.Interrupt, syscall.SIGUSR2)
	}

	opt.Run(settings.Iterations)

	maxL := opt.GetMaxL()
	if math.IsNaN(maxL) || math.IsInf(maxL, 0) {
		return nil, fmt.Errorf("dispersion fit did not converge (lnL=%v)", maxL)
	}
	mle := opt.GetMaxLParameters()[0]

	d := &Dispersion{
		MLE: mle,
		LnL: maxL,
		Fit: opt.Summary(),
	}
	d.Lo, d.Hi, d.Profile = profileCI(m, mle, maxL)
	log.Noticef("theta=%v CI=[%v, %v]", d.MLE, d.Lo, d.Hi)

	if settings.Checkpoint != nil {
		if err := saveDispersion(settings.Checkpoint, key, d); err != nil {
			log.Errorf("Error caching dispersion: %v", err)
		}
	}

	if settings.ProfilePlot != nil {
		if err := writeProfile(settings.ProfilePlot, m, d); err != nil {
			log.Errorf("Error writing profile plot: %v", err)
		}
	}

	return d, nil
}

// loadDispersion returns the cached fit result, or nil if there is
// none.
func loadDispersion(db *bolt.DB, key []byte) (*Dispersion, error) {
	blob, err := checkpoint.LoadData(db, resultKey(key))
	if err != nil || blob == nil {
		return nil, err
	}
	d := &Dispersion{}
	if err := json.Unmarshal(blob, d); err != nil {
		return nil, err
	}
	return d, nil
}

// saveDispersion caches a finished fit result.
func saveDispersion(db *bolt.DB, key []byte, d *Dispersion) error {
	blob, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return checkpoint.SaveData(db, resultKey(key), blob)
}

// profileCI computes the profile likelihood confidence interval on a
// fixed dispersion grid with iterative refinement of the two boundary
// intervals. The interval bounds are the first and the last grid
// points within the likelihood ratio cutoff; when there is no
// crossing the bound stays clamped to the grid extreme. It also
// returns the finite evaluated profile points.
func profileCI(m *NBModel, mle, llMax float64) (lo, hi float64, profile []ProfilePoint) {
	crit := dist.QuantileChi2(ciLevel, 1)

	grid := make([]float64, 0, 64+3+2*ciPoints*ciRounds)
	grid = append(grid, 0)
	for i := 0; i <= 60; i++ {
		grid = append(grid, math.Pow(10, -3+0.1*float64(i)))
	}
	grid = append(grid, mle, 10*mle, thetaGridMax)
	grid = sortUnique(grid)

	ll := make(map[float64]float64, 2*len(grid))
	inside := func(theta float64) bool {
		v, ok := ll[theta]
		if !ok {
			v = m.logLik(theta)
			ll[theta] = v
		}
		return -2*(v-llMax) < crit
	}

	loI, hiI := insideBounds(grid, inside)
	if loI < 0 {
		// no point within the cutoff, clamp to the grid
		return grid[0], grid[len(grid)-1], evaluatedProfile(grid, ll, llMax)
	}

	for round := 0; round < ciRounds; round++ {
		var extra []float64
		if loI > 0 {
			extra = appendInterior(extra, grid[loI-1], grid[loI])
		}
		if hiI < len(grid)-1 {
			extra = appendInterior(extra, grid[hiI], grid[hiI+1])
		}
		if len(extra) == 0 {
			break
		}
		grid = sortUnique(append(grid, extra...))
		loI, hiI = insideBounds(grid, inside)
	}

	return grid[loI], grid[hiI], evaluatedProfile(grid, ll, llMax)
}

// evaluatedProfile collects the evaluated profile points in grid
// order, skipping points with an infinite deviance.
func evaluatedProfile(grid []float64, ll map[float64]float64, llMax float64) []ProfilePoint {
	profile := make([]ProfilePoint, 0, len(grid))
	for _, theta := range grid {
		dev := -2 * (ll[theta] - llMax)
		if math.IsInf(dev, 0) || math.IsNaN(dev) {
			continue
		}
		profile = append(profile, ProfilePoint{Theta: theta, Deviance: dev})
	}
	return profile
}

// insideBounds returns the first and the last grid index within the
// cutoff, -1 if there is none.
func insideBounds(grid []float64, inside func(float64) bool) (lo, hi int) {
	lo, hi = -1, -1
	for i, theta := range grid {
		if inside(theta) {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	return
}

// appendInterior appends ciPoints evenly spaced points strictly
// between a and b.
func appendInterior(dst []float64, a, b float64) []float64 {
	step := (b - a) / (ciPoints + 1)
	for k := 1; k <= ciPoints; k++ {
		dst = append(dst, a+float64(k)*step)
	}
	return dst
}

// sortUnique sorts the values and removes exact duplicates in place.
func sortUnique(xs []float64) []float64 {
	sort.Float64s(xs)
	res := xs[:0]
	for i, x := range xs {
		if i > 0 && x == res[len(res)-1] {
			continue
		}
		res = append(res, x)
	}
	return res
}
