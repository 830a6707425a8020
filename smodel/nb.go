package smodel

import (
	"bitbucket.org/Davydov/sitednds/dist"
	"bitbucket.org/Davydov/sitednds/optimize"
)

// thetaMax bounds the dispersion point estimate.
const thetaMax = 1000

// NBModel is the negative binomial dispersion model. Every codon
// contributes the log density of its observed count, with the codon's
// expected rate as the mean and a single shared dispersion theta.
type NBModel struct {
	obs        []float64
	exp        []float64
	theta      float64
	as         *optimize.AdaptiveSettings
	parameters optimize.FloatParameters
}

// NewNBModel creates a dispersion model for paired observed counts
// and expected rates.
func NewNBModel(obs, exp []float64) *NBModel {
	m := &NBModel{
		obs:   obs,
		exp:   exp,
		theta: 1,
	}
	m.setupParameters()
	return m
}

// Copy returns a copy of the model.
func (m *NBModel) Copy() optimize.Optimizable {
	newM := &NBModel{
		obs:   m.obs,
		exp:   m.exp,
		theta: m.theta,
		as:    m.as,
	}
	newM.setupParameters()
	return newM
}

// SetAdaptive enables adaptive MCMC parameters.
func (m *NBModel) SetAdaptive(as *optimize.AdaptiveSettings) {
	m.as = as
	m.setupParameters()
}

// setupParameters deletes all the parameters and adds them again.
// This is useful after setting adaptive MCMC mode.
func (m *NBModel) setupParameters() {
	m.parameters = nil
	var fpg optimize.FloatParameterGenerator
	if m.as != nil {
		fpg = m.as.ParameterGenerator
	} else {
		fpg = optimize.BasicFloatParameterGenerator
	}
	m.addParameters(fpg)
}

func (m *NBModel) addParameters(fpg optimize.FloatParameterGenerator) {
	theta := fpg(&m.theta, "theta")
	theta.SetPriorFunc(optimize.UniformPrior(0, thetaMax, false, true))
	theta.SetProposalFunc(optimize.NormalProposal(0.01))
	theta.SetMin(0)
	theta.SetMax(thetaMax)
	m.parameters.Append(theta)
}

// GetFloatParameters returns the model parameters.
func (m *NBModel) GetFloatParameters() optimize.FloatParameters {
	return m.parameters
}

// Theta returns the current dispersion.
func (m *NBModel) Theta() float64 {
	return m.theta
}

// Likelihood computes the log likelihood for the current dispersion.
func (m *NBModel) Likelihood() float64 {
	return m.logLik(m.theta)
}

// logLik computes the log likelihood for an arbitrary dispersion
// without touching the parameters. The profile search calls it with
// values beyond the optimization bound.
func (m *NBModel) logLik(theta float64) (lnL float64) {
	for i, x := range m.obs {
		lnL += dist.NBLogDensity(x, m.exp[i], theta)
	}
	return
}
