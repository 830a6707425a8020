// Package optimize provides maximum likelihood optimizers and
// samplers for models with float parameters.
package optimize

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/sitednds/checkpoint"
)

// log is the global logging variable.
var log = logging.MustGetLogger("optimize")

// Optimizable is something which can be optimized by an Optimizer.
type Optimizable interface {
	GetFloatParameters() FloatParameters
	Copy() Optimizable
	Likelihood() float64
}

// Optimizer is a maximum likelihood optimizer or sampler.
type Optimizer interface {
	SetOptimizable(Optimizable)
	GetOptimizable() Optimizable
	WatchSignals(...os.Signal)
	SetReportPeriod(period int)
	SetTrajectoryOutput(io.Writer)
	SetCheckpointIO(*checkpoint.IO)
	Run(iterations int)
	GetMaxL() float64
	GetMaxLParameters() []float64
	Summary() Summary
}

// Summary stores the optimization result for reporting.
type Summary struct {
	Method         string             `json:"method"`
	StartingLnL    float64            `json:"startingLnL"`
	MaxLnL         float64            `json:"maxLnL"`
	MaxLParameters map[string]float64 `json:"maxLParameters"`
	Iterations     int                `json:"iterations"`
	Calls          int                `json:"likelihoodCalls"`
}

// BaseOptimizer contains basic data for an optimizer.
type BaseOptimizer struct {
	Optimizable
	parameters FloatParameters
	i          int
	calls      int
	startL     float64
	l          float64
	maxL       float64
	maxLPar    []float64
	repPeriod  int
	sig        chan os.Signal
	output     io.Writer
	ckp        *checkpoint.IO
	method     string
}

// SetOptimizable sets a model for the optimization.
func (o *BaseOptimizer) SetOptimizable(opt Optimizable) {
	o.Optimizable = opt
	o.parameters = opt.GetFloatParameters()
}

// GetOptimizable returns the model which is being optimized.
func (o *BaseOptimizer) GetOptimizable() Optimizable {
	return o.Optimizable
}

// WatchSignals installs OS signal handlers to stop the optimization
// gracefully.
func (o *BaseOptimizer) WatchSignals(sigs ...os.Signal) {
	o.sig = make(chan os.Signal, 1)
	signal.Notify(o.sig, sigs...)
}

// SetReportPeriod sets how often the optimization trajectory is
// reported.
func (o *BaseOptimizer) SetReportPeriod(period int) {
	o.repPeriod = period
}

// SetTrajectoryOutput sets an output writer for the optimization
// trajectory. A nil writer disables trajectory output.
func (o *BaseOptimizer) SetTrajectoryOutput(w io.Writer) {
	o.output = w
}

// SetCheckpointIO sets checkpoint input/output.
func (o *BaseOptimizer) SetCheckpointIO(ckp *checkpoint.IO) {
	o.ckp = ckp
}

// SaveStart computes the starting likelihood and uses it to
// initialize the maximum.
func (o *BaseOptimizer) SaveStart() {
	l := o.Likelihood()
	o.calls++
	o.l = l
	o.startL = l
	o.maxL = l
	o.maxLPar = o.parameters.Values(o.maxLPar)
}

// PrintHeader prints the trajectory header.
func (o *BaseOptimizer) PrintHeader() {
	if o.output != nil {
		fmt.Fprintf(o.output, "iteration\tlikelihood\t%s\n", o.parameters.NamesString())
	}
}

// PrintLine prints a trajectory line if the current iteration
// matches the period.
func (o *BaseOptimizer) PrintLine(parameters FloatParameters, l float64, period int) {
	if o.output != nil && o.i%period == 0 {
		fmt.Fprintf(o.output, "%d\t%f\t%s\n", o.i, l, parameters.ValuesString())
	}
}

// PrintFinal prints the final parameter values.
func (o *BaseOptimizer) PrintFinal(parameters FloatParameters) {
	for _, par := range parameters {
		log.Noticef("%s=%v", par.Name(), par.Get())
	}
}

// SaveCheckpoint saves the best parameters to the checkpoint
// database. Non-final checkpoints are rate limited.
func (o *BaseOptimizer) SaveCheckpoint(final bool) {
	if o.ckp == nil || o.maxLPar == nil {
		return
	}
	if !final && !o.ckp.Old() {
		return
	}
	names := o.parameters.Names(nil)
	par := make(map[string]float64, len(names))
	for i, name := range names {
		par[name] = o.maxLPar[i]
	}
	o.ckp.Save(&checkpoint.State{
		Parameters: par,
		Likelihood: o.maxL,
		Iter:       o.i,
		Final:      final,
	})
}

// GetL returns the last likelihood value.
func (o *BaseOptimizer) GetL() float64 {
	return o.l
}

// GetMaxL returns the maximum likelihood value.
func (o *BaseOptimizer) GetMaxL() float64 {
	return o.maxL
}

// GetMaxLParameters returns parameter values for the maximum
// likelihood value.
func (o *BaseOptimizer) GetMaxLParameters() []float64 {
	return o.maxLPar
}

// Summary returns an optimization summary.
func (o *BaseOptimizer) Summary() Summary {
	s := Summary{
		Method:      o.method,
		StartingLnL: o.startL,
		MaxLnL:      o.maxL,
		Iterations:  o.i,
		Calls:       o.calls,
	}
	if o.maxLPar != nil {
		names := o.parameters.Names(nil)
		s.MaxLParameters = make(map[string]float64, len(names))
		for i, name := range names {
			s.MaxLParameters[name] = o.maxLPar[i]
		}
	}
	return s
}
