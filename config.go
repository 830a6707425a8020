package sitednds

import (
	"runtime"

	"bitbucket.org/Davydov/sitednds/smodel"
)

// Config are the analysis settings.
type Config struct {
	// MinRecurr is the minimum number of mutations at a codon for it
	// to be tested.
	MinRecurr int
	// GeneList restricts the analysis to the named genes. Empty means
	// every classified gene.
	GeneList []string
	// ThetaOption selects the dispersion used for site testing: the
	// point estimate for "mle", the conservative lower confidence
	// bound otherwise.
	ThetaOption string
	// SynDrivers are known synonymous driver mutations in
	// "gene:substitution" notation. They are excluded from the
	// background counts.
	SynDrivers []string
	// Threads is the number of parallel workers for the rate
	// computation.
	Threads int
	// Fit controls the dispersion optimization.
	Fit *smodel.FitSettings
}

// NewConfig returns the default analysis settings.
func NewConfig() *Config {
	return &Config{
		MinRecurr:   2,
		ThetaOption: "mle",
		SynDrivers:  []string{"TP53:T125T"},
		Threads:     runtime.GOMAXPROCS(0),
		Fit:         smodel.NewFitSettings(),
	}
}
