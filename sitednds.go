// Package sitednds detects codons under positive selection in cancer
// sequencing data. Synonymous mutation counts calibrate per-codon
// background rates derived from a trinucleotide substitution model
// and a negative binomial fit absorbs their overdispersion; codons
// recurrently hit by nonsynonymous mutations are then tested against
// this background.
package sitednds

import (
	"errors"
	"fmt"
	"sort"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/sitednds/mut"
	"bitbucket.org/Davydov/sitednds/recur"
	"bitbucket.org/Davydov/sitednds/smodel"
	"bitbucket.org/Davydov/sitednds/trinuc"
)

// log is the global logging variable.
var log = logging.MustGetLogger("sitednds")

// ErrInvalidInput indicates invalid input data, e.g. an incomplete
// substitution model or a malformed gene classification.
var ErrInvalidInput = errors.New("invalid input")

// Data bundles the input tables of one analysis. The tables are
// read-only to the analysis, except that per-codon expected
// nonsynonymous rates are attached to the gene records during
// processing.
type Data struct {
	// Genes are the coding sequences, classified per codon change.
	Genes []*smodel.Gene
	// Model are the fitted substitution model parameters.
	Model map[string]float64
	// Estimates are the per-gene expected synonymous loads.
	Estimates []smodel.GeneEstimate
	// Mutations are the somatic mutation calls.
	Mutations []mut.Mutation
}

// Result is the complete analysis output.
type Result struct {
	// Dispersion is the fitted negative binomial background.
	Dispersion *smodel.Dispersion `json:"dispersion"`
	// Sites are the tested recurrent codons, most significant first.
	Sites []recur.Site `json:"sites"`
	// Details are the per-site mutation breakdowns.
	Details []recur.SiteDetail `json:"details"`
	// GeneRates are observed and expected per-gene mutation counts.
	GeneRates []smodel.GeneCounts `json:"geneRates"`
	// Factor is the synonymous calibration factor applied to the
	// expected rates.
	Factor float64 `json:"factor"`
	// Warnings are the non-fatal problems encountered, sorted.
	Warnings []string `json:"warnings,omitempty"`
}

// Run performs the full analysis: per-codon expected rates from the
// substitution model, synonymous calibration, the dispersion fit and
// the recurrence test. Fatal errors return no partial result.
func Run(data *Data, cfg *Config) (*Result, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	fit := cfg.Fit
	if fit == nil {
		fit = smodel.NewFitSettings()
	}

	table, err := trinuc.NewTable(data.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	builder, err := smodel.NewBuilder(table, data.Genes, data.Estimates, cfg.GeneList)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	log.Infof("Analyzing %d mutations in %d genes", len(data.Mutations), len(data.Genes))

	obsSyn, warnings := synCounts(data.Mutations, cfg.SynDrivers)

	rates := builder.Build(obsSyn, cfg.Threads)
	if rates.NCodons() == 0 {
		return nil, errors.New("no codons selected for the analysis")
	}

	counts := builder.Counts(rates)

	factor, ok := rates.Normalize()
	if !ok {
		warnings = append(warnings, "zero expected synonymous rate, calibration skipped")
	}

	d, err := smodel.FitDispersion(rates.ObsSyn, rates.ExpSyn, fit)
	if err != nil {
		return nil, err
	}

	rep := recur.Test(data.Mutations, rates, d.Theta(cfg.ThetaOption), cfg.MinRecurr)

	warnings = append(warnings, builder.Warnings()...)
	warnings = append(warnings, rep.Warnings...)
	sort.Strings(warnings)

	return &Result{
		Dispersion: d,
		Sites:      rep.Sites,
		Details:    rep.Details,
		GeneRates:  counts,
		Factor:     factor,
		Warnings:   warnings,
	}, nil
}

// synCounts tabulates synonymous mutations per gene and codon,
// excluding the known synonymous drivers.
func synCounts(muts []mut.Mutation, drivers []string) (map[string]map[int]float64, []string) {
	skip := make(map[string]bool, len(drivers))
	for _, d := range drivers {
		skip[d] = true
	}

	var warnings []string
	warn := func(format string, args ...interface{}) {
		w := fmt.Sprintf(format, args...)
		log.Warning(w)
		warnings = append(warnings, w)
	}

	counts := make(map[string]map[int]float64)
	excluded := 0
	for _, m := range muts {
		if m.Impact != mut.Synonymous || m.Ref == m.Alt {
			continue
		}
		if skip[m.Gene+":"+m.AAChange] {
			excluded++
			continue
		}
		sub, err := mut.ParseAASub(m.AAChange)
		if err != nil {
			warn("skipping synonymous mutation at %s:%d: %v", m.Chr, m.Pos, err)
			continue
		}
		if !sub.Synonymous() {
			warn("mutation at %s:%d marked synonymous but changes %c to %c, skipping",
				m.Chr, m.Pos, sub.Ref, sub.Alt)
			continue
		}
		c := counts[m.Gene]
		if c == nil {
			c = make(map[int]float64)
			counts[m.Gene] = c
		}
		c[sub.Codon]++
	}
	if excluded > 0 {
		log.Infof("Excluded %d known synonymous driver mutations", excluded)
	}
	return counts, warnings
}
