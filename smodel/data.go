// Package smodel implements the site-level selection model: per-codon
// expected mutation rates under a trinucleotide substitution model,
// and a negative binomial dispersion fitted to the observed
// synonymous counts with a profile likelihood confidence interval.
package smodel

import (
	"github.com/op/go-logging"

	"bitbucket.org/Davydov/sitednds/mut"
)

// log is the global logging variable.
var log = logging.MustGetLogger("smodel")

// changesPerCodon is the number of possible single-nucleotide changes
// of a codon (three positions times three alternative bases).
const changesPerCodon = 9

// Gene is a protein-coding gene with a classification of every
// possible single-nucleotide change of its coding sequence.
type Gene struct {
	// Name is the gene symbol, matching mutation and estimate records.
	Name string
	// CDSLength is the coding sequence length in bases, a multiple
	// of 3.
	CDSLength int
	// RateIdx holds a trinucleotide change class (trinuc.ChangeNum)
	// for every possible single-nucleotide change of the coding
	// sequence, nine entries per codon in codon order.
	RateIdx []byte
	// Impact classifies the protein-level consequence of every entry
	// of RateIdx.
	Impact []mut.Impact
	// ExpNS is the expected nonsynonymous mutation rate per codon.
	// The rate builder attaches it; the other fields are inputs.
	ExpNS []float64
}

// NCodons returns the gene length in codons.
func (g *Gene) NCodons() int {
	return g.CDSLength / 3
}

// GeneEstimate carries the per-gene output of the upstream regression:
// the expected number of synonymous mutations under the null rates and
// under the covariate model.
type GeneEstimate struct {
	// Gene is the gene symbol.
	Gene string
	// ExpSyn is the expected synonymous count under the null rates.
	ExpSyn float64
	// ExpSynCV is the expected synonymous count under the covariate
	// model.
	ExpSynCV float64
}

// RelMut returns the relative mutability of the gene, the covariate
// model estimate over the null one.
func (e *GeneEstimate) RelMut() float64 {
	return e.ExpSynCV / e.ExpSyn
}
