package smodel

import (
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/gonum/blas/blas64"

	"bitbucket.org/Davydov/sitednds/mut"
	"bitbucket.org/Davydov/sitednds/trinuc"
)

// Rates stores per-codon observed counts and expected rates for all
// selected genes, gene-contiguous in the input gene order.
type Rates struct {
	// ObsSyn is the observed synonymous mutation count per codon.
	ObsSyn []float64
	// ExpSyn is the expected synonymous mutation rate per codon.
	ExpSyn []float64
	// ExpNS is the expected nonsynonymous mutation rate per codon.
	ExpNS []float64

	genes   map[string]*Gene
	offsets map[string]int
}

// NCodons returns the total number of codons across all selected
// genes.
func (r *Rates) NCodons() int {
	return len(r.ExpSyn)
}

// Gene returns a selected gene by name, nil if the gene was not
// selected.
func (r *Rates) Gene(name string) *Gene {
	return r.genes[name]
}

// Normalize rescales the expected synonymous rates so that their sum
// matches the observed synonymous count. It returns the applied
// factor. If the expected rates sum to zero, nothing is rescaled and
// it returns 1 and false.
func (r *Rates) Normalize() (float64, bool) {
	n := len(r.ExpSyn)
	obs := blas64.Asum(n, blas64.Vector{Inc: 1, Data: r.ObsSyn})
	exp := blas64.Asum(n, blas64.Vector{Inc: 1, Data: r.ExpSyn})
	if exp == 0 {
		log.Warning("expected synonymous rates sum to zero, skipping normalization")
		return 1, false
	}
	factor := obs / exp
	blas64.Scal(n, factor, blas64.Vector{Inc: 1, Data: r.ExpSyn})
	return factor, true
}

// Builder computes per-codon expected rates from a substitution rate
// table, gene classifications and per-gene relative mutabilities.
type Builder struct {
	table    *trinuc.Table
	genes    []*Gene
	relMut   []float64
	offsets  []int
	total    int
	warnings []string
}

// NewBuilder validates the gene records and selects the genes to
// process. If geneList is not empty, genes are restricted to it;
// list entries missing from the input produce a warning. Genes
// without a mutability estimate are skipped with a warning.
func NewBuilder(table *trinuc.Table, genes []*Gene, estimates []GeneEstimate, geneList []string) (*Builder, error) {
	for _, g := range genes {
		if err := checkGene(g); err != nil {
			return nil, err
		}
	}

	relMut := make(map[string]float64, len(estimates))
	for _, e := range estimates {
		relMut[e.Gene] = e.RelMut()
	}

	var allow map[string]bool
	if len(geneList) > 0 {
		allow = make(map[string]bool, len(geneList))
		for _, name := range geneList {
			allow[name] = true
		}
	}

	b := &Builder{table: table}
	seen := make(map[string]bool, len(genes))
	for _, g := range genes {
		if allow != nil && !allow[g.Name] {
			continue
		}
		seen[g.Name] = true
		rm, ok := relMut[g.Name]
		if !ok {
			b.warn("gene %q has no mutability estimate, skipping", g.Name)
			continue
		}
		b.genes = append(b.genes, g)
		b.relMut = append(b.relMut, rm)
		b.offsets = append(b.offsets, b.total)
		b.total += g.NCodons()
	}

	if allow != nil {
		var missing []string
		for _, name := range geneList {
			if !seen[name] {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			b.warn("genes from the gene list not found in the input data: %s",
				strings.Join(missing, ", "))
		}
	}

	log.Infof("Selected %d genes, %d codons", len(b.genes), b.total)
	return b, nil
}

// checkGene verifies that a gene record carries a complete
// classification of its coding changes. A zero CDS length is valid:
// the gene contributes no codons.
func checkGene(g *Gene) error {
	if g.CDSLength%3 != 0 {
		return fmt.Errorf("gene %q has a CDS length not divisible by 3 (%d)",
			g.Name, g.CDSLength)
	}
	n := g.NCodons() * changesPerCodon
	if len(g.RateIdx) != n || len(g.Impact) != n {
		return fmt.Errorf("gene %q lacks codon change classification", g.Name)
	}
	for _, cls := range g.RateIdx {
		if cls >= trinuc.NChange {
			return fmt.Errorf("gene %q has an unknown rate class %d", g.Name, cls)
		}
	}
	return nil
}

// Warnings returns the non-fatal problems encountered so far.
func (b *Builder) Warnings() []string {
	return b.warnings
}

func (b *Builder) warn(format string, args ...interface{}) {
	s := fmt.Sprintf(format, args...)
	log.Warning(s)
	b.warnings = append(b.warnings, s)
}

// Build computes per-codon expected rates for all selected genes and
// scatters the observed synonymous counts (gene name to 1-based codon
// number to count). Every gene writes to a disjoint slice of the
// shared vectors, so gene tasks run in parallel on nThreads workers.
// The per-codon expected nonsynonymous rates are attached to the gene
// records.
func (b *Builder) Build(obsSyn map[string]map[int]float64, nThreads int) *Rates {
	if nThreads <= 0 {
		nThreads = runtime.GOMAXPROCS(0)
	}

	r := &Rates{
		ObsSyn:  make([]float64, b.total),
		ExpSyn:  make([]float64, b.total),
		ExpNS:   make([]float64, b.total),
		genes:   make(map[string]*Gene, len(b.genes)),
		offsets: make(map[string]int, len(b.genes)),
	}

	done := make(chan struct{}, nThreads)
	tasks := make(chan int, len(b.genes))

	for i := 0; i < nThreads; i++ {
		go func() {
			rates := make([]float64, trinuc.NChange)
			for gi := range tasks {
				g := b.genes[gi]
				rates = b.table.Scale(b.relMut[gi], rates)
				off := b.offsets[gi]
				expSyn := r.ExpSyn[off : off+g.NCodons()]
				expNS := r.ExpNS[off : off+g.NCodons()]
				for j, cls := range g.RateIdx {
					codon := j / changesPerCodon
					switch g.Impact[j] {
					case mut.Synonymous:
						expSyn[codon] += rates[cls]
					case mut.Missense, mut.Nonsense:
						expNS[codon] += rates[cls]
					}
				}
				g.ExpNS = expNS
			}
			done <- struct{}{}
		}()
	}

	for gi := range b.genes {
		tasks <- gi
	}
	close(tasks)

	for i := 0; i < nThreads; i++ {
		<-done
	}

	for gi, g := range b.genes {
		off := b.offsets[gi]
		r.genes[g.Name] = g
		r.offsets[g.Name] = off
		for codon, count := range obsSyn[g.Name] {
			if codon < 1 || codon > g.NCodons() {
				b.warn("gene %q: synonymous count at codon %d outside the coding sequence",
					g.Name, codon)
				continue
			}
			r.ObsSyn[off+codon-1] += count
		}
	}

	return r
}
