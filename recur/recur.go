// Package recur finds recurrently mutated codons and tests them
// against the fitted background mutation model.
package recur

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/sitednds/dist"
	"bitbucket.org/Davydov/sitednds/mut"
	"bitbucket.org/Davydov/sitednds/smodel"
)

// log is the global logging variable.
var log = logging.MustGetLogger("recur")

// Site is one recurrently mutated codon.
type Site struct {
	// Chr and Gene locate the codon; Codon is the 1-based position
	// within the protein.
	Chr   string `json:"chr"`
	Gene  string `json:"gene"`
	Codon int    `json:"codon"`
	// Freq is the number of observed mutation events.
	Freq int `json:"freq"`
	// Mu is the expected nonsynonymous rate at the codon.
	Mu float64 `json:"mu"`
	// DNDS is the observed over expected rate ratio.
	DNDS float64 `json:"dnds"`
	// P is the negative binomial upper tail p-value and Q its
	// multiple testing corrected counterpart.
	P float64 `json:"p"`
	Q float64 `json:"q"`
}

// SiteDetail extends Site with per-codon event breakdowns.
type SiteDetail struct {
	Site
	// AAs lists the resulting amino acids with their event counts.
	AAs string `json:"aas"`
	// Muts lists the nucleotide change signatures
	// (reference>mutant_position_resulting amino acid) with their
	// event counts.
	Muts string `json:"muts"`
}

// Report is the recurrence test output: the site table, its extended
// version and the non-fatal problems encountered.
type Report struct {
	Sites    []Site       `json:"sites"`
	Details  []SiteDetail `json:"details"`
	Warnings []string     `json:"warnings,omitempty"`
}

type siteKey struct {
	chr   string
	gene  string
	codon int
}

type event struct {
	mut.Mutation
	altAA byte
}

type record struct {
	Site
	events []event
}

// Test groups nonsynonymous mutation events by (chromosome, gene,
// codon), drops events without an actual base change, and tests every
// codon with at least minRecurr events against a negative binomial
// background with the codon's expected rate as the mean and theta as
// the dispersion. The p-value is the upper tail at frequency - 0.5.
// Sites are sorted by ascending p-value, ties by descending frequency,
// and corrected with a universe of all processed codons. With fewer
// than 2 passing codons the tables are empty and a warning is issued.
func Test(muts []mut.Mutation, rates *smodel.Rates, theta float64, minRecurr int) *Report {
	rep := &Report{}
	warn := func(format string, args ...interface{}) {
		s := fmt.Sprintf(format, args...)
		log.Warning(s)
		rep.Warnings = append(rep.Warnings, s)
	}

	groups := make(map[siteKey][]event)
	for _, m := range muts {
		if !m.Impact.NonSynonymous() || m.Ref == m.Alt {
			continue
		}
		sub, err := mut.ParseAASub(m.AAChange)
		if err != nil {
			warn("skipping event at %s:%d: %v", m.Chr, m.Pos, err)
			continue
		}
		k := siteKey{m.Chr, m.Gene, sub.Codon}
		groups[k] = append(groups[k], event{Mutation: m, altAA: sub.Alt})
	}

	records := make([]record, 0, len(groups))
	for k, events := range groups {
		freq := len(events)
		if freq < minRecurr {
			continue
		}
		g := rates.Gene(k.gene)
		if g == nil {
			warn("gene %q not among the processed genes, skipping codon %s:%s:%d",
				k.gene, k.chr, k.gene, k.codon)
			continue
		}
		if k.codon > len(g.ExpNS) {
			warn("codon %d outside gene %q, skipping", k.codon, k.gene)
			continue
		}
		mu := g.ExpNS[k.codon-1]
		records = append(records, record{
			Site: Site{
				Chr:   k.chr,
				Gene:  k.gene,
				Codon: k.codon,
				Freq:  freq,
				Mu:    mu,
				DNDS:  float64(freq) / mu,
				P:     dist.NBUpperTail(float64(freq)-0.5, mu, theta),
			},
			events: events,
		})
	}

	if len(records) < 2 {
		warn("%d codons pass the recurrence threshold, nothing to report", len(records))
		return rep
	}

	sort.Slice(records, func(i, j int) bool {
		a, b := &records[i], &records[j]
		if a.P != b.P {
			return a.P < b.P
		}
		if a.Freq != b.Freq {
			return a.Freq > b.Freq
		}
		if a.Gene != b.Gene {
			return a.Gene < b.Gene
		}
		if a.Codon != b.Codon {
			return a.Codon < b.Codon
		}
		return a.Chr < b.Chr
	})

	// Benjamini-Hochberg with every processed codon as a candidate
	// test
	n := float64(rates.NCodons())
	qmin := 1.0
	for i := len(records) - 1; i >= 0; i-- {
		qmin = math.Min(qmin, records[i].P*n/float64(i+1))
		records[i].Q = qmin
	}

	rep.Sites = make([]Site, len(records))
	rep.Details = make([]SiteDetail, len(records))
	for i, rec := range records {
		aas := make([]string, len(rec.events))
		nts := make([]string, len(rec.events))
		for j, e := range rec.events {
			aas[j] = string(e.altAA)
			nts[j] = fmt.Sprintf("%c>%c_%d_%c", e.Ref, e.Alt, e.Pos, e.altAA)
		}
		rep.Sites[i] = rec.Site
		rep.Details[i] = SiteDetail{
			Site: rec.Site,
			AAs:  breakdown(aas),
			Muts: breakdown(nts),
		}
	}

	log.Noticef("%d recurrently mutated codons reported", len(rep.Sites))
	return rep
}

// breakdown tabulates values into a pipe-delimited "value:count"
// list, most frequent first, equal counts in value order.
func breakdown(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		counts[v]++
	}

	uniq := make([]string, 0, len(counts))
	for v := range counts {
		uniq = append(uniq, v)
	}
	sort.Slice(uniq, func(i, j int) bool {
		if counts[uniq[i]] != counts[uniq[j]] {
			return counts[uniq[i]] > counts[uniq[j]]
		}
		return uniq[i] < uniq[j]
	})

	parts := make([]string, len(uniq))
	for i, v := range uniq {
		parts[i] = fmt.Sprintf("%s:%d", v, counts[v])
	}
	return strings.Join(parts, "|")
}
