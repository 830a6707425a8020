package smodel

import (
	"github.com/gonum/matrix/mat64"

	"bitbucket.org/Davydov/sitednds/mut"
	"bitbucket.org/Davydov/sitednds/trinuc"
)

// GeneCounts summarizes one gene: the observed synonymous count and
// the expected counts by impact class under the substitution model,
// before the global normalization.
type GeneCounts struct {
	Gene   string  `json:"gene"`
	NSyn   float64 `json:"nSyn"`
	ExpSyn float64 `json:"expSyn"`
	ExpMis float64 `json:"expMis"`
	ExpNon float64 `json:"expNon"`
	RelMut float64 `json:"relMut"`
}

// Counts computes the per-gene summary table. For every gene the
// scaled rate vector is multiplied by an indicator matrix counting
// rate classes per impact class.
func (b *Builder) Counts(r *Rates) []GeneCounts {
	res := make([]GeneCounts, len(b.genes))

	rates := make([]float64, trinuc.NChange)
	rv := mat64.NewDense(1, trinuc.NChange, rates)
	ind := mat64.NewDense(trinuc.NChange, 3, nil)
	counts := mat64.NewDense(1, 3, nil)

	for gi, g := range b.genes {
		for i := 0; i < trinuc.NChange; i++ {
			for j := 0; j < 3; j++ {
				ind.Set(i, j, 0)
			}
		}
		for i, cls := range g.RateIdx {
			var col int
			switch g.Impact[i] {
			case mut.Synonymous:
				col = 0
			case mut.Missense:
				col = 1
			case mut.Nonsense:
				col = 2
			default:
				continue
			}
			ind.Set(int(cls), col, ind.At(int(cls), col)+1)
		}

		// rv shares its backing with rates
		b.table.Scale(b.relMut[gi], rates)
		counts.Mul(rv, ind)

		off := b.offsets[gi]
		var nsyn float64
		for i := 0; i < g.NCodons(); i++ {
			nsyn += r.ObsSyn[off+i]
		}

		res[gi] = GeneCounts{
			Gene:   g.Name,
			NSyn:   nsyn,
			ExpSyn: counts.At(0, 0),
			ExpMis: counts.At(0, 1),
			ExpNon: counts.At(0, 2),
			RelMut: b.relMut[gi],
		}
	}

	return res
}
