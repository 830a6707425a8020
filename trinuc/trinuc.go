// Package trinuc provides the trinucleotide-change universe and the
// substitution rate table of the background mutation model.
package trinuc

import (
	"fmt"
)

// NChange is the number of distinct single-base trinucleotide
// changes: 64 contexts times 3 alternative bases.
const NChange = 64 * 3

// alphabet is the nucleotide alphabet used in change labels.
var alphabet = [...]byte{'A', 'C', 'G', 'T'}

var (
	// ChangeNum maps a trinucleotide-change label (e.g. "ACA>AGA")
	// to its rate-class index.
	ChangeNum = map[string]byte{}
	// NumChange maps a rate-class index back to its label.
	NumChange [NChange]string
)

func init() {
	i := byte(0)
	for _, b1 := range alphabet {
		for _, b2 := range alphabet {
			for _, b3 := range alphabet {
				for _, alt := range alphabet {
					if alt == b2 {
						continue
					}
					label := string([]byte{b1, b2, b3, '>', b1, alt, b3})
					ChangeNum[label] = i
					NumChange[i] = label
					i++
				}
			}
		}
	}
}

// scaleParam converts relative rates into absolute per-site rates.
const scaleParam = "t"

// selParams are the selection parameters of the upstream regression.
// They are part of the substitution model by contract but carry no
// rate information here.
var selParams = [...]string{"wmis", "wnon", "wspl"}

// NModelParams is the expected substitution model size: every change
// label except the fixed reference, the three selection parameters
// and the rate scale.
const NModelParams = NChange - 1 + len(selParams) + 1

// Table stores an absolute per-site rate for every trinucleotide
// change. It is immutable once constructed.
type Table struct {
	rates [NChange]float64
}

// NewTable validates a substitution model and converts it into an
// absolute rate table. The model must hold exactly NModelParams
// entries: the scale "t", the selection parameters and all change
// labels except one. The absent label is the model's fixed reference
// change with relative rate 1; every rate is multiplied by the scale.
func NewTable(params map[string]float64) (*Table, error) {
	if len(params) != NModelParams {
		return nil, fmt.Errorf("substitution model must have %d parameters, got %d", NModelParams, len(params))
	}
	scale, ok := params[scaleParam]
	if !ok {
		return nil, fmt.Errorf("substitution model misses the rate scale %q", scaleParam)
	}
	for _, name := range selParams {
		if _, ok := params[name]; !ok {
			return nil, fmt.Errorf("substitution model misses the selection parameter %q", name)
		}
	}

	t := &Table{}
	var seen [NChange]bool
	for name, rate := range params {
		if name == scaleParam {
			continue
		}
		if name == selParams[0] || name == selParams[1] || name == selParams[2] {
			continue
		}
		i, ok := ChangeNum[name]
		if !ok {
			return nil, fmt.Errorf("unknown substitution model parameter %q", name)
		}
		t.rates[i] = rate * scale
		seen[i] = true
	}
	// The size check above leaves exactly 191 labels, so exactly one
	// change class remains unset: the reference.
	for i := range seen {
		if !seen[i] {
			t.rates[i] = scale
		}
	}
	return t, nil
}

// Rate returns the absolute rate of change class i.
func (t *Table) Rate(i byte) float64 {
	return t.rates[i]
}

// Scale returns the per-change rates multiplied by a gene's relative
// mutability. If res is not nil, it is reused for the result.
func (t *Table) Scale(mult float64, res []float64) []float64 {
	if res == nil {
		res = make([]float64, NChange)
	}
	for i, r := range t.rates {
		res[i] = r * mult
	}
	return res
}
