// Package mut provides types for annotated somatic mutations.
package mut

import (
	"fmt"
	"strconv"
	"strings"
)

// Impact classifies the protein-level consequence of a single
// nucleotide change. The numeric values match the per-gene
// classification arrays produced by the annotation step.
type Impact byte

const (
	// ImpactOther marks consequences outside the tested classes
	// (splice variants, stop loss, unannotated changes).
	ImpactOther Impact = 0
	// Synonymous changes keep the encoded amino acid.
	Synonymous Impact = 1
	// Missense changes substitute one amino acid for another.
	Missense Impact = 2
	// Nonsense changes introduce a stop codon.
	Nonsense Impact = 3
)

// impactNames maps annotation strings to impact classes. Unlisted
// strings map to ImpactOther.
var impactNames = map[string]Impact{
	"Synonymous": Synonymous,
	"Missense":   Missense,
	"Nonsense":   Nonsense,
}

// ImpactFromString converts an annotation impact string into an
// Impact. Unknown strings become ImpactOther.
func ImpactFromString(s string) Impact {
	return impactNames[s]
}

// String returns the annotation string for the impact class.
func (i Impact) String() string {
	switch i {
	case Synonymous:
		return "Synonymous"
	case Missense:
		return "Missense"
	case Nonsense:
		return "Nonsense"
	}
	return "Other"
}

// NonSynonymous is true for the impact classes tested for
// recurrence (missense and nonsense).
func (i Impact) NonSynonymous() bool {
	return i == Missense || i == Nonsense
}

// Mutation is a single annotated somatic mutation event. One row per
// event: the same change observed in two samples appears twice.
type Mutation struct {
	// Chr is the chromosome name.
	Chr string
	// Gene is the gene name matching the gene records.
	Gene string
	// Pos is the genomic position of the changed base.
	Pos int
	// Ref and Alt are the reference and mutant bases.
	Ref byte
	Alt byte
	// AAChange is the amino-acid substitution string, e.g. "R273H".
	AAChange string
	// Impact is the annotated consequence class.
	Impact Impact
}

// AASub is a parsed amino-acid substitution.
type AASub struct {
	// Ref and Alt are single-letter amino acids; '*' is a stop.
	Ref byte
	Alt byte
	// Codon is the 1-based codon number within the CDS.
	Codon int
}

// aaLetters lists the valid single-letter amino-acid codes,
// including '*' for stop codons.
const aaLetters = "ACDEFGHIKLMNPQRSTVWY*"

func validAA(c byte) bool {
	return strings.IndexByte(aaLetters, c) >= 0
}

// ParseAASub parses substitution strings of the form "R273H": a
// reference amino acid, a 1-based codon number and a mutant amino
// acid. Stop codons are written '*'.
func ParseAASub(s string) (AASub, error) {
	var sub AASub
	if len(s) < 3 {
		return sub, fmt.Errorf("substitution %q too short", s)
	}
	ref, alt := s[0], s[len(s)-1]
	if !validAA(ref) || !validAA(alt) {
		return sub, fmt.Errorf("substitution %q has an invalid amino acid", s)
	}
	codon, err := strconv.Atoi(s[1 : len(s)-1])
	if err != nil || codon < 1 {
		return sub, fmt.Errorf("substitution %q has an invalid codon number", s)
	}
	sub.Ref = ref
	sub.Alt = alt
	sub.Codon = codon
	return sub, nil
}

// Synonymous is true when the substitution keeps the amino acid.
func (s AASub) Synonymous() bool {
	return s.Ref == s.Alt
}

// String renders the substitution back into the "R273H" form.
func (s AASub) String() string {
	return string(s.Ref) + strconv.Itoa(s.Codon) + string(s.Alt)
}
