package sitednds

import (
	"encoding/json"
	"errors"
	"math"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/op/go-logging"
	bolt "go.etcd.io/bbolt"

	"bitbucket.org/Davydov/sitednds/mut"
	"bitbucket.org/Davydov/sitednds/smodel"
	"bitbucket.org/Davydov/sitednds/trinuc"
)

// smallDiff is the minimal difference for which computed values are
// considered different.
const smallDiff = 1e-9

func init() {
	// disable logging for tests
	for _, pkg := range []string{"sitednds", "smodel", "recur", "optimize", "checkpoint"} {
		logging.SetLevel(logging.ERROR, pkg)
	}
}

func relDiff(a, b float64) float64 {
	return math.Abs(a-b) / math.Abs(b)
}

// uniformModel returns a substitution model with every relative rate
// and selection coefficient at 1.
func uniformModel() map[string]float64 {
	params := map[string]float64{"t": 0.1, "wmis": 1, "wnon": 1, "wspl": 1}
	for i, label := range trinuc.NumChange {
		if i > 0 {
			params[label] = 1
		}
	}
	return params
}

// mkGene creates a gene repeating the same per-codon impact pattern.
func mkGene(name string, ncodons int, imp []mut.Impact) *smodel.Gene {
	g := &smodel.Gene{Name: name, CDSLength: 3 * ncodons}
	for c := 0; c < ncodons; c++ {
		for j := range imp {
			g.RateIdx = append(g.RateIdx, byte((c*len(imp)+j)%trinuc.NChange))
			g.Impact = append(g.Impact, imp[j])
		}
	}
	return g
}

func ev(chr, gene string, pos int, ref, alt byte, aa string, imp mut.Impact) mut.Mutation {
	return mut.Mutation{Chr: chr, Gene: gene, Pos: pos, Ref: ref, Alt: alt,
		AAChange: aa, Impact: imp}
}

// testData builds a two-gene dataset: GA with one codon at expected
// nonsynonymous rate 0.5, GB with ten codons at 1.2, six synonymous
// background mutations and two recurrently mutated codons.
func testData() *Data {
	impA := []mut.Impact{
		mut.Missense, mut.Missense, mut.Missense,
		mut.Nonsense, mut.Nonsense,
		mut.Synonymous, mut.Synonymous, mut.Synonymous, mut.Synonymous,
	}
	impB := []mut.Impact{
		mut.Synonymous, mut.Synonymous, mut.Synonymous,
		mut.Missense, mut.Missense, mut.Missense, mut.Missense, mut.Missense,
		mut.Nonsense,
	}

	muts := []mut.Mutation{
		// recurrent nonsynonymous codon, gene A
		ev("1", "GA", 101, 'A', 'T', "K1N", mut.Missense),
		ev("1", "GA", 101, 'A', 'T', "K1N", mut.Missense),
		ev("1", "GA", 101, 'A', 'T', "K1N", mut.Missense),
		ev("1", "GA", 102, 'A', 'C', "K1T", mut.Missense),
		ev("1", "GA", 102, 'A', 'C', "K1T", mut.Missense),
		// recurrent nonsynonymous codon, gene B
		ev("2", "GB", 5001, 'C', 'T', "L4F", mut.Missense),
		ev("2", "GB", 5001, 'C', 'T', "L4F", mut.Missense),
		// below the recurrence threshold
		ev("2", "GB", 5100, 'G', 'A', "W7*", mut.Nonsense),
		// synonymous background
		ev("2", "GB", 4001, 'G', 'A', "L1L", mut.Synonymous),
		ev("2", "GB", 4001, 'G', 'A', "L1L", mut.Synonymous),
		ev("2", "GB", 4002, 'C', 'T', "L1L", mut.Synonymous),
		ev("2", "GB", 5012, 'C', 'T', "T5T", mut.Synonymous),
		ev("2", "GB", 5030, 'G', 'C', "P7P", mut.Synonymous),
		ev("2", "GB", 5030, 'G', 'C', "P7P", mut.Synonymous),
	}

	return &Data{
		Genes: []*smodel.Gene{mkGene("GA", 1, impA), mkGene("GB", 10, impB)},
		Model: uniformModel(),
		Estimates: []smodel.GeneEstimate{
			{Gene: "GA", ExpSyn: 1, ExpSynCV: 1},
			{Gene: "GB", ExpSyn: 1, ExpSynCV: 2},
		},
		Mutations: muts,
	}
}

func TestRun(tst *testing.T) {
	res, err := Run(testData(), NewConfig())
	if err != nil {
		tst.Fatal("Error running the analysis:", err)
	}
	if len(res.Warnings) != 0 {
		tst.Error("Unexpected warnings:", res.Warnings)
	}

	if math.Abs(res.Factor-0.9375000000000002) > smallDiff {
		tst.Error("Expected calibration factor 0.9375, got", res.Factor)
	}

	d := res.Dispersion
	tst.Log("theta=", d.MLE, ", CI=[", d.Lo, ",", d.Hi, "], lnL=", d.LnL)
	if relDiff(d.MLE, 0.39940433185863256) > 1e-3 {
		tst.Error("Expected theta 0.399404, got", d.MLE)
	}
	if math.Abs(d.LnL+10.6850599226586) > 1e-6 {
		tst.Error("Expected lnL -10.68506, got", d.LnL)
	}
	if relDiff(d.Lo, 0.047857218892512994) > 1e-3 {
		tst.Error("Expected CI low 0.047857, got", d.Lo)
	}
	if d.Hi != 1e4 {
		tst.Error("Expected CI high at the grid end, got", d.Hi)
	}

	if len(res.Sites) != 2 || len(res.Details) != 2 {
		tst.Fatal("Expected 2 sites, got", len(res.Sites))
	}
	a, b := res.Sites[0], res.Sites[1]
	if a.Gene != "GA" || a.Codon != 1 || a.Freq != 5 {
		tst.Error("Wrong top site:", a)
	}
	if math.Abs(a.Mu-0.5) > smallDiff || math.Abs(a.DNDS-10) > smallDiff {
		tst.Error("Wrong top site estimates:", a.Mu, a.DNDS)
	}
	if relDiff(a.P, 0.013015187616063639) > 1e-3 {
		tst.Error("Expected p 0.013015, got", a.P)
	}
	if relDiff(a.Q, 0.14316706377670002) > 1e-3 {
		tst.Error("Expected q 0.143167, got", a.Q)
	}
	if b.Gene != "GB" || b.Codon != 4 || b.Freq != 2 {
		tst.Error("Wrong second site:", b)
	}
	if math.Abs(b.Mu-1.2) > smallDiff || math.Abs(b.DNDS-2/1.2) > smallDiff {
		tst.Error("Wrong second site estimates:", b.Mu, b.DNDS)
	}
	if relDiff(b.P, 0.25325542019440084) > 1e-3 {
		tst.Error("Expected p 0.253255, got", b.P)
	}
	if b.Q != 1 {
		tst.Error("Expected q capped at 1, got", b.Q)
	}
	if res.Details[0].AAs != "N:3|T:2" || res.Details[0].Muts != "A>T_101_N:3|A>C_102_T:2" {
		tst.Error("Wrong top site breakdowns:", res.Details[0])
	}

	if len(res.GeneRates) != 2 {
		tst.Fatal("Expected 2 gene summaries, got", len(res.GeneRates))
	}
	ga, gb := res.GeneRates[0], res.GeneRates[1]
	if ga.Gene != "GA" || math.Abs(ga.NSyn) > smallDiff ||
		math.Abs(ga.ExpSyn-0.4) > smallDiff ||
		math.Abs(ga.ExpMis-0.3) > smallDiff ||
		math.Abs(ga.ExpNon-0.2) > smallDiff ||
		math.Abs(ga.RelMut-1) > smallDiff {
		tst.Error("Wrong gene A summary:", ga)
	}
	if gb.Gene != "GB" || math.Abs(gb.NSyn-6) > smallDiff ||
		math.Abs(gb.ExpSyn-6) > smallDiff ||
		math.Abs(gb.ExpMis-10) > smallDiff ||
		math.Abs(gb.ExpNon-2) > smallDiff ||
		math.Abs(gb.RelMut-2) > smallDiff {
		tst.Error("Wrong gene B summary:", gb)
	}

	blob, err := json.Marshal(res)
	if err != nil {
		tst.Fatal("Error serializing the result:", err)
	}
	for _, key := range []string{`"mle"`, `"sites"`, `"geneRates"`} {
		if !strings.Contains(string(blob), key) {
			tst.Error("Expected", key, "in the serialized result")
		}
	}
}

func TestRunConservative(tst *testing.T) {
	cfg := NewConfig()
	cfg.ThetaOption = "conservative"
	res, err := Run(testData(), cfg)
	if err != nil {
		tst.Fatal("Error running the analysis:", err)
	}
	if len(res.Sites) != 2 {
		tst.Fatal("Expected 2 sites, got", len(res.Sites))
	}
	a, b := res.Sites[0], res.Sites[1]
	if relDiff(a.P, 0.03303608015009318) > 1e-3 || relDiff(a.Q, 0.363396881651025) > 1e-3 {
		tst.Error("Wrong top site under the conservative dispersion:", a.P, a.Q)
	}
	if relDiff(b.P, 0.1051205875879585) > 1e-3 || relDiff(b.Q, 0.5781632317337717) > 1e-3 {
		tst.Error("Wrong second site under the conservative dispersion:", b.P, b.Q)
	}
}

func TestRunGeneList(tst *testing.T) {
	cfg := NewConfig()
	cfg.GeneList = []string{"GB", "GX"}
	res, err := Run(testData(), cfg)
	if err != nil {
		tst.Fatal("Error running the analysis:", err)
	}

	if res.Factor != 1 {
		tst.Error("Expected calibration factor 1, got", res.Factor)
	}
	if relDiff(res.Dispersion.MLE, 0.4443126281311574) > 1e-3 {
		tst.Error("Expected theta 0.444313, got", res.Dispersion.MLE)
	}
	if len(res.GeneRates) != 1 || res.GeneRates[0].Gene != "GB" {
		tst.Error("Expected a single gene summary, got", res.GeneRates)
	}

	// only one recurrent codon remains: empty tables, dispersion kept
	if len(res.Sites) != 0 || len(res.Details) != 0 {
		tst.Error("Expected empty site tables, got", res.Sites)
	}
	if len(res.Warnings) != 3 {
		tst.Error("Expected 3 warnings, got", res.Warnings)
	}
	all := strings.Join(res.Warnings, "\n")
	for _, part := range []string{"GX", "GA", "nothing to report"} {
		if !strings.Contains(all, part) {
			tst.Error("Expected a warning mentioning", part, ", got", all)
		}
	}
}

func TestRunSynDrivers(tst *testing.T) {
	cfg := NewConfig()
	cfg.SynDrivers = []string{"GB:T5T"}
	res, err := Run(testData(), cfg)
	if err != nil {
		tst.Fatal("Error running the analysis:", err)
	}

	// one background count excluded
	if math.Abs(res.GeneRates[1].NSyn-5) > smallDiff {
		tst.Error("Expected 5 synonymous counts after exclusion, got", res.GeneRates[1].NSyn)
	}
	if math.Abs(res.Factor-0.7812500000000002) > smallDiff {
		tst.Error("Expected calibration factor 0.78125, got", res.Factor)
	}
	if relDiff(res.Dispersion.MLE, 0.16287318466437556) > 1e-3 {
		tst.Error("Expected theta 0.162873, got", res.Dispersion.MLE)
	}
	if len(res.Sites) != 2 {
		tst.Fatal("Expected 2 sites, got", len(res.Sites))
	}
	if relDiff(res.Sites[0].P, 0.026527727732162398) > 1e-3 ||
		relDiff(res.Sites[0].Q, 0.29180500505378637) > 1e-3 {
		tst.Error("Wrong top site after exclusion:", res.Sites[0].P, res.Sites[0].Q)
	}
}

func TestRunSynWarnings(tst *testing.T) {
	data := testData()
	data.Mutations = append(data.Mutations,
		// unparseable substitution
		ev("2", "GB", 5040, 'A', 'C', "zz", mut.Synonymous),
		// inconsistent impact annotation
		ev("2", "GB", 5050, 'A', 'C', "K2N", mut.Synonymous))
	res, err := Run(data, NewConfig())
	if err != nil {
		tst.Fatal("Error running the analysis:", err)
	}
	if len(res.Warnings) != 2 {
		tst.Error("Expected 2 warnings, got", res.Warnings)
	}
	all := strings.Join(res.Warnings, "\n")
	if !strings.Contains(all, "zz") || !strings.Contains(all, "marked synonymous") {
		tst.Error("Expected skipped row warnings, got", all)
	}
	// neither row contributes to the background
	if math.Abs(res.GeneRates[1].NSyn-6) > smallDiff {
		tst.Error("Expected 6 synonymous counts, got", res.GeneRates[1].NSyn)
	}
}

func TestRunIdempotent(tst *testing.T) {
	data := testData()
	cfg1 := NewConfig()
	cfg1.Threads = 1
	res1, err := Run(data, cfg1)
	if err != nil {
		tst.Fatal("Error running the analysis:", err)
	}
	cfg2 := NewConfig()
	cfg2.Threads = 4
	res2, err := Run(data, cfg2)
	if err != nil {
		tst.Fatal("Error running the analysis:", err)
	}
	if !reflect.DeepEqual(res1, res2) {
		tst.Error("Results differ between runs:", res1, res2)
	}
}

func TestRunDefaults(tst *testing.T) {
	res, err := Run(testData(), nil)
	if err != nil {
		tst.Fatal("Error running the analysis:", err)
	}
	if len(res.Sites) != 2 {
		tst.Error("Expected 2 sites with default settings, got", len(res.Sites))
	}
}

func TestRunCheckpoint(tst *testing.T) {
	db, err := bolt.Open(filepath.Join(tst.TempDir(), "fit.db"), 0600, nil)
	if err != nil {
		tst.Fatal("Error opening database:", err)
	}
	tst.Cleanup(func() { db.Close() })

	data := testData()
	cfg := NewConfig()
	cfg.Fit.Checkpoint = db
	res1, err := Run(data, cfg)
	if err != nil {
		tst.Fatal("Error running the analysis:", err)
	}
	res2, err := Run(data, cfg)
	if err != nil {
		tst.Fatal("Error running the analysis:", err)
	}
	if !reflect.DeepEqual(res1.Dispersion, res2.Dispersion) {
		tst.Error("Cached fit differs:", res1.Dispersion, res2.Dispersion)
	}
}

func TestRunErrors(tst *testing.T) {
	data := testData()
	delete(data.Model, "wspl")
	_, err := Run(data, NewConfig())
	if !errors.Is(err, ErrInvalidInput) {
		tst.Error("Expected an invalid input error for a bad model, got", err)
	}

	data = testData()
	data.Genes = append(data.Genes, &smodel.Gene{Name: "GZ", CDSLength: 3})
	_, err = Run(data, NewConfig())
	if !errors.Is(err, ErrInvalidInput) {
		tst.Error("Expected an invalid input error for an unclassified gene, got", err)
	}

	data = testData()
	data.Genes = nil
	_, err = Run(data, NewConfig())
	if err == nil || errors.Is(err, ErrInvalidInput) {
		tst.Error("Expected a plain error for an empty selection, got", err)
	}
}
