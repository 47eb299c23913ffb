package minimizer_test

import (
	"testing"

	"github.com/grailbio/uindex/bitseq"
	"github.com/grailbio/uindex/minimizer"
)

func mustPacked(t *testing.T, s string) bitseq.Packed2Bit {
	t.Helper()
	p, err := bitseq.NewPacked2Bit([]byte(s), nil)
	if err != nil {
		t.Fatalf("NewPacked2Bit: %v", err)
	}
	return p
}

func TestMinimizersAscendingAndDeduped(t *testing.T) {
	seq := mustPacked(t, "ACGTACGTACGTACGTACGT")
	hits, err := minimizer.Minimizers(seq, minimizer.Params{K: 4, L: 8})
	if err != nil {
		t.Fatalf("Minimizers: %v", err)
	}
	if len(hits) == 0 {
		t.Fatalf("expected at least one hit")
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Pos <= hits[i-1].Pos {
			t.Errorf("hits not strictly ascending at %d: %+v", i, hits)
		}
	}
}

func TestMinimizersTooShort(t *testing.T) {
	seq := mustPacked(t, "ACG")
	if _, err := minimizer.Minimizers(seq, minimizer.Params{K: 4, L: 8}); err != minimizer.ErrTooShort {
		t.Errorf("Minimizers = %v, want ErrTooShort", err)
	}
}

func TestMinimizersDeterministic(t *testing.T) {
	seq := mustPacked(t, "ACGTTGCATGCATGCATGCATGCA")
	h1, err := minimizer.Minimizers(seq, minimizer.Params{K: 5, L: 11})
	if err != nil {
		t.Fatalf("Minimizers: %v", err)
	}
	h2, err := minimizer.Minimizers(seq, minimizer.Params{K: 5, L: 11})
	if err != nil {
		t.Fatalf("Minimizers: %v", err)
	}
	if len(h1) != len(h2) {
		t.Fatalf("non-deterministic hit count: %d vs %d", len(h1), len(h2))
	}
	for i := range h1 {
		if h1[i] != h2[i] {
			t.Errorf("non-deterministic hit at %d: %+v vs %+v", i, h1[i], h2[i])
		}
	}
}

func TestParamsW(t *testing.T) {
	p := minimizer.Params{K: 4, L: 10}
	if got, want := p.W(), 7; got != want {
		t.Errorf("W() = %d, want %d", got, want)
	}
}

func TestSeahashAgreesAcrossRuns(t *testing.T) {
	seq := mustPacked(t, "ACGTTGCATGCATGCATGCATGCA")
	params := minimizer.Params{K: 5, L: 11, Hash: minimizer.HashSeahash}
	h1, err := minimizer.Minimizers(seq, params)
	if err != nil {
		t.Fatalf("Minimizers: %v", err)
	}
	h2, err := minimizer.Minimizers(seq, params)
	if err != nil {
		t.Fatalf("Minimizers: %v", err)
	}
	if len(h1) != len(h2) {
		t.Fatalf("non-deterministic hit count: %d vs %d", len(h1), len(h2))
	}
	for i := range h1 {
		if h1[i] != h2[i] {
			t.Errorf("non-deterministic hit at %d: %+v vs %+v", i, h1[i], h2[i])
		}
	}
}

func TestSeahashAndFarmCanDisagreeOnSelection(t *testing.T) {
	// Different hash functions are free to pick different minimizers for
	// the same text; both must still produce valid, ascending, deduped hit
	// streams.
	seq := mustPacked(t, "ACGTTGCATGCATGCATGCATGCA")
	farmHits, err := minimizer.Minimizers(seq, minimizer.Params{K: 5, L: 11, Hash: minimizer.HashFarm})
	if err != nil {
		t.Fatalf("Minimizers (farm): %v", err)
	}
	seaHits, err := minimizer.Minimizers(seq, minimizer.Params{K: 5, L: 11, Hash: minimizer.HashSeahash})
	if err != nil {
		t.Fatalf("Minimizers (seahash): %v", err)
	}
	for _, hits := range [][]minimizer.Hit{farmHits, seaHits} {
		for i := 1; i < len(hits); i++ {
			if hits[i].Pos <= hits[i-1].Pos {
				t.Errorf("hits not strictly ascending at %d: %+v", i, hits)
			}
		}
	}
}

func TestMinimizersAllowsLargeKForTwoBitAlphabet(t *testing.T) {
	// spec.md's k-mer bound is k<=32 for a 2-bit alphabet (fits in 64
	// bits), well above the k<=8 byte-alphabet bound; this only works if
	// the hash input is sized off BitsPerSymbol rather than assumed to be
	// one byte per base.
	raw := make([]byte, 80)
	bases := []byte("ACGT")
	for i := range raw {
		raw[i] = bases[i%4]
	}
	seq := mustPacked(t, string(raw))
	hits, err := minimizer.Minimizers(seq, minimizer.Params{K: 32, L: 40})
	if err != nil {
		t.Fatalf("Minimizers: %v", err)
	}
	if len(hits) == 0 {
		t.Fatalf("expected at least one hit")
	}
}

func TestMinimizersRejectsKTooLargeForByteAlphabet(t *testing.T) {
	b, err := bitseq.NewByte(make([]byte, 40), nil)
	if err != nil {
		t.Fatalf("NewByte: %v", err)
	}
	if _, err := minimizer.Minimizers(b, minimizer.Params{K: 9, L: 16}); err == nil {
		t.Errorf("expected an error for k=9 on a byte alphabet (k*8 > 64)")
	}
}

func TestIdentityLikeParams(t *testing.T) {
	// k=l=1 means every window is exactly one k-mer: no deduplication
	// collapses distinct positions, so every position becomes a minimizer.
	seq := mustPacked(t, "ACGT")
	hits, err := minimizer.Minimizers(seq, minimizer.Params{K: 1, L: 1})
	if err != nil {
		t.Fatalf("Minimizers: %v", err)
	}
	if len(hits) != 4 {
		t.Errorf("len(hits) = %d, want 4", len(hits))
	}
	for i, h := range hits {
		if h.Pos != i {
			t.Errorf("hits[%d].Pos = %d, want %d", i, h.Pos, i)
		}
	}
}
