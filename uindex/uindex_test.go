package uindex_test

import (
	"math/rand"
	"testing"

	"github.com/grailbio/uindex/bitseq"
	"github.com/grailbio/uindex/fmindex"
	"github.com/grailbio/uindex/sketch"
	"github.com/grailbio/uindex/uindex"
)

func mustPacked(t *testing.T, s string) bitseq.Packed2Bit {
	t.Helper()
	p, err := bitseq.NewPacked2Bit([]byte(s), nil)
	if err != nil {
		t.Fatalf("NewPacked2Bit: %v", err)
	}
	return p
}

// buildIndex builds a full UIndex the way cmd/uindex-bench does: sketch
// first to get a *sketch.Sketcher, then wire a SuffixBackend around it,
// then hand both to uindex.BuildWithSketch.
func buildIndex(t *testing.T, seq bitseq.Seq, ranges []bitseq.Range, opts sketch.Opts) *uindex.UIndex {
	t.Helper()
	sk, ms, err := sketch.Build(seq, opts)
	if err != nil {
		t.Fatalf("sketch.Build: %v", err)
	}
	be := fmindex.NewSuffixBackend(sk, seq, true)
	ui, err := uindex.BuildWithSketch(seq, ranges, sk, ms, be)
	if err != nil {
		t.Fatalf("uindex.BuildWithSketch: %v", err)
	}
	return ui
}

func TestScenario1IdentityIndex(t *testing.T) {
	seq := mustPacked(t, "ACGTACGTACGTACGT")
	ui := buildIndex(t, seq, nil, sketch.Opts{K: 1, L: 1})
	pattern := mustPacked(t, "ACGT")
	matches, ok, err := ui.Query(pattern)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !ok {
		t.Fatalf("Query returned ok=false")
	}
	want := map[int]bool{0: true, 4: true, 8: true, 12: true}
	got := map[int]bool{}
	for _, m := range matches {
		got[m] = true
	}
	if len(got) != len(want) {
		t.Fatalf("matches = %v, want %v", matches, want)
	}
	for k := range want {
		if !got[k] {
			t.Errorf("missing match at %d", k)
		}
	}
}

func randomACGT(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	alphabet := []byte("ACGT")
	out := make([]byte, n)
	for i := range out {
		out[i] = alphabet[r.Intn(4)]
	}
	return out
}

func TestScenario2RandomSubstringsFound(t *testing.T) {
	raw := randomACGT(100000, 42)
	seq, err := bitseq.NewPacked2Bit(raw, nil)
	if err != nil {
		t.Fatalf("NewPacked2Bit: %v", err)
	}
	type kl struct{ k, l int }
	r := rand.New(rand.NewSource(7))
	for _, p := range []kl{{1, 1}, {2, 10}, {8, 100}} {
		ui := buildIndex(t, seq, nil, sketch.Opts{K: p.k, L: p.l})
		for i := 0; i < 20; i++ {
			plen := p.l + r.Intn(100)
			if plen > len(raw) {
				plen = len(raw)
			}
			start := r.Intn(len(raw) - plen + 1)
			pat, err := bitseq.NewPacked2Bit(raw[start:start+plen], nil)
			if err != nil {
				t.Fatalf("NewPacked2Bit: %v", err)
			}
			matches, ok, err := ui.Query(pat)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if !ok {
				t.Fatalf("k=%d l=%d: Query returned ok=false for plen=%d", p.k, p.l, plen)
			}
			found := false
			for _, m := range matches {
				if m == start {
					found = true
				}
			}
			if !found {
				t.Errorf("k=%d l=%d: planted occurrence at %d not found (matches=%v)", p.k, p.l, start, matches)
			}
		}
	}
}

func TestScenario4RangeBoundarySuppression(t *testing.T) {
	// Two 100-byte ranges; construct text so that a 5-byte pattern occurs
	// both fully inside range 0 (at 90) and straddling the boundary (98..103).
	first := randomACGT(100, 1)
	second := randomACGT(100, 2)
	pattern := []byte("GATCA")
	copy(first[90:95], pattern)      // fully inside range 0: must be emitted
	copy(first[98:100], pattern[:2]) // crosses the boundary at 100: must not be emitted
	copy(second[0:3], pattern[2:])
	raw := append(append([]byte{}, first...), second...)

	seq, err := bitseq.NewPacked2Bit(raw, nil)
	if err != nil {
		t.Fatalf("NewPacked2Bit: %v", err)
	}
	ranges := []bitseq.Range{{Start: 0, End: 100}, {Start: 100, End: 200}}
	ui := buildIndex(t, seq, ranges, sketch.Opts{K: 1, L: 1})

	pat, err := bitseq.NewPacked2Bit(pattern, nil)
	if err != nil {
		t.Fatalf("NewPacked2Bit: %v", err)
	}
	matches, ok, err := ui.Query(pat)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !ok {
		t.Fatalf("Query returned ok=false")
	}
	sawInRange := false
	for _, m := range matches {
		if m+len(pattern) > 100 && m < 100 {
			t.Errorf("match at %d crosses the range boundary at 100", m)
		}
		if m == 90 {
			sawInRange = true
		}
	}
	if !sawInRange {
		t.Errorf("in-range occurrence at 90 not emitted (matches=%v)", matches)
	}
}

func TestScenario6SkipZeroNoZeroBytesAcceptedByBuild(t *testing.T) {
	raw := randomACGT(2000, 99)
	seq, err := bitseq.NewPacked2Bit(raw, nil)
	if err != nil {
		t.Fatalf("NewPacked2Bit: %v", err)
	}
	// zeroRejectingBackend fails Build if any byte of ms is zero --
	// standing in for an FM back-end that forbids zero bytes.
	sk, ms, err := sketch.Build(seq, sketch.Opts{K: 4, L: 9, Remap: true, SkipZero: true})
	if err != nil {
		t.Fatalf("sketch.Build: %v", err)
	}
	be := &zeroRejectingBackend{}
	if _, err := uindex.BuildWithSketch(seq, nil, sk, ms, be); err != nil {
		t.Fatalf("BuildWithSketch rejected a skip_zero build: %v", err)
	}
}

type zeroRejectingBackend struct{}

func (b *zeroRejectingBackend) Build(ms sketch.MS, width int) error {
	for _, by := range ms {
		if by == 0 {
			return errZeroByte
		}
	}
	return nil
}
func (b *zeroRejectingBackend) Locate(pattern sketch.MS) ([]int, error) { return nil, nil }

var errZeroByte = &zeroByteErr{}

type zeroByteErr struct{}

func (*zeroByteErr) Error() string { return "zero byte in minimizer-space string" }
