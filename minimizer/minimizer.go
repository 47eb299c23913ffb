// Package minimizer enumerates canonical minimizers of a sequence: the
// lexicographically (here, numerically) smallest hash among every window of
// k consecutive symbols, chosen over a sliding window of w = l-k+1
// consecutive k-mers, deduplicated when consecutive windows pick the same
// k-mer.
//
// The sliding-window-minimum maintenance follows the monotonic-deque shape
// used by other_examples' shenwei356/unikmer minimizer sketch (a buffer of
// (index, value) pairs kept sorted/pruned as the window advances); the
// k-mer hash itself is farm.Hash64WithSeed, the same hash fusion/kmer_index.go's
// hashKmer uses to turn a packed k-mer into a uint64 suitable for a hash map
// key or an order key.
package minimizer

import (
	"blainsmith.com/go/seahash"
	"github.com/dgryski/go-farm"
	"github.com/pkg/errors"

	"github.com/grailbio/uindex/bitseq"
)

// HashFunc selects the k-mer hash minimizer selection is ordered by. The
// choice decides which k-mer each window selects; it has no bearing on
// correctness, so callers are free to pick whichever runs faster on their
// input sizes.
type HashFunc int

const (
	// HashFarm is farm.Hash64WithSeed, the default and the one
	// fusion/kmer_index.go's hashKmer uses.
	HashFarm HashFunc = iota
	// HashSeahash is seahash.Sum64, the same hash encoding/bamprovider's
	// concurrentmap.go and cmd/bio-pamtool/checksum.go use elsewhere in
	// this codebase for non-cryptographic keying.
	HashSeahash
)

// Hit is one selected minimizer: its start position in the plain sequence
// and its (canonical) hash value.
type Hit struct {
	Pos int
	Val uint64
}

// Params bundles the two sizes a minimizer scheme is parameterized over.
type Params struct {
	K    int // k-mer length
	L    int // window length; every window of L symbols contains >= 1 minimizer
	Hash HashFunc
}

// W returns the number of consecutive k-mers considered per minimizer window.
func (p Params) W() int {
	return p.L - p.K + 1
}

// Validate checks that K and L describe a legal scheme for a sequence of
// seqLen symbols at bitsPerSymbol bits each (see bitseq.Seq.BitsPerSymbol):
// k<=32 for a 2-bit alphabet, k<=8 for a byte alphabet, matching spec.md's
// per-alphabet k-mer bound so that every k-mer value still fits in 64 bits.
func (p Params) Validate(seqLen, bitsPerSymbol int) error {
	if p.K < 1 {
		return errors.Errorf("minimizer: k=%d must be >= 1", p.K)
	}
	if p.L < p.K {
		return errors.Errorf("minimizer: l=%d must be >= k=%d", p.L, p.K)
	}
	if p.K*bitsPerSymbol > 64 {
		return errors.Errorf("minimizer: k=%d too large for a %d-bit alphabet, kmer value must fit in 64 bits", p.K, bitsPerSymbol)
	}
	if seqLen < p.L {
		return ErrTooShort
	}
	return nil
}

// ErrTooShort is returned when a sequence is shorter than the minimizer
// scheme's window length L, so it contains no complete window.
var ErrTooShort = errors.New("minimizer: sequence shorter than window length l")

// KmerHash computes the canonical hash of the k-mer starting at position i,
// using the default hash (HashFarm). Exported so callers that already know a
// minimizer's plain-text position (e.g. via a position map) can re-derive its
// hash without re-running the sliding-window scan.
func KmerHash(seq bitseq.Seq, i, k int) uint64 {
	return KmerHashWith(seq, i, k, HashFarm)
}

// KmerHashWith is KmerHash under an explicit HashFunc, for callers (package
// sketch's IDAtRank) that must re-derive a hash consistently with the
// HashFunc a Sketcher was built with.
func KmerHashWith(seq bitseq.Seq, i, k int, h HashFunc) uint64 {
	nbytes := (k*seq.BitsPerSymbol() + 7) / 8
	buf := wordBytes(seq.ToWord(i, k), nbytes)
	switch h {
	case HashSeahash:
		return seahash.Sum64(buf)
	default:
		return farm.Hash64WithSeed(buf, 0)
	}
}

// wordBytes renders the low nbytes bytes of w (the tight big-endian
// encoding of a k-mer packed at its alphabet's actual bit width) as a byte
// slice suitable for hashing.
func wordBytes(w uint64, nbytes int) []byte {
	buf := make([]byte, nbytes)
	for i := nbytes - 1; i >= 0; i-- {
		buf[i] = byte(w)
		w >>= 8
	}
	return buf
}

// Minimizers enumerates the deduplicated minimizer hits of seq under params,
// in increasing position order. Consecutive windows that select the same
// k-mer position contribute a single Hit; ties within a window favor the
// leftmost (smallest-position) k-mer.
func Minimizers(seq bitseq.Seq, params Params) ([]Hit, error) {
	if err := params.Validate(seq.Len(), seq.BitsPerSymbol()); err != nil {
		return nil, err
	}
	k, w := params.K, params.W()
	n := seq.Len()
	numKmers := n - k + 1

	hashes := make([]uint64, numKmers)
	for i := 0; i < numKmers; i++ {
		hashes[i] = KmerHashWith(seq, i, k, params.Hash)
	}

	var hits []Hit
	var lastPos = -1

	// Monotonic deque of candidate indices into hashes, increasing by
	// value (ties broken by smaller index first), within the current
	// window of w consecutive k-mers.
	deque := make([]int, 0, w)
	for i := 0; i < numKmers; i++ {
		for len(deque) > 0 && hashes[deque[len(deque)-1]] > hashes[i] {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)
		for deque[0] <= i-w {
			deque = deque[1:]
		}
		if i >= w-1 {
			pos := deque[0]
			if pos != lastPos {
				hits = append(hits, Hit{Pos: pos, Val: hashes[pos]})
				lastPos = pos
			}
		}
	}
	if len(hits) == 0 {
		return nil, ErrTooShort
	}
	return hits, nil
}
