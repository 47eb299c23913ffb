// Package msa implements a variable-width suffix array over a
// minimizer-space string (MS): the width-W integer alphabet stream produced
// by package sketch.
//
// Construction dispatches on W: W=1 and W=2 sort the MS bytes directly (a
// big-endian uint16 view orders the same as its two raw bytes); W>=3
// compacts the id alphabet to ranks before sorting, avoiding a suffix array
// over 64-bit keys. All three paths
// feed the same comparison-based sort, so correctness doesn't depend on the
// path taken.
//
// The search algorithm -- sa_search and its nested ternary nature -- is
// transcribed from the original Rust implementation's port of
// libdivsufsort's sa_search/sa_compare (itself transcribed from
// https://github.com/y-256/libdivsufsort). It keeps running lower bounds
// (lmatch/rmatch) on how many leading bytes are already known to match, so
// a binary search step never re-compares a prefix it has already verified.
package msa

import (
	"bytes"
	"sort"

	"github.com/grailbio/uindex/bitseq"
	"github.com/grailbio/uindex/sketch"
)

// SuffixArrayMS is a suffix array over a text's minimizer-space string.
type SuffixArrayMS struct {
	width int
	sk    *sketch.Sketcher
	seq   bitseq.Seq // only needed when ms == nil
	ms    sketch.MS  // nil when built in "don't store MS" mode
	sa    []int32    // byte offsets into the (logical) MS string, multiples of width
}

// Build constructs a suffix array over ms, the minimizer-space encoding of
// seq produced by sk. When storeMS is false, ms's bytes aren't retained;
// comparisons instead re-derive each minimizer id from seq through sk,
// trading search speed for memory.
func Build(sk *sketch.Sketcher, ms sketch.MS, seq bitseq.Seq, storeMS bool) *SuffixArrayMS {
	w := sk.Width()
	n := len(ms) / w

	idx := make([]int32, n)
	for i := range idx {
		idx[i] = int32(i)
	}

	switch {
	case w == 1:
		sortByBytes(idx, ms, w)
	case w == 2:
		sortByBytes(idx, ms, w) // a uint16 big-endian view sorts identically to its 2 raw bytes
	default:
		sortByRanks(idx, ms, w)
	}

	sa := make([]int32, n)
	for i, v := range idx {
		sa[i] = v * int32(w)
	}

	out := &SuffixArrayMS{width: w, sk: sk, seq: seq, sa: sa}
	if storeMS {
		out.ms = ms
	}
	return out
}

func sortByBytes(idx []int32, ms sketch.MS, w int) {
	sort.Slice(idx, func(a, b int) bool {
		i, j := int(idx[a])*w, int(idx[b])*w
		return bytes.Compare(ms[i:], ms[j:]) < 0
	})
}

// sortByRanks compacts the width-w id alphabet to dense ranks before
// sorting, so the comparator never has to look at more than one rank per
// position -- the W>=3 "alphabet compaction" path.
func sortByRanks(idx []int32, ms sketch.MS, w int) {
	n := len(ms) / w
	ranks := rankStream(ms, w, n)
	sort.Slice(idx, func(a, b int) bool {
		i, j := int(idx[a]), int(idx[b])
		for i < n && j < n {
			if ranks[i] != ranks[j] {
				return ranks[i] < ranks[j]
			}
			i++
			j++
		}
		return i >= n && j < n
	})
}

func rankStream(ms sketch.MS, w, n int) []int32 {
	type kv struct {
		id  string
		pos int
	}
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = string(ms[i*w : (i+1)*w])
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	rankOf := make(map[string]int32, n)
	next := int32(0)
	for _, id := range sorted {
		if _, ok := rankOf[id]; !ok {
			rankOf[id] = next
			next++
		}
	}
	ranks := make([]int32, n)
	for i, id := range ids {
		ranks[i] = rankOf[id]
	}
	return ranks
}

// Len returns the number of suffixes in the array.
func (s *SuffixArrayMS) Len() int { return len(s.sa) }

// At returns the byte offset of the i'th suffix in sorted order.
func (s *SuffixArrayMS) At(i int) int { return int(s.sa[i]) }

// minimizerAt returns the encoded minimizer id at MS-byte-offset i of the
// indexed text, from the stored MS bytes if present, else re-derived via
// the sketcher and plain-text sequence.
func (s *SuffixArrayMS) minimizerAt(i int) uint64 {
	if s.ms != nil {
		v, _ := s.sk.GetMinimizerValue(s.ms, i/s.width)
		return v
	}
	v, _ := s.sk.IDAtRank(s.seq, i/s.width)
	return v
}

func patternMinimizerAt(sk *sketch.Sketcher, p sketch.MS, j int) uint64 {
	v, _ := sk.GetMinimizerValue(p, j/sk.Width())
	return v
}

// compare compares the suffix of the indexed text starting at MS-byte-offset
// suf against pattern p, having already matched the leading match bytes of
// both. It returns -1/0/1 (text<pattern / equal / text>pattern) and updates
// match to the total number of matched bytes.
func (s *SuffixArrayMS) compare(p sketch.MS, suf int, match *int) int {
	w := s.width
	i := suf + *match
	j := *match
	r := 0
	textLen := s.sk.Len() * w
	patLen := len(p)
	for i < textLen && j < patLen {
		tv := s.minimizerAt(i)
		pv := patternMinimizerAt(s.sk, p, j)
		switch {
		case tv < pv:
			r = -1
		case tv > pv:
			r = 1
		default:
			r = 0
		}
		if r != 0 {
			break
		}
		i += w
		j += w
	}
	*match = j
	if r == 0 && j != patLen {
		r = -1
	}
	return r
}

// Search finds the range of suffixes with pattern p as a prefix. Returns
// (pos, cnt): sa[pos:pos+cnt] are the MS byte offsets of the matching
// suffixes, in suffix (lexicographic) order, not sorted by offset.
func (s *SuffixArrayMS) Search(p sketch.MS) (pos, cnt int) {
	size := len(s.sa)
	if s.sk.Len() == 0 || size == 0 {
		return 0, 0
	}
	if len(p) == 0 {
		return 0, size
	}

	var i, j, k int
	lmatch, rmatch := 0, 0

	for size > 0 {
		half := size / 2
		match := minInt(lmatch, rmatch)
		r := s.compare(p, int(s.sa[i+half]), &match)
		switch {
		case r < 0:
			i += half + 1
			half -= oneMinus(size & 1)
			lmatch = match
		case r > 0:
			rmatch = match
		default:
			lsize := half
			j = i
			rsize := size - half - 1
			k = i + half + 1

			llmatch, lrmatch := lmatch, match
			for lsize > 0 {
				half = lsize >> 1
				lmatch = minInt(llmatch, lrmatch)
				r = s.compare(p, int(s.sa[j+half]), &lmatch)
				if r < 0 {
					j += half + 1
					half -= oneMinus(lsize & 1)
					llmatch = lmatch
				} else {
					lrmatch = lmatch
				}
				lsize = half
			}

			rlmatch, rrmatch := match, rmatch
			for rsize > 0 {
				half = rsize >> 1
				rmatch = minInt(rlmatch, rrmatch)
				r = s.compare(p, int(s.sa[k+half]), &rmatch)
				if r <= 0 {
					k += half + 1
					half -= oneMinus(rsize & 1)
					rlmatch = rmatch
				} else {
					rrmatch = rmatch
				}
				rsize = half
			}
			size = 0 // break out of the outer loop; j,k already final
			continue
		}
		size = half
	}

	if k-j > 0 {
		return j, k - j
	}
	return i, k - j
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// oneMinus returns 1-bit (bit is 0 or 1), matching the Rust `(size & 1) ^ 1`
// idiom used to adjust the half-size on an odd/even split.
func oneMinus(bit int) int {
	return bit ^ 1
}
