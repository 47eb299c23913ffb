// Package sindex implements the sparse suffix array: a suffix array built
// only over minimizer positions of the text (not every suffix), searched
// by first locating a query's own minimizer offset and then running the
// same ternary LCP-guided binary search §4.2 uses, but directly over
// plain-text byte suffixes instead of minimizer-space ids.
//
// Grounded on the original s_index.rs: minimizer positions are computed
// with the same dedup-by-consecutive-equality scheme as package minimizer,
// sorted by their plain-text suffix, and queried by locating the offset of
// the pattern's own leading minimizer (a naive scan of its first window)
// before delegating to the shared ternary search shape.
package sindex

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/grailbio/uindex/bitseq"
	"github.com/grailbio/uindex/minimizer"
	"github.com/grailbio/uindex/rangedict"
)

// ErrTooShort is returned when a query pattern is shorter than the window
// length l, so it has no minimizer to anchor a search on.
var ErrTooShort = errors.New("sindex: pattern shorter than window length l")

// SIndex is a sparse suffix array over a text's minimizer positions.
type SIndex struct {
	seq    bitseq.Seq
	ranges rangedict.Dict
	sa     []int32 // plain-text positions of minimizers, sorted by suffix
	k, l   int
}

// Build computes the minimizer positions of seq (k, l) and sorts them by
// their plain-text suffix. nil ranges means seq.Ranges().
func Build(seq bitseq.Seq, ranges []bitseq.Range, k, l int) (*SIndex, error) {
	hits, err := minimizer.Minimizers(seq, minimizer.Params{K: k, L: l})
	if err != nil {
		return nil, errors.Wrap(err, "sindex: build")
	}
	sa := make([]int32, len(hits))
	for i, h := range hits {
		sa[i] = int32(h.Pos)
	}
	sort.SliceStable(sa, func(a, b int) bool {
		return compareSuffixes(seq, int(sa[a]), int(sa[b])) < 0
	})

	if ranges == nil {
		ranges = seq.Ranges()
	}
	rdRanges := make([]rangedict.Range, len(ranges))
	for i, r := range ranges {
		rdRanges[i] = rangedict.Range{Start: r.Start, End: r.End}
	}
	return &SIndex{seq: seq, ranges: rangedict.Build(rdRanges), sa: sa, k: k, l: l}, nil
}

func compareSuffixes(seq bitseq.Seq, i, j int) int {
	n := seq.Len()
	for i < n && j < n {
		a, b := seq.At(i), seq.At(j)
		if a != b {
			if a < b {
				return -1
			}
			return 1
		}
		i++
		j++
	}
	switch {
	case i >= n && j >= n:
		return 0
	case i >= n:
		return -1
	default:
		return 1
	}
}

// patternOffset finds the position within pattern's first l-length window
// where its minimizer lies, by a naive scan (not the monotonic-deque
// scheme package minimizer's general enumeration uses, since here there's
// only ever one window to consider).
func patternOffset(pattern bitseq.Seq, k, l int) (int, error) {
	if pattern.Len() < l {
		return 0, ErrTooShort
	}
	w := l - k + 1
	best := 0
	bestHash := minimizer.KmerHash(pattern, 0, k)
	for i := 1; i < w; i++ {
		h := minimizer.KmerHash(pattern, i, k)
		if h < bestHash {
			bestHash = h
			best = i
		}
	}
	return best, nil
}

// compareFromOffset compares T[suf+match:] against pattern[offset+match:],
// continuing from an already-known match length, and reports the new match
// length alongside the comparison result.
func compareFromOffset(seq bitseq.Seq, suf int, pattern bitseq.Seq, offset, match int) (cmp int, newMatch int) {
	n := seq.Len()
	plen := pattern.Len()
	i := suf + match
	j := offset + match
	r := 0
	for i < n && j < plen {
		a, b := seq.At(i), pattern.At(j)
		switch {
		case a < b:
			r = -1
		case a > b:
			r = 1
		default:
			r = 0
		}
		if r != 0 {
			break
		}
		i++
		j++
	}
	match = j - offset
	if r == 0 && j != plen {
		r = -1
	}
	return r, match
}

// search runs the ternary LCP-guided binary search (transcribed the same
// way package msa's Search is) over sa, comparing against pattern starting
// at offset. Returns the matching suffix-array range [pos, pos+cnt).
func (s *SIndex) search(pattern bitseq.Seq, offset int) (pos, cnt int) {
	size := len(s.sa)
	if size == 0 {
		return 0, 0
	}

	var i, j, k int
	lmatch, rmatch := 0, 0

	for size > 0 {
		half := size / 2
		match := minInt(lmatch, rmatch)
		r, match := compareFromOffset(s.seq, int(s.sa[i+half]), pattern, offset, match)
		switch {
		case r < 0:
			i += half + 1
			half -= (size & 1) ^ 1
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
				r2, m2 := compareFromOffset(s.seq, int(s.sa[j+half]), pattern, offset, lmatch)
				lmatch = m2
				if r2 < 0 {
					j += half + 1
					half -= (lsize & 1) ^ 1
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
				r2, m2 := compareFromOffset(s.seq, int(s.sa[k+half]), pattern, offset, rmatch)
				rmatch = m2
				if r2 <= 0 {
					k += half + 1
					half -= (rsize & 1) ^ 1
					rlmatch = rmatch
				} else {
					rrmatch = rmatch
				}
				rsize = half
			}
			size = 0
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

// Query searches for pattern in the text. ok is false when pattern is
// shorter than l. When ok is true, matches lists verified plain-text start
// offsets that lie within a single input range.
func (s *SIndex) Query(pattern bitseq.Seq) (matches []int, ok bool, err error) {
	offset, oerr := patternOffset(pattern, s.k, s.l)
	if oerr != nil {
		if oerr == ErrTooShort {
			return nil, false, nil
		}
		return nil, false, oerr
	}

	pos, cnt := s.search(pattern, offset)
	out := make([]int, 0, cnt)
	for idx := pos; idx < pos+cnt; idx++ {
		p := int(s.sa[idx])
		start := p - offset
		if start < 0 {
			continue
		}
		end := start + pattern.Len()
		if end > s.seq.Len() {
			continue
		}
		if !prefixMatches(s.seq, start, pattern, offset) {
			continue
		}
		if !s.ranges.Contains(start, end) {
			continue
		}
		out = append(out, start)
	}
	return out, true, nil
}

func prefixMatches(seq bitseq.Seq, start int, pattern bitseq.Seq, n int) bool {
	for i := 0; i < n; i++ {
		if seq.At(start+i) != pattern.At(i) {
			return false
		}
	}
	return true
}
