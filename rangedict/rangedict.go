// Package rangedict implements a monotone boundary dictionary used to check
// that a match stays within a single input range.
//
// T may be logically concatenated from disjoint half-open ranges
// R1=[s1,e1), ..., Rm=[sm,em) with s1 < e1 <= s2 < .... A match
// [start, end) is valid only when it lies entirely within one Ri. Flattening
// the range endpoints {s1, e1, s2, e2, ...} into one sorted sequence turns
// that check into a single successor query: the first boundary strictly
// after start must be an end (an odd-ranked entry) and must be >= end.
//
// This is the same trick as grailbio/bio's interval.EndpointIndex uses for
// BED/BAM interval-union membership (an even rank means "not yet inside an
// interval", odd means "inside one") -- ported here onto uindex's simpler,
// already-disjoint range model, and generalized from int32 BAM coordinates to
// plain ints since sketched sequences aren't bounded by BAM's int32 limit.
package rangedict

import "sort"

// Dict is an immutable, sorted list of range boundaries supporting a
// successor query. Entries at even index are range starts, odd index are
// range ends -- mirroring the source ranges' [start, end) pairs flattened in
// order.
type Dict struct {
	bounds []int
}

// Build flattens ranges (assumed already sorted and disjoint, i.e.
// ranges[i].End <= ranges[i+1].Start) into a Dict.
func Build(ranges []Range) Dict {
	bounds := make([]int, 0, 2*len(ranges))
	for _, r := range ranges {
		bounds = append(bounds, r.Start, r.End)
	}
	return Dict{bounds: bounds}
}

// Range is a half-open [Start, End) input range.
type Range struct {
	Start, End int
}

// Succ returns the index and value of the smallest stored boundary >= x.
// ok is false when no such boundary exists (x is past every range).
func (d Dict) Succ(x int) (rank int, value int, ok bool) {
	rank = sort.SearchInts(d.bounds, x)
	if rank >= len(d.bounds) {
		return 0, 0, false
	}
	return rank, d.bounds[rank], true
}

// Contains reports whether [start, end) lies entirely within a single input
// range: the first boundary strictly after start must be a range end (odd
// rank) and must be >= end. Strictly after, not at-or-after, matters at a
// range boundary itself: with adjacent ranges [0,100) and [100,200) (as
// encoding/fasta.Load produces for back-to-back FASTA records), a match
// starting exactly at start=100 must see the *next* range's end (200), not
// immediately resolve against the boundary value 100 it starts on.
func (d Dict) Contains(start, end int) bool {
	rank, value, ok := d.Succ(start + 1)
	if !ok {
		return false
	}
	return rank%2 == 1 && end <= value
}

// Len returns the number of boundary points (2x the number of ranges).
func (d Dict) Len() int { return len(d.bounds) }
