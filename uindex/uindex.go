// Package uindex implements the universal substring locator: build a
// minimizer-space index over a text, then answer exact substring queries by
// sketching the pattern, searching the index in minimizer space, and
// verifying every minimizer-space hit against the plain text.
//
// The query pipeline (Sketch -> Search -> Invert -> Align -> Bounds ->
// Verify -> Range-check -> Emit) and its QueryStats field names are
// transcribed directly from the original Rust u_index.rs's UIndex::query
// and QueryStats, down to per-phase nanosecond timers; the one structural
// change is that Go has no destructors, so where the original reports
// averaged query stats from a Drop impl, this package exposes that as an
// explicit Report method.
package uindex

import (
	"sync"
	"time"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"

	"github.com/grailbio/uindex/bitseq"
	"github.com/grailbio/uindex/fmindex"
	"github.com/grailbio/uindex/rangedict"
	"github.com/grailbio/uindex/sketch"
	"github.com/grailbio/uindex/stats"
)

// QueryStats accumulates per-query counters and phase timers across every
// call to UIndex.Query.
type QueryStats struct {
	mu sync.Mutex

	Queries          int64
	TooShort         int64
	UnknownMinimizer int64
	MisalignedMsPos  int64
	OutOfBounds      int64
	Mismatches       int64
	BadRanges        int64
	Matches          int64

	TSketch     int64 // ns
	TSearch     int64 // ns
	TInvertPos  int64 // ns
	TCheck      int64 // ns
	TRanges     int64 // ns
}

func (qs *QueryStats) addQuery()          { qs.mu.Lock(); qs.Queries++; qs.mu.Unlock() }
func (qs *QueryStats) addTooShort()       { qs.mu.Lock(); qs.TooShort++; qs.mu.Unlock() }
func (qs *QueryStats) addUnknownMin()     { qs.mu.Lock(); qs.UnknownMinimizer++; qs.mu.Unlock() }
func (qs *QueryStats) addMisaligned()     { qs.mu.Lock(); qs.MisalignedMsPos++; qs.mu.Unlock() }
func (qs *QueryStats) addOutOfBounds()    { qs.mu.Lock(); qs.OutOfBounds++; qs.mu.Unlock() }
func (qs *QueryStats) addMismatch()       { qs.mu.Lock(); qs.Mismatches++; qs.mu.Unlock() }
func (qs *QueryStats) addBadRange()       { qs.mu.Lock(); qs.BadRanges++; qs.mu.Unlock() }
func (qs *QueryStats) addMatch()          { qs.mu.Lock(); qs.Matches++; qs.mu.Unlock() }

func (qs *QueryStats) addSketch(d time.Duration)    { qs.mu.Lock(); qs.TSketch += d.Nanoseconds(); qs.mu.Unlock() }
func (qs *QueryStats) addSearch(d time.Duration)    { qs.mu.Lock(); qs.TSearch += d.Nanoseconds(); qs.mu.Unlock() }
func (qs *QueryStats) addInvert(d time.Duration)    { qs.mu.Lock(); qs.TInvertPos += d.Nanoseconds(); qs.mu.Unlock() }
func (qs *QueryStats) addCheck(d time.Duration)     { qs.mu.Lock(); qs.TCheck += d.Nanoseconds(); qs.mu.Unlock() }
func (qs *QueryStats) addRanges(d time.Duration)    { qs.mu.Lock(); qs.TRanges += d.Nanoseconds(); qs.mu.Unlock() }

// Report logs the accumulated query statistics, averaged per query, at
// Debug level. The original reported this from a Drop impl when the index
// went out of scope; Go has no destructors, so callers invoke this
// explicitly (typically just before process exit).
func (qs *QueryStats) Report() {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	queries := qs.Queries
	if queries < 1 {
		queries = 1
	}
	log.Debug.Printf(`QUERY STATS:
queries           %9d
too short         %9d
unknown minimizer %9d
misaligned ms pos %9d
out of bounds     %9d
mismatches        %9d
bad_ranges        %9d
matches           %9d
t_sketch          %9d ns/query
t_search          %9d ns/query
t_invert_pos      %9d ns/query
t_check           %9d ns/query
t_ranges          %9d ns/query`,
		qs.Queries, qs.TooShort, qs.UnknownMinimizer, qs.MisalignedMsPos,
		qs.OutOfBounds, qs.Mismatches, qs.BadRanges, qs.Matches,
		qs.TSketch/queries, qs.TSearch/queries, qs.TInvertPos/queries,
		qs.TCheck/queries, qs.TRanges/queries)
}

// UIndex is a built universal substring locator.
type UIndex struct {
	seq       bitseq.Seq
	sketcher  *sketch.Sketcher
	backend   fmindex.Backend
	ranges    rangedict.Dict
	buildStat *stats.Stats
	QueryStat QueryStats
}

// Build sketches seq under opts, indexes the resulting minimizer-space
// string with backend, and records the disjoint input ranges (e.g. one per
// FASTA record) used to suppress cross-range matches; nil ranges means
// seq.Ranges(). newBackend constructs
// the search back-end given the sketcher Build just produced, since most
// back-ends (e.g. fmindex.SuffixBackend) need it at construction time.
func Build(seq bitseq.Seq, ranges []bitseq.Range, opts sketch.Opts, newBackend func(*sketch.Sketcher) fmindex.Backend) (*UIndex, error) {
	st := stats.New()
	timer := stats.NewTimer("Sketch")
	sk, ms, err := sketch.Build(seq, opts)
	if err != nil {
		return nil, errors.Wrap(err, "uindex: build sketch")
	}
	timer.Next("Build")
	backend := newBackend(sk)
	if err := backend.Build(ms, sk.Width()); err != nil {
		timer.Stop()
		return nil, errors.Wrap(err, "uindex: build index")
	}
	timer.Stop()

	return finish(seq, ranges, sk, ms, backend, st)
}

// BuildWithSketch builds a UIndex from an already-computed sketch and MS
// string against a ready-to-build backend; used when the caller needs to
// construct the sketch and backend in a different order than Build allows
// (tests exercising a custom backend, mainly).
func BuildWithSketch(seq bitseq.Seq, ranges []bitseq.Range, sk *sketch.Sketcher, ms sketch.MS, backend fmindex.Backend) (*UIndex, error) {
	st := stats.New()
	timer := stats.NewTimer("Build")
	if err := backend.Build(ms, sk.Width()); err != nil {
		timer.Stop()
		return nil, errors.Wrap(err, "uindex: build index")
	}
	timer.Stop()
	return finish(seq, ranges, sk, ms, backend, st)
}

func finish(seq bitseq.Seq, ranges []bitseq.Range, sk *sketch.Sketcher, ms sketch.MS, backend fmindex.Backend, st *stats.Stats) (*UIndex, error) {
	if ranges == nil {
		ranges = seq.Ranges()
	}
	rdRanges := make([]rangedict.Range, len(ranges))
	for i, r := range ranges {
		rdRanges[i] = rangedict.Range{Start: r.Start, End: r.End}
	}

	ui := &UIndex{
		seq:       seq,
		sketcher:  sk,
		backend:   backend,
		ranges:    rangedict.Build(rdRanges),
		buildStat: st,
	}

	seqSizeMB := float32(len(seq.Bytes())) / 1e6
	st.Add("sequence_length", float32(seq.Len()))
	st.Add("num_minimizers", float32(sk.Len()))
	st.Add("kmer_width_bits", float32(2*sk.K()))
	st.Add("kmer_width", float32(sk.Width()))
	st.Add("seq_size_MB", seqSizeMB)
	st.Add("sketch_size_MB", float32(len(ms))/1e6)
	return ui, nil
}

// Query sketches pattern, searches the index, and verifies every
// minimizer-space hit against the plain text. ok is false when pattern was
// too short to contain a minimizer (no signal either way); when ok is true,
// matches lists the verified plain-text start offsets (possibly empty, in
// particular when pattern contains a minimizer unknown to the text).
func (u *UIndex) Query(pattern bitseq.Seq) (matches []int, ok bool, err error) {
	u.QueryStat.addQuery()

	t0 := time.Now()
	msPattern, offset, serr := u.sketcher.Sketch(pattern)
	if serr != nil {
		if serr == sketch.ErrTooShort {
			u.QueryStat.addTooShort()
			return nil, false, nil
		}
		if serr == sketch.ErrUnknownMinimizer {
			u.QueryStat.addUnknownMin()
			return nil, true, nil
		}
		return nil, false, serr
	}
	t1 := time.Now()
	u.QueryStat.addSketch(t1.Sub(t0))

	hits, berr := u.backend.Locate(msPattern)
	if berr != nil {
		return nil, false, errors.Wrap(berr, "uindex: search")
	}
	t2 := time.Now()
	u.QueryStat.addSearch(t2.Sub(t1))

	last := t2
	patLen := pattern.Len()
	out := make([]int, 0, len(hits))
	for _, msPos := range hits {
		plainPos, okPos := u.sketcher.MsPosToPlainPos(msPos)
		if !okPos {
			u.QueryStat.addMisaligned()
			continue
		}
		now := time.Now()
		u.QueryStat.addInvert(now.Sub(last))
		last = now

		if plainPos < offset {
			u.QueryStat.addOutOfBounds()
			continue
		}
		start := plainPos - offset
		end := start + patLen
		if end > u.seq.Len() {
			u.QueryStat.addOutOfBounds()
			continue
		}

		match := seqEqual(u.seq, start, end, pattern)
		now = time.Now()
		u.QueryStat.addCheck(now.Sub(last))
		last = now
		if !match {
			u.QueryStat.addMismatch()
			continue
		}

		inRange := u.ranges.Contains(start, end)
		now = time.Now()
		u.QueryStat.addRanges(now.Sub(last))
		last = now
		if !inRange {
			u.QueryStat.addBadRange()
			continue
		}

		u.QueryStat.addMatch()
		out = append(out, start)
	}
	return out, true, nil
}

func seqEqual(seq bitseq.Seq, start, end int, pattern bitseq.Seq) bool {
	if end-start != pattern.Len() {
		return false
	}
	for i := 0; i < pattern.Len(); i++ {
		if seq.At(start+i) != pattern.At(i) {
			return false
		}
	}
	return true
}

// Stats returns all recorded build-time and query-time statistics, merged
// into a single flat map (matching the original's HashMap<&str, f32>
// report), suitable for marshaling as the JSON run summary the
// cmd/uindex-bench tool writes out.
func (u *UIndex) Stats() map[string]float32 {
	out := u.buildStat.Snapshot()

	qs := &u.QueryStat
	qs.mu.Lock()
	queries := qs.Queries
	if queries < 1 {
		queries = 1
	}
	out["query_too_short"] = float32(qs.TooShort)
	out["query_unknown_minimizer"] = float32(qs.UnknownMinimizer)
	out["query_misaligned_ms_pos"] = float32(qs.MisalignedMsPos)
	out["query_out_of_bounds"] = float32(qs.OutOfBounds)
	out["query_mismatches"] = float32(qs.Mismatches)
	out["query_bad_ranges"] = float32(qs.BadRanges)
	out["query_matches"] = float32(qs.Matches)
	out["t_query_sketch"] = float32(qs.TSketch/queries) / 1e9
	out["t_query_search"] = float32(qs.TSearch/queries) / 1e9
	out["t_query_invert_pos"] = float32(qs.TInvertPos/queries) / 1e9
	out["t_query_check"] = float32(qs.TCheck/queries) / 1e9
	out["t_query_ranges"] = float32(qs.TRanges/queries) / 1e9
	qs.mu.Unlock()
	return out
}
