// Package sketch builds and queries the minimizer-space sketch of a text:
// the ordered, fixed-width-encoded sequence of its minimizer ids, along
// with the map back from minimizer rank to plain-text position.
//
// The shape mirrors the original Rust MinimizerSketcher (sketchers/minimizers.rs):
// build once over the full text producing a Sketcher plus its MS string, then
// reuse the Sketcher to sketch query patterns against the same remap. The
// departure from that original is the byte encoding: the spec requires
// big-endian W-byte ids (so bytes.Compare on the MS string agrees with
// integer order), where the Rust original uses native-endian bytes.
package sketch

import (
	"github.com/pkg/errors"

	"github.com/grailbio/uindex/bitseq"
	"github.com/grailbio/uindex/minimizer"
	"github.com/grailbio/uindex/posmap"
)

// PositionStore selects the backing representation for the minimizer ->
// plain-position map.
type PositionStore int

const (
	// EliasFano stores positions in a compact Elias-Fano encoding.
	EliasFano PositionStore = iota
	// CachelineEF stores positions as a plain, cacheline-friendly slice.
	CachelineEF
)

// Opts configures a sketch build.
type Opts struct {
	K, L int
	// Hash selects the k-mer hash minimizer selection is ordered by;
	// zero value is minimizer.HashFarm.
	Hash minimizer.HashFunc
	// Remap assigns a compact integer id to each distinct minimizer value,
	// shrinking W when there are far fewer distinct minimizers than the
	// k-mer space allows. Without Remap, each minimizer is encoded as the
	// low W = ceil(2k/8) bytes of its k-mer hash, so distinct minimizers
	// can share an encoding; such collisions only add candidates that
	// plain-text verification then rejects.
	Remap bool
	// SkipZero, when Remap is set, starts ids at 1 instead of 0, so no
	// minimizer is encoded as all zero bytes. When W > 1, single bytes of
	// an id can still be zero.
	SkipZero bool
	// Store selects the position-map representation.
	Store PositionStore
}

// SketchError is a sentinel error from sketching a query pattern.
type SketchError struct {
	msg string
}

func (e *SketchError) Error() string { return e.msg }

// ErrTooShort means the pattern is shorter than the window length l.
var ErrTooShort = &SketchError{"sketch: pattern shorter than window length l"}

// ErrUnknownMinimizer means a minimizer of the pattern has no id in the
// text's remap (only possible when Remap is enabled).
var ErrUnknownMinimizer = &SketchError{"sketch: pattern minimizer absent from remap"}

// MS is an encoded minimizer-space string: the big-endian concatenation of
// W-byte minimizer ids, one per minimizer, in ascending position order.
type MS []byte

// Sketcher holds everything needed to sketch new patterns against the same
// minimizer-id space as the text it was built from, and to invert
// minimizer-space positions back to plain-text offsets.
type Sketcher struct {
	opts     Opts
	width    int
	idMap    map[uint64]uint64 // populated only when opts.Remap
	posMap   posmap.Map
}

// Build computes the minimizer sketch of seq and returns both the Sketcher
// (reusable to sketch query patterns) and the encoded MS string of seq
// itself.
func Build(seq bitseq.Seq, opts Opts) (*Sketcher, MS, error) {
	hits, err := minimizer.Minimizers(seq, minimizer.Params{K: opts.K, L: opts.L, Hash: opts.Hash})
	if err != nil {
		return nil, nil, err
	}

	s := &Sketcher{opts: opts}
	positions := make([]int, len(hits))
	for i, h := range hits {
		positions[i] = h.Pos
	}
	switch opts.Store {
	case CachelineEF:
		s.posMap = posmap.NewPlain(positions)
	default:
		s.posMap = posmap.NewEliasFano(positions)
	}

	if opts.Remap {
		idsToRemap(hits, opts.SkipZero, s)
	} else {
		s.width = widthForBits(2 * opts.K)
	}

	ms, err := s.encode(hits)
	if err != nil {
		// Unreachable: every hit's minimizer value was just inserted (or
		// already valid under no-remap) by the same Build call.
		return nil, nil, errors.Wrap(err, "sketch: internal error encoding own minimizer stream")
	}
	return s, ms, nil
}

// idsToRemap assigns each distinct minimizer value in hits the next integer
// id, in order of first appearance (a position-order-stable, reproducible
// remap), and sets s.idMap/s.width accordingly.
func idsToRemap(hits []minimizer.Hit, skipZero bool, s *Sketcher) {
	startID := uint64(0)
	if skipZero {
		startID = 1
	}
	s.idMap = make(map[uint64]uint64)
	nextID := startID
	for _, h := range hits {
		if _, ok := s.idMap[h.Val]; !ok {
			s.idMap[h.Val] = nextID
			nextID++
		}
	}
	d := uint64(len(s.idMap))
	maxID := startID + d - 1 // d >= 1: hits is non-empty by the time this runs
	s.width = widthForBits(bitLen(maxID))
}

func bitLen(v uint64) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	return n
}

// widthForBits returns ceil(bits/8), minimum 1.
func widthForBits(bits int) int {
	w := (bits + 7) / 8
	if w < 1 {
		w = 1
	}
	return w
}

// encode maps each hit's minimizer value through the (possibly absent)
// remap and renders it as a big-endian s.width-byte id.
func (s *Sketcher) encode(hits []minimizer.Hit) (MS, error) {
	out := make([]byte, 0, len(hits)*s.width)
	for _, h := range hits {
		id, err := s.idFor(h.Val)
		if err != nil {
			return nil, err
		}
		out = appendBigEndian(out, id, s.width)
	}
	return out, nil
}

func (s *Sketcher) idFor(val uint64) (uint64, error) {
	if !s.opts.Remap {
		return val, nil
	}
	id, ok := s.idMap[val]
	if !ok {
		return 0, ErrUnknownMinimizer
	}
	return id, nil
}

func appendBigEndian(buf []byte, v uint64, width int) []byte {
	start := len(buf)
	buf = append(buf, make([]byte, width)...)
	for i := width - 1; i >= 0; i-- {
		buf[start+i] = byte(v)
		v >>= 8
	}
	return buf
}

// Sketch encodes a query pattern against this Sketcher's minimizer-id
// space, returning its MS encoding and the plain-text offset of the first
// minimizer found within the pattern.
func (s *Sketcher) Sketch(pattern bitseq.Seq) (MS, int, error) {
	hits, err := minimizer.Minimizers(pattern, minimizer.Params{K: s.opts.K, L: s.opts.L, Hash: s.opts.Hash})
	if err != nil {
		if err == minimizer.ErrTooShort {
			return nil, 0, ErrTooShort
		}
		return nil, 0, err
	}
	ms, err := s.encode(hits)
	if err != nil {
		return nil, 0, err
	}
	return ms, hits[0].Pos, nil
}

// MsPosToPlainPos converts a byte offset into the text's MS string to the
// plain-text start position of the minimizer at that offset. Returns false
// if msPos isn't a multiple of Width().
func (s *Sketcher) MsPosToPlainPos(msPos int) (int, bool) {
	if msPos%s.width != 0 {
		return 0, false
	}
	idx := msPos / s.width
	if idx < 0 || idx >= s.posMap.Len() {
		return 0, false
	}
	return s.posMap.Get(idx), true
}

// IDAtRank re-derives the encoded minimizer id of the i'th minimizer
// directly from the plain-text sequence seq (this Sketcher's position map
// plus a fresh k-mer hash and remap lookup), instead of reading it out of a
// stored MS string. This is what lets a SuffixArrayMS built with
// "don't store MS" compare suffixes without ever materializing the MS
// string for the text.
func (s *Sketcher) IDAtRank(seq bitseq.Seq, i int) (uint64, bool) {
	if i < 0 || i >= s.posMap.Len() {
		return 0, false
	}
	pos := s.posMap.Get(i)
	if pos+s.opts.K > seq.Len() {
		return 0, false
	}
	val := minimizer.KmerHashWith(seq, pos, s.opts.K, s.opts.Hash)
	id, err := s.idFor(val)
	if err != nil {
		return 0, false
	}
	if s.width < 8 {
		// Keep only the low W bytes, as encode does.
		id &= uint64(1)<<(8*uint(s.width)) - 1
	}
	return id, true
}

// GetMinimizerValue returns the encoded minimizer id at minimizer rank i of
// ms, decoded from its width-W big-endian bytes; no inverse remap is
// applied, so the result is directly comparable with IDAtRank's. Used by
// search backends to read ids out of a stored MS string (the text's or a
// sketched pattern's).
func (s *Sketcher) GetMinimizerValue(ms MS, i int) (uint64, bool) {
	off := i * s.width
	if off+s.width > len(ms) {
		return 0, false
	}
	var v uint64
	for _, b := range ms[off : off+s.width] {
		v = (v << 8) | uint64(b)
	}
	return v, true
}

// Width returns W, the byte width of an encoded minimizer id.
func (s *Sketcher) Width() int { return s.width }

// K returns the k-mer length this sketcher was built with.
func (s *Sketcher) K() int { return s.opts.K }

// Len returns the number of minimizers in the text this sketcher was built
// from.
func (s *Sketcher) Len() int { return s.posMap.Len() }

// Identity builds a passthrough Sketcher with k=1, l=1: every plain-text
// position is its own minimizer, so minimizer-space and plain-text space
// coincide modulo the byte width. Useful as a baseline and for tests that
// want to reason directly in plain-text coordinates.
func Identity(seq bitseq.Seq) (*Sketcher, MS, error) {
	return Build(seq, Opts{K: 1, L: 1, Remap: false})
}

// Builder is the sketch-construction strategy contract: build a Sketcher
// (and its MS string) from seq. This mirrors package fmindex's Backend
// interface -- a small interface plus concrete struct-literal
// implementations, the idiomatic Go stand-in for what the original Rust
// implementation's SketcherBuilderEnum expresses as a sum type -- so
// callers (e.g. uindex.Build, cmd/uindex-bench) can select a sketch
// strategy by value instead of branching on an option flag themselves.
type Builder interface {
	Build(seq bitseq.Seq) (*Sketcher, MS, error)
}

// MinimizerBuilder builds a sketch via minimizer sketching under Opts, the
// normal production strategy.
type MinimizerBuilder struct {
	Opts Opts
}

// Build implements Builder.
func (b MinimizerBuilder) Build(seq bitseq.Seq) (*Sketcher, MS, error) {
	return Build(seq, b.Opts)
}

// IdentityBuilder builds a passthrough identity sketch (k=1, l=1), the
// baseline strategy spec.md's testable-property #6 ("equality with
// identity index") is checked against.
type IdentityBuilder struct{}

// Build implements Builder.
func (IdentityBuilder) Build(seq bitseq.Seq) (*Sketcher, MS, error) {
	return Identity(seq)
}
