// Package fmindex describes the thin contract an FM-index back-end must
// satisfy to serve as a uindex search back-end, and provides two concrete
// implementations: a reference backend built directly atop package msa, and
// an "exploding" adapter for back-ends that only accept a small, fixed
// alphabet (e.g. one built for 4-letter nucleotide text) by splitting each
// byte of a W-byte minimizer id into 4 nucleotide "bases", 2 bits each.
//
// The spec frames real FM back-ends as external collaborators reached
// through this interface; since none of the pack's examples embed an actual
// FM-index library, Backend's only concrete implementations here are
// self-contained (msa-backed), documented in DESIGN.md.
package fmindex

import (
	"github.com/grailbio/uindex/bitseq"
	"github.com/grailbio/uindex/msa"
	"github.com/grailbio/uindex/sketch"
)

// Backend is the contract a back-end index must satisfy: build from a
// width-W minimizer-space string, and locate all occurrences of a
// width-W-encoded pattern, returning their MS-string byte offsets.
type Backend interface {
	// Build indexes ms (width-W encoded) for subsequent Locate calls.
	Build(ms sketch.MS, width int) error
	// Locate returns the MS-string byte offsets of every occurrence of
	// pattern (also width-W encoded).
	Locate(pattern sketch.MS) ([]int, error)
}

// SuffixBackend is the reference Backend, implemented directly on top of
// package msa's variable-width suffix array. It requires the sketcher and
// plain-text sequence up front since msa.Build needs both to support its
// "don't store MS" mode.
type SuffixBackend struct {
	sk      *sketch.Sketcher
	seq     bitseq.Seq
	storeMS bool
	sa      *msa.SuffixArrayMS
}

// NewSuffixBackend returns a Backend that indexes via package msa.
func NewSuffixBackend(sk *sketch.Sketcher, seq bitseq.Seq, storeMS bool) *SuffixBackend {
	return &SuffixBackend{sk: sk, seq: seq, storeMS: storeMS}
}

func (b *SuffixBackend) Build(ms sketch.MS, width int) error {
	b.sa = msa.Build(b.sk, ms, b.seq, b.storeMS)
	return nil
}

func (b *SuffixBackend) Locate(pattern sketch.MS) ([]int, error) {
	pos, cnt := b.sa.Search(pattern)
	out := make([]int, cnt)
	for i := 0; i < cnt; i++ {
		out[i] = b.sa.At(pos + i)
	}
	return out, nil
}

// NucleotideBackend is the narrow contract a back-end that only accepts
// 4-letter nucleotide text must satisfy: build from an ASCII ACGT stream,
// locate a pattern given as an ASCII ACGT stream.
type NucleotideBackend interface {
	Build(acgt []byte) error
	Locate(pattern []byte) ([]int, error)
}

// ExplodingBackend adapts a NucleotideBackend (one that can only index a
// 4-symbol alphabet) to the width-W Backend contract, by exploding each
// byte of the MS string into 4 bases and dividing returned positions by 4
// to get MS byte offsets. Results not landing on a byte boundary, or whose
// byte offset is not a multiple of W, are discarded: they correspond to a
// back-end match that started mid-minimizer, which can't correspond to a
// real minimizer-space match.
type ExplodingBackend struct {
	inner NucleotideBackend
	width int
}

// NewExplodingBackend wraps inner for use as a width-W Backend.
func NewExplodingBackend(inner NucleotideBackend) *ExplodingBackend {
	return &ExplodingBackend{inner: inner}
}

var explodeAlphabet = [4]byte{'A', 'C', 'G', 'T'}

// explode maps each byte of ms to 4 bases, one per 2-bit pair of that byte
// (most significant pair first).
func explode(ms sketch.MS) []byte {
	out := make([]byte, 0, len(ms)*4)
	for _, b := range ms {
		out = append(out,
			explodeAlphabet[(b>>6)&3],
			explodeAlphabet[(b>>4)&3],
			explodeAlphabet[(b>>2)&3],
			explodeAlphabet[b&3],
		)
	}
	return out
}

func (b *ExplodingBackend) Build(ms sketch.MS, width int) error {
	b.width = width
	return b.inner.Build(explode(ms))
}

func (b *ExplodingBackend) Locate(pattern sketch.MS) ([]int, error) {
	hits, err := b.inner.Locate(explode(pattern))
	if err != nil {
		return nil, err
	}
	basesPerByte := 4
	out := hits[:0]
	for _, h := range hits {
		if h%basesPerByte != 0 {
			continue
		}
		if b.width > 0 && (h/basesPerByte)%b.width != 0 {
			continue
		}
		out = append(out, h/basesPerByte)
	}
	return out, nil
}
