// Package fasta contains code for parsing FASTA files into a single
// concatenated sequence suitable for indexing with bitseq.Seq.
// See http://www.htslib.org/doc/faidx.html.  Briefly, FASTA files consist of a
// number of named sequences that may be interrupted by newlines.  For example:
//
// >chr7
// ACGTAC
// GAGGAC
// GCG
// >chr8
// ACGT
//
// Note: Sequence names are defined to be the stretch of characters excluding
// spaces immediately after '>'.  Any text appearing after a space is ignored.
// For example, '>chr1 A viral sequence' becomes 'chr1'.
//
// Unlike the indexed-random-access reader this package once offered, Load
// concatenates every record into one contiguous byte slice and returns the
// half-open [start,end) byte range of each record within it. That is exactly
// the "disjoint ranges" shape bitseq.Seq and uindex's range dictionary need:
// one FASTA record becomes one range, and a match is only ever reported when
// it stays within a single record.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const bufferInitSize = 300 * 1024 * 1024

// Record names one [Start, End) range of the concatenated sequence returned
// by Load.
type Record struct {
	Name       string
	Start, End int
}

// Load reads every record of a FASTA stream and concatenates their sequence
// data (newlines stripped) into one byte slice, alongside the disjoint
// [start,end) byte range occupied by each record.
func Load(r io.Reader) ([]byte, []Record, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)

	var (
		data    []byte
		records []Record
		name    string
		started bool
		curStart int
	)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if started {
				records = append(records, Record{Name: name, Start: curStart, End: len(data)})
			}
			name = strings.Split(string(line[1:]), " ")[0]
			if name == "" {
				return nil, nil, errors.Errorf("malformed FASTA file: unnamed record")
			}
			started = true
			curStart = len(data)
			continue
		}
		data = append(data, line...)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.Wrap(err, "couldn't read FASTA data")
	}
	if started {
		records = append(records, Record{Name: name, Start: curStart, End: len(data)})
	}
	if len(records) == 0 {
		return nil, nil, errors.Errorf("empty FASTA file")
	}
	return data, records, nil
}
