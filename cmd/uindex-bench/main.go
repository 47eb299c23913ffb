// Command uindex-bench builds a UIndex (or, with -k 0, an identity index)
// over a text file and a list of query patterns, and reports build/query
// statistics as JSON.
//
// Modeled on cmd/bio-pamtool's single v.io/x/lib/cmdline.Command runner
// style, trimmed to one command since uindex-bench has no subcommands.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io/ioutil"
	"os"
	"strings"

	"github.com/golang/snappy"
	"github.com/grailbio/base/cmdutil"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
	"v.io/x/lib/cmdline"

	"github.com/grailbio/uindex/bitseq"
	"github.com/grailbio/uindex/encoding/fasta"
	"github.com/grailbio/uindex/fmindex"
	"github.com/grailbio/uindex/minimizer"
	"github.com/grailbio/uindex/sketch"
	"github.com/grailbio/uindex/stats"
	"github.com/grailbio/uindex/uindex"
)

type flags struct {
	text     *string
	patterns *string
	k        *int
	l        *int
	output   *string
	fastaIn  *bool
	hash     *string
}

func newRootCmd() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "uindex-bench",
		Short:    "Build a minimizer-space substring index and report query statistics",
		ArgsName: "",
	}
	f := flags{
		text:     cmd.Flags.String("text", "", "Input text file (required)"),
		patterns: cmd.Flags.String("patterns", "", "Newline-separated query patterns file (required)"),
		k:        cmd.Flags.Int("k", 8, "K-mer length (at most 8, text is byte-wide); 0 disables sketching (identity mode)"),
		l:        cmd.Flags.Int("l", 32, "Minimizer window length l (l >= k)"),
		output:   cmd.Flags.String("output", "stats.json", "Stats output path; .pb writes protobuf, .snappy or .gz compress the JSON form"),
		fastaIn:  cmd.Flags.Bool("fasta", false, "Parse --text as FASTA, indexing one range per record"),
		hash:     cmd.Flags.String("hash", "farm", "Minimizer k-mer hash: farm or seahash"),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		return run(f)
	})
	return cmd
}

func run(f flags) error {
	if *f.text == "" || *f.patterns == "" {
		return errors.Errorf("uindex-bench: --text and --patterns are required")
	}

	data, ranges, err := loadText(*f.text, *f.fastaIn)
	if err != nil {
		return errors.Wrap(err, "uindex-bench: loading text")
	}
	seq, err := bitseq.NewByte(data, ranges)
	if err != nil {
		return errors.Wrap(err, "uindex-bench: constructing sequence")
	}

	k, l := *f.k, *f.l
	if k == 0 {
		k, l = 1, 1
	}
	if l < k {
		return errors.Errorf("uindex-bench: l=%d must be >= k=%d", l, k)
	}

	hashFn, err := parseHash(*f.hash)
	if err != nil {
		return err
	}
	sk, ms, err := sketch.Build(seq, sketch.Opts{K: k, L: l, Hash: hashFn, Remap: k > 1})
	if err != nil {
		return errors.Wrap(err, "uindex-bench: sketching text")
	}
	backend := fmindex.NewSuffixBackend(sk, seq, true)
	idx, err := uindex.BuildWithSketch(seq, ranges, sk, ms, backend)
	if err != nil {
		return errors.Wrap(err, "uindex-bench: building index")
	}

	patterns, err := loadPatterns(*f.patterns)
	if err != nil {
		return errors.Wrap(err, "uindex-bench: loading patterns")
	}

	var queryMatches, queryMismatches int
	for _, p := range patterns {
		pseq, err := bitseq.NewByte([]byte(p), nil)
		if err != nil {
			return errors.Wrap(err, "uindex-bench: encoding pattern")
		}
		matches, ok, err := idx.Query(pseq)
		if err != nil {
			return errors.Wrap(err, "uindex-bench: query")
		}
		if ok && len(matches) > 0 {
			queryMatches++
		} else {
			queryMismatches++
		}
	}
	idx.QueryStat.Report()

	// idx.Stats() already reports "query_matches"/"query_mismatches" as
	// per-candidate counters accumulated inside UIndex.Query; these two are
	// a coarser, per-pattern summary ("did this query find anything at
	// all") and get distinct keys so they don't clobber the library's own.
	statsMap := idx.Stats()
	statsMap["patterns_matched"] = float32(queryMatches)
	statsMap["patterns_unmatched"] = float32(queryMismatches)

	return writeStats(*f.output, statsMap)
}

func parseHash(name string) (minimizer.HashFunc, error) {
	switch name {
	case "", "farm":
		return minimizer.HashFarm, nil
	case "seahash":
		return minimizer.HashSeahash, nil
	default:
		return 0, errors.Errorf("uindex-bench: unknown --hash %q (want farm or seahash)", name)
	}
}

func loadText(path string, isFasta bool) ([]byte, []bitseq.Range, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	if isFasta {
		data, records, err := fasta.Load(f)
		if err != nil {
			return nil, nil, err
		}
		ranges := make([]bitseq.Range, len(records))
		for i, r := range records {
			ranges[i] = bitseq.Range{Start: r.Start, End: r.End}
		}
		return data, ranges, nil
	}

	data, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, nil, err
	}
	return data, []bitseq.Range{{Start: 0, End: len(data)}}, nil
}

func loadPatterns(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}

// writeStats writes statMap to path. A .pb suffix encodes it as a
// hand-rolled protobuf message via stats.MarshalProto; otherwise it's
// marshaled as JSON, additionally compressed with snappy (.snappy) or
// klauspost's gzip (.gz) depending on the suffix.
func writeStats(path string, statMap map[string]float32) error {
	if strings.HasSuffix(path, ".pb") {
		buf, err := stats.MarshalProto(statMap)
		if err != nil {
			return errors.Wrap(err, "uindex-bench: marshaling stats proto")
		}
		return ioutil.WriteFile(path, buf, 0644)
	}

	buf, err := json.MarshalIndent(statMap, "", "  ")
	if err != nil {
		return err
	}
	switch {
	case strings.HasSuffix(path, ".snappy"):
		buf = snappy.Encode(nil, buf)
	case strings.HasSuffix(path, ".gz"):
		buf, err = gzipCompress(buf)
		if err != nil {
			return errors.Wrap(err, "uindex-bench: gzip-compressing stats")
		}
	}
	return ioutil.WriteFile(path, buf, 0644)
}

func gzipCompress(data []byte) ([]byte, error) {
	var b bytes.Buffer
	w, err := gzip.NewWriterLevel(&b, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func main() {
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newRootCmd())
}
