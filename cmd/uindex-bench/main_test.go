package main

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }

// runCLI writes text/patterns inputs under a fresh temp dir, invokes run
// with the given flags, and returns the parsed JSON stats map.
func runCLI(t *testing.T, text string, patterns []string, f flags) map[string]float32 {
	t.Helper()
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	textPath := filepath.Join(tempDir, "text.txt")
	require.NoError(t, ioutil.WriteFile(textPath, []byte(text), 0644))

	var patternsBuf []byte
	for _, p := range patterns {
		patternsBuf = append(patternsBuf, p...)
		patternsBuf = append(patternsBuf, '\n')
	}
	patternsPath := filepath.Join(tempDir, "patterns.txt")
	require.NoError(t, ioutil.WriteFile(patternsPath, patternsBuf, 0644))

	outputPath := filepath.Join(tempDir, "stats.json")
	f.text = &textPath
	f.patterns = &patternsPath
	f.output = &outputPath

	require.NoError(t, run(f))

	raw, err := ioutil.ReadFile(outputPath)
	require.NoError(t, err)
	var got map[string]float32
	require.NoError(t, json.Unmarshal(raw, &got))
	return got
}

func TestRunEndToEndAllPatternsMatch(t *testing.T) {
	stats := runCLI(t, "ACGTACGTACGTACGTACGTACGT", []string{"ACGT", "GTAC", "CGTACGTA"}, flags{
		k:       intPtr(4),
		l:       intPtr(4),
		fastaIn: boolPtr(false),
		hash:    strPtr("farm"),
	})
	assert.Equal(t, float32(3), stats["patterns_matched"])
	assert.Equal(t, float32(0), stats["patterns_unmatched"])
}

func TestRunEndToEndUnknownPatternCountsAsMismatch(t *testing.T) {
	stats := runCLI(t, "ACGTACGTACGTACGTACGTACGT", []string{"TTTTTTTTTTTT"}, flags{
		k:       intPtr(4),
		l:       intPtr(8),
		fastaIn: boolPtr(false),
		hash:    strPtr("farm"),
	})
	assert.Equal(t, float32(0), stats["patterns_matched"])
	assert.Equal(t, float32(1), stats["patterns_unmatched"])
}

func TestRunIdentityModeZeroK(t *testing.T) {
	stats := runCLI(t, "ACGTACGT", []string{"ACGT"}, flags{
		k:       intPtr(0),
		l:       intPtr(0),
		fastaIn: boolPtr(false),
		hash:    strPtr("farm"),
	})
	assert.Equal(t, float32(1), stats["patterns_matched"])
}

func TestRunRequiresTextAndPatterns(t *testing.T) {
	err := run(flags{
		text:     strPtr(""),
		patterns: strPtr(""),
		k:        intPtr(4),
		l:        intPtr(8),
		output:   strPtr("unused.json"),
		fastaIn:  boolPtr(false),
		hash:     strPtr("farm"),
	})
	assert.Error(t, err)
}

func TestParseHashRejectsUnknown(t *testing.T) {
	_, err := parseHash("blake3")
	assert.Error(t, err)
}
