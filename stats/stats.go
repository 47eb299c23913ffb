// Package stats collects build-time size/timing measurements and
// query-time counters, and logs them the way the rest of the ambient stack
// does: through github.com/grailbio/base/log's leveled Debug/Info loggers
// rather than fmt.Println.
//
// Timer mirrors the original implementation's depth-aware phase timer
// (utils.rs's Timer/TIMER_DEPTH): each call to Next closes out the current
// phase and opens the next, indenting log output by nesting depth so a
// build's phase breakdown reads as a tree in the log stream.
package stats

import (
	"strings"
	"sync"
	"time"

	"github.com/grailbio/base/log"
)

// Stats accumulates named float32 measurements (sizes in MB, durations in
// seconds) produced over a build or a run, safe for concurrent use.
type Stats struct {
	mu     sync.Mutex
	values map[string]float32
}

// New returns an empty Stats.
func New() *Stats {
	return &Stats{values: make(map[string]float32)}
}

// Add records name=value, logging it at Debug level.
func (s *Stats) Add(name string, value float32) {
	s.mu.Lock()
	s.values[name] = value
	s.mu.Unlock()
	log.Debug.Printf("%s: %.3f", name, value)
}

// Set is an alias for Add, matching the vocabulary callers use when
// recording a derived query-time statistic rather than a build-time one.
func (s *Stats) Set(name string, value float32) {
	s.Add(name, value)
}

// Snapshot returns a copy of all recorded values.
func (s *Stats) Snapshot() map[string]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float32, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// depth tracks Timer nesting for indented trace output; not safe for
// concurrent Timer use from multiple goroutines, matching the original's
// thread-local (single build/query path is always sequential).
var depth int

// Timer logs the wall-clock duration of a named phase, and of every
// subsequent phase started via Next, at Debug level, indented by nesting
// depth.
type Timer struct {
	name  string
	start time.Time
	depth int
}

// NewTimer starts timing a phase named name.
func NewTimer(name string) *Timer {
	t := &Timer{name: name, start: time.Now(), depth: depth}
	depth++
	return t
}

// Next logs the elapsed time of the current phase and begins timing the
// next one named name.
func (t *Timer) Next(name string) {
	t.log()
	t.name = name
	t.start = time.Now()
}

// Stop logs the elapsed time of the current (final) phase. Call via defer
// immediately after NewTimer, mirroring the original's Drop-based timer.
func (t *Timer) Stop() {
	t.log()
	depth--
}

func (t *Timer) log() {
	elapsed := time.Since(t.start)
	prefix := strings.Repeat(" ", t.depth)
	log.Debug.Printf("%s%-30s: %s", prefix, t.name, elapsed)
}
