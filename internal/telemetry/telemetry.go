// Package telemetry implements per-pattern metrics, an error audit trail,
// and recovery statistics for one Unified Parser facade.
//
// The shape mirrors the cache coordinator's NamedCacheStats/healthStatus
// idiom (internal/cache/persistent_cache.go) — accumulate counters behind a
// mutex, bucket the derived rate into a coarse health label, expose a
// snapshot rather than the live counters. Session plays the per-call role
// the request cache plays for the persistent cache: a short-lived
// collector for one parse(), while Hub plays the coordinator's role of a
// long-lived aggregate an external health monitor subscribes to via
// telemetry.subscribe(sink).
package telemetry

import (
	"sync"
	"time"

	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

// MetricRecord is the opaque record a subscribed sink receives. "Opaque"
// to the host means it carries enough fields to act on without the core
// committing to a stable wire shape.
type MetricRecord struct {
	PatternID string
	Strategy  string
	Success   bool
	ElapsedMS float64
}

// Sink receives every MetricRecord emitted by a Hub's sessions. Sinks are
// called synchronously on the goroutine that recorded the attempt; a slow
// sink slows down pattern recovery, so hosts should keep it cheap or hand
// off to their own queue.
type Sink func(MetricRecord)

// PatternStats is the running aggregate for one pattern id across every
// session a Hub has ever collected.
type PatternStats struct {
	Attempts  int64
	Successes int64
	ElapsedMS float64
}

// SuccessRate is Successes/Attempts, or 0 when there have been no attempts.
func (s PatternStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

// HealthStatus buckets SuccessRate the same way the persistent cache
// buckets hit rate: excellent/good/fair/poor at the 0.95/0.85/0.70 marks.
// A pattern with a "poor" recovery success rate is a compilation-quality
// signal the same way a "poor" cache is a sizing signal.
func (s PatternStats) HealthStatus() string {
	return healthStatus(s.SuccessRate())
}

func healthStatus(rate float64) string {
	switch {
	case rate >= 0.95:
		return "excellent"
	case rate >= 0.85:
		return "good"
	case rate >= 0.70:
		return "fair"
	default:
		return "poor"
	}
}

// Hub is the long-lived telemetry aggregate one engine instance owns. It
// fans every recorded attempt out to subscribed sinks and keeps a
// per-pattern running tally for the external health monitor to poll.
type Hub struct {
	mu         sync.RWMutex
	perPattern map[string]*PatternStats
	sinks      []Sink
}

// NewHub creates an empty telemetry aggregate.
func NewHub() *Hub {
	return &Hub{perPattern: make(map[string]*PatternStats)}
}

// Subscribe registers sink to receive every MetricRecord emitted from this
// point forward. There is no unsubscribe: a core instance lives for the
// process lifetime of its host, matching the cache coordinator's lifetime.
func (h *Hub) Subscribe(sink Sink) {
	if sink == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, sink)
}

func (h *Hub) emit(rec MetricRecord) {
	h.mu.Lock()
	stats, ok := h.perPattern[rec.PatternID]
	if !ok {
		stats = &PatternStats{}
		h.perPattern[rec.PatternID] = stats
	}
	stats.Attempts++
	if rec.Success {
		stats.Successes++
	}
	stats.ElapsedMS += rec.ElapsedMS
	sinks := h.sinks
	h.mu.Unlock()

	for _, sink := range sinks {
		sink(rec)
	}
}

// Snapshot returns a copy of the per-pattern aggregate, safe to read
// without holding the Hub's lock.
func (h *Hub) Snapshot() map[string]PatternStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]PatternStats, len(h.perPattern))
	for id, stats := range h.perPattern {
		out[id] = *stats
	}
	return out
}

// NewSession starts a per-parse-call telemetry collector bound to this Hub.
func (h *Hub) NewSession() *Session {
	return &Session{hub: h, start: time.Now(), patterns: make(map[string]struct{})}
}

// Session collects the telemetry for a single Unified Parser call: it
// satisfies patternengine.Recorder so the pattern engine can report every
// recovery-strategy attempt directly, and it exposes a few extra hooks the
// facade calls itself for counts the engine's Recorder interface doesn't
// carry (patterns run, matches found, surfaced errors).
type Session struct {
	hub   *Hub
	start time.Time

	mu                sync.Mutex
	patterns          map[string]struct{}
	matchesFound      int
	recoveryAttempts  int
	recoverySuccesses int
	errors            []error
}

// RecordAttempt implements patternengine.Recorder. Every call the pattern
// engine makes here is, by construction of the pattern engine's recovery loop, a recovery
// strategy attempt ("fallback-patterns", "regex-fallback",
// "partial-match") — there is no primary-match strategy name because the
// engine only invokes the recorder once it has fallen back.
func (s *Session) RecordAttempt(patternID, strategy string, success bool, elapsed time.Duration) {
	s.mu.Lock()
	s.recoveryAttempts++
	if success {
		s.recoverySuccesses++
	}
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.emit(MetricRecord{
			PatternID: patternID,
			Strategy:  strategy,
			Success:   success,
			ElapsedMS: float64(elapsed.Microseconds()) / 1000.0,
		})
	}
}

// MarkPatternRun records that patternID was evaluated (regardless of
// whether it matched), feeding PatternMetrics.PatternsRun.
func (s *Session) MarkPatternRun(patternID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patterns[patternID] = struct{}{}
}

// AddMatches adds n to the running match count for this session.
func (s *Session) AddMatches(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.matchesFound += n
	s.mu.Unlock()
}

// RecordError appends err to this session's error audit trail. The facade
// calls this for every subcomponent error it attaches to ParserResult.Errors
// so the two stay in sync.
func (s *Session) RecordError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	s.errors = append(s.errors, err)
	s.mu.Unlock()
}

// Errors returns the error audit trail accumulated so far.
func (s *Session) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]error, len(s.errors))
	copy(out, s.errors)
	return out
}

// Finish closes out the session and returns the PatternMetrics the Unified
// Parser attaches to its ParserResult. Finish may be called more than once
// (e.g. on an early short-circuit return); each call reports elapsed time
// from the session's original start.
func (s *Session) Finish() types.PatternMetrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.PatternMetrics{
		PatternsRun:       len(s.patterns),
		MatchesFound:      s.matchesFound,
		RecoveryAttempts:  s.recoveryAttempts,
		RecoverySuccesses: s.recoverySuccesses,
		ElapsedMS:         float64(time.Since(s.start).Microseconds()) / 1000.0,
	}
}
