package dst

import (
	"math/rand"
	"sync"
)

// FaultInjector implements spec.md §4.9/§9's Buggify: a set of named
// fault sites, each with a configurable trigger probability, queried
// from the hot path via ShouldBuggify. Grounded line-for-line on
// original_source/src/buggify/mod.rs's site-registry/probability/
// suppressor contract, translated from Rust's thread-local cell to an
// explicit struct threaded through call sites — Go has no thread-local
// storage primitive, so every caller that wants buggify-awareness holds
// its own *FaultInjector (or one shared per simulated node) rather than
// reaching for ambient global state. This keeps the hot path allocation-
// free exactly as the original requires, while staying externally
// configurable and safe for concurrent use by multiple goroutines
// sharing one simulated node's injector.
type FaultInjector struct {
	mu           sync.Mutex
	probabilities map[string]float64
	defaultProb  float64
	suppressed   int // depth counter; >0 means should_buggify always returns false
	hitCounts    map[string]uint64
	triedCounts  map[string]uint64
}

// NewFaultInjector returns an injector where every site defaults to
// defaultProb unless overridden by SetProbability.
func NewFaultInjector(defaultProb float64) *FaultInjector {
	return &FaultInjector{
		probabilities: make(map[string]float64),
		defaultProb:   defaultProb,
		hitCounts:     make(map[string]uint64),
		triedCounts:   make(map[string]uint64),
	}
}

// SetProbability fixes site's trigger probability, overriding the
// injector's default for that site only.
func (f *FaultInjector) SetProbability(site string, p float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probabilities[site] = p
}

// ShouldBuggify reports whether site should trigger this time, drawing
// from rng (caller-supplied so the draw comes from the simulation's own
// seeded stream, not a fresh one). Always false while a Suppress scope
// is active.
func (f *FaultInjector) ShouldBuggify(rng *rand.Rand, site string) bool {
	return f.ShouldBuggifyWithProb(rng, site, f.probabilityFor(site))
}

// ShouldBuggifyWithProb is ShouldBuggify with an explicit probability
// override for this call only, not persisted to the site's configured
// probability.
func (f *FaultInjector) ShouldBuggifyWithProb(rng *rand.Rand, site string, p float64) bool {
	f.mu.Lock()
	f.triedCounts[site]++
	suppressed := f.suppressed > 0
	f.mu.Unlock()

	if suppressed {
		return false
	}
	triggered := rng.Float64() < p
	if triggered {
		f.mu.Lock()
		f.hitCounts[site]++
		f.mu.Unlock()
	}
	return triggered
}

func (f *FaultInjector) probabilityFor(site string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.probabilities[site]; ok {
		return p
	}
	return f.defaultProb
}

// Suppress disables every site for the duration of the returned
// release function's caller holding it off — call it in a defer
// immediately so the suppression is released on every exit path
// (normal return, error, or panic unwinding through the defer), per
// spec.md §9's "acquisition must guarantee release along every exit
// path." Nested Suppress calls stack: release only lifts suppression
// once every acquired scope has released.
func (f *FaultInjector) Suppress() (release func()) {
	f.mu.Lock()
	f.suppressed++
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			f.suppressed--
			f.mu.Unlock()
		})
	}
}

// Stats reports (triggered, tried) counts for site, for DST test
// assertions that a fault actually fired at least once across a run.
func (f *FaultInjector) Stats(site string) (hits, tried uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hitCounts[site], f.triedCounts[site]
}

// Well-known fault site names, kept here so every caller spells the
// same string. No shard, gossip or writebuffer code takes a
// *FaultInjector; these names are referenced only from this package's
// tests.
const (
	SiteGossipDropDelta      = "gossip.drop_delta"
	SiteWriteBufferSlowFlush = "writebuffer.slow_flush"
	SiteObjectStoreTimeout   = "objectstore.timeout"
	SiteSegmentCorrupt       = "segment.corrupt"
	SiteCrashMidFlush        = "crash.mid_flush"
)
