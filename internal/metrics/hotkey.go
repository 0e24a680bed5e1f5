package metrics

import (
	"math"
	"sort"
	"sync"
)

// hotKeyDecayLambda is the exponential-decay constant (per millisecond)
// the detector folds each access through. Grounded on commands.rs's
// record_access/get_top_keys(limit, now_ms) contract (the detector's own
// implementation lives in a production module outside the retrieval
// pack): a decayed-count estimator satisfying dN/dt = -λN + arrivals
// converges, at a steady access rate r, to N ≈ r/λ — so rate = N*λ
// recovers an ops/sec estimate without keeping a sliding window of raw
// timestamps.
const hotKeyDecayLambda = 0.01

// KeyRate is one entry of a MHOTKEYS reply: an access-key and its
// estimated rate in accesses per second.
type KeyRate struct {
	Key  string
	Rate float64
}

type hotKeyState struct {
	decayedCount float64
	lastMs       int64
}

// HotKeyDetector tracks a decayed access-rate estimate per key, queried
// by MHOTKEYS to surface the busiest keys.
type HotKeyDetector struct {
	mu     sync.Mutex
	states map[string]*hotKeyState
}

func NewHotKeyDetector() *HotKeyDetector {
	return &HotKeyDetector{states: make(map[string]*hotKeyState)}
}

// RecordAccess folds one access to key at nowMs into its decayed count.
func (d *HotKeyDetector) RecordAccess(key string, nowMs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	st, ok := d.states[key]
	if !ok {
		st = &hotKeyState{lastMs: nowMs}
		d.states[key] = st
	}
	st.decayedCount = st.decayedCount*decayFactor(nowMs-st.lastMs) + 1
	st.lastMs = nowMs
}

// rateLocked returns key's estimated accesses/sec at nowMs, decaying the
// stored count forward from its last update without mutating it. Caller
// holds d.mu.
func (d *HotKeyDetector) rateLocked(key string, nowMs int64) float64 {
	st, ok := d.states[key]
	if !ok {
		return 0
	}
	decayed := st.decayedCount * decayFactor(nowMs-st.lastMs)
	return decayed * hotKeyDecayLambda * 1000
}

// TopKeys returns up to limit keys ranked by descending estimated rate at
// nowMs, the same shape get_hot_keys flattens into a reply array.
func (d *HotKeyDetector) TopKeys(limit int, nowMs int64) []KeyRate {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]KeyRate, 0, len(d.states))
	for key := range d.states {
		out = append(out, KeyRate{Key: key, Rate: d.rateLocked(key, nowMs)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rate != out[j].Rate {
			return out[i].Rate > out[j].Rate
		}
		return out[i].Key < out[j].Key
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func decayFactor(dtMs int64) float64 {
	if dtMs <= 0 {
		return 1
	}
	return math.Exp(-hotKeyDecayLambda * float64(dtMs))
}
