package dst

import "math/rand"

// NewRNG returns a *rand.Rand seeded deterministically from seed. Every
// random choice DST makes — peer selection, delivery delay, fault
// triggers, crash timing — must come from a stream rooted at this call,
// never from the package-level math/rand source, or two runs with the
// same seed could diverge. This is the one spot a dedicated PRNG
// library could in principle help; none appears anywhere in the
// retrieval pack, and math/rand's seeded *rand.Rand already gives the
// determinism spec.md §4.9 requires, so this stays a thin stdlib
// wrapper (documented per DESIGN.md's stdlib-justification rule).
func NewRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Fork derives a new independently-seeded RNG from parent, for handing
// each simulated node its own stream while keeping the whole run
// reproducible from one top-level seed: the derived seed is itself a
// deterministic function of parent's current state.
func Fork(parent *rand.Rand) *rand.Rand {
	return rand.New(rand.NewSource(parent.Int63()))
}
