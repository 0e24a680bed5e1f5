package dst

import (
	"context"
	"math/rand"
	"time"
)

// LinkFaults configures one directed link's delivery behavior, per
// spec.md §4.9: "possibly dropped, reordered, duplicated, or partially
// written per fault settings."
type LinkFaults struct {
	DropProb      float64
	DuplicateProb float64
	CorruptProb   float64
	MinDelayMs    int64
	MaxDelayMs    int64
}

// defaultFaults delivers instantly with no faults, the identity
// configuration a link starts with until NetworkSim.SetLinkFaults
// overrides it.
var defaultFaults = LinkFaults{MinDelayMs: 0, MaxDelayMs: 0}

// NetworkSim is the simulated network spec.md §4.9 describes: every
// connection is a pair of in-process queues; delivery is deferred to a
// future virtual time via Scheduler, and may be dropped, reordered (by
// virtue of variable delay), duplicated, or corrupted according to the
// per-link LinkFaults.
type NetworkSim struct {
	sched *Scheduler
	rng   *rand.Rand
	faults map[[2]string]LinkFaults
}

func NewNetworkSim(sched *Scheduler, rng *rand.Rand) *NetworkSim {
	return &NetworkSim{sched: sched, rng: rng, faults: make(map[[2]string]LinkFaults)}
}

// SetLinkFaults configures the from->to directed link. Links are
// directed so asymmetric partitions (one side can send, the other
// can't) are representable.
func (n *NetworkSim) SetLinkFaults(from, to string, f LinkFaults) {
	n.faults[[2]string{from, to}] = f
}

func (n *NetworkSim) linkFaults(from, to string) LinkFaults {
	if f, ok := n.faults[[2]string{from, to}]; ok {
		return f
	}
	return defaultFaults
}

// Send schedules deliver(payload) to run at a future virtual time
// determined by the from->to link's configured delay, honoring drop/
// duplicate/corrupt faults. payload is whatever the caller's deliver
// callback expects to mutate (e.g. a []byte to corrupt in place, or an
// opaque message the callback re-serializes).
//
// ctx is checked once at send time only — once a message is "in
// flight" in this model, it delivers (or is dropped) on the schedule
// already determined at send time, matching real network semantics
// where cancellation can't reach an already-sent packet.
func (n *NetworkSim) Send(ctx context.Context, from, to string, corrupt func(), deliver func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f := n.linkFaults(from, to)

	if f.DropProb > 0 && n.rng.Float64() < f.DropProb {
		return nil
	}

	delay := f.MinDelayMs
	if f.MaxDelayMs > f.MinDelayMs {
		delay += n.rng.Int63n(f.MaxDelayMs - f.MinDelayMs + 1)
	}

	deliverOnce := func() {
		if f.CorruptProb > 0 && n.rng.Float64() < f.CorruptProb && corrupt != nil {
			corrupt()
		}
		deliver()
	}

	n.sched.After(delay, deliverOnce)
	if f.DuplicateProb > 0 && n.rng.Float64() < f.DuplicateProb {
		// A duplicate is delivered independently, with its own
		// (possibly different) delay draw, matching real networks where
		// a retransmitted duplicate need not arrive back-to-back with
		// the original.
		dupDelay := f.MinDelayMs
		if f.MaxDelayMs > f.MinDelayMs {
			dupDelay += n.rng.Int63n(f.MaxDelayMs - f.MinDelayMs + 1)
		}
		n.sched.After(dupDelay, deliverOnce)
	}
	return nil
}

// SleepUntil blocks the calling goroutine (a simulated task) until the
// scheduler's clock reaches now()+delayMs. Only meaningful when driven
// by a goroutine-per-task harness rather than RunUntil's inline driver;
// kept for components (e.g. a gossip tick loop under test) that want to
// `sim.SleepUntil(ctx, interval)` the same way they'd `time.Sleep` in
// production.
func (n *NetworkSim) SleepUntil(ctx context.Context, delayMs int64) error {
	done := make(chan struct{})
	n.sched.After(delayMs, func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WallClockSleep is the production-mode analogue DST code must never
// call directly — it exists only so a component can accept a single
// `sleep func(context.Context, time.Duration) error` dependency and be
// handed either this or NetworkSim.SleepUntil depending on which mode
// it's running under.
func WallClockSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
