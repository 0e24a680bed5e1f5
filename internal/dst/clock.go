// Package dst implements spec.md §4.9's deterministic simulation
// runtime: a virtual clock advanced only by the driver, a seeded RNG
// whose stream determines every random choice, a simulated network with
// deferred/dropped/reordered/duplicated/corrupted delivery, per-node
// clock offset/drift, and a crash/recover simulator. internal/dst/shadow
// holds the companion property-testing reference models.
//
// Grounded on original_source/src/simulator/clock.rs (virtual clock),
// original_source/src/simulator/network.rs (deferred-delivery event
// queue), and original_source/src/simulator/crash.rs (suspend/resume),
// translated from Rust's single-threaded async executor into a Go
// driver loop that advances time and runs ready callbacks itself rather
// than yielding to the OS scheduler.
package dst

import (
	"container/heap"
	"sync"
)

// Clock is the monotone virtual time source every DST-mode component
// reads instead of time.Now(). It only advances when the driver calls
// Advance or AdvanceTo — never on its own — so replaying the same
// sequence of Advance calls always reaches the same observable state,
// per spec.md §4.9's "no wall-clock reads... on the DST code path."
type Clock struct {
	mu  sync.Mutex
	now int64 // milliseconds
}

func NewClock() *Clock {
	return &Clock{}
}

// Now returns the current virtual time in milliseconds.
func (c *Clock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by deltaMs, which must be >= 0: time
// never runs backward under simulation.
func (c *Clock) Advance(deltaMs int64) int64 {
	if deltaMs < 0 {
		panic("dst: clock cannot move backward")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += deltaMs
	return c.now
}

// AdvanceTo jumps directly to t, which must be >= the current time.
func (c *Clock) AdvanceTo(t int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t < c.now {
		panic("dst: clock cannot move backward")
	}
	c.now = t
	return c.now
}

// NodeClock models one replica's view of time: a fixed offset plus a
// drift rate (parts per million) from the simulation's shared anchor
// clock, per spec.md §4.9's "per-node clock offset and drift."
type NodeClock struct {
	anchor   *Clock
	offsetMs int64
	driftPPM int64
}

func NewNodeClock(anchor *Clock, offsetMs, driftPPM int64) *NodeClock {
	return &NodeClock{anchor: anchor, offsetMs: offsetMs, driftPPM: driftPPM}
}

// Now returns this node's skewed view of the anchor clock: the anchor
// time plus the fixed offset plus accumulated drift (driftPPM parts per
// million of elapsed anchor time).
func (n *NodeClock) Now() int64 {
	t := n.anchor.Now()
	drift := (t * n.driftPPM) / 1_000_000
	return t + n.offsetMs + drift
}

// timerEvent is one scheduled wakeup in the driver's priority queue,
// ordered by fire time and, on ties, insertion sequence — so two timers
// scheduled for the same virtual millisecond always fire in the order
// they were registered, keeping replays deterministic.
type timerEvent struct {
	fireAt int64
	seq    uint64
	fn     func()
	index  int
}

type timerQueue []*timerEvent

func (q timerQueue) Len() int { return len(q) }
func (q timerQueue) Less(i, j int) bool {
	if q[i].fireAt != q[j].fireAt {
		return q[i].fireAt < q[j].fireAt
	}
	return q[i].seq < q[j].seq
}
func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *timerQueue) Push(x any) {
	e := x.(*timerEvent)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// Scheduler drives virtual time forward, running every timer whose
// fireAt has been reached, in deterministic (time, registration) order.
// This is the single-threaded cooperative driver spec.md §5 describes
// for DST mode, standing in for the multi-threaded task executor
// production code runs under.
type Scheduler struct {
	mu    sync.Mutex
	clock *Clock
	queue timerQueue
	seq   uint64
}

func NewScheduler(clock *Clock) *Scheduler {
	s := &Scheduler{clock: clock}
	heap.Init(&s.queue)
	return s
}

// After schedules fn to run once the clock reaches now()+delayMs.
func (s *Scheduler) After(delayMs int64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	heap.Push(&s.queue, &timerEvent{fireAt: s.clock.Now() + delayMs, seq: s.seq, fn: fn})
}

// AtTime schedules fn to run once the clock reaches t.
func (s *Scheduler) AtTime(t int64, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	heap.Push(&s.queue, &timerEvent{fireAt: t, seq: s.seq, fn: fn})
}

// RunUntil advances the clock step by step, firing every due timer,
// until no timer remains with fireAt <= deadline. Each fired timer may
// itself schedule more timers (e.g. a periodic tick rescheduling
// itself); those are picked up in the same call if their fireAt still
// falls at or before deadline.
func (s *Scheduler) RunUntil(deadline int64) {
	for {
		s.mu.Lock()
		if s.queue.Len() == 0 || s.queue[0].fireAt > deadline {
			s.mu.Unlock()
			return
		}
		next := heap.Pop(&s.queue).(*timerEvent)
		s.mu.Unlock()

		s.clock.AdvanceTo(next.fireAt)
		next.fn()
	}
}

// Pending reports how many timers are still queued.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}
