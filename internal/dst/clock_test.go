package dst

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchedulerOrdersByTimeThenRegistration(t *testing.T) {
	clock := NewClock()
	sched := NewScheduler(clock)

	var order []string
	sched.After(100, func() { order = append(order, "a") })
	sched.After(50, func() { order = append(order, "b") })
	sched.After(50, func() { order = append(order, "c") }) // registered after b, same fireAt
	sched.After(10, func() { order = append(order, "d") })

	sched.RunUntil(1000)
	require.Equal(t, []string{"d", "b", "c", "a"}, order)
	require.Equal(t, int64(100), clock.Now())
	require.Equal(t, 0, sched.Pending())
}

func TestSchedulerRunUntilStopsAtDeadline(t *testing.T) {
	clock := NewClock()
	sched := NewScheduler(clock)

	fired := 0
	sched.After(10, func() { fired++ })
	sched.After(200, func() { fired++ })

	sched.RunUntil(50)
	require.Equal(t, 1, fired)
	require.Equal(t, 1, sched.Pending())
	require.Equal(t, int64(10), clock.Now())

	sched.RunUntil(500)
	require.Equal(t, 2, fired)
	require.Equal(t, 0, sched.Pending())
}

func TestSchedulerSelfReschedulingTimerFiresRepeatedly(t *testing.T) {
	clock := NewClock()
	sched := NewScheduler(clock)

	var ticks []int64
	var tick func()
	tick = func() {
		ticks = append(ticks, clock.Now())
		if len(ticks) < 5 {
			sched.After(10, tick)
		}
	}
	sched.After(10, tick)
	sched.RunUntil(1000)

	require.True(t, sort.IsSorted(int64Slice(ticks)))
	require.Equal(t, []int64{10, 20, 30, 40, 50}, ticks)
}

type int64Slice []int64

func (s int64Slice) Len() int           { return len(s) }
func (s int64Slice) Less(i, j int) bool { return s[i] < s[j] }
func (s int64Slice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

func TestClockNeverMovesBackward(t *testing.T) {
	clock := NewClock()
	clock.Advance(100)
	require.Panics(t, func() { clock.Advance(-1) })
	require.Panics(t, func() { clock.AdvanceTo(50) })
}

func TestNodeClockAppliesOffsetAndDrift(t *testing.T) {
	anchor := NewClock()
	nc := NewNodeClock(anchor, 500, 1000) // 1000ppm = 0.1%
	anchor.AdvanceTo(10_000)
	// drift = 10000 * 1000 / 1_000_000 = 10
	require.Equal(t, int64(10_000+500+10), nc.Now())
}
