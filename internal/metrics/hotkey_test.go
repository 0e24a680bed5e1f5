package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestHotKeyDetectorConvergesToSteadyRate mirrors commands.rs's
// test_hot_key_detection: 200 accesses 5ms apart is a 200/sec access
// rate, and the detector's decayed-count estimator should settle close
// to that once warmed up.
func TestHotKeyDetectorConvergesToSteadyRate(t *testing.T) {
	d := NewHotKeyDetector()
	var now int64
	for i := 0; i < 200; i++ {
		d.RecordAccess("hot.metric", now)
		now += 5
	}
	top := d.TopKeys(10, now)
	if assert.Len(t, top, 1) {
		assert.Equal(t, "hot.metric", top[0].Key)
		assert.InDelta(t, 200, top[0].Rate, 15)
	}
}

func TestHotKeyDetectorRanksByRateDescending(t *testing.T) {
	d := NewHotKeyDetector()
	for i := 0; i < 100; i++ {
		d.RecordAccess("busy", int64(i*5))
	}
	d.RecordAccess("quiet", 0)

	top := d.TopKeys(10, 500)
	if assert.Len(t, top, 2) {
		assert.Equal(t, "busy", top[0].Key)
		assert.Equal(t, "quiet", top[1].Key)
	}
}

func TestHotKeyDetectorLimitTruncates(t *testing.T) {
	d := NewHotKeyDetector()
	d.RecordAccess("a", 0)
	d.RecordAccess("b", 0)
	d.RecordAccess("c", 0)
	assert.Len(t, d.TopKeys(2, 0), 2)
}

func TestHotKeyDetectorRateDecaysOverTime(t *testing.T) {
	d := NewHotKeyDetector()
	d.RecordAccess("k", 0)
	early := d.TopKeys(10, 0)[0].Rate
	late := d.TopKeys(10, 100000)[0].Rate
	assert.Less(t, late, early)
}
