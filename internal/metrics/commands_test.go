package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardkv/internal/replica"
	"shardkv/internal/resp"
)

func newTestRegistry() *Registry {
	return NewRegistry(replica.NewState("r1", replica.Eventual), "r1")
}

func TestCounterThenQueryReturnsIncrementedValue(t *testing.T) {
	r := newTestRegistry()
	got := r.Execute("MCOUNTER", []string{"http.requests", "host:web01", "100"}, 0)
	assert.Equal(t, resp.OK(), got)

	got = r.Execute("MQUERY", []string{"http.requests", "host:web01"}, 0)
	assert.Equal(t, resp.Int(100), got)
}

func TestCounterAccumulatesAcrossCalls(t *testing.T) {
	r := newTestRegistry()
	r.Execute("MCOUNTER", []string{"hits"}, 0)
	r.Execute("MCOUNTER", []string{"hits"}, 1)
	r.Execute("MCOUNTER", []string{"hits", "5"}, 2)
	got := r.Execute("MQUERY", []string{"hits"}, 3)
	assert.Equal(t, resp.Int(7), got)
}

func TestGaugeThenQueryReturnsLastValue(t *testing.T) {
	r := newTestRegistry()
	r.Execute("MGAUGE", []string{"system.cpu", "host:web01", "75.5"}, 0)
	got := r.Execute("MQUERY", []string{"system.cpu", "host:web01"}, 0)
	assert.Equal(t, resp.BulkStr("75.5"), got)
}

func TestGaugeLaterTimestampOverridesEarlier(t *testing.T) {
	r := newTestRegistry()
	r.Execute("MGAUGE", []string{"temp", "50"}, 10)
	r.Execute("MGAUGE", []string{"temp", "60"}, 5) // earlier logical time, loses
	got := r.Execute("MQUERY", []string{"temp"}, 20)
	assert.Equal(t, resp.BulkStr("50"), got)
}

func TestUpDownCounterTracksBothDirections(t *testing.T) {
	r := newTestRegistry()
	r.Execute("MUPDOWN", []string{"conns", "5"}, 0)
	r.Execute("MUPDOWN", []string{"conns", "-2"}, 1)
	got := r.Execute("MQUERY", []string{"conns"}, 2)
	assert.Equal(t, resp.Int(3), got)
}

func TestUniqueTracksSetCardinality(t *testing.T) {
	r := newTestRegistry()
	r.Execute("MUNIQUE", []string{"visitors", "alice"}, 0)
	r.Execute("MUNIQUE", []string{"visitors", "bob"}, 1)
	r.Execute("MUNIQUE", []string{"visitors", "alice"}, 2) // duplicate, cardinality unchanged
	got := r.Execute("MQUERY", []string{"visitors"}, 3)
	assert.Equal(t, resp.Int(2), got)
}

func TestDistributionQueryReturnsSummaryFields(t *testing.T) {
	r := newTestRegistry()
	for _, v := range []string{"10", "20", "30"} {
		r.Execute("MDIST", []string{"latency", v}, 0)
	}
	got := r.Execute("MQUERY", []string{"latency"}, 1)
	require.Equal(t, resp.Array, got.Kind)
	require.Equal(t, resp.BulkStr("count"), got.Items[0])
	require.Equal(t, resp.Int(3), got.Items[1])
}

func TestQueryOnMissingMetricReturnsNil(t *testing.T) {
	r := newTestRegistry()
	got := r.Execute("MQUERY", []string{"nothing-here"}, 0)
	assert.True(t, got.IsNil())
}

func TestInfoReportsCounterType(t *testing.T) {
	r := newTestRegistry()
	r.Execute("MCOUNTER", []string{"hits", "host:web01", "3"}, 0)
	got := r.Execute("MINFO", []string{"hits", "host:web01"}, 0)
	require.Equal(t, resp.Array, got.Kind)
	assert.Equal(t, resp.BulkStr("type"), got.Items[0])
	assert.Equal(t, resp.BulkStr("counter"), got.Items[1])
	assert.Equal(t, resp.BulkStr("value"), got.Items[2])
	assert.Equal(t, resp.Int(3), got.Items[3])
}

func TestInfoOnMissingMetricReturnsNil(t *testing.T) {
	r := newTestRegistry()
	assert.True(t, r.Execute("MINFO", []string{"missing"}, 0).IsNil())
}

func TestListFiltersBySubstringPattern(t *testing.T) {
	r := newTestRegistry()
	r.Execute("MCOUNTER", []string{"http.requests"}, 0)
	r.Execute("MGAUGE", []string{"system.cpu", "1.0"}, 0)

	got := r.Execute("MLIST", []string{"http"}, 0)
	require.Equal(t, resp.Array, got.Kind)
	require.Len(t, got.Items, 1)
	assert.Contains(t, string(got.Items[0].Bulk), "http.requests")
}

func TestHotkeysCommandSurfacesRepeatedAccess(t *testing.T) {
	r := newTestRegistry()
	var now int64
	for i := 0; i < 200; i++ {
		r.Execute("MCOUNTER", []string{"hot.metric", "host:web01", "1"}, now)
		now += 5
	}
	got := r.Execute("MHOTKEYS", []string{"10"}, 1000)
	require.Equal(t, resp.Array, got.Kind)
	assert.NotEmpty(t, got.Items, "should have detected hot keys")
}

func TestHotkeysAnnotatesReplicasOnceFanoutIsWired(t *testing.T) {
	r := newTestRegistry()
	r.SetReplicaFanout(2, func(key string, n int) []string {
		return []string{"peer-a:6380", "peer-b:6380"}[:n]
	})

	var now int64
	for i := 0; i < 200; i++ {
		r.Execute("MCOUNTER", []string{"hot.metric", "host:web01", "1"}, now)
		now += 5
	}
	got := r.Execute("MHOTKEYS", []string{"10"}, 1000)
	require.Equal(t, resp.Array, got.Kind)
	require.Len(t, got.Items, 3, "key, rate, and the resolved fan-out annotation")
	assert.Contains(t, string(got.Items[2].Bulk), "peer-a:6380")
}

func TestIsCommandRecognizesMetricVerbsOnly(t *testing.T) {
	assert.True(t, IsCommand("MCOUNTER"))
	assert.True(t, IsCommand("MLIST"))
	assert.False(t, IsCommand("GET"))
}
