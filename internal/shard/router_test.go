package shard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardkv/internal/command"
	"shardkv/internal/resp"
)

func send(t *testing.T, r *Router, now int64, name string, args ...string) resp.Value {
	t.Helper()
	cmd, err := command.Parse(append([]string{name}, args...))
	require.NoError(t, err)
	return r.Dispatch(cmd, now)
}

func TestRouterSingleKeyRoutesConsistently(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	assert.Equal(t, HashKey("k"), HashKey("k"))
}

func TestRouterSetAndGet(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	send(t, r, 0, "SET", "k", "v")
	assert.Equal(t, resp.Bulk([]byte("v")), send(t, r, 0, "GET", "k"))
}

func TestRouterMget(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	send(t, r, 0, "SET", "a", "1")
	send(t, r, 0, "SET", "b", "2")
	got := send(t, r, 0, "MGET", "a", "b", "missing")
	assert.Equal(t, resp.Arr(resp.Bulk([]byte("1")), resp.Bulk([]byte("2")), resp.NilBulk()), got)
}

func TestRouterMsetAcrossShards(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	got := send(t, r, 0, "MSET", "a", "1", "zzzzz", "2", "qqqqq", "3")
	assert.Equal(t, resp.OK(), got)
	assert.Equal(t, resp.Bulk([]byte("1")), send(t, r, 0, "GET", "a"))
	assert.Equal(t, resp.Bulk([]byte("2")), send(t, r, 0, "GET", "zzzzz"))
}

func TestRouterExistsSumsAcrossShards(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	send(t, r, 0, "SET", "a", "1")
	send(t, r, 0, "SET", "b", "2")
	got := send(t, r, 0, "EXISTS", "a", "b", "missing")
	assert.Equal(t, resp.Int(2), got)
}

func TestRouterKeysBroadcastsAndConcatenates(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	for _, k := range []string{"a", "bb", "ccc", "dddd"} {
		send(t, r, 0, "SET", k, "v")
	}
	got := send(t, r, 0, "KEYS", "*")
	require.Equal(t, resp.Array, got.Kind)
	assert.Len(t, got.Items, 4)
}

func TestRouterFlushallBroadcasts(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	send(t, r, 0, "SET", "a", "1")
	send(t, r, 0, "SET", "zzzzz", "2")
	assert.Equal(t, resp.OK(), send(t, r, 0, "FLUSHALL"))
	assert.Equal(t, resp.Int(0), send(t, r, 0, "DBSIZE"))
}

func TestRouterScanCrossesShardsEventually(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	for i := 0; i < 40; i++ {
		send(t, r, 0, "SET", string(rune('a'+i%26))+string(rune('A'+i)), "v")
	}
	cursor := "0"
	total := 0
	for i := 0; i < 1000; i++ {
		got := send(t, r, 0, "SCAN", cursor, "COUNT", "5")
		require.Equal(t, resp.Array, got.Kind)
		cursor = string(got.Items[0].Bulk)
		total += len(got.Items[1].Items)
		if cursor == "0" {
			break
		}
	}
	assert.Equal(t, 40, total)
}

func TestRouterEvictExpired(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	send(t, r, 0, "SET", "k", "v", "PX", "10")
	n := r.EvictExpired(100)
	assert.GreaterOrEqual(t, n, 1)
}

// findKeysInDifferentShards and findKeysInSameShard brute-force small
// keys until HashKey disagrees/agrees, so the cross-shard RENAME/
// RPOPLPUSH/LMOVE composition path is actually exercised instead of
// accidentally hitting the same-shard fast path every run.
func findKeysInDifferentShards(t *testing.T) (string, string) {
	t.Helper()
	base := HashKey("k0")
	for i := 1; i < 10000; i++ {
		k := "k" + string(rune('0'+i%10)) + string(rune('a'+i/10%26))
		if HashKey(k) != base {
			return "k0", k
		}
	}
	t.Fatal("could not find two keys in different shards")
	return "", ""
}

func findKeysInSameShard(t *testing.T) (string, string) {
	t.Helper()
	base := HashKey("k0")
	for i := 1; i < 10000; i++ {
		k := "k" + string(rune('0'+i%10)) + string(rune('a'+i/10%26))
		if HashKey(k) == base {
			return "k0", k
		}
	}
	t.Fatal("could not find two keys in the same shard")
	return "", ""
}

func TestRouterRenameCrossShard(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	src, dst := findKeysInDifferentShards(t)
	send(t, r, 0, "SET", src, "v1")
	got := send(t, r, 0, "RENAME", src, dst)
	assert.Equal(t, resp.OK(), got)
	assert.True(t, send(t, r, 0, "GET", src).IsNil())
	assert.Equal(t, resp.Bulk([]byte("v1")), send(t, r, 0, "GET", dst))
}

func TestRouterRenameSameShard(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	src, dst := findKeysInSameShard(t)
	send(t, r, 0, "SET", src, "v1")
	got := send(t, r, 0, "RENAME", src, dst)
	assert.Equal(t, resp.OK(), got)
	assert.Equal(t, resp.Bulk([]byte("v1")), send(t, r, 0, "GET", dst))
}

func TestRouterRenamenxCrossShardRefusesExistingDest(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	src, dst := findKeysInDifferentShards(t)
	send(t, r, 0, "SET", src, "v1")
	send(t, r, 0, "SET", dst, "already-there")
	got := send(t, r, 0, "RENAMENX", src, dst)
	assert.Equal(t, resp.Int(0), got)
	assert.Equal(t, resp.Bulk([]byte("already-there")), send(t, r, 0, "GET", dst))
}

func TestRouterRpoplpushCrossShard(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	src, dst := findKeysInDifferentShards(t)
	send(t, r, 0, "RPUSH", src, "a", "b", "c")
	got := send(t, r, 0, "RPOPLPUSH", src, dst)
	assert.Equal(t, resp.Bulk([]byte("c")), got)
	assert.Equal(t, resp.Arr(resp.Bulk([]byte("c"))), send(t, r, 0, "LRANGE", dst, "0", "-1"))
	assert.Equal(t, resp.Arr(resp.Bulk([]byte("a")), resp.Bulk([]byte("b"))), send(t, r, 0, "LRANGE", src, "0", "-1"))
}

func TestRouterLmoveCrossShard(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	src, dst := findKeysInDifferentShards(t)
	send(t, r, 0, "RPUSH", src, "a", "b", "c")
	got := send(t, r, 0, "LMOVE", src, dst, "LEFT", "RIGHT")
	assert.Equal(t, resp.Bulk([]byte("a")), got)
	assert.Equal(t, resp.Arr(resp.Bulk([]byte("a"))), send(t, r, 0, "LRANGE", dst, "0", "-1"))
}

func TestRouterMoveCrossShardWrongType(t *testing.T) {
	r := NewRouter()
	defer r.Stop()
	src, dst := findKeysInDifferentShards(t)
	send(t, r, 0, "SET", src, "not-a-list")
	got := send(t, r, 0, "RPOPLPUSH", src, dst)
	require.Equal(t, resp.Error, got.Kind)
}
