package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardkv/internal/resp"
)

func exec(t *testing.T, ex *Executor, now int64, name string, args ...string) resp.Value {
	t.Helper()
	cmd, err := Parse(append([]string{name}, args...))
	require.NoError(t, err)
	return ex.Exec(cmd, now)
}

func TestSetGetBasic(t *testing.T) {
	ex := NewExecutor()
	assert.Equal(t, resp.OK(), exec(t, ex, 0, "SET", "k", "v"))
	assert.Equal(t, resp.Bulk([]byte("v")), exec(t, ex, 0, "GET", "k"))
	assert.Equal(t, resp.NilBulk(), exec(t, ex, 0, "GET", "missing"))
}

func TestSetNXXX(t *testing.T) {
	ex := NewExecutor()
	assert.Equal(t, resp.NilBulk(), exec(t, ex, 0, "SET", "k", "v", "XX"))
	assert.Equal(t, resp.OK(), exec(t, ex, 0, "SET", "k", "v", "NX"))
	assert.Equal(t, resp.NilBulk(), exec(t, ex, 0, "SET", "k", "v2", "NX"))
	assert.Equal(t, resp.OK(), exec(t, ex, 0, "SET", "k", "v2", "XX"))
	assert.Equal(t, resp.Bulk([]byte("v2")), exec(t, ex, 0, "GET", "k"))
}

func TestSetNXAndXXIncompatible(t *testing.T) {
	ex := NewExecutor()
	got := exec(t, ex, 0, "SET", "k", "v", "NX", "XX")
	assert.Equal(t, resp.Error, got.Kind)
}

func TestSetGetOptionWrongType(t *testing.T) {
	ex := NewExecutor()
	exec(t, ex, 0, "LPUSH", "k", "a")
	got := exec(t, ex, 0, "SET", "k", "v", "GET")
	assert.Equal(t, resp.Error, got.Kind)
	assert.Contains(t, got.Str, "WRONGTYPE")
}

func TestSetTTLOptions(t *testing.T) {
	ex := NewExecutor()
	exec(t, ex, 1000, "SET", "k", "v", "EX", "10")
	assert.Equal(t, resp.Int(10), exec(t, ex, 1000, "TTL", "k"))
	exec(t, ex, 1000, "SET", "k", "v2", "KEEPTTL")
	assert.Equal(t, resp.Int(10), exec(t, ex, 1000, "TTL", "k"))
	exec(t, ex, 1000, "SET", "k", "v3")
	assert.Equal(t, resp.Int(-1), exec(t, ex, 1000, "TTL", "k"))
}

func TestExpirationEviction(t *testing.T) {
	ex := NewExecutor()
	exec(t, ex, 0, "SET", "k", "v", "PX", "100")
	assert.Equal(t, resp.Bulk([]byte("v")), exec(t, ex, 50, "GET", "k"))
	assert.Equal(t, resp.NilBulk(), exec(t, ex, 150, "GET", "k"))
}

func TestIncrDecr(t *testing.T) {
	ex := NewExecutor()
	assert.Equal(t, resp.Int(1), exec(t, ex, 0, "INCR", "n"))
	assert.Equal(t, resp.Int(11), exec(t, ex, 0, "INCRBY", "n", "10"))
	assert.Equal(t, resp.Int(10), exec(t, ex, 0, "DECR", "n"))
	exec(t, ex, 0, "SET", "s", "notanumber")
	got := exec(t, ex, 0, "INCR", "s")
	assert.Equal(t, resp.Error, got.Kind)
}

func TestExpireNXXXGTLT(t *testing.T) {
	ex := NewExecutor()
	exec(t, ex, 0, "SET", "k", "v")
	assert.Equal(t, resp.Int(1), exec(t, ex, 0, "EXPIRE", "k", "100", "NX"))
	assert.Equal(t, resp.Int(0), exec(t, ex, 0, "EXPIRE", "k", "200", "NX"))
	assert.Equal(t, resp.Int(1), exec(t, ex, 0, "EXPIRE", "k", "200", "GT"))
	assert.Equal(t, resp.Int(0), exec(t, ex, 0, "EXPIRE", "k", "50", "GT"))
	assert.Equal(t, resp.Int(1), exec(t, ex, 0, "EXPIRE", "k", "50", "LT"))
}

func TestListOps(t *testing.T) {
	ex := NewExecutor()
	exec(t, ex, 0, "RPUSH", "l", "a", "b", "c")
	assert.Equal(t, resp.Int(3), exec(t, ex, 0, "LLEN", "l"))
	assert.Equal(t, resp.Bulk([]byte("a")), exec(t, ex, 0, "LINDEX", "l", "0"))
	assert.Equal(t, resp.Bulk([]byte("c")), exec(t, ex, 0, "LINDEX", "l", "-1"))
	got := exec(t, ex, 0, "LRANGE", "l", "0", "-1")
	assert.Equal(t, resp.Arr(resp.Bulk([]byte("a")), resp.Bulk([]byte("b")), resp.Bulk([]byte("c"))), got)
	exec(t, ex, 0, "LPUSH", "l", "z")
	assert.Equal(t, resp.Bulk([]byte("z")), exec(t, ex, 0, "LPOP", "l"))
}

func TestHashOps(t *testing.T) {
	ex := NewExecutor()
	assert.Equal(t, resp.Int(2), exec(t, ex, 0, "HSET", "h", "f1", "v1", "f2", "v2"))
	assert.Equal(t, resp.Int(0), exec(t, ex, 0, "HSET", "h", "f1", "v1b"))
	assert.Equal(t, resp.Bulk([]byte("v1b")), exec(t, ex, 0, "HGET", "h", "f1"))
	assert.Equal(t, resp.Int(2), exec(t, ex, 0, "HLEN", "h"))
	assert.Equal(t, resp.Int(1), exec(t, ex, 0, "HINCRBY", "h", "counter", "1"))
}

func TestSetCollectionOps(t *testing.T) {
	ex := NewExecutor()
	assert.Equal(t, resp.Int(2), exec(t, ex, 0, "SADD", "s", "a", "b"))
	assert.Equal(t, resp.Int(0), exec(t, ex, 0, "SADD", "s", "a"))
	assert.Equal(t, resp.Int(1), exec(t, ex, 0, "SISMEMBER", "s", "a"))
	assert.Equal(t, resp.Int(0), exec(t, ex, 0, "SISMEMBER", "s", "z"))
	assert.Equal(t, resp.Int(2), exec(t, ex, 0, "SCARD", "s"))
}

func TestZaddOptionMatrix(t *testing.T) {
	ex := NewExecutor()
	assert.Equal(t, resp.Int(1), exec(t, ex, 0, "ZADD", "z", "1", "a"))
	assert.Equal(t, resp.Int(0), exec(t, ex, 0, "ZADD", "z", "5", "a", "NX"))
	assert.Equal(t, resp.Int(0), exec(t, ex, 0, "ZADD", "z", "0", "a", "GT"))
	assert.Equal(t, resp.Int(0), exec(t, ex, 0, "ZADD", "z", "5", "a", "GT"))
	got, exists := mustZSet(t, ex, "z").Score("a")
	require.True(t, exists)
	assert.Equal(t, 5.0, got)
	assert.Equal(t, resp.Int(1), exec(t, ex, 0, "ZADD", "z", "9", "a", "GT", "CH"))
}

func mustZSet(t *testing.T, ex *Executor, key string) *ZSet {
	t.Helper()
	e, ok := ex.table[key]
	require.True(t, ok)
	require.Equal(t, KindZSet, e.Value.Kind)
	return e.Value.ZSet
}

func TestZrangeByScoreInfAndExclusive(t *testing.T) {
	ex := NewExecutor()
	exec(t, ex, 0, "ZADD", "z", "1", "a", "2", "b", "3", "c")
	got := exec(t, ex, 0, "ZRANGEBYSCORE", "z", "-inf", "+inf")
	assert.Equal(t, resp.Arr(resp.BulkStr("a"), resp.BulkStr("b"), resp.BulkStr("c")), got)

	got2 := exec(t, ex, 0, "ZRANGEBYSCORE", "z", "(1", "3")
	assert.Equal(t, resp.Arr(resp.BulkStr("b"), resp.BulkStr("c")), got2)
}

func TestZrevrange(t *testing.T) {
	ex := NewExecutor()
	exec(t, ex, 0, "ZADD", "z", "1", "a", "2", "b", "3", "c")
	got := exec(t, ex, 0, "ZREVRANGE", "z", "0", "-1")
	assert.Equal(t, resp.Arr(resp.BulkStr("c"), resp.BulkStr("b"), resp.BulkStr("a")), got)
}

func TestScanPagination(t *testing.T) {
	ex := NewExecutor()
	for _, k := range []string{"k1", "k2", "k3"} {
		exec(t, ex, 0, "SET", k, "v")
	}
	cursor := "0"
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		got := exec(t, ex, 0, "SCAN", cursor, "COUNT", "1")
		require.Equal(t, resp.Array, got.Kind)
		require.Len(t, got.Items, 2)
		cursor = string(got.Items[0].Bulk)
		for _, it := range got.Items[1].Items {
			seen[string(it.Bulk)] = true
		}
		if cursor == "0" {
			break
		}
	}
	assert.True(t, seen["k1"] && seen["k2"] && seen["k3"])
}

func TestGlobMatch(t *testing.T) {
	assert.True(t, globMatch("*", "anything"))
	assert.True(t, globMatch("h?llo", "hello"))
	assert.False(t, globMatch("h?llo", "heello"))
	assert.False(t, globMatch("[abc]ello", "hello"))
	assert.True(t, globMatch("[h]ello", "hello"))
	assert.True(t, globMatch("[^a]ello", "hello"))
	assert.False(t, globMatch("[^h]ello", "hello"))
	assert.True(t, globMatch("[a-z]ello", "hello"))
	assert.False(t, globMatch("[abc", "a")) // unclosed class: literal non-match
}

func TestWrongTypeAcrossKinds(t *testing.T) {
	ex := NewExecutor()
	exec(t, ex, 0, "SET", "str", "v")
	assert.Equal(t, resp.Error, exec(t, ex, 0, "LPUSH", "str", "x").Kind)
	assert.Equal(t, resp.Error, exec(t, ex, 0, "SADD", "str", "x").Kind)
	assert.Equal(t, resp.Error, exec(t, ex, 0, "HSET", "str", "f", "v").Kind)
	assert.Equal(t, resp.Error, exec(t, ex, 0, "ZADD", "str", "1", "m").Kind)
}
