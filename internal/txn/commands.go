package txn

// knownCommands lists every verb the queue will accept inside a
// transaction (spec.md §4.2's "known command -> push to queue"); a name
// not in this set sets the transaction's error flag instead. Mirrors the
// command surface enumerated in spec.md's §6 command-surface list. AUTH
// and ACL are deliberately absent: Handle rejects both outright inside a
// transaction (like WATCH) rather than queuing them, since neither one's
// effect — authenticating the connection, mutating the ACL registry —
// makes sense deferred to EXEC time.
var knownCommands = buildKnownCommands()

func buildKnownCommands() map[string]struct{} {
	names := []string{
		"GET", "SET", "SETNX", "SETEX", "PSETEX", "MGET", "MSET", "MSETNX",
		"APPEND", "GETSET", "STRLEN", "GETRANGE", "SETRANGE", "GETEX",
		"GETDEL", "INCR", "DECR", "INCRBY", "DECRBY", "INCRBYFLOAT", "DEL",
		"UNLINK", "EXISTS", "TYPE", "KEYS", "SCAN", "RANDOMKEY", "RENAME",
		"RENAMENX", "EXPIRE", "PEXPIRE", "EXPIREAT", "PEXPIREAT", "TTL",
		"PTTL", "EXPIRETIME", "PEXPIRETIME", "PERSIST", "LPUSH", "RPUSH",
		"LPOP", "RPOP", "LLEN", "LINDEX", "LRANGE", "LSET", "LTRIM",
		"RPOPLPUSH", "LMOVE", "SADD", "SREM", "SMEMBERS", "SISMEMBER",
		"SCARD", "SPOP", "HSET", "HGET", "HDEL", "HGETALL", "HKEYS",
		"HVALS", "HLEN", "HEXISTS", "HINCRBY", "HSCAN", "ZADD", "ZREM",
		"ZSCORE", "ZRANK", "ZRANGE", "ZREVRANGE", "ZCARD", "ZCOUNT",
		"ZRANGEBYSCORE", "ZSCAN", "INFO", "DBSIZE", "PING", "ECHO",
		"SELECT", "FLUSHDB", "FLUSHALL", "TIME", "WAIT", "SORT", "CONFIG",
		"COMMAND", "CLIENT", "OBJECT", "DEBUG",
		"MCOUNTER", "MGAUGE", "MUPDOWN", "MDIST", "MUNIQUE", "MQUERY",
		"MHOTKEYS", "MINFO", "MLIST",
	}
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}
