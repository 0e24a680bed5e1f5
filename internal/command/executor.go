package command

import (
	"sync"

	"shardkv/internal/resp"
)

// Entry is one key's stored value plus its expiration deadline. ExpireAt
// is a virtual-time millisecond timestamp; zero means no deadline. Every
// timestamp this package touches is supplied by the caller (the owning
// shard actor's current_time) rather than read from time.Now, so the
// executor behaves identically whether driven by a real clock or
// internal/dst's virtual one — see SPEC_FULL.md's §4.9 note.
type Entry struct {
	Value    Value
	ExpireAt int64
}

func (e *Entry) expired(now int64) bool {
	return e.ExpireAt != 0 && e.ExpireAt <= now
}

// Executor is the single data table + expiration table owned by one
// shard actor, matching spec.md §4.1's "each actor owns a CommandExecutor
// carrying one data table and one expiration table." All mutation runs
// under mu; the shard actor serializes access by never running two
// commands concurrently against the same Executor, but mu is kept so the
// router's concurrent fan-out (MGET, EXISTS) can safely read from
// multiple goroutines if a future router shape calls for it.
type Executor struct {
	mu    sync.Mutex
	table map[string]*Entry
}

func NewExecutor() *Executor {
	return &Executor{table: make(map[string]*Entry)}
}

// Exec dispatches a single command against the table at virtual time
// now (milliseconds). It is the sole entry point internal/shard calls.
func (ex *Executor) Exec(cmd Command, now int64) resp.Value {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	ex.evictOne(cmd, now)

	switch cmd.Name {
	case "GET":
		return ex.cmdGet(cmd.Args, now)
	case "SET":
		return ex.cmdSet(cmd.Args, now)
	case "SETNX":
		return ex.cmdSetnx(cmd.Args, now)
	case "SETEX":
		return ex.cmdSetex(cmd.Args, now, 1000)
	case "PSETEX":
		return ex.cmdSetex(cmd.Args, now, 1)
	case "MGET":
		return ex.cmdMget(cmd.Args, now)
	case "MSET":
		return ex.cmdMset(cmd.Args)
	case "MSETNX":
		return ex.cmdMsetnx(cmd.Args, now)
	case "APPEND":
		return ex.cmdAppend(cmd.Args, now)
	case "GETSET":
		return ex.cmdGetset(cmd.Args)
	case "STRLEN":
		return ex.cmdStrlen(cmd.Args, now)
	case "GETRANGE":
		return ex.cmdGetrange(cmd.Args, now)
	case "SETRANGE":
		return ex.cmdSetrange(cmd.Args, now)
	case "GETEX":
		return ex.cmdGetex(cmd.Args, now)
	case "GETDEL":
		return ex.cmdGetdel(cmd.Args)
	case "INCR":
		return ex.cmdIncrBy(cmd.Args, now, 1)
	case "DECR":
		return ex.cmdIncrBy(cmd.Args, now, -1)
	case "INCRBY":
		return ex.cmdIncrByArg(cmd.Args, now, 1)
	case "DECRBY":
		return ex.cmdIncrByArg(cmd.Args, now, -1)
	case "INCRBYFLOAT":
		return ex.cmdIncrByFloat(cmd.Args, now)

	case "DEL", "UNLINK":
		return ex.cmdDel(cmd.Args)
	case "EXISTS":
		return ex.cmdExists(cmd.Args, now)
	case "TYPE":
		return ex.cmdType(cmd.Args, now)
	case "KEYS":
		return ex.cmdKeys(cmd.Args, now)
	case "SCAN":
		return ex.cmdScan(cmd.Args, now)
	case "RANDOMKEY":
		return ex.cmdRandomkey(now)
	case "RENAME":
		return ex.cmdRename(cmd.Args, now)
	case "RENAMENX":
		return ex.cmdRenamenx(cmd.Args, now)
	case "EXPIRE":
		return ex.cmdExpire(cmd.Args, now, 1000, false)
	case "PEXPIRE":
		return ex.cmdExpire(cmd.Args, now, 1, false)
	case "EXPIREAT":
		return ex.cmdExpire(cmd.Args, now, 1000, true)
	case "PEXPIREAT":
		return ex.cmdExpire(cmd.Args, now, 1, true)
	case "TTL":
		return ex.cmdTTL(cmd.Args, now, 1000)
	case "PTTL":
		return ex.cmdTTL(cmd.Args, now, 1)
	case "EXPIRETIME":
		return ex.cmdExpiretime(cmd.Args, now, 1000)
	case "PEXPIRETIME":
		return ex.cmdExpiretime(cmd.Args, now, 1)
	case "PERSIST":
		return ex.cmdPersist(cmd.Args, now)

	case "LPUSH":
		return ex.cmdPush(cmd.Args, now, true)
	case "RPUSH":
		return ex.cmdPush(cmd.Args, now, false)
	case "LPOP":
		return ex.cmdPop(cmd.Args, now, true)
	case "RPOP":
		return ex.cmdPop(cmd.Args, now, false)
	case "LLEN":
		return ex.cmdLlen(cmd.Args, now)
	case "LINDEX":
		return ex.cmdLindex(cmd.Args, now)
	case "LRANGE":
		return ex.cmdLrange(cmd.Args, now)
	case "LSET":
		return ex.cmdLset(cmd.Args, now)
	case "LTRIM":
		return ex.cmdLtrim(cmd.Args, now)
	case "RPOPLPUSH":
		return ex.cmdRpoplpush(cmd.Args, now)
	case "LMOVE":
		return ex.cmdLmove(cmd.Args, now)

	case "SADD":
		return ex.cmdSadd(cmd.Args, now)
	case "SREM":
		return ex.cmdSrem(cmd.Args, now)
	case "SMEMBERS":
		return ex.cmdSmembers(cmd.Args, now)
	case "SISMEMBER":
		return ex.cmdSismember(cmd.Args, now)
	case "SCARD":
		return ex.cmdScard(cmd.Args, now)
	case "SPOP":
		return ex.cmdSpop(cmd.Args, now)

	case "HSET":
		return ex.cmdHset(cmd.Args, now)
	case "HGET":
		return ex.cmdHget(cmd.Args, now)
	case "HDEL":
		return ex.cmdHdel(cmd.Args, now)
	case "HGETALL":
		return ex.cmdHgetall(cmd.Args, now)
	case "HKEYS":
		return ex.cmdHkeys(cmd.Args, now)
	case "HVALS":
		return ex.cmdHvals(cmd.Args, now)
	case "HLEN":
		return ex.cmdHlen(cmd.Args, now)
	case "HEXISTS":
		return ex.cmdHexists(cmd.Args, now)
	case "HINCRBY":
		return ex.cmdHincrby(cmd.Args, now)
	case "HSCAN":
		return ex.cmdHscan(cmd.Args, now)

	case "ZADD":
		return ex.cmdZadd(cmd.Args, now)
	case "ZREM":
		return ex.cmdZrem(cmd.Args, now)
	case "ZSCORE":
		return ex.cmdZscore(cmd.Args, now)
	case "ZRANK":
		return ex.cmdZrank(cmd.Args, now)
	case "ZRANGE":
		return ex.cmdZrange(cmd.Args, now, false)
	case "ZREVRANGE":
		return ex.cmdZrange(cmd.Args, now, true)
	case "ZCARD":
		return ex.cmdZcard(cmd.Args, now)
	case "ZCOUNT":
		return ex.cmdZcount(cmd.Args, now)
	case "ZRANGEBYSCORE":
		return ex.cmdZrangebyscore(cmd.Args, now)
	case "ZSCAN":
		return ex.cmdZscan(cmd.Args, now)

	case "PING":
		return ex.cmdPing(cmd.Args)
	case "ECHO":
		return ex.cmdEcho(cmd.Args)
	case "DBSIZE":
		return ex.cmdDbsize(now)
	case "FLUSHDB", "FLUSHALL":
		return ex.cmdFlush()
	case "SELECT":
		return ex.cmdSelect(cmd.Args)
	case "TIME":
		return ex.cmdTime(now)
	case "WAIT":
		return resp.Int(0)
	case "INFO":
		return resp.BulkStr(adminInfo)
	case "CONFIG":
		return ex.cmdConfig(cmd.Args)
	case "COMMAND":
		return ex.cmdCommand(cmd.Args)
	case "CLIENT":
		return ex.cmdClient(cmd.Args)
	case "OBJECT":
		return ex.cmdObject(cmd.Args, now)
	case "DEBUG":
		return ex.cmdDebug(cmd.Args)
	case "SORT":
		return ex.cmdSort(cmd.Args, now)

	default:
		return resp.Errf("ERR unknown command '%s'", cmd.Name)
	}
}

// evictOne drops the command's target key(s) if expired, matching
// spec.md §4.1's "before every execution...evicts keys whose deadline is
// reached" rule, applied lazily to the keys this particular command
// touches rather than a full table sweep (EvictExpired below handles the
// periodic full sweep the shard actor's EvictExpired message triggers).
func (ex *Executor) evictOne(cmd Command, now int64) {
	if key, ok := cmd.Key(); ok {
		ex.evictIfExpired(key, now)
	}
	for _, key := range cmd.Keys() {
		ex.evictIfExpired(key, now)
	}
}

func (ex *Executor) evictIfExpired(key string, now int64) {
	if e, ok := ex.table[key]; ok && e.expired(now) {
		delete(ex.table, key)
	}
}

// EvictExpired sweeps the whole table and returns the count of keys
// dropped, for the shard actor's periodic EvictExpired message.
func (ex *Executor) EvictExpired(now int64) int {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	n := 0
	for k, e := range ex.table {
		if e.expired(now) {
			delete(ex.table, k)
			n++
		}
	}
	return n
}

// Len reports the number of live (non-expired) keys, used by DBSIZE and
// by internal/shard's broadcast aggregation.
func (ex *Executor) Len(now int64) int {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	n := 0
	for _, e := range ex.table {
		if !e.expired(now) {
			n++
		}
	}
	return n
}

// Keys returns every live key matching pattern (empty pattern matches
// all), used by KEYS and by the broadcast-concatenate path in
// internal/shard's router.
func (ex *Executor) Keys(pattern string, now int64) []string {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	var out []string
	for k, e := range ex.table {
		if e.expired(now) {
			continue
		}
		if pattern == "" || pattern == "*" || globMatch(pattern, k) {
			out = append(out, k)
		}
	}
	return out
}

func (ex *Executor) get(key string, now int64) (*Entry, bool) {
	e, ok := ex.table[key]
	if !ok || e.expired(now) {
		return nil, false
	}
	return e, true
}
