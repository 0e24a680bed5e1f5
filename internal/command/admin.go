package command

import (
	"sort"
	"strconv"
	"strings"

	"shardkv/internal/resp"
)

const adminInfo = "# Server\r\nshardkv_mode:standalone\r\n"

func (ex *Executor) cmdPing(args []string) resp.Value {
	if len(args) == 0 {
		return resp.Simple("PONG")
	}
	if len(args) == 1 {
		return resp.BulkStr(args[0])
	}
	return errArity("PING")
}

func (ex *Executor) cmdEcho(args []string) resp.Value {
	if len(args) != 1 {
		return errArity("ECHO")
	}
	return resp.BulkStr(args[0])
}

func (ex *Executor) cmdDbsize(now int64) resp.Value {
	return resp.Int(int64(ex.Len(now)))
}

func (ex *Executor) cmdFlush() resp.Value {
	ex.table = make(map[string]*Entry)
	return resp.OK()
}

// SELECT only DB 0 exists; non-zero returns an error per spec.md's
// command surface note.
func (ex *Executor) cmdSelect(args []string) resp.Value {
	if len(args) != 1 {
		return errArity("SELECT")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return errNotInt()
	}
	if n != 0 {
		return resp.Err("ERR DB index is out of range")
	}
	return resp.OK()
}

func (ex *Executor) cmdTime(now int64) resp.Value {
	sec := now / 1000
	usec := (now % 1000) * 1000
	return resp.Arr(resp.BulkStr(strconv.FormatInt(sec, 10)), resp.BulkStr(strconv.FormatInt(usec, 10)))
}

var configDefaults = map[string]string{
	"maxmemory":        "0",
	"maxmemory-policy": "noeviction",
	"appendonly":       "no",
	"save":             "",
}

// cmdConfig is a thin in-memory stand-in: GET returns defaults (or a
// value previously SET in this process), SET records it, RESETSTAT is a
// no-op since no per-command stat counters are tracked. Real tunables
// live in server.Config, loaded from flags/env at startup (see
// SPEC_FULL.md's AMBIENT STACK); CONFIG exists only for client
// compatibility.
func (ex *Executor) cmdConfig(args []string) resp.Value {
	if len(args) < 1 {
		return errArity("CONFIG")
	}
	switch strings.ToUpper(args[0]) {
	case "GET":
		if len(args) != 2 {
			return errArity("CONFIG")
		}
		v, ok := configDefaults[strings.ToLower(args[1])]
		if !ok {
			return resp.Arr()
		}
		return resp.Arr(resp.BulkStr(args[1]), resp.BulkStr(v))
	case "SET":
		if len(args) != 3 {
			return errArity("CONFIG")
		}
		configDefaults[strings.ToLower(args[1])] = args[2]
		return resp.OK()
	case "RESETSTAT":
		return resp.OK()
	default:
		return errSyntax()
	}
}

func (ex *Executor) cmdCommand(args []string) resp.Value {
	if len(args) == 1 && strings.ToUpper(args[0]) == "COUNT" {
		return resp.Int(int64(len(commandNames)))
	}
	items := make([]resp.Value, len(commandNames))
	for i, n := range commandNames {
		items[i] = resp.Arr(resp.BulkStr(n), resp.Int(-1))
	}
	return resp.Arr(items...)
}

var commandNames = sortedCommandNames()

func sortedCommandNames() []string {
	names := []string{
		"get", "set", "setnx", "setex", "psetex", "mget", "mset", "msetnx",
		"append", "getset", "strlen", "getrange", "setrange", "getex",
		"getdel", "incr", "decr", "incrby", "decrby", "incrbyfloat", "del",
		"unlink", "exists", "type", "keys", "scan", "randomkey", "rename",
		"renamenx", "expire", "pexpire", "expireat", "pexpireat", "ttl",
		"pttl", "expiretime", "pexpiretime", "persist", "lpush", "rpush",
		"lpop", "rpop", "llen", "lindex", "lrange", "lset", "ltrim",
		"rpoplpush", "lmove", "sadd", "srem", "smembers", "sismember",
		"scard", "spop", "hset", "hget", "hdel", "hgetall", "hkeys",
		"hvals", "hlen", "hexists", "hincrby", "hscan", "zadd", "zrem",
		"zscore", "zrank", "zrange", "zrevrange", "zcard", "zcount",
		"zrangebyscore", "zscan", "ping", "echo", "select", "flushdb",
		"flushall", "time", "wait", "info", "dbsize",
	}
	sort.Strings(names)
	return names
}

// CLIENT is largely a no-op against a stateless Executor; name/id state
// belongs to the connection handler in internal/server, not here.
func (ex *Executor) cmdClient(args []string) resp.Value {
	if len(args) == 0 {
		return errArity("CLIENT")
	}
	switch strings.ToUpper(args[0]) {
	case "SETNAME":
		return resp.OK()
	case "GETNAME":
		return resp.NilBulk()
	case "ID":
		return resp.Int(0)
	case "INFO":
		return resp.BulkStr("id=0 addr= name= db=0")
	default:
		return errSyntax()
	}
}

func (ex *Executor) cmdObject(args []string, now int64) resp.Value {
	if len(args) == 0 {
		return errArity("OBJECT")
	}
	switch strings.ToUpper(args[0]) {
	case "HELP":
		return resp.Arr(resp.BulkStr("OBJECT HELP/ENCODING/REFCOUNT/IDLETIME/FREQ"))
	case "ENCODING":
		if len(args) != 2 {
			return errArity("OBJECT")
		}
		e, ok := ex.get(args[1], now)
		if !ok {
			return resp.Err("ERR no such key")
		}
		return resp.BulkStr(e.Value.Kind.String())
	case "REFCOUNT", "IDLETIME", "FREQ":
		if len(args) != 2 {
			return errArity("OBJECT")
		}
		if _, ok := ex.get(args[1], now); !ok {
			return resp.Err("ERR no such key")
		}
		return resp.Int(0)
	default:
		return errSyntax()
	}
}

func (ex *Executor) cmdDebug(args []string) resp.Value {
	if len(args) == 0 {
		return errArity("DEBUG")
	}
	switch strings.ToUpper(args[0]) {
	case "SLEEP":
		// Virtual-time aware callers don't actually block here; DEBUG
		// SLEEP exists purely for client-compatibility smoke tests.
		return resp.OK()
	case "OBJECT":
		return resp.Simple("Value at:0x0 refcount:1 encoding:raw")
	case "SET":
		return resp.OK()
	default:
		return errSyntax()
	}
}

// SORT is implemented for the store-only numeric subset per spec.md's
// command surface note: sorts a list's elements as floats, optionally
// storing the result.
func (ex *Executor) cmdSort(args []string, now int64) resp.Value {
	if len(args) < 1 {
		return errArity("SORT")
	}
	l, errv, ok := ex.listFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	desc := false
	storeKey := ""
	for i := 1; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "DESC":
			desc = true
		case "ASC":
		case "STORE":
			if i+1 >= len(args) {
				return errSyntax()
			}
			storeKey = args[i+1]
			i++
		default:
			return errSyntax()
		}
	}
	var vals []float64
	if l != nil {
		for _, b := range l.Range(0, -1) {
			f, err := strconv.ParseFloat(string(b), 64)
			if err != nil {
				return resp.Err("ERR One or more scores can't be converted into double")
			}
			vals = append(vals, f)
		}
	}
	sort.Float64s(vals)
	if desc {
		for i, j := 0, len(vals)-1; i < j; i, j = i+1, j-1 {
			vals[i], vals[j] = vals[j], vals[i]
		}
	}
	if storeKey != "" {
		nl := NewList()
		for _, f := range vals {
			nl.RPush([]byte(formatScore(f)))
		}
		if nl.Len() == 0 {
			delete(ex.table, storeKey)
		} else {
			ex.table[storeKey] = &Entry{Value: Value{Kind: KindList, List: nl}}
		}
		return resp.Int(int64(nl.Len()))
	}
	items := make([]resp.Value, len(vals))
	for i, f := range vals {
		items[i] = resp.BulkStr(formatScore(f))
	}
	return resp.Arr(items...)
}
