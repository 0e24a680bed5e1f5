package command

import (
	"strings"

	"shardkv/internal/resp"
)

// Command is a decoded client request: an upper-cased verb and its raw
// string arguments, exactly as read off the wire by internal/resp.
type Command struct {
	Name string
	Args []string
}

// Parse turns a decoded multibulk array into a Command. An empty args
// slice is itself a protocol-level error; callers filter it before this
// is reached in practice (internal/resp never emits a zero-length array
// for a real command), but Parse stays defensive.
func Parse(args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, errEmptyCommand
	}
	return Command{Name: strings.ToUpper(args[0]), Args: args[1:]}, nil
}

var errEmptyCommand = wrongArity("")

// Key returns the routing key for commands that carry exactly one key as
// their first argument. Used by internal/shard's router to pick a shard
// without fully parsing the command. ok is false for commands with no
// single routing key (MGET/MSET/KEYS/FLUSHDB/...).
func (c Command) Key() (string, bool) {
	switch c.Name {
	case "GET", "SET", "SETNX", "SETEX", "PSETEX", "APPEND", "GETSET", "STRLEN",
		"GETRANGE", "SETRANGE", "GETEX", "GETDEL", "INCR", "DECR", "INCRBY",
		"DECRBY", "INCRBYFLOAT", "TYPE", "EXPIRE", "PEXPIRE", "EXPIREAT",
		"PEXPIREAT", "TTL", "PTTL", "EXPIRETIME", "PEXPIRETIME", "PERSIST",
		"LPUSH", "RPUSH", "LPOP", "RPOP", "LLEN", "LINDEX", "LRANGE", "LSET",
		"LTRIM", "SADD", "SREM", "SMEMBERS", "SISMEMBER", "SCARD", "SPOP",
		"HSET", "HGET", "HDEL", "HGETALL", "HKEYS", "HVALS", "HLEN", "HEXISTS",
		"HINCRBY", "HSCAN", "ZADD", "ZREM", "ZSCORE", "ZRANK", "ZRANGE",
		"ZREVRANGE", "ZCARD", "ZCOUNT", "ZRANGEBYSCORE", "ZSCAN", "DUMP",
		"WATCH":
		if len(c.Args) > 0 {
			return c.Args[0], true
		}
	case "EXISTS", "DEL", "UNLINK":
		if len(c.Args) > 0 {
			return c.Args[0], true
		}
	}
	return "", false
}

// Keys returns every key argument a command carries, for multi-key
// commands that the router fans out by shard.
func (c Command) Keys() []string {
	switch c.Name {
	case "MGET", "EXISTS", "DEL", "UNLINK":
		return c.Args
	case "MSET", "MSETNX":
		var keys []string
		for i := 0; i+1 < len(c.Args); i += 2 {
			keys = append(keys, c.Args[i])
		}
		return keys
	case "RENAME", "RENAMENX", "RPOPLPUSH":
		if len(c.Args) >= 2 {
			return []string{c.Args[0], c.Args[1]}
		}
	case "LMOVE":
		if len(c.Args) >= 2 {
			return []string{c.Args[0], c.Args[1]}
		}
	}
	return nil
}

func wrongArity(name string) error {
	return &arityError{name: name}
}

type arityError struct{ name string }

func (e *arityError) Error() string {
	return "ERR wrong number of arguments for '" + e.name + "' command"
}

func errArity(name string) resp.Value {
	return resp.Errf("ERR wrong number of arguments for '%s' command", strings.ToLower(name))
}

var errWrongType = resp.Err("WRONGTYPE Operation against a key holding the wrong kind of value")

// ErrWrongType exposes the standard WRONGTYPE reply to internal/shard's
// cross-shard composed command fallbacks (RENAME/RPOPLPUSH/LMOVE
// spanning two shards), which need to report the same error a
// single-shard Executor call would have.
func ErrWrongType() resp.Value { return errWrongType }

func errNotInt() resp.Value {
	return resp.Err("ERR value is not an integer or out of range")
}

func errNotFloat() resp.Value {
	return resp.Err("ERR value is not a valid float")
}

func errSyntax() resp.Value {
	return resp.Err("ERR syntax error")
}
