// Package acl implements real user accounts, password verification, and
// command/key permission checking for the AUTH/ACL command family,
// grounded on original_source/src/security/acl/user.rs and commands.rs
// (the CommandCategory/CommandPermissions/AclUser/AclManager shape spec.md
// §6's command-surface list and §7's NOAUTH/WRONGPASS/NOPERM error
// taxonomy name but the distilled spec leaves unimplemented).
package acl

import "strings"

// CommandCategory groups commands the way Redis's @read/@write/@admin
// ACL rules do. The member set and per-category command lists mirror
// original_source's CommandCategory::commands() table; ACL itself is
// filed under Admin here (the original never needed to, since its own
// ACL surface bypassed category checks entirely — this repo enforces
// NOPERM uniformly, so ACL needs a home in the table; see DESIGN.md).
type CommandCategory string

const (
	CategoryRead        CommandCategory = "read"
	CategoryWrite       CommandCategory = "write"
	CategoryAdmin       CommandCategory = "admin"
	CategoryDangerous   CommandCategory = "dangerous"
	CategoryKeyspace    CommandCategory = "keyspace"
	CategoryString      CommandCategory = "string"
	CategoryList        CommandCategory = "list"
	CategorySet         CommandCategory = "set"
	CategoryHash        CommandCategory = "hash"
	CategorySortedSet   CommandCategory = "sortedset"
	CategoryConnection  CommandCategory = "connection"
	CategoryServer      CommandCategory = "server"
	CategoryScripting   CommandCategory = "scripting"
	CategoryTransaction CommandCategory = "transaction"
	CategoryAll         CommandCategory = "all"
)

var categoryCommands = map[CommandCategory][]string{
	CategoryRead: {
		"GET", "MGET", "HGET", "HGETALL", "HKEYS", "HVALS", "HLEN", "HEXISTS",
		"LRANGE", "LINDEX", "LLEN", "SMEMBERS", "SISMEMBER", "SCARD",
		"ZRANGE", "ZREVRANGE", "ZSCORE", "ZRANK", "ZCARD", "ZCOUNT",
		"ZRANGEBYSCORE", "STRLEN", "EXISTS", "TYPE", "TTL", "PTTL", "SCAN",
		"HSCAN", "ZSCAN", "KEYS", "DBSIZE", "INFO", "GETRANGE", "RANDOMKEY",
	},
	CategoryWrite: {
		"SET", "SETEX", "SETNX", "PSETEX", "MSET", "MSETNX", "APPEND",
		"GETSET", "SETRANGE", "GETEX", "GETDEL", "INCR", "DECR", "INCRBY",
		"DECRBY", "INCRBYFLOAT", "LPUSH", "RPUSH", "LPOP", "RPOP", "LSET",
		"LTRIM", "RPOPLPUSH", "LMOVE", "HSET", "HDEL", "HINCRBY", "SADD",
		"SREM", "SPOP", "ZADD", "ZREM", "DEL", "UNLINK", "RENAME",
		"RENAMENX", "EXPIRE", "PEXPIRE", "EXPIREAT", "PEXPIREAT", "PERSIST",
	},
	CategoryAdmin: {
		"CONFIG", "DEBUG", "ACL", "COMMAND", "CLIENT", "OBJECT",
	},
	CategoryDangerous: {"FLUSHALL", "FLUSHDB", "DEBUG", "SORT"},
	CategoryKeyspace: {
		"KEYS", "SCAN", "HSCAN", "ZSCAN", "DEL", "UNLINK", "EXISTS", "TYPE",
		"EXPIRE", "EXPIREAT", "PEXPIREAT", "TTL", "PTTL", "EXPIRETIME",
		"PEXPIRETIME", "PERSIST", "RANDOMKEY", "RENAME", "RENAMENX",
	},
	CategoryString: {
		"GET", "SET", "SETEX", "SETNX", "PSETEX", "MGET", "MSET", "MSETNX",
		"APPEND", "GETSET", "STRLEN", "GETRANGE", "SETRANGE", "GETEX",
		"GETDEL", "INCR", "DECR", "INCRBY", "DECRBY", "INCRBYFLOAT",
	},
	CategoryList: {
		"LPUSH", "RPUSH", "LPOP", "RPOP", "LRANGE", "LINDEX", "LLEN",
		"LSET", "LTRIM", "RPOPLPUSH", "LMOVE",
	},
	CategorySet: {"SADD", "SREM", "SMEMBERS", "SISMEMBER", "SCARD", "SPOP"},
	CategoryHash: {
		"HSET", "HGET", "HDEL", "HGETALL", "HKEYS", "HVALS", "HLEN",
		"HEXISTS", "HINCRBY", "HSCAN",
	},
	CategorySortedSet: {
		"ZADD", "ZREM", "ZSCORE", "ZRANK", "ZRANGE", "ZREVRANGE", "ZCARD",
		"ZCOUNT", "ZRANGEBYSCORE", "ZSCAN",
	},
	CategoryConnection: {"AUTH", "PING", "ECHO", "SELECT", "QUIT"},
	CategoryServer:     {"INFO", "DBSIZE", "TIME", "COMMAND", "WAIT"},
	CategoryScripting:  {"EVAL", "EVALSHA", "SCRIPT"},
	CategoryTransaction: {
		"MULTI", "EXEC", "DISCARD", "WATCH", "UNWATCH",
	},
	CategoryAll: nil, // special: matches every command, see IsCommandPermitted
}

// Commands returns every command name belonging to cat, or nil for the
// CategoryAll sentinel (which short-circuits membership checks instead
// of enumerating).
func (c CommandCategory) Commands() []string {
	return categoryCommands[c]
}

// Contains reports whether cmd (already upper-cased) belongs to c.
func (c CommandCategory) Contains(cmd string) bool {
	for _, name := range categoryCommands[c] {
		if name == cmd {
			return true
		}
	}
	return false
}

// ParseCategory parses a category name, with or without its leading '@'
// (as used in ACL rule strings like "+@read"), case-insensitively.
func ParseCategory(s string) (CommandCategory, bool) {
	s = strings.TrimPrefix(s, "@")
	switch strings.ToLower(s) {
	case "read":
		return CategoryRead, true
	case "write":
		return CategoryWrite, true
	case "admin":
		return CategoryAdmin, true
	case "dangerous":
		return CategoryDangerous, true
	case "keyspace":
		return CategoryKeyspace, true
	case "string":
		return CategoryString, true
	case "list":
		return CategoryList, true
	case "set":
		return CategorySet, true
	case "hash":
		return CategoryHash, true
	case "sortedset", "zset":
		return CategorySortedSet, true
	case "connection":
		return CategoryConnection, true
	case "server":
		return CategoryServer, true
	case "scripting":
		return CategoryScripting, true
	case "transaction":
		return CategoryTransaction, true
	case "all", "allcommands":
		return CategoryAll, true
	default:
		return "", false
	}
}

// Categories lists every recognized category name, sorted, for ACL CAT
// called with no argument.
func Categories() []string {
	return []string{
		"admin", "all", "connection", "dangerous", "hash", "keyspace",
		"list", "read", "scripting", "server", "set", "sortedset",
		"string", "transaction", "write",
	}
}
