package shadow

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// aclCategoryCommands is an independent restatement of the category ->
// command-list table internal/acl/category.go builds from
// original_source/src/security/acl/user.rs's CommandCategory::commands.
// Only the three categories this package's property test exercises are
// restated, but restated with the exact same membership as the real
// table (rather than an arbitrary subset) so the two models can't
// silently disagree on a command that belongs to "read" in one table
// and not the other; the rest of the real table is left unduplicated.
var aclCategoryCommands = map[string][]string{
	"read": {
		"GET", "MGET", "HGET", "HGETALL", "HKEYS", "HVALS", "HLEN", "HEXISTS",
		"LRANGE", "LINDEX", "LLEN", "SMEMBERS", "SISMEMBER", "SCARD",
		"ZRANGE", "ZREVRANGE", "ZSCORE", "ZRANK", "ZCARD", "ZCOUNT",
		"ZRANGEBYSCORE", "STRLEN", "EXISTS", "TYPE", "TTL", "PTTL", "SCAN",
		"HSCAN", "ZSCAN", "KEYS", "DBSIZE", "INFO", "GETRANGE", "RANDOMKEY",
	},
	"write": {
		"SET", "SETEX", "SETNX", "PSETEX", "MSET", "MSETNX", "APPEND",
		"GETSET", "SETRANGE", "GETEX", "GETDEL", "INCR", "DECR", "INCRBY",
		"DECRBY", "INCRBYFLOAT", "LPUSH", "RPUSH", "LPOP", "RPOP", "LSET",
		"LTRIM", "RPOPLPUSH", "LMOVE", "HSET", "HDEL", "HINCRBY", "SADD",
		"SREM", "SPOP", "ZADD", "ZREM", "DEL", "UNLINK", "RENAME",
		"RENAMENX", "EXPIRE", "PEXPIRE", "EXPIREAT", "PEXPIREAT", "PERSIST",
	},
	"admin": {"CONFIG", "DEBUG", "ACL", "COMMAND", "CLIENT", "OBJECT"},
	"all":   nil, // handled specially, matches every command
}

// ACLUserRef is a from-scratch reference model of one ACL user's
// permission state, mirroring original_source/src/security/acl_dst.rs's
// ShadowUser: the shadow state is the specification, and
// internal/acl.User/CommandPermissions must agree with it for every rule
// sequence a property test throws at both.
type ACLUserRef struct {
	Enabled        bool
	NoPass         bool
	PasswordHashes map[string]struct{}

	CommandsAllowAll  bool
	AllowedCommands   map[string]struct{}
	DeniedCommands    map[string]struct{}
	AllowedCategories map[string]struct{}
	DeniedCategories  map[string]struct{}

	KeysAllowAll bool
	KeyPatterns  []string
}

// NewACLUserRef mirrors AclUser::new(): disabled, no permissions at all.
func NewACLUserRef() *ACLUserRef {
	return &ACLUserRef{
		PasswordHashes:    map[string]struct{}{},
		AllowedCommands:   map[string]struct{}{},
		DeniedCommands:    map[string]struct{}{},
		AllowedCategories: map[string]struct{}{},
		DeniedCategories:  map[string]struct{}{},
	}
}

// NewACLUserRefDefault mirrors AclUser::default_user(): enabled, nopass,
// allow-all commands and keys — the seed state internal/acl.NewManager
// gives its "default" user.
func NewACLUserRefDefault() *ACLUserRef {
	u := NewACLUserRef()
	u.Enabled = true
	u.NoPass = true
	u.CommandsAllowAll = true
	u.KeysAllowAll = true
	return u
}

// IsCommandPermitted mirrors CommandPermissions::is_command_permitted's
// precedence: explicit deny, then explicit allow, then denied categories,
// then allowed categories (CategoryAll short-circuits), then the
// allow-all fallback.
func (u *ACLUserRef) IsCommandPermitted(cmd string) bool {
	cmd = strings.ToUpper(cmd)

	if _, ok := u.DeniedCommands[cmd]; ok {
		return false
	}
	if _, ok := u.AllowedCommands[cmd]; ok {
		return true
	}
	for cat := range u.DeniedCategories {
		if categoryContains(cat, cmd) {
			return false
		}
	}
	for cat := range u.AllowedCategories {
		if cat == "all" {
			return true
		}
		if categoryContains(cat, cmd) {
			return true
		}
	}
	return u.CommandsAllowAll
}

func categoryContains(cat, cmd string) bool {
	for _, c := range aclCategoryCommands[cat] {
		if c == cmd {
			return true
		}
	}
	return false
}

// IsKeyPermitted mirrors KeyPatterns::is_key_permitted, reusing this
// package's own glob matcher rather than internal/command's, again to
// keep the reference model independent of the code it checks.
func (u *ACLUserRef) IsKeyPermitted(key string) bool {
	if u.KeysAllowAll {
		return true
	}
	for _, p := range u.KeyPatterns {
		if globMatch(p, key) {
			return true
		}
	}
	return false
}

// VerifyPassword mirrors AclUser::verify_password.
func (u *ACLUserRef) VerifyPassword(password string) bool {
	if u.NoPass {
		return true
	}
	_, ok := u.PasswordHashes[hashPassword(password)]
	return ok
}

// ApplyRule mirrors ShadowUser::apply_rule, the exact rule grammar
// internal/acl.ApplyRule implements against the real User type.
func (u *ACLUserRef) ApplyRule(rule string) {
	rule = strings.TrimSpace(rule)
	switch rule {
	case "on":
		u.Enabled = true
		return
	case "off":
		u.Enabled = false
		return
	case "nopass":
		u.NoPass = true
		return
	case "resetpass":
		u.PasswordHashes = map[string]struct{}{}
		u.NoPass = false
		return
	case "allcommands", "+@all":
		u.CommandsAllowAll = true
		u.AllowedCategories["all"] = struct{}{}
		return
	case "nocommands", "-@all":
		u.CommandsAllowAll = false
		u.AllowedCategories = map[string]struct{}{}
		u.AllowedCommands = map[string]struct{}{}
		return
	case "allkeys", "~*":
		u.KeysAllowAll = true
		return
	case "resetkeys":
		u.KeysAllowAll = false
		u.KeyPatterns = nil
		return
	case "reset":
		*u = *NewACLUserRef()
		return
	}

	switch {
	case strings.HasPrefix(rule, ">"):
		u.PasswordHashes[hashPassword(rule[1:])] = struct{}{}
	case strings.HasPrefix(rule, "<"):
		delete(u.PasswordHashes, hashPassword(rule[1:]))
	case strings.HasPrefix(rule, "#"):
		u.PasswordHashes[rule[1:]] = struct{}{}
	case strings.HasPrefix(rule, "+"):
		rest := rule[1:]
		if strings.HasPrefix(rest, "@") {
			cat := strings.ToLower(rest[1:])
			if _, known := aclCategoryCommands[cat]; known {
				u.AllowedCategories[cat] = struct{}{}
			}
			return
		}
		cmd := strings.ToUpper(rest)
		delete(u.DeniedCommands, cmd)
		u.AllowedCommands[cmd] = struct{}{}
	case strings.HasPrefix(rule, "-"):
		rest := rule[1:]
		if strings.HasPrefix(rest, "@") {
			cat := strings.ToLower(rest[1:])
			if _, known := aclCategoryCommands[cat]; known {
				delete(u.AllowedCategories, cat)
				u.DeniedCategories[cat] = struct{}{}
			}
			return
		}
		cmd := strings.ToUpper(rest)
		delete(u.AllowedCommands, cmd)
		u.DeniedCommands[cmd] = struct{}{}
	case strings.HasPrefix(rule, "~"):
		u.KeyPatterns = append(u.KeyPatterns, rule[1:])
	}
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// globMatch is the same '*'/'?'/'[...]' glob dialect
// internal/command.GlobMatch implements, restated here from scratch
// (see the package doc comment) so the reference model never calls into
// the code under test.
func globMatch(pattern, s string) bool {
	return globMatchImpl([]rune(pattern), []rune(s))
}

func globMatchImpl(pattern, s []rune) bool {
	if len(pattern) == 0 {
		return len(s) == 0
	}
	switch pattern[0] {
	case '*':
		if globMatchImpl(pattern[1:], s) {
			return true
		}
		if len(s) > 0 && globMatchImpl(pattern, s[1:]) {
			return true
		}
		return false
	case '?':
		if len(s) == 0 {
			return false
		}
		return globMatchImpl(pattern[1:], s[1:])
	case '[':
		if len(s) == 0 {
			return false
		}
		end := indexRune(pattern, ']')
		if end < 0 {
			return pattern[0] == s[0] && globMatchImpl(pattern[1:], s[1:])
		}
		class := pattern[1:end]
		if runeInClass(class, s[0]) {
			return globMatchImpl(pattern[end+1:], s[1:])
		}
		return false
	default:
		if len(s) == 0 || pattern[0] != s[0] {
			return false
		}
		return globMatchImpl(pattern[1:], s[1:])
	}
}

func indexRune(rs []rune, target rune) int {
	for i, r := range rs {
		if r == target {
			return i
		}
	}
	return -1
}

func runeInClass(class []rune, r rune) bool {
	negate := false
	if len(class) > 0 && (class[0] == '^' || class[0] == '!') {
		negate = true
		class = class[1:]
	}
	matched := false
	for i := 0; i < len(class); i++ {
		if i+2 < len(class) && class[i+1] == '-' {
			if class[i] <= r && r <= class[i+2] {
				matched = true
			}
			i += 2
			continue
		}
		if class[i] == r {
			matched = true
		}
	}
	if negate {
		return !matched
	}
	return matched
}
