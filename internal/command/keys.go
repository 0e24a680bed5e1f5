package command

import (
	"strconv"
	"strings"

	"shardkv/internal/resp"
)

func (ex *Executor) cmdDel(args []string) resp.Value {
	n := 0
	for _, k := range args {
		if _, ok := ex.table[k]; ok {
			delete(ex.table, k)
			n++
		}
	}
	return resp.Int(int64(n))
}

func (ex *Executor) cmdExists(args []string, now int64) resp.Value {
	n := 0
	for _, k := range args {
		if _, ok := ex.get(k, now); ok {
			n++
		}
	}
	return resp.Int(int64(n))
}

func (ex *Executor) cmdType(args []string, now int64) resp.Value {
	if len(args) != 1 {
		return errArity("TYPE")
	}
	e, ok := ex.get(args[0], now)
	if !ok {
		return resp.Simple("none")
	}
	return resp.Simple(e.Value.Kind.String())
}

func (ex *Executor) cmdKeys(args []string, now int64) resp.Value {
	if len(args) != 1 {
		return errArity("KEYS")
	}
	keys := ex.Keys(args[0], now)
	items := make([]resp.Value, len(keys))
	for i, k := range keys {
		items[i] = resp.BulkStr(k)
	}
	return resp.Arr(items...)
}

// cmdScan implements a single shard's page of SCAN cursor iteration.
// internal/shard.Router composes the cross-shard cursor per spec.md's
// recommended (shard_index<<40 | intra_shard_cursor) scheme (see
// DESIGN.md's open-question decision #3); this method only ever sees the
// intra-shard cursor portion.
func (ex *Executor) cmdScan(args []string, now int64) resp.Value {
	if len(args) < 1 {
		return errArity("SCAN")
	}
	cursor, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || cursor < 0 {
		return resp.Err("ERR invalid cursor")
	}
	pattern := "*"
	count := 10
	for i := 1; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "MATCH":
			if i+1 >= len(args) {
				return errSyntax()
			}
			pattern = args[i+1]
			i++
		case "COUNT":
			if i+1 >= len(args) {
				return errSyntax()
			}
			n, err := strconv.Atoi(args[i+1])
			if err != nil || n <= 0 {
				return errNotInt()
			}
			count = n
			i++
		default:
			return errSyntax()
		}
	}

	// Snapshot-and-paginate: a sorted key list gives a stable, if
	// coarse, iteration order so "every key present throughout the scan
	// appears at least once" (spec.md §4.1) holds for a static table;
	// entries created/deleted mid-scan may or may not appear, which the
	// spec explicitly permits.
	all := ex.Keys("", now)
	sortStrings(all)
	start := int(cursor)
	if start > len(all) {
		start = len(all)
	}
	end := start + count
	next := int64(0)
	if end < len(all) {
		next = int64(end)
	} else {
		end = len(all)
	}
	var page []resp.Value
	for _, k := range all[start:end] {
		if pattern == "*" || globMatch(pattern, k) {
			page = append(page, resp.BulkStr(k))
		}
	}
	return resp.Arr(resp.BulkStr(strconv.FormatInt(next, 10)), resp.Arr(page...))
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

func (ex *Executor) cmdRandomkey(now int64) resp.Value {
	for k, e := range ex.table {
		if !e.expired(now) {
			return resp.BulkStr(k)
		}
	}
	return resp.NilBulk()
}

func (ex *Executor) cmdRename(args []string, now int64) resp.Value {
	if len(args) != 2 {
		return errArity("RENAME")
	}
	e, ok := ex.get(args[0], now)
	if !ok {
		return resp.Err("ERR no such key")
	}
	ex.table[args[1]] = e
	delete(ex.table, args[0])
	return resp.OK()
}

func (ex *Executor) cmdRenamenx(args []string, now int64) resp.Value {
	if len(args) != 2 {
		return errArity("RENAMENX")
	}
	e, ok := ex.get(args[0], now)
	if !ok {
		return resp.Err("ERR no such key")
	}
	if _, exists := ex.get(args[1], now); exists {
		return resp.Int(0)
	}
	ex.table[args[1]] = e
	delete(ex.table, args[0])
	return resp.Int(1)
}

// cmdExpire handles EXPIRE/PEXPIRE/EXPIREAT/PEXPIREAT, selected by unit
// (1000 for second-granularity, 1 for millisecond) and absolute (true
// for the *AT variants).
func (ex *Executor) cmdExpire(args []string, now int64, unit int64, absolute bool) resp.Value {
	if len(args) < 2 {
		return errArity("EXPIRE")
	}
	n, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return errNotInt()
	}
	var newDeadline int64
	if absolute {
		newDeadline = n * unit
	} else {
		newDeadline = now + n*unit
	}

	var nx, xx, gt, lt bool
	for _, opt := range args[2:] {
		switch strings.ToUpper(opt) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "GT":
			gt = true
		case "LT":
			lt = true
		default:
			return errSyntax()
		}
	}
	if nx && (xx || gt || lt) {
		return resp.Err("ERR NX and XX, GT or LT options at the same time are not compatible")
	}
	if gt && lt {
		return resp.Err("ERR GT and LT options at the same time are not compatible")
	}

	e, ok := ex.get(args[0], now)
	if !ok {
		return resp.Int(0)
	}
	current := e.ExpireAt
	if nx && current != 0 {
		return resp.Int(0)
	}
	if xx && current == 0 {
		return resp.Int(0)
	}
	if gt {
		effectiveCurrent := current
		if effectiveCurrent == 0 {
			effectiveCurrent = int64(1) << 62 // treated as +inf per spec.md §4.1
		}
		if newDeadline <= effectiveCurrent {
			return resp.Int(0)
		}
	}
	if lt {
		effectiveCurrent := current
		if effectiveCurrent == 0 {
			effectiveCurrent = 0 // a key with no deadline is +inf for GT, 0 for LT
		}
		if newDeadline >= effectiveCurrent {
			return resp.Int(0)
		}
	}
	if newDeadline <= now {
		delete(ex.table, args[0])
		return resp.Int(1)
	}
	e.ExpireAt = newDeadline
	return resp.Int(1)
}

func (ex *Executor) cmdTTL(args []string, now int64, unit int64) resp.Value {
	if len(args) != 1 {
		return errArity("TTL")
	}
	e, ok := ex.get(args[0], now)
	if !ok {
		return resp.Int(-2)
	}
	if e.ExpireAt == 0 {
		return resp.Int(-1)
	}
	remain := (e.ExpireAt - now) / unit
	if remain < 0 {
		remain = 0
	}
	return resp.Int(remain)
}

func (ex *Executor) cmdExpiretime(args []string, now int64, unit int64) resp.Value {
	if len(args) != 1 {
		return errArity("EXPIRETIME")
	}
	e, ok := ex.get(args[0], now)
	if !ok {
		return resp.Int(-2)
	}
	if e.ExpireAt == 0 {
		return resp.Int(-1)
	}
	return resp.Int(e.ExpireAt / unit)
}

func (ex *Executor) cmdPersist(args []string, now int64) resp.Value {
	if len(args) != 1 {
		return errArity("PERSIST")
	}
	e, ok := ex.get(args[0], now)
	if !ok || e.ExpireAt == 0 {
		return resp.Int(0)
	}
	e.ExpireAt = 0
	return resp.Int(1)
}
