package command

import (
	"strconv"
	"strings"

	"shardkv/internal/resp"
)

func (ex *Executor) cmdGet(args []string, now int64) resp.Value {
	if len(args) != 1 {
		return errArity("GET")
	}
	e, ok := ex.get(args[0], now)
	if !ok {
		return resp.NilBulk()
	}
	if e.Value.Kind != KindString {
		return errWrongType
	}
	return resp.Bulk(e.Value.Str)
}

type setOpts struct {
	nx, xx, get, keepttl bool
	hasExpire            bool
	expireAt             int64
}

// SET accepts {ex, px, exat, pxat, nx, xx, get, keepttl} per spec.md
// §4.1. nx/xx are mutually exclusive; the five TTL options are mutually
// exclusive with each other.
func (ex *Executor) cmdSet(args []string, now int64) resp.Value {
	if len(args) < 2 {
		return errArity("SET")
	}
	key, val := args[0], []byte(args[1])
	opts := setOpts{}
	ttlSeen := false
	i := 2
	for i < len(args) {
		switch strings.ToUpper(args[i]) {
		case "NX":
			opts.nx = true
			i++
		case "XX":
			opts.xx = true
			i++
		case "GET":
			opts.get = true
			i++
		case "KEEPTTL":
			if ttlSeen {
				return errSyntax()
			}
			ttlSeen = true
			opts.keepttl = true
			i++
		case "EX", "PX", "EXAT", "PXAT":
			if ttlSeen || i+1 >= len(args) {
				return errSyntax()
			}
			ttlSeen = true
			n, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil {
				return errNotInt()
			}
			opts.hasExpire = true
			switch strings.ToUpper(args[i]) {
			case "EX":
				opts.expireAt = now + n*1000
			case "PX":
				opts.expireAt = now + n
			case "EXAT":
				opts.expireAt = n * 1000
			case "PXAT":
				opts.expireAt = n
			}
			i += 2
		default:
			return errSyntax()
		}
	}
	if opts.nx && opts.xx {
		return resp.Err("ERR XX and NX options at the same time are not compatible")
	}

	existing, exists := ex.get(key, now)
	var prior resp.Value
	if opts.get {
		if exists && existing.Value.Kind != KindString {
			return errWrongType
		}
		if exists {
			prior = resp.Bulk(existing.Value.Str)
		} else {
			prior = resp.NilBulk()
		}
	}
	if opts.nx && exists {
		if opts.get {
			return prior
		}
		return resp.NilBulk()
	}
	if opts.xx && !exists {
		if opts.get {
			return prior
		}
		return resp.NilBulk()
	}

	var expireAt int64
	if opts.keepttl && exists {
		expireAt = existing.ExpireAt
	} else if opts.hasExpire {
		expireAt = opts.expireAt
	}
	ex.table[key] = &Entry{Value: Value{Kind: KindString, Str: val}, ExpireAt: expireAt}
	if opts.get {
		return prior
	}
	return resp.OK()
}

func (ex *Executor) cmdSetnx(args []string, now int64) resp.Value {
	if len(args) != 2 {
		return errArity("SETNX")
	}
	if _, exists := ex.get(args[0], now); exists {
		return resp.Int(0)
	}
	ex.table[args[0]] = &Entry{Value: Value{Kind: KindString, Str: []byte(args[1])}}
	return resp.Int(1)
}

// cmdSetex handles both SETEX (unit=1000, seconds) and PSETEX (unit=1,
// milliseconds).
func (ex *Executor) cmdSetex(args []string, now int64, unit int64) resp.Value {
	if len(args) != 3 {
		return errArity("SETEX")
	}
	n, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || n <= 0 {
		return resp.Err("ERR invalid expire time in 'setex' command")
	}
	ex.table[args[0]] = &Entry{Value: Value{Kind: KindString, Str: []byte(args[2])}, ExpireAt: now + n*unit}
	return resp.OK()
}

func (ex *Executor) cmdMget(args []string, now int64) resp.Value {
	items := make([]resp.Value, len(args))
	for i, k := range args {
		e, ok := ex.get(k, now)
		if !ok || e.Value.Kind != KindString {
			items[i] = resp.NilBulk()
			continue
		}
		items[i] = resp.Bulk(e.Value.Str)
	}
	return resp.Arr(items...)
}

func (ex *Executor) cmdMset(args []string) resp.Value {
	if len(args) == 0 || len(args)%2 != 0 {
		return errArity("MSET")
	}
	for i := 0; i+1 < len(args); i += 2 {
		ex.table[args[i]] = &Entry{Value: Value{Kind: KindString, Str: []byte(args[i+1])}}
	}
	return resp.OK()
}

func (ex *Executor) cmdMsetnx(args []string, now int64) resp.Value {
	if len(args) == 0 || len(args)%2 != 0 {
		return errArity("MSETNX")
	}
	for i := 0; i+1 < len(args); i += 2 {
		if _, exists := ex.get(args[i], now); exists {
			return resp.Int(0)
		}
	}
	for i := 0; i+1 < len(args); i += 2 {
		ex.table[args[i]] = &Entry{Value: Value{Kind: KindString, Str: []byte(args[i+1])}}
	}
	return resp.Int(1)
}

func (ex *Executor) cmdAppend(args []string, now int64) resp.Value {
	if len(args) != 2 {
		return errArity("APPEND")
	}
	e, ok := ex.get(args[0], now)
	if !ok {
		ex.table[args[0]] = &Entry{Value: Value{Kind: KindString, Str: []byte(args[1])}}
		return resp.Int(int64(len(args[1])))
	}
	if e.Value.Kind != KindString {
		return errWrongType
	}
	e.Value.Str = append(e.Value.Str, args[1]...)
	return resp.Int(int64(len(e.Value.Str)))
}

func (ex *Executor) cmdGetset(args []string) resp.Value {
	if len(args) != 2 {
		return errArity("GETSET")
	}
	e, ok := ex.table[args[0]]
	var prior resp.Value = resp.NilBulk()
	if ok {
		if e.Value.Kind != KindString {
			return errWrongType
		}
		prior = resp.Bulk(e.Value.Str)
	}
	ex.table[args[0]] = &Entry{Value: Value{Kind: KindString, Str: []byte(args[1])}}
	return prior
}

func (ex *Executor) cmdStrlen(args []string, now int64) resp.Value {
	if len(args) != 1 {
		return errArity("STRLEN")
	}
	e, ok := ex.get(args[0], now)
	if !ok {
		return resp.Int(0)
	}
	if e.Value.Kind != KindString {
		return errWrongType
	}
	return resp.Int(int64(len(e.Value.Str)))
}

func (ex *Executor) cmdGetrange(args []string, now int64) resp.Value {
	if len(args) != 3 {
		return errArity("GETRANGE")
	}
	start, err1 := strconv.Atoi(args[1])
	stop, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil {
		return errNotInt()
	}
	e, ok := ex.get(args[0], now)
	if !ok {
		return resp.BulkStr("")
	}
	if e.Value.Kind != KindString {
		return errWrongType
	}
	lo, hi, okRange := clampRange(start, stop, len(e.Value.Str))
	if !okRange {
		return resp.BulkStr("")
	}
	return resp.Bulk(e.Value.Str[lo : hi+1])
}

func (ex *Executor) cmdSetrange(args []string, now int64) resp.Value {
	if len(args) != 3 {
		return errArity("SETRANGE")
	}
	offset, err := strconv.Atoi(args[1])
	if err != nil || offset < 0 {
		return resp.Err("ERR offset is out of range")
	}
	patch := []byte(args[2])
	ent, exists := ex.table[args[0]]
	if exists && ent.expired(now) {
		exists = false
	}
	var buf []byte
	if exists {
		if ent.Value.Kind != KindString {
			return errWrongType
		}
		buf = ent.Value.Str
	}
	if offset+len(patch) > len(buf) {
		grown := make([]byte, offset+len(patch))
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:], patch)
	if !exists {
		ex.table[args[0]] = &Entry{Value: Value{Kind: KindString, Str: buf}}
	} else {
		ent.Value.Str = buf
	}
	return resp.Int(int64(len(buf)))
}

func (ex *Executor) cmdGetex(args []string, now int64) resp.Value {
	if len(args) < 1 {
		return errArity("GETEX")
	}
	e, ok := ex.get(args[0], now)
	if !ok {
		return resp.NilBulk()
	}
	if e.Value.Kind != KindString {
		return errWrongType
	}
	i := 1
	persist := false
	var expireAt int64
	hasExpire := false
	for i < len(args) {
		switch strings.ToUpper(args[i]) {
		case "PERSIST":
			persist = true
			i++
		case "EX", "PX", "EXAT", "PXAT":
			if i+1 >= len(args) {
				return errSyntax()
			}
			n, err := strconv.ParseInt(args[i+1], 10, 64)
			if err != nil {
				return errNotInt()
			}
			hasExpire = true
			switch strings.ToUpper(args[i]) {
			case "EX":
				expireAt = now + n*1000
			case "PX":
				expireAt = now + n
			case "EXAT":
				expireAt = n * 1000
			case "PXAT":
				expireAt = n
			}
			i += 2
		default:
			return errSyntax()
		}
	}
	if persist {
		e.ExpireAt = 0
	} else if hasExpire {
		e.ExpireAt = expireAt
	}
	return resp.Bulk(e.Value.Str)
}

func (ex *Executor) cmdGetdel(args []string) resp.Value {
	if len(args) != 1 {
		return errArity("GETDEL")
	}
	e, ok := ex.table[args[0]]
	if !ok {
		return resp.NilBulk()
	}
	if e.Value.Kind != KindString {
		return errWrongType
	}
	delete(ex.table, args[0])
	return resp.Bulk(e.Value.Str)
}

func (ex *Executor) cmdIncrBy(args []string, now int64, delta int64) resp.Value {
	if len(args) != 1 {
		return errArity("INCR")
	}
	return ex.applyIncr(args[0], now, delta)
}

func (ex *Executor) cmdIncrByArg(args []string, now int64, sign int64) resp.Value {
	if len(args) != 2 {
		return errArity("INCRBY")
	}
	n, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return errNotInt()
	}
	return ex.applyIncr(args[0], now, sign*n)
}

func (ex *Executor) applyIncr(key string, now int64, delta int64) resp.Value {
	e, ok := ex.get(key, now)
	var cur int64
	if ok {
		if e.Value.Kind != KindString {
			return errWrongType
		}
		n, err := strconv.ParseInt(string(e.Value.Str), 10, 64)
		if err != nil {
			return errNotInt()
		}
		cur = n
	}
	next := cur + delta
	if (delta > 0 && next < cur) || (delta < 0 && next > cur) {
		return resp.Err("ERR increment or decrement would overflow")
	}
	s := strconv.FormatInt(next, 10)
	if ok {
		e.Value.Str = []byte(s)
	} else {
		ex.table[key] = &Entry{Value: Value{Kind: KindString, Str: []byte(s)}}
	}
	return resp.Int(next)
}

func (ex *Executor) cmdIncrByFloat(args []string, now int64) resp.Value {
	if len(args) != 2 {
		return errArity("INCRBYFLOAT")
	}
	delta, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return errNotFloat()
	}
	e, ok := ex.get(args[0], now)
	var cur float64
	if ok {
		if e.Value.Kind != KindString {
			return errWrongType
		}
		n, err := strconv.ParseFloat(string(e.Value.Str), 64)
		if err != nil {
			return errNotFloat()
		}
		cur = n
	}
	next := cur + delta
	s := strconv.FormatFloat(next, 'f', -1, 64)
	if ok {
		e.Value.Str = []byte(s)
	} else {
		ex.table[args[0]] = &Entry{Value: Value{Kind: KindString, Str: []byte(s)}}
	}
	return resp.Bulk([]byte(s))
}
