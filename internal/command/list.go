package command

import (
	"strconv"

	"shardkv/internal/resp"
)

func (ex *Executor) listFor(key string, now int64, create bool) (*List, resp.Value, bool) {
	e, ok := ex.get(key, now)
	if !ok {
		if !create {
			return nil, resp.Value{}, false
		}
		l := NewList()
		ex.table[key] = &Entry{Value: Value{Kind: KindList, List: l}}
		return l, resp.Value{}, true
	}
	if e.Value.Kind != KindList {
		return nil, errWrongType, false
	}
	return e.Value.List, resp.Value{}, true
}

func (ex *Executor) cmdPush(args []string, now int64, left bool) resp.Value {
	if len(args) < 2 {
		return errArity("LPUSH")
	}
	l, errv, ok := ex.listFor(args[0], now, true)
	if !ok {
		return errv
	}
	vals := make([][]byte, len(args)-1)
	for i, a := range args[1:] {
		vals[i] = []byte(a)
	}
	var n int
	if left {
		n = l.LPush(vals...)
	} else {
		n = l.RPush(vals...)
	}
	return resp.Int(int64(n))
}

func (ex *Executor) cmdPop(args []string, now int64, left bool) resp.Value {
	if len(args) < 1 || len(args) > 2 {
		return errArity("LPOP")
	}
	count := 1
	multi := false
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 0 {
			return errNotInt()
		}
		count = n
		multi = true
	}
	l, errv, ok := ex.listFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if l == nil || l.Len() == 0 {
		if multi {
			return resp.NilArr()
		}
		return resp.NilBulk()
	}
	var popped [][]byte
	if left {
		popped = l.LPop(count)
	} else {
		popped = l.RPop(count)
	}
	if l.Len() == 0 {
		delete(ex.table, args[0])
	}
	if !multi {
		if len(popped) == 0 {
			return resp.NilBulk()
		}
		return resp.Bulk(popped[0])
	}
	items := make([]resp.Value, len(popped))
	for i, p := range popped {
		items[i] = resp.Bulk(p)
	}
	return resp.Arr(items...)
}

func (ex *Executor) cmdLlen(args []string, now int64) resp.Value {
	if len(args) != 1 {
		return errArity("LLEN")
	}
	l, errv, ok := ex.listFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if l == nil {
		return resp.Int(0)
	}
	return resp.Int(int64(l.Len()))
}

func (ex *Executor) cmdLindex(args []string, now int64) resp.Value {
	if len(args) != 2 {
		return errArity("LINDEX")
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return errNotInt()
	}
	l, errv, ok := ex.listFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if l == nil {
		return resp.NilBulk()
	}
	v, found := l.Index(idx)
	if !found {
		return resp.NilBulk()
	}
	return resp.Bulk(v)
}

func (ex *Executor) cmdLrange(args []string, now int64) resp.Value {
	if len(args) != 3 {
		return errArity("LRANGE")
	}
	start, err1 := strconv.Atoi(args[1])
	stop, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil {
		return errNotInt()
	}
	l, errv, ok := ex.listFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if l == nil {
		return resp.Arr()
	}
	items := l.Range(start, stop)
	out := make([]resp.Value, len(items))
	for i, v := range items {
		out[i] = resp.Bulk(v)
	}
	return resp.Arr(out...)
}

func (ex *Executor) cmdLset(args []string, now int64) resp.Value {
	if len(args) != 3 {
		return errArity("LSET")
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return errNotInt()
	}
	l, errv, ok := ex.listFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if l == nil {
		return resp.Err("ERR no such key")
	}
	if !l.Set(idx, []byte(args[2])) {
		return resp.Err("ERR index out of range")
	}
	return resp.OK()
}

func (ex *Executor) cmdLtrim(args []string, now int64) resp.Value {
	if len(args) != 3 {
		return errArity("LTRIM")
	}
	start, err1 := strconv.Atoi(args[1])
	stop, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil {
		return errNotInt()
	}
	l, errv, ok := ex.listFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if l == nil {
		return resp.OK()
	}
	l.Trim(start, stop)
	if l.Len() == 0 {
		delete(ex.table, args[0])
	}
	return resp.OK()
}

func (ex *Executor) cmdRpoplpush(args []string, now int64) resp.Value {
	if len(args) != 2 {
		return errArity("RPOPLPUSH")
	}
	return ex.moveOne(args[0], args[1], now, false, true)
}

func (ex *Executor) cmdLmove(args []string, now int64) resp.Value {
	if len(args) != 4 {
		return errArity("LMOVE")
	}
	fromLeft := isLeft(args[2])
	toLeft := isLeft(args[3])
	if args[2] != "LEFT" && args[2] != "RIGHT" || args[3] != "LEFT" && args[3] != "RIGHT" {
		return errSyntax()
	}
	return ex.moveOne(args[0], args[1], now, fromLeft, toLeft)
}

func isLeft(s string) bool { return s == "LEFT" }

func (ex *Executor) moveOne(src, dst string, now int64, fromLeft, toLeft bool) resp.Value {
	l, errv, ok := ex.listFor(src, now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if l == nil || l.Len() == 0 {
		return resp.NilBulk()
	}
	var popped [][]byte
	if fromLeft {
		popped = l.LPop(1)
	} else {
		popped = l.RPop(1)
	}
	if l.Len() == 0 {
		delete(ex.table, src)
	}
	dl, errv2, ok2 := ex.listFor(dst, now, true)
	if !ok2 {
		return errv2
	}
	if toLeft {
		dl.LPush(popped[0])
	} else {
		dl.RPush(popped[0])
	}
	return resp.Bulk(popped[0])
}
