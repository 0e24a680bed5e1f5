package command

import (
	"shardkv/internal/resp"
)

func (ex *Executor) setFor(key string, now int64, create bool) (Set, resp.Value, bool) {
	e, ok := ex.get(key, now)
	if !ok {
		if !create {
			return nil, resp.Value{}, false
		}
		s := make(Set)
		ex.table[key] = &Entry{Value: Value{Kind: KindSet, Set: s}}
		return s, resp.Value{}, true
	}
	if e.Value.Kind != KindSet {
		return nil, errWrongType, false
	}
	return e.Value.Set, resp.Value{}, true
}

func (ex *Executor) cmdSadd(args []string, now int64) resp.Value {
	if len(args) < 2 {
		return errArity("SADD")
	}
	s, errv, ok := ex.setFor(args[0], now, true)
	if !ok {
		return errv
	}
	n := 0
	for _, m := range args[1:] {
		if _, exists := s[m]; !exists {
			s[m] = struct{}{}
			n++
		}
	}
	return resp.Int(int64(n))
}

func (ex *Executor) cmdSrem(args []string, now int64) resp.Value {
	if len(args) < 2 {
		return errArity("SREM")
	}
	s, errv, ok := ex.setFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	n := 0
	for _, m := range args[1:] {
		if _, exists := s[m]; exists {
			delete(s, m)
			n++
		}
	}
	if len(s) == 0 {
		delete(ex.table, args[0])
	}
	return resp.Int(int64(n))
}

func (ex *Executor) cmdSmembers(args []string, now int64) resp.Value {
	if len(args) != 1 {
		return errArity("SMEMBERS")
	}
	s, errv, ok := ex.setFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	items := make([]resp.Value, 0, len(s))
	for m := range s {
		items = append(items, resp.BulkStr(m))
	}
	return resp.Arr(items...)
}

func (ex *Executor) cmdSismember(args []string, now int64) resp.Value {
	if len(args) != 2 {
		return errArity("SISMEMBER")
	}
	s, errv, ok := ex.setFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if _, exists := s[args[1]]; exists {
		return resp.Int(1)
	}
	return resp.Int(0)
}

func (ex *Executor) cmdScard(args []string, now int64) resp.Value {
	if len(args) != 1 {
		return errArity("SCARD")
	}
	s, errv, ok := ex.setFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	return resp.Int(int64(len(s)))
}

func (ex *Executor) cmdSpop(args []string, now int64) resp.Value {
	if len(args) != 1 {
		return errArity("SPOP")
	}
	s, errv, ok := ex.setFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	for m := range s {
		delete(s, m)
		if len(s) == 0 {
			delete(ex.table, args[0])
		}
		return resp.BulkStr(m)
	}
	return resp.NilBulk()
}
