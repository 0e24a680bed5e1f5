package command

import (
	"math"
	"strconv"
	"strings"

	"shardkv/internal/resp"
)

func (ex *Executor) zsetFor(key string, now int64, create bool) (*ZSet, resp.Value, bool) {
	e, ok := ex.get(key, now)
	if !ok {
		if !create {
			return nil, resp.Value{}, false
		}
		z := NewZSet()
		ex.table[key] = &Entry{Value: Value{Kind: KindZSet, ZSet: z}}
		return z, resp.Value{}, true
	}
	if e.Value.Kind != KindZSet {
		return nil, errWrongType, false
	}
	return e.Value.ZSet, resp.Value{}, true
}

// ZADD option matrix per spec.md §4.1: NX (add only), XX (update only),
// GT (update only if new>current), LT (update only if new<current), CH
// (return changed count instead of added count).
func (ex *Executor) cmdZadd(args []string, now int64) resp.Value {
	if len(args) < 3 {
		return errArity("ZADD")
	}
	var nx, xx, gt, lt, ch bool
	i := 1
	for i < len(args) {
		switch strings.ToUpper(args[i]) {
		case "NX":
			nx = true
			i++
		case "XX":
			xx = true
			i++
		case "GT":
			gt = true
			i++
		case "LT":
			lt = true
			i++
		case "CH":
			ch = true
			i++
		default:
			goto pairs
		}
	}
pairs:
	if nx && (gt || lt) {
		return resp.Err("ERR GT, LT, and/or NX options at the same time are not compatible")
	}
	if gt && lt {
		return resp.Err("ERR GT and LT options at the same time are not compatible")
	}
	if nx && xx {
		return resp.Err("ERR XX and NX options at the same time are not compatible")
	}
	rest := args[i:]
	if len(rest) == 0 || len(rest)%2 != 0 {
		return errArity("ZADD")
	}

	z, errv, ok := ex.zsetFor(args[0], now, true)
	if !ok {
		return errv
	}
	added, changed := 0, 0
	for j := 0; j+1 < len(rest); j += 2 {
		score, err := strconv.ParseFloat(rest[j], 64)
		if err != nil {
			return errNotFloat()
		}
		member := rest[j+1]
		old, existed := z.Score(member)
		if nx && existed {
			continue
		}
		if xx && !existed {
			continue
		}
		if gt && existed && score <= old {
			continue
		}
		if lt && existed && score >= old {
			continue
		}
		isNew, _ := z.Upsert(member, score)
		if isNew {
			added++
			changed++
		} else if old != score {
			changed++
		}
	}
	if ch {
		return resp.Int(int64(changed))
	}
	return resp.Int(int64(added))
}

func (ex *Executor) cmdZrem(args []string, now int64) resp.Value {
	if len(args) < 2 {
		return errArity("ZREM")
	}
	z, errv, ok := ex.zsetFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if z == nil {
		return resp.Int(0)
	}
	n := 0
	for _, m := range args[1:] {
		if z.Remove(m) {
			n++
		}
	}
	if z.Len() == 0 {
		delete(ex.table, args[0])
	}
	return resp.Int(int64(n))
}

func (ex *Executor) cmdZscore(args []string, now int64) resp.Value {
	if len(args) != 2 {
		return errArity("ZSCORE")
	}
	z, errv, ok := ex.zsetFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if z == nil {
		return resp.NilBulk()
	}
	score, exists := z.Score(args[1])
	if !exists {
		return resp.NilBulk()
	}
	return resp.BulkStr(formatScore(score))
}

func (ex *Executor) cmdZrank(args []string, now int64) resp.Value {
	if len(args) != 2 {
		return errArity("ZRANK")
	}
	z, errv, ok := ex.zsetFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if z == nil {
		return resp.NilBulk()
	}
	rank, exists := z.Rank(args[1])
	if !exists {
		return resp.NilBulk()
	}
	return resp.Int(int64(rank))
}

func (ex *Executor) cmdZrange(args []string, now int64, reverse bool) resp.Value {
	if len(args) < 3 {
		return errArity("ZRANGE")
	}
	start, err1 := strconv.Atoi(args[1])
	stop, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil {
		return errNotInt()
	}
	withScores := len(args) > 3 && strings.ToUpper(args[3]) == "WITHSCORES"
	z, errv, ok := ex.zsetFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if z == nil {
		return resp.Arr()
	}
	all := z.All()
	if reverse {
		for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
			all[i], all[j] = all[j], all[i]
		}
	}
	lo, hi, okRange := clampRange(start, stop, len(all))
	if !okRange {
		return resp.Arr()
	}
	return zMembersReply(all[lo:hi+1], withScores)
}

func (ex *Executor) cmdZcard(args []string, now int64) resp.Value {
	if len(args) != 1 {
		return errArity("ZCARD")
	}
	z, errv, ok := ex.zsetFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	return resp.Int(int64(z.Len()))
}

func (ex *Executor) cmdZcount(args []string, now int64) resp.Value {
	if len(args) != 3 {
		return errArity("ZCOUNT")
	}
	minS, minExcl, err1 := parseScoreBound(args[1])
	maxS, maxExcl, err2 := parseScoreBound(args[2])
	if err1 != nil || err2 != nil {
		return errNotFloat()
	}
	z, errv, ok := ex.zsetFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if z == nil {
		return resp.Int(0)
	}
	return resp.Int(int64(z.Count(minS, maxS, minExcl, maxExcl)))
}

func (ex *Executor) cmdZrangebyscore(args []string, now int64) resp.Value {
	if len(args) < 3 {
		return errArity("ZRANGEBYSCORE")
	}
	minS, minExcl, err1 := parseScoreBound(args[1])
	maxS, maxExcl, err2 := parseScoreBound(args[2])
	if err1 != nil || err2 != nil {
		return errNotFloat()
	}
	withScores := false
	for _, a := range args[3:] {
		if strings.ToUpper(a) == "WITHSCORES" {
			withScores = true
		}
	}
	z, errv, ok := ex.zsetFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	if z == nil {
		return resp.Arr()
	}
	members := z.RangeByScore(minS, maxS, minExcl, maxExcl)
	return zMembersReply(members, withScores)
}

func (ex *Executor) cmdZscan(args []string, now int64) resp.Value {
	if len(args) < 2 {
		return errArity("ZSCAN")
	}
	pattern := "*"
	for i := 2; i < len(args); i++ {
		if upperEq(args[i], "MATCH") && i+1 < len(args) {
			pattern = args[i+1]
			i++
		}
	}
	z, errv, ok := ex.zsetFor(args[0], now, false)
	if !ok && errv.Kind == resp.Error {
		return errv
	}
	var items []resp.Value
	if z != nil {
		for _, m := range z.All() {
			if pattern == "*" || globMatch(pattern, m.Member) {
				items = append(items, resp.BulkStr(m.Member), resp.BulkStr(formatScore(m.Score)))
			}
		}
	}
	return resp.Arr(resp.BulkStr("0"), resp.Arr(items...))
}

func zMembersReply(members []ZMember, withScores bool) resp.Value {
	items := make([]resp.Value, 0, len(members)*2)
	for _, m := range members {
		items = append(items, resp.BulkStr(m.Member))
		if withScores {
			items = append(items, resp.BulkStr(formatScore(m.Score)))
		}
	}
	return resp.Arr(items...)
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// parseScoreBound parses ZRANGEBYSCORE/ZCOUNT bound syntax: -inf, +inf,
// and an exclusive "(" prefix.
func parseScoreBound(s string) (val float64, excl bool, err error) {
	if s == "-inf" {
		return negInf, false, nil
	}
	if s == "+inf" || s == "inf" {
		return posInf, false, nil
	}
	if strings.HasPrefix(s, "(") {
		v, e := strconv.ParseFloat(s[1:], 64)
		return v, true, e
	}
	v, e := strconv.ParseFloat(s, 64)
	return v, false, e
}

var (
	posInf = math.Inf(1)
	negInf = math.Inf(-1)
)
