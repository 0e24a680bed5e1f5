// Package command defines the tagged value model stored in each shard and
// the per-shard CommandExecutor that applies RESP-decoded commands to it.
//
// Big idea, same one the teacher's internal/store uses for its single
// string Value: every mutation happens under one lock, and every command
// is a pure function from (current state, args) to (new state, reply).
// Here the state is a typed variant instead of a bare string, because the
// command surface spans strings, lists, sets, hashes, and sorted sets.
package command

import "sort"

// Kind tags which of the five value shapes a Value currently holds.
type Kind int

const (
	KindNone Kind = iota
	KindString
	KindList
	KindSet
	KindHash
	KindZSet
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindHash:
		return "hash"
	case KindZSet:
		return "zset"
	default:
		return "none"
	}
}

// ZMember is one (member, score) pair of a sorted set.
type ZMember struct {
	Member string
	Score  float64
}

// ZSet keeps members ordered by (score, member) as spec.md §3 requires.
// A slice kept sorted is simplest to reason about and to make
// commutative/idempotent under CRDT merge-derived rebuilds; shards are
// not expected to hold enough members for O(n) insert to matter at the
// budget this repo targets.
type ZSet struct {
	members []ZMember
}

func NewZSet() *ZSet { return &ZSet{} }

func zless(a, b ZMember) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Member < b.Member
}

func (z *ZSet) find(member string) int {
	for i, m := range z.members {
		if m.Member == member {
			return i
		}
	}
	return -1
}

// Upsert sets member's score, returns (isNew, oldScore).
func (z *ZSet) Upsert(member string, score float64) (bool, float64) {
	if i := z.find(member); i >= 0 {
		old := z.members[i].Score
		z.members = append(z.members[:i], z.members[i+1:]...)
		z.insertSorted(ZMember{Member: member, Score: score})
		return false, old
	}
	z.insertSorted(ZMember{Member: member, Score: score})
	return true, 0
}

func (z *ZSet) insertSorted(m ZMember) {
	i := sort.Search(len(z.members), func(i int) bool { return !zless(z.members[i], m) })
	z.members = append(z.members, ZMember{})
	copy(z.members[i+1:], z.members[i:])
	z.members[i] = m
}

func (z *ZSet) Score(member string) (float64, bool) {
	if i := z.find(member); i >= 0 {
		return z.members[i].Score, true
	}
	return 0, false
}

func (z *ZSet) Remove(member string) bool {
	if i := z.find(member); i >= 0 {
		z.members = append(z.members[:i], z.members[i+1:]...)
		return true
	}
	return false
}

func (z *ZSet) Rank(member string) (int, bool) {
	if i := z.find(member); i >= 0 {
		return i, true
	}
	return 0, false
}

func (z *ZSet) Len() int { return len(z.members) }

// Range returns members at [start, stop] inclusive, Redis-style negative
// indexing, clamped to bounds.
func (z *ZSet) Range(start, stop int) []ZMember {
	lo, hi, ok := clampRange(start, stop, len(z.members))
	if !ok {
		return nil
	}
	out := make([]ZMember, hi-lo+1)
	copy(out, z.members[lo:hi+1])
	return out
}

// RangeByScore returns members with minScore <= score <= maxScore,
// honoring exclusivity flags for the "(" prefix syntax.
func (z *ZSet) RangeByScore(minScore, maxScore float64, minExcl, maxExcl bool) []ZMember {
	var out []ZMember
	for _, m := range z.members {
		if m.Score < minScore || (minExcl && m.Score == minScore) {
			continue
		}
		if m.Score > maxScore || (maxExcl && m.Score == maxScore) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (z *ZSet) Count(minScore, maxScore float64, minExcl, maxExcl bool) int {
	return len(z.RangeByScore(minScore, maxScore, minExcl, maxExcl))
}

func (z *ZSet) All() []ZMember {
	out := make([]ZMember, len(z.members))
	copy(out, z.members)
	return out
}

// clampRange normalizes Redis-style inclusive, negative-from-end indices.
func clampRange(start, stop, n int) (lo, hi int, ok bool) {
	if n == 0 {
		return 0, 0, false
	}
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return 0, 0, false
	}
	return start, stop, true
}

// List is a deque of byte-string elements.
type List struct {
	items [][]byte
}

func NewList() *List { return &List{} }

func (l *List) LPush(vals ...[]byte) int {
	for _, v := range vals {
		l.items = append([][]byte{v}, l.items...)
	}
	return len(l.items)
}

func (l *List) RPush(vals ...[]byte) int {
	l.items = append(l.items, vals...)
	return len(l.items)
}

func (l *List) LPop(count int) [][]byte {
	if count > len(l.items) {
		count = len(l.items)
	}
	out := l.items[:count]
	l.items = l.items[count:]
	return out
}

func (l *List) RPop(count int) [][]byte {
	if count > len(l.items) {
		count = len(l.items)
	}
	n := len(l.items)
	out := make([][]byte, count)
	for i := 0; i < count; i++ {
		out[i] = l.items[n-1-i]
	}
	l.items = l.items[:n-count]
	return out
}

func (l *List) Len() int { return len(l.items) }

func (l *List) Range(start, stop int) [][]byte {
	lo, hi, ok := clampRange(start, stop, len(l.items))
	if !ok {
		return nil
	}
	out := make([][]byte, hi-lo+1)
	copy(out, l.items[lo:hi+1])
	return out
}

func (l *List) Index(idx int) ([]byte, bool) {
	n := len(l.items)
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return nil, false
	}
	return l.items[idx], true
}

func (l *List) Set(idx int, val []byte) bool {
	n := len(l.items)
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return false
	}
	l.items[idx] = val
	return true
}

func (l *List) Trim(start, stop int) {
	lo, hi, ok := clampRange(start, stop, len(l.items))
	if !ok {
		l.items = nil
		return
	}
	l.items = append([][]byte{}, l.items[lo:hi+1]...)
}

// Hash is a field->value map.
type Hash map[string][]byte

// Set is an unordered unique byte-string collection.
type Set map[string]struct{}

// Value is the tagged union a shard stores for one key. Only the field
// matching Kind is meaningful.
type Value struct {
	Str  []byte
	List *List
	Set  Set
	Hash Hash
	ZSet *ZSet
	Kind Kind
}
