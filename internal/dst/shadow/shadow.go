// Package shadow holds reference ("shadow model") implementations of
// the CRDT lattice types and the hot parts of the shard command set
// (lists, sets, sorted sets), built independently of internal/crdt and
// internal/command so a property test can run the same operation
// sequence through both and assert the observable results agree.
//
// Grounded on original_source/src/stateright/replication.rs's
// model-checked reference semantics, translated from Rust's stateright
// model-checking harness into randomized Go property tests since no Go
// stateright equivalent appears anywhere in the retrieval pack — see
// SPEC_FULL.md §8.
package shadow

import "sort"

// GCounterRef recomputes a grow-only counter's value from a complete,
// order-independent log of (replica, amount) increments, so it can
// cross-check internal/crdt.GCounter's incremental merge path: both
// must agree on the final sum no matter what order deltas were merged
// in.
type GCounterRef struct {
	log []gcIncrement
}

type gcIncrement struct {
	replica string
	amount  uint64
}

func (g *GCounterRef) Increment(replica string, amount uint64) {
	g.log = append(g.log, gcIncrement{replica, amount})
}

// Value totals every increment ever recorded: amounts are summed per
// replica and the per-replica totals summed again, computed from the log
// from first principles rather than reusing GCounter's code. No
// deduplication is applied; recording the same increment twice counts it
// twice.
func (g *GCounterRef) Value() uint64 {
	perReplica := make(map[string]uint64)
	for _, inc := range g.log {
		perReplica[inc.replica] += inc.amount
	}
	var total uint64
	for _, v := range perReplica {
		total += v
	}
	return total
}

// SetRef is a naive unordered unique-string set mirroring
// internal/command.Set's observable behavior.
type SetRef struct {
	members map[string]struct{}
}

func NewSetRef() *SetRef { return &SetRef{members: make(map[string]struct{})} }

func (s *SetRef) Add(m string) bool {
	if _, ok := s.members[m]; ok {
		return false
	}
	s.members[m] = struct{}{}
	return true
}

func (s *SetRef) Remove(m string) bool {
	if _, ok := s.members[m]; !ok {
		return false
	}
	delete(s.members, m)
	return true
}

func (s *SetRef) Contains(m string) bool {
	_, ok := s.members[m]
	return ok
}

func (s *SetRef) Len() int { return len(s.members) }

// Members returns every member, sorted, so two SetRefs with the same
// content always compare equal regardless of Go's randomized map
// iteration order.
func (s *SetRef) Members() []string {
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// ListRef is a naive deque mirroring internal/command.List.
type ListRef struct {
	items []string
}

func NewListRef() *ListRef { return &ListRef{} }

func (l *ListRef) LPush(vals ...string) {
	for _, v := range vals {
		l.items = append([]string{v}, l.items...)
	}
}

func (l *ListRef) RPush(vals ...string) {
	l.items = append(l.items, vals...)
}

func (l *ListRef) LPop() (string, bool) {
	if len(l.items) == 0 {
		return "", false
	}
	v := l.items[0]
	l.items = l.items[1:]
	return v, true
}

func (l *ListRef) RPop() (string, bool) {
	if len(l.items) == 0 {
		return "", false
	}
	v := l.items[len(l.items)-1]
	l.items = l.items[:len(l.items)-1]
	return v, true
}

func (l *ListRef) Len() int { return len(l.items) }

func (l *ListRef) All() []string {
	out := make([]string, len(l.items))
	copy(out, l.items)
	return out
}

// ZMemberRef is one (member, score) pair, ordered the same way
// internal/command.ZSet orders them: by score, then member bytes.
type ZMemberRef struct {
	Member string
	Score  float64
}

// ZSetRef is a naive sorted-set mirroring internal/command.ZSet.
type ZSetRef struct {
	scores map[string]float64
}

func NewZSetRef() *ZSetRef { return &ZSetRef{scores: make(map[string]float64)} }

func (z *ZSetRef) Add(member string, score float64) {
	z.scores[member] = score
}

func (z *ZSetRef) Remove(member string) bool {
	if _, ok := z.scores[member]; !ok {
		return false
	}
	delete(z.scores, member)
	return true
}

func (z *ZSetRef) Score(member string) (float64, bool) {
	s, ok := z.scores[member]
	return s, ok
}

func (z *ZSetRef) Len() int { return len(z.scores) }

// All returns every member ordered by (score, member), recomputed fresh
// each call rather than incrementally maintained — this is the
// "obviously correct, possibly slow" reference a property test checks
// the real ZSet's incrementally-maintained order against.
func (z *ZSetRef) All() []ZMemberRef {
	out := make([]ZMemberRef, 0, len(z.scores))
	for m, s := range z.scores {
		out = append(out, ZMemberRef{Member: m, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}

// HashRef mirrors internal/command.Hash.
type HashRef struct {
	fields map[string]string
}

func NewHashRef() *HashRef { return &HashRef{fields: make(map[string]string)} }

func (h *HashRef) Set(field, value string) bool {
	_, existed := h.fields[field]
	h.fields[field] = value
	return !existed
}

func (h *HashRef) Get(field string) (string, bool) {
	v, ok := h.fields[field]
	return v, ok
}

func (h *HashRef) Del(field string) bool {
	if _, ok := h.fields[field]; !ok {
		return false
	}
	delete(h.fields, field)
	return true
}

func (h *HashRef) Len() int { return len(h.fields) }
