// Package metrics implements the tag-keyed CRDT metric-extension command
// family spec.md's command surface names: MCOUNTER, MGAUGE, MUPDOWN,
// MDIST, MUNIQUE, MQUERY, MHOTKEYS, MINFO, MLIST. Each metric is a name
// plus a sorted tag set, addressing a cell in its own replica.State — a
// node-wide lattice separate from internal/shard.Router's key/value
// State, gossiped independently so a metrics-heavy workload never
// contends with data-key replication traffic.
//
// Grounded on original_source/src/metrics/commands.rs (MetricsCommand
// parsing and dispatch) and types.rs (TagSet, MetricType, MetricPoint).
package metrics

import (
	"sort"
	"strings"
)

// TagSet is a sorted key-value tag set. Iterating sortedNames gives every
// replica the same encoded key for the same tags regardless of the
// argument order a client sent them in, mirroring types.rs's
// BTreeMap-backed TagSet.
type TagSet map[string]string

// ParseTags extracts every "key:value" argument from args into a TagSet,
// returning the remaining non-tag arguments untouched, the same split
// commands.rs's parse_tags performs before dispatching on the rest.
func ParseTags(args []string) (TagSet, []string) {
	tags := make(TagSet)
	var remaining []string
	for _, a := range args {
		if k, v, ok := strings.Cut(a, ":"); ok && k != "" && v != "" {
			tags[k] = v
			continue
		}
		remaining = append(remaining, a)
	}
	return tags, remaining
}

func (t TagSet) sortedNames() []string {
	names := make([]string, 0, len(t))
	for k := range t {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// String renders tags as "k1:v1,k2:v2" in sorted tag-name order.
func (t TagSet) String() string {
	names := t.sortedNames()
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+":"+t[k])
	}
	return strings.Join(parts, ",")
}

// Matches reports whether t carries every tag pattern names, treating a
// pattern value of "*" as a wildcard — the same semantics as types.rs's
// TagSet::matches. MLIST does not use it: its filter is a plain
// substring match on the encoded key.
func (t TagSet) Matches(pattern TagSet) bool {
	for k, pv := range pattern {
		v, ok := t[k]
		if !ok {
			return false
		}
		if pv != "*" && v != pv {
			return false
		}
	}
	return true
}

// Key renders "name{k1:v1,k2:v2}", spec.md's documented metric-extension
// key encoding, with tags in sorted order.
func Key(name string, tags TagSet) string {
	return name + "{" + tags.String() + "}"
}

// SplitKey reverses Key, recovering the metric name and tag string (still
// "k1:v1,k2:v2" form) from an encoded key. ok is false if k isn't shaped
// like a metric key.
func SplitKey(k string) (name, tagStr string, ok bool) {
	open := strings.IndexByte(k, '{')
	if open < 0 || !strings.HasSuffix(k, "}") {
		return "", "", false
	}
	return k[:open], k[open+1 : len(k)-1], true
}

// ParseTagString parses "k1:v1,k2:v2" back into a TagSet, the inverse of
// String. MLIST and MINFO do not call it: MLIST returns stored keys as
// they are and MINFO renders the queried TagSet directly.
func ParseTagString(s string) TagSet {
	tags := make(TagSet)
	if s == "" {
		return tags
	}
	for _, pair := range strings.Split(s, ",") {
		if k, v, ok := strings.Cut(pair, ":"); ok {
			tags[k] = v
		}
	}
	return tags
}
