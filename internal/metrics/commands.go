package metrics

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"shardkv/internal/crdt"
	"shardkv/internal/replica"
	"shardkv/internal/resp"
)

// MetricKind mirrors types.rs's MetricType, one per CRDT lattice a metric
// name+tag-set pair can be stored as.
type MetricKind int

const (
	KindCounter MetricKind = iota
	KindGauge
	KindUpDown
	KindDistribution
	KindSet
)

// typeCode returns types.rs's single-character type code, folded into
// the encoded key so MQUERY/MINFO can probe every kind a name might have
// been submitted under without ambiguity.
func (k MetricKind) typeCode() string {
	switch k {
	case KindCounter:
		return "c"
	case KindGauge:
		return "g"
	case KindUpDown:
		return "u"
	case KindDistribution:
		return "d"
	case KindSet:
		return "s"
	default:
		return "?"
	}
}

func encodedKey(name string, kind MetricKind, tags TagSet) string {
	return Key(name+"#"+kind.typeCode(), tags)
}

// Registry executes the metric-extension command family against its own
// replica.State, independent of internal/shard's key/value store.
type Registry struct {
	state     *replica.State
	replicaID string
	hotKeys   *HotKeyDetector

	fanoutFactor int
	fanout       func(key string, n int) []string
}

// NewRegistry wires a registry on top of state, which the caller is
// expected to have already handed to a gossiper for cross-replica
// propagation (internal/server does this once at startup, the same way
// it wires the data-key State to its own gossiper).
func NewRegistry(state *replica.State, replicaID string) *Registry {
	return &Registry{state: state, replicaID: replicaID, hotKeys: NewHotKeyDetector()}
}

// SetReplicaFanout wires the "hot keys may raise their replication
// fan-out or trigger extra read replicas" optimization from spec.md
// §4.5: resolve picks factor stable peer targets for a given key
// (internal/server backs this with internal/cluster's hash ring over
// the static peer list). Once wired, MHOTKEYS annotates each reported
// key with the replicas chosen for it; left unset, MHOTKEYS reports
// bare key/rate pairs exactly as before. This never affects
// correctness — gossip still disseminates to every selected peer
// regardless of which keys are hot.
func (r *Registry) SetReplicaFanout(factor int, resolve func(key string, n int) []string) {
	r.fanoutFactor = factor
	r.fanout = resolve
}

// Execute dispatches one metric command. Callers route to this instead
// of internal/shard.Router whenever cmd.Name starts with "M" and is one
// of this family's verbs.
func (r *Registry) Execute(name string, args []string, now int64) resp.Value {
	switch name {
	case "MCOUNTER":
		return r.counter(args, now)
	case "MGAUGE":
		return r.gauge(args, now)
	case "MUPDOWN":
		return r.updown(args, now)
	case "MDIST":
		return r.distribution(args, now)
	case "MUNIQUE":
		return r.unique(args, now)
	case "MQUERY":
		return r.query(args, now)
	case "MHOTKEYS":
		return r.hotkeys(args, now)
	case "MINFO":
		return r.info(args)
	case "MLIST":
		return r.list(args)
	default:
		return resp.Errf("ERR unknown metric command '%s'", name)
	}
}

func (r *Registry) counter(args []string, now int64) resp.Value {
	if len(args) < 1 {
		return resp.Err("ERR MCOUNTER requires metric name")
	}
	name := args[0]
	tags, remaining := ParseTags(args[1:])
	increment := int64(1)
	if len(remaining) > 0 {
		if v, err := strconv.ParseInt(remaining[0], 10, 64); err == nil {
			increment = v
		}
	}
	key := encodedKey(name, KindCounter, tags)
	r.hotKeys.RecordAccess(key, now)

	// MintDelta merges by entrywise max, so the delta carries this
	// replica's new cumulative slot value, not just the increment.
	delta := replica.NewGCounterCell()
	if increment > 0 {
		var current uint64
		if cell, ok := r.state.Get(key); ok && cell.Kind == replica.CellGCounter {
			current = cell.GC.Snapshot()[r.replicaID]
		}
		delta.GC.Increment(r.replicaID, current+uint64(increment))
	}
	r.state.MintDelta(key, delta, now)
	return resp.OK()
}

func (r *Registry) gauge(args []string, now int64) resp.Value {
	if len(args) < 2 {
		return resp.Err("ERR MGAUGE requires metric name and value")
	}
	name := args[0]
	tags, remaining := ParseTags(args[1:])
	if len(remaining) == 0 {
		return resp.Err("ERR MGAUGE requires value")
	}
	value, err := strconv.ParseFloat(remaining[0], 64)
	if err != nil {
		return resp.Err("ERR invalid gauge value")
	}
	key := encodedKey(name, KindGauge, tags)
	r.hotKeys.RecordAccess(key, now)

	delta := replica.NewLWWCell([]byte(formatFloat(value)), now, r.replicaID)
	r.state.MintDelta(key, delta, now)
	return resp.OK()
}

func (r *Registry) updown(args []string, now int64) resp.Value {
	if len(args) < 2 {
		return resp.Err("ERR MUPDOWN requires metric name and delta")
	}
	name := args[0]
	tags, remaining := ParseTags(args[1:])
	if len(remaining) == 0 {
		return resp.Err("ERR MUPDOWN requires delta")
	}
	delta, err := strconv.ParseInt(remaining[0], 10, 64)
	if err != nil {
		return resp.Err("ERR invalid delta value")
	}
	key := encodedKey(name, KindUpDown, tags)
	r.hotKeys.RecordAccess(key, now)

	cell := replica.NewPNCounterCell()
	cell.PNC.Add(r.replicaID, delta)
	r.state.MintDelta(key, cell, now)
	return resp.OK()
}

func (r *Registry) distribution(args []string, now int64) resp.Value {
	if len(args) < 2 {
		return resp.Err("ERR MDIST requires metric name and value")
	}
	name := args[0]
	tags, remaining := ParseTags(args[1:])
	if len(remaining) == 0 {
		return resp.Err("ERR MDIST requires value")
	}
	value, err := strconv.ParseFloat(remaining[0], 64)
	if err != nil {
		return resp.Err("ERR invalid distribution value")
	}
	key := encodedKey(name, KindDistribution, tags)
	r.hotKeys.RecordAccess(key, now)

	dist := crdt.NewDistribution()
	dist.Observe(value)
	cell := replica.Cell{Kind: replica.CellDistribution, Dist: dist}
	r.state.MintDelta(key, cell, now)
	return resp.OK()
}

func (r *Registry) unique(args []string, now int64) resp.Value {
	if len(args) < 2 {
		return resp.Err("ERR MUNIQUE requires metric name and value")
	}
	name := args[0]
	tags, remaining := ParseTags(args[1:])
	if len(remaining) == 0 {
		return resp.Err("ERR MUNIQUE requires value")
	}
	key := encodedKey(name, KindSet, tags)
	r.hotKeys.RecordAccess(key, now)

	cell := replica.NewOrSetCell()
	cell.OrSet.Add(remaining[0], uuid.NewString())
	r.state.MintDelta(key, cell, now)
	return resp.OK()
}

// query tries each kind in turn — counter, gauge, up-down, set
// cardinality, distribution — and returns the first with a non-default
// value, mirroring commands.rs's query_metric probing order exactly.
func (r *Registry) query(args []string, now int64) resp.Value {
	if len(args) < 1 {
		return resp.Err("ERR MQUERY requires metric name")
	}
	name := args[0]
	tags, _ := ParseTags(args[1:])

	counterKey := encodedKey(name, KindCounter, tags)
	r.hotKeys.RecordAccess(counterKey, now)
	if cell, ok := r.state.Get(counterKey); ok && cell.Kind == replica.CellGCounter {
		if v := cell.GC.Value(); v > 0 {
			return resp.Int(int64(v))
		}
	}

	gaugeKey := encodedKey(name, KindGauge, tags)
	r.hotKeys.RecordAccess(gaugeKey, now)
	if cell, ok := r.state.Get(gaugeKey); ok && cell.Kind == replica.CellLWW {
		if raw, ok := cell.LWW.Get(); ok {
			return resp.BulkStr(string(raw))
		}
	}

	updownKey := encodedKey(name, KindUpDown, tags)
	r.hotKeys.RecordAccess(updownKey, now)
	if cell, ok := r.state.Get(updownKey); ok && cell.Kind == replica.CellPNCounter {
		if v := cell.PNC.Value(); v != 0 {
			return resp.Int(v)
		}
	}

	setKey := encodedKey(name, KindSet, tags)
	r.hotKeys.RecordAccess(setKey, now)
	if cell, ok := r.state.Get(setKey); ok && cell.Kind == replica.CellOrSet {
		if n := len(cell.OrSet.Members()); n > 0 {
			return resp.Int(int64(n))
		}
	}

	distKey := encodedKey(name, KindDistribution, tags)
	r.hotKeys.RecordAccess(distKey, now)
	if cell, ok := r.state.Get(distKey); ok && cell.Kind == replica.CellDistribution {
		return distributionReply(cell.Dist)
	}

	return resp.NilBulk()
}

func distributionReply(d *crdt.Distribution) resp.Value {
	return resp.Arr(
		resp.BulkStr("count"), resp.Int(int64(d.Count)),
		resp.BulkStr("avg"), resp.BulkStr(formatFloat(d.Avg())),
		resp.BulkStr("min"), resp.BulkStr(formatFloat(d.Min)),
		resp.BulkStr("max"), resp.BulkStr(formatFloat(d.Max)),
		resp.BulkStr("p50"), resp.BulkStr(formatFloat(d.Percentile(50))),
		resp.BulkStr("p90"), resp.BulkStr(formatFloat(d.Percentile(90))),
		resp.BulkStr("p99"), resp.BulkStr(formatFloat(d.Percentile(99))),
	)
}

func (r *Registry) hotkeys(args []string, now int64) resp.Value {
	limit := 10
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			limit = n
		}
	}
	top := r.hotKeys.TopKeys(limit, now)
	items := make([]resp.Value, 0, len(top)*3)
	for _, kr := range top {
		items = append(items, resp.BulkStr(kr.Key), resp.BulkStr(formatFloat(kr.Rate)))
		if r.fanout != nil {
			items = append(items, resp.BulkStr(strings.Join(r.fanout(kr.Key, r.fanoutFactor), ",")))
		}
	}
	return resp.Arr(items...)
}

// info reports the first of counter/gauge that has a value set, matching
// get_metric_info's (narrower than query's) probing order, plus the
// queried tag set's string form.
func (r *Registry) info(args []string) resp.Value {
	if len(args) < 1 {
		return resp.Err("ERR MINFO requires metric name")
	}
	name := args[0]
	tags, _ := ParseTags(args[1:])

	var items []resp.Value
	if cell, ok := r.state.Get(encodedKey(name, KindCounter, tags)); ok && cell.Kind == replica.CellGCounter {
		if v := cell.GC.Value(); v > 0 {
			items = append(items, resp.BulkStr("type"), resp.BulkStr("counter"), resp.BulkStr("value"), resp.Int(int64(v)))
		}
	}
	if cell, ok := r.state.Get(encodedKey(name, KindGauge, tags)); ok && cell.Kind == replica.CellLWW {
		if raw, ok := cell.LWW.Get(); ok {
			items = append(items, resp.BulkStr("type"), resp.BulkStr("gauge"), resp.BulkStr("value"), resp.BulkStr(string(raw)))
		}
	}
	if items == nil {
		return resp.NilBulk()
	}
	items = append(items, resp.BulkStr("tags"), resp.BulkStr(tags.String()))
	return resp.Arr(items...)
}

// list returns every metric name#kind{tags} key matching pattern as a
// plain substring filter, mirroring list_metrics.
func (r *Registry) list(args []string) resp.Value {
	var pattern string
	if len(args) > 0 {
		pattern = args[0]
	}
	cells := r.state.Cells()
	items := make([]resp.Value, 0, len(cells))
	for key := range cells {
		if pattern == "" || strings.Contains(key, pattern) {
			items = append(items, resp.BulkStr(key))
		}
	}
	return resp.Arr(items...)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// commandNames lists every verb Execute handles, so internal/server can
// route a decoded command to this package before it ever reaches
// internal/shard.Router.
var commandNames = map[string]bool{
	"MCOUNTER": true, "MGAUGE": true, "MUPDOWN": true, "MDIST": true,
	"MUNIQUE": true, "MQUERY": true, "MHOTKEYS": true, "MINFO": true,
	"MLIST": true,
}

// IsCommand reports whether name is one of this package's verbs.
func IsCommand(name string) bool {
	return commandNames[name]
}
