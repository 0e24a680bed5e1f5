// Package gossip implements spec.md §4.5's dissemination and
// anti-entropy component: a periodic per-replica tick that pushes
// accumulated deltas to a subset of peers and exchanges state digests
// to detect and repair divergence.
//
// The HTTP transport's retry/backoff shape is grounded on
// ppriyankuu-godkv/internal/cluster/replicator.go's sendReplicateRequest;
// the digest/divergence/SyncRequest protocol is grounded on
// original_source/src/stateright/anti_entropy.rs's
// ExchangeDigest/InitiateSync/CompleteSync action set, translated from a
// model-checked state machine into a live per-tick driver.
package gossip

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"shardkv/internal/replica"
)

// deltaLogCap bounds how many recent deltas a Gossiper retains for
// "batch of deltas since last push to peer" framing (spec.md §4.5).
// Once exceeded, the oldest entries are dropped and every peer's
// not-yet-pushed cursor is shifted to match — a peer that fell behind
// that window falls back to catching up via the next digest/sync round
// instead of via PushDelta, the same degrade-gracefully pattern
// internal/replica's causal queue uses.
const deltaLogCap = 8192

// smallClusterFanout is the peer count at or below which every tick
// gossips to every peer rather than a random subset, per spec.md §4.5's
// "all peers for small clusters."
const smallClusterFanout = 4

// Gossiper drives one replica's gossip tick and answers inbound gossip
// RPCs from peers (via Transport's handler side).
type Gossiper struct {
	mu sync.Mutex

	replicaID string
	addr      string
	state     *replica.State
	outbox    <-chan replica.ReplicationDelta
	transport Transport
	peers     []string
	rng       *rand.Rand
	log       *logrus.Entry

	deltaLog   []replica.ReplicationDelta
	peerCursor map[string]int
	divergent  map[string]bool
}

// NewGossiper constructs a Gossiper for a replica reachable at addr
// (the registry key under InProcessTransport, or the base URL under
// HTTPTransport), gossiping with peers over transport. rng must be
// supplied by the caller (production: any seeded *rand.Rand; DST: the
// harness's single seeded stream) so peer-selection randomness stays
// reproducible end to end, per spec.md §4.9.
func NewGossiper(replicaID, addr string, state *replica.State, transport Transport, peers []string, rng *rand.Rand, log *logrus.Logger) *Gossiper {
	return &Gossiper{
		replicaID: replicaID,
		addr:      addr,
		state:     state,
		// Wired up eagerly, not on first drainOutbox call: MintDelta/
		// ApplyRemote publish into state.Outbox() as soon as it exists, so
		// if construction deferred that call until the first Tick, any
		// delta minted before the first Tick would be published into a
		// still-nil channel and silently dropped.
		outbox:     state.Outbox(),
		transport:  transport,
		peers:      append([]string(nil), peers...),
		rng:        rng,
		log:        log.WithFields(logrus.Fields{"component": "gossip", "replica_id": replicaID}),
		peerCursor: make(map[string]int),
		divergent:  make(map[string]bool),
	}
}

// Tick drains newly minted/applied deltas into the gossip log, then
// pushes them and exchanges digests with a subset of peers. now is the
// virtual (or wall) time used purely for logging context.
func (g *Gossiper) Tick(ctx context.Context, now int64) {
	g.drainOutbox()

	targets := g.selectPeers()
	for _, peer := range targets {
		g.pushTo(ctx, peer)
		g.exchangeDigestWith(ctx, peer)
	}
}

func (g *Gossiper) drainOutbox() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for {
		select {
		case delta := <-g.outbox:
			g.deltaLog = append(g.deltaLog, delta)
		default:
			g.trimLogLocked()
			return
		}
	}
}

func (g *Gossiper) trimLogLocked() {
	excess := len(g.deltaLog) - deltaLogCap
	if excess <= 0 {
		return
	}
	g.deltaLog = g.deltaLog[excess:]
	for peer, cursor := range g.peerCursor {
		cursor -= excess
		if cursor < 0 {
			cursor = 0
		}
		g.peerCursor[peer] = cursor
	}
}

// selectPeers picks the gossip fan-out for one tick: every peer for
// small clusters, otherwise ceil(sqrt(N)) peers chosen via the
// caller-supplied RNG, per spec.md §4.5.
func (g *Gossiper) selectPeers() []string {
	g.mu.Lock()
	peers := append([]string(nil), g.peers...)
	g.mu.Unlock()

	if len(peers) <= smallClusterFanout {
		return peers
	}
	fanout := int(math.Ceil(math.Sqrt(float64(len(peers)))))
	sort.Strings(peers) // deterministic base order before the RNG shuffles it
	g.mu.Lock()
	shuffled := append([]string(nil), peers...)
	g.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	g.mu.Unlock()
	return shuffled[:fanout]
}

func (g *Gossiper) pendingFor(peer string) []replica.ReplicationDelta {
	g.mu.Lock()
	defer g.mu.Unlock()
	cursor := g.peerCursor[peer]
	if cursor >= len(g.deltaLog) {
		return nil
	}
	return append([]replica.ReplicationDelta(nil), g.deltaLog[cursor:]...)
}

func (g *Gossiper) pushTo(ctx context.Context, peer string) {
	batch := g.pendingFor(peer)
	if len(batch) == 0 {
		return
	}
	msg := PushDeltaMessage{From: g.addr, Deltas: batch}
	if err := g.transport.PushDelta(ctx, peer, msg); err != nil {
		g.log.WithFields(logrus.Fields{"peer": peer, "error": err}).Debug("gossip push failed")
		return
	}
	g.mu.Lock()
	g.peerCursor[peer] += len(batch)
	g.mu.Unlock()
}

func (g *Gossiper) exchangeDigestWith(ctx context.Context, peer string) {
	own := ComputeDigest(g.state.Cells())
	resp, err := g.transport.ExchangeDigest(ctx, peer, DigestRequest{From: g.addr, Digest: own})
	if err != nil {
		g.log.WithFields(logrus.Fields{"peer": peer, "error": err}).Debug("gossip digest exchange failed")
		return
	}

	diverged := resp.Digest != own
	g.mu.Lock()
	g.divergent[peer] = diverged
	g.mu.Unlock()

	if diverged {
		g.log.WithField("peer", peer).Info("gossip digest mismatch, requesting full sync")
		g.syncWith(ctx, peer)
	}
}

// syncWith requests the peer's full state and merges every cell in
// locally, per spec.md §4.5's SyncRequest follow-up to a divergent
// digest exchange.
func (g *Gossiper) syncWith(ctx context.Context, peer string) {
	resp, err := g.transport.RequestSync(ctx, peer, SyncRequestMessage{From: g.addr})
	if err != nil {
		g.log.WithFields(logrus.Fields{"peer": peer, "error": err}).Debug("gossip sync request failed")
		return
	}
	for _, delta := range resp.Deltas {
		g.state.ApplyRemote(delta)
	}

	// A SyncRequest only pulls the peer's state in; push our own full
	// state back too so reconciliation is symmetric regardless of which
	// side's digest exchange noticed the mismatch first.
	if local := g.state.Snapshot(); len(local) > 0 {
		if err := g.transport.PushDelta(ctx, peer, PushDeltaMessage{From: g.addr, Deltas: local}); err != nil {
			g.log.WithFields(logrus.Fields{"peer": peer, "error": err}).Debug("gossip post-sync push failed")
		}
	}

	g.mu.Lock()
	g.divergent[peer] = false
	g.mu.Unlock()
}

// DivergentPeers lists peers whose last digest exchange disagreed with
// this replica's state, for MINFO-style introspection.
func (g *Gossiper) DivergentPeers() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for peer, div := range g.divergent {
		if div {
			out = append(out, peer)
		}
	}
	sort.Strings(out)
	return out
}

// --- handler (inbound side, driven by Transport implementations) ---

// HandlePush, HandleDigest, and HandleSync are the exported forms of
// this Gossiper's inbound handling, for internal/server's HTTP endpoints
// to call directly — InProcessTransport reaches the same logic through
// the unexported handler interface below, HTTPTransport's peers reach it
// through these.
func (g *Gossiper) HandlePush(msg PushDeltaMessage) { g.handlePush(msg) }

func (g *Gossiper) HandleDigest(req DigestRequest) DigestResponse { return g.handleDigest(req) }

func (g *Gossiper) HandleSync(req SyncRequestMessage) SyncResponseMessage { return g.handleSync(req) }

func (g *Gossiper) handlePush(msg PushDeltaMessage) {
	for _, delta := range msg.Deltas {
		g.state.ApplyRemote(delta)
	}
}

func (g *Gossiper) handleDigest(req DigestRequest) DigestResponse {
	own := ComputeDigest(g.state.Cells())
	return DigestResponse{Digest: own, Divergent: own != req.Digest}
}

func (g *Gossiper) handleSync(req SyncRequestMessage) SyncResponseMessage {
	return SyncResponseMessage{Deltas: g.state.Snapshot()}
}

// RunLoop ticks every interval until ctx is cancelled, for production
// wiring (internal/server starts one per replica). DST drives Tick
// directly from its own virtual-time scheduler instead of calling this.
func (g *Gossiper) RunLoop(ctx context.Context, interval time.Duration, now func() int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Tick(ctx, now())
		}
	}
}
