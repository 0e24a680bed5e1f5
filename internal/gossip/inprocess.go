package gossip

import (
	"context"
	"fmt"
	"sync"
)

// handler is what an InProcessTransport delivers a message to: a
// Gossiper's own inbound processing, so in-process peers behave exactly
// like HTTP-connected ones from the transport's point of view.
type handler interface {
	handlePush(msg PushDeltaMessage)
	handleDigest(req DigestRequest) DigestResponse
	handleSync(req SyncRequestMessage) SyncResponseMessage
}

// InProcessTransport wires a fixed set of Gossipers together without
// sockets, per spec.md §4.9's "simulated network where each connection
// is a pair of in-process byte streams." Partitions are modeled as a
// symmetric relation over peer addresses exactly as spec.md §4.5
// describes: a delivery attempt to a partitioned peer fails.
type InProcessTransport struct {
	mu         sync.RWMutex
	registry   map[string]handler
	partitions map[[2]string]struct{}
}

func NewInProcessTransport() *InProcessTransport {
	return &InProcessTransport{
		registry:   make(map[string]handler),
		partitions: make(map[[2]string]struct{}),
	}
}

// Register associates an address with the Gossiper that owns it. Called
// once per replica when wiring a DST cluster together.
func (t *InProcessTransport) Register(addr string, g *Gossiper) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.registry[addr] = g
}

func partitionKey(a, b string) [2]string {
	if a < b {
		return [2]string{a, b}
	}
	return [2]string{b, a}
}

// Partition marks a and b as unable to reach each other until Heal is
// called, per spec.md §4.5's "connectivity is a dynamic symmetric
// relation."
func (t *InProcessTransport) Partition(a, b string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partitions[partitionKey(a, b)] = struct{}{}
}

func (t *InProcessTransport) Heal(a, b string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.partitions, partitionKey(a, b))
}

func (t *InProcessTransport) isPartitioned(a, b string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.partitions[partitionKey(a, b)]
	return ok
}

func (t *InProcessTransport) lookup(peer string) (handler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.registry[peer]
	return h, ok
}

func (t *InProcessTransport) checkReachable(ctx context.Context, from, peer string) (handler, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, ok := t.lookup(peer)
	if !ok {
		return nil, fmt.Errorf("gossip: unknown peer %q", peer)
	}
	if from != "" && t.isPartitioned(from, peer) {
		return nil, fmt.Errorf("gossip: %q is partitioned from %q", from, peer)
	}
	return h, nil
}

func (t *InProcessTransport) PushDelta(ctx context.Context, peer string, msg PushDeltaMessage) error {
	h, err := t.checkReachable(ctx, msg.From, peer)
	if err != nil {
		return err
	}
	h.handlePush(msg)
	return nil
}

func (t *InProcessTransport) ExchangeDigest(ctx context.Context, peer string, req DigestRequest) (DigestResponse, error) {
	h, err := t.checkReachable(ctx, req.From, peer)
	if err != nil {
		return DigestResponse{}, err
	}
	return h.handleDigest(req), nil
}

func (t *InProcessTransport) RequestSync(ctx context.Context, peer string, req SyncRequestMessage) (SyncResponseMessage, error) {
	h, err := t.checkReachable(ctx, req.From, peer)
	if err != nil {
		return SyncResponseMessage{}, err
	}
	return h.handleSync(req), nil
}
