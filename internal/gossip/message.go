package gossip

import "shardkv/internal/replica"

// PushDelta carries a batch of deltas accumulated for one peer since the
// last push to it, per spec.md §4.5. The receiver applies every delta
// and sends no reply.
type PushDeltaMessage struct {
	From   string                     `json:"from"`
	Deltas []replica.ReplicationDelta `json:"deltas"`
}

// DigestRequest carries the sender's current state digest so the peer
// can compare it against its own.
type DigestRequest struct {
	From   string `json:"from"`
	Digest uint64 `json:"digest"`
}

// DigestResponse reports the peer's own digest plus whether it saw a
// mismatch against the digest carried in the request.
type DigestResponse struct {
	Digest    uint64 `json:"digest"`
	Divergent bool   `json:"divergent"`
}

// SyncRequest asks a peer for its full per-key state, used after a
// digest exchange reveals divergence. A production system could instead
// request a Merkle subtree diff keyed by key-prefix (spec.md §4.5); this
// repo only implements the simpler full-state variant.
type SyncRequestMessage struct {
	From string `json:"from"`
}

type SyncResponseMessage struct {
	Deltas []replica.ReplicationDelta `json:"deltas"`
}
