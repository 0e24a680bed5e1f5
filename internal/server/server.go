package server

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"shardkv/internal/acl"
	"shardkv/internal/cluster"
	"shardkv/internal/command"
	"shardkv/internal/gossip"
	"shardkv/internal/manifest"
	"shardkv/internal/metrics"
	"shardkv/internal/objectstore"
	"shardkv/internal/replica"
	"shardkv/internal/resp"
	"shardkv/internal/shard"
	"shardkv/internal/txn"
	"shardkv/internal/writebuffer"
)

// Server owns every long-lived component for one replica: the shard
// router, its replica state, gossiper, write buffer and manifest, the
// metric registry, and the two listeners (RESP for clients, gin for
// health/gossip HTTP calls) built on top of them.
//
// New builds the store, manifest, replica states, shard router, write
// buffer and gossipers, in that order; Run then starts the HTTP surface
// and the RESP listener. This mirrors ppriyankuu-godkv/cmd/server/main.go's
// storage-then-membership-then-replicator-then-HTTP sequencing,
// generalized from one function body into a struct. New always wires
// gossip over gossip.NewHTTPTransport; it takes no transport argument.
type Server struct {
	cfg Config
	log *logrus.Entry

	store    objectstore.Store
	manifest *manifest.Manager
	writeBuf *writebuffer.Buffer

	router     *shard.Router
	replState  *replica.State
	gossiper   *gossip.Gossiper
	metricReg  *metrics.Registry
	metricSt   *replica.State
	membership *cluster.Membership
	aclMgr     *acl.Manager
	// metricGossiper ticks the metric registry's own replica.State,
	// separate from s.gossiper's data-key traffic — see the package doc
	// comment in internal/metrics for why the two states never share a
	// namespace.
	metricGossiper *gossip.Gossiper

	gauges *processGauges

	httpSrv  *http.Server
	listener net.Listener

	recovering atomic.Bool // true until recovery completes; health reports 503 while set

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New constructs a Server from cfg without starting any goroutines or
// listeners. Call Run to start serving.
func New(cfg Config, log *logrus.Logger) (*Server, error) {
	store, err := newObjectStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("server: building object store: %w", err)
	}

	mgr := manifest.NewManager(store, cfg.ManifestPrefix)

	replState := replica.NewState(cfg.ReplicaID, cfg.Consistency)
	metricState := replica.NewState(cfg.ReplicaID, cfg.Consistency)

	router := shard.NewRouter()
	router.AttachReplication(replState, cfg.ReplicaID)

	wbCfg := writebuffer.Config{
		MaxBufferBytes:             cfg.WriteBuffer.MaxBufferBytes,
		MaxDeltasPerSegment:        cfg.WriteBuffer.MaxDeltasPerSegment,
		BackpressureThresholdBytes: cfg.WriteBuffer.BackpressureThresholdBytes,
		FlushInterval:              cfg.flushInterval(),
	}
	writeBuf := writebuffer.NewBuffer(wbCfg, store, mgr, cfg.ManifestPrefix, log)

	peers := make([]string, len(cfg.Peers))
	metricPeers := make([]string, len(cfg.Peers))
	for i, p := range cfg.Peers {
		peers[i] = "http://" + p
		// The metric registry's replica.State gossips over a distinct
		// URL prefix so its inbound HTTP calls land on a separate gin
		// route (registered in gin.go) from the data-key gossiper's —
		// otherwise both Gossipers' HandlePush would receive each
		// other's deltas through the same /internal/gossip/push path.
		metricPeers[i] = "http://" + p + "/metrics"
	}
	// Gossip's peer-selection RNG only needs to be reproducible within
	// one DST run (seeded there); production just needs a source, so it
	// is seeded from the replica id's hash rather than left to the
	// package-level default source, keeping every replica's fan-out
	// pattern distinct from its peers'.
	rng := rand.New(rand.NewSource(int64(shard.HashKey(cfg.ReplicaID))))
	gossiper := gossip.NewGossiper(cfg.ReplicaID, "http://"+cfg.Addr, replState, gossip.NewHTTPTransport(), peers, rng, log)
	metricGossiper := gossip.NewGossiper(cfg.ReplicaID+"-metrics", "http://"+cfg.Addr+"/metrics", metricState, gossip.NewHTTPTransport(), metricPeers, rng, log)

	// Membership is the static PEERS list (§6) plus self, used only to
	// pick extra replication targets for hot keys (§4.5) — never for
	// shard ownership, which is always hash(key) mod NumShards.
	members := make([]cluster.Node, 0, len(cfg.Peers)+1)
	members = append(members, cluster.Node{ID: cfg.ReplicaID, Address: cfg.Addr})
	for _, p := range cfg.Peers {
		members = append(members, cluster.Node{ID: p, Address: p})
	}
	membership := cluster.NewMembership(members, cfg.VirtualNodesPerPhysical)

	metricReg := metrics.NewRegistry(metricState, cfg.ReplicaID)
	if cfg.ReplicationFactor > 0 {
		metricReg.SetReplicaFanout(cfg.ReplicationFactor, func(key string, n int) []string {
			nodes := membership.ReplicaNodes(key, n)
			addrs := make([]string, len(nodes))
			for i, node := range nodes {
				addrs[i] = node.Address
			}
			return addrs
		})
	}

	s := &Server{
		cfg:            cfg,
		log:            log.WithFields(logrus.Fields{"component": "server", "replica_id": cfg.ReplicaID}),
		store:          store,
		manifest:       mgr,
		writeBuf:       writeBuf,
		router:         router,
		replState:      replState,
		gossiper:       gossiper,
		metricReg:      metricReg,
		metricSt:       metricState,
		metricGossiper: metricGossiper,
		membership:     membership,
		aclMgr:         acl.NewManager(),
		gauges:         newProcessGauges(cfg.ReplicaID),
	}
	return s, nil
}

func newObjectStore(cfg Config) (objectstore.Store, error) {
	clock := func() int64 { return time.Now().UnixMilli() }
	switch cfg.StoreType {
	case StoreMemory:
		return objectstore.NewMemoryStore(clock), nil
	case StoreLocalFS:
		return objectstore.NewFilesystemStore(cfg.DataPath), nil
	case StoreS3:
		return objectstore.NewS3Store(cfg.S3, &http.Client{Timeout: 30 * time.Second}), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.StoreType)
	}
}

// recover runs writebuffer.Recover for the data replica state, per
// spec.md §4.7. The metric registry's replica.State starts empty on
// every boot rather than being recovered from its own manifest/segment
// trail: metric data is inherently a rolling, re-derivable aggregate
// (spec.md's own Non-goals treat observability surfaces as secondary to
// the core key/value dataset), so persisting and recovering it would
// double the manifest/segment machinery for a value that re-converges
// from live traffic and peer gossip within one gossip interval anyway.
func (s *Server) recover(ctx context.Context) error {
	summary, err := writebuffer.Recover(ctx, s.store, s.manifest, s.cfg.ManifestPrefix+"/segments", s.cfg.ReplicaID, s.replState)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"segments_loaded": summary.SegmentsLoaded,
		"deltas_replayed": summary.DeltasReplayed,
		"keys":            summary.Keys,
	}).Info("recovery complete")

	// Rehydrate shard actors' live tables from the now-merged replica
	// state — recovery only populates s.replState via ApplyRemote, which
	// never touches the shard actors' in-memory maps the way a live
	// write's replicateIfWrite path does. Router.ApplyRemoteDelta already
	// knows how to re-merge a delta and, for LWW-kind keys, install the
	// result into the owning actor, so replaying every recovered cell
	// through it (a no-op re-merge, since the cell already reflects this
	// exact delta) is the simplest way to reach the same effect without a
	// second, router-specific rehydration path.
	for _, delta := range s.replState.Snapshot() {
		s.router.ApplyRemoteDelta(delta)
	}
	return nil
}

// Run performs recovery, starts the background tick loop, the gin HTTP
// surface, and the RESP accept loop, blocking until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.recovering.Store(true)
	if err := s.recover(runCtx); err != nil {
		return fmt.Errorf("server: recovery: %w", err)
	}
	s.recovering.Store(false)

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("server: listen :%d: %w", s.cfg.Port, err)
	}
	s.listener = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runBackground(runCtx)
	}()

	s.httpSrv = s.newHTTPServer()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithError(err).Error("gin http server exited")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(runCtx, ln)
	}()

	s.log.WithFields(logrus.Fields{"port": s.cfg.Port, "peers": s.cfg.Peers}).Info("server started")
	<-runCtx.Done()
	return nil
}

// Shutdown cancels the run context, closes both listeners, forces a
// final write-buffer flush, then waits (bounded by the context deadline)
// for the server's goroutines to exit before stopping the shard actors.
// It does not wait for the gossip outbox to empty: deltas still queued
// there when the gossip loop stops are not pushed to peers.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.httpSrv != nil {
		_ = s.httpSrv.Shutdown(ctx)
	}

	flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := s.writeBuf.Flush(flushCtx); err != nil {
		s.log.WithError(err).Warn("final write-buffer flush failed during shutdown")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	s.router.Stop()
	return nil
}

// runBackground runs the periodic work for four concerns:
// write-buffer flush ticks, gossip ticks (for both the data and metric
// replica states), expired-key eviction sweeps, and (if enabled)
// periodic checkpoint compaction.
func (s *Server) runBackground(ctx context.Context) {
	flushTicker := time.NewTicker(s.cfg.flushInterval())
	gossipTicker := time.NewTicker(s.cfg.gossipInterval())
	evictTicker := time.NewTicker(time.Second)
	defer flushTicker.Stop()
	defer gossipTicker.Stop()
	defer evictTicker.Stop()

	var checkpointTicker *time.Ticker
	var checkpointC <-chan time.Time
	if s.cfg.CheckpointIntervalMs > 0 {
		checkpointTicker = time.NewTicker(s.cfg.checkpointInterval())
		defer checkpointTicker.Stop()
		checkpointC = checkpointTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-flushTicker.C:
			if err := s.writeBuf.Tick(ctx, nowMs()); err != nil {
				s.log.WithError(err).Warn("write buffer tick failed")
			}
			s.refreshGauges()
		case <-gossipTicker.C:
			s.gossiper.Tick(ctx, nowMs())
			s.metricGossiper.Tick(ctx, nowMs())
			s.refreshGauges()
		case <-evictTicker.C:
			s.router.EvictExpired(nowMs())
		case <-checkpointC:
			s.runCheckpoint(ctx)
		}
	}
}

// runCheckpoint snapshots the data replica state to a checkpoint object
// and compacts the manifest, then best-effort deletes the segments the
// new checkpoint superseded, per spec.md §4.7's optional periodic
// compaction step.
func (s *Server) runCheckpoint(ctx context.Context) {
	before, err := s.manifest.Load(ctx)
	if err != nil {
		s.log.WithError(err).Warn("checkpoint: loading manifest failed")
		return
	}
	beforeKeys := make(map[string]bool, len(before.Segments))
	for _, seg := range before.Segments {
		beforeKeys[seg.Key] = true
	}

	info, err := writebuffer.Checkpoint(ctx, s.store, s.manifest, s.cfg.ManifestPrefix+"/checkpoints", s.replState, nowMs())
	if err != nil {
		s.log.WithError(err).Warn("checkpoint failed")
		return
	}
	if info.Key == "" {
		return // nothing to checkpoint
	}

	after, err := s.manifest.Load(ctx)
	if err != nil {
		s.log.WithError(err).Warn("checkpoint: reloading manifest after compaction failed")
		return
	}
	afterKeys := make(map[string]bool, len(after.Segments))
	for _, seg := range after.Segments {
		afterKeys[seg.Key] = true
	}
	writebuffer.DeleteCompactedSegments(ctx, s.store, beforeKeys, afterKeys)
	s.log.WithField("checkpoint_key", info.Key).Info("checkpoint complete")
}

func nowMs() int64 { return time.Now().UnixMilli() }

// acceptLoop is the RESP connection-accept loop spec.md §6 names as a
// thin collaborator: accept, hand off to a per-connection goroutine,
// repeat until the listener closes.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				s.log.WithError(err).Debug("accept failed")
				return
			}
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(ctx, conn)
		}()
	}
}

// serveConn reads pipelined RESP commands off one connection until EOF,
// a protocol error, or the connection's ACL auth-failure limit is hit,
// dispatching metric-extension verbs directly to internal/metrics.Registry
// and everything else through a per-connection txn.Conn. Metric commands
// are never queued inside MULTI/EXEC — they bypass txn.Conn's transaction
// machine entirely, a scope decision recorded in DESIGN.md since spec.md
// is silent on the interaction between the core command surface and the
// metric extension family — but they still run through txConn.Authorize
// so an unauthenticated or under-privileged connection can't read/write
// metric state either.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	reader := resp.NewReader(conn)
	txConn := txn.NewConnWithACL(s.router, s.aclMgr)
	log := s.log.WithField("remote_addr", conn.RemoteAddr().String())

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		args, err := reader.ReadCommand()
		if err != nil {
			if _, ok := err.(*resp.ErrProtocol); ok {
				_, _ = conn.Write(resp.Encode(resp.Err(err.Error())))
			}
			return
		}
		if len(args) == 0 {
			continue
		}

		cmd, err := command.Parse(args)
		if err != nil {
			_, _ = conn.Write(resp.Encode(resp.Errf("ERR %v", err)))
			continue
		}

		now := nowMs()
		var reply resp.Value
		if metrics.IsCommand(cmd.Name) {
			if errv, ok := txConn.Authorize(cmd); !ok {
				reply = errv
			} else {
				reply = s.metricReg.Execute(cmd.Name, cmd.Args, now)
			}
		} else {
			reply = txConn.Handle(cmd, now)
		}

		if _, err := conn.Write(resp.Encode(reply)); err != nil {
			log.WithError(err).Debug("write failed, closing connection")
			return
		}
		if txConn.ShouldClose() {
			log.Debug("closing connection after repeated auth failures")
			return
		}
	}
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
