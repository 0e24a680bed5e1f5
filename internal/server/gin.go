package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shardkv/internal/gossip"
)

// newHTTPServer builds the gin engine for the health endpoint, the
// internal gossip RPC surface (both the data and metric replica
// states), and a Prometheus scrape endpoint — the same
// Logger()+Recovery() middleware stack
// ppriyankuu-godkv/cmd/server/main.go wires onto its gin.Engine,
// carried forward since gin stays the ambient HTTP surface even though
// the primary client protocol is RESP (§1's out-of-scope codec).
func (s *Server) newHTTPServer() *http.Server {
	engine := gin.New()
	engine.Use(gin.Logger(), gin.Recovery())

	engine.GET("/health", s.handleHealth)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
	engine.GET("/internal/cluster", s.handleCluster)

	registerGossipRoutes(engine.Group("/internal/gossip"), s.gossiper)
	registerGossipRoutes(engine.Group("/metrics/internal/gossip"), s.metricGossiper)

	return &http.Server{
		Addr:    s.httpAddr(),
		Handler: engine,
	}
}

// httpAddr derives the gin listen address from cfg.Addr, the same
// host:port peers dial for gossip calls.
func (s *Server) httpAddr() string {
	return s.cfg.Addr
}

// registerGossipRoutes wires one Gossiper's inbound handling onto push/
// digest/sync routes under group, used once for the data replica state
// and once (under a distinct path prefix) for the metric registry's.
func registerGossipRoutes(group *gin.RouterGroup, g *gossip.Gossiper) {
	group.POST("/push", func(c *gin.Context) {
		var msg gossip.PushDeltaMessage
		if err := c.ShouldBindJSON(&msg); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		g.HandlePush(msg)
		c.Status(http.StatusOK)
	})

	group.POST("/digest", func(c *gin.Context) {
		var req gossip.DigestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, g.HandleDigest(req))
	})

	group.POST("/sync", func(c *gin.Context) {
		var req gossip.SyncRequestMessage
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, g.HandleSync(req))
	})
}

// handleHealth implements spec.md §6's Health contract: 200 "OK" once
// recovery has completed and the write buffer isn't in backpressure;
// 503 otherwise.
func (s *Server) handleHealth(c *gin.Context) {
	if s.recovering.Load() {
		c.String(http.StatusServiceUnavailable, "recovering")
		return
	}
	if s.writeBuf.Lagging() {
		c.String(http.StatusServiceUnavailable, "durability-lagging")
		return
	}
	c.String(http.StatusOK, "OK")
}

// handleCluster reports the static peer membership (spec.md §6 PEERS)
// this replica was started with, the same nodes internal/cluster's ring
// consults to pick extra replication targets for hot keys (§4.5).
func (s *Server) handleCluster(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"self":  s.cfg.ReplicaID,
		"nodes": s.membership.All(),
	})
}
