// cmd/server is the main entrypoint for a shardkv replica.
//
// Configuration is entirely via flags/environment so a single binary can
// serve any replica in the cluster.
//
// Example — single replica:
//
//	./server --replica-id r1 --port 6379 --store-type memory
//
// Example — 3-replica cluster:
//
//	./server --replica-id r1 --port 6379 --addr localhost:7379 \
//	         --peers localhost:7380,localhost:7381
//	./server --replica-id r2 --port 6380 --addr localhost:7380 \
//	         --peers localhost:7379,localhost:7381
//	./server --replica-id r3 --port 6381 --addr localhost:7381 \
//	         --peers localhost:7379,localhost:7380
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"shardkv/internal/server"
)

func main() {
	cfg, err := server.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("FATAL: config: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	srv, err := server.New(cfg, logger)
	if err != nil {
		log.Fatalf("FATAL: building server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run(ctx) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-runErr:
		if err != nil {
			log.Fatalf("FATAL: server exited: %v", err)
		}
	case <-quit:
		logger.WithField("replica_id", cfg.ReplicaID).Info("shutting down")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Fatalf("FATAL: shutdown: %v", err)
		}
	}
}
