// Package server wires every already-built component (shard router,
// replica state, gossiper, write buffer, manifest, object store, metric
// registry) into one running process: a RESP listener for the client
// protocol plus a small gin HTTP surface for health and inter-replica
// gossip calls.
//
// Flag/env loading follows ppriyankuu-godkv/cmd/server/main.go's shape
// (flags with env fallback, fatal on bad config) per spec.md §6's "CLI /
// config loading is a thin collaborator, not a designed component."
package server

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"shardkv/internal/objectstore"
	"shardkv/internal/replica"
)

// StoreType selects the objectstore.Store backend, per spec.md §6's
// STORE_TYPE knob.
type StoreType string

const (
	StoreMemory  StoreType = "memory"
	StoreLocalFS StoreType = "localfs"
	StoreS3      StoreType = "s3"
)

// Config is the enumerated configuration object spec.md §6 names as an
// external collaborator's concern, built once at startup and never
// mutated afterward.
type Config struct {
	Port      int
	ReplicaID string
	Addr      string // this replica's own host:port, advertised to peers

	StoreType StoreType
	DataPath  string // localfs
	S3        objectstore.S3Config

	Consistency             replica.Mode
	GossipIntervalMs        int
	ReplicationFactor       int
	Peers                   []string // host:port, comma-separated on the wire
	VirtualNodesPerPhysical int      // §9 replication config: hot-key fan-out ring density

	ManifestPrefix       string
	WriteBuffer          writeBufferConfig
	CheckpointIntervalMs int
}

// writeBufferConfig mirrors writebuffer.Config's fields so this package
// doesn't need to import writebuffer just to shape flags; server.go
// converts it at construction time.
type writeBufferConfig struct {
	MaxBufferBytes             uint64
	MaxDeltasPerSegment        uint32
	BackpressureThresholdBytes uint64
	FlushIntervalMs            int
}

// LoadConfig parses flags, then lets the matching environment variable
// (spec.md §6's exact list) override a flag's value whenever that
// variable is set and non-empty, whether or not the flag was given on
// the command line. The flag layout follows
// ppriyankuu-godkv/cmd/server/main.go; the env override is added since
// this repo also has to run under container orchestration where flags
// aren't practical to set per replica.
func LoadConfig(args []string) (Config, error) {
	fs := flag.NewFlagSet("shardkv-server", flag.ContinueOnError)
	port := fs.Int("port", 6379, "RESP listen port")
	replicaID := fs.String("replica-id", "", "unique replica id")
	addr := fs.String("addr", "", "this replica's advertised host:port")
	storeType := fs.String("store-type", "memory", "memory|localfs|s3")
	dataPath := fs.String("data-path", "/tmp/shardkv", "localfs data directory")
	s3Bucket := fs.String("s3-bucket", "", "S3 bucket")
	s3Prefix := fs.String("s3-prefix", "", "S3 key prefix")
	s3Endpoint := fs.String("s3-endpoint", "", "S3-compatible endpoint")
	s3Region := fs.String("s3-region", "", "S3 region")
	awsAccessKey := fs.String("aws-access-key-id", "", "AWS access key id")
	awsSecretKey := fs.String("aws-secret-access-key", "", "AWS secret access key")
	consistency := fs.String("consistency", "eventual", "eventual|causal")
	gossipIntervalMs := fs.Int("gossip-interval-ms", 200, "gossip tick interval in milliseconds")
	replicationFactor := fs.Int("replication-factor", 3, "replication factor")
	peers := fs.String("peers", "", "comma-separated host:port peer list")
	manifestPrefix := fs.String("manifest-prefix", "", "object store key prefix for manifest/segments/checkpoints")
	maxBufferBytes := fs.Uint64("wb-max-buffer-bytes", 8<<20, "write buffer max bytes before forced flush")
	maxDeltasPerSegment := fs.Uint("wb-max-deltas-per-segment", 10000, "write buffer max deltas before forced flush")
	backpressureBytes := fs.Uint64("wb-backpressure-threshold-bytes", 32<<20, "write buffer backpressure threshold")
	flushIntervalMs := fs.Int("wb-flush-interval-ms", 1000, "write buffer periodic flush interval in milliseconds")
	checkpointIntervalMs := fs.Int("checkpoint-interval-ms", 300000, "periodic checkpoint/compaction interval in milliseconds (0 disables)")
	vnodes := fs.Int("virtual-nodes-per-physical", 150, "virtual nodes per peer in the hot-key fan-out ring")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:                    envOverrideInt("PORT", *port),
		ReplicaID:               envOverrideStr("REPLICA_ID", *replicaID),
		Addr:                    *addr,
		StoreType:               StoreType(envOverrideStr("STORE_TYPE", *storeType)),
		DataPath:                envOverrideStr("DATA_PATH", *dataPath),
		Consistency:             parseConsistency(envOverrideStr("CONSISTENCY", *consistency)),
		GossipIntervalMs:        envOverrideInt("GOSSIP_INTERVAL_MS", *gossipIntervalMs),
		ReplicationFactor:       envOverrideInt("REPLICATION_FACTOR", *replicationFactor),
		VirtualNodesPerPhysical: envOverrideInt("VIRTUAL_NODES_PER_PHYSICAL", *vnodes),
		ManifestPrefix:          *manifestPrefix,
		CheckpointIntervalMs:    *checkpointIntervalMs,
		S3: objectstore.S3Config{
			Endpoint:        envOverrideStr("S3_ENDPOINT", *s3Endpoint),
			Region:          envOverrideStr("S3_REGION", *s3Region),
			Bucket:          envOverrideStr("S3_BUCKET", *s3Bucket),
			AccessKeyID:     envOverrideStr("AWS_ACCESS_KEY_ID", *awsAccessKey),
			SecretAccessKey: envOverrideStr("AWS_SECRET_ACCESS_KEY", *awsSecretKey),
		},
		WriteBuffer: writeBufferConfig{
			MaxBufferBytes:             *maxBufferBytes,
			MaxDeltasPerSegment:        uint32(*maxDeltasPerSegment),
			BackpressureThresholdBytes: *backpressureBytes,
			FlushIntervalMs:            *flushIntervalMs,
		},
	}
	if s3p := envOverrideStr("S3_PREFIX", *s3Prefix); s3p != "" {
		cfg.ManifestPrefix = s3p
	}
	if peerList := envOverrideStr("PEERS", *peers); peerList != "" {
		for _, p := range strings.Split(peerList, ",") {
			p = strings.TrimSpace(p)
			if p != "" {
				cfg.Peers = append(cfg.Peers, p)
			}
		}
	}

	if cfg.ReplicaID == "" {
		return Config{}, fmt.Errorf("server: REPLICA_ID is required")
	}
	if cfg.StoreType != StoreMemory && cfg.StoreType != StoreLocalFS && cfg.StoreType != StoreS3 {
		return Config{}, fmt.Errorf("server: invalid STORE_TYPE %q", cfg.StoreType)
	}
	if cfg.StoreType == StoreS3 && cfg.S3.Bucket == "" {
		return Config{}, fmt.Errorf("server: STORE_TYPE=s3 requires S3_BUCKET")
	}
	if cfg.Addr == "" {
		// The gossip/health HTTP surface defaults to one port above the
		// RESP listener so a bare `--port` run never collides the two.
		cfg.Addr = fmt.Sprintf("localhost:%d", cfg.Port+1)
	}
	if cfg.ManifestPrefix == "" {
		cfg.ManifestPrefix = cfg.ReplicaID
	}
	return cfg, nil
}

func (c Config) flushInterval() time.Duration {
	return time.Duration(c.WriteBuffer.FlushIntervalMs) * time.Millisecond
}

func (c Config) gossipInterval() time.Duration {
	return time.Duration(c.GossipIntervalMs) * time.Millisecond
}

func (c Config) checkpointInterval() time.Duration {
	return time.Duration(c.CheckpointIntervalMs) * time.Millisecond
}

func parseConsistency(s string) replica.Mode {
	if strings.EqualFold(s, "causal") {
		return replica.Causal
	}
	return replica.Eventual
}

func envOverrideStr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envOverrideInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
