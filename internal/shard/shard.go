// Package shard implements the fixed-arity shard actor array from
// spec.md §4.1: each shard is a goroutine owning one CommandExecutor and
// one mailbox channel, and a Router fans multi-key commands out across
// shards and recomposes their replies.
//
// Translated from original_source/src/production/sharded_actor.rs's
// Tokio mpsc::UnboundedReceiver + oneshot-reply pattern to Go channels;
// the struct/mutex-free actor shape otherwise follows
// johnjansen-torua/internal/shard/shard.go's Go idiom for a per-shard
// owned-state worker.
package shard

import (
	"github.com/cespare/xxhash/v2"

	"shardkv/internal/command"
	"shardkv/internal/replica"
	"shardkv/internal/resp"
)

// NumShards is fixed per spec.md §4.1's "fixed-arity array of actors
// (default 16)" and original_source/src/production/sharded_actor.rs's
// NUM_SHARDS constant.
const NumShards = 16

// HashKey maps a key to its owning shard index. xxhash gives a stable,
// seed-free 64-bit hash — the original's DefaultHasher has no Go stdlib
// equivalent, and xxhash already appears in the retrieval pack for
// exactly this purpose (see DESIGN.md).
func HashKey(key string) int {
	return int(xxhash.Sum64String(key) % NumShards)
}

// message is the shard actor's mailbox item. Exactly one of the reply
// channels is used per message kind; BatchCommand allocates none
// (fire-and-forget) per spec.md §4.1. kindInstall/kindDelete/kindPeek
// let the router move a raw Value across shards (the RENAME/RPOPLPUSH/
// LMOVE composed fallback) and let internal/replica's merge path land a
// remote delta's result into the owning shard's live table — both go
// through the same mailbox so they're serialized against every other
// command touching this shard, same as spec.md §4.1 requires.
type message struct {
	cmd        command.Command
	now        int64
	reply      chan resp.Value
	evictReply chan int
	peekReply  chan peekResult
	key        string
	value      command.Value
	expireAt   int64
	kind       msgKind
}

type peekResult struct {
	value command.Value
	ok    bool
}

type msgKind int

const (
	kindCommand msgKind = iota
	kindBatch
	kindEvict
	kindInstall
	kindDelete
	kindPeek
)

// writeCommands names every command whose successful execution mutates
// a key's value and therefore needs a replication delta minted, per
// spec.md §4.4. Read-only and purely administrative commands (GET,
// KEYS, PING, ...) are absent and never touch internal/replica.
var writeCommands = map[string]bool{
	"SET": true, "SETNX": true, "SETEX": true, "PSETEX": true,
	"APPEND": true, "GETSET": true, "SETRANGE": true, "GETDEL": true,
	"GETEX": true, "INCR": true, "DECR": true, "INCRBY": true,
	"DECRBY": true, "INCRBYFLOAT": true, "DEL": true, "UNLINK": true,
	"EXPIRE": true, "PEXPIRE": true, "EXPIREAT": true, "PEXPIREAT": true,
	"PERSIST": true, "LPUSH": true, "RPUSH": true, "LPOP": true,
	"RPOP": true, "LSET": true, "LTRIM": true, "SADD": true, "SREM": true,
	"SPOP": true, "HSET": true, "HDEL": true, "HINCRBY": true,
	"ZADD": true, "ZREM": true, "MSET": true, "MSETNX": true,
	"RENAME": true, "RENAMENX": true, "RPOPLPUSH": true, "LMOVE": true,
}

// Actor owns one CommandExecutor and processes its mailbox serially, so
// "commands execute atomically within the actor: no command observes a
// partially mutated state from another command" (spec.md §4.1) holds by
// construction — there is only ever one goroutine touching the
// executor.
type Actor struct {
	id       int
	executor *command.Executor
	mailbox  chan message
	done     chan struct{}

	repl      *replica.State
	replicaID string
}

func NewActor(id int) *Actor {
	a := &Actor{
		id:       id,
		executor: command.NewExecutor(),
		mailbox:  make(chan message, 256),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// Attach wires a shared replica.State into this actor so every future
// write command mints a ReplicationDelta, per spec.md §4.4. Must be
// called before the actor processes any write if replication is wanted
// from the start (internal/server does this once at startup, before
// accepting connections).
func (a *Actor) Attach(repl *replica.State, replicaID string) {
	a.repl = repl
	a.replicaID = replicaID
}

func (a *Actor) run() {
	for msg := range a.mailbox {
		switch msg.kind {
		case kindCommand:
			reply := a.executor.Exec(msg.cmd, msg.now)
			a.replicateIfWrite(msg.cmd, msg.now)
			if msg.reply != nil {
				msg.reply <- reply
			}
		case kindBatch:
			a.executor.Exec(msg.cmd, msg.now)
			a.replicateIfWrite(msg.cmd, msg.now)
		case kindEvict:
			n := a.executor.EvictExpired(msg.now)
			if msg.evictReply != nil {
				msg.evictReply <- n
			}
		case kindInstall:
			a.executor.ApplyReplicated(msg.key, msg.value, msg.expireAt)
		case kindDelete:
			a.executor.DeleteReplicated(msg.key)
		case kindPeek:
			v, ok := a.executor.Peek(msg.key, msg.now)
			if msg.peekReply != nil {
				msg.peekReply <- peekResult{value: v, ok: ok}
			}
		}
	}
	close(a.done)
}

// replicateIfWrite mints a ReplicationDelta for every key cmd just
// wrote, if this actor has replication attached. Keyless writes
// (FLUSHDB/FLUSHALL) are not in writeCommands and mint no delta, so a
// flush only clears the node it runs on.
func (a *Actor) replicateIfWrite(cmd command.Command, now int64) {
	if a.repl == nil || !writeCommands[cmd.Name] {
		return
	}
	keys := cmd.Keys()
	if keys == nil {
		if k, ok := cmd.Key(); ok {
			keys = []string{k}
		}
	}
	for _, key := range keys {
		v, ok := a.executor.Peek(key, now)
		var cell replica.Cell
		if ok {
			enc, err := command.EncodeValue(v)
			if err != nil {
				continue
			}
			cell = replica.NewLWWCell(enc, now, a.replicaID)
		} else {
			cell = replica.NewLWWTombstoneCell(now, a.replicaID)
		}
		a.repl.MintDelta(key, cell, now)
	}
}

// Stop closes the mailbox and waits for the actor's goroutine to drain
// it. Safe to call once.
func (a *Actor) Stop() {
	close(a.mailbox)
	<-a.done
}

// Exec sends cmd to the actor and blocks for its reply, mirroring the
// original's oneshot-per-command pattern.
func (a *Actor) Exec(cmd command.Command, now int64) resp.Value {
	reply := make(chan resp.Value, 1)
	a.mailbox <- message{cmd: cmd, now: now, reply: reply, kind: kindCommand}
	return <-reply
}

// ExecAsync is the fire-and-forget BatchCommand path: no reply channel
// is allocated.
func (a *Actor) ExecAsync(cmd command.Command, now int64) {
	a.mailbox <- message{cmd: cmd, now: now, kind: kindBatch}
}

// EvictExpired asks the actor to sweep its table and returns the count
// dropped.
func (a *Actor) EvictExpired(now int64) int {
	reply := make(chan int, 1)
	a.mailbox <- message{now: now, evictReply: reply, kind: kindEvict}
	return <-reply
}

// PeekValue reads key's current value through the actor's mailbox (so
// it's serialized against every in-flight write to this shard) without
// mutating anything. Used by the router's cross-shard RENAME/RPOPLPUSH/
// LMOVE composition and by callers seeding replication.
func (a *Actor) PeekValue(key string, now int64) (command.Value, bool) {
	reply := make(chan peekResult, 1)
	a.mailbox <- message{key: key, now: now, peekReply: reply, kind: kindPeek}
	r := <-reply
	return r.value, r.ok
}

// InstallValue writes v into key's slot directly, bypassing command
// dispatch. Used both to land an internal/replica merge result into
// this shard's live table and as the write half of the router's
// cross-shard move commands.
func (a *Actor) InstallValue(key string, v command.Value, expireAt int64) {
	a.mailbox <- message{key: key, value: v, expireAt: expireAt, kind: kindInstall}
}

// DeleteKey removes key directly, the delete counterpart to
// InstallValue for the same two callers.
func (a *Actor) DeleteKey(key string) {
	a.mailbox <- message{key: key, kind: kindDelete}
}
