// Package txn implements the per-connection transaction state machine
// from spec.md §4.2: MULTI/EXEC/DISCARD/WATCH/UNWATCH, optimistic
// concurrency via watched-key revalidation, and command queuing while
// inside a transaction.
//
// No single teacher file owns this shape; it's grounded on the request-
// dispatch loop in ppriyankuu-godkv/internal/api/handlers.go (one verb
// per call dispatched to the same store/replicator pair), generalized
// from a stateless HTTP handler into a persistent per-connection struct.
package txn

import (
	"strings"

	"shardkv/internal/acl"
	"shardkv/internal/command"
	"shardkv/internal/resp"
)

// Router is the subset of shard.Router a transaction machine needs —
// kept as an interface so tests can substitute a fake without spinning
// up real shard actors.
type Router interface {
	Dispatch(cmd command.Command, now int64) resp.Value
}

type watchedKey struct {
	key      string
	snapshot resp.Value
}

// Conn is one client connection's transaction state, plus (per spec.md
// §7) that connection's authentication state: which ACL user it has
// authenticated as, if any, and how many AUTH attempts have failed in a
// row.
type Conn struct {
	router Router
	acl    *acl.Manager

	inTransaction bool
	queue         []command.Command
	hadError      bool
	watched       []watchedKey

	authUser     string // name of the authenticated user, "" if none yet
	authFailures int
	closeConn    bool
}

// NewConn builds a Conn with its own private ACL registry (seeded with
// just the nopass, allow-all "default" user) — the right choice for
// tests and any caller that doesn't need ACL state shared across
// connections. Production wiring uses NewConnWithACL so every
// connection on a replica shares one Manager and ACL SETUSER takes
// effect for already-connected clients, not just new ones.
func NewConn(router Router) *Conn {
	return NewConnWithACL(router, acl.NewManager())
}

func NewConnWithACL(router Router, mgr *acl.Manager) *Conn {
	return &Conn{router: router, acl: mgr}
}

// Handle processes one decoded command against the connection's current
// transaction and authentication state and returns the reply to send
// back. now is the virtual (or wall) time to stamp any dispatched
// commands with.
func (c *Conn) Handle(cmd command.Command, now int64) resp.Value {
	if cmd.Name == "AUTH" {
		if c.inTransaction {
			return resp.Err("ERR AUTH is not allowed in transactions")
		}
		return c.handleAuth(cmd.Args)
	}

	if errv, ok := c.authorize(cmd); !ok {
		return errv
	}
	if cmd.Name == "ACL" {
		if c.inTransaction {
			return resp.Err("ERR ACL is not allowed in transactions")
		}
		return c.acl.ExecuteACL(cmd.Args, c.effectiveUser())
	}

	if !c.inTransaction {
		return c.handleOutside(cmd, now)
	}
	return c.handleInside(cmd, now)
}

// handleAuth implements spec.md §7's AUTH contract: on success, records
// the authenticated user and resets the failure counter; on failure,
// increments it and — once MaxAuthFailures consecutive failures have
// accumulated — marks the connection for closing, which
// internal/server's connection loop checks via ShouldClose after
// writing this reply.
func (c *Conn) handleAuth(args []string) resp.Value {
	var username, password string
	switch len(args) {
	case 1:
		username, password = "default", args[0]
	case 2:
		username, password = args[0], args[1]
	default:
		return resp.Err("ERR wrong number of arguments for 'auth' command")
	}

	user, err := c.acl.Authenticate(username, password)
	if err != nil {
		c.authFailures++
		if c.authFailures >= acl.MaxAuthFailures {
			c.closeConn = true
		}
		return resp.Err(err.Error())
	}
	c.authFailures = 0
	c.authUser = user.Name
	return resp.OK()
}

// ShouldClose reports whether too many consecutive AUTH failures have
// accumulated and internal/server's connection loop should close this
// connection after writing the current reply.
func (c *Conn) ShouldClose() bool { return c.closeConn }

// effectiveUser resolves the ACL user that governs the current command:
// the user this connection authenticated as (re-fetched by name on
// every call, so a concurrent ACL SETUSER/DELUSER takes effect
// immediately rather than only for new connections), or the "default"
// user when no AUTH has happened yet and default still allows that
// (nopass and enabled).
func (c *Conn) effectiveUser() *acl.User {
	if c.authUser != "" {
		u, ok := c.acl.GetUser(c.authUser)
		if !ok {
			return nil
		}
		return u
	}
	u, ok := c.acl.GetUser("default")
	if !ok || !u.Enabled || !u.NoPass {
		return nil
	}
	return u
}

// Authorize exposes the same NOAUTH/NOPERM gate Handle applies to every
// command, for callers outside the transaction machine — internal/server
// dispatches metric-extension verbs (MCOUNTER, MQUERY, ...) directly to
// internal/metrics.Registry rather than through Handle, but those
// commands still need to run under the connection's ACL, not bypass it.
func (c *Conn) Authorize(cmd command.Command) (resp.Value, bool) {
	return c.authorize(cmd)
}

// authorize checks cmd against the connection's effective user's
// command and key permissions, returning the NOAUTH/NOPERM RESP error
// to send back when denied. Applied once per Handle call, so a command
// queued inside MULTI is rejected at queue time exactly like an
// unknown-command queue entry, and a command dispatched outside a
// transaction is rejected before it ever reaches the shard router.
func (c *Conn) authorize(cmd command.Command) (resp.Value, bool) {
	user := c.effectiveUser()
	if user == nil {
		return resp.Err("NOAUTH Authentication required."), false
	}
	if !user.Commands.IsCommandPermitted(cmd.Name) {
		return resp.Errf("NOPERM User %s has no permissions to run the '%s' command", user.Name, strings.ToLower(cmd.Name)), false
	}
	if !user.Keys.AllowAll {
		if key, ok := cmd.Key(); ok && !user.Keys.IsKeyPermitted(key) {
			return resp.Errf("NOPERM No permissions to access a key"), false
		}
		for _, key := range cmd.Keys() {
			if !user.Keys.IsKeyPermitted(key) {
				return resp.Errf("NOPERM No permissions to access a key"), false
			}
		}
	}
	return resp.Value{}, true
}

func (c *Conn) handleOutside(cmd command.Command, now int64) resp.Value {
	switch cmd.Name {
	case "MULTI":
		c.inTransaction = true
		c.queue = nil
		c.hadError = false
		return resp.OK()
	case "EXEC":
		return resp.Err("ERR EXEC without MULTI")
	case "DISCARD":
		return resp.Err("ERR DISCARD without MULTI")
	case "WATCH":
		return c.handleWatch(cmd, now)
	case "UNWATCH":
		c.watched = nil
		return resp.OK()
	default:
		return c.router.Dispatch(cmd, now)
	}
}

func (c *Conn) handleInside(cmd command.Command, now int64) resp.Value {
	switch cmd.Name {
	case "EXEC":
		return c.exec(now)
	case "DISCARD":
		c.reset()
		return resp.OK()
	case "MULTI":
		return resp.Err("ERR MULTI calls can not be nested")
	case "WATCH":
		return resp.Err("ERR WATCH inside MULTI is not allowed")
	default:
		if !isKnownCommand(cmd.Name) {
			c.hadError = true
			return resp.Errf("ERR unknown command '%s'", cmd.Name)
		}
		c.queue = append(c.queue, cmd)
		return resp.Simple("QUEUED")
	}
}

func (c *Conn) handleWatch(cmd command.Command, now int64) resp.Value {
	if len(cmd.Args) == 0 {
		return resp.Errf("ERR wrong number of arguments for 'watch' command")
	}
	for _, key := range cmd.Args {
		getCmd, _ := command.Parse([]string{"GET", key})
		snapshot := c.router.Dispatch(getCmd, now)
		c.watched = append(c.watched, watchedKey{key: key, snapshot: snapshot})
	}
	return resp.OK()
}

func (c *Conn) exec(now int64) resp.Value {
	defer c.reset()

	if c.hadError {
		return resp.Err("EXECABORT Transaction discarded because of previous errors.")
	}
	if !c.revalidateWatches(now) {
		return resp.NilArr()
	}
	results := make([]resp.Value, len(c.queue))
	for i, cmd := range c.queue {
		results[i] = c.router.Dispatch(cmd, now)
	}
	return resp.Arr(results...)
}

// revalidateWatches reports whether every watched key's current value
// still equals its WATCH-time snapshot (value-equality, including
// absent-vs-absent equality, per spec.md §4.2).
func (c *Conn) revalidateWatches(now int64) bool {
	for _, w := range c.watched {
		getCmd, _ := command.Parse([]string{"GET", w.key})
		current := c.router.Dispatch(getCmd, now)
		if !valuesEqual(current, w.snapshot) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b resp.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case resp.BulkString:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		return string(a.Bulk) == string(b.Bulk)
	default:
		return string(resp.Encode(a)) == string(resp.Encode(b))
	}
}

func (c *Conn) reset() {
	c.inTransaction = false
	c.queue = nil
	c.hadError = false
	c.watched = nil
}

// InTransaction reports whether MULTI is currently open, for callers
// (e.g. the connection's RESP loop) that need to branch on it outside
// Handle — e.g. to decide whether a protocol error should also abort the
// transaction.
func (c *Conn) InTransaction() bool { return c.inTransaction }

func isKnownCommand(name string) bool {
	_, ok := knownCommands[name]
	return ok
}
