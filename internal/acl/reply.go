package acl

import (
	"strings"

	"shardkv/internal/resp"
)

// ExecuteACL dispatches one ACL subcommand against m, the way
// internal/metrics.Registry.Execute dispatches MCOUNTER/MGAUGE/... —
// domain logic builds the wire reply directly rather than through an
// intermediate result type, matching this repo's existing convention
// for command-family registries. current is the caller's authenticated
// user (nil if unauthenticated), needed for WHOAMI.
//
// Grounded on original_source/src/security/acl/commands.rs's
// AclCommandHandler (handle_whoami/handle_list/handle_users/
// handle_getuser/handle_setuser/handle_deluser/handle_cat/
// handle_genpass), translated from Result<T, AclError>-returning
// helpers into RESP replies directly.
func (m *Manager) ExecuteACL(args []string, current *User) resp.Value {
	if len(args) == 0 {
		return resp.Err("ERR wrong number of arguments for 'acl' command")
	}
	sub := strings.ToUpper(args[0])
	rest := args[1:]

	switch sub {
	case "WHOAMI":
		return m.whoami(current)
	case "LIST":
		return m.list()
	case "USERS":
		return m.listUsers()
	case "CAT":
		return m.cat(rest)
	case "GENPASS":
		return m.genpass(rest)
	case "GETUSER":
		return m.getuser(rest)
	case "SETUSER":
		return m.setuser(rest)
	case "DELUSER":
		return m.deluser(rest)
	default:
		return resp.Errf("ERR Unknown ACL subcommand or wrong number of arguments for '%s'", strings.ToLower(sub))
	}
}

func (m *Manager) whoami(current *User) resp.Value {
	if current == nil {
		return resp.BulkStr("default")
	}
	return resp.BulkStr(current.Name)
}

func (m *Manager) list() resp.Value {
	users := m.ListUsers()
	items := make([]resp.Value, len(users))
	for i, u := range users {
		items[i] = resp.BulkStr(u.ToACLString())
	}
	return resp.Arr(items...)
}

func (m *Manager) listUsers() resp.Value {
	names := m.UserNames()
	items := make([]resp.Value, len(names))
	for i, n := range names {
		items[i] = resp.BulkStr(n)
	}
	return resp.Arr(items...)
}

func (m *Manager) cat(args []string) resp.Value {
	if len(args) == 0 {
		cats := Categories()
		items := make([]resp.Value, len(cats))
		for i, c := range cats {
			items[i] = resp.BulkStr(c)
		}
		return resp.Arr(items...)
	}
	cat, ok := ParseCategory(args[0])
	if !ok {
		return resp.Errf("ERR Unknown ACL cat '%s'", args[0])
	}
	cmds := cat.Commands()
	items := make([]resp.Value, len(cmds))
	for i, c := range cmds {
		items[i] = resp.BulkStr(strings.ToLower(c))
	}
	return resp.Arr(items...)
}

func (m *Manager) genpass(args []string) resp.Value {
	bits, err := parseBits(args)
	if err != nil {
		return resp.Err(err.Error())
	}
	pass, err := GenPass(bits)
	if err != nil {
		return resp.Err(err.Error())
	}
	return resp.BulkStr(pass)
}

func (m *Manager) getuser(args []string) resp.Value {
	if len(args) != 1 {
		return resp.Err("ERR wrong number of arguments for 'acl|getuser' command")
	}
	user, ok := m.GetUser(args[0])
	if !ok {
		return resp.NilArr()
	}

	flags := []string{"on"}
	if !user.Enabled {
		flags = []string{"off"}
	}
	if user.NoPass {
		flags = append(flags, "nopass")
	}
	flagItems := make([]resp.Value, len(flags))
	for i, f := range flags {
		flagItems[i] = resp.BulkStr(f)
	}

	passwords := make([]resp.Value, len(user.PasswordHashes))
	for i, h := range user.PasswordHashes {
		passwords[i] = resp.BulkStr("#" + h)
	}

	return resp.Arr(
		resp.BulkStr("flags"), resp.Arr(flagItems...),
		resp.BulkStr("passwords"), resp.Arr(passwords...),
		resp.BulkStr("commands"), resp.BulkStr(formatCommands(user)),
		resp.BulkStr("keys"), resp.BulkStr(formatKeys(user)),
		resp.BulkStr("channels"), resp.BulkStr("&*"),
	)
}

func (m *Manager) setuser(args []string) resp.Value {
	if len(args) < 1 {
		return resp.Err("ERR wrong number of arguments for 'acl|setuser' command")
	}
	username := args[0]
	if strings.Contains(username, " ") || strings.Contains(username, "\x00") {
		return resp.Err("ERR Usernames can't contain spaces or null characters")
	}

	existing, ok := m.GetUser(username)
	user := NewUser(username)
	if ok {
		*user = *existing
	}

	for _, rule := range args[1:] {
		if err := ApplyRule(user, rule); err != nil {
			return resp.Err(err.Error())
		}
	}

	m.SetUser(user)
	return resp.OK()
}

func (m *Manager) deluser(args []string) resp.Value {
	if len(args) == 0 {
		return resp.Err("ERR wrong number of arguments for 'acl|deluser' command")
	}
	var deleted int64
	for _, name := range args {
		ok, err := m.DelUser(name)
		if err != nil {
			return resp.Err(err.Error())
		}
		if ok {
			deleted++
		}
	}
	return resp.Int(deleted)
}

// formatCommands renders a user's command grant the way ACL GETUSER's
// "commands" field does, mirroring commands.rs's format_commands.
func formatCommands(user *User) string {
	var parts []string
	if user.Commands.AllowAll {
		parts = append(parts, "+@all")
	}
	parts = append(parts, sortedCategoryRules(user.Commands.Categories, "+@")...)
	parts = append(parts, sortedCategoryRules(user.Commands.DeniedCategories, "-@")...)
	parts = append(parts, sortedCommandRules(user.Commands.Allowed, "+")...)
	parts = append(parts, sortedCommandRules(user.Commands.Denied, "-")...)
	if len(parts) == 0 {
		return "-@all"
	}
	return strings.Join(parts, " ")
}

// formatKeys renders a user's key grant the way ACL GETUSER's "keys"
// field does, mirroring commands.rs's format_keys.
func formatKeys(user *User) string {
	if user.Keys.AllowAll {
		return "~*"
	}
	if len(user.Keys.Patterns) == 0 {
		return "(empty)"
	}
	parts := make([]string, len(user.Keys.Patterns))
	for i, p := range user.Keys.Patterns {
		parts[i] = "~" + p.Pattern
	}
	return strings.Join(parts, " ")
}
