package acl

import (
	"sort"
	"strings"

	"shardkv/internal/command"
)

// CommandPermissions mirrors original_source's CommandPermissions: an
// allow_all fallback, explicit per-command allow/deny sets (which take
// precedence over categories), and allow/deny category sets.
type CommandPermissions struct {
	AllowAll         bool
	Allowed          map[string]struct{}
	Denied           map[string]struct{}
	Categories       map[CommandCategory]struct{}
	DeniedCategories map[CommandCategory]struct{}
}

func newPermissions(allowAll bool) CommandPermissions {
	return CommandPermissions{
		AllowAll:         allowAll,
		Allowed:          make(map[string]struct{}),
		Denied:           make(map[string]struct{}),
		Categories:       make(map[CommandCategory]struct{}),
		DeniedCategories: make(map[CommandCategory]struct{}),
	}
}

// AllowAllPermissions grants every command, the default user's starting
// state.
func AllowAllPermissions() CommandPermissions { return newPermissions(true) }

// DenyAllPermissions denies every command until rules grant some back,
// a freshly-created user's starting state.
func DenyAllPermissions() CommandPermissions { return newPermissions(false) }

func (p *CommandPermissions) AddCategory(cat CommandCategory) {
	p.Categories[cat] = struct{}{}
}

// RemoveCategory both withdraws a previously allowed category and
// records an explicit denial, matching original_source's
// remove_category (a bare "-@cat" after "+@cat" actively blocks the
// category rather than merely un-granting it).
func (p *CommandPermissions) RemoveCategory(cat CommandCategory) {
	delete(p.Categories, cat)
	p.DeniedCategories[cat] = struct{}{}
}

func (p *CommandPermissions) AllowCommand(cmd string) {
	cmd = strings.ToUpper(cmd)
	delete(p.Denied, cmd)
	p.Allowed[cmd] = struct{}{}
}

func (p *CommandPermissions) DenyCommand(cmd string) {
	cmd = strings.ToUpper(cmd)
	delete(p.Allowed, cmd)
	p.Denied[cmd] = struct{}{}
}

// IsCommandPermitted applies original_source's exact precedence order:
// explicit deny, then explicit allow, then denied categories, then
// allowed categories (CategoryAll short-circuits), then the allow_all
// fallback.
func (p *CommandPermissions) IsCommandPermitted(cmd string) bool {
	cmd = strings.ToUpper(cmd)

	if _, ok := p.Denied[cmd]; ok {
		return false
	}
	if _, ok := p.Allowed[cmd]; ok {
		return true
	}
	for cat := range p.DeniedCategories {
		if cat.Contains(cmd) {
			return false
		}
	}
	for cat := range p.Categories {
		if cat == CategoryAll || cat.Contains(cmd) {
			return true
		}
	}
	return p.AllowAll
}

// KeyPattern is one glob pattern a user is allowed to touch, optionally
// restricted to read-only or write-only access via ACL's "%R~"/"%W~"
// rule forms. Read/write direction isn't enforced independently here
// (this repo doesn't classify every command as read-or-write the way
// Redis's command table does) — the flags are recorded for GETUSER/LIST
// fidelity, and IsKeyPermitted treats any matching pattern as sufficient
// regardless of direction.
type KeyPattern struct {
	Pattern   string
	ReadOnly  bool
	WriteOnly bool
}

func NewKeyPattern(pattern string) KeyPattern { return KeyPattern{Pattern: pattern} }
func ReadOnlyKeyPattern(pattern string) KeyPattern {
	return KeyPattern{Pattern: pattern, ReadOnly: true}
}
func WriteOnlyKeyPattern(pattern string) KeyPattern {
	return KeyPattern{Pattern: pattern, WriteOnly: true}
}

// KeyPatterns is a user's key-space access grant: either every key, or a
// list of glob patterns (matched with the same syntax internal/command
// uses for KEYS/SCAN, via command.GlobMatch).
type KeyPatterns struct {
	AllowAll bool
	Patterns []KeyPattern
}

func AllowAllKeys() KeyPatterns { return KeyPatterns{AllowAll: true} }
func DenyAllKeys() KeyPatterns  { return KeyPatterns{} }

func (k *KeyPatterns) AddPattern(p KeyPattern) {
	k.Patterns = append(k.Patterns, p)
}

func (k *KeyPatterns) Reset() {
	k.AllowAll = false
	k.Patterns = nil
}

func (k *KeyPatterns) IsKeyPermitted(key string) bool {
	if k.AllowAll {
		return true
	}
	for _, p := range k.Patterns {
		if command.GlobMatch(p.Pattern, key) {
			return true
		}
	}
	return false
}

// User is one ACL account: a name, zero or more SHA256 password hashes,
// an enabled flag, command permissions, and key permissions. Mirrors
// original_source's AclUser.
type User struct {
	Name           string
	PasswordHashes []string
	Enabled        bool
	Commands       CommandPermissions
	Keys           KeyPatterns
	NoPass         bool
}

// NewUser creates a disabled user with no permissions, matching
// AclUser::new — rules applied via ACL SETUSER build it up from there.
func NewUser(name string) *User {
	return &User{
		Name:     name,
		Commands: DenyAllPermissions(),
		Keys:     DenyAllKeys(),
	}
}

// DefaultUser is the pre-existing "default" account: enabled, every
// command, every key, nopass — matching AclUser::default_user and the
// prior no-op AUTH's observable behavior for any deployment that never
// calls ACL SETUSER default.
func DefaultUser() *User {
	return &User{
		Name:     "default",
		Enabled:  true,
		Commands: AllowAllPermissions(),
		Keys:     AllowAllKeys(),
		NoPass:   true,
	}
}

func (u *User) AddPassword(password string)    { u.AddPasswordHash(HashPassword(password)) }
func (u *User) RemovePassword(password string) { u.RemovePasswordHash(HashPassword(password)) }

func (u *User) AddPasswordHash(hash string) {
	for _, h := range u.PasswordHashes {
		if h == hash {
			return
		}
	}
	u.PasswordHashes = append(u.PasswordHashes, hash)
}

func (u *User) RemovePasswordHash(hash string) {
	out := u.PasswordHashes[:0]
	for _, h := range u.PasswordHashes {
		if h != hash {
			out = append(out, h)
		}
	}
	u.PasswordHashes = out
}

func (u *User) ClearPasswords() { u.PasswordHashes = nil }

// VerifyPasswordHash reports whether hash matches one of the user's
// stored hashes, or trivially succeeds when NoPass is set.
func (u *User) VerifyPasswordHash(hash string) bool {
	if u.NoPass {
		return true
	}
	for _, h := range u.PasswordHashes {
		if h == hash {
			return true
		}
	}
	return false
}

// Reset restores a user to AclUser::reset's disabled, no-permissions
// state, keeping only the name.
func (u *User) Reset() {
	u.PasswordHashes = nil
	u.Enabled = false
	u.Commands = DenyAllPermissions()
	u.Keys = DenyAllKeys()
	u.NoPass = false
}

// ToACLString renders the user the way ACL LIST does, mirroring
// AclUser::to_acl_string's field order.
func (u *User) ToACLString() string {
	parts := []string{"user " + u.Name}

	if u.Enabled {
		parts = append(parts, "on")
	} else {
		parts = append(parts, "off")
	}
	if u.NoPass {
		parts = append(parts, "nopass")
	}
	for _, h := range u.PasswordHashes {
		parts = append(parts, "#"+h)
	}

	if u.Commands.AllowAll {
		parts = append(parts, "+@all")
	}
	parts = append(parts, sortedCategoryRules(u.Commands.Categories, "+@")...)
	parts = append(parts, sortedCategoryRules(u.Commands.DeniedCategories, "-@")...)
	parts = append(parts, sortedCommandRules(u.Commands.Allowed, "+")...)
	parts = append(parts, sortedCommandRules(u.Commands.Denied, "-")...)

	if u.Keys.AllowAll {
		parts = append(parts, "~*")
	} else {
		for _, p := range u.Keys.Patterns {
			parts = append(parts, "~"+p.Pattern)
		}
	}

	return strings.Join(parts, " ")
}

func sortedCategoryRules(set map[CommandCategory]struct{}, prefix string) []string {
	names := make([]string, 0, len(set))
	for cat := range set {
		names = append(names, prefix+string(cat))
	}
	sort.Strings(names)
	return names
}

func sortedCommandRules(set map[string]struct{}, prefix string) []string {
	names := make([]string, 0, len(set))
	for cmd := range set {
		names = append(names, prefix+strings.ToLower(cmd))
	}
	sort.Strings(names)
	return names
}
