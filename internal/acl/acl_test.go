package acl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardkv/internal/resp"
)

func TestCommandCategoryParse(t *testing.T) {
	cat, ok := ParseCategory("@read")
	require.True(t, ok)
	assert.Equal(t, CategoryRead, cat)

	cat, ok = ParseCategory("write")
	require.True(t, ok)
	assert.Equal(t, CategoryWrite, cat)

	cat, ok = ParseCategory("@ALL")
	require.True(t, ok)
	assert.Equal(t, CategoryAll, cat)

	_, ok = ParseCategory("invalid")
	assert.False(t, ok)
}

func TestCommandPermissionsPrecedence(t *testing.T) {
	perms := DenyAllPermissions()
	perms.AddCategory(CategoryRead)

	assert.True(t, perms.IsCommandPermitted("GET"))
	assert.True(t, perms.IsCommandPermitted("MGET"))
	assert.False(t, perms.IsCommandPermitted("SET"))
	assert.False(t, perms.IsCommandPermitted("DEL"))

	perms.AllowCommand("SET")
	assert.True(t, perms.IsCommandPermitted("SET"))

	perms.DenyCommand("GET")
	assert.False(t, perms.IsCommandPermitted("GET"), "explicit deny takes precedence over an allowed category")
}

func TestUserPasswordVerification(t *testing.T) {
	user := NewUser("test")
	user.AddPassword("secret")

	assert.True(t, user.VerifyPasswordHash(HashPassword("secret")))
	assert.False(t, user.VerifyPasswordHash(HashPassword("wrong")))
}

func TestNopassUserAcceptsAnyPassword(t *testing.T) {
	user := NewUser("test")
	user.NoPass = true

	assert.True(t, user.VerifyPasswordHash("anything"))
	assert.True(t, user.VerifyPasswordHash(""))
}

func TestApplyRuleBuildsUpPermissions(t *testing.T) {
	user := NewUser("test")

	require.NoError(t, ApplyRule(user, "on"))
	require.NoError(t, ApplyRule(user, ">secret"))
	assert.True(t, user.Enabled)
	assert.Len(t, user.PasswordHashes, 1)

	require.NoError(t, ApplyRule(user, "+@read"))
	_, hasRead := user.Commands.Categories[CategoryRead]
	assert.True(t, hasRead)

	require.NoError(t, ApplyRule(user, "~user:*"))
	require.Len(t, user.Keys.Patterns, 1)
	assert.True(t, user.Keys.IsKeyPermitted("user:123"))
	assert.False(t, user.Keys.IsKeyPermitted("admin:secret"))
}

func TestApplyRuleRejectsUnknownCategory(t *testing.T) {
	user := NewUser("test")
	err := ApplyRule(user, "+@bogus")
	assert.Error(t, err)
}

func TestManagerAuthenticateHandlesWrongAndNoPass(t *testing.T) {
	m := NewManager()

	alice := NewUser("alice")
	alice.Enabled = true
	alice.AddPassword("secret")
	m.SetUser(alice)

	u, err := m.Authenticate("alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name)

	_, err = m.Authenticate("alice", "wrong")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "WRONGPASS")

	_, err = m.Authenticate("default", "anything")
	require.NoError(t, err, "default user is nopass by default")
}

func TestManagerSetUserViaRules(t *testing.T) {
	m := NewManager()
	got := m.ExecuteACL([]string{"SETUSER", "newuser", "on", ">password", "+@read", "~cache:*"}, nil)
	assert.Equal(t, resp.OK(), got)

	user, ok := m.GetUser("newuser")
	require.True(t, ok)
	assert.True(t, user.Enabled)
	_, hasRead := user.Commands.Categories[CategoryRead]
	assert.True(t, hasRead)
	assert.True(t, user.Keys.IsKeyPermitted("cache:foo"))
}

func TestManagerDelUserCannotRemoveDefault(t *testing.T) {
	m := NewManager()
	got := m.ExecuteACL([]string{"DELUSER", "default"}, nil)
	assert.Equal(t, resp.Error, got.Kind)
}

func TestExecuteACLWhoamiReflectsCurrentUser(t *testing.T) {
	m := NewManager()
	assert.Equal(t, resp.BulkStr("default"), m.ExecuteACL([]string{"WHOAMI"}, nil))

	alice := NewUser("alice")
	assert.Equal(t, resp.BulkStr("alice"), m.ExecuteACL([]string{"WHOAMI"}, alice))
}

func TestExecuteACLUsersListsSortedNames(t *testing.T) {
	m := NewManager()
	m.SetUser(NewUser("zara"))
	m.SetUser(NewUser("alice"))

	got := m.ExecuteACL([]string{"USERS"}, nil)
	require.Equal(t, resp.Array, got.Kind)
	require.Len(t, got.Items, 3)
	assert.Equal(t, resp.BulkStr("alice"), got.Items[0])
	assert.Equal(t, resp.BulkStr("default"), got.Items[1])
	assert.Equal(t, resp.BulkStr("zara"), got.Items[2])
}

func TestExecuteACLCatListsCategoryCommands(t *testing.T) {
	m := NewManager()
	got := m.ExecuteACL([]string{"CAT", "set"}, nil)
	require.Equal(t, resp.Array, got.Kind)
	assert.Contains(t, got.Items, resp.BulkStr("sadd"))
}

func TestExecuteACLGenpassRejectsOutOfRangeBits(t *testing.T) {
	m := NewManager()
	got := m.ExecuteACL([]string{"GENPASS", "99999"}, nil)
	assert.Equal(t, resp.Error, got.Kind)
}

func TestExecuteACLGetuserOnMissingUserReturnsNil(t *testing.T) {
	m := NewManager()
	got := m.ExecuteACL([]string{"GETUSER", "nobody"}, nil)
	assert.True(t, got.IsNil())
}
