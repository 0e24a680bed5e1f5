package shadow_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shardkv/internal/acl"
	"shardkv/internal/dst"
	"shardkv/internal/dst/shadow"
)

// TestACLRulePropertyAgainstShadow drives a random sequence of ACL
// SETUSER-style rule tokens through both the real internal/acl user/
// permission machinery and shadow.ACLUserRef, then asserts every command
// and key permission check agrees. Grounded on
// original_source/src/security/acl_dst.rs's ShadowUser harness — "the
// shadow state is the specification" — translated from its seeded
// operation generator into this repo's dst.NewRNG-driven property test
// style (see TestListPropertyAgainstShadow in shadow_test.go).
func TestACLRulePropertyAgainstShadow(t *testing.T) {
	rng := dst.NewRNG(7)
	user := acl.NewUser("probe")
	ref := shadow.NewACLUserRef()

	rules := []string{
		"on", "off", "nopass", "resetpass",
		"allcommands", "nocommands", "allkeys", "resetkeys",
		"+@read", "+@write", "+@admin", "-@read", "-@write", "-@admin",
		"+GET", "+SET", "-GET", "-SET", "+HGET", "-HGET",
		">secret", ">other", "<secret",
		"~cache:*", "~user:*",
	}

	cmdPool := []string{"GET", "SET", "HGET", "DEL", "CONFIG", "ACL", "PING"}
	keyPool := []string{"cache:1", "cache:2", "user:42", "admin:root", "other"}

	for i := 0; i < 500; i++ {
		rule := rules[rng.Intn(len(rules))]
		require.NoError(t, acl.ApplyRule(user, rule), "rule=%s i=%d", rule, i)
		ref.ApplyRule(rule)

		assert.Equal(t, ref.Enabled, user.Enabled, "rule=%s i=%d enabled", rule, i)
		assert.Equal(t, ref.NoPass, user.NoPass, "rule=%s i=%d nopass", rule, i)

		for _, cmd := range cmdPool {
			want := ref.IsCommandPermitted(cmd)
			got := user.Commands.IsCommandPermitted(cmd)
			assert.Equal(t, want, got, "rule=%s i=%d cmd=%s", rule, i, cmd)
		}
		for _, key := range keyPool {
			want := ref.IsKeyPermitted(key)
			got := user.Keys.IsKeyPermitted(key)
			assert.Equal(t, want, got, "rule=%s i=%d key=%s", rule, i, key)
		}
	}
}

// TestACLPasswordVerificationAgainstShadow cross-checks password
// add/remove/verify across a random sequence of >pass/<pass/resetpass/
// nopass rules, independent of command/key permission state.
func TestACLPasswordVerificationAgainstShadow(t *testing.T) {
	rng := dst.NewRNG(8)
	user := acl.NewUser("probe")
	ref := shadow.NewACLUserRef()

	passwords := []string{"alpha", "bravo", "charlie", "delta"}
	rules := []string{"nopass", "resetpass"}

	for i := 0; i < 300; i++ {
		var rule string
		switch rng.Intn(4) {
		case 0:
			rule = ">" + passwords[rng.Intn(len(passwords))]
		case 1:
			rule = "<" + passwords[rng.Intn(len(passwords))]
		default:
			rule = rules[rng.Intn(len(rules))]
		}
		require.NoError(t, acl.ApplyRule(user, rule))
		ref.ApplyRule(rule)

		for _, pw := range passwords {
			want := ref.VerifyPassword(pw)
			got := user.VerifyPasswordHash(acl.HashPassword(pw))
			assert.Equal(t, want, got, "rule=%s i=%d pw=%s", rule, i, pw)
		}
	}
}

// TestACLManagerAuthenticateAgreesWithShadow property-tests
// Manager.Authenticate across a pool of users built from random rule
// sequences, checking every (username, password) combination's accept/
// reject outcome against the shadow model's own verify_password +
// enabled check — mirroring acl_dst.rs's AUTH operation.
func TestACLManagerAuthenticateAgreesWithShadow(t *testing.T) {
	rng := dst.NewRNG(9)
	mgr := acl.NewManager()
	shadowUsers := map[string]*shadow.ACLUserRef{"default": shadow.NewACLUserRefDefault()}

	names := []string{"alice", "bob", "carol"}
	passwords := []string{"hunter2", "correct-horse"}
	rules := []string{"on", "off", "nopass", "resetpass", ">hunter2", ">correct-horse", "<hunter2"}

	for i := 0; i < 200; i++ {
		name := names[rng.Intn(len(names))]
		existing, ok := mgr.GetUser(name)
		u := acl.NewUser(name)
		if ok {
			*u = *existing
		}
		ref, ok := shadowUsers[name]
		if !ok {
			ref = shadow.NewACLUserRef()
			shadowUsers[name] = ref
		}

		rule := rules[rng.Intn(len(rules))]
		require.NoError(t, acl.ApplyRule(u, rule), "i=%d", i)
		ref.ApplyRule(rule)
		mgr.SetUser(u)

		for _, pw := range passwords {
			_, err := mgr.Authenticate(name, pw)
			gotOK := err == nil
			wantOK := ref.Enabled && ref.VerifyPassword(pw)
			assert.Equal(t, wantOK, gotOK, "i=%d name=%s pw=%s", i, name, pw)
		}
	}
}

func TestACLCategoryRuleUnknownCategoryIsRejectedConsistently(t *testing.T) {
	for i := 0; i < 20; i++ {
		rule := fmt.Sprintf("+@bogus%d", i)
		user := acl.NewUser("probe")
		assert.Error(t, acl.ApplyRule(user, rule), "rule=%s", rule)
	}
}
