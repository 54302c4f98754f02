package features_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DTADMI/gamehub-api/internal/features"
	"github.com/DTADMI/gamehub-api/internal/identity"
)

func TestDefaults(t *testing.T) {
	svc := features.NewService(features.MapSource{})

	assert.True(t, svc.IsEnabled(features.FlagRealtime))
	assert.True(t, svc.IsEnabled(features.FlagChat))
	assert.True(t, svc.IsEnabled(features.FlagSnakeLeaderboard))
	assert.False(t, svc.IsEnabled(features.FlagAntiCheat))
	assert.False(t, svc.IsEnabled(features.FlagSnake3D))
	assert.False(t, svc.IsEnabled(features.FlagBreakoutBeta))
	assert.False(t, svc.IsEnabled("no_such_flag"))
}

func TestEnvDefaults(t *testing.T) {
	svc := features.NewService(features.MapSource{
		"FEATURE_CHAT_ENABLED_DEFAULT":       "false",
		"FEATURE_ANTI_CHEAT_ENABLED_DEFAULT": "true",
	})

	assert.False(t, svc.IsEnabled(features.FlagChat))
	assert.True(t, svc.IsEnabled(features.FlagAntiCheat))
}

func TestToggleOverridesDefault(t *testing.T) {
	svc := features.NewService(features.MapSource{})

	require.NoError(t, svc.Toggle(features.FlagAntiCheat, true))
	assert.True(t, svc.IsEnabled(features.FlagAntiCheat))

	require.NoError(t, svc.Toggle(features.FlagAntiCheat, false))
	assert.False(t, svc.IsEnabled(features.FlagAntiCheat))

	assert.Error(t, svc.Toggle("no_such_flag", true))
}

func TestDisabledBaseShortCircuitsSegments(t *testing.T) {
	svc := features.NewService(features.MapSource{
		"FEATURE_SNAKE_3D_MODE_ALLOW_EMAILS": "alice@example.com",
	})
	alice := identity.Identity{UserID: 1, Email: "alice@example.com", Roles: []string{"ROLE_USER"}}

	// snake_3d_mode defaults to off; an allow-list cannot turn it on.
	assert.False(t, svc.IsEnabledFor(features.FlagSnake3D, alice))
}

func TestRoleSegment(t *testing.T) {
	svc := features.NewService(features.MapSource{
		"FEATURE_CHAT_ENABLED_ALLOW_ROLES": "ROLE_ADMIN",
	})

	admin := identity.Identity{UserID: 1, Email: "root@example.com", Roles: []string{"ROLE_ADMIN", "ROLE_USER"}}
	player := identity.Identity{UserID: 2, Email: "bob@example.com", Roles: []string{"ROLE_USER"}}

	assert.True(t, svc.IsEnabledFor(features.FlagChat, admin))
	assert.False(t, svc.IsEnabledFor(features.FlagChat, player))
	assert.False(t, svc.IsEnabledFor(features.FlagChat, identity.Guest()))
}

func TestEmailSegment(t *testing.T) {
	svc := features.NewService(features.MapSource{
		"FEATURE_CHAT_ENABLED_ALLOW_EMAILS": "alice@example.com, bob@example.com",
	})

	assert.True(t, svc.IsEnabledFor(features.FlagChat, identity.Identity{UserID: 1, Email: "alice@example.com"}))
	assert.False(t, svc.IsEnabledFor(features.FlagChat, identity.Identity{UserID: 3, Email: "carol@example.com"}))
	assert.False(t, svc.IsEnabledFor(features.FlagChat, identity.Guest()))
}

func TestDomainSegmentAcceptsSubdomains(t *testing.T) {
	svc := features.NewService(features.MapSource{
		"FEATURE_CHAT_ENABLED_ALLOW_EMAIL_DOMAINS": "example.com",
	})

	assert.True(t, svc.IsEnabledFor(features.FlagChat, identity.Identity{UserID: 1, Email: "a@example.com"}))
	assert.True(t, svc.IsEnabledFor(features.FlagChat, identity.Identity{UserID: 2, Email: "a@sub.example.com"}))
	assert.True(t, svc.IsEnabledFor(features.FlagChat, identity.Identity{UserID: 3, Email: "a@EXAMPLE.com"}))
	assert.False(t, svc.IsEnabledFor(features.FlagChat, identity.Identity{UserID: 4, Email: "a@other.com"}))
	assert.False(t, svc.IsEnabledFor(features.FlagChat, identity.Identity{UserID: 5, Email: "a@notexample.com"}))
	assert.False(t, svc.IsEnabledFor(features.FlagChat, identity.Guest()))
}

func TestRolloutBoundaries(t *testing.T) {
	alice := identity.Identity{UserID: 1, Email: "alice@example.com"}

	full := features.NewService(features.MapSource{
		"FEATURE_CHAT_ENABLED_ROLLOUT_PERCENT": "100",
	})
	assert.True(t, full.IsEnabledFor(features.FlagChat, alice))

	none := features.NewService(features.MapSource{
		"FEATURE_CHAT_ENABLED_ROLLOUT_PERCENT": "0",
	})
	assert.False(t, none.IsEnabledFor(features.FlagChat, alice))

	clamped := features.NewService(features.MapSource{
		"FEATURE_CHAT_ENABLED_ROLLOUT_PERCENT": "250",
	})
	assert.True(t, clamped.IsEnabledFor(features.FlagChat, alice))

	garbage := features.NewService(features.MapSource{
		"FEATURE_CHAT_ENABLED_ROLLOUT_PERCENT": "lots",
	})
	assert.True(t, garbage.IsEnabledFor(features.FlagChat, alice))
}

func TestRolloutIsDeterministicPerCaller(t *testing.T) {
	// Buckets: alice@example.com=99, bob@example.com=37, carol@corp.io=3,
	// guest=51. A 40% rollout therefore includes bob and carol but not
	// alice or guests, on every evaluation.
	svc := features.NewService(features.MapSource{
		"FEATURE_CHAT_ENABLED_ROLLOUT_PERCENT": "40",
	})

	alice := identity.Identity{UserID: 1, Email: "alice@example.com"}
	bob := identity.Identity{UserID: 2, Email: "bob@example.com"}
	carol := identity.Identity{UserID: 3, Email: "carol@corp.io"}

	for i := 0; i < 5; i++ {
		assert.False(t, svc.IsEnabledFor(features.FlagChat, alice))
		assert.True(t, svc.IsEnabledFor(features.FlagChat, bob))
		assert.True(t, svc.IsEnabledFor(features.FlagChat, carol))
		assert.False(t, svc.IsEnabledFor(features.FlagChat, identity.Guest()))
	}
}

func TestStableBucketKnownValues(t *testing.T) {
	assert.Equal(t, 51, features.StableBucket("guest"))
	assert.Equal(t, 99, features.StableBucket("alice@example.com"))
	assert.Equal(t, 37, features.StableBucket("bob@example.com"))
	assert.Equal(t, 3, features.StableBucket("carol@corp.io"))
}

func TestBucketsStayInRange(t *testing.T) {
	keys := []string{"", "guest", "a", "alice@example.com", "z@z.z", "long-key-with-some-entropy-0123456789"}
	for _, key := range keys {
		stable := features.StableBucket(key)
		assert.GreaterOrEqual(t, stable, 0, "stable bucket for %q", key)
		assert.Less(t, stable, 100, "stable bucket for %q", key)

		fallback := features.FallbackBucket(key)
		assert.GreaterOrEqual(t, fallback, 0, "fallback bucket for %q", key)
		assert.Less(t, fallback, 100, "fallback bucket for %q", key)
	}

	// Deterministic across calls.
	assert.Equal(t, features.FallbackBucket("guest"), features.FallbackBucket("guest"))
}

func TestEvaluateAllCoversKnownFlags(t *testing.T) {
	svc := features.NewService(features.MapSource{})
	require.NoError(t, svc.Toggle(features.FlagBreakoutBeta, true))

	result := svc.EvaluateAll(identity.Guest())
	require.Len(t, result, len(svc.KnownFlags()))
	assert.True(t, result[features.FlagRealtime])
	assert.True(t, result[features.FlagBreakoutBeta])
	assert.False(t, result[features.FlagAntiCheat])
}

func TestSnapshotIgnoresSegments(t *testing.T) {
	svc := features.NewService(features.MapSource{
		"FEATURE_CHAT_ENABLED_ALLOW_ROLES": "ROLE_ADMIN",
	})

	snapshot := svc.Snapshot()
	assert.True(t, snapshot[features.FlagChat])
	assert.False(t, svc.IsEnabledFor(features.FlagChat, identity.Guest()))
}
