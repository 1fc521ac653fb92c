package app

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tabletop/core/bootstrap"
	coreconfig "github.com/m3rciful/tabletop/core/config"
	"github.com/m3rciful/tabletop/core/telegram/state"
	"github.com/m3rciful/tabletop/internal/config"
	"github.com/m3rciful/tabletop/internal/store/storetest"
)

func testApp(t *testing.T, adminIDs ...int64) *App {
	t.Helper()
	st := storetest.Open(t)
	cfg := &config.Config{}
	cfg.Telegram.AdminIDs = adminIDs
	cfg.Redis.SessionTTL = coreconfig.DefaultSessionTTL
	return &App{cfg: cfg, store: st, infra: &bootstrap.Result{DB: st.DB()}}
}

func TestSeedAdminsMarksKnownAndUnknownUsers(t *testing.T) {
	a := testApp(t, 1, 2)
	storetest.SeedUser(t, a.store, 1, "keeper")

	require.NoError(t, a.seedAdmins(t.Context()))
	// Seeding twice is harmless.
	require.NoError(t, a.seedAdmins(t.Context()))

	known, err := a.store.Users.Get(t.Context(), 1)
	require.NoError(t, err)
	assert.True(t, known.Admin)
	require.NotNil(t, known.Username)
	assert.Equal(t, "keeper", *known.Username)

	unknown, err := a.store.Users.Get(t.Context(), 2)
	require.NoError(t, err)
	assert.True(t, unknown.Admin)
	assert.Nil(t, unknown.Username)
}

func TestSessionsFollowRedisAvailability(t *testing.T) {
	a := testApp(t)
	assert.IsType(t, &state.MemoryStore{}, a.sessions("admin"))
	assert.NotContains(t, a.checks(), "redis")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	a.infra.Redis = rdb

	assert.IsType(t, &state.RedisStore{}, a.sessions("admin"))
	checks := a.checks()
	require.Contains(t, checks, "redis")
	assert.NoError(t, checks["redis"](t.Context()))
	assert.NoError(t, checks["db"](t.Context()))
}
