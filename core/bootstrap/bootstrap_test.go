package bootstrap_test

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/tabletop/core/bootstrap"
	coreconfig "github.com/m3rciful/tabletop/core/config"
	coredatabase "github.com/m3rciful/tabletop/core/database"
)

func sqliteConnect(coredatabase.Config) (*sqlx.DB, error) {
	return sqlx.Open("sqlite", ":memory:")
}

func noLogger(*coreconfig.Config) error { return nil }

func TestRunConnectsRedisAndMigrates(t *testing.T) {
	mr := miniredis.RunT(t)
	migrations := fstest.MapFS{"000001_init.up.sql": {Data: []byte("SELECT 1;")}}

	var migrated fs.FS
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     &coreconfig.Config{Redis: coreconfig.RedisConfig{Addr: mr.Addr()}},
		Migrations: migrations,
		LoggerInit: noLogger,
		Connect:    sqliteConnect,
		Migrate: func(_ coredatabase.Config, fsys fs.FS) error {
			migrated = fsys
			return nil
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Close() })

	assert.Equal(t, migrations, migrated)
	require.NotNil(t, res.Redis)
	require.NoError(t, res.Redis.Ping(context.Background()).Err())
}

func TestRunWithoutRedis(t *testing.T) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect:    sqliteConnect,
		Migrate:    func(coredatabase.Config, fs.FS) error { return nil },
	})
	require.NoError(t, err)
	assert.Nil(t, res.Redis)
	require.NoError(t, res.Close())
}

func TestRunStopsOnMigrationFailure(t *testing.T) {
	boom := errors.New("bad migration")
	_, err := bootstrap.Run(bootstrap.Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect:    sqliteConnect,
		Migrate:    func(coredatabase.Config, fs.FS) error { return boom },
	})
	require.ErrorIs(t, err, boom)
}

func TestModulesSeedInOrder(t *testing.T) {
	var order []string
	boom := errors.New("seed failed")
	m := bootstrap.Modules{Seeders: []bootstrap.Seeder{
		bootstrap.Named("admins", bootstrap.SeederFunc(func(context.Context) error {
			order = append(order, "admins")
			return nil
		})),
		bootstrap.SeederFunc(func(context.Context) error {
			order = append(order, "broken")
			return boom
		}),
		bootstrap.SeederFunc(func(context.Context) error {
			order = append(order, "never")
			return nil
		}),
	}}
	err := m.Seed(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "seeder_1")
	assert.Equal(t, []string{"admins", "broken"}, order)
}
