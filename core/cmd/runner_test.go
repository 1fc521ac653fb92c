package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/tabletop/core/config"
	coretelegram "github.com/m3rciful/tabletop/core/telegram"
)

type fakeApp struct {
	ran    bool
	closed bool
	err    error
}

func (f *fakeApp) Run(ctx context.Context, hooks Hooks) error {
	f.ran = true
	rt := coretelegram.Runtime{Name: "admin", Bot: &tele.Bot{Me: &tele.User{Username: "dm_bot"}}}
	if err := hooks.OnStart(ctx, rt); err != nil {
		return err
	}
	return errors.Join(f.err, hooks.OnStop(ctx, rt))
}

func (f *fakeApp) Close() error {
	f.closed = true
	return nil
}

func TestRunRequiresConfigPath(t *testing.T) {
	t.Setenv("TABLETOP_TEST_CONFIG", "")
	err := Run(Options{
		ConfigEnvVar: "TABLETOP_TEST_CONFIG",
		LoadConfig:   func(string) (ConfigCarrier, error) { return &coreconfig.Config{}, nil },
		Bootstrap:    func(ConfigCarrier) (Application, error) { return &fakeApp{}, nil },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TABLETOP_TEST_CONFIG")
}

func TestRunUsesEnvPathAndClosesApp(t *testing.T) {
	t.Setenv("TABLETOP_TEST_CONFIG", "from-env.yaml")
	app := &fakeApp{err: errors.New("bot stopped")}
	var loaded string
	err := Run(Options{
		ConfigEnvVar:      "TABLETOP_TEST_CONFIG",
		DefaultConfigPath: "default.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loaded = path
			return &coreconfig.Config{}, nil
		},
		Bootstrap:      func(ConfigCarrier) (Application, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		Context:        t.Context(),
	})
	require.ErrorContains(t, err, "bot stopped")
	assert.Equal(t, "from-env.yaml", loaded)
	assert.True(t, app.ran)
	assert.True(t, app.closed)
}

func TestRunReportsBootstrapFailure(t *testing.T) {
	err := Run(Options{
		DefaultConfigPath: "default.yaml",
		LoadConfig:        func(string) (ConfigCarrier, error) { return &coreconfig.Config{}, nil },
		Bootstrap: func(ConfigCarrier) (Application, error) {
			return nil, errors.New("db down")
		},
	})
	require.ErrorContains(t, err, "bootstrap failed: db down")
}
