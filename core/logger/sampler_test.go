package logger

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	coreconfig "github.com/m3rciful/tabletop/core/config"
)

func TestSamplerWindow(t *testing.T) {
	var s sampler
	s.configure(2, 5)
	var got []bool
	for range 10 {
		got = append(got, s.allow())
	}
	assert.Equal(t, []bool{true, true, false, false, false, true, true, false, false, false}, got)

	s.configure(9, 3)
	assert.True(t, s.allow())
	assert.True(t, s.allow())
	assert.True(t, s.allow())

	s.configure(0, 0)
	for range 5 {
		assert.True(t, s.allow())
	}
}

func TestParseSampleRatio(t *testing.T) {
	cases := []struct {
		raw          string
		keep, window uint64
		ok           bool
	}{
		{"1/50", 1, 50, true},
		{" 3 / 10 ", 3, 10, true},
		{"20", 1, 20, true},
		{"off", 0, 0, true},
		{"0", 0, 0, true},
		{"", 0, 0, false},
		{"a/b", 0, 0, false},
		{"0/5", 0, 0, false},
		{"-3", 0, 0, false},
	}
	for _, tc := range cases {
		keep, window, ok := parseSampleRatio(tc.raw)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.keep, keep, tc.raw)
		assert.Equal(t, tc.window, window, tc.raw)
	}

	keep, window := selectDebugSample(&coreconfig.Config{Logging: coreconfig.LoggingConfig{DebugSample: "junk"}})
	assert.Equal(t, uint64(defaultSampleKeep), keep)
	assert.Equal(t, uint64(defaultSampleWindow), window)
}

func TestValueHelpers(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "fail", Status(assert.AnError))
	assert.Equal(t, time.Duration(0), RoundMS(-time.Second))
	assert.Equal(t, 2*time.Millisecond, RoundMS(1600*time.Microsecond))

	s, cut := Preview([]string{"a", "b", "c"}, 2)
	assert.Equal(t, "a, b", s)
	assert.True(t, cut)
	s, cut = Preview([]string{"a"}, 5)
	assert.Equal(t, "a", s)
	assert.False(t, cut)
	s, cut = Preview([]string{"a"}, 0)
	assert.Equal(t, "", s)
	assert.True(t, cut)
}

func TestResolveSettings(t *testing.T) {
	st := resolve(nil)
	assert.Equal(t, formatJSON, st.format)
	assert.Equal(t, defaultKeyOrder, st.order)

	st = resolve(&coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Profile:   "Dev",
		Level:     "WARNING",
		KeysOrder: "event, ,ts",
		Dir:       "/var/log/tabletop",
		BotFile:   "bot.log",
	}})
	assert.Equal(t, formatKV, st.format)
	assert.Equal(t, "dev", st.profile)
	assert.Equal(t, slog.LevelWarn, st.level)
	assert.Equal(t, []string{"event", "ts"}, st.order)
	assert.Equal(t, "/var/log/tabletop/bot.log", st.logFile)

	st = resolve(&coreconfig.Config{Logging: coreconfig.LoggingConfig{Format: "json", Profile: "debug", Level: "nonsense"}})
	assert.Equal(t, formatJSON, st.format)
	assert.Equal(t, slog.LevelInfo, st.level)
}
