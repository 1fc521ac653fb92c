package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/telegram/teletest"
)

func TestRecoverMiddlewareReturnsPanicAsError(t *testing.T) {
	srv := teletest.NewServer(t)
	c := teletest.Text(srv.Bot(t), 7, "alice", "/start")

	err := RecoverMiddleware(func(tele.Context) error { panic("dice rolled off the table") })(c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dice rolled off the table")
}

func TestLoggerMiddlewareSetsRID(t *testing.T) {
	srv := teletest.NewServer(t)
	c := teletest.Text(srv.Bot(t), 7, "alice", "/start")

	calls := 0
	h := LoggerMiddleware(LoggerMiddleware(func(c tele.Context) error {
		calls++
		return nil
	}))
	require.NoError(t, h(c))

	assert.Equal(t, 1, calls)
	rid, _ := c.Get("rid").(string)
	assert.Equal(t, "7", rid[len(rid)-1:])
	assert.Regexp(t, `^\d+:7:7$`, rid)
}
