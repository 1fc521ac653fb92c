package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/telegram/teletest"
)

func TestMessageMetricsCountsReplies(t *testing.T) {
	srv := teletest.NewServer(t)
	bot := srv.Bot(t)
	c := teletest.Text(bot, 7, "alice", "hello")

	h := MessageMetricsMiddleware(func(c tele.Context) error {
		if err := c.Send("first"); err != nil {
			return err
		}
		markup := &tele.ReplyMarkup{}
		markup.Inline(markup.Row(markup.Data("Go", "go")))
		return c.Send("second", &tele.SendOptions{ReplyMarkup: markup})
	})
	require.NoError(t, h(c))

	msgs, kb := GetCounters(c)
	assert.Equal(t, 2, msgs)
	assert.True(t, kb)
	assert.Len(t, srv.Method("sendMessage"), 2)
}

func TestGetCountersWithoutMiddleware(t *testing.T) {
	srv := teletest.NewServer(t)
	msgs, kb := GetCounters(teletest.Text(srv.Bot(t), 7, "alice", "hello"))
	assert.Zero(t, msgs)
	assert.False(t, kb)
}
