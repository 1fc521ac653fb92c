package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/role"
)

type stubIdentity string

func (s stubIdentity) Username() string { return string(s) }
func (s stubIdentity) Notify(context.Context, int64, Message) error { return nil }

func TestNewIdentitiesRoutesByRole(t *testing.T) {
	ids, err := NewIdentities(stubIdentity("dm_bot"), stubIdentity("play_bot"))
	require.NoError(t, err)

	assert.Equal(t, "play_bot", ids.For(role.Player).Username())
	assert.Equal(t, "dm_bot", ids.For(role.Master).Username())
	assert.Equal(t, "dm_bot", ids.For(role.Owner).Username())
}

func TestNewIdentitiesRejectsIncompleteWiring(t *testing.T) {
	_, err := NewIdentities(nil, stubIdentity("play_bot"))
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))

	_, err = NewIdentities(stubIdentity("dm_bot"), nil)
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))

	_, err = NewIdentities(stubIdentity("dm_bot"), stubIdentity(" "))
	assert.True(t, errors.Is(err, apperr.ErrConfiguration))
}

type recordingSender struct {
	mu   sync.Mutex
	to   []tele.Recipient
	text []string
	opts []interface{}
}

func (r *recordingSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.to = append(r.to, to)
	r.text = append(r.text, what.(string))
	r.opts = append(r.opts, opts...)
	return &tele.Message{}, nil
}

func TestTelebotIdentitySendsSynchronouslyWithoutDispatcher(t *testing.T) {
	rec := &recordingSender{}
	id := NewTelebotIdentity("dm_bot", rec, nil)

	err := id.Notify(context.Background(), 42, Message{
		Text:   "hello",
		Button: &LinkButton{Text: "Open", URL: "https://t.me/dm_bot"},
	})
	require.NoError(t, err)
	require.Len(t, rec.to, 1)
	assert.Equal(t, "42", rec.to[0].Recipient())
	assert.Equal(t, "hello", rec.text[0])

	opts, ok := rec.opts[0].(*tele.SendOptions)
	require.True(t, ok)
	assert.Equal(t, tele.ModeHTML, opts.ParseMode)
	require.NotNil(t, opts.ReplyMarkup)
	require.Len(t, opts.ReplyMarkup.InlineKeyboard, 1)
	assert.Equal(t, "https://t.me/dm_bot", opts.ReplyMarkup.InlineKeyboard[0][0].URL)
}
