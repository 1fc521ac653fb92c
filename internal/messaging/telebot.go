package messaging

import (
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/logger"
	"github.com/m3rciful/tabletop/core/telegram/sender"
)

// Sender is the subset of *tele.Bot used for notifications.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelebotIdentity delivers notifications through a telebot bot, queued on a dispatcher.
type TelebotIdentity struct {
	name       string
	bot        Sender
	dispatcher *sender.Dispatcher
}

// NewTelebotIdentity wraps bot. A nil dispatcher sends synchronously.
func NewTelebotIdentity(username string, bot Sender, dispatcher *sender.Dispatcher) *TelebotIdentity {
	return &TelebotIdentity{name: username, bot: bot, dispatcher: dispatcher}
}

// Username implements Identity.
func (t *TelebotIdentity) Username() string { return t.name }

// Notify implements Identity.
func (t *TelebotIdentity) Notify(ctx context.Context, chatID int64, msg Message) error {
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, DisableWebPagePreview: true}
	if msg.Button != nil {
		markup := &tele.ReplyMarkup{}
		markup.Inline(markup.Row(markup.URL(msg.Button.Text, msg.Button.URL)))
		opts.ReplyMarkup = markup
	}
	run := func() error {
		_, err := t.bot.Send(tele.ChatID(chatID), msg.Text, opts)
		return err
	}
	if t.dispatcher == nil {
		return run()
	}
	err := t.dispatcher.Enqueue(ctx, "notify", "sendMessage", run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", "notify"),
			slog.String("bot", t.name),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}
