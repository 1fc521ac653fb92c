package helpers

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/m3rciful/tabletop/core/logger"
	"github.com/m3rciful/tabletop/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// dispatchers maps a bot (tele.API) to its asynchronous sender.
var dispatchers sync.Map

// SetDispatcher wires the asynchronous sender used by helper functions for bot.
// A nil dispatcher removes the binding.
func SetDispatcher(bot tele.API, d *sender.Dispatcher) {
	if bot == nil {
		return
	}
	if d == nil {
		dispatchers.Delete(bot)
		return
	}
	dispatchers.Store(bot, d)
}

func currentDispatcher(c tele.Context) *sender.Dispatcher {
	if c == nil || c.Bot() == nil {
		return nil
	}
	if v, ok := dispatchers.Load(c.Bot()); ok {
		return v.(*sender.Dispatcher)
	}
	return nil
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher(c)
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient through the dispatcher.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// SendHTML queues an HTML message with optional reply markup. Delivery order
// relative to other sends is not guaranteed; use ShowHTML for dialog screens.
func SendHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: rm, DisableWebPagePreview: true}
	return SendText(c, text, opts)
}

// ShowHTML draws a screen synchronously: callbacks edit the message that
// carried the button when possible, other updates get a new message.
func ShowHTML(c tele.Context, text string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: rm, DisableWebPagePreview: true}
	if cb := c.Callback(); cb != nil && cb.Message != nil {
		err := c.Edit(text, opts)
		if err == nil || strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		// Photo messages cannot be edited into text; fall through to a new message.
	}
	return c.Send(text, opts)
}

// SendPhotoFile sends a local image with an HTML caption synchronously.
func SendPhotoFile(c tele.Context, path, caption string, markup ...*tele.ReplyMarkup) error {
	var rm *tele.ReplyMarkup
	if len(markup) > 0 {
		rm = markup[0]
	}
	photo := &tele.Photo{File: tele.FromDisk(path), Caption: caption}
	return c.Send(photo, &tele.SendOptions{ParseMode: tele.ModeHTML, ReplyMarkup: rm})
}

// SendDocument uploads data as a file named name with an HTML caption synchronously.
func SendDocument(c tele.Context, name string, data []byte, caption string) error {
	doc := &tele.Document{File: tele.FromReader(bytes.NewReader(data)), FileName: name, Caption: caption}
	return c.Send(doc, &tele.SendOptions{ParseMode: tele.ModeHTML})
}

const answeredKey = "cb_answered"

// Answer responds to the callback query of c with a toast, or an alert when
// alert is set. Telegram accepts one answer per query.
func Answer(c tele.Context, text string, alert bool) error {
	if c.Callback() == nil {
		return nil
	}
	c.Set(answeredKey, true)
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: alert})
}

// Answered reports whether Answer was already called for c.
func Answered(c tele.Context) bool {
	v, _ := c.Get(answeredKey).(bool)
	return v
}
