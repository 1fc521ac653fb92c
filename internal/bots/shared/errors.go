package shared

import (
	"errors"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/logger"
	"github.com/m3rciful/tabletop/core/telegram/format"
	tghelpers "github.com/m3rciful/tabletop/core/telegram/helpers"
	"github.com/m3rciful/tabletop/core/telegram/state"
	"github.com/m3rciful/tabletop/internal/apperr"
)

const genericFailure = "❌ Something went wrong. Please try again."

// Describe turns err into a message for the user. expected is false for
// failures the user cannot fix, which are also reported upstream.
func Describe(err error) (text string, expected bool) {
	if errors.Is(err, state.ErrStaleWindow) || errors.Is(err, state.ErrNoActiveDialog) {
		return "⌛ This menu is no longer active. Send /start to open a new one.", true
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return genericFailure, false
	}
	switch ae.Kind {
	case apperr.KindValidation:
		return "⚠️ " + sentence(ae.Msg, "The input is not valid."), true
	case apperr.KindNotFound:
		return "❌ " + sentence(ae.Msg, "Nothing was found."), true
	case apperr.KindForbidden:
		return "🔒 " + sentence(ae.Msg, "You are not allowed to do that."), true
	case apperr.KindAlreadyConsumed:
		return "⚠️ This invitation has already been used.\n\nAsk the master to send you a new one.", true
	case apperr.KindRevoked:
		return "⚠️ This invitation link was replaced by a newer one.\n\nAsk the master to send you the current link.", true
	}
	return genericFailure, false
}

func sentence(msg, fallback string) string {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return fallback
	}
	r, size := utf8.DecodeRuneInString(msg)
	msg = string(unicode.ToUpper(r)) + msg[size:]
	if !strings.HasSuffix(msg, ".") {
		msg += "."
	}
	return msg
}

// Present shows err to the user: as an alert for button presses, as a
// message otherwise.
func Present(c tele.Context, err error) error {
	text, _ := Describe(err)
	if c.Callback() != nil {
		return tghelpers.Answer(c, text, true)
	}
	return tghelpers.SendHTML(c, format.EscapeHTML(text))
}

// Guard converts handler errors into user messages at the handler boundary.
// Domain errors are answered and swallowed; anything else is answered with a
// generic message and returned so the router records the failure.
func Guard(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		err := h(c)
		if err == nil {
			return nil
		}
		_, expected := Describe(err)
		if perr := Present(c, err); perr != nil {
			logger.Warn(tghelpers.BuildContext(c), "tg", "error.present",
				slog.String("status", "fail"),
				slog.String("err", perr.Error()),
			)
		}
		if !expected {
			return err
		}
		kind := string(apperr.KindOf(err))
		if kind == "" {
			kind = "stale"
		}
		logger.Info(tghelpers.BuildContext(c), "tg", "handler.rejected",
			slog.String("status", "skip"),
			slog.String("outcome", kind),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return nil
	}
}
