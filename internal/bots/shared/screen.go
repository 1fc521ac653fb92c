package shared

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/tabletop/core/telegram/helpers"
	"github.com/m3rciful/tabletop/core/telegram/keyboard"
)

// Row groups buttons shown side by side.
func Row(btns ...keyboard.InlineBtn) []keyboard.InlineBtn { return btns }

// Show renders an HTML screen with an inline keyboard.
func Show(c tele.Context, text string, rows ...[]keyboard.InlineBtn) error {
	return tghelpers.ShowHTML(c, text, Markup(rows...))
}

// Markup builds an inline keyboard, or nil without rows.
func Markup(rows ...[]keyboard.InlineBtn) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	return keyboard.InlineButtonsRows(rows...)
}
