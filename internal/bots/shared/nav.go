package shared

import (
	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/tabletop/core/telegram"
	"github.com/m3rciful/tabletop/core/telegram/callbacks"
	"github.com/m3rciful/tabletop/core/telegram/keyboard"
	"github.com/m3rciful/tabletop/core/telegram/state"
)

// Callback keys of the generic navigation buttons.
const (
	CbBack   = "nav_back"
	CbNext   = "nav_next"
	CbCancel = "nav_cancel"
	CbSwitch = "nav_switch"
)

// BackBtn returns to the previous window of the dialog.
func BackBtn(text string) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: CbBack}
}

// NextBtn advances to the next window, e.g. to skip an optional step.
func NextBtn(text string) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: CbNext}
}

// CancelBtn closes the dialog without a result.
func CancelBtn(text string) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: CbCancel}
}

// SwitchBtn jumps to another window of the same dialog.
func SwitchBtn(text string, to state.State) keyboard.InlineBtn {
	return keyboard.InlineBtn{Text: text, Unique: CbSwitch, Data: string(to)}
}

// Navigation wires the generic buttons of one bot. Closing the last dialog
// opens Home so the user is never left without a menu.
type Navigation struct {
	Dialogs *state.Manager
	Home    state.State
}

// Register adds the navigation callbacks to reg.
func (n Navigation) Register(reg *tg.Registry) error {
	handlers := map[string]tele.HandlerFunc{
		CbBack:   n.back,
		CbNext:   n.next,
		CbCancel: n.cancel,
		CbSwitch: n.switchTo,
	}
	for key, h := range handlers {
		if err := reg.RegisterCallback(key, Guard(h)); err != nil {
			return err
		}
	}
	return nil
}

func (n Navigation) back(c tele.Context) error {
	return n.Dialogs.Handle(c, func(nav *state.Navigator) error { return nav.Back() })
}

func (n Navigation) next(c tele.Context) error {
	return n.Dialogs.Handle(c, func(nav *state.Navigator) error { return nav.Next() })
}

func (n Navigation) cancel(c tele.Context) error {
	return n.Dialogs.Handle(c, func(nav *state.Navigator) error {
		if err := nav.Cancel(); err != nil {
			return err
		}
		if nav.Depth() == 0 && n.Home != "" {
			return nav.Start(n.Home, nil)
		}
		return nil
	})
}

func (n Navigation) switchTo(c tele.Context) error {
	to := state.State(callbacks.CallbackPayload(c))
	return n.Dialogs.Handle(c, func(nav *state.Navigator) error { return nav.SwitchTo(to) })
}
