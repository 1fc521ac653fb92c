package state

import (
	"encoding/json"
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

var (
	// ErrNoActiveDialog is returned by navigation on an empty stack.
	ErrNoActiveDialog = errors.New("state: no active dialog")
	// ErrUnknownState is returned for a state no registered dialog declares.
	ErrUnknownState = errors.New("state: unknown state")
	// ErrNoNextWindow is returned by Next on the last window.
	ErrNoNextWindow = errors.New("state: no next window")
	// ErrNoPreviousWindow is returned by Back on the first window.
	ErrNoPreviousWindow = errors.New("state: no previous window")
	// ErrForeignState is returned by SwitchTo for a window of another dialog.
	ErrForeignState = errors.New("state: state belongs to another dialog")
	// ErrStaleWindow is returned by HandleIn when a button of an older window is pressed.
	ErrStaleWindow = errors.New("state: window is no longer active")
)

// State names a window as "<Dialog>.<window>".
type State string

// NewState joins a dialog and window name.
func NewState(dialog, window string) State {
	return State(dialog + "." + window)
}

// Dialog returns the dialog part of s.
func (s State) Dialog() string {
	d, _, _ := strings.Cut(string(s), ".")
	return d
}

// Window returns the window part of s.
func (s State) Window() string {
	_, w, _ := strings.Cut(string(s), ".")
	return w
}

// Handler is the signature of window and dialog callbacks.
type Handler func(c tele.Context, nav *Navigator) error

// ResultHandler receives the result of a child dialog that called Done.
type ResultHandler func(c tele.Context, nav *Navigator, child string, result json.RawMessage) error

// Window is one screen of a dialog.
type Window struct {
	State State
	// Render draws the window. It runs after every handler that changed the stack or dialog data.
	Render Handler
	// OnText receives free text while the window is on top. Optional.
	OnText Handler
}

// Dialog is an ordered group of windows sharing start data and dialog data.
type Dialog struct {
	Name    string
	Windows []Window
	// OnStart runs right after the dialog is pushed. Optional.
	OnStart Handler
	// OnProcessResult runs when a child dialog finishes with Done. Optional.
	OnProcessResult ResultHandler
}

func (d *Dialog) index(s State) (int, bool) {
	for i, w := range d.Windows {
		if w.State == s {
			return i, true
		}
	}
	return 0, false
}

func (d *Dialog) validate() error {
	if d == nil || strings.TrimSpace(d.Name) == "" || strings.Contains(d.Name, ".") {
		return errors.New("state: dialog name must be non-empty and contain no dots")
	}
	if len(d.Windows) == 0 {
		return errors.New("state: dialog " + d.Name + " has no windows")
	}
	seen := make(map[State]struct{}, len(d.Windows))
	for _, w := range d.Windows {
		if w.State.Dialog() != d.Name || w.State.Window() == "" {
			return errors.New("state: window " + string(w.State) + " does not belong to dialog " + d.Name)
		}
		if w.Render == nil {
			return errors.New("state: window " + string(w.State) + " has no renderer")
		}
		if _, dup := seen[w.State]; dup {
			return errors.New("state: duplicate window " + string(w.State))
		}
		seen[w.State] = struct{}{}
	}
	return nil
}
