package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/logger"
)

// StartMode controls what happens to the stack when a dialog starts.
type StartMode int

const (
	// ModeNormal pushes the dialog on top of the current stack.
	ModeNormal StartMode = iota
	// ModeResetStack closes every open dialog first.
	ModeResetStack
)

type startConfig struct {
	mode StartMode
	then []State
}

// StartOption customises Start.
type StartOption func(*startConfig)

// ResetStack closes all open dialogs before starting.
func ResetStack() StartOption {
	return func(c *startConfig) { c.mode = ModeResetStack }
}

// Then chains further dialogs after the started one. Each step is pushed on
// top of the previous one with the same start data, so closing a step returns
// the user to the dialog before it.
func Then(steps ...State) StartOption {
	return func(c *startConfig) { c.then = append(c.then, steps...) }
}

// Navigator moves one user through dialogs during a single update.
// It is not safe for concurrent use.
type Navigator struct {
	m       *Manager
	ctx     context.Context
	c       tele.Context
	sess    *Session
	changed bool
}

// Context returns the request context of the update.
func (n *Navigator) Context() context.Context { return n.ctx }

// UserID returns the user whose stack is being navigated.
func (n *Navigator) UserID() int64 { return n.sess.UserID }

// Current returns the state on top of the stack.
func (n *Navigator) Current() (State, bool) {
	f := n.sess.top()
	if f == nil {
		return "", false
	}
	d := n.m.dialogs[f.Dialog]
	if d == nil || f.Window >= len(d.Windows) {
		return "", false
	}
	return d.Windows[f.Window].State, true
}

// Depth returns the number of open dialogs.
func (n *Navigator) Depth() int { return len(n.sess.Stack) }

// Start opens the dialog that owns state and shows that window.
func (n *Navigator) Start(state State, data any, opts ...StartOption) error {
	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	raw, err := marshalData(data)
	if err != nil {
		return fmt.Errorf("state: start data for %s: %w", state, err)
	}
	return n.start(state, raw, cfg)
}

func (n *Navigator) start(state State, raw json.RawMessage, cfg startConfig) error {
	d, idx, err := n.m.lookup(state)
	if err != nil {
		return err
	}
	if cfg.mode == ModeResetStack {
		n.sess.Stack = nil
	}
	n.sess.Stack = append(n.sess.Stack, Frame{
		ID:        uuid.NewString(),
		Dialog:    d.Name,
		Window:    idx,
		StartData: raw,
		Then:      cfg.then,
	})
	n.changed = true
	logger.Debug(n.ctx, "tg.dialog", "dialog.start",
		slog.String("status", "ok"),
		slog.Int64("user_id", n.sess.UserID),
		slog.String("state", string(state)),
		slog.Int("depth", len(n.sess.Stack)),
	)
	if d.OnStart != nil {
		if err := d.OnStart(n.c, n); err != nil {
			return err
		}
	}
	if len(cfg.then) == 0 {
		return nil
	}
	return n.start(cfg.then[0], raw, startConfig{then: cfg.then[1:]})
}

// Next shows the following window of the current dialog.
func (n *Navigator) Next() error {
	f, d, err := n.current()
	if err != nil {
		return err
	}
	if f.Window+1 >= len(d.Windows) {
		return ErrNoNextWindow
	}
	f.Window++
	n.changed = true
	return nil
}

// Back shows the previous window of the current dialog. Dialog data is kept.
func (n *Navigator) Back() error {
	f, _, err := n.current()
	if err != nil {
		return err
	}
	if f.Window == 0 {
		return ErrNoPreviousWindow
	}
	f.Window--
	n.changed = true
	return nil
}

// SwitchTo shows another window of the current dialog.
func (n *Navigator) SwitchTo(state State) error {
	f, d, err := n.current()
	if err != nil {
		return err
	}
	if state.Dialog() != d.Name {
		return fmt.Errorf("%w: %s is not part of %s", ErrForeignState, state, d.Name)
	}
	idx, ok := d.index(state)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownState, state)
	}
	f.Window = idx
	n.changed = true
	return nil
}

// Done closes the current dialog and hands result to the dialog below it.
func (n *Navigator) Done(result any) error {
	f, _, err := n.current()
	if err != nil {
		return err
	}
	raw, err := marshalData(result)
	if err != nil {
		return fmt.Errorf("state: result of %s: %w", f.Dialog, err)
	}
	child := f.Dialog
	n.pop()
	parent := n.sess.top()
	if parent == nil {
		return nil
	}
	d := n.m.dialogs[parent.Dialog]
	if d == nil || d.OnProcessResult == nil {
		return nil
	}
	return d.OnProcessResult(n.c, n, child, raw)
}

// Cancel closes the current dialog without a result.
func (n *Navigator) Cancel() error {
	if _, _, err := n.current(); err != nil {
		return err
	}
	n.pop()
	return nil
}

// Reset closes every open dialog.
func (n *Navigator) Reset() {
	if len(n.sess.Stack) > 0 {
		n.sess.Stack = nil
		n.changed = true
	}
}

// StartData decodes the start data of the current dialog into v.
// A dialog started with nil data leaves v untouched.
func (n *Navigator) StartData(v any) error {
	f, _, err := n.current()
	if err != nil {
		return err
	}
	if len(f.StartData) == 0 {
		return nil
	}
	return json.Unmarshal(f.StartData, v)
}

// Get decodes dialog data stored under key into v and reports whether it was set.
func (n *Navigator) Get(key string, v any) (bool, error) {
	f, _, err := n.current()
	if err != nil {
		return false, err
	}
	raw, ok := f.Data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

// Set stores v as dialog data under key.
func (n *Navigator) Set(key string, v any) error {
	f, _, err := n.current()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state: dialog data %q: %w", key, err)
	}
	if f.Data == nil {
		f.Data = make(map[string]json.RawMessage)
	}
	f.Data[key] = raw
	n.changed = true
	return nil
}

// Delete removes dialog data stored under key.
func (n *Navigator) Delete(key string) error {
	f, _, err := n.current()
	if err != nil {
		return err
	}
	if _, ok := f.Data[key]; ok {
		delete(f.Data, key)
		n.changed = true
	}
	return nil
}

// Show renders the window on top of the stack.
func (n *Navigator) Show() error {
	f, d, err := n.current()
	if err != nil {
		return err
	}
	return d.Windows[f.Window].Render(n.c, n)
}

func (n *Navigator) current() (*Frame, *Dialog, error) {
	f := n.sess.top()
	if f == nil {
		return nil, nil, ErrNoActiveDialog
	}
	d := n.m.dialogs[f.Dialog]
	if d == nil || f.Window < 0 || f.Window >= len(d.Windows) {
		return nil, nil, fmt.Errorf("%w: %s[%d]", ErrUnknownState, f.Dialog, f.Window)
	}
	return f, d, nil
}

func (n *Navigator) pop() {
	f := n.sess.top()
	logger.Debug(n.ctx, "tg.dialog", "dialog.close",
		slog.String("status", "ok"),
		slog.Int64("user_id", n.sess.UserID),
		slog.String("dialog", f.Dialog),
		slog.Int("depth", len(n.sess.Stack)-1),
	)
	n.sess.Stack = n.sess.Stack[:len(n.sess.Stack)-1]
	n.changed = true
}

func marshalData(v any) (json.RawMessage, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return x, nil
	}
	return json.Marshal(v)
}
