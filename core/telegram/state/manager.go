package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/logger"
	tghelpers "github.com/m3rciful/tabletop/core/telegram/helpers"
)

// Manager owns the dialog registry of one bot and the store of its sessions.
type Manager struct {
	store   Store
	dialogs map[string]*Dialog

	locksMu sync.Mutex
	locks   map[int64]*userLock
}

// userLock serialises the updates of one user. The entry lives only while
// someone holds or waits for it.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager constructs a Manager. A nil store keeps sessions in memory.
func NewManager(store Store) *Manager {
	if store == nil {
		store = NewMemoryStore(0)
	}
	return &Manager{store: store, dialogs: make(map[string]*Dialog), locks: make(map[int64]*userLock)}
}

// Register adds dialogs. Registration is not safe once updates are flowing.
func (m *Manager) Register(dialogs ...*Dialog) error {
	for _, d := range dialogs {
		if err := d.validate(); err != nil {
			return err
		}
		if _, dup := m.dialogs[d.Name]; dup {
			return fmt.Errorf("state: dialog %s registered twice", d.Name)
		}
		m.dialogs[d.Name] = d
	}
	return nil
}

// MustRegister is Register that panics, for static wiring.
func (m *Manager) MustRegister(dialogs ...*Dialog) {
	if err := m.Register(dialogs...); err != nil {
		panic(err)
	}
}

func (m *Manager) lookup(s State) (*Dialog, int, error) {
	d, ok := m.dialogs[s.Dialog()]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownState, s)
	}
	idx, ok := d.index(s)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrUnknownState, s)
	}
	return d, idx, nil
}

func (m *Manager) lock(userID int64) func() {
	m.locksMu.Lock()
	l, ok := m.locks[userID]
	if !ok {
		l = &userLock{}
		m.locks[userID] = l
	}
	l.refs++
	m.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		m.locksMu.Lock()
		if l.refs--; l.refs == 0 {
			delete(m.locks, userID)
		}
		m.locksMu.Unlock()
	}
}

// Run loads the stack of userID, runs fn and saves the result. When fn
// succeeds and changed the stack or dialog data, the top window is rendered.
// A failing fn leaves the stored stack untouched.
func (m *Manager) Run(ctx context.Context, c tele.Context, userID int64, fn func(*Navigator) error) error {
	unlock := m.lock(userID)
	defer unlock()

	sess, err := m.store.Load(ctx, userID)
	if err != nil {
		return err
	}
	if top := sess.top(); top != nil {
		ctx = logger.WithDialog(ctx, top.Dialog)
	}
	nav := &Navigator{m: m, ctx: ctx, c: c, sess: sess}
	if err := fn(nav); err != nil {
		return err
	}
	if !nav.changed {
		return nil
	}
	if err := m.store.Save(ctx, sess); err != nil {
		logger.Error(ctx, "tg.dialog", "session.save",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return err
	}
	if sess.Empty() {
		return nil
	}
	return nav.Show()
}

// Handle runs fn for the sender of c.
func (m *Manager) Handle(c tele.Context, fn func(*Navigator) error) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	return m.Run(tghelpers.BuildContext(c), c, sender.ID, fn)
}

// HandleIn runs fn only while want is the current window of the sender, so
// buttons left on older messages cannot act on whatever dialog is open now.
func (m *Manager) HandleIn(c tele.Context, want State, fn func(*Navigator) error) error {
	return m.Handle(c, func(nav *Navigator) error {
		if cur, ok := nav.Current(); !ok || cur != want {
			return fmt.Errorf("%w: %s", ErrStaleWindow, want)
		}
		return fn(nav)
	})
}

// Start opens state for the sender of c.
func (m *Manager) Start(c tele.Context, state State, data any, opts ...StartOption) error {
	return m.Handle(c, func(nav *Navigator) error {
		return nav.Start(state, data, opts...)
	})
}

// Current returns the top state of userID.
func (m *Manager) Current(ctx context.Context, userID int64) (State, bool, error) {
	sess, err := m.store.Load(ctx, userID)
	if err != nil {
		return "", false, err
	}
	nav := &Navigator{m: m, ctx: ctx, sess: sess}
	s, ok := nav.Current()
	return s, ok, nil
}

// InProgress reports whether the sender of c has an open dialog.
func (m *Manager) InProgress(c tele.Context) bool {
	sender := c.Sender()
	if sender == nil {
		return false
	}
	_, ok, err := m.Current(tghelpers.BuildContext(c), sender.ID)
	return err == nil && ok
}

// ManagerHandler passes a text update to the OnText handler of the current window.
// Windows without OnText are shown again.
func (m *Manager) ManagerHandler(c tele.Context) error {
	return m.Handle(c, func(nav *Navigator) error {
		f, d, err := nav.current()
		if err != nil {
			return err
		}
		w := d.Windows[f.Window]
		logger.Debug(nav.ctx, "tg.dialog", "dialog.text",
			slog.String("status", "ok"),
			slog.Int64("user_id", nav.UserID()),
			slog.String("state", string(w.State)),
		)
		if w.OnText == nil {
			return nav.Show()
		}
		return w.OnText(c, nav)
	})
}
