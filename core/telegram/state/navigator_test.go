package state

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

type harness struct {
	m        *Manager
	rendered []State
	results  []string
}

func (h *harness) render(s State) Handler {
	return func(_ tele.Context, _ *Navigator) error {
		h.rendered = append(h.rendered, s)
		return nil
	}
}

func (h *harness) dialog(name string, windows ...string) *Dialog {
	d := &Dialog{Name: name}
	for _, w := range windows {
		s := NewState(name, w)
		d.Windows = append(d.Windows, Window{State: s, Render: h.render(s)})
	}
	return d
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{m: NewManager(NewMemoryStore(0))}
	wizard := h.dialog("Wizard", "title", "description", "confirm")
	list := h.dialog("List", "main")
	list.OnProcessResult = func(_ tele.Context, nav *Navigator, child string, result json.RawMessage) error {
		h.results = append(h.results, child+":"+string(result))
		return nav.Set("last", child)
	}
	preview := h.dialog("Preview", "main")
	require.NoError(t, h.m.Register(wizard, list, preview))
	return h
}

func (h *harness) run(t *testing.T, fn func(*Navigator) error) error {
	t.Helper()
	return h.m.Run(context.Background(), nil, 42, fn)
}

func (h *harness) current(t *testing.T) State {
	t.Helper()
	s, _, err := h.m.Current(context.Background(), 42)
	require.NoError(t, err)
	return s
}

func TestRegisterValidates(t *testing.T) {
	m := NewManager(nil)
	noop := func(tele.Context, *Navigator) error { return nil }

	assert.Error(t, m.Register(&Dialog{Name: "Empty"}))
	assert.Error(t, m.Register(&Dialog{Name: "A", Windows: []Window{{State: "B.main", Render: noop}}}))
	assert.Error(t, m.Register(&Dialog{Name: "A", Windows: []Window{{State: "A.main"}}}))
	require.NoError(t, m.Register(&Dialog{Name: "A", Windows: []Window{{State: "A.main", Render: noop}}}))
	assert.Error(t, m.Register(&Dialog{Name: "A", Windows: []Window{{State: "A.main", Render: noop}}}))
}

func TestWizardNavigation(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, func(nav *Navigator) error {
		return nav.Start("Wizard.title", map[string]int64{"campaign_id": 5})
	}))
	assert.Equal(t, State("Wizard.title"), h.current(t))

	require.NoError(t, h.run(t, func(nav *Navigator) error {
		if err := nav.Set("title", "Curse of Strahd"); err != nil {
			return err
		}
		return nav.Next()
	}))
	assert.Equal(t, State("Wizard.description"), h.current(t))

	require.NoError(t, h.run(t, func(nav *Navigator) error { return nav.Back() }))
	require.NoError(t, h.run(t, func(nav *Navigator) error {
		var title string
		ok, err := nav.Get("title", &title)
		require.True(t, ok)
		assert.Equal(t, "Curse of Strahd", title, "back keeps dialog data")

		var start struct {
			CampaignID int64 `json:"campaign_id"`
		}
		require.NoError(t, nav.StartData(&start))
		assert.Equal(t, int64(5), start.CampaignID)
		return err
	}))

	err := h.run(t, func(nav *Navigator) error { return nav.Back() })
	assert.ErrorIs(t, err, ErrNoPreviousWindow)

	require.NoError(t, h.run(t, func(nav *Navigator) error { return nav.SwitchTo("Wizard.confirm") }))
	err = h.run(t, func(nav *Navigator) error { return nav.Next() })
	assert.ErrorIs(t, err, ErrNoNextWindow)

	err = h.run(t, func(nav *Navigator) error { return nav.SwitchTo("List.main") })
	assert.ErrorIs(t, err, ErrForeignState)
	err = h.run(t, func(nav *Navigator) error { return nav.SwitchTo("Wizard.nope") })
	assert.ErrorIs(t, err, ErrUnknownState)

	assert.Equal(t, []State{"Wizard.title", "Wizard.description", "Wizard.title", "Wizard.confirm"}, h.rendered)
}

func TestDoneDeliversResultToParent(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, func(nav *Navigator) error { return nav.Start("List.main", nil) }))
	require.NoError(t, h.run(t, func(nav *Navigator) error {
		if err := nav.Start("Wizard.title", nil); err != nil {
			return err
		}
		return nav.Set("draft", "x")
	}))
	require.NoError(t, h.run(t, func(nav *Navigator) error {
		assert.Equal(t, 2, nav.Depth())
		return nav.Done(map[string]int{"id": 7})
	}))

	assert.Equal(t, State("List.main"), h.current(t))
	assert.Equal(t, []string{`Wizard:{"id":7}`}, h.results)

	require.NoError(t, h.run(t, func(nav *Navigator) error {
		var draft string
		ok, err := nav.Get("draft", &draft)
		assert.False(t, ok, "child data is discarded with its frame")
		return err
	}))
}

func TestCancelAndReset(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, func(nav *Navigator) error { return nav.Start("List.main", nil) }))
	require.NoError(t, h.run(t, func(nav *Navigator) error { return nav.Start("Wizard.title", nil) }))
	require.NoError(t, h.run(t, func(nav *Navigator) error { return nav.Cancel() }))
	assert.Equal(t, State("List.main"), h.current(t))
	assert.Empty(t, h.results, "cancel delivers no result")

	require.NoError(t, h.run(t, func(nav *Navigator) error { nav.Reset(); return nil }))
	_, ok, err := h.m.Current(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, ok)

	err = h.run(t, func(nav *Navigator) error { return nav.Next() })
	assert.ErrorIs(t, err, ErrNoActiveDialog)
}

func TestStartResetStack(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, func(nav *Navigator) error { return nav.Start("List.main", nil) }))
	require.NoError(t, h.run(t, func(nav *Navigator) error { return nav.Start("Wizard.title", nil) }))
	require.NoError(t, h.run(t, func(nav *Navigator) error {
		if err := nav.Start("Preview.main", nil, ResetStack()); err != nil {
			return err
		}
		assert.Equal(t, 1, nav.Depth())
		return nil
	}))

	err := h.run(t, func(nav *Navigator) error { return nav.Start("Nope.main", nil) })
	assert.ErrorIs(t, err, ErrUnknownState)
}

func TestThenChainsContinuations(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(t, func(nav *Navigator) error {
		return nav.Start("List.main", map[string]string{"token": "abc"}, Then("Wizard.title", "Preview.main"))
	}))
	assert.Equal(t, State("Preview.main"), h.current(t))
	assert.Equal(t, []State{"Preview.main"}, h.rendered, "only the final window is rendered")

	require.NoError(t, h.run(t, func(nav *Navigator) error {
		var data map[string]string
		require.NoError(t, nav.StartData(&data))
		assert.Equal(t, "abc", data["token"], "continuations share start data")
		return nav.Cancel()
	}))
	assert.Equal(t, State("Wizard.title"), h.current(t))

	require.NoError(t, h.run(t, func(nav *Navigator) error { return nav.Cancel() }))
	assert.Equal(t, State("List.main"), h.current(t))
}

func TestFailedHandlerKeepsStoredStack(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("boom")

	require.NoError(t, h.run(t, func(nav *Navigator) error { return nav.Start("Wizard.title", nil) }))
	err := h.run(t, func(nav *Navigator) error {
		_ = nav.Next()
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, State("Wizard.title"), h.current(t))
}

func TestOnStartRuns(t *testing.T) {
	m := NewManager(nil)
	var started []string
	d := &Dialog{
		Name:    "Greeter",
		Windows: []Window{{State: "Greeter.main", Render: func(tele.Context, *Navigator) error { return nil }}},
		OnStart: func(_ tele.Context, nav *Navigator) error {
			started = append(started, "Greeter")
			return nav.Set("seen", true)
		},
	}
	require.NoError(t, m.Register(d))
	require.NoError(t, m.Run(context.Background(), nil, 1, func(nav *Navigator) error {
		if err := nav.Start("Greeter.main", nil); err != nil {
			return err
		}
		var seen bool
		ok, err := nav.Get("seen", &seen)
		assert.True(t, ok && seen)
		return err
	}))
	assert.Equal(t, []string{"Greeter"}, started)
}

func TestHandleInRejectsStaleWindow(t *testing.T) {
	h := newHarness(t)
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	c := bot.NewContext(tele.Update{ID: 1, Message: &tele.Message{Sender: &tele.User{ID: 42}, Chat: &tele.Chat{ID: 42}}})

	require.NoError(t, h.m.Start(c, "Wizard.title", nil))
	err = h.m.HandleIn(c, "Wizard.confirm", func(nav *Navigator) error { return nav.Done(nil) })
	assert.ErrorIs(t, err, ErrStaleWindow)
	assert.Equal(t, State("Wizard.title"), h.current(t))

	require.NoError(t, h.m.HandleIn(c, "Wizard.title", func(nav *Navigator) error { return nav.Next() }))
	assert.Equal(t, State("Wizard.description"), h.current(t))
}

func TestUserLocksAreReleased(t *testing.T) {
	h := newHarness(t)
	counts := map[int64]int{}
	var wg sync.WaitGroup
	for i := range 50 {
		uid := int64(i % 5)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.m.Run(context.Background(), nil, uid, func(*Navigator) error {
				h.m.locksMu.Lock()
				counts[uid]++
				h.m.locksMu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	for uid := range int64(5) {
		assert.Equal(t, 10, counts[uid])
	}
	h.m.locksMu.Lock()
	defer h.m.locksMu.Unlock()
	assert.Empty(t, h.m.locks, "idle users keep no lock entry")
}

func TestUserLockSerialisesRuns(t *testing.T) {
	h := newHarness(t)
	var (
		active, peak int
		mu           sync.Mutex
		wg           sync.WaitGroup
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.m.Run(context.Background(), nil, 42, func(*Navigator) error {
				mu.Lock()
				active++
				peak = max(peak, active)
				mu.Unlock()

				time.Sleep(time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, peak)
}
