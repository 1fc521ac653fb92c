package admin

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/telegram/callbacks"
	"github.com/m3rciful/tabletop/core/telegram/format"
	tghelpers "github.com/m3rciful/tabletop/core/telegram/helpers"
	"github.com/m3rciful/tabletop/core/telegram/keyboard"
	"github.com/m3rciful/tabletop/core/telegram/state"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/bots/shared"
	"github.com/m3rciful/tabletop/internal/role"
)

const selectedKey = "participation_id"

func (h *handlers) permissionsDialog() *state.Dialog {
	return &state.Dialog{
		Name:    PermissionsMain.Dialog(),
		OnStart: h.authorizeStart(role.ActionManageMasters),
		Windows: []state.Window{
			{State: PermissionsMain, Render: h.renderMasters},
			{State: PermissionsSelected, Render: h.renderSelectedMaster},
		},
	}
}

func (h *handlers) renderMasters(c tele.Context, nav *state.Navigator) error {
	id, err := campaignFrom(nav)
	if err != nil {
		return err
	}
	masters, err := h.camps.Masters(nav.Context(), nav.UserID(), id)
	if err != nil {
		return err
	}
	text := "🧙 <b>Masters</b>\n\nSelect a master to manage."
	if len(masters) == 0 {
		text = "🧙 <b>Masters</b>\n\nThe campaign has no masters besides you."
	}
	var rows [][]keyboard.InlineBtn
	for _, m := range masters {
		rows = append(rows, shared.Row(keyboard.InlineBtn{
			Text:   m.Handle(),
			Unique: cbSelectMaster,
			Data:   m.ID.String(),
		}))
	}
	rows = append(rows,
		shared.Row(keyboard.InlineBtn{Text: "➕ Invite master", Unique: cbInviteMaster}),
		shared.Row(shared.CancelBtn("⬅️ Back")),
	)
	return shared.Show(c, text, rows...)
}

func (h *handlers) onSelectMaster(c tele.Context) error {
	pid, err := callbacks.PayloadUUID(c)
	if err != nil {
		return apperr.Validation("admin.select_master", "malformed member id")
	}
	return h.dialogs.HandleIn(c, PermissionsMain, func(nav *state.Navigator) error {
		if _, err := h.camps.Member(nav.Context(), nav.UserID(), pid); err != nil {
			return err
		}
		if err := nav.Set(selectedKey, pid); err != nil {
			return err
		}
		return nav.SwitchTo(PermissionsSelected)
	})
}

func selectedFrom(nav *state.Navigator) (uuid.UUID, error) {
	var pid uuid.UUID
	ok, err := nav.Get(selectedKey, &pid)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		return uuid.Nil, apperr.Validation("admin.selected_master", "no member selected")
	}
	return pid, nil
}

func (h *handlers) renderSelectedMaster(c tele.Context, nav *state.Navigator) error {
	pid, err := selectedFrom(nav)
	if err != nil {
		return err
	}
	m, err := h.camps.Member(nav.Context(), nav.UserID(), pid)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🧙 <b>%s</b>\n\nRole: %s\nJoined: %s",
		format.EscapeHTML(m.Handle()), m.Role, m.CreatedAt.Format("2006-01-02"))

	var rows [][]keyboard.InlineBtn
	if m.Role != role.Owner {
		rows = append(rows, shared.Row(keyboard.InlineBtn{Text: "🚫 Remove from campaign", Unique: cbRemoveMaster}))
	}
	if m.Role == role.Master {
		rows = append(rows, shared.Row(keyboard.InlineBtn{Text: "⬇️ Make player", Unique: cbDemoteMaster}))
	}
	rows = append(rows, shared.Row(shared.SwitchBtn("⬅️ Back", PermissionsMain)))
	return shared.Show(c, b.String(), rows...)
}

// backToMasters forgets the selection and shows the list again.
func backToMasters(nav *state.Navigator) error {
	if err := nav.Delete(selectedKey); err != nil {
		return err
	}
	return nav.SwitchTo(PermissionsMain)
}

func (h *handlers) onRemoveMaster(c tele.Context) error {
	return h.dialogs.HandleIn(c, PermissionsSelected, func(nav *state.Navigator) error {
		pid, err := selectedFrom(nav)
		if err != nil {
			return err
		}
		if err := h.camps.RemoveMember(nav.Context(), nav.UserID(), pid); err != nil {
			return err
		}
		_ = tghelpers.Answer(c, "Member removed", false)
		return backToMasters(nav)
	})
}

func (h *handlers) onDemoteMaster(c tele.Context) error {
	return h.dialogs.HandleIn(c, PermissionsSelected, func(nav *state.Navigator) error {
		pid, err := selectedFrom(nav)
		if err != nil {
			return err
		}
		if _, err := h.camps.ChangeRole(nav.Context(), nav.UserID(), pid, role.Player); err != nil {
			return err
		}
		_ = tghelpers.Answer(c, "The master is now a player", false)
		return backToMasters(nav)
	})
}

func (h *handlers) onInviteMaster(c tele.Context) error {
	return h.dialogs.HandleIn(c, PermissionsMain, func(nav *state.Navigator) error {
		id, err := campaignFrom(nav)
		if err != nil {
			return err
		}
		return nav.Start(InviteMain, inviteStart{CampaignID: id, Role: role.Master.String()})
	})
}
