package admin

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/telegram/format"
	tghelpers "github.com/m3rciful/tabletop/core/telegram/helpers"
	"github.com/m3rciful/tabletop/core/telegram/keyboard"
	"github.com/m3rciful/tabletop/core/telegram/state"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/bots/shared"
	"github.com/m3rciful/tabletop/internal/campaign"
	"github.com/m3rciful/tabletop/internal/role"
)

func (h *handlers) editCampaignDialog() *state.Dialog {
	return &state.Dialog{
		Name:    EditSelectField.Dialog(),
		OnStart: h.authorizeStart(role.ActionEditInfo),
		Windows: []state.Window{
			{State: EditSelectField, Render: h.renderEditSelect},
			{State: EditTitle, Render: renderEditTitle, OnText: onEditTitle},
			{State: EditDescription, Render: renderEditDescription, OnText: onEditDescription},
			{State: EditConfirm, Render: h.renderEditConfirm},
			{State: EditConfirmDelete, Render: h.renderEditConfirmDelete},
		},
	}
}

// pendingPatch collects the edits entered so far.
func pendingPatch(nav *state.Navigator) (campaign.Patch, error) {
	var p campaign.Patch
	var title, desc string
	ok, err := nav.Get("title", &title)
	if err != nil {
		return p, err
	}
	if ok {
		p.Title = &title
	}
	ok, err = nav.Get("description", &desc)
	if err != nil {
		return p, err
	}
	if ok {
		p.Description = &desc
	}
	return p, nil
}

func (h *handlers) renderEditSelect(c tele.Context, nav *state.Navigator) error {
	id, err := campaignFrom(nav)
	if err != nil {
		return err
	}
	me, err := h.camps.Authorize(nav.Context(), id, nav.UserID(), role.ActionEditInfo)
	if err != nil {
		return err
	}
	camp, err := h.camps.Get(nav.Context(), id)
	if err != nil {
		return err
	}
	patch, err := pendingPatch(nav)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("✏️ <b>Edit campaign</b>\n\n")
	describeCampaign(&b, camp)
	if patch.Title != nil || patch.Description != nil {
		b.WriteString("\nYou have unsaved changes.")
	}
	b.WriteString("\nWhat do you want to change?")

	rows := [][]keyboard.InlineBtn{
		shared.Row(shared.SwitchBtn("📝 Title", EditTitle), shared.SwitchBtn("📄 Description", EditDescription)),
		shared.Row(shared.SwitchBtn("💾 Review and save", EditConfirm)),
	}
	if role.Allowed(me, role.ActionDelete) {
		rows = append(rows, shared.Row(shared.SwitchBtn("🗑 Delete campaign", EditConfirmDelete)))
	}
	rows = append(rows, shared.Row(shared.CancelBtn("⬅️ Back")))
	return shared.Show(c, b.String(), rows...)
}

func renderEditTitle(c tele.Context, _ *state.Navigator) error {
	return shared.Show(c, fmt.Sprintf("Send the new title (up to %d characters).", campaign.MaxTitleLen),
		shared.Row(shared.SwitchBtn("⬅️ Back", EditSelectField)))
}

func onEditTitle(c tele.Context, nav *state.Navigator) error {
	title, err := campaign.ValidateTitle(c.Text())
	if err != nil {
		return err
	}
	if err := nav.Set("title", title); err != nil {
		return err
	}
	return nav.SwitchTo(EditSelectField)
}

func renderEditDescription(c tele.Context, _ *state.Navigator) error {
	return shared.Show(c, fmt.Sprintf("Send the new description (up to %d characters).", campaign.MaxDescriptionLen),
		shared.Row(shared.SwitchBtn("⬅️ Back", EditSelectField)))
}

func onEditDescription(c tele.Context, nav *state.Navigator) error {
	desc, err := campaign.ValidateDescription(c.Text())
	if err != nil {
		return err
	}
	if err := nav.Set("description", desc); err != nil {
		return err
	}
	return nav.SwitchTo(EditSelectField)
}

func (h *handlers) renderEditConfirm(c tele.Context, nav *state.Navigator) error {
	patch, err := pendingPatch(nav)
	if err != nil {
		return err
	}
	back := shared.Row(shared.SwitchBtn("⬅️ Back", EditSelectField))
	if patch.Title == nil && patch.Description == nil {
		return shared.Show(c, "Nothing has changed yet.", back)
	}
	var b strings.Builder
	b.WriteString("💾 <b>Save these changes?</b>\n")
	if patch.Title != nil {
		fmt.Fprintf(&b, "\n📝 Title: %s", format.EscapeHTML(*patch.Title))
	}
	if patch.Description != nil {
		fmt.Fprintf(&b, "\n📄 Description: %s", format.EscapeHTML(*patch.Description))
	}
	return shared.Show(c, b.String(),
		shared.Row(keyboard.InlineBtn{Text: "✅ Save", Unique: cbEditSave}),
		back,
	)
}

func (h *handlers) onEditSave(c tele.Context) error {
	return h.dialogs.HandleIn(c, EditConfirm, func(nav *state.Navigator) error {
		id, err := campaignFrom(nav)
		if err != nil {
			return err
		}
		patch, err := pendingPatch(nav)
		if err != nil {
			return err
		}
		if patch.Title == nil && patch.Description == nil {
			return apperr.Validation("admin.edit_save", "nothing to save")
		}
		if _, err := h.camps.UpdateInfo(nav.Context(), nav.UserID(), id, patch); err != nil {
			return err
		}
		_ = tghelpers.Answer(c, "✅ Changes saved", false)
		return nav.Done(editResult{})
	})
}

func (h *handlers) renderEditConfirmDelete(c tele.Context, nav *state.Navigator) error {
	id, err := campaignFrom(nav)
	if err != nil {
		return err
	}
	camp, err := h.camps.Get(nav.Context(), id)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("🗑 Delete <b>%s</b>?\n\nAll members and invitations will be removed. This cannot be undone.",
		format.EscapeHTML(camp.Title))
	return shared.Show(c, text,
		shared.Row(keyboard.InlineBtn{Text: "🗑 Delete", Unique: cbEditDelete}),
		shared.Row(shared.SwitchBtn("⬅️ Back", EditSelectField)),
	)
}

func (h *handlers) onEditDelete(c tele.Context) error {
	return h.dialogs.HandleIn(c, EditConfirmDelete, func(nav *state.Navigator) error {
		id, err := campaignFrom(nav)
		if err != nil {
			return err
		}
		if err := h.camps.Delete(nav.Context(), nav.UserID(), id); err != nil {
			return err
		}
		_ = tghelpers.Answer(c, "🗑 Campaign deleted", false)
		return nav.Done(editResult{Deleted: true})
	})
}
