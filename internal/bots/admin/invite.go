package admin

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/telegram/format"
	tghelpers "github.com/m3rciful/tabletop/core/telegram/helpers"
	"github.com/m3rciful/tabletop/core/telegram/keyboard"
	"github.com/m3rciful/tabletop/core/telegram/state"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/bots/shared"
	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
)

const invitationKey = "invitation_id"

// invitePreview is what the accept window shows.
type invitePreview struct {
	Title         string `json:"title"`
	Role          string `json:"role"`
	AlreadyMember bool   `json:"already_member"`
}

func (h *handlers) inviteMenuDialog() *state.Dialog {
	return &state.Dialog{
		Name:    InviteMain.Dialog(),
		OnStart: h.startInviteMenu,
		Windows: []state.Window{
			{State: InviteMain, Render: h.renderInvite, OnText: h.onInviteUsername},
			{State: InviteQR, Render: h.renderInviteQR},
			{State: InviteAccept, Render: renderInviteAccept},
		},
	}
}

// startInviteMenu either issues a fresh invitation or previews the one being accepted.
func (h *handlers) startInviteMenu(_ tele.Context, nav *state.Navigator) error {
	var start inviteStart
	if err := nav.StartData(&start); err != nil {
		return err
	}
	if cur, _ := nav.Current(); cur == InviteAccept {
		pv, err := h.invites.Preview(nav.Context(), start.Token, nav.UserID())
		if err != nil {
			return err
		}
		return nav.Set("preview", invitePreview{
			Title:         pv.Campaign.Title,
			Role:          pv.Invitation.Role.String(),
			AlreadyMember: pv.AlreadyMember,
		})
	}

	r, err := role.Parse(start.Role)
	if err != nil {
		return err
	}
	inv, err := h.invites.CreateInvite(nav.Context(), start.CampaignID, r, nav.UserID())
	if err != nil {
		return err
	}
	return nav.Set(invitationKey, inv.ID)
}

func (h *handlers) currentInvitation(nav *state.Navigator) (model.Invitation, error) {
	var id uuid.UUID
	ok, err := nav.Get(invitationKey, &id)
	if err != nil {
		return model.Invitation{}, err
	}
	if !ok {
		return model.Invitation{}, apperr.NotFound("admin.invitation", "no invitation issued")
	}
	return h.invites.Get(nav.Context(), id)
}

func (h *handlers) renderInvite(c tele.Context, nav *state.Navigator) error {
	inv, err := h.currentInvitation(nav)
	if err != nil {
		return err
	}
	link, err := h.invites.GenerateLink(inv)
	if err != nil {
		return err
	}
	camp, err := h.camps.Get(nav.Context(), inv.CampaignID)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("✉️ <b>Invite a %s to %s</b>\n\nShare this single-use link:\n%s\n\n"+
		"Or send me the @username of someone who has already started the bot.",
		inv.Role, format.EscapeHTML(camp.Title), format.EscapeHTML(link))
	return shared.Show(c, text,
		shared.Row(keyboard.InlineBtn{Text: "🔄 New link", Unique: cbRegenerate}, shared.NextBtn("📷 QR code")),
		shared.Row(shared.CancelBtn("⬅️ Back")),
	)
}

func (h *handlers) onInviteUsername(c tele.Context, nav *state.Navigator) error {
	username := strings.TrimPrefix(strings.TrimSpace(c.Text()), "@")
	if username == "" || strings.ContainsAny(username, " \n\t") {
		return apperr.Validation("admin.invite_user", "send a single @username")
	}
	inv, err := h.currentInvitation(nav)
	if err != nil {
		return err
	}
	target, err := h.invites.InviteUser(nav.Context(), inv.ID, username, nav.UserID())
	if err != nil {
		return err
	}
	if err := tghelpers.ShowHTML(c, fmt.Sprintf("📨 Invitation sent to %s.", format.EscapeHTML(target.Handle()))); err != nil {
		return err
	}
	return nav.Done(nil)
}

func (h *handlers) onRegenerate(c tele.Context) error {
	return h.dialogs.HandleIn(c, InviteMain, func(nav *state.Navigator) error {
		inv, err := h.currentInvitation(nav)
		if err != nil {
			return err
		}
		fresh, err := h.invites.Regenerate(nav.Context(), inv.ID, nav.UserID())
		if err != nil {
			return err
		}
		_ = tghelpers.Answer(c, "🔄 The previous link no longer works", false)
		return nav.Set(invitationKey, fresh.ID)
	})
}

func (h *handlers) renderInviteQR(c tele.Context, nav *state.Navigator) error {
	inv, err := h.currentInvitation(nav)
	if err != nil {
		return err
	}
	link, err := h.invites.GenerateLink(inv)
	if err != nil {
		return err
	}
	path, err := h.invites.GenerateQR(link)
	if err != nil {
		return err
	}
	caption := fmt.Sprintf("📷 Scan to join as %s.", inv.Role)
	return tghelpers.SendPhotoFile(c, path, caption, shared.Markup(shared.Row(shared.BackBtn("⬅️ Back"))))
}

func renderInviteAccept(c tele.Context, nav *state.Navigator) error {
	var pv invitePreview
	if _, err := nav.Get("preview", &pv); err != nil {
		return err
	}
	if pv.AlreadyMember {
		return shared.Show(c, fmt.Sprintf("You are already a member of <b>%s</b>.", format.EscapeHTML(pv.Title)),
			shared.Row(keyboard.InlineBtn{Text: "➡️ Open", Unique: cbAccept}),
			shared.Row(shared.CancelBtn("⬅️ Campaigns")),
		)
	}
	text := fmt.Sprintf("✉️ You are invited to <b>%s</b> as %s.\n\nAccept the invitation?",
		format.EscapeHTML(pv.Title), pv.Role)
	return shared.Show(c, text,
		shared.Row(keyboard.InlineBtn{Text: "✅ Accept", Unique: cbAccept}),
		shared.Row(shared.CancelBtn("❌ Decline")),
	)
}

func (h *handlers) onAccept(c tele.Context) error {
	return h.dialogs.HandleIn(c, InviteAccept, func(nav *state.Navigator) error {
		var start inviteStart
		if err := nav.StartData(&start); err != nil {
			return err
		}
		red, err := h.invites.Redeem(nav.Context(), start.Token, nav.UserID())
		if err != nil {
			return err
		}
		if red.AlreadyMember {
			_ = tghelpers.Answer(c, "You are already a member", false)
		} else {
			_ = tghelpers.Answer(c, fmt.Sprintf("✅ You joined %s", red.Campaign.Title), false)
		}
		ref := campaignRef{CampaignID: red.Campaign.ID}
		if role.Allowed(red.Participation, role.ActionManage) {
			return nav.Start(CampaignListMain, ref, state.ResetStack(), state.Then(CampaignManageMain))
		}
		return nav.Start(CampaignListMain, ref, state.ResetStack())
	})
}
