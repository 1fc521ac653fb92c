package player

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/telegram/callbacks"
	"github.com/m3rciful/tabletop/core/telegram/format"
	tghelpers "github.com/m3rciful/tabletop/core/telegram/helpers"
	"github.com/m3rciful/tabletop/core/telegram/keyboard"
	"github.com/m3rciful/tabletop/core/telegram/state"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/bots/shared"
	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
)

func (h *handlers) startDialog() *state.Dialog {
	return &state.Dialog{
		Name:    StartMain.Dialog(),
		Windows: []state.Window{{State: StartMain, Render: renderStart}},
	}
}

func renderStart(c tele.Context, _ *state.Navigator) error {
	user, err := shared.CurrentUser(c)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("🎲 Welcome, %s!\n\nJoin a campaign with the invitation link from your master, "+
		"or open the campaigns you already play in.", format.EscapeHTML(user.Handle()))
	return shared.Show(c, text, shared.Row(
		keyboard.InlineBtn{Text: "📜 My campaigns", Unique: cbMyCampaigns},
		keyboard.InlineBtn{Text: "🏆 Rating", Unique: cbRating},
	))
}

func (h *handlers) onMyCampaigns(c tele.Context) error {
	return h.dialogs.HandleIn(c, StartMain, func(nav *state.Navigator) error {
		return nav.Start(MyCampaignsMain, nil)
	})
}

// --- MyCampaigns ---

func (h *handlers) myCampaignsDialog() *state.Dialog {
	return &state.Dialog{
		Name:    MyCampaignsMain.Dialog(),
		Windows: []state.Window{{State: MyCampaignsMain, Render: h.renderMyCampaigns}},
	}
}

func (h *handlers) renderMyCampaigns(c tele.Context, nav *state.Navigator) error {
	memberships, err := h.camps.ListForUser(nav.Context(), nav.UserID())
	if err != nil {
		return err
	}
	text := "📜 <b>Your campaigns</b>"
	if len(memberships) == 0 {
		text += "\n\nYou have not joined any campaign yet. Ask a master for an invitation link."
	}
	rows := make([][]keyboard.InlineBtn, 0, len(memberships)+1)
	for _, m := range memberships {
		label := m.Title
		if m.Verified {
			label = "🎓 " + label
		}
		rows = append(rows, shared.Row(keyboard.InlineBtn{
			Text:   format.Truncate(label, 48),
			Unique: cbOpenCampaign,
			Data:   strconv.FormatInt(m.ID, 10),
		}))
	}
	rows = append(rows, shared.Row(shared.CancelBtn("⬅️ Back")))
	return shared.Show(c, text, rows...)
}

func (h *handlers) onOpenCampaign(c tele.Context) error {
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return apperr.Validation("player.open_campaign", "malformed campaign id")
	}
	return h.dialogs.HandleIn(c, MyCampaignsMain, func(nav *state.Navigator) error {
		return nav.Start(CampaignPreviewMain, campaignRef{CampaignID: id})
	})
}

// --- CampaignPreview ---

func (h *handlers) campaignPreviewDialog() *state.Dialog {
	return &state.Dialog{
		Name: CampaignPreviewMain.Dialog(),
		OnStart: func(_ tele.Context, nav *state.Navigator) error {
			_, err := h.membership(nav)
			return err
		},
		Windows: []state.Window{{State: CampaignPreviewMain, Render: h.renderCampaignPreview}},
	}
}

// membership returns the user's participation in the campaign of the current dialog.
func (h *handlers) membership(nav *state.Navigator) (model.Participation, error) {
	const op = "player.campaign_preview"
	var ref campaignRef
	if err := nav.StartData(&ref); err != nil {
		return model.Participation{}, err
	}
	if ref.CampaignID <= 0 {
		return model.Participation{}, apperr.Validation(op, "no campaign selected")
	}
	p, err := h.camps.Membership(nav.Context(), ref.CampaignID, nav.UserID())
	if errors.Is(err, apperr.ErrNotFound) {
		return model.Participation{}, apperr.Forbidden(op, "you are not a member of this campaign")
	}
	return p, err
}

func (h *handlers) renderCampaignPreview(c tele.Context, nav *state.Navigator) error {
	p, err := h.membership(nav)
	if err != nil {
		return err
	}
	camp, err := h.camps.Get(nav.Context(), p.CampaignID)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🏰 <b>%s</b>", format.EscapeHTML(camp.Title))
	if camp.Verified {
		b.WriteString(" 🎓")
	}
	b.WriteString("\n")
	if camp.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", format.EscapeHTML(camp.Description))
	}
	fmt.Fprintf(&b, "\nYou play as: %s", p.Role)
	var rows [][]keyboard.InlineBtn
	if p.Role >= role.Master {
		b.WriteString("\nManage this campaign in the admin bot.")
	} else {
		rows = append(rows, shared.Row(keyboard.InlineBtn{Text: "🧝 My character", Unique: cbCharacter}))
	}
	rows = append(rows, shared.Row(shared.CancelBtn("⬅️ Back")))
	return shared.Show(c, b.String(), rows...)
}

// --- InvitationAccept ---

type invitePreview struct {
	Title string `json:"title"`
	Role  string `json:"role"`
}

func (h *handlers) invitationAcceptDialog() *state.Dialog {
	return &state.Dialog{
		Name: InvitationAcceptMain.Dialog(),
		OnStart: func(_ tele.Context, nav *state.Navigator) error {
			var start acceptStart
			if err := nav.StartData(&start); err != nil {
				return err
			}
			pv, err := h.invites.Preview(nav.Context(), start.Token, nav.UserID())
			if err != nil {
				return err
			}
			return nav.Set("preview", invitePreview{Title: pv.Campaign.Title, Role: pv.Invitation.Role.String()})
		},
		Windows: []state.Window{{State: InvitationAcceptMain, Render: renderInvitationAccept}},
	}
}

func renderInvitationAccept(c tele.Context, nav *state.Navigator) error {
	var pv invitePreview
	if _, err := nav.Get("preview", &pv); err != nil {
		return err
	}
	text := fmt.Sprintf("✉️ You are invited to <b>%s</b> as <b>%s</b>.", format.EscapeHTML(pv.Title), pv.Role)
	return shared.Show(c, text,
		shared.Row(keyboard.InlineBtn{Text: "✅ Join", Unique: cbAccept}),
		shared.Row(shared.CancelBtn("❌ Decline")),
	)
}

func (h *handlers) onAccept(c tele.Context) error {
	return h.dialogs.HandleIn(c, InvitationAcceptMain, func(nav *state.Navigator) error {
		var start acceptStart
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
			_ = tghelpers.Answer(c, fmt.Sprintf("Invitation to %s accepted!", red.Campaign.Title), false)
		}
		return nav.Start(StartMain, campaignRef{CampaignID: red.Campaign.ID},
			state.ResetStack(), state.Then(MyCampaignsMain, CampaignPreviewMain))
	})
}
