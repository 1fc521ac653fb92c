package admin

import (
	"encoding/json"
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
	"github.com/m3rciful/tabletop/internal/campaign"
	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
)

// campaignFrom reads the campaign id from the start data of the current dialog.
func campaignFrom(nav *state.Navigator) (int64, error) {
	var ref campaignRef
	if err := nav.StartData(&ref); err != nil {
		return 0, err
	}
	if ref.CampaignID <= 0 {
		return 0, apperr.Validation("admin.campaign_ref", "no campaign selected")
	}
	return ref.CampaignID, nil
}

func describeCampaign(b *strings.Builder, c model.Campaign) {
	fmt.Fprintf(b, "<b>%s</b>", format.EscapeHTML(c.Title))
	if c.Verified {
		b.WriteString(" ✅")
	}
	b.WriteString("\n")
	if c.Description != "" {
		fmt.Fprintf(b, "\n%s\n", format.EscapeHTML(c.Description))
	}
}

// --- CampaignList ---

func (h *handlers) campaignListDialog() *state.Dialog {
	return &state.Dialog{
		Name:    CampaignListMain.Dialog(),
		Windows: []state.Window{{State: CampaignListMain, Render: h.renderCampaignList}},
	}
}

func (h *handlers) renderCampaignList(c tele.Context, nav *state.Navigator) error {
	user, err := shared.CurrentUser(c)
	if err != nil {
		return err
	}
	memberships, err := h.camps.ListForUser(nav.Context(), nav.UserID())
	if err != nil {
		return err
	}

	var rows [][]keyboard.InlineBtn
	for _, m := range memberships {
		if m.Role < role.Require(role.ActionManage) {
			continue
		}
		label := m.Title
		if m.Role == role.Owner {
			label = "👑 " + label
		}
		rows = append(rows, shared.Row(keyboard.InlineBtn{
			Text:   format.Truncate(label, 48),
			Unique: cbOpenCampaign,
			Data:   strconv.FormatInt(m.ID, 10),
		}))
	}

	text := "🏰 <b>Your campaigns</b>"
	if len(rows) == 0 {
		text += "\n\nYou do not run any campaigns yet."
	}
	rows = append(rows, shared.Row(keyboard.InlineBtn{Text: "➕ New campaign", Unique: cbNewCampaign}))
	if user.Admin {
		rows = append(rows, shared.Row(keyboard.InlineBtn{Text: "➕ New academy campaign", Unique: cbNewAcademy}))
	}
	return shared.Show(c, text, rows...)
}

func (h *handlers) onOpenCampaign(c tele.Context) error {
	id, err := callbacks.PayloadInt64(c)
	if err != nil {
		return apperr.Validation("admin.open_campaign", "malformed campaign id")
	}
	return h.dialogs.HandleIn(c, CampaignListMain, func(nav *state.Navigator) error {
		return nav.Start(CampaignManageMain, campaignRef{CampaignID: id})
	})
}

func (h *handlers) onNewCampaign(c tele.Context) error {
	return h.dialogs.HandleIn(c, CampaignListMain, func(nav *state.Navigator) error {
		return nav.Start(CreateTitle, nil)
	})
}

func (h *handlers) onNewAcademy(c tele.Context) error {
	user, err := shared.CurrentUser(c)
	if err != nil {
		return err
	}
	if !user.Admin {
		return apperr.Forbidden("admin.new_academy", "only administrators create academy campaigns")
	}
	return h.dialogs.HandleIn(c, CampaignListMain, func(nav *state.Navigator) error {
		return nav.Start(CreateTitle, createStart{Verified: true})
	})
}

// --- CreateCampaign ---

func (h *handlers) createCampaignDialog() *state.Dialog {
	return &state.Dialog{
		Name: CreateTitle.Dialog(),
		Windows: []state.Window{
			{State: CreateTitle, Render: renderCreateTitle, OnText: onCreateTitle},
			{State: CreateDescription, Render: renderCreateDescription, OnText: onCreateDescription},
			{State: CreateConfirm, Render: renderCreateConfirm},
		},
	}
}

func draftFrom(nav *state.Navigator) (campaign.Draft, error) {
	var d campaign.Draft
	var start createStart
	if err := nav.StartData(&start); err != nil {
		return d, err
	}
	d.Verified = start.Verified
	if _, err := nav.Get("title", &d.Title); err != nil {
		return d, err
	}
	if _, err := nav.Get("description", &d.Description); err != nil {
		return d, err
	}
	return d, nil
}

func renderCreateTitle(c tele.Context, nav *state.Navigator) error {
	d, err := draftFrom(nav)
	if err != nil {
		return err
	}
	text := "🏰 <b>New campaign</b>"
	if d.Verified {
		text = "🏰 <b>New academy campaign</b>"
	}
	text += fmt.Sprintf("\n\nSend the title (up to %d characters).", campaign.MaxTitleLen)
	return shared.Show(c, text, shared.Row(shared.CancelBtn("❌ Cancel")))
}

func onCreateTitle(c tele.Context, nav *state.Navigator) error {
	title, err := campaign.ValidateTitle(c.Text())
	if err != nil {
		return err
	}
	if err := nav.Set("title", title); err != nil {
		return err
	}
	return nav.Next()
}

func renderCreateDescription(c tele.Context, nav *state.Navigator) error {
	d, err := draftFrom(nav)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("📝 Title: <b>%s</b>\n\nNow send a description (up to %d characters) or skip this step.",
		format.EscapeHTML(d.Title), campaign.MaxDescriptionLen)
	return shared.Show(c, text,
		shared.Row(shared.BackBtn("⬅️ Back"), shared.NextBtn("Skip ⏩")),
		shared.Row(shared.CancelBtn("❌ Cancel")),
	)
}

func onCreateDescription(c tele.Context, nav *state.Navigator) error {
	desc, err := campaign.ValidateDescription(c.Text())
	if err != nil {
		return err
	}
	if err := nav.Set("description", desc); err != nil {
		return err
	}
	return nav.Next()
}

func renderCreateConfirm(c tele.Context, nav *state.Navigator) error {
	d, err := draftFrom(nav)
	if err != nil {
		return err
	}
	desc := d.Description
	if desc == "" {
		desc = "not set"
	}
	text := fmt.Sprintf("✅ <b>Check the new campaign</b>\n\n📝 Title: %s\n📄 Description: %s\n\nIs everything right?",
		format.EscapeHTML(d.Title), format.EscapeHTML(desc))
	if d.Verified {
		text += "\n\nThe campaign will be listed in the academy."
	}
	return shared.Show(c, text,
		shared.Row(keyboard.InlineBtn{Text: "✅ Create", Unique: cbCreateConfirm}),
		shared.Row(shared.BackBtn("⬅️ Back"), shared.CancelBtn("❌ Cancel")),
	)
}

func (h *handlers) onCreateConfirm(c tele.Context) error {
	return h.dialogs.HandleIn(c, CreateConfirm, func(nav *state.Navigator) error {
		d, err := draftFrom(nav)
		if err != nil {
			return err
		}
		created, err := h.camps.Create(nav.Context(), nav.UserID(), d)
		if err != nil {
			return err
		}
		_ = tghelpers.Answer(c, fmt.Sprintf("✅ %s was created", created.Title), false)
		return nav.Done(campaignRef{CampaignID: created.ID})
	})
}

// --- CampaignManage ---

func (h *handlers) campaignManageDialog() *state.Dialog {
	return &state.Dialog{
		Name:    CampaignManageMain.Dialog(),
		Windows: []state.Window{{State: CampaignManageMain, Render: h.renderCampaignManage}},
		OnStart: h.authorizeStart(role.ActionManage),
		OnProcessResult: func(_ tele.Context, nav *state.Navigator, child string, raw json.RawMessage) error {
			if child != EditSelectField.Dialog() || len(raw) == 0 {
				return nil
			}
			var res editResult
			if err := json.Unmarshal(raw, &res); err != nil {
				return err
			}
			if res.Deleted {
				return nav.Cancel()
			}
			return nil
		},
	}
}

// authorizeStart rejects opening a campaign-scoped dialog without the rights for a.
func (h *handlers) authorizeStart(a role.Action) state.Handler {
	return func(_ tele.Context, nav *state.Navigator) error {
		id, err := campaignFrom(nav)
		if err != nil {
			return err
		}
		_, err = h.camps.Authorize(nav.Context(), id, nav.UserID(), a)
		return err
	}
}

func (h *handlers) renderCampaignManage(c tele.Context, nav *state.Navigator) error {
	id, err := campaignFrom(nav)
	if err != nil {
		return err
	}
	me, err := h.camps.Authorize(nav.Context(), id, nav.UserID(), role.ActionManage)
	if err != nil {
		return err
	}
	camp, err := h.camps.Get(nav.Context(), id)
	if err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("⚙️ <b>Campaign management</b>\n\n")
	describeCampaign(&b, camp)
	fmt.Fprintf(&b, "\nYour role: %s", me.Role)

	var rows [][]keyboard.InlineBtn
	if role.Allowed(me, role.ActionEditInfo) {
		rows = append(rows, shared.Row(keyboard.InlineBtn{Text: "✏️ Edit info", Unique: cbEditInfo}))
	}
	if role.Allowed(me, role.ActionManageMasters) {
		rows = append(rows, shared.Row(keyboard.InlineBtn{Text: "🧙 Masters", Unique: cbMasters}))
	}
	if role.Allowed(me, role.ActionInvitePlayer) {
		rows = append(rows, shared.Row(keyboard.InlineBtn{Text: "✉️ Invite player", Unique: cbInvitePlayer}))
	}
	if role.Allowed(me, role.ActionManagePlayers) {
		rows = append(rows, shared.Row(keyboard.InlineBtn{Text: "🎲 Players", Unique: cbPlayers}))
	}
	if role.Allowed(me, role.ActionManageItems) {
		rows = append(rows, shared.Row(keyboard.InlineBtn{Text: "🎒 Campaign stash", Unique: cbStash}))
	}
	rows = append(rows, shared.Row(shared.CancelBtn("⬅️ Back to campaigns")))
	return shared.Show(c, b.String(), rows...)
}

// startFromManage opens a campaign-scoped child dialog of CampaignManage.
func (h *handlers) startFromManage(c tele.Context, to state.State, data func(id int64) any) error {
	return h.dialogs.HandleIn(c, CampaignManageMain, func(nav *state.Navigator) error {
		id, err := campaignFrom(nav)
		if err != nil {
			return err
		}
		return nav.Start(to, data(id))
	})
}

func (h *handlers) onEditInfo(c tele.Context) error {
	return h.startFromManage(c, EditSelectField, func(id int64) any { return campaignRef{CampaignID: id} })
}

func (h *handlers) onMasters(c tele.Context) error {
	return h.startFromManage(c, PermissionsMain, func(id int64) any { return campaignRef{CampaignID: id} })
}

func (h *handlers) onInvitePlayer(c tele.Context) error {
	return h.startFromManage(c, InviteMain, func(id int64) any {
		return inviteStart{CampaignID: id, Role: role.Player.String()}
	})
}
