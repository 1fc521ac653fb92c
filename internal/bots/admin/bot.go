// Package admin is the bot used by campaign owners and masters.
package admin

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/tabletop/core/telegram"
	"github.com/m3rciful/tabletop/core/telegram/commands"
	"github.com/m3rciful/tabletop/core/telegram/format"
	tghelpers "github.com/m3rciful/tabletop/core/telegram/helpers"
	"github.com/m3rciful/tabletop/core/telegram/state"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/bots/shared"
	"github.com/m3rciful/tabletop/internal/campaign"
	"github.com/m3rciful/tabletop/internal/character"
	"github.com/m3rciful/tabletop/internal/inventory"
	"github.com/m3rciful/tabletop/internal/invitation"
)

// Name labels the bot in logs and session keys.
const Name = "admin"

// Deps are the services behind the admin bot.
type Deps struct {
	Campaigns  *campaign.Service
	Invites    *invitation.Service
	Characters *character.Service
	Inventory  *inventory.Service
	// Sessions keeps dialog stacks; nil keeps them in memory.
	Sessions state.Store
}

type handlers struct {
	camps   *campaign.Service
	invites *invitation.Service
	chars   *character.Service
	inv     *inventory.Service
	dialogs *state.Manager
}

// New wires the admin bot's dialogs, commands and callbacks.
func New(d Deps) (*shared.Bot, error) {
	if d.Campaigns == nil || d.Invites == nil || d.Characters == nil || d.Inventory == nil {
		return nil, apperr.Configuration("admin.new", "campaign, invitation, character and inventory services are required")
	}
	h := &handlers{
		camps:   d.Campaigns,
		invites: d.Invites,
		chars:   d.Characters,
		inv:     d.Inventory,
		dialogs: state.NewManager(d.Sessions),
	}
	if err := h.dialogs.Register(
		h.campaignListDialog(),
		h.createCampaignDialog(),
		h.campaignManageDialog(),
		h.editCampaignDialog(),
		h.permissionsDialog(),
		h.playersDialog(),
		h.inventoryDialog(),
		h.inviteMenuDialog(),
	); err != nil {
		return nil, err
	}

	reg := tg.NewRegistry()
	cmds := map[string]commands.Command{
		"/start": {
			Handler:     shared.Guard(h.start),
			Description: "Open your campaigns",
		},
		"/academy": {
			Handler:     shared.Guard(h.academy),
			Description: "Create an academy campaign",
			AdminOnly:   true,
		},
		"/cancel": {
			Handler:     shared.Guard(h.cancel),
			Description: "Close the current menu",
		},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return nil, err
		}
	}

	nav := shared.Navigation{Dialogs: h.dialogs, Home: CampaignListMain}
	if err := nav.Register(reg); err != nil {
		return nil, err
	}
	callbacks := map[string]tele.HandlerFunc{
		cbOpenCampaign:  h.onOpenCampaign,
		cbNewCampaign:   h.onNewCampaign,
		cbNewAcademy:    h.onNewAcademy,
		cbCreateConfirm: h.onCreateConfirm,
		cbEditInfo:      h.onEditInfo,
		cbMasters:       h.onMasters,
		cbInvitePlayer:  h.onInvitePlayer,
		cbPlayers:       h.onPlayers,
		cbStash:         h.onStash,
		cbSelectPlayer:  h.onSelectPlayer,
		cbRating:        h.onRating,
		cbExport:        h.onExport,
		cbInventory:     h.onPlayerInventory,
		cbSelectItem:    h.onSelectItem,
		cbDeleteItem:    h.onDeleteItem,
		cbEditSave:      h.onEditSave,
		cbEditDelete:    h.onEditDelete,
		cbSelectMaster:  h.onSelectMaster,
		cbRemoveMaster:  h.onRemoveMaster,
		cbDemoteMaster:  h.onDemoteMaster,
		cbInviteMaster:  h.onInviteMaster,
		cbRegenerate:    h.onRegenerate,
		cbAccept:        h.onAccept,
	}
	for key, fn := range callbacks {
		if err := reg.RegisterCallback(key, shared.Guard(fn)); err != nil {
			return nil, err
		}
	}
	reg.SetTextFallback(func(c tele.Context) error {
		return tghelpers.SendHTML(c, "Send /start to open your campaigns.")
	})

	return &shared.Bot{Name: Name, Registry: reg, Dialogs: h.dialogs}, nil
}

// start handles /start. A payload is an invitation token from a deep link.
func (h *handlers) start(c tele.Context) error {
	user, err := shared.CurrentUser(c)
	if err != nil {
		return err
	}
	if token := strings.TrimSpace(c.Message().Payload); token != "" {
		return h.dialogs.Start(c, InviteAccept, inviteStart{Token: token}, state.ResetStack())
	}
	welcome := fmt.Sprintf("Greetings, Master %s!\n\nI will help you run your tabletop campaigns.",
		format.EscapeHTML(user.Handle()))
	if err := c.Send(welcome, &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
		return err
	}
	return h.dialogs.Start(c, CampaignListMain, nil, state.ResetStack())
}

// academy opens the campaign list and goes straight on to creating a verified campaign.
func (h *handlers) academy(c tele.Context) error {
	return h.dialogs.Start(c, CampaignListMain, createStart{Verified: true},
		state.ResetStack(), state.Then(CreateTitle))
}

func (h *handlers) cancel(c tele.Context) error {
	if err := h.dialogs.Handle(c, func(nav *state.Navigator) error {
		nav.Reset()
		return nil
	}); err != nil {
		return err
	}
	return tghelpers.SendHTML(c, "Menu closed. Send /start to open it again.")
}
