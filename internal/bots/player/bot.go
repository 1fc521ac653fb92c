// Package player is the bot used by players to join and browse campaigns.
package player

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
const Name = "player"

// Deps are the services behind the player bot.
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

// New wires the player bot.
func New(d Deps) (*shared.Bot, error) {
	if d.Campaigns == nil || d.Invites == nil || d.Characters == nil || d.Inventory == nil {
		return nil, apperr.Configuration("player.new", "campaign, invitation, character and inventory services are required")
	}
	h := &handlers{
		camps:   d.Campaigns,
		invites: d.Invites,
		chars:   d.Characters,
		inv:     d.Inventory,
		dialogs: state.NewManager(d.Sessions),
	}
	if err := h.dialogs.Register(
		h.startDialog(),
		h.myCampaignsDialog(),
		h.campaignPreviewDialog(),
		h.invitationAcceptDialog(),
		h.characterDialog(),
		h.ratingDialog(),
	); err != nil {
		return nil, err
	}

	reg := tg.NewRegistry()
	cmds := map[string]commands.Command{
		"/start": {
			Handler:     shared.Guard(h.start),
			Description: "Main menu",
		},
		"/campaigns": {
			Handler:     shared.Guard(h.campaigns),
			Description: "Your campaigns",
		},
		"/rating": {
			Handler:     shared.Guard(h.rating),
			Description: "Top players",
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

	nav := shared.Navigation{Dialogs: h.dialogs, Home: StartMain}
	if err := nav.Register(reg); err != nil {
		return nil, err
	}
	callbacks := map[string]tele.HandlerFunc{
		cbMyCampaigns:  h.onMyCampaigns,
		cbOpenCampaign: h.onOpenCampaign,
		cbAccept:       h.onAccept,
		cbRating:       h.onRating,
		cbCharacter:    h.onCharacter,
	}
	for key, fn := range callbacks {
		if err := reg.RegisterCallback(key, shared.Guard(fn)); err != nil {
			return nil, err
		}
	}
	reg.SetTextFallback(func(c tele.Context) error {
		return tghelpers.SendHTML(c, "Send /start to open the menu.")
	})

	return &shared.Bot{Name: Name, Registry: reg, Dialogs: h.dialogs}, nil
}

// start handles /start. A payload is an invitation token from a deep link:
// it is checked before anything is shown, and members go straight to the campaign.
func (h *handlers) start(c tele.Context) error {
	token := strings.TrimSpace(c.Message().Payload)
	if token == "" {
		return h.dialogs.Start(c, StartMain, nil, state.ResetStack())
	}
	pv, err := h.invites.Preview(tghelpers.BuildContext(c), token, c.Sender().ID)
	if err != nil {
		return err
	}
	if pv.AlreadyMember {
		msg := fmt.Sprintf("🗳️ You already take part in <b>%s</b>.", format.EscapeHTML(pv.Campaign.Title))
		if err := c.Send(msg, &tele.SendOptions{ParseMode: tele.ModeHTML}); err != nil {
			return err
		}
		return h.dialogs.Start(c, StartMain, campaignRef{CampaignID: pv.Campaign.ID},
			state.ResetStack(), state.Then(CampaignPreviewMain))
	}
	return h.dialogs.Start(c, InvitationAcceptMain, acceptStart{Token: token}, state.ResetStack())
}

func (h *handlers) campaigns(c tele.Context) error {
	return h.dialogs.Start(c, StartMain, nil, state.ResetStack(), state.Then(MyCampaignsMain))
}

func (h *handlers) rating(c tele.Context) error {
	return h.dialogs.Start(c, StartMain, nil, state.ResetStack(), state.Then(RatingMain))
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
