package admin

import (
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
	"github.com/m3rciful/tabletop/internal/character"
	"github.com/m3rciful/tabletop/internal/role"
)

const playerKey = "player_id"

// ratingSteps are the quick rating buttons on a player card.
var ratingSteps = []int{-5, -1, 1, 5}

func (h *handlers) playersDialog() *state.Dialog {
	return &state.Dialog{
		Name:    PlayersMain.Dialog(),
		OnStart: h.authorizeStart(role.ActionManagePlayers),
		Windows: []state.Window{
			{State: PlayersMain, Render: h.renderPlayers},
			{State: PlayerCard, Render: h.renderPlayerCard},
			{State: PlayerLevel, Render: renderPlayerLevel, OnText: h.onPlayerLevel},
			{State: PlayerRating, Render: renderPlayerRating, OnText: h.onPlayerRating},
		},
	}
}

func (h *handlers) onPlayers(c tele.Context) error {
	return h.startFromManage(c, PlayersMain, func(id int64) any { return campaignRef{CampaignID: id} })
}

func (h *handlers) renderPlayers(c tele.Context, nav *state.Navigator) error {
	id, err := campaignFrom(nav)
	if err != nil {
		return err
	}
	roster, err := h.chars.Roster(nav.Context(), nav.UserID(), id)
	if err != nil {
		return err
	}
	text := "🎲 <b>Players</b>\n\nSelect a player to see their character."
	if len(roster) == 0 {
		text = "🎲 <b>Players</b>\n\nNobody has joined as a player yet."
	}
	var rows [][]keyboard.InlineBtn
	for _, p := range roster {
		label := fmt.Sprintf("%s ⭐%d", p.Handle(), p.Rating)
		if p.CharacterName != nil && p.Level != nil {
			label += fmt.Sprintf(" · %s (%d)", *p.CharacterName, *p.Level)
		}
		rows = append(rows, shared.Row(keyboard.InlineBtn{
			Text:   format.Truncate(label, 48),
			Unique: cbSelectPlayer,
			Data:   strconv.FormatInt(p.UserID, 10),
		}))
	}
	rows = append(rows, shared.Row(shared.CancelBtn("⬅️ Back")))
	return shared.Show(c, text, rows...)
}

func (h *handlers) onSelectPlayer(c tele.Context) error {
	userID, err := callbacks.PayloadInt64(c)
	if err != nil {
		return apperr.Validation("admin.select_player", "malformed user id")
	}
	return h.dialogs.HandleIn(c, PlayersMain, func(nav *state.Navigator) error {
		id, err := campaignFrom(nav)
		if err != nil {
			return err
		}
		if _, err := h.chars.Player(nav.Context(), nav.UserID(), id, userID); err != nil {
			return err
		}
		if err := nav.Set(playerKey, userID); err != nil {
			return err
		}
		return nav.SwitchTo(PlayerCard)
	})
}

// selectedPlayer returns the campaign and the player picked in PlayersMain.
func selectedPlayer(nav *state.Navigator) (campaignID, userID int64, err error) {
	if campaignID, err = campaignFrom(nav); err != nil {
		return 0, 0, err
	}
	ok, err := nav.Get(playerKey, &userID)
	if err != nil {
		return 0, 0, err
	}
	if !ok {
		return 0, 0, apperr.Validation("admin.selected_player", "no player selected")
	}
	return campaignID, userID, nil
}

func (h *handlers) renderPlayerCard(c tele.Context, nav *state.Navigator) error {
	id, userID, err := selectedPlayer(nav)
	if err != nil {
		return err
	}
	card, err := h.chars.Player(nav.Context(), nav.UserID(), id, userID)
	if err != nil {
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🎲 <b>%s</b>\n⭐ Rating: %d\n\n", format.EscapeHTML(card.User.Handle()), card.User.Rating)
	if card.Character == nil {
		b.WriteString("No character uploaded yet.")
	} else {
		shared.DescribeCharacter(&b, *card.Character, card.Sheet)
	}

	steps := make([]keyboard.InlineBtn, 0, len(ratingSteps))
	for _, d := range ratingSteps {
		steps = append(steps, keyboard.InlineBtn{Text: fmt.Sprintf("%+d", d), Unique: cbRating, Data: strconv.Itoa(d)})
	}
	rows := [][]keyboard.InlineBtn{
		steps,
		shared.Row(shared.SwitchBtn("⭐ Set rating", PlayerRating)),
	}
	if card.Character != nil {
		rows = append(rows, shared.Row(shared.SwitchBtn("📈 Change level", PlayerLevel)))
		if card.Character.Sheet != nil {
			rows = append(rows, shared.Row(keyboard.InlineBtn{Text: "📄 Download sheet", Unique: cbExport}))
		}
	}
	rows = append(rows,
		shared.Row(keyboard.InlineBtn{Text: "🎒 Inventory", Unique: cbInventory}),
		shared.Row(shared.SwitchBtn("⬅️ Back", PlayersMain)),
	)
	return shared.Show(c, b.String(), rows...)
}

func (h *handlers) onRating(c tele.Context) error {
	delta, err := strconv.Atoi(callbacks.CallbackPayload(c))
	if err != nil {
		return apperr.Validation("admin.rating", "malformed rating step")
	}
	return h.dialogs.HandleIn(c, PlayerCard, func(nav *state.Navigator) error {
		id, userID, err := selectedPlayer(nav)
		if err != nil {
			return err
		}
		u, err := h.chars.AdjustRating(nav.Context(), nav.UserID(), id, userID, delta)
		if err != nil {
			return err
		}
		_ = tghelpers.Answer(c, fmt.Sprintf("⭐ Rating: %d", u.Rating), false)
		return nav.SwitchTo(PlayerCard)
	})
}

func (h *handlers) onExport(c tele.Context) error {
	return h.dialogs.HandleIn(c, PlayerCard, func(nav *state.Navigator) error {
		id, userID, err := selectedPlayer(nav)
		if err != nil {
			return err
		}
		name, data, err := h.chars.Export(nav.Context(), nav.UserID(), id, userID)
		if err != nil {
			return err
		}
		_ = tghelpers.Answer(c, "📄 Sending the sheet", false)
		return tghelpers.SendDocument(c, name, data, "")
	})
}

func (h *handlers) onPlayerInventory(c tele.Context) error {
	return h.dialogs.HandleIn(c, PlayerCard, func(nav *state.Navigator) error {
		id, userID, err := selectedPlayer(nav)
		if err != nil {
			return err
		}
		return nav.Start(InventoryMain, inventoryRef{CampaignID: id, HolderID: userID})
	})
}

func renderPlayerLevel(c tele.Context, _ *state.Navigator) error {
	return shared.Show(c, fmt.Sprintf("📈 Send the new level (1 to %d).", character.MaxLevel),
		shared.Row(shared.SwitchBtn("⬅️ Back", PlayerCard)))
}

func (h *handlers) onPlayerLevel(c tele.Context, nav *state.Navigator) error {
	level, err := character.ParseNumber("character.level", c.Text())
	if err != nil {
		return err
	}
	id, userID, err := selectedPlayer(nav)
	if err != nil {
		return err
	}
	if _, err := h.chars.SetLevel(nav.Context(), nav.UserID(), id, userID, level); err != nil {
		return err
	}
	return nav.SwitchTo(PlayerCard)
}

func renderPlayerRating(c tele.Context, _ *state.Navigator) error {
	return shared.Show(c, fmt.Sprintf("⭐ Send the new rating (0 to %d).", character.MaxRating),
		shared.Row(shared.SwitchBtn("⬅️ Back", PlayerCard)))
}

func (h *handlers) onPlayerRating(c tele.Context, nav *state.Navigator) error {
	rating, err := character.ParseNumber("character.rating", c.Text())
	if err != nil {
		return err
	}
	id, userID, err := selectedPlayer(nav)
	if err != nil {
		return err
	}
	if _, err := h.chars.SetRating(nav.Context(), nav.UserID(), id, userID, rating); err != nil {
		return err
	}
	return nav.SwitchTo(PlayerCard)
}
