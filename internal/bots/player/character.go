package player

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/telegram/format"
	"github.com/m3rciful/tabletop/core/telegram/state"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/bots/shared"
	"github.com/m3rciful/tabletop/internal/character"
	"github.com/m3rciful/tabletop/internal/inventory"
)

// --- Character ---

func (h *handlers) characterDialog() *state.Dialog {
	return &state.Dialog{
		Name: CharacterMain.Dialog(),
		OnStart: func(_ tele.Context, nav *state.Navigator) error {
			_, err := h.membership(nav)
			return err
		},
		Windows: []state.Window{
			{State: CharacterMain, Render: h.renderCharacter},
			{State: CharacterUpload, Render: renderCharacterUpload, OnText: h.onCharacterUpload},
			{State: CharacterInventory, Render: h.renderCharacterInventory},
		},
	}
}

func (h *handlers) onCharacter(c tele.Context) error {
	return h.dialogs.HandleIn(c, CampaignPreviewMain, func(nav *state.Navigator) error {
		p, err := h.membership(nav)
		if err != nil {
			return err
		}
		return nav.Start(CharacterMain, campaignRef{CampaignID: p.CampaignID})
	})
}

func (h *handlers) renderCharacter(c tele.Context, nav *state.Navigator) error {
	p, err := h.membership(nav)
	if err != nil {
		return err
	}
	card, err := h.chars.Own(nav.Context(), nav.UserID(), p.CampaignID)
	if err != nil {
		return err
	}
	var b strings.Builder
	if card.Character == nil {
		b.WriteString("🧝 You have not uploaded a character for this campaign yet.\n")
	} else {
		shared.DescribeCharacter(&b, *card.Character, card.Sheet)
	}
	fmt.Fprintf(&b, "\n⭐ Your rating: %d", card.User.Rating)

	upload := "📤 Upload sheet"
	if card.Character != nil {
		upload = "📤 Replace sheet"
	}
	return shared.Show(c, b.String(),
		shared.Row(shared.SwitchBtn(upload, CharacterUpload), shared.SwitchBtn("🎒 Inventory", CharacterInventory)),
		shared.Row(shared.CancelBtn("⬅️ Back")),
	)
}

func renderCharacterUpload(c tele.Context, _ *state.Navigator) error {
	text := fmt.Sprintf("📤 Send your Long Story Short character export as a <b>.json</b> file (up to %d KB).\n\n"+
		"Name and level are read from the sheet.", character.MaxSheetBytes>>10)
	return shared.Show(c, text, shared.Row(shared.SwitchBtn("⬅️ Back", CharacterMain)))
}

func (h *handlers) onCharacterUpload(c tele.Context, nav *state.Navigator) error {
	const op = "player.sheet_upload"
	doc := c.Message().Document
	if doc == nil {
		return apperr.Validation(op, "send the character sheet as a .json file")
	}
	if !strings.EqualFold(filepath.Ext(doc.FileName), ".json") {
		return apperr.Validation(op, "the character sheet must be a .json file")
	}
	if doc.FileSize > character.MaxSheetBytes {
		return apperr.Validation(op, fmt.Sprintf("the file is larger than %d KB", character.MaxSheetBytes>>10))
	}
	p, err := h.membership(nav)
	if err != nil {
		return err
	}
	rc, err := c.Bot().File(&doc.File)
	if err != nil {
		return fmt.Errorf("%s: download: %w", op, err)
	}
	defer rc.Close()
	raw, err := io.ReadAll(io.LimitReader(rc, character.MaxSheetBytes+1))
	if err != nil {
		return fmt.Errorf("%s: read: %w", op, err)
	}
	if _, err := h.chars.Upload(nav.Context(), nav.UserID(), p.CampaignID, raw); err != nil {
		return err
	}
	return nav.SwitchTo(CharacterMain)
}

func (h *handlers) renderCharacterInventory(c tele.Context, nav *state.Navigator) error {
	p, err := h.membership(nav)
	if err != nil {
		return err
	}
	own, err := h.inv.List(nav.Context(), nav.UserID(), p.CampaignID, nav.UserID())
	if err != nil {
		return err
	}
	stash, err := h.inv.List(nav.Context(), nav.UserID(), p.CampaignID, inventory.Stash)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("🎒 <b>Your inventory</b>\n")
	shared.DescribeItems(&b, own)
	b.WriteString("\n📦 <b>Campaign stash</b>\n")
	shared.DescribeItems(&b, stash)
	return shared.Show(c, b.String(), shared.Row(shared.SwitchBtn("⬅️ Back", CharacterMain)))
}

// --- Rating ---

func (h *handlers) ratingDialog() *state.Dialog {
	return &state.Dialog{
		Name:    RatingMain.Dialog(),
		Windows: []state.Window{{State: RatingMain, Render: h.renderRating}},
	}
}

func (h *handlers) onRating(c tele.Context) error {
	return h.dialogs.HandleIn(c, StartMain, func(nav *state.Navigator) error {
		return nav.Start(RatingMain, nil)
	})
}

func (h *handlers) renderRating(c tele.Context, nav *state.Navigator) error {
	top, err := h.chars.Top(nav.Context())
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("🏆 <b>Top players</b>\n\n")
	if len(top) == 0 {
		b.WriteString("Nobody has a rating yet.")
	}
	for i, u := range top {
		mark := ""
		if u.ID == nav.UserID() {
			mark = " 👈"
		}
		fmt.Fprintf(&b, "%d. %s ⭐%d%s\n", i+1, format.EscapeHTML(u.Handle()), u.Rating, mark)
	}
	return shared.Show(c, b.String(), shared.Row(shared.CancelBtn("⬅️ Back")))
}
