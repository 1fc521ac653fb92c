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
	"github.com/m3rciful/tabletop/internal/inventory"
	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
)

const itemKey = "item_id"

// skipMark clears an optional text field.
const skipMark = "-"

func (h *handlers) inventoryDialog() *state.Dialog {
	return &state.Dialog{
		Name:    InventoryMain.Dialog(),
		OnStart: h.authorizeStart(role.ActionManageItems),
		Windows: []state.Window{
			{State: InventoryMain, Render: h.renderInventory},
			{State: InventoryAddTitle, Render: renderAddItemTitle, OnText: onAddItemTitle},
			{State: InventoryAddDescription, Render: renderAddItemDescription, OnText: onAddItemDescription},
			{State: InventoryAddQuantity, Render: renderItemQuantity, OnText: h.onAddItemQuantity},
			{State: InventoryItem, Render: h.renderItem},
			{State: InventoryEditTitle, Render: renderEditItemTitle, OnText: h.onEditItemTitle},
			{State: InventoryEditDescription, Render: renderEditItemDescription, OnText: h.onEditItemDescription},
			{State: InventoryEditQuantity, Render: renderItemQuantity, OnText: h.onEditItemQuantity},
			{State: InventoryConfirmDelete, Render: h.renderDeleteItem},
		},
	}
}

func (h *handlers) onStash(c tele.Context) error {
	return h.startFromManage(c, InventoryMain, func(id int64) any { return inventoryRef{CampaignID: id} })
}

func holderFrom(nav *state.Navigator) (inventoryRef, error) {
	var ref inventoryRef
	if err := nav.StartData(&ref); err != nil {
		return ref, err
	}
	if ref.CampaignID <= 0 {
		return ref, apperr.Validation("admin.inventory_ref", "no campaign selected")
	}
	return ref, nil
}

func (h *handlers) renderInventory(c tele.Context, nav *state.Navigator) error {
	ref, err := holderFrom(nav)
	if err != nil {
		return err
	}
	items, err := h.inv.List(nav.Context(), nav.UserID(), ref.CampaignID, ref.HolderID)
	if err != nil {
		return err
	}
	var b strings.Builder
	if ref.HolderID == inventory.Stash {
		b.WriteString("🎒 <b>Campaign stash</b>\n\n")
	} else {
		card, err := h.chars.Player(nav.Context(), nav.UserID(), ref.CampaignID, ref.HolderID)
		if err != nil {
			return err
		}
		fmt.Fprintf(&b, "🎒 <b>Inventory of %s</b>\n\n", format.EscapeHTML(card.User.Handle()))
	}
	shared.DescribeItems(&b, items)

	var rows [][]keyboard.InlineBtn
	for _, it := range items {
		rows = append(rows, shared.Row(keyboard.InlineBtn{
			Text:   format.Truncate(fmt.Sprintf("%s × %d", it.Title, it.Quantity), 48),
			Unique: cbSelectItem,
			Data:   it.ID.String(),
		}))
	}
	rows = append(rows,
		shared.Row(shared.SwitchBtn("➕ Add item", InventoryAddTitle)),
		shared.Row(shared.CancelBtn("⬅️ Back")),
	)
	return shared.Show(c, b.String(), rows...)
}

func renderAddItemTitle(c tele.Context, _ *state.Navigator) error {
	return shared.Show(c, fmt.Sprintf("➕ <b>New item</b>\n\nSend the name (up to %d characters).", inventory.MaxTitleLen),
		shared.Row(shared.SwitchBtn("❌ Cancel", InventoryMain)))
}

func onAddItemTitle(c tele.Context, nav *state.Navigator) error {
	title, err := inventory.ValidateTitle(c.Text())
	if err != nil {
		return err
	}
	if err := nav.Delete("description"); err != nil {
		return err
	}
	if err := nav.Set("title", title); err != nil {
		return err
	}
	return nav.Next()
}

func renderAddItemDescription(c tele.Context, nav *state.Navigator) error {
	var title string
	if _, err := nav.Get("title", &title); err != nil {
		return err
	}
	text := fmt.Sprintf("📝 Item: <b>%s</b>\n\nSend a description (up to %d characters) or skip this step.",
		format.EscapeHTML(title), inventory.MaxDescriptionLen)
	return shared.Show(c, text,
		shared.Row(shared.BackBtn("⬅️ Back"), shared.NextBtn("Skip ⏩")),
		shared.Row(shared.SwitchBtn("❌ Cancel", InventoryMain)),
	)
}

func onAddItemDescription(c tele.Context, nav *state.Navigator) error {
	desc, err := optionalDescription(c.Text())
	if err != nil {
		return err
	}
	if err := nav.Set("description", desc); err != nil {
		return err
	}
	return nav.Next()
}

func optionalDescription(text string) (string, error) {
	if strings.TrimSpace(text) == skipMark {
		return "", nil
	}
	return inventory.ValidateDescription(text)
}

func renderItemQuantity(c tele.Context, nav *state.Navigator) error {
	back := InventoryItem
	if cur, _ := nav.Current(); cur == InventoryAddQuantity {
		back = InventoryAddDescription
	}
	return shared.Show(c, fmt.Sprintf("🔢 Send the quantity (1 to %d).", inventory.MaxQuantity),
		shared.Row(shared.SwitchBtn("⬅️ Back", back)))
}

func (h *handlers) onAddItemQuantity(c tele.Context, nav *state.Navigator) error {
	qty, err := inventory.ParseQuantity(c.Text())
	if err != nil {
		return err
	}
	ref, err := holderFrom(nav)
	if err != nil {
		return err
	}
	d := inventory.Draft{Quantity: qty}
	if _, err := nav.Get("title", &d.Title); err != nil {
		return err
	}
	if _, err := nav.Get("description", &d.Description); err != nil {
		return err
	}
	if _, err := h.inv.Add(nav.Context(), nav.UserID(), ref.CampaignID, ref.HolderID, d); err != nil {
		return err
	}
	for _, key := range []string{"title", "description"} {
		if err := nav.Delete(key); err != nil {
			return err
		}
	}
	return nav.SwitchTo(InventoryMain)
}

func (h *handlers) onSelectItem(c tele.Context) error {
	id, err := callbacks.PayloadUUID(c)
	if err != nil {
		return apperr.Validation("admin.select_item", "malformed item id")
	}
	return h.dialogs.HandleIn(c, InventoryMain, func(nav *state.Navigator) error {
		if _, err := h.inv.Get(nav.Context(), nav.UserID(), id); err != nil {
			return err
		}
		if err := nav.Set(itemKey, id); err != nil {
			return err
		}
		return nav.SwitchTo(InventoryItem)
	})
}

func (h *handlers) selectedItem(nav *state.Navigator) (model.Item, error) {
	var id uuid.UUID
	ok, err := nav.Get(itemKey, &id)
	if err != nil {
		return model.Item{}, err
	}
	if !ok {
		return model.Item{}, apperr.Validation("admin.selected_item", "no item selected")
	}
	return h.inv.Get(nav.Context(), nav.UserID(), id)
}

func (h *handlers) renderItem(c tele.Context, nav *state.Navigator) error {
	it, err := h.selectedItem(nav)
	if err != nil {
		return err
	}
	var b strings.Builder
	shared.DescribeItems(&b, []model.Item{it})
	return shared.Show(c, "🎒 <b>Item</b>\n\n"+b.String(),
		shared.Row(shared.SwitchBtn("📝 Name", InventoryEditTitle), shared.SwitchBtn("📄 Description", InventoryEditDescription)),
		shared.Row(shared.SwitchBtn("🔢 Quantity", InventoryEditQuantity), shared.SwitchBtn("🗑 Delete", InventoryConfirmDelete)),
		shared.Row(shared.SwitchBtn("⬅️ Back", InventoryMain)),
	)
}

func renderEditItemTitle(c tele.Context, _ *state.Navigator) error {
	return shared.Show(c, fmt.Sprintf("Send the new name (up to %d characters).", inventory.MaxTitleLen),
		shared.Row(shared.SwitchBtn("⬅️ Back", InventoryItem)))
}

func renderEditItemDescription(c tele.Context, _ *state.Navigator) error {
	return shared.Show(c, fmt.Sprintf("Send the new description (up to %d characters) or %q to clear it.",
		inventory.MaxDescriptionLen, skipMark),
		shared.Row(shared.SwitchBtn("⬅️ Back", InventoryItem)))
}

// updateItem applies p to the selected item and returns to its card.
func (h *handlers) updateItem(nav *state.Navigator, p inventory.Patch) error {
	it, err := h.selectedItem(nav)
	if err != nil {
		return err
	}
	if _, err := h.inv.Update(nav.Context(), nav.UserID(), it.ID, p); err != nil {
		return err
	}
	return nav.SwitchTo(InventoryItem)
}

func (h *handlers) onEditItemTitle(c tele.Context, nav *state.Navigator) error {
	title := c.Text()
	return h.updateItem(nav, inventory.Patch{Title: &title})
}

func (h *handlers) onEditItemDescription(c tele.Context, nav *state.Navigator) error {
	desc, err := optionalDescription(c.Text())
	if err != nil {
		return err
	}
	return h.updateItem(nav, inventory.Patch{Description: &desc})
}

func (h *handlers) onEditItemQuantity(c tele.Context, nav *state.Navigator) error {
	qty, err := inventory.ParseQuantity(c.Text())
	if err != nil {
		return err
	}
	return h.updateItem(nav, inventory.Patch{Quantity: &qty})
}

func (h *handlers) renderDeleteItem(c tele.Context, nav *state.Navigator) error {
	it, err := h.selectedItem(nav)
	if err != nil {
		return err
	}
	return shared.Show(c, fmt.Sprintf("🗑 Delete <b>%s</b> × %d?", format.EscapeHTML(it.Title), it.Quantity),
		shared.Row(keyboard.InlineBtn{Text: "🗑 Delete", Unique: cbDeleteItem}),
		shared.Row(shared.SwitchBtn("⬅️ Back", InventoryItem)),
	)
}

func (h *handlers) onDeleteItem(c tele.Context) error {
	return h.dialogs.HandleIn(c, InventoryConfirmDelete, func(nav *state.Navigator) error {
		it, err := h.selectedItem(nav)
		if err != nil {
			return err
		}
		if err := h.inv.Delete(nav.Context(), nav.UserID(), it.ID); err != nil {
			return err
		}
		if err := nav.Delete(itemKey); err != nil {
			return err
		}
		_ = tghelpers.Answer(c, fmt.Sprintf("🗑 %s deleted", it.Title), false)
		return nav.SwitchTo(InventoryMain)
	})
}
