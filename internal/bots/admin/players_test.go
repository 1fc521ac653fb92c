package admin_test

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tabletop/internal/bots/admin"
	"github.com/m3rciful/tabletop/internal/bots/shared"
	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
)

const sheet = `{"name":{"value":"Rictavio"},"info":{"charClass":{"value":"Bard"},"level":{"value":4}}}`

func (e *env) withPlayer(c model.Campaign) {
	e.t.Helper()
	_, _, err := e.st.Participations.GetOrCreate(e.t.Context(), playerID, c.ID, role.Player)
	require.NoError(e.t, err)
}

func TestPlayerCardRatingAndLevel(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Curse of Strahd")
	e.withPlayer(c)
	_, err := e.chars.Upload(t.Context(), playerID, c.ID, []byte(sheet))
	require.NoError(t, err)

	e.openCampaign(ownerID, c)
	e.press(ownerID, "cm_players", "")
	require.Equal(t, admin.PlayersMain, e.current(ownerID))
	edits := e.srv.Method("editMessageText")
	assert.Contains(t, edits[len(edits)-1].Params["reply_markup"], "Rictavio (4)")

	e.press(ownerID, "pc_select", strconv.FormatInt(playerID, 10))
	require.Equal(t, admin.PlayerCard, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "Rating: 0")
	assert.Contains(t, e.srv.LastText(), "Rictavio</b>, level 4")

	e.press(ownerID, "pc_rating", "5")
	assert.Contains(t, e.lastAlert(), "Rating: 5")
	e.press(ownerID, "pc_rating", "-1")
	assert.Contains(t, e.lastAlert(), "Rating: 4")

	e.press(ownerID, shared.CbSwitch, string(admin.PlayerRating))
	e.text(ownerID, "2000")
	assert.Contains(t, e.srv.LastText(), "Rating must be between 0 and 1000")
	require.Equal(t, admin.PlayerRating, e.current(ownerID))
	e.text(ownerID, "42")
	require.Equal(t, admin.PlayerCard, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "Rating: 42")

	e.press(ownerID, shared.CbSwitch, string(admin.PlayerLevel))
	e.text(ownerID, "21")
	assert.Contains(t, e.srv.LastText(), "Level must be between 1 and 20")
	e.text(ownerID, "six")
	assert.Contains(t, e.srv.LastText(), "Send a whole number")
	e.text(ownerID, "6")
	require.Equal(t, admin.PlayerCard, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "level 6")

	u, err := e.st.Users.Get(t.Context(), playerID)
	require.NoError(t, err)
	assert.Equal(t, 42, u.Rating)

	e.press(ownerID, "pc_export", "")
	docs := e.srv.Method("sendDocument")
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Files, "document")
	assert.Contains(t, string(docs[0].Uploads["document"]), `"value": 6`)
	assert.Equal(t, admin.PlayerCard, e.current(ownerID))
}

func TestPlayerWithoutCharacter(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Out of the Abyss")
	e.withPlayer(c)
	_, _, err := e.st.Participations.GetOrCreate(t.Context(), masterID, c.ID, role.Master)
	require.NoError(t, err)

	e.openCampaign(masterID, c)
	e.press(masterID, "cm_players", "")
	e.press(masterID, "pc_select", strconv.FormatInt(ownerID, 10))
	assert.Contains(t, e.lastAlert(), "not a player of the campaign")
	require.Equal(t, admin.PlayersMain, e.current(masterID))

	e.press(masterID, "pc_select", strconv.FormatInt(playerID, 10))
	assert.Contains(t, e.srv.LastText(), "No character uploaded yet")
	edits := e.srv.Method("editMessageText")
	rm := edits[len(edits)-1].Params["reply_markup"]
	assert.NotContains(t, rm, "pc_export")
	assert.NotContains(t, rm, string(admin.PlayerLevel))

	e.press(masterID, "pc_export", "")
	assert.Contains(t, e.lastAlert(), "has not uploaded")
}

func TestStashItems(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Dragon Heist")
	e.openCampaign(ownerID, c)

	e.press(ownerID, "cm_stash", "")
	require.Equal(t, admin.InventoryMain, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "Campaign stash")
	assert.Contains(t, e.srv.LastText(), "Empty.")

	e.press(ownerID, shared.CbSwitch, string(admin.InventoryAddTitle))
	e.text(ownerID, "Bag of holding")
	require.Equal(t, admin.InventoryAddDescription, e.current(ownerID))
	e.press(ownerID, shared.CbNext, "")
	require.Equal(t, admin.InventoryAddQuantity, e.current(ownerID))
	e.text(ownerID, "0")
	assert.Contains(t, e.srv.LastText(), "Quantity must be between 1 and 1000")
	e.text(ownerID, "2")
	require.Equal(t, admin.InventoryMain, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "Bag of holding × 2")

	items, err := e.st.Items.List(t.Context(), c.ID, nil)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Empty(t, items[0].Description)

	e.press(ownerID, "iv_select", items[0].ID.String())
	require.Equal(t, admin.InventoryItem, e.current(ownerID))
	e.press(ownerID, shared.CbSwitch, string(admin.InventoryEditDescription))
	e.text(ownerID, "Bigger on the inside")
	require.Equal(t, admin.InventoryItem, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "<i>Bigger on the inside</i>")
	e.press(ownerID, shared.CbSwitch, string(admin.InventoryEditQuantity))
	e.text(ownerID, "3")
	assert.Contains(t, e.srv.LastText(), "Bag of holding × 3")

	e.press(ownerID, shared.CbSwitch, string(admin.InventoryConfirmDelete))
	e.press(ownerID, "iv_delete", "")
	require.Equal(t, admin.InventoryMain, e.current(ownerID))
	assert.Contains(t, e.lastAlert(), "Bag of holding deleted")
	items, err = e.st.Items.List(t.Context(), c.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPlayerInventoryFromCard(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Wild Beyond the Witchlight")
	e.withPlayer(c)

	e.openCampaign(ownerID, c)
	e.press(ownerID, "cm_players", "")
	e.press(ownerID, "pc_select", strconv.FormatInt(playerID, 10))
	e.press(ownerID, "pc_inventory", "")
	require.Equal(t, admin.InventoryMain, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "Inventory of @player")

	e.press(ownerID, shared.CbSwitch, string(admin.InventoryAddTitle))
	e.text(ownerID, "Potion of healing")
	e.text(ownerID, "-")
	e.text(ownerID, "4")

	holder := playerID
	items, err := e.st.Items.List(t.Context(), c.ID, &holder)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Potion of healing", items[0].Title)
	assert.Equal(t, 4, items[0].Quantity)

	e.press(ownerID, shared.CbCancel, "")
	assert.Equal(t, admin.PlayerCard, e.current(ownerID))
}
