package admin

import "github.com/m3rciful/tabletop/core/telegram/state"

const (
	CampaignListMain state.State = "CampaignList.main"

	CreateTitle       state.State = "CreateCampaign.title"
	CreateDescription state.State = "CreateCampaign.description"
	CreateConfirm     state.State = "CreateCampaign.confirm"

	CampaignManageMain state.State = "CampaignManage.main"

	EditSelectField   state.State = "EditCampaign.select_field"
	EditTitle         state.State = "EditCampaign.edit_title"
	EditDescription   state.State = "EditCampaign.edit_description"
	EditConfirm       state.State = "EditCampaign.confirm"
	EditConfirmDelete state.State = "EditCampaign.confirm_delete"

	PermissionsMain     state.State = "Permissions.main"
	PermissionsSelected state.State = "Permissions.selected"

	PlayersMain  state.State = "ManagePlayers.main"
	PlayerCard   state.State = "ManagePlayers.player"
	PlayerLevel  state.State = "ManagePlayers.change_level"
	PlayerRating state.State = "ManagePlayers.change_rating"

	InventoryMain            state.State = "ManageInventory.main"
	InventoryAddTitle        state.State = "ManageInventory.add_title"
	InventoryAddDescription  state.State = "ManageInventory.add_description"
	InventoryAddQuantity     state.State = "ManageInventory.add_quantity"
	InventoryItem            state.State = "ManageInventory.item"
	InventoryEditTitle       state.State = "ManageInventory.edit_title"
	InventoryEditDescription state.State = "ManageInventory.edit_description"
	InventoryEditQuantity    state.State = "ManageInventory.edit_quantity"
	InventoryConfirmDelete   state.State = "ManageInventory.confirm_delete"

	InviteMain   state.State = "InviteMenu.main"
	InviteQR     state.State = "InviteMenu.view_qr"
	InviteAccept state.State = "InviteMenu.accept"
)

// Callback keys.
const (
	cbOpenCampaign  = "cl_open"
	cbNewCampaign   = "cl_new"
	cbNewAcademy    = "cl_academy"
	cbCreateConfirm = "cc_create"
	cbEditInfo      = "cm_edit"
	cbMasters       = "cm_masters"
	cbInvitePlayer  = "cm_invite"
	cbPlayers       = "cm_players"
	cbStash         = "cm_stash"
	cbEditSave      = "ec_save"
	cbEditDelete    = "ec_delete"
	cbSelectMaster  = "pm_select"
	cbRemoveMaster  = "pm_remove"
	cbDemoteMaster  = "pm_demote"
	cbInviteMaster  = "pm_invite"
	cbSelectPlayer  = "pc_select"
	cbRating        = "pc_rating"
	cbExport        = "pc_export"
	cbInventory     = "pc_inventory"
	cbSelectItem    = "iv_select"
	cbDeleteItem    = "iv_delete"
	cbRegenerate    = "im_regen"
	cbAccept        = "im_accept"
)

// campaignRef is the start data of dialogs scoped to one campaign.
type campaignRef struct {
	CampaignID int64 `json:"campaign_id"`
}

// inventoryRef opens ManageInventory on one holder. HolderID 0 is the
// campaign stash.
type inventoryRef struct {
	CampaignID int64 `json:"campaign_id"`
	HolderID   int64 `json:"holder_id,omitempty"`
}

type createStart struct {
	Verified bool `json:"verified,omitempty"`
}

// inviteStart opens InviteMenu either to issue an invitation (CampaignID and
// Role) or to accept one (Token).
type inviteStart struct {
	CampaignID int64  `json:"campaign_id,omitempty"`
	Role       string `json:"role,omitempty"`
	Token      string `json:"token,omitempty"`
}

type editResult struct {
	Deleted bool `json:"deleted"`
}
