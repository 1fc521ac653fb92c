package player

import "github.com/m3rciful/tabletop/core/telegram/state"

const (
	StartMain            state.State = "StartSimple.main"
	MyCampaignsMain      state.State = "MyCampaigns.main"
	CampaignPreviewMain  state.State = "CampaignPreview.main"
	InvitationAcceptMain state.State = "InvitationAccept.main"
	RatingMain           state.State = "Rating.main"

	CharacterMain      state.State = "Character.main"
	CharacterUpload    state.State = "Character.upload"
	CharacterInventory state.State = "Character.inventory"
)

// Callback keys.
const (
	cbMyCampaigns  = "ss_campaigns"
	cbOpenCampaign = "mc_open"
	cbAccept       = "ia_accept"
	cbRating       = "ss_rating"
	cbCharacter    = "cp_character"
)

type campaignRef struct {
	CampaignID int64 `json:"campaign_id"`
}

type acceptStart struct {
	Token string `json:"token"`
}
