package admin_test

import (
	"bytes"
	"regexp"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/telegram/state"
	"github.com/m3rciful/tabletop/core/telegram/teletest"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/bots/admin"
	"github.com/m3rciful/tabletop/internal/bots/shared"
	"github.com/m3rciful/tabletop/internal/campaign"
	"github.com/m3rciful/tabletop/internal/character"
	"github.com/m3rciful/tabletop/internal/inventory"
	"github.com/m3rciful/tabletop/internal/invitation"
	"github.com/m3rciful/tabletop/internal/messaging"
	"github.com/m3rciful/tabletop/internal/messaging/messagingtest"
	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
	"github.com/m3rciful/tabletop/internal/store"
	"github.com/m3rciful/tabletop/internal/store/storetest"
)

const (
	ownerID  int64 = 1
	masterID int64 = 2
	playerID int64 = 3
	rootID   int64 = 9
)

var names = map[int64]string{ownerID: "owner", masterID: "master", playerID: "player", rootID: "root"}

type env struct {
	t       *testing.T
	srv     *teletest.Server
	tb      *tele.Bot
	bot     *shared.Bot
	users   *shared.UserSync
	st      *store.Store
	camps   *campaign.Service
	invites *invitation.Service
	chars   *character.Service
	inv     *inventory.Service
	dm      *messagingtest.Recorder
	play    *messagingtest.Recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := storetest.Open(t)
	for id, name := range names {
		storetest.SeedUser(t, st, id, name)
	}
	dm := messagingtest.NewRecorder("dm_bot")
	play := messagingtest.NewRecorder("play_bot")
	ids, err := messaging.NewIdentities(dm, play)
	require.NoError(t, err)

	camps, err := campaign.NewService(st.Campaigns, st.Participations, st.Users, ids, nil)
	require.NoError(t, err)
	invites, err := invitation.NewService(invitation.Deps{
		Invitations:    st.Invitations,
		Participations: st.Participations,
		Campaigns:      st.Campaigns,
		Users:          st.Users,
		Identities:     ids,
	}, invitation.WithQRDir(t.TempDir()))
	require.NoError(t, err)

	chars, err := character.NewService(st.Characters, st.Users, camps, nil)
	require.NoError(t, err)
	inv, err := inventory.NewService(st.Items, camps)
	require.NoError(t, err)

	bot, err := admin.New(admin.Deps{Campaigns: camps, Invites: invites, Characters: chars, Inventory: inv})
	require.NoError(t, err)

	srv := teletest.NewServer(t)
	return &env{
		t: t, srv: srv, tb: srv.Bot(t), bot: bot,
		users: shared.NewUserSync(st.Users, []int64{rootID}),
		st:    st, camps: camps, invites: invites, chars: chars, inv: inv, dm: dm, play: play,
	}
}

func (e *env) run(h tele.HandlerFunc, c tele.Context) error {
	return e.users.Middleware(h)(c)
}

func (e *env) command(userID int64, cmd, payload string) {
	e.t.Helper()
	_, meta, ok := e.bot.Registry.LookupCommand(cmd)
	require.True(e.t, ok, cmd)
	require.NoError(e.t, e.run(meta.Handler, teletest.Command(e.tb, userID, names[userID], cmd, payload)))
}

func (e *env) press(userID int64, unique, payload string) {
	e.t.Helper()
	h, ok := e.bot.Registry.GetCallback(unique)
	require.True(e.t, ok, unique)
	require.NoError(e.t, e.run(h, teletest.Callback(e.tb, userID, names[userID], unique, payload)))
}

func (e *env) text(userID int64, text string) {
	e.t.Helper()
	h := shared.Guard(e.bot.Dialogs.ManagerHandler)
	require.NoError(e.t, e.run(h, teletest.Text(e.tb, userID, names[userID], text)))
}

func (e *env) current(userID int64) state.State {
	e.t.Helper()
	s, _, err := e.bot.Dialogs.Current(e.t.Context(), userID)
	require.NoError(e.t, err)
	return s
}

// lastAlert returns the text of the most recent callback answer.
func (e *env) lastAlert() string {
	answers := e.srv.Method("answerCallbackQuery")
	if len(answers) == 0 {
		return ""
	}
	return answers[len(answers)-1].Params["text"]
}

func (e *env) campaign(title string) model.Campaign {
	e.t.Helper()
	c, err := e.camps.Create(e.t.Context(), ownerID, campaign.Draft{Title: title})
	require.NoError(e.t, err)
	return c
}

func (e *env) openCampaign(userID int64, c model.Campaign) {
	e.t.Helper()
	e.command(userID, "/start", "")
	e.press(userID, "cl_open", strconv.FormatInt(c.ID, 10))
	require.Equal(e.t, admin.CampaignManageMain, e.current(userID))
}

var tokenRe = regexp.MustCompile(`start=([0-9a-f-]{36})`)

func (e *env) lastToken() string {
	e.t.Helper()
	m := tokenRe.FindStringSubmatch(e.srv.LastText())
	require.Len(e.t, m, 2, "no invitation link in %q", e.srv.LastText())
	return m[1]
}

func TestStartShowsCampaignList(t *testing.T) {
	e := newEnv(t)
	e.command(ownerID, "/start", "")

	assert.Equal(t, admin.CampaignListMain, e.current(ownerID))
	texts := e.srv.Texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "Greetings, Master @owner")
	assert.Contains(t, texts[1], "You do not run any campaigns yet")
}

func TestCreateCampaignWizard(t *testing.T) {
	e := newEnv(t)
	e.command(ownerID, "/start", "")
	e.press(ownerID, "cl_new", "")
	require.Equal(t, admin.CreateTitle, e.current(ownerID))

	e.text(ownerID, "   ")
	assert.Contains(t, e.srv.LastText(), "Title must not be empty")
	require.Equal(t, admin.CreateTitle, e.current(ownerID))

	e.text(ownerID, "Curse of Strahd")
	require.Equal(t, admin.CreateDescription, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "Curse of Strahd")

	e.press(ownerID, shared.CbNext, "")
	require.Equal(t, admin.CreateConfirm, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "Description: not set")

	e.press(ownerID, "cc_create", "")
	assert.Equal(t, admin.CampaignListMain, e.current(ownerID))
	assert.Contains(t, e.lastAlert(), "Curse of Strahd was created")

	list, err := e.camps.ListForUser(t.Context(), ownerID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, role.Owner, list[0].Role)
	assert.False(t, list[0].Verified)
}

func TestAcademyCampaignNeedsAdmin(t *testing.T) {
	e := newEnv(t)
	e.command(ownerID, "/start", "")
	e.press(ownerID, "cl_academy", "")
	assert.Contains(t, e.lastAlert(), "Only administrators")
	assert.Equal(t, admin.CampaignListMain, e.current(ownerID))

	e.command(rootID, "/academy", "")
	require.Equal(t, admin.CreateTitle, e.current(rootID))
	assert.Contains(t, e.srv.LastText(), "New academy campaign")
	e.text(rootID, "Academy Year One")
	e.text(rootID, "Lessons for new players")
	e.press(rootID, "cc_create", "")

	list, err := e.camps.ListForUser(t.Context(), rootID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Verified)
	assert.Equal(t, "Lessons for new players", list[0].Description)
}

func TestStaleButtonIsRejected(t *testing.T) {
	e := newEnv(t)
	e.command(ownerID, "/start", "")
	e.press(ownerID, "cc_create", "")

	assert.Contains(t, e.lastAlert(), "no longer active")
	assert.Equal(t, admin.CampaignListMain, e.current(ownerID))
}

func TestManageHidesActionsByRole(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Storm King")
	_, _, err := e.st.Participations.GetOrCreate(t.Context(), masterID, c.ID, role.Master)
	require.NoError(t, err)

	e.openCampaign(masterID, c)
	markup := e.srv.Method("editMessageText")
	require.NotEmpty(t, markup)
	rm := markup[len(markup)-1].Params["reply_markup"]
	assert.Contains(t, rm, "cm_edit")
	assert.Contains(t, rm, "cm_invite")
	assert.NotContains(t, rm, "cm_masters")

	e.press(masterID, "cm_masters", "")
	assert.Contains(t, e.lastAlert(), "Requires owner")
	assert.Equal(t, admin.CampaignManageMain, e.current(masterID))
}

func TestPlayersCannotOpenManagement(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Tomb of Annihilation")
	_, _, err := e.st.Participations.GetOrCreate(t.Context(), playerID, c.ID, role.Player)
	require.NoError(t, err)

	e.command(playerID, "/start", "")
	e.press(playerID, "cl_open", strconv.FormatInt(c.ID, 10))
	assert.Contains(t, e.lastAlert(), "Requires master")
	assert.Equal(t, admin.CampaignListMain, e.current(playerID))
}

func TestEditAndDeleteCampaign(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Old title")
	e.openCampaign(ownerID, c)

	e.press(ownerID, "cm_edit", "")
	require.Equal(t, admin.EditSelectField, e.current(ownerID))

	e.press(ownerID, shared.CbSwitch, string(admin.EditConfirm))
	assert.Contains(t, e.srv.LastText(), "Nothing has changed")
	e.press(ownerID, "ec_save", "")
	assert.Contains(t, e.lastAlert(), "Nothing to save")

	e.press(ownerID, shared.CbSwitch, string(admin.EditTitle))
	e.text(ownerID, "New title")
	require.Equal(t, admin.EditSelectField, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "unsaved changes")

	e.press(ownerID, shared.CbSwitch, string(admin.EditConfirm))
	e.press(ownerID, "ec_save", "")
	require.Equal(t, admin.CampaignManageMain, e.current(ownerID))
	got, err := e.camps.Get(t.Context(), c.ID)
	require.NoError(t, err)
	assert.Equal(t, "New title", got.Title)

	e.press(ownerID, "cm_edit", "")
	e.press(ownerID, shared.CbSwitch, string(admin.EditConfirmDelete))
	e.press(ownerID, "ec_delete", "")
	assert.Equal(t, admin.CampaignListMain, e.current(ownerID))
	_, err = e.camps.Get(t.Context(), c.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestMasterCannotDelete(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Waterdeep")
	_, _, err := e.st.Participations.GetOrCreate(t.Context(), masterID, c.ID, role.Master)
	require.NoError(t, err)

	e.openCampaign(masterID, c)
	e.press(masterID, "cm_edit", "")
	edits := e.srv.Method("editMessageText")
	assert.NotContains(t, edits[len(edits)-1].Params["reply_markup"], string(admin.EditConfirmDelete))

	e.press(masterID, shared.CbSwitch, string(admin.EditConfirmDelete))
	e.press(masterID, "ec_delete", "")
	assert.Contains(t, e.lastAlert(), "Requires owner")
	_, err = e.camps.Get(t.Context(), c.ID)
	assert.NoError(t, err)
}

func TestInviteMasterThroughLink(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Descent into Avernus")
	e.openCampaign(ownerID, c)

	e.press(ownerID, "cm_masters", "")
	require.Equal(t, admin.PermissionsMain, e.current(ownerID))
	e.press(ownerID, "pm_invite", "")
	require.Equal(t, admin.InviteMain, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "https://t.me/dm_bot/?start=")
	token := e.lastToken()

	e.command(masterID, "/start", token)
	require.Equal(t, admin.InviteAccept, e.current(masterID))
	assert.Contains(t, e.srv.LastText(), "invited to <b>Descent into Avernus</b> as master")

	e.press(masterID, "im_accept", "")
	assert.Equal(t, admin.CampaignManageMain, e.current(masterID))
	p, err := e.camps.Membership(t.Context(), c.ID, masterID)
	require.NoError(t, err)
	assert.Equal(t, role.Master, p.Role)

	sent := e.dm.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, ownerID, sent[0].ChatID)
	assert.Contains(t, sent[0].Message.Text, "@master (master) accepted")

	// The link is single-use.
	e.command(rootID, "/start", token)
	assert.Contains(t, e.srv.LastText(), "already been used")
}

func TestInvitePlayerByUsername(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Icewind Dale")
	e.openCampaign(ownerID, c)

	e.press(ownerID, "cm_invite", "")
	require.Equal(t, admin.InviteMain, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "https://t.me/play_bot/?start=")

	e.text(ownerID, "@nobody")
	assert.Contains(t, e.srv.LastText(), "has not started the bot")
	require.Equal(t, admin.InviteMain, e.current(ownerID))

	e.text(ownerID, "@Player")
	assert.Equal(t, admin.CampaignManageMain, e.current(ownerID))

	sent := e.play.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, playerID, sent[0].ChatID)
	require.NotNil(t, sent[0].Message.Button)
	assert.Contains(t, sent[0].Message.Button.URL, "https://t.me/play_bot/?start=")
}

func TestRegenerateRevokesPreviousLink(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Phandelver")
	e.openCampaign(ownerID, c)
	e.press(ownerID, "cm_invite", "")
	first := e.lastToken()

	e.press(ownerID, "im_regen", "")
	second := e.lastToken()
	assert.NotEqual(t, first, second)
	assert.Contains(t, e.lastAlert(), "previous link no longer works")

	e.command(masterID, "/start", first)
	assert.Contains(t, e.srv.LastText(), "replaced by a newer one")
}

func TestInviteQRCode(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Candlekeep")
	e.openCampaign(ownerID, c)
	e.press(ownerID, "cm_invite", "")

	e.press(ownerID, shared.CbNext, "")
	require.Equal(t, admin.InviteQR, e.current(ownerID))
	photos := e.srv.Method("sendPhoto")
	require.Len(t, photos, 1)
	assert.Contains(t, photos[0].Files, "photo")
	assert.True(t, bytes.HasPrefix(photos[0].Uploads["photo"], []byte("\x89PNG")), "QR code is sent as a PNG")

	e.press(ownerID, shared.CbBack, "")
	assert.Equal(t, admin.InviteMain, e.current(ownerID))
}

func TestDemoteAndRemoveMaster(t *testing.T) {
	e := newEnv(t)
	c := e.campaign("Rime")
	mp, _, err := e.st.Participations.GetOrCreate(t.Context(), masterID, c.ID, role.Master)
	require.NoError(t, err)

	e.openCampaign(ownerID, c)
	e.press(ownerID, "cm_masters", "")
	e.press(ownerID, "pm_select", mp.ID.String())
	require.Equal(t, admin.PermissionsSelected, e.current(ownerID))
	assert.Contains(t, e.srv.LastText(), "@master")

	e.press(ownerID, "pm_demote", "")
	assert.Equal(t, admin.PermissionsMain, e.current(ownerID))
	p, err := e.camps.Membership(t.Context(), c.ID, masterID)
	require.NoError(t, err)
	assert.Equal(t, role.Player, p.Role)

	_, _, err = e.st.Participations.GetOrCreate(t.Context(), rootID, c.ID, role.Master)
	require.NoError(t, err)
	rp, err := e.camps.Membership(t.Context(), c.ID, rootID)
	require.NoError(t, err)
	e.press(ownerID, "pm_select", rp.ID.String())
	e.press(ownerID, "pm_remove", "")
	assert.Equal(t, admin.PermissionsMain, e.current(ownerID))
	_, err = e.camps.Membership(t.Context(), c.ID, rootID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestCancelClosesMenu(t *testing.T) {
	e := newEnv(t)
	e.command(ownerID, "/start", "")
	e.command(ownerID, "/cancel", "")
	_, ok, err := e.bot.Dialogs.Current(t.Context(), ownerID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, e.srv.LastText(), "Menu closed")
}
