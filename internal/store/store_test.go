package store_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/model"
	"github.com/m3rciful/tabletop/internal/role"
	"github.com/m3rciful/tabletop/internal/store"
	"github.com/m3rciful/tabletop/internal/store/storetest"
)

func newCampaign(t *testing.T, s *store.Store, owner int64) model.Campaign {
	t.Helper()
	c, _, err := s.Campaigns.Create(t.Context(), model.Campaign{Title: "Curse of Strahd", Private: true}, owner)
	require.NoError(t, err)
	return c
}

func TestUsersUpsertRefreshesUsername(t *testing.T) {
	s := storetest.Open(t)
	ctx := t.Context()

	u, err := s.Users.Upsert(ctx, 10, "@Alice", false)
	require.NoError(t, err)
	require.NotNil(t, u.Username)
	assert.Equal(t, "Alice", *u.Username)

	u, err = s.Users.Upsert(ctx, 10, "alice_new", true)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", *u.Username)
	assert.True(t, u.Admin)

	// admin is sticky
	u, err = s.Users.Upsert(ctx, 10, "alice_new", false)
	require.NoError(t, err)
	assert.True(t, u.Admin)

	got, err := s.Users.GetByUsername(ctx, "@ALICE_NEW")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.ID)
}

func TestUsersUsernameMovesToNewestHolder(t *testing.T) {
	s := storetest.Open(t)
	ctx := t.Context()

	_, err := s.Users.Upsert(ctx, 1, "gm", false)
	require.NoError(t, err)
	_, err = s.Users.Upsert(ctx, 2, "gm", false)
	require.NoError(t, err)

	got, err := s.Users.GetByUsername(ctx, "gm")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)

	old, err := s.Users.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, old.Username)
}

func TestUsersGetMissing(t *testing.T) {
	s := storetest.Open(t)
	_, err := s.Users.Get(t.Context(), 404)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = s.Users.GetByUsername(t.Context(), "  ")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCampaignCreateAddsOwner(t *testing.T) {
	s := storetest.Open(t)
	ctx := t.Context()
	storetest.SeedUser(t, s, 1, "owner")

	c, p, err := s.Campaigns.Create(ctx, model.Campaign{Title: "Tomb", Description: "dungeon"}, 1)
	require.NoError(t, err)
	assert.NotZero(t, c.ID)
	assert.Equal(t, role.Owner, p.Role)

	found, err := s.Participations.Find(ctx, 1, c.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	list, err := s.Campaigns.ListForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Tomb", list[0].Title)
	assert.Equal(t, role.Owner, list[0].Role)
	assert.Equal(t, p.ID, list[0].ParticipationID)
}

func TestCampaignUpdateAndDelete(t *testing.T) {
	s := storetest.Open(t)
	ctx := t.Context()
	storetest.SeedUser(t, s, 1, "owner")
	c := newCampaign(t, s, 1)

	title := "Renamed"
	updated, err := s.Campaigns.Update(ctx, c.ID, store.CampaignPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, c.Description, updated.Description)

	_, err = s.Invitations.Create(ctx, model.Invitation{CampaignID: c.ID, Role: role.Player, Token: uuid.New()})
	require.NoError(t, err)

	require.NoError(t, s.Campaigns.Delete(ctx, c.ID))
	_, err = s.Campaigns.Get(ctx, c.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	_, err = s.Participations.Find(ctx, 1, c.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = s.Campaigns.Delete(ctx, c.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestParticipationGetOrCreateIsIdempotent(t *testing.T) {
	s := storetest.Open(t)
	ctx := t.Context()
	storetest.SeedUser(t, s, 1, "owner")
	storetest.SeedUser(t, s, 2, "player")
	c := newCampaign(t, s, 1)

	p1, created, err := s.Participations.GetOrCreate(ctx, 2, c.ID, role.Player)
	require.NoError(t, err)
	assert.True(t, created)

	p2, created, err := s.Participations.GetOrCreate(ctx, 2, c.ID, role.Master)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p1.ID, p2.ID)
	assert.Equal(t, role.Player, p2.Role, "existing role is kept")

	masters := role.Master
	list, err := s.Participations.ListByCampaign(ctx, c.ID, &masters)
	require.NoError(t, err)
	assert.Empty(t, list)

	all, err := s.Participations.ListByCampaign(ctx, c.ID, nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, role.Owner, all[0].Role)
	assert.Equal(t, "@player", all[1].Handle())

	promoted, err := s.Participations.UpdateRole(ctx, p1.ID, role.Master)
	require.NoError(t, err)
	assert.Equal(t, role.Master, promoted.Role)

	require.NoError(t, s.Participations.Delete(ctx, p1.ID))
	err = s.Participations.Delete(ctx, p1.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestInvitationBindAndRevoke(t *testing.T) {
	s := storetest.Open(t)
	ctx := t.Context()
	storetest.SeedUser(t, s, 1, "owner")
	storetest.SeedUser(t, s, 2, "bob")
	storetest.SeedUser(t, s, 3, "eve")
	c := newCampaign(t, s, 1)
	creator := int64(1)

	inv, err := s.Invitations.Create(ctx, model.Invitation{CampaignID: c.ID, Role: role.Player, Token: uuid.New(), CreatedBy: &creator})
	require.NoError(t, err)
	assert.Nil(t, inv.UserID)
	assert.False(t, inv.Consumed)

	byToken, err := s.Invitations.GetByToken(ctx, inv.Token)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byToken.ID)

	bound, err := s.Invitations.Bind(ctx, inv.ID, 2)
	require.NoError(t, err)
	require.NotNil(t, bound.UserID)
	assert.Equal(t, int64(2), *bound.UserID)

	_, err = s.Invitations.Bind(ctx, inv.ID, 3)
	assert.ErrorIs(t, err, store.ErrNotConsumable)

	require.NoError(t, s.Invitations.Revoke(ctx, inv.ID))
	_, _, _, err = s.Invitations.ConsumeAndJoin(ctx, inv.ID, 2)
	assert.ErrorIs(t, err, store.ErrNotConsumable)
}

func TestConsumeAndJoinExactlyOnce(t *testing.T) {
	s := storetest.Open(t)
	ctx := t.Context()
	storetest.SeedUser(t, s, 1, "owner")
	c := newCampaign(t, s, 1)

	inv, err := s.Invitations.Create(ctx, model.Invitation{CampaignID: c.ID, Role: role.Player, Token: uuid.New()})
	require.NoError(t, err)

	const racers = 8
	for i := int64(0); i < racers; i++ {
		storetest.SeedUser(t, s, 100+i, "")
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
		losers  int
	)
	for i := int64(0); i < racers; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			_, p, joined, err := s.Invitations.ConsumeAndJoin(ctx, inv.ID, uid)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				assert.True(t, joined)
				assert.Equal(t, uid, p.UserID)
				winners = append(winners, uid)
			case errors.Is(err, store.ErrNotConsumable):
				losers++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(100 + i)
	}
	wg.Wait()

	require.Len(t, winners, 1)
	assert.Equal(t, racers-1, losers)

	got, err := s.Invitations.Get(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.Consumed)
	require.NotNil(t, got.UserID)
	assert.Equal(t, winners[0], *got.UserID)
}
